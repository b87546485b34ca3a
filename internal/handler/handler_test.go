package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"quiz-bot-go/internal/model"
	"quiz-bot-go/internal/repository"
	"quiz-bot-go/internal/service"
	"quiz-bot-go/internal/transport"
	"quiz-bot-go/pkg/es"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingInbound struct {
	msgs []transport.InboundMessage
	err  error
}

func (r *recordingInbound) Submit(_ context.Context, msg transport.InboundMessage) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

// stubReports 只实现用到的方法，其余方法返回零值。
type stubReports struct {
	service.ReportService
	detail    *service.SessionDetail
	detailErr error
	searchErr error
	lastQuery es.SearchQuery
	lastState model.SessionStatus
}

func (s *stubReports) GetSession(_ context.Context, _ uint) (*service.SessionDetail, error) {
	return s.detail, s.detailErr
}

func (s *stubReports) SearchEvents(_ context.Context, q es.SearchQuery) ([]es.EventDocument, int64, error) {
	s.lastQuery = q
	return nil, 0, s.searchErr
}

func (s *stubReports) ListSessions(_ context.Context, status model.SessionStatus, page, size int) (*service.SessionListResponse, error) {
	s.lastState = status
	return &service.SessionListResponse{Size: size, Number: page}, nil
}

type stubExports struct {
	publishErr error
}

func (s *stubExports) WriteCSV(_ context.Context, w io.Writer) error {
	_, err := io.WriteString(w, "Session ID,Phone\n1,+1\n")
	return err
}

func (s *stubExports) WriteJSON(_ context.Context, w io.Writer) error {
	_, err := io.WriteString(w, "[]")
	return err
}

func (s *stubExports) Publish(_ context.Context, format string) (*service.PublishedExport, error) {
	if s.publishErr != nil {
		return nil, s.publishErr
	}
	return &service.PublishedExport{ObjectName: "exports/x." + format, URL: "http://minio/x", ExpiresAt: time.Now()}, nil
}

func adminRouter(reports service.ReportService, exports service.ExportService) *gin.Engine {
	h := NewAdminHandler(reports, exports)
	r := gin.New()
	r.GET("/sessions", h.ListSessions)
	r.GET("/sessions/:id", h.GetSession)
	r.GET("/events/search", h.SearchEvents)
	r.GET("/export", h.Export)
	r.POST("/export/publish", h.PublishExport)
	return r
}

func do(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestReceiveSubmitsMessage(t *testing.T) {
	inbound := &recordingInbound{}
	r := gin.New()
	r.POST("/messages", NewMessageHandler(inbound).Receive)

	w := do(r, http.MethodPost, "/messages", []byte(`{"id":"m-1","from":"+15550001","text":"start"}`))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(inbound.msgs) != 1 {
		t.Fatalf("submitted %d messages", len(inbound.msgs))
	}
	got := inbound.msgs[0]
	if got.ID != "m-1" || got.UserID != "+15550001" || got.Text != "start" || got.ReceivedAt.IsZero() {
		t.Fatalf("message = %+v", got)
	}
}

func TestReceiveRejectsMissingSender(t *testing.T) {
	inbound := &recordingInbound{}
	r := gin.New()
	r.POST("/messages", NewMessageHandler(inbound).Receive)

	w := do(r, http.MethodPost, "/messages", []byte(`{"text":"A"}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if len(inbound.msgs) != 0 {
		t.Fatal("invalid message should not be submitted")
	}
}

func TestReceiveReportsSubmitFailure(t *testing.T) {
	inbound := &recordingInbound{err: errors.New("queue closed")}
	r := gin.New()
	r.POST("/messages", NewMessageHandler(inbound).Receive)

	w := do(r, http.MethodPost, "/messages", []byte(`{"from":"+1","text":"A"}`))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	r := adminRouter(&stubReports{detailErr: repository.ErrNotFound}, &stubExports{})

	if w := do(r, http.MethodGet, "/sessions/42", nil); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/sessions/abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("status for bad id = %d", w.Code)
	}
}

func TestListSessionsValidatesStatus(t *testing.T) {
	reports := &stubReports{}
	r := adminRouter(reports, &stubExports{})

	if w := do(r, http.MethodGet, "/sessions?status=bogus", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	w := do(r, http.MethodGet, "/sessions?status=abandoned&page=2&size=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if reports.lastState != model.StatusAbandoned {
		t.Fatalf("status filter = %q", reports.lastState)
	}
	var body struct {
		Data service.SessionListResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Number != 2 || body.Data.Size != 5 {
		t.Fatalf("paging = %+v", body.Data)
	}
}

func TestSearchEventsDisabled(t *testing.T) {
	reports := &stubReports{searchErr: service.ErrSearchDisabled}
	r := adminRouter(reports, &stubExports{})

	w := do(r, http.MethodGet, "/events/search?q=starter&type=quiz_completed&sessionId=7&start_date=2024-01-01", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	q := reports.lastQuery
	if q.Text != "starter" || q.EventType != "quiz_completed" || q.SessionID != 7 || q.From == nil || q.To != nil {
		t.Fatalf("query = %+v", q)
	}

	if w := do(r, http.MethodGet, "/events/search?start_date=01/02/2024", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d", w.Code)
	}
}

func TestExportCSVAttachment(t *testing.T) {
	r := adminRouter(&stubReports{}, &stubExports{})

	w := do(r, http.MethodGet, "/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment; filename=quiz-data-") || !strings.HasSuffix(cd, ".csv") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(w.Body.String(), "Session ID,Phone") {
		t.Fatalf("body = %q", w.Body.String())
	}

	if w := do(r, http.MethodGet, "/export?format=xml", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("xml status = %d", w.Code)
	}
}

func TestPublishExportErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{service.ErrStorageDisabled, http.StatusServiceUnavailable},
		{service.ErrUnsupportedFormat, http.StatusBadRequest},
		{errors.New("minio down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := adminRouter(&stubReports{}, &stubExports{publishErr: tc.err})
		if w := do(r, http.MethodPost, "/export/publish?format=json", nil); w.Code != tc.want {
			t.Errorf("Publish with %v: status = %d, want %d", tc.err, w.Code, tc.want)
		}
	}
}

func TestParseFrame(t *testing.T) {
	msg := parseFrame([]byte(`{"type":"message","id":"abc","content":"B"}`))
	if msg.ID != "abc" || msg.Text != "B" {
		t.Fatalf("json frame = %+v", msg)
	}

	msg = parseFrame([]byte("hello"))
	if msg.Text != "hello" || msg.ID == "" {
		t.Fatalf("text frame = %+v", msg)
	}
}
