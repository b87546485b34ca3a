package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type stubSender struct {
	err   error
	calls []string
}

func (s *stubSender) Send(_ context.Context, userID, text string) error {
	s.calls = append(s.calls, userID+":"+text)
	return s.err
}

func TestFallbackSenderUsesFallbackWhenOffline(t *testing.T) {
	primary := &stubSender{err: ErrNotConnected}
	fallback := &stubSender{}
	s := NewFallbackSender(primary, fallback)

	if err := s.Send(context.Background(), "+1", "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fallback.calls) != 1 || fallback.calls[0] != "+1:hi" {
		t.Fatalf("fallback calls = %v", fallback.calls)
	}
}

func TestFallbackSenderKeepsOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	fallback := &stubSender{}
	s := NewFallbackSender(&stubSender{err: boom}, fallback)

	if err := s.Send(context.Background(), "+1", "hi"); !errors.Is(err, boom) {
		t.Fatalf("Send err = %v", err)
	}
	if len(fallback.calls) != 0 {
		t.Fatalf("fallback should not be used, calls = %v", fallback.calls)
	}
}

func TestWebhookSenderPostsJSON(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, time.Second)
	if err := s.Send(context.Background(), "+91", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.To != "+91" || got.Text != "hello" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestWebhookSenderReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSender(srv.URL, time.Second).Send(context.Background(), "+1", "x")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("Send err = %v", err)
	}
}

func TestHubSendsToRegisteredConnection(t *testing.T) {
	hub := NewHub()
	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		unregister := hub.Register("+1", conn)
		close(registered)
		defer unregister()
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	if err := hub.Send(context.Background(), "+1", "early"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send before connect err = %v", err)
	}

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	<-registered

	if err := hub.Send(context.Background(), "+1", "welcome"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame Frame
	if err := client.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if frame.Type != FrameReply || frame.Content != "welcome" {
		t.Fatalf("frame = %+v", frame)
	}
}
