package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"quiz-bot-go/internal/model"
	"quiz-bot-go/internal/repository"
	"strconv"
	"time"
)

// 导出格式。
const (
	ExportFormatCSV  = "csv"
	ExportFormatJSON = "json"
)

var (
	// ErrUnsupportedFormat 表示导出格式不是 csv 或 json。
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrStorageDisabled 表示没有配置对象存储，无法发布导出文件。
	ErrStorageDisabled = errors.New("object storage is not enabled")
)

const exportPageSize = 200

// ObjectStore 保存导出文件并生成下载地址，由 storage.Bucket 实现。
type ObjectStore interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// ExportRecord 是 JSON 导出中的一个会话。
type ExportRecord struct {
	Session        ExportSession         `json:"session"`
	User           ExportUser            `json:"user"`
	Responses      []ExportResponse      `json:"responses"`
	Recommendation *ExportRecommendation `json:"recommendation"`
}

// ExportSession 是导出的会话字段。
type ExportSession struct {
	ID          uint                `json:"id"`
	Status      model.SessionStatus `json:"status"`
	StartedAt   time.Time           `json:"startedAt"`
	CompletedAt *time.Time          `json:"completedAt"`
}

// ExportUser 是导出的用户字段。
type ExportUser struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// ExportResponse 是导出的一条作答。
type ExportResponse struct {
	QuestionNumber int    `json:"questionNumber"`
	Question       string `json:"question"`
	Answer         string `json:"answer"`
}

// ExportRecommendation 是导出的推荐结果。
type ExportRecommendation struct {
	Product string `json:"product"`
	Price   int64  `json:"price"`
	Reason  string `json:"reason"`
}

// PublishedExport 描述一次上传到对象存储的导出。
type PublishedExport struct {
	ObjectName string    `json:"objectName"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// ExportService 接口定义了数据导出相关的业务操作。
type ExportService interface {
	WriteCSV(ctx context.Context, w io.Writer) error
	WriteJSON(ctx context.Context, w io.Writer) error
	Publish(ctx context.Context, format string) (*PublishedExport, error)
}

type exportService struct {
	store         repository.Store
	questionCount int
	objects       ObjectStore
	urlExpiry     time.Duration
}

// NewExportService 创建一个新的 ExportService。objects 为 nil 时不能发布到对象存储。
func NewExportService(store repository.Store, questionCount int, objects ObjectStore, urlExpiry time.Duration) ExportService {
	if urlExpiry <= 0 {
		urlExpiry = time.Hour
	}
	return &exportService{
		store:         store,
		questionCount: questionCount,
		objects:       objects,
		urlExpiry:     urlExpiry,
	}
}

// collect 按页读取全部会话并组装成导出记录。
func (s *exportService) collect(ctx context.Context) ([]ExportRecord, error) {
	var records []ExportRecord
	users := make(map[uint]*model.User)

	for offset := 0; ; offset += exportPageSize {
		sessions, _, err := s.store.Sessions().List(ctx, repository.SessionFilter{Limit: exportPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for i := range sessions {
			rec, err := s.buildRecord(ctx, &sessions[i], users)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		if len(sessions) < exportPageSize {
			break
		}
	}
	return records, nil
}

func (s *exportService) buildRecord(ctx context.Context, sess *model.QuizSession, users map[uint]*model.User) (ExportRecord, error) {
	rec := ExportRecord{
		Session: ExportSession{
			ID:          sess.ID,
			Status:      sess.Status,
			StartedAt:   sess.CreatedAt,
			CompletedAt: sess.CompletedAt,
		},
		Responses: []ExportResponse{},
	}

	user, ok := users[sess.UserID]
	if !ok {
		u, err := s.store.Users().FindByID(ctx, sess.UserID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return rec, err
		}
		user = u
		users[sess.UserID] = u
	}
	if user != nil {
		rec.User = ExportUser{Phone: user.PhoneNumber, Name: user.Name}
	}

	responses, err := s.store.Responses().ListBySession(ctx, sess.ID)
	if err != nil {
		return rec, err
	}
	for _, r := range responses {
		rec.Responses = append(rec.Responses, ExportResponse{
			QuestionNumber: r.QuestionNumber,
			Question:       r.QuestionText,
			Answer:         r.AnswerText,
		})
	}

	recommendation, err := s.store.Recommendations().FindBySession(ctx, sess.ID)
	switch {
	case err == nil:
		rec.Recommendation = &ExportRecommendation{
			Product: recommendation.RecommendedProduct,
			Price:   recommendation.ProductPrice,
			Reason:  recommendation.RecommendationReason,
		}
	case !errors.Is(err, repository.ErrNotFound):
		return rec, err
	}
	return rec, nil
}

// WriteCSV 以 CSV 写出全部会话，每行一个会话，每题一列。
func (s *exportService) WriteCSV(ctx context.Context, w io.Writer) error {
	records, err := s.collect(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"Session ID", "User Phone", "User Name", "Status", "Started At", "Completed At", "Recommended Product", "Product Price"}
	for i := 1; i <= s.questionCount; i++ {
		header = append(header, fmt.Sprintf("Question %d Answer", i))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			strconv.FormatUint(uint64(rec.Session.ID), 10),
			rec.User.Phone,
			rec.User.Name,
			string(rec.Session.Status),
			rec.Session.StartedAt.Format(time.RFC3339),
			"",
			"",
			"",
		}
		if rec.Session.CompletedAt != nil {
			row[5] = rec.Session.CompletedAt.Format(time.RFC3339)
		}
		if rec.Recommendation != nil {
			row[6] = rec.Recommendation.Product
			row[7] = strconv.FormatInt(rec.Recommendation.Price, 10)
		}
		answers := make([]string, s.questionCount)
		for _, r := range rec.Responses {
			if r.QuestionNumber >= 1 && r.QuestionNumber <= s.questionCount {
				answers[r.QuestionNumber-1] = r.Answer
			}
		}
		if err := cw.Write(append(row, answers...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON 以 JSON 数组写出全部会话。
func (s *exportService) WriteJSON(ctx context.Context, w io.Writer) error {
	records, err := s.collect(ctx)
	if err != nil {
		return err
	}
	if records == nil {
		records = []ExportRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// Publish 生成一份导出并上传到对象存储，返回临时下载地址。
func (s *exportService) Publish(ctx context.Context, format string) (*PublishedExport, error) {
	if s.objects == nil {
		return nil, ErrStorageDisabled
	}

	var buf bytes.Buffer
	var contentType string
	switch format {
	case ExportFormatCSV:
		contentType = "text/csv"
		if err := s.WriteCSV(ctx, &buf); err != nil {
			return nil, err
		}
	case ExportFormatJSON:
		contentType = "application/json"
		if err := s.WriteJSON(ctx, &buf); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	now := time.Now()
	objectName := fmt.Sprintf("exports/quiz-data-%s.%s", now.Format("20060102-150405"), format)
	if err := s.objects.Put(ctx, objectName, buf.Bytes(), contentType); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}
	url, err := s.objects.PresignedURL(ctx, objectName, s.urlExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}
	return &PublishedExport{ObjectName: objectName, URL: url, ExpiresAt: now.Add(s.urlExpiry)}, nil
}
