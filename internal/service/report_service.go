package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"quiz-bot-go/internal/model"
	"quiz-bot-go/internal/repository"
	"quiz-bot-go/pkg/es"
	"sort"
	"time"
)

// ErrSearchDisabled 表示没有配置 Elasticsearch，事件检索不可用。
var ErrSearchDisabled = errors.New("event search is not enabled")

// EventSearcher 检索已索引的分析事件，由 es.EventIndex 实现。
type EventSearcher interface {
	Search(ctx context.Context, q es.SearchQuery) ([]es.EventDocument, int64, error)
}

// SessionListResponse 定义了会话列表 API 的响应结构。
type SessionListResponse struct {
	Content       []SessionSummary `json:"content"`
	TotalElements int64            `json:"totalElements"`
	TotalPages    int              `json:"totalPages"`
	Size          int              `json:"size"`
	Number        int              `json:"number"`
}

// SessionSummary 是会话列表中的一项。
type SessionSummary struct {
	SessionID       uint                `json:"sessionId"`
	UserID          uint                `json:"userId"`
	PhoneNumber     string              `json:"phoneNumber"`
	Status          model.SessionStatus `json:"status"`
	CurrentQuestion int                 `json:"currentQuestion"`
	AnsweredCount   int                 `json:"answeredCount"`
	StartedAt       model.LocalTime     `json:"startedAt"`
	LastActivityAt  model.LocalTime     `json:"lastActivityAt"`
	CompletedAt     *model.LocalTime    `json:"completedAt"`
	AbandonedAt     *model.LocalTime    `json:"abandonedAt"`
}

// SessionDetail 是单个会话的完整信息。
type SessionDetail struct {
	Session        *model.QuizSession     `json:"session"`
	User           *model.User            `json:"user"`
	Responses      []model.QuizResponse   `json:"responses"`
	Recommendation *model.Recommendation  `json:"recommendation"`
	Events         []model.AnalyticsEvent `json:"events"`
}

// QuestionCount 是某一题对应的事件数量。
type QuestionCount struct {
	Question int   `json:"question"`
	Count    int64 `json:"count"`
}

// Stats 是后台统计面板的数据。
type Stats struct {
	TotalStarted   int64            `json:"totalStarted"`
	TotalCompleted int64            `json:"totalCompleted"`
	CompletionRate float64          `json:"completionRate"`
	InProgress     int64            `json:"inProgress"`
	Abandoned      int64            `json:"abandoned"`
	Dropoffs       []QuestionCount  `json:"dropoffs"`
	QuestionStats  []QuestionCount  `json:"questionStats"`
	TierCounts     map[string]int64 `json:"tierCounts"`
}

// ReportService 接口定义了后台只读报表相关的业务操作。
type ReportService interface {
	Stats(ctx context.Context) (*Stats, error)
	ListSessions(ctx context.Context, status model.SessionStatus, page, size int) (*SessionListResponse, error)
	GetSession(ctx context.Context, sessionID uint) (*SessionDetail, error)
	ListResponses(ctx context.Context, sessionID uint, page, size int) ([]model.QuizResponse, int64, error)
	ListRecommendations(ctx context.Context, page, size int) ([]model.Recommendation, int64, error)
	ListEvents(ctx context.Context, filter repository.EventFilter) ([]model.AnalyticsEvent, error)
	SearchEvents(ctx context.Context, q es.SearchQuery) ([]es.EventDocument, int64, error)
	GetConversation(ctx context.Context, phoneNumber string, startTime, endTime *time.Time) ([]model.ChatMessage, error)
}

type reportService struct {
	store         repository.Store
	conversations ConversationService
	searcher      EventSearcher
}

// NewReportService 创建一个新的 ReportService 实例。searcher 为 nil 时事件检索不可用。
func NewReportService(store repository.Store, conversations ConversationService, searcher EventSearcher) ReportService {
	return &reportService{
		store:         store,
		conversations: conversations,
		searcher:      searcher,
	}
}

// Stats 汇总分析事件、会话状态和推荐档位分布。
func (s *reportService) Stats(ctx context.Context) (*Stats, error) {
	eventCounts, err := s.store.Analytics().CountByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	statusCounts, err := s.store.Sessions().CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	tierCounts, err := s.store.Recommendations().CountByTier(ctx)
	if err != nil {
		return nil, fmt.Errorf("count recommendations: %w", err)
	}

	stats := &Stats{
		TotalStarted:   eventCounts[model.EventQuizStarted],
		TotalCompleted: eventCounts[model.EventQuizCompleted],
		InProgress:     statusCounts[model.StatusInProgress],
		Abandoned:      statusCounts[model.StatusAbandoned],
		Dropoffs:       []QuestionCount{},
		QuestionStats:  []QuestionCount{},
		TierCounts:     tierCounts,
	}
	if stats.TotalStarted > 0 {
		rate := float64(stats.TotalCompleted) / float64(stats.TotalStarted) * 100
		stats.CompletionRate = math.Round(rate*100) / 100
	}

	for eventType, count := range eventCounts {
		n, ok := model.ParseQuestionNumber(eventType)
		if !ok {
			continue
		}
		if model.IsDroppedOffEvent(eventType) {
			stats.Dropoffs = append(stats.Dropoffs, QuestionCount{Question: n, Count: count})
		} else {
			stats.QuestionStats = append(stats.QuestionStats, QuestionCount{Question: n, Count: count})
		}
	}
	sortByQuestion(stats.Dropoffs)
	sortByQuestion(stats.QuestionStats)
	return stats, nil
}

func sortByQuestion(items []QuestionCount) {
	sort.Slice(items, func(i, j int) bool { return items[i].Question < items[j].Question })
}

// ListSessions 分页查询会话，page 从 0 开始。
func (s *reportService) ListSessions(ctx context.Context, status model.SessionStatus, page, size int) (*SessionListResponse, error) {
	page, size = normalizePage(page, size)
	sessions, total, err := s.store.Sessions().List(ctx, repository.SessionFilter{
		Status: status,
		Limit:  size,
		Offset: page * size,
	})
	if err != nil {
		return nil, err
	}

	phones := make(map[uint]string)
	content := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		phone, ok := phones[sess.UserID]
		if !ok {
			if u, err := s.store.Users().FindByID(ctx, sess.UserID); err == nil {
				phone = u.PhoneNumber
			}
			phones[sess.UserID] = phone
		}
		content = append(content, SessionSummary{
			SessionID:       sess.ID,
			UserID:          sess.UserID,
			PhoneNumber:     phone,
			Status:          sess.Status,
			CurrentQuestion: sess.CurrentQuestion,
			AnsweredCount:   sess.AnsweredCount(),
			StartedAt:       model.LocalTime(sess.CreatedAt),
			LastActivityAt:  model.LocalTime(sess.UpdatedAt),
			CompletedAt:     model.LocalTimePtr(sess.CompletedAt),
			AbandonedAt:     model.LocalTimePtr(sess.AbandonedAt),
		})
	}

	totalPages := 0
	if total > 0 {
		totalPages = (int(total) + size - 1) / size
	}
	return &SessionListResponse{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Size:          size,
		Number:        page,
	}, nil
}

// GetSession 返回会话及其用户、作答、推荐和事件。会话不存在时返回 repository.ErrNotFound。
func (s *reportService) GetSession(ctx context.Context, sessionID uint) (*SessionDetail, error) {
	session, err := s.store.Sessions().FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	detail := &SessionDetail{Session: session}

	if detail.User, err = s.store.Users().FindByID(ctx, session.UserID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if detail.Responses, err = s.store.Responses().ListBySession(ctx, session.ID); err != nil {
		return nil, err
	}
	rec, err := s.store.Recommendations().FindBySession(ctx, session.ID)
	switch {
	case err == nil:
		detail.Recommendation = rec
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	if detail.Events, err = s.store.Analytics().List(ctx, repository.EventFilter{SessionID: session.ID}); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListResponses 分页查询作答记录，sessionID 为 0 时查询全部。
func (s *reportService) ListResponses(ctx context.Context, sessionID uint, page, size int) ([]model.QuizResponse, int64, error) {
	page, size = normalizePage(page, size)
	return s.store.Responses().List(ctx, repository.ResponseFilter{SessionID: sessionID, Limit: size, Offset: page * size})
}

// ListRecommendations 分页查询推荐结果。
func (s *reportService) ListRecommendations(ctx context.Context, page, size int) ([]model.Recommendation, int64, error) {
	page, size = normalizePage(page, size)
	return s.store.Recommendations().List(ctx, page*size, size)
}

// ListEvents 按条件查询分析事件。
func (s *reportService) ListEvents(ctx context.Context, filter repository.EventFilter) ([]model.AnalyticsEvent, error) {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}
	return s.store.Analytics().List(ctx, filter)
}

// SearchEvents 在 Elasticsearch 中检索分析事件。
func (s *reportService) SearchEvents(ctx context.Context, q es.SearchQuery) ([]es.EventDocument, int64, error) {
	if s.searcher == nil {
		return nil, 0, ErrSearchDisabled
	}
	return s.searcher.Search(ctx, q)
}

// GetConversation 返回某个用户的聊天记录，可按时间过滤。
func (s *reportService) GetConversation(ctx context.Context, phoneNumber string, startTime, endTime *time.Time) ([]model.ChatMessage, error) {
	history, err := s.conversations.GetHistory(ctx, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	filtered := make([]model.ChatMessage, 0, len(history))
	for _, msg := range history {
		if startTime != nil && msg.Timestamp.Before(*startTime) {
			continue
		}
		if endTime != nil && msg.Timestamp.After(*endTime) {
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	return page, size
}
