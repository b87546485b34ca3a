// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"quiz-bot-go/pkg/log"
	"quiz-bot-go/pkg/tasks"
	"time"

	"github.com/google/uuid"
)

// AnalyticsSink 记录会话生命周期中的分析事件。
// 记录是尽力而为的：失败只写日志，不会影响触发它的会话状态迁移，也不会影响回复用户。
type AnalyticsSink interface {
	Record(ctx context.Context, sessionID, userID uint, kind string, metadata map[string]interface{})
}

// EventProcessor 同步处理一条分析事件，由 pipeline.Processor 实现。
type EventProcessor interface {
	Process(ctx context.Context, task tasks.AnalyticsEventTask) error
}

// EventPublisher 把分析事件发布到消息队列，由 kafka.Producer 实现。
type EventPublisher interface {
	PublishAnalyticsEvent(ctx context.Context, task tasks.AnalyticsEventTask) error
}

func newEventTask(sessionID, userID uint, kind string, metadata map[string]interface{}) tasks.AnalyticsEventTask {
	return tasks.AnalyticsEventTask{
		EventID:    uuid.NewString(),
		SessionID:  sessionID,
		UserID:     userID,
		EventType:  kind,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}
}

// directSink 在调用方的 goroutine 里直接落库，未启用 Kafka 时使用。
type directSink struct {
	processor EventProcessor
}

// NewDirectSink 创建一个同步写入的 AnalyticsSink。
func NewDirectSink(processor EventProcessor) AnalyticsSink {
	return &directSink{processor: processor}
}

func (s *directSink) Record(ctx context.Context, sessionID, userID uint, kind string, metadata map[string]interface{}) {
	task := newEventTask(sessionID, userID, kind, metadata)
	if err := s.processor.Process(ctx, task); err != nil {
		log.Warnw("埋点事件写入失败，已丢弃", "session_id", sessionID, "event", kind, "error", err)
	}
}

// kafkaSink 把事件发布到 Kafka，由消费者异步落库。
type kafkaSink struct {
	publisher EventPublisher
	timeout   time.Duration
}

// NewKafkaSink 创建一个经由 Kafka 异步写入的 AnalyticsSink。
func NewKafkaSink(publisher EventPublisher, timeout time.Duration) AnalyticsSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &kafkaSink{publisher: publisher, timeout: timeout}
}

func (s *kafkaSink) Record(ctx context.Context, sessionID, userID uint, kind string, metadata map[string]interface{}) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	task := newEventTask(sessionID, userID, kind, metadata)
	if err := s.publisher.PublishAnalyticsEvent(ctx, task); err != nil {
		log.Warnw("埋点事件未能发布", "session_id", sessionID, "event", kind, "error", err)
	}
}
