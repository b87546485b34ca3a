// Package pipeline 定义了分析事件落库与索引的处理流程。
package pipeline

import (
	"context"
	"fmt"
	"quiz-bot-go/internal/model"
	"quiz-bot-go/internal/repository"
	"quiz-bot-go/pkg/es"
	"quiz-bot-go/pkg/log"
	"quiz-bot-go/pkg/tasks"
	"time"

	"gorm.io/datatypes"
)

// EventIndexer 把事件写入检索引擎。未配置 Elasticsearch 时为 nil。
type EventIndexer interface {
	IndexEvent(ctx context.Context, doc es.EventDocument) error
}

// Processor 封装了分析事件处理的所有依赖和逻辑。
type Processor struct {
	analyticsRepo repository.AnalyticsRepository
	indexer       EventIndexer
}

// NewProcessor 创建一个新的 Processor 实例。indexer 可以为 nil。
func NewProcessor(analyticsRepo repository.AnalyticsRepository, indexer EventIndexer) *Processor {
	return &Processor{
		analyticsRepo: analyticsRepo,
		indexer:       indexer,
	}
}

// Process 持久化一条分析事件，并在配置了检索引擎时建立索引。
// 按 EventID 幂等：Kafka 重复投递时不会产生第二条记录。
func (p *Processor) Process(ctx context.Context, task tasks.AnalyticsEventTask) error {
	if task.EventID == "" {
		return fmt.Errorf("analytics event %s has no event id", task.EventType)
	}
	occurred := task.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	event := &model.AnalyticsEvent{
		EventID:   task.EventID,
		SessionID: task.SessionID,
		UserID:    task.UserID,
		EventType: task.EventType,
		Metadata:  datatypes.JSONMap(task.Metadata),
		CreatedAt: occurred,
	}
	inserted, err := p.analyticsRepo.Create(ctx, event)
	if err != nil {
		return fmt.Errorf("保存分析事件失败: %w", err)
	}
	if !inserted {
		log.Infof("[Processor] 分析事件已存在，跳过, EventID: %s", task.EventID)
		return nil
	}

	if p.indexer != nil {
		doc := es.EventDocument{
			EventID:   task.EventID,
			SessionID: task.SessionID,
			UserID:    task.UserID,
			EventType: task.EventType,
			Metadata:  task.Metadata,
			CreatedAt: occurred,
		}
		// 索引失败不回滚落库，事件以数据库为准。
		if err := p.indexer.IndexEvent(ctx, doc); err != nil {
			log.Warnf("[Processor] 索引分析事件失败, EventID: %s, Error: %v", task.EventID, err)
		}
	}
	return nil
}
