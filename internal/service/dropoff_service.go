package service

import (
	"context"
	"errors"
	"quiz-bot-go/internal/model"
	"quiz-bot-go/internal/repository"
	"quiz-bot-go/pkg/log"
	"time"
)

// Serializer 把一段工作排进某个用户的串行队列，等它执行完再返回。
// dispatcher.Dispatcher 实现了该接口，保证放弃会话不会与该用户正在处理的消息交错。
type Serializer interface {
	Do(ctx context.Context, userKey string, fn func(ctx context.Context)) error
}

// DropoffConfig 是空闲会话清理任务的参数。
type DropoffConfig struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	BatchSize     int
}

// DropoffService 定期把长时间没有动静的进行中会话标记为 abandoned，
// 并为每个被放弃的会话记录一次 dropped_off_after_question_k 事件（k 为已答题数）。
type DropoffService struct {
	store      repository.Store
	sink       AnalyticsSink
	serializer Serializer
	cfg        DropoffConfig
	now        func() time.Time
}

// NewDropoffService 创建一个新的 DropoffService。serializer 为 nil 时直接在清理协程中执行。
func NewDropoffService(store repository.Store, sink AnalyticsSink, serializer Serializer, cfg DropoffConfig) *DropoffService {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &DropoffService{
		store:      store,
		sink:       sink,
		serializer: serializer,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run 按固定间隔执行清理，直到 ctx 被取消。
func (s *DropoffService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	log.Infof("空闲会话清理任务已启动，超时 %s，间隔 %s", s.cfg.IdleTimeout, s.cfg.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			log.Info("空闲会话清理任务已停止")
			return nil
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				log.Errorf("空闲会话清理失败: %v", err)
			} else if n > 0 {
				log.Infof("空闲会话清理完成，放弃 %d 个会话", n)
			}
		}
	}
}

// Sweep 执行一轮清理，返回本轮放弃的会话数量。
func (s *DropoffService) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.IdleTimeout)
	idle, err := s.store.Sessions().FindIdle(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	abandoned := 0
	for i := range idle {
		session := idle[i]
		user, err := s.store.Users().FindByID(ctx, session.UserID)
		if err != nil {
			log.Warnw("跳过找不到用户的空闲会话", "session_id", session.ID, "error", err)
			continue
		}

		var done bool
		work := func(ctx context.Context) {
			done = s.abandonIfIdle(ctx, session.ID, cutoff)
		}
		if s.serializer == nil {
			work(ctx)
		} else if err := s.serializer.Do(ctx, user.PhoneNumber, work); err != nil {
			return abandoned, err
		}
		if done {
			abandoned++
		}
	}
	return abandoned, nil
}

// abandonIfIdle 重新读取会话，确认它仍在进行中且仍然空闲后才放弃它。
// 只有真正完成 in_progress → abandoned 迁移的一方会记录流失事件，因此每个会话至多一次。
func (s *DropoffService) abandonIfIdle(ctx context.Context, sessionID uint, cutoff time.Time) bool {
	current, err := s.store.Sessions().FindByID(ctx, sessionID)
	if err != nil {
		log.Warnw("重新读取空闲会话失败", "session_id", sessionID, "error", err)
		return false
	}
	if !current.IsActive() || current.UpdatedAt.After(cutoff) {
		return false
	}

	abandoned, err := s.store.Sessions().Abandon(ctx, sessionID)
	if errors.Is(err, repository.ErrInvalidTransition) {
		return false
	}
	if err != nil {
		log.Errorw("放弃会话失败", "session_id", sessionID, "error", err)
		return false
	}

	answered := abandoned.AnsweredCount()
	s.sink.Record(ctx, abandoned.ID, abandoned.UserID, model.DroppedOffEvent(answered), map[string]interface{}{
		"last_question": answered,
		"idle_seconds":  int64(s.now().Sub(current.UpdatedAt).Seconds()),
	})
	return true
}
