package service

import (
	"context"
	"errors"
	"quiz-bot-go/internal/model"
	"quiz-bot-go/internal/quiz"
	"quiz-bot-go/internal/repository"
	"quiz-bot-go/pkg/log"
	"strings"

	"gorm.io/datatypes"
)

// startKeywords 是开始或继续问卷的指令，比较前已统一转为大写。
var startKeywords = map[string]bool{
	"START": true,
	"HI":    true,
	"HELLO": true,
}

// QuizEngine 是问卷会话的状态机。
// 每次调用处理一条入站消息并返回要发给用户的回复；任何错误都会被转换成回复，不会向上抛出。
// 同一用户的消息必须串行调用（由 dispatcher 保证），不同用户可以并发。
type QuizEngine interface {
	HandleMessage(ctx context.Context, phoneNumber, text string) string
}

type quizEngine struct {
	store         repository.Store
	catalog       *quiz.Catalog
	sink          AnalyticsSink
	conversations ConversationService
}

// NewQuizEngine 创建一个新的 QuizEngine。conversations 为 nil 时不保存聊天记录。
func NewQuizEngine(store repository.Store, catalog *quiz.Catalog, sink AnalyticsSink, conversations ConversationService) QuizEngine {
	return &quizEngine{
		store:         store,
		catalog:       catalog,
		sink:          sink,
		conversations: conversations,
	}
}

// normalize 去掉首尾空白并转为大写。
func normalize(text string) string {
	return strings.ToUpper(strings.TrimSpace(text))
}

// HandleMessage 处理一条入站消息。
func (e *quizEngine) HandleMessage(ctx context.Context, phoneNumber, text string) string {
	reply := e.handle(ctx, phoneNumber, normalize(text))

	if e.conversations != nil {
		if err := e.conversations.RecordExchange(ctx, phoneNumber, text, reply); err != nil {
			log.Warnw("保存聊天记录失败", "phone", phoneNumber, "error", err)
		}
	}
	return reply
}

func (e *quizEngine) handle(ctx context.Context, phoneNumber, msg string) string {
	user, err := e.store.Users().FindOrCreate(ctx, phoneNumber)
	if err != nil {
		return e.apologize("find or create user", phoneNumber, err)
	}

	if startKeywords[msg] {
		return e.start(ctx, user)
	}

	active, err := e.store.Sessions().FindActive(ctx, user.ID)
	if err != nil {
		return e.apologize("find active session", phoneNumber, err)
	}
	if active == nil {
		return quiz.MsgPromptToStart
	}
	return e.answer(ctx, user, active, msg)
}

// start 开始新会话，已有进行中的会话时继续该会话。
func (e *quizEngine) start(ctx context.Context, user *model.User) string {
	sessions := e.store.Sessions()

	active, err := sessions.FindActive(ctx, user.ID)
	if err != nil {
		return e.apologize("find active session", user.PhoneNumber, err)
	}
	if active != nil {
		e.touch(ctx, active.ID)
		return e.resume(active)
	}

	session, err := sessions.Create(ctx, user.ID)
	if errors.Is(err, repository.ErrConflictActiveSession) {
		// 并发的另一条 START 先建好了会话，改为继续它。
		active, err = sessions.FindActive(ctx, user.ID)
		if err == nil && active != nil {
			e.touch(ctx, active.ID)
			return e.resume(active)
		}
		if err == nil {
			err = repository.ErrConflictActiveSession
		}
	}
	if err != nil {
		return e.apologize("create session", user.PhoneNumber, err)
	}

	log.Infow("问卷已开始", "session_id", session.ID, "user_id", user.ID)
	e.sink.Record(ctx, session.ID, user.ID, model.EventQuizStarted, map[string]interface{}{
		"question_count": e.catalog.QuestionCount(),
	})

	welcome, err := e.catalog.WelcomeMessage()
	if err != nil {
		log.Errorf("渲染欢迎消息失败: %v", err)
		return quiz.MsgInvalidState
	}
	return welcome
}

// touch 记录一次用户活动，避免正在交互的会话被空闲清理。失败只记日志。
func (e *quizEngine) touch(ctx context.Context, sessionID uint) {
	if err := e.store.Sessions().Touch(ctx, sessionID); err != nil {
		log.Warnw("刷新会话活动时间失败", "session_id", sessionID, "error", err)
	}
}

func (e *quizEngine) resume(session *model.QuizSession) string {
	msg, err := e.catalog.ResumeMessage(session.CurrentQuestion)
	if err != nil {
		log.Errorw("会话题号超出题库范围", "session_id", session.ID, "question", session.CurrentQuestion, "error", err)
		return quiz.MsgInvalidState
	}
	return msg
}

// answer 校验并应用一次作答。
func (e *quizEngine) answer(ctx context.Context, user *model.User, session *model.QuizSession, key string) string {
	ordinal := session.CurrentQuestion
	question, err := e.catalog.QuestionAt(ordinal)
	if err != nil {
		log.Errorw("会话题号超出题库范围", "session_id", session.ID, "question", ordinal, "error", err)
		return quiz.MsgInvalidState
	}
	option, ok := question.Option(key)
	if !ok {
		e.touch(ctx, session.ID)
		return quiz.MsgInvalidAnswer
	}

	resp := &model.QuizResponse{
		SessionID:      session.ID,
		QuestionNumber: ordinal,
		QuestionText:   question.Prompt,
		AnswerKey:      option.Key,
		AnswerText:     option.Text,
	}
	if ordinal < e.catalog.QuestionCount() {
		return e.advance(ctx, user, session, resp)
	}
	return e.finish(ctx, user, session, resp)
}

// advance 在一个事务里写入作答并推进题号，之后推送下一题。
func (e *quizEngine) advance(ctx context.Context, user *model.User, session *model.QuizSession, resp *model.QuizResponse) string {
	ordinal := resp.QuestionNumber
	err := e.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Responses().Create(ctx, resp); err != nil {
			return err
		}
		_, err := tx.Sessions().Advance(ctx, session.ID, ordinal+1)
		return err
	})
	if err != nil {
		return e.resolve(ctx, user, session.ID, err)
	}

	e.sink.Record(ctx, session.ID, user.ID, model.QuestionAnsweredEvent(ordinal), map[string]interface{}{
		"question": ordinal,
		"answer":   resp.AnswerKey,
	})

	next, err := e.catalog.NextQuestionMessage(ordinal + 1)
	if err != nil {
		log.Errorf("渲染第 %d 题失败: %v", ordinal+1, err)
		return quiz.MsgInvalidState
	}
	return next
}

// finish 写入最后一题，计算推荐并完成会话，全部在同一个事务中。
func (e *quizEngine) finish(ctx context.Context, user *model.User, session *model.QuizSession, resp *model.QuizResponse) string {
	var result *quiz.Result
	err := e.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Responses().Create(ctx, resp); err != nil {
			return err
		}
		responses, err := tx.Responses().ListBySession(ctx, session.ID)
		if err != nil {
			return err
		}
		answers := make([]string, 0, len(responses))
		for _, r := range responses {
			answers = append(answers, r.AnswerKey)
		}
		result, err = quiz.Score(e.catalog, answers)
		if err != nil {
			return err
		}

		rec := &model.Recommendation{
			SessionID:            session.ID,
			TierID:               result.Tier.ID,
			RecommendedProduct:   result.Tier.Name,
			ProductPrice:         result.Tier.Price,
			RecommendationReason: result.Rationale,
			Scores:               datatypes.JSONMap(result.ScoreMap()),
		}
		if err := tx.Recommendations().Create(ctx, rec); err != nil {
			return err
		}
		_, err = tx.Sessions().Complete(ctx, session.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, quiz.ErrInvalidAnswer) || errors.Is(err, quiz.ErrIncompleteAnswers) {
			log.Errorw("会话作答无法计分", "session_id", session.ID, "error", err)
			return quiz.MsgInvalidState
		}
		return e.resolve(ctx, user, session.ID, err)
	}

	ordinal := resp.QuestionNumber
	e.sink.Record(ctx, session.ID, user.ID, model.QuestionAnsweredEvent(ordinal), map[string]interface{}{
		"question": ordinal,
		"answer":   resp.AnswerKey,
	})
	e.sink.Record(ctx, session.ID, user.ID, model.EventQuizCompleted, map[string]interface{}{
		"tier":   result.Tier.ID,
		"price":  result.Tier.Price,
		"scores": result.ScoreMap(),
	})
	log.Infow("问卷已完成", "session_id", session.ID, "user_id", user.ID, "tier", result.Tier.ID, "scores", result.Scores)

	return quiz.FormatRecommendation(result.Tier, result.Rationale)
}

// resolve 处理事务失败。重复投递和状态竞争都按会话的最新状态重新回复，其余错误回复道歉。
func (e *quizEngine) resolve(ctx context.Context, user *model.User, sessionID uint, err error) string {
	switch {
	case errors.Is(err, repository.ErrOrdinalMismatch),
		errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, repository.ErrInvalidTransition):
		log.Infow("作答已应用或会话状态已变化", "session_id", sessionID, "reason", err)
		return e.replay(ctx, user, sessionID)
	case errors.Is(err, repository.ErrNotFound):
		log.Warnw("会话不存在", "session_id", sessionID)
		return quiz.MsgInvalidState
	}
	return e.apologize("apply answer", user.PhoneNumber, err)
}

// replay 重新读取会话，回复它当前所处位置对应的消息，不修改任何状态。
func (e *quizEngine) replay(ctx context.Context, user *model.User, sessionID uint) string {
	session, err := e.store.Sessions().FindByID(ctx, sessionID)
	if err != nil {
		return e.apologize("reload session", user.PhoneNumber, err)
	}

	switch session.Status {
	case model.StatusInProgress:
		msg, err := e.catalog.NextQuestionMessage(session.CurrentQuestion)
		if err != nil {
			return quiz.MsgInvalidState
		}
		return msg
	case model.StatusCompleted:
		rec, err := e.store.Recommendations().FindBySession(ctx, session.ID)
		if err != nil {
			return e.apologize("load recommendation", user.PhoneNumber, err)
		}
		tier, ok := e.catalog.Tier(rec.TierID)
		if !ok {
			return quiz.MsgInvalidState
		}
		return quiz.FormatRecommendation(*tier, rec.RecommendationReason)
	}
	return quiz.MsgPromptToStart
}

func (e *quizEngine) apologize(op, phoneNumber string, err error) string {
	log.Errorw("问卷引擎持久化失败", "op", op, "phone", phoneNumber, "error", err)
	return quiz.MsgApology
}
