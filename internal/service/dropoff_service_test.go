package service

import (
	"context"
	"quiz-bot-go/internal/model"
	"quiz-bot-go/internal/quiz"
	"quiz-bot-go/internal/repository"
	"strings"
	"sync"
	"testing"
	"time"
)

// inlineSerializer 直接执行工作，并记录经过它的用户。
type inlineSerializer struct {
	mu   sync.Mutex
	keys []string
}

func (s *inlineSerializer) Do(ctx context.Context, userKey string, fn func(ctx context.Context)) error {
	s.mu.Lock()
	s.keys = append(s.keys, userKey)
	s.mu.Unlock()
	fn(ctx)
	return nil
}

func backdate(t *testing.T, f *engineFixture, sessionID uint, ago time.Duration) {
	t.Helper()
	err := f.db.Model(&model.QuizSession{}).Where("id = ?", sessionID).
		Update("updated_at", time.Now().Add(-ago)).Error
	if err != nil {
		t.Fatalf("backdate session: %v", err)
	}
}

func TestDropoffAfterThreeAnswers(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	serializer := &inlineSerializer{}
	sweeper := NewDropoffService(f.store, f.sink, serializer, DropoffConfig{IdleTimeout: 10 * time.Minute})

	f.send(t, "+1", "START")
	for _, a := range []string{"A", "B", "A"} {
		f.send(t, "+1", a)
	}
	session := f.activeSession(t, "+1")
	backdate(t, f, session.ID, time.Hour)

	n, err := sweeper.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v; want 1", n, err)
	}
	if len(serializer.keys) != 1 || serializer.keys[0] != "+1" {
		t.Fatalf("serialized keys = %v", serializer.keys)
	}

	got, _ := f.store.Sessions().FindByID(ctx, session.ID)
	if got.Status != model.StatusAbandoned || got.AbandonedAt == nil {
		t.Fatalf("session = %+v", got)
	}

	n, err = sweeper.Sweep(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second Sweep = %d, %v; want 0", n, err)
	}
	if c := f.sink.count(model.DroppedOffEvent(3)); c != 1 {
		t.Fatalf("dropped_off_after_question_3 recorded %d times", c)
	}
	kinds := f.sink.kinds(session.ID)
	if kinds[len(kinds)-1] != "dropped_off_after_question_3" {
		t.Fatalf("last event = %s", kinds[len(kinds)-1])
	}

	reply := f.send(t, "+1", "START")
	if !strings.Contains(reply, "Welcome to Home Security Quiz") {
		t.Fatalf("START after drop-off should begin a new quiz:\n%s", reply)
	}
	fresh := f.activeSession(t, "+1")
	if fresh == nil || fresh.ID == session.ID || fresh.CurrentQuestion != 1 {
		t.Fatalf("new session = %+v", fresh)
	}
}

func TestDropoffSkipsRecentSessions(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	sweeper := NewDropoffService(f.store, f.sink, nil, DropoffConfig{IdleTimeout: 10 * time.Minute})

	f.send(t, "+1", "START")
	f.send(t, "+2", "START")
	stale := f.activeSession(t, "+2")
	backdate(t, f, stale.ID, time.Hour)

	n, err := sweeper.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v; want 1", n, err)
	}
	if s := f.activeSession(t, "+1"); s == nil {
		t.Fatal("recent session was abandoned")
	}
	if c := f.sink.count(model.DroppedOffEvent(0)); c != 1 {
		t.Fatalf("dropped_off_after_question_0 recorded %d times", c)
	}
}

func TestDropoffIgnoresCompletedSessions(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	sweeper := NewDropoffService(f.store, f.sink, nil, DropoffConfig{IdleTimeout: time.Minute})

	f.send(t, "+1", "START")
	session := f.activeSession(t, "+1")
	for _, a := range []string{"A", "A", "A", "A", "A", "A"} {
		f.send(t, "+1", a)
	}
	backdate(t, f, session.ID, time.Hour)

	n, err := sweeper.Sweep(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Sweep = %d, %v; want 0", n, err)
	}
	got, _ := f.store.Sessions().FindByID(ctx, session.ID)
	if got.Status != model.StatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestDropoffRechecksUnderSerializer(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.send(t, "+1", "START")
	session := f.activeSession(t, "+1")
	backdate(t, f, session.ID, time.Hour)

	// 用户的新消息在清理任务排队期间先被处理。
	serializer := serializerFunc(func(ctx context.Context, key string, fn func(ctx context.Context)) error {
		f.send(t, key, "A")
		fn(ctx)
		return nil
	})
	sweeper := NewDropoffService(f.store, f.sink, serializer, DropoffConfig{IdleTimeout: 10 * time.Minute})

	n, err := sweeper.Sweep(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Sweep = %d, %v; want 0", n, err)
	}
	got, _ := f.store.Sessions().FindByID(ctx, session.ID)
	if got.Status != model.StatusInProgress || got.CurrentQuestion != 2 {
		t.Fatalf("session = %+v", got)
	}
	if _, err := f.store.Sessions().Abandon(ctx, session.ID); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if _, err := f.store.Sessions().Abandon(ctx, session.ID); err == nil {
		t.Fatal("second Abandon should fail")
	} else if !strings.Contains(err.Error(), repository.ErrInvalidTransition.Error()) {
		t.Fatalf("second Abandon err = %v", err)
	}
}

type serializerFunc func(ctx context.Context, key string, fn func(ctx context.Context)) error

func (f serializerFunc) Do(ctx context.Context, key string, fn func(ctx context.Context)) error {
	return f(ctx, key, fn)
}

func TestActivityWithoutProgressKeepsSessionAlive(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	sweeper := NewDropoffService(f.store, f.sink, nil, DropoffConfig{IdleTimeout: 10 * time.Minute})

	f.send(t, "+1", "START")
	f.send(t, "+1", "A")
	f.send(t, "+2", "START")
	resumed := f.activeSession(t, "+1")
	retried := f.activeSession(t, "+2")
	backdate(t, f, resumed.ID, time.Hour)
	backdate(t, f, retried.ID, time.Hour)

	// 继续会话和无效作答都算用户活动。
	if reply := f.send(t, "+1", "HI"); !strings.Contains(reply, "*Question 2/6:*") {
		t.Fatalf("resume reply:\n%s", reply)
	}
	if reply := f.send(t, "+2", "D"); reply != quiz.MsgInvalidAnswer {
		t.Fatalf("invalid answer reply = %q", reply)
	}

	n, err := sweeper.Sweep(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Sweep = %d, %v; want 0", n, err)
	}
	for _, phone := range []string{"+1", "+2"} {
		if s := f.activeSession(t, phone); s == nil {
			t.Fatalf("session of %s was abandoned", phone)
		}
	}
	if got := f.activeSession(t, "+1"); got.CurrentQuestion != 2 {
		t.Fatalf("resume moved session to question %d", got.CurrentQuestion)
	}
	if got := f.activeSession(t, "+2"); got.CurrentQuestion != 1 {
		t.Fatalf("invalid answer moved session to question %d", got.CurrentQuestion)
	}
}
