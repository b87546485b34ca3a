package repository

import (
	"context"
	"errors"
	"path/filepath"
	"quiz-bot-go/internal/model"
	"quiz-bot-go/pkg/database"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (Store, *gorm.DB) {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "quiz.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewStore(db), db
}

func mustUser(t *testing.T, s Store, phone string) *model.User {
	t.Helper()
	u, err := s.Users().FindOrCreate(context.Background(), phone)
	if err != nil {
		t.Fatalf("FindOrCreate(%s): %v", phone, err)
	}
	return u
}

func TestFindOrCreateUserIsStable(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustUser(t, s, "+911234")
	b := mustUser(t, s, "+911234")
	if a.ID != b.ID {
		t.Fatalf("same phone produced two users: %d, %d", a.ID, b.ID)
	}
	if _, err := s.Users().FindByID(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByID(999) err=%v, want ErrNotFound", err)
	}
}

func TestCreateRejectsSecondActiveSession(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	u := mustUser(t, s, "+1")

	first, err := s.Sessions().Create(ctx, u.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.CurrentQuestion != 1 || first.Status != model.StatusInProgress {
		t.Fatalf("new session = %+v", first)
	}
	if _, err := s.Sessions().Create(ctx, u.ID); !errors.Is(err, ErrConflictActiveSession) {
		t.Fatalf("second Create err=%v, want ErrConflictActiveSession", err)
	}

	active, err := s.Sessions().FindActive(ctx, u.ID)
	if err != nil || active == nil || active.ID != first.ID {
		t.Fatalf("FindActive = %+v, %v", active, err)
	}
}

func TestAdvanceIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	u := mustUser(t, s, "+1")
	sess, _ := s.Sessions().Create(ctx, u.ID)

	got, err := s.Sessions().Advance(ctx, sess.ID, 2)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if got.CurrentQuestion != 2 {
		t.Fatalf("current=%d, want 2", got.CurrentQuestion)
	}

	// 同一题的第二次推进是重复投递。
	if _, err := s.Sessions().Advance(ctx, sess.ID, 2); !errors.Is(err, ErrOrdinalMismatch) {
		t.Fatalf("repeat Advance err=%v, want ErrOrdinalMismatch", err)
	}
	if _, err := s.Sessions().Advance(ctx, 12345, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing session err=%v, want ErrNotFound", err)
	}
}

func TestCompleteFreesActiveSlot(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	u := mustUser(t, s, "+1")
	sess, _ := s.Sessions().Create(ctx, u.ID)
	for next := 2; next <= 6; next++ {
		if _, err := s.Sessions().Advance(ctx, sess.ID, next); err != nil {
			t.Fatalf("Advance(%d): %v", next, err)
		}
	}

	done, err := s.Sessions().Complete(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != model.StatusCompleted || done.CurrentQuestion != 7 || done.CompletedAt == nil {
		t.Fatalf("completed session = %+v", done)
	}
	if _, err := s.Sessions().Complete(ctx, sess.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Complete err=%v, want ErrInvalidTransition", err)
	}
	if _, err := s.Sessions().Advance(ctx, sess.ID, 8); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Advance after complete err=%v, want ErrInvalidTransition", err)
	}

	again, err := s.Sessions().Create(ctx, u.ID)
	if err != nil {
		t.Fatalf("Create after complete: %v", err)
	}
	if again.ID == sess.ID {
		t.Fatal("expected a fresh session")
	}
}

func TestAbandonAndFindIdle(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t)
	u1 := mustUser(t, s, "+1")
	u2 := mustUser(t, s, "+2")
	stale, _ := s.Sessions().Create(ctx, u1.ID)
	fresh, _ := s.Sessions().Create(ctx, u2.ID)

	old := time.Now().Add(-2 * time.Hour)
	if err := db.Model(&model.QuizSession{}).Where("id = ?", stale.ID).Update("updated_at", old).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}

	idle, err := s.Sessions().FindIdle(ctx, time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("FindIdle: %v", err)
	}
	if len(idle) != 1 || idle[0].ID != stale.ID {
		t.Fatalf("FindIdle = %+v, want only session %d", idle, stale.ID)
	}

	abandoned, err := s.Sessions().Abandon(ctx, stale.ID)
	if err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if abandoned.Status != model.StatusAbandoned || abandoned.AbandonedAt == nil {
		t.Fatalf("abandoned = %+v", abandoned)
	}
	if _, err := s.Sessions().Abandon(ctx, stale.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Abandon err=%v, want ErrInvalidTransition", err)
	}
	if _, err := s.Sessions().Abandon(ctx, fresh.ID); err != nil {
		t.Fatalf("Abandon fresh: %v", err)
	}

	counts, err := s.Sessions().CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[model.StatusAbandoned] != 2 {
		t.Fatalf("abandoned count = %d, want 2", counts[model.StatusAbandoned])
	}
}

func TestConcurrentCreateKeepsOneActiveSession(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	u := mustUser(t, s, "+1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Sessions().Create(ctx, u.ID)
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			} else if !errors.Is(err, ErrConflictActiveSession) {
				t.Errorf("Create: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("created %d sessions, want 1", created)
	}
	n, err := s.Sessions().CountActiveByUser(ctx, u.ID)
	if err != nil || n != 1 {
		t.Fatalf("active count = %d, %v", n, err)
	}
}

func TestResponseUniquePerQuestion(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	u := mustUser(t, s, "+1")
	sess, _ := s.Sessions().Create(ctx, u.ID)

	resp := &model.QuizResponse{SessionID: sess.ID, QuestionNumber: 1, QuestionText: "q1", AnswerKey: "A", AnswerText: "a"}
	if err := s.Responses().Create(ctx, resp); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := &model.QuizResponse{SessionID: sess.ID, QuestionNumber: 1, QuestionText: "q1", AnswerKey: "B", AnswerText: "b"}
	if err := s.Responses().Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate Create err=%v, want ErrDuplicate", err)
	}

	list, err := s.Responses().ListBySession(ctx, sess.ID)
	if err != nil || len(list) != 1 || list[0].AnswerKey != "A" {
		t.Fatalf("ListBySession = %+v, %v", list, err)
	}
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	u := mustUser(t, s, "+1")
	sess, _ := s.Sessions().Create(ctx, u.ID)

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx Store) error {
		resp := &model.QuizResponse{SessionID: sess.ID, QuestionNumber: 1, QuestionText: "q1", AnswerKey: "A", AnswerText: "a"}
		if err := tx.Responses().Create(ctx, resp); err != nil {
			return err
		}
		if _, err := tx.Sessions().Advance(ctx, sess.ID, 2); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction err=%v, want boom", err)
	}

	list, _ := s.Responses().ListBySession(ctx, sess.ID)
	if len(list) != 0 {
		t.Fatalf("responses after rollback = %d, want 0", len(list))
	}
	got, _ := s.Sessions().FindByID(ctx, sess.ID)
	if got.CurrentQuestion != 1 {
		t.Fatalf("current after rollback = %d, want 1", got.CurrentQuestion)
	}
}

func TestAnalyticsCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	ev := &model.AnalyticsEvent{EventID: "e-1", SessionID: 1, UserID: 1, EventType: model.EventQuizStarted}
	inserted, err := s.Analytics().Create(ctx, ev)
	if err != nil || !inserted {
		t.Fatalf("first Create = %v, %v", inserted, err)
	}
	again := &model.AnalyticsEvent{EventID: "e-1", SessionID: 1, UserID: 1, EventType: model.EventQuizStarted}
	inserted, err = s.Analytics().Create(ctx, again)
	if err != nil || inserted {
		t.Fatalf("second Create = %v, %v", inserted, err)
	}

	_, _ = s.Analytics().Create(ctx, &model.AnalyticsEvent{EventID: "e-2", SessionID: 1, UserID: 1, EventType: model.QuestionAnsweredEvent(1)})

	events, err := s.Analytics().List(ctx, EventFilter{EventType: model.EventQuizStarted})
	if err != nil || len(events) != 1 {
		t.Fatalf("List = %+v, %v", events, err)
	}
	counts, err := s.Analytics().CountByType(ctx)
	if err != nil {
		t.Fatalf("CountByType: %v", err)
	}
	if counts[model.EventQuizStarted] != 1 || counts["question_1_answered"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestIsDuplicateKeyIgnoresNil(t *testing.T) {
	if isDuplicateKey(nil) {
		t.Fatal("nil error reported as duplicate")
	}
	if !isDuplicateKey(gorm.ErrDuplicatedKey) {
		t.Fatal("gorm.ErrDuplicatedKey not reported as duplicate")
	}
}

func TestCreateSucceedsWithoutError(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	u := mustUser(t, s, "+1")
	sess, _ := s.Sessions().Create(ctx, u.ID)

	resp := &model.QuizResponse{SessionID: sess.ID, QuestionNumber: 1, QuestionText: "q1", AnswerKey: "A", AnswerText: "a"}
	if err := s.Responses().Create(ctx, resp); err != nil {
		t.Fatalf("Responses().Create err=%v, want nil", err)
	}
	if resp.ID == 0 {
		t.Fatal("response ID not assigned")
	}
	rec := &model.Recommendation{SessionID: sess.ID, TierID: "premium", RecommendedProduct: "p", ProductPrice: 100}
	if err := s.Recommendations().Create(ctx, rec); err != nil {
		t.Fatalf("Recommendations().Create err=%v, want nil", err)
	}
	if err := s.Recommendations().Create(ctx, &model.Recommendation{SessionID: sess.ID, TierID: "basic", RecommendedProduct: "q", ProductPrice: 1}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second recommendation err=%v, want ErrDuplicate", err)
	}
}

func TestTouchRefreshesActivity(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t)
	u := mustUser(t, s, "+1")
	sess, _ := s.Sessions().Create(ctx, u.ID)

	old := time.Now().Add(-2 * time.Hour)
	if err := db.Model(&model.QuizSession{}).Where("id = ?", sess.ID).Update("updated_at", old).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if err := s.Sessions().Touch(ctx, sess.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	got, _ := s.Sessions().FindByID(ctx, sess.ID)
	if !got.UpdatedAt.After(old.Add(time.Hour)) {
		t.Fatalf("updated_at = %v, not refreshed", got.UpdatedAt)
	}
	if got.CurrentQuestion != 1 || got.Status != model.StatusInProgress {
		t.Fatalf("Touch changed session: %+v", got)
	}

	if _, err := s.Sessions().Abandon(ctx, sess.ID); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if err := s.Sessions().Touch(ctx, sess.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Touch on abandoned err=%v, want ErrInvalidTransition", err)
	}
	if err := s.Sessions().Touch(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Touch on missing err=%v, want ErrNotFound", err)
	}
}
