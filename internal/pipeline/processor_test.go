package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"quiz-bot-go/internal/repository"
	"quiz-bot-go/pkg/database"
	"quiz-bot-go/pkg/es"
	"quiz-bot-go/pkg/tasks"
	"testing"
)

type recordingIndexer struct {
	docs []es.EventDocument
	err  error
}

func (r *recordingIndexer) IndexEvent(_ context.Context, doc es.EventDocument) error {
	r.docs = append(r.docs, doc)
	return r.err
}

func newAnalyticsRepo(t *testing.T) repository.AnalyticsRepository {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.NewAnalyticsRepository(db)
}

func TestProcessPersistsOnceAndIndexes(t *testing.T) {
	ctx := context.Background()
	repo := newAnalyticsRepo(t)
	idx := &recordingIndexer{}
	p := NewProcessor(repo, idx)

	task := tasks.AnalyticsEventTask{
		EventID:   "evt-1",
		SessionID: 3,
		UserID:    9,
		EventType: "quiz_completed",
		Metadata:  map[string]interface{}{"tier": "standard"},
	}
	if err := p.Process(ctx, task); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := p.Process(ctx, task); err != nil {
		t.Fatalf("redelivered Process: %v", err)
	}

	events, err := repo.List(ctx, repository.EventFilter{SessionID: 3})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("stored %d events, want 1", len(events))
	}
	if events[0].Metadata["tier"] != "standard" {
		t.Fatalf("metadata = %v", events[0].Metadata)
	}
	if len(idx.docs) != 1 || idx.docs[0].EventID != "evt-1" {
		t.Fatalf("indexed docs = %+v", idx.docs)
	}
}

func TestProcessIgnoresIndexFailure(t *testing.T) {
	repo := newAnalyticsRepo(t)
	p := NewProcessor(repo, &recordingIndexer{err: errors.New("es down")})

	err := p.Process(context.Background(), tasks.AnalyticsEventTask{EventID: "evt-2", SessionID: 1, UserID: 1, EventType: "quiz_started"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
}

func TestProcessRequiresEventID(t *testing.T) {
	p := NewProcessor(newAnalyticsRepo(t), nil)
	if err := p.Process(context.Background(), tasks.AnalyticsEventTask{EventType: "quiz_started"}); err == nil {
		t.Fatal("expected error for missing event id")
	}
}
