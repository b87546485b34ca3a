package repository

import (
	"context"
	"quiz-bot-go/internal/model"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestConversationKeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(newTestRedis(t), 3)

	for i, text := range []string{"START", "A", "B", "C"} {
		msg := model.ChatMessage{Role: model.RoleUser, Content: text, Timestamp: time.Unix(int64(i), 0)}
		if err := repo.Append(ctx, "+1", msg); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	history, err := repo.GetHistory(ctx, "+1")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != 3 || history[0].Content != "A" || history[2].Content != "C" {
		t.Fatalf("history = %+v", history)
	}

	empty, err := repo.GetHistory(ctx, "+2")
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty history = %+v, %v", empty, err)
	}

	phones, err := repo.ListPhoneNumbers(ctx)
	if err != nil || len(phones) != 1 || phones[0] != "+1" {
		t.Fatalf("ListPhoneNumbers = %v, %v", phones, err)
	}
}

func TestDedupMarksOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewDedupRepository(newTestRedis(t), time.Minute)

	first, err := repo.MarkSeen(ctx, "wamid.1")
	if err != nil || !first {
		t.Fatalf("first MarkSeen = %v, %v", first, err)
	}
	second, err := repo.MarkSeen(ctx, "wamid.1")
	if err != nil || second {
		t.Fatalf("second MarkSeen = %v, %v", second, err)
	}
}
