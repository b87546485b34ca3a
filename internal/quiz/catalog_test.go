package quiz

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultCatalogShape(t *testing.T) {
	c := DefaultCatalog()
	if c.QuestionCount() != 6 {
		t.Fatalf("expected 6 questions, got %d", c.QuestionCount())
	}
	if len(c.Tiers()) != 8 {
		t.Fatalf("expected 8 tiers, got %d", len(c.Tiers()))
	}
	for i := 1; i <= c.QuestionCount(); i++ {
		q, err := c.QuestionAt(i)
		if err != nil {
			t.Fatalf("QuestionAt(%d) error: %v", i, err)
		}
		if q.Number != i {
			t.Fatalf("question %d reports number %d", i, q.Number)
		}
		for _, k := range Alphabet {
			if _, ok := q.Option(k); !ok {
				t.Fatalf("question %d missing option %s", i, k)
			}
		}
	}
}

func TestQuestionAtOutOfRange(t *testing.T) {
	c := DefaultCatalog()
	for _, ord := range []int{0, -1, 7} {
		if _, err := c.QuestionAt(ord); !errors.Is(err, ErrQuestionNotFound) {
			t.Fatalf("ordinal %d: expected ErrQuestionNotFound, got %v", ord, err)
		}
	}
}

func TestNewCatalogValidation(t *testing.T) {
	tiers := []Tier{{ID: "a"}, {ID: "b"}}
	cases := []struct {
		name      string
		tiers     []Tier
		questions []Question
		wantErr   string
	}{
		{
			name:      "unknown tier",
			tiers:     tiers,
			questions: []Question{{Number: 1, Options: []Option{{Key: "A", Scores: map[string]int{"zzz": 1}}}}},
			wantErr:   "unknown tier",
		},
		{
			name:      "key outside alphabet",
			tiers:     tiers,
			questions: []Question{{Number: 1, Options: []Option{{Key: "D"}}}},
			wantErr:   "outside the alphabet",
		},
		{
			name:      "gap in ordinals",
			tiers:     tiers,
			questions: []Question{{Number: 2, Options: []Option{{Key: "A"}}}},
			wantErr:   "has number 2",
		},
		{
			name:      "duplicate tier",
			tiers:     []Tier{{ID: "a"}, {ID: "a"}},
			questions: []Question{{Number: 1, Options: []Option{{Key: "A"}}}},
			wantErr:   "duplicate tier",
		},
		{
			name:      "negative score",
			tiers:     tiers,
			questions: []Question{{Number: 1, Options: []Option{{Key: "A", Scores: map[string]int{"a": -1}}}}},
			wantErr:   "negative score",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCatalog(tc.tiers, tc.questions)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFormatQuestion(t *testing.T) {
	c := DefaultCatalog()
	msg, err := c.FormatQuestion(2)
	if err != nil {
		t.Fatalf("FormatQuestion error: %v", err)
	}
	if !strings.HasPrefix(msg, "*Question 2/6:*") {
		t.Fatalf("unexpected header: %q", msg)
	}
	if !strings.Contains(msg, "B. Fire/Smoke detection") {
		t.Fatalf("missing option text: %q", msg)
	}
	if !strings.HasSuffix(msg, "Please reply with the letter (A, B, or C)") {
		t.Fatalf("unexpected footer: %q", msg)
	}
}
