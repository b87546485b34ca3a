package model

import "testing"

func TestEventNames(t *testing.T) {
	if got := QuestionAnsweredEvent(4); got != "question_4_answered" {
		t.Fatalf("QuestionAnsweredEvent(4) = %s", got)
	}
	if got := DroppedOffEvent(3); got != "dropped_off_after_question_3" {
		t.Fatalf("DroppedOffEvent(3) = %s", got)
	}
}

func TestParseQuestionNumber(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"question_1_answered", 1, true},
		{"question_6_answered", 6, true},
		{"dropped_off_after_question_0", 0, true},
		{"dropped_off_after_question_3", 3, true},
		{"quiz_started", 0, false},
		{"question_x_answered", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseQuestionNumber(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("ParseQuestionNumber(%q) = %d,%v want %d,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}
