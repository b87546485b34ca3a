package model

import (
	"fmt"
	"strconv"
	"strings"
)

// 分析事件类型。按题号区分的事件通过下面的函数生成。
const (
	EventQuizStarted   = "quiz_started"
	EventQuizCompleted = "quiz_completed"

	questionAnsweredPrefix = "question_"
	questionAnsweredSuffix = "_answered"
	droppedOffPrefix       = "dropped_off_after_question_"
)

// QuestionAnsweredEvent 返回 question_{n}_answered。
func QuestionAnsweredEvent(n int) string {
	return fmt.Sprintf("%s%d%s", questionAnsweredPrefix, n, questionAnsweredSuffix)
}

// DroppedOffEvent 返回 dropped_off_after_question_{n}。
func DroppedOffEvent(n int) string {
	return fmt.Sprintf("%s%d", droppedOffPrefix, n)
}

// IsQuestionAnsweredEvent 判断事件是否为某一题的作答事件。
func IsQuestionAnsweredEvent(eventType string) bool {
	return strings.HasPrefix(eventType, questionAnsweredPrefix) && strings.HasSuffix(eventType, questionAnsweredSuffix)
}

// IsDroppedOffEvent 判断事件是否为流失事件。
func IsDroppedOffEvent(eventType string) bool {
	return strings.HasPrefix(eventType, droppedOffPrefix)
}

// ParseQuestionNumber 从按题号区分的事件名中取出题号，例如 question_3_answered → 3。
func ParseQuestionNumber(eventType string) (int, bool) {
	var rest string
	switch {
	case IsQuestionAnsweredEvent(eventType):
		rest = strings.TrimSuffix(strings.TrimPrefix(eventType, questionAnsweredPrefix), questionAnsweredSuffix)
	case IsDroppedOffEvent(eventType):
		rest = strings.TrimPrefix(eventType, droppedOffPrefix)
	default:
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}
