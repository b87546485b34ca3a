package quiz

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// 面向用户的固定回复文案。
const (
	MsgPromptToStart = "👋 Welcome! Type *START* to begin the Home Security Quiz."
	MsgInvalidAnswer = "❌ Please reply with A, B, or C to answer the question.\n\nOr type *START* to begin a new quiz."
	MsgInvalidState  = "❌ Invalid question. Type *START* to begin again."
	MsgApology       = "⚠️ Sorry, something went wrong. Please try again or type *START* to begin."
)

var inrPrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatPrice 按印度数字分组格式化价格，例如 ₹1,66,999。
func FormatPrice(price int64) string {
	return "₹" + inrPrinter.Sprintf("%d", price)
}

// FormatQuestion 渲染一道题目及其选项。
func (c *Catalog) FormatQuestion(ordinal int) (string, error) {
	q, err := c.QuestionAt(ordinal)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*Question %d/%d:*\n\n%s\n\n", q.Number, c.QuestionCount(), q.Prompt)
	for _, o := range q.Options {
		fmt.Fprintf(&b, "%s. %s\n", o.Key, o.Text)
	}
	keys := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		keys = append(keys, o.Key)
	}
	fmt.Fprintf(&b, "\nPlease reply with the letter (%s)", joinKeys(keys))
	return b.String(), nil
}

// joinKeys 生成 "A, B, or C" 形式的列表。
func joinKeys(keys []string) string {
	switch len(keys) {
	case 0:
		return ""
	case 1:
		return keys[0]
	case 2:
		return keys[0] + " or " + keys[1]
	}
	return strings.Join(keys[:len(keys)-1], ", ") + ", or " + keys[len(keys)-1]
}

// WelcomeMessage 是新会话开始时发送的消息，末尾附第一题。
func (c *Catalog) WelcomeMessage() (string, error) {
	first, err := c.FormatQuestion(1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🏠 *Welcome to Home Security Quiz!*\n\n"+
		"I'll ask you %d questions to recommend the perfect security system for your home.\n\n"+
		"Let's get started!\n\n%s", c.QuestionCount(), first), nil
}

// ResumeMessage 是已有进行中会话时再次发送 START 的回复。
func (c *Catalog) ResumeMessage(ordinal int) (string, error) {
	q, err := c.FormatQuestion(ordinal)
	if err != nil {
		return "", err
	}
	return "You have an ongoing quiz. Let's continue!\n\n" + q, nil
}

// NextQuestionMessage 是答对一题后推送下一题的回复。
func (c *Catalog) NextQuestionMessage(ordinal int) (string, error) {
	q, err := c.FormatQuestion(ordinal)
	if err != nil {
		return "", err
	}
	return "✅ Great! Here's the next question:\n\n" + q, nil
}

// FormatRecommendation 渲染最终推荐卡片。
func FormatRecommendation(tier Tier, rationale string) string {
	var b strings.Builder
	b.WriteString("*🏠 Your Personalized Security Recommendation*\n\n")
	fmt.Fprintf(&b, "*%s*\n", tier.Name)
	fmt.Fprintf(&b, "💰 Price: %s\n\n", FormatPrice(tier.Price))
	fmt.Fprintf(&b, "*Why this package?*\n%s\n\n", rationale)
	b.WriteString("*Features included:*\n")
	for _, f := range tier.Features {
		fmt.Fprintf(&b, "✓ %s\n", f)
	}
	b.WriteString("\nThank you for taking our quiz! 🎉\n")
	b.WriteString("Reply *START* anytime to take the quiz again.")
	return b.String()
}
