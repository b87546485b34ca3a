// Package quiz 定义了问卷目录（题目、选项、产品档位）以及纯函数形式的评分引擎。
// 目录在进程启动时构建一次，之后只读，可以被任意多个 goroutine 并发使用。
package quiz

import (
	"errors"
	"fmt"
)

var (
	// ErrQuestionNotFound 表示题号超出 [1, N] 范围。对当前会话来说是终止性错误，不应重试。
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidAnswer 表示选项 key 在目录中不存在。
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrIncompleteAnswers 表示答案数量与题目数量不一致，未完成的会话不参与评分。
	ErrIncompleteAnswers = errors.New("answer sequence does not cover every question")
)

// Alphabet 是所有题目共享的固定选项字母表。
var Alphabet = []string{"A", "B", "C"}

// Band 是档位的展示分组，仅用于生成推荐理由，不参与评分。
type Band string

const (
	BandEntry Band = "entry"
	BandMid   Band = "mid"
	BandHigh  Band = "high"
	BandTop   Band = "top"
)

// Tier 是一个可推荐的产品档位。
type Tier struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       int64    `json:"price"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Band        Band     `json:"band"`
}

// Option 是题目的一个选项，Scores 记录该选项对每个档位的加分。
type Option struct {
	Key    string         `json:"key"`
	Text   string         `json:"text"`
	Scores map[string]int `json:"scores"`
}

// Question 是问卷中的一道题。
type Question struct {
	Number  int      `json:"number"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

// Option 按 key 查找选项。
func (q *Question) Option(key string) (*Option, bool) {
	for i := range q.Options {
		if q.Options[i].Key == key {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// Catalog 是不可变的问卷目录。档位的声明顺序即能力/价格升序，也是评分平局时的决胜顺序。
type Catalog struct {
	questions []Question
	tiers     []Tier
	tierIndex map[string]int
}

// NewCatalog 校验并构建目录。
func NewCatalog(tiers []Tier, questions []Question) (*Catalog, error) {
	if len(tiers) == 0 {
		return nil, errors.New("catalog: at least one tier is required")
	}
	if len(questions) == 0 {
		return nil, errors.New("catalog: at least one question is required")
	}

	c := &Catalog{
		questions: make([]Question, len(questions)),
		tiers:     make([]Tier, len(tiers)),
		tierIndex: make(map[string]int, len(tiers)),
	}
	for i, t := range tiers {
		if t.ID == "" {
			return nil, fmt.Errorf("catalog: tier %d has empty id", i)
		}
		if _, dup := c.tierIndex[t.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate tier id %q", t.ID)
		}
		t.Features = append([]string(nil), t.Features...)
		c.tiers[i] = t
		c.tierIndex[t.ID] = i
	}

	allowed := make(map[string]bool, len(Alphabet))
	for _, k := range Alphabet {
		allowed[k] = true
	}
	for i, q := range questions {
		if q.Number != i+1 {
			return nil, fmt.Errorf("catalog: question at position %d has number %d", i+1, q.Number)
		}
		if len(q.Options) == 0 {
			return nil, fmt.Errorf("catalog: question %d has no options", q.Number)
		}
		seen := make(map[string]bool, len(q.Options))
		opts := make([]Option, len(q.Options))
		for j, o := range q.Options {
			if !allowed[o.Key] {
				return nil, fmt.Errorf("catalog: question %d option key %q is outside the alphabet", q.Number, o.Key)
			}
			if seen[o.Key] {
				return nil, fmt.Errorf("catalog: question %d has duplicate option %q", q.Number, o.Key)
			}
			seen[o.Key] = true
			scores := make(map[string]int, len(o.Scores))
			for tierID, v := range o.Scores {
				if _, ok := c.tierIndex[tierID]; !ok {
					return nil, fmt.Errorf("catalog: question %d option %s scores unknown tier %q", q.Number, o.Key, tierID)
				}
				if v < 0 {
					return nil, fmt.Errorf("catalog: question %d option %s has negative score for %q", q.Number, o.Key, tierID)
				}
				scores[tierID] = v
			}
			opts[j] = Option{Key: o.Key, Text: o.Text, Scores: scores}
		}
		c.questions[i] = Question{Number: q.Number, Prompt: q.Prompt, Options: opts}
	}
	return c, nil
}

// QuestionAt 返回第 ordinal 题（从 1 开始）。
func (c *Catalog) QuestionAt(ordinal int) (*Question, error) {
	if ordinal < 1 || ordinal > len(c.questions) {
		return nil, fmt.Errorf("%w: ordinal %d", ErrQuestionNotFound, ordinal)
	}
	q := c.questions[ordinal-1]
	return &q, nil
}

// QuestionCount 返回题目总数 N。
func (c *Catalog) QuestionCount() int {
	return len(c.questions)
}

// Tiers 按声明顺序返回全部档位。
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// Tier 按 ID 查找档位。
func (c *Catalog) Tier(id string) (*Tier, bool) {
	i, ok := c.tierIndex[id]
	if !ok {
		return nil, false
	}
	t := c.tiers[i]
	return &t, true
}
