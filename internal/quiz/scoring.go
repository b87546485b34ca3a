package quiz

import (
	"fmt"
	"strings"
)

// TierScore 是某个档位的累计得分。
type TierScore struct {
	TierID string `json:"tierId"`
	Score  int    `json:"score"`
}

// Result 是一次评分的完整输出。Scores 按档位声明顺序排列，便于审计。
type Result struct {
	Tier      Tier        `json:"tier"`
	Rationale string      `json:"rationale"`
	Scores    []TierScore `json:"scores"`
}

// ScoreMap 将得分向量转换为 map，便于 JSON 存储。
func (r *Result) ScoreMap() map[string]interface{} {
	m := make(map[string]interface{}, len(r.Scores))
	for _, s := range r.Scores {
		m[s.TierID] = s.Score
	}
	return m
}

var rationales = map[Band][]string{
	BandTop: {
		"Your requirements indicate you need the most comprehensive security coverage",
		"You prefer premium professional monitoring and installation",
		"Your budget allows for the most advanced features and support",
	},
	BandHigh: {
		"Your home size and needs match our high-end packages",
		"You want professional-grade security with advanced features",
		"You value comprehensive protection and monitoring",
	},
	BandMid: {
		"Your home size and needs match our mid-range packages",
		"You want a good balance of features and value",
		"You need reliable security with modern capabilities",
	},
	BandEntry: {
		"Perfect for your home size and budget",
		"Essential security features at an affordable price",
		"Great starting point for home security",
	},
}

// Rationale 返回某个展示分组对应的推荐理由，未知分组按 entry 处理。
func Rationale(b Band) string {
	lines, ok := rationales[b]
	if !ok {
		lines = rationales[BandEntry]
	}
	return strings.Join(lines, ". ") + "."
}

// Score 根据按题号顺序排列的答案计算推荐档位。
// answers[i] 是第 i+1 题的选项 key，长度必须等于题目总数。
// 得分严格最高者胜出；平局时取目录中声明最早的档位。
func Score(c *Catalog, answers []string) (*Result, error) {
	if len(answers) != c.QuestionCount() {
		return nil, fmt.Errorf("%w: got %d answers for %d questions", ErrIncompleteAnswers, len(answers), c.QuestionCount())
	}

	totals := make([]int, len(c.tiers))
	for i, key := range answers {
		q := &c.questions[i]
		opt, ok := q.Option(key)
		if !ok {
			return nil, fmt.Errorf("%w: question %d has no option %q", ErrInvalidAnswer, q.Number, key)
		}
		for tierID, v := range opt.Scores {
			totals[c.tierIndex[tierID]] += v
		}
	}

	best := 0
	for i := 1; i < len(totals); i++ {
		if totals[i] > totals[best] {
			best = i
		}
	}

	scores := make([]TierScore, len(totals))
	for i, t := range c.tiers {
		scores[i] = TierScore{TierID: t.ID, Score: totals[i]}
	}
	winner := c.tiers[best]
	winner.Features = append([]string(nil), winner.Features...)
	return &Result{
		Tier:      winner,
		Rationale: Rationale(winner.Band),
		Scores:    scores,
	}, nil
}
