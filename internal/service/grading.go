package service

import (
	"fmt"
	"math"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"
)

// GradingOptions 评分参数
type GradingOptions struct {
	// MatchingPenalty 匹配题中每个多余错误项相对正确项的扣分权重，默认 1.0
	MatchingPenalty float64
}

func DefaultGradingOptions() GradingOptions {
	return GradingOptions{MatchingPenalty: 1.0}
}

// QuestionResult 单题评分结果
type QuestionResult struct {
	QuestionID           uint               `json:"questionId"`
	Submitted            model.AnswerValue  `json:"submitted"`
	Answered             bool               `json:"answered"`
	Correct              bool               `json:"correct"`
	Fraction             float64            `json:"fraction"` // 0.0-1.0
	PointsEarned         float64            `json:"pointsEarned"`
	WeightedPointsEarned float64            `json:"weightedPointsEarned"`
}

// GradedResult 整卷评分结果
type GradedResult struct {
	Questions        []QuestionResult `json:"questions"`
	RawPoints        float64          `json:"rawPoints"`
	WeightedPoints   float64          `json:"weightedPoints"`
	WeightedPossible float64          `json:"weightedPossible"`
	Score            float64          `json:"score"` // 0-100
	Passed           bool             `json:"passed"`
	Ungradable       bool             `json:"ungradable"` // 权重总分为 0，分数无意义
}

// GradeQuiz 纯函数评分：按题型判分、按权重汇总，不依赖时钟、随机数或历史记录。
// answers 缺失的题目按未作答计 0 分（限时到期自动提交路径）。
func GradeQuiz(quiz *model.Quiz, answers map[uint]model.AnswerValue, opts GradingOptions) (*GradedResult, error) {
	if opts.MatchingPenalty <= 0 {
		opts.MatchingPenalty = 1.0
	}

	result := &GradedResult{
		Questions: make([]QuestionResult, 0, len(quiz.Questions)),
	}

	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		if q.Points < 0 {
			return nil, fmt.Errorf("%w: question %d has negative points", util.ErrValidation, q.ID)
		}

		weight := q.Weight
		if weight <= 0 {
			weight = 1
		}
		result.WeightedPossible += float64(q.Points) * weight

		qr := QuestionResult{QuestionID: q.ID}

		value, ok := answers[q.ID]
		qr.Answered = ok && !value.IsEmpty()
		qr.Submitted = value

		if qr.Answered {
			fraction, err := gradeQuestion(q, value, opts)
			if err != nil {
				return nil, err
			}
			qr.Fraction = fraction
			qr.Correct = fraction == 1.0
			qr.PointsEarned = round1(fraction * float64(q.Points))
			qr.WeightedPointsEarned = round1(qr.PointsEarned * weight)
		}

		result.RawPoints += qr.PointsEarned
		result.WeightedPoints += qr.WeightedPointsEarned
		result.Questions = append(result.Questions, qr)
	}

	if result.WeightedPossible == 0 {
		// 退化测验：显式打标，不伪造满分或零分语义
		result.Ungradable = true
		result.Score = 0
		result.Passed = false
		return result, nil
	}

	result.Score = round1(100 * result.WeightedPoints / result.WeightedPossible)
	result.Passed = result.Score >= quiz.PassingScore
	return result, nil
}

func gradeQuestion(q *model.Question, value model.AnswerValue, opts GradingOptions) (float64, error) {
	correct, err := q.CorrectValue()
	if err != nil {
		return 0, fmt.Errorf("%w: question %d has malformed correct answer: %v", util.ErrValidation, q.ID, err)
	}

	switch q.QuestionType {
	case model.QuestionMultipleChoice, model.QuestionTrueFalse, model.QuestionFillInBlank:
		// 精确匹配，区分大小写，二元判分
		if !value.IsSet && value.Single == correct.Single {
			return 1.0, nil
		}
		return 0.0, nil

	case model.QuestionMatching:
		return matchingFraction(correct.Multi, value.Multi, opts.MatchingPenalty), nil

	default:
		return 0, fmt.Errorf("%w: question %d has unknown type %q", util.ErrValidation, q.ID, q.QuestionType)
	}
}

// matchingFraction 部分得分 = 命中比例 - penalty × 多余项比例，下限 0 上限 1
func matchingFraction(correct, submitted []string, penalty float64) float64 {
	if len(correct) == 0 {
		return 0
	}

	correctSet := make(map[string]bool, len(correct))
	for _, c := range correct {
		correctSet[c] = true
	}

	hits := 0
	extras := 0
	seen := make(map[string]bool, len(submitted))
	for _, s := range submitted {
		if seen[s] {
			continue
		}
		seen[s] = true
		if correctSet[s] {
			hits++
		} else {
			extras++
		}
	}

	fraction := float64(hits)/float64(len(correct)) - penalty*float64(extras)/float64(len(correct))
	if fraction < 0 {
		return 0
	}
	if fraction > 1 {
		return 1
	}
	return fraction
}

// round1 四舍五入到一位小数
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
