package service

import (
	"encoding/json"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mcQuestion(id uint, correct string, points int, weight float64) model.Question {
	return model.Question{
		BaseModel:     model.BaseModel{ID: id},
		QuestionType:  model.QuestionMultipleChoice,
		Prompt:        "choose one",
		CorrectAnswer: json.RawMessage(`"` + correct + `"`),
		Points:        points,
		Weight:        weight,
	}
}

func matchingQuestion(id uint, correct []string, points int, weight float64) model.Question {
	raw, _ := json.Marshal(correct)
	return model.Question{
		BaseModel:     model.BaseModel{ID: id},
		QuestionType:  model.QuestionMatching,
		Prompt:        "match the pairs",
		CorrectAnswer: raw,
		Points:        points,
		Weight:        weight,
	}
}

func TestGradeQuizWeightedPartialCredit(t *testing.T) {
	quiz := &model.Quiz{
		PassingScore: 70,
		Questions: []model.Question{
			mcQuestion(1, "B", 10, 1),
			matchingQuestion(2, []string{"x", "y"}, 10, 2),
		},
	}

	answers := map[uint]model.AnswerValue{
		1: model.SingleAnswer("B"),
		2: model.SetAnswer("x"),
	}

	result, err := GradeQuiz(quiz, answers, DefaultGradingOptions())
	require.NoError(t, err)

	// Q1 全对 10 分，Q2 命中一半得 5 分，加权 5*2=10
	assert.Equal(t, 15.0, result.RawPoints)
	assert.Equal(t, 20.0, result.WeightedPoints)
	assert.Equal(t, 30.0, result.WeightedPossible)
	assert.Equal(t, 66.7, result.Score)
	assert.False(t, result.Passed)
	assert.False(t, result.Ungradable)

	require.Len(t, result.Questions, 2)
	assert.True(t, result.Questions[0].Correct)
	assert.Equal(t, 1.0, result.Questions[0].Fraction)
	assert.False(t, result.Questions[1].Correct)
	assert.Equal(t, 0.5, result.Questions[1].Fraction)
	assert.Equal(t, 5.0, result.Questions[1].PointsEarned)
	assert.Equal(t, 10.0, result.Questions[1].WeightedPointsEarned)
}

func TestGradeQuizAllCorrect(t *testing.T) {
	quiz := &model.Quiz{
		PassingScore: 70,
		Questions: []model.Question{
			mcQuestion(1, "B", 10, 1),
			matchingQuestion(2, []string{"x", "y"}, 10, 2),
		},
	}

	answers := map[uint]model.AnswerValue{
		1: model.SingleAnswer("B"),
		2: model.SetAnswer("x", "y"),
	}

	result, err := GradeQuiz(quiz, answers, DefaultGradingOptions())
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Score)
	assert.True(t, result.Passed)
}

func TestGradeQuizExactMatchIsCaseSensitive(t *testing.T) {
	quiz := &model.Quiz{
		PassingScore: 50,
		Questions:    []model.Question{mcQuestion(1, "Paris", 10, 1)},
	}

	result, err := GradeQuiz(quiz, map[uint]model.AnswerValue{1: model.SingleAnswer("paris")}, DefaultGradingOptions())
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Score)
	assert.False(t, result.Questions[0].Correct)
}

func TestGradeQuizUnansweredCountsZero(t *testing.T) {
	quiz := &model.Quiz{
		PassingScore: 50,
		Questions: []model.Question{
			mcQuestion(1, "A", 10, 1),
			mcQuestion(2, "B", 10, 1),
		},
	}

	result, err := GradeQuiz(quiz, map[uint]model.AnswerValue{1: model.SingleAnswer("A")}, DefaultGradingOptions())
	require.NoError(t, err)
	assert.Equal(t, 50.0, result.Score)
	assert.True(t, result.Questions[0].Answered)
	assert.False(t, result.Questions[1].Answered)
	assert.Equal(t, 0.0, result.Questions[1].PointsEarned)
}

func TestGradeQuizZeroWeightedTotalIsUngradable(t *testing.T) {
	quiz := &model.Quiz{
		PassingScore: 60,
		Questions:    []model.Question{mcQuestion(1, "A", 0, 1)},
	}

	result, err := GradeQuiz(quiz, map[uint]model.AnswerValue{1: model.SingleAnswer("A")}, DefaultGradingOptions())
	require.NoError(t, err)
	assert.True(t, result.Ungradable)
	assert.Equal(t, 0.0, result.Score)
	assert.False(t, result.Passed)
}

func TestGradeQuizNegativePointsRejected(t *testing.T) {
	quiz := &model.Quiz{
		PassingScore: 60,
		Questions:    []model.Question{mcQuestion(1, "A", -5, 1)},
	}

	_, err := GradeQuiz(quiz, map[uint]model.AnswerValue{}, DefaultGradingOptions())
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestGradeQuizDeterministic(t *testing.T) {
	quiz := &model.Quiz{
		PassingScore: 70,
		Questions: []model.Question{
			mcQuestion(1, "B", 10, 1),
			matchingQuestion(2, []string{"x", "y", "z"}, 9, 1.5),
		},
	}
	answers := map[uint]model.AnswerValue{
		1: model.SingleAnswer("C"),
		2: model.SetAnswer("x", "w"),
	}

	first, err := GradeQuiz(quiz, answers, DefaultGradingOptions())
	require.NoError(t, err)
	second, err := GradeQuiz(quiz, answers, DefaultGradingOptions())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMatchingFraction(t *testing.T) {
	tests := []struct {
		name      string
		correct   []string
		submitted []string
		penalty   float64
		want      float64
	}{
		{"all correct", []string{"x", "y"}, []string{"x", "y"}, 1.0, 1.0},
		{"half correct", []string{"x", "y"}, []string{"x"}, 1.0, 0.5},
		{"hit plus extra cancels", []string{"x", "y"}, []string{"x", "z"}, 1.0, 0.0},
		{"extras clamp at zero", []string{"x", "y"}, []string{"a", "b", "c"}, 1.0, 0.0},
		{"reduced penalty", []string{"x", "y"}, []string{"x", "z"}, 0.5, 0.25},
		{"superset penalized", []string{"x", "y"}, []string{"x", "y", "z"}, 1.0, 0.5},
		{"duplicates counted once", []string{"x", "y"}, []string{"x", "x", "x"}, 1.0, 0.5},
		{"empty submission", []string{"x", "y"}, nil, 1.0, 0.0},
		{"empty correct set", nil, []string{"x"}, 1.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchingFraction(tt.correct, tt.submitted, tt.penalty)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestGradeQuizScoreMonotonicInCorrectAnswers(t *testing.T) {
	quiz := &model.Quiz{
		PassingScore: 60,
		Questions: []model.Question{
			mcQuestion(1, "A", 10, 1),
			mcQuestion(2, "B", 10, 1),
			mcQuestion(3, "C", 10, 1),
		},
	}

	prev := -1.0
	answers := map[uint]model.AnswerValue{
		1: model.SingleAnswer("wrong"),
		2: model.SingleAnswer("wrong"),
		3: model.SingleAnswer("wrong"),
	}
	fixes := []struct {
		id    uint
		value string
	}{{1, "A"}, {2, "B"}, {3, "C"}}

	for _, fix := range fixes {
		answers[fix.id] = model.SingleAnswer(fix.value)
		result, err := GradeQuiz(quiz, answers, DefaultGradingOptions())
		require.NoError(t, err)
		assert.Greater(t, result.Score, prev)
		prev = result.Score
	}
	assert.Equal(t, 100.0, prev)
}
