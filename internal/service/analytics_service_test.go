package service

import (
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyticsSource struct {
	byQuiz    map[uint][]model.Attempt
	byLearner map[uint][]model.Attempt
}

func (f *fakeAnalyticsSource) ListGradedByQuiz(quizID uint) ([]model.Attempt, error) {
	return f.byQuiz[quizID], nil
}

func (f *fakeAnalyticsSource) ListGradedByLearner(quizID, learnerID uint) ([]model.Attempt, error) {
	return f.byLearner[learnerID], nil
}

func gradedAttempt(learnerID uint, score float64, passed bool, timeSpent int, answers ...model.Answer) model.Attempt {
	return model.Attempt{
		QuizID:           1,
		LearnerID:        learnerID,
		Status:           model.AttemptGraded,
		Score:            score,
		Passed:           passed,
		TimeSpentSeconds: timeSpent,
		Answers:          answers,
	}
}

func newAnalyticsFixture(quiz *model.Quiz, source *fakeAnalyticsSource) *AnalyticsService {
	catalog := &fakeCatalog{quizzes: map[uint]*model.Quiz{quiz.ID: quiz}}
	return NewAnalyticsService(catalog, source)
}

func TestGetQuizAnalyticsAggregates(t *testing.T) {
	quiz := testQuiz()
	source := &fakeAnalyticsSource{byQuiz: map[uint][]model.Attempt{
		1: {
			gradedAttempt(10, 90, true, 600),
			gradedAttempt(10, 50, false, 400),
			gradedAttempt(11, 70, true, 500),
			gradedAttempt(12, 100, true, 300),
		},
	}}
	svc := newAnalyticsFixture(quiz, source)

	analytics, err := svc.GetQuizAnalytics(1)
	require.NoError(t, err)

	assert.Equal(t, 4, analytics.TotalAttempts)
	assert.Equal(t, 3, analytics.UniqueLearners)
	assert.Equal(t, 75.0, analytics.PassRate)
	assert.Equal(t, 77.5, analytics.AverageScore)
	assert.Equal(t, 450.0, analytics.AverageTimeSpent)

	require.Len(t, analytics.ScoreDistribution, 10)
	assert.Equal(t, "50-59", analytics.ScoreDistribution[5].Label)
	assert.Equal(t, 1, analytics.ScoreDistribution[5].Count)
	assert.Equal(t, "90-100", analytics.ScoreDistribution[9].Label)
	// 满分 100 归入最高段
	assert.Equal(t, 2, analytics.ScoreDistribution[9].Count)
}

func TestGetQuizAnalyticsEmpty(t *testing.T) {
	svc := newAnalyticsFixture(testQuiz(), &fakeAnalyticsSource{byQuiz: map[uint][]model.Attempt{}})

	analytics, err := svc.GetQuizAnalytics(1)
	require.NoError(t, err)

	assert.Equal(t, 0, analytics.TotalAttempts)
	assert.Equal(t, 0.0, analytics.PassRate)
	assert.Len(t, analytics.ScoreDistribution, 10)
	assert.Len(t, analytics.QuestionStats, 2)
}

func TestGetQuizAnalyticsUnknownQuiz(t *testing.T) {
	svc := newAnalyticsFixture(testQuiz(), &fakeAnalyticsSource{})

	_, err := svc.GetQuizAnalytics(99)
	assert.ErrorIs(t, err, util.ErrQuizNotFound)
}

func TestQuestionDifficultyThresholds(t *testing.T) {
	// 正确率恰为 80% 与 50% 时不越级：>80 才算易，>50 才算中
	answerFor := func(qid uint, correct bool) model.Answer {
		fraction := 0.0
		if correct {
			fraction = 1.0
		}
		return model.Answer{QuestionID: qid, Correct: correct, PartialFraction: fraction}
	}

	quiz := &model.Quiz{
		BaseModel:    model.BaseModel{ID: 1},
		PassingScore: 60,
		IsPublished:  true,
		Questions: []model.Question{
			mcQuestion(1, "A", 10, 1), // 5 人中 4 对 → 80% → medium
			mcQuestion(2, "B", 10, 1), // 5 人中 5 对 → 100% → easy
			mcQuestion(3, "C", 10, 1), // 5 人中 2 对 → 40% → hard
			mcQuestion(4, "D", 10, 1), // 5 人中 3 对 → 60% → medium
		},
	}

	var attempts []model.Attempt
	q1Correct := []bool{true, true, true, true, false}
	q2Correct := []bool{true, true, true, true, true}
	q3Correct := []bool{true, true, false, false, false}
	q4Correct := []bool{true, true, true, false, false}
	for i := 0; i < 5; i++ {
		attempts = append(attempts, gradedAttempt(uint(20+i), 60, true, 100,
			answerFor(1, q1Correct[i]),
			answerFor(2, q2Correct[i]),
			answerFor(3, q3Correct[i]),
			answerFor(4, q4Correct[i]),
		))
	}

	svc := newAnalyticsFixture(quiz, &fakeAnalyticsSource{byQuiz: map[uint][]model.Attempt{1: attempts}})
	analytics, err := svc.GetQuizAnalytics(1)
	require.NoError(t, err)

	require.Len(t, analytics.QuestionStats, 4)
	assert.Equal(t, model.DifficultyMedium, analytics.QuestionStats[0].Difficulty)
	assert.Equal(t, 80.0, analytics.QuestionStats[0].CorrectRate)
	assert.Equal(t, model.DifficultyEasy, analytics.QuestionStats[1].Difficulty)
	assert.Equal(t, model.DifficultyHard, analytics.QuestionStats[2].Difficulty)
	assert.Equal(t, model.DifficultyMedium, analytics.QuestionStats[3].Difficulty)
}

func TestQuestionStatsCountsPartialCredit(t *testing.T) {
	quiz := &model.Quiz{
		BaseModel:    model.BaseModel{ID: 1},
		PassingScore: 60,
		IsPublished:  true,
		Questions:    []model.Question{matchingQuestion(1, []string{"x", "y"}, 10, 1)},
	}

	attempts := []model.Attempt{
		gradedAttempt(30, 100, true, 100, model.Answer{QuestionID: 1, Correct: true, PartialFraction: 1.0, PointsEarned: 10}),
		gradedAttempt(31, 50, false, 100, model.Answer{QuestionID: 1, Correct: false, PartialFraction: 0.5, PointsEarned: 5}),
		gradedAttempt(32, 0, false, 100, model.Answer{QuestionID: 1, Correct: false, PartialFraction: 0, PointsEarned: 0}),
	}

	svc := newAnalyticsFixture(quiz, &fakeAnalyticsSource{byQuiz: map[uint][]model.Attempt{1: attempts}})
	analytics, err := svc.GetQuizAnalytics(1)
	require.NoError(t, err)

	st := analytics.QuestionStats[0]
	assert.Equal(t, 3, st.AttemptCount)
	assert.Equal(t, 1, st.CorrectCount)
	assert.Equal(t, 1, st.PartialCount)
	assert.Equal(t, 5.0, st.AvgPoints)
}

func TestLearnerQuizHistoryTrend(t *testing.T) {
	tests := []struct {
		name      string
		scores    []float64
		wantBest  float64
		wantLast  float64
		wantDelta float64
		wantTrend model.TrendDirection
	}{
		{"improving", []float64{40, 55, 70}, 70, 70, 15, model.TrendImproving},
		{"declining", []float64{90, 60}, 90, 60, -30, model.TrendDeclining},
		{"stable", []float64{66.7, 66.7}, 66.7, 66.7, 0, model.TrendStable},
		{"single attempt", []float64{80}, 80, 80, 0, model.TrendStable},
		{"no attempts", nil, 0, 0, 0, model.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts []model.Attempt
			for _, score := range tt.scores {
				attempts = append(attempts, gradedAttempt(50, score, score >= 70, 100))
			}
			svc := newAnalyticsFixture(testQuiz(), &fakeAnalyticsSource{
				byLearner: map[uint][]model.Attempt{50: attempts},
			})

			history, err := svc.GetLearnerQuizHistory(1, 50)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBest, history.BestScore)
			assert.Equal(t, tt.wantLast, history.LastScore)
			assert.Equal(t, tt.wantDelta, history.Delta)
			assert.Equal(t, tt.wantTrend, history.Trend)
		})
	}
}
