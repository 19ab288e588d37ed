package service

import (
	"errors"
	"fmt"
	"math"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"

	"gorm.io/gorm"
)

// AnalyticsAttemptSource 统计所需的只读答题记录来源
type AnalyticsAttemptSource interface {
	ListGradedByQuiz(quizID uint) ([]model.Attempt, error)
	ListGradedByLearner(quizID, learnerID uint) ([]model.Attempt, error)
}

// AnalyticsService 测验与学习者维度的统计。所有指标每次调用全量重算，
// 不维护增量状态，删除或回填答题记录后结果仍然正确。
type AnalyticsService struct {
	Quizzes  QuizCatalog
	Attempts AnalyticsAttemptSource
}

func NewAnalyticsService(quizzes QuizCatalog, attempts AnalyticsAttemptSource) *AnalyticsService {
	return &AnalyticsService{Quizzes: quizzes, Attempts: attempts}
}

func (s *AnalyticsService) GetQuizAnalytics(quizID uint) (*model.QuizAnalytics, error) {
	quiz, err := s.Quizzes.FindWithQuestions(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	attempts, err := s.Attempts.ListGradedByQuiz(quizID)
	if err != nil {
		return nil, err
	}

	analytics := &model.QuizAnalytics{
		QuizID:        quizID,
		TotalAttempts: len(attempts),
	}

	learners := make(map[uint]bool)
	passedCount := 0
	var scoreSum, timeSum float64
	buckets := make([]int, 10)

	for i := range attempts {
		a := &attempts[i]
		learners[a.LearnerID] = true
		if a.Passed {
			passedCount++
		}
		scoreSum += a.Score
		timeSum += float64(a.TimeSpentSeconds)

		idx := int(a.Score / 10)
		if idx > 9 {
			idx = 9
		}
		if idx < 0 {
			idx = 0
		}
		buckets[idx]++
	}

	analytics.UniqueLearners = len(learners)
	if len(attempts) > 0 {
		analytics.PassRate = round1pct(100 * float64(passedCount) / float64(len(attempts)))
		analytics.AverageScore = round1pct(scoreSum / float64(len(attempts)))
		analytics.AverageTimeSpent = round1pct(timeSum / float64(len(attempts)))
	}

	for i, count := range buckets {
		label := fmt.Sprintf("%d-%d", i*10, i*10+9)
		if i == 9 {
			label = "90-100"
		}
		analytics.ScoreDistribution = append(analytics.ScoreDistribution, model.ScoreBucket{
			Label: label,
			Count: count,
		})
	}

	analytics.QuestionStats = questionStats(quiz, attempts)
	return analytics, nil
}

// questionStats 逐题统计：正确数、部分得分数、正确率、平均得分，
// 并按正确率推导难度标签（>80 易，50-80 中，<=50 难）
func questionStats(quiz *model.Quiz, attempts []model.Attempt) []model.QuestionStats {
	stats := make([]model.QuestionStats, 0, len(quiz.Questions))

	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		st := model.QuestionStats{
			QuestionID:    q.ID,
			Prompt:        q.Prompt,
			DeclaredLevel: q.Difficulty,
		}

		var pointsSum float64
		for j := range attempts {
			for k := range attempts[j].Answers {
				ans := &attempts[j].Answers[k]
				if ans.QuestionID != q.ID {
					continue
				}
				st.AttemptCount++
				pointsSum += ans.PointsEarned
				if ans.Correct {
					st.CorrectCount++
				} else if ans.PartialFraction > 0 && ans.PartialFraction < 1 {
					st.PartialCount++
				}
			}
		}

		if st.AttemptCount > 0 {
			st.CorrectRate = round1pct(100 * float64(st.CorrectCount) / float64(st.AttemptCount))
			st.AvgPoints = round1pct(pointsSum / float64(st.AttemptCount))
		}

		switch {
		case st.CorrectRate > 80:
			st.Difficulty = model.DifficultyEasy
		case st.CorrectRate > 50:
			st.Difficulty = model.DifficultyMedium
		default:
			st.Difficulty = model.DifficultyHard
		}

		stats = append(stats, st)
	}
	return stats
}

// GetLearnerQuizHistory 学习者在某测验上的历史成绩与趋势
func (s *AnalyticsService) GetLearnerQuizHistory(quizID, learnerID uint) (*model.LearnerQuizHistory, error) {
	attempts, err := s.Attempts.ListGradedByLearner(quizID, learnerID)
	if err != nil {
		return nil, err
	}

	history := &model.LearnerQuizHistory{
		QuizID:    quizID,
		LearnerID: learnerID,
		Attempts:  attempts,
		Trend:     model.TrendStable,
	}

	for i := range attempts {
		if attempts[i].Score > history.BestScore {
			history.BestScore = attempts[i].Score
		}
	}

	if len(attempts) > 0 {
		history.LastScore = attempts[len(attempts)-1].Score
	}
	if len(attempts) >= 2 {
		history.Delta = round1pct(history.LastScore - attempts[len(attempts)-2].Score)
		switch {
		case history.Delta > 0:
			history.Trend = model.TrendImproving
		case history.Delta < 0:
			history.Trend = model.TrendDeclining
		}
	}

	return history, nil
}

func round1pct(v float64) float64 {
	return math.Round(v*10) / 10
}
