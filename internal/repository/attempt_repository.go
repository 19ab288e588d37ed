package repository

import (
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(attempt *model.Attempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) FindByID(id uint) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.First(&a, id).Error
	return &a, err
}

func (r *AttemptRepository) FindWithAnswers(id uint) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.Preload("Answers").First(&a, id).Error
	return &a, err
}

func (r *AttemptRepository) CountByQuiz(quizID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Attempt{}).Where("quiz_id = ?", quizID).Count(&count).Error
	return count, err
}

func (r *AttemptRepository) CountByQuizAndLearner(quizID, learnerID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Attempt{}).
		Where("quiz_id = ? AND learner_id = ?", quizID, learnerID).
		Count(&count).Error
	return count, err
}

// SaveGraded 在一个事务内落盘评分结果与逐题答案记录。
// 状态迁移是一次条件更新：仅当记录仍为 in_progress 时生效；
// 已评分的记录返回 ErrAttemptGraded，并发的结算方绝不覆盖既有成绩。
func (r *AttemptRepository) SaveGraded(attempt *model.Attempt, answers []model.Answer) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Attempt{}).
			Where("id = ? AND status = ?", attempt.ID, model.AttemptInProgress).
			Updates(map[string]interface{}{
				"status":             attempt.Status,
				"score":              attempt.Score,
				"raw_points":         attempt.RawPoints,
				"weighted_points":    attempt.WeightedPoints,
				"weighted_possible":  attempt.WeightedPossible,
				"passed":             attempt.Passed,
				"ungradable":         attempt.Ungradable,
				"time_spent_seconds": attempt.TimeSpentSeconds,
				"graded_at":          attempt.GradedAt,
				"auto_submitted":     attempt.AutoSubmitted,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrAttemptGraded
		}
		if len(answers) > 0 {
			for i := range answers {
				answers[i].AttemptID = attempt.ID
			}
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *AttemptRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Attempt{}, id).Error
}

func (r *AttemptRepository) ListGradedByQuiz(quizID uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.Preload("Answers").
		Where("quiz_id = ? AND status = ?", quizID, model.AttemptGraded).
		Order("created_at asc").
		Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListGradedByLearner(quizID, learnerID uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.Where("quiz_id = ? AND learner_id = ? AND status = ?", quizID, learnerID, model.AttemptGraded).
		Order("created_at asc").
		Find(&attempts).Error
	return attempts, err
}

// HasPassed 学习者是否至少有一次通过该测验的评分记录
func (r *AttemptRepository) HasPassed(quizID, learnerID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Attempt{}).
		Where("quiz_id = ? AND learner_id = ? AND status = ? AND passed = ?",
			quizID, learnerID, model.AttemptGraded, true).
		Count(&count).Error
	return count > 0, err
}

// ListOverdueInProgress 截止时间已过但仍未提交的会话，供自动提交巡检使用
func (r *AttemptRepository) ListOverdueInProgress(now time.Time) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.Where("status = ? AND deadline IS NOT NULL AND deadline <= ?", model.AttemptInProgress, now).
		Find(&attempts).Error
	return attempts, err
}

// ListStaleInProgress 不限时测验中开始时间早于 cutoff 仍未提交的会话，
// 巡检按放弃处理，避免在答记录无限期滞留
func (r *AttemptRepository) ListStaleInProgress(cutoff time.Time) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.Where("status = ? AND deadline IS NULL AND started_at <= ?", model.AttemptInProgress, cutoff).
		Find(&attempts).Error
	return attempts, err
}
