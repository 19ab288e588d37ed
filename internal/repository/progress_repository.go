package repository

import (
	"errors"
	"quiz_engine_backend/internal/model"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// CourseProgress 课程进度百分比（0-100），无记录视为 0
func (r *ProgressRepository) CourseProgress(courseID, learnerID uint) (float64, error) {
	var p model.CourseProgress
	err := r.DB.Where("course_id = ? AND learner_id = ?", courseID, learnerID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return p.ProgressPercent, nil
}

// TimeSpent 课程累计学习时长（秒），无记录视为 0
func (r *ProgressRepository) TimeSpent(courseID, learnerID uint) (int, error) {
	var p model.CourseProgress
	err := r.DB.Where("course_id = ? AND learner_id = ?", courseID, learnerID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return p.TimeSpentSeconds, nil
}
