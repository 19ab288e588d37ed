package repository

import (
	"errors"
	"quiz_engine_backend/internal/model"

	"gorm.io/gorm"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

// FindActive 返回 (nil, nil) 表示无有效选课记录
func (r *EnrollmentRepository) FindActive(courseID, learnerID uint) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.DB.Where("course_id = ? AND learner_id = ? AND status = ?",
		courseID, learnerID, model.EnrollmentActive).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
