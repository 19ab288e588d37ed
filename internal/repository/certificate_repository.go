package repository

import (
	"errors"
	"quiz_engine_backend/internal/model"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

// Find 返回 (nil, nil) 表示尚未签发
func (r *CertificateRepository) Find(courseID, learnerID uint) (*model.Certificate, error) {
	var c model.Certificate
	err := r.DB.Where("course_id = ? AND learner_id = ?", courseID, learnerID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CertificateRepository) Create(cert *model.Certificate) error {
	return r.DB.Create(cert).Error
}
