package repository

import (
	"quiz_engine_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

func (r *QuizRepository) FindByID(id uint) (*model.Quiz, error) {
	var q model.Quiz
	err := r.DB.First(&q, id).Error
	return &q, err
}

// FindWithQuestions 加载测验及按显示顺序排列的题目
func (r *QuizRepository) FindWithQuestions(id uint) (*model.Quiz, error) {
	var q model.Quiz
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("`order` asc, id asc")
	}).First(&q, id).Error
	return &q, err
}

func (r *QuizRepository) List(courseID uint, page, limit int) ([]model.Quiz, int64, error) {
	var qs []model.Quiz
	var total int64
	query := r.DB.Model(&model.Quiz{})
	if courseID > 0 {
		query = query.Where("course_id = ?", courseID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&qs).Error
	return qs, total, err
}

// ListRequired 课程内标记为必修的已发布测验
func (r *QuizRepository) ListRequired(courseID uint) ([]model.Quiz, error) {
	var qs []model.Quiz
	err := r.DB.Where("course_id = ? AND required = ? AND is_published = ?", courseID, true, true).
		Order("created_at asc").Find(&qs).Error
	return qs, err
}

func (r *QuizRepository) Update(quiz *model.Quiz) error {
	return r.DB.Save(quiz).Error
}

func (r *QuizRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Quiz{}, id).Error
}

func (r *QuizRepository) CreateQuestion(q *model.Question) error {
	return r.DB.Create(q).Error
}

func (r *QuizRepository) FindQuestionByID(id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.First(&q, id).Error
	return &q, err
}

func (r *QuizRepository) UpdateQuestion(q *model.Question) error {
	return r.DB.Save(q).Error
}

func (r *QuizRepository) DeleteQuestion(id uint) error {
	return r.DB.Delete(&model.Question{}, id).Error
}
