package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

// QuizService 教师端测验与题目维护。被答题记录引用过的测验视为不可变，
// 规则调整应当另建新测验，避免中途改题污染既有成绩。
type QuizService struct {
	QuizRepo    *repository.QuizRepository
	AttemptRepo *repository.AttemptRepository
}

func NewQuizService(quizRepo *repository.QuizRepository, attemptRepo *repository.AttemptRepository) *QuizService {
	return &QuizService{QuizRepo: quizRepo, AttemptRepo: attemptRepo}
}

type QuizRequest struct {
	CourseID     uint    `json:"courseId" binding:"required"`
	Title        string  `json:"title" binding:"required"`
	Description  string  `json:"description"`
	PassingScore float64 `json:"passingScore"`
	TimeLimit    int     `json:"timeLimit"`
	Required     bool    `json:"required"`
}

func (s *QuizService) CreateQuiz(req QuizRequest) (*model.Quiz, error) {
	if req.PassingScore < 0 || req.PassingScore > 100 {
		return nil, fmt.Errorf("%w: passing score must be between 0 and 100", util.ErrValidation)
	}

	quiz := &model.Quiz{
		CourseID:     req.CourseID,
		Title:        req.Title,
		Description:  req.Description,
		PassingScore: req.PassingScore,
		TimeLimit:    req.TimeLimit,
		Required:     req.Required,
	}
	if err := s.QuizRepo.Create(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) GetQuiz(id uint) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindWithQuestions(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	return quiz, err
}

func (s *QuizService) ListQuizzes(courseID uint, page, limit int) ([]model.Quiz, int64, error) {
	return s.QuizRepo.List(courseID, page, limit)
}

func (s *QuizService) UpdateQuiz(id uint, req QuizRequest) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	if err := s.ensureMutable(id); err != nil {
		return nil, err
	}
	if req.PassingScore < 0 || req.PassingScore > 100 {
		return nil, fmt.Errorf("%w: passing score must be between 0 and 100", util.ErrValidation)
	}

	quiz.CourseID = req.CourseID
	quiz.Title = req.Title
	quiz.Description = req.Description
	quiz.PassingScore = req.PassingScore
	quiz.TimeLimit = req.TimeLimit
	quiz.Required = req.Required
	if err := s.QuizRepo.Update(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) PublishQuiz(id uint, publish bool) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindWithQuestions(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	if publish && len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("%w: cannot publish a quiz without questions", util.ErrValidation)
	}

	quiz.IsPublished = publish
	if publish {
		now := time.Now()
		quiz.PublishedAt = &now
	} else {
		quiz.PublishedAt = nil
	}
	if err := s.QuizRepo.Update(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) DeleteQuiz(id uint) error {
	if err := s.ensureMutable(id); err != nil {
		return err
	}
	return s.QuizRepo.Delete(id)
}

type QuestionRequest struct {
	QuestionType  model.QuestionType `json:"questionType" binding:"required"`
	Prompt        string             `json:"prompt" binding:"required"`
	Options       json.RawMessage    `json:"options"`
	CorrectAnswer json.RawMessage    `json:"correctAnswer" binding:"required"`
	Points        int                `json:"points"`
	Weight        float64            `json:"weight"`
	Explanation   string             `json:"explanation"`
	Difficulty    string             `json:"difficulty"`
	Order         int                `json:"order"`
}

func (s *QuizService) AddQuestion(quizID uint, req QuestionRequest) (*model.Question, error) {
	if _, err := s.QuizRepo.FindByID(quizID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	if err := s.ensureMutable(quizID); err != nil {
		return nil, err
	}
	if err := validateQuestion(&req); err != nil {
		return nil, err
	}

	q := &model.Question{
		QuizID:        quizID,
		QuestionType:  req.QuestionType,
		Prompt:        req.Prompt,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Points:        req.Points,
		Weight:        req.Weight,
		Explanation:   req.Explanation,
		Difficulty:    req.Difficulty,
		Order:         req.Order,
	}
	if q.Weight == 0 {
		q.Weight = 1
	}
	if err := s.QuizRepo.CreateQuestion(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuizService) UpdateQuestion(quizID, questionID uint, req QuestionRequest) (*model.Question, error) {
	q, err := s.QuizRepo.FindQuestionByID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}
	if q.QuizID != quizID {
		return nil, util.ErrQuestionNotFound
	}
	if err := s.ensureMutable(quizID); err != nil {
		return nil, err
	}
	if err := validateQuestion(&req); err != nil {
		return nil, err
	}

	q.QuestionType = req.QuestionType
	q.Prompt = req.Prompt
	q.Options = req.Options
	q.CorrectAnswer = req.CorrectAnswer
	q.Points = req.Points
	q.Weight = req.Weight
	if q.Weight == 0 {
		q.Weight = 1
	}
	q.Explanation = req.Explanation
	q.Difficulty = req.Difficulty
	q.Order = req.Order
	if err := s.QuizRepo.UpdateQuestion(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuizService) DeleteQuestion(quizID, questionID uint) error {
	q, err := s.QuizRepo.FindQuestionByID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuestionNotFound
		}
		return err
	}
	if q.QuizID != quizID {
		return util.ErrQuestionNotFound
	}
	if err := s.ensureMutable(quizID); err != nil {
		return err
	}
	return s.QuizRepo.DeleteQuestion(questionID)
}

func (s *QuizService) ensureMutable(quizID uint) error {
	count, err := s.AttemptRepo.CountByQuiz(quizID)
	if err != nil {
		return err
	}
	if count > 0 {
		return util.ErrQuizLocked
	}
	return nil
}

func validateQuestion(req *QuestionRequest) error {
	if !req.QuestionType.Valid() {
		return fmt.Errorf("%w: unknown question type %q", util.ErrValidation, req.QuestionType)
	}
	if req.Points <= 0 {
		return fmt.Errorf("%w: points must be a positive integer", util.ErrValidation)
	}
	if req.Weight < 0 {
		return fmt.Errorf("%w: weight must not be negative", util.ErrValidation)
	}

	var correct model.AnswerValue
	if err := json.Unmarshal(req.CorrectAnswer, &correct); err != nil {
		return fmt.Errorf("%w: %v", util.ErrValidation, err)
	}
	if !correct.MatchesType(req.QuestionType) {
		if req.QuestionType == model.QuestionMatching {
			return fmt.Errorf("%w: matching questions need a set of correct answers", util.ErrValidation)
		}
		return fmt.Errorf("%w: %s questions need a single correct answer", util.ErrValidation, req.QuestionType)
	}
	if correct.IsEmpty() {
		return fmt.Errorf("%w: correct answer must not be empty", util.ErrValidation)
	}
	return nil
}
