package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"
	"quiz_engine_backend/pkg/logger"
	"quiz_engine_backend/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QuizCatalog 测验目录（只读协作方）
type QuizCatalog interface {
	FindWithQuestions(id uint) (*model.Quiz, error)
}

// AttemptStore 答题记录存储
type AttemptStore interface {
	Create(attempt *model.Attempt) error
	FindByID(id uint) (*model.Attempt, error)
	FindWithAnswers(id uint) (*model.Attempt, error)
	CountByQuizAndLearner(quizID, learnerID uint) (int64, error)
	SaveGraded(attempt *model.Attempt, answers []model.Answer) error
	Delete(id uint) error
	ListOverdueInProgress(now time.Time) ([]model.Attempt, error)
	ListStaleInProgress(cutoff time.Time) ([]model.Attempt, error)
}

// SessionService 管理一次答题会话的完整生命周期：
// in_progress -> graded，提交后记录不可再变；中途放弃则不留答题记录。
type SessionService struct {
	Quizzes  QuizCatalog
	Attempts AttemptStore
	Store    SessionStore

	mu              sync.RWMutex
	matchingPenalty float64
	sessionTTL      time.Duration

	// Now 可注入时钟，便于测试截止时间路径
	Now func() time.Time
}

func NewSessionService(quizzes QuizCatalog, attempts AttemptStore, store SessionStore, cfg config.AssessmentConfig) *SessionService {
	return &SessionService{
		Quizzes:         quizzes,
		Attempts:        attempts,
		Store:           store,
		matchingPenalty: cfg.MatchingPenalty,
		sessionTTL:      time.Duration(cfg.SessionTTLMinutes) * time.Minute,
		Now:             time.Now,
	}
}

// UpdateSettings 配置热更新回调
func (s *SessionService) UpdateSettings(cfg config.AssessmentConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchingPenalty = cfg.MatchingPenalty
	s.sessionTTL = time.Duration(cfg.SessionTTLMinutes) * time.Minute
}

func (s *SessionService) gradingOptions() GradingOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return GradingOptions{MatchingPenalty: s.matchingPenalty}
}

func (s *SessionService) ttl() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionTTL
}

// StudentQuestion 学生端题目视图，不含标准答案
type StudentQuestion struct {
	ID           uint               `json:"id"`
	QuestionType model.QuestionType `json:"questionType"`
	Prompt       string             `json:"prompt"`
	Options      json.RawMessage    `json:"options"`
	Points       int                `json:"points"`
	Weight       float64            `json:"weight"`
	Order        int                `json:"order"`
}

// SessionView 会话状态：题目顺序、已答题目、剩余秒数，前端据此自由导航
type SessionView struct {
	AttemptID        uint                        `json:"attemptId"`
	QuizID           uint                        `json:"quizId"`
	QuizTitle        string                      `json:"quizTitle"`
	AttemptNumber    int                         `json:"attemptNumber"`
	Status           model.AttemptStatus         `json:"status"`
	Questions        []StudentQuestion           `json:"questions"`
	Answered         map[uint]model.AnswerValue  `json:"answered"`
	StartedAt        time.Time                   `json:"startedAt"`
	Deadline         *time.Time                  `json:"deadline,omitempty"`
	RemainingSeconds *int                        `json:"remainingSeconds,omitempty"`
}

// StartAttempt 开始一次答题。同一 (quiz, learner) 同时只允许一个进行中的会话，
// 冲突由 Redis SETNX 保证；评分使用此刻捕获的测验快照。
func (s *SessionService) StartAttempt(ctx context.Context, quizID, learnerID uint) (*SessionView, error) {
	quiz, err := s.Quizzes.FindWithQuestions(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	if !quiz.IsPublished {
		return nil, util.ErrQuizNotPublished
	}
	if len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("%w: quiz has no questions", util.ErrValidation)
	}

	count, err := s.Attempts.CountByQuizAndLearner(quizID, learnerID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	ttl := s.ttl()
	attempt := &model.Attempt{
		QuizID:        quizID,
		LearnerID:     learnerID,
		AttemptNumber: int(count) + 1,
		Status:        model.AttemptInProgress,
		StartedAt:     now,
	}
	if quiz.TimeLimit > 0 {
		deadline := now.Add(time.Duration(quiz.TimeLimit) * time.Minute)
		attempt.Deadline = &deadline
		ttl = time.Duration(quiz.TimeLimit)*time.Minute + time.Minute
	}

	if err := s.Attempts.Create(attempt); err != nil {
		return nil, err
	}

	acquired, err := s.Store.AcquireActive(ctx, quizID, learnerID, attempt.ID, ttl)
	if err != nil {
		s.Attempts.Delete(attempt.ID)
		return nil, err
	}
	if !acquired {
		// 并发竞争或已有会话：回收本次创建的记录
		s.Attempts.Delete(attempt.ID)
		return nil, util.ErrAttemptInProgress
	}

	if err := s.Store.SaveSnapshot(ctx, attempt.ID, quiz, ttl+time.Hour); err != nil {
		s.Attempts.Delete(attempt.ID)
		s.Store.ReleaseActive(ctx, quizID, learnerID)
		return nil, err
	}

	monitoring.AttemptsStarted.Inc()

	return s.buildView(attempt, quiz, map[uint]model.AnswerValue{}), nil
}

// GetSession 当前会话状态
func (s *SessionService) GetSession(ctx context.Context, attemptID, learnerID uint) (*SessionView, error) {
	attempt, err := s.findOwned(attemptID, learnerID)
	if err != nil {
		return nil, err
	}

	quiz, err := s.snapshotOrCatalog(ctx, attempt)
	if err != nil {
		return nil, err
	}

	drafts := map[uint]model.AnswerValue{}
	if attempt.Status == model.AttemptInProgress {
		drafts, err = s.Store.GetDrafts(ctx, attempt.ID)
		if err != nil {
			return nil, err
		}
	}

	return s.buildView(attempt, quiz, drafts), nil
}

// RecordAnswer 记录或覆盖某题答案；不移动答题位置，提交前可随时改答。
// 答案形状必须与题型一致：匹配题为集合，其余题型为单值。
func (s *SessionService) RecordAnswer(ctx context.Context, attemptID, learnerID, questionID uint, value model.AnswerValue) error {
	attempt, err := s.findOwned(attemptID, learnerID)
	if err != nil {
		return err
	}
	if attempt.Status == model.AttemptGraded {
		return util.ErrAttemptGraded
	}

	now := s.Now()
	if attempt.Deadline != nil && !now.Before(*attempt.Deadline) {
		// 服务端权威截止：先结算，再告知客户端超时
		if _, err := s.finalize(ctx, attempt, true); err != nil {
			return err
		}
		return fmt.Errorf("%w: time limit reached, attempt was auto-submitted", util.ErrValidation)
	}

	quiz, err := s.snapshotOrCatalog(ctx, attempt)
	if err != nil {
		return err
	}

	var question *model.Question
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == questionID {
			question = &quiz.Questions[i]
			break
		}
	}
	if question == nil {
		return util.ErrQuestionNotFound
	}

	if !value.MatchesType(question.QuestionType) {
		if question.QuestionType == model.QuestionMatching {
			return fmt.Errorf("%w: question %d expects a set of values", util.ErrValidation, questionID)
		}
		return fmt.Errorf("%w: question %d expects a single value", util.ErrValidation, questionID)
	}

	return s.Store.SaveDraft(ctx, attempt.ID, questionID, value)
}

// SubmitAttempt 提交评分。已评分的会话重复提交直接返回既有结果，不会重评；
// 除截止时间到期的自动提交外，所有题目必须已作答。
func (s *SessionService) SubmitAttempt(ctx context.Context, attemptID, learnerID uint) (*model.Attempt, error) {
	attempt, err := s.findOwned(attemptID, learnerID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == model.AttemptGraded {
		return s.Attempts.FindWithAnswers(attempt.ID)
	}

	now := s.Now()
	deadlineReached := attempt.Deadline != nil && !now.Before(*attempt.Deadline)

	if !deadlineReached {
		quiz, err := s.snapshotOrCatalog(ctx, attempt)
		if err != nil {
			return nil, err
		}
		drafts, err := s.Store.GetDrafts(ctx, attempt.ID)
		if err != nil {
			return nil, err
		}
		missing := 0
		for i := range quiz.Questions {
			v, ok := drafts[quiz.Questions[i].ID]
			if !ok || v.IsEmpty() {
				missing++
			}
		}
		if missing > 0 {
			return nil, fmt.Errorf("%w: %d question(s) unanswered", util.ErrValidation, missing)
		}
	}

	return s.finalize(ctx, attempt, deadlineReached)
}

// AbandonAttempt 放弃会话：不保留任何答题记录，并释放在答标记，
// 确保后续 StartAttempt 不被错误阻塞。
func (s *SessionService) AbandonAttempt(ctx context.Context, attemptID, learnerID uint) error {
	attempt, err := s.findOwned(attemptID, learnerID)
	if err != nil {
		return err
	}
	if attempt.Status == model.AttemptGraded {
		return util.ErrAttemptGraded
	}

	if err := s.Attempts.Delete(attempt.ID); err != nil {
		return err
	}
	s.Store.ReleaseActive(ctx, attempt.QuizID, attempt.LearnerID)
	s.Store.ClearSession(ctx, attempt.ID)
	return nil
}

// SubmitExpired 自动提交所有已过截止时间的会话，并回收不限时测验中
// 超过会话窗口仍无动静的在答记录，由后台定时任务调用
func (s *SessionService) SubmitExpired(ctx context.Context) int {
	overdue, err := s.Attempts.ListOverdueInProgress(s.Now())
	if err != nil {
		logger.Log.Error("failed to list overdue attempts", zap.Error(err))
		return 0
	}

	submitted := 0
	for i := range overdue {
		if _, err := s.finalize(ctx, &overdue[i], true); err != nil {
			logger.Log.Error("auto-submit failed",
				zap.Uint("attemptId", overdue[i].ID), zap.Error(err))
			continue
		}
		submitted++
	}

	s.reapStale(ctx)
	return submitted
}

// reapStale 不限时测验没有截止时间可依，静默离开的会话按放弃处理：
// 开始时间早于会话窗口即删除记录并释放在答标记
func (s *SessionService) reapStale(ctx context.Context) {
	stale, err := s.Attempts.ListStaleInProgress(s.Now().Add(-s.ttl()))
	if err != nil {
		logger.Log.Error("failed to list stale attempts", zap.Error(err))
		return
	}

	for i := range stale {
		if err := s.Attempts.Delete(stale[i].ID); err != nil {
			logger.Log.Error("stale attempt cleanup failed",
				zap.Uint("attemptId", stale[i].ID), zap.Error(err))
			continue
		}
		s.Store.ReleaseActive(ctx, stale[i].QuizID, stale[i].LearnerID)
		s.Store.ClearSession(ctx, stale[i].ID)
	}
	if len(stale) > 0 {
		logger.Log.Info("reaped stale attempts", zap.Int("count", len(stale)))
	}
}

// DryRunGrade 独立评分入口：不依赖会话状态，便于对指定答案组合做评分验证
func (s *SessionService) DryRunGrade(ctx context.Context, quizID uint, answers map[uint]model.AnswerValue) (*GradedResult, error) {
	quiz, err := s.Quizzes.FindWithQuestions(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return GradeQuiz(quiz, answers, s.gradingOptions())
}

// finalize 评分并落库，auto 表示由截止时间触发（未作答题目按 0 分计入）
func (s *SessionService) finalize(ctx context.Context, attempt *model.Attempt, auto bool) (*model.Attempt, error) {
	quiz, err := s.snapshotOrCatalog(ctx, attempt)
	if err != nil {
		return nil, err
	}
	drafts, err := s.Store.GetDrafts(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	result, err := GradeQuiz(quiz, drafts, s.gradingOptions())
	if err != nil {
		return nil, err
	}

	now := s.Now()
	gradedAt := now
	elapsed := now.Sub(attempt.StartedAt)
	if auto && attempt.Deadline != nil && now.After(*attempt.Deadline) {
		// 自动提交按截止时间计时长，不累计巡检延迟
		elapsed = attempt.Deadline.Sub(attempt.StartedAt)
		gradedAt = *attempt.Deadline
	}

	attempt.Status = model.AttemptGraded
	attempt.Score = result.Score
	attempt.RawPoints = result.RawPoints
	attempt.WeightedPoints = result.WeightedPoints
	attempt.WeightedPossible = result.WeightedPossible
	attempt.Passed = result.Passed
	attempt.Ungradable = result.Ungradable
	attempt.TimeSpentSeconds = int(elapsed.Seconds())
	attempt.GradedAt = &gradedAt
	attempt.AutoSubmitted = auto

	answers := make([]model.Answer, 0, len(result.Questions))
	for _, qr := range result.Questions {
		submitted, _ := json.Marshal(qr.Submitted)
		answers = append(answers, model.Answer{
			QuestionID:           qr.QuestionID,
			Submitted:            submitted,
			Correct:              qr.Correct,
			PartialFraction:      qr.Fraction,
			PointsEarned:         qr.PointsEarned,
			WeightedPointsEarned: qr.WeightedPointsEarned,
		})
	}

	if err := s.Attempts.SaveGraded(attempt, answers); err != nil {
		if errors.Is(err, util.ErrAttemptGraded) {
			// 另一方已抢先结算（如手工提交与巡检并发），既有成绩为准
			return s.Attempts.FindWithAnswers(attempt.ID)
		}
		return nil, err
	}

	s.Store.ReleaseActive(ctx, attempt.QuizID, attempt.LearnerID)
	s.Store.ClearSession(ctx, attempt.ID)

	trigger := "manual"
	if auto {
		trigger = "deadline"
	}
	monitoring.AttemptsSubmitted.WithLabelValues(trigger).Inc()

	attempt.Answers = answers
	return attempt, nil
}

func (s *SessionService) findOwned(attemptID, learnerID uint) (*model.Attempt, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.LearnerID != learnerID {
		return nil, util.ErrAttemptNotFound
	}
	return attempt, nil
}

// snapshotOrCatalog 优先使用开考快照；快照过期时回退到目录当前版本
func (s *SessionService) snapshotOrCatalog(ctx context.Context, attempt *model.Attempt) (*model.Quiz, error) {
	quiz, err := s.Store.GetSnapshot(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	if quiz != nil {
		return quiz, nil
	}

	quiz, err = s.Quizzes.FindWithQuestions(attempt.QuizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	logger.Log.Warn("session snapshot expired, falling back to catalog version",
		zap.Uint("attemptId", attempt.ID), zap.Uint("quizId", attempt.QuizID))
	return quiz, nil
}

func (s *SessionService) buildView(attempt *model.Attempt, quiz *model.Quiz, drafts map[uint]model.AnswerValue) *SessionView {
	questions := make([]StudentQuestion, len(quiz.Questions))
	for i, q := range quiz.Questions {
		questions[i] = StudentQuestion{
			ID:           q.ID,
			QuestionType: q.QuestionType,
			Prompt:       q.Prompt,
			Options:      q.Options,
			Points:       q.Points,
			Weight:       q.Weight,
			Order:        q.Order,
		}
	}

	view := &SessionView{
		AttemptID:     attempt.ID,
		QuizID:        attempt.QuizID,
		QuizTitle:     quiz.Title,
		AttemptNumber: attempt.AttemptNumber,
		Status:        attempt.Status,
		Questions:     questions,
		Answered:      drafts,
		StartedAt:     attempt.StartedAt,
		Deadline:      attempt.Deadline,
	}
	if attempt.Deadline != nil {
		remaining := int(attempt.Deadline.Sub(s.Now()).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		view.RemainingSeconds = &remaining
	}
	return view
}
