package service

import (
	"fmt"
	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"
	"quiz_engine_backend/pkg/monitoring"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EnrollmentSource 选课协作方（只读）
type EnrollmentSource interface {
	FindActive(courseID, learnerID uint) (*model.Enrollment, error)
}

// ProgressSource 课程进度协作方（只读）
type ProgressSource interface {
	CourseProgress(courseID, learnerID uint) (float64, error)
	TimeSpent(courseID, learnerID uint) (int, error)
}

// CertificateStore 证书存取
type CertificateStore interface {
	Find(courseID, learnerID uint) (*model.Certificate, error)
	Create(cert *model.Certificate) error
}

// RequiredQuizSource 课程必修测验目录
type RequiredQuizSource interface {
	ListRequired(courseID uint) ([]model.Quiz, error)
}

// PassRecordSource 学习者的历史评分记录
type PassRecordSource interface {
	HasPassed(quizID, learnerID uint) (bool, error)
	ListGradedByLearner(quizID, learnerID uint) ([]model.Attempt, error)
}

// EligibilityService 证书资格评估：五项独立检查的逻辑与。
// "不符合条件"是正常返回值而非错误；只有协作方不可达时才返回错误，
// 以便调用方区分"未通过"与"无法判定"。
type EligibilityService struct {
	Enrollments  EnrollmentSource
	Progress     ProgressSource
	Certificates CertificateStore
	Quizzes      RequiredQuizSource
	Attempts     PassRecordSource

	mu           sync.RWMutex
	minTimeSpent time.Duration

	Now func() time.Time
}

func NewEligibilityService(
	enrollments EnrollmentSource,
	progress ProgressSource,
	certificates CertificateStore,
	quizzes RequiredQuizSource,
	attempts PassRecordSource,
	cfg config.AssessmentConfig,
) *EligibilityService {
	return &EligibilityService{
		Enrollments:  enrollments,
		Progress:     progress,
		Certificates: certificates,
		Quizzes:      quizzes,
		Attempts:     attempts,
		minTimeSpent: time.Duration(cfg.MinTimeSpentMinutes) * time.Minute,
		Now:          time.Now,
	}
}

// UpdateSettings 配置热更新回调
func (s *EligibilityService) UpdateSettings(cfg config.AssessmentConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minTimeSpent = time.Duration(cfg.MinTimeSpentMinutes) * time.Minute
}

func (s *EligibilityService) requiredSeconds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.minTimeSpent.Seconds())
}

// CheckEligibility 评估学习者的证书资格，返回逐项标记与缺失说明
func (s *EligibilityService) CheckEligibility(courseID, learnerID uint) (*model.EligibilityReport, error) {
	report := &model.EligibilityReport{
		CourseID:            courseID,
		LearnerID:           learnerID,
		RequiredTimeSeconds: s.requiredSeconds(),
		MissingRequirements: []string{},
	}

	// 1. 有效选课
	enrollment, err := s.Enrollments.FindActive(courseID, learnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: enrollment lookup failed: %v", util.ErrUpstreamUnavailable, err)
	}
	report.HasValidEnrollment = enrollment != nil
	if !report.HasValidEnrollment {
		report.MissingRequirements = append(report.MissingRequirements,
			"no active enrollment for this course")
	}

	// 2. 课程完成度
	progress, err := s.Progress.CourseProgress(courseID, learnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: progress lookup failed: %v", util.ErrUpstreamUnavailable, err)
	}
	report.ProgressPercent = progress
	report.CourseCompleted = progress >= 100
	if !report.CourseCompleted {
		report.MissingRequirements = append(report.MissingRequirements,
			fmt.Sprintf("course progress is %.0f%%, must reach 100%%", progress))
	}

	// 3. 必修测验全部通过
	if err := s.checkRequiredQuizzes(courseID, learnerID, report); err != nil {
		return nil, err
	}

	// 4. 最低学习时长
	timeSpent, err := s.Progress.TimeSpent(courseID, learnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: time-spent lookup failed: %v", util.ErrUpstreamUnavailable, err)
	}
	report.TimeSpentSeconds = timeSpent
	report.MinimumTimeSpent = timeSpent >= report.RequiredTimeSeconds
	if !report.MinimumTimeSpent {
		report.MissingRequirements = append(report.MissingRequirements,
			fmt.Sprintf("time spent %d minutes is below the required %d minutes",
				timeSpent/60, report.RequiredTimeSeconds/60))
	}

	// 5. 证书未重复签发
	existing, err := s.Certificates.Find(courseID, learnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: certificate lookup failed: %v", util.ErrUpstreamUnavailable, err)
	}
	report.NoDuplicateCertificate = existing == nil
	if !report.NoDuplicateCertificate {
		report.MissingRequirements = append(report.MissingRequirements,
			"certificate already issued for this course")
	}

	report.Eligible = report.HasValidEnrollment &&
		report.CourseCompleted &&
		report.RequiredQuizzesPassed &&
		report.MinimumTimeSpent &&
		report.NoDuplicateCertificate

	return report, nil
}

func (s *EligibilityService) checkRequiredQuizzes(courseID, learnerID uint, report *model.EligibilityReport) error {
	required, err := s.Quizzes.ListRequired(courseID)
	if err != nil {
		return fmt.Errorf("%w: required quiz lookup failed: %v", util.ErrUpstreamUnavailable, err)
	}

	report.RequiredQuizCount = len(required)

	var bestSum float64
	scored := 0
	for i := range required {
		passed, err := s.Attempts.HasPassed(required[i].ID, learnerID)
		if err != nil {
			return fmt.Errorf("%w: attempt lookup failed: %v", util.ErrUpstreamUnavailable, err)
		}
		if passed {
			report.PassedQuizCount++
		}

		attempts, err := s.Attempts.ListGradedByLearner(required[i].ID, learnerID)
		if err != nil {
			return fmt.Errorf("%w: attempt lookup failed: %v", util.ErrUpstreamUnavailable, err)
		}
		best := 0.0
		for j := range attempts {
			if attempts[j].Score > best {
				best = attempts[j].Score
			}
		}
		if len(attempts) > 0 {
			bestSum += best
			scored++
		}
	}

	if scored > 0 {
		report.AverageScore = round1pct(bestSum / float64(scored))
	}

	report.RequiredQuizzesPassed = report.PassedQuizCount == report.RequiredQuizCount
	if !report.RequiredQuizzesPassed {
		report.MissingRequirements = append(report.MissingRequirements,
			fmt.Sprintf("passed %d of %d required quizzes", report.PassedQuizCount, report.RequiredQuizCount))
	}
	return nil
}

// GenerateCertificateIfEligible 仅在资格验证通过时签发证书；
// 不符合条件返回 ErrNotEligible 与逐项缺失说明，绝不先签发再验证。
func (s *EligibilityService) GenerateCertificateIfEligible(courseID, learnerID uint) (*model.Certificate, *model.EligibilityReport, error) {
	report, err := s.CheckEligibility(courseID, learnerID)
	if err != nil {
		return nil, nil, err
	}
	if !report.Eligible {
		return nil, report, util.ErrNotEligible
	}

	cert := &model.Certificate{
		CourseID:          courseID,
		LearnerID:         learnerID,
		CertificateNumber: fmt.Sprintf("CERT-%s", uuid.New().String()),
		IssuedAt:          s.Now(),
	}
	if err := s.Certificates.Create(cert); err != nil {
		// 唯一索引兜底并发重复签发
		return nil, report, fmt.Errorf("%w: certificate issuance failed: %v", util.ErrUpstreamUnavailable, err)
	}

	monitoring.CertificatesIssued.Inc()
	return cert, report, nil
}
