package model

import "time"

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentSuspended EnrollmentStatus = "suspended"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// Enrollment 选课记录（选课模块维护，本服务只读）
type Enrollment struct {
	BaseModel
	CourseID   uint             `gorm:"index:idx_enroll_course_learner;type:bigint unsigned" json:"courseId"`
	LearnerID  uint             `gorm:"index:idx_enroll_course_learner;type:bigint unsigned" json:"learnerId"`
	Status     EnrollmentStatus `gorm:"size:20;default:'active'" json:"status"`
	EnrolledAt time.Time        `json:"enrolledAt"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// CourseProgress 课程进度与累计学习时长（进度模块维护，本服务只读）
type CourseProgress struct {
	BaseModel
	CourseID         uint    `gorm:"index:idx_progress_course_learner;type:bigint unsigned" json:"courseId"`
	LearnerID        uint    `gorm:"index:idx_progress_course_learner;type:bigint unsigned" json:"learnerId"`
	ProgressPercent  float64 `gorm:"default:0" json:"progressPercent"` // 0-100
	TimeSpentSeconds int     `gorm:"default:0" json:"timeSpentSeconds"`
}

func (CourseProgress) TableName() string {
	return "course_progress"
}

// Certificate 课程结业证书
type Certificate struct {
	BaseModel
	CourseID          uint      `gorm:"index:idx_cert_course_learner,unique;type:bigint unsigned" json:"courseId"`
	LearnerID         uint      `gorm:"index:idx_cert_course_learner,unique;type:bigint unsigned" json:"learnerId"`
	CertificateNumber string    `gorm:"size:64;unique" json:"certificateNumber"`
	IssuedAt          time.Time `json:"issuedAt"`
}

func (Certificate) TableName() string {
	return "certificates"
}
