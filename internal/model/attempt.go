package model

import (
	"encoding/json"
	"time"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptGraded     AttemptStatus = "graded"
)

// swagger:model Attempt
type Attempt struct {
	BaseModel
	QuizID           uint          `gorm:"index;type:bigint unsigned" json:"quizId"`
	LearnerID        uint          `gorm:"index;type:bigint unsigned" json:"learnerId"`
	AttemptNumber    int           `gorm:"default:1" json:"attemptNumber"`
	Status           AttemptStatus `gorm:"size:20;default:'in_progress'" json:"status"`
	Score            float64       `json:"score"` // 0-100，评分后写入
	RawPoints        float64       `json:"rawPoints"`
	WeightedPoints   float64       `json:"weightedPoints"`
	WeightedPossible float64       `json:"weightedPossible"`
	Passed           bool          `gorm:"default:false" json:"passed"`
	Ungradable       bool          `gorm:"default:false" json:"ungradable"` // 题目权重总和为 0 的退化测验
	TimeSpentSeconds int           `json:"timeSpentSeconds"`
	StartedAt        time.Time     `json:"startedAt"`
	Deadline         *time.Time    `json:"deadline,omitempty"` // 服务端权威截止时间
	GradedAt         *time.Time    `json:"gradedAt,omitempty"`
	AutoSubmitted    bool          `gorm:"default:false" json:"autoSubmitted"` // 到时自动提交
	Answers          []Answer      `gorm:"foreignKey:AttemptID" json:"answers,omitempty"`
}

func (Attempt) TableName() string {
	return "quiz_attempts"
}

// Answer 评分引擎产出的每题记录，评分后不可变
type Answer struct {
	BaseModel
	AttemptID            uint            `gorm:"index;type:bigint unsigned" json:"attemptId"`
	QuestionID           uint            `gorm:"index;type:bigint unsigned" json:"questionId"`
	Submitted            json.RawMessage `gorm:"type:json" json:"submitted"`
	Correct              bool            `gorm:"default:false" json:"correct"`
	PartialFraction      float64         `json:"partialFraction"` // 0.0-1.0
	PointsEarned         float64         `json:"pointsEarned"`
	WeightedPointsEarned float64         `json:"weightedPointsEarned"`
}

func (Answer) TableName() string {
	return "quiz_attempt_answers"
}
