package model

type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// QuestionStats 单题统计
type QuestionStats struct {
	QuestionID    uint    `json:"questionId"`
	Prompt        string  `json:"prompt"`
	AttemptCount  int     `json:"attemptCount"`
	CorrectCount  int     `json:"correctCount"`
	PartialCount  int     `json:"partialCount"` // 部分得分（分数严格介于 0 和 1 之间）
	CorrectRate   float64 `json:"correctRate"`  // 百分比
	AvgPoints     float64 `json:"avgPoints"`
	Difficulty    string  `json:"difficulty"` // 按正确率推导：easy / medium / hard
	DeclaredLevel string  `json:"declaredLevel,omitempty"`
}

// ScoreBucket 分数段分布
type ScoreBucket struct {
	Label string `json:"label"` // 例如 "60-69"
	Count int    `json:"count"`
}

// QuizAnalytics 测验维度统计（全部实时重算，不做增量状态）
type QuizAnalytics struct {
	QuizID            uint            `json:"quizId"`
	TotalAttempts     int             `json:"totalAttempts"`
	UniqueLearners    int             `json:"uniqueLearners"`
	PassRate          float64         `json:"passRate"` // 百分比
	AverageScore      float64         `json:"averageScore"`
	AverageTimeSpent  float64         `json:"averageTimeSpent"` // 秒
	QuestionStats     []QuestionStats `json:"questionStats"`
	ScoreDistribution []ScoreBucket   `json:"scoreDistribution"`
}

// LearnerQuizHistory 单个学习者在某测验上的历史与趋势
type LearnerQuizHistory struct {
	QuizID    uint           `json:"quizId"`
	LearnerID uint           `json:"learnerId"`
	Attempts  []Attempt      `json:"attempts"`
	BestScore float64        `json:"bestScore"`
	LastScore float64        `json:"lastScore"`
	Delta     float64        `json:"delta"` // 最近一次与上一次的分差
	Trend     TrendDirection `json:"trend"`
}
