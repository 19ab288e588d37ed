package model

import (
	"encoding/json"
	"time"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionFillInBlank    QuestionType = "fill_in_blank"
	QuestionMatching       QuestionType = "matching"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionFillInBlank, QuestionMatching:
		return true
	}
	return false
}

// swagger:model Quiz
type Quiz struct {
	BaseModel
	CourseID     uint       `gorm:"index;type:bigint unsigned" json:"courseId"`
	Title        string     `gorm:"size:255;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	PassingScore float64    `gorm:"default:60" json:"passingScore"` // 0-100
	TimeLimit    int        `gorm:"default:0" json:"timeLimit"`     // 分钟，0 表示不限时
	Required     bool       `gorm:"default:false" json:"required"`  // 证书资格是否要求通过本测验
	IsPublished  bool       `gorm:"default:false" json:"isPublished"`
	PublishedAt  *time.Time `json:"publishedAt,omitempty"`
	Questions    []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// swagger:model Question
type Question struct {
	BaseModel
	QuizID        uint            `gorm:"index;type:bigint unsigned" json:"quizId"`
	QuestionType  QuestionType    `gorm:"size:50;not null" json:"questionType"`
	Prompt        string          `gorm:"type:text;not null" json:"prompt"`
	Options       json.RawMessage `gorm:"type:json" json:"options"`       // 选项（JSON array），自由文本题为空
	CorrectAnswer json.RawMessage `gorm:"type:json" json:"correctAnswer"` // 字符串或字符串数组
	Points        int             `gorm:"default:1" json:"points"`
	Weight        float64         `gorm:"default:1" json:"weight"`
	Explanation   string          `gorm:"type:text" json:"explanation"`
	Difficulty    string          `gorm:"size:20" json:"difficulty"` // easy, medium, hard
	Order         int             `gorm:"default:0" json:"order"`
}

func (Question) TableName() string {
	return "quiz_questions"
}

// CorrectValue 解析存储的标准答案
func (q *Question) CorrectValue() (AnswerValue, error) {
	var v AnswerValue
	if err := json.Unmarshal(q.CorrectAnswer, &v); err != nil {
		return AnswerValue{}, err
	}
	return v, nil
}
