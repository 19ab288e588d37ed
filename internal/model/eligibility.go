package model

// EligibilityReport 证书资格评估结果。按需计算的视图，不落库；
// 总验证结论为五项检查的逻辑与。
type EligibilityReport struct {
	CourseID  uint `json:"courseId"`
	LearnerID uint `json:"learnerId"`
	Eligible  bool `json:"eligible"`

	HasValidEnrollment     bool `json:"hasValidEnrollment"`
	CourseCompleted        bool `json:"courseCompleted"`
	RequiredQuizzesPassed  bool `json:"requiredQuizzesPassed"`
	MinimumTimeSpent       bool `json:"minimumTimeSpent"`
	NoDuplicateCertificate bool `json:"noDuplicateCertificate"`

	ProgressPercent     float64  `json:"progressPercent"`
	TimeSpentSeconds    int      `json:"timeSpentSeconds"`
	RequiredTimeSeconds int      `json:"requiredTimeSeconds"`
	AverageScore        float64  `json:"averageScore"`
	RequiredQuizCount   int      `json:"requiredQuizCount"`
	PassedQuizCount     int      `json:"passedQuizCount"`
	MissingRequirements []string `json:"missingRequirements"`
}
