package model

import "time"

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
)

// IsObjective 客观题由系统判分，主观题等待人工评分
func (t QuestionType) IsObjective() bool {
	return t == MultipleChoice || t == TrueFalse
}

type Quiz struct {
	BaseModel
	CourseID     uint           `gorm:"index;not null" json:"courseId"`
	ModuleID     *uint          `gorm:"index" json:"moduleId,omitempty"`
	Title        string         `gorm:"size:255;not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	PassingScore float64        `gorm:"default:60" json:"passingScore"`
	MaxAttempts  int            `gorm:"default:0" json:"maxAttempts"` // 0 表示不限次数
	TimeLimit    int            `gorm:"default:0" json:"timeLimit"`   // 分钟，0 表示不限时
	ShowAnswers  bool           `gorm:"default:false" json:"showAnswers"`
	IsPublished  bool           `gorm:"default:false" json:"isPublished"`
	Questions    []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type QuizQuestion struct {
	BaseModel
	QuizID        uint         `gorm:"index;not null" json:"quizId"`
	Type          QuestionType `gorm:"type:varchar(20);not null" json:"type"`
	Content       string       `gorm:"type:text;not null" json:"content"`
	Options       string       `gorm:"type:text" json:"options,omitempty"` // JSON 数组，客观题选项
	CorrectAnswer string       `gorm:"type:text" json:"correctAnswer,omitempty"`
	Explanation   string       `gorm:"type:text" json:"explanation,omitempty"`
	Points        float64      `gorm:"default:1" json:"points"`
	Order         int          `gorm:"default:0" json:"order"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// QuizSubmission 一次答题尝试，AttemptNumber 按 (user, quiz) 严格递增
type QuizSubmission struct {
	BaseModel
	UserID        uint         `gorm:"index:idx_user_quiz_attempt,unique;not null" json:"userId"`
	QuizID        uint         `gorm:"index:idx_user_quiz_attempt,unique;not null" json:"quizId"`
	AttemptNumber int          `gorm:"index:idx_user_quiz_attempt,unique;not null" json:"attemptNumber"`
	StartedAt     time.Time    `json:"startedAt"`
	SubmittedAt   *time.Time   `json:"submittedAt,omitempty"`
	Score         *float64     `json:"score,omitempty"`
	IsPassed      bool         `gorm:"default:false" json:"isPassed"`
	TimeSpent     *int         `json:"timeSpent,omitempty"` // 秒
	Answers       []QuizAnswer `gorm:"foreignKey:SubmissionID" json:"answers,omitempty"`
}

func (QuizSubmission) TableName() string {
	return "quiz_submissions"
}

type QuizAnswer struct {
	BaseModel
	SubmissionID uint       `gorm:"index:idx_submission_question,unique;not null" json:"submissionId"`
	QuestionID   uint       `gorm:"index:idx_submission_question,unique;not null" json:"questionId"`
	Answer       string     `gorm:"type:text" json:"answer"`
	IsCorrect    *bool      `json:"isCorrect,omitempty"` // 主观题在评分前为 null
	PointsEarned float64    `gorm:"default:0" json:"pointsEarned"`
	Feedback     string     `gorm:"type:text" json:"feedback,omitempty"`
	GradedBy     *uint      `json:"gradedBy,omitempty"`
	GradedAt     *time.Time `json:"gradedAt,omitempty"`
}

func (QuizAnswer) TableName() string {
	return "quiz_answers"
}
