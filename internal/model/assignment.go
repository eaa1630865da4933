package model

import "time"

type Assignment struct {
	BaseModel
	CourseID    uint       `gorm:"index;not null" json:"courseId"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	MaxPoints   float64    `gorm:"default:100" json:"maxPoints"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
}

func (Assignment) TableName() string {
	return "assignments"
}

type AssignmentSubmission struct {
	BaseModel
	AssignmentID uint      `gorm:"index:idx_assignment_user,unique;not null" json:"assignmentId"`
	UserID       uint      `gorm:"index:idx_assignment_user,unique;not null" json:"userId"`
	Content      string    `gorm:"type:text" json:"content"`
	FileURL      string    `gorm:"size:512" json:"fileUrl"`
	SubmittedAt  time.Time `json:"submittedAt"`
	Grade        *float64  `json:"grade,omitempty"`
	Feedback     string    `gorm:"type:text" json:"feedback,omitempty"`
}

func (AssignmentSubmission) TableName() string {
	return "assignment_submissions"
}
