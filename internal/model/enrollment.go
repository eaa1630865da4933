package model

import "time"

// Enrollment 用户与课程的选课关系，Progress 由聚合器派生，禁止直接写入
type Enrollment struct {
	BaseModel
	UserID     uint      `gorm:"index:idx_user_course,unique;not null" json:"userId"`
	CourseID   uint      `gorm:"index:idx_user_course,unique;not null" json:"courseId"`
	Progress   int       `gorm:"default:0" json:"progress"`
	Grade      *float64  `json:"grade,omitempty"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
