package model

import "time"

// Certificate 结业证书，存在即已颁发，不会自动吊销
type Certificate struct {
	BaseModel
	UserID       uint      `gorm:"index:idx_user_course_cert,unique;not null" json:"userId"`
	CourseID     uint      `gorm:"index:idx_user_course_cert,unique;not null" json:"courseId"`
	SerialNumber string    `gorm:"size:64;unique;not null" json:"serialNumber"`
	FileURL      string    `gorm:"size:512" json:"fileUrl"`
	IssuedAt     time.Time `json:"issuedAt"`
}

func (Certificate) TableName() string {
	return "certificates"
}
