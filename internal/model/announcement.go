package model

type Announcement struct {
	BaseModel
	CourseID uint   `gorm:"index;not null" json:"courseId"`
	AuthorID uint   `gorm:"index;not null" json:"authorId"`
	Title    string `gorm:"size:255;not null" json:"title"`
	Content  string `gorm:"type:text" json:"content"`
	IsPinned bool   `gorm:"default:false" json:"isPinned"`
}

func (Announcement) TableName() string {
	return "announcements"
}
