package model

import "time"

type AchievementType string

const (
	ModuleCompleted AchievementType = "module_completed"
	CourseCompleted AchievementType = "course_completed"
	QuizCompleted   AchievementType = "quiz_completed"
)

// AchievementEvent 成就事件去重表。唯一索引 (user_id, achievement_key) 保证
// 同一成就只有一次插入成功，只有抢到插入的请求才发通知。
type AchievementEvent struct {
	BaseModel
	UserID         uint            `gorm:"index:idx_user_achievement,unique;not null" json:"userId"`
	AchievementKey string          `gorm:"index:idx_user_achievement,unique;size:128;not null" json:"achievementKey"`
	Type           AchievementType `gorm:"size:32;not null" json:"type"`
	Payload        string          `gorm:"type:text" json:"payload,omitempty"`
}

func (AchievementEvent) TableName() string {
	return "achievement_events"
}

type Notification struct {
	BaseModel
	UserID uint            `gorm:"index;not null" json:"userId"`
	Type   AchievementType `gorm:"size:32;not null" json:"type"`
	Title  string          `gorm:"size:255;not null" json:"title"`
	Body   string          `gorm:"type:text" json:"body"`
	IsRead bool            `gorm:"default:false" json:"isRead"`
	ReadAt *time.Time      `json:"readAt,omitempty"`
}

func (Notification) TableName() string {
	return "notifications"
}
