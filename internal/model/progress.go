package model

import "time"

// ResourceProgress 记录用户对单个资源的完成状态，用户输入态
type ResourceProgress struct {
	BaseModel
	UserID       uint       `gorm:"index:idx_user_resource,unique;not null" json:"userId"`
	ResourceID   uint       `gorm:"index:idx_user_resource,unique;not null" json:"resourceId"`
	IsCompleted  bool       `gorm:"default:false" json:"isCompleted"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	TimeSpent    int        `gorm:"default:0" json:"timeSpent"`
	LastPosition int        `gorm:"default:0" json:"lastPosition"`
}

func (ResourceProgress) TableName() string {
	return "resource_progress"
}

// ModuleProgress 派生态，仅由模块完成度评估器写入
type ModuleProgress struct {
	BaseModel
	UserID         uint       `gorm:"index:idx_user_module,unique;not null" json:"userId"`
	ModuleID       uint       `gorm:"index:idx_user_module,unique;not null" json:"moduleId"`
	IsCompleted    bool       `gorm:"default:false" json:"isCompleted"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	LastAccessedAt time.Time  `json:"lastAccessedAt"`
}

func (ModuleProgress) TableName() string {
	return "module_progress"
}
