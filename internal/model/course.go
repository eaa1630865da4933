package model

type Course struct {
	BaseModel
	Title        string         `gorm:"size:255;not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	CoverURL     string         `gorm:"size:255" json:"coverUrl"`
	Category     string         `gorm:"size:100" json:"category"`
	InstructorID uint           `gorm:"index;not null" json:"instructorId"`
	IsPublished  bool           `gorm:"default:false" json:"isPublished"`
	Modules      []CourseModule `gorm:"foreignKey:CourseID" json:"modules,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

type CourseModule struct {
	BaseModel
	CourseID    uint             `gorm:"index;not null" json:"courseId"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	Order       int              `gorm:"default:0" json:"order"`
	IsPublished bool             `gorm:"default:false" json:"isPublished"`
	Resources   []ModuleResource `gorm:"foreignKey:ModuleID" json:"resources,omitempty"`
}

func (CourseModule) TableName() string {
	return "course_modules"
}

type ResourceType string

const (
	ResourceVideo   ResourceType = "video"
	ResourceArticle ResourceType = "article"
	ResourceFile    ResourceType = "file"
	ResourceLink    ResourceType = "link"
)

// ModuleResource 模块下的学习资源，IsRequired 的资源计入模块完成度
type ModuleResource struct {
	BaseModel
	ModuleID        uint         `gorm:"index;not null" json:"moduleId"`
	Title           string       `gorm:"size:255;not null" json:"title"`
	Type            ResourceType `gorm:"type:varchar(16);default:'article'" json:"type"`
	URL             string       `gorm:"size:512" json:"url"`
	Content         string       `gorm:"type:text" json:"content"`
	DurationSeconds int          `gorm:"default:0" json:"durationSeconds"`
	// 不设列默认值：GORM 对带默认值标签的零值字段不落盘，false 会被写成 true
	IsRequired      bool         `gorm:"not null" json:"isRequired"`
	Order           int          `gorm:"default:0" json:"order"`
}

func (ModuleResource) TableName() string {
	return "module_resources"
}
