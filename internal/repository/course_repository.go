package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// order 是保留字，排序统一走 clause 让 GORM 按方言加引号
func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}})
}

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.First(&course, id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) FindByIDWithModules(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.
		Preload("Modules", orderByPosition).
		Preload("Modules.Resources", orderByPosition).
		First(&course, id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) List(page, limit int, onlyPublished bool) ([]model.Course, int64, error) {
	query := r.DB.Model(&model.Course{})
	if onlyPublished {
		query = query.Where("is_published = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var courses []model.Course
	err := query.Offset((page - 1) * limit).Limit(limit).
		Order("created_at DESC").Find(&courses).Error
	return courses, total, err
}

func (r *CourseRepository) ListByInstructor(instructorID uint) ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.Where("instructor_id = ?", instructorID).
		Order("created_at DESC").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) Update(course *model.Course) error {
	return r.DB.Save(course).Error
}

func (r *CourseRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Course{}, id).Error
}

func (r *CourseRepository) FindModuleByID(id uint) (*model.CourseModule, error) {
	var module model.CourseModule
	err := r.DB.First(&module, id).Error
	if err != nil {
		return nil, err
	}
	return &module, nil
}

// ListPublishedModules 课程进度只统计已发布模块
func (r *CourseRepository) ListPublishedModules(courseID uint) ([]model.CourseModule, error) {
	var modules []model.CourseModule
	err := orderByPosition(r.DB.Where("course_id = ? AND is_published = ?", courseID, true)).
		Find(&modules).Error
	return modules, err
}

func (r *CourseRepository) ListModules(courseID uint) ([]model.CourseModule, error) {
	var modules []model.CourseModule
	err := orderByPosition(r.DB.Where("course_id = ?", courseID)).
		Find(&modules).Error
	return modules, err
}

func (r *CourseRepository) CreateModule(module *model.CourseModule) error {
	return r.DB.Create(module).Error
}

func (r *CourseRepository) UpdateModule(module *model.CourseModule) error {
	return r.DB.Save(module).Error
}

func (r *CourseRepository) DeleteModule(id uint) error {
	return r.DB.Delete(&model.CourseModule{}, id).Error
}

func (r *CourseRepository) FindResourceByID(id uint) (*model.ModuleResource, error) {
	var resource model.ModuleResource
	err := r.DB.First(&resource, id).Error
	if err != nil {
		return nil, err
	}
	return &resource, nil
}

// ListRequiredResources 仅 is_required 的资源计入模块完成判定
func (r *CourseRepository) ListRequiredResources(moduleID uint) ([]model.ModuleResource, error) {
	var resources []model.ModuleResource
	err := orderByPosition(r.DB.Where("module_id = ? AND is_required = ?", moduleID, true)).
		Find(&resources).Error
	return resources, err
}

func (r *CourseRepository) ListResources(moduleID uint) ([]model.ModuleResource, error) {
	var resources []model.ModuleResource
	err := orderByPosition(r.DB.Where("module_id = ?", moduleID)).
		Find(&resources).Error
	return resources, err
}

func (r *CourseRepository) CreateResource(resource *model.ModuleResource) error {
	return r.DB.Create(resource).Error
}

func (r *CourseRepository) UpdateResource(resource *model.ModuleResource) error {
	return r.DB.Save(resource).Error
}

func (r *CourseRepository) DeleteResource(id uint) error {
	return r.DB.Delete(&model.ModuleResource{}, id).Error
}
