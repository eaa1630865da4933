package service

import (
	"context"
	"errors"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CourseService 课程、模块与资源的内容管理，以及选课关系
type CourseService struct {
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Storage        *StorageService
	Progress       *ProgressService
}

func NewCourseService(
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	storage *StorageService,
	progress *ProgressService,
) *CourseService {
	return &CourseService{
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		Storage:        storage,
		Progress:       progress,
	}
}

type CourseCreateRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
	CoverURL    string `json:"coverUrl"`
	Category    string `json:"category"`
}

func (s *CourseService) CreateCourse(instructorID uint, req CourseCreateRequest) (*model.Course, error) {
	course := &model.Course{
		Title:        req.Title,
		Description:  req.Description,
		CoverURL:     req.CoverURL,
		Category:     req.Category,
		InstructorID: instructorID,
	}
	if err := s.CourseRepo.Create(course); err != nil {
		return nil, err
	}
	return course, nil
}

type CourseUpdateRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Description *string `json:"description"`
	CoverURL    *string `json:"coverUrl"`
	Category    *string `json:"category"`
	IsPublished *bool   `json:"isPublished"`
}

func (s *CourseService) UpdateCourse(instructorID, courseID uint, req CourseUpdateRequest) (*model.Course, error) {
	course, err := s.ownedCourse(instructorID, courseID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.CoverURL != nil {
		course.CoverURL = *req.CoverURL
	}
	if req.Category != nil {
		course.Category = *req.Category
	}
	if req.IsPublished != nil {
		course.IsPublished = *req.IsPublished
	}
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) DeleteCourse(instructorID, courseID uint) error {
	if _, err := s.ownedCourse(instructorID, courseID); err != nil {
		return err
	}
	return s.CourseRepo.Delete(courseID)
}

func (s *CourseService) GetCourse(courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByIDWithModules(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	return course, nil
}

func (s *CourseService) ListCourses(page, limit int, onlyPublished bool) ([]model.Course, int64, error) {
	return s.CourseRepo.List(page, limit, onlyPublished)
}

func (s *CourseService) ListInstructorCourses(instructorID uint) ([]model.Course, error) {
	return s.CourseRepo.ListByInstructor(instructorID)
}

func (s *CourseService) ownedCourse(instructorID, courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if course.InstructorID != instructorID {
		return nil, util.ErrPermissionDenied
	}
	return course, nil
}

// Enroll 学员选课，只能选已发布课程
func (s *CourseService) Enroll(userID, courseID uint) (*model.Enrollment, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if !course.IsPublished {
		return nil, util.ErrCourseNotFound
	}

	enrolled, err := s.EnrollmentRepo.Exists(userID, courseID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, util.ErrAlreadyEnrolled
	}

	enrollment := &model.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now(),
	}
	if err := s.EnrollmentRepo.Create(enrollment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrAlreadyEnrolled
		}
		return nil, err
	}
	return enrollment, nil
}

func (s *CourseService) Unenroll(userID, courseID uint) error {
	enrolled, err := s.EnrollmentRepo.Exists(userID, courseID)
	if err != nil {
		return err
	}
	if !enrolled {
		return util.ErrNotEnrolled
	}
	return s.EnrollmentRepo.Delete(userID, courseID)
}

func (s *CourseService) ListEnrollments(userID uint) ([]model.Enrollment, error) {
	return s.EnrollmentRepo.ListByUser(userID)
}

func (s *CourseService) ListCourseEnrollments(instructorID, courseID uint) ([]model.Enrollment, error) {
	if _, err := s.ownedCourse(instructorID, courseID); err != nil {
		return nil, err
	}
	return s.EnrollmentRepo.ListByCourse(courseID)
}

type ModuleCreateRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

func (s *CourseService) CreateModule(instructorID, courseID uint, req ModuleCreateRequest) (*model.CourseModule, error) {
	if _, err := s.ownedCourse(instructorID, courseID); err != nil {
		return nil, err
	}

	module := &model.CourseModule{
		CourseID:    courseID,
		Title:       req.Title,
		Description: req.Description,
		Order:       req.Order,
	}
	if err := s.CourseRepo.CreateModule(module); err != nil {
		return nil, err
	}
	return module, nil
}

type ModuleUpdateRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Description *string `json:"description"`
	Order       *int    `json:"order"`
	IsPublished *bool   `json:"isPublished"`
}

// UpdateModule 模块上下架会改变课程进度的分母，由调用方决定是否触发重算
func (s *CourseService) UpdateModule(instructorID, moduleID uint, req ModuleUpdateRequest) (*model.CourseModule, error) {
	module, err := s.CourseRepo.FindModuleByID(moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrModuleNotFound
		}
		return nil, err
	}
	if _, err := s.ownedCourse(instructorID, module.CourseID); err != nil {
		return nil, err
	}

	if req.Title != nil {
		module.Title = *req.Title
	}
	if req.Description != nil {
		module.Description = *req.Description
	}
	if req.Order != nil {
		module.Order = *req.Order
	}
	if req.IsPublished != nil {
		module.IsPublished = *req.IsPublished
	}
	if err := s.CourseRepo.UpdateModule(module); err != nil {
		return nil, err
	}
	return module, nil
}

func (s *CourseService) DeleteModule(instructorID, moduleID uint) error {
	module, err := s.CourseRepo.FindModuleByID(moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrModuleNotFound
		}
		return err
	}
	if _, err := s.ownedCourse(instructorID, module.CourseID); err != nil {
		return err
	}
	return s.CourseRepo.DeleteModule(moduleID)
}

// RecomputeCourseProgress 讲师调整模块/资源结构后，为全体选课学员重算进度
func (s *CourseService) RecomputeCourseProgress(ctx context.Context, instructorID, courseID uint) error {
	if _, err := s.ownedCourse(instructorID, courseID); err != nil {
		return err
	}
	enrollments, err := s.EnrollmentRepo.ListByCourse(courseID)
	if err != nil {
		return err
	}
	for _, enrollment := range enrollments {
		if _, err := s.Progress.ReevaluateCourse(ctx, enrollment.UserID, courseID); err != nil {
			logger.Log.Error("选课进度重算失败",
				zap.Uint("userID", enrollment.UserID),
				zap.Uint("courseID", courseID),
				zap.Error(err))
		}
	}
	return nil
}

type ResourceCreateRequest struct {
	Title           string             `json:"title" binding:"required,max=255"`
	Type            model.ResourceType `json:"type" binding:"required,oneof=video article file link"`
	URL             string             `json:"url"`
	Content         string             `json:"content"`
	DurationSeconds int                `json:"durationSeconds" binding:"omitempty,min=0"`
	IsRequired      *bool              `json:"isRequired"`
	Order           int                `json:"order"`
}

func (s *CourseService) CreateResource(instructorID, moduleID uint, req ResourceCreateRequest) (*model.ModuleResource, error) {
	module, err := s.CourseRepo.FindModuleByID(moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrModuleNotFound
		}
		return nil, err
	}
	if _, err := s.ownedCourse(instructorID, module.CourseID); err != nil {
		return nil, err
	}

	isRequired := true
	if req.IsRequired != nil {
		isRequired = *req.IsRequired
	}
	resource := &model.ModuleResource{
		ModuleID:        moduleID,
		Title:           req.Title,
		Type:            req.Type,
		URL:             req.URL,
		Content:         req.Content,
		DurationSeconds: req.DurationSeconds,
		IsRequired:      isRequired,
		Order:           req.Order,
	}
	if err := s.CourseRepo.CreateResource(resource); err != nil {
		return nil, err
	}
	return resource, nil
}

// UploadResourceFile 上传资源文件。视频会探测时长回填 DurationSeconds
func (s *CourseService) UploadResourceFile(ctx context.Context, instructorID, moduleID uint, title string, file *multipart.FileHeader) (*model.ModuleResource, error) {
	module, err := s.CourseRepo.FindModuleByID(moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrModuleNotFound
		}
		return nil, err
	}
	if _, err := s.ownedCourse(instructorID, module.CourseID); err != nil {
		return nil, err
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	mimeType, err := util.ValidateMimeType(src, []string{util.MimeVideo, util.MimeImage, util.MimePDF, "text/", "application/"})
	if err != nil {
		return nil, err
	}
	if _, err := src.Seek(0, 0); err != nil {
		return nil, err
	}

	resourceType := model.ResourceFile
	duration := 0
	if util.IsVideo(mimeType) {
		resourceType = model.ResourceVideo

		// ffprobe 只认本地路径，先落临时文件
		tmp, err := os.CreateTemp("", "resource-*"+filepath.Ext(file.Filename))
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp.Name())

		if _, err := tmp.ReadFrom(src); err != nil {
			tmp.Close()
			return nil, err
		}
		tmp.Close()

		if duration, err = util.ProbeVideoDuration(tmp.Name()); err != nil {
			logger.Log.Warn("视频时长探测失败", zap.String("file", file.Filename), zap.Error(err))
			duration = 0
		}
		if _, err := src.Seek(0, 0); err != nil {
			return nil, err
		}
	}

	filename := fmt.Sprintf("courses/%d/modules/%d/%s%s", module.CourseID, moduleID, uuid.New().String(), filepath.Ext(file.Filename))
	url, err := s.Storage.Upload(ctx, filename, src, file.Size, mimeType)
	if err != nil {
		return nil, err
	}

	resource := &model.ModuleResource{
		ModuleID:        moduleID,
		Title:           title,
		Type:            resourceType,
		URL:             url,
		DurationSeconds: duration,
	}
	if err := s.CourseRepo.CreateResource(resource); err != nil {
		return nil, err
	}
	return resource, nil
}

type ResourceUpdateRequest struct {
	Title           *string `json:"title" binding:"omitempty,max=255"`
	URL             *string `json:"url"`
	Content         *string `json:"content"`
	DurationSeconds *int    `json:"durationSeconds" binding:"omitempty,min=0"`
	IsRequired      *bool   `json:"isRequired"`
	Order           *int    `json:"order"`
}

func (s *CourseService) UpdateResource(instructorID, resourceID uint, req ResourceUpdateRequest) (*model.ModuleResource, error) {
	resource, err := s.CourseRepo.FindResourceByID(resourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrResourceNotFound
		}
		return nil, err
	}
	module, err := s.CourseRepo.FindModuleByID(resource.ModuleID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedCourse(instructorID, module.CourseID); err != nil {
		return nil, err
	}

	if req.Title != nil {
		resource.Title = *req.Title
	}
	if req.URL != nil {
		resource.URL = *req.URL
	}
	if req.Content != nil {
		resource.Content = *req.Content
	}
	if req.DurationSeconds != nil {
		resource.DurationSeconds = *req.DurationSeconds
	}
	if req.IsRequired != nil {
		resource.IsRequired = *req.IsRequired
	}
	if req.Order != nil {
		resource.Order = *req.Order
	}
	if err := s.CourseRepo.UpdateResource(resource); err != nil {
		return nil, err
	}
	return resource, nil
}

func (s *CourseService) DeleteResource(instructorID, resourceID uint) error {
	resource, err := s.CourseRepo.FindResourceByID(resourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrResourceNotFound
		}
		return err
	}
	module, err := s.CourseRepo.FindModuleByID(resource.ModuleID)
	if err != nil {
		return err
	}
	if _, err := s.ownedCourse(instructorID, module.CourseID); err != nil {
		return err
	}
	return s.CourseRepo.DeleteResource(resourceID)
}
