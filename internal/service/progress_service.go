package service

import (
	"context"
	"errors"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ResourceProgressPatch 资源进度的部分更新，nil 字段不参与合并
type ResourceProgressPatch struct {
	IsCompleted  *bool `json:"isCompleted"`
	TimeSpent    *int  `json:"timeSpent" binding:"omitempty,min=0"`
	LastPosition *int  `json:"lastPosition" binding:"omitempty,min=0"`
}

// ModuleProgressOverride 手动覆盖模块完成状态（如线下活动）
type ModuleProgressOverride struct {
	IsCompleted bool `json:"isCompleted"`
}

// ModuleProgressView 单个模块的进度视图
type ModuleProgressView struct {
	ModuleID    uint       `json:"moduleId"`
	Title       string     `json:"title"`
	IsCompleted bool       `json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// CourseProgressView 课程进度总览
type CourseProgressView struct {
	CourseID uint                 `json:"courseId"`
	Progress int                  `json:"progress"`
	Modules  []ModuleProgressView `json:"modules"`
}

// ProgressService 完成度级联引擎：资源进度驱动模块完成判定，
// 模块完成驱动课程进度聚合，转变沿链路单向传播
type ProgressService struct {
	ProgressRepo   *repository.ProgressRepository
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Notifier       AchievementNotifier

	// 按 (user, course) 串行化级联评估，避免并发重算互相覆盖
	courseLocks sync.Map
}

func NewProgressService(
	progressRepo *repository.ProgressRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	notifier AchievementNotifier,
) *ProgressService {
	return &ProgressService{
		ProgressRepo:   progressRepo,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		Notifier:       notifier,
	}
}

func (s *ProgressService) lockCourse(userID, courseID uint) *sync.Mutex {
	key := fmt.Sprintf("%d:%d", userID, courseID)
	actual, _ := s.courseLocks.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// UpsertResourceProgress 合并资源进度补丁并触发完成度级联。
// 学员必须已选该资源所在课程
func (s *ProgressService) UpsertResourceProgress(ctx context.Context, userID, resourceID uint, patch ResourceProgressPatch) (*model.ResourceProgress, []EmittedEvent, error) {
	resource, err := s.CourseRepo.FindResourceByID(resourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrResourceNotFound
		}
		return nil, nil, err
	}

	module, err := s.CourseRepo.FindModuleByID(resource.ModuleID)
	if err != nil {
		return nil, nil, err
	}

	enrolled, err := s.EnrollmentRepo.Exists(userID, module.CourseID)
	if err != nil {
		return nil, nil, err
	}
	if !enrolled {
		return nil, nil, util.ErrNotEnrolled
	}

	record, err := s.ProgressRepo.FindResourceProgress(userID, resourceID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, err
		}
		record = &model.ResourceProgress{UserID: userID, ResourceID: resourceID}
	}

	if patch.TimeSpent != nil {
		record.TimeSpent = *patch.TimeSpent
	}
	if patch.LastPosition != nil {
		record.LastPosition = *patch.LastPosition
	}
	if patch.IsCompleted != nil {
		// 取消完成只翻转状态，首次完成时间戳保留
		if *patch.IsCompleted && !record.IsCompleted {
			now := time.Now()
			record.CompletedAt = &now
		}
		record.IsCompleted = *patch.IsCompleted
	}

	if err := s.ProgressRepo.UpsertResourceProgress(record); err != nil {
		return nil, nil, err
	}

	events, err := s.reevaluateModule(ctx, userID, module)
	if err != nil {
		return nil, nil, err
	}
	return record, events, nil
}

// ReevaluateModule 重算单个模块的完成状态并向上级联课程进度
func (s *ProgressService) ReevaluateModule(ctx context.Context, userID, moduleID uint) ([]EmittedEvent, error) {
	module, err := s.CourseRepo.FindModuleByID(moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrModuleNotFound
		}
		return nil, err
	}
	return s.reevaluateModule(ctx, userID, module)
}

func (s *ProgressService) reevaluateModule(ctx context.Context, userID uint, module *model.CourseModule) ([]EmittedEvent, error) {
	lock := s.lockCourse(userID, module.CourseID)
	lock.Lock()
	defer lock.Unlock()

	required, err := s.CourseRepo.ListRequiredResources(module.ID)
	if err != nil {
		return nil, err
	}
	// 没有必修资源的模块不自动判完成，等待手动覆盖或资源上架
	if len(required) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(required))
	for _, res := range required {
		ids = append(ids, res.ID)
	}
	completions, err := s.ProgressRepo.GetResourceCompletions(userID, ids)
	if err != nil {
		return nil, err
	}

	allCompleted := true
	for _, id := range ids {
		if !completions[id] {
			allCompleted = false
			break
		}
	}

	prior, err := s.ProgressRepo.FindModuleProgress(userID, module.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	record := &model.ModuleProgress{
		UserID:         userID,
		ModuleID:       module.ID,
		LastAccessedAt: now,
	}
	if prior != nil {
		record.IsCompleted = prior.IsCompleted
		record.CompletedAt = prior.CompletedAt
	}

	var events []EmittedEvent
	// 完成状态只进不退：资源被取消完成不回撤已判定的模块完成
	if allCompleted && !record.IsCompleted {
		record.IsCompleted = true
		record.CompletedAt = &now

		course, err := s.CourseRepo.FindByID(module.CourseID)
		if err != nil {
			return nil, err
		}
		emitted, err := s.Notifier.NotifyModuleCompleted(ctx, ModuleCompletedEvent{
			UserID:      userID,
			ModuleID:    module.ID,
			ModuleTitle: module.Title,
			CourseTitle: course.Title,
		})
		if err != nil {
			return nil, err
		}
		if emitted {
			events = append(events, EmittedEvent{
				Type:  model.ModuleCompleted,
				Key:   fmt.Sprintf("module_completed:%d", module.ID),
				Title: module.Title,
			})
		}
	}

	if err := s.ProgressRepo.UpsertModuleProgress(record); err != nil {
		return nil, err
	}

	courseEvents, err := s.reevaluateCourseLocked(ctx, userID, module.CourseID)
	if err != nil {
		return nil, err
	}
	return append(events, courseEvents...), nil
}

// ReevaluateCourse 重算课程聚合进度（如模块上下架后由讲师触发全量重算）
func (s *ProgressService) ReevaluateCourse(ctx context.Context, userID, courseID uint) ([]EmittedEvent, error) {
	lock := s.lockCourse(userID, courseID)
	lock.Lock()
	defer lock.Unlock()
	return s.reevaluateCourseLocked(ctx, userID, courseID)
}

func (s *ProgressService) reevaluateCourseLocked(ctx context.Context, userID, courseID uint) ([]EmittedEvent, error) {
	modules, err := s.CourseRepo.ListPublishedModules(courseID)
	if err != nil {
		return nil, err
	}
	// 没有已发布模块时进度无定义，保持现值不动
	if len(modules) == 0 {
		return nil, nil
	}

	enrollment, err := s.EnrollmentRepo.Find(userID, courseID)
	if err != nil {
		// 讲师预览等未选课场景：不维护聚合进度
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	ids := make([]uint, 0, len(modules))
	for _, m := range modules {
		ids = append(ids, m.ID)
	}
	completions, err := s.ProgressRepo.GetModuleCompletions(userID, ids)
	if err != nil {
		return nil, err
	}

	completed := 0
	for _, id := range ids {
		if completions[id] {
			completed++
		}
	}
	progress := int(math.Round(float64(completed) / float64(len(modules)) * 100))

	prev := enrollment.Progress
	if progress != prev {
		if err := s.EnrollmentRepo.UpdateProgress(enrollment.ID, progress); err != nil {
			return nil, err
		}
		logger.Log.Debug("课程进度已更新",
			zap.Uint("userID", userID),
			zap.Uint("courseID", courseID),
			zap.Int("from", prev),
			zap.Int("to", progress))
	}

	if progress == 100 && prev < 100 {
		course, err := s.CourseRepo.FindByID(courseID)
		if err != nil {
			return nil, err
		}
		emitted, err := s.Notifier.NotifyCourseCompleted(ctx, CourseCompletedEvent{
			UserID:      userID,
			CourseID:    courseID,
			CourseTitle: course.Title,
		})
		if err != nil {
			return nil, err
		}
		if emitted {
			return []EmittedEvent{{
				Type:  model.CourseCompleted,
				Key:   fmt.Sprintf("course_completed:%d", courseID),
				Title: course.Title,
			}}, nil
		}
	}
	return nil, nil
}

// OverrideModuleProgress 手动覆盖模块完成状态。首次置为完成照常触发成就，
// 覆盖为未完成只回写状态，不撤销已发出的事件
func (s *ProgressService) OverrideModuleProgress(ctx context.Context, userID, moduleID uint, override ModuleProgressOverride) ([]EmittedEvent, error) {
	module, err := s.CourseRepo.FindModuleByID(moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrModuleNotFound
		}
		return nil, err
	}

	enrolled, err := s.EnrollmentRepo.Exists(userID, module.CourseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	lock := s.lockCourse(userID, module.CourseID)
	lock.Lock()
	defer lock.Unlock()

	prior, err := s.ProgressRepo.FindModuleProgress(userID, moduleID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	record := &model.ModuleProgress{
		UserID:         userID,
		ModuleID:       moduleID,
		IsCompleted:    override.IsCompleted,
		LastAccessedAt: now,
	}
	if prior != nil {
		record.CompletedAt = prior.CompletedAt
	}

	var events []EmittedEvent
	if override.IsCompleted && (prior == nil || !prior.IsCompleted) {
		record.CompletedAt = &now

		course, err := s.CourseRepo.FindByID(module.CourseID)
		if err != nil {
			return nil, err
		}
		emitted, err := s.Notifier.NotifyModuleCompleted(ctx, ModuleCompletedEvent{
			UserID:      userID,
			ModuleID:    moduleID,
			ModuleTitle: module.Title,
			CourseTitle: course.Title,
		})
		if err != nil {
			return nil, err
		}
		if emitted {
			events = append(events, EmittedEvent{
				Type:  model.ModuleCompleted,
				Key:   fmt.Sprintf("module_completed:%d", moduleID),
				Title: module.Title,
			})
		}
	}
	if !override.IsCompleted {
		record.CompletedAt = nil
	}

	if err := s.ProgressRepo.UpsertModuleProgress(record); err != nil {
		return nil, err
	}

	courseEvents, err := s.reevaluateCourseLocked(ctx, userID, module.CourseID)
	if err != nil {
		return nil, err
	}
	return append(events, courseEvents...), nil
}

// GetResourceProgress 查询单个资源的进度，未记录时返回零值视图
func (s *ProgressService) GetResourceProgress(userID, resourceID uint) (*model.ResourceProgress, error) {
	if _, err := s.CourseRepo.FindResourceByID(resourceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrResourceNotFound
		}
		return nil, err
	}

	record, err := s.ProgressRepo.FindResourceProgress(userID, resourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.ResourceProgress{UserID: userID, ResourceID: resourceID}, nil
		}
		return nil, err
	}
	return record, nil
}

// GetCourseProgress 课程进度总览：聚合百分比加各已发布模块的完成状态
func (s *ProgressService) GetCourseProgress(userID, courseID uint) (*CourseProgressView, error) {
	enrollment, err := s.EnrollmentRepo.Find(userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotEnrolled
		}
		return nil, err
	}

	modules, err := s.CourseRepo.ListPublishedModules(courseID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(modules))
	for _, m := range modules {
		ids = append(ids, m.ID)
	}
	records, err := s.ProgressRepo.ListModuleProgressByUser(userID, ids)
	if err != nil {
		return nil, err
	}
	byModule := make(map[uint]*model.ModuleProgress, len(records))
	for i := range records {
		byModule[records[i].ModuleID] = &records[i]
	}

	view := &CourseProgressView{
		CourseID: courseID,
		Progress: enrollment.Progress,
		Modules:  make([]ModuleProgressView, 0, len(modules)),
	}
	for _, m := range modules {
		item := ModuleProgressView{ModuleID: m.ID, Title: m.Title}
		if rec, ok := byModule[m.ID]; ok {
			item.IsCompleted = rec.IsCompleted
			item.CompletedAt = rec.CompletedAt
		}
		view.Modules = append(view.Modules, item)
	}
	return view, nil
}
