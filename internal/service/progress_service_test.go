package service

import (
	"context"
	"testing"

	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUpsertResourceProgressRequiresEnrollment(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	module := env.seedModule(t, course.ID, true)
	resource := env.seedResource(t, module.ID, true)

	_, _, err := env.progress.UpsertResourceProgress(context.Background(), student.ID, resource.ID,
		ResourceProgressPatch{IsCompleted: boolPtr(true)})
	assert.ErrorIs(t, err, util.ErrNotEnrolled)
}

func TestUpsertResourceProgressUnknownResource(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)

	_, _, err := env.progress.UpsertResourceProgress(context.Background(), student.ID, 9999,
		ResourceProgressPatch{IsCompleted: boolPtr(true)})
	assert.ErrorIs(t, err, util.ErrResourceNotFound)
}

func TestUpsertResourceProgressMergesPatch(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	module := env.seedModule(t, course.ID, true)
	resource := env.seedResource(t, module.ID, true)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	_, _, err := env.progress.UpsertResourceProgress(ctx, student.ID, resource.ID,
		ResourceProgressPatch{TimeSpent: intPtr(120)})
	require.NoError(t, err)

	record, _, err := env.progress.UpsertResourceProgress(ctx, student.ID, resource.ID,
		ResourceProgressPatch{LastPosition: intPtr(30)})
	require.NoError(t, err)

	// 分次补丁互不覆盖
	assert.Equal(t, 120, record.TimeSpent)
	assert.Equal(t, 30, record.LastPosition)
	assert.False(t, record.IsCompleted)
	assert.Nil(t, record.CompletedAt)
}

func TestResourceCompletionCascadesToModuleAndCourse(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	module := env.seedModule(t, course.ID, true)
	res1 := env.seedResource(t, module.ID, true)
	res2 := env.seedResource(t, module.ID, true)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()

	// 完成一半必修资源：模块未判完成，不发事件
	_, events, err := env.progress.UpsertResourceProgress(ctx, student.ID, res1.ID,
		ResourceProgressPatch{IsCompleted: boolPtr(true)})
	require.NoError(t, err)
	assert.Empty(t, events)

	var mp model.ModuleProgress
	require.NoError(t, env.db.Where("user_id = ? AND module_id = ?", student.ID, module.ID).
		First(&mp).Error)
	assert.False(t, mp.IsCompleted)
	assert.Equal(t, 0, env.courseProgress(t, student.ID, course.ID))

	// 补齐最后一个必修资源：模块完成与课程完成一次性级联发出
	record, events, err := env.progress.UpsertResourceProgress(ctx, student.ID, res2.ID,
		ResourceProgressPatch{IsCompleted: boolPtr(true)})
	require.NoError(t, err)
	require.NotNil(t, record.CompletedAt)
	require.Len(t, events, 2)
	assert.Equal(t, model.ModuleCompleted, events[0].Type)
	assert.Equal(t, model.CourseCompleted, events[1].Type)

	require.NoError(t, env.db.Where("user_id = ? AND module_id = ?", student.ID, module.ID).
		First(&mp).Error)
	assert.True(t, mp.IsCompleted)
	assert.NotNil(t, mp.CompletedAt)
	assert.Equal(t, 100, env.courseProgress(t, student.ID, course.ID))
	assert.EqualValues(t, 2, env.achievementCount(t, student.ID))
	assert.EqualValues(t, 2, env.notificationCount(t, student.ID))
}

func TestResourceCompletionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	module := env.seedModule(t, course.ID, true)
	resource := env.seedResource(t, module.ID, true)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	patch := ResourceProgressPatch{IsCompleted: boolPtr(true)}

	_, events, err := env.progress.UpsertResourceProgress(ctx, student.ID, resource.ID, patch)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// 重放同一补丁：状态不变、事件不重发
	_, events, err = env.progress.UpsertResourceProgress(ctx, student.ID, resource.ID, patch)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.EqualValues(t, 2, env.achievementCount(t, student.ID))
	assert.EqualValues(t, 2, env.notificationCount(t, student.ID))
}

func TestOptionalResourceDoesNotGateModule(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	module := env.seedModule(t, course.ID, true)
	required := env.seedResource(t, module.ID, true)
	env.seedResource(t, module.ID, false)
	env.enroll(t, student.ID, course.ID)

	_, events, err := env.progress.UpsertResourceProgress(context.Background(), student.ID, required.ID,
		ResourceProgressPatch{IsCompleted: boolPtr(true)})
	require.NoError(t, err)

	// 选修资源不计入判定，仅完成必修即判模块完成
	require.Len(t, events, 2)
	assert.Equal(t, model.ModuleCompleted, events[0].Type)
}

func TestOptionalResourcePersistsAsOptional(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	course := env.seedCourse(t, instructor.ID)
	module := env.seedModule(t, course.ID, true)
	optional := env.seedResource(t, module.ID, false)

	// false 不能被列默认值悄悄写成 true
	var stored model.ModuleResource
	require.NoError(t, env.db.First(&stored, optional.ID).Error)
	assert.False(t, stored.IsRequired)

	required, err := env.progress.CourseRepo.ListRequiredResources(module.ID)
	require.NoError(t, err)
	assert.Empty(t, required)
}

func TestModuleWithoutRequiredResourcesIsNotAutoCompleted(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	module := env.seedModule(t, course.ID, true)
	optional := env.seedResource(t, module.ID, false)
	env.enroll(t, student.ID, course.ID)

	_, events, err := env.progress.UpsertResourceProgress(context.Background(), student.ID, optional.ID,
		ResourceProgressPatch{IsCompleted: boolPtr(true)})
	require.NoError(t, err)
	assert.Empty(t, events)

	var mp model.ModuleProgress
	err = env.db.Where("user_id = ? AND module_id = ?", student.ID, module.ID).First(&mp).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Equal(t, 0, env.courseProgress(t, student.ID, course.ID))
}

func TestModuleCompletionDoesNotRegress(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	module := env.seedModule(t, course.ID, true)
	resource := env.seedResource(t, module.ID, true)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	_, events, err := env.progress.UpsertResourceProgress(ctx, student.ID, resource.ID,
		ResourceProgressPatch{IsCompleted: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, events, 2)

	// 资源被取消完成：模块与课程完成状态只进不退
	_, events, err = env.progress.UpsertResourceProgress(ctx, student.ID, resource.ID,
		ResourceProgressPatch{IsCompleted: boolPtr(false)})
	require.NoError(t, err)
	assert.Empty(t, events)

	var mp model.ModuleProgress
	require.NoError(t, env.db.Where("user_id = ? AND module_id = ?", student.ID, module.ID).
		First(&mp).Error)
	assert.True(t, mp.IsCompleted)
	assert.Equal(t, 100, env.courseProgress(t, student.ID, course.ID))
}

func TestUnmarkResourceKeepsCompletionTimestamp(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	module := env.seedModule(t, course.ID, true)
	resource := env.seedResource(t, module.ID, true)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	record, _, err := env.progress.UpsertResourceProgress(ctx, student.ID, resource.ID,
		ResourceProgressPatch{IsCompleted: boolPtr(true)})
	require.NoError(t, err)
	require.NotNil(t, record.CompletedAt)
	firstCompletion := *record.CompletedAt

	// 取消完成只翻转状态，首次完成时间戳保留
	record, _, err = env.progress.UpsertResourceProgress(ctx, student.ID, resource.ID,
		ResourceProgressPatch{IsCompleted: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, record.IsCompleted)
	require.NotNil(t, record.CompletedAt)
	assert.Equal(t, firstCompletion.Unix(), record.CompletedAt.Unix())

	var stored model.ResourceProgress
	require.NoError(t, env.db.Where("user_id = ? AND resource_id = ?", student.ID, resource.ID).
		First(&stored).Error)
	assert.False(t, stored.IsCompleted)
	assert.NotNil(t, stored.CompletedAt)
}

func TestCourseProgressRoundsToNearestPercent(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)

	resources := make([]*model.ModuleResource, 0, 3)
	for i := 0; i < 3; i++ {
		module := env.seedModule(t, course.ID, true)
		resources = append(resources, env.seedResource(t, module.ID, true))
	}
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, _, err := env.progress.UpsertResourceProgress(ctx, student.ID, resources[i].ID,
			ResourceProgressPatch{IsCompleted: boolPtr(true)})
		require.NoError(t, err)
	}

	// 2/3 → 66.67% 四舍五入为 67
	assert.Equal(t, 67, env.courseProgress(t, student.ID, course.ID))
	assert.EqualValues(t, 2, env.achievementCount(t, student.ID))
}

func TestUnpublishedModuleExcludedFromAggregation(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	published := env.seedModule(t, course.ID, true)
	env.seedModule(t, course.ID, false)
	resource := env.seedResource(t, published.ID, true)
	env.enroll(t, student.ID, course.ID)

	_, events, err := env.progress.UpsertResourceProgress(context.Background(), student.ID, resource.ID,
		ResourceProgressPatch{IsCompleted: boolPtr(true)})
	require.NoError(t, err)

	// 未发布模块不进分母，唯一已发布模块完成即课程完成
	require.Len(t, events, 2)
	assert.Equal(t, 100, env.courseProgress(t, student.ID, course.ID))
}

func TestOverrideModuleProgressEmitsOnFirstCompletionOnly(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	module := env.seedModule(t, course.ID, true)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	events, err := env.progress.OverrideModuleProgress(ctx, student.ID, module.ID,
		ModuleProgressOverride{IsCompleted: true})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 100, env.courseProgress(t, student.ID, course.ID))

	events, err = env.progress.OverrideModuleProgress(ctx, student.ID, module.ID,
		ModuleProgressOverride{IsCompleted: true})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.EqualValues(t, 2, env.achievementCount(t, student.ID))
}

func TestOverrideModuleProgressCanRevert(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	module := env.seedModule(t, course.ID, true)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	_, err := env.progress.OverrideModuleProgress(ctx, student.ID, module.ID,
		ModuleProgressOverride{IsCompleted: true})
	require.NoError(t, err)

	// 手动回撤重算聚合进度，但已发事件不追回
	events, err := env.progress.OverrideModuleProgress(ctx, student.ID, module.ID,
		ModuleProgressOverride{IsCompleted: false})
	require.NoError(t, err)
	assert.Empty(t, events)

	var mp model.ModuleProgress
	require.NoError(t, env.db.Where("user_id = ? AND module_id = ?", student.ID, module.ID).
		First(&mp).Error)
	assert.False(t, mp.IsCompleted)
	assert.Nil(t, mp.CompletedAt)
	assert.Equal(t, 0, env.courseProgress(t, student.ID, course.ID))
	assert.EqualValues(t, 2, env.achievementCount(t, student.ID))
}

func TestOverrideModuleProgressRequiresEnrollment(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	module := env.seedModule(t, course.ID, true)

	_, err := env.progress.OverrideModuleProgress(context.Background(), student.ID, module.ID,
		ModuleProgressOverride{IsCompleted: true})
	assert.ErrorIs(t, err, util.ErrNotEnrolled)
}

func TestReevaluateCourseIgnoresNonEnrolledUser(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	outsider := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	env.seedModule(t, course.ID, true)

	events, err := env.progress.ReevaluateCourse(context.Background(), outsider.ID, course.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGetResourceProgressReturnsZeroValueWhenAbsent(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	module := env.seedModule(t, course.ID, true)
	resource := env.seedResource(t, module.ID, true)

	record, err := env.progress.GetResourceProgress(student.ID, resource.ID)
	require.NoError(t, err)
	assert.Equal(t, student.ID, record.UserID)
	assert.Equal(t, resource.ID, record.ResourceID)
	assert.False(t, record.IsCompleted)
	assert.Zero(t, record.TimeSpent)
}

func TestGetCourseProgressOverview(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	mod1 := env.seedModule(t, course.ID, true)
	mod2 := env.seedModule(t, course.ID, true)
	res1 := env.seedResource(t, mod1.ID, true)
	env.seedResource(t, mod2.ID, true)
	env.enroll(t, student.ID, course.ID)

	_, _, err := env.progress.UpsertResourceProgress(context.Background(), student.ID, res1.ID,
		ResourceProgressPatch{IsCompleted: boolPtr(true)})
	require.NoError(t, err)

	view, err := env.progress.GetCourseProgress(student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, view.Progress)
	require.Len(t, view.Modules, 2)
	assert.True(t, view.Modules[0].IsCompleted)
	assert.False(t, view.Modules[1].IsCompleted)

	_, err = env.progress.GetCourseProgress(instructor.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)
}
