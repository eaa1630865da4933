package service

import (
	"context"
	"testing"

	"lms_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyModuleCompletedClaimsExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)

	ctx := context.Background()
	ev := ModuleCompletedEvent{
		UserID:      student.ID,
		ModuleID:    42,
		ModuleTitle: "并发编程",
		CourseTitle: "Go 实战",
	}

	emitted, err := env.notifications.NotifyModuleCompleted(ctx, ev)
	require.NoError(t, err)
	assert.True(t, emitted)

	// 第二次抢占落空，通知不重复投递
	emitted, err = env.notifications.NotifyModuleCompleted(ctx, ev)
	require.NoError(t, err)
	assert.False(t, emitted)

	assert.EqualValues(t, 1, env.achievementCount(t, student.ID))
	assert.EqualValues(t, 1, env.notificationCount(t, student.ID))
}

func TestNotifyDedupeIsScopedPerUser(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, model.Student)
	bob := env.seedUser(t, model.Student)

	ctx := context.Background()
	for _, userID := range []uint{alice.ID, bob.ID} {
		emitted, err := env.notifications.NotifyCourseCompleted(ctx, CourseCompletedEvent{
			UserID:      userID,
			CourseID:    7,
			CourseTitle: "Go 实战",
		})
		require.NoError(t, err)
		assert.True(t, emitted)
	}

	assert.EqualValues(t, 1, env.notificationCount(t, alice.ID))
	assert.EqualValues(t, 1, env.notificationCount(t, bob.ID))
}

func TestQuizNotificationDedupedBySubmission(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)

	ctx := context.Background()
	base := QuizCompletedEvent{
		UserID:    student.ID,
		QuizID:    3,
		QuizTitle: "单元测验",
		Score:     88.5,
		IsPassed:  true,
	}

	// 同测验的两次提交是两个事件
	for _, subID := range []uint{100, 101} {
		ev := base
		ev.SubmissionID = subID
		emitted, err := env.notifications.NotifyQuizCompleted(ctx, ev)
		require.NoError(t, err)
		assert.True(t, emitted)
	}

	ev := base
	ev.SubmissionID = 100
	emitted, err := env.notifications.NotifyQuizCompleted(ctx, ev)
	require.NoError(t, err)
	assert.False(t, emitted)

	assert.EqualValues(t, 2, env.notificationCount(t, student.ID))
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)

	ctx := context.Background()
	for i := uint(1); i <= 3; i++ {
		_, err := env.notifications.NotifyModuleCompleted(ctx, ModuleCompletedEvent{
			UserID:      student.ID,
			ModuleID:    i,
			ModuleTitle: "模块",
			CourseTitle: "课程",
		})
		require.NoError(t, err)
	}

	count, err := env.notifications.UnreadCount(ctx, student.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	notifications, total, err := env.notifications.ListNotifications(student.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.NotEmpty(t, notifications)

	require.NoError(t, env.notifications.MarkRead(student.ID, notifications[0].ID))
	count, err = env.notifications.UnreadCount(ctx, student.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	require.NoError(t, env.notifications.MarkAllRead(student.ID))
	count, err = env.notifications.UnreadCount(ctx, student.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	var read model.Notification
	require.NoError(t, env.db.First(&read, notifications[0].ID).Error)
	assert.True(t, read.IsRead)
	assert.NotNil(t, read.ReadAt)
}
