package service

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/pkg/logger"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// newTestDB 每个测试独享一个内存 SQLite 库，单连接保证库在用例期间存活
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.CourseModule{},
		&model.ModuleResource{},
		&model.Enrollment{},
		&model.ResourceProgress{},
		&model.ModuleProgress{},
		&model.Quiz{},
		&model.QuizQuestion{},
		&model.QuizSubmission{},
		&model.QuizAnswer{},
		&model.Assignment{},
		&model.AssignmentSubmission{},
		&model.Certificate{},
		&model.AchievementEvent{},
		&model.Notification{},
	))
	return db
}

type testEnv struct {
	db            *gorm.DB
	progress      *ProgressService
	quizzes       *QuizService
	certificates  *CertificateService
	notifications *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)

	progressRepo := repository.NewProgressRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// 测试不接 Redis，未读计数等路径走数据库回源
	notifier := NewNotificationService(notificationRepo, nil)
	return &testEnv{
		db:            db,
		progress:      NewProgressService(progressRepo, courseRepo, enrollmentRepo, notifier),
		quizzes:       NewQuizService(quizRepo, courseRepo, enrollmentRepo, notifier, nil),
		certificates:  NewCertificateService(certificateRepo, enrollmentRepo, assignmentRepo, courseRepo),
		notifications: notifier,
	}
}

var seedSeq uint64

func nextSeq() uint64 {
	return atomic.AddUint64(&seedSeq, 1)
}

func (e *testEnv) seedUser(t *testing.T, role model.UserRole) *model.User {
	t.Helper()
	user := &model.User{
		Name:     "测试用户",
		Email:    fmt.Sprintf("user%d@test.local", nextSeq()),
		Password: "secret",
		Role:     role,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) seedCourse(t *testing.T, instructorID uint) *model.Course {
	t.Helper()
	course := &model.Course{
		Title:        fmt.Sprintf("Go 实战 %d", nextSeq()),
		InstructorID: instructorID,
		IsPublished:  true,
	}
	require.NoError(t, e.db.Create(course).Error)
	return course
}

func (e *testEnv) seedModule(t *testing.T, courseID uint, published bool) *model.CourseModule {
	t.Helper()
	module := &model.CourseModule{
		CourseID:    courseID,
		Title:       fmt.Sprintf("模块 %d", nextSeq()),
		Order:       int(nextSeq()),
		IsPublished: published,
	}
	require.NoError(t, e.db.Create(module).Error)
	return module
}

func (e *testEnv) seedResource(t *testing.T, moduleID uint, required bool) *model.ModuleResource {
	t.Helper()
	resource := &model.ModuleResource{
		ModuleID:   moduleID,
		Title:      fmt.Sprintf("资源 %d", nextSeq()),
		Type:       model.ResourceArticle,
		IsRequired: required,
		Order:      int(nextSeq()),
	}
	require.NoError(t, e.db.Create(resource).Error)
	return resource
}

func (e *testEnv) enroll(t *testing.T, userID, courseID uint) *model.Enrollment {
	t.Helper()
	enrollment := &model.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now(),
	}
	require.NoError(t, e.db.Create(enrollment).Error)
	return enrollment
}

func (e *testEnv) courseProgress(t *testing.T, userID, courseID uint) int {
	t.Helper()
	var enrollment model.Enrollment
	require.NoError(t, e.db.Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error)
	return enrollment.Progress
}

func (e *testEnv) achievementCount(t *testing.T, userID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&model.AchievementEvent{}).
		Where("user_id = ?", userID).Count(&count).Error)
	return count
}

func (e *testEnv) notificationCount(t *testing.T, userID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&model.Notification{}).
		Where("user_id = ?", userID).Count(&count).Error)
	return count
}

func boolPtr(v bool) *bool {
	return &v
}

func intPtr(v int) *int {
	return &v
}
