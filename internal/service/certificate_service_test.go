package service

import (
	"testing"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) seedAssignment(t *testing.T, courseID uint) *model.Assignment {
	t.Helper()
	assignment := &model.Assignment{
		CourseID:  courseID,
		Title:     "课程作业",
		MaxPoints: 100,
	}
	require.NoError(t, e.db.Create(assignment).Error)
	return assignment
}

func (e *testEnv) submitAssignment(t *testing.T, assignmentID, userID uint) {
	t.Helper()
	submission := &model.AssignmentSubmission{
		AssignmentID: assignmentID,
		UserID:       userID,
		Content:      "已完成",
		SubmittedAt:  time.Now(),
	}
	require.NoError(t, e.db.Create(submission).Error)
}

func (e *testEnv) setProgress(t *testing.T, userID, courseID uint, progress int) {
	t.Helper()
	require.NoError(t, e.db.Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Update("progress", progress).Error)
}

func TestCheckEligibilityUnknownCourse(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)

	_, err := env.certificates.CheckEligibility(student.ID, 9999)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestCheckEligibilityNotEnrolled(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)

	result, err := env.certificates.CheckEligibility(student.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, "未选修该课程", result.Reason)
}

func TestCheckEligibilityProgressBoundary(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	env.enroll(t, student.ID, course.ID)

	// 99% 差一步也不行
	env.setProgress(t, student.ID, course.ID, 99)
	result, err := env.certificates.CheckEligibility(student.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.False(t, result.ProgressMet)
	assert.Equal(t, 99, result.Progress)

	env.setProgress(t, student.ID, course.ID, 100)
	result, err = env.certificates.CheckEligibility(student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.True(t, result.ProgressMet)
	assert.True(t, result.AssignmentsMet)
}

func TestCheckEligibilityRequiresAllAssignments(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	first := env.seedAssignment(t, course.ID)
	second := env.seedAssignment(t, course.ID)
	env.enroll(t, student.ID, course.ID)
	env.setProgress(t, student.ID, course.ID, 100)
	env.submitAssignment(t, first.ID, student.ID)

	result, err := env.certificates.CheckEligibility(student.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.False(t, result.AssignmentsMet)
	assert.EqualValues(t, 2, result.Assignments)
	assert.EqualValues(t, 1, result.Submitted)
	assert.Equal(t, "尚有作业未提交", result.Reason)

	env.submitAssignment(t, second.ID, student.ID)
	result, err = env.certificates.CheckEligibility(student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, result.Eligible)
}

func TestIssueCertificate(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	env.enroll(t, student.ID, course.ID)

	_, err := env.certificates.IssueCertificate(student.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrNotEligible)

	env.setProgress(t, student.ID, course.ID, 100)
	cert, err := env.certificates.IssueCertificate(student.ID, course.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, cert.SerialNumber)
	assert.False(t, cert.IssuedAt.IsZero())

	// 重复颁发返回同一张证书
	again, err := env.certificates.IssueCertificate(student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, again.ID)
	assert.Equal(t, cert.SerialNumber, again.SerialNumber)

	certs, err := env.certificates.ListUserCertificates(student.ID)
	require.NoError(t, err)
	assert.Len(t, certs, 1)
}

func TestCertificateSurvivesProgressRegression(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	env.enroll(t, student.ID, course.ID)
	env.setProgress(t, student.ID, course.ID, 100)

	cert, err := env.certificates.IssueCertificate(student.ID, course.ID)
	require.NoError(t, err)

	// 证书一经颁发不因进度回落吊销
	env.setProgress(t, student.ID, course.ID, 40)
	result, err := env.certificates.CheckEligibility(student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.True(t, result.HasCertificate)
	require.NotNil(t, result.Certificate)
	assert.Equal(t, cert.ID, result.Certificate.ID)
}
