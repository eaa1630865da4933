package util

import "errors"

var (
	ErrUserNotFound         = errors.New("用户不存在")
	ErrEmailRegistered      = errors.New("该邮箱已被注册")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrNotEnrolled          = errors.New("not enrolled in this course")
	ErrAlreadyEnrolled      = errors.New("already enrolled in this course")
	ErrCourseNotFound       = errors.New("course not found")
	ErrModuleNotFound       = errors.New("module not found")
	ErrResourceNotFound     = errors.New("resource not found")
	ErrQuizNotFound         = errors.New("quiz not found")
	ErrAssignmentNotFound   = errors.New("assignment not found")
	ErrAnnouncementNotFound = errors.New("announcement not found")
	ErrQuizNotPublished     = errors.New("quiz not published")
	ErrMaxAttemptsReached   = errors.New("max attempts reached")
	ErrSubmissionNotFound   = errors.New("submission not found")
	ErrAlreadySubmitted     = errors.New("already submitted")
	ErrNotSubmitted         = errors.New("submission not finalized yet")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrAnswerNotFound       = errors.New("answer not found")
	ErrGradeOutOfRange      = errors.New("grade outside allowed point range")
	ErrConflict             = errors.New("concurrent write conflict, retry")
	ErrNotEligible          = errors.New("certificate requirements not met")
)
