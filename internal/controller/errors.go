package controller

import (
	"errors"
	"lms_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondError 把业务哨兵错误映射为 HTTP 状态码，未识别的错误记日志返回 500
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrUserNotFound),
		errors.Is(err, util.ErrCourseNotFound),
		errors.Is(err, util.ErrModuleNotFound),
		errors.Is(err, util.ErrResourceNotFound),
		errors.Is(err, util.ErrQuizNotFound),
		errors.Is(err, util.ErrAssignmentNotFound),
		errors.Is(err, util.ErrAnnouncementNotFound),
		errors.Is(err, util.ErrSubmissionNotFound),
		errors.Is(err, util.ErrQuestionNotFound),
		errors.Is(err, util.ErrAnswerNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrNotEnrolled):
		util.Error(ctx, http.StatusForbidden, err.Error())
	case errors.Is(err, util.ErrEmailRegistered),
		errors.Is(err, util.ErrAlreadyEnrolled),
		errors.Is(err, util.ErrConflict):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrQuizNotPublished),
		errors.Is(err, util.ErrMaxAttemptsReached),
		errors.Is(err, util.ErrAlreadySubmitted),
		errors.Is(err, util.ErrNotSubmitted),
		errors.Is(err, util.ErrGradeOutOfRange),
		errors.Is(err, util.ErrNotEligible):
		util.Error(ctx, http.StatusUnprocessableEntity, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
