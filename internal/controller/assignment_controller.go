package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssignmentController struct {
	AssignmentService *service.AssignmentService
}

func NewAssignmentController(assignmentService *service.AssignmentService) *AssignmentController {
	return &AssignmentController{AssignmentService: assignmentService}
}

// CreateAssignment godoc
// @Summary 创建作业
// @Tags 作业
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.AssignmentCreateRequest true "作业信息"
// @Success 201 {object} util.Response
// @Router /api/instructor/assignments [post]
func (c *AssignmentController) CreateAssignment(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.AssignmentCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	assignment, err := c.AssignmentService.CreateAssignment(claims.UserID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, assignment)
}

// ListCourseAssignments godoc
// @Summary 课程作业列表
// @Tags 作业
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/assignments [get]
func (c *AssignmentController) ListCourseAssignments(ctx *gin.Context) {
	assignments, err := c.AssignmentService.ListCourseAssignments(util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, assignments)
}

// DeleteAssignment godoc
// @Summary 删除作业
// @Tags 作业
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Success 200 {object} util.Response
// @Router /api/instructor/assignments/{id} [delete]
func (c *AssignmentController) DeleteAssignment(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.AssignmentService.DeleteAssignment(claims.UserID, util.MustParseUint(ctx.Param("id"))); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// SubmitAssignment godoc
// @Summary 提交作业
// @Description 支持附件上传，重复提交覆盖旧内容
// @Tags 作业
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Param content formData string false "文本内容"
// @Param file formData file false "附件"
// @Success 201 {object} util.Response
// @Router /api/assignments/{id}/submissions [post]
func (c *AssignmentController) SubmitAssignment(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	content := ctx.PostForm("content")

	// 附件可选
	file, err := ctx.FormFile("file")
	if err != nil {
		file = nil
	}
	if content == "" && file == nil {
		util.BadRequest(ctx, "content or file is required")
		return
	}

	submission, err := c.AssignmentService.SubmitAssignment(ctx.Request.Context(), claims.UserID, util.MustParseUint(ctx.Param("id")), content, file)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, submission)
}

// GetMySubmission godoc
// @Summary 查看我的作业提交
// @Tags 作业
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Success 200 {object} util.Response
// @Router /api/assignments/{id}/submissions/me [get]
func (c *AssignmentController) GetMySubmission(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	submission, err := c.AssignmentService.GetSubmission(claims.UserID, util.MustParseUint(ctx.Param("id")), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}

// ListSubmissions godoc
// @Summary 作业全部提交（讲师）
// @Tags 作业
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Success 200 {object} util.Response
// @Router /api/instructor/assignments/{id}/submissions [get]
func (c *AssignmentController) ListSubmissions(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	submissions, err := c.AssignmentService.ListSubmissions(claims.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, submissions)
}

type GradeRequest struct {
	Grade    float64 `json:"grade" binding:"min=0"`
	Feedback string  `json:"feedback"`
}

// GradeSubmission godoc
// @Summary 作业评分（讲师）
// @Tags 作业
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Param studentId path int true "学员ID"
// @Param body body GradeRequest true "评分"
// @Success 200 {object} util.Response
// @Failure 422 {object} util.Response "分值越界"
// @Router /api/instructor/assignments/{id}/submissions/{studentId}/grade [put]
func (c *AssignmentController) GradeSubmission(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req GradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	submission, err := c.AssignmentService.GradeSubmission(claims.UserID, util.MustParseUint(ctx.Param("id")), util.MustParseUint(ctx.Param("studentId")), req.Grade, req.Feedback)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}
