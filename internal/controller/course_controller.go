package controller

import (
	"lms_backend/internal/model"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
}

func NewCourseController(courseService *service.CourseService) *CourseController {
	return &CourseController{CourseService: courseService}
}

// CreateCourse godoc
// @Summary 创建课程
// @Tags 课程
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CourseCreateRequest true "课程信息"
// @Success 201 {object} util.Response
// @Router /api/instructor/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.CourseCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.CreateCourse(claims.UserID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// UpdateCourse godoc
// @Summary 更新课程
// @Tags 课程
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param body body service.CourseUpdateRequest true "更新字段"
// @Success 200 {object} util.Response
// @Router /api/instructor/courses/{id} [put]
func (c *CourseController) UpdateCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.CourseUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.UpdateCourse(claims.UserID, util.MustParseUint(ctx.Param("id")), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// DeleteCourse godoc
// @Summary 删除课程
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/instructor/courses/{id} [delete]
func (c *CourseController) DeleteCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.CourseService.DeleteCourse(claims.UserID, util.MustParseUint(ctx.Param("id"))); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// GetCourse godoc
// @Summary 课程详情（含模块与资源）
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	course, err := c.CourseService.GetCourse(util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// ListCourses godoc
// @Summary 课程列表
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	page, limit := util.ParsePage(ctx.Query("page"), ctx.Query("limit"))

	// 学员只看已发布课程
	onlyPublished := claims.Role == model.Student
	courses, total, err := c.CourseService.ListCourses(page, limit, onlyPublished)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: courses, Total: total, Page: page, Limit: limit})
}

// ListMyCourses godoc
// @Summary 讲师名下课程
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/instructor/courses [get]
func (c *CourseController) ListMyCourses(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courses, err := c.CourseService.ListInstructorCourses(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// Enroll godoc
// @Summary 选课
// @Tags 选课
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 201 {object} util.Response
// @Failure 409 {object} util.Response "已选过该课程"
// @Router /api/courses/{id}/enroll [post]
func (c *CourseController) Enroll(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	enrollment, err := c.CourseService.Enroll(claims.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, enrollment)
}

// Unenroll godoc
// @Summary 退课
// @Tags 选课
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/enroll [delete]
func (c *CourseController) Unenroll(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.CourseService.Unenroll(claims.UserID, util.MustParseUint(ctx.Param("id"))); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListEnrollments godoc
// @Summary 我的选课列表
// @Tags 选课
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/enrollments [get]
func (c *CourseController) ListEnrollments(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	enrollments, err := c.CourseService.ListEnrollments(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, enrollments)
}

// ListCourseEnrollments godoc
// @Summary 课程学员列表（讲师）
// @Tags 选课
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/instructor/courses/{id}/enrollments [get]
func (c *CourseController) ListCourseEnrollments(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	enrollments, err := c.CourseService.ListCourseEnrollments(claims.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, enrollments)
}

// CreateModule godoc
// @Summary 创建课程模块
// @Tags 课程
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param body body service.ModuleCreateRequest true "模块信息"
// @Success 201 {object} util.Response
// @Router /api/instructor/courses/{id}/modules [post]
func (c *CourseController) CreateModule(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.ModuleCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	module, err := c.CourseService.CreateModule(claims.UserID, util.MustParseUint(ctx.Param("id")), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, module)
}

// UpdateModule godoc
// @Summary 更新课程模块
// @Tags 课程
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param moduleId path int true "模块ID"
// @Param body body service.ModuleUpdateRequest true "更新字段"
// @Success 200 {object} util.Response
// @Router /api/instructor/modules/{moduleId} [put]
func (c *CourseController) UpdateModule(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.ModuleUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	module, err := c.CourseService.UpdateModule(claims.UserID, util.MustParseUint(ctx.Param("moduleId")), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, module)
}

// DeleteModule godoc
// @Summary 删除课程模块
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param moduleId path int true "模块ID"
// @Success 200 {object} util.Response
// @Router /api/instructor/modules/{moduleId} [delete]
func (c *CourseController) DeleteModule(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.CourseService.DeleteModule(claims.UserID, util.MustParseUint(ctx.Param("moduleId"))); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// RecomputeProgress godoc
// @Summary 全量重算课程进度（讲师）
// @Description 模块或资源结构调整后，为全体选课学员重算聚合进度
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/instructor/courses/{id}/progress/recompute [post]
func (c *CourseController) RecomputeProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.CourseService.RecomputeCourseProgress(ctx.Request.Context(), claims.UserID, util.MustParseUint(ctx.Param("id"))); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// CreateResource godoc
// @Summary 创建模块资源
// @Tags 课程
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param moduleId path int true "模块ID"
// @Param body body service.ResourceCreateRequest true "资源信息"
// @Success 201 {object} util.Response
// @Router /api/instructor/modules/{moduleId}/resources [post]
func (c *CourseController) CreateResource(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.ResourceCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resource, err := c.CourseService.CreateResource(claims.UserID, util.MustParseUint(ctx.Param("moduleId")), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, resource)
}

// UploadResource godoc
// @Summary 上传资源文件
// @Description 上传视频会自动探测时长
// @Tags 课程
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param moduleId path int true "模块ID"
// @Param title formData string true "资源标题"
// @Param file formData file true "资源文件"
// @Success 201 {object} util.Response
// @Router /api/instructor/modules/{moduleId}/resources/upload [post]
func (c *CourseController) UploadResource(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	title := ctx.PostForm("title")
	if title == "" {
		util.BadRequest(ctx, "title is required")
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resource, err := c.CourseService.UploadResourceFile(ctx.Request.Context(), claims.UserID, util.MustParseUint(ctx.Param("moduleId")), title, file)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, resource)
}

// UpdateResource godoc
// @Summary 更新模块资源
// @Tags 课程
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param resourceId path int true "资源ID"
// @Param body body service.ResourceUpdateRequest true "更新字段"
// @Success 200 {object} util.Response
// @Router /api/instructor/resources/{resourceId} [put]
func (c *CourseController) UpdateResource(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.ResourceUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resource, err := c.CourseService.UpdateResource(claims.UserID, util.MustParseUint(ctx.Param("resourceId")), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, resource)
}

// DeleteResource godoc
// @Summary 删除模块资源
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param resourceId path int true "资源ID"
// @Success 200 {object} util.Response
// @Router /api/instructor/resources/{resourceId} [delete]
func (c *CourseController) DeleteResource(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.CourseService.DeleteResource(claims.UserID, util.MustParseUint(ctx.Param("resourceId"))); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
