package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// UpsertResourceProgress godoc
// @Summary 上报资源进度
// @Description 合并进度补丁并触发模块、课程完成度级联，响应携带本次触发的成就事件
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param resourceId path int true "资源ID"
// @Param body body service.ResourceProgressPatch true "进度补丁"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response "未选修该课程"
// @Router /api/resources/{resourceId}/progress [put]
func (c *ProgressController) UpsertResourceProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var patch service.ResourceProgressPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, events, err := c.ProgressService.UpsertResourceProgress(ctx.Request.Context(), claims.UserID, util.MustParseUint(ctx.Param("resourceId")), patch)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"progress": record,
		"events":   events,
	})
}

// GetResourceProgress godoc
// @Summary 查询资源进度
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param resourceId path int true "资源ID"
// @Success 200 {object} util.Response
// @Router /api/resources/{resourceId}/progress [get]
func (c *ProgressController) GetResourceProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	record, err := c.ProgressService.GetResourceProgress(claims.UserID, util.MustParseUint(ctx.Param("resourceId")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, record)
}

// OverrideModuleProgress godoc
// @Summary 手动覆盖模块完成状态
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param moduleId path int true "模块ID"
// @Param body body service.ModuleProgressOverride true "完成标志"
// @Success 200 {object} util.Response
// @Router /api/modules/{moduleId}/progress [put]
func (c *ProgressController) OverrideModuleProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var override service.ModuleProgressOverride
	if err := ctx.ShouldBindJSON(&override); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	events, err := c.ProgressService.OverrideModuleProgress(ctx.Request.Context(), claims.UserID, util.MustParseUint(ctx.Param("moduleId")), override)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"events": events})
}

// GetCourseProgress godoc
// @Summary 课程进度总览
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/progress [get]
func (c *ProgressController) GetCourseProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	view, err := c.ProgressService.GetCourseProgress(claims.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}
