package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AnnouncementController struct {
	AnnouncementService *service.AnnouncementService
}

func NewAnnouncementController(announcementService *service.AnnouncementService) *AnnouncementController {
	return &AnnouncementController{AnnouncementService: announcementService}
}

// CreateAnnouncement godoc
// @Summary 发布课程公告
// @Tags 公告
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param body body service.AnnouncementCreateRequest true "公告内容"
// @Success 201 {object} util.Response
// @Router /api/instructor/courses/{id}/announcements [post]
func (c *AnnouncementController) CreateAnnouncement(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.AnnouncementCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	announcement, err := c.AnnouncementService.Create(claims.UserID, util.MustParseUint(ctx.Param("id")), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, announcement)
}

// ListAnnouncements godoc
// @Summary 课程公告列表
// @Tags 公告
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/announcements [get]
func (c *AnnouncementController) ListAnnouncements(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	announcements, err := c.AnnouncementService.ListByCourse(claims.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, announcements)
}

// UpdateAnnouncement godoc
// @Summary 更新公告
// @Tags 公告
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param announcementId path int true "公告ID"
// @Param body body service.AnnouncementUpdateRequest true "更新字段"
// @Success 200 {object} util.Response
// @Router /api/instructor/announcements/{announcementId} [put]
func (c *AnnouncementController) UpdateAnnouncement(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.AnnouncementUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	announcement, err := c.AnnouncementService.Update(claims.UserID, util.MustParseUint(ctx.Param("announcementId")), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, announcement)
}

// DeleteAnnouncement godoc
// @Summary 删除公告
// @Tags 公告
// @Produce json
// @Security BearerAuth
// @Param announcementId path int true "公告ID"
// @Success 200 {object} util.Response
// @Router /api/instructor/announcements/{announcementId} [delete]
func (c *AnnouncementController) DeleteAnnouncement(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.AnnouncementService.Delete(claims.UserID, util.MustParseUint(ctx.Param("announcementId"))); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
