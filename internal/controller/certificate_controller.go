package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	CertificateService *service.CertificateService
}

func NewCertificateController(certificateService *service.CertificateService) *CertificateController {
	return &CertificateController{CertificateService: certificateService}
}

// CheckEligibility godoc
// @Summary 证书资格核查
// @Description 已有证书直接返回；否则附带进度与作业逐项核对明细
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/certificate/eligibility [get]
func (c *CertificateController) CheckEligibility(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	result, err := c.CertificateService.CheckEligibility(claims.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// IssueCertificate godoc
// @Summary 申领结业证书
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 201 {object} util.Response
// @Failure 422 {object} util.Response "资格未达标"
// @Router /api/courses/{id}/certificate [post]
func (c *CertificateController) IssueCertificate(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	cert, err := c.CertificateService.IssueCertificate(claims.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, cert)
}

// ListMyCertificates godoc
// @Summary 我的证书列表
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/certificates [get]
func (c *CertificateController) ListMyCertificates(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	certs, err := c.CertificateService.ListUserCertificates(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, certs)
}
