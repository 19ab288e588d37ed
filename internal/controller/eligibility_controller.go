package controller

import (
	"errors"
	"quiz_engine_backend/internal/service"
	"quiz_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type EligibilityController struct {
	Service *service.EligibilityService
}

func NewEligibilityController(svc *service.EligibilityService) *EligibilityController {
	return &EligibilityController{Service: svc}
}

// CheckEligibility godoc
// @Summary 查询证书资格
// @Description 返回逐项检查结果与缺失说明；不符合条件不是错误
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=model.EligibilityReport}
// @Failure 502 {object} util.Response "协作方不可达"
// @Router /api/courses/{id}/eligibility [get]
func (c *EligibilityController) CheckEligibility(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	report, err := c.Service.CheckEligibility(util.MustParseUint(ctx.Param("id")), user.UserID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	util.Success(ctx, report)
}

// GenerateCertificate godoc
// @Summary 申请签发证书
// @Description 资格验证通过才会签发；否则返回逐项缺失说明
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 201 {object} util.Response{data=object}
// @Failure 409 {object} util.Response "资格不符，data 为逐项检查结果"
// @Failure 502 {object} util.Response "协作方不可达"
// @Router /api/courses/{id}/certificate [post]
func (c *EligibilityController) GenerateCertificate(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	cert, report, err := c.Service.GenerateCertificateIfEligible(util.MustParseUint(ctx.Param("id")), user.UserID)
	if err != nil {
		if errors.Is(err, util.ErrNotEligible) {
			util.ErrorWithData(ctx, 409, err.Error(), report)
			return
		}
		respondServiceError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{
		"certificate": cert,
		"report":      report,
	})
}
