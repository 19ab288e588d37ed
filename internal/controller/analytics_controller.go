package controller

import (
	"quiz_engine_backend/internal/service"
	"quiz_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AnalyticsController struct {
	Service *service.AnalyticsService
}

func NewAnalyticsController(svc *service.AnalyticsService) *AnalyticsController {
	return &AnalyticsController{Service: svc}
}

// GetQuizAnalytics godoc
// @Summary 测验统计
// @Description 通过率、平均分、分数分布与逐题难度分析
// @Tags 统计分析
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.QuizAnalytics}
// @Failure 404 {object} util.Response "测验不存在"
// @Router /api/teacher/quizzes/{id}/analytics [get]
func (c *AnalyticsController) GetQuizAnalytics(ctx *gin.Context) {
	analytics, err := c.Service.GetQuizAnalytics(util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	util.Success(ctx, analytics)
}

// GetLearnerHistory godoc
// @Summary 指定学习者在某测验上的历史成绩
// @Tags 统计分析
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Param learnerId path int true "学习者ID"
// @Success 200 {object} util.Response{data=model.LearnerQuizHistory}
// @Router /api/teacher/quizzes/{id}/learners/{learnerId}/history [get]
func (c *AnalyticsController) GetLearnerHistory(ctx *gin.Context) {
	history, err := c.Service.GetLearnerQuizHistory(
		util.MustParseUint(ctx.Param("id")),
		util.MustParseUint(ctx.Param("learnerId")),
	)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	util.Success(ctx, history)
}
