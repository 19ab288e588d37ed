package controller

import (
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/service"
	"quiz_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	Sessions  *service.SessionService
	Analytics *service.AnalyticsService
}

func NewAttemptController(sessions *service.SessionService, analytics *service.AnalyticsService) *AttemptController {
	return &AttemptController{Sessions: sessions, Analytics: analytics}
}

// StartAttempt godoc
// @Summary 开始答题
// @Description 同一测验同时只允许一个进行中的会话
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 201 {object} util.Response{data=service.SessionView}
// @Failure 403 {object} util.Response "测验未发布"
// @Failure 409 {object} util.Response "已有进行中的会话"
// @Router /api/quizzes/{id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.Sessions.StartAttempt(ctx.Request.Context(), util.MustParseUint(ctx.Param("id")), user.UserID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	util.Created(ctx, view)
}

// GetSession godoc
// @Summary 获取会话状态
// @Description 返回题目顺序、已答题目与剩余秒数
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param id path int true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionView}
// @Failure 404 {object} util.Response "会话不存在"
// @Router /api/attempts/{id} [get]
func (c *AttemptController) GetSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.Sessions.GetSession(ctx.Request.Context(), util.MustParseUint(ctx.Param("id")), user.UserID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	util.Success(ctx, view)
}

type answerRequest struct {
	Value model.AnswerValue `json:"value"`
}

// RecordAnswer godoc
// @Summary 记录或覆盖某题答案
// @Description 提交前可随时改答；答案形状必须与题型一致
// @Tags 答题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "会话ID"
// @Param questionId path int true "题目ID"
// @Param body body answerRequest true "答案"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "答案形状不符或已超时"
// @Failure 409 {object} util.Response "会话已评分"
// @Router /api/attempts/{id}/answers/{questionId} [put]
func (c *AttemptController) RecordAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req answerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	err := c.Sessions.RecordAnswer(
		ctx.Request.Context(),
		util.MustParseUint(ctx.Param("id")),
		user.UserID,
		util.MustParseUint(ctx.Param("questionId")),
		req.Value,
	)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}

// SubmitAttempt godoc
// @Summary 提交评分
// @Description 所有题目作答后方可提交；重复提交返回既有结果，不会重评
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param id path int true "会话ID"
// @Success 200 {object} util.Response{data=model.Attempt}
// @Failure 400 {object} util.Response "存在未作答题目"
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.Sessions.SubmitAttempt(ctx.Request.Context(), util.MustParseUint(ctx.Param("id")), user.UserID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	util.Success(ctx, attempt)
}

// AbandonAttempt godoc
// @Summary 放弃会话
// @Description 不保留任何答题记录
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param id path int true "会话ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "会话已评分"
// @Router /api/attempts/{id} [delete]
func (c *AttemptController) AbandonAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Sessions.AbandonAttempt(ctx.Request.Context(), util.MustParseUint(ctx.Param("id")), user.UserID); err != nil {
		respondServiceError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}

type dryRunRequest struct {
	Answers map[uint]model.AnswerValue `json:"answers" binding:"required"`
}

// DryRunGrade godoc
// @Summary 试评分
// @Description 对给定答案组合直接评分，不创建会话、不落库；结果含逐题对错，仅教师可用
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Param body body dryRunRequest true "题目ID到答案的映射"
// @Success 200 {object} util.Response{data=service.GradedResult}
// @Failure 403 {object} util.Response "无教师权限"
// @Failure 404 {object} util.Response "测验不存在"
// @Router /api/teacher/quizzes/{id}/grade [post]
func (c *AttemptController) DryRunGrade(ctx *gin.Context) {
	var req dryRunRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Sessions.DryRunGrade(ctx.Request.Context(), util.MustParseUint(ctx.Param("id")), req.Answers)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// GetHistory godoc
// @Summary 学习者在某测验上的历史成绩
// @Description 返回历次成绩、最高分与趋势
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.LearnerQuizHistory}
// @Router /api/quizzes/{id}/history [get]
func (c *AttemptController) GetHistory(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	history, err := c.Analytics.GetLearnerQuizHistory(util.MustParseUint(ctx.Param("id")), user.UserID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	util.Success(ctx, history)
}
