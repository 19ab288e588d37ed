package controller

import (
	"errors"
	"quiz_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// respondServiceError 服务层错误到 HTTP 状态码的统一映射
func respondServiceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrQuizNotFound),
		errors.Is(err, util.ErrQuestionNotFound),
		errors.Is(err, util.ErrAttemptNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrQuizNotPublished):
		util.Error(ctx, 403, err.Error())
	case errors.Is(err, util.ErrValidation):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrAttemptInProgress),
		errors.Is(err, util.ErrAttemptGraded),
		errors.Is(err, util.ErrQuizLocked):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrUpstreamUnavailable):
		util.BadGateway(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
