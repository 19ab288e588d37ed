package util

import "errors"

var (
	ErrUserNotFound        = errors.New("用户不存在")
	ErrEmailRegistered     = errors.New("该邮箱已被注册")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrQuizNotPublished    = errors.New("quiz not published or not accessible")
	ErrQuizLocked          = errors.New("quiz already has attempts and can no longer be modified")
	ErrAttemptInProgress   = errors.New("attempt already in progress")
	ErrAttemptGraded       = errors.New("attempt already graded")
	ErrValidation          = errors.New("validation failed")
	ErrNotEligible         = errors.New("certificate requirements not met")
	ErrUpstreamUnavailable = errors.New("upstream collaborator unavailable")
)
