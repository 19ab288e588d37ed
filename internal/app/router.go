package app

import (
	"quiz_engine_backend/docs"
	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/middleware"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由（无需登录）
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	// 答题会话
	rg.POST("/quizzes/:id/attempts", c.attempt.StartAttempt)
	rg.GET("/quizzes/:id/history", c.attempt.GetHistory)
	rg.GET("/attempts/:id", c.attempt.GetSession)
	rg.PUT("/attempts/:id/answers/:questionId", c.attempt.RecordAnswer)
	rg.POST("/attempts/:id/submit", c.attempt.SubmitAttempt)
	rg.DELETE("/attempts/:id", c.attempt.AbandonAttempt)

	// 证书资格
	rg.GET("/courses/:id/eligibility", c.eligibility.CheckEligibility)
	rg.POST("/courses/:id/certificate", c.eligibility.GenerateCertificate)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher, model.Admin))
	{
		// 测验维护
		teacher.POST("/quizzes", c.quiz.CreateQuiz)
		teacher.GET("/quizzes", c.quiz.ListQuizzes)
		teacher.GET("/quizzes/:id", c.quiz.GetQuiz)
		teacher.PUT("/quizzes/:id", c.quiz.UpdateQuiz)
		teacher.DELETE("/quizzes/:id", c.quiz.DeleteQuiz)
		teacher.POST("/quizzes/:id/publish", c.quiz.PublishQuiz)

		// 题目维护
		teacher.POST("/quizzes/:id/questions", c.quiz.AddQuestion)
		teacher.PUT("/quizzes/:id/questions/:questionId", c.quiz.UpdateQuestion)
		teacher.DELETE("/quizzes/:id/questions/:questionId", c.quiz.DeleteQuestion)

		// 试评分会回显逐题对错，等同于暴露答案，只开放给出题方
		teacher.POST("/quizzes/:id/grade", c.attempt.DryRunGrade)

		// 统计分析
		teacher.GET("/quizzes/:id/analytics", c.analytics.GetQuizAnalytics)
		teacher.GET("/quizzes/:id/learners/:learnerId/history", c.analytics.GetLearnerHistory)
	}
}
