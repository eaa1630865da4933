package app

import (
	"lms_backend/docs"
	"lms_backend/internal/middleware"
	"lms_backend/internal/model"
	"lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories) {
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
	authGroup.Use(middleware.AuthMiddleware(), middleware.ActivityMiddleware(repos.user))
	{
		a.registerCommonRoutes(authGroup, c)
		a.registerInstructorRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

// registerCommonRoutes 学员与通用接口
func (a *App) registerCommonRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/me", c.auth.Me)
	rg.PUT("/profile", c.user.UpdateProfile)
	rg.PUT("/profile/password", c.user.ChangePassword)

	// 课程浏览与选课
	rg.GET("/courses", c.course.ListCourses)
	rg.GET("/courses/:id", c.course.GetCourse)
	rg.POST("/courses/:id/enroll", c.course.Enroll)
	rg.DELETE("/courses/:id/enroll", c.course.Unenroll)
	rg.GET("/enrollments", c.course.ListEnrollments)

	// 学习进度
	rg.PUT("/resources/:resourceId/progress", c.progress.UpsertResourceProgress)
	rg.GET("/resources/:resourceId/progress", c.progress.GetResourceProgress)
	rg.PUT("/modules/:moduleId/progress", c.progress.OverrideModuleProgress)
	rg.GET("/courses/:id/progress", c.progress.GetCourseProgress)

	// 测验
	rg.GET("/courses/:id/quizzes", c.quiz.ListCourseQuizzes)
	rg.GET("/quizzes/:id", c.quiz.GetQuiz)
	rg.POST("/quizzes/:id/attempts", c.quiz.StartAttempt)
	rg.GET("/quizzes/:id/attempts", c.quiz.ListAttempts)
	rg.PUT("/submissions/:submissionId/answers", c.quiz.SubmitAnswer)
	rg.POST("/submissions/:submissionId/finalize", c.quiz.Finalize)
	rg.GET("/submissions/:submissionId", c.quiz.GetSubmission)

	// 作业
	rg.GET("/courses/:id/assignments", c.assignment.ListCourseAssignments)
	rg.POST("/assignments/:id/submissions", c.assignment.SubmitAssignment)
	rg.GET("/assignments/:id/submissions/me", c.assignment.GetMySubmission)

	// 证书
	rg.GET("/courses/:id/certificate/eligibility", c.certificate.CheckEligibility)
	rg.POST("/courses/:id/certificate", c.certificate.IssueCertificate)
	rg.GET("/certificates", c.certificate.ListMyCertificates)

	// 公告与通知
	rg.GET("/courses/:id/announcements", c.announcement.ListAnnouncements)
	rg.GET("/notifications", c.notification.ListNotifications)
	rg.GET("/notifications/unread", c.notification.UnreadCount)
	rg.PUT("/notifications/read/:id", c.notification.MarkRead)
	rg.PUT("/notifications/read-all", c.notification.MarkAllRead)
}

// registerInstructorRoutes 讲师接口
func (a *App) registerInstructorRoutes(rg *gin.RouterGroup, c *controllers) {
	instructor := rg.Group("/instructor")
	instructor.Use(middleware.RoleMiddleware(model.Instructor))
	{
		instructor.GET("/courses", c.course.ListMyCourses)
		instructor.POST("/courses", c.course.CreateCourse)
		instructor.PUT("/courses/:id", c.course.UpdateCourse)
		instructor.DELETE("/courses/:id", c.course.DeleteCourse)
		instructor.GET("/courses/:id/enrollments", c.course.ListCourseEnrollments)
		instructor.POST("/courses/:id/progress/recompute", c.course.RecomputeProgress)

		instructor.POST("/courses/:id/modules", c.course.CreateModule)
		instructor.PUT("/modules/:moduleId", c.course.UpdateModule)
		instructor.DELETE("/modules/:moduleId", c.course.DeleteModule)

		instructor.POST("/modules/:moduleId/resources", c.course.CreateResource)
		instructor.POST("/modules/:moduleId/resources/upload", c.course.UploadResource)
		instructor.PUT("/resources/:resourceId", c.course.UpdateResource)
		instructor.DELETE("/resources/:resourceId", c.course.DeleteResource)

		instructor.POST("/quizzes", c.quiz.CreateQuiz)
		instructor.PUT("/quizzes/:id", c.quiz.UpdateQuiz)
		instructor.DELETE("/quizzes/:id", c.quiz.DeleteQuiz)
		instructor.POST("/quizzes/:id/questions", c.quiz.AddQuestion)
		instructor.DELETE("/quizzes/:id/questions/:questionId", c.quiz.DeleteQuestion)
		instructor.GET("/quizzes/:id/submissions", c.quiz.ListQuizSubmissions)
		instructor.PUT("/submissions/:submissionId/answers/:answerId/grade", c.quiz.RegradeAnswer)

		instructor.POST("/assignments", c.assignment.CreateAssignment)
		instructor.DELETE("/assignments/:id", c.assignment.DeleteAssignment)
		instructor.GET("/assignments/:id/submissions", c.assignment.ListSubmissions)
		instructor.PUT("/assignments/:id/submissions/:studentId/grade", c.assignment.GradeSubmission)

		instructor.POST("/courses/:id/announcements", c.announcement.CreateAnnouncement)
		instructor.PUT("/announcements/:announcementId", c.announcement.UpdateAnnouncement)
		instructor.DELETE("/announcements/:announcementId", c.announcement.DeleteAnnouncement)
	}
}

// registerAdminRoutes 管理员接口
func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/users", c.user.ListUsers)
		admin.PUT("/users/:id/disabled", c.user.SetDisabled)
	}
}
