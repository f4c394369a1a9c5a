package app

import (
	"placement_backend/internal/config"
	"placement_backend/internal/middleware"
	"placement_backend/internal/model"
	"placement_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		// 2. 学生接口
		a.registerStudentRoutes(authGroup, c)

		// 3. 教师接口
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	tests := group.Group("/placement-tests")
	{
		tests.POST("/submit", c.placement.Submit)
		tests.GET("/:id", c.placement.GetTest)
		tests.GET("/:id/result", c.placement.GetMyResult)
	}
}

func (a *App) registerTeacherRoutes(group *gin.RouterGroup, c *controllers) {
	teacher := group.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher, model.Admin))
	{
		tests := teacher.Group("/placement-tests")
		tests.POST("", c.placementAdmin.CreateTest)
		tests.GET("", c.placementAdmin.ListTests)
		tests.GET("/:id", c.placementAdmin.GetTest)
		tests.PUT("/:id", c.placementAdmin.UpdateTest)
		tests.POST("/:id/publish", c.placementAdmin.PublishTest)
		tests.POST("/:id/schedule", c.placementAdmin.SchedulePublish)
		tests.POST("/:id/archive", c.placementAdmin.ArchiveTest)
		tests.GET("/:id/module-assignments", c.placementAdmin.GetModuleAssignments)
		tests.PUT("/:id/module-assignments", c.placementAdmin.SetModuleAssignments)
		tests.GET("/:id/results", c.placementAdmin.ListResults)
	}
}
