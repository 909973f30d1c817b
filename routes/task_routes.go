package routes

import (
	"github.com/BerniceZTT/crm_marketing/controllers"
	"github.com/BerniceZTT/crm_marketing/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterTaskRoutes 注册任务与互动记录路由
func RegisterTaskRoutes(router *gin.Engine) {
	tasks := router.Group("/api/tasks")
	tasks.Use(middleware.AuthMiddleware())

	tasks.GET("/", middleware.PermissionMiddleware("tasks", "read"), controllers.GetTaskList)
	tasks.POST("/", middleware.PermissionMiddleware("tasks", "create"), controllers.CreateTask)
	tasks.POST("/:id/complete", middleware.PermissionMiddleware("tasks", "update"), controllers.CompleteTask)
	tasks.POST("/:id/cancel", middleware.PermissionMiddleware("tasks", "update"), controllers.CancelTask)

	interactions := router.Group("/api/interactions")
	interactions.Use(middleware.AuthMiddleware())

	interactions.GET("/", middleware.PermissionMiddleware("tasks", "read"), controllers.GetInteractionList)
	interactions.POST("/", middleware.PermissionMiddleware("tasks", "create"), controllers.CreateInteraction)
}
