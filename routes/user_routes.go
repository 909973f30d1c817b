package routes

import (
	"github.com/BerniceZTT/crm_marketing/controllers"
	"github.com/BerniceZTT/crm_marketing/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterUserRoutes 注册用户管理路由
func RegisterUserRoutes(router *gin.Engine) {
	users := router.Group("/api/users")
	users.Use(middleware.AuthMiddleware())

	// 获取所有用户 (仅超级管理员)
	users.GET("/", middleware.PermissionMiddleware("users", "read"), controllers.GetUserList)

	// 创建用户 (仅超级管理员)
	users.POST("/", middleware.PermissionMiddleware("users", "create"), controllers.CreateUser)
}
