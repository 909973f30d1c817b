package routes

import (
	"github.com/BerniceZTT/crm_marketing/controllers"
	"github.com/BerniceZTT/crm_marketing/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes 注册认证路由
func RegisterAuthRoutes(router *gin.Engine) {
	auth := router.Group("/api/auth")

	// 登录
	auth.POST("/login", controllers.Login)

	// 验证token
	auth.GET("/validate", middleware.AuthMiddleware(), controllers.ValidateToken)
}
