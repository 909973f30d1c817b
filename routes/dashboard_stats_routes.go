package routes

import (
	"github.com/BerniceZTT/crm_marketing/controllers"
	"github.com/BerniceZTT/crm_marketing/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterDashboardStatsRoutes 注册数据看板路由
func RegisterDashboardStatsRoutes(router *gin.Engine) {
	dashboard := router.Group("/api/dashboard")
	dashboard.Use(middleware.AuthMiddleware())

	dashboard.GET("/stats", controllers.GetDashboardStats)
}
