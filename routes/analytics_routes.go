package routes

import (
	"github.com/BerniceZTT/crm_marketing/controllers"
	"github.com/BerniceZTT/crm_marketing/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterAnalyticsRoutes 注册客户分析路由
func RegisterAnalyticsRoutes(router *gin.Engine) {
	analytics := router.Group("/api/analytics")
	analytics.Use(middleware.AuthMiddleware())

	// 分析列表，支持生命周期阶段/最低RFM评分过滤
	analytics.GET("/", middleware.PermissionMiddleware("analytics", "read"), controllers.GetAnalyticsList)

	// 单个客户分析详情
	analytics.GET("/:customerId", middleware.PermissionMiddleware("analytics", "read"), controllers.GetAnalyticsDetail)

	// 更新内部备注
	analytics.PUT("/:customerId/notes", middleware.PermissionMiddleware("analytics", "read"), controllers.UpdateAnalyticsNotes)

	// 手动重算单个客户
	analytics.POST("/:customerId/recalculate", middleware.PermissionMiddleware("analytics", "recalculate"), controllers.RecalculateCustomerAnalytics)

	// 手动触发全量重算 (异步)
	analytics.POST("/recalculate-all", middleware.PermissionMiddleware("analytics", "recalculate"), controllers.RecalculateAllAnalytics)

	// 同步客户基础信息，分析记录不存在时初始化
	analytics.POST("/sync", middleware.PermissionMiddleware("analytics", "recalculate"), controllers.SyncCustomerAnalytics)
}
