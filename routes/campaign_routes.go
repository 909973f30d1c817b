package routes

import (
	"github.com/BerniceZTT/crm_marketing/controllers"
	"github.com/BerniceZTT/crm_marketing/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterCampaignRoutes 注册邮件营销活动路由
func RegisterCampaignRoutes(router *gin.Engine) {
	campaigns := router.Group("/api/campaigns")
	campaigns.Use(middleware.AuthMiddleware())

	campaigns.GET("/", middleware.PermissionMiddleware("campaigns", "read"), controllers.GetCampaignList)
	campaigns.GET("/:id", middleware.PermissionMiddleware("campaigns", "read"), controllers.GetCampaignDetail)
	campaigns.POST("/", middleware.PermissionMiddleware("campaigns", "create"), controllers.CreateCampaign)
	campaigns.PUT("/:id", middleware.PermissionMiddleware("campaigns", "update"), controllers.UpdateCampaign)
	campaigns.DELETE("/:id", middleware.PermissionMiddleware("campaigns", "update"), controllers.DeleteCampaign)

	// 状态机操作
	campaigns.POST("/:id/schedule", middleware.PermissionMiddleware("campaigns", "send"), controllers.ScheduleCampaign)
	campaigns.POST("/:id/unschedule", middleware.PermissionMiddleware("campaigns", "send"), controllers.UnscheduleCampaign)
	campaigns.POST("/:id/start", middleware.PermissionMiddleware("campaigns", "send"), controllers.StartCampaign)
	campaigns.POST("/:id/pause", middleware.PermissionMiddleware("campaigns", "send"), controllers.PauseCampaign)
	campaigns.POST("/:id/resume", middleware.PermissionMiddleware("campaigns", "send"), controllers.ResumeCampaign)
	campaigns.POST("/:id/cancel", middleware.PermissionMiddleware("campaigns", "send"), controllers.CancelCampaign)

	// 统计与收件人
	campaigns.GET("/:id/stats", middleware.PermissionMiddleware("campaigns", "read"), controllers.GetCampaignStats)
	campaigns.GET("/:id/recipients", middleware.PermissionMiddleware("campaigns", "read"), controllers.GetCampaignRecipients)
}
