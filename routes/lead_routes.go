package routes

import (
	"github.com/BerniceZTT/crm_marketing/controllers"
	"github.com/BerniceZTT/crm_marketing/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterLeadRoutes 注册销售线索路由
func RegisterLeadRoutes(router *gin.Engine) {
	leads := router.Group("/api/leads")
	leads.Use(middleware.AuthMiddleware())

	leads.GET("/", middleware.PermissionMiddleware("leads", "read"), controllers.GetLeadList)
	leads.GET("/:id", middleware.PermissionMiddleware("leads", "read"), controllers.GetLeadDetail)
	leads.POST("/", middleware.PermissionMiddleware("leads", "create"), controllers.CreateLead)
	leads.PUT("/:id", middleware.PermissionMiddleware("leads", "update"), controllers.UpdateLead)
	leads.DELETE("/:id", middleware.PermissionMiddleware("leads", "update"), controllers.DeleteLead)

	// 状态机操作
	leads.POST("/:id/contact", middleware.PermissionMiddleware("leads", "update"), controllers.ContactLead)
	leads.POST("/:id/qualify", middleware.PermissionMiddleware("leads", "update"), controllers.QualifyLead)
	leads.POST("/:id/advance", middleware.PermissionMiddleware("leads", "update"), controllers.AdvanceLeadStatus)
	leads.POST("/:id/move-stage", middleware.PermissionMiddleware("leads", "update"), controllers.MoveLeadStage)
	leads.POST("/:id/assign", middleware.PermissionMiddleware("leads", "update"), controllers.AssignLead)
	leads.POST("/:id/follow-up", middleware.PermissionMiddleware("leads", "update"), controllers.SetLeadFollowUp)
	leads.POST("/:id/convert", middleware.PermissionMiddleware("leads", "convert"), controllers.ConvertLead)
	leads.POST("/:id/lose", middleware.PermissionMiddleware("leads", "update"), controllers.LoseLead)

	// 管道看板
	pipeline := router.Group("/api/pipeline")
	pipeline.Use(middleware.AuthMiddleware())

	pipeline.GET("/stages", middleware.PermissionMiddleware("leads", "read"), controllers.GetPipelineStages)
	pipeline.POST("/stages", middleware.PermissionMiddleware("leads", "update"), controllers.CreatePipelineStage)
	pipeline.PUT("/stages/:id", middleware.PermissionMiddleware("leads", "update"), controllers.UpdatePipelineStage)
	pipeline.DELETE("/stages/:id", middleware.PermissionMiddleware("leads", "update"), controllers.DeletePipelineStage)
	pipeline.GET("/kanban", middleware.PermissionMiddleware("leads", "read"), controllers.GetPipelineKanban)
}
