package routes

import (
	"github.com/BerniceZTT/crm_marketing/controllers"
	"github.com/BerniceZTT/crm_marketing/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterSegmentRoutes 注册客户分群路由
func RegisterSegmentRoutes(router *gin.Engine) {
	segments := router.Group("/api/segments")
	segments.Use(middleware.AuthMiddleware())

	segments.GET("/", middleware.PermissionMiddleware("segments", "read"), controllers.GetSegmentList)
	segments.GET("/:id", middleware.PermissionMiddleware("segments", "read"), controllers.GetSegmentDetail)
	segments.POST("/", middleware.PermissionMiddleware("segments", "create"), controllers.CreateSegment)
	segments.PUT("/:id", middleware.PermissionMiddleware("segments", "update"), controllers.UpdateSegment)
	segments.DELETE("/:id", middleware.PermissionMiddleware("segments", "delete"), controllers.DeleteSegment)

	// 成员管理
	segments.GET("/:id/members", middleware.PermissionMiddleware("segments", "read"), controllers.GetSegmentMembers)
	segments.POST("/:id/members", middleware.PermissionMiddleware("segments", "assign"), controllers.AssignCustomerToSegment)
	segments.DELETE("/:id/members/:customerId", middleware.PermissionMiddleware("segments", "assign"), controllers.RemoveCustomerFromSegment)

	// 规则预览与自动分群触发
	segments.POST("/preview-rule", middleware.PermissionMiddleware("segments", "read"), controllers.PreviewSegmentRule)
	segments.POST("/run-auto-assign", middleware.PermissionMiddleware("segments", "assign"), controllers.RunSegmentationNow)
}
