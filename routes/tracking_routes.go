package routes

import (
	"github.com/BerniceZTT/crm_marketing/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterTrackingRoutes 注册邮件投递追踪路由
// 追踪端点由邮件客户端/服务商访问，不走认证
func RegisterTrackingRoutes(router *gin.Engine) {
	tracking := router.Group("/t")

	// 打开追踪像素
	tracking.GET("/open/:trackingId", controllers.TrackOpen)

	// 点击追踪跳转
	tracking.GET("/click/:trackingId", controllers.TrackClick)

	// 退订
	tracking.GET("/unsubscribe/:trackingId", controllers.TrackUnsubscribe)

	// 服务商回执
	tracking.POST("/delivered/:trackingId", controllers.TrackDelivered)
	tracking.POST("/bounce/:trackingId", controllers.TrackBounce)
}
