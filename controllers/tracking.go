package controllers

import (
	"net/http"
	"net/url"

	"github.com/BerniceZTT/crm_marketing/repository"
	"github.com/BerniceZTT/crm_marketing/utils"

	"github.com/gin-gonic/gin"
)

// 1x1 透明GIF，打开追踪像素
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21,
	0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
	0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
	0x01, 0x00, 0x3b,
}

// TrackOpen 打开追踪像素
// 追踪端点永远对浏览器成功返回，未知token只记录日志
func TrackOpen(c *gin.Context) {
	trackingID := c.Param("trackingId")

	deliveryTracker.RecordOpen(repository.GetContext(), trackingID)

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, "image/gif", trackingPixel)
}

// TrackClick 点击追踪，记录后重定向到目标链接
func TrackClick(c *gin.Context) {
	trackingID := c.Param("trackingId")
	target := c.Query("url")

	deliveryTracker.RecordClick(repository.GetContext(), trackingID, target)

	// 目标链接非法时回落到首页，避免开放重定向之外还给用户看错误页
	if parsed, err := url.Parse(target); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		target = appConfig.TrackingBaseURL
	}

	c.Redirect(http.StatusFound, target)
}

// TrackUnsubscribe 退订
func TrackUnsubscribe(c *gin.Context) {
	trackingID := c.Param("trackingId")

	deliveryTracker.RecordUnsubscribe(repository.GetContext(), trackingID)

	c.String(http.StatusOK, "退订成功，您将不再收到此类邮件。")
}

// TrackDelivered 送达回执，由邮件服务商回调
func TrackDelivered(c *gin.Context) {
	trackingID := c.Param("trackingId")

	deliveryTracker.RecordDelivered(repository.GetContext(), trackingID)

	utils.SuccessResponse(c, nil, "")
}

// TrackBounce 退信回执，由邮件服务商回调
func TrackBounce(c *gin.Context) {
	trackingID := c.Param("trackingId")

	deliveryTracker.RecordBounce(repository.GetContext(), trackingID)

	utils.SuccessResponse(c, nil, "")
}
