package controllers

import (
	"testing"
	"time"

	"github.com/BerniceZTT/crm_marketing/config"
	"github.com/BerniceZTT/crm_marketing/service"
)

// 控制器产生的状态机时间戳必须来自注入的时钟，
// 注入固定时钟后 appClock 读到的就是固定时间
func TestInitControllersInjectsClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	InitControllers(
		&config.Config{SendBatchSize: 50},
		service.MongoOrderAggregateProvider{},
		service.FixedClock{Time: fixed},
		service.LogEmailSender{},
	)

	if !appClock.Now().Equal(fixed) {
		t.Errorf("appClock.Now() = %v, want %v", appClock.Now(), fixed)
	}
	if campaignSender == nil || deliveryTracker == nil {
		t.Fatal("依赖注入后发送器/追踪器不应为空")
	}
	if !campaignSender.Clock.Now().Equal(fixed) {
		t.Errorf("发送器时钟 = %v, want %v", campaignSender.Clock.Now(), fixed)
	}
}
