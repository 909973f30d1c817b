package controllers

import (
	"github.com/BerniceZTT/crm_marketing/config"
	"github.com/BerniceZTT/crm_marketing/service"
)

// 控制器共享的服务实例，main 启动时注入
var (
	appConfig       *config.Config
	orderProvider   service.OrderAggregateProvider
	appClock        service.Clock
	campaignSender  *service.CampaignSender
	deliveryTracker *service.DeliveryTracker
)

// InitControllers 注入控制器依赖
func InitControllers(cfg *config.Config, provider service.OrderAggregateProvider, clock service.Clock, sender service.EmailSender) {
	appConfig = cfg
	orderProvider = provider
	appClock = clock
	campaignSender = service.NewCampaignSender(sender, clock, cfg.SendBatchSize)
	deliveryTracker = service.NewDeliveryTracker(clock)
}
