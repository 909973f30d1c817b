package controllers

import (
	"context"

	"github.com/BerniceZTT/crm_marketing/models"
	"github.com/BerniceZTT/crm_marketing/repository"
	"github.com/BerniceZTT/crm_marketing/service"
	"github.com/BerniceZTT/crm_marketing/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
)

// GetDashboardStats 获取数据看板聚合统计
func GetDashboardStats(c *gin.Context) {
	ctx := repository.GetContext()

	stats := models.DashboardStats{}

	analyticsCollection := repository.Collection(repository.CustomerAnalyticsCollection)

	total, err := analyticsCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	stats.TotalCustomers = total

	stages, err := countLifecycleStages(ctx)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	stats.LifecycleStages = stages

	distribution, err := buildRfmDistribution(ctx)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	stats.RfmDistribution = *distribution

	leadStatuses, err := countLeadStatuses(ctx)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	stats.LeadStatuses = leadStatuses

	pipeline, err := service.BuildPipelineSummary(ctx)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	stats.Pipeline = *pipeline

	campaigns, err := buildCampaignSummary(ctx)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	stats.Campaigns = *campaigns

	utils.SuccessResponse(c, stats, "")
}

// countLifecycleStages 按生命周期阶段统计客户数
func countLifecycleStages(ctx context.Context) ([]models.LifecycleStageCount, error) {
	collection := repository.Collection(repository.CustomerAnalyticsCollection)

	cursor, err := collection.Aggregate(ctx, []bson.M{
		{"$group": bson.M{"_id": "$lifecycleStage", "count": bson.M{"$sum": 1}}},
		{"$sort": bson.M{"count": -1}},
	})
	if err != nil {
		return nil, err
	}

	var result []models.LifecycleStageCount
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// scoreHistogram 单个评分字段的直方图
func scoreHistogram(ctx context.Context, field string) ([]models.ScoreBucket, error) {
	collection := repository.Collection(repository.CustomerAnalyticsCollection)

	cursor, err := collection.Aggregate(ctx, []bson.M{
		{"$group": bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}},
		{"$sort": bson.M{"_id": 1}},
	})
	if err != nil {
		return nil, err
	}

	var result []models.ScoreBucket
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// buildRfmDistribution RFM 各维度评分分布
func buildRfmDistribution(ctx context.Context) (*models.RfmDistribution, error) {
	recency, err := scoreHistogram(ctx, "recencyScore")
	if err != nil {
		return nil, err
	}
	frequency, err := scoreHistogram(ctx, "frequencyScore")
	if err != nil {
		return nil, err
	}
	monetary, err := scoreHistogram(ctx, "monetaryScore")
	if err != nil {
		return nil, err
	}
	totalScore, err := scoreHistogram(ctx, "totalRfmScore")
	if err != nil {
		return nil, err
	}

	return &models.RfmDistribution{
		Recency:   recency,
		Frequency: frequency,
		Monetary:  monetary,
		Total:     totalScore,
	}, nil
}

// countLeadStatuses 按状态统计线索数
func countLeadStatuses(ctx context.Context) ([]models.LeadStatusCount, error) {
	collection := repository.Collection(repository.LeadsCollection)

	cursor, err := collection.Aggregate(ctx, []bson.M{
		{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
	})
	if err != nil {
		return nil, err
	}

	var result []models.LeadStatusCount
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// buildCampaignSummary 营销活动整体汇总
func buildCampaignSummary(ctx context.Context) (*models.CampaignSummary, error) {
	collection := repository.Collection(repository.EmailCampaignsCollection)

	summary := models.CampaignSummary{}

	total, err := collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	summary.TotalCampaigns = total

	sending, err := collection.CountDocuments(ctx, bson.M{"status": models.CampaignStatusSending})
	if err != nil {
		return nil, err
	}
	summary.SendingCampaigns = sending

	cursor, err := collection.Aggregate(ctx, []bson.M{
		{"$match": bson.M{"status": models.CampaignStatusSent}},
		{"$group": bson.M{
			"_id":             nil,
			"totalRecipients": bson.M{"$sum": "$totalRecipients"},
			"totalOpened":     bson.M{"$sum": "$openedCount"},
			"totalClicked":    bson.M{"$sum": "$clickedCount"},
			"avgOpenRate":     bson.M{"$avg": "$openRate"},
			"avgClickRate":    bson.M{"$avg": "$clickRate"},
			"avgBounceRate":   bson.M{"$avg": "$bounceRate"},
		}},
	})
	if err != nil {
		return nil, err
	}

	var rows []struct {
		TotalRecipients int64   `bson:"totalRecipients"`
		TotalOpened     int64   `bson:"totalOpened"`
		TotalClicked    int64   `bson:"totalClicked"`
		AvgOpenRate     float64 `bson:"avgOpenRate"`
		AvgClickRate    float64 `bson:"avgClickRate"`
		AvgBounceRate   float64 `bson:"avgBounceRate"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	if len(rows) > 0 {
		summary.TotalRecipients = rows[0].TotalRecipients
		summary.TotalOpened = rows[0].TotalOpened
		summary.TotalClicked = rows[0].TotalClicked
		summary.AverageOpenRate = rows[0].AvgOpenRate
		summary.AverageClickRate = rows[0].AvgClickRate
		summary.AverageBounceRate = rows[0].AvgBounceRate
	}

	return &summary, nil
}
