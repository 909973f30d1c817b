package service

import (
	"context"
	"time"

	"github.com/BerniceZTT/crm_marketing/models"
	"github.com/BerniceZTT/crm_marketing/repository"
	"github.com/BerniceZTT/crm_marketing/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 分桶策略：固定阈值
// 订单聚合到达时尚未分桶，这里把原始的最近购买天数/订单数/消费额
// 折算成 1-5 分再交给评分器。阈值调整只影响本文件
var (
	// 最近购买天数上限，不超过该值得到对应评分（最近越近分越高）
	recencyDayThresholds = []int{30, 60, 90, 180}

	// 订单数下限，达到该值得到对应评分
	frequencyCountThresholds = []int64{20, 10, 5, 2}

	// 累计消费额下限，达到该值得到对应评分
	monetarySpentThresholds = []float64{50000, 20000, 5000, 1000}
)

// BucketRecency 把最近购买天数折算为 1-5 分，从未购买得 1 分
func BucketRecency(lastPurchaseAt *time.Time, now time.Time) int {
	if lastPurchaseAt == nil {
		return 1
	}
	days := int(now.Sub(*lastPurchaseAt).Hours() / 24)
	if days < 0 {
		days = 0
	}

	for i, threshold := range recencyDayThresholds {
		if days <= threshold {
			return 5 - i
		}
	}
	return 1
}

// BucketFrequency 把订单数折算为 1-5 分
func BucketFrequency(orderCount int64) int {
	for i, threshold := range frequencyCountThresholds {
		if orderCount >= threshold {
			return 5 - i
		}
	}
	return 1
}

// BucketMonetary 把累计消费额折算为 1-5 分
func BucketMonetary(totalSpent float64) int {
	for i, threshold := range monetarySpentThresholds {
		if totalSpent >= threshold {
			return 5 - i
		}
	}
	return 1
}

// BuildRfmInput 由订单聚合构建评分输入
func BuildRfmInput(agg models.OrderAggregate, now time.Time) models.RfmInput {
	return models.RfmInput{
		RecencyScore:   BucketRecency(agg.LastPurchaseAt, now),
		FrequencyScore: BucketFrequency(agg.OrderCount),
		MonetaryScore:  BucketMonetary(agg.TotalSpent),
		OrderCount:     agg.OrderCount,
		TotalSpent:     agg.TotalSpent,
		FirstPurchase:  agg.FirstPurchaseAt,
		LastPurchase:   agg.LastPurchaseAt,
	}
}

// ScoreCustomer 对单个客户执行一次 RFM 重算并持久化
func ScoreCustomer(ctx context.Context, analytics *models.CustomerAnalytics, agg models.OrderAggregate, now time.Time) error {
	previousStage := analytics.LifecycleStage
	analytics.ApplyRfmScores(BuildRfmInput(agg, now), now)

	if analytics.LifecycleStage != previousStage {
		utils.Logger.Info().
			Str("customerId", analytics.CustomerID).
			Str("from", string(previousStage)).
			Str("to", string(analytics.LifecycleStage)).
			Msg("客户生命周期阶段变化")
	}

	collection := repository.Collection(repository.CustomerAnalyticsCollection)
	update := bson.M{
		"$set": bson.M{
			"recencyScore":        analytics.RecencyScore,
			"frequencyScore":      analytics.FrequencyScore,
			"monetaryScore":       analytics.MonetaryScore,
			"totalRfmScore":       analytics.TotalRfmScore,
			"totalOrderCount":     analytics.TotalOrderCount,
			"totalSpent":          analytics.TotalSpent,
			"averageOrderValue":   analytics.AverageOrderValue,
			"firstPurchaseDate":   analytics.FirstPurchaseDate,
			"lastPurchaseDate":    analytics.LastPurchaseDate,
			"lifecycleStage":      analytics.LifecycleStage,
			"lastRfmCalculatedAt": analytics.LastRfmCalculatedAt,
			"updatedAt":           analytics.UpdatedAt,
		},
	}
	// 阶段未变时不动变更时间戳
	if analytics.LifecycleStage != previousStage {
		update["$set"].(bson.M)["lifecycleStageChangedAt"] = analytics.LifecycleStageChangedAt
	}

	_, err := collection.UpdateOne(
		ctx,
		bson.M{"customerId": analytics.CustomerID},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}
