package service

import (
	"context"
	"time"

	"github.com/BerniceZTT/crm_marketing/models"
	"github.com/BerniceZTT/crm_marketing/repository"
	"github.com/BerniceZTT/crm_marketing/utils"

	"go.mongodb.org/mongo-driver/bson"
)

// RecalcResult 一轮重算的汇总
type RecalcResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// RecalculationScheduler 周期性分析重算调度器
// 独立于请求处理运行，可与接口触发的即时重算并发
type RecalculationScheduler struct {
	Provider OrderAggregateProvider
	Clock    Clock
	Interval time.Duration

	stop chan struct{}
}

// NewRecalculationScheduler 创建调度器
func NewRecalculationScheduler(provider OrderAggregateProvider, clock Clock, interval time.Duration) *RecalculationScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RecalculationScheduler{
		Provider: provider,
		Clock:    clock,
		Interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start 启动周期任务
func (s *RecalculationScheduler) Start() {
	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		utils.Logger.Info().Dur("interval", s.Interval).Msg("分析重算调度器已启动")

		for {
			select {
			case <-ticker.C:
				result := s.RunOnce(context.Background())
				utils.LogBatchProgress("rfm_recalculation", result.Processed, result.Failed)
			case <-s.stop:
				utils.Logger.Info().Msg("分析重算调度器已停止")
				return
			}
		}
	}()
}

// Stop 停止周期任务
func (s *RecalculationScheduler) Stop() {
	close(s.stop)
}

// RunOnce 执行一轮全量重算：逐客户拉取订单聚合、评分、分类，
// 最后对全体客户跑一次自动分群调和
// 单个客户失败记录后跳过，不中断整批
func (s *RecalculationScheduler) RunOnce(ctx context.Context) RecalcResult {
	now := s.Clock.Now()
	utils.Logger.Info().Time("startedAt", now).Msg("开始执行分析重算任务")

	result := RecalcResult{}

	analyticsCollection := repository.Collection(repository.CustomerAnalyticsCollection)
	cursor, err := analyticsCollection.Find(ctx, bson.M{})
	if err != nil {
		utils.LogError(err, nil, "查询客户分析失败，重算中止")
		return result
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var analytics models.CustomerAnalytics
		if err := cursor.Decode(&analytics); err != nil {
			result.Failed++
			utils.LogError(err, nil, "解析客户分析记录失败，跳过")
			continue
		}

		if err := s.recalculateOne(ctx, &analytics); err != nil {
			result.Failed++
			utils.LogError(err, map[string]interface{}{
				"customerId": analytics.CustomerID,
			}, "客户重算失败，跳过")
			continue
		}
		result.Processed++
	}

	if err := cursor.Err(); err != nil {
		utils.LogError(err, nil, "遍历客户分析游标失败")
	}

	// 全量重算后对整个客群做一次分群调和
	if err := RunSegmentation(ctx, s.Clock); err != nil {
		utils.LogError(err, nil, "自动分群调和失败")
	}

	utils.Logger.Info().
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Msg("分析重算任务完成")
	return result
}

// recalculateOne 重算单个客户
func (s *RecalculationScheduler) recalculateOne(ctx context.Context, analytics *models.CustomerAnalytics) error {
	agg, err := s.Provider.GetOrderAggregate(ctx, analytics.CustomerID)
	if err != nil {
		return err
	}
	return ScoreCustomer(ctx, analytics, agg, s.Clock.Now())
}

// RecalculateCustomer 即时重算单个客户（接口触发）
func RecalculateCustomer(ctx context.Context, provider OrderAggregateProvider, clock Clock, customerID string) (*models.CustomerAnalytics, error) {
	analyticsCollection := repository.Collection(repository.CustomerAnalyticsCollection)

	var analytics models.CustomerAnalytics
	if err := analyticsCollection.FindOne(ctx, bson.M{"customerId": customerID}).Decode(&analytics); err != nil {
		return nil, err
	}

	agg, err := provider.GetOrderAggregate(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if err := ScoreCustomer(ctx, &analytics, agg, clock.Now()); err != nil {
		return nil, err
	}
	return &analytics, nil
}

// ScheduleDailyTaskAt 每天指定时间执行任务
func ScheduleDailyTaskAt(hour, min, sec int, task func()) {
	go func() {
		for {
			now := time.Now()
			next := time.Date(now.Year(), now.Month(), now.Day(), hour, min, sec, 0, now.Location())
			if now.After(next) {
				next = next.Add(24 * time.Hour)
			}
			duration := next.Sub(now)
			time.Sleep(duration)
			task()
		}
	}()
}
