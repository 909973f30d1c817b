package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LifecycleStage 客户生命周期阶段枚举
type LifecycleStage string

const (
	LifecycleStageNew      LifecycleStage = "new"      // 新客户
	LifecycleStageActive   LifecycleStage = "active"   // 活跃客户
	LifecycleStageAtRisk   LifecycleStage = "at_risk"  // 流失风险客户
	LifecycleStageChurned  LifecycleStage = "churned"  // 已流失客户
	LifecycleStageVIP      LifecycleStage = "vip"      // VIP客户
	LifecycleStageChampion LifecycleStage = "champion" // 冠军客户
)

// IsValidLifecycleStage 验证生命周期阶段是否有效
func IsValidLifecycleStage(stage string) bool {
	validStages := []LifecycleStage{
		LifecycleStageNew,
		LifecycleStageActive,
		LifecycleStageAtRisk,
		LifecycleStageChurned,
		LifecycleStageVIP,
		LifecycleStageChampion,
	}

	for _, s := range validStages {
		if string(s) == stage {
			return true
		}
	}
	return false
}

// 没有最后购买时间时的天数哨兵值，视为"无限久远"
const DaysSinceLastPurchaseMax = 1 << 30

// 超过该天数未购买的客户视为流失
const ChurnDaysThreshold = 90

// CustomerAnalytics 客户分析模型
type CustomerAnalytics struct {
	ID         primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	CustomerID string             `json:"customerId" bson:"customerId"`

	// 客户快照信息（来自商城用户，用于收件人物化）
	CustomerEmail string `json:"customerEmail" bson:"customerEmail"`
	CustomerName  string `json:"customerName" bson:"customerName"`

	// RFM 评分，各维度限定在 [1,5]
	RecencyScore   int `json:"recencyScore" bson:"recencyScore"`
	FrequencyScore int `json:"frequencyScore" bson:"frequencyScore"`
	MonetaryScore  int `json:"monetaryScore" bson:"monetaryScore"`
	TotalRfmScore  int `json:"totalRfmScore" bson:"totalRfmScore"`

	// 订单聚合数据
	TotalOrderCount   int64      `json:"totalOrderCount" bson:"totalOrderCount"`
	TotalSpent        float64    `json:"totalSpent" bson:"totalSpent"`
	AverageOrderValue float64    `json:"averageOrderValue" bson:"averageOrderValue"`
	FirstPurchaseDate *time.Time `json:"firstPurchaseDate,omitempty" bson:"firstPurchaseDate,omitempty"`
	LastPurchaseDate  *time.Time `json:"lastPurchaseDate,omitempty" bson:"lastPurchaseDate,omitempty"`

	// 生命周期阶段
	LifecycleStage          LifecycleStage `json:"lifecycleStage" bson:"lifecycleStage"`
	LifecycleStageChangedAt *time.Time     `json:"lifecycleStageChangedAt,omitempty" bson:"lifecycleStageChangedAt,omitempty"`

	// 邮件互动计数
	EmailOpenCount    int64      `json:"emailOpenCount" bson:"emailOpenCount"`
	EmailClickCount   int64      `json:"emailClickCount" bson:"emailClickCount"`
	LastEmailOpenedAt *time.Time `json:"lastEmailOpenedAt,omitempty" bson:"lastEmailOpenedAt,omitempty"`
	LastEmailClickAt  *time.Time `json:"lastEmailClickAt,omitempty" bson:"lastEmailClickAt,omitempty"`

	InternalNotes       string     `json:"internalNotes" bson:"internalNotes"`
	LastRfmCalculatedAt *time.Time `json:"lastRfmCalculatedAt,omitempty" bson:"lastRfmCalculatedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// RfmInput 一次重算的输入：已分桶的三项评分加原始订单聚合
type RfmInput struct {
	RecencyScore   int        `json:"recencyScore"`
	FrequencyScore int        `json:"frequencyScore"`
	MonetaryScore  int        `json:"monetaryScore"`
	OrderCount     int64      `json:"orderCount"`
	TotalSpent     float64    `json:"totalSpent"`
	FirstPurchase  *time.Time `json:"firstPurchaseAt,omitempty"`
	LastPurchase   *time.Time `json:"lastPurchaseAt,omitempty"`
}

// ClampScore 将评分限定在 [1,5]，越界值不拒绝而是截断
func ClampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 5 {
		return 5
	}
	return score
}

// DaysSinceLastPurchase 距最后购买的天数，没有购买记录时返回哨兵最大值
func (a *CustomerAnalytics) DaysSinceLastPurchase(now time.Time) int {
	if a.LastPurchaseDate == nil {
		return DaysSinceLastPurchaseMax
	}
	days := int(now.Sub(*a.LastPurchaseDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// ApplyRfmScores 应用一次 RFM 重算结果并重新推导生命周期阶段
func (a *CustomerAnalytics) ApplyRfmScores(in RfmInput, now time.Time) {
	a.RecencyScore = ClampScore(in.RecencyScore)
	a.FrequencyScore = ClampScore(in.FrequencyScore)
	a.MonetaryScore = ClampScore(in.MonetaryScore)
	a.TotalRfmScore = a.RecencyScore + a.FrequencyScore + a.MonetaryScore

	a.TotalOrderCount = in.OrderCount
	a.TotalSpent = in.TotalSpent
	if in.OrderCount > 0 {
		a.AverageOrderValue = in.TotalSpent / float64(in.OrderCount)
	} else {
		a.AverageOrderValue = 0
	}
	a.FirstPurchaseDate = in.FirstPurchase
	a.LastPurchaseDate = in.LastPurchase

	calculatedAt := now
	a.LastRfmCalculatedAt = &calculatedAt
	a.UpdatedAt = now

	a.Reclassify(now)
}

// ClassifyLifecycle 生命周期阶段推导，纯函数
// 流失判定（总分 < 4 或超过 90 天未购买）优先于评分阶梯，
// 未产生过订单的客户归为新客户而非流失
func ClassifyLifecycle(totalRfmScore int, daysSinceLastPurchase int, totalOrderCount int64) LifecycleStage {
	if totalRfmScore < 4 || daysSinceLastPurchase > ChurnDaysThreshold {
		if totalOrderCount > 0 {
			return LifecycleStageChurned
		}
		return LifecycleStageNew
	}

	switch {
	case totalRfmScore >= 12:
		return LifecycleStageChampion
	case totalRfmScore >= 10:
		return LifecycleStageVIP
	case totalRfmScore >= 7:
		return LifecycleStageActive
	default:
		return LifecycleStageAtRisk
	}
}

// Reclassify 重新推导生命周期阶段，仅在阶段变化时刷新变更时间
func (a *CustomerAnalytics) Reclassify(now time.Time) bool {
	stage := ClassifyLifecycle(a.TotalRfmScore, a.DaysSinceLastPurchase(now), a.TotalOrderCount)
	if stage == a.LifecycleStage {
		return false
	}

	a.LifecycleStage = stage
	changedAt := now
	a.LifecycleStageChangedAt = &changedAt
	return true
}

// RecordEmailOpen 记录一次邮件打开互动
func (a *CustomerAnalytics) RecordEmailOpen(now time.Time) {
	a.EmailOpenCount++
	openedAt := now
	a.LastEmailOpenedAt = &openedAt
	a.UpdatedAt = now
}

// RecordEmailClick 记录一次邮件点击互动
func (a *CustomerAnalytics) RecordEmailClick(now time.Time) {
	a.EmailClickCount++
	clickedAt := now
	a.LastEmailClickAt = &clickedAt
	a.UpdatedAt = now
}

// Snapshot 构建分群规则评估用的客户快照
func (a *CustomerAnalytics) Snapshot(now time.Time) CustomerSnapshot {
	return CustomerSnapshot{
		TotalRfmScore:         a.TotalRfmScore,
		RecencyScore:          a.RecencyScore,
		FrequencyScore:        a.FrequencyScore,
		MonetaryScore:         a.MonetaryScore,
		LifecycleStage:        a.LifecycleStage,
		TotalSpent:            a.TotalSpent,
		TotalOrderCount:       a.TotalOrderCount,
		DaysSinceLastPurchase: a.DaysSinceLastPurchase(now),
	}
}

// AnalyticsNotesRequest 更新内部备注请求
type AnalyticsNotesRequest struct {
	InternalNotes string `json:"internalNotes"`
}
