package models

import (
	"testing"
	"time"
)

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{3, 3},
		{5, 5},
		{6, 5},
		{100, 5},
	}

	for _, tt := range tests {
		if got := ClampScore(tt.in); got != tt.want {
			t.Errorf("ClampScore(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClassifyLifecycle(t *testing.T) {
	tests := []struct {
		name       string
		totalRfm   int
		days       int
		orderCount int64
		want       LifecycleStage
	}{
		{"高分近期购买为冠军", 13, 5, 20, LifecycleStageChampion},
		{"总分12刚好进冠军", 12, 10, 8, LifecycleStageChampion},
		{"总分10为VIP", 10, 30, 6, LifecycleStageVIP},
		{"总分11为VIP", 11, 30, 6, LifecycleStageVIP},
		{"总分7为活跃", 7, 45, 4, LifecycleStageActive},
		{"总分9为活跃", 9, 20, 5, LifecycleStageActive},
		{"总分5为流失风险", 5, 60, 3, LifecycleStageAtRisk},
		{"总分3有订单为流失", 3, 10, 2, LifecycleStageChurned},
		{"总分2无订单为新客户", 2, DaysSinceLastPurchaseMax, 0, LifecycleStageNew},
		{"高分但超90天未购买为流失", 13, 91, 20, LifecycleStageChurned},
		{"高分90天整未流失", 13, 90, 20, LifecycleStageChampion},
		{"无购买记录的新客户", 3, DaysSinceLastPurchaseMax, 0, LifecycleStageNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyLifecycle(tt.totalRfm, tt.days, tt.orderCount)
			if got != tt.want {
				t.Errorf("ClassifyLifecycle(%d, %d, %d) = %s, want %s",
					tt.totalRfm, tt.days, tt.orderCount, got, tt.want)
			}
		})
	}
}

func TestDaysSinceLastPurchase(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	a := &CustomerAnalytics{}
	if got := a.DaysSinceLastPurchase(now); got != DaysSinceLastPurchaseMax {
		t.Errorf("无购买记录应返回哨兵值, got %d", got)
	}

	last := now.AddDate(0, 0, -30)
	a.LastPurchaseDate = &last
	if got := a.DaysSinceLastPurchase(now); got != 30 {
		t.Errorf("DaysSinceLastPurchase = %d, want 30", got)
	}

	// 未来的购买时间不应产生负数
	future := now.Add(24 * time.Hour)
	a.LastPurchaseDate = &future
	if got := a.DaysSinceLastPurchase(now); got != 0 {
		t.Errorf("未来时间应返回0, got %d", got)
	}
}

func TestApplyRfmScores(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	last := now.AddDate(0, 0, -10)

	a := &CustomerAnalytics{CustomerID: "c1", LifecycleStage: LifecycleStageNew}
	a.ApplyRfmScores(RfmInput{
		RecencyScore:   5,
		FrequencyScore: 4,
		MonetaryScore:  4,
		OrderCount:     10,
		TotalSpent:     25000,
		LastPurchase:   &last,
	}, now)

	if a.TotalRfmScore != 13 {
		t.Errorf("TotalRfmScore = %d, want 13", a.TotalRfmScore)
	}
	if a.AverageOrderValue != 2500 {
		t.Errorf("AverageOrderValue = %f, want 2500", a.AverageOrderValue)
	}
	if a.LifecycleStage != LifecycleStageChampion {
		t.Errorf("LifecycleStage = %s, want champion", a.LifecycleStage)
	}
	if a.LastRfmCalculatedAt == nil || !a.LastRfmCalculatedAt.Equal(now) {
		t.Errorf("LastRfmCalculatedAt 未设置")
	}
}

func TestApplyRfmScoresClampsOutOfRange(t *testing.T) {
	now := time.Now()
	a := &CustomerAnalytics{}
	a.ApplyRfmScores(RfmInput{RecencyScore: 9, FrequencyScore: -2, MonetaryScore: 0}, now)

	if a.RecencyScore != 5 || a.FrequencyScore != 1 || a.MonetaryScore != 1 {
		t.Errorf("评分未截断: R=%d F=%d M=%d", a.RecencyScore, a.FrequencyScore, a.MonetaryScore)
	}
	if a.TotalRfmScore != 7 {
		t.Errorf("TotalRfmScore = %d, want 7", a.TotalRfmScore)
	}
}

func TestReclassifyChangedAtOnlyOnChange(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	last := now.AddDate(0, 0, -5)

	a := &CustomerAnalytics{
		TotalRfmScore:    13,
		TotalOrderCount:  10,
		LastPurchaseDate: &last,
		LifecycleStage:   LifecycleStageActive,
	}

	if changed := a.Reclassify(now); !changed {
		t.Fatal("阶段应发生变化")
	}
	if a.LifecycleStage != LifecycleStageChampion {
		t.Fatalf("LifecycleStage = %s, want champion", a.LifecycleStage)
	}
	firstChangedAt := *a.LifecycleStageChangedAt

	// 再次推导阶段不变，变更时间不应刷新
	later := now.Add(time.Hour)
	if changed := a.Reclassify(later); changed {
		t.Fatal("阶段未变化时不应返回true")
	}
	if !a.LifecycleStageChangedAt.Equal(firstChangedAt) {
		t.Errorf("阶段未变化时变更时间被刷新")
	}
}

func TestRecordEmailEngagement(t *testing.T) {
	now := time.Now()
	a := &CustomerAnalytics{}

	a.RecordEmailOpen(now)
	a.RecordEmailOpen(now)
	a.RecordEmailClick(now)

	if a.EmailOpenCount != 2 {
		t.Errorf("EmailOpenCount = %d, want 2", a.EmailOpenCount)
	}
	if a.EmailClickCount != 1 {
		t.Errorf("EmailClickCount = %d, want 1", a.EmailClickCount)
	}
	if a.LastEmailOpenedAt == nil || a.LastEmailClickAt == nil {
		t.Error("互动时间未记录")
	}
}
