package service

import (
	"testing"
	"time"

	"github.com/BerniceZTT/crm_marketing/models"
)

func daysAgo(now time.Time, days int) *time.Time {
	t := now.AddDate(0, 0, -days)
	return &t
}

func TestBucketRecency(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last *time.Time
		want int
	}{
		{"从未购买得1分", nil, 1},
		{"今日购买得5分", daysAgo(now, 0), 5},
		{"30天整得5分", daysAgo(now, 30), 5},
		{"31天得4分", daysAgo(now, 31), 4},
		{"60天整得4分", daysAgo(now, 60), 4},
		{"90天整得3分", daysAgo(now, 90), 3},
		{"180天整得2分", daysAgo(now, 180), 2},
		{"181天得1分", daysAgo(now, 181), 1},
		{"一年前得1分", daysAgo(now, 365), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BucketRecency(tt.last, now); got != tt.want {
				t.Errorf("BucketRecency() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBucketFrequency(t *testing.T) {
	tests := []struct {
		count int64
		want  int
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{4, 2},
		{5, 3},
		{9, 3},
		{10, 4},
		{19, 4},
		{20, 5},
		{100, 5},
	}

	for _, tt := range tests {
		if got := BucketFrequency(tt.count); got != tt.want {
			t.Errorf("BucketFrequency(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}

func TestBucketMonetary(t *testing.T) {
	tests := []struct {
		spent float64
		want  int
	}{
		{0, 1},
		{999.99, 1},
		{1000, 2},
		{4999, 2},
		{5000, 3},
		{19999, 3},
		{20000, 4},
		{49999, 4},
		{50000, 5},
		{250000, 5},
	}

	for _, tt := range tests {
		if got := BucketMonetary(tt.spent); got != tt.want {
			t.Errorf("BucketMonetary(%f) = %d, want %d", tt.spent, got, tt.want)
		}
	}
}

func TestBuildRfmInput(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	first := now.AddDate(0, -6, 0)
	last := now.AddDate(0, 0, -10)

	in := BuildRfmInput(models.OrderAggregate{
		OrderCount:      12,
		TotalSpent:      26000,
		FirstPurchaseAt: &first,
		LastPurchaseAt:  &last,
	}, now)

	if in.RecencyScore != 5 || in.FrequencyScore != 4 || in.MonetaryScore != 4 {
		t.Errorf("评分 = R%d F%d M%d, want R5 F4 M4", in.RecencyScore, in.FrequencyScore, in.MonetaryScore)
	}
	if in.OrderCount != 12 || in.TotalSpent != 26000 {
		t.Error("原始聚合数据未透传")
	}
	if in.LastPurchase == nil || !in.LastPurchase.Equal(last) {
		t.Error("最后购买时间未透传")
	}
}
