package models

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func intPtr(v int) *int { return &v }

func TestTargetingValidate(t *testing.T) {
	segmentID := primitive.NewObjectID()

	tests := []struct {
		name      string
		targeting CampaignTargeting
		wantErr   bool
	}{
		{"未选择目标", CampaignTargeting{}, true},
		{"按分群", CampaignTargeting{SegmentID: &segmentID}, false},
		{"按生命周期阶段", CampaignTargeting{LifecycleStages: []LifecycleStage{LifecycleStageVIP, LifecycleStageChampion}}, false},
		{"按最低RFM评分", CampaignTargeting{MinRfmScore: intPtr(10)}, false},
		{"组合方式拒绝", CampaignTargeting{SegmentID: &segmentID, MinRfmScore: intPtr(10)}, true},
		{"评分低于下限", CampaignTargeting{MinRfmScore: intPtr(2)}, true},
		{"评分高于上限", CampaignTargeting{MinRfmScore: intPtr(16)}, true},
		{"评分边界3", CampaignTargeting{MinRfmScore: intPtr(3)}, false},
		{"评分边界15", CampaignTargeting{MinRfmScore: intPtr(15)}, false},
		{"无效阶段", CampaignTargeting{LifecycleStages: []LifecycleStage{"ghost"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.targeting.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCampaignLifecycle(t *testing.T) {
	now := time.Now()
	campaign := &EmailCampaign{Status: CampaignStatusDraft}

	if err := campaign.CanUpdateContent(); err != nil {
		t.Fatalf("草稿应允许编辑: %v", err)
	}

	if err := campaign.Schedule(now.Add(time.Hour), now); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if campaign.Status != CampaignStatusScheduled || campaign.ScheduledAt == nil {
		t.Fatal("排期字段未设置")
	}
	if err := campaign.CanUpdateContent(); err == nil {
		t.Error("排期后不应允许编辑内容")
	}

	if err := campaign.Unschedule(now); err != nil {
		t.Fatalf("Unschedule: %v", err)
	}
	if campaign.Status != CampaignStatusDraft || campaign.ScheduledAt != nil {
		t.Fatal("取消排期后应回到草稿")
	}

	if err := campaign.StartSending(120, now); err != nil {
		t.Fatalf("StartSending: %v", err)
	}
	if campaign.TotalRecipients != 120 || campaign.SentAt == nil {
		t.Error("开始发送字段未设置")
	}

	if err := campaign.MarkAsSent(now); err != nil {
		t.Fatalf("MarkAsSent: %v", err)
	}
	if campaign.Status != CampaignStatusSent || campaign.CompletedAt == nil {
		t.Error("完成字段未设置")
	}
}

func TestCampaignPauseResume(t *testing.T) {
	now := time.Now()
	campaign := &EmailCampaign{Status: CampaignStatusSending}

	if err := campaign.Pause(now); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := campaign.Pause(now); err == nil {
		t.Error("重复暂停应被拒绝")
	}
	if err := campaign.MarkAsSent(now); err == nil {
		t.Error("暂停中不应允许标记完成")
	}
	if err := campaign.Resume(now); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if campaign.Status != CampaignStatusSending {
		t.Errorf("恢复后状态 = %s, want sending", campaign.Status)
	}

	// 仅已暂停的活动可以恢复
	draft := &EmailCampaign{Status: CampaignStatusDraft}
	if err := draft.Resume(now); err == nil {
		t.Error("草稿不应允许恢复")
	}
}

func TestCampaignCancel(t *testing.T) {
	now := time.Now()

	for _, status := range []CampaignStatus{CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending, CampaignStatusPaused} {
		campaign := &EmailCampaign{Status: status}
		if err := campaign.Cancel(now); err != nil {
			t.Errorf("状态 %s 应允许取消: %v", status, err)
		}
	}

	sent := &EmailCampaign{Status: CampaignStatusSent}
	if err := sent.Cancel(now); err == nil {
		t.Error("已发送的活动不应允许取消")
	}

	cancelled := &EmailCampaign{Status: CampaignStatusCancelled}
	if err := cancelled.Cancel(now); err == nil {
		t.Error("重复取消应被拒绝")
	}
}

func TestCampaignStartSendingGuard(t *testing.T) {
	now := time.Now()
	for _, status := range []CampaignStatus{CampaignStatusSending, CampaignStatusSent, CampaignStatusPaused, CampaignStatusCancelled} {
		campaign := &EmailCampaign{Status: status}
		if err := campaign.StartSending(10, now); err == nil {
			t.Errorf("状态 %s 不应允许开始发送", status)
		}
	}
}

// 物化收件人之前用 CanStartSending 预检，
// 终态/发送中的活动必须在产生任何写入前被拒绝
func TestCampaignCanStartSending(t *testing.T) {
	for _, status := range []CampaignStatus{CampaignStatusDraft, CampaignStatusScheduled} {
		campaign := &EmailCampaign{Status: status}
		if err := campaign.CanStartSending(); err != nil {
			t.Errorf("状态 %s 应允许开始发送: %v", status, err)
		}
	}
	for _, status := range []CampaignStatus{CampaignStatusSending, CampaignStatusSent, CampaignStatusPaused, CampaignStatusCancelled} {
		campaign := &EmailCampaign{Status: status}
		if err := campaign.CanStartSending(); err == nil {
			t.Errorf("状态 %s 的预检应拒绝开始发送", status)
		}

		// 预检拒绝时不得改动任何字段
		if campaign.Status != status || campaign.TotalRecipients != 0 || campaign.SentAt != nil {
			t.Errorf("状态 %s 预检拒绝后字段被改动", status)
		}
	}
}

func TestRecomputeRates(t *testing.T) {
	campaign := &EmailCampaign{
		TotalRecipients: 200,
		OpenedCount:     50,
		ClickedCount:    10,
		BouncedCount:    4,
	}
	campaign.RecomputeRates()

	if campaign.OpenRate != 25 {
		t.Errorf("OpenRate = %f, want 25", campaign.OpenRate)
	}
	if campaign.ClickRate != 20 {
		t.Errorf("ClickRate = %f, want 20", campaign.ClickRate)
	}
	if campaign.BounceRate != 2 {
		t.Errorf("BounceRate = %f, want 2", campaign.BounceRate)
	}
}

func TestRecomputeRatesZeroDenominators(t *testing.T) {
	// 零收件人/零打开时比率一律为0，不产生NaN
	campaign := &EmailCampaign{ClickedCount: 5}
	campaign.RecomputeRates()

	if campaign.OpenRate != 0 || campaign.ClickRate != 0 || campaign.BounceRate != 0 {
		t.Errorf("零分母应得0: open=%f click=%f bounce=%f",
			campaign.OpenRate, campaign.ClickRate, campaign.BounceRate)
	}
}

func TestRecomputeRatesCappedAt100(t *testing.T) {
	// 打开数可因重复打开超过收件人数，比率封顶100
	campaign := &EmailCampaign{TotalRecipients: 10, OpenedCount: 25}
	campaign.RecomputeRates()

	if campaign.OpenRate != 100 {
		t.Errorf("OpenRate = %f, want 100", campaign.OpenRate)
	}
}
