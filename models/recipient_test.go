package models

import (
	"testing"
	"time"
)

func TestRecipientStatusLadder(t *testing.T) {
	now := time.Now()
	r := &EmailCampaignRecipient{Status: RecipientStatusPending}

	if !r.MarkSent(now) {
		t.Fatal("pending -> sent 应推进")
	}
	if !r.MarkDelivered(now) {
		t.Fatal("sent -> delivered 应推进")
	}
	if !r.RecordOpen(now) {
		t.Fatal("delivered -> opened 应推进")
	}
	if !r.RecordClick("https://example.com", now) {
		t.Fatal("opened -> clicked 应推进")
	}
	if r.Status != RecipientStatusClicked {
		t.Errorf("Status = %s, want clicked", r.Status)
	}
}

// 投递循环以 pending -> sent 的条件更新认领收件人，
// 暂停恢复后即使短暂存在两个循环，第二次标记也不再推进
func TestRecipientMarkSentOnlyAdvancesOnce(t *testing.T) {
	now := time.Now()
	r := &EmailCampaignRecipient{Status: RecipientStatusPending}

	if !r.MarkSent(now) {
		t.Fatal("pending -> sent 应推进")
	}
	firstSentAt := *r.SentAt

	later := now.Add(time.Minute)
	if r.MarkSent(later) {
		t.Error("已发送的收件人重复标记不应再推进")
	}
	if !r.SentAt.Equal(firstSentAt) {
		t.Errorf("SentAt = %v, 应保留首次发送时间 %v", r.SentAt, firstSentAt)
	}
}

// 认领成功后实际发送失败，从 sent 标记为 failed
func TestRecipientMarkFailedAfterSent(t *testing.T) {
	now := time.Now()
	r := &EmailCampaignRecipient{Status: RecipientStatusSent}

	if !r.MarkFailed("smtp连接超时", now) {
		t.Fatal("已发送的收件人应允许标记失败")
	}
	if r.Status != RecipientStatusFailed {
		t.Errorf("Status = %s, want failed", r.Status)
	}
	if r.FailureReason != "smtp连接超时" {
		t.Errorf("FailureReason = %q", r.FailureReason)
	}
}

func TestRecipientStatusNeverRegresses(t *testing.T) {
	now := time.Now()
	r := &EmailCampaignRecipient{Status: RecipientStatusClicked}

	if r.RecordOpen(now) {
		t.Error("已点击的收件人打开不应回退状态")
	}
	if r.Status != RecipientStatusClicked {
		t.Errorf("Status = %s, want clicked", r.Status)
	}
	if r.MarkDelivered(now) {
		t.Error("已点击的收件人不应回退到已送达")
	}
	if r.MarkSent(now) {
		t.Error("已点击的收件人不应回退到已发送")
	}
}

func TestRecipientDoubleOpen(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	r := &EmailCampaignRecipient{Status: RecipientStatusDelivered}

	r.RecordOpen(base)
	firstOpenedAt := *r.OpenedAt

	// 第二次打开：计数累加，首次打开时间不变
	r.RecordOpen(base.Add(time.Hour))

	if r.OpenCount != 2 {
		t.Errorf("OpenCount = %d, want 2", r.OpenCount)
	}
	if !r.OpenedAt.Equal(firstOpenedAt) {
		t.Error("首次打开时间不应被覆盖")
	}
}

func TestRecipientClickImpliesOpen(t *testing.T) {
	now := time.Now()
	r := &EmailCampaignRecipient{Status: RecipientStatusSent}

	// 像素被屏蔽时点击可能先于打开到达
	if !r.RecordClick("https://example.com/a", now) {
		t.Fatal("点击应推进状态")
	}
	if r.Status != RecipientStatusClicked {
		t.Errorf("Status = %s, want clicked", r.Status)
	}
	if r.OpenedAt == nil {
		t.Error("点击应补记打开时间")
	}
}

func TestRecipientClickLinkDedup(t *testing.T) {
	now := time.Now()
	r := &EmailCampaignRecipient{Status: RecipientStatusOpened}

	r.RecordClick("https://example.com/a", now)
	r.RecordClick("https://example.com/a", now)
	r.RecordClick("https://example.com/b", now)
	r.RecordClick("", now)

	if r.ClickCount != 4 {
		t.Errorf("ClickCount = %d, want 4", r.ClickCount)
	}
	if len(r.ClickedLinks) != 2 {
		t.Errorf("ClickedLinks = %v, want 2个去重链接", r.ClickedLinks)
	}
}

func TestRecipientTerminalShortCircuit(t *testing.T) {
	now := time.Now()
	r := &EmailCampaignRecipient{Status: RecipientStatusSent}

	if !r.MarkBounced(now) {
		t.Fatal("退信应成功")
	}

	// 终态后一切推进与再次短路均为空操作
	if r.RecordOpen(now) || r.RecordClick("https://example.com", now) {
		t.Error("退信后不应再推进状态")
	}
	if r.MarkUnsubscribed(now) || r.MarkFailed("x", now) || r.MarkBounced(now) {
		t.Error("终态之间不应互相覆盖")
	}
	if r.Status != RecipientStatusBounced {
		t.Errorf("Status = %s, want bounced", r.Status)
	}
}

func TestRecipientOpenCountStillIncrementsAfterTerminal(t *testing.T) {
	now := time.Now()
	r := &EmailCampaignRecipient{Status: RecipientStatusUnsubscribed}

	r.RecordOpen(now)
	if r.OpenCount != 1 {
		t.Errorf("计数应始终累加, OpenCount = %d", r.OpenCount)
	}
	if r.Status != RecipientStatusUnsubscribed {
		t.Errorf("状态不应变化, got %s", r.Status)
	}
	if r.OpenedAt != nil {
		t.Error("终态下不应补记打开时间")
	}
}
