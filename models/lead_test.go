package models

import (
	"testing"
	"time"
)

func TestLeadHappyPath(t *testing.T) {
	now := time.Now()
	lead := &Lead{Status: LeadStatusNew}

	if err := lead.MarkAsContacted(now); err != nil {
		t.Fatalf("MarkAsContacted: %v", err)
	}
	if lead.Status != LeadStatusContacted {
		t.Fatalf("Status = %s, want contacted", lead.Status)
	}

	if err := lead.Qualify(now); err != nil {
		t.Fatalf("Qualify: %v", err)
	}
	if err := lead.AdvanceStatus(LeadStatusProposal, now); err != nil {
		t.Fatalf("AdvanceStatus(proposal): %v", err)
	}
	if err := lead.AdvanceStatus(LeadStatusNegotiation, now); err != nil {
		t.Fatalf("AdvanceStatus(negotiation): %v", err)
	}

	if err := lead.Convert("cust-1", now); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if lead.Status != LeadStatusWon {
		t.Errorf("转化后状态 = %s, want won", lead.Status)
	}
	if !lead.IsConverted || lead.ConvertedCustomerID != "cust-1" || lead.ConvertedAt == nil {
		t.Error("转化字段未正确设置")
	}
}

func TestLeadContactOnlyFromNew(t *testing.T) {
	now := time.Now()
	for _, status := range []LeadStatus{LeadStatusContacted, LeadStatusQualified, LeadStatusWon, LeadStatusLost} {
		lead := &Lead{Status: status}
		if err := lead.MarkAsContacted(now); err == nil {
			t.Errorf("状态 %s 不应允许标记已联系", status)
		}
	}
}

func TestLeadAdvanceRejectsInvalidTarget(t *testing.T) {
	now := time.Now()
	lead := &Lead{Status: LeadStatusQualified}

	for _, target := range []LeadStatus{LeadStatusNew, LeadStatusWon, LeadStatusLost, "bogus"} {
		if err := lead.AdvanceStatus(target, now); err == nil {
			t.Errorf("AdvanceStatus(%s) 应被拒绝", target)
		}
	}
}

func TestLeadTerminalRejectsOperations(t *testing.T) {
	now := time.Now()
	lead := &Lead{Status: LeadStatusWon}

	if err := lead.Qualify(now); err == nil {
		t.Error("赢单后不应允许确认意向")
	}
	if err := lead.AdvanceStatus(LeadStatusProposal, now); err == nil {
		t.Error("赢单后不应允许推进状态")
	}
	if err := lead.Assign("u1", "张三", now); err == nil {
		t.Error("赢单后不应允许重新分配")
	}
	if err := lead.SetFollowUp(now.Add(time.Hour), now); err == nil {
		t.Error("赢单后不应允许设置跟进")
	}
}

func TestLeadDoubleConvertRejected(t *testing.T) {
	now := time.Now()
	lead := &Lead{Status: LeadStatusNegotiation}

	if err := lead.Convert("cust-1", now); err != nil {
		t.Fatalf("首次转化失败: %v", err)
	}
	if err := lead.Convert("cust-2", now); err == nil {
		t.Fatal("重复转化应被拒绝")
	}
	if lead.ConvertedCustomerID != "cust-1" {
		t.Errorf("重复转化不应覆盖客户ID, got %s", lead.ConvertedCustomerID)
	}
}

func TestLeadConvertRequiresCustomerID(t *testing.T) {
	lead := &Lead{Status: LeadStatusQualified}
	if err := lead.Convert("", time.Now()); err == nil {
		t.Fatal("空客户ID应被拒绝")
	}
	if lead.IsConverted {
		t.Error("失败的转化不应改变状态")
	}
}

func TestLeadMarkAsLost(t *testing.T) {
	now := time.Now()

	lead := &Lead{Status: LeadStatusNegotiation}
	if err := lead.MarkAsLost("  ", now); err == nil {
		t.Fatal("空白原因应被拒绝")
	}
	if lead.Status != LeadStatusNegotiation {
		t.Error("失败的丢单不应改变状态")
	}

	if err := lead.MarkAsLost("价格原因", now); err != nil {
		t.Fatalf("MarkAsLost: %v", err)
	}
	if lead.Status != LeadStatusLost || lead.LossReason != "价格原因" {
		t.Error("丢单字段未正确设置")
	}

	// 已赢单的线索拒绝丢单
	won := &Lead{Status: LeadStatusWon}
	if err := won.MarkAsLost("任何原因", now); err == nil {
		t.Fatal("已赢单的线索不应允许丢单")
	}
}

func TestIsValidLeadStatus(t *testing.T) {
	for _, s := range []string{"new", "contacted", "qualified", "proposal", "negotiation", "won", "lost"} {
		if !IsValidLeadStatus(s) {
			t.Errorf("%s 应为有效状态", s)
		}
	}
	if IsValidLeadStatus("pending") {
		t.Error("pending 不应为有效状态")
	}
}
