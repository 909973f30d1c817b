package models

import (
	"testing"
	"time"
)

func TestTaskCompleteAndCancel(t *testing.T) {
	now := time.Now()

	task := &CustomerTask{Status: TaskStatusPending}
	if err := task.Complete(now); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if task.Status != TaskStatusCompleted || task.CompletedAt == nil {
		t.Error("完成字段未设置")
	}
	if err := task.Cancel(now); err == nil {
		t.Error("已完成的任务不应允许取消")
	}
	if err := task.Complete(now); err == nil {
		t.Error("重复完成应被拒绝")
	}

	task = &CustomerTask{Status: TaskStatusPending}
	if err := task.Cancel(now); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := task.Complete(now); err == nil {
		t.Error("已取消的任务不应允许完成")
	}
}

func TestIsValidInteractionType(t *testing.T) {
	for _, typ := range []string{"call", "email", "meeting", "note"} {
		if !IsValidInteractionType(typ) {
			t.Errorf("%s 应为有效互动类型", typ)
		}
	}
	if IsValidInteractionType("sms") {
		t.Error("sms 不应为有效互动类型")
	}
}
