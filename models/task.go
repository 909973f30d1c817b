package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStatus 客户任务状态枚举
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待办
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusCancelled TaskStatus = "cancelled" // 已取消
)

// 互动记录类型
const (
	InteractionTypeCall    = "call"    // 电话
	InteractionTypeEmail   = "email"   // 邮件
	InteractionTypeMeeting = "meeting" // 会面
	InteractionTypeNote    = "note"    // 备注
)

// IsValidInteractionType 验证互动类型是否有效
func IsValidInteractionType(t string) bool {
	return t == InteractionTypeCall ||
		t == InteractionTypeEmail ||
		t == InteractionTypeMeeting ||
		t == InteractionTypeNote
}

// CustomerTask 客户/线索任务，线索跟进计划落在这里
type CustomerTask struct {
	ID         primitive.ObjectID  `json:"_id,omitempty" bson:"_id,omitempty"`
	CustomerID string              `json:"customerId,omitempty" bson:"customerId,omitempty"`
	LeadID     *primitive.ObjectID `json:"leadId,omitempty" bson:"leadId,omitempty"`
	Title      string              `json:"title" bson:"title"`
	Remark     string              `json:"remark" bson:"remark"`
	Status     TaskStatus          `json:"status" bson:"status"`
	DueAt      *time.Time          `json:"dueAt,omitempty" bson:"dueAt,omitempty"`
	AssigneeID string              `json:"assigneeId,omitempty" bson:"assigneeId,omitempty"`

	CompletedAt *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	CreatedBy   string     `json:"createdBy" bson:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Complete 完成任务，仅待办任务允许
func (t *CustomerTask) Complete(now time.Time) error {
	if t.Status != TaskStatusPending {
		return fmt.Errorf("仅待办任务可以完成，当前状态: %s", t.Status)
	}
	t.Status = TaskStatusCompleted
	completedAt := now
	t.CompletedAt = &completedAt
	t.UpdatedAt = now
	return nil
}

// Cancel 取消任务，仅待办任务允许
func (t *CustomerTask) Cancel(now time.Time) error {
	if t.Status != TaskStatusPending {
		return fmt.Errorf("仅待办任务可以取消，当前状态: %s", t.Status)
	}
	t.Status = TaskStatusCancelled
	t.UpdatedAt = now
	return nil
}

// CustomerInteraction 客户互动记录，只追加不修改
type CustomerInteraction struct {
	ID           primitive.ObjectID  `json:"_id,omitempty" bson:"_id,omitempty"`
	CustomerID   string              `json:"customerId,omitempty" bson:"customerId,omitempty"`
	LeadID       *primitive.ObjectID `json:"leadId,omitempty" bson:"leadId,omitempty"`
	Type         string              `json:"type" bson:"type"`
	Content      string              `json:"content" bson:"content"`
	OperatorID   string              `json:"operatorId" bson:"operatorId"`
	OperatorName string              `json:"operatorName" bson:"operatorName"`
	CreatedAt    time.Time           `json:"createdAt" bson:"createdAt"`
}

// TaskCreateRequest 创建任务请求
type TaskCreateRequest struct {
	CustomerID string     `json:"customerId"`
	LeadID     string     `json:"leadId"`
	Title      string     `json:"title" binding:"required"`
	Remark     string     `json:"remark"`
	DueAt      *time.Time `json:"dueAt"`
	AssigneeID string     `json:"assigneeId"`
}

// InteractionCreateRequest 创建互动记录请求
type InteractionCreateRequest struct {
	CustomerID string `json:"customerId"`
	LeadID     string `json:"leadId"`
	Type       string `json:"type" binding:"required"`
	Content    string `json:"content" binding:"required"`
}
