package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LeadStatus 线索状态枚举
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "new"         // 新线索
	LeadStatusContacted   LeadStatus = "contacted"   // 已联系
	LeadStatusQualified   LeadStatus = "qualified"   // 已确认意向
	LeadStatusProposal    LeadStatus = "proposal"    // 方案报价
	LeadStatusNegotiation LeadStatus = "negotiation" // 商务谈判
	LeadStatusWon         LeadStatus = "won"         // 赢单
	LeadStatusLost        LeadStatus = "lost"        // 丢单
)

// IsValidLeadStatus 验证线索状态是否有效
func IsValidLeadStatus(status string) bool {
	validStatuses := []LeadStatus{
		LeadStatusNew,
		LeadStatusContacted,
		LeadStatusQualified,
		LeadStatusProposal,
		LeadStatusNegotiation,
		LeadStatusWon,
		LeadStatusLost,
	}

	for _, s := range validStatuses {
		if string(s) == status {
			return true
		}
	}
	return false
}

// Lead 销售线索模型
type Lead struct {
	ID            primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name"`
	CompanyName   string             `json:"companyName" bson:"companyName"`
	ContactPerson string             `json:"contactPerson" bson:"contactPerson"`
	ContactPhone  string             `json:"contactPhone" bson:"contactPhone"`
	ContactEmail  string             `json:"contactEmail" bson:"contactEmail"`
	Source        string             `json:"source" bson:"source"`
	Status        LeadStatus         `json:"status" bson:"status"`

	// 看板列，与状态独立
	StageID *primitive.ObjectID `json:"stageId,omitempty" bson:"stageId,omitempty"`

	AssigneeID     string     `json:"assigneeId,omitempty" bson:"assigneeId,omitempty"`
	AssigneeName   string     `json:"assigneeName,omitempty" bson:"assigneeName,omitempty"`
	EstimatedValue float64    `json:"estimatedValue" bson:"estimatedValue"`
	NextFollowUpAt *time.Time `json:"nextFollowUpAt,omitempty" bson:"nextFollowUpAt,omitempty"`

	// 转化字段，IsConverted 单向置真，不可回退
	IsConverted         bool       `json:"isConverted" bson:"isConverted"`
	ConvertedCustomerID string     `json:"convertedCustomerId,omitempty" bson:"convertedCustomerId,omitempty"`
	ConvertedAt         *time.Time `json:"convertedAt,omitempty" bson:"convertedAt,omitempty"`

	LossReason string `json:"lossReason,omitempty" bson:"lossReason,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// IsTerminal 线索是否处于终态
func (l *Lead) IsTerminal() bool {
	return l.Status == LeadStatusWon || l.Status == LeadStatusLost
}

// MarkAsContacted 标记已联系，仅允许从新线索状态触发
func (l *Lead) MarkAsContacted(now time.Time) error {
	if l.Status != LeadStatusNew {
		return fmt.Errorf("仅新线索可标记为已联系，当前状态: %s", l.Status)
	}
	l.Status = LeadStatusContacted
	l.UpdatedAt = now
	return nil
}

// Qualify 确认意向，终态不允许
func (l *Lead) Qualify(now time.Time) error {
	if l.IsTerminal() {
		return fmt.Errorf("线索已结束(%s)，不能再确认意向", l.Status)
	}
	l.Status = LeadStatusQualified
	l.UpdatedAt = now
	return nil
}

// AdvanceStatus 推进到指定的销售状态（方案报价/商务谈判），终态不允许
func (l *Lead) AdvanceStatus(status LeadStatus, now time.Time) error {
	if l.IsTerminal() {
		return fmt.Errorf("线索已结束(%s)，不能推进状态", l.Status)
	}
	if status != LeadStatusProposal && status != LeadStatusNegotiation {
		return fmt.Errorf("无效的目标状态: %s", status)
	}
	l.Status = status
	l.UpdatedAt = now
	return nil
}

// MoveToStage 移动到看板列，不影响线索状态
func (l *Lead) MoveToStage(stageID primitive.ObjectID, now time.Time) error {
	if l.IsTerminal() {
		return fmt.Errorf("线索已结束(%s)，不能移动看板列", l.Status)
	}
	l.StageID = &stageID
	l.UpdatedAt = now
	return nil
}

// Assign 分配负责人
func (l *Lead) Assign(assigneeID, assigneeName string, now time.Time) error {
	if l.IsTerminal() {
		return fmt.Errorf("线索已结束(%s)，不能重新分配", l.Status)
	}
	l.AssigneeID = assigneeID
	l.AssigneeName = assigneeName
	l.UpdatedAt = now
	return nil
}

// SetFollowUp 设置下次跟进时间
func (l *Lead) SetFollowUp(at time.Time, now time.Time) error {
	if l.IsTerminal() {
		return fmt.Errorf("线索已结束(%s)，不能设置跟进", l.Status)
	}
	followUpAt := at
	l.NextFollowUpAt = &followUpAt
	l.UpdatedAt = now
	return nil
}

// Convert 转化为客户，已转化的线索拒绝重复转化，成功后强制置为赢单
func (l *Lead) Convert(customerID string, now time.Time) error {
	if l.IsConverted {
		return fmt.Errorf("线索已转化为客户(%s)，不能重复转化", l.ConvertedCustomerID)
	}
	if customerID == "" {
		return fmt.Errorf("转化目标客户ID不能为空")
	}

	l.IsConverted = true
	l.ConvertedCustomerID = customerID
	convertedAt := now
	l.ConvertedAt = &convertedAt
	l.Status = LeadStatusWon
	l.UpdatedAt = now
	return nil
}

// MarkAsLost 标记丢单，必须给出原因，已赢单的线索拒绝
func (l *Lead) MarkAsLost(reason string, now time.Time) error {
	if l.Status == LeadStatusWon {
		return fmt.Errorf("已赢单的线索不能标记为丢单")
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("丢单必须填写原因")
	}
	l.Status = LeadStatusLost
	l.LossReason = reason
	l.UpdatedAt = now
	return nil
}

// LeadPipelineStage 销售管道看板列
type LeadPipelineStage struct {
	ID             primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Name           string             `json:"name" bson:"name"`
	SortOrder      int                `json:"sortOrder" bson:"sortOrder"`
	WinProbability int                `json:"winProbability" bson:"winProbability"` // 0-100
	IsFinalStage   bool               `json:"isFinalStage" bson:"isFinalStage"`
	IsWonStage     bool               `json:"isWonStage" bson:"isWonStage"`

	// 缓存聚合，由服务层在线索变动后重算
	LeadCount           int64   `json:"leadCount" bson:"leadCount"`
	TotalEstimatedValue float64 `json:"totalEstimatedValue" bson:"totalEstimatedValue"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// LeadCreateRequest 创建线索请求
type LeadCreateRequest struct {
	Name           string  `json:"name" binding:"required"`
	CompanyName    string  `json:"companyName"`
	ContactPerson  string  `json:"contactPerson"`
	ContactPhone   string  `json:"contactPhone"`
	ContactEmail   string  `json:"contactEmail"`
	Source         string  `json:"source"`
	StageID        string  `json:"stageId"`
	AssigneeID     string  `json:"assigneeId"`
	AssigneeName   string  `json:"assigneeName"`
	EstimatedValue float64 `json:"estimatedValue"`
}

// LeadUpdateRequest 更新线索请求
type LeadUpdateRequest struct {
	Name           *string  `json:"name"`
	CompanyName    *string  `json:"companyName"`
	ContactPerson  *string  `json:"contactPerson"`
	ContactPhone   *string  `json:"contactPhone"`
	ContactEmail   *string  `json:"contactEmail"`
	Source         *string  `json:"source"`
	EstimatedValue *float64 `json:"estimatedValue"`
}

// LeadAssignRequest 分配线索请求
type LeadAssignRequest struct {
	AssigneeID   string `json:"assigneeId" binding:"required"`
	AssigneeName string `json:"assigneeName"`
}

// LeadMoveStageRequest 移动看板列请求
type LeadMoveStageRequest struct {
	StageID string `json:"stageId" binding:"required"`
}

// LeadFollowUpRequest 设置跟进时间请求
type LeadFollowUpRequest struct {
	FollowUpAt time.Time `json:"followUpAt" binding:"required"`
	Remark     string    `json:"remark"`
}

// LeadConvertRequest 转化线索请求
type LeadConvertRequest struct {
	CustomerID string `json:"customerId" binding:"required"`
}

// LeadLostRequest 丢单请求
type LeadLostRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// PipelineStageRequest 创建/更新看板列请求
type PipelineStageRequest struct {
	Name           string `json:"name" binding:"required"`
	SortOrder      int    `json:"sortOrder"`
	WinProbability int    `json:"winProbability"`
	IsFinalStage   bool   `json:"isFinalStage"`
	IsWonStage     bool   `json:"isWonStage"`
}
