package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecipientStatus 收件人投递状态枚举
type RecipientStatus string

const (
	RecipientStatusPending      RecipientStatus = "pending"      // 待发送
	RecipientStatusSent         RecipientStatus = "sent"         // 已发送
	RecipientStatusDelivered    RecipientStatus = "delivered"    // 已送达
	RecipientStatusOpened       RecipientStatus = "opened"       // 已打开
	RecipientStatusClicked      RecipientStatus = "clicked"      // 已点击
	RecipientStatusBounced      RecipientStatus = "bounced"      // 退信
	RecipientStatusUnsubscribed RecipientStatus = "unsubscribed" // 已退订
	RecipientStatusFailed       RecipientStatus = "failed"       // 发送失败
)

// 正常路径上的状态梯级，状态只能沿梯级前进，不会回退
var recipientStatusRank = map[RecipientStatus]int{
	RecipientStatusPending:   0,
	RecipientStatusSent:      1,
	RecipientStatusDelivered: 2,
	RecipientStatusOpened:    3,
	RecipientStatusClicked:   4,
}

// IsTerminalRecipientStatus 是否短路终态（退信/退订/失败）
func IsTerminalRecipientStatus(status RecipientStatus) bool {
	return status == RecipientStatusBounced ||
		status == RecipientStatusUnsubscribed ||
		status == RecipientStatusFailed
}

// EmailCampaignRecipient 活动收件人模型
type EmailCampaignRecipient struct {
	ID         primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	CampaignID primitive.ObjectID `json:"campaignId" bson:"campaignId"`
	CustomerID string             `json:"customerId,omitempty" bson:"customerId,omitempty"`

	// 发送时刻的快照，客户后续改名换邮箱不影响已发活动
	Email string `json:"email" bson:"email"`
	Name  string `json:"name" bson:"name"`

	Status RecipientStatus `json:"status" bson:"status"`

	SentAt         *time.Time `json:"sentAt,omitempty" bson:"sentAt,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty" bson:"deliveredAt,omitempty"`
	OpenedAt       *time.Time `json:"openedAt,omitempty" bson:"openedAt,omitempty"`
	ClickedAt      *time.Time `json:"clickedAt,omitempty" bson:"clickedAt,omitempty"`
	BouncedAt      *time.Time `json:"bouncedAt,omitempty" bson:"bouncedAt,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribedAt,omitempty" bson:"unsubscribedAt,omitempty"`

	// 原始计数，重复打开/点击始终累加
	OpenCount  int64 `json:"openCount" bson:"openCount"`
	ClickCount int64 `json:"clickCount" bson:"clickCount"`

	// 点击过的链接，按URL去重
	ClickedLinks []string `json:"clickedLinks,omitempty" bson:"clickedLinks,omitempty"`

	FailureReason string `json:"failureReason,omitempty" bson:"failureReason,omitempty"`

	// 公开追踪端点使用的不可猜测令牌
	TrackingID string `json:"trackingId" bson:"trackingId"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// advanceStatus 沿正常路径前进到目标状态
// 已处于更强状态或短路终态时不变，返回是否发生了推进
func (r *EmailCampaignRecipient) advanceStatus(to RecipientStatus) bool {
	if IsTerminalRecipientStatus(r.Status) {
		return false
	}
	currentRank, ok := recipientStatusRank[r.Status]
	if !ok {
		return false
	}
	targetRank, ok := recipientStatusRank[to]
	if !ok {
		return false
	}
	if targetRank <= currentRank {
		return false
	}
	r.Status = to
	return true
}

// MarkSent 标记发送成功
func (r *EmailCampaignRecipient) MarkSent(now time.Time) bool {
	advanced := r.advanceStatus(RecipientStatusSent)
	if advanced {
		sentAt := now
		r.SentAt = &sentAt
	}
	r.UpdatedAt = now
	return advanced
}

// MarkDelivered 标记送达
func (r *EmailCampaignRecipient) MarkDelivered(now time.Time) bool {
	advanced := r.advanceStatus(RecipientStatusDelivered)
	if advanced {
		deliveredAt := now
		r.DeliveredAt = &deliveredAt
	}
	r.UpdatedAt = now
	return advanced
}

// RecordOpen 记录一次打开
// 计数始终累加；状态与首次打开时间仅在第一次达到更强状态时变更，
// 已点击的收件人不会被回退为已打开
func (r *EmailCampaignRecipient) RecordOpen(now time.Time) bool {
	r.OpenCount++
	advanced := r.advanceStatus(RecipientStatusOpened)
	if advanced && r.OpenedAt == nil {
		openedAt := now
		r.OpenedAt = &openedAt
	}
	r.UpdatedAt = now
	return advanced
}

// RecordClick 记录一次点击
// 计数始终累加，链接按URL去重，点击视为隐含打开
func (r *EmailCampaignRecipient) RecordClick(url string, now time.Time) bool {
	r.ClickCount++

	if url != "" && !r.hasClickedLink(url) {
		r.ClickedLinks = append(r.ClickedLinks, url)
	}

	// 点击隐含打开，首次点击即未打开时补记打开时间
	if r.OpenedAt == nil && !IsTerminalRecipientStatus(r.Status) {
		openedAt := now
		r.OpenedAt = &openedAt
	}

	advanced := r.advanceStatus(RecipientStatusClicked)
	if advanced && r.ClickedAt == nil {
		clickedAt := now
		r.ClickedAt = &clickedAt
	}
	r.UpdatedAt = now
	return advanced
}

// hasClickedLink 链接是否已记录
func (r *EmailCampaignRecipient) hasClickedLink(url string) bool {
	for _, link := range r.ClickedLinks {
		if link == url {
			return true
		}
	}
	return false
}

// MarkBounced 标记退信，短路到终态
func (r *EmailCampaignRecipient) MarkBounced(now time.Time) bool {
	if IsTerminalRecipientStatus(r.Status) {
		return false
	}
	r.Status = RecipientStatusBounced
	bouncedAt := now
	r.BouncedAt = &bouncedAt
	r.UpdatedAt = now
	return true
}

// MarkUnsubscribed 标记退订，短路到终态
func (r *EmailCampaignRecipient) MarkUnsubscribed(now time.Time) bool {
	if IsTerminalRecipientStatus(r.Status) {
		return false
	}
	r.Status = RecipientStatusUnsubscribed
	unsubscribedAt := now
	r.UnsubscribedAt = &unsubscribedAt
	r.UpdatedAt = now
	return true
}

// MarkFailed 标记发送失败
func (r *EmailCampaignRecipient) MarkFailed(reason string, now time.Time) bool {
	if IsTerminalRecipientStatus(r.Status) {
		return false
	}
	r.Status = RecipientStatusFailed
	r.FailureReason = reason
	r.UpdatedAt = now
	return true
}
