package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CampaignStatus 营销活动状态枚举
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"     // 草稿
	CampaignStatusScheduled CampaignStatus = "scheduled" // 已排期
	CampaignStatusSending   CampaignStatus = "sending"   // 发送中
	CampaignStatusSent      CampaignStatus = "sent"      // 已发送
	CampaignStatusPaused    CampaignStatus = "paused"    // 已暂停
	CampaignStatusCancelled CampaignStatus = "cancelled" // 已取消
)

// CampaignTargeting 目标人群选择，三种方式互斥
type CampaignTargeting struct {
	SegmentID       *primitive.ObjectID `json:"segmentId,omitempty" bson:"segmentId,omitempty"`
	LifecycleStages []LifecycleStage    `json:"lifecycleStages,omitempty" bson:"lifecycleStages,omitempty"`
	MinRfmScore     *int                `json:"minRfmScore,omitempty" bson:"minRfmScore,omitempty"`
}

// IsEmpty 是否尚未选择目标人群
func (t *CampaignTargeting) IsEmpty() bool {
	return t.SegmentID == nil && len(t.LifecycleStages) == 0 && t.MinRfmScore == nil
}

// Validate 校验目标人群选择，必须且只能使用一种方式
func (t *CampaignTargeting) Validate() error {
	count := 0
	if t.SegmentID != nil {
		count++
	}
	if len(t.LifecycleStages) > 0 {
		count++
	}
	if t.MinRfmScore != nil {
		count++
	}

	if count == 0 {
		return fmt.Errorf("必须选择一种目标人群方式（分群/生命周期阶段/最低RFM评分）")
	}
	if count > 1 {
		return fmt.Errorf("目标人群方式只能选择一种，不能组合使用")
	}
	if t.MinRfmScore != nil && (*t.MinRfmScore < 3 || *t.MinRfmScore > 15) {
		return fmt.Errorf("最低RFM评分必须在 3-15 之间")
	}
	for _, s := range t.LifecycleStages {
		if !IsValidLifecycleStage(string(s)) {
			return fmt.Errorf("无效的生命周期阶段: %s", s)
		}
	}
	return nil
}

// EmailCampaign 邮件营销活动模型
type EmailCampaign struct {
	ID          primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Subject     string             `json:"subject" bson:"subject"`
	ContentHTML string             `json:"contentHtml" bson:"contentHtml"`
	ContentText string             `json:"contentText" bson:"contentText"`
	FromEmail   string             `json:"fromEmail" bson:"fromEmail"`
	FromName    string             `json:"fromName" bson:"fromName"`

	Targeting CampaignTargeting `json:"targeting" bson:"targeting"`

	Status      CampaignStatus `json:"status" bson:"status"`
	ScheduledAt *time.Time     `json:"scheduledAt,omitempty" bson:"scheduledAt,omitempty"`
	SentAt      *time.Time     `json:"sentAt,omitempty" bson:"sentAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty" bson:"completedAt,omitempty"`

	// 聚合计数，由投递追踪回写或定期汇总重算
	TotalRecipients   int64 `json:"totalRecipients" bson:"totalRecipients"`
	SentCount         int64 `json:"sentCount" bson:"sentCount"`
	DeliveredCount    int64 `json:"deliveredCount" bson:"deliveredCount"`
	OpenedCount       int64 `json:"openedCount" bson:"openedCount"`
	ClickedCount      int64 `json:"clickedCount" bson:"clickedCount"`
	BouncedCount      int64 `json:"bouncedCount" bson:"bouncedCount"`
	UnsubscribedCount int64 `json:"unsubscribedCount" bson:"unsubscribedCount"`

	// 派生比率，百分比，始终在 [0,100]
	OpenRate   float64 `json:"openRate" bson:"openRate"`
	ClickRate  float64 `json:"clickRate" bson:"clickRate"`
	BounceRate float64 `json:"bounceRate" bson:"bounceRate"`

	CreatedBy string    `json:"createdBy" bson:"createdBy"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CanUpdateContent 仅草稿状态允许编辑内容
func (c *EmailCampaign) CanUpdateContent() error {
	if c.Status != CampaignStatusDraft {
		return fmt.Errorf("仅草稿状态的活动可以编辑，当前状态: %s", c.Status)
	}
	return nil
}

// Schedule 排期，仅允许从草稿状态触发
func (c *EmailCampaign) Schedule(at time.Time, now time.Time) error {
	if c.Status != CampaignStatusDraft {
		return fmt.Errorf("仅草稿状态的活动可以排期，当前状态: %s", c.Status)
	}
	scheduledAt := at
	c.ScheduledAt = &scheduledAt
	c.Status = CampaignStatusScheduled
	c.UpdatedAt = now
	return nil
}

// Unschedule 取消排期回到草稿，仅允许从已排期状态触发
func (c *EmailCampaign) Unschedule(now time.Time) error {
	if c.Status != CampaignStatusScheduled {
		return fmt.Errorf("仅已排期的活动可以取消排期，当前状态: %s", c.Status)
	}
	c.ScheduledAt = nil
	c.Status = CampaignStatusDraft
	c.UpdatedAt = now
	return nil
}

// CanStartSending 仅草稿或已排期状态允许开始发送
// 物化收件人列表前先检查，守卫失败时不应留下任何写入
func (c *EmailCampaign) CanStartSending() error {
	if c.Status != CampaignStatusDraft && c.Status != CampaignStatusScheduled {
		return fmt.Errorf("仅草稿或已排期的活动可以开始发送，当前状态: %s", c.Status)
	}
	return nil
}

// StartSending 开始发送，仅允许从草稿或已排期状态触发
// 收件人列表在此刻一次性物化，total 为物化出的收件人数
func (c *EmailCampaign) StartSending(total int64, now time.Time) error {
	if err := c.CanStartSending(); err != nil {
		return err
	}
	c.TotalRecipients = total
	sentAt := now
	c.SentAt = &sentAt
	c.Status = CampaignStatusSending
	c.UpdatedAt = now
	return nil
}

// MarkAsSent 标记发送完成，仅允许从发送中状态触发，终态不可逆
func (c *EmailCampaign) MarkAsSent(now time.Time) error {
	if c.Status != CampaignStatusSending {
		return fmt.Errorf("仅发送中的活动可以标记为已发送，当前状态: %s", c.Status)
	}
	completedAt := now
	c.CompletedAt = &completedAt
	c.Status = CampaignStatusSent
	c.UpdatedAt = now
	return nil
}

// Pause 暂停发送，仅允许从发送中状态触发
func (c *EmailCampaign) Pause(now time.Time) error {
	if c.Status != CampaignStatusSending {
		return fmt.Errorf("仅发送中的活动可以暂停，当前状态: %s", c.Status)
	}
	c.Status = CampaignStatusPaused
	c.UpdatedAt = now
	return nil
}

// Resume 恢复发送，仅允许从已暂停状态触发
func (c *EmailCampaign) Resume(now time.Time) error {
	if c.Status != CampaignStatusPaused {
		return fmt.Errorf("仅已暂停的活动可以恢复，当前状态: %s", c.Status)
	}
	c.Status = CampaignStatusSending
	c.UpdatedAt = now
	return nil
}

// Cancel 取消活动，已发送的活动拒绝取消
func (c *EmailCampaign) Cancel(now time.Time) error {
	if c.Status == CampaignStatusSent {
		return fmt.Errorf("已发送的活动不能取消")
	}
	if c.Status == CampaignStatusCancelled {
		return fmt.Errorf("活动已经取消")
	}
	c.Status = CampaignStatusCancelled
	c.UpdatedAt = now
	return nil
}

// RecomputeRates 按聚合计数重算比率，除零一律得 0
func (c *EmailCampaign) RecomputeRates() {
	c.OpenRate = percentage(c.OpenedCount, c.TotalRecipients)
	c.ClickRate = percentage(c.ClickedCount, c.OpenedCount)
	c.BounceRate = percentage(c.BouncedCount, c.TotalRecipients)
}

// percentage 百分比，分母为零时返回 0，结果限定在 [0,100]
func percentage(part, total int64) float64 {
	if total <= 0 || part <= 0 {
		return 0
	}
	rate := float64(part) / float64(total) * 100
	if rate > 100 {
		return 100
	}
	return rate
}

// CampaignCreateRequest 创建活动请求
type CampaignCreateRequest struct {
	Name        string            `json:"name" binding:"required"`
	Subject     string            `json:"subject" binding:"required"`
	ContentHTML string            `json:"contentHtml" binding:"required"`
	ContentText string            `json:"contentText"`
	FromEmail   string            `json:"fromEmail"`
	FromName    string            `json:"fromName"`
	Targeting   CampaignTargeting `json:"targeting"`
}

// CampaignUpdateRequest 更新活动内容请求（仅草稿）
type CampaignUpdateRequest struct {
	Name        *string            `json:"name"`
	Subject     *string            `json:"subject"`
	ContentHTML *string            `json:"contentHtml"`
	ContentText *string            `json:"contentText"`
	FromEmail   *string            `json:"fromEmail"`
	FromName    *string            `json:"fromName"`
	Targeting   *CampaignTargeting `json:"targeting"`
}

// CampaignScheduleRequest 排期请求
type CampaignScheduleRequest struct {
	ScheduledAt time.Time `json:"scheduledAt" binding:"required"`
}
