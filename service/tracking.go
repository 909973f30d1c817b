package service

import (
	"context"
	"time"

	"github.com/BerniceZTT/crm_marketing/models"
	"github.com/BerniceZTT/crm_marketing/repository"
	"github.com/BerniceZTT/crm_marketing/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// DeliveryTracker 投递事件追踪器
// 公开追踪端点并发调用，计数一律用存储层 $inc 原子递增，
// 不在应用内存里读改写，避免并发打开/点击丢更新
type DeliveryTracker struct {
	Clock Clock
}

// NewDeliveryTracker 创建追踪器
func NewDeliveryTracker(clock Clock) *DeliveryTracker {
	return &DeliveryTracker{Clock: clock}
}

// findByToken 按追踪令牌取收件人，未知令牌返回 nil 而非错误
func (t *DeliveryTracker) findByToken(ctx context.Context, trackingID string) *models.EmailCampaignRecipient {
	if trackingID == "" {
		return nil
	}

	recipientsCollection := repository.Collection(repository.CampaignRecipientsCollection)

	var recipient models.EmailCampaignRecipient
	err := recipientsCollection.FindOne(ctx, bson.M{"trackingId": trackingID}).Decode(&recipient)
	if err != nil {
		if err != mongo.ErrNoDocuments {
			utils.LogError(err, map[string]interface{}{"trackingId": trackingID}, "查询收件人失败")
		}
		return nil
	}
	return &recipient
}

// RecordOpen 记录一次打开事件，按令牌定位，尽力而为
// 原始打开计数无条件递增；状态与首次打开时间仅在第一次
// 达到更强状态时写入，已点击的收件人不会回退为已打开
func (t *DeliveryTracker) RecordOpen(ctx context.Context, trackingID string) {
	recipient := t.findByToken(ctx, trackingID)
	if recipient == nil {
		return
	}

	now := t.Clock.Now()
	recipientsCollection := repository.Collection(repository.CampaignRecipientsCollection)

	// 计数原子递增
	_, err := recipientsCollection.UpdateOne(ctx, bson.M{"_id": recipient.ID}, bson.M{
		"$inc": bson.M{"openCount": 1},
		"$set": bson.M{"updatedAt": now},
	})
	if err != nil {
		utils.LogError(err, map[string]interface{}{"trackingId": trackingID}, "递增打开计数失败")
		return
	}

	// 状态条件推进：仅从更弱的正常路径状态推进到已打开
	result, err := recipientsCollection.UpdateOne(ctx, bson.M{
		"_id": recipient.ID,
		"status": bson.M{"$in": []models.RecipientStatus{
			models.RecipientStatusPending,
			models.RecipientStatusSent,
			models.RecipientStatusDelivered,
		}},
	}, bson.M{
		"$set": bson.M{"status": models.RecipientStatusOpened, "openedAt": now},
	})
	if err != nil {
		utils.LogError(err, map[string]interface{}{"trackingId": trackingID}, "推进打开状态失败")
		return
	}

	// 仅首次推进时递增活动级打开数（按收件人去重的计数）
	if result.ModifiedCount > 0 {
		t.incrementCampaignCounter(ctx, recipient.CampaignID, "openedCount")
	}

	// 回写客户互动计数
	t.recordCustomerEngagement(ctx, recipient.CustomerID, "open", now)
}

// RecordClick 记录一次点击事件，按令牌定位，尽力而为
// 点击计数无条件递增，链接按URL去重追加，点击隐含打开
func (t *DeliveryTracker) RecordClick(ctx context.Context, trackingID string, url string) {
	recipient := t.findByToken(ctx, trackingID)
	if recipient == nil {
		return
	}

	now := t.Clock.Now()
	recipientsCollection := repository.Collection(repository.CampaignRecipientsCollection)

	update := bson.M{
		"$inc": bson.M{"clickCount": 1},
		"$set": bson.M{"updatedAt": now},
	}
	// $addToSet 保证同一链接只保留一条
	if url != "" {
		update["$addToSet"] = bson.M{"clickedLinks": url}
	}

	if _, err := recipientsCollection.UpdateOne(ctx, bson.M{"_id": recipient.ID}, update); err != nil {
		utils.LogError(err, map[string]interface{}{"trackingId": trackingID}, "递增点击计数失败")
		return
	}

	// 状态条件推进到已点击
	result, err := recipientsCollection.UpdateOne(ctx, bson.M{
		"_id": recipient.ID,
		"status": bson.M{"$in": []models.RecipientStatus{
			models.RecipientStatusPending,
			models.RecipientStatusSent,
			models.RecipientStatusDelivered,
			models.RecipientStatusOpened,
		}},
	}, bson.M{
		"$set": bson.M{"status": models.RecipientStatusClicked, "clickedAt": now},
	})
	if err != nil {
		utils.LogError(err, map[string]interface{}{"trackingId": trackingID}, "推进点击状态失败")
		return
	}

	if result.ModifiedCount > 0 {
		t.incrementCampaignCounter(ctx, recipient.CampaignID, "clickedCount")
	}

	t.recordCustomerEngagement(ctx, recipient.CustomerID, "click", now)
}

// RecordDelivered 记录送达事件（邮件服务商回执）
func (t *DeliveryTracker) RecordDelivered(ctx context.Context, trackingID string) {
	recipient := t.findByToken(ctx, trackingID)
	if recipient == nil {
		return
	}

	now := t.Clock.Now()
	recipientsCollection := repository.Collection(repository.CampaignRecipientsCollection)

	result, err := recipientsCollection.UpdateOne(ctx, bson.M{
		"_id": recipient.ID,
		"status": bson.M{"$in": []models.RecipientStatus{
			models.RecipientStatusPending,
			models.RecipientStatusSent,
		}},
	}, bson.M{
		"$set": bson.M{"status": models.RecipientStatusDelivered, "deliveredAt": now, "updatedAt": now},
	})
	if err != nil {
		utils.LogError(err, map[string]interface{}{"trackingId": trackingID}, "推进送达状态失败")
		return
	}

	if result.ModifiedCount > 0 {
		t.incrementCampaignCounter(ctx, recipient.CampaignID, "deliveredCount")
	}
}

// RecordBounce 记录退信事件，短路到终态
func (t *DeliveryTracker) RecordBounce(ctx context.Context, trackingID string) {
	recipient := t.findByToken(ctx, trackingID)
	if recipient == nil {
		return
	}

	now := t.Clock.Now()
	recipientsCollection := repository.Collection(repository.CampaignRecipientsCollection)

	result, err := recipientsCollection.UpdateOne(ctx, bson.M{
		"_id": recipient.ID,
		"status": bson.M{"$nin": []models.RecipientStatus{
			models.RecipientStatusBounced,
			models.RecipientStatusUnsubscribed,
			models.RecipientStatusFailed,
		}},
	}, bson.M{
		"$set": bson.M{"status": models.RecipientStatusBounced, "bouncedAt": now, "updatedAt": now},
	})
	if err != nil {
		utils.LogError(err, map[string]interface{}{"trackingId": trackingID}, "标记退信失败")
		return
	}

	if result.ModifiedCount > 0 {
		t.incrementCampaignCounter(ctx, recipient.CampaignID, "bouncedCount")
	}
}

// RecordUnsubscribe 记录退订事件，短路到终态
func (t *DeliveryTracker) RecordUnsubscribe(ctx context.Context, trackingID string) {
	recipient := t.findByToken(ctx, trackingID)
	if recipient == nil {
		return
	}

	now := t.Clock.Now()
	recipientsCollection := repository.Collection(repository.CampaignRecipientsCollection)

	result, err := recipientsCollection.UpdateOne(ctx, bson.M{
		"_id": recipient.ID,
		"status": bson.M{"$nin": []models.RecipientStatus{
			models.RecipientStatusBounced,
			models.RecipientStatusUnsubscribed,
			models.RecipientStatusFailed,
		}},
	}, bson.M{
		"$set": bson.M{"status": models.RecipientStatusUnsubscribed, "unsubscribedAt": now, "updatedAt": now},
	})
	if err != nil {
		utils.LogError(err, map[string]interface{}{"trackingId": trackingID}, "标记退订失败")
		return
	}

	if result.ModifiedCount > 0 {
		t.incrementCampaignCounter(ctx, recipient.CampaignID, "unsubscribedCount")
	}
}

// incrementCampaignCounter 原子递增活动级聚合计数并刷新比率
func (t *DeliveryTracker) incrementCampaignCounter(ctx context.Context, campaignID primitive.ObjectID, field string) {
	campaignsCollection := repository.Collection(repository.EmailCampaignsCollection)
	_, err := campaignsCollection.UpdateOne(ctx, bson.M{"_id": campaignID}, bson.M{"$inc": bson.M{field: 1}})
	if err != nil {
		utils.LogError(err, map[string]interface{}{"campaignId": campaignID.Hex(), "field": field}, "递增活动计数失败")
		return
	}

	// 比率是派生字段，跟随计数刷新
	var campaign models.EmailCampaign
	if err := campaignsCollection.FindOne(ctx, bson.M{"_id": campaignID}).Decode(&campaign); err != nil {
		return
	}
	campaign.RecomputeRates()
	_, _ = campaignsCollection.UpdateOne(ctx, bson.M{"_id": campaignID}, bson.M{"$set": bson.M{
		"openRate":   campaign.OpenRate,
		"clickRate":  campaign.ClickRate,
		"bounceRate": campaign.BounceRate,
	}})
}

// recordCustomerEngagement 回写客户分析上的邮件互动计数
func (t *DeliveryTracker) recordCustomerEngagement(ctx context.Context, customerID string, event string, now time.Time) {
	if customerID == "" {
		return
	}

	analyticsCollection := repository.Collection(repository.CustomerAnalyticsCollection)

	update := bson.M{"$set": bson.M{"updatedAt": now}}
	switch event {
	case "open":
		update["$inc"] = bson.M{"emailOpenCount": 1}
		update["$set"].(bson.M)["lastEmailOpenedAt"] = now
	case "click":
		update["$inc"] = bson.M{"emailClickCount": 1}
		update["$set"].(bson.M)["lastEmailClickAt"] = now
	default:
		return
	}

	if _, err := analyticsCollection.UpdateOne(ctx, bson.M{"customerId": customerID}, update); err != nil {
		utils.LogError(err, map[string]interface{}{"customerId": customerID, "event": event}, "回写客户互动计数失败")
	}
}
