package service

import (
	"context"
	"fmt"
	"time"

	"github.com/BerniceZTT/crm_marketing/models"
	"github.com/BerniceZTT/crm_marketing/repository"
	"github.com/BerniceZTT/crm_marketing/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CampaignSender 活动发送编排器
type CampaignSender struct {
	Sender    EmailSender
	Clock     Clock
	BatchSize int
}

// NewCampaignSender 创建发送编排器
func NewCampaignSender(sender EmailSender, clock Clock, batchSize int) *CampaignSender {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &CampaignSender{Sender: sender, Clock: clock, BatchSize: batchSize}
}

// StartCampaign 开始发送活动
// 收件人列表在此刻一次性物化，随后异步分批投递
func (s *CampaignSender) StartCampaign(ctx context.Context, campaignID primitive.ObjectID) (*models.EmailCampaign, error) {
	now := s.Clock.Now()

	campaignsCollection := repository.Collection(repository.EmailCampaignsCollection)

	var campaign models.EmailCampaign
	if err := campaignsCollection.FindOne(ctx, bson.M{"_id": campaignID}).Decode(&campaign); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.CreateNotFoundError("营销活动")
		}
		return nil, err
	}

	if err := campaign.Targeting.Validate(); err != nil {
		return nil, utils.CreateBadRequestError(err.Error())
	}

	// 先过状态机守卫再物化收件人，守卫失败不留下任何写入
	if err := campaign.CanStartSending(); err != nil {
		return nil, utils.CreateInvalidTransitionError(err)
	}

	total, err := s.materializeRecipients(ctx, &campaign, now)
	if err != nil {
		return nil, fmt.Errorf("物化收件人列表失败: %w", err)
	}

	if err := campaign.StartSending(total, now); err != nil {
		return nil, utils.CreateInvalidTransitionError(err)
	}

	// 状态写入带前置状态条件，并发启动只有一个生效
	result, err := campaignsCollection.UpdateOne(ctx, bson.M{
		"_id": campaign.ID,
		"status": bson.M{"$in": []models.CampaignStatus{
			models.CampaignStatusDraft,
			models.CampaignStatusScheduled,
		}},
	}, bson.M{"$set": bson.M{
		"status":          campaign.Status,
		"totalRecipients": campaign.TotalRecipients,
		"sentAt":          campaign.SentAt,
		"updatedAt":       campaign.UpdatedAt,
	}})
	if err != nil {
		return nil, err
	}
	if result.ModifiedCount == 0 {
		return nil, utils.CreateInvalidTransitionError(
			fmt.Errorf("活动状态已被其他操作变更，开始发送未生效"))
	}

	// 后台投递，与请求处理解耦
	go s.dispatchLoop(campaign.ID)

	return &campaign, nil
}

// PauseCampaign 暂停发送中的活动
// 投递循环在批间隙读到暂停状态后自行停止
func (s *CampaignSender) PauseCampaign(ctx context.Context, campaignID primitive.ObjectID) (*models.EmailCampaign, error) {
	return s.transition(ctx, campaignID, func(campaign *models.EmailCampaign, now time.Time) error {
		return campaign.Pause(now)
	})
}

// ResumeCampaign 恢复暂停的活动并重启投递循环
func (s *CampaignSender) ResumeCampaign(ctx context.Context, campaignID primitive.ObjectID) (*models.EmailCampaign, error) {
	campaign, err := s.transition(ctx, campaignID, func(campaign *models.EmailCampaign, now time.Time) error {
		return campaign.Resume(now)
	})
	if err != nil {
		return nil, err
	}

	go s.dispatchLoop(campaign.ID)

	return campaign, nil
}

// CancelCampaign 取消活动，已完成的活动拒绝
func (s *CampaignSender) CancelCampaign(ctx context.Context, campaignID primitive.ObjectID) (*models.EmailCampaign, error) {
	return s.transition(ctx, campaignID, func(campaign *models.EmailCampaign, now time.Time) error {
		return campaign.Cancel(now)
	})
}

// transition 加载活动、执行状态机守卫并回写状态
func (s *CampaignSender) transition(ctx context.Context, campaignID primitive.ObjectID, apply func(*models.EmailCampaign, time.Time) error) (*models.EmailCampaign, error) {
	now := s.Clock.Now()
	campaignsCollection := repository.Collection(repository.EmailCampaignsCollection)

	var campaign models.EmailCampaign
	if err := campaignsCollection.FindOne(ctx, bson.M{"_id": campaignID}).Decode(&campaign); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.CreateNotFoundError("营销活动")
		}
		return nil, err
	}

	if err := apply(&campaign, now); err != nil {
		return nil, utils.CreateInvalidTransitionError(err)
	}

	_, err := campaignsCollection.UpdateOne(ctx, bson.M{"_id": campaign.ID}, bson.M{"$set": bson.M{
		"status":    campaign.Status,
		"updatedAt": campaign.UpdatedAt,
	}})
	if err != nil {
		return nil, err
	}

	return &campaign, nil
}

// materializeRecipients 按目标人群规则物化收件人
// 三种目标方式互斥：分群成员 / 生命周期阶段集合 / 最低RFM总分
func (s *CampaignSender) materializeRecipients(ctx context.Context, campaign *models.EmailCampaign, now time.Time) (int64, error) {
	customers, err := s.selectAudience(ctx, campaign.Targeting)
	if err != nil {
		return 0, err
	}

	recipientsCollection := repository.Collection(repository.CampaignRecipientsCollection)

	var total int64
	for i := range customers {
		customer := &customers[i]
		if customer.CustomerEmail == "" {
			continue
		}

		recipient := models.EmailCampaignRecipient{
			CampaignID: campaign.ID,
			CustomerID: customer.CustomerID,
			Email:      customer.CustomerEmail,
			Name:       customer.CustomerName,
			Status:     models.RecipientStatusPending,
			TrackingID: uuid.NewString(),
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		_, err := recipientsCollection.InsertOne(ctx, recipient)
		if err != nil {
			// (campaignId, email) 唯一索引兜底去重
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return 0, err
		}
		total++
	}

	return total, nil
}

// selectAudience 按目标方式取客户分析快照
func (s *CampaignSender) selectAudience(ctx context.Context, targeting models.CampaignTargeting) ([]models.CustomerAnalytics, error) {
	analyticsCollection := repository.Collection(repository.CustomerAnalyticsCollection)

	filter := bson.M{}
	switch {
	case targeting.SegmentID != nil:
		// 分群成员：先取归属记录再取客户
		assignmentsCollection := repository.Collection(repository.SegmentAssignmentsCollection)
		cursor, err := assignmentsCollection.Find(ctx, bson.M{"segmentId": *targeting.SegmentID})
		if err != nil {
			return nil, err
		}

		var assignments []models.CustomerSegmentAssignment
		if err := cursor.All(ctx, &assignments); err != nil {
			return nil, err
		}

		customerIDs := make([]string, 0, len(assignments))
		for _, a := range assignments {
			customerIDs = append(customerIDs, a.CustomerID)
		}
		if len(customerIDs) == 0 {
			return nil, nil
		}
		filter["customerId"] = bson.M{"$in": customerIDs}

	case len(targeting.LifecycleStages) > 0:
		filter["lifecycleStage"] = bson.M{"$in": targeting.LifecycleStages}

	case targeting.MinRfmScore != nil:
		filter["totalRfmScore"] = bson.M{"$gte": *targeting.MinRfmScore}

	default:
		return nil, fmt.Errorf("活动未配置目标人群")
	}

	cursor, err := analyticsCollection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	var customers []models.CustomerAnalytics
	if err := cursor.All(ctx, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// dispatchLoop 分批投递收件人
// 每批之间重读活动状态，暂停/取消在批间隙及时生效，
// 不会把已开始的循环跑完才停
func (s *CampaignSender) dispatchLoop(campaignID primitive.ObjectID) {
	ctx := context.Background()
	campaignsCollection := repository.Collection(repository.EmailCampaignsCollection)
	recipientsCollection := repository.Collection(repository.CampaignRecipientsCollection)

	for {
		// 批间隙检查活动状态
		var campaign models.EmailCampaign
		if err := campaignsCollection.FindOne(ctx, bson.M{"_id": campaignID}).Decode(&campaign); err != nil {
			utils.LogError(err, map[string]interface{}{"campaignId": campaignID.Hex()}, "读取活动状态失败，停止投递")
			return
		}

		if campaign.Status != models.CampaignStatusSending {
			utils.Logger.Info().
				Str("campaignId", campaignID.Hex()).
				Str("status", string(campaign.Status)).
				Msg("活动不在发送中，停止投递")
			return
		}

		// 取下一批待发送收件人
		findOptions := options.Find().SetLimit(int64(s.BatchSize))
		cursor, err := recipientsCollection.Find(ctx, bson.M{
			"campaignId": campaignID,
			"status":     models.RecipientStatusPending,
		}, findOptions)
		if err != nil {
			utils.LogError(err, map[string]interface{}{"campaignId": campaignID.Hex()}, "查询待发送收件人失败")
			return
		}

		var batch []models.EmailCampaignRecipient
		if err := cursor.All(ctx, &batch); err != nil {
			utils.LogError(err, map[string]interface{}{"campaignId": campaignID.Hex()}, "解析收件人失败")
			return
		}

		// 没有待发送的收件人，活动发送完成
		if len(batch) == 0 {
			s.finishCampaign(ctx, campaignID)
			return
		}

		for i := range batch {
			s.dispatchOne(ctx, &campaign, &batch[i])
		}
	}
}

// dispatchOne 投递单个收件人
// 先以条件更新从待发送状态认领收件人，认领不到说明已被
// 其他投递循环处理（暂停后恢复可能短暂存在两个循环），直接跳过，
// 保证任何收件人至多被发送一次。单个失败不影响其余收件人
func (s *CampaignSender) dispatchOne(ctx context.Context, campaign *models.EmailCampaign, recipient *models.EmailCampaignRecipient) {
	now := s.Clock.Now()
	recipientsCollection := repository.Collection(repository.CampaignRecipientsCollection)
	campaignsCollection := repository.Collection(repository.EmailCampaignsCollection)

	recipient.MarkSent(now)
	result, err := recipientsCollection.UpdateOne(ctx, bson.M{
		"_id":    recipient.ID,
		"status": models.RecipientStatusPending,
	}, bson.M{"$set": bson.M{
		"status":    recipient.Status,
		"sentAt":    recipient.SentAt,
		"updatedAt": recipient.UpdatedAt,
	}})
	if err != nil {
		utils.LogError(err, map[string]interface{}{"recipientId": recipient.ID.Hex()}, "认领收件人失败")
		return
	}
	if result.ModifiedCount == 0 {
		return
	}

	err = s.Sender.Send(ctx, recipient.Email, recipient.Name, campaign.Subject, campaign.ContentHTML)
	if err != nil {
		recipient.MarkFailed(err.Error(), now)
		_, updateErr := recipientsCollection.UpdateOne(ctx, bson.M{"_id": recipient.ID}, bson.M{"$set": bson.M{
			"status":        recipient.Status,
			"failureReason": recipient.FailureReason,
			"updatedAt":     recipient.UpdatedAt,
		}})
		if updateErr != nil {
			utils.LogError(updateErr, map[string]interface{}{"recipientId": recipient.ID.Hex()}, "标记收件人失败状态失败")
		}
		return
	}

	// 发送计数与收件人更新保持同一事件内递增
	_, err = campaignsCollection.UpdateOne(ctx, bson.M{"_id": campaign.ID}, bson.M{"$inc": bson.M{"sentCount": 1}})
	if err != nil {
		utils.LogError(err, map[string]interface{}{"campaignId": campaign.ID.Hex()}, "递增活动发送计数失败")
	}
}

// finishCampaign 所有收件人投递完毕，标记活动已发送并汇总统计
func (s *CampaignSender) finishCampaign(ctx context.Context, campaignID primitive.ObjectID) {
	now := s.Clock.Now()
	campaignsCollection := repository.Collection(repository.EmailCampaignsCollection)

	var campaign models.EmailCampaign
	if err := campaignsCollection.FindOne(ctx, bson.M{"_id": campaignID}).Decode(&campaign); err != nil {
		utils.LogError(err, map[string]interface{}{"campaignId": campaignID.Hex()}, "读取活动失败")
		return
	}

	if err := campaign.MarkAsSent(now); err != nil {
		// 批间隙被暂停/取消则状态守卫拒绝，属正常情况
		utils.Logger.Info().
			Str("campaignId", campaignID.Hex()).
			Str("status", string(campaign.Status)).
			Msg("活动未处于发送中，跳过完成标记")
		return
	}

	_, err := campaignsCollection.UpdateOne(ctx, bson.M{"_id": campaignID}, bson.M{"$set": bson.M{
		"status":      campaign.Status,
		"completedAt": campaign.CompletedAt,
		"updatedAt":   campaign.UpdatedAt,
	}})
	if err != nil {
		utils.LogError(err, map[string]interface{}{"campaignId": campaignID.Hex()}, "标记活动完成失败")
		return
	}

	if err := RollupCampaignStats(ctx, campaignID); err != nil {
		utils.LogError(err, map[string]interface{}{"campaignId": campaignID.Hex()}, "汇总活动统计失败")
	}

	utils.Logger.Info().Str("campaignId", campaignID.Hex()).Msg("活动发送完成")
}

// RollupCampaignStats 按收件人状态重算活动聚合计数与比率
// 聚合计数是派生视图，以收件人集合为准定期重算，避免计数漂移
func RollupCampaignStats(ctx context.Context, campaignID primitive.ObjectID) error {
	recipientsCollection := repository.Collection(repository.CampaignRecipientsCollection)

	pipeline := []bson.M{
		{"$match": bson.M{"campaignId": campaignID}},
		{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
	}
	cursor, err := recipientsCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}

	var counts []struct {
		Status models.RecipientStatus `bson:"_id"`
		Count  int64                  `bson:"count"`
	}
	if err := cursor.All(ctx, &counts); err != nil {
		return err
	}

	byStatus := make(map[models.RecipientStatus]int64, len(counts))
	var total int64
	for _, c := range counts {
		byStatus[c.Status] = c.Count
		total += c.Count
	}

	// 状态梯级是单调的：已点击的收件人必然经历了送达与打开；
	// 退信/退订也意味着发送过，只有待发送和发送失败不计入已发送
	clicked := byStatus[models.RecipientStatusClicked]
	opened := byStatus[models.RecipientStatusOpened] + clicked
	delivered := byStatus[models.RecipientStatusDelivered] + opened
	sent := total - byStatus[models.RecipientStatusPending] - byStatus[models.RecipientStatusFailed]

	campaign := models.EmailCampaign{
		TotalRecipients:   total,
		SentCount:         sent,
		DeliveredCount:    delivered,
		OpenedCount:       opened,
		ClickedCount:      clicked,
		BouncedCount:      byStatus[models.RecipientStatusBounced],
		UnsubscribedCount: byStatus[models.RecipientStatusUnsubscribed],
	}
	campaign.RecomputeRates()

	campaignsCollection := repository.Collection(repository.EmailCampaignsCollection)
	_, err = campaignsCollection.UpdateOne(ctx, bson.M{"_id": campaignID}, bson.M{"$set": bson.M{
		"totalRecipients":   campaign.TotalRecipients,
		"sentCount":         campaign.SentCount,
		"deliveredCount":    campaign.DeliveredCount,
		"openedCount":       campaign.OpenedCount,
		"clickedCount":      campaign.ClickedCount,
		"bouncedCount":      campaign.BouncedCount,
		"unsubscribedCount": campaign.UnsubscribedCount,
		"openRate":          campaign.OpenRate,
		"clickRate":         campaign.ClickRate,
		"bounceRate":        campaign.BounceRate,
	}})
	return err
}

// RollupAllCampaignStats 对所有已开始发送的活动做一轮统计汇总
func RollupAllCampaignStats() {
	ctx := context.Background()
	campaignsCollection := repository.Collection(repository.EmailCampaignsCollection)

	cursor, err := campaignsCollection.Find(ctx, bson.M{
		"status": bson.M{"$in": []models.CampaignStatus{
			models.CampaignStatusSending,
			models.CampaignStatusPaused,
			models.CampaignStatusSent,
		}},
	})
	if err != nil {
		utils.LogError(err, nil, "查询活动失败")
		return
	}

	var campaigns []models.EmailCampaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		utils.LogError(err, nil, "解析活动失败")
		return
	}

	failed := 0
	for i := range campaigns {
		if err := RollupCampaignStats(ctx, campaigns[i].ID); err != nil {
			failed++
			utils.LogError(err, map[string]interface{}{"campaignId": campaigns[i].ID.Hex()}, "汇总活动统计失败")
		}
	}

	utils.LogBatchProgress("campaign_stats_rollup", len(campaigns), failed)
}
