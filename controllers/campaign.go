package controllers

import (
	"net/http"
	"strconv"

	"github.com/BerniceZTT/crm_marketing/models"
	"github.com/BerniceZTT/crm_marketing/repository"
	"github.com/BerniceZTT/crm_marketing/service"
	"github.com/BerniceZTT/crm_marketing/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// loadCampaign 按ID加载营销活动
func loadCampaign(c *gin.Context) (*models.EmailCampaign, bool) {
	campaignID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的活动ID"))
		return nil, false
	}

	collection := repository.Collection(repository.EmailCampaignsCollection)

	var campaign models.EmailCampaign
	if err := collection.FindOne(repository.GetContext(), bson.M{"_id": campaignID}).Decode(&campaign); err != nil {
		if err == mongo.ErrNoDocuments {
			utils.HandleError(c, utils.CreateNotFoundError("营销活动"))
			return nil, false
		}
		utils.HandleError(c, err)
		return nil, false
	}
	return &campaign, true
}

// GetCampaignList 获取营销活动列表
func GetCampaignList(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filter := bson.M{}
	if status := c.Query("status"); status != "" {
		filter["status"] = status
	}
	if keyword := c.Query("keyword"); keyword != "" {
		filter["name"] = bson.M{"$regex": keyword, "$options": "i"}
	}

	ctx := repository.GetContext()
	collection := repository.Collection(repository.EmailCampaignsCollection)

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var campaigns []models.EmailCampaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, campaigns, total, int64(page), int64(limit))
}

// GetCampaignDetail 获取活动详情
func GetCampaignDetail(c *gin.Context) {
	campaign, ok := loadCampaign(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, campaign, "")
}

// CreateCampaign 创建营销活动，初始为草稿状态
func CreateCampaign(c *gin.Context) {
	user, err := utils.GetUser(c)
	if err != nil {
		utils.ErrorResponse(c, err.Error(), http.StatusUnauthorized)
		return
	}

	var req models.CampaignCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	// 创建时允许暂不指定目标人群，开始发送前必须通过校验
	if !req.Targeting.IsEmpty() {
		if err := req.Targeting.Validate(); err != nil {
			utils.HandleError(c, utils.CreateBadRequestError(err.Error()))
			return
		}
	}

	fromEmail := req.FromEmail
	if fromEmail == "" {
		fromEmail = appConfig.SenderEmail
	}
	fromName := req.FromName
	if fromName == "" {
		fromName = appConfig.SenderName
	}

	now := appClock.Now()
	campaign := models.EmailCampaign{
		Name:        req.Name,
		Subject:     req.Subject,
		ContentHTML: req.ContentHTML,
		ContentText: req.ContentText,
		FromEmail:   fromEmail,
		FromName:    fromName,
		Targeting:   req.Targeting,
		Status:      models.CampaignStatusDraft,
		CreatedBy:   user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	collection := repository.Collection(repository.EmailCampaignsCollection)
	result, err := collection.InsertOne(repository.GetContext(), campaign)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"_id": result.InsertedID}, "活动创建成功", http.StatusCreated)
}

// UpdateCampaign 更新活动内容，仅草稿状态允许
func UpdateCampaign(c *gin.Context) {
	campaign, ok := loadCampaign(c)
	if !ok {
		return
	}

	if err := campaign.CanUpdateContent(); err != nil {
		utils.HandleError(c, utils.CreateInvalidTransitionError(err))
		return
	}

	var req models.CampaignUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	updateData := bson.M{"updatedAt": appClock.Now()}
	if req.Name != nil {
		updateData["name"] = *req.Name
	}
	if req.Subject != nil {
		updateData["subject"] = *req.Subject
	}
	if req.ContentHTML != nil {
		updateData["contentHtml"] = *req.ContentHTML
	}
	if req.ContentText != nil {
		updateData["contentText"] = *req.ContentText
	}
	if req.FromEmail != nil {
		updateData["fromEmail"] = *req.FromEmail
	}
	if req.FromName != nil {
		updateData["fromName"] = *req.FromName
	}
	if req.Targeting != nil {
		if err := req.Targeting.Validate(); err != nil {
			utils.HandleError(c, utils.CreateBadRequestError(err.Error()))
			return
		}
		updateData["targeting"] = *req.Targeting
	}

	collection := repository.Collection(repository.EmailCampaignsCollection)
	if _, err := collection.UpdateOne(repository.GetContext(), bson.M{"_id": campaign.ID}, bson.M{"$set": updateData}); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, nil, "活动已更新")
}

// DeleteCampaign 删除活动，仅草稿或已取消的活动允许
func DeleteCampaign(c *gin.Context) {
	campaign, ok := loadCampaign(c)
	if !ok {
		return
	}

	if campaign.Status != models.CampaignStatusDraft && campaign.Status != models.CampaignStatusCancelled {
		utils.HandleError(c, utils.NewApiError("仅草稿或已取消的活动可以删除", http.StatusConflict, "INVALID_TRANSITION"))
		return
	}

	ctx := repository.GetContext()

	collection := repository.Collection(repository.EmailCampaignsCollection)
	if _, err := collection.DeleteOne(ctx, bson.M{"_id": campaign.ID}); err != nil {
		utils.HandleError(c, err)
		return
	}

	recipientsCollection := repository.Collection(repository.CampaignRecipientsCollection)
	if _, err := recipientsCollection.DeleteMany(ctx, bson.M{"campaignId": campaign.ID}); err != nil {
		utils.LogError(err, map[string]interface{}{"campaignId": campaign.ID.Hex()}, "删除活动收件人记录失败")
	}

	utils.SuccessResponse(c, nil, "活动已删除")
}

// ScheduleCampaign 活动排期
func ScheduleCampaign(c *gin.Context) {
	campaign, ok := loadCampaign(c)
	if !ok {
		return
	}

	var req models.CampaignScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	now := appClock.Now()
	if !req.ScheduledAt.After(now) {
		utils.HandleError(c, utils.CreateBadRequestError("排期时间必须晚于当前时间"))
		return
	}

	if err := campaign.Targeting.Validate(); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError(err.Error()))
		return
	}

	if err := campaign.Schedule(req.ScheduledAt, now); err != nil {
		utils.HandleError(c, utils.CreateInvalidTransitionError(err))
		return
	}

	collection := repository.Collection(repository.EmailCampaignsCollection)
	_, err := collection.UpdateOne(repository.GetContext(), bson.M{"_id": campaign.ID}, bson.M{"$set": bson.M{
		"status":      campaign.Status,
		"scheduledAt": campaign.ScheduledAt,
		"updatedAt":   campaign.UpdatedAt,
	}})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, campaign, "活动已排期")
}

// UnscheduleCampaign 取消排期回到草稿
func UnscheduleCampaign(c *gin.Context) {
	campaign, ok := loadCampaign(c)
	if !ok {
		return
	}

	if err := campaign.Unschedule(appClock.Now()); err != nil {
		utils.HandleError(c, utils.CreateInvalidTransitionError(err))
		return
	}

	collection := repository.Collection(repository.EmailCampaignsCollection)
	_, err := collection.UpdateOne(repository.GetContext(), bson.M{"_id": campaign.ID}, bson.M{
		"$set":   bson.M{"status": campaign.Status, "updatedAt": campaign.UpdatedAt},
		"$unset": bson.M{"scheduledAt": ""},
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, campaign, "已取消排期")
}

// StartCampaign 立即开始发送活动
func StartCampaign(c *gin.Context) {
	campaignID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的活动ID"))
		return
	}

	campaign, err := campaignSender.StartCampaign(repository.GetContext(), campaignID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, campaign, "活动已开始发送")
}

// PauseCampaign 暂停发送
func PauseCampaign(c *gin.Context) {
	campaignID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的活动ID"))
		return
	}

	campaign, err := campaignSender.PauseCampaign(repository.GetContext(), campaignID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, campaign, "活动已暂停")
}

// ResumeCampaign 恢复发送
func ResumeCampaign(c *gin.Context) {
	campaignID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的活动ID"))
		return
	}

	campaign, err := campaignSender.ResumeCampaign(repository.GetContext(), campaignID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, campaign, "活动已恢复发送")
}

// CancelCampaign 取消活动
func CancelCampaign(c *gin.Context) {
	campaignID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的活动ID"))
		return
	}

	campaign, err := campaignSender.CancelCampaign(repository.GetContext(), campaignID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, campaign, "活动已取消")
}

// GetCampaignStats 获取活动统计，先按收件人状态重算再返回
func GetCampaignStats(c *gin.Context) {
	campaignID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的活动ID"))
		return
	}

	ctx := repository.GetContext()

	if err := service.RollupCampaignStats(ctx, campaignID); err != nil {
		utils.HandleError(c, err)
		return
	}

	collection := repository.Collection(repository.EmailCampaignsCollection)
	var campaign models.EmailCampaign
	if err := collection.FindOne(ctx, bson.M{"_id": campaignID}).Decode(&campaign); err != nil {
		if err == mongo.ErrNoDocuments {
			utils.HandleError(c, utils.CreateNotFoundError("营销活动"))
			return
		}
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"campaignId":        campaign.ID,
		"name":              campaign.Name,
		"status":            campaign.Status,
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
	}, "")
}

// GetCampaignRecipients 获取活动收件人列表
func GetCampaignRecipients(c *gin.Context) {
	campaignID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的活动ID"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	filter := bson.M{"campaignId": campaignID}
	if status := c.Query("status"); status != "" {
		filter["status"] = status
	}

	ctx := repository.GetContext()
	collection := repository.Collection(repository.CampaignRecipientsCollection)

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var recipients []models.EmailCampaignRecipient
	if err := cursor.All(ctx, &recipients); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, recipients, total, int64(page), int64(limit))
}
