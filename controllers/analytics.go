package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/BerniceZTT/crm_marketing/models"
	"github.com/BerniceZTT/crm_marketing/repository"
	"github.com/BerniceZTT/crm_marketing/service"
	"github.com/BerniceZTT/crm_marketing/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetAnalyticsList 获取客户分析列表，支持按生命周期阶段筛选
func GetAnalyticsList(c *gin.Context) {
	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := bson.M{}
	if stage := c.Query("lifecycleStage"); stage != "" {
		if !models.IsValidLifecycleStage(stage) {
			utils.HandleError(c, utils.CreateBadRequestError("无效的生命周期阶段: "+stage))
			return
		}
		query["lifecycleStage"] = stage
	}
	if minScore := c.Query("minRfmScore"); minScore != "" {
		score, err := strconv.Atoi(minScore)
		if err != nil {
			utils.HandleError(c, utils.CreateBadRequestError("无效的最低RFM评分"))
			return
		}
		query["totalRfmScore"] = bson.M{"$gte": score}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collection := repository.Collection(repository.CustomerAnalyticsCollection)

	total, err := collection.CountDocuments(ctx, query)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "totalRfmScore", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := collection.Find(ctx, query, findOptions)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var records []models.CustomerAnalytics
	if err := cursor.All(ctx, &records); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, records, total, page, limit)
}

// GetAnalyticsDetail 获取单个客户的分析详情
func GetAnalyticsDetail(c *gin.Context) {
	customerID := c.Param("customerId")

	collection := repository.Collection(repository.CustomerAnalyticsCollection)

	var analytics models.CustomerAnalytics
	err := collection.FindOne(repository.GetContext(), bson.M{"customerId": customerID}).Decode(&analytics)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.HandleError(c, utils.CreateNotFoundError("客户分析记录"))
			return
		}
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, analytics, "")
}

// UpdateAnalyticsNotes 更新客户内部备注
func UpdateAnalyticsNotes(c *gin.Context) {
	customerID := c.Param("customerId")

	var req models.AnalyticsNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	collection := repository.Collection(repository.CustomerAnalyticsCollection)
	result, err := collection.UpdateOne(
		repository.GetContext(),
		bson.M{"customerId": customerID},
		bson.M{"$set": bson.M{"internalNotes": req.InternalNotes, "updatedAt": appClock.Now()}},
	)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if result.MatchedCount == 0 {
		utils.HandleError(c, utils.CreateNotFoundError("客户分析记录"))
		return
	}

	utils.SuccessResponse(c, nil, "备注已更新")
}

// RecalculateCustomerAnalytics 即时重算单个客户
func RecalculateCustomerAnalytics(c *gin.Context) {
	customerID := c.Param("customerId")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	analytics, err := service.RecalculateCustomer(ctx, orderProvider, appClock, customerID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.HandleError(c, utils.CreateNotFoundError("客户分析记录"))
			return
		}
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, analytics, "重算完成")
}

// RecalculateAllAnalytics 触发全量重算（异步）
func RecalculateAllAnalytics(c *gin.Context) {
	user, err := utils.GetUser(c)
	if err != nil {
		utils.ErrorResponse(c, err.Error(), http.StatusUnauthorized)
		return
	}

	utils.LogInfo(map[string]interface{}{"username": user.Username}, "触发全量分析重算")

	scheduler := service.NewRecalculationScheduler(orderProvider, appClock, 0)
	go func() {
		result := scheduler.RunOnce(context.Background())
		utils.LogBatchProgress("manual_recalculation", result.Processed, result.Failed)
	}()

	utils.SuccessResponse(c, nil, "全量重算已开始", http.StatusAccepted)
}

// SyncCustomerAnalytics 同步客户档案（首次购买数据同步时建档）
func SyncCustomerAnalytics(c *gin.Context) {
	var req struct {
		CustomerID    string `json:"customerId" binding:"required"`
		CustomerEmail string `json:"customerEmail"`
		CustomerName  string `json:"customerName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	if req.CustomerEmail != "" && !utils.IsValidEmail(req.CustomerEmail) {
		utils.HandleError(c, utils.CreateBadRequestError("无效的邮箱地址"))
		return
	}

	now := appClock.Now()
	collection := repository.Collection(repository.CustomerAnalyticsCollection)

	// 已存在则只刷新快照信息，分析字段由重算维护；客户档案从不硬删除
	_, err := collection.UpdateOne(
		repository.GetContext(),
		bson.M{"customerId": req.CustomerID},
		bson.M{
			"$set": bson.M{
				"customerEmail": req.CustomerEmail,
				"customerName":  req.CustomerName,
				"updatedAt":     now,
			},
			"$setOnInsert": bson.M{
				"recencyScore":   1,
				"frequencyScore": 1,
				"monetaryScore":  1,
				"totalRfmScore":  3,
				"lifecycleStage": models.LifecycleStageNew,
				"createdAt":      now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, nil, "客户档案已同步")
}
