package controllers

import (
	"context"
	"net/http"

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

// GetSegmentList 获取分群列表
func GetSegmentList(c *gin.Context) {
	collection := repository.Collection(repository.CustomerSegmentsCollection)

	findOptions := options.Find().SetSort(bson.D{{Key: "sortOrder", Value: 1}})
	cursor, err := collection.Find(repository.GetContext(), bson.M{}, findOptions)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var segments []models.CustomerSegment
	if err := cursor.All(repository.GetContext(), &segments); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, segments, "")
}

// GetSegmentDetail 获取分群详情
func GetSegmentDetail(c *gin.Context) {
	segmentID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的分群ID"))
		return
	}

	collection := repository.Collection(repository.CustomerSegmentsCollection)

	var segment models.CustomerSegment
	if err := collection.FindOne(repository.GetContext(), bson.M{"_id": segmentID}).Decode(&segment); err != nil {
		if err == mongo.ErrNoDocuments {
			utils.HandleError(c, utils.CreateNotFoundError("分群"))
			return
		}
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, segment, "")
}

// CreateSegment 创建分群
func CreateSegment(c *gin.Context) {
	var req models.SegmentCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	collection := repository.Collection(repository.CustomerSegmentsCollection)

	// 检查编码是否重复
	var existing models.CustomerSegment
	err := collection.FindOne(repository.GetContext(), bson.M{"code": req.Code}).Decode(&existing)
	if err == nil {
		utils.HandleError(c, utils.CreateBadRequestError("分群编码已存在: "+req.Code))
		return
	}
	if err != mongo.ErrNoDocuments {
		utils.HandleError(c, err)
		return
	}

	now := appClock.Now()
	segment := models.CustomerSegment{
		Name:         req.Name,
		Code:         req.Code,
		Description:  req.Description,
		Rule:         req.Rule,
		IsAutoAssign: req.IsAutoAssign,
		SortOrder:    req.SortOrder,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	result, err := collection.InsertOne(repository.GetContext(), segment)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"_id": result.InsertedID}, "分群创建成功", http.StatusCreated)
}

// UpdateSegment 更新分群，规则可显式附加或清除
func UpdateSegment(c *gin.Context) {
	segmentID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的分群ID"))
		return
	}

	var req models.SegmentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	updateData := bson.M{"updatedAt": appClock.Now()}
	if req.Name != nil {
		updateData["name"] = *req.Name
	}
	if req.Description != nil {
		updateData["description"] = *req.Description
	}
	if req.IsAutoAssign != nil {
		updateData["isAutoAssign"] = *req.IsAutoAssign
	}
	if req.SortOrder != nil {
		updateData["sortOrder"] = *req.SortOrder
	}

	update := bson.M{"$set": updateData}
	if req.ClearRule {
		update["$unset"] = bson.M{"rule": ""}
	} else if req.Rule != nil {
		updateData["rule"] = req.Rule
	}

	collection := repository.Collection(repository.CustomerSegmentsCollection)
	result, err := collection.UpdateOne(repository.GetContext(), bson.M{"_id": segmentID}, update)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if result.MatchedCount == 0 {
		utils.HandleError(c, utils.CreateNotFoundError("分群"))
		return
	}

	utils.SuccessResponse(c, nil, "分群已更新")
}

// DeleteSegment 删除分群及其全部归属记录
func DeleteSegment(c *gin.Context) {
	segmentID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的分群ID"))
		return
	}

	ctx := repository.GetContext()

	collection := repository.Collection(repository.CustomerSegmentsCollection)
	result, err := collection.DeleteOne(ctx, bson.M{"_id": segmentID})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if result.DeletedCount == 0 {
		utils.HandleError(c, utils.CreateNotFoundError("分群"))
		return
	}

	// 归属记录随分群一并删除
	assignmentsCollection := repository.Collection(repository.SegmentAssignmentsCollection)
	if _, err := assignmentsCollection.DeleteMany(ctx, bson.M{"segmentId": segmentID}); err != nil {
		utils.LogError(err, map[string]interface{}{"segmentId": segmentID.Hex()}, "删除分群归属记录失败")
	}

	utils.SuccessResponse(c, nil, "分群已删除")
}

// GetSegmentMembers 获取分群成员列表
func GetSegmentMembers(c *gin.Context) {
	segmentID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的分群ID"))
		return
	}

	ctx := repository.GetContext()
	assignmentsCollection := repository.Collection(repository.SegmentAssignmentsCollection)

	cursor, err := assignmentsCollection.Find(ctx, bson.M{"segmentId": segmentID})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var assignments []models.CustomerSegmentAssignment
	if err := cursor.All(ctx, &assignments); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, assignments, "")
}

// AssignCustomerToSegment 手动分配客户到分群
func AssignCustomerToSegment(c *gin.Context) {
	segmentID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的分群ID"))
		return
	}

	user, err := utils.GetUser(c)
	if err != nil {
		utils.ErrorResponse(c, err.Error(), http.StatusUnauthorized)
		return
	}

	var req models.SegmentAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	ctx := repository.GetContext()

	// 分群与客户必须存在
	segmentsCollection := repository.Collection(repository.CustomerSegmentsCollection)
	var segment models.CustomerSegment
	if err := segmentsCollection.FindOne(ctx, bson.M{"_id": segmentID}).Decode(&segment); err != nil {
		if err == mongo.ErrNoDocuments {
			utils.HandleError(c, utils.CreateNotFoundError("分群"))
			return
		}
		utils.HandleError(c, err)
		return
	}

	analyticsCollection := repository.Collection(repository.CustomerAnalyticsCollection)
	var analytics models.CustomerAnalytics
	if err := analyticsCollection.FindOne(ctx, bson.M{"customerId": req.CustomerID}).Decode(&analytics); err != nil {
		if err == mongo.ErrNoDocuments {
			utils.HandleError(c, utils.CreateNotFoundError("客户分析记录"))
			return
		}
		utils.HandleError(c, err)
		return
	}

	// upsert 保证 (customerId, segmentId) 唯一，重复分配幂等
	assignmentsCollection := repository.Collection(repository.SegmentAssignmentsCollection)
	_, err = assignmentsCollection.UpdateOne(
		ctx,
		bson.M{"customerId": req.CustomerID, "segmentId": segmentID},
		bson.M{"$setOnInsert": bson.M{
			"customerId":     req.CustomerID,
			"segmentId":      segmentID,
			"isAutoAssigned": false,
			"assignedBy":     user.ID,
			"assignedAt":     appClock.Now(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		utils.HandleError(c, err)
		return
	}

	if err := service.RefreshSegmentCustomerCount(ctx, segmentID); err != nil {
		utils.LogError(err, map[string]interface{}{"segmentId": segmentID.Hex()}, "刷新分群客户数失败")
	}

	utils.SuccessResponse(c, nil, "分配成功")
}

// RemoveCustomerFromSegment 从分群移除客户
func RemoveCustomerFromSegment(c *gin.Context) {
	segmentID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的分群ID"))
		return
	}
	customerID := c.Param("customerId")

	ctx := repository.GetContext()
	assignmentsCollection := repository.Collection(repository.SegmentAssignmentsCollection)

	result, err := assignmentsCollection.DeleteOne(ctx, bson.M{
		"customerId": customerID,
		"segmentId":  segmentID,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if result.DeletedCount == 0 {
		utils.HandleError(c, utils.CreateNotFoundError("分群归属记录"))
		return
	}

	if err := service.RefreshSegmentCustomerCount(ctx, segmentID); err != nil {
		utils.LogError(err, map[string]interface{}{"segmentId": segmentID.Hex()}, "刷新分群客户数失败")
	}

	utils.SuccessResponse(c, nil, "已移除")
}

// RunSegmentationNow 触发一轮自动分群调和（异步）
func RunSegmentationNow(c *gin.Context) {
	user, err := utils.GetUser(c)
	if err != nil {
		utils.ErrorResponse(c, err.Error(), http.StatusUnauthorized)
		return
	}

	utils.LogInfo(map[string]interface{}{"username": user.Username}, "触发自动分群调和")

	go func() {
		if err := service.RunSegmentation(context.Background(), appClock); err != nil {
			utils.LogError(err, nil, "自动分群调和失败")
		}
	}()

	utils.SuccessResponse(c, nil, "自动分群调和已开始", http.StatusAccepted)
}

// PreviewSegmentRule 预览规则命中的客户数，不落库
func PreviewSegmentRule(c *gin.Context) {
	var rule models.SegmentRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的规则定义: "+err.Error()))
		return
	}

	ctx := repository.GetContext()
	analyticsCollection := repository.Collection(repository.CustomerAnalyticsCollection)

	cursor, err := analyticsCollection.Find(ctx, bson.M{})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	now := appClock.Now()
	var matched int64
	for cursor.Next(ctx) {
		var analytics models.CustomerAnalytics
		if err := cursor.Decode(&analytics); err != nil {
			continue
		}
		if rule.Matches(analytics.Snapshot(now)) {
			matched++
		}
	}
	cursor.Close(ctx)

	utils.SuccessResponse(c, gin.H{"matchedCount": matched}, "")
}
