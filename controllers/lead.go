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

// loadLead 按ID加载线索，统一处理不存在的情况
func loadLead(c *gin.Context) (*models.Lead, bool) {
	leadID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的线索ID"))
		return nil, false
	}

	collection := repository.Collection(repository.LeadsCollection)

	var lead models.Lead
	if err := collection.FindOne(repository.GetContext(), bson.M{"_id": leadID}).Decode(&lead); err != nil {
		if err == mongo.ErrNoDocuments {
			utils.HandleError(c, utils.CreateNotFoundError("线索"))
			return nil, false
		}
		utils.HandleError(c, err)
		return nil, false
	}
	return &lead, true
}

// saveLead 回写线索全量字段
func saveLead(c *gin.Context, lead *models.Lead, message string) {
	collection := repository.Collection(repository.LeadsCollection)
	if _, err := collection.ReplaceOne(repository.GetContext(), bson.M{"_id": lead.ID}, lead); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, lead, message)
}

// GetLeadList 获取线索列表
func GetLeadList(c *gin.Context) {
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
		if !models.IsValidLeadStatus(status) {
			utils.HandleError(c, utils.CreateBadRequestError("无效的线索状态: "+status))
			return
		}
		filter["status"] = status
	}
	if assigneeID := c.Query("assigneeId"); assigneeID != "" {
		filter["assigneeId"] = assigneeID
	}
	if keyword := c.Query("keyword"); keyword != "" {
		filter["$or"] = []bson.M{
			{"name": bson.M{"$regex": keyword, "$options": "i"}},
			{"companyName": bson.M{"$regex": keyword, "$options": "i"}},
			{"contactPerson": bson.M{"$regex": keyword, "$options": "i"}},
		}
	}

	ctx := repository.GetContext()
	collection := repository.Collection(repository.LeadsCollection)

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var leads []models.Lead
	if err := cursor.All(ctx, &leads); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, leads, total, int64(page), int64(limit))
}

// GetLeadDetail 获取线索详情
func GetLeadDetail(c *gin.Context) {
	lead, ok := loadLead(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, lead, "")
}

// CreateLead 创建线索，初始状态为新线索
func CreateLead(c *gin.Context) {
	var req models.LeadCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	if req.ContactEmail != "" && !utils.IsValidEmail(req.ContactEmail) {
		utils.HandleError(c, utils.CreateBadRequestError("无效的联系邮箱"))
		return
	}

	now := appClock.Now()
	lead := models.Lead{
		Name:           req.Name,
		CompanyName:    req.CompanyName,
		ContactPerson:  req.ContactPerson,
		ContactPhone:   req.ContactPhone,
		ContactEmail:   req.ContactEmail,
		Source:         req.Source,
		Status:         models.LeadStatusNew,
		AssigneeID:     req.AssigneeID,
		AssigneeName:   req.AssigneeName,
		EstimatedValue: req.EstimatedValue,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if req.StageID != "" {
		stageID, err := primitive.ObjectIDFromHex(req.StageID)
		if err != nil {
			utils.HandleError(c, utils.CreateBadRequestError("无效的看板列ID"))
			return
		}
		lead.StageID = &stageID
	}

	ctx := repository.GetContext()
	collection := repository.Collection(repository.LeadsCollection)

	result, err := collection.InsertOne(ctx, lead)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	service.RefreshStagesFor(ctx, lead.StageID)

	utils.SuccessResponse(c, gin.H{"_id": result.InsertedID}, "线索创建成功", http.StatusCreated)
}

// UpdateLead 更新线索基本信息，终态线索不允许修改
func UpdateLead(c *gin.Context) {
	lead, ok := loadLead(c)
	if !ok {
		return
	}
	if lead.IsTerminal() {
		utils.HandleError(c, utils.NewApiError("线索已结束，不能修改", http.StatusConflict, "INVALID_TRANSITION"))
		return
	}

	var req models.LeadUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	updateData := bson.M{"updatedAt": appClock.Now()}
	if req.Name != nil {
		updateData["name"] = *req.Name
	}
	if req.CompanyName != nil {
		updateData["companyName"] = *req.CompanyName
	}
	if req.ContactPerson != nil {
		updateData["contactPerson"] = *req.ContactPerson
	}
	if req.ContactPhone != nil {
		updateData["contactPhone"] = *req.ContactPhone
	}
	if req.ContactEmail != nil {
		if *req.ContactEmail != "" && !utils.IsValidEmail(*req.ContactEmail) {
			utils.HandleError(c, utils.CreateBadRequestError("无效的联系邮箱"))
			return
		}
		updateData["contactEmail"] = *req.ContactEmail
	}
	if req.Source != nil {
		updateData["source"] = *req.Source
	}
	if req.EstimatedValue != nil {
		updateData["estimatedValue"] = *req.EstimatedValue
	}

	ctx := repository.GetContext()
	collection := repository.Collection(repository.LeadsCollection)
	if _, err := collection.UpdateOne(ctx, bson.M{"_id": lead.ID}, bson.M{"$set": updateData}); err != nil {
		utils.HandleError(c, err)
		return
	}

	if req.EstimatedValue != nil {
		service.RefreshStagesFor(ctx, lead.StageID)
	}

	utils.SuccessResponse(c, nil, "线索已更新")
}

// DeleteLead 删除线索
func DeleteLead(c *gin.Context) {
	lead, ok := loadLead(c)
	if !ok {
		return
	}

	ctx := repository.GetContext()
	collection := repository.Collection(repository.LeadsCollection)

	if _, err := collection.DeleteOne(ctx, bson.M{"_id": lead.ID}); err != nil {
		utils.HandleError(c, err)
		return
	}

	service.RefreshStagesFor(ctx, lead.StageID)

	utils.SuccessResponse(c, nil, "线索已删除")
}

// ContactLead 标记线索已联系
func ContactLead(c *gin.Context) {
	lead, ok := loadLead(c)
	if !ok {
		return
	}

	if err := lead.MarkAsContacted(appClock.Now()); err != nil {
		utils.HandleError(c, utils.CreateInvalidTransitionError(err))
		return
	}
	saveLead(c, lead, "已标记为已联系")
}

// QualifyLead 确认线索意向
func QualifyLead(c *gin.Context) {
	lead, ok := loadLead(c)
	if !ok {
		return
	}

	if err := lead.Qualify(appClock.Now()); err != nil {
		utils.HandleError(c, utils.CreateInvalidTransitionError(err))
		return
	}
	saveLead(c, lead, "已确认意向")
}

// AdvanceLeadStatus 推进线索销售状态
func AdvanceLeadStatus(c *gin.Context) {
	lead, ok := loadLead(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	if err := lead.AdvanceStatus(models.LeadStatus(req.Status), appClock.Now()); err != nil {
		utils.HandleError(c, utils.CreateInvalidTransitionError(err))
		return
	}
	saveLead(c, lead, "状态已推进")
}

// MoveLeadStage 移动线索到看板列
func MoveLeadStage(c *gin.Context) {
	lead, ok := loadLead(c)
	if !ok {
		return
	}

	var req models.LeadMoveStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	stageID, err := primitive.ObjectIDFromHex(req.StageID)
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的看板列ID"))
		return
	}

	ctx := repository.GetContext()

	// 目标列必须存在
	stagesCollection := repository.Collection(repository.LeadPipelineStagesCollection)
	var stage models.LeadPipelineStage
	if err := stagesCollection.FindOne(ctx, bson.M{"_id": stageID}).Decode(&stage); err != nil {
		if err == mongo.ErrNoDocuments {
			utils.HandleError(c, utils.CreateNotFoundError("看板列"))
			return
		}
		utils.HandleError(c, err)
		return
	}

	oldStageID := lead.StageID
	if err := lead.MoveToStage(stageID, appClock.Now()); err != nil {
		utils.HandleError(c, utils.CreateInvalidTransitionError(err))
		return
	}

	collection := repository.Collection(repository.LeadsCollection)
	if _, err := collection.ReplaceOne(ctx, bson.M{"_id": lead.ID}, lead); err != nil {
		utils.HandleError(c, err)
		return
	}

	service.RefreshStagesFor(ctx, oldStageID, lead.StageID)

	utils.SuccessResponse(c, lead, "已移动到看板列: "+stage.Name)
}

// AssignLead 分配线索负责人
func AssignLead(c *gin.Context) {
	lead, ok := loadLead(c)
	if !ok {
		return
	}

	var req models.LeadAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	if err := lead.Assign(req.AssigneeID, req.AssigneeName, appClock.Now()); err != nil {
		utils.HandleError(c, utils.CreateInvalidTransitionError(err))
		return
	}
	saveLead(c, lead, "线索已分配")
}

// SetLeadFollowUp 设置线索跟进时间并生成跟进任务
func SetLeadFollowUp(c *gin.Context) {
	lead, ok := loadLead(c)
	if !ok {
		return
	}

	user, err := utils.GetUser(c)
	if err != nil {
		utils.ErrorResponse(c, err.Error(), http.StatusUnauthorized)
		return
	}

	var req models.LeadFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	now := appClock.Now()
	if err := lead.SetFollowUp(req.FollowUpAt, now); err != nil {
		utils.HandleError(c, utils.CreateInvalidTransitionError(err))
		return
	}

	ctx := repository.GetContext()
	collection := repository.Collection(repository.LeadsCollection)
	if _, err := collection.ReplaceOne(ctx, bson.M{"_id": lead.ID}, lead); err != nil {
		utils.HandleError(c, err)
		return
	}

	// 跟进时间同时生成一条待办任务
	task := models.CustomerTask{
		Title:      "跟进线索: " + lead.Name,
		Remark:     req.Remark,
		LeadID:     &lead.ID,
		Status:     models.TaskStatusPending,
		DueAt:      &req.FollowUpAt,
		AssigneeID: lead.AssigneeID,
		CreatedBy:  user.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	tasksCollection := repository.Collection(repository.CustomerTasksCollection)
	if _, err := tasksCollection.InsertOne(ctx, task); err != nil {
		utils.LogError(err, map[string]interface{}{"leadId": lead.ID.Hex()}, "创建跟进任务失败")
	}

	utils.SuccessResponse(c, lead, "跟进时间已设置")
}

// ConvertLead 线索转化为客户，同时初始化客户分析记录
func ConvertLead(c *gin.Context) {
	lead, ok := loadLead(c)
	if !ok {
		return
	}

	var req models.LeadConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	now := appClock.Now()
	if err := lead.Convert(req.CustomerID, now); err != nil {
		utils.HandleError(c, utils.CreateInvalidTransitionError(err))
		return
	}

	ctx := repository.GetContext()
	collection := repository.Collection(repository.LeadsCollection)
	if _, err := collection.ReplaceOne(ctx, bson.M{"_id": lead.ID}, lead); err != nil {
		utils.HandleError(c, err)
		return
	}

	// 转化后补一条分析记录，后续调度器会刷新指标
	analyticsCollection := repository.Collection(repository.CustomerAnalyticsCollection)
	_, err := analyticsCollection.UpdateOne(
		ctx,
		bson.M{"customerId": req.CustomerID},
		bson.M{"$setOnInsert": bson.M{
			"customerId":           req.CustomerID,
			"customerName":         lead.Name,
			"customerEmail":        lead.ContactEmail,
			"recencyScore":         1,
			"frequencyScore":       1,
			"monetaryScore":        1,
			"totalRfmScore":        3,
			"lifecycleStage":       models.LifecycleStageNew,
			"emailOpenCount":       0,
			"emailClickCount":      0,
			"createdAt":            now,
			"updatedAt":            now,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		utils.LogError(err, map[string]interface{}{"customerId": req.CustomerID}, "初始化客户分析记录失败")
	}

	service.RefreshStagesFor(ctx, lead.StageID)

	utils.SuccessResponse(c, lead, "线索已转化为客户")
}

// LoseLead 标记线索丢单
func LoseLead(c *gin.Context) {
	lead, ok := loadLead(c)
	if !ok {
		return
	}

	var req models.LeadLostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("丢单必须填写原因"))
		return
	}

	if err := lead.MarkAsLost(req.Reason, appClock.Now()); err != nil {
		utils.HandleError(c, utils.CreateInvalidTransitionError(err))
		return
	}

	ctx := repository.GetContext()
	collection := repository.Collection(repository.LeadsCollection)
	if _, err := collection.ReplaceOne(ctx, bson.M{"_id": lead.ID}, lead); err != nil {
		utils.HandleError(c, err)
		return
	}

	service.RefreshStagesFor(ctx, lead.StageID)

	utils.SuccessResponse(c, lead, "已标记丢单")
}

// GetPipelineStages 获取看板列列表（含缓存聚合）
func GetPipelineStages(c *gin.Context) {
	collection := repository.Collection(repository.LeadPipelineStagesCollection)

	findOptions := options.Find().SetSort(bson.D{{Key: "sortOrder", Value: 1}})
	cursor, err := collection.Find(repository.GetContext(), bson.M{}, findOptions)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var stages []models.LeadPipelineStage
	if err := cursor.All(repository.GetContext(), &stages); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, stages, "")
}

// CreatePipelineStage 创建看板列
func CreatePipelineStage(c *gin.Context) {
	var req models.PipelineStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	if req.WinProbability < 0 || req.WinProbability > 100 {
		utils.HandleError(c, utils.CreateBadRequestError("赢单概率必须在0-100之间"))
		return
	}

	now := appClock.Now()
	stage := models.LeadPipelineStage{
		Name:           req.Name,
		SortOrder:      req.SortOrder,
		WinProbability: req.WinProbability,
		IsFinalStage:   req.IsFinalStage,
		IsWonStage:     req.IsWonStage,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	collection := repository.Collection(repository.LeadPipelineStagesCollection)
	result, err := collection.InsertOne(repository.GetContext(), stage)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"_id": result.InsertedID}, "看板列创建成功", http.StatusCreated)
}

// UpdatePipelineStage 更新看板列
func UpdatePipelineStage(c *gin.Context) {
	stageID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的看板列ID"))
		return
	}

	var req models.PipelineStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	if req.WinProbability < 0 || req.WinProbability > 100 {
		utils.HandleError(c, utils.CreateBadRequestError("赢单概率必须在0-100之间"))
		return
	}

	collection := repository.Collection(repository.LeadPipelineStagesCollection)
	result, err := collection.UpdateOne(
		repository.GetContext(),
		bson.M{"_id": stageID},
		bson.M{"$set": bson.M{
			"name":           req.Name,
			"sortOrder":      req.SortOrder,
			"winProbability": req.WinProbability,
			"isFinalStage":   req.IsFinalStage,
			"isWonStage":     req.IsWonStage,
			"updatedAt":      appClock.Now(),
		}},
	)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if result.MatchedCount == 0 {
		utils.HandleError(c, utils.CreateNotFoundError("看板列"))
		return
	}

	utils.SuccessResponse(c, nil, "看板列已更新")
}

// DeletePipelineStage 删除看板列，列内仍有线索时拒绝
func DeletePipelineStage(c *gin.Context) {
	stageID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的看板列ID"))
		return
	}

	ctx := repository.GetContext()

	leadsCollection := repository.Collection(repository.LeadsCollection)
	count, err := leadsCollection.CountDocuments(ctx, bson.M{"stageId": stageID})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if count > 0 {
		utils.HandleError(c, utils.CreateBadRequestError("看板列内仍有线索，不能删除"))
		return
	}

	collection := repository.Collection(repository.LeadPipelineStagesCollection)
	result, err := collection.DeleteOne(ctx, bson.M{"_id": stageID})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if result.DeletedCount == 0 {
		utils.HandleError(c, utils.CreateNotFoundError("看板列"))
		return
	}

	utils.SuccessResponse(c, nil, "看板列已删除")
}

// GetPipelineKanban 获取看板视图，按列聚合线索
func GetPipelineKanban(c *gin.Context) {
	ctx := repository.GetContext()

	summary, err := service.BuildPipelineSummary(ctx)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, summary, "")
}
