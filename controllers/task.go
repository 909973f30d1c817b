package controllers

import (
	"net/http"

	"github.com/BerniceZTT/crm_marketing/models"
	"github.com/BerniceZTT/crm_marketing/repository"
	"github.com/BerniceZTT/crm_marketing/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetTaskList 获取任务列表
func GetTaskList(c *gin.Context) {
	filter := bson.M{}
	if status := c.Query("status"); status != "" {
		filter["status"] = status
	}
	if customerID := c.Query("customerId"); customerID != "" {
		filter["customerId"] = customerID
	}
	if leadID := c.Query("leadId"); leadID != "" {
		id, err := primitive.ObjectIDFromHex(leadID)
		if err != nil {
			utils.HandleError(c, utils.CreateBadRequestError("无效的线索ID"))
			return
		}
		filter["leadId"] = id
	}
	if assigneeID := c.Query("assigneeId"); assigneeID != "" {
		filter["assigneeId"] = assigneeID
	}

	ctx := repository.GetContext()
	collection := repository.Collection(repository.CustomerTasksCollection)

	findOptions := options.Find().SetSort(bson.D{{Key: "dueAt", Value: 1}, {Key: "createdAt", Value: -1}})
	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var tasks []models.CustomerTask
	if err := cursor.All(ctx, &tasks); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, tasks, "")
}

// CreateTask 创建任务
func CreateTask(c *gin.Context) {
	user, err := utils.GetUser(c)
	if err != nil {
		utils.ErrorResponse(c, err.Error(), http.StatusUnauthorized)
		return
	}

	var req models.TaskCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	now := appClock.Now()
	task := models.CustomerTask{
		CustomerID: req.CustomerID,
		Title:      req.Title,
		Remark:     req.Remark,
		Status:     models.TaskStatusPending,
		DueAt:      req.DueAt,
		AssigneeID: req.AssigneeID,
		CreatedBy:  user.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if req.LeadID != "" {
		leadID, err := primitive.ObjectIDFromHex(req.LeadID)
		if err != nil {
			utils.HandleError(c, utils.CreateBadRequestError("无效的线索ID"))
			return
		}
		task.LeadID = &leadID
	}

	collection := repository.Collection(repository.CustomerTasksCollection)
	result, err := collection.InsertOne(repository.GetContext(), task)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"_id": result.InsertedID}, "任务创建成功", http.StatusCreated)
}

// loadTask 按ID加载任务
func loadTask(c *gin.Context) (*models.CustomerTask, bool) {
	taskID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的任务ID"))
		return nil, false
	}

	collection := repository.Collection(repository.CustomerTasksCollection)

	var task models.CustomerTask
	if err := collection.FindOne(repository.GetContext(), bson.M{"_id": taskID}).Decode(&task); err != nil {
		if err == mongo.ErrNoDocuments {
			utils.HandleError(c, utils.CreateNotFoundError("任务"))
			return nil, false
		}
		utils.HandleError(c, err)
		return nil, false
	}
	return &task, true
}

// CompleteTask 完成任务
func CompleteTask(c *gin.Context) {
	task, ok := loadTask(c)
	if !ok {
		return
	}

	if err := task.Complete(appClock.Now()); err != nil {
		utils.HandleError(c, utils.CreateInvalidTransitionError(err))
		return
	}

	collection := repository.Collection(repository.CustomerTasksCollection)
	_, err := collection.UpdateOne(repository.GetContext(), bson.M{"_id": task.ID}, bson.M{"$set": bson.M{
		"status":      task.Status,
		"completedAt": task.CompletedAt,
		"updatedAt":   task.UpdatedAt,
	}})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, task, "任务已完成")
}

// CancelTask 取消任务
func CancelTask(c *gin.Context) {
	task, ok := loadTask(c)
	if !ok {
		return
	}

	if err := task.Cancel(appClock.Now()); err != nil {
		utils.HandleError(c, utils.CreateInvalidTransitionError(err))
		return
	}

	collection := repository.Collection(repository.CustomerTasksCollection)
	_, err := collection.UpdateOne(repository.GetContext(), bson.M{"_id": task.ID}, bson.M{"$set": bson.M{
		"status":    task.Status,
		"updatedAt": task.UpdatedAt,
	}})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, task, "任务已取消")
}

// GetInteractionList 获取互动记录列表
func GetInteractionList(c *gin.Context) {
	filter := bson.M{}
	if customerID := c.Query("customerId"); customerID != "" {
		filter["customerId"] = customerID
	}
	if leadID := c.Query("leadId"); leadID != "" {
		id, err := primitive.ObjectIDFromHex(leadID)
		if err != nil {
			utils.HandleError(c, utils.CreateBadRequestError("无效的线索ID"))
			return
		}
		filter["leadId"] = id
	}

	ctx := repository.GetContext()
	collection := repository.Collection(repository.CustomerInteractionsCollection)

	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(200)
	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var interactions []models.CustomerInteraction
	if err := cursor.All(ctx, &interactions); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, interactions, "")
}

// CreateInteraction 追加互动记录，记录只增不改
func CreateInteraction(c *gin.Context) {
	user, err := utils.GetUser(c)
	if err != nil {
		utils.ErrorResponse(c, err.Error(), http.StatusUnauthorized)
		return
	}

	var req models.InteractionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	if !models.IsValidInteractionType(req.Type) {
		utils.HandleError(c, utils.CreateBadRequestError("无效的互动类型: "+req.Type))
		return
	}
	if req.CustomerID == "" && req.LeadID == "" {
		utils.HandleError(c, utils.CreateBadRequestError("必须关联客户或线索"))
		return
	}

	interaction := models.CustomerInteraction{
		CustomerID:   req.CustomerID,
		Type:         req.Type,
		Content:      req.Content,
		OperatorID:   user.ID,
		OperatorName: user.Username,
		CreatedAt:    appClock.Now(),
	}

	if req.LeadID != "" {
		leadID, err := primitive.ObjectIDFromHex(req.LeadID)
		if err != nil {
			utils.HandleError(c, utils.CreateBadRequestError("无效的线索ID"))
			return
		}
		interaction.LeadID = &leadID
	}

	collection := repository.Collection(repository.CustomerInteractionsCollection)
	result, err := collection.InsertOne(repository.GetContext(), interaction)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"_id": result.InsertedID}, "互动记录已添加", http.StatusCreated)
}
