package controllers

import (
	"net/http"

	"github.com/BerniceZTT/crm_marketing/models"
	"github.com/BerniceZTT/crm_marketing/repository"
	"github.com/BerniceZTT/crm_marketing/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// GetUserList 获取用户列表
func GetUserList(c *gin.Context) {
	user, err := utils.GetUser(c)
	if err != nil {
		utils.ErrorResponse(c, err.Error(), http.StatusUnauthorized)
		return
	}

	if user.Role != string(models.UserRoleSUPER_ADMIN) {
		utils.HandleError(c, utils.CreateForbiddenError())
		return
	}

	usersCollection := repository.Collection(repository.UsersCollection)
	cursor, err := usersCollection.Find(repository.GetContext(), bson.M{})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var users []models.User
	if err := cursor.All(repository.GetContext(), &users); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, users, "")
}

// CreateUser 创建用户（仅管理员）
func CreateUser(c *gin.Context) {
	user, err := utils.GetUser(c)
	if err != nil {
		utils.ErrorResponse(c, err.Error(), http.StatusUnauthorized)
		return
	}

	if user.Role != string(models.UserRoleSUPER_ADMIN) {
		utils.HandleError(c, utils.CreateForbiddenError())
		return
	}

	var req models.UserCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求参数: "+err.Error()))
		return
	}

	if req.Phone != "" && !utils.IsValidPhone(req.Phone) {
		utils.HandleError(c, utils.CreateBadRequestError("无效的手机号"))
		return
	}

	usersCollection := repository.Collection(repository.UsersCollection)

	// 检查用户名是否已存在
	var existing models.User
	err = usersCollection.FindOne(repository.GetContext(), bson.M{"username": req.Username}).Decode(&existing)
	if err == nil {
		utils.HandleError(c, utils.CreateBadRequestError("用户名已存在"))
		return
	}
	if err != mongo.ErrNoDocuments {
		utils.HandleError(c, err)
		return
	}

	now := appClock.Now()
	newUser := models.User{
		Username:  req.Username,
		Password:  utils.HashPassword(req.Password),
		Phone:     req.Phone,
		Role:      req.Role,
		Status:    models.UserStatusAPPROVED,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := usersCollection.InsertOne(repository.GetContext(), newUser)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"_id": result.InsertedID}, "用户创建成功", http.StatusCreated)
}
