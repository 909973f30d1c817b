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

// Login 用户登录
func Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, "无效的请求参数: "+err.Error(), http.StatusBadRequest)
		return
	}

	utils.Logger.Info().
		Str("username", req.Username).
		Msg("登录尝试")

	usersCollection := repository.Collection(repository.UsersCollection)
	var user models.User
	err := usersCollection.FindOne(repository.GetContext(), bson.M{"username": req.Username}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.Logger.Info().Str("username", req.Username).Msg("登录失败: 用户名不存在")
			utils.ErrorResponse(c, "用户名或密码错误", http.StatusUnauthorized)
			return
		}
		utils.Logger.Error().Err(err).Msg("查询用户出错")
		utils.ErrorResponse(c, "登录失败: 数据库错误", http.StatusInternalServerError)
		return
	}

	// 检查用户状态
	if user.Status != models.UserStatusAPPROVED {
		utils.Logger.Info().Str("username", req.Username).Msg("登录失败: 账户未审核通过")
		utils.ErrorResponse(c, "账户未审核通过", http.StatusForbidden)
		return
	}

	// 验证密码
	if !utils.VerifyPassword(req.Password, user.Password) {
		utils.Logger.Info().Str("username", req.Username).Msg("登录失败: 密码错误")
		utils.ErrorResponse(c, "用户名或密码错误", http.StatusUnauthorized)
		return
	}

	// 生成JWT令牌
	token, err := utils.GenerateToken(user)
	if err != nil {
		utils.Logger.Error().Err(err).Msg("生成token失败")
		utils.ErrorResponse(c, "生成登录令牌失败，请重试", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(c, models.LoginResponse{Token: token, User: user}, "登录成功")
}

// ValidateToken 校验当前令牌并返回用户信息
func ValidateToken(c *gin.Context) {
	user, err := utils.GetUser(c)
	if err != nil {
		utils.ErrorResponse(c, err.Error(), http.StatusUnauthorized)
		return
	}

	// token有效但账户可能已被删除，校验时回查一次
	dbUser, err := repository.FindUserByID(user.ID)
	if err != nil || dbUser.Status != models.UserStatusAPPROVED {
		utils.HandleError(c, utils.CreateUnauthorizedError())
		return
	}

	utils.SuccessResponse(c, user, "")
}
