package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRole 用户角色枚举
type UserRole string

const (
	UserRoleSUPER_ADMIN UserRole = "SUPER_ADMIN" // 超级管理员
	UserRoleMARKETING   UserRole = "MARKETING"   // 营销运营
	UserRoleSALES       UserRole = "SALES"       // 销售
)

// UserStatus 用户状态枚举
type UserStatus string

const (
	UserStatusPENDING  UserStatus = "pending"
	UserStatusAPPROVED UserStatus = "approved"
	UserStatusREJECTED UserStatus = "rejected"
)

// User 用户类型
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Username  string             `bson:"username" json:"username"`
	Password  string             `bson:"password" json:"-"` // 不返回密码
	Phone     string             `bson:"phone" json:"phone"`
	Role      UserRole           `bson:"role" json:"role"`
	Status    UserStatus         `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// 各种请求和响应结构
type (
	// LoginRequest 登录请求
	LoginRequest struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	// LoginResponse 登录响应
	LoginResponse struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}

	// UserCreateRequest 创建用户请求
	UserCreateRequest struct {
		Username string   `json:"username" binding:"required"`
		Password string   `json:"password" binding:"required"`
		Phone    string   `json:"phone"`
		Role     UserRole `json:"role" binding:"required"`
	}
)

// OrderAggregate 外部销售子系统提供的订单聚合数据
type OrderAggregate struct {
	OrderCount      int64      `json:"orderCount" bson:"orderCount"`
	TotalSpent      float64    `json:"totalSpent" bson:"totalSpent"`
	FirstPurchaseAt *time.Time `json:"firstPurchaseAt,omitempty" bson:"firstPurchaseAt,omitempty"`
	LastPurchaseAt  *time.Time `json:"lastPurchaseAt,omitempty" bson:"lastPurchaseAt,omitempty"`
}
