package service

import (
	"context"
	"time"

	"github.com/BerniceZTT/crm_marketing/models"
	"github.com/BerniceZTT/crm_marketing/repository"

	"go.mongodb.org/mongo-driver/bson"
)

// OrderAggregateProvider 外部销售子系统的订单聚合接口
type OrderAggregateProvider interface {
	GetOrderAggregate(ctx context.Context, customerID string) (models.OrderAggregate, error)
}

// MongoOrderAggregateProvider 从商城订单集合聚合
// 周边后台的销售数据与本系统共库，直接用聚合管道取数
type MongoOrderAggregateProvider struct{}

// GetOrderAggregate 聚合单个客户的已支付订单
func (MongoOrderAggregateProvider) GetOrderAggregate(ctx context.Context, customerID string) (models.OrderAggregate, error) {
	// 订单拉取带独立超时，超时不影响其他客户的重算
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pipeline := []bson.M{
		{"$match": bson.M{
			"customerId": customerID,
			"status":     bson.M{"$in": []string{"paid", "shipped", "completed"}},
		}},
		{"$group": bson.M{
			"_id":             nil,
			"orderCount":      bson.M{"$sum": 1},
			"totalSpent":      bson.M{"$sum": "$totalAmount"},
			"firstPurchaseAt": bson.M{"$min": "$paidAt"},
			"lastPurchaseAt":  bson.M{"$max": "$paidAt"},
		}},
	}

	collection := repository.Collection(repository.OrdersCollection)
	cursor, err := collection.Aggregate(queryCtx, pipeline)
	if err != nil {
		return models.OrderAggregate{}, err
	}
	defer cursor.Close(queryCtx)

	var results []models.OrderAggregate
	if err := cursor.All(queryCtx, &results); err != nil {
		return models.OrderAggregate{}, err
	}

	// 没有订单的客户返回零值聚合
	if len(results) == 0 {
		return models.OrderAggregate{}, nil
	}

	return results[0], nil
}
