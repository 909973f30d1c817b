package service

import (
	"context"
	"fmt"
	"time"

	"github.com/BerniceZTT/crm_marketing/models"
	"github.com/BerniceZTT/crm_marketing/repository"
	"github.com/BerniceZTT/crm_marketing/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AssignmentDiff 分群调和的集合差
type AssignmentDiff struct {
	ToInsert []string // 命中规则但没有归属记录的客户
	ToRemove []string // 有自动归属记录但不再命中规则的客户
}

// DiffAssignments 计算一个分群的调和差
// matched 是本轮规则命中的客户集合，existing 是当前归属记录。
// 手动归属的记录不参与删除；重复执行且数据不变时差为空，保证幂等
func DiffAssignments(matched map[string]bool, existing []models.CustomerSegmentAssignment) AssignmentDiff {
	diff := AssignmentDiff{}

	assigned := make(map[string]bool, len(existing))
	for _, a := range existing {
		assigned[a.CustomerID] = true

		// 仅自动归属的记录可以被调和移除
		if a.IsAutoAssigned && !matched[a.CustomerID] {
			diff.ToRemove = append(diff.ToRemove, a.CustomerID)
		}
	}

	for customerID := range matched {
		if !assigned[customerID] {
			diff.ToInsert = append(diff.ToInsert, customerID)
		}
	}

	return diff
}

// RunSegmentation 对全体客户执行一轮自动分群调和
// 可与定时调度并发触发：插入走 upsert，删除按 (customerId, segmentId, isAutoAssigned)
// 精确匹配，重复执行不产生额外写入
func RunSegmentation(ctx context.Context, clock Clock) error {
	now := clock.Now()

	// 1. 加载全部自动分群
	segmentsCollection := repository.Collection(repository.CustomerSegmentsCollection)
	segmentsCursor, err := segmentsCollection.Find(ctx, bson.M{"isAutoAssign": true})
	if err != nil {
		return fmt.Errorf("查询自动分群失败: %w", err)
	}

	var segments []models.CustomerSegment
	if err := segmentsCursor.All(ctx, &segments); err != nil {
		return fmt.Errorf("解析分群数据失败: %w", err)
	}

	if len(segments) == 0 {
		utils.Logger.Info().Msg("没有启用自动分配的分群，跳过调和")
		return nil
	}

	// 2. 加载全部客户分析快照
	analyticsCollection := repository.Collection(repository.CustomerAnalyticsCollection)
	analyticsCursor, err := analyticsCollection.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("查询客户分析失败: %w", err)
	}

	var customers []models.CustomerAnalytics
	if err := analyticsCursor.All(ctx, &customers); err != nil {
		return fmt.Errorf("解析客户分析数据失败: %w", err)
	}

	// 3. 逐分群调和
	for i := range segments {
		if err := reconcileSegment(ctx, &segments[i], customers, now); err != nil {
			// 单个分群失败不中断其余分群
			utils.LogError(err, map[string]interface{}{
				"segmentId":   segments[i].ID.Hex(),
				"segmentCode": segments[i].Code,
			}, "分群调和失败")
		}
	}

	utils.Logger.Info().
		Int("segments", len(segments)).
		Int("customers", len(customers)).
		Msg("自动分群调和完成")
	return nil
}

// reconcileSegment 调和单个分群的归属记录并刷新缓存客户数
func reconcileSegment(ctx context.Context, segment *models.CustomerSegment, customers []models.CustomerAnalytics, now time.Time) error {
	// 评估规则得到命中集合；没有规则的分群是纯手动分群，命中集合为空，
	// 调和只会移除遗留的自动归属记录
	matched := make(map[string]bool)
	for i := range customers {
		if segment.Rule.Matches(customers[i].Snapshot(now)) {
			matched[customers[i].CustomerID] = true
		}
	}

	// 取当前归属记录
	assignmentsCollection := repository.Collection(repository.SegmentAssignmentsCollection)
	cursor, err := assignmentsCollection.Find(ctx, bson.M{"segmentId": segment.ID})
	if err != nil {
		return fmt.Errorf("查询分群归属失败: %w", err)
	}

	var existing []models.CustomerSegmentAssignment
	if err := cursor.All(ctx, &existing); err != nil {
		return fmt.Errorf("解析分群归属失败: %w", err)
	}

	diff := DiffAssignments(matched, existing)

	// 插入缺失的自动归属，upsert 防止与并发调和产生重复行
	for _, customerID := range diff.ToInsert {
		_, err := assignmentsCollection.UpdateOne(
			ctx,
			bson.M{"customerId": customerID, "segmentId": segment.ID},
			bson.M{"$setOnInsert": bson.M{
				"customerId":     customerID,
				"segmentId":      segment.ID,
				"isAutoAssigned": true,
				"assignedAt":     now,
			}},
			options.Update().SetUpsert(true),
		)
		if err != nil && !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("插入分群归属失败 (customer=%s): %w", customerID, err)
		}
	}

	// 移除不再命中的自动归属，手动记录不动
	if len(diff.ToRemove) > 0 {
		_, err := assignmentsCollection.DeleteMany(ctx, bson.M{
			"segmentId":      segment.ID,
			"customerId":     bson.M{"$in": diff.ToRemove},
			"isAutoAssigned": true,
		})
		if err != nil {
			return fmt.Errorf("移除分群归属失败: %w", err)
		}
	}

	// 刷新缓存客户数，缓存只读不独立写
	return RefreshSegmentCustomerCount(ctx, segment.ID)
}

// RefreshSegmentCustomerCount 重算并回写分群缓存客户数
func RefreshSegmentCustomerCount(ctx context.Context, segmentID primitive.ObjectID) error {
	assignmentsCollection := repository.Collection(repository.SegmentAssignmentsCollection)
	count, err := assignmentsCollection.CountDocuments(ctx, bson.M{"segmentId": segmentID})
	if err != nil {
		return fmt.Errorf("统计分群客户数失败: %w", err)
	}

	// 缓存计数是派生值，写失败可重试
	segmentsCollection := repository.Collection(repository.CustomerSegmentsCollection)
	_, err = repository.ExecuteDbOperation(func() (interface{}, error) {
		return segmentsCollection.UpdateOne(
			ctx,
			bson.M{"_id": segmentID},
			bson.M{"$set": bson.M{"customerCount": count, "updatedAt": time.Now()}},
		)
	}, 3)
	return err
}
