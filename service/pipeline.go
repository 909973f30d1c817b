package service

import (
	"context"
	"fmt"

	"github.com/BerniceZTT/crm_marketing/models"
	"github.com/BerniceZTT/crm_marketing/repository"
	"github.com/BerniceZTT/crm_marketing/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RefreshStageAggregates 重算单个看板列的缓存聚合
// 线索的看板列或预估金额变动后由调用方触发，缓存不独立写
func RefreshStageAggregates(ctx context.Context, stageID primitive.ObjectID) error {
	leadsCollection := repository.Collection(repository.LeadsCollection)

	pipeline := []bson.M{
		{"$match": bson.M{"stageId": stageID}},
		{"$group": bson.M{
			"_id":                 nil,
			"leadCount":           bson.M{"$sum": 1},
			"totalEstimatedValue": bson.M{"$sum": "$estimatedValue"},
		}},
	}

	cursor, err := leadsCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("聚合看板列线索失败: %w", err)
	}

	var results []struct {
		LeadCount           int64   `bson:"leadCount"`
		TotalEstimatedValue float64 `bson:"totalEstimatedValue"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return fmt.Errorf("解析看板列聚合失败: %w", err)
	}

	var leadCount int64
	var totalValue float64
	if len(results) > 0 {
		leadCount = results[0].LeadCount
		totalValue = results[0].TotalEstimatedValue
	}

	stagesCollection := repository.Collection(repository.LeadPipelineStagesCollection)
	_, err = stagesCollection.UpdateOne(ctx, bson.M{"_id": stageID}, bson.M{"$set": bson.M{
		"leadCount":           leadCount,
		"totalEstimatedValue": totalValue,
	}})
	return err
}

// RefreshStagesFor 重算一组看板列的缓存聚合，移列时旧列新列各刷一次
func RefreshStagesFor(ctx context.Context, stageIDs ...*primitive.ObjectID) {
	seen := make(map[primitive.ObjectID]bool)
	for _, id := range stageIDs {
		if id == nil || seen[*id] {
			continue
		}
		seen[*id] = true
		if err := RefreshStageAggregates(ctx, *id); err != nil {
			utils.LogError(err, map[string]interface{}{"stageId": id.Hex()}, "刷新看板列聚合失败")
		}
	}
}

// BuildPipelineSummary 构建管道看板汇总
func BuildPipelineSummary(ctx context.Context) (*models.PipelineSummary, error) {
	stagesCollection := repository.Collection(repository.LeadPipelineStagesCollection)
	leadsCollection := repository.Collection(repository.LeadsCollection)

	cursor, err := stagesCollection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	var stages []models.LeadPipelineStage
	if err := cursor.All(ctx, &stages); err != nil {
		return nil, err
	}

	totalLeads, err := leadsCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	converted, err := leadsCollection.CountDocuments(ctx, bson.M{"isConverted": true})
	if err != nil {
		return nil, err
	}

	var totalValue float64
	for i := range stages {
		totalValue += stages[i].TotalEstimatedValue
	}

	return &models.PipelineSummary{
		Stages:              stages,
		TotalLeads:          totalLeads,
		TotalEstimatedValue: totalValue,
		ConvertedLeads:      converted,
	}, nil
}
