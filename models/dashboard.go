package models

// LifecycleStageCount 按生命周期阶段的客户数
type LifecycleStageCount struct {
	Stage LifecycleStage `json:"stage" bson:"_id"`
	Count int64          `json:"count" bson:"count"`
}

// ScoreBucket RFM 单维度评分直方图的一个桶
type ScoreBucket struct {
	Score int   `json:"score" bson:"_id"`
	Count int64 `json:"count" bson:"count"`
}

// RfmDistribution RFM 三个维度的评分分布
type RfmDistribution struct {
	Recency   []ScoreBucket `json:"recency"`
	Frequency []ScoreBucket `json:"frequency"`
	Monetary  []ScoreBucket `json:"monetary"`
	Total     []ScoreBucket `json:"total"`
}

// LeadStatusCount 按状态的线索数
type LeadStatusCount struct {
	Status LeadStatus `json:"status" bson:"_id"`
	Count  int64      `json:"count" bson:"count"`
}

// PipelineSummary 管道看板汇总
type PipelineSummary struct {
	Stages              []LeadPipelineStage `json:"stages"`
	TotalLeads          int64               `json:"totalLeads"`
	TotalEstimatedValue float64             `json:"totalEstimatedValue"`
	ConvertedLeads      int64               `json:"convertedLeads"`
}

// CampaignSummary 营销活动汇总
type CampaignSummary struct {
	TotalCampaigns    int64   `json:"totalCampaigns"`
	SendingCampaigns  int64   `json:"sendingCampaigns"`
	TotalRecipients   int64   `json:"totalRecipients"`
	TotalOpened       int64   `json:"totalOpened"`
	TotalClicked      int64   `json:"totalClicked"`
	AverageOpenRate   float64 `json:"averageOpenRate"`
	AverageClickRate  float64 `json:"averageClickRate"`
	AverageBounceRate float64 `json:"averageBounceRate"`
}

// DashboardStats 数据看板聚合响应
type DashboardStats struct {
	TotalCustomers  int64                 `json:"totalCustomers"`
	LifecycleStages []LifecycleStageCount `json:"lifecycleStages"`
	RfmDistribution RfmDistribution       `json:"rfmDistribution"`
	LeadStatuses    []LeadStatusCount     `json:"leadStatuses"`
	Pipeline        PipelineSummary       `json:"pipeline"`
	Campaigns       CampaignSummary       `json:"campaigns"`
}
