package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 规则节点类型
const (
	RuleTypeCondition = "condition"
	RuleTypeAnd       = "and"
	RuleTypeOr        = "or"
)

// 规则可用字段
const (
	RuleFieldTotalRfmScore         = "totalRfmScore"
	RuleFieldRecencyScore          = "recencyScore"
	RuleFieldFrequencyScore        = "frequencyScore"
	RuleFieldMonetaryScore         = "monetaryScore"
	RuleFieldLifecycleStage        = "lifecycleStage"
	RuleFieldTotalSpent            = "totalSpent"
	RuleFieldTotalOrderCount       = "totalOrderCount"
	RuleFieldDaysSinceLastPurchase = "daysSinceLastPurchase"
)

// 规则比较操作符
const (
	RuleOpEq  = "eq"
	RuleOpNe  = "ne"
	RuleOpGt  = "gt"
	RuleOpGte = "gte"
	RuleOpLt  = "lt"
	RuleOpLte = "lte"
	RuleOpIn  = "in"
)

// SegmentRule 分群规则：封闭文法的结构化谓词树，非可执行代码
type SegmentRule struct {
	Type     string        `json:"type" bson:"type"`
	Field    string        `json:"field,omitempty" bson:"field,omitempty"`
	Op       string        `json:"op,omitempty" bson:"op,omitempty"`
	Value    interface{}   `json:"value,omitempty" bson:"value,omitempty"`
	Children []SegmentRule `json:"children,omitempty" bson:"children,omitempty"`
}

// CustomerSnapshot 规则评估用的客户快照
type CustomerSnapshot struct {
	TotalRfmScore         int            `json:"totalRfmScore"`
	RecencyScore          int            `json:"recencyScore"`
	FrequencyScore        int            `json:"frequencyScore"`
	MonetaryScore         int            `json:"monetaryScore"`
	LifecycleStage        LifecycleStage `json:"lifecycleStage"`
	TotalSpent            float64        `json:"totalSpent"`
	TotalOrderCount       int64          `json:"totalOrderCount"`
	DaysSinceLastPurchase int            `json:"daysSinceLastPurchase"`
}

// Matches 评估规则是否命中快照
// 无副作用的全函数：规则缺失或畸形时一律返回不命中，而不是报错，
// 自动分群绝不能因管理员保存的错误规则而阻塞
func (r *SegmentRule) Matches(snap CustomerSnapshot) bool {
	if r == nil {
		return false
	}

	switch r.Type {
	case RuleTypeCondition:
		return r.matchCondition(snap)
	case RuleTypeAnd:
		if len(r.Children) == 0 {
			return false
		}
		for i := range r.Children {
			if !r.Children[i].Matches(snap) {
				return false
			}
		}
		return true
	case RuleTypeOr:
		for i := range r.Children {
			if r.Children[i].Matches(snap) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// matchCondition 评估单个字段比较
func (r *SegmentRule) matchCondition(snap CustomerSnapshot) bool {
	if r.Field == RuleFieldLifecycleStage {
		return matchStringField(string(snap.LifecycleStage), r.Op, r.Value)
	}

	actual, ok := snapshotNumericField(snap, r.Field)
	if !ok {
		return false
	}

	switch r.Op {
	case RuleOpIn:
		values, ok := toInterfaceSlice(r.Value)
		if !ok {
			return false
		}
		for _, v := range values {
			if expected, ok := toFloat64(v); ok && actual == expected {
				return true
			}
		}
		return false
	default:
		expected, ok := toFloat64(r.Value)
		if !ok {
			return false
		}
		return compareFloat(actual, r.Op, expected)
	}
}

// snapshotNumericField 取快照上的数值字段，未知字段返回 false
func snapshotNumericField(snap CustomerSnapshot, field string) (float64, bool) {
	switch field {
	case RuleFieldTotalRfmScore:
		return float64(snap.TotalRfmScore), true
	case RuleFieldRecencyScore:
		return float64(snap.RecencyScore), true
	case RuleFieldFrequencyScore:
		return float64(snap.FrequencyScore), true
	case RuleFieldMonetaryScore:
		return float64(snap.MonetaryScore), true
	case RuleFieldTotalSpent:
		return snap.TotalSpent, true
	case RuleFieldTotalOrderCount:
		return float64(snap.TotalOrderCount), true
	case RuleFieldDaysSinceLastPurchase:
		return float64(snap.DaysSinceLastPurchase), true
	default:
		return 0, false
	}
}

// compareFloat 数值比较，未知操作符不命中
func compareFloat(actual float64, op string, expected float64) bool {
	switch op {
	case RuleOpEq:
		return actual == expected
	case RuleOpNe:
		return actual != expected
	case RuleOpGt:
		return actual > expected
	case RuleOpGte:
		return actual >= expected
	case RuleOpLt:
		return actual < expected
	case RuleOpLte:
		return actual <= expected
	default:
		return false
	}
}

// matchStringField 字符串字段比较，仅支持 eq/ne/in
func matchStringField(actual string, op string, value interface{}) bool {
	switch op {
	case RuleOpEq:
		expected, ok := value.(string)
		return ok && actual == expected
	case RuleOpNe:
		expected, ok := value.(string)
		return ok && actual != expected
	case RuleOpIn:
		values, ok := toInterfaceSlice(value)
		if !ok {
			return false
		}
		for _, v := range values {
			if expected, ok := v.(string); ok && actual == expected {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// toFloat64 宽容地转换规则值，兼容JSON与BSON反序列化出的各种数值类型
func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// toInterfaceSlice 兼容JSON数组与BSON数组
func toInterfaceSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case primitive.A:
		return []interface{}(s), true
	default:
		return nil, false
	}
}

// CustomerSegment 客户分群模型
type CustomerSegment struct {
	ID            primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name"`
	Code          string             `json:"code" bson:"code"`
	Description   string             `json:"description" bson:"description"`
	Rule          *SegmentRule       `json:"rule,omitempty" bson:"rule,omitempty"`
	IsAutoAssign  bool               `json:"isAutoAssign" bson:"isAutoAssign"`
	SortOrder     int                `json:"sortOrder" bson:"sortOrder"`
	CustomerCount int64              `json:"customerCount" bson:"customerCount"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// CustomerSegmentAssignment 客户分群归属记录，(customerId, segmentId) 唯一
type CustomerSegmentAssignment struct {
	ID             primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	CustomerID     string             `json:"customerId" bson:"customerId"`
	SegmentID      primitive.ObjectID `json:"segmentId" bson:"segmentId"`
	IsAutoAssigned bool               `json:"isAutoAssigned" bson:"isAutoAssigned"`
	AssignedBy     string             `json:"assignedBy,omitempty" bson:"assignedBy,omitempty"`
	AssignedAt     time.Time          `json:"assignedAt" bson:"assignedAt"`
}

// SegmentCreateRequest 创建分群请求
type SegmentCreateRequest struct {
	Name         string       `json:"name" binding:"required"`
	Code         string       `json:"code" binding:"required"`
	Description  string       `json:"description"`
	Rule         *SegmentRule `json:"rule"`
	IsAutoAssign bool         `json:"isAutoAssign"`
	SortOrder    int          `json:"sortOrder"`
}

// SegmentUpdateRequest 更新分群请求
type SegmentUpdateRequest struct {
	Name         *string      `json:"name"`
	Description  *string      `json:"description"`
	Rule         *SegmentRule `json:"rule"`
	ClearRule    bool         `json:"clearRule"`
	IsAutoAssign *bool        `json:"isAutoAssign"`
	SortOrder    *int         `json:"sortOrder"`
}

// SegmentAssignRequest 手动分配客户到分群请求
type SegmentAssignRequest struct {
	CustomerID string `json:"customerId" binding:"required"`
}
