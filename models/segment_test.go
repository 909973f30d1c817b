package models

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func sampleSnapshot() CustomerSnapshot {
	return CustomerSnapshot{
		TotalRfmScore:         11,
		RecencyScore:          4,
		FrequencyScore:        4,
		MonetaryScore:         3,
		LifecycleStage:        LifecycleStageVIP,
		TotalSpent:            32000,
		TotalOrderCount:       8,
		DaysSinceLastPurchase: 12,
	}
}

func TestRuleCondition(t *testing.T) {
	snap := sampleSnapshot()

	tests := []struct {
		name string
		rule SegmentRule
		want bool
	}{
		{"gte命中", SegmentRule{Type: RuleTypeCondition, Field: RuleFieldTotalRfmScore, Op: RuleOpGte, Value: 10}, true},
		{"gte不命中", SegmentRule{Type: RuleTypeCondition, Field: RuleFieldTotalRfmScore, Op: RuleOpGte, Value: 12}, false},
		{"gt边界不命中", SegmentRule{Type: RuleTypeCondition, Field: RuleFieldTotalRfmScore, Op: RuleOpGt, Value: 11}, false},
		{"lt命中", SegmentRule{Type: RuleTypeCondition, Field: RuleFieldDaysSinceLastPurchase, Op: RuleOpLt, Value: 30}, true},
		{"lte边界命中", SegmentRule{Type: RuleTypeCondition, Field: RuleFieldTotalOrderCount, Op: RuleOpLte, Value: 8}, true},
		{"eq浮点字段", SegmentRule{Type: RuleTypeCondition, Field: RuleFieldTotalSpent, Op: RuleOpEq, Value: 32000.0}, true},
		{"ne命中", SegmentRule{Type: RuleTypeCondition, Field: RuleFieldMonetaryScore, Op: RuleOpNe, Value: 5}, true},
		{"阶段eq命中", SegmentRule{Type: RuleTypeCondition, Field: RuleFieldLifecycleStage, Op: RuleOpEq, Value: "vip"}, true},
		{"阶段ne不命中", SegmentRule{Type: RuleTypeCondition, Field: RuleFieldLifecycleStage, Op: RuleOpNe, Value: "vip"}, false},
		{"数值in命中", SegmentRule{Type: RuleTypeCondition, Field: RuleFieldRecencyScore, Op: RuleOpIn, Value: []interface{}{3, 4, 5}}, true},
		{"数值in不命中", SegmentRule{Type: RuleTypeCondition, Field: RuleFieldRecencyScore, Op: RuleOpIn, Value: []interface{}{1, 2}}, false},
		{"阶段in命中", SegmentRule{Type: RuleTypeCondition, Field: RuleFieldLifecycleStage, Op: RuleOpIn, Value: []interface{}{"vip", "champion"}}, true},
		{"BSON数组in命中", SegmentRule{Type: RuleTypeCondition, Field: RuleFieldRecencyScore, Op: RuleOpIn, Value: primitive.A{int32(4)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Matches(snap); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRuleComposite(t *testing.T) {
	snap := sampleSnapshot()

	highValue := SegmentRule{Type: RuleTypeCondition, Field: RuleFieldTotalSpent, Op: RuleOpGte, Value: 30000}
	lowFrequency := SegmentRule{Type: RuleTypeCondition, Field: RuleFieldFrequencyScore, Op: RuleOpLte, Value: 2}
	isVip := SegmentRule{Type: RuleTypeCondition, Field: RuleFieldLifecycleStage, Op: RuleOpEq, Value: "vip"}

	and := SegmentRule{Type: RuleTypeAnd, Children: []SegmentRule{highValue, isVip}}
	if !and.Matches(snap) {
		t.Error("and 全部命中时应为 true")
	}

	andMiss := SegmentRule{Type: RuleTypeAnd, Children: []SegmentRule{highValue, lowFrequency}}
	if andMiss.Matches(snap) {
		t.Error("and 任一不命中时应为 false")
	}

	or := SegmentRule{Type: RuleTypeOr, Children: []SegmentRule{lowFrequency, isVip}}
	if !or.Matches(snap) {
		t.Error("or 任一命中时应为 true")
	}

	orMiss := SegmentRule{Type: RuleTypeOr, Children: []SegmentRule{lowFrequency}}
	if orMiss.Matches(snap) {
		t.Error("or 全部不命中时应为 false")
	}

	// 嵌套规则
	nested := SegmentRule{Type: RuleTypeAnd, Children: []SegmentRule{
		highValue,
		{Type: RuleTypeOr, Children: []SegmentRule{lowFrequency, isVip}},
	}}
	if !nested.Matches(snap) {
		t.Error("嵌套规则应命中")
	}
}

func TestRuleMalformedNeverMatches(t *testing.T) {
	snap := sampleSnapshot()

	tests := []struct {
		name string
		rule *SegmentRule
	}{
		{"nil规则", nil},
		{"未知节点类型", &SegmentRule{Type: "xor"}},
		{"空类型", &SegmentRule{}},
		{"未知字段", &SegmentRule{Type: RuleTypeCondition, Field: "unknownField", Op: RuleOpGte, Value: 1}},
		{"未知操作符", &SegmentRule{Type: RuleTypeCondition, Field: RuleFieldTotalRfmScore, Op: "like", Value: 1}},
		{"值类型错误", &SegmentRule{Type: RuleTypeCondition, Field: RuleFieldTotalRfmScore, Op: RuleOpGte, Value: "abc"}},
		{"in值不是数组", &SegmentRule{Type: RuleTypeCondition, Field: RuleFieldRecencyScore, Op: RuleOpIn, Value: 4}},
		{"阶段字段gt不支持", &SegmentRule{Type: RuleTypeCondition, Field: RuleFieldLifecycleStage, Op: RuleOpGt, Value: "vip"}},
		{"空and", &SegmentRule{Type: RuleTypeAnd}},
		{"空or", &SegmentRule{Type: RuleTypeOr}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.rule.Matches(snap) {
				t.Error("畸形规则不应命中")
			}
		})
	}
}
