package service

import (
	"sort"
	"testing"

	"github.com/BerniceZTT/crm_marketing/models"
)

func autoAssignment(customerID string) models.CustomerSegmentAssignment {
	return models.CustomerSegmentAssignment{CustomerID: customerID, IsAutoAssigned: true}
}

func manualAssignment(customerID string) models.CustomerSegmentAssignment {
	return models.CustomerSegmentAssignment{CustomerID: customerID, IsAutoAssigned: false}
}

func TestDiffAssignments(t *testing.T) {
	matched := map[string]bool{"c1": true, "c2": true, "c3": true}
	existing := []models.CustomerSegmentAssignment{
		autoAssignment("c1"), // 仍命中，保留
		autoAssignment("c4"), // 不再命中，移除
	}

	diff := DiffAssignments(matched, existing)

	sort.Strings(diff.ToInsert)
	if len(diff.ToInsert) != 2 || diff.ToInsert[0] != "c2" || diff.ToInsert[1] != "c3" {
		t.Errorf("ToInsert = %v, want [c2 c3]", diff.ToInsert)
	}
	if len(diff.ToRemove) != 1 || diff.ToRemove[0] != "c4" {
		t.Errorf("ToRemove = %v, want [c4]", diff.ToRemove)
	}
}

func TestDiffAssignmentsManualUntouched(t *testing.T) {
	// 手动归属的客户不再命中规则也不能被自动调和移除
	matched := map[string]bool{"c1": true}
	existing := []models.CustomerSegmentAssignment{
		manualAssignment("c2"),
		autoAssignment("c3"),
	}

	diff := DiffAssignments(matched, existing)

	if len(diff.ToRemove) != 1 || diff.ToRemove[0] != "c3" {
		t.Errorf("ToRemove = %v, want [c3]", diff.ToRemove)
	}
	for _, id := range diff.ToInsert {
		if id == "c2" {
			t.Error("已手动归属的客户不应重复插入")
		}
	}
}

func TestDiffAssignmentsManualNotReinserted(t *testing.T) {
	// 命中规则但已有手动归属记录的客户不重复插入
	matched := map[string]bool{"c1": true}
	existing := []models.CustomerSegmentAssignment{manualAssignment("c1")}

	diff := DiffAssignments(matched, existing)

	if len(diff.ToInsert) != 0 || len(diff.ToRemove) != 0 {
		t.Errorf("diff = %+v, want 空", diff)
	}
}

func TestDiffAssignmentsIdempotent(t *testing.T) {
	matched := map[string]bool{"c1": true, "c2": true}
	existing := []models.CustomerSegmentAssignment{
		autoAssignment("c1"),
		autoAssignment("c2"),
	}

	// 数据与规则都不变时重复执行差为空
	for i := 0; i < 3; i++ {
		diff := DiffAssignments(matched, existing)
		if len(diff.ToInsert) != 0 || len(diff.ToRemove) != 0 {
			t.Fatalf("第%d次执行 diff = %+v, want 空", i+1, diff)
		}
	}
}

func TestDiffAssignmentsEmptyInputs(t *testing.T) {
	diff := DiffAssignments(nil, nil)
	if len(diff.ToInsert) != 0 || len(diff.ToRemove) != 0 {
		t.Errorf("空输入 diff = %+v, want 空", diff)
	}

	// 规则不再命中任何客户时所有自动归属都被移除
	diff = DiffAssignments(map[string]bool{}, []models.CustomerSegmentAssignment{
		autoAssignment("c1"),
		manualAssignment("c2"),
	})
	if len(diff.ToRemove) != 1 || diff.ToRemove[0] != "c1" {
		t.Errorf("ToRemove = %v, want [c1]", diff.ToRemove)
	}
}
