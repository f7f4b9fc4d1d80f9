package bills

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRepo_ListOverdueScopesByInstance(t *testing.T) {
	repo := NewMemoryRepo(
		Bill{ID: "1", InstanceID: "a", DueStatus: DueStatusOverdue},
		Bill{ID: "2", InstanceID: "b", DueStatus: DueStatusOverdue},
		Bill{ID: "3", InstanceID: "a", DueStatus: DueStatusDueSoon},
		Bill{ID: "4", InstanceID: "a"},
	)

	got, err := repo.ListOverdue(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "4" {
		t.Fatalf("unexpected bills: %+v", got)
	}
}

func TestMemoryRepo_AppendCallMarksIsAdditive(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	_ = repo.AppendCallMarks(context.Background(), []CallMark{{BillRef: "F-1", Status: CallMarkTriggered, OccurredAt: now}})
	_ = repo.AppendCallMarks(context.Background(), []CallMark{{BillRef: "F-1", Status: CallMarkTriggered, OccurredAt: now.Add(time.Hour)}})

	if n := len(repo.Marks()); n != 2 {
		t.Fatalf("expected 2 marks, got %d", n)
	}
}

func TestPhones_OrderedFollowsPrecedence(t *testing.T) {
	p := Phones{Mobile: "m", Landline: "l", Messaging: "w"}
	got := p.Ordered()
	if got[0] != "m" || got[1] != "l" || got[2] != "w" {
		t.Fatalf("unexpected order: %v", got)
	}
}
