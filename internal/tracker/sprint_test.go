package tracker

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
)

func intPtr(v int) *int { return &v }

func TestComputeSprintStats(t *testing.T) {
	tickets := []store.Ticket{
		{Status: "done", Priority: "high", StoryPoints: intPtr(5)},
		{Status: "todo", Priority: "high", StoryPoints: intPtr(3)},
		{Status: "todo", Priority: "low"},
	}
	got := ComputeSprintStats(tickets)
	want := SprintStats{
		Total:       3,
		ByStatus:    map[string]int{"backlog": 0, "todo": 2, "in_progress": 0, "review": 0, "done": 1},
		ByPriority:  map[string]int{"low": 1, "medium": 0, "high": 2, "critical": 0},
		StoryPoints: 8,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ComputeSprintStats() mismatch (-want +got):\n%s", diff)
	}
}

func TestVelocityEmpty(t *testing.T) {
	assert.Equal(t, 0, Velocity(nil))
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityRank("low"), PriorityRank("critical"))
	assert.Equal(t, -1, PriorityRank("urgent"))
}
