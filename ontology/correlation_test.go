package ontology

import "testing"

func TestCorrelationTableCounts(t *testing.T) {
	table := NewCorrelationTable(CategoryEmotion, CategoryClipFunction)
	table.Increment("curiosity", "hook")
	table.Increment("curiosity", "hook")
	table.Increment("hope", "solution")

	if table.Total() != 3 {
		t.Errorf("Total() = %d, want 3", table.Total())
	}
	if table.Counts["curiosity|hook"] != 2 {
		t.Errorf("curiosity|hook = %d, want 2", table.Counts["curiosity|hook"])
	}
}

func TestCorrelationTop(t *testing.T) {
	table := NewCorrelationTable(CategoryShotType, CategoryClipFunction)
	table.Increment("close_up", "hook")
	table.Increment("close_up", "hook")
	table.Increment("wide", "solution")
	table.Increment("medium", "problem")

	top := table.Top(2)
	if len(top) != 2 {
		t.Fatalf("Top(2) returned %d rows", len(top))
	}
	if top[0].ValueA != "close_up" || top[0].ValueB != "hook" || top[0].Count != 2 {
		t.Errorf("top row = %+v, want close_up|hook count 2", top[0])
	}
	// Ties break by key order: medium|problem precedes wide|solution.
	if top[1].ValueA != "medium" {
		t.Errorf("second row = %+v, want medium|problem", top[1])
	}
}

func TestCorrelationTopZeroMeansAll(t *testing.T) {
	table := NewCorrelationTable(CategoryShotType, CategoryClipFunction)
	table.Increment("a", "b")
	table.Increment("c", "d")
	if got := len(table.Top(0)); got != 2 {
		t.Errorf("Top(0) returned %d rows, want all 2", got)
	}
}
