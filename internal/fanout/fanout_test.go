package fanout

import (
	"testing"

	"github.com/dreamware/ftindex/internal/wire"
)

func TestSelectTargets(t *testing.T) {
	candidates := []Target{
		{NodeID: "a", SlotID: 0, Primary: true},
		{NodeID: "b", SlotID: 0, Primary: false},
		{NodeID: "c", SlotID: 1, Primary: true},
	}
	if got := SelectTargets(candidates, wire.TargetAll); len(got) != 3 {
		t.Fatalf("TargetAll = %d, want 3", len(got))
	}
	if got := SelectTargets(candidates, wire.TargetPrimary); len(got) != 2 {
		t.Fatalf("TargetPrimary = %d, want 2", len(got))
	}
}

func TestCheckConsistency(t *testing.T) {
	if CheckConsistency([]uint64{1, 1, 1}) != Consistent {
		t.Fatalf("expected Consistent")
	}
	if CheckConsistency([]uint64{1, 2}) != Inconsistent {
		t.Fatalf("expected Inconsistent")
	}
	if CheckConsistency(nil) != Indeterminate {
		t.Fatalf("expected Indeterminate")
	}
}

func TestMergeRanksAndTruncates(t *testing.T) {
	results := []SearchResult{
		{Target: Target{SlotID: 0}, Response: wire.SearchIndexPartitionResponse{
			Status: wire.StatusOK, Keys: []string{"a", "b"}, Scores: []float64{0.5, 0.9},
		}},
		{Target: Target{SlotID: 1}, Response: wire.SearchIndexPartitionResponse{
			Status: wire.StatusOK, Keys: []string{"c"}, Scores: []float64{0.1},
		}},
		{Target: Target{SlotID: 2}, Response: wire.SearchIndexPartitionResponse{
			Status: wire.StatusCommunicationError,
		}},
	}

	merged := Merge(results, 2)
	if len(merged.Keys) != 2 || merged.Keys[0] != "c" || merged.Keys[1] != "a" {
		t.Fatalf("got %+v", merged.Keys)
	}
	if len(merged.Errors) != 1 || merged.Errors[2] != wire.StatusCommunicationError {
		t.Fatalf("got errors %+v", merged.Errors)
	}
}
