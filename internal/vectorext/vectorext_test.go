package vectorext

import (
	"testing"

	"github.com/dreamware/ftindex/internal/intern"
)

func TestExternalizeDedupAndMaterialize(t *testing.T) {
	e := New(intern.New(nil), 3)

	r1 := e.Externalize([]float32{1, 2, 3})
	r2 := e.Externalize([]float32{1, 2, 3})

	if e.Count() != 1 {
		t.Fatalf("Count = %d, want 1 (deduplicated)", e.Count())
	}

	got := Materialize(r1.Bytes(), 3)
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("Materialize = %v", got)
	}

	e.Release(r1)
	if e.Count() != 1 {
		t.Fatalf("expected entry to survive first release, Count = %d", e.Count())
	}
	e.Release(r2)
	if e.Count() != 0 {
		t.Fatalf("expected entry erased after last release, Count = %d", e.Count())
	}
}
