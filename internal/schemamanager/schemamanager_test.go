package schemamanager

import (
	"testing"

	"github.com/dreamware/ftindex/internal/enginerr"
	"github.com/dreamware/ftindex/internal/hostcap"
	"github.com/dreamware/ftindex/internal/intern"
	"github.com/dreamware/ftindex/internal/mempool"
	"github.com/dreamware/ftindex/internal/schema"
)

func newSchema(t *testing.T, name string, db int) *schema.Schema {
	t.Helper()
	reader := hostcap.NewMemoryKeyReader(db)
	s, err := schema.New(name, db, nil, reader, intern.New(nil), mempool.NewPool())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRegisterLookupDrop(t *testing.T) {
	m := New()
	s := newSchema(t, "idx1", 0)

	if err := m.Register(s); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(s); !enginerr.Is(err, enginerr.AlreadyExists) {
		t.Fatalf("expected AlreadyExists on double-register, got %v", err)
	}

	got, err := m.Lookup(0, "idx1")
	if err != nil || got != s {
		t.Fatalf("Lookup = %v, %v", got, err)
	}

	if err := m.Drop(0, "idx1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Lookup(0, "idx1"); !enginerr.Is(err, enginerr.NotFound) {
		t.Fatalf("expected NotFound after drop, got %v", err)
	}
}

func TestSwapDB(t *testing.T) {
	m := New()
	s0 := newSchema(t, "a", 0)
	s1 := newSchema(t, "b", 1)
	m.Register(s0)
	m.Register(s1)

	m.SwapDB(0, 1)

	if _, err := m.Lookup(1, "a"); err != nil {
		t.Fatalf("expected 'a' now under db 1: %v", err)
	}
	if _, err := m.Lookup(0, "b"); err != nil {
		t.Fatalf("expected 'b' now under db 0: %v", err)
	}
}

func TestListDB(t *testing.T) {
	m := New()
	m.Register(newSchema(t, "a", 0))
	m.Register(newSchema(t, "b", 0))
	m.Register(newSchema(t, "c", 1))

	if got := len(m.ListDB(0)); got != 2 {
		t.Fatalf("ListDB(0) = %d, want 2", got)
	}
	if got := m.Count(); got != 3 {
		t.Fatalf("Count = %d, want 3", got)
	}
}
