package intern

import "testing"

func TestInternDedupAndRefcount(t *testing.T) {
	s := New(nil)

	h1 := s.Intern([]byte("hello"), nil, CategoryTag)
	h2 := s.Intern([]byte("hello"), nil, CategoryTag)

	if !h1.Equal(h2) {
		t.Fatalf("expected equal handles for identical content")
	}
	if h1.e != h2.e {
		t.Fatalf("expected identical backing entry for same-category dup intern")
	}

	c := s.GetCounters(CategoryTag)
	if c.ObjectCount != 1 || c.MemoryBytes != 5 {
		t.Fatalf("want 1 object / 5 bytes, got %+v", c)
	}
	if s.Pool().Bytes() != 5 {
		t.Fatalf("pool bytes = %d, want 5", s.Pool().Bytes())
	}
}

func TestInternDifferentCategoriesDoNotShareEntries(t *testing.T) {
	s := New(nil)
	h1 := s.Intern([]byte("x"), nil, CategoryTag)
	h2 := s.Intern([]byte("x"), nil, CategoryKey)
	if h1.Equal(h2) {
		t.Fatalf("handles of different categories must not be equal")
	}
	if s.Pool().Bytes() != 2 {
		t.Fatalf("pool bytes = %d, want 2 (two distinct entries)", s.Pool().Bytes())
	}
}

func TestReleaseErasesOnLastReference(t *testing.T) {
	s := New(nil)
	h1 := s.Intern([]byte("gone"), nil, CategoryOther)
	h2 := s.Intern([]byte("gone"), nil, CategoryOther)

	s.Release(h1)
	if s.Pool().Bytes() != 4 {
		t.Fatalf("entry should survive first release while second ref remains")
	}

	s.Release(h2)
	if s.Pool().Bytes() != 0 {
		t.Fatalf("pool bytes = %d, want 0 after last release", s.Pool().Bytes())
	}
	if c := s.GetCounters(CategoryOther); c.ObjectCount != 0 {
		t.Fatalf("expected 0 objects after erase, got %d", c.ObjectCount)
	}
}

func TestSetDeleteMarkOverlay(t *testing.T) {
	s := New(nil)
	s.Intern([]byte("v"), nil, CategoryVector)

	if ok := s.SetDeleteMark([]byte("v"), CategoryVector, true); !ok {
		t.Fatalf("expected mark to find the entry")
	}
	if c := s.GetMarkedDeletedCounters(); c.ObjectCount != 1 || c.MemoryBytes != 1 {
		t.Fatalf("want 1/1 marked, got %+v", c)
	}

	if ok := s.SetDeleteMark([]byte("v"), CategoryVector, false); !ok {
		t.Fatalf("expected unmark to find the entry")
	}
	if c := s.GetMarkedDeletedCounters(); c.ObjectCount != 0 {
		t.Fatalf("want 0 marked after unmark, got %+v", c)
	}
}

func TestSetDeleteMarkMissingEntry(t *testing.T) {
	s := New(nil)
	if ok := s.SetDeleteMark([]byte("nope"), CategoryTag, true); ok {
		t.Fatalf("expected mark on absent entry to report false")
	}
}
