package indexes

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestAndOrNot(t *testing.T) {
	a := NewSliceFetcher([]DocID{1, 2, 3, 4})
	b := NewSliceFetcher([]DocID{2, 4, 6})

	if got := Collect(And(a, b)); !equalIDs(got, []DocID{2, 4}) {
		t.Fatalf("And = %v", got)
	}

	a2 := NewSliceFetcher([]DocID{1, 2, 3})
	b2 := NewSliceFetcher([]DocID{2, 4})
	if got := Collect(Or(a2, b2)); !equalIDs(got, []DocID{1, 2, 3, 4}) {
		t.Fatalf("Or = %v", got)
	}

	universe := NewSliceFetcher([]DocID{1, 2, 3, 4, 5})
	excl := NewSliceFetcher([]DocID{2, 4})
	if got := Collect(Not(universe, excl)); !equalIDs(got, []DocID{1, 3, 5}) {
		t.Fatalf("Not = %v", got)
	}
}

func equalIDs(a, b []DocID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTagIndex(t *testing.T) {
	idx := NewTagIndex(",", false)
	idx.Add(1, []byte("Red,Blue"))
	idx.Add(2, []byte("blue"))
	idx.Add(3, []byte("green"))

	if got := Collect(idx.MatchTag("blue")); !equalIDs(got, []DocID{1, 2}) {
		t.Fatalf("MatchTag(blue) = %v", got)
	}
	if got := Collect(idx.MatchAny("red", "green")); !equalIDs(got, []DocID{1, 3}) {
		t.Fatalf("MatchAny = %v", got)
	}
	idx.Remove(1, []byte("Red,Blue"))
	if got := Collect(idx.MatchTag("red")); len(got) != 0 {
		t.Fatalf("expected empty after remove, got %v", got)
	}
}

func TestNumericIndexRange(t *testing.T) {
	idx := NewNumericIndex()
	idx.Add(1, []byte("10"))
	idx.Add(2, []byte("20"))
	idx.Add(3, []byte("30"))

	got := Collect(idx.Range(15, 30))
	if !equalIDs(got, []DocID{2, 3}) {
		t.Fatalf("Range(15,30) = %v", got)
	}
}

func TestTextIndexPrefixWildcardFuzzy(t *testing.T) {
	idx := NewTextIndex()
	idx.Add(1, []byte("hello world"))
	idx.Add(2, []byte("help desk"))
	idx.Add(3, []byte("goodbye"))

	if got := Collect(idx.Prefix("hel")); !equalIDs(got, []DocID{1, 2}) {
		t.Fatalf("Prefix(hel) = %v", got)
	}
	if got := Collect(idx.Wildcard("h*o")); !equalIDs(got, []DocID{1}) {
		t.Fatalf("Wildcard(h*o) = %v", got)
	}
	if got := Collect(idx.Fuzzy("hallo", 1)); !equalIDs(got, []DocID{1}) {
		t.Fatalf("Fuzzy(hallo,1) = %v", got)
	}
}

func encodeVec(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func TestVectorFlatTopK(t *testing.T) {
	idx := NewVectorFlat(2, MetricL2)
	idx.Add(1, encodeVec([]float32{0, 0}))
	idx.Add(2, encodeVec([]float32{1, 1}))
	idx.Add(3, encodeVec([]float32{5, 5}))

	got := idx.TopK([]float32{0, 0}, 2)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("TopK = %+v", got)
	}
}

func TestVectorHNSWAgreesWithFlatOnSmallSet(t *testing.T) {
	flat := NewVectorFlat(2, MetricL2)
	hnsw := NewVectorHNSW(2, MetricL2, 4, 16)

	pts := [][2]float32{{0, 0}, {1, 0}, {0, 1}, {5, 5}, {5, 6}, {-3, -3}}
	for i, p := range pts {
		v := encodeVec(p[:])
		flat.Add(DocID(i+1), v)
		hnsw.Add(DocID(i+1), v)
	}

	query := []float32{0.1, 0.1}
	wantTop := flat.TopK(query, 1)[0].ID
	gotTop := hnsw.TopK(query, 1)
	if len(gotTop) == 0 || gotTop[0].ID != wantTop {
		t.Fatalf("hnsw top-1 = %+v, want doc %v", gotTop, wantTop)
	}
}
