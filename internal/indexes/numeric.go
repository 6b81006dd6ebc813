package indexes

import (
	"sort"
	"strconv"
	"sync"

	"github.com/dreamware/ftindex/internal/enginerr"
)

// numericEntry pairs a document with its indexed numeric value, kept in
// a slice sorted by Value so range queries binary-search instead of
// scanning, the same "sorted slice + binary search" shape a
// lexicographic range scan over sorted keys would use.
type numericEntry struct {
	Value float64
	ID    DocID
}

// NumericIndex indexes documents by a single float64-valued attribute
// and answers range queries ([min, max], both bounds inclusive) via binary
// search over a sorted slice.
type NumericIndex struct {
	entries []numericEntry
	byDoc   map[DocID]float64
	mu      sync.RWMutex
	sorted  bool
}

// NewNumericIndex returns an empty numeric index.
func NewNumericIndex() *NumericIndex {
	return &NumericIndex{byDoc: make(map[DocID]float64)}
}

// Add implements Index. value must parse as a float64.
func (n *NumericIndex) Add(docID DocID, value []byte) error {
	f, err := strconv.ParseFloat(string(value), 64)
	if err != nil {
		return enginerr.Wrap(enginerr.InvalidArgument, "numeric index: not a number", err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, numericEntry{Value: f, ID: docID})
	n.byDoc[docID] = f
	n.sorted = false
	return nil
}

// Remove implements Index.
func (n *NumericIndex) Remove(docID DocID, value []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, e := range n.entries {
		if e.ID == docID {
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
			break
		}
	}
	delete(n.byDoc, docID)
	return nil
}

// DocCount implements Index.
func (n *NumericIndex) DocCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.byDoc)
}

// MemoryBytes implements Index.
func (n *NumericIndex) MemoryBytes() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return int64(len(n.entries)) * 16 // float64 + DocID, approximated
}

func (n *NumericIndex) ensureSorted() {
	if n.sorted {
		return
	}
	sort.Slice(n.entries, func(i, j int) bool { return n.entries[i].Value < n.entries[j].Value })
	n.sorted = true
}

// Range returns a Fetcher over documents whose indexed value lies within
// [min, max]. Both bounds are inclusive, matching spec.md's default
// numeric range semantics; exclusive bounds are the caller's
// responsibility to narrow with an epsilon, as the original does.
func (n *NumericIndex) Range(min, max float64) Fetcher {
	n.mu.Lock()
	n.ensureSorted()
	lo := sort.Search(len(n.entries), func(i int) bool { return n.entries[i].Value >= min })
	hi := sort.Search(len(n.entries), func(i int) bool { return n.entries[i].Value > max })
	ids := make([]DocID, 0, hi-lo)
	for _, e := range n.entries[lo:hi] {
		ids = append(ids, e.ID)
	}
	n.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return NewSliceFetcher(ids)
}
