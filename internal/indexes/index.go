// Package indexes implements the concrete index types an IndexSchema
// attribute can be backed by (numeric, tag, text, vector), plus
// EntriesFetcher: the two-level iterator composition spec.md §4.2
// describes for AND/OR/NOT query evaluation.
//
// Grounded on original_source/src/indexes/{text.cc, text_index.*,
// negate_fetcher.*, universal_set_fetcher.*} for the fetcher composition
// shape, and on the "RWMutex-guarded map + copy-out accessor" style
// single-index types elsewhere in this codebase follow. Posting sets
// use github.com/RoaringBitmap/roaring/v2 (grounded
// on AKJUS-bsc-erigon's go.mod) rather than map[string]struct{}, since
// compressed bitmap set algebra is exactly what tag/text posting lists
// need for AND/OR/NOT.
package indexes

import "context"

// DocID is the engine-internal integer handle for a document, assigned
// by IndexSchema and stable for the document's lifetime in the index.
// Every concrete index type stores postings keyed by DocID rather than
// by the document's external key, so that set algebra across index
// types never needs to re-resolve keys.
type DocID uint32

// Index is the capability every attribute-backed index type implements:
// add/remove a document's value, and produce an EntriesFetcher over the
// documents matching a predicate specific to that index's value type.
type Index interface {
	// Add indexes docID under value. It does not remove postings left
	// from an earlier value of docID; callers call Remove first when
	// replacing.
	Add(docID DocID, value []byte) error
	// Remove un-indexes docID for the given value.
	Remove(docID DocID, value []byte) error
	// DocCount returns the number of distinct documents currently
	// indexed.
	DocCount() int
	// MemoryBytes returns the index's current estimated byte footprint.
	MemoryBytes() int64
}

// Fetcher produces document IDs matching some predicate, in ascending
// DocID order. Every concrete index type's query methods return a
// Fetcher, and the AND/OR/NOT combinators below compose Fetchers into
// Fetchers, so a full query plan is itself just a Fetcher.
type Fetcher interface {
	// Next returns the next matching DocID in ascending order, or
	// ok=false when exhausted.
	Next() (id DocID, ok bool)
	// Seek advances to the first DocID >= target, returning it if found.
	// Used by And to skip non-matching ranges in the cheapest operand.
	Seek(target DocID) (id DocID, ok bool)
}

// sliceFetcher adapts a pre-materialized, ascending-sorted DocID slice
// to Fetcher; every concrete index type's leaf queries return one of
// these, found via a sorted posting list or by iterating a roaring
// bitmap into a slice once at query time.
type sliceFetcher struct {
	ids []DocID
	pos int
}

// NewSliceFetcher wraps an already-sorted, deduplicated slice of DocIDs.
func NewSliceFetcher(ids []DocID) Fetcher {
	return &sliceFetcher{ids: ids}
}

func (f *sliceFetcher) Next() (DocID, bool) {
	if f.pos >= len(f.ids) {
		return 0, false
	}
	id := f.ids[f.pos]
	f.pos++
	return id, true
}

func (f *sliceFetcher) Seek(target DocID) (DocID, bool) {
	for f.pos < len(f.ids) && f.ids[f.pos] < target {
		f.pos++
	}
	return f.Next()
}

// Collect drains a Fetcher into a slice, primarily for tests and for the
// final materialization step at the top of a query plan.
func Collect(f Fetcher) []DocID {
	var out []DocID
	for {
		id, ok := f.Next()
		if !ok {
			return out
		}
		out = append(out, id)
	}
}

// And returns a Fetcher over the intersection of operands, implemented
// by a merge using Seek so operands don't need to be re-scanned from the
// start when one leads the other by a wide margin.
func And(operands ...Fetcher) Fetcher {
	if len(operands) == 0 {
		return NewSliceFetcher(nil)
	}
	return &andFetcher{operands: operands}
}

type andFetcher struct {
	operands []Fetcher
	exhausted bool
}

func (f *andFetcher) Next() (DocID, bool) {
	if f.exhausted {
		return 0, false
	}
	cur, ok := f.operands[0].Next()
	if !ok {
		f.exhausted = true
		return 0, false
	}
	for {
		advanced := false
		for _, op := range f.operands[1:] {
			id, ok := op.Seek(cur)
			if !ok {
				f.exhausted = true
				return 0, false
			}
			if id != cur {
				cur = id
				advanced = true
			}
		}
		if !advanced {
			return cur, true
		}
		next, ok := f.operands[0].Seek(cur)
		if !ok {
			f.exhausted = true
			return 0, false
		}
		cur = next
	}
}

func (f *andFetcher) Seek(target DocID) (DocID, bool) {
	for {
		id, ok := f.Next()
		if !ok {
			return 0, false
		}
		if id >= target {
			return id, true
		}
	}
}

// Or returns a Fetcher over the union of operands, deduplicated, in
// ascending order — a k-way merge over already-sorted operands.
func Or(operands ...Fetcher) Fetcher {
	heads := make([]*orHead, 0, len(operands))
	for _, op := range operands {
		if id, ok := op.Next(); ok {
			heads = append(heads, &orHead{f: op, cur: id})
		}
	}
	return &orFetcher{heads: heads}
}

type orHead struct {
	f   Fetcher
	cur DocID
}

type orFetcher struct {
	heads []*orHead
	last  DocID
	began bool
}

func (f *orFetcher) Next() (DocID, bool) {
	for {
		if len(f.heads) == 0 {
			return 0, false
		}
		minIdx := 0
		for i, h := range f.heads {
			if h.cur < f.heads[minIdx].cur {
				minIdx = i
			}
		}
		id := f.heads[minIdx].cur
		if next, ok := f.heads[minIdx].f.Next(); ok {
			f.heads[minIdx].cur = next
		} else {
			f.heads = append(f.heads[:minIdx], f.heads[minIdx+1:]...)
		}
		if f.began && id == f.last {
			continue // dedup across operands
		}
		f.began = true
		f.last = id
		return id, true
	}
}

func (f *orFetcher) Seek(target DocID) (DocID, bool) {
	for {
		id, ok := f.Next()
		if !ok {
			return 0, false
		}
		if id >= target {
			return id, true
		}
	}
}

// Not returns a Fetcher over universe minus excluded, per
// original_source/src/indexes/negate_fetcher.*'s approach of expressing
// negation as set difference against a caller-supplied universal set
// (typically "every DocID currently known to the owning IndexSchema")
// rather than trying to enumerate "everything that doesn't match" in the
// abstract.
func Not(universe, excluded Fetcher) Fetcher {
	var keep []DocID
	ex := Collect(excluded)
	exSet := make(map[DocID]struct{}, len(ex))
	for _, id := range ex {
		exSet[id] = struct{}{}
	}
	for {
		id, ok := universe.Next()
		if !ok {
			break
		}
		if _, excluded := exSet[id]; !excluded {
			keep = append(keep, id)
		}
	}
	return NewSliceFetcher(keep)
}

// QueryPlan is the minimal execution context a composed Fetcher runs
// under; concrete index types don't need it today but accept it in
// query-producing methods so a future deadline/cancellation hook has
// somewhere to attach without changing every signature again.
type QueryPlan struct {
	Ctx context.Context
}
