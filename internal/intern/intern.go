// Package intern implements InternStore: a content-addressed, refcounted
// string pool with per-category memory accounting, as specified in
// spec.md §4.1.
//
// Grounded on original_source/src/utils/string_interning.{cc,h}: pointer
// equality iff content equality for same-category strings. Intern runs
// entirely under the store mutex; Release decrements atomically and
// takes the mutex only for the 1->0 erase. The per-category accounting and the pool-wide mutex follow
// the same "small struct + RWMutex + copy-out accessors" shape the
// teacher uses for coordinator.ShardRegistry.
package intern

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/dreamware/ftindex/internal/mempool"
)

// Category tags an interned string's purpose, matching spec.md's
// {VECTOR, TAG, KEY, OTHER} taxonomy. Categories get independent memory
// counters so callers can answer "how many bytes are tag values using".
type Category int

const (
	CategoryKey Category = iota
	CategoryTag
	CategoryVector
	CategoryOther
)

func (c Category) String() string {
	switch c {
	case CategoryKey:
		return "key"
	case CategoryTag:
		return "tag"
	case CategoryVector:
		return "vector"
	default:
		return "other"
	}
}

// Allocator lets large or uniformly-sized payloads (vectors) be stored
// out-of-line instead of inline with the entry header. A nil Allocator
// means "use inline storage" (a plain Go byte slice owned by the entry).
type Allocator interface {
	Alloc(n int) []byte
	Free(b []byte)
}

// Handle is the unique, refcounted reference to an interned byte string.
// Handles compare equal (via Equal) based on underlying bytes, not
// pointer identity, so a handle obtained elsewhere (e.g. decoded from
// RDB) can still look up the live entry. Within a single Store, two
// Intern calls for the same (category, bytes) pair return handles backed
// by the identical *entry, so pointer comparison of the backing entry is
// a valid fast path for same-process callers.
type Handle struct {
	e *entry
}

// Bytes returns the interned content. The returned slice must not be
// mutated by the caller.
func (h Handle) Bytes() []byte {
	if h.e == nil {
		return nil
	}
	return h.e.data
}

// Category returns the handle's category tag.
func (h Handle) Category() Category {
	if h.e == nil {
		return CategoryOther
	}
	return h.e.category
}

// Valid reports whether the handle refers to a live entry.
func (h Handle) Valid() bool { return h.e != nil }

// Equal compares two handles by content, not pointer identity, so a
// foreign handle (e.g. freshly decoded bytes wrapped ad hoc) can be
// compared against one obtained from Store.Intern.
func (h Handle) Equal(o Handle) bool {
	if h.e == o.e {
		return true
	}
	if h.e == nil || o.e == nil {
		return false
	}
	if h.e.category != o.e.category {
		return false
	}
	return string(h.e.data) == string(o.e.data)
}

type entry struct {
	data     []byte
	alloc    Allocator
	category Category
	refcount int64
	// deleteMarked is the lazy-vacuum overlay: ANN indexes mark an entry
	// deleted without immediately removing it, so that concurrent graph
	// traversal doesn't observe a torn free. markedBytes/markedCount on
	// the owning Store track the overlay totals independently.
	deleteMarked int32
}

type internKey struct {
	category Category
	hash     uint64
}

// Counters is a point-in-time snapshot of a category's accounting.
type Counters struct {
	ObjectCount int64
	MemoryBytes int64
}

// Store is the process-wide (or per-test, via New) intern pool.
type Store struct {
	mu      sync.Mutex
	entries map[internKey][]*entry // hash bucket, collision list checked by content
	pool    *mempool.Pool

	perCategoryCount map[Category]*int64
	perCategoryBytes map[Category]*int64

	markedBytes int64
	markedCount int64
}

// New constructs an empty Store backed by pool for global byte accounting.
// Passing a fresh mempool.Pool isolates a test's accounting from any other
// Store instance, following this codebase's preference for per-test isolated
// state (cluster.NewLivenessMonitor, cluster.NewSlotRegistry) over ambient singletons.
func New(pool *mempool.Pool) *Store {
	if pool == nil {
		pool = mempool.NewPool()
	}
	s := &Store{
		entries:          make(map[internKey][]*entry),
		pool:             pool,
		perCategoryCount: make(map[Category]*int64),
		perCategoryBytes: make(map[Category]*int64),
	}
	for _, c := range []Category{CategoryKey, CategoryTag, CategoryVector, CategoryOther} {
		var zc, zb int64
		s.perCategoryCount[c] = &zc
		s.perCategoryBytes[c] = &zb
	}
	return s
}

func bucketKey(category Category, data []byte) internKey {
	return internKey{category: category, hash: xxhash.Sum64(data)}
}

// Intern returns the unique handle for bytes under category, creating a
// new entry (and accounting its bytes to the pool) on first insertion.
// Subsequent calls for equal bytes increment the existing entry's
// refcount under the store mutex and return the same handle without
// re-counting content, matching the invariant that pool size counts each
// unique byte string once.
//
// If alloc is non-nil, a newly created entry's storage is obtained from
// alloc.Alloc instead of a plain Go allocation — used for vector payloads
// that the host wants to own out-of-line.
func (s *Store) Intern(data []byte, alloc Allocator, category Category) Handle {
	key := bucketKey(category, data)

	// Look for an existing entry and bump its refcount. The lookup runs
	// under s.mu, which also serializes it against Release's erase of a
	// 1->0 entry.
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries[key] {
		if e.category == category && string(e.data) == string(data) {
			atomic.AddInt64(&e.refcount, 1)
			return Handle{e: e}
		}
	}

	// First insertion: allocate storage, account bytes, and insert.
	var stored []byte
	if alloc != nil {
		stored = alloc.Alloc(len(data))
		copy(stored, data)
	} else {
		stored = append([]byte(nil), data...)
	}

	e := &entry{data: stored, alloc: alloc, category: category, refcount: 1}
	s.entries[key] = append(s.entries[key], e)

	s.pool.Add(int64(len(stored)))
	atomic.AddInt64(s.perCategoryCount[category], 1)
	atomic.AddInt64(s.perCategoryBytes[category], int64(len(stored)))

	return Handle{e: e}
}

// Release decrements h's refcount. The 1->0 transition re-verifies the
// refcount under the pool mutex (guarding against a racing Intern that
// bumped it back up between the atomic decrement and the lock) and, if
// still zero, erases the entry and frees its memory.
func (s *Store) Release(h Handle) {
	if h.e == nil {
		return
	}
	e := h.e
	if atomic.AddInt64(&e.refcount, -1) > 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if atomic.LoadInt64(&e.refcount) > 0 {
		// A concurrent Intern re-referenced it after our decrement;
		// leave the entry in place.
		return
	}

	key := bucketKey(e.category, e.data)
	bucket := s.entries[key]
	for i, cand := range bucket {
		if cand == e {
			bucket[i] = bucket[len(bucket)-1]
			s.entries[key] = bucket[:len(bucket)-1]
			break
		}
	}
	if len(s.entries[key]) == 0 {
		delete(s.entries, key)
	}

	s.pool.Add(-int64(len(e.data)))
	atomic.AddInt64(s.perCategoryCount[e.category], -1)
	atomic.AddInt64(s.perCategoryBytes[e.category], -int64(len(e.data)))

	if e.alloc != nil {
		e.alloc.Free(e.data)
	}
	if atomic.LoadInt32(&e.deleteMarked) != 0 {
		atomic.AddInt64(&s.markedCount, -1)
		atomic.AddInt64(&s.markedBytes, -int64(len(e.data)))
	}
}

// SetDeleteMark toggles the logical "marked-deleted" overlay for the
// entry matching (category, bytes), used by ANN indexes performing lazy
// vacuuming. Returns false if no such entry is currently interned. The
// overlay's byte/count totals are tracked independently of the live
// refcount so a caller can answer "how much of what's still referenced is
// actually garbage" without scanning every entry.
func (s *Store) SetDeleteMark(data []byte, category Category, mark bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bucketKey(category, data)
	for _, e := range s.entries[key] {
		if e.category == category && string(e.data) == string(data) {
			wasMarked := atomic.LoadInt32(&e.deleteMarked) != 0
			if wasMarked == mark {
				return true
			}
			if mark {
				atomic.StoreInt32(&e.deleteMarked, 1)
				atomic.AddInt64(&s.markedCount, 1)
				atomic.AddInt64(&s.markedBytes, int64(len(e.data)))
			} else {
				atomic.StoreInt32(&e.deleteMarked, 0)
				atomic.AddInt64(&s.markedCount, -1)
				atomic.AddInt64(&s.markedBytes, -int64(len(e.data)))
			}
			return true
		}
	}
	return false
}

// GetCounters returns a snapshot of the given category's accounting.
func (s *Store) GetCounters(category Category) Counters {
	return Counters{
		ObjectCount: atomic.LoadInt64(s.perCategoryCount[category]),
		MemoryBytes: atomic.LoadInt64(s.perCategoryBytes[category]),
	}
}

// GetMarkedDeletedCounters returns the lazy-vacuum overlay's totals.
func (s *Store) GetMarkedDeletedCounters() Counters {
	return Counters{
		ObjectCount: atomic.LoadInt64(&s.markedCount),
		MemoryBytes: atomic.LoadInt64(&s.markedBytes),
	}
}

// Pool exposes the backing mempool.Pool for composition with an enclosing
// mempool.Scope (e.g. a per-query or per-schema accounting region).
func (s *Store) Pool() *mempool.Pool { return s.pool }
