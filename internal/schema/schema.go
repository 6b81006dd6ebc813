// Package schema implements IndexSchema: the per-(db, name) runtime that
// owns a set of attribute indexes, ingests keyspace mutations, and runs
// the backfill scan that brings a newly created index up to date with
// keys that already existed, per spec.md §4.1.
//
// Grounded on a generic partition shape (ID/Primary/State/Stats, atomic
// op counters, RWMutex-guarded access) generalized from "shard of a KV
// store" to "schema over a keyspace", and on
// original_source/src/index_schema.{cc,h} for the mutation-queue,
// backfill, and swap-db semantics a plain key-value partition doesn't need.
package schema

import (
	"math"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dreamware/ftindex/internal/enginerr"
	"github.com/dreamware/ftindex/internal/fingerprint"
	"github.com/dreamware/ftindex/internal/hostcap"
	"github.com/dreamware/ftindex/internal/indexes"
	"github.com/dreamware/ftindex/internal/intern"
	"github.com/dreamware/ftindex/internal/mempool"
)

// AttributeType selects which concrete indexes.Index backs an attribute.
type AttributeType string

const (
	AttributeNumeric    AttributeType = "numeric"
	AttributeTag        AttributeType = "tag"
	AttributeText       AttributeType = "text"
	AttributeVectorFlat AttributeType = "vector_flat"
	AttributeVectorHNSW AttributeType = "vector_hnsw"
)

// AttributeSpec describes one indexed field of a document.
type AttributeSpec struct {
	Name           string
	FieldPath      string // key into the document's decoded field map
	Type           AttributeType
	TagSeparator   string
	VectorDim      int
	VectorMetric   indexes.DistanceMetric
	VectorM        int
	VectorEfSearch int
}

// State is IndexSchema's lifecycle stage, mirroring a typical partition's
// state machine but with the backfill stage spec.md §4.1 requires between
// creation and full service.
type State int

const (
	StateBackfilling State = iota
	StateActive
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateBackfilling:
		return "backfilling"
	case StateActive:
		return "active"
	default:
		return "deleted"
	}
}

// DocumentMutation is one pending change to a document's indexed fields,
// queued between ingestion (a keyspace notification or a backfill scan
// step) and application (which takes the write-side of the time-sliced
// mutex). Mutations for the same key collapse: a later mutation for an
// already-queued key replaces the earlier one rather than both applying
// in order, since only the final field values matter to the index.
type DocumentMutation struct {
	Key    string
	Fields map[string][]byte
	Delete bool
}

// Stats is a point-in-time snapshot of a schema's operational counters.
type Stats struct {
	Mutations      uint64
	Queries        uint64
	BackfillErrors uint64
}

// Info is IndexSchema's external summary, the shape FT.INFO and the
// info-fanout response (internal/wire.InfoIndexPartitionResponse) are
// built from.
type Info struct {
	Name            string
	State           State
	DocCount        int
	MemoryBytes     int64
	BackfillPercent float64
	PausedByOOM     bool
	Fingerprint     fingerprint.Fingerprint
}

// Schema is the runtime for a single index: attribute indexes, the
// keyspace-to-DocID mapping, the pending mutation queue, and backfill
// progress.
type Schema struct {
	name       string
	dbNum      int
	attrs      map[string]AttributeSpec
	indexes    map[string]indexes.Index
	attrOrder  []string // stable order for fingerprinting
	keyToDoc   map[string]indexes.DocID
	docToKey   map[indexes.DocID]string
	nextDocID  indexes.DocID
	keyMu      sync.Mutex // guards keyToDoc/docToKey/nextDocID

	mrmw *timeSlicedMutex

	queueMu sync.Mutex
	queue   map[string]DocumentMutation // keyed by document key, collapsing dups
	queueOrder []string

	state       atomic.Int32
	backfillPos string
	backfillPct atomic.Uint64 // bits of a float64 in [0,100]

	scannedKeys atomic.Int64 // scanned_key_count, monotonically non-decreasing
	dbSize      atomic.Int64 // monotonically raised, never lowered
	pausedByOOM atomic.Bool

	mutationCount uint64
	queryCount    uint64
	backfillErrs  uint64

	interner *intern.Store
	pool     *mempool.Pool
	reader   hostcap.KeyReader
	oom      hostcap.OOMSignal
}

// dbSizer lets a KeyReader optionally report its total keyspace size, so
// backfill progress can use a real db_size denominator instead of
// inferring one from scan cursors alone. hostcap.MemoryKeyReader
// implements it via Len.
type dbSizer interface {
	Len() int
}

// New constructs a Schema over attrs, backed by reader for backfill and
// interner/pool for string and byte accounting. The schema starts in
// StateBackfilling; callers drive RunBackfillStep until it returns
// done=true, at which point the schema transitions to StateActive.
func New(name string, dbNum int, attrs []AttributeSpec, reader hostcap.KeyReader, interner *intern.Store, pool *mempool.Pool) (*Schema, error) {
	s := &Schema{
		name:     name,
		dbNum:    dbNum,
		attrs:    make(map[string]AttributeSpec),
		indexes:  make(map[string]indexes.Index),
		keyToDoc: make(map[string]indexes.DocID),
		docToKey: make(map[indexes.DocID]string),
		mrmw:     newTimeSlicedMutex(64),
		queue:    make(map[string]DocumentMutation),
		interner: interner,
		pool:     pool,
		reader:   reader,
	}
	for _, a := range attrs {
		idx, err := newIndexFor(a)
		if err != nil {
			return nil, err
		}
		if _, exists := s.attrs[a.Name]; exists {
			return nil, enginerr.New(enginerr.AlreadyExists, "duplicate attribute name "+a.Name)
		}
		s.attrs[a.Name] = a
		s.indexes[a.Name] = idx
		s.attrOrder = append(s.attrOrder, a.Name)
	}
	sort.Strings(s.attrOrder)
	return s, nil
}

func newIndexFor(a AttributeSpec) (indexes.Index, error) {
	switch a.Type {
	case AttributeNumeric:
		return indexes.NewNumericIndex(), nil
	case AttributeTag:
		return indexes.NewTagIndex(a.TagSeparator, false), nil
	case AttributeText:
		return indexes.NewTextIndex(), nil
	case AttributeVectorFlat:
		return indexes.NewVectorFlat(a.VectorDim, a.VectorMetric), nil
	case AttributeVectorHNSW:
		return indexes.NewVectorHNSW(a.VectorDim, a.VectorMetric, a.VectorM, a.VectorEfSearch), nil
	default:
		return nil, enginerr.New(enginerr.InvalidArgument, "unknown attribute type "+string(a.Type))
	}
}

// Name returns the schema's index name.
func (s *Schema) Name() string { return s.name }

// DBNum returns the keyspace database number the schema is scoped to.
func (s *Schema) DBNum() int { return s.dbNum }

// State returns the schema's current lifecycle stage.
func (s *Schema) State() State { return State(s.state.Load()) }

func (s *Schema) setState(st State) { s.state.Store(int32(st)) }

// SetOOMSignal installs sig as the schema's host memory-pressure probe,
// polled once per RunBackfillStep call. With nil (the default) backfill
// never pauses for memory pressure. The standalone node binary installs
// its in-memory hostcap.MemoryOOMFlag on every schema it creates.
func (s *Schema) SetOOMSignal(sig hostcap.OOMSignal) {
	s.oom = sig
}

// PausedByOOM reports whether the most recent RunBackfillStep call was
// skipped because the host reported memory pressure.
func (s *Schema) PausedByOOM() bool { return s.pausedByOOM.Load() }

// Enqueue queues a document mutation, collapsing it with any
// already-queued mutation for the same key. Safe for concurrent callers
// (the keyspace notifier invokes this from its own goroutine).
func (s *Schema) Enqueue(m DocumentMutation) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if _, exists := s.queue[m.Key]; !exists {
		s.queueOrder = append(s.queueOrder, m.Key)
	}
	s.queue[m.Key] = m
}

// QueueDepth reports the number of distinct keys with a pending mutation.
func (s *Schema) QueueDepth() int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return len(s.queue)
}

// ApplyQueued drains up to maxBatch queued mutations, applying each
// under the schema's write lock. Returns the number applied. Intended to
// be called from a single ingestion goroutine per schema; concurrent
// callers would each see a disjoint prefix of the queue, which is safe
// but wastes the batching.
func (s *Schema) ApplyQueued(maxBatch int) int {
	s.queueMu.Lock()
	n := len(s.queueOrder)
	if maxBatch > 0 && maxBatch < n {
		n = maxBatch
	}
	keys := append([]string(nil), s.queueOrder[:n]...)
	s.queueOrder = s.queueOrder[n:]
	batch := make([]DocumentMutation, 0, n)
	for _, k := range keys {
		batch = append(batch, s.queue[k])
		delete(s.queue, k)
	}
	s.queueMu.Unlock()

	s.mrmw.Lock()
	defer s.mrmw.Unlock()
	for _, m := range batch {
		s.applyLocked(m)
	}
	return len(batch)
}

func (s *Schema) applyLocked(m DocumentMutation) {
	atomic.AddUint64(&s.mutationCount, 1)

	s.keyMu.Lock()
	id, existed := s.keyToDoc[m.Key]
	if !existed {
		if m.Delete {
			s.keyMu.Unlock()
			return
		}
		id = s.nextDocID
		s.nextDocID++
		s.keyToDoc[m.Key] = id
		s.docToKey[id] = m.Key
	}
	s.keyMu.Unlock()

	if m.Delete {
		for _, name := range s.attrOrder {
			_ = s.indexes[name].Remove(id, nil)
		}
		s.keyMu.Lock()
		delete(s.keyToDoc, m.Key)
		delete(s.docToKey, id)
		s.keyMu.Unlock()
		return
	}

	for _, name := range s.attrOrder {
		spec := s.attrs[name]
		val, ok := m.Fields[spec.FieldPath]
		if !ok {
			continue
		}
		if existed {
			_ = s.indexes[name].Remove(id, nil)
		}
		_ = s.indexes[name].Add(id, val)
	}
}

// RunBackfillStep scans up to batchSize keys from the schema's reader
// starting where the previous step left off, enqueueing and immediately
// applying a mutation for each. Returns done=true once the scan is
// exhausted, at which point the step itself moves the schema to
// StateActive and sets backfill progress to 100%.
//
// Before scanning, it polls the schema's OOMSignal (if any): while the
// host reports memory pressure, the step pauses without advancing the
// cursor or touching scanned_key_count, mirroring
// original_source/src/index_schema.cc's PerformBackfill checking
// VALKEYMODULE_CTX_FLAGS_OOM once per batch.
func (s *Schema) RunBackfillStep(batchSize int) (done bool, err error) {
	if s.oom != nil && s.oom.OOM() {
		s.pausedByOOM.Store(true)
		return false, nil
	}
	s.pausedByOOM.Store(false)

	if dz, ok := s.reader.(dbSizer); ok {
		if n := int64(dz.Len()); n > s.dbSize.Load() {
			s.dbSize.Store(n)
		}
	}

	keys, next, err := s.reader.Scan(s.backfillPos, batchSize)
	if err != nil {
		atomic.AddUint64(&s.backfillErrs, 1)
		return false, enginerr.Wrap(enginerr.Internal, "backfill scan failed", err)
	}

	for _, key := range keys {
		raw, err := s.reader.Get(key)
		if err != nil {
			atomic.AddUint64(&s.backfillErrs, 1)
			continue
		}
		s.Enqueue(DocumentMutation{Key: key, Fields: decodeFields(raw)})
	}
	s.scannedKeys.Add(int64(len(keys)))
	s.ApplyQueued(0)

	s.backfillPos = next
	if next == "" && s.QueueDepth() == 0 {
		s.setState(StateActive)
		s.backfillPct.Store(math.Float64bits(100))
		return true, nil
	}
	s.updateBackfillPercent()
	return false, nil
}

// updateBackfillPercent recomputes backfillPct from the scanned/in-queue/
// db_size counters per spec.md §4.2's formula: (scanned − in_queue) /
// db_size, clamped to [0, 0.99] until the scan actually completes (at
// which point RunBackfillStep stamps 100 directly). With no db_size
// signal yet (reader doesn't implement dbSizer and hasn't been scanned),
// it reports 0 rather than divide by zero.
func (s *Schema) updateBackfillPercent() {
	dbSize := s.dbSize.Load()
	if dbSize <= 0 {
		s.backfillPct.Store(math.Float64bits(0))
		return
	}
	processed := s.scannedKeys.Load() - int64(s.QueueDepth())
	if processed < 0 {
		processed = 0
	}
	frac := float64(processed) / float64(dbSize)
	if frac > 0.99 {
		frac = 0.99
	}
	s.backfillPct.Store(math.Float64bits(frac * 100))
}

// decodeFields is the document-field decoder: in this engine's
// simplified document model a document's whole stored value becomes the
// single field "value"; no per-field parsing is done (spec.md treats
// field decoding as a host concern out of scope for the engine itself).
func decodeFields(raw []byte) map[string][]byte {
	return map[string][]byte{"value": raw}
}

// BackfillPercent reports backfill progress in [0, 100].
func (s *Schema) BackfillPercent() float64 {
	return math.Float64frombits(s.backfillPct.Load())
}

// DocCount returns the number of live documents tracked by the schema.
func (s *Schema) DocCount() int {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	return len(s.keyToDoc)
}

// Index returns the concrete index for a named attribute, or nil.
func (s *Schema) Index(attr string) indexes.Index { return s.indexes[attr] }

// Universe returns a Fetcher over every currently-indexed DocID, used as
// the base set for indexes.Not.
func (s *Schema) Universe() indexes.Fetcher {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	ids := make([]indexes.DocID, 0, len(s.docToKey))
	for id := range s.docToKey {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return indexes.NewSliceFetcher(ids)
}

// KeyForDoc resolves a DocID back to its external document key, used
// when materializing query results.
func (s *Schema) KeyForDoc(id indexes.DocID) (string, bool) {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	k, ok := s.docToKey[id]
	return k, ok
}

// MemoryBytes sums every attribute index's reported footprint.
func (s *Schema) MemoryBytes() int64 {
	var total int64
	for _, idx := range s.indexes {
		total += idx.MemoryBytes()
	}
	return total
}

// Fingerprint computes the schema's content fingerprint: a combination
// of each attribute's own fingerprint (name + type + document count,
// a stand-in for the attribute's actual indexed content in this
// simplified document model), per spec.md §4.4's requirement that a
// schema's fingerprint changes whenever anything about it does.
func (s *Schema) Fingerprint() fingerprint.Fingerprint {
	fields := make([][]byte, 0, len(s.attrOrder))
	for _, name := range s.attrOrder {
		spec := s.attrs[name]
		idx := s.indexes[name]
		fields = append(fields, []byte(name+":"+string(spec.Type)+":"+strconv.Itoa(idx.DocCount())))
	}
	return fingerprint.OfFields(fields)
}

// Info returns a point-in-time summary suitable for FT.INFO and for the
// info-fanout response.
func (s *Schema) Info() Info {
	return Info{
		Name:            s.name,
		State:           s.State(),
		DocCount:        s.DocCount(),
		MemoryBytes:     s.MemoryBytes(),
		BackfillPercent: s.BackfillPercent(),
		PausedByOOM:     s.PausedByOOM(),
		Fingerprint:     s.Fingerprint(),
	}
}

// Stats returns the schema's operational counters.
func (s *Schema) Stats() Stats {
	return Stats{
		Mutations:      atomic.LoadUint64(&s.mutationCount),
		Queries:        atomic.LoadUint64(&s.queryCount),
		BackfillErrors: atomic.LoadUint64(&s.backfillErrs),
	}
}

// RLock/RUnlock expose the schema's reader-side time-sliced mutex to
// query execution (the node's /shard/search handler in cmd/ftnode), so a partition search holds the
// schema stable for the duration of its Fetcher composition.
func (s *Schema) RLock()   { s.mrmw.RLock(); atomic.AddUint64(&s.queryCount, 1) }
func (s *Schema) RUnlock() { s.mrmw.RUnlock() }

// SwapDB atomically changes the schema's database number, used when the
// host issues a SWAPDB and every schema scoped to the swapped databases
// must relabel itself without losing any indexed state.
func (s *Schema) SwapDB(newDBNum int) {
	s.mrmw.Lock()
	defer s.mrmw.Unlock()
	s.dbNum = newDBNum
}

// MarkDeleted transitions the schema to StateDeleted; callers are
// expected to stop routing mutations/queries to it and eventually drop
// the reference so its indexes can be garbage collected.
func (s *Schema) MarkDeleted() { s.setState(StateDeleted) }
