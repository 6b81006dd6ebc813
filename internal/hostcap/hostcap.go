// Package hostcap defines the capability interfaces the indexing engine
// needs from its host (the key-value store it's embedded in), plus
// in-memory fakes of some of them for tests and for the standalone node
// binary: MemoryKeyReader (KeyReader and KeyspaceNotifier) and
// MemoryOOMFlag (OOMSignal).
//
// Grounded on original_source/vmsdk/src/{blocked_client,utils}.{cc,h},
// which define the equivalent C++ host-callback surface (client
// blocking, keyspace notification, RDB save/load hooks) that a module
// host provides. Rather than one monolithic storage interface, this
// package decomposes the host surface into the several narrower
// capabilities. ClusterTransport, RDBHooks, ClientBlocker,
// HashStringRef and Timer have no implementation in this package.
package hostcap

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrKeyNotFound mirrors storage.ErrKeyNotFound: the key a caller asked
// about is not present in the keyspace.
var ErrKeyNotFound = errors.New("hostcap: key not found")

// KeyReader exposes read-only access to the host's keyspace, used by the
// backfill scanner and by query execution to materialize a document's
// fields for scoring.
type KeyReader interface {
	// Get returns the raw value bytes for key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)
	// Scan returns up to limit keys lexicographically at or after cursor,
	// plus the cursor to resume from (empty string when exhausted), per
	// the ScanCursor contract backfill drives to completion.
	Scan(cursor string, limit int) (keys []string, next string, err error)
}

// KeyspaceNotifier lets the engine subscribe to the host's keyspace
// mutation stream (SET/DEL/EXPIRE-equivalent events) so IndexSchema can
// maintain its index incrementally instead of re-scanning.
type KeyspaceNotifier interface {
	// Subscribe registers fn to be called for every mutation to a key
	// matching the host's keyspace notification class. Returns an
	// unsubscribe function.
	Subscribe(fn func(event KeyEvent)) (unsubscribe func())
}

// KeyEventKind classifies a keyspace mutation.
type KeyEventKind int

const (
	KeyEventSet KeyEventKind = iota
	KeyEventDel
	KeyEventExpire
)

// KeyEvent is a single keyspace mutation notification.
type KeyEvent struct {
	Key   string
	Value []byte
	Kind  KeyEventKind
	DB    int
}

// ClusterTransport abstracts the host's node-to-node RPC channel. Nothing
// in this module calls it: metadata.Manager and fanout.Executor use the
// HTTP transport in internal/cluster. A real module host multiplexes
// this over the database's own cluster bus.
type ClusterTransport interface {
	// Send delivers payload to the node owning targetID on the given
	// RPC path, returning the response payload or an error classified by
	// enginerr.Kind (DeadlineExceeded on timeout, Internal on transport
	// failure).
	Send(ctx CancelContext, targetID string, path string, payload []byte) ([]byte, error)
	// LocalNodeID returns this host's own cluster node identifier.
	LocalNodeID() string
	// Peers returns the IDs of every other node currently in the cluster.
	Peers() []string
}

// CancelContext is the minimal context surface the engine depends on,
// satisfied by context.Context; declared locally so hostcap doesn't force
// every fake to import "context" just to implement a one-method stub.
type CancelContext interface {
	Done() <-chan struct{}
	Err() error
}

// RDBHooks abstracts the host's RDB-equivalent persistence machinery:
// the engine registers chunked save/load callbacks for each index schema
// (see internal/rdb) and the host drives them during its own dump/load
// cycle.
type RDBHooks interface {
	// RegisterSaveLoad wires save and load callbacks for a named section
	// the engine owns inside the host's RDB stream.
	RegisterSaveLoad(section string, save func() ([][]byte, error), load func(chunks [][]byte) error)
}

// ClientBlocker lets a query that must wait on a backfill to finish (or
// on a host-side lock) suspend the calling client without occupying a
// host worker thread, mirroring vmsdk's BlockedClient.
type ClientBlocker interface {
	// Block suspends the current client until unblock is called or ctx
	// is done, whichever comes first.
	Block(ctx CancelContext) (unblock func())
}

// HashStringRef is a host-owned, refcounted reference to a key's value
// bytes, letting the engine hold a zero-copy view into the keyspace's
// value storage for the duration of index ingestion without the host
// risking a concurrent mutation tearing the read.
type HashStringRef interface {
	Bytes() []byte
	Release()
}

// Timer abstracts wall-clock scheduling for periodic engine work
// (metadata gossip ticks, backfill pacing), so tests can substitute a
// manually-advanced fake instead of real time.Sleep/time.Ticker.
type Timer interface {
	After(d int64) <-chan struct{} // d in milliseconds
}

// OOMSignal reports whether the host is currently under memory pressure,
// mirroring VALKEYMODULE_CTX_FLAGS_OOM: the backfill scanner polls this
// once per batch and pauses without advancing its cursor while it's set,
// rather than risking an allocation-heavy ingest batch under pressure it
// didn't cause.
type OOMSignal interface {
	OOM() bool
}

// MemoryOOMFlag is an in-memory OOMSignal fake: a bool a test can flip to
// simulate the host entering and leaving memory pressure.
type MemoryOOMFlag struct {
	flag atomic.Bool
}

// NewMemoryOOMFlag returns a fake OOM signal, initially not under pressure.
func NewMemoryOOMFlag() *MemoryOOMFlag { return &MemoryOOMFlag{} }

// OOM implements OOMSignal.
func (f *MemoryOOMFlag) OOM() bool { return f.flag.Load() }

// SetOOM flips the fake's simulated OOM state.
func (f *MemoryOOMFlag) SetOOM(v bool) { f.flag.Store(v) }

// MemoryKeyReader is an in-memory KeyReader/KeyspaceNotifier fake: a map
// guarded by an RWMutex, with Put/Delete methods the fakes expose beyond
// the KeyReader contract so tests can populate the keyspace directly and
// have subscribed observers notified synchronously.
type MemoryKeyReader struct {
	data        map[string][]byte
	subscribers []func(KeyEvent)
	mu          sync.RWMutex
	db          int
}

// NewMemoryKeyReader returns an empty fake keyspace for database db.
func NewMemoryKeyReader(db int) *MemoryKeyReader {
	return &MemoryKeyReader{data: make(map[string][]byte), db: db}
}

// Get implements KeyReader.
func (m *MemoryKeyReader) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Scan implements KeyReader, returning keys in lexicographic order
// starting at cursor (inclusive) up to limit keys.
func (m *MemoryKeyReader) Scan(cursor string, limit int) ([]string, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]string, 0, len(m.data))
	for k := range m.data {
		if k >= cursor {
			all = append(all, k)
		}
	}
	sort.Strings(all)

	if limit <= 0 || limit >= len(all) {
		return all, "", nil
	}
	return all[:limit], all[limit], nil
}

// Put sets key to value and notifies subscribers of a Set event.
func (m *MemoryKeyReader) Put(key string, value []byte) {
	m.mu.Lock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
	subs := append([]func(KeyEvent){}, m.subscribers...)
	m.mu.Unlock()

	ev := KeyEvent{Key: key, Value: cp, Kind: KeyEventSet, DB: m.db}
	for _, fn := range subs {
		fn(ev)
	}
}

// Delete removes key and notifies subscribers of a Del event. A no-op
// delete (key absent) still fires the event, matching real keyspace
// notification semantics where DEL on a missing key is observable.
func (m *MemoryKeyReader) Delete(key string) {
	m.mu.Lock()
	delete(m.data, key)
	subs := append([]func(KeyEvent){}, m.subscribers...)
	m.mu.Unlock()

	ev := KeyEvent{Key: key, Kind: KeyEventDel, DB: m.db}
	for _, fn := range subs {
		fn(ev)
	}
}

// Subscribe implements KeyspaceNotifier.
func (m *MemoryKeyReader) Subscribe(fn func(event KeyEvent)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.subscribers)
	m.subscribers = append(m.subscribers, fn)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if idx < len(m.subscribers) {
			m.subscribers[idx] = func(KeyEvent) {} // tombstone, keeps indices stable
		}
	}
}

// Len reports the number of live keys. A schema whose reader has Len
// uses it as the keyspace size that backfill progress is measured
// against.
func (m *MemoryKeyReader) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
