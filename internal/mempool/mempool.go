// Package mempool implements the engine's scoped byte-accounting substrate:
// a signed, process-wide byte counter (Pool) and composable scopes (Scope)
// that let nested allocation regions roll their deltas up into their
// enclosing scope without double-counting.
//
// Grounded on original_source/vmsdk/src/memory_tracker.{cc,h}: a scope
// records its target Pool's total on entry, Track applies bytes to that
// Pool immediately, and Close back-propagates (current - entry) to the
// parent scope, following the pattern of threading shared, thread-safe
// counters through constructors (cluster.NewLivenessMonitor,
// cluster.NewSlotRegistry) rather than relying on package globals.
package mempool

import "sync/atomic"

// Pool is a signed byte counter. Positive values represent bytes
// currently accounted for; it is signed because a scope's delta may be
// computed against a transient baseline that briefly goes negative.
type Pool struct {
	bytes int64
}

// NewPool returns a zeroed pool.
func NewPool() *Pool { return &Pool{} }

// Add applies delta (positive or negative) to the pool and returns the
// new total. Lock-free: backed by atomic.AddInt64.
func (p *Pool) Add(delta int64) int64 {
	return atomic.AddInt64(&p.bytes, delta)
}

// Bytes returns the current total.
func (p *Pool) Bytes() int64 {
	return atomic.LoadInt64(&p.bytes)
}

// Scope is a nestable accounting region. Entering a scope snapshots the
// ambient pool total; Track applies bytes to the scope's own target pool
// as they happen, and Close() back-propagates the delta accumulated
// during the scope's lifetime to the parent scope (if any) so that outer
// scopes observe the same bytes their inner scopes consumed without
// re-deriving them independently.
type Scope struct {
	pool    *Pool
	parent  *Scope
	entryAt int64
	closed  bool
}

// NewScope opens a scope against target, recording target's current total
// as the entry baseline. parent may be nil for a root scope.
func NewScope(target *Pool, parent *Scope) *Scope {
	return &Scope{
		pool:    target,
		parent:  parent,
		entryAt: target.Bytes(),
	}
}

// Track adds n bytes (n may be negative, e.g. on free) to the scope's
// target pool. Equivalent to calling Pool.Add directly, but expressed on
// the scope so call sites don't need to carry both references.
func (s *Scope) Track(n int64) int64 {
	return s.pool.Add(n)
}

// Close finalizes the scope: the delta since entry is the scope's own
// accounted total is already reflected in s.pool (Track calls apply
// immediately), so Close's only remaining job is to back-propagate the
// net delta to the parent scope, if any, using the same snapshot
// arithmetic the constructor used. Idempotent: a second Close is a no-op.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.parent == nil {
		return
	}
	delta := s.pool.Bytes() - s.entryAt
	if delta != 0 {
		s.parent.Track(delta)
	}
}

// Bytes reports the pool's current total as observed through this scope.
func (s *Scope) Bytes() int64 {
	return s.pool.Bytes()
}
