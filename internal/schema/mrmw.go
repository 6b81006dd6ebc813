package schema

import "sync"

// timeSlicedMutex implements the reader/writer arbitration discipline
// spec.md §5 describes for IndexSchema access: readers (query execution)
// normally proceed concurrently, but after readerQuota consecutive
// reader acquisitions with no intervening writer turn, new readers are
// held back until one pending writer (a mutation or backfill step) gets
// its turn — preventing a steady stream of queries from starving index
// mutation indefinitely, the way a plain sync.RWMutex's writer-priority
// heuristic does not guarantee under Go's runtime.
//
// Grounded on original_source/src/index_schema.cc's reader/writer
// quota design; implemented with sync.Mutex + sync.Cond rather than
// channels, matching the lock-and-condvar style other components in
// this codebase use throughout.
type timeSlicedMutex struct {
	cond            *sync.Cond
	mu              sync.Mutex
	activeReaders   int
	readersSinceTurn int
	writerWaiting   bool
	writerActive    bool
	readerQuota     int
}

func newTimeSlicedMutex(readerQuota int) *timeSlicedMutex {
	if readerQuota <= 0 {
		readerQuota = 64
	}
	m := &timeSlicedMutex{readerQuota: readerQuota}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// RLock blocks while a writer is active, or while the reader quota has
// been exhausted and a writer is waiting its turn.
func (m *timeSlicedMutex) RLock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.writerActive || (m.writerWaiting && m.readersSinceTurn >= m.readerQuota) {
		m.cond.Wait()
	}
	m.activeReaders++
	m.readersSinceTurn++
}

// RUnlock releases a reader slot, waking any writer waiting for the
// active-reader count to reach zero.
func (m *timeSlicedMutex) RUnlock() {
	m.mu.Lock()
	m.activeReaders--
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Lock blocks until no readers or writer are active, then marks the
// writer active, granting it exclusive access. Acquiring the lock resets
// the reader quota, giving the next batch of readers a full grace period
// before the writer-priority clause engages again.
func (m *timeSlicedMutex) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writerWaiting = true
	for m.writerActive || m.activeReaders > 0 {
		m.cond.Wait()
	}
	m.writerWaiting = false
	m.writerActive = true
	m.readersSinceTurn = 0
}

// Unlock releases exclusive access.
func (m *timeSlicedMutex) Unlock() {
	m.mu.Lock()
	m.writerActive = false
	m.mu.Unlock()
	m.cond.Broadcast()
}
