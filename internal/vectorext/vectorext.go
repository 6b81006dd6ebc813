// Package vectorext implements VectorExternalizer: storage for vector
// attribute payloads outside the primary index structure, per spec.md
// §4.6. The indexes package's VectorFlat and VectorHNSW do not use it;
// they keep their own []float32 copy of every vector.
//
// Grounded on original_source/src/vector_externalizer.{cc,h}: vectors
// are content-interned (deduplicating identical embeddings, which is
// common when many documents share a vocabulary-level embedding) via
// internal/intern.Store under intern.CategoryVector, with an Allocator
// plugged in so a future on-disk or off-heap backing can be substituted
// without changing callers.
package vectorext

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/dreamware/ftindex/internal/intern"
)

// arenaAllocator is the default in-process Allocator: a plain Go byte
// slice per allocation. Stands in for a future mmap'd or off-heap arena
// without the engine's callers needing to change.
type arenaAllocator struct {
	mu        sync.Mutex
	allocated int64
}

func (a *arenaAllocator) Alloc(n int) []byte {
	a.mu.Lock()
	a.allocated += int64(n)
	a.mu.Unlock()
	return make([]byte, n)
}

func (a *arenaAllocator) Free(b []byte) {
	a.mu.Lock()
	a.allocated -= int64(len(b))
	a.mu.Unlock()
}

// Externalizer deduplicates and refcounts vector payloads via an
// internal/intern.Store, so identical embeddings across many documents
// are stored once.
type Externalizer struct {
	store *intern.Store
	alloc *arenaAllocator
	dim   int
}

// New returns an Externalizer for vectors of the given float32
// dimension, backed by store (typically a dedicated intern.Store so
// vector accounting doesn't share a category counter with tag/key
// strings).
func New(store *intern.Store, dim int) *Externalizer {
	return &Externalizer{store: store, alloc: &arenaAllocator{}, dim: dim}
}

// Ref is an externalized vector's handle: the interned bytes plus the
// decoded float32 view, so callers needing either representation don't
// re-encode/decode.
type Ref struct {
	handle intern.Handle
	vec    []float32
}

// Vector returns the decoded float32 vector.
func (r Ref) Vector() []float32 { return r.vec }

// Bytes returns the raw little-endian float32 encoding.
func (r Ref) Bytes() []byte { return r.handle.Bytes() }

// Externalize interns vec's byte encoding, returning a Ref. Calling
// Externalize again with an identical vector returns a Ref backed by the
// same underlying storage (via intern.Store's content-addressing) and
// bumps its refcount instead of allocating again.
func (e *Externalizer) Externalize(vec []float32) Ref {
	raw := encodeVector(vec)
	h := e.store.Intern(raw, e.alloc, intern.CategoryVector)
	return Ref{handle: h, vec: vec}
}

// Release decrements the Ref's refcount, freeing the backing storage
// once no other Ref still references the same content.
func (e *Externalizer) Release(r Ref) {
	e.store.Release(r.handle)
}

// Materialize decodes a Ref's bytes back into a float32 vector,
// independent of the Ref's own cached Vector() — useful when a Ref was
// obtained from wire bytes rather than from Externalize directly.
func Materialize(b []byte, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		v[i] = math.Float32frombits(bits)
	}
	return v
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// MemoryBytes reports the externalizer's category-level accounting via
// its backing store.
func (e *Externalizer) MemoryBytes() int64 {
	return e.store.GetCounters(intern.CategoryVector).MemoryBytes
}

// Count reports the number of distinct vectors currently externalized.
func (e *Externalizer) Count() int64 {
	return e.store.GetCounters(intern.CategoryVector).ObjectCount
}
