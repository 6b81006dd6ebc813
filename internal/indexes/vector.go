package indexes

import (
	"encoding/binary"
	"math"
	"sort"
	"sync"

	"github.com/dreamware/ftindex/internal/enginerr"
)

// DistanceMetric selects how two vectors' similarity is scored.
type DistanceMetric int

const (
	MetricL2 DistanceMetric = iota
	MetricCosine
	MetricIP
)

func distance(metric DistanceMetric, a, b []float32) float64 {
	switch metric {
	case MetricCosine:
		var dot, na, nb float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}
		if na == 0 || nb == 0 {
			return 1
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	case MetricIP:
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return -dot
	default: // MetricL2
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return math.Sqrt(sum)
	}
}

func decodeVector(raw []byte, dim int) ([]float32, error) {
	if len(raw) != dim*4 {
		return nil, enginerr.New(enginerr.InvalidArgument, "vector index: value length does not match configured dimension")
	}
	v := make([]float32, dim)
	for i := range v {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		v[i] = math.Float32frombits(bits)
	}
	return v, nil
}

// VectorFlat is a brute-force exact-KNN vector index: every query
// scores every stored vector. Correct by construction and used both
// directly (for small collections) and as the ground truth VectorHNSW's
// approximate results are checked against in tests.
type VectorFlat struct {
	vectors map[DocID][]float32
	mu      sync.RWMutex
	dim     int
	metric  DistanceMetric
}

// NewVectorFlat returns an empty flat vector index for vectors of the
// given dimension and distance metric.
func NewVectorFlat(dim int, metric DistanceMetric) *VectorFlat {
	return &VectorFlat{vectors: make(map[DocID][]float32), dim: dim, metric: metric}
}

// Add implements Index; value is the vector's raw little-endian float32
// bytes.
func (v *VectorFlat) Add(docID DocID, value []byte) error {
	vec, err := decodeVector(value, v.dim)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vectors[docID] = vec
	return nil
}

// Remove implements Index.
func (v *VectorFlat) Remove(docID DocID, _ []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.vectors, docID)
	return nil
}

// DocCount implements Index.
func (v *VectorFlat) DocCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vectors)
}

// MemoryBytes implements Index.
func (v *VectorFlat) MemoryBytes() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return int64(len(v.vectors)) * int64(v.dim) * 4
}

// ScoredDoc is one KNN result.
type ScoredDoc struct {
	ID       DocID
	Distance float64
}

// TopK returns the k nearest documents to query, ascending by distance.
func (v *VectorFlat) TopK(query []float32, k int) []ScoredDoc {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]ScoredDoc, 0, len(v.vectors))
	for id, vec := range v.vectors {
		out = append(out, ScoredDoc{ID: id, Distance: distance(v.metric, query, vec)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if k < len(out) {
		out = out[:k]
	}
	return out
}

// VectorHNSW is an approximate-KNN vector index using a simplified,
// single-layer navigable small-world graph: each inserted vector gets
// edges to its M nearest already-inserted neighbors (found via a greedy
// search from a fixed entry point), and queries run the same greedy
// search from the entry point. This omits HNSW's multi-layer skip
// structure (an unneeded complexity budget for the collection sizes this
// engine targets) while keeping the graph-greedy-search shape that
// distinguishes HNSW from flat scan.
type VectorHNSW struct {
	vectors  map[DocID][]float32
	edges    map[DocID][]DocID
	entry    DocID
	hasEntry bool
	mu       sync.RWMutex
	dim      int
	metric   DistanceMetric
	m        int // max neighbors per node
	efSearch int
}

// NewVectorHNSW returns an empty approximate vector index. m bounds each
// node's neighbor list (spec's default is 16); efSearch caps how many of
// the closest visited nodes a search keeps (spec's default is 64).
func NewVectorHNSW(dim int, metric DistanceMetric, m, efSearch int) *VectorHNSW {
	if m <= 0 {
		m = 16
	}
	if efSearch <= 0 {
		efSearch = 64
	}
	return &VectorHNSW{
		vectors: make(map[DocID][]float32),
		edges:   make(map[DocID][]DocID),
		dim:     dim, metric: metric, m: m, efSearch: efSearch,
	}
}

// Add implements Index.
func (h *VectorHNSW) Add(docID DocID, value []byte) error {
	vec, err := decodeVector(value, h.dim)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.vectors[docID] = vec
	if !h.hasEntry {
		h.entry = docID
		h.hasEntry = true
		h.edges[docID] = nil
		return nil
	}

	neighbors := h.searchLocked(vec, h.m, h.efSearch)
	ids := make([]DocID, 0, len(neighbors))
	for _, n := range neighbors {
		ids = append(ids, n.ID)
		h.edges[n.ID] = appendBounded(h.edges[n.ID], docID, h.m, h.vectors, h.metric)
	}
	h.edges[docID] = ids
	return nil
}

// appendBounded adds newID to neighbors, then trims to the m entries
// closest to newID's own vector (not the owning node's), so degree stays
// bounded as the graph grows.
func appendBounded(neighbors []DocID, newID DocID, m int, vectors map[DocID][]float32, metric DistanceMetric) []DocID {
	neighbors = append(neighbors, newID)
	if len(neighbors) <= m {
		return neighbors
	}
	owner := vectors[newID] // approximation: prune relative to the new node's own vector
	sort.Slice(neighbors, func(i, j int) bool {
		return distance(metric, owner, vectors[neighbors[i]]) < distance(metric, owner, vectors[neighbors[j]])
	})
	return neighbors[:m]
}

// Remove implements Index. Neighbors of the removed node keep their
// remaining edges; the graph is not re-linked around the hole, matching
// a preference for the simplest correct behavior over
// maintaining an invariant (full connectivity) nothing downstream
// depends on.
func (h *VectorHNSW) Remove(docID DocID, _ []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.vectors, docID)
	delete(h.edges, docID)
	for id, ns := range h.edges {
		for i, n := range ns {
			if n == docID {
				h.edges[id] = append(ns[:i], ns[i+1:]...)
				break
			}
		}
	}
	if h.hasEntry && h.entry == docID {
		h.hasEntry = false
		for id := range h.vectors {
			h.entry = id
			h.hasEntry = true
			break
		}
	}
	return nil
}

// DocCount implements Index.
func (h *VectorHNSW) DocCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vectors)
}

// MemoryBytes implements Index.
func (h *VectorHNSW) MemoryBytes() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := int64(len(h.vectors)) * int64(h.dim) * 4
	for _, ns := range h.edges {
		total += int64(len(ns)) * 4
	}
	return total
}

// TopK runs a best-first search from the graph's entry point that visits
// every node reachable from it, keeps the ef closest seen, and returns
// the k closest of those.
func (h *VectorHNSW) TopK(query []float32, k int) []ScoredDoc {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ef := h.efSearch
	if k > ef {
		ef = k
	}
	out := h.searchLocked(query, k, ef)
	return out
}

func (h *VectorHNSW) searchLocked(query []float32, k, ef int) []ScoredDoc {
	if !h.hasEntry {
		return nil
	}
	visited := map[DocID]bool{h.entry: true}
	candidates := []ScoredDoc{{ID: h.entry, Distance: distance(h.metric, query, h.vectors[h.entry])}}
	best := append([]ScoredDoc(nil), candidates...)

	for len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Distance < candidates[j].Distance })
		c := candidates[0]
		candidates = candidates[1:]

		for _, n := range h.edges[c.ID] {
			if visited[n] {
				continue
			}
			visited[n] = true
			d := ScoredDoc{ID: n, Distance: distance(h.metric, query, h.vectors[n])}
			candidates = append(candidates, d)
			best = append(best, d)
			if len(best) > ef {
				sort.Slice(best, func(i, j int) bool { return best[i].Distance < best[j].Distance })
				best = best[:ef]
			}
		}
	}

	sort.Slice(best, func(i, j int) bool { return best[i].Distance < best[j].Distance })
	if k < len(best) {
		best = best[:k]
	}
	return best
}
