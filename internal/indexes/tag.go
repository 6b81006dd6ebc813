package indexes

import (
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// TagIndex indexes documents by a comma-separated set of discrete tag
// values (e.g. "red,blue"), one roaring bitmap of DocIDs per distinct
// tag value. Roaring bitmaps give AND/OR across tag values compressed
// set algebra instead of the map[string]struct{} an earlier
// ShardRegistry-style code would reach for, which matters once a tag's
// posting list spans millions of documents.
type TagIndex struct {
	postings  map[string]*roaring.Bitmap
	separator string
	caseSens  bool
	mu        sync.RWMutex
	docs      int
}

// NewTagIndex returns an empty tag index. separator splits a raw value
// into its component tags (spec.md's default is ","); caseSensitive
// controls whether tag comparison folds case before indexing.
func NewTagIndex(separator string, caseSensitive bool) *TagIndex {
	if separator == "" {
		separator = ","
	}
	return &TagIndex{postings: make(map[string]*roaring.Bitmap), separator: separator, caseSens: caseSensitive}
}

func (t *TagIndex) normalize(tag string) string {
	tag = strings.TrimSpace(tag)
	if !t.caseSens {
		tag = strings.ToLower(tag)
	}
	return tag
}

func (t *TagIndex) split(value []byte) []string {
	raw := strings.Split(string(value), t.separator)
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		n := t.normalize(r)
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Add implements Index.
func (t *TagIndex) Add(docID DocID, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tag := range t.split(value) {
		bm, ok := t.postings[tag]
		if !ok {
			bm = roaring.New()
			t.postings[tag] = bm
		}
		bm.Add(uint32(docID))
	}
	t.docs++
	return nil
}

// Remove implements Index.
func (t *TagIndex) Remove(docID DocID, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tag := range t.split(value) {
		if bm, ok := t.postings[tag]; ok {
			bm.Remove(uint32(docID))
			if bm.IsEmpty() {
				delete(t.postings, tag)
			}
		}
	}
	if t.docs > 0 {
		t.docs--
	}
	return nil
}

// DocCount implements Index.
func (t *TagIndex) DocCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.docs
}

// MemoryBytes implements Index, approximating each bitmap's serialized
// size via roaring's own accounting plus the map's string keys.
func (t *TagIndex) MemoryBytes() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total int64
	for tag, bm := range t.postings {
		total += int64(len(tag)) + int64(bm.GetSizeInBytes())
	}
	return total
}

// MatchTag returns a Fetcher over every document tagged with tag.
func (t *TagIndex) MatchTag(tag string) Fetcher {
	t.mu.RLock()
	defer t.mu.RUnlock()
	bm, ok := t.postings[t.normalize(tag)]
	if !ok {
		return NewSliceFetcher(nil)
	}
	return bitmapFetcher(bm)
}

// MatchAny returns a Fetcher over documents tagged with any of tags
// (logical OR across the named tag values).
func (t *TagIndex) MatchAny(tags ...string) Fetcher {
	t.mu.RLock()
	defer t.mu.RUnlock()
	union := roaring.New()
	for _, tag := range tags {
		if bm, ok := t.postings[t.normalize(tag)]; ok {
			union.Or(bm)
		}
	}
	return bitmapFetcher(union)
}

func bitmapFetcher(bm *roaring.Bitmap) Fetcher {
	ids := make([]DocID, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		ids = append(ids, DocID(it.Next()))
	}
	return NewSliceFetcher(ids)
}
