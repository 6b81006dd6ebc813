// Package fingerprint computes deterministic content fingerprints for
// global metadata entries, per spec.md §4.4: a HighwayHash digest over a
// sorted, flattened encoding of an entry's fields, using a fixed 256-bit
// key so two nodes computing the same entry's fingerprint independently
// always agree.
//
// Grounded on original_source/src/coordinator/metadata_manager.cc's
// fingerprint computation; HighwayHash itself isn't vendored by any repo
// in the example pack, so this wraps github.com/minio/highwayhash, the
// ecosystem's canonical pure-Go HighwayHash implementation (see
// SPEC_FULL.md's domain-stack table for the justification).
package fingerprint

import (
	"encoding/binary"
	"sort"

	"github.com/minio/highwayhash"
)

// Fixed key, shared by every node in a cluster so fingerprints computed
// independently are comparable. Matches spec.md §4.4's requirement of a
// fixed, compiled-in 256-bit key rather than a per-process random one.
var key = [32]byte{
	0x46, 0x54, 0x49, 0x4e, 0x44, 0x45, 0x58, 0x20,
	0x6d, 0x65, 0x74, 0x61, 0x64, 0x61, 0x74, 0x61,
	0x20, 0x66, 0x69, 0x6e, 0x67, 0x65, 0x72, 0x70,
	0x72, 0x69, 0x6e, 0x74, 0x20, 0x6b, 0x65, 0x79,
}

// Fingerprint is a 64-bit digest. Zero is a valid digest for the empty
// input and carries no special "unset" meaning on its own; callers that
// need an explicit "no fingerprint yet" sentinel track that separately.
type Fingerprint uint64

// Of computes the fingerprint of a single opaque byte payload.
func Of(data []byte) Fingerprint {
	h, err := highwayhash.New64(key[:])
	if err != nil {
		// key is a fixed 32-byte array; New64 only errors on wrong key
		// length, which cannot happen here.
		panic(err)
	}
	h.Write(data)
	return Fingerprint(h.Sum64())
}

// OfFields computes a single fingerprint over a set of child fields
// (e.g. an index's attribute fingerprints) by sorting the fields
// lexicographically, length-prefixing each, concatenating, and hashing
// the result. Sorting makes the fingerprint independent of the order
// fields were collected in, which matters because metadata reconcile
// on different nodes may enumerate children in different orders.
func OfFields(fields [][]byte) Fingerprint {
	sorted := make([][]byte, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool {
		return string(sorted[i]) < string(sorted[j])
	})

	var buf []byte
	var lenBuf [8]byte
	for _, f := range sorted {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(f)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, f...)
	}
	return Of(buf)
}

// Combine folds a child fingerprint into a running parent fingerprint,
// used when a schema's top-level fingerprint must reflect an attribute
// fingerprint that changed without recomputing every other attribute's
// digest. Order-independent: Combine(Combine(a,b),c) ==
// Combine(Combine(a,c),b).
func Combine(fps ...Fingerprint) Fingerprint {
	sorted := make([]uint64, len(fps))
	for i, f := range fps {
		sorted[i] = uint64(f)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var buf []byte
	var b [8]byte
	for _, v := range sorted {
		binary.BigEndian.PutUint64(b[:], v)
		buf = append(buf, b[:]...)
	}
	return Of(buf)
}
