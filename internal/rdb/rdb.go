// Package rdb implements the chunked section codec the engine uses to
// persist an index schema's state inside the host's RDB-equivalent
// snapshot stream, per spec.md §6.4, plus a TOML manifest sidecar used
// by the standalone rdbdump inspection tool to describe a dump's
// sections without decoding their payloads.
//
// Grounded on original_source/vmsdk/src/utils.{cc,h} for the
// length-prefixed chunk framing, and on internal/hostcap.RDBHooks for
// how a host drives save/load. The manifest uses
// github.com/BurntSushi/toml (grounded on steveyegge-beads's go.mod) —
// the one human-readable sidecar format in this codebase, deliberately
// not JSON so a dump's shape is diffable without decoding the binary
// chunk stream.
package rdb

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/BurntSushi/toml"

	"github.com/dreamware/ftindex/internal/enginerr"
)

// magic tags the start of a section so a corrupted stream is detected
// immediately rather than silently misparsed as a differently-shaped
// section.
var magic = [4]byte{'F', 'T', 'I', 'X'}

// EncodeSection frames chunks (each an opaque, already-serialized piece
// of an index schema's state, e.g. one attribute's postings) into a
// single section payload: magic, chunk count, then each chunk
// length-prefixed. The whole section is built in one in-memory buffer
// and returned at once; chunks are framed, not streamed.
func EncodeSection(chunks [][]byte) []byte {
	var buf bytes.Buffer
	buf.Write(magic[:])
	writeUvarint(&buf, uint64(len(chunks)))
	for _, c := range chunks {
		writeUvarint(&buf, uint64(len(c)))
		buf.Write(c)
	}
	return buf.Bytes()
}

// DecodeSection reverses EncodeSection, returning the original chunks.
func DecodeSection(data []byte) ([][]byte, error) {
	r := bytes.NewReader(data)
	var got [4]byte
	if _, err := io.ReadFull(r, got[:]); err != nil || got != magic {
		return nil, enginerr.New(enginerr.InvalidArgument, "rdb: bad section magic")
	}
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.InvalidArgument, "rdb: truncated chunk count", err)
	}
	chunks := make([][]byte, 0, n)
	for i := uint64(0); i < n; i++ {
		l, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, enginerr.Wrap(enginerr.InvalidArgument, "rdb: truncated chunk length", err)
		}
		c := make([]byte, l)
		if _, err := io.ReadFull(r, c); err != nil {
			return nil, enginerr.Wrap(enginerr.InvalidArgument, "rdb: truncated chunk body", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

// Manifest describes a dump's sections for human/tool inspection without
// requiring the chunk payloads to be decoded.
type Manifest struct {
	Sections []SectionInfo `toml:"section"`
	Version  int           `toml:"version"`
}

// SectionInfo is one section's metadata entry in a Manifest.
type SectionInfo struct {
	Name       string `toml:"name"`
	ChunkCount int    `toml:"chunk_count"`
	ByteSize   int64  `toml:"byte_size"`
}

// EncodeManifest renders m as TOML text.
func EncodeManifest(m Manifest) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, enginerr.Wrap(enginerr.Internal, "rdb: encode manifest", err)
	}
	return buf.Bytes(), nil
}

// DecodeManifest parses TOML text produced by EncodeManifest.
func DecodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return Manifest{}, enginerr.Wrap(enginerr.InvalidArgument, "rdb: decode manifest", err)
	}
	return m, nil
}
