package rdb

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeSectionRoundTrip(t *testing.T) {
	chunks := [][]byte{[]byte("one"), []byte(""), []byte("three-longer-chunk")}
	data := EncodeSection(chunks)
	got, err := DecodeSection(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(chunks) {
		t.Fatalf("got %d chunks, want %d", len(got), len(chunks))
	}
	for i := range chunks {
		if !bytes.Equal(got[i], chunks[i]) {
			t.Fatalf("chunk %d = %q, want %q", i, got[i], chunks[i])
		}
	}
}

func TestDecodeSectionRejectsBadMagic(t *testing.T) {
	if _, err := DecodeSection([]byte("not a section")); err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

func TestManifestRoundTrip(t *testing.T) {
	m := Manifest{
		Version: 1,
		Sections: []SectionInfo{
			{Name: "schema:idx1", ChunkCount: 3, ByteSize: 4096},
		},
	}
	enc, err := EncodeManifest(m)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeManifest(enc)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 1 || len(got.Sections) != 1 || got.Sections[0].Name != "schema:idx1" {
		t.Fatalf("got %+v", got)
	}
}
