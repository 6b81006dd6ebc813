package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/ftindex/internal/rdb"
)

func TestDumpPrintsSections(t *testing.T) {
	manifest, err := rdb.EncodeManifest(rdb.Manifest{
		Version: 1,
		Sections: []rdb.SectionInfo{
			{Name: "attr:title", ChunkCount: 3, ByteSize: 4096},
		},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "manifest.toml")
	require.NoError(t, os.WriteFile(path, manifest, 0o644))

	var out bytes.Buffer
	require.NoError(t, dump(&out, path))
	require.Contains(t, out.String(), "attr:title")
	require.Contains(t, out.String(), "manifest version 1, 1 section(s)")
}

func TestDumpMissingFile(t *testing.T) {
	var out bytes.Buffer
	err := dump(&out, filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
