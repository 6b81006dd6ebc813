// Command rdbdump inspects a snapshot's TOML manifest sidecar without
// decoding the binary chunk stream it describes, per internal/rdb's
// manifest format.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dreamware/ftindex/internal/rdb"
)

func main() {
	root := &cobra.Command{
		Use:   "rdbdump <manifest-file>",
		Short: "Print a snapshot manifest's sections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dump(cmd.OutOrStdout(), args[0])
		},
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dump(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	m, err := rdb.DecodeManifest(data)
	if err != nil {
		return fmt.Errorf("decode manifest: %w", err)
	}

	fmt.Fprintf(w, "manifest version %d, %d section(s)\n", m.Version, len(m.Sections))
	for _, s := range m.Sections {
		fmt.Fprintf(w, "  %-24s chunks=%-6d bytes=%d\n", s.Name, s.ChunkCount, s.ByteSize)
	}
	return nil
}
