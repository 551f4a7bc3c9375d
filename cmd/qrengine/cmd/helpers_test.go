package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrengine/internal/encoder"
	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/testutil"
)

// resetFlags restores every flag of the command tree to its default so that
// runs of the shared root command do not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// executeCommand runs the root command with args and returns what it wrote
// to stdout and stderr.
func executeCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

// writeSymbolPNG writes a level M symbol for text to dir and returns its path.
func writeSymbolPNG(t *testing.T, dir, name, text string) string {
	t.Helper()
	sym, err := encoder.Encode([]byte(text), qr.LevelM, encoder.Options{})
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, testutil.EncodePNG(t, testutil.RasterizeMatrix(sym.Modules, 6, 4)), 0o600))
	return path
}
