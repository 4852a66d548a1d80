package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/steadyboard/internal/ir"
	"github.com/roach88/steadyboard/internal/testutil"
)

// jsonSourceConfig passes validation; tests replace the adapter itself.
const jsonSourceConfig = `source:
  kind: json
  json:
    url: http://127.0.0.1:1/board.json
poll:
  interval: 50ms
  confirm_delay: 0s
render:
  default_label: Seoul CC
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testRootOptions(t *testing.T, format string) *RootOptions {
	t.Helper()
	dir := t.TempDir()
	return &RootOptions{
		Format:     format,
		ConfigPath: writeFile(t, dir, "board.yaml", jsonSourceConfig),
		EnvFile:    filepath.Join(dir, "missing.env"),
	}
}

func leaderboardRead() testutil.Read {
	return testutil.Read{Snapshot: ir.RawSnapshot{
		Participants: ir.Table{
			{"name", "SPT", "GS"},
			{"Kim", "-2", "70"},
			{"Lee", "E", "72"},
		},
		Event: ir.Table{
			{"hole", "par", "course"},
			{"7", "4", "Seoul CC"},
		},
	}}
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
