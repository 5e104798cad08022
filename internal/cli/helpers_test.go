package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ephvault/internal/testutil"
)

const genesis = int64(1_700_000_000)

// cliEnv runs commands against one SQLite database with a manual clock.
type cliEnv struct {
	db    string
	clock *testutil.ManualClock
	ids   *testutil.SequentialIDs
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	return &cliEnv{
		db:    filepath.Join(t.TempDir(), "ephvault.db"),
		clock: testutil.NewManualClock(genesis),
		ids:   testutil.NewSequentialIDs("op"),
	}
}

// run executes one command line and returns its stdout.
func (e *cliEnv) run(args ...string) (string, error) {
	return e.runContext(context.Background(), args...)
}

func (e *cliEnv) runContext(ctx context.Context, args ...string) (string, error) {
	cmd := newRootCommand(&RootOptions{Clock: e.clock, OpIDs: e.ids})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", e.db}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// mustRun executes a command that must succeed.
func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(args...)
	require.NoError(t, err, "ephvault %v\n%s", args, out)
	return out
}

// runJSON executes a command with --format json and decodes the envelope.
func (e *cliEnv) runJSON(t *testing.T, args ...string) (map[string]any, *CLIError, error) {
	t.Helper()
	out, runErr := e.run(append([]string{"--format", "json"}, args...)...)

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
		Error  *CLIError      `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp.Data, resp.Error, runErr
}
