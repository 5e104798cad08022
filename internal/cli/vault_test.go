package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// delegatedVault funds alice, creates her vault and approves dave.
func delegatedVault(t *testing.T, e *cliEnv) {
	t.Helper()
	e.mustRun(t, "fund", "alice", "1000000000")
	e.mustRun(t, "create", "500000000", "--as", "alice")
	e.mustRun(t, "approve", "dave", "--as", "alice")
	e.mustRun(t, "deposit", "500000000", "--as", "alice")
}

func TestVaultCommands_Lifecycle(t *testing.T) {
	e := newCLIEnv(t)
	delegatedVault(t, e)

	data, cliErr, err := e.runJSON(t, "trade", "alice", "1000000", "100000000", "--as", "dave")
	require.NoError(t, err)
	require.Nil(t, cliErr)
	assert.Equal(t, float64(101_000_000), data["used_amount"])
	assert.Equal(t, float64(399_000_000), data["remaining"])
	assert.Equal(t, "dave", data["delegate_wallet"])

	_, cliErr, err = e.runJSON(t, "trade", "alice", "0", "400000000", "--as", "dave")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, WasReported(err))
	require.NotNil(t, cliErr)
	assert.Equal(t, "EXCEEDS_APPROVED", cliErr.Code)

	e.mustRun(t, "revoke", "--as", "alice")

	_, cliErr, err = e.runJSON(t, "trade", "alice", "0", "1", "--as", "dave")
	require.Error(t, err)
	assert.Equal(t, "INVALID_STATE", cliErr.Code)

	balances := map[string]string{
		"alice":         "wallet:alice: 500000000",
		"venue":         "wallet:venue: 100000000",
		"fee-collector": "wallet:fee-collector: 1000000",
	}
	for who, want := range balances {
		assert.Equal(t, want+"\n", e.mustRun(t, "balance", who))
	}

	data, _, err = e.runJSON(t, "balance", "alice", "--escrow")
	require.NoError(t, err)
	assert.Equal(t, float64(399_000_000), data["balance"])

	data, _, err = e.runJSON(t, "events", "alice")
	require.NoError(t, err)
	events, ok := data["events"].([]any)
	require.True(t, ok)
	kinds := make([]string, 0, len(events))
	for _, raw := range events {
		kinds = append(kinds, raw.(map[string]any)["kind"].(string))
	}
	assert.Equal(t, []string{"VaultCreated", "DelegateApproved", "Deposited", "TradeExecuted", "AccessRevoked"}, kinds)
}

func TestVaultCommands_TextOutput(t *testing.T) {
	e := newCLIEnv(t)
	out := e.mustRun(t, "create", "10", "--as", "alice")

	assert.Contains(t, out, "Vault ")
	assert.Contains(t, out, "Owner:         alice")
	assert.Contains(t, out, "State:         active")
	assert.Contains(t, out, "Delegate:      (none)")
	assert.Contains(t, out, "Approved:      10")
}

func TestVaultCommands_RejectionText(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun(t, "create", "10", "--as", "alice")

	out, err := e.run("create", "10", "--as", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [ALREADY_EXISTS]")
}

func TestCleanupCommand(t *testing.T) {
	e := newCLIEnv(t)
	delegatedVault(t, e)
	e.mustRun(t, "revoke", "--as", "alice")

	_, cliErr, err := e.runJSON(t, "cleanup", "alice", "--as", "carol")
	require.Error(t, err)
	assert.Equal(t, "NOT_EXPIRED", cliErr.Code)

	e.clock.Advance(3600)

	_, cliErr, err = e.runJSON(t, "cleanup", "alice", "--as", "alice")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", cliErr.Code)

	e.mustRun(t, "cleanup", "alice", "--as", "carol")

	_, cliErr, err = e.runJSON(t, "show", "alice")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", cliErr.Code)

	assert.Equal(t, "wallet:alice: 1000000000\n", e.mustRun(t, "balance", "alice"))

	// The address is free again.
	e.mustRun(t, "create", "1", "--as", "alice")
}

func TestShowCommand(t *testing.T) {
	e := newCLIEnv(t)
	created, _, err := e.runJSON(t, "create", "10", "--as", "alice")
	require.NoError(t, err)

	byOwner, _, err := e.runJSON(t, "show", "alice")
	require.NoError(t, err)
	assert.Equal(t, created, byOwner)

	byCaller, _, err := e.runJSON(t, "show", "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, created, byCaller)

	byAddress, _, err := e.runJSON(t, "show", "--address", created["address"].(string))
	require.NoError(t, err)
	assert.Equal(t, created, byAddress)
}

func TestOwnerFlag_LetsOthersAttempt(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun(t, "create", "10", "--as", "alice")

	_, cliErr, err := e.runJSON(t, "revoke", "--owner", "alice", "--as", "mallory")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", cliErr.Code)
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing caller", []string{"create", "10"}, "--as is required"},
		{"bad amount", []string{"create", "ten", "--as", "alice"}, `invalid approved amount "ten"`},
		{"bad fee", []string{"trade", "alice", "x", "1", "--as", "dave"}, `invalid fee "x"`},
		{"query without identity", []string{"balance"}, "an identity argument or --as is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newCLIEnv(t)
			_, err := e.run(tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigFile_SetsPolicy(t *testing.T) {
	e := newCLIEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "ephvault.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
vault:
  expiry_threshold: 10
  cleaner_reward_bps: 1000
`), 0o644))

	e.mustRun(t, "fund", "alice", "100")
	e.mustRun(t, "create", "100", "--as", "alice")
	e.mustRun(t, "deposit", "100", "--as", "alice")
	e.mustRun(t, "revoke", "--as", "alice")
	e.clock.Advance(10)

	e.mustRun(t, "--config", cfgPath, "cleanup", "alice", "--as", "carol")
	assert.Equal(t, "wallet:alice: 90\n", e.mustRun(t, "balance", "alice"))
	assert.Equal(t, "wallet:carol: 10\n", e.mustRun(t, "balance", "carol"))
}

func TestConfigFile_Invalid(t *testing.T) {
	e := newCLIEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "ephvault.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("vault:\n  cleaner_reward_bps: 20000\n"), 0o644))

	_, err := e.run("--config", cfgPath, "create", "1", "--as", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
