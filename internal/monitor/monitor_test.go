package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ephvault/internal/testutil"
	"github.com/roach88/ephvault/internal/vault"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, clock *testutil.ManualClock) *vault.Service {
	t.Helper()
	svc, err := vault.New(vault.NewMemoryBackend(),
		vault.WithClock(clock),
		vault.WithOpIDs(testutil.NewSequentialIDs("op")),
		vault.WithLogger(discard()),
	)
	require.NoError(t, err)
	return svc
}

func revokedVault(t *testing.T, svc *vault.Service, owner vault.Identity, deposit uint64) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Fund(ctx, owner, deposit)
	require.NoError(t, err)
	_, err = svc.Create(ctx, owner, 1_000)
	require.NoError(t, err)
	_, err = svc.AutoDeposit(ctx, owner, owner, deposit)
	require.NoError(t, err)
	_, err = svc.RevokeAccess(ctx, owner, owner)
	require.NoError(t, err)
}

func TestNew_Validation(t *testing.T) {
	svc := newService(t, testutil.NewManualClock(0))

	_, err := New(svc, "", "@every 1m", discard())
	assert.Error(t, err)

	_, err = New(svc, "sweeper", "not a schedule", discard())
	assert.Error(t, err)

	m, err := New(svc, "sweeper", "*/5 * * * *", nil)
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestSweep_ClosesOnlyExpiredRevokedVaults(t *testing.T) {
	clock := testutil.NewManualClock(1_700_000_000)
	svc := newService(t, clock)
	ctx := context.Background()

	revokedVault(t, svc, "alice", 100)
	revokedVault(t, svc, "bob", 40)
	_, err := svc.Create(ctx, "carol", 10)
	require.NoError(t, err)

	m, err := New(svc, "sweeper", "@every 1m", discard())
	require.NoError(t, err)

	res, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Closed, "nothing has been idle long enough")

	clock.Advance(vault.DefaultExpiryThreshold)
	res, err = m.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, res.Closed, 2)
	assert.Zero(t, res.Failed)

	for owner, want := range map[vault.Identity]uint64{"alice": 100, "bob": 40} {
		_, err := svc.Get(ctx, owner)
		assert.ErrorIs(t, err, vault.ErrNotFound)
		bal, err := svc.WalletBalance(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, want, bal)
	}

	_, err = svc.Get(ctx, "carol")
	assert.NoError(t, err, "active vaults are never swept")

	res, err = m.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Closed)
}

// racingCleaner lists a vault that is gone by the time cleanup runs.
type racingCleaner struct {
	listed []vault.Vault
	err    error
}

func (r *racingCleaner) Expired(context.Context) ([]vault.Vault, error) {
	return r.listed, r.err
}

func (r *racingCleaner) CleanupVault(_ context.Context, _, owner vault.Identity) (vault.Vault, error) {
	switch owner {
	case "gone":
		return vault.Vault{}, vault.ErrNotFound
	case "broken":
		return vault.Vault{}, errors.New("disk on fire")
	case "denied":
		return vault.Vault{}, vault.ErrUnauthorized
	}
	return vault.Vault{UserWallet: owner}, nil
}

func TestSweep_CountsSkipsAndFailures(t *testing.T) {
	rc := &racingCleaner{listed: []vault.Vault{
		{UserWallet: "gone"},
		{UserWallet: "ok"},
		{UserWallet: "broken"},
		{UserWallet: "denied"},
	}}
	m, err := New(rc, "sweeper", "@every 1m", discard())
	require.NoError(t, err)

	res, err := m.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, vault.Identity("ok"), res.Closed[0].UserWallet)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, res.Failed)
}

func TestSweep_ListError(t *testing.T) {
	rc := &racingCleaner{err: errors.New("db closed")}
	m, err := New(rc, "sweeper", "@every 1m", discard())
	require.NoError(t, err)

	_, err = m.Sweep(context.Background())
	assert.ErrorContains(t, err, "db closed")
}

func TestTick_RecordsLastResult(t *testing.T) {
	rc := &racingCleaner{listed: []vault.Vault{{UserWallet: "ok"}}}
	m, err := New(rc, "sweeper", "@every 1m", discard())
	require.NoError(t, err)

	m.tick()
	assert.Len(t, m.Last().Closed, 1)

	m.Start()
	m.Stop()
}
