// Package monitor sweeps expired vaults on a cron schedule, closing each
// one through the public CleanupVault operation.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/roach88/ephvault/internal/vault"
)

// Cleaner is the subset of *vault.Service the monitor drives.
type Cleaner interface {
	Expired(ctx context.Context) ([]vault.Vault, error)
	CleanupVault(ctx context.Context, caller, owner vault.Identity) (vault.Vault, error)
}

// Result summarizes one sweep.
type Result struct {
	Closed  []vault.Vault
	Skipped int
	Failed  int
}

// Monitor runs Sweep on a schedule as the configured cleaner identity.
type Monitor struct {
	cron    *cron.Cron
	svc     Cleaner
	cleaner vault.Identity
	logger  *slog.Logger

	mu   sync.Mutex
	last Result
}

// New creates a Monitor. The schedule accepts standard five-field cron
// specs and descriptors such as "@every 1m".
func New(svc Cleaner, cleaner vault.Identity, schedule string, logger *slog.Logger) (*Monitor, error) {
	if cleaner == "" {
		return nil, fmt.Errorf("monitor: cleaner identity is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		svc:     svc,
		cleaner: cleaner,
		logger:  logger,
	}
	if _, err := m.cron.AddFunc(schedule, m.tick); err != nil {
		return nil, fmt.Errorf("monitor: schedule %q: %w", schedule, err)
	}
	return m, nil
}

// Start starts the cron scheduler.
func (m *Monitor) Start() {
	m.cron.Start()
	m.logger.Info("vault monitor started", "cleaner", m.cleaner)
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (m *Monitor) Stop() {
	<-m.cron.Stop().Done()
	m.logger.Info("vault monitor stopped")
}

// Last returns the result of the most recent scheduled sweep.
func (m *Monitor) Last() Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Monitor) tick() {
	res, err := m.Sweep(context.Background())
	if err != nil {
		m.logger.Error("vault sweep failed", "error", err)
		return
	}
	m.mu.Lock()
	m.last = res
	m.mu.Unlock()
}

// Sweep closes every vault that is expired right now. A vault that stops
// qualifying between listing and cleanup (reactivated, or already closed)
// is skipped; other per-vault failures are logged and counted.
func (m *Monitor) Sweep(ctx context.Context) (Result, error) {
	expired, err := m.svc.Expired(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list expired vaults: %w", err)
	}

	var res Result
	for _, v := range expired {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		closed, err := m.svc.CleanupVault(ctx, m.cleaner, v.UserWallet)
		switch vault.CodeOf(err) {
		case "":
			if err != nil {
				res.Failed++
				m.logger.Error("vault cleanup failed", "vault", v.Address, "error", err)
				continue
			}
			res.Closed = append(res.Closed, closed)
		case vault.ErrCodeNotFound, vault.ErrCodeStillActive, vault.ErrCodeNotExpired:
			res.Skipped++
			m.logger.Debug("vault no longer eligible", "vault", v.Address, "code", string(vault.CodeOf(err)))
		default:
			res.Failed++
			m.logger.Warn("vault cleanup rejected", "vault", v.Address, "error", err)
		}
	}

	m.logger.Info("vault sweep complete",
		"closed", len(res.Closed),
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, nil
}
