package store

import (
	"context"
	"fmt"

	"github.com/roach88/ephvault/internal/vault"
)

// Get implements vault.Backend.
func (s *Store) Get(ctx context.Context, addr vault.Address) (*vault.Vault, error) {
	return loadVault(ctx, s.db, addr)
}

// Balance implements vault.Backend.
func (s *Store) Balance(ctx context.Context, acct vault.Account) (uint64, error) {
	return readBalance(ctx, s.db, acct)
}

// ListInactive implements vault.Backend.
// Results are ordered by address for deterministic sweeps.
func (s *Store) ListInactive(ctx context.Context, cutoff int64) ([]vault.Vault, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+vaultColumns+`
		FROM vaults
		WHERE is_active = 0 AND last_activity <= ?
		ORDER BY address COLLATE BINARY ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query inactive vaults: %w", err)
	}
	defer rows.Close()

	vaults := []vault.Vault{}
	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vault: %w", err)
		}
		vaults = append(vaults, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vaults: %w", err)
	}
	return vaults, nil
}

// Events implements vault.Backend.
//
// Returns an empty slice (not nil) if no events exist for addr.
func (s *Store) Events(ctx context.Context, addr vault.Address) ([]vault.Event, error) {
	return s.queryEvents(ctx, `WHERE vault = ?`, string(addr))
}

// EventsForOp returns the events written by one operation.
func (s *Store) EventsForOp(ctx context.Context, opID string) ([]vault.Event, error) {
	return s.queryEvents(ctx, `WHERE op_id = ?`, opID)
}

func (s *Store) queryEvents(ctx context.Context, where string, args ...any) ([]vault.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		`+where+`
		ORDER BY seq ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []vault.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
