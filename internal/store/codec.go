package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/ephvault/internal/vault"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// toDB stores u through its int64 bit pattern; database/sql rejects
// uint64 values with the high bit set.
func toDB(u uint64) int64 {
	return int64(u)
}

func fromDB(i int64) uint64 {
	return uint64(i)
}

const vaultColumns = `address, user_wallet, delegate_wallet, is_active, approved_amount,
	total_deposited, used_amount, last_activity, created_at, delegated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanVault(row scanner) (vault.Vault, error) {
	var (
		v                         vault.Vault
		address, user, delegate   string
		approved, deposited, used int64
	)
	err := row.Scan(
		&address,
		&user,
		&delegate,
		&v.IsActive,
		&approved,
		&deposited,
		&used,
		&v.LastActivity,
		&v.CreatedAt,
		&v.DelegatedAt,
	)
	if err != nil {
		return vault.Vault{}, err
	}
	v.Address = vault.Address(address)
	v.UserWallet = vault.Identity(user)
	v.DelegateWallet = vault.Identity(delegate)
	v.ApprovedAmount = fromDB(approved)
	v.TotalDeposited = fromDB(deposited)
	v.UsedAmount = fromDB(used)
	return v, nil
}

func loadVault(ctx context.Context, q querier, addr vault.Address) (*vault.Vault, error) {
	row := q.QueryRowContext(ctx, `SELECT `+vaultColumns+` FROM vaults WHERE address = ?`, string(addr))
	v, err := scanVault(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load vault %s: %w", addr, err)
	}
	return &v, nil
}

func readBalance(ctx context.Context, q querier, acct vault.Account) (uint64, error) {
	var amount int64
	err := q.QueryRowContext(ctx, `SELECT amount FROM balances WHERE account = ?`, string(acct)).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance %s: %w", acct, err)
	}
	return fromDB(amount), nil
}

const eventColumns = `seq, id, op_id, kind, vault, owner, actor, delegate, amount, fee, timestamp`

func scanEvent(row scanner) (vault.Event, error) {
	var (
		e                                  vault.Event
		kind, addr, owner, actor, delegate string
		amount, fee                        int64
	)
	err := row.Scan(
		&e.Seq,
		&e.ID,
		&e.OpID,
		&kind,
		&addr,
		&owner,
		&actor,
		&delegate,
		&amount,
		&fee,
		&e.Timestamp,
	)
	if err != nil {
		return vault.Event{}, fmt.Errorf("scan event: %w", err)
	}
	e.Kind = vault.EventKind(kind)
	e.Vault = vault.Address(addr)
	e.Owner = vault.Identity(owner)
	e.Actor = vault.Identity(actor)
	e.Delegate = vault.Identity(delegate)
	e.Amount = fromDB(amount)
	e.Fee = fromDB(fee)
	return e, nil
}
