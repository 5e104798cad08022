package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/bits"

	"github.com/roach88/ephvault/internal/vault"
)

// tx is the vault.Tx view of one SQL transaction.
type tx struct {
	tx *sql.Tx
}

func (t *tx) Load(ctx context.Context, addr vault.Address) (*vault.Vault, error) {
	return loadVault(ctx, t.tx, addr)
}

func (t *tx) Insert(ctx context.Context, v vault.Vault) error {
	existing, err := t.Load(ctx, v.Address)
	if err != nil {
		return err
	}
	if existing != nil {
		return &vault.Error{
			Code:    vault.ErrCodeAlreadyExists,
			Message: fmt.Sprintf("address %s is occupied", v.Address),
		}
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO vaults (`+vaultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, vaultArgs(v)...)
	if err != nil {
		return fmt.Errorf("insert vault: %w", err)
	}
	return nil
}

func (t *tx) Update(ctx context.Context, v vault.Vault) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE vaults SET
			user_wallet = ?,
			delegate_wallet = ?,
			is_active = ?,
			approved_amount = ?,
			total_deposited = ?,
			used_amount = ?,
			last_activity = ?,
			created_at = ?,
			delegated_at = ?
		WHERE address = ?
	`, append(vaultArgs(v)[1:], string(v.Address))...)
	if err != nil {
		return fmt.Errorf("update vault: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update vault: %w", err)
	}
	if n == 0 {
		return &vault.Error{
			Code:    vault.ErrCodeNotFound,
			Message: fmt.Sprintf("no vault at %s", v.Address),
		}
	}
	return nil
}

func (t *tx) Delete(ctx context.Context, addr vault.Address) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM vaults WHERE address = ?`, string(addr)); err != nil {
		return fmt.Errorf("delete vault: %w", err)
	}
	return nil
}

func (t *tx) Balance(ctx context.Context, acct vault.Account) (uint64, error) {
	return readBalance(ctx, t.tx, acct)
}

func (t *tx) Transfer(ctx context.Context, from, to vault.Account, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}

	src, err := t.Balance(ctx, from)
	if err != nil {
		return err
	}
	if src < amount {
		return &vault.Error{
			Code:    vault.ErrCodeInsufficientFunds,
			Message: fmt.Sprintf("%s holds %d, needs %d", from, src, amount),
		}
	}
	dst, err := t.Balance(ctx, to)
	if err != nil {
		return err
	}
	credited, carry := bits.Add64(dst, amount, 0)
	if carry != 0 {
		return overflow(to)
	}

	if err := t.setBalance(ctx, from, src-amount); err != nil {
		return err
	}
	return t.setBalance(ctx, to, credited)
}

func (t *tx) Credit(ctx context.Context, acct vault.Account, amount uint64) error {
	bal, err := t.Balance(ctx, acct)
	if err != nil {
		return err
	}
	credited, carry := bits.Add64(bal, amount, 0)
	if carry != 0 {
		return overflow(acct)
	}
	return t.setBalance(ctx, acct, credited)
}

func (t *tx) AppendEvent(ctx context.Context, e vault.Event) (vault.Event, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO events
		(id, op_id, kind, vault, owner, actor, delegate, amount, fee, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.OpID,
		string(e.Kind),
		string(e.Vault),
		string(e.Owner),
		string(e.Actor),
		string(e.Delegate),
		toDB(e.Amount),
		toDB(e.Fee),
		e.Timestamp,
	)
	if err != nil {
		return vault.Event{}, fmt.Errorf("insert event: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return vault.Event{}, fmt.Errorf("insert event: %w", err)
	}
	e.Seq = seq
	return e, nil
}

func (t *tx) setBalance(ctx context.Context, acct vault.Account, amount uint64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO balances (account, amount) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET amount = excluded.amount
	`, string(acct), toDB(amount))
	if err != nil {
		return fmt.Errorf("set balance %s: %w", acct, err)
	}
	return nil
}

func vaultArgs(v vault.Vault) []any {
	return []any{
		string(v.Address),
		string(v.UserWallet),
		string(v.DelegateWallet),
		v.IsActive,
		toDB(v.ApprovedAmount),
		toDB(v.TotalDeposited),
		toDB(v.UsedAmount),
		v.LastActivity,
		v.CreatedAt,
		v.DelegatedAt,
	}
}

func overflow(acct vault.Account) error {
	return &vault.Error{
		Code:    vault.ErrCodeArithmeticOverflow,
		Message: fmt.Sprintf("balance of %s overflows", acct),
	}
}
