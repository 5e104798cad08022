package vault

import "context"

// Backend is the settlement collaborator: it stores vault records and
// balances and provides the atomic-commit boundary every operation runs in.
type Backend interface {
	// Atomically runs fn as one unit of work. If fn returns an error,
	// nothing it did through the Tx is visible afterwards.
	Atomically(ctx context.Context, fn func(Tx) error) error

	// Get returns the vault at addr, or nil if none exists.
	Get(ctx context.Context, addr Address) (*Vault, error)

	// ListInactive returns revoked vaults whose LastActivity is at or
	// before cutoff, ordered by address.
	ListInactive(ctx context.Context, cutoff int64) ([]Vault, error)

	// Events returns the events recorded for addr in Seq order.
	Events(ctx context.Context, addr Address) ([]Event, error)

	// Balance returns the ledger balance of acct.
	Balance(ctx context.Context, acct Account) (uint64, error)
}

// Tx is the view of the backend inside a unit of work.
type Tx interface {
	// Load returns the vault at addr, or nil if none exists.
	Load(ctx context.Context, addr Address) (*Vault, error)

	// Insert allocates a new record. It fails with AlreadyExists rather
	// than overwrite an occupied address.
	Insert(ctx context.Context, v Vault) error

	// Update overwrites an existing record.
	Update(ctx context.Context, v Vault) error

	// Delete reclaims the record at addr.
	Delete(ctx context.Context, addr Address) error

	// Balance returns the balance of acct as seen inside the unit of work.
	Balance(ctx context.Context, acct Account) (uint64, error)

	// Transfer moves amount from one account to another. It fails with
	// InsufficientFunds or ArithmeticOverflow and never partially applies.
	Transfer(ctx context.Context, from, to Account, amount uint64) error

	// Credit adds amount to acct from outside the ledger.
	Credit(ctx context.Context, acct Account, amount uint64) error

	// AppendEvent records e and returns it with its Seq assigned.
	AppendEvent(ctx context.Context, e Event) (Event, error)
}
