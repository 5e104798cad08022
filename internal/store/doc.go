// Package store provides the SQLite-backed vault.Backend.
//
// Three tables hold the ledger state:
//   - vaults: one row per live vault, keyed by derived address
//   - balances: wallet and escrow balances by account name
//   - events: append-only audit trail, retained after cleanup
//
// Every vault.Backend.Atomically call runs in exactly one SQL transaction.
// A unit of work that returns an error is rolled back, so a failed
// operation leaves records and balances untouched.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - A single open connection: SQLite allows one writer
//
// Amounts are uint64 and SQLite integers are signed, so amount columns hold
// the int64 bit pattern of the value. Never compare amounts in SQL.
package store
