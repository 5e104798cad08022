// Package vault implements the ephemeral vault: a per-user escrow record
// that grants a time-bounded, amount-bounded spending delegation to a
// third party.
//
// Every operation is one atomic state transition:
//
//  1. load the record at the address derived from the owner identity
//  2. resolve the caller's Role (owner, delegate, outsider)
//  3. run the guard table (state precondition, then role)
//  4. apply accounting with checked arithmetic
//  5. move funds through the ledger, write the record, append an event
//
// Steps 1-5 run inside a single Backend.Atomically call. Any error aborts
// the whole unit of work, so a rejected call leaves the record and every
// balance exactly as they were.
//
// # Lifecycle
//
//	(absent) --create--> Active --revoke--> Revoked --reactivate--> Active
//	                                           |
//	                                        cleanup (expired)
//	                                           v
//	                                        (absent)
//
// Revoking always clears the delegate. Reactivation never restores it; the
// owner must approve a delegate again before any trade can run.
//
// # Time
//
// Expiry is a pure function of (now, LastActivity, ExpiryThreshold) checked
// synchronously inside CleanupVault. The package never starts timers.
package vault
