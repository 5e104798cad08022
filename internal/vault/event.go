package vault

import (
	"fmt"

	"github.com/roach88/ephvault/internal/canon"
)

// EventKind names what a successful operation did.
type EventKind string

const (
	EventVaultCreated     EventKind = "VaultCreated"
	EventDelegateApproved EventKind = "DelegateApproved"
	EventDeposited        EventKind = "Deposited"
	EventTradeExecuted    EventKind = "TradeExecuted"
	EventAccessRevoked    EventKind = "AccessRevoked"
	EventVaultReactivated EventKind = "VaultReactivated"
	EventVaultCleaned     EventKind = "VaultCleaned"
)

// Event is the audit record appended by every successful operation.
//
// Amount and Fee carry per-kind meaning:
//   - VaultCreated: Amount is the approved ceiling
//   - Deposited: Amount is the deposit
//   - TradeExecuted: Amount is the notional, Fee the trade fee
//   - VaultCleaned: Amount went to the owner, Fee to the cleaner
type Event struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	OpID      string    `json:"op_id"`
	Kind      EventKind `json:"kind"`
	Vault     Address   `json:"vault"`
	Owner     Identity  `json:"owner"`
	Actor     Identity  `json:"actor"`
	Delegate  Identity  `json:"delegate,omitempty"`
	Amount    uint64    `json:"amount,omitempty"`
	Fee       uint64    `json:"fee,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// EventID computes the content-addressed ID of e. Seq is excluded: it is
// assigned by the backend at append time.
func EventID(e Event) (string, error) {
	id, err := canon.ContentID(canon.DomainEvent, map[string]any{
		"op_id":     e.OpID,
		"kind":      string(e.Kind),
		"vault":     string(e.Vault),
		"owner":     string(e.Owner),
		"actor":     string(e.Actor),
		"delegate":  string(e.Delegate),
		"amount":    e.Amount,
		"fee":       e.Fee,
		"timestamp": e.Timestamp,
	})
	if err != nil {
		return "", fmt.Errorf("event id: %w", err)
	}
	return id, nil
}
