package vault

import (
	"fmt"

	"github.com/roach88/ephvault/internal/canon"
)

// Identity is a verified signer identity supplied by the ledger.
type Identity string

// Address is the deterministic storage location of a vault.
type Address string

// Account names a balance holder on the ledger: either an external wallet
// or a vault escrow.
type Account string

// AddressOf derives the vault address owned by user.
func AddressOf(user Identity) Address {
	return Address(canon.VaultAddress(string(user)))
}

// WalletAccount is the external balance of an identity.
func WalletAccount(id Identity) Account {
	return Account("wallet:" + canon.NormalizeIdentity(string(id)))
}

// EscrowAccount is the balance held by the vault at addr.
func EscrowAccount(addr Address) Account {
	return Account("escrow:" + string(addr))
}

// Vault is the persistent record for one user's vault.
type Vault struct {
	Address        Address  `json:"address"`
	UserWallet     Identity `json:"user_wallet"`
	DelegateWallet Identity `json:"delegate_wallet,omitempty"`
	IsActive       bool     `json:"is_active"`
	ApprovedAmount uint64   `json:"approved_amount"`
	TotalDeposited uint64   `json:"total_deposited"`
	UsedAmount     uint64   `json:"used_amount"`
	LastActivity   int64    `json:"last_activity"`
	CreatedAt      int64    `json:"created_at"`
	DelegatedAt    int64    `json:"delegated_at,omitempty"`
}

// HasDelegate reports whether a delegate is currently approved.
func (v Vault) HasDelegate() bool {
	return v.DelegateWallet != ""
}

// Remaining is the spend still available under the ceiling.
func (v Vault) Remaining() uint64 {
	if v.UsedAmount >= v.ApprovedAmount {
		return 0
	}
	return v.ApprovedAmount - v.UsedAmount
}

// Operation enumerates the mutating vault operations.
type Operation int

const (
	OpCreate Operation = iota
	OpApproveDelegate
	OpAutoDeposit
	OpExecuteTrade
	OpRevokeAccess
	OpReactivate
	OpCleanup

	numOperations
)

var operationNames = [numOperations]string{
	OpCreate:          "create_vault",
	OpApproveDelegate: "approve_delegate",
	OpAutoDeposit:     "auto_deposit",
	OpExecuteTrade:    "execute_trade",
	OpRevokeAccess:    "revoke_access",
	OpReactivate:      "reactivate_vault",
	OpCleanup:         "cleanup_vault",
}

func (op Operation) String() string {
	if op < 0 || op >= numOperations {
		return fmt.Sprintf("operation(%d)", int(op))
	}
	return operationNames[op]
}

// Operations lists every operation in declaration order.
func Operations() []Operation {
	ops := make([]Operation, 0, numOperations)
	for op := Operation(0); op < numOperations; op++ {
		ops = append(ops, op)
	}
	return ops
}

// ParseOperation maps an operation name back to its value.
func ParseOperation(name string) (Operation, error) {
	for op, n := range operationNames {
		if n == name {
			return Operation(op), nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", name)
}

// Role is the caller's relationship to a vault, resolved once per call.
type Role int

const (
	RoleOwner Role = iota
	RoleDelegate
	RoleOutsider

	numRoles
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleDelegate:
		return "delegate"
	case RoleOutsider:
		return "outsider"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ResolveRole classifies caller against v. A nil vault means nothing lives
// at the caller's derived address yet, so the caller is its would-be owner.
func ResolveRole(caller Identity, v *Vault) Role {
	switch {
	case v == nil:
		return RoleOwner
	case caller == v.UserWallet:
		return RoleOwner
	case v.HasDelegate() && caller == v.DelegateWallet:
		return RoleDelegate
	default:
		return RoleOutsider
	}
}
