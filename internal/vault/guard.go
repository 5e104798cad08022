package vault

// stateReq is the lifecycle precondition an operation demands.
type stateReq int

const (
	stateUnset stateReq = iota
	stateAbsent
	stateActive
	stateActiveDelegated
	stateRevoked
	stateExpired
)

type guardRule struct {
	state   stateReq
	allowed [numRoles]bool
	// roleFirst checks the caller's role before the lifecycle state of an
	// existing vault.
	roleFirst bool
}

// guardTable has one entry per Operation and one cell per Role. A row
// left at its zero value (stateUnset) rejects every caller.
var guardTable = [numOperations]guardRule{
	OpCreate: {
		state:   stateAbsent,
		allowed: [numRoles]bool{RoleOwner: true, RoleDelegate: false, RoleOutsider: false},
	},
	OpApproveDelegate: {
		state:     stateActive,
		allowed:   [numRoles]bool{RoleOwner: true, RoleDelegate: false, RoleOutsider: false},
		roleFirst: true,
	},
	OpAutoDeposit: {
		state:     stateActive,
		allowed:   [numRoles]bool{RoleOwner: true, RoleDelegate: false, RoleOutsider: false},
		roleFirst: true,
	},
	OpExecuteTrade: {
		state:   stateActiveDelegated,
		allowed: [numRoles]bool{RoleOwner: false, RoleDelegate: true, RoleOutsider: false},
	},
	OpRevokeAccess: {
		state:     stateActive,
		allowed:   [numRoles]bool{RoleOwner: true, RoleDelegate: false, RoleOutsider: false},
		roleFirst: true,
	},
	OpReactivate: {
		state:     stateRevoked,
		allowed:   [numRoles]bool{RoleOwner: true, RoleDelegate: false, RoleOutsider: false},
		roleFirst: true,
	},
	OpCleanup: {
		state:   stateExpired,
		allowed: [numRoles]bool{RoleOwner: false, RoleDelegate: true, RoleOutsider: true},
	},
}

// Authorize is the pure guard evaluated before any mutation.
//
// Owner-only operations check the caller's role before the lifecycle
// precondition. The rest check the precondition first, then the role.
// Trades finally check the delegation TTL. v is nil when no vault exists
// at the target address.
func Authorize(op Operation, role Role, v *Vault, now int64, p Policy) error {
	if op < 0 || op >= numOperations || role < 0 || role >= numRoles {
		return newError(ErrCodeUnauthorized, "no guard rule for %s as %s", op, role)
	}
	rule := guardTable[op]

	if rule.roleFirst && v != nil && !rule.allowed[role] {
		return newError(ErrCodeUnauthorized, "%s may not %s", role, op)
	}

	if err := checkState(rule.state, v, now, p); err != nil {
		return err
	}

	if !rule.allowed[role] {
		return newError(ErrCodeUnauthorized, "%s may not %s", role, op)
	}

	if op == OpExecuteTrade && p.DelegationTTL > 0 && Expired(now, v.DelegatedAt, p.DelegationTTL) {
		return newError(ErrCodeSessionExpired, "delegation approved at %d expired after %ds", v.DelegatedAt, p.DelegationTTL)
	}
	return nil
}

func checkState(req stateReq, v *Vault, now int64, p Policy) error {
	if req == stateUnset {
		return newError(ErrCodeUnauthorized, "operation has no guard rule")
	}
	if req == stateAbsent {
		if v != nil {
			return newError(ErrCodeAlreadyExists, "vault already exists for %s", v.UserWallet)
		}
		return nil
	}
	if v == nil {
		return newError(ErrCodeNotFound, "no vault at address")
	}

	switch req {
	case stateActive:
		if !v.IsActive {
			return newError(ErrCodeInvalidState, "vault is revoked")
		}
	case stateActiveDelegated:
		if !v.IsActive {
			return newError(ErrCodeInvalidState, "vault is revoked")
		}
		if !v.HasDelegate() {
			return newError(ErrCodeInvalidState, "no delegate approved")
		}
	case stateRevoked:
		if v.IsActive {
			return newError(ErrCodeInvalidState, "vault is already active")
		}
	case stateExpired:
		// Expiry first: a vault touched moments ago reports "wait longer"
		// whether or not it is still active.
		if !Expired(now, v.LastActivity, p.ExpiryThreshold) {
			return newError(ErrCodeNotExpired, "idle %ds of required %ds", max(now-v.LastActivity, 0), p.ExpiryThreshold)
		}
		if v.IsActive {
			return newError(ErrCodeStillActive, "vault is still active")
		}
	}
	return nil
}
