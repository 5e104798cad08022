package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/ephvault/internal/canon"
)

// Service applies vault operations against a Backend.
//
// Service holds no per-vault state; operations on different vaults share
// nothing but the backend's commit boundary.
type Service struct {
	backend Backend
	clock   Clock
	policy  Policy
	ids     OpIDGenerator
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithPolicy sets expiry, delegation and settlement tunables.
// Default: DefaultPolicy().
func WithPolicy(p Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithOpIDs sets the operation ID generator. Default: UUIDv7Generator.
func WithOpIDs(g OpIDGenerator) Option {
	return func(s *Service) {
		s.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service over backend.
func New(backend Backend, opts ...Option) (*Service, error) {
	if backend == nil {
		return nil, errors.New("vault: backend is required")
	}
	s := &Service{
		backend: backend,
		clock:   SystemClock{},
		policy:  DefaultPolicy(),
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.policy.Validate(); err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	return s, nil
}

// Policy returns the policy the service enforces.
func (s *Service) Policy() Policy {
	return s.policy
}

// Create allocates the caller's vault with the given spend ceiling.
func (s *Service) Create(ctx context.Context, caller Identity, approvedAmount uint64) (Vault, error) {
	return s.execute(ctx, OpCreate, caller, caller, func(ctx context.Context, tx Tx, v *Vault, now int64) (Event, error) {
		*v = Vault{
			Address:        AddressOf(normalize(caller)),
			UserWallet:     normalize(caller),
			IsActive:       true,
			ApprovedAmount: approvedAmount,
			LastActivity:   now,
			CreatedAt:      now,
		}
		if err := tx.Insert(ctx, *v); err != nil {
			return Event{}, err
		}
		return Event{Kind: EventVaultCreated, Amount: approvedAmount}, nil
	})
}

// ApproveDelegate authorizes delegate to trade from owner's vault. An
// existing delegate is replaced; UsedAmount carries over.
func (s *Service) ApproveDelegate(ctx context.Context, caller, owner, delegate Identity) (Vault, error) {
	delegate = normalize(delegate)
	return s.execute(ctx, OpApproveDelegate, caller, owner, func(ctx context.Context, tx Tx, v *Vault, now int64) (Event, error) {
		if delegate == "" {
			return Event{}, newError(ErrCodeInvalidArgument, "delegate identity is empty")
		}
		if delegate == v.UserWallet {
			return Event{}, newError(ErrCodeInvalidArgument, "owner cannot delegate to itself")
		}
		v.DelegateWallet = delegate
		v.DelegatedAt = now
		v.LastActivity = now
		if err := tx.Update(ctx, *v); err != nil {
			return Event{}, err
		}
		return Event{Kind: EventDelegateApproved, Delegate: delegate}, nil
	})
}

// AutoDeposit moves amount from the owner's wallet into the vault escrow.
func (s *Service) AutoDeposit(ctx context.Context, caller, owner Identity, amount uint64) (Vault, error) {
	return s.execute(ctx, OpAutoDeposit, caller, owner, func(ctx context.Context, tx Tx, v *Vault, now int64) (Event, error) {
		if err := applyDeposit(v, amount, now); err != nil {
			return Event{}, err
		}
		if err := tx.Transfer(ctx, WalletAccount(v.UserWallet), EscrowAccount(v.Address), amount); err != nil {
			return Event{}, err
		}
		if err := tx.Update(ctx, *v); err != nil {
			return Event{}, err
		}
		return Event{Kind: EventDeposited, Amount: amount}, nil
	})
}

// ExecuteTrade charges fee+amount to the delegation and settles it from
// escrow: amount to the venue, fee to the fee collector.
func (s *Service) ExecuteTrade(ctx context.Context, caller, owner Identity, fee, amount uint64) (Vault, error) {
	return s.execute(ctx, OpExecuteTrade, caller, owner, func(ctx context.Context, tx Tx, v *Vault, now int64) (Event, error) {
		if _, err := applyTrade(v, fee, amount, now); err != nil {
			return Event{}, err
		}
		escrow := EscrowAccount(v.Address)
		if err := tx.Transfer(ctx, escrow, WalletAccount(s.policy.Venue), amount); err != nil {
			return Event{}, err
		}
		if err := tx.Transfer(ctx, escrow, WalletAccount(s.policy.FeeCollector), fee); err != nil {
			return Event{}, err
		}
		if err := tx.Update(ctx, *v); err != nil {
			return Event{}, err
		}
		return Event{Kind: EventTradeExecuted, Delegate: v.DelegateWallet, Amount: amount, Fee: fee}, nil
	})
}

// RevokeAccess deactivates the vault and clears the delegate.
func (s *Service) RevokeAccess(ctx context.Context, caller, owner Identity) (Vault, error) {
	return s.execute(ctx, OpRevokeAccess, caller, owner, func(ctx context.Context, tx Tx, v *Vault, now int64) (Event, error) {
		revoked := v.DelegateWallet
		v.IsActive = false
		v.DelegateWallet = ""
		v.DelegatedAt = 0
		v.LastActivity = now
		if err := tx.Update(ctx, *v); err != nil {
			return Event{}, err
		}
		return Event{Kind: EventAccessRevoked, Delegate: revoked}, nil
	})
}

// ReactivateVault reactivates a revoked vault. No delegate is restored.
func (s *Service) ReactivateVault(ctx context.Context, caller, owner Identity) (Vault, error) {
	return s.execute(ctx, OpReactivate, caller, owner, func(ctx context.Context, tx Tx, v *Vault, now int64) (Event, error) {
		v.IsActive = true
		v.LastActivity = now
		if err := tx.Update(ctx, *v); err != nil {
			return Event{}, err
		}
		return Event{Kind: EventVaultReactivated}, nil
	})
}

// CleanupVault closes an expired, revoked vault. The residual escrow goes
// to the owner, less the configured cleaner reward, and the address is
// freed for a future Create. The returned Vault is the record as it was
// when closed.
func (s *Service) CleanupVault(ctx context.Context, caller, owner Identity) (Vault, error) {
	return s.execute(ctx, OpCleanup, caller, owner, func(ctx context.Context, tx Tx, v *Vault, now int64) (Event, error) {
		escrow := EscrowAccount(v.Address)
		residual, err := tx.Balance(ctx, escrow)
		if err != nil {
			return Event{}, fmt.Errorf("read escrow: %w", err)
		}
		toOwner, toCleaner := splitResidual(residual, s.policy.CleanerRewardBps)
		if err := tx.Transfer(ctx, escrow, WalletAccount(v.UserWallet), toOwner); err != nil {
			return Event{}, err
		}
		if err := tx.Transfer(ctx, escrow, WalletAccount(normalize(caller)), toCleaner); err != nil {
			return Event{}, err
		}
		if err := tx.Delete(ctx, v.Address); err != nil {
			return Event{}, err
		}
		return Event{Kind: EventVaultCleaned, Amount: toOwner, Fee: toCleaner}, nil
	})
}

// Get returns owner's vault or a NotFound error.
func (s *Service) Get(ctx context.Context, owner Identity) (Vault, error) {
	addr := AddressOf(normalize(owner))
	v, err := s.backend.Get(ctx, addr)
	if err != nil {
		return Vault{}, fmt.Errorf("get vault: %w", err)
	}
	if v == nil {
		return Vault{}, &Error{Code: ErrCodeNotFound, Message: "no vault for " + string(owner), Vault: addr}
	}
	return *v, nil
}

// GetByAddress returns the vault stored at addr or a NotFound error.
func (s *Service) GetByAddress(ctx context.Context, addr Address) (Vault, error) {
	v, err := s.backend.Get(ctx, addr)
	if err != nil {
		return Vault{}, fmt.Errorf("get vault: %w", err)
	}
	if v == nil {
		return Vault{}, &Error{Code: ErrCodeNotFound, Message: "no vault at " + string(addr), Vault: addr}
	}
	return *v, nil
}

// Events returns the audit trail at owner's address, including events of
// vaults previously cleaned up there.
func (s *Service) Events(ctx context.Context, owner Identity) ([]Event, error) {
	events, err := s.backend.Events(ctx, AddressOf(normalize(owner)))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Expired lists vaults eligible for CleanupVault right now.
func (s *Service) Expired(ctx context.Context) ([]Vault, error) {
	now := s.clock.Now()
	vaults, err := s.backend.ListInactive(ctx, now-s.policy.ExpiryThreshold)
	if err != nil {
		return nil, fmt.Errorf("list inactive vaults: %w", err)
	}
	out := vaults[:0]
	for _, v := range vaults {
		if Expired(now, v.LastActivity, s.policy.ExpiryThreshold) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Fund credits an external wallet. It stands in for funds arriving from
// outside the ledger.
func (s *Service) Fund(ctx context.Context, id Identity, amount uint64) (uint64, error) {
	acct := WalletAccount(id)
	var bal uint64
	err := s.backend.Atomically(ctx, func(tx Tx) error {
		if err := tx.Credit(ctx, acct, amount); err != nil {
			return err
		}
		var err error
		bal, err = tx.Balance(ctx, acct)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("fund %s: %w", id, err)
	}
	s.logger.Info("wallet funded", "account", acct, "amount", amount, "balance", bal)
	return bal, nil
}

// WalletBalance returns the external balance of id.
func (s *Service) WalletBalance(ctx context.Context, id Identity) (uint64, error) {
	return s.backend.Balance(ctx, WalletAccount(id))
}

// EscrowBalance returns the funds held by owner's vault.
func (s *Service) EscrowBalance(ctx context.Context, owner Identity) (uint64, error) {
	return s.backend.Balance(ctx, EscrowAccount(AddressOf(normalize(owner))))
}

type mutation func(ctx context.Context, tx Tx, v *Vault, now int64) (Event, error)

// execute runs one operation as a single unit of work: load, guard,
// mutate, append event. mutate receives a copy of the stored record and
// is responsible for persisting it.
func (s *Service) execute(ctx context.Context, op Operation, caller, owner Identity, mutate mutation) (Vault, error) {
	caller = normalize(caller)
	owner = normalize(owner)
	addr := AddressOf(owner)

	if caller == "" || owner == "" {
		return Vault{}, s.reject(op, caller, addr, newError(ErrCodeInvalidArgument, "caller and owner identities are required"))
	}

	now := s.clock.Now()
	opID := s.ids.Generate()

	var out Vault
	err := s.backend.Atomically(ctx, func(tx Tx) error {
		cur, err := tx.Load(ctx, addr)
		if err != nil {
			return fmt.Errorf("load vault: %w", err)
		}

		role := ResolveRole(caller, cur)
		if err := Authorize(op, role, cur, now, s.policy); err != nil {
			return err
		}

		var work Vault
		if cur != nil {
			work = *cur
		}
		ev, err := mutate(ctx, tx, &work, now)
		if err != nil {
			return err
		}

		ev.OpID = opID
		ev.Vault = addr
		ev.Owner = owner
		ev.Actor = caller
		ev.Timestamp = now
		if ev.ID, err = EventID(ev); err != nil {
			return err
		}
		if _, err := tx.AppendEvent(ctx, ev); err != nil {
			return fmt.Errorf("append event: %w", err)
		}

		out = work
		return nil
	})
	if err != nil {
		return Vault{}, s.reject(op, caller, addr, err)
	}

	s.logger.Info("vault operation applied",
		"op", op.String(),
		"op_id", opID,
		"vault", addr,
		"caller", caller,
	)
	return out, nil
}

// reject stamps call context onto vault errors and logs the rejection.
func (s *Service) reject(op Operation, caller Identity, addr Address, err error) error {
	var ve *Error
	if errors.As(err, &ve) {
		stamped := *ve
		stamped.Op = op
		stamped.Vault = addr
		stamped.Caller = caller
		s.logger.Debug("vault operation rejected",
			"op", op.String(),
			"vault", addr,
			"caller", caller,
			"code", string(stamped.Code),
		)
		return &stamped
	}
	s.logger.Error("vault operation failed",
		"op", op.String(),
		"vault", addr,
		"caller", caller,
		"error", err,
	)
	return fmt.Errorf("%s: %w", op, err)
}

func normalize(id Identity) Identity {
	return Identity(canon.NormalizeIdentity(string(id)))
}
