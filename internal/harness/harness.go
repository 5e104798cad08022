package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"

	"github.com/roach88/ephvault/internal/testutil"
	"github.com/roach88/ephvault/internal/vault"
)

// DefaultStart is the clock reading scenarios begin at unless they set start.
const DefaultStart = int64(1_700_000_000)

// Harness is the scenario execution environment.
type Harness struct {
	svc   *vault.Service
	clock *testutil.ManualClock
}

// Run executes a scenario against a fresh in-memory backend and returns
// the result. An error is returned only when the scenario itself cannot be
// executed (bad arguments, unexpected backend failure); a vault operation
// rejected with an error code is recorded in the trace.
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{Service: h.svc, Ctx: ctx}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	start := scenario.Start
	if start == 0 {
		start = DefaultStart
	}
	clock := testutil.NewManualClock(start)

	svc, err := vault.New(vault.NewMemoryBackend(),
		vault.WithClock(clock),
		vault.WithPolicy(scenario.Policy.resolve()),
		vault.WithOpIDs(testutil.NewSequentialIDs("op")),
		vault.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	)
	if err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	return &Harness{svc: svc, clock: clock}, nil
}

func (p *PolicySpec) resolve() vault.Policy {
	policy := vault.DefaultPolicy()
	if p == nil {
		return policy
	}
	if p.ExpiryThreshold != nil {
		policy.ExpiryThreshold = *p.ExpiryThreshold
	}
	if p.DelegationTTL != nil {
		policy.DelegationTTL = *p.DelegationTTL
	}
	if p.CleanerRewardBps != nil {
		policy.CleanerRewardBps = *p.CleanerRewardBps
	}
	if p.FeeCollector != "" {
		policy.FeeCollector = vault.Identity(p.FeeCollector)
	}
	if p.Venue != "" {
		policy.Venue = vault.Identity(p.Venue)
	}
	return policy
}

// executeSetup funds wallets in sorted identity order.
func (h *Harness) executeSetup(ctx context.Context, setup Setup) error {
	names := make([]string, 0, len(setup.Fund))
	for name := range setup.Fund {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if _, err := h.svc.Fund(ctx, vault.Identity(name), setup.Fund[name]); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		h.clock.Advance(step.Advance)

		op, err := vault.ParseOperation(step.Op)
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		owner := step.Owner
		if owner == "" {
			owner = step.As
		}
		args, err := normalizeArgs(op, step.Args)
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}

		event := TraceEvent{
			Step:    i + 1,
			Time:    h.clock.Now(),
			Op:      op.String(),
			Caller:  step.As,
			Owner:   owner,
			Args:    args,
			Outcome: OutcomeOK,
		}

		v, opErr := h.invoke(ctx, op, vault.Identity(step.As), vault.Identity(owner), args)
		if opErr != nil {
			code := vault.CodeOf(opErr)
			if code == "" {
				return fmt.Errorf("flow[%d] %s: %w", i, op, opErr)
			}
			event.Outcome = string(code)
		} else {
			event.Vault = snapshotVault(v)
		}
		result.AddTrace(event)

		checkExpect(i, step.Expect, event, result)
	}
	return nil
}

func (h *Harness) invoke(ctx context.Context, op vault.Operation, caller, owner vault.Identity, args map[string]any) (vault.Vault, error) {
	u := func(name string) uint64 { return args[name].(uint64) }

	switch op {
	case vault.OpCreate:
		return h.svc.Create(ctx, caller, u("approved_amount"))
	case vault.OpApproveDelegate:
		return h.svc.ApproveDelegate(ctx, caller, owner, vault.Identity(args["delegate"].(string)))
	case vault.OpAutoDeposit:
		return h.svc.AutoDeposit(ctx, caller, owner, u("amount"))
	case vault.OpExecuteTrade:
		return h.svc.ExecuteTrade(ctx, caller, owner, u("fee"), u("amount"))
	case vault.OpRevokeAccess:
		return h.svc.RevokeAccess(ctx, caller, owner)
	case vault.OpReactivate:
		return h.svc.ReactivateVault(ctx, caller, owner)
	case vault.OpCleanup:
		return h.svc.CleanupVault(ctx, caller, owner)
	}
	return vault.Vault{}, fmt.Errorf("unsupported operation %s", op)
}

// opArgs lists the arguments each operation takes and whether each is an
// amount (uint64) or an identity (string).
var opArgs = map[vault.Operation]map[string]bool{
	vault.OpCreate:          {"approved_amount": true},
	vault.OpApproveDelegate: {"delegate": false},
	vault.OpAutoDeposit:     {"amount": true},
	vault.OpExecuteTrade:    {"fee": true, "amount": true},
}

// normalizeArgs checks args against the operation's signature and converts
// amounts to uint64. Missing or unknown arguments are errors.
func normalizeArgs(op vault.Operation, raw map[string]any) (map[string]any, error) {
	want := opArgs[op]
	for name := range raw {
		if _, ok := want[name]; !ok {
			return nil, fmt.Errorf("%s: unknown argument %q", op, name)
		}
	}

	args := make(map[string]any, len(want))
	for name, isAmount := range want {
		val, ok := raw[name]
		if !ok {
			return nil, fmt.Errorf("%s: missing argument %q", op, name)
		}
		if isAmount {
			n, err := toUint64(val)
			if err != nil {
				return nil, fmt.Errorf("%s: argument %q: %w", op, name, err)
			}
			args[name] = n
			continue
		}
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("%s: argument %q must be a string, got %T", op, name, val)
		}
		args[name] = s
	}
	return args, nil
}

// toUint64 converts a YAML-decoded integer to an amount.
// Floats are rejected: amounts are integers in the smallest unit.
func toUint64(val any) (uint64, error) {
	switch v := val.(type) {
	case int:
		if v < 0 {
			return 0, fmt.Errorf("amount must be non-negative, got %d", v)
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("amount must be non-negative, got %d", v)
		}
		return uint64(v), nil
	case uint64:
		return v, nil
	case uint:
		return uint64(v), nil
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("amount %q: %w", v, err)
		}
		return n, nil
	case float32, float64:
		return 0, fmt.Errorf("floats are forbidden, got %v", v)
	default:
		return 0, fmt.Errorf("unsupported amount type %T", val)
	}
}

// snapshotVault renders v as the field map used in traces and assertions.
func snapshotVault(v vault.Vault) map[string]any {
	return map[string]any{
		"address":         string(v.Address),
		"user_wallet":     string(v.UserWallet),
		"delegate_wallet": string(v.DelegateWallet),
		"is_active":       v.IsActive,
		"approved_amount": v.ApprovedAmount,
		"total_deposited": v.TotalDeposited,
		"used_amount":     v.UsedAmount,
		"last_activity":   v.LastActivity,
		"created_at":      v.CreatedAt,
		"delegated_at":    v.DelegatedAt,
	}
}

func checkExpect(index int, expect *ExpectClause, event TraceEvent, result *Result) {
	want := OutcomeOK
	if expect != nil && expect.Error != "" {
		want = expect.Error
	}
	if event.Outcome != want {
		result.AddError(fmt.Sprintf("flow[%d] %s as %s: expected %s, got %s",
			index, event.Op, event.Caller, want, event.Outcome))
		return
	}
	if expect == nil || len(expect.Vault) == 0 {
		return
	}
	if msg := matchFields(event.Vault, expect.Vault); msg != "" {
		result.AddError(fmt.Sprintf("flow[%d] %s as %s: %s", index, event.Op, event.Caller, msg))
	}
}
