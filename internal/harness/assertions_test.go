package harness

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ephvault/internal/testutil"
	"github.com/roach88/ephvault/internal/vault"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Step: 1, Op: "create_vault", Caller: "alice", Outcome: OutcomeOK},
		{Step: 2, Op: "approve_delegate", Caller: "alice", Outcome: OutcomeOK},
		{Step: 3, Op: "execute_trade", Caller: "dave", Outcome: OutcomeOK},
		{Step: 4, Op: "execute_trade", Caller: "dave", Outcome: "EXCEEDS_APPROVED"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Op: "execute_trade"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: "execute_trade", Outcome: "EXCEEDS_APPROVED"}))
	assert.Error(t, assertTraceContains(trace, Assertion{Op: "execute_trade", Outcome: "UNAUTHORIZED"}))
	assert.Error(t, assertTraceContains(trace, Assertion{Op: "cleanup_vault"}))
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{"create_vault", "execute_trade"}}))

	err := assertTraceOrder(trace, Assertion{Ops: []string{"execute_trade", "create_vault"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Ops: []string{"create_vault", "revoke_access"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing op: revoke_access")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "execute_trade", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "cleanup_vault", Count: 0}))
	assert.Error(t, assertTraceCount(trace, Assertion{Op: "execute_trade", Count: 1}))
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		actual   any
		expected any
		want     bool
	}{
		{"uint64 vs int", uint64(5), 5, true},
		{"int64 vs int", int64(-3), -3, true},
		{"max uint64", uint64(18446744073709551615), uint64(18446744073709551615), true},
		{"different numbers", uint64(5), 6, false},
		{"number vs string", uint64(5), "5", false},
		{"strings", "dave", "dave", true},
		{"bools", true, true, true},
		{"bool mismatch", false, true, false},
		{"nil both", nil, nil, true},
		{"nil one", nil, "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valuesEqual(tt.actual, tt.expected))
		})
	}
}

func TestMatchFields(t *testing.T) {
	actual := map[string]any{"used_amount": uint64(7), "is_active": true}

	assert.Empty(t, matchFields(actual, map[string]any{"used_amount": 7}))
	assert.Contains(t, matchFields(actual, map[string]any{"missing": 1}), "not present")
	assert.Contains(t, matchFields(actual, map[string]any{"is_active": false}), "is_active")
}

func newAssertionContext(t *testing.T) *AssertionContext {
	t.Helper()
	svc, err := vault.New(vault.NewMemoryBackend(),
		vault.WithClock(testutil.NewManualClock(DefaultStart)),
		vault.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.Fund(ctx, "alice", 100)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alice", 50)
	require.NoError(t, err)
	_, err = svc.AutoDeposit(ctx, "alice", "alice", 40)
	require.NoError(t, err)
	return &AssertionContext{Service: svc, Ctx: ctx}
}

func TestAssertFinalState(t *testing.T) {
	actx := newAssertionContext(t)

	assert.NoError(t, assertFinalState(actx.Ctx, actx.Service, Assertion{
		Owner:  "alice",
		Expect: map[string]any{"approved_amount": 50, "total_deposited": 40},
	}))
	assert.Error(t, assertFinalState(actx.Ctx, actx.Service, Assertion{
		Owner:  "alice",
		Expect: map[string]any{"approved_amount": 51},
	}))
	assert.Error(t, assertFinalState(actx.Ctx, actx.Service, Assertion{Owner: "alice", Absent: true}))
	assert.NoError(t, assertFinalState(actx.Ctx, actx.Service, Assertion{Owner: "bob", Absent: true}))
	assert.Error(t, assertFinalState(actx.Ctx, actx.Service, Assertion{
		Owner:  "bob",
		Expect: map[string]any{"approved_amount": 1},
	}))
}

func TestAssertBalance(t *testing.T) {
	actx := newAssertionContext(t)

	assert.NoError(t, assertBalance(actx.Ctx, actx.Service, Assertion{Wallet: "alice", Amount: 60}))
	assert.NoError(t, assertBalance(actx.Ctx, actx.Service, Assertion{Escrow: "alice", Amount: 40}))

	err := assertBalance(actx.Ctx, actx.Service, Assertion{Wallet: "alice", Amount: 61})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet of alice = 60")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	for _, e := range sampleTrace() {
		result.AddTrace(e)
	}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Op: "execute_trade", Count: 2},
		{Type: AssertTraceContains, Op: "revoke_access"},
		{Type: AssertFinalState, Owner: "alice", Absent: true},
		{Type: "vibes"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "revoke_access")
	assert.Contains(t, errs[1], "requires service context")
	assert.Contains(t, errs[2], `unknown assertion type "vibes"`)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "2 occurrences of execute_trade",
		Actual:   "1 occurrences",
		Trace:    sampleTrace()[:1],
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 2 occurrences of execute_trade")
	assert.Contains(t, msg, "[1] create_vault as alice -> ok")
}
