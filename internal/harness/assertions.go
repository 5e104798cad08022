package harness

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/ephvault/internal/vault"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s as %s -> %s\n", event.Step, event.Op, event.Caller, event.Outcome)
		}
	}

	return buf.String()
}

// assertTraceContains checks that a step with the given op, and outcome if
// set, appears in the trace.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Op != assertion.Op {
			continue
		}
		if assertion.Outcome == "" || assertion.Outcome == event.Outcome {
			return nil
		}
	}

	expected := "op " + assertion.Op
	if assertion.Outcome != "" {
		expected += " with outcome " + assertion.Outcome
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that ops first appear in the specified order.
// Intervening steps are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Op]; !seen {
			positions[event.Op] = i + 1 // 1-indexed for readability
		}
	}

	for _, op := range assertion.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", assertion.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Ops); i++ {
		prev := assertion.Ops[i-1]
		curr := assertion.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that op appears exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == assertion.Op {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks the owner's vault against expected fields using
// subset semantics, or checks that it is absent.
func assertFinalState(ctx context.Context, svc *vault.Service, assertion Assertion) error {
	v, err := svc.Get(ctx, vault.Identity(assertion.Owner))
	if vault.CodeOf(err) == vault.ErrCodeNotFound {
		if assertion.Absent {
			return nil
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("vault for %s", assertion.Owner),
			Actual:   "vault not found",
		}
	}
	if err != nil {
		return fmt.Errorf("final_state %s: %w", assertion.Owner, err)
	}
	if assertion.Absent {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("no vault for %s", assertion.Owner),
			Actual:   fmt.Sprintf("vault %s exists", v.Address),
		}
	}

	if msg := matchFields(snapshotVault(v), assertion.Expect); msg != "" {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("vault for %s matching %v", assertion.Owner, assertion.Expect),
			Actual:   msg,
		}
	}
	return nil
}

// assertBalance checks a wallet or escrow balance exactly.
func assertBalance(ctx context.Context, svc *vault.Service, assertion Assertion) error {
	var (
		bal  uint64
		err  error
		desc string
	)
	if assertion.Wallet != "" {
		desc = "wallet of " + assertion.Wallet
		bal, err = svc.WalletBalance(ctx, vault.Identity(assertion.Wallet))
	} else {
		desc = "escrow of " + assertion.Escrow
		bal, err = svc.EscrowBalance(ctx, vault.Identity(assertion.Escrow))
	}
	if err != nil {
		return fmt.Errorf("balance %s: %w", desc, err)
	}
	if bal != assertion.Amount {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("%s = %d", desc, assertion.Amount),
			Actual:   fmt.Sprintf("%s = %d", desc, bal),
		}
	}
	return nil
}

// matchFields checks that actual contains every expected field (subset
// match). It returns a description of the first mismatch, or "".
func matchFields(actual, expected map[string]any) string {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		actualVal, exists := actual[key]
		if !exists {
			return fmt.Sprintf("field %q not present", key)
		}
		if !valuesEqual(actualVal, expected[key]) {
			return fmt.Sprintf("field %q = %v, expected %v", key, actualVal, expected[key])
		}
	}
	return ""
}

// valuesEqual compares two values for equality. Integers compare by value
// regardless of their Go type, since YAML decodes to int while vault fields
// are int64 or uint64.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}

	a, aInt := integerString(actual)
	e, eInt := integerString(expected)
	if aInt || eInt {
		return aInt && eInt && a == e
	}

	return reflect.DeepEqual(actual, expected)
}

func integerString(v any) (string, bool) {
	switch n := v.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint:
		return strconv.FormatUint(uint64(n), 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	}
	return "", false
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Service *vault.Service
	Ctx     context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides service access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState, AssertBalance:
			if actx == nil || actx.Service == nil {
				err = fmt.Errorf("assertion[%d]: %s requires service context", i, assertion.Type)
			} else if assertion.Type == AssertFinalState {
				err = assertFinalState(actx.Ctx, actx.Service, assertion)
			} else {
				err = assertBalance(actx.Ctx, actx.Service, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
