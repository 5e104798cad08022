package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, body string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(body))
	require.NoError(t, err)
	return s
}

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(mustParse(t, minimalScenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	event := result.Trace[0]
	assert.Equal(t, 1, event.Step)
	assert.Equal(t, DefaultStart, event.Time)
	assert.Equal(t, OutcomeOK, event.Outcome)
	assert.Equal(t, uint64(10), event.Vault["approved_amount"])
	assert.Equal(t, map[string]any{"approved_amount": uint64(10)}, event.Args)
}

func TestRun_UnexpectedOutcomeFails(t *testing.T) {
	s := mustParse(t, `
name: wrong
description: "Expects success, gets rejected"
flow:
  - { as: alice, op: revoke_access }
`)
	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected ok, got NOT_FOUND")
	assert.Equal(t, "NOT_FOUND", result.Trace[0].Outcome)
	assert.Nil(t, result.Trace[0].Vault)
}

func TestRun_ExpectVaultMismatch(t *testing.T) {
	s := mustParse(t, `
name: mismatch
description: "Wrong ceiling expected"
flow:
  - as: alice
    op: create_vault
    args: { approved_amount: 10 }
    expect:
      vault: { approved_amount: 11 }
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `field "approved_amount" = 10, expected 11`)
}

func TestRun_AdvanceMovesClock(t *testing.T) {
	s := mustParse(t, `
name: clock
description: "Advance before each step"
start: 100
flow:
  - { as: alice, op: create_vault, args: { approved_amount: 1 } }
  - { as: alice, op: revoke_access, advance: 30 }
  - { as: alice, op: reactivate_vault, advance: 5 }
`)
	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	times := []int64{}
	for _, e := range result.Trace {
		times = append(times, e.Time)
	}
	assert.Equal(t, []int64{100, 130, 135}, times)
	assert.Equal(t, int64(135), result.Trace[2].Vault["last_activity"])
}

func TestRun_BadArguments(t *testing.T) {
	tests := []struct {
		name string
		step string
		want string
	}{
		{"missing", "{ as: a, op: create_vault }", `missing argument "approved_amount"`},
		{"unknown", "{ as: a, op: revoke_access, args: { amount: 1 } }", `unknown argument "amount"`},
		{"negative", "{ as: a, op: create_vault, args: { approved_amount: -1 } }", "non-negative"},
		{"float", "{ as: a, op: create_vault, args: { approved_amount: 1.5 } }", "floats are forbidden"},
		{"delegate type", "{ as: a, op: approve_delegate, args: { delegate: 7 } }", "must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustParse(t, "name: n\ndescription: d\nflow:\n  - "+tt.step+"\n")
			_, err := Run(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_InvalidPolicy(t *testing.T) {
	s := mustParse(t, `
name: bad_policy
description: "Reward above 100%"
policy: { cleaner_reward_bps: 20000 }
flow:
  - { as: alice, op: create_vault, args: { approved_amount: 1 } }
`)
	_, err := Run(s)
	assert.ErrorContains(t, err, "invalid policy")
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("../../testdata/scenarios/vault_lifecycle.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_FreshBackendPerRun(t *testing.T) {
	s := mustParse(t, minimalScenario)

	for i := 0; i < 2; i++ {
		result, err := Run(s)
		require.NoError(t, err)
		assert.True(t, result.Pass, "run %d: an earlier run leaked state: %v", i, result.Errors)
	}
}

func TestRun_ScenarioFiles(t *testing.T) {
	for _, name := range []string{"vault_lifecycle", "expired_cleanup"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("../../testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)
			assert.Equal(t, name, s.Name)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
