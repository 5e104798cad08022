// Package harness runs vault scenarios as executable contract tests.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	start: 1700000000          # optional clock start (unix seconds)
//	policy:                    # optional, defaults to vault.DefaultPolicy
//	  expiry_threshold: 3600
//	  delegation_ttl: 3600
//	  cleaner_reward_bps: 0
//	setup:
//	  fund: { alice: 1000 }
//	flow:
//	  - as: alice
//	    op: create_vault
//	    args: { approved_amount: 1000 }
//	  - as: dave
//	    op: execute_trade
//	    owner: alice
//	    advance: 60
//	    args: { fee: 1, amount: 10 }
//	    expect:
//	      error: EXCEEDS_APPROVED
//	assertions:
//	  - type: trace_count
//	    op: execute_trade
//	    count: 1
//	  - type: final_state
//	    owner: alice
//	    expect: { used_amount: 0 }
//	  - type: balance
//	    wallet: alice
//	    amount: 1000
//
// # Assertion Types
//
//   - trace_contains: an op appears in the trace, optionally with an outcome
//   - trace_order: ops appear in the given order
//   - trace_count: an op appears exactly N times
//   - final_state: the owner's vault matches a subset of fields, or is absent
//   - balance: a wallet or escrow holds exactly the given amount
//
// # Deterministic Testing
//
// Every run uses a fresh vault.MemoryBackend, a testutil.ManualClock that
// only moves when a step says "advance", and testutil.SequentialIDs for
// operation IDs. The same scenario therefore always produces the same
// trace, which is what the golden files under testdata/golden pin down.
package harness
