package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ephvault/internal/vault"
)

// Scenario defines a conformance test scenario: a sequence of vault
// operations with expected outcomes, followed by assertions on the trace
// and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the initial clock reading. Zero means DefaultStart.
	Start int64 `yaml:"start,omitempty"`

	// Policy overrides vault.DefaultPolicy field by field.
	Policy *PolicySpec `yaml:"policy,omitempty"`

	// Setup establishes wallet balances before the flow.
	Setup Setup `yaml:"setup,omitempty"`

	// Flow contains the steps to execute, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// PolicySpec is the scenario form of vault.Policy. Nil fields keep defaults.
type PolicySpec struct {
	ExpiryThreshold  *int64  `yaml:"expiry_threshold,omitempty"`
	DelegationTTL    *int64  `yaml:"delegation_ttl,omitempty"`
	CleanerRewardBps *uint64 `yaml:"cleaner_reward_bps,omitempty"`
	FeeCollector     string  `yaml:"fee_collector,omitempty"`
	Venue            string  `yaml:"venue,omitempty"`
}

// Setup holds pre-flow state.
type Setup struct {
	// Fund credits wallet balances by identity.
	Fund map[string]uint64 `yaml:"fund,omitempty"`
}

// FlowStep invokes one vault operation.
type FlowStep struct {
	// As is the verified caller identity.
	As string `yaml:"as"`

	// Op is the operation name, e.g. "execute_trade".
	Op string `yaml:"op"`

	// Owner selects the vault. Defaults to As.
	Owner string `yaml:"owner,omitempty"`

	// Advance moves the clock forward by this many seconds before the step.
	Advance int64 `yaml:"advance,omitempty"`

	// Args carries operation arguments: approved_amount, delegate, amount, fee.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected step behavior.
type ExpectClause struct {
	// Error is the expected error code. Empty means success.
	Error string `yaml:"error,omitempty"`

	// Vault is a subset of fields the returned vault must match on success.
	Vault map[string]any `yaml:"vault,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the operation name (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Outcome optionally narrows trace_contains to OutcomeOK or an error code.
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Ops is the expected order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Owner selects the vault (final_state).
	Owner string `yaml:"owner,omitempty"`

	// Absent asserts that no vault exists for Owner (final_state).
	Absent bool `yaml:"absent,omitempty"`

	// Expect contains expected vault fields, subset match (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Wallet or Escrow names the balance holder by identity (balance).
	Wallet string `yaml:"wallet,omitempty"`
	Escrow string `yaml:"escrow,omitempty"`

	// Amount is the expected balance (balance).
	Amount uint64 `yaml:"amount,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertBalance       = "balance"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for name := range s.Setup.Fund {
		if name == "" {
			return fmt.Errorf("setup.fund: identity is required")
		}
	}

	for i, step := range s.Flow {
		if step.As == "" {
			return fmt.Errorf("flow[%d]: as is required", i)
		}
		if _, err := vault.ParseOperation(step.Op); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Advance < 0 {
			return fmt.Errorf("flow[%d]: advance must be non-negative", i)
		}
		if step.Expect != nil && step.Expect.Error != "" && len(step.Expect.Vault) > 0 {
			return fmt.Errorf("flow[%d].expect: error and vault are mutually exclusive", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Owner == "" {
			return fmt.Errorf("assertions[%d]: owner is required for final_state", index)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect or absent is required for final_state", index)
		}
	case AssertBalance:
		if (a.Wallet == "") == (a.Escrow == "") {
			return fmt.Errorf("assertions[%d]: exactly one of wallet or escrow is required for balance", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
