package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_ScenarioFiles(t *testing.T) {
	for _, name := range []string{"vault_lifecycle", "expired_cleanup"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("../../testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestMarshalTrace_Canonical(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{
		Step:    1,
		Time:    5,
		Op:      "revoke_access",
		Caller:  "alice",
		Owner:   "alice",
		Outcome: "NOT_FOUND",
	})

	got, err := MarshalTrace("tiny", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"tiny","trace":[{"args":{},"caller":"alice","op":"revoke_access","outcome":"NOT_FOUND","owner":"alice","step":1,"time":5}]}`,
		string(got))
}
