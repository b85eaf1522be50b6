package harness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_FailingScenarioSkipsComparison(t *testing.T) {
	s := mustParse(t, `
name: not_a_golden
description: the expectation fails so no golden file is consulted
modem:
  responses:
    GET_MODEM_STATUS:
      - value: true
steps:
  - call: GET_MODEM_STATUS
    expect: "false"
`)

	err := RunWithGolden(t, s)
	require.ErrorContains(t, err, "scenario not_a_golden failed")
}

func TestAssertGolden_FromResult(t *testing.T) {
	r := NewResult()
	r.AddTrace("scenario: sim_unlock")
	for _, line := range []string{
		"step 1: unlock_pin -> PASSWORD_INCORRECT attempts=2",
		"step 2: unlock_pin -> PASSWORD_INCORRECT attempts=1",
		"step 3: unlock_pin -> PASSWORD_INCORRECT attempts=0",
		"step 4: unlock_pin -> PASSWORD_INCORRECT attempts=0",
		"step 5: unlock_puk -> SUCCESS attempts=10",
		"step 6: unlock_pin -> SUCCESS attempts=3",
	} {
		r.AddTrace(line)
	}

	AssertGolden(t, "sim_unlock", r)
}
