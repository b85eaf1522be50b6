package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cardScript = `
card:
  pin: "1234"
  puk: "12345678"
  pin_attempts: 3
`

func TestUnlock_PIN(t *testing.T) {
	script := writeFile(t, "modem.yaml", cardScript)

	out, _, err := execute(t, "--script", script, "unlock", "--pin", "1234")
	require.NoError(t, err)
	assert.Equal(t, "pin: SUCCESS (attempts remaining: 3)\n", out)
}

func TestUnlock_WrongPINExitsOne(t *testing.T) {
	script := writeFile(t, "modem.yaml", cardScript)

	out, _, err := execute(t, "--script", script, "unlock", "--pin", "0000")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "pin: PASSWORD_INCORRECT (attempts remaining: 2)")
	assert.Empty(t, out)
}

func TestUnlock_PUKJSON(t *testing.T) {
	script := writeFile(t, "modem.yaml", cardScript)

	out, _, err := execute(t, "--script", script, "--format", "json",
		"unlock", "--puk", "12345678", "--new-pin", "4321")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Credential        string `json:"credential"`
			Kind              string `json:"kind"`
			AttemptsRemaining int    `json:"attempts_remaining"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "puk", resp.Data.Credential)
	assert.Equal(t, "SUCCESS", resp.Data.Kind)
	assert.Equal(t, 10, resp.Data.AttemptsRemaining)
}

func TestUnlock_WatchdogDiagnostic(t *testing.T) {
	script := writeFile(t, "modem.yaml", `
card:
  pin: "1234"
  delay: 150ms
`)

	out, stderr, err := execute(t, "--script", script, "--watchdog-delay", "20ms", "unlock", "--pin", "1234")
	require.NoError(t, err)
	assert.Equal(t, "pin: SUCCESS (attempts remaining: 3)\n", out)
	assert.Contains(t, stderr, "kind=unlock_watchdog")
	assert.Contains(t, stderr, "opcode=supply_pin")
}

func TestUnlock_CommandErrors(t *testing.T) {
	script := writeFile(t, "modem.yaml", cardScript)
	noCard := writeFile(t, "modem.yaml", "responses: {}\n")

	tests := []struct {
		name string
		args []string
	}{
		{"no credential", []string{"--script", script, "unlock"}},
		{"pin and puk", []string{"--script", script, "unlock", "--pin", "1", "--puk", "2", "--new-pin", "3"}},
		{"puk without new pin", []string{"--script", script, "unlock", "--puk", "12345678"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
		})
	}

	t.Run("no card", func(t *testing.T) {
		_, _, err := execute(t, "--script", noCard, "unlock", "--pin", "1234")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "no card section")
	})

	t.Run("no script", func(t *testing.T) {
		_, _, err := execute(t, "unlock", "--pin", "1234")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}
