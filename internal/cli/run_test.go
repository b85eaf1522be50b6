package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phonebridge/internal/config"
	"github.com/roach88/phonebridge/internal/radio"
)

// serve runs "phonebridge run" with input on stdin.
func serve(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvVar, "")

	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "run"))
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_ServesEachLine(t *testing.T) {
	script := writeFile(t, "modem.yaml", channelScript)
	input := `# open, list, close
OPEN_CHANNEL {aid: A000000063504B43532D3135}
GET_OPEN_CHANNELS

CLOSE_CHANNEL {channel: 3}
GET_OPEN_CHANNELS
GET_OPEN_CHANNELS@phone1
`
	out, err := serve(t, input, "--script", script)
	require.NoError(t, err)

	want := `OPEN_CHANNEL phone0: {"channel":3,"status":"NO_ERROR","select_response":"9000"}
GET_OPEN_CHANNELS phone0: [3]
CLOSE_CHANNEL phone0: true
GET_OPEN_CHANNELS phone0: []
GET_OPEN_CHANNELS phone1: []
`
	assert.Equal(t, want, out)
}

func TestRun_BadLinesDoNotStopTheBridge(t *testing.T) {
	input := "BOGUS\nCLOSE_CHANNEL {nope: 1}\nGET_OPEN_CHANNELS\n"

	out, err := serve(t, input)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, "Error [E_INVALID_ARGUMENT]"))
	assert.Contains(t, out, `unknown opcode "BOGUS"`)
	assert.Contains(t, out, "field nope not found")
	assert.True(t, strings.HasSuffix(out, "GET_OPEN_CHANNELS phone0: []\n"), out)
}

func TestRun_IndeterminateIsReported(t *testing.T) {
	script := writeFile(t, "modem.yaml", channelScript)

	out, err := serve(t, "GET_FORBIDDEN_PLMNS\nGET_OPEN_CHANNELS\n", "--script", script, "--timeout", "50ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Error [E_INDETERMINATE]: GET_FORBIDDEN_PLMNS: result indeterminate")
	assert.Contains(t, out, "GET_OPEN_CHANNELS phone0: []")
}

func TestRun_JSONLines(t *testing.T) {
	out, err := serve(t, "GET_OPEN_CHANNELS\nBOGUS\n", "--format", "json")
	require.NoError(t, err)

	sc := bufio.NewScanner(strings.NewReader(out))
	var responses []CLIResponse
	for sc.Scan() {
		var resp CLIResponse
		require.NoError(t, json.Unmarshal(sc.Bytes(), &resp))
		responses = append(responses, resp)
	}
	require.Len(t, responses, 2)
	assert.Equal(t, "ok", responses[0].Status)
	assert.Equal(t, "error", responses[1].Status)
	assert.Equal(t, CodeInvalidArgument, responses[1].Error.Code)
}

func TestRun_EmptyInput(t *testing.T) {
	out, err := serve(t, "")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestParseCommandLine(t *testing.T) {
	cl, skip, err := parseCommandLine("  SET_CLIR@phone1 {mode: 2}  ")
	require.NoError(t, err)
	assert.False(t, skip)
	assert.Equal(t, radio.OpSetCLIR, cl.op)
	assert.Equal(t, radio.Instance("phone1"), cl.instance)
	assert.Equal(t, &radio.ModeArgs{Mode: 2}, cl.payload)

	cl, _, err = parseCommandLine("GET_CLIR")
	require.NoError(t, err)
	assert.Equal(t, radio.Instance(""), cl.instance)
	assert.Equal(t, &radio.NoArgs{}, cl.payload)

	for _, line := range []string{"", "   ", "# comment"} {
		_, skip, err := parseCommandLine(line)
		require.NoError(t, err)
		assert.True(t, skip, "%q", line)
	}

	_, skip, err = parseCommandLine("NOPE {}")
	assert.False(t, skip)
	require.Error(t, err)
}
