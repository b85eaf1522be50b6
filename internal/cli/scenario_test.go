package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	scenarioDir = "../../testdata/scenarios"
	goldenDir   = "../harness/testdata/golden"
)

func TestScenario_AllPassAgainstGolden(t *testing.T) {
	files, err := filepath.Glob(filepath.Join(scenarioDir, "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	out, _, err := execute(t, "scenario", scenarioDir, "--golden", goldenDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ open_channel")
	assert.Contains(t, out, "✓ forbidden_plmns_timeout")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestScenario_Filter(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "scenario", scenarioDir, "--filter", "sim_*")
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   ScenarioSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "sim_unlock", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestScenario_SingleFileWithTrace(t *testing.T) {
	out, _, err := execute(t, "scenario", filepath.Join(scenarioDir, "forbidden_plmns_timeout.yaml"), "--trace")
	require.NoError(t, err)
	assert.Contains(t, out, "    diag: bounded_timeout GET_FORBIDDEN_PLMNS at=+2s tag=com.example.settings detail=2s")
	assert.Contains(t, out, "Scenario Summary: 1 passed, 0 failed, 1 total")
}

func TestScenario_UpdateWritesGolden(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(t, "scenario", filepath.Join(scenarioDir, "open_channel.yaml"), "--golden", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ open_channel (golden updated)")

	got, err := os.ReadFile(filepath.Join(dir, "open_channel.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(goldenDir, "open_channel.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	// The fresh golden now matches.
	_, _, err = execute(t, "scenario", filepath.Join(scenarioDir, "open_channel.yaml"), "--golden", dir)
	require.NoError(t, err)
}

func TestScenario_GoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "open_channel.golden"), []byte("scenario: something else\n"), 0644))

	out, _, err := execute(t, "scenario", filepath.Join(scenarioDir, "open_channel.yaml"), "--golden", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ open_channel")
	assert.Contains(t, out, "trace does not match golden file")
}

func TestScenario_MissingGoldenFails(t *testing.T) {
	out, _, err := execute(t, "scenario", filepath.Join(scenarioDir, "open_channel.yaml"), "--golden", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, "golden comparison error")
}

func TestScenario_FailingExpectation(t *testing.T) {
	path := writeFile(t, "wrong.yaml", `name: wrong
description: Expects a channel the modem never assigns.
modem:
  responses:
    OPEN_CHANNEL:
      - value: {channel: 3}
steps:
  - call: OPEN_CHANNEL
    expect: '{"channel":4}'
`)

	out, _, err := execute(t, "scenario", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "Scenario Summary: 0 passed, 1 failed, 1 total")
}

func TestScenario_FailingJSON(t *testing.T) {
	path := writeFile(t, "broken.yaml", "name: broken\n")

	out, _, err := execute(t, "--format", "json", "scenario", path)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeScenarioFailed, resp.Error.Code)
}

func TestScenario_CommandErrors(t *testing.T) {
	_, _, err := execute(t, "scenario", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "scenario", scenarioDir, "--update")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--update requires --golden")

	_, _, err = execute(t, "scenario", scenarioDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenario_NoneFound(t *testing.T) {
	out, _, err := execute(t, "scenario", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml", "c.txt", "sub/d.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, nil, 0644))
	}

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = findScenarioFiles(dir, "d")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "sub", "d.yaml")}, files)

	files, err = findScenarioFiles(filepath.Join(dir, "a.yaml"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml")}, files)
}
