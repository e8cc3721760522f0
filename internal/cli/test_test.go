package cli

import (
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: place_and_name
description: "Place one anchor and name it"
steps:
  - action: place
    pose: [0, 0, -1]
  - action: confirm_name
    name: Desk
assertions:
  - type: event_count
    kind: AnchorNamed
    count: 1
`

const failingScenario = `name: wrong_count
description: "Expects a name that is never confirmed"
steps:
  - action: place
    pose: [0, 0, -1]
assertions:
  - type: event_count
    kind: AnchorNamed
    count: 1
`

func writeScenario(t *testing.T, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0644))
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, "", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, "", "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "", "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	writeScenario(t, scenarios, "place_and_name.yaml", passingScenario)

	out, err := execute(t, "", "test", scenarios, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ place_and_name (golden updated)")

	golden, err := os.ReadFile(filepath.Join(root, "golden", "place_and_name.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `2 AnchorNamed {"anchor":1,"name":"Desk","status":"Placed"}`)

	out, err = execute(t, "", "test", scenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ place_and_name")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	require.NoError(t, os.WriteFile(filepath.Join(root, "golden", "place_and_name.golden"), []byte("1 Notice {}\n"), 0644))
	out, err = execute(t, "", "test", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_FailingAssertionJSON(t *testing.T) {
	scenarios := filepath.Join(t.TempDir(), "scenarios")
	writeScenario(t, scenarios, "wrong_count.yaml", failingScenario)
	writeScenario(t, scenarios, "place_and_name.yaml", passingScenario)

	out, err := execute(t, "", "--format", "json", "test", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string     `json:"code"`
			Details TestResult `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, resp.Error.Details.Passed)
	assert.Equal(t, 1, resp.Error.Details.Failed)
}

func TestTestCommand_Filter(t *testing.T) {
	scenarios := filepath.Join(t.TempDir(), "scenarios")
	writeScenario(t, scenarios, "wrong_count.yaml", failingScenario)
	writeScenario(t, scenarios, "place_and_name.yaml", passingScenario)

	out, err := execute(t, "", "test", scenarios, "--filter", "place_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_RepositoryScenarios(t *testing.T) {
	out, err := execute(t, "", "test", "../harness/testdata/scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "4 passed, 0 failed, 4 total")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.yaml", "")
	writeScenario(t, dir, "a.yml", "")
	writeScenario(t, dir, "notes.txt", "")
	writeScenario(t, filepath.Join(dir, "nested"), "c.yaml", "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "nested", "c.yaml"),
	}, files)

	_, err = findScenarioFiles(dir, "[")
	assert.Error(t, err)
}
