package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rosterFixture = `topic: Should cities ban cars?
user_participates: true
bots:
  - name: Alice
    role: urban planner
    description: Pragmatic, data driven.
`

func setupEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("ROUNDTABLE_MODEL_PROVIDER", "mock")
	t.Setenv("ROUNDTABLE_STORE_PATH", filepath.Join(home, "sessions.db"))
	t.Setenv("ROUNDTABLE_LOG_LEVEL", "error")
	require.NoError(t, os.WriteFile(filepath.Join(home, "panel.yaml"), []byte(rosterFixture), 0o600))
	return home
}

func executeCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRunStoresSession(t *testing.T) {
	home := setupEnv(t)

	stdout, _, err := executeCLI(t, "hello panel\n/quit\n", "run", "--roster", filepath.Join(home, "panel.yaml"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "topic: Should cities ban cars?")
	assert.Contains(t, stdout, "User: hello panel")
	assert.Contains(t, stdout, "Alice: Mock response to:")
	assert.Contains(t, stdout, "session 1 saved")

	stdout, _, err = executeCLI(t, "", "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Should cities ban cars?")

	stdout, _, err = executeCLI(t, "", "sessions", "list", "--json")
	require.NoError(t, err)
	var rows []sessionSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].ID)
	assert.Equal(t, 2, rows[0].Messages)
	assert.Equal(t, []string{"Alice"}, rows[0].Bots)
	assert.Equal(t, "mock/llama3.1", rows[0].Model)
}

func TestRunTopicFlagOverridesRoster(t *testing.T) {
	home := setupEnv(t)

	stdout, _, err := executeCLI(t, "/quit\n", "run", "-r", filepath.Join(home, "panel.yaml"), "--topic", "Four-day weeks")
	require.NoError(t, err)
	assert.Contains(t, stdout, "topic: Four-day weeks")
	assert.NotContains(t, stdout, "saved")
}

func TestRunRequiresRoster(t *testing.T) {
	setupEnv(t)

	_, _, err := executeCLI(t, "", "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "roster" not set`)
}

func TestConsoleCommands(t *testing.T) {
	home := setupEnv(t)

	stdout, _, err := executeCLI(t, "/who\n/next\n/bogus\n/summary\n/analysis\n/quit\n", "run", "--roster", filepath.Join(home, "panel.yaml"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "> User")
	assert.Contains(t, stdout, "  Alice (urban planner)")
	assert.Contains(t, stdout, "it is not a bot's turn")
	assert.Contains(t, stdout, "unknown command /bogus")
	assert.Contains(t, stdout, "no summary yet")
	assert.Contains(t, stdout, "no analysis yet")
}

func TestResumeAndReuse(t *testing.T) {
	home := setupEnv(t)
	roster := filepath.Join(home, "panel.yaml")

	_, _, err := executeCLI(t, "first\n/quit\n", "run", "--roster", roster)
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, "/quit\n", "resume", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "topic: Should cities ban cars?")
	assert.Contains(t, stdout, "User: first")
	assert.Contains(t, stdout, "next: User")

	stdout, _, err = executeCLI(t, "second\n/quit\n", "run", "--roster", roster, "--reuse")
	require.NoError(t, err)
	assert.Contains(t, stdout, "continuing session 1")
	assert.Contains(t, stdout, "User: second")

	stdout, _, err = executeCLI(t, "", "sessions", "show", "1")
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(stdout, "\n")-1)

	_, _, err = executeCLI(t, "", "resume", "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")

	_, _, err = executeCLI(t, "", "resume", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid session id "abc"`)
}

func TestSessionsDelete(t *testing.T) {
	home := setupEnv(t)

	_, _, err := executeCLI(t, "hi\n/quit\n", "run", "--roster", filepath.Join(home, "panel.yaml"))
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, "", "sessions", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "deleted session 1")

	stdout, _, err = executeCLI(t, "", "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no sessions")

	_, _, err = executeCLI(t, "", "sessions", "delete", "1")
	require.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	home := setupEnv(t)
	path := filepath.Join(home, "roundtable.toml")

	stdout, _, err := executeCLI(t, "", "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote "+path)

	_, _, err = executeCLI(t, "", "--config", path, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, _, err = executeCLI(t, "", "--config", path, "config", "init", "--force")
	require.NoError(t, err)

	stdout, _, err = executeCLI(t, "", "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", stdout)
}

func TestConfigShowAppliesFlags(t *testing.T) {
	setupEnv(t)
	t.Setenv("ROUNDTABLE_MODEL_API_KEY", "sk-secret")

	stdout, _, err := executeCLI(t, "", "--model", "tiny", "--store", "memory", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "tiny")
	assert.Contains(t, stdout, "memory")
	assert.Contains(t, stdout, "********")
	assert.NotContains(t, stdout, "sk-secret")
}

func TestPing(t *testing.T) {
	setupEnv(t)

	stdout, _, err := executeCLI(t, "", "ping")
	require.NoError(t, err)
	assert.Contains(t, stdout, "is ready")
}

func TestVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", stdout)
}
