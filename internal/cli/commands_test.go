package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliRun struct {
	Stdout string
	Stderr string
	Err    error
}

// run executes the root command against a storage root.
func run(t *testing.T, root string, args ...string) cliRun {
	t.Helper()
	t.Setenv("EVOLUTION_LOG_LEVEL", "error")
	t.Setenv("EVOLUTION_CONFIG", "")

	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--root", root}, args...))
	err := cmd.Execute()
	return cliRun{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}

// runJSON executes a command with --format json and decodes the response.
func runJSON(t *testing.T, root string, args ...string) (CLIResponse, map[string]any, error) {
	t.Helper()
	r := run(t, root, append(args, "--format", "json")...)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(r.Stdout), &resp), "stdout: %s", r.Stdout)
	data, _ := resp.Data.(map[string]any)
	return resp, data, r.Err
}

func stateOf(t *testing.T, data map[string]any) map[string]any {
	t.Helper()
	st, ok := data["state"].(map[string]any)
	require.True(t, ok, "missing state in %v", data)
	return st
}

func TestState_FreshEntity(t *testing.T) {
	root := t.TempDir()

	resp, data, err := runJSON(t, root, "state", "mech-1")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "mech-1", data["entity_id"])
	assert.EqualValues(t, 1, data["level"])
	assert.Equal(t, "0.00", data["progress"])
	assert.Equal(t, "10.00", data["progress_max"])
	assert.Equal(t, true, data["offline"])

	assert.FileExists(t, filepath.Join(root, "ledger.db"))
}

func TestState_TextOutput(t *testing.T) {
	root := t.TempDir()

	r := run(t, root, "state", "mech-1")
	require.NoError(t, r.Err)
	assert.Contains(t, r.Stdout, "level 1/11")
	assert.Contains(t, r.Stdout, "Tier 1")
	assert.Contains(t, r.Stdout, "offline")
}

func TestContribute(t *testing.T) {
	root := t.TempDir()

	_, data, err := runJSON(t, root, "contribute", "mech-1", "--amount", "4.00", "--key", "k1")
	require.NoError(t, err)
	st := stateOf(t, data)
	assert.Equal(t, "4.00", st["progress"])
	assert.Equal(t, "4.00", st["power"])
	assert.Equal(t, false, data["duplicate"])
	assert.EqualValues(t, 2, data["sequence"])

	t.Run("duplicate key", func(t *testing.T) {
		_, data, err := runJSON(t, root, "contribute", "mech-1", "--amount", "4.00", "--key", "k1")
		require.NoError(t, err)
		assert.Equal(t, true, data["duplicate"])
		assert.EqualValues(t, 2, data["sequence"])
		assert.Equal(t, "4.00", stateOf(t, data)["progress"])
	})

	t.Run("exact hit levels up", func(t *testing.T) {
		_, data, err := runJSON(t, root, "contribute", "mech-1", "--amount", "6.00", "--key", "k2")
		require.NoError(t, err)
		assert.Equal(t, true, data["leveled_up"])
		assert.EqualValues(t, 2, stateOf(t, data)["level"])
	})
}

func TestContribute_RoundsHalfUpToCent(t *testing.T) {
	_, data, err := runJSON(t, t.TempDir(), "contribute", "mech-1", "--amount", "1.235", "--key", "k1")
	require.NoError(t, err)
	assert.Equal(t, "1.24", stateOf(t, data)["progress"])

	cmd := NewRootCommand()
	contributeCmd, _, err := cmd.Find([]string{"contribute"})
	require.NoError(t, err)
	assert.Contains(t, contributeCmd.Long, "rounded half-up")
}

func TestContribute_VerboseWritesMetrics(t *testing.T) {
	res := run(t, t.TempDir(), "-v", "contribute", "mech-1", "--amount", "5.00", "--key", "k1")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stderr, "# TYPE evolution_contributions_total counter")
	assert.Contains(t, res.Stderr, `evolution_contributions_total{result="applied"} 1`)
	assert.NotContains(t, res.Stdout, "evolution_contributions_total")
}

func TestContribute_QuietOmitsMetrics(t *testing.T) {
	res := run(t, t.TempDir(), "contribute", "mech-1", "--amount", "5.00", "--key", "k1")
	require.NoError(t, res.Err)
	assert.NotContains(t, res.Stderr, "evolution_contributions_total")
}

func TestContribute_InvalidAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
	}{
		{"unparseable", "ten"},
		{"zero", "0"},
		{"negative", "-1.00"},
		{"oversized", "2000000000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _, err := runJSON(t, t.TempDir(), "contribute", "mech-1", "--amount="+tt.amount)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "INVALID_AMOUNT", resp.Error.Code)
		})
	}
}

func TestContribute_MissingAmount(t *testing.T) {
	r := run(t, t.TempDir(), "contribute", "mech-1")
	require.Error(t, r.Err)
	assert.False(t, Reported(r.Err))
}

func TestGoalInputs(t *testing.T) {
	root := t.TempDir()

	_, data, err := runJSON(t, root, "population", "mech-1", "60")
	require.NoError(t, err)
	assert.EqualValues(t, 60, data["population_sample"])
	// The current goal keeps its requirement.
	assert.Equal(t, "10.00", data["progress_max"])

	_, data, err = runJSON(t, root, "entity-type", "mech-1", "heavy")
	require.NoError(t, err)
	assert.Equal(t, "heavy", data["entity_type"])

	r := run(t, root, "population", "mech-1", "lots")
	require.Error(t, r.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(r.Err))
}

func TestGift(t *testing.T) {
	root := t.TempDir()

	_, data, err := runJSON(t, root, "gift", "mech-1", "--campaign", "2026-03")
	require.NoError(t, err)
	assert.Equal(t, true, data["granted"])
	amount := data["amount"]
	assert.Contains(t, []any{"1.00", "2.00", "3.00"}, amount)
	assert.Equal(t, amount, stateOf(t, data)["power"])

	// Powered entities do not get a gift.
	_, data, err = runJSON(t, root, "gift", "mech-1", "--campaign", "2026-03", "--once-per-campaign")
	require.NoError(t, err)
	assert.Equal(t, false, data["granted"])
	assert.NotContains(t, data, "amount")
}

func TestVoid(t *testing.T) {
	root := t.TempDir()

	_, _, err := runJSON(t, root, "contribute", "mech-1", "--amount", "3.00", "--key", "k1")
	require.NoError(t, err)

	_, data, err := runJSON(t, root, "void", "mech-1", "2", "--reason", "refund")
	require.NoError(t, err)
	assert.Equal(t, false, data["already_voided"])
	st := stateOf(t, data)
	assert.Equal(t, "0.00", st["progress"])
	assert.Equal(t, "0.00", st["power"])
	assert.Equal(t, "3.00", st["voided_total"])
	assert.Equal(t, "3.00", st["lifetime_total"])

	_, data, err = runJSON(t, root, "void", "mech-1", "2")
	require.NoError(t, err)
	assert.Equal(t, true, data["already_voided"])

	t.Run("unknown sequence", func(t *testing.T) {
		resp, _, err := runJSON(t, root, "void", "mech-1", "99")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	})

	t.Run("malformed sequence", func(t *testing.T) {
		r := run(t, root, "void", "mech-1", "two")
		assert.Equal(t, ExitCommandError, GetExitCode(r.Err))
	})
}

func TestReset(t *testing.T) {
	root := t.TempDir()

	_, _, err := runJSON(t, root, "contribute", "mech-1", "--amount", "10.00", "--key", "k1")
	require.NoError(t, err)

	_, data, err := runJSON(t, root, "reset", "mech-1", "--reason", "season end")
	require.NoError(t, err)
	assert.EqualValues(t, 1, data["level"])
	assert.Equal(t, "0.00", data["progress"])
	assert.Equal(t, "10.00", data["lifetime_total"])
}

func TestEvents(t *testing.T) {
	root := t.TempDir()

	for _, args := range [][]string{
		{"contribute", "mech-1", "--amount", "1.00", "--key", "a"},
		{"contribute", "mech-2", "--amount", "2.00", "--key", "b"},
		{"contribute", "mech-1", "--amount", "3.00", "--key", "c"},
	} {
		_, _, err := runJSON(t, root, args...)
		require.NoError(t, err)
	}

	types := func(data map[string]any) []any {
		var out []any
		for _, e := range data["events"].([]any) {
			out = append(out, e.(map[string]any)["type"])
		}
		return out
	}

	_, data, err := runJSON(t, root, "events")
	require.NoError(t, err)
	assert.Len(t, data["events"], 5)

	_, data, err = runJSON(t, root, "events", "mech-1")
	require.NoError(t, err)
	assert.Equal(t, []any{"GoalEstablished", "ContributionAdded", "ContributionAdded"}, types(data))

	_, data, err = runJSON(t, root, "events", "mech-1", "--after", "2")
	require.NoError(t, err)
	assert.Equal(t, []any{"ContributionAdded"}, types(data))

	_, data, err = runJSON(t, root, "events", "--limit", "2")
	require.NoError(t, err)
	assert.Len(t, data["events"], 2)
	first := data["events"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 1, first["sequence"])
	assert.NotEmpty(t, first["hash"])

	r := run(t, root, "events", "mech-1")
	require.NoError(t, r.Err)
	assert.Contains(t, r.Stdout, "ContributionAdded")
	assert.Contains(t, r.Stdout, `"amount_cents":300`)
}

func TestRebuildAndVerify(t *testing.T) {
	root := t.TempDir()

	for _, id := range []string{"mech-1", "mech-2"} {
		_, _, err := runJSON(t, root, "contribute", id, "--amount", "2.50", "--key", "k")
		require.NoError(t, err)
	}

	_, data, err := runJSON(t, root, "rebuild", "mech-1")
	require.NoError(t, err)
	entities := data["entities"].([]any)
	require.Len(t, entities, 1)
	entry := entities[0].(map[string]any)
	assert.Equal(t, false, entry["drift"])
	assert.EqualValues(t, 2, entry["events"])

	_, data, err = runJSON(t, root, "rebuild", "--all")
	require.NoError(t, err)
	assert.Len(t, data["entities"], 2)

	r := run(t, root, "rebuild")
	assert.Equal(t, ExitCommandError, GetExitCode(r.Err))
	r = run(t, root, "rebuild", "mech-1", "--all")
	assert.Equal(t, ExitCommandError, GetExitCode(r.Err))

	_, data, err = runJSON(t, root, "verify")
	require.NoError(t, err)
	assert.EqualValues(t, 4, data["events"])
	assert.EqualValues(t, 4, data["last_sequence"])
	assert.Len(t, data["entities"], 2)

	r = run(t, root, "verify")
	require.NoError(t, r.Err)
	assert.Contains(t, r.Stdout, "log ok: 4 events")
}

func TestConfigCommands(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "config.yaml")

	r := run(t, root, "config", "init")
	require.NoError(t, r.Err)
	assert.Contains(t, r.Stdout, "wrote "+path)
	assert.FileExists(t, path)

	r = run(t, root, "config", "init")
	require.Error(t, r.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(r.Err))
	assert.Contains(t, r.Err.Error(), "--force")

	r = run(t, root, "config", "init", "--force")
	require.NoError(t, r.Err)

	_, data, err := runJSON(t, root, "config", "validate")
	require.NoError(t, err)
	assert.Equal(t, path, data["path"])
	assert.EqualValues(t, 1, data["version"])

	r = run(t, root, "config", "show")
	require.NoError(t, r.Err)
	assert.Contains(t, r.Stdout, "exact_hit_bonus_cents: 100")

	t.Run("invalid file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("version: 0\n"), 0o644))

		resp, _, err := runJSON(t, root, "config", "validate", bad)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Equal(t, "INVALID_CONFIG", resp.Error.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		resp, _, err := runJSON(t, root, "config", "validate", filepath.Join(root, "nope.yaml"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Equal(t, ErrCodeCommand, resp.Error.Code)
	})

	t.Run("corrupt config blocks operations", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("bins: [}\n"), 0o644))

		resp, _, err := runJSON(t, root, "state", "mech-1")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.NotEqual(t, ErrCodeCommand, resp.Error.Code)
	})
}

func TestInvalidFormat(t *testing.T) {
	r := run(t, t.TempDir(), "state", "mech-1", "--format", "yaml")
	require.Error(t, r.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(r.Err))
	assert.Contains(t, r.Err.Error(), "invalid format")
}
