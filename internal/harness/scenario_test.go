package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: basic
description: "contribute once"
start: 2026-05-01T08:30:00Z
setup:
  - op: population
    entity: mech-1
    population: 0
flow:
  - op: contribute
    entity: mech-1
    amount: "1.00"
    expect:
      outcome: applied
      state: { level: 1 }
  - op: advance
    hours: 5
assertions:
  - type: final_state
    entity: mech-1
    expect: { power: "1.00" }
`))
	require.NoError(t, err)
	assert.Equal(t, "basic", s.Name)
	assert.Equal(t, 2026, s.Start.Year())
	require.Len(t, s.Setup, 1)
	require.NotNil(t, s.Setup[0].Population)
	assert.Equal(t, int64(0), *s.Setup[0].Population)
	require.Len(t, s.Flow, 2)
	assert.Equal(t, "applied", s.Flow[0].Expect.Outcome)
	assert.Equal(t, 5, s.Flow[1].Hours)
}

func TestParseScenario_Invalid(t *testing.T) {
	base := "name: x\ndescription: y\n"
	okFlow := "flow:\n  - op: state\n    entity: mech-1\n"
	okAssert := "assertions:\n  - type: rebuild_clean\n    entity: mech-1\n"

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", base + okFlow + okAssert + "asertions: []\n", "field asertions not found"},
		{"missing name", "description: y\n" + okFlow + okAssert, "name is required"},
		{"missing flow", base + okAssert, "flow list is required"},
		{"missing assertions", base + okFlow, "assertions list is required"},
		{"unknown op", base + "flow:\n  - op: explode\n    entity: m\n" + okAssert, `unknown op "explode"`},
		{"missing entity", base + "flow:\n  - op: tick\n" + okAssert, "tick: entity is required"},
		{"missing amount", base + "flow:\n  - op: contribute\n    entity: m\n" + okAssert, "amount is required"},
		{"missing population", base + "flow:\n  - op: population\n    entity: m\n" + okAssert, "population is required"},
		{"missing campaign", base + "flow:\n  - op: gift\n    entity: m\n" + okAssert, "campaign is required"},
		{"missing void target", base + "flow:\n  - op: void\n    entity: m\n" + okAssert, "target is required"},
		{"empty advance", base + "flow:\n  - op: advance\n" + okAssert, "positive days or hours"},
		{"single parallel", base + "flow:\n  - op: parallel\n    steps:\n      - op: tick\n        entity: m\n" + okAssert, "at least two steps"},
		{"nested parallel", base + "flow:\n  - op: parallel\n    steps:\n      - op: tick\n        entity: m\n      - op: parallel\n" + okAssert, "cannot nest"},
		{"expect in setup", base + "setup:\n  - op: tick\n    entity: m\n    expect: { outcome: ok }\n" + okFlow + okAssert, "expect is not allowed"},
		{"unknown assertion", base + okFlow + "assertions:\n  - type: vibes\n", `unknown assertion type "vibes"`},
		{"final_state without expect", base + okFlow + "assertions:\n  - type: final_state\n    entity: m\n", "expect is required"},
		{"event_order without events", base + okFlow + "assertions:\n  - type: event_order\n", "events list is required"},
		{"event_count without event", base + okFlow + "assertions:\n  - type: event_count\n", "event is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_ResolvesConfigPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cfg.yaml"), []byte("version: 1\n"), 0o644))
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: cfg
description: "relative config"
config: cfg.yaml
flow:
  - op: state
    entity: mech-1
assertions:
  - type: rebuild_clean
    entity: mech-1
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cfg.yaml"), s.Config)
}

func TestLoadScenario_Errors(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")

	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: cfg
description: "missing config"
config: nope.yaml
flow:
  - op: state
    entity: mech-1
assertions:
  - type: rebuild_clean
    entity: mech-1
`), 0o644))
	_, err = LoadScenario(path)
	assert.ErrorContains(t, err, "config file")
}

func TestLoadScenario_AllTestdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, p := range paths {
		_, err := LoadScenario(p)
		assert.NoError(t, err, p)
	}
}
