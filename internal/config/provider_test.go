package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// manualVersion is a VersionSource tests bump explicitly.
type manualVersion struct {
	mu sync.Mutex
	v  int
}

func (m *manualVersion) Version() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.v == 0 {
		return "", nil
	}
	return strconv.Itoa(m.v), nil
}

func (m *manualVersion) bump() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v++
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func writeConfig(t *testing.T, path string, bonus int) {
	t.Helper()
	doc := strings.Replace(string(DefaultYAML()), "exact_hit_bonus_cents: 100",
		"exact_hit_bonus_cents: "+strconv.Itoa(bonus), 1)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
}

func TestProvider_AbsentFileUsesDefaults(t *testing.T) {
	p := NewProvider(filepath.Join(t.TempDir(), "config.yaml"))

	cfg, err := p.Current()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestProvider_ReloadsOnlyWhenVersionChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	versions := &manualVersion{}
	p := NewProvider(path, WithVersionSource(versions))

	writeConfig(t, path, 250)
	versions.bump()

	cfg, err := p.Current()
	require.NoError(t, err)
	assert.Equal(t, ledger.Cents(250), cfg.ExactHitBonusCents)

	// Content changes without a version bump are not observed.
	writeConfig(t, path, 300)
	cfg, err = p.Current()
	require.NoError(t, err)
	assert.Equal(t, ledger.Cents(250), cfg.ExactHitBonusCents)

	versions.bump()
	cfg, err = p.Current()
	require.NoError(t, err)
	assert.Equal(t, ledger.Cents(300), cfg.ExactHitBonusCents)
}

func TestProvider_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bins: not-a-list\n"), 0o644))

	p := NewProvider(path)
	_, err := p.Current()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestProvider_SaveWritesAtomicallyAndInvalidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	versions := &manualVersion{}
	p := NewProvider(path, WithVersionSource(versions))

	cfg, err := p.Current()
	require.NoError(t, err)

	cfg.ExactHitBonusCents = 175
	require.NoError(t, p.Save(cfg))

	// The manual source reports no file until bumped.
	versions.bump()
	got, err := p.Current()
	require.NoError(t, err)
	assert.Equal(t, ledger.Cents(175), got.ExactHitBonusCents)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "config.yaml", entries[0].Name())
}

func TestProvider_SaveRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	p := NewProvider(path)

	cfg := Default()
	cfg.Bins = nil
	err := p.Save(cfg)
	assert.ErrorIs(t, err, ErrInvalid)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing written on validation failure")
}

func TestFileVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	v, err := FileVersion{Path: path}.Version()
	require.NoError(t, err)
	assert.Empty(t, v)

	writeConfig(t, path, 100)
	v, err = FileVersion{Path: path}.Version()
	require.NoError(t, err)
	assert.NotEmpty(t, v)
}
