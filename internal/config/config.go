// Package config provides the versioned tier, requirement, and decay
// configuration of the progress engine.
//
// Configuration lives in a YAML document validated in two passes: an embedded
// CUE schema checks shape and ranges, then Validate checks the cross-field
// invariants (ascending bins, a default decay rate, a loadable timezone). A
// missing file means "use the embedded defaults"; a corrupt file is an error.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

//go:embed default.yaml
var defaultYAML []byte

// DefaultDecayKey is the entity type used when no specific rate is configured.
const DefaultDecayKey = "default"

var (
	// ErrInvalid is returned for documents that fail schema or invariant checks.
	ErrInvalid = errors.New("invalid config")
	// ErrCorrupt is returned when an existing config file cannot be used.
	ErrCorrupt = errors.New("corrupt config")
)

// Config is one version of the engine configuration.
type Config struct {
	Version            int                     `yaml:"version" json:"version"`
	Timezone           string                  `yaml:"timezone" json:"timezone"`
	ExactHitBonusCents ledger.Cents            `yaml:"exact_hit_bonus_cents" json:"exact_hit_bonus_cents"`
	Gift               Gift                    `yaml:"gift" json:"gift"`
	Decay              map[string]ledger.Cents `yaml:"decay" json:"decay"`
	Bins               []Bin                   `yaml:"bins" json:"bins"`
}

// Gift bounds the deterministic idle reward.
type Gift struct {
	MinUnits  int64        `yaml:"min_units" json:"min_units"`
	MaxUnits  int64        `yaml:"max_units" json:"max_units"`
	UnitCents ledger.Cents `yaml:"unit_cents" json:"unit_cents"`
}

// Bin is one step of the population → difficulty function.
type Bin struct {
	MinPopulation    int64        `yaml:"min_population" json:"min_population"`
	RequirementCents ledger.Cents `yaml:"requirement_cents" json:"requirement_cents"`
	Label            string       `yaml:"label,omitempty" json:"label,omitempty"`
}

// Goal is the frozen outcome of goal establishment.
type Goal struct {
	Bin              int
	RequirementCents ledger.Cents
	DecayPerDayCents ledger.Cents
	Population       int64
	EntityType       string
}

var defaultConfig = mustParse(defaultYAML)

// Default returns a copy of the embedded default configuration.
func Default() Config {
	return defaultConfig.clone()
}

// DefaultYAML returns the embedded default document.
func DefaultYAML() []byte {
	return bytes.Clone(defaultYAML)
}

func mustParse(data []byte) Config {
	cfg, err := Parse(data)
	if err != nil {
		panic(fmt.Sprintf("embedded default config: %v", err))
	}
	return cfg
}

// Parse decodes and validates a YAML config document.
func Parse(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if raw == nil {
		return Config{}, fmt.Errorf("%w: empty document", ErrInvalid)
	}
	if err := validateSchema(raw); err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate checks the invariants the schema cannot express.
func (c Config) Validate() error {
	if c.Version < 1 {
		return fmt.Errorf("%w: version must be >= 1", ErrInvalid)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil || c.Timezone == "" {
		return fmt.Errorf("%w: timezone %q", ErrInvalid, c.Timezone)
	}
	if c.ExactHitBonusCents < 0 {
		return fmt.Errorf("%w: exact_hit_bonus_cents must be >= 0", ErrInvalid)
	}
	if c.Gift.MinUnits < 1 || c.Gift.MaxUnits < c.Gift.MinUnits || c.Gift.UnitCents <= 0 {
		return fmt.Errorf("%w: gift range [%d, %d] x %d", ErrInvalid, c.Gift.MinUnits, c.Gift.MaxUnits, c.Gift.UnitCents)
	}
	if len(c.Bins) == 0 {
		return fmt.Errorf("%w: at least one bin is required", ErrInvalid)
	}
	if c.Bins[0].MinPopulation != 0 {
		return fmt.Errorf("%w: first bin must start at population 0", ErrInvalid)
	}
	for i, b := range c.Bins {
		if b.RequirementCents <= 0 {
			return fmt.Errorf("%w: bin %d requirement must be positive", ErrInvalid, i)
		}
		if i > 0 && b.MinPopulation <= c.Bins[i-1].MinPopulation {
			return fmt.Errorf("%w: bin %d lower bound %d not above %d", ErrInvalid, i, b.MinPopulation, c.Bins[i-1].MinPopulation)
		}
	}
	if _, ok := c.Decay[DefaultDecayKey]; !ok {
		return fmt.Errorf("%w: decay.%s is required", ErrInvalid, DefaultDecayKey)
	}
	for k, v := range c.Decay {
		if v < 0 {
			return fmt.Errorf("%w: decay.%s must be >= 0", ErrInvalid, k)
		}
	}
	return nil
}

// Location returns the calendar timezone used for decay days.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Today returns the entity-local day of now.
func (c Config) Today(now time.Time) ledger.Day {
	return ledger.DayOf(now, c.Location())
}

// BinFor returns the highest bin whose lower bound is <= population.
func (c Config) BinFor(population int64) int {
	n := ledger.ClampPopulation(population)
	idx := sort.Search(len(c.Bins), func(i int) bool { return c.Bins[i].MinPopulation > n }) - 1
	if idx < 0 {
		return 0
	}
	return idx
}

// DecayRate returns the decay rate for entityType, falling back to default.
func (c Config) DecayRate(entityType string) ledger.Cents {
	if v, ok := c.Decay[entityType]; ok {
		return v
	}
	return c.Decay[DefaultDecayKey]
}

// GoalFor establishes the goal for a population sample and entity type.
func (c Config) GoalFor(population int64, entityType string) Goal {
	if entityType == "" {
		entityType = DefaultDecayKey
	}
	n := ledger.ClampPopulation(population)
	bin := c.BinFor(n)
	return Goal{
		Bin:              bin,
		RequirementCents: c.Bins[bin].RequirementCents,
		DecayPerDayCents: c.DecayRate(entityType),
		Population:       n,
		EntityType:       entityType,
	}
}

// TierLabel returns the display label of a bin.
func (c Config) TierLabel(bin int) string {
	if bin >= 0 && bin < len(c.Bins) && c.Bins[bin].Label != "" {
		return c.Bins[bin].Label
	}
	return fmt.Sprintf("Tier %d", bin+1)
}

func (c Config) clone() Config {
	out := c
	out.Bins = slices.Clone(c.Bins)
	out.Decay = maps.Clone(c.Decay)
	return out
}
