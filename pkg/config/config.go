// Package config handles loading graphview configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config: ~/.config/graphview/config.yaml
//
// All sections are optional; the zero config is fully usable. Validation
// is fail-fast: a config that parses but violates an invariant (negative
// budget, non-monotonic LOD thresholds) is rejected at load time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/graphview-io/graphview/pkg/lod"
	"github.com/graphview-io/graphview/pkg/perfmon"
	"github.com/graphview-io/graphview/pkg/physics"
)

// PhysicsConfig holds layout simulation tuning.
type PhysicsConfig struct {
	Repulsion   float64 `yaml:"repulsion,omitempty"`
	Attraction  float64 `yaml:"attraction,omitempty"`
	RestLength  float64 `yaml:"rest_length,omitempty"`
	Damping     float64 `yaml:"damping,omitempty"`
	Theta       float64 `yaml:"theta,omitempty"`
	MinDistance float64 `yaml:"min_distance,omitempty"`
	MaxVelocity float64 `yaml:"max_velocity,omitempty"`
}

// LODThreshold maps a zoom floor to a detail level name.
type LODThreshold struct {
	MinZoom float64 `yaml:"min_zoom"`
	Level   string  `yaml:"level"`
}

// BudgetConfig is a node/edge cap for one quality tier.
type BudgetConfig struct {
	MaxNodes int `yaml:"max_nodes"`
	MaxEdges int `yaml:"max_edges"`
}

// MonitorConfig tunes the adaptive performance monitor.
type MonitorConfig struct {
	Profile          string  `yaml:"profile,omitempty"` // desktop or mobile
	SampleSize       int     `yaml:"sample_size,omitempty"`
	StabilityCV      float64 `yaml:"stability_cv,omitempty"`
	DowngradeSamples int     `yaml:"downgrade_samples,omitempty"`
}

// WorkerConfig tunes the async culling worker.
type WorkerConfig struct {
	QueueDepth  int  `yaml:"queue_depth,omitempty"`
	Synchronous bool `yaml:"synchronous,omitempty"`
}

// Config is the top-level configuration for graphview.
type Config struct {
	Physics     PhysicsConfig           `yaml:"physics,omitempty"`
	Thresholds  []LODThreshold          `yaml:"lod_thresholds,omitempty"`
	TierBudgets map[string]BudgetConfig `yaml:"tier_budgets,omitempty"`
	Monitor     MonitorConfig           `yaml:"monitor,omitempty"`
	Worker      WorkerConfig            `yaml:"worker,omitempty"`

	// MetricsAddr, when set, exposes a Prometheus scrape endpoint.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Monitor: MonitorConfig{Profile: "desktop"},
	}
}

// ConfigDir returns the XDG config directory for graphview.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "graphview")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "graphview")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// applyEnvOverrides lets a few settings be flipped without editing the
// file, the usual escape hatch for CI and quick experiments.
func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv("GRAPHVIEW_METRICS_ADDR"); addr != "" {
		cfg.MetricsAddr = addr
	}
	if v := os.Getenv("GRAPHVIEW_SYNC"); v == "1" {
		cfg.Worker.Synchronous = true
	}
	if v := os.Getenv("GRAPHVIEW_PROFILE"); v != "" {
		cfg.Monitor.Profile = v
	}
	if v := os.Getenv("GRAPHVIEW_QUEUE_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Worker.QueueDepth = n
		}
	}
}

// Validate rejects configs that would misbehave at runtime.
func (c Config) Validate() error {
	if _, err := c.PhysicsParams(); err != nil {
		return err
	}
	if _, err := c.LODThresholds(); err != nil {
		return err
	}
	if _, err := c.Budgets(); err != nil {
		return err
	}
	switch strings.ToLower(c.Monitor.Profile) {
	case "", "desktop", "mobile":
	default:
		return fmt.Errorf("config: unknown monitor profile %q", c.Monitor.Profile)
	}
	if c.Monitor.SampleSize < 0 {
		return fmt.Errorf("config: negative monitor sample_size")
	}
	if c.Worker.QueueDepth < 0 {
		return fmt.Errorf("config: negative worker queue_depth")
	}
	return nil
}

// PhysicsParams resolves the physics section against the defaults. A zero
// field keeps its default value.
func (c Config) PhysicsParams() (physics.Params, error) {
	p := physics.DefaultParams()
	if c.Physics.Repulsion != 0 {
		p.Repulsion = c.Physics.Repulsion
	}
	if c.Physics.Attraction != 0 {
		p.Attraction = c.Physics.Attraction
	}
	if c.Physics.RestLength != 0 {
		p.RestLength = c.Physics.RestLength
	}
	if c.Physics.Damping != 0 {
		p.Damping = c.Physics.Damping
	}
	if c.Physics.Theta != 0 {
		p.Theta = c.Physics.Theta
	}
	if c.Physics.MinDistance != 0 {
		p.MinDistance = c.Physics.MinDistance
	}
	if c.Physics.MaxVelocity != 0 {
		p.MaxVelocity = c.Physics.MaxVelocity
	}
	if err := p.Validate(); err != nil {
		return physics.Params{}, fmt.Errorf("config: %w", err)
	}
	return p, nil
}

// LODThresholds resolves the lod_thresholds section. Empty means the
// built-in ladder.
func (c Config) LODThresholds() ([]lod.Threshold, error) {
	if len(c.Thresholds) == 0 {
		return lod.DefaultThresholds, nil
	}
	out := make([]lod.Threshold, 0, len(c.Thresholds))
	for _, t := range c.Thresholds {
		level, err := parseLevel(t.Level)
		if err != nil {
			return nil, err
		}
		out = append(out, lod.Threshold{MinZoom: t.MinZoom, Level: level})
	}
	return out, nil
}

// Budgets resolves the tier_budgets section. Unnamed tiers keep their
// default budget.
func (c Config) Budgets() (map[perfmon.Tier]perfmon.Budget, error) {
	budgets := perfmon.DefaultBudgets()
	for name, b := range c.TierBudgets {
		tier, err := parseTier(name)
		if err != nil {
			return nil, err
		}
		if b.MaxNodes <= 0 || b.MaxEdges <= 0 {
			return nil, fmt.Errorf("config: non-positive budget for tier %s", name)
		}
		budgets[tier] = perfmon.Budget{MaxNodes: b.MaxNodes, MaxEdges: b.MaxEdges}
	}
	return budgets, nil
}

// PerfmonConfig resolves the monitor section into a perfmon config.
func (c Config) PerfmonConfig() perfmon.Config {
	cfg := perfmon.Config{}
	if strings.EqualFold(c.Monitor.Profile, "mobile") {
		cfg.Thresholds = perfmon.MobileThresholds
	}
	if c.Monitor.SampleSize > 0 {
		cfg.SampleSize = c.Monitor.SampleSize
	}
	if c.Monitor.StabilityCV > 0 {
		cfg.StabilityThreshold = c.Monitor.StabilityCV
	}
	if c.Monitor.DowngradeSamples > 0 {
		cfg.DowngradeSamples = c.Monitor.DowngradeSamples
	}
	return cfg
}

func parseLevel(s string) (lod.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return lod.Low, nil
	case "medium":
		return lod.Medium, nil
	case "high":
		return lod.High, nil
	case "ultra":
		return lod.Ultra, nil
	default:
		return 0, fmt.Errorf("config: unknown LOD level %q", s)
	}
}

func parseTier(s string) (perfmon.Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eco":
		return perfmon.Eco, nil
	case "standard":
		return perfmon.Standard, nil
	case "high":
		return perfmon.High, nil
	case "ultra":
		return perfmon.Ultra, nil
	default:
		return 0, fmt.Errorf("config: unknown quality tier %q", s)
	}
}
