package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphview-io/graphview/pkg/lod"
	"github.com/graphview-io/graphview/pkg/perfmon"
	"github.com/graphview-io/graphview/pkg/physics"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFromParsesAllSections(t *testing.T) {
	path := writeConfig(t, `
physics:
  repulsion: 1200
  theta: 0.5
lod_thresholds:
  - min_zoom: 1.5
    level: high
  - min_zoom: 0.2
    level: low
tier_budgets:
  eco:
    max_nodes: 500
    max_edges: 800
monitor:
  profile: mobile
  sample_size: 30
worker:
  queue_depth: 128
  synchronous: true
metrics_addr: "localhost:9100"
`)
	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	p, err := cfg.PhysicsParams()
	require.NoError(t, err)
	assert.Equal(t, 1200.0, p.Repulsion)
	assert.Equal(t, 0.5, p.Theta)
	// Unset fields keep defaults.
	assert.Equal(t, physics.DefaultParams().Damping, p.Damping)

	thresholds, err := cfg.LODThresholds()
	require.NoError(t, err)
	require.Len(t, thresholds, 2)
	assert.Equal(t, lod.High, thresholds[0].Level)
	assert.Equal(t, 1.5, thresholds[0].MinZoom)

	budgets, err := cfg.Budgets()
	require.NoError(t, err)
	assert.Equal(t, perfmon.Budget{MaxNodes: 500, MaxEdges: 800}, budgets[perfmon.Eco])
	// Unnamed tiers keep defaults.
	assert.Equal(t, perfmon.DefaultBudgets()[perfmon.Ultra], budgets[perfmon.Ultra])

	assert.Equal(t, 128, cfg.Worker.QueueDepth)
	assert.True(t, cfg.Worker.Synchronous)
	assert.Equal(t, "localhost:9100", cfg.MetricsAddr)
}

func TestLoadFromRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "physics: [not a map")
	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestLoadFromRejectsInvalidPhysics(t *testing.T) {
	path := writeConfig(t, "physics:\n  theta: 3\n")
	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "theta")
}

func TestLoadFromRejectsUnknownLevel(t *testing.T) {
	path := writeConfig(t, "lod_thresholds:\n  - min_zoom: 1\n    level: extreme\n")
	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "extreme")
}

func TestLoadFromRejectsUnknownTier(t *testing.T) {
	path := writeConfig(t, "tier_budgets:\n  turbo:\n    max_nodes: 1\n    max_edges: 1\n")
	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "turbo")
}

func TestLoadFromRejectsNonPositiveBudget(t *testing.T) {
	path := writeConfig(t, "tier_budgets:\n  eco:\n    max_nodes: 0\n    max_edges: 10\n")
	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "non-positive")
}

func TestLoadFromRejectsUnknownProfile(t *testing.T) {
	path := writeConfig(t, "monitor:\n  profile: console\n")
	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "profile")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GRAPHVIEW_METRICS_ADDR", ":9999")
	t.Setenv("GRAPHVIEW_SYNC", "1")
	t.Setenv("GRAPHVIEW_QUEUE_DEPTH", "42")

	path := writeConfig(t, "metrics_addr: \":9100\"\n")
	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.MetricsAddr)
	assert.True(t, cfg.Worker.Synchronous)
	assert.Equal(t, 42, cfg.Worker.QueueDepth)
}

func TestEnvOverrideIgnoresBadQueueDepth(t *testing.T) {
	t.Setenv("GRAPHVIEW_QUEUE_DEPTH", "lots")
	path := writeConfig(t, "worker:\n  queue_depth: 7\n")
	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Worker.QueueDepth)
}

func TestLODThresholdsEmptyUsesBuiltins(t *testing.T) {
	thresholds, err := Config{}.LODThresholds()
	require.NoError(t, err)
	assert.Equal(t, lod.DefaultThresholds, thresholds)
}

func TestPerfmonConfigMobileProfile(t *testing.T) {
	cfg := Config{Monitor: MonitorConfig{Profile: "mobile", SampleSize: 20, StabilityCV: 0.2}}
	pc := cfg.PerfmonConfig()
	assert.Equal(t, perfmon.MobileThresholds, pc.Thresholds)
	assert.Equal(t, 20, pc.SampleSize)
	assert.Equal(t, 0.2, pc.StabilityThreshold)
}

func TestPerfmonConfigDesktopDefaults(t *testing.T) {
	pc := DefaultConfig().PerfmonConfig()
	assert.Zero(t, pc.Thresholds)
	assert.Zero(t, pc.SampleSize)
}

func TestConfigDirHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	assert.Equal(t, filepath.Join("/tmp/xdg-test", "graphview"), ConfigDir())
	assert.Equal(t, filepath.Join("/tmp/xdg-test", "graphview", "config.yaml"), ConfigPath())
}
