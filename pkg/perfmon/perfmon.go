// Package perfmon samples wall-clock frame intervals and adapts a quality
// tier with hysteresis. Sampling is synchronous and cheap: the ring buffer
// is allocated once and reused, so a steady-state Sample call allocates
// nothing. The monitor is driven once per rendered frame from the render
// thread.
package perfmon

import (
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Tier is a performance-driven quality tier. The total order (Eco lowest)
// is what "upgrade" and "downgrade" compare against. This is deliberately a
// different type than lod.Level: camera zoom and measured performance are
// independent signals and are combined only when computing effective budgets.
type Tier int

const (
	Eco Tier = iota
	Standard
	High
	Ultra
)

func (t Tier) String() string {
	switch t {
	case Ultra:
		return "ultra"
	case High:
		return "high"
	case Standard:
		return "standard"
	case Eco:
		return "eco"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Budget caps the render set size for a tier. The culler applies the
// minimum of this and the LOD budget.
type Budget struct {
	MaxNodes int
	MaxEdges int
}

// DefaultBudgets returns the per-tier caps.
func DefaultBudgets() map[Tier]Budget {
	return map[Tier]Budget{
		Ultra:    {MaxNodes: 50000, MaxEdges: 100000},
		High:     {MaxNodes: 20000, MaxEdges: 40000},
		Standard: {MaxNodes: 10000, MaxEdges: 20000},
		Eco:      {MaxNodes: 2000, MaxEdges: 4000},
	}
}

// Metrics is a snapshot of the rolling frame-time window.
type Metrics struct {
	FPS         float64
	FrameTimeMs float64
	AvgFPS      float64
	MinFPS      float64
	MaxFPS      float64
	IsStable    bool
}

// TierThresholds maps average fps to a desired tier: avg >= Ultra selects
// ultra, and so on down to Eco.
type TierThresholds struct {
	Ultra    float64
	High     float64
	Standard float64
}

// Desired maps an average fps to the tier it suggests.
func (t TierThresholds) Desired(avgFPS float64) Tier {
	switch {
	case avgFPS >= t.Ultra:
		return Ultra
	case avgFPS >= t.High:
		return High
	case avgFPS >= t.Standard:
		return Standard
	default:
		return Eco
	}
}

// DesktopThresholds is the default bar for desktop-class devices.
var DesktopThresholds = TierThresholds{Ultra: 55, High: 45, Standard: 30}

// MobileThresholds uses a lower bar: mobile devices are not expected to
// sustain desktop frame rates at the same tier.
var MobileThresholds = TierThresholds{Ultra: 50, High: 35, Standard: 24}

// Config tunes the monitor. Zero values select documented defaults.
type Config struct {
	// SampleSize is the ring buffer window (default 60 samples).
	SampleSize int
	// StabilityThreshold is the max coefficient of variation
	// (stddev/mean of frame times) for the window to count as stable
	// (default 0.1).
	StabilityThreshold float64
	// DowngradeSamples is how many consecutive frames must all suggest the
	// same worse tier before a downgrade applies (default 20).
	DowngradeSamples int
	// DowngradeCooldown is the minimum gap since the last tier change
	// before a downgrade (default 2s).
	DowngradeCooldown time.Duration
	// UpgradeCooldown rate-limits upgrades more conservatively than
	// downgrades (default 5s).
	UpgradeCooldown time.Duration
	// StartupGrace suppresses downgrades entirely for this long after
	// monitor creation; upgrades remain allowed (default 10s).
	StartupGrace time.Duration
	// Thresholds is the device-class fps bar. The device class is an
	// external input, so this is configuration rather than a constant.
	Thresholds TierThresholds
	// InitialTier is the tier the monitor starts at (default High).
	InitialTier Tier

	// now overrides the clock in tests.
	now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.SampleSize <= 0 {
		c.SampleSize = 60
	}
	if c.StabilityThreshold <= 0 {
		c.StabilityThreshold = 0.1
	}
	if c.DowngradeSamples <= 0 {
		c.DowngradeSamples = 20
	}
	if c.DowngradeCooldown <= 0 {
		c.DowngradeCooldown = 2 * time.Second
	}
	if c.UpgradeCooldown <= 0 {
		c.UpgradeCooldown = 5 * time.Second
	}
	if c.StartupGrace <= 0 {
		c.StartupGrace = 10 * time.Second
	}
	if c.Thresholds == (TierThresholds{}) {
		c.Thresholds = DesktopThresholds
	}
	if c.InitialTier == 0 {
		c.InitialTier = High
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Monitor is the adaptive quality state machine. Methods are safe for
// concurrent use, though the intended driver is a single render loop.
type Monitor struct {
	cfg Config

	mu         sync.Mutex
	frames     []float64 // frame times in ms, ring buffer
	scratch    []float64 // reused for window statistics
	head       int
	filled     int
	tier       Tier
	lastChange time.Time
	created    time.Time

	// Downgrade hysteresis: how many consecutive samples suggested
	// worseTier.
	consecutiveWorse int
	worseTier        Tier
}

// NewMonitor creates a monitor holding its initial tier.
func NewMonitor(cfg Config) *Monitor {
	cfg = cfg.withDefaults()
	now := cfg.now()
	return &Monitor{
		cfg:     cfg,
		frames:  make([]float64, cfg.SampleSize),
		scratch: make([]float64, 0, cfg.SampleSize),
		tier:    cfg.InitialTier,
		created: now,
		// lastChange stays zero so the first transition is gated only by
		// hysteresis, not by a phantom prior change.
	}
}

// Tier returns the current quality tier.
func (m *Monitor) Tier() Tier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tier
}

// SetTier is the manual override: it bypasses hysteresis, resets the
// cooldown timer and the consecutive-drop counter, and holds until the next
// automatic transition is eligible.
func (m *Monitor) SetTier(t Tier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tier = t
	m.lastChange = m.cfg.now()
	m.consecutiveWorse = 0
}

// Sample records one frame duration and evaluates a tier transition.
// Returns the active tier and whether this sample changed it.
//
// Non-positive durations (clock anomalies, e.g. after a tab regains
// visibility) are discarded rather than corrupting the window.
func (m *Monitor) Sample(frame time.Duration) (Tier, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame <= 0 {
		return m.tier, false
	}

	ms := float64(frame.Nanoseconds()) / 1e6
	m.frames[m.head] = ms
	m.head = (m.head + 1) % len(m.frames)
	if m.filled < len(m.frames) {
		m.filled++
	}

	now := m.cfg.now()
	metrics := m.metricsLocked(ms)
	desired := m.cfg.Thresholds.Desired(metrics.AvgFPS)

	switch {
	case desired < m.tier:
		if desired == m.worseTier {
			m.consecutiveWorse++
		} else {
			m.worseTier = desired
			m.consecutiveWorse = 1
		}
		if m.downgradeAllowed(now) {
			m.tier = desired
			m.lastChange = now
			m.consecutiveWorse = 0
			return m.tier, true
		}

	case desired > m.tier:
		m.consecutiveWorse = 0
		if m.upgradeAllowed(now, metrics) {
			// Upgrades step one tier at a time: oscillating upward
			// prematurely causes immediate re-downgrade thrash.
			m.tier++
			m.lastChange = now
			return m.tier, true
		}

	default:
		m.consecutiveWorse = 0
	}

	return m.tier, false
}

func (m *Monitor) downgradeAllowed(now time.Time) bool {
	if now.Sub(m.created) < m.cfg.StartupGrace {
		return false
	}
	if m.consecutiveWorse < m.cfg.DowngradeSamples {
		return false
	}
	return m.lastChange.IsZero() || now.Sub(m.lastChange) >= m.cfg.DowngradeCooldown
}

func (m *Monitor) upgradeAllowed(now time.Time, metrics Metrics) bool {
	if !metrics.IsStable {
		return false
	}
	if m.filled < len(m.frames) {
		return false
	}
	return m.lastChange.IsZero() || now.Sub(m.lastChange) >= m.cfg.UpgradeCooldown
}

// Metrics recomputes the rolling window statistics. It is read-only
// telemetry for display; consumers must not feed it back as a control
// input.
func (m *Monitor) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	last := 0.0
	if m.filled > 0 {
		last = m.frames[(m.head-1+len(m.frames))%len(m.frames)]
	}
	return m.metricsLocked(last)
}

func (m *Monitor) metricsLocked(lastMs float64) Metrics {
	if m.filled == 0 {
		return Metrics{}
	}

	m.scratch = m.scratch[:0]
	for i := 0; i < m.filled; i++ {
		m.scratch = append(m.scratch, m.frames[i])
	}

	mean, std := stat.MeanStdDev(m.scratch, nil)
	minMs, maxMs := m.scratch[0], m.scratch[0]
	for _, v := range m.scratch[1:] {
		if v < minMs {
			minMs = v
		}
		if v > maxMs {
			maxMs = v
		}
	}

	metrics := Metrics{
		FrameTimeMs: lastMs,
		AvgFPS:      fpsOf(mean),
		MinFPS:      fpsOf(maxMs), // slowest frame bounds the minimum fps
		MaxFPS:      fpsOf(minMs),
	}
	if lastMs > 0 {
		metrics.FPS = 1000 / lastMs
	}
	if mean > 0 && m.filled > 1 {
		metrics.IsStable = std/mean < m.cfg.StabilityThreshold
	}
	return metrics
}

func fpsOf(frameMs float64) float64 {
	if frameMs <= 0 {
		return 0
	}
	return 1000 / frameMs
}
