// Package lod maps camera zoom to a discrete level of detail with fixed
// node/edge budgets. The mapping is a pure function of zoom: the controller
// has no hidden state, which keeps the camera-derived LOD level and the
// performance-derived quality tier (pkg/perfmon) reasoned about as two
// independent signals even though both ultimately bound how much is drawn.
package lod

import (
	"fmt"
	"sort"
)

// Level is a discrete quality tier selected from camera zoom. Higher levels
// render more detail.
type Level int

const (
	Low Level = iota
	Medium
	High
	Ultra
)

func (l Level) String() string {
	switch l {
	case Ultra:
		return "ultra"
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Config holds the immutable render budgets for one level. One instance
// exists per level; configs are looked up by value and never mutated at
// runtime.
type Config struct {
	Level    Level
	MaxNodes int
	MaxEdges int
	// Simplify asks the renderer to use cheaper node/edge representations.
	Simplify bool
}

// Threshold maps a minimum zoom (exclusive) to a level. Thresholds must be
// strictly decreasing in zoom and strictly decreasing in level.
type Threshold struct {
	MinZoom float64
	Level   Level
}

// DefaultThresholds is the documented zoom->level table.
var DefaultThresholds = []Threshold{
	{MinZoom: 2.0, Level: Ultra},
	{MinZoom: 1.0, Level: High},
	{MinZoom: 0.5, Level: Medium},
}

// DefaultConfigs returns the standard budget table.
func DefaultConfigs() map[Level]Config {
	return map[Level]Config{
		Ultra:  {Level: Ultra, MaxNodes: 50000, MaxEdges: 100000},
		High:   {Level: High, MaxNodes: 20000, MaxEdges: 40000},
		Medium: {Level: Medium, MaxNodes: 10000, MaxEdges: 20000, Simplify: true},
		Low:    {Level: Low, MaxNodes: 2000, MaxEdges: 4000, Simplify: true},
	}
}

// Controller resolves zoom values to level configs. Construction validates
// the threshold table; an invalid table is a configuration error and fails
// fast rather than being silently reordered or clamped.
type Controller struct {
	thresholds []Threshold
	configs    map[Level]Config
}

// NewController builds a controller from a threshold table and a budget
// table. Nil arguments select the defaults.
func NewController(thresholds []Threshold, configs map[Level]Config) (*Controller, error) {
	if thresholds == nil {
		thresholds = DefaultThresholds
	}
	if configs == nil {
		configs = DefaultConfigs()
	}

	if !sort.SliceIsSorted(thresholds, func(i, j int) bool {
		return thresholds[i].MinZoom > thresholds[j].MinZoom
	}) {
		return nil, fmt.Errorf("lod: thresholds not monotonically decreasing in zoom")
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i].MinZoom == thresholds[i-1].MinZoom {
			return nil, fmt.Errorf("lod: duplicate threshold zoom %v", thresholds[i].MinZoom)
		}
		if thresholds[i].Level >= thresholds[i-1].Level {
			return nil, fmt.Errorf("lod: levels not monotonically decreasing with zoom")
		}
	}

	for _, t := range thresholds {
		if _, ok := configs[t.Level]; !ok {
			return nil, fmt.Errorf("lod: no config for level %s", t.Level)
		}
	}
	if _, ok := configs[Low]; !ok {
		return nil, fmt.Errorf("lod: no config for fallback level %s", Low)
	}
	for level, cfg := range configs {
		if cfg.MaxNodes <= 0 || cfg.MaxEdges <= 0 {
			return nil, fmt.Errorf("lod: non-positive budget for level %s", level)
		}
	}

	ts := make([]Threshold, len(thresholds))
	copy(ts, thresholds)
	cs := make(map[Level]Config, len(configs))
	for k, v := range configs {
		cs[k] = v
	}
	return &Controller{thresholds: ts, configs: cs}, nil
}

// MustController is NewController that panics on error, for use with the
// compile-time default tables.
func MustController(thresholds []Threshold, configs map[Level]Config) *Controller {
	c, err := NewController(thresholds, configs)
	if err != nil {
		panic(err)
	}
	return c
}

// LevelFor maps a zoom value to its level. Same input always yields the
// same output.
func (c *Controller) LevelFor(zoom float64) Level {
	for _, t := range c.thresholds {
		if zoom > t.MinZoom {
			return t.Level
		}
	}
	return Low
}

// ConfigFor returns the immutable config for a level.
func (c *Controller) ConfigFor(level Level) Config {
	if cfg, ok := c.configs[level]; ok {
		return cfg
	}
	return c.configs[Low]
}

// ConfigForZoom is LevelFor followed by ConfigFor.
func (c *Controller) ConfigForZoom(zoom float64) Config {
	return c.ConfigFor(c.LevelFor(zoom))
}
