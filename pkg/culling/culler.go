// Package culling turns a camera snapshot into a bounded render set: a
// spatial query over the current index, an importance-ordered node budget
// and a weight-ordered edge budget.
package culling

import (
	"sort"
	"time"

	"github.com/graphview-io/graphview/pkg/lod"
	"github.com/graphview-io/graphview/pkg/metrics"
	"github.com/graphview-io/graphview/pkg/model"
	"github.com/graphview-io/graphview/pkg/perfmon"
	"github.com/graphview-io/graphview/pkg/spatial"
)

// Stats describes one cull pass.
type Stats struct {
	TotalNodes   int           `json:"total_nodes"`
	VisibleNodes int           `json:"visible_nodes"`
	CulledNodes  int           `json:"culled_nodes"`
	EdgesCulled  int           `json:"edges_culled"`
	Level        lod.Level     `json:"lod_level"`
	Duration     time.Duration `json:"duration"`
}

// Result is the bounded visible set for one frame. The renderer must
// tolerate empty lists; an empty result is normal when the viewport covers
// empty space.
type Result struct {
	Nodes []model.VisibleNode
	Edges []model.VisibleEdge
	Level lod.Level
	Stats Stats
}

// Culler combines the spatial index with the LOD controller to produce
// render sets. A Culler has a single mutable owner (the engine worker);
// it is not safe for concurrent mutation.
type Culler struct {
	ctrl *lod.Controller

	nodes []model.Node
	byID  map[string]int
	edges []model.Edge
	index *spatial.Index

	// tierBudget is the performance-tier cap, combined with the LOD budget
	// by taking the minimum of both. The two signals stay separate types
	// on purpose.
	tierBudget perfmon.Budget
}

// New creates a culler using the given LOD controller.
func New(ctrl *lod.Controller) *Culler {
	return &Culler{
		ctrl:       ctrl,
		byID:       map[string]int{},
		tierBudget: perfmon.Budget{MaxNodes: int(^uint(0) >> 1), MaxEdges: int(^uint(0) >> 1)},
	}
}

// SetGraph replaces the node/edge set wholesale.
func (c *Culler) SetGraph(nodes []model.Node, edges []model.Edge) {
	c.nodes = nodes
	c.edges = edges
	c.byID = make(map[string]int, len(nodes))
	for i, n := range nodes {
		c.byID[n.ID] = i
	}
}

// SetNodes updates the node snapshots while keeping the current edge set.
// Used after a physics tick, where only positions change.
func (c *Culler) SetNodes(nodes []model.Node) {
	c.nodes = nodes
	c.byID = make(map[string]int, len(nodes))
	for i, n := range nodes {
		c.byID[n.ID] = i
	}
}

// SetIndex publishes a freshly built spatial index.
func (c *Culler) SetIndex(ix *spatial.Index) {
	c.index = ix
}

// SetTierBudget updates the performance-tier cap used on the next cull.
func (c *Culler) SetTierBudget(b perfmon.Budget) {
	if b.MaxNodes <= 0 {
		b.MaxNodes = int(^uint(0) >> 1)
	}
	if b.MaxEdges <= 0 {
		b.MaxEdges = int(^uint(0) >> 1)
	}
	c.tierBudget = b
}

// Cull computes the visible set for a viewport. expandMargin grows the
// query bounds outward in world units on every side as a hysteresis margin
// against popping at the exact viewport edge.
//
// An empty graph or a viewport outside the graph bounds yields an empty
// result, never an error.
func (c *Culler) Cull(vp model.ViewportInfo, expandMargin float64) Result {
	start := time.Now()

	level := c.ctrl.LevelFor(vp.Zoom)
	cfg := c.ctrl.ConfigFor(level)
	maxNodes := minInt(cfg.MaxNodes, c.tierBudget.MaxNodes)
	maxEdges := minInt(cfg.MaxEdges, c.tierBudget.MaxEdges)

	res := Result{Level: level}
	res.Stats.Level = level
	res.Stats.TotalNodes = len(c.nodes)

	if len(c.nodes) == 0 || c.index == nil {
		res.Stats.Duration = time.Since(start)
		return res
	}

	bounds := vp.Bounds().Expand(expandMargin)

	candidates := make([]int, 0, 256)
	stopQuery := metrics.Timer(metrics.IndexQuery)
	c.index.QueryFunc(bounds, func(p spatial.Point) {
		if i, ok := c.byID[p.ID]; ok {
			candidates = append(candidates, i)
		}
	})
	stopQuery()

	// Keep the most important nodes under budget pressure, not the
	// nearest-to-center or first-inserted ones. Ties break on id so the
	// render set is deterministic.
	sort.Slice(candidates, func(a, b int) bool {
		na, nb := c.nodes[candidates[a]], c.nodes[candidates[b]]
		sa, sb := na.Score(), nb.Score()
		if sa != sb {
			return sa > sb
		}
		return na.ID < nb.ID
	})
	if len(candidates) > maxNodes {
		candidates = candidates[:maxNodes]
	}

	visible := make(map[string]struct{}, len(candidates))
	res.Nodes = make([]model.VisibleNode, len(candidates))
	for i, ni := range candidates {
		n := c.nodes[ni]
		visible[n.ID] = struct{}{}
		res.Nodes[i] = model.VisibleNode{ID: n.ID, X: n.X, Y: n.Y, Z: n.Z}
	}

	res.Edges, res.Stats.EdgesCulled = c.cullEdges(visible, maxEdges)

	res.Stats.VisibleNodes = len(res.Nodes)
	res.Stats.CulledNodes = len(c.nodes) - len(res.Nodes)
	res.Stats.Duration = time.Since(start)
	return res
}

// cullEdges keeps edges with both endpoints visible, truncating by weight
// when over budget.
func (c *Culler) cullEdges(visible map[string]struct{}, maxEdges int) ([]model.VisibleEdge, int) {
	kept := make([]int, 0, 256)
	for i, e := range c.edges {
		if _, ok := visible[e.Source]; !ok {
			continue
		}
		if _, ok := visible[e.Target]; !ok {
			continue
		}
		kept = append(kept, i)
	}

	culled := len(c.edges) - len(kept)
	if len(kept) > maxEdges {
		sort.Slice(kept, func(a, b int) bool {
			ea, eb := c.edges[kept[a]], c.edges[kept[b]]
			if ea.Weight != eb.Weight {
				return ea.Weight > eb.Weight
			}
			if ea.Source != eb.Source {
				return ea.Source < eb.Source
			}
			return ea.Target < eb.Target
		})
		culled += len(kept) - maxEdges
		kept = kept[:maxEdges]
	}

	out := make([]model.VisibleEdge, len(kept))
	for i, ei := range kept {
		e := c.edges[ei]
		out[i] = model.VisibleEdge{Source: e.Source, Target: e.Target}
	}
	return out, culled
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
