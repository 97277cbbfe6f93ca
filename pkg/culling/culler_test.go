package culling

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/graphview-io/graphview/pkg/lod"
	"github.com/graphview-io/graphview/pkg/metrics"
	"github.com/graphview-io/graphview/pkg/model"
	"github.com/graphview-io/graphview/pkg/perfmon"
	"github.com/graphview-io/graphview/pkg/spatial"
	"github.com/graphview-io/graphview/pkg/testutil"
)

func newTestCuller(t testing.TB) *Culler {
	t.Helper()
	ctrl, err := lod.NewController(lod.DefaultThresholds, lod.DefaultConfigs())
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	return New(ctrl)
}

func loadGraph(c *Culler, g model.Graph) {
	c.SetGraph(g.Nodes, g.Edges)
	c.SetIndex(spatial.Build(spatial.PointsFromNodes(g.Nodes)))
}

func TestCullEmptyGraph(t *testing.T) {
	c := newTestCuller(t)
	vp := model.ViewportInfo{Width: 800, Height: 600, Zoom: 1.0}

	res := c.Cull(vp, 0)
	if len(res.Nodes) != 0 || len(res.Edges) != 0 {
		t.Fatalf("expected empty result, got %d nodes %d edges", len(res.Nodes), len(res.Edges))
	}
	if res.Level != lod.Medium {
		t.Errorf("level = %v, want Medium at zoom 1.0", res.Level)
	}
	if res.Stats.TotalNodes != 0 {
		t.Errorf("stats total = %d, want 0", res.Stats.TotalNodes)
	}
}

func TestCullViewportOffGraph(t *testing.T) {
	c := newTestCuller(t)
	gen := testutil.NewDefault()
	loadGraph(c, model.Graph{Nodes: gen.UniformNodes(100)})

	// Nodes live in [-1000, 1000]; look far away from all of them.
	vp := model.ViewportInfo{CenterX: 1e6, CenterY: 1e6, Width: 800, Height: 600, Zoom: 1.0}
	res := c.Cull(vp, 0)
	if len(res.Nodes) != 0 {
		t.Fatalf("expected no visible nodes, got %d", len(res.Nodes))
	}
	if res.Stats.CulledNodes != 100 {
		t.Errorf("culled = %d, want 100", res.Stats.CulledNodes)
	}
}

func TestCullNodeBudgetIsMinOfLODAndTier(t *testing.T) {
	c := newTestCuller(t)
	gen := testutil.NewDefault()
	loadGraph(c, model.Graph{Nodes: gen.UniformNodes(500)})

	// Zoom 0.1 selects Low (MaxNodes 2000); the tier budget is the
	// tighter of the two here.
	c.SetTierBudget(perfmon.Budget{MaxNodes: 50, MaxEdges: 100})
	vp := model.ViewportInfo{Width: 80000, Height: 80000, Zoom: 0.1}

	res := c.Cull(vp, 0)
	if res.Level != lod.Low {
		t.Fatalf("level = %v, want Low", res.Level)
	}
	if len(res.Nodes) != 50 {
		t.Errorf("visible = %d, want tier cap 50", len(res.Nodes))
	}

	// With a loose tier budget the LOD cap takes over.
	c.SetTierBudget(perfmon.Budget{MaxNodes: 1 << 20, MaxEdges: 1 << 20})
	res = c.Cull(vp, 0)
	if len(res.Nodes) != 500 {
		t.Errorf("visible = %d, want all 500 under a 2000-node cap", len(res.Nodes))
	}
}

func TestCullRecordsIndexQueryTiming(t *testing.T) {
	c := newTestCuller(t)
	loadGraph(c, testutil.NewDefault().GridGraph(3, 3))

	metrics.IndexQuery.Reset()
	c.Cull(model.ViewportInfo{Width: 1e6, Height: 1e6, Zoom: 1.0}, 0)

	if got := metrics.IndexQuery.Count(); got != 1 {
		t.Fatalf("index query timings recorded = %d, want 1", got)
	}
}

func TestCullKeepsHighestScoringNodes(t *testing.T) {
	c := newTestCuller(t)

	nodes := make([]model.Node, 10)
	for i := range nodes {
		nodes[i] = model.Node{
			ID:         fmt.Sprintf("n%02d", i),
			X:          float64(i),
			Y:          0,
			Importance: float64(i) / 10,
		}
	}
	loadGraph(c, model.Graph{Nodes: nodes})
	c.SetTierBudget(perfmon.Budget{MaxNodes: 3, MaxEdges: 10})

	vp := model.ViewportInfo{CenterX: 5, CenterY: 0, Width: 100, Height: 100, Zoom: 1.0}
	res := c.Cull(vp, 0)

	testutil.AssertVisibleIDs(t, res.Nodes, "n09", "n08", "n07")
}

func TestCullScoreTieBreaksOnID(t *testing.T) {
	c := newTestCuller(t)

	// All scores equal, so ordering must come from the id.
	nodes := []model.Node{
		{ID: "c", X: 0, Y: 0, Importance: 0.5},
		{ID: "a", X: 1, Y: 0, Importance: 0.5},
		{ID: "b", X: 2, Y: 0, Importance: 0.5},
	}
	loadGraph(c, model.Graph{Nodes: nodes})
	c.SetTierBudget(perfmon.Budget{MaxNodes: 2, MaxEdges: 10})

	vp := model.ViewportInfo{CenterX: 1, CenterY: 0, Width: 100, Height: 100, Zoom: 1.0}
	res := c.Cull(vp, 0)

	testutil.AssertVisibleIDs(t, res.Nodes, "a", "b")
}

func TestCullEdgesRequireBothEndpoints(t *testing.T) {
	c := newTestCuller(t)

	nodes := []model.Node{
		{ID: "in1", X: 0, Y: 0},
		{ID: "in2", X: 10, Y: 0},
		{ID: "out", X: 5000, Y: 5000},
	}
	edges := []model.Edge{
		{Source: "in1", Target: "in2", Weight: 1},
		{Source: "in1", Target: "out", Weight: 1},
		{Source: "out", Target: "in2", Weight: 1},
	}
	loadGraph(c, model.Graph{Nodes: nodes, Edges: edges})

	vp := model.ViewportInfo{CenterX: 5, CenterY: 0, Width: 100, Height: 100, Zoom: 1.0}
	res := c.Cull(vp, 0)

	if len(res.Edges) != 1 {
		t.Fatalf("edges = %d, want only the in1-in2 edge", len(res.Edges))
	}
	testutil.AssertEdgeEndpointsVisible(t, res.Nodes, res.Edges)
	if res.Stats.EdgesCulled != 2 {
		t.Errorf("edges culled = %d, want 2", res.Stats.EdgesCulled)
	}
}

func TestCullEdgeBudgetKeepsHeaviest(t *testing.T) {
	c := newTestCuller(t)

	nodes := []model.Node{
		{ID: "a", X: 0, Y: 0},
		{ID: "b", X: 1, Y: 0},
		{ID: "c", X: 2, Y: 0},
		{ID: "d", X: 3, Y: 0},
	}
	edges := []model.Edge{
		{Source: "a", Target: "b", Weight: 0.1},
		{Source: "b", Target: "c", Weight: 0.9},
		{Source: "c", Target: "d", Weight: 0.5},
		{Source: "a", Target: "d", Weight: 0.3},
	}
	loadGraph(c, model.Graph{Nodes: nodes, Edges: edges})
	c.SetTierBudget(perfmon.Budget{MaxNodes: 100, MaxEdges: 2})

	vp := model.ViewportInfo{CenterX: 1.5, CenterY: 0, Width: 100, Height: 100, Zoom: 1.0}
	res := c.Cull(vp, 0)

	if len(res.Edges) != 2 {
		t.Fatalf("edges = %d, want 2", len(res.Edges))
	}
	got := map[string]bool{}
	for _, e := range res.Edges {
		got[e.Source+"-"+e.Target] = true
	}
	if !got["b-c"] || !got["c-d"] {
		t.Errorf("kept %v, want the two heaviest edges b-c and c-d", got)
	}
	if res.Stats.EdgesCulled != 2 {
		t.Errorf("edges culled = %d, want 2", res.Stats.EdgesCulled)
	}
}

func TestSetNodesKeepsEdges(t *testing.T) {
	c := newTestCuller(t)

	g := testutil.NewDefault().GridGraph(3, 3)
	loadGraph(c, g)

	// Simulate a physics tick: positions move, edges stay.
	moved := make([]model.Node, len(g.Nodes))
	copy(moved, g.Nodes)
	for i := range moved {
		moved[i].X += 0.5
	}
	c.SetNodes(moved)
	c.SetIndex(spatial.Build(spatial.PointsFromNodes(moved)))

	vp := model.ViewportInfo{Width: 1e6, Height: 1e6, Zoom: 1.0}
	res := c.Cull(vp, 0)
	if len(res.Nodes) != len(g.Nodes) {
		t.Fatalf("visible nodes = %d, want %d", len(res.Nodes), len(g.Nodes))
	}
	if len(res.Edges) != len(g.Edges) {
		t.Errorf("visible edges = %d, want %d", len(res.Edges), len(g.Edges))
	}
	testutil.AssertEdgeEndpointsVisible(t, res.Nodes, res.Edges)
}

func TestCullExpandMarginPullsInEdgeNodes(t *testing.T) {
	c := newTestCuller(t)

	nodes := []model.Node{
		{ID: "inside", X: 0, Y: 0},
		{ID: "fringe", X: 55, Y: 0}, // just outside the 50-unit half-width
	}
	loadGraph(c, model.Graph{Nodes: nodes})
	vp := model.ViewportInfo{Width: 100, Height: 100, Zoom: 1.0}

	res := c.Cull(vp, 0)
	testutil.AssertVisibleIDs(t, res.Nodes, "inside")

	res = c.Cull(vp, 10)
	testutil.AssertVisibleIDs(t, res.Nodes, "inside", "fringe")
}

func TestCullInvariantsRandomized(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctrl := lod.MustController(lod.DefaultThresholds, lod.DefaultConfigs())
		c := New(ctrl)

		n := rapid.IntRange(0, 200).Draw(t, "n")
		density := rapid.Float64Range(0, 0.1).Draw(t, "density")
		seed := rapid.Int64Range(1, 1<<31).Draw(t, "seed")
		gen := testutil.New(testutil.GeneratorConfig{Seed: seed})
		g := gen.RandomGraph(n, density)
		loadGraph(c, g)

		maxNodes := rapid.IntRange(1, 100).Draw(t, "maxNodes")
		maxEdges := rapid.IntRange(1, 100).Draw(t, "maxEdges")
		c.SetTierBudget(perfmon.Budget{MaxNodes: maxNodes, MaxEdges: maxEdges})

		vp := model.ViewportInfo{
			CenterX: rapid.Float64Range(-1000, 1000).Draw(t, "cx"),
			CenterY: rapid.Float64Range(-1000, 1000).Draw(t, "cy"),
			Width:   rapid.Float64Range(1, 4000).Draw(t, "w"),
			Height:  rapid.Float64Range(1, 4000).Draw(t, "h"),
			Zoom:    rapid.Float64Range(0.01, 10).Draw(t, "zoom"),
		}
		margin := rapid.Float64Range(0, 100).Draw(t, "margin")

		res := c.Cull(vp, margin)

		if len(res.Nodes) > maxNodes {
			t.Fatalf("node budget violated: %d > %d", len(res.Nodes), maxNodes)
		}
		if len(res.Edges) > maxEdges {
			t.Fatalf("edge budget violated: %d > %d", len(res.Edges), maxEdges)
		}

		visible := map[string]bool{}
		for _, vn := range res.Nodes {
			visible[vn.ID] = true
		}
		for _, e := range res.Edges {
			if !visible[e.Source] || !visible[e.Target] {
				t.Fatalf("edge %s-%s has a culled endpoint", e.Source, e.Target)
			}
		}

		bounds := vp.Bounds().Expand(margin)
		for _, vn := range res.Nodes {
			if !bounds.Contains(vn.X, vn.Y) {
				t.Fatalf("node %s at (%v, %v) outside query bounds %+v", vn.ID, vn.X, vn.Y, bounds)
			}
		}

		if res.Stats.VisibleNodes != len(res.Nodes) {
			t.Fatalf("stats visible = %d, len = %d", res.Stats.VisibleNodes, len(res.Nodes))
		}
		if res.Stats.CulledNodes != len(g.Nodes)-len(res.Nodes) {
			t.Fatalf("stats culled = %d, want %d", res.Stats.CulledNodes, len(g.Nodes)-len(res.Nodes))
		}
	})
}

func TestCullLargeClusteredGraph(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 10k-node cull in short mode")
	}
	c := newTestCuller(t)
	gen := testutil.NewDefault()
	g := gen.RandomGraph(10000, 0.0005)
	loadGraph(c, g)
	c.SetTierBudget(perfmon.Budget{MaxNodes: 1000, MaxEdges: 2000})

	vp := model.ViewportInfo{Width: 1200, Height: 900, Zoom: 0.5}
	res := c.Cull(vp, 50)

	if len(res.Nodes) > 1000 {
		t.Fatalf("node budget violated: %d", len(res.Nodes))
	}
	testutil.AssertEdgeEndpointsVisible(t, res.Nodes, res.Edges)
	if res.Stats.TotalNodes != 10000 {
		t.Errorf("stats total = %d, want 10000", res.Stats.TotalNodes)
	}
}

func BenchmarkCull10k(b *testing.B) {
	c := newTestCuller(b)
	gen := testutil.NewDefault()
	g := gen.RandomGraph(10000, 0.0005)
	loadGraph(c, g)
	vp := model.ViewportInfo{Width: 1200, Height: 900, Zoom: 0.5}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Cull(vp, 50)
	}
}
