package physics

import (
	"fmt"
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/graphview-io/graphview/pkg/model"
	"github.com/graphview-io/graphview/pkg/testutil"
)

func newTestEngine(t testing.TB) *Engine {
	t.Helper()
	e, err := New(DefaultParams())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return e
}

func TestParamsValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"damping above one", func(p *Params) { p.Damping = 1.5 }},
		{"negative damping", func(p *Params) { p.Damping = -0.1 }},
		{"zero theta", func(p *Params) { p.Theta = 0 }},
		{"theta above one", func(p *Params) { p.Theta = 1.1 }},
		{"negative repulsion", func(p *Params) { p.Repulsion = -1 }},
		{"negative attraction", func(p *Params) { p.Attraction = -1 }},
		{"zero min distance", func(p *Params) { p.MinDistance = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			if _, err := New(p); err == nil {
				t.Fatal("expected construction to fail")
			}
		})
	}
}

func TestSetParamsRejectsInvalidKeepsOld(t *testing.T) {
	e := newTestEngine(t)
	bad := DefaultParams()
	bad.Theta = 2
	if err := e.SetParams(bad); err == nil {
		t.Fatal("expected SetParams to reject theta 2")
	}
	if e.params.Theta != DefaultParams().Theta {
		t.Errorf("theta = %v, want the previous tuning kept", e.params.Theta)
	}
}

func TestSetNodesSeedsPositionlessNodes(t *testing.T) {
	e := newTestEngine(t)
	e.SetNodes([]model.Node{
		{ID: "seeded"},
		{ID: "placed", X: 42, Y: -7},
	})

	nodes := e.Nodes()
	seeded := testutil.FindNode(nodes, "seeded")
	if seeded == nil {
		t.Fatal("seeded node missing")
	}
	if seeded.X == 0 && seeded.Y == 0 {
		t.Error("position-less node was not seeded away from the origin")
	}

	placed := testutil.FindNode(nodes, "placed")
	if placed == nil || placed.X != 42 || placed.Y != -7 {
		t.Errorf("supplied position not preserved: %+v", placed)
	}

	// Seeding is a pure function of the id.
	e2 := newTestEngine(t)
	e2.SetNodes([]model.Node{{ID: "seeded"}})
	again := testutil.FindNode(e2.Nodes(), "seeded")
	if again.X != seeded.X || again.Y != seeded.Y {
		t.Errorf("seed position differs between engines: (%v,%v) vs (%v,%v)",
			seeded.X, seeded.Y, again.X, again.Y)
	}
}

func TestSetNodesDefaultsMassFromImportance(t *testing.T) {
	e := newTestEngine(t)
	e.SetNodes([]model.Node{
		{ID: "plain", X: 1, Y: 1},
		{ID: "heavy", X: 2, Y: 2, Importance: 1},
		{ID: "explicit", X: 3, Y: 3, Mass: 7},
	})

	nodes := e.Nodes()
	if m := testutil.FindNode(nodes, "plain").Mass; m != 1 {
		t.Errorf("plain mass = %v, want 1", m)
	}
	if m := testutil.FindNode(nodes, "heavy").Mass; m != 5 {
		t.Errorf("importance-1 mass = %v, want 5", m)
	}
	if m := testutil.FindNode(nodes, "explicit").Mass; m != 7 {
		t.Errorf("explicit mass = %v, want it kept", m)
	}
}

func TestSetNodesSkipsDuplicateIDs(t *testing.T) {
	e := newTestEngine(t)
	e.SetNodes([]model.Node{
		{ID: "a", X: 1, Y: 1},
		{ID: "a", X: 99, Y: 99},
	})
	if e.Len() != 1 {
		t.Fatalf("len = %d, want 1", e.Len())
	}
	if n := testutil.FindNode(e.Nodes(), "a"); n.X != 1 {
		t.Errorf("first occurrence should win, got x=%v", n.X)
	}
}

func TestSetEdgesSkipsDanglingAndSelfEdges(t *testing.T) {
	e := newTestEngine(t)
	e.SetNodes([]model.Node{
		{ID: "a", X: 0, Y: 1},
		{ID: "b", X: 10, Y: 1},
	})
	e.SetEdges([]model.Edge{
		{Source: "a", Target: "b"},
		{Source: "a", Target: "missing"},
		{Source: "a", Target: "a"},
	})
	if len(e.springs) != 1 {
		t.Fatalf("springs = %d, want only a-b", len(e.springs))
	}
	if e.springs[0].weight != 1 {
		t.Errorf("zero edge weight should default to 1, got %v", e.springs[0].weight)
	}
}

func TestTickDeterministic(t *testing.T) {
	gen := testutil.NewDefault()
	g := gen.RandomGraph(300, 0.02)

	run := func() []model.Node {
		e := newTestEngine(t)
		e.SetNodes(g.Nodes)
		e.SetEdges(g.Edges)
		var out []model.Node
		for i := 0; i < 20; i++ {
			out = e.Tick(1.0 / 60)
		}
		return out
	}

	first := run()
	second := run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("node %s diverged between identical runs:\n%+v\n%+v",
				first[i].ID, first[i], second[i])
		}
	}
}

func TestTickPinnedNodeStaysPut(t *testing.T) {
	e := newTestEngine(t)
	e.SetNodes([]model.Node{
		{ID: "anchor", X: 5, Y: 5, Pinned: true},
		{ID: "float", X: 6, Y: 5},
	})
	e.SetEdges([]model.Edge{{Source: "anchor", Target: "float"}})

	for i := 0; i < 50; i++ {
		e.Tick(1.0 / 60)
	}

	anchor := testutil.FindNode(e.Nodes(), "anchor")
	if anchor.X != 5 || anchor.Y != 5 {
		t.Errorf("pinned node moved to (%v, %v)", anchor.X, anchor.Y)
	}
	if anchor.VX != 0 || anchor.VY != 0 {
		t.Errorf("pinned node kept velocity (%v, %v)", anchor.VX, anchor.VY)
	}
}

func TestPinUnpin(t *testing.T) {
	e := newTestEngine(t)
	e.SetNodes([]model.Node{
		{ID: "a", X: 1, Y: 1},
		{ID: "b", X: 2, Y: 1},
	})

	if !e.Pin("a", true) {
		t.Fatal("Pin returned false for a known node")
	}
	if e.Pin("missing", true) {
		t.Fatal("Pin returned true for an unknown node")
	}

	e.Tick(1.0 / 60)
	if n := testutil.FindNode(e.Nodes(), "a"); n.X != 1 || n.Y != 1 {
		t.Errorf("pinned node moved: %+v", n)
	}

	e.Pin("a", false)
	e.Tick(1.0 / 60)
	if n := testutil.FindNode(e.Nodes(), "a"); n.X == 1 && n.Y == 1 {
		t.Error("unpinned node under repulsion did not move")
	}
}

func TestTickCoincidentNodesProduceFiniteForces(t *testing.T) {
	e := newTestEngine(t)
	e.SetNodes(testutil.NewDefault().CoincidentNodes(50, 3, 3))

	for i := 0; i < 30; i++ {
		e.Tick(1.0 / 60)
	}
	for _, n := range e.Nodes() {
		if math.IsNaN(n.X) || math.IsInf(n.X, 0) || math.IsNaN(n.Y) || math.IsInf(n.Y, 0) {
			t.Fatalf("node %s at non-finite position (%v, %v)", n.ID, n.X, n.Y)
		}
	}
}

func TestTickZeroDtIsNoOp(t *testing.T) {
	e := newTestEngine(t)
	e.SetNodes([]model.Node{{ID: "a", X: 1, Y: 2}, {ID: "b", X: 3, Y: 4}})
	before := e.Nodes()
	after := e.Tick(0)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("dt=0 moved node %s", before[i].ID)
		}
	}
}

func TestSpringPullsTowardRestLength(t *testing.T) {
	p := DefaultParams()
	p.Repulsion = 0 // isolate the spring force
	e, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	e.SetNodes([]model.Node{
		{ID: "a", X: 0, Y: 1},
		{ID: "b", X: 500, Y: 1},
	})
	e.SetEdges([]model.Edge{{Source: "a", Target: "b"}})

	dist := func() float64 {
		ns := e.Nodes()
		a, b := testutil.FindNode(ns, "a"), testutil.FindNode(ns, "b")
		return math.Hypot(b.X-a.X, b.Y-a.Y)
	}

	start := dist()
	for i := 0; i < 600; i++ {
		e.Tick(1.0 / 60)
	}
	end := dist()

	if end >= start {
		t.Fatalf("spring did not contract: %v -> %v", start, end)
	}
	if math.Abs(end-p.RestLength) > p.RestLength {
		t.Errorf("distance %v far from rest length %v after settling", end, p.RestLength)
	}
}

func TestMaxVelocityBoundsStep(t *testing.T) {
	p := DefaultParams()
	p.Repulsion = 1e9 // absurd tuning; the cap must still hold
	e, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	e.SetNodes(testutil.NewDefault().CoincidentNodes(10, 0, 0))

	prev := e.Nodes()
	dt := 1.0 / 60
	for i := 0; i < 10; i++ {
		cur := e.Tick(dt)
		for j := range cur {
			step := math.Hypot(cur[j].X-prev[j].X, cur[j].Y-prev[j].Y)
			// Per-axis clamp allows up to sqrt(2) * MaxVelocity * dt.
			if step > p.MaxVelocity*dt*math.Sqrt2+1e-9 {
				t.Fatalf("node %s moved %v in one tick, cap is %v",
					cur[j].ID, step, p.MaxVelocity*dt*math.Sqrt2)
			}
		}
		prev = cur
	}
}

func TestTickFiniteRandomized(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 120).Draw(t, "n")
		density := rapid.Float64Range(0, 0.2).Draw(t, "density")
		seed := rapid.Int64Range(1, 1<<31).Draw(t, "seed")
		ticks := rapid.IntRange(1, 30).Draw(t, "ticks")

		gen := testutil.New(testutil.GeneratorConfig{Seed: seed})
		g := gen.RandomGraph(n, density)

		e, err := New(DefaultParams())
		if err != nil {
			t.Fatalf("engine: %v", err)
		}
		e.SetNodes(g.Nodes)
		e.SetEdges(g.Edges)

		var out []model.Node
		for i := 0; i < ticks; i++ {
			out = e.Tick(1.0 / 60)
		}
		for _, node := range out {
			if math.IsNaN(node.X) || math.IsNaN(node.Y) ||
				math.IsInf(node.X, 0) || math.IsInf(node.Y, 0) {
				t.Fatalf("node %s at non-finite position (%v, %v)", node.ID, node.X, node.Y)
			}
		}
		if len(out) != len(g.Nodes) {
			t.Fatalf("snapshot has %d nodes, graph has %d", len(out), len(g.Nodes))
		}
	})
}

func BenchmarkTick(b *testing.B) {
	for _, n := range []int{1000, 5000} {
		b.Run(fmt.Sprintf("n%d", n), func(b *testing.B) {
			gen := testutil.NewDefault()
			g := gen.RandomGraph(n, 0.002)
			e, err := New(DefaultParams())
			if err != nil {
				b.Fatal(err)
			}
			e.SetNodes(g.Nodes)
			e.SetEdges(g.Edges)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				e.Tick(1.0 / 60)
			}
		})
	}
}
