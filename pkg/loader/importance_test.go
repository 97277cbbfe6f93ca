package loader

import (
	"testing"

	"github.com/graphview-io/graphview/pkg/model"
	"github.com/graphview-io/graphview/pkg/testutil"
)

func TestDefaultImportanceEmptyGraph(t *testing.T) {
	var g model.Graph
	DefaultImportance(&g) // must not panic
}

func TestDefaultImportanceNoEdges(t *testing.T) {
	g := model.Graph{Nodes: testutil.NewDefault().UniformNodes(5)}
	DefaultImportance(&g)
	for _, n := range g.Nodes {
		if n.Importance != 0 || n.Degree != 0 {
			t.Errorf("edgeless node %s: importance=%v degree=%d", n.ID, n.Importance, n.Degree)
		}
	}
}

func TestDefaultImportancePreservesExplicitValues(t *testing.T) {
	g := model.Graph{
		Nodes: []model.Node{
			{ID: "fixed", X: 0, Y: 1, Importance: 0.25},
			{ID: "derived", X: 1, Y: 1},
		},
		Edges: []model.Edge{{Source: "fixed", Target: "derived"}},
	}
	DefaultImportance(&g)

	if n := testutil.FindNode(g.Nodes, "fixed"); n.Importance != 0.25 {
		t.Errorf("explicit importance overwritten: %v", n.Importance)
	}
	if n := testutil.FindNode(g.Nodes, "derived"); n.Importance != 1 {
		t.Errorf("derived importance = %v, want 1", n.Importance)
	}
}

func TestPageRankImportanceRanksHubHighest(t *testing.T) {
	// Every spoke points at the hub, so the hub must end with the top
	// (normalized to 1.0) score.
	g := model.Graph{
		Nodes: []model.Node{
			{ID: "hub", X: 0, Y: 1},
			{ID: "s1", X: 1, Y: 1},
			{ID: "s2", X: 2, Y: 1},
			{ID: "s3", X: 3, Y: 1},
		},
		Edges: []model.Edge{
			{Source: "s1", Target: "hub"},
			{Source: "s2", Target: "hub"},
			{Source: "s3", Target: "hub"},
		},
	}
	PageRankImportance(&g)

	hub := testutil.FindNode(g.Nodes, "hub")
	if hub.Importance != 1 {
		t.Errorf("hub importance = %v, want 1", hub.Importance)
	}
	for _, id := range []string{"s1", "s2", "s3"} {
		n := testutil.FindNode(g.Nodes, id)
		if n.Importance <= 0 || n.Importance >= hub.Importance {
			t.Errorf("spoke %s importance = %v, want in (0, hub)", id, n.Importance)
		}
	}
}

func TestPageRankImportancePreservesExplicitValues(t *testing.T) {
	g := model.Graph{
		Nodes: []model.Node{
			{ID: "fixed", X: 0, Y: 1, Importance: 0.1},
			{ID: "free", X: 1, Y: 1},
		},
		Edges: []model.Edge{{Source: "free", Target: "fixed"}},
	}
	PageRankImportance(&g)

	if n := testutil.FindNode(g.Nodes, "fixed"); n.Importance != 0.1 {
		t.Errorf("explicit importance overwritten: %v", n.Importance)
	}
}

func TestPageRankImportanceSkipsDanglingEdges(t *testing.T) {
	g := model.Graph{
		Nodes: []model.Node{
			{ID: "a", X: 0, Y: 1},
			{ID: "b", X: 1, Y: 1},
		},
		Edges: []model.Edge{
			{Source: "a", Target: "b"},
			{Source: "a", Target: "ghost"},
			{Source: "a", Target: "a"},
		},
	}
	PageRankImportance(&g) // must not panic on unknown or self endpoints

	if n := testutil.FindNode(g.Nodes, "b"); n.Importance <= 0 {
		t.Errorf("b importance = %v, want positive", n.Importance)
	}
}

func TestPageRankImportanceNoEdgesIsNoOp(t *testing.T) {
	g := model.Graph{Nodes: testutil.NewDefault().UniformNodes(3)}
	PageRankImportance(&g)
	for _, n := range g.Nodes {
		if n.Importance != 0 {
			t.Errorf("node %s importance = %v, want 0", n.ID, n.Importance)
		}
	}
}
