package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/graphview-io/graphview/pkg/model"
)

// AssertNodeCount verifies the expected number of nodes.
func AssertNodeCount(t *testing.T, nodes []model.Node, expected int) {
	t.Helper()
	if len(nodes) != expected {
		t.Errorf("expected %d nodes, got %d", expected, len(nodes))
	}
}

// AssertNoDuplicateIDs verifies all node IDs are unique.
func AssertNoDuplicateIDs(t *testing.T, nodes []model.Node) {
	t.Helper()
	seen := make(map[string]bool)
	for _, n := range nodes {
		if seen[n.ID] {
			t.Errorf("duplicate node ID: %s", n.ID)
		}
		seen[n.ID] = true
	}
}

// AssertAllValid verifies all nodes and edges pass validation.
func AssertAllValid(t *testing.T, g model.Graph) {
	t.Helper()
	for i, n := range g.Nodes {
		if err := n.Validate(); err != nil {
			t.Errorf("node %d (%s) invalid: %v", i, n.ID, err)
		}
	}
	for i, e := range g.Edges {
		if err := e.Validate(); err != nil {
			t.Errorf("edge %d invalid: %v", i, err)
		}
	}
}

// AssertVisibleIDs verifies the render set contains exactly the given node
// IDs, in any order.
func AssertVisibleIDs(t *testing.T, visible []model.VisibleNode, want ...string) {
	t.Helper()
	got := make(map[string]bool, len(visible))
	for _, v := range visible {
		got[v.ID] = true
	}
	if len(got) != len(want) {
		t.Errorf("expected %d visible nodes, got %d", len(want), len(got))
	}
	for _, id := range want {
		if !got[id] {
			t.Errorf("expected node %s in render set", id)
		}
	}
}

// AssertEdgeEndpointsVisible verifies every visible edge connects two
// visible nodes.
func AssertEdgeEndpointsVisible(t *testing.T, nodes []model.VisibleNode, edges []model.VisibleEdge) {
	t.Helper()
	visible := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		visible[n.ID] = true
	}
	for _, e := range edges {
		if !visible[e.Source] || !visible[e.Target] {
			t.Errorf("edge %s->%s has a culled endpoint", e.Source, e.Target)
		}
	}
}

// AssertInBounds verifies every visible node lies inside the box.
func AssertInBounds(t *testing.T, nodes []model.VisibleNode, bounds model.BoundingBox) {
	t.Helper()
	for _, n := range nodes {
		if !bounds.Contains(n.X, n.Y) {
			t.Errorf("node %s at (%v, %v) outside bounds %+v", n.ID, n.X, n.Y, bounds)
		}
	}
}

// WriteGraphFile writes a graph as tagged JSONL to a file under a temp
// directory and returns its path.
func WriteGraphFile(t *testing.T, g model.Graph) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "graph.jsonl")
	if err := os.WriteFile(path, []byte(ToJSONL(g)), 0644); err != nil {
		t.Fatalf("failed to write graph file: %v", err)
	}
	return path
}

// FindNode returns the node with the given ID, or nil if not found.
func FindNode(nodes []model.Node, id string) *model.Node {
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i]
		}
	}
	return nil
}

// NodeIDs returns a slice of all node IDs.
func NodeIDs(nodes []model.Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
