package loader

import (
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/graphview-io/graphview/pkg/model"
)

// PageRank tuning. The defaults match the usual web-graph values; the
// scores only feed relative ordering so precision is not critical.
const (
	pageRankDamping = 0.85
	pageRankTol     = 1e-6
)

// DefaultImportance fills in Degree for every node and, for nodes without
// an explicit importance, derives one from the degree distribution:
// importance = degree / maxDegree. Explicit importance values are never
// overwritten.
func DefaultImportance(g *model.Graph) {
	if len(g.Nodes) == 0 {
		return
	}

	degree := make(map[string]int, len(g.Nodes))
	for _, e := range g.Edges {
		degree[e.Source]++
		degree[e.Target]++
	}

	maxDegree := 0
	for i := range g.Nodes {
		d := degree[g.Nodes[i].ID]
		g.Nodes[i].Degree = d
		if d > maxDegree {
			maxDegree = d
		}
	}
	if maxDegree == 0 {
		return
	}

	for i := range g.Nodes {
		if g.Nodes[i].Importance == 0 {
			g.Nodes[i].Importance = float64(g.Nodes[i].Degree) / float64(maxDegree)
		}
	}
}

// PageRankImportance replaces the importance of every node that has no
// explicit value with its normalized PageRank score. More expensive than
// the degree heuristic, but much better at surfacing hub nodes in graphs
// with uneven edge weight.
func PageRankImportance(g *model.Graph) {
	if len(g.Nodes) == 0 || len(g.Edges) == 0 {
		return
	}

	ids := make(map[string]int64, len(g.Nodes))
	dg := simple.NewDirectedGraph()
	for i := range g.Nodes {
		id := int64(i)
		ids[g.Nodes[i].ID] = id
		dg.AddNode(simple.Node(id))
	}
	for _, e := range g.Edges {
		from, okF := ids[e.Source]
		to, okT := ids[e.Target]
		if !okF || !okT || from == to {
			continue
		}
		dg.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}

	ranks := network.PageRank(dg, pageRankDamping, pageRankTol)

	maxRank := 0.0
	for _, r := range ranks {
		if r > maxRank {
			maxRank = r
		}
	}
	if maxRank == 0 {
		return
	}

	for i := range g.Nodes {
		if g.Nodes[i].Importance == 0 {
			g.Nodes[i].Importance = ranks[ids[g.Nodes[i].ID]] / maxRank
		}
	}
}
