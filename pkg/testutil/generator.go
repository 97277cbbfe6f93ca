// Package testutil provides deterministic fixture generators for spatial
// and graph tests. All generators are seeded so failures reproduce.
package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/graphview-io/graphview/pkg/model"
)

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed     int64  // Random seed (0 = 42)
	IDPrefix string // Prefix for node IDs (default: "n")
	Extent   float64 // Half-width of the world square (default: 1000)
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:     42,
		IDPrefix: "n",
		Extent:   1000,
	}
}

// Generator creates test fixtures with various spatial distributions and
// graph topologies.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "n"
	}
	if cfg.Extent <= 0 {
		cfg.Extent = 1000
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// UniformNodes scatters n nodes uniformly across the world square.
func (g *Generator) UniformNodes(n int) []model.Node {
	nodes := make([]model.Node, n)
	for i := 0; i < n; i++ {
		nodes[i] = model.Node{
			ID: fmt.Sprintf("%s%d", g.cfg.IDPrefix, i),
			X:  (g.rng.Float64()*2 - 1) * g.cfg.Extent,
			Y:  (g.rng.Float64()*2 - 1) * g.cfg.Extent,
		}
	}
	return nodes
}

// ClusteredNodes places n nodes in `clusters` Gaussian blobs. Clustered
// layouts stress quadtree subdivision far more than uniform ones.
func (g *Generator) ClusteredNodes(n, clusters int) []model.Node {
	if clusters < 1 {
		clusters = 1
	}

	centers := make([][2]float64, clusters)
	for c := range centers {
		centers[c] = [2]float64{
			(g.rng.Float64()*2 - 1) * g.cfg.Extent,
			(g.rng.Float64()*2 - 1) * g.cfg.Extent,
		}
	}

	spread := g.cfg.Extent / (4 * float64(clusters))
	nodes := make([]model.Node, n)
	for i := 0; i < n; i++ {
		c := centers[i%clusters]
		nodes[i] = model.Node{
			ID: fmt.Sprintf("%s%d", g.cfg.IDPrefix, i),
			X:  c[0] + g.rng.NormFloat64()*spread,
			Y:  c[1] + g.rng.NormFloat64()*spread,
		}
	}
	return nodes
}

// CoincidentNodes places all n nodes at exactly the same point, the
// pathological case for tree subdivision.
func (g *Generator) CoincidentNodes(n int, x, y float64) []model.Node {
	nodes := make([]model.Node, n)
	for i := 0; i < n; i++ {
		nodes[i] = model.Node{
			ID: fmt.Sprintf("%s%d", g.cfg.IDPrefix, i),
			X:  x,
			Y:  y,
		}
	}
	return nodes
}

// GridGraph creates rows*cols nodes on a lattice with edges between
// horizontal and vertical neighbors.
func (g *Generator) GridGraph(rows, cols int) model.Graph {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}

	step := 2 * g.cfg.Extent / float64(max(rows, cols))
	var graph model.Graph
	id := func(r, c int) string { return fmt.Sprintf("%s%d_%d", g.cfg.IDPrefix, r, c) }

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			graph.Nodes = append(graph.Nodes, model.Node{
				ID: id(r, c),
				X:  -g.cfg.Extent + float64(c)*step,
				Y:  -g.cfg.Extent + float64(r)*step,
			})
			if c > 0 {
				graph.Edges = append(graph.Edges, model.Edge{Source: id(r, c-1), Target: id(r, c), Weight: 1})
			}
			if r > 0 {
				graph.Edges = append(graph.Edges, model.Edge{Source: id(r-1, c), Target: id(r, c), Weight: 1})
			}
		}
	}
	return graph
}

// RandomGraph creates n nodes with roughly density*n*(n-1)/2 random edges
// and uniform positions. Edge weights are uniform in (0, 1].
func (g *Generator) RandomGraph(n int, density float64) model.Graph {
	if density < 0 {
		density = 0
	}
	if density > 1 {
		density = 1
	}

	graph := model.Graph{Nodes: g.UniformNodes(n)}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if g.rng.Float64() < density {
				graph.Edges = append(graph.Edges, model.Edge{
					Source: graph.Nodes[i].ID,
					Target: graph.Nodes[j].ID,
					Weight: 1 - g.rng.Float64(),
				})
			}
		}
	}
	return graph
}

// StarGraph creates a hub connected to `spokes` satellite nodes, placed on
// a circle around it.
func (g *Generator) StarGraph(spokes int) model.Graph {
	var graph model.Graph
	graph.Nodes = append(graph.Nodes, model.Node{ID: g.cfg.IDPrefix + "hub"})
	radius := g.cfg.Extent / 2
	for i := 0; i < spokes; i++ {
		angle := 2 * math.Pi * float64(i) / float64(spokes)
		id := fmt.Sprintf("%sspoke%d", g.cfg.IDPrefix, i)
		graph.Nodes = append(graph.Nodes, model.Node{
			ID: id,
			X:  radius * math.Cos(angle),
			Y:  radius * math.Sin(angle),
		})
		graph.Edges = append(graph.Edges, model.Edge{Source: g.cfg.IDPrefix + "hub", Target: id, Weight: 1})
	}
	return graph
}

// Viewport returns a camera snapshot centered on the world origin.
func (g *Generator) Viewport(width, height, zoom float64) model.ViewportInfo {
	return model.ViewportInfo{Width: width, Height: height, Zoom: zoom}
}

// ToJSONL renders a graph as tagged JSONL, the loader's input format.
func ToJSONL(g model.Graph) string {
	var sb strings.Builder
	for _, n := range g.Nodes {
		data, err := json.Marshal(struct {
			Type string `json:"type"`
			model.Node
		}{Type: "node", Node: n})
		if err != nil {
			continue
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	for _, e := range g.Edges {
		data, err := json.Marshal(struct {
			Type string `json:"type"`
			model.Edge
		}{Type: "edge", Edge: e})
		if err != nil {
			continue
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String()
}
