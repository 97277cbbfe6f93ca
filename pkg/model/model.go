// Package model defines the core data types shared by the render engine:
// nodes, edges, bounding boxes and viewport state. Types here are plain
// values; the authoritative mutable copies live in pkg/physics.
package model

import (
	"fmt"
	"math"
)

// Node is a graph node. Position and velocity are authoritative in the
// physics engine; everything else treats Node values as snapshots.
type Node struct {
	ID string `json:"id"`

	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`

	VX float64 `json:"vx,omitempty"`
	VY float64 `json:"vy,omitempty"`
	VZ float64 `json:"vz,omitempty"`

	// Mass is derived from importance; zero means "use default".
	Mass float64 `json:"mass,omitempty"`

	// Importance is a generic relevance score in [0, 1]. When absent it is
	// defaulted from node degree at load time.
	Importance float64 `json:"importance,omitempty"`

	// Degree is the node's edge count, when known.
	Degree int `json:"degree,omitempty"`

	// Pinned nodes are excluded from position integration.
	Pinned bool `json:"pinned,omitempty"`
}

// Validate checks structural invariants on a node.
func (n Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node has empty id")
	}
	if math.IsNaN(n.X) || math.IsNaN(n.Y) || math.IsNaN(n.Z) {
		return fmt.Errorf("node %s has NaN position", n.ID)
	}
	if n.Importance < 0 || n.Importance > 1 {
		return fmt.Errorf("node %s importance %v outside [0,1]", n.ID, n.Importance)
	}
	return nil
}

// Score returns the ordering key used under budget pressure: importance
// when set, otherwise the raw degree count, then zero. Raw degree can
// dominate an explicit importance in hand-assembled graphs; the loaders
// avoid that by folding degree into importance on [0,1] at load time.
func (n Node) Score() float64 {
	if n.Importance > 0 {
		return n.Importance
	}
	if n.Degree > 0 {
		return float64(n.Degree)
	}
	return 0
}

// Edge is a read-only connection between two nodes.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight,omitempty"`
}

// Validate checks structural invariants on an edge.
func (e Edge) Validate() error {
	if e.Source == "" || e.Target == "" {
		return fmt.Errorf("edge %q->%q has empty endpoint", e.Source, e.Target)
	}
	if e.Weight < 0 {
		return fmt.Errorf("edge %s->%s has negative weight %v", e.Source, e.Target, e.Weight)
	}
	return nil
}

// Graph is a full node/edge set as supplied by a loader. Graphs are replaced
// wholesale on load; the core never patches them incrementally.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// BoundingBox is an axis-aligned 2D region. Invariant: MinX <= MaxX and
// MinY <= MaxY.
type BoundingBox struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Valid reports whether the box satisfies its min/max invariant.
func (b BoundingBox) Valid() bool {
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// Width returns the box extent along X.
func (b BoundingBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box extent along Y.
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }

// Contains reports whether the point lies inside the box under the half-open
// convention: points on the MaxX or MaxY edge are not contained. The same
// rule is applied everywhere a point is tested against a region, so a point
// can never match two sibling quadrants.
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.MinX && x < b.MaxX && y >= b.MinY && y < b.MaxY
}

// Intersects reports whether two boxes overlap.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.MinX < o.MaxX && o.MinX < b.MaxX && b.MinY < o.MaxY && o.MinY < b.MaxY
}

// Expand returns the box grown outward by margin on every side.
func (b BoundingBox) Expand(margin float64) BoundingBox {
	return BoundingBox{
		MinX: b.MinX - margin,
		MinY: b.MinY - margin,
		MaxX: b.MaxX + margin,
		MaxY: b.MaxY + margin,
	}
}

// ViewportInfo is a camera snapshot. Bounds are always derived from the
// center/size/zoom fields, never stored, so they cannot desync.
type ViewportInfo struct {
	CenterX float64
	CenterY float64
	Width   float64
	Height  float64
	Zoom    float64
}

// Bounds computes the world-space region covered by the viewport. A zoom
// at or below zero is treated as 1.0 rather than producing an inverted or
// infinite box.
func (v ViewportInfo) Bounds() BoundingBox {
	zoom := v.Zoom
	if zoom <= 0 {
		zoom = 1.0
	}
	halfW := v.Width / 2 / zoom
	halfH := v.Height / 2 / zoom
	return BoundingBox{
		MinX: v.CenterX - halfW,
		MinY: v.CenterY - halfH,
		MaxX: v.CenterX + halfW,
		MaxY: v.CenterY + halfH,
	}
}

// VisibleNode is the per-node payload handed to the renderer.
type VisibleNode struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z,omitempty"`
}

// VisibleEdge is the per-edge payload handed to the renderer.
type VisibleEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}
