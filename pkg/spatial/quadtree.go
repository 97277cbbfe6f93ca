// Package spatial implements a 2D region quadtree over node positions.
// It is the sole spatial lookup primitive used by the culler.
//
// The tree is stored as a flat arena: quadrant nodes live in a single slice
// and reference their children by index. This avoids pointer-heavy trees and
// lets a rebuild reuse the previous backing arrays.
//
// The index is rebuilt from scratch whenever the node set moves (every
// physics tick). A rebuild is O(n) with small constants and keeps the root
// bounds tight after large layout moves; an incremental move-between-quadrant
// update would still have to handle bounds growth, so the simpler full
// rebuild was chosen.
package spatial

import (
	"math"

	"github.com/graphview-io/graphview/pkg/model"
)

const (
	// DefaultCapacity is the number of points a quadrant holds before it
	// subdivides.
	DefaultCapacity = 16

	// DefaultMaxDepth bounds subdivision. At the maximum depth points
	// accumulate in the leaf regardless of capacity, which bounds recursion
	// when many points share identical coordinates.
	DefaultMaxDepth = 12

	// boundsPadding expands the tight bounding box of the input on each
	// axis so points on the outer edge cannot fall outside the root under
	// the half-open containment rule.
	boundsPadding = 0.10
)

// Point is an immutable position snapshot stored in the index.
type Point struct {
	ID string
	X  float64
	Y  float64
}

const noChild = -1

// quadrant child ordering: NW, NE, SW, SE.
type treeNode struct {
	bounds   model.BoundingBox
	children [4]int32
	first    int32 // head of the item chain, -1 if empty
	count    int32
	depth    int16
	leaf     bool
}

// Index is a built quadtree. It is immutable after Build and safe for
// concurrent readers; builders must publish a fresh Index instead of
// mutating a shared one.
type Index struct {
	points   []Point
	next     []int32 // item chain: next[i] links points in the same leaf
	nodes    []treeNode
	bounds   model.BoundingBox
	capacity int
	maxDepth int
}

// Option configures index construction.
type Option func(*Index)

// WithCapacity overrides the per-quadrant capacity.
func WithCapacity(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.capacity = n
		}
	}
}

// WithMaxDepth overrides the maximum subdivision depth.
func WithMaxDepth(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.maxDepth = n
		}
	}
}

// Build constructs an index over the given points. The root region is the
// tight bounding box of the input expanded by 10% on each axis. An empty
// input yields an empty index whose queries return nothing.
func Build(points []Point, opts ...Option) *Index {
	ix := &Index{
		capacity: DefaultCapacity,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(ix)
	}

	ix.points = append(ix.points[:0], points...)
	ix.next = make([]int32, len(points))

	if len(points) == 0 {
		return ix
	}

	ix.bounds = paddedBounds(points)
	ix.nodes = append(ix.nodes[:0], treeNode{
		bounds:   ix.bounds,
		children: [4]int32{noChild, noChild, noChild, noChild},
		first:    noChild,
		leaf:     true,
	})

	for i := range ix.points {
		ix.insert(0, int32(i))
	}
	return ix
}

// Bounds returns the root region of the index.
func (ix *Index) Bounds() model.BoundingBox { return ix.bounds }

// Len returns the number of indexed points.
func (ix *Index) Len() int { return len(ix.points) }

// paddedBounds computes the tight bounding box of the points expanded by
// boundsPadding on each axis. Degenerate extents (all points coincident on
// an axis) are widened by a fixed amount so subdivision still halves a
// non-zero range.
func paddedBounds(points []Point) model.BoundingBox {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	padX := (maxX - minX) * boundsPadding
	padY := (maxY - minY) * boundsPadding
	if padX == 0 {
		padX = 1
	}
	if padY == 0 {
		padY = 1
	}
	return model.BoundingBox{
		MinX: minX - padX,
		MinY: minY - padY,
		MaxX: maxX + padX,
		MaxY: maxY + padY,
	}
}

// insert places point index pi into the subtree rooted at node ni. Iterative
// descent: the point always lands in exactly one leaf because quadrant
// bounds follow the same half-open rule as containment.
func (ix *Index) insert(ni int32, pi int32) {
	for {
		n := &ix.nodes[ni]
		if !n.leaf {
			ni = n.children[ix.quadrantFor(n, pi)]
			continue
		}

		if int(n.count) < ix.capacity || int(n.depth) >= ix.maxDepth {
			ix.next[pi] = n.first
			n.first = pi
			n.count++
			return
		}

		ix.subdivide(ni)
		// Re-read: subdivide may grow the arena and move nodes.
		ni = ix.nodes[ni].children[ix.quadrantFor(&ix.nodes[ni], pi)]
	}
}

// quadrantFor picks the child quadrant of n containing point pi under the
// half-open midpoint split.
func (ix *Index) quadrantFor(n *treeNode, pi int32) int {
	midX := n.bounds.MinX + n.bounds.Width()/2
	midY := n.bounds.MinY + n.bounds.Height()/2
	p := ix.points[pi]
	q := 0
	if p.X >= midX {
		q |= 1
	}
	if p.Y >= midY {
		q |= 2
	}
	return q
}

// subdivide splits a leaf into four equal quadrants on the midpoint of its
// own bounds and redistributes its items.
func (ix *Index) subdivide(ni int32) {
	parent := ix.nodes[ni]
	midX := parent.bounds.MinX + parent.bounds.Width()/2
	midY := parent.bounds.MinY + parent.bounds.Height()/2

	quads := [4]model.BoundingBox{
		{MinX: parent.bounds.MinX, MinY: parent.bounds.MinY, MaxX: midX, MaxY: midY}, // NW
		{MinX: midX, MinY: parent.bounds.MinY, MaxX: parent.bounds.MaxX, MaxY: midY}, // NE
		{MinX: parent.bounds.MinX, MinY: midY, MaxX: midX, MaxY: parent.bounds.MaxY}, // SW
		{MinX: midX, MinY: midY, MaxX: parent.bounds.MaxX, MaxY: parent.bounds.MaxY}, // SE
	}

	var children [4]int32
	for q := 0; q < 4; q++ {
		children[q] = int32(len(ix.nodes))
		ix.nodes = append(ix.nodes, treeNode{
			bounds:   quads[q],
			children: [4]int32{noChild, noChild, noChild, noChild},
			first:    noChild,
			depth:    parent.depth + 1,
			leaf:     true,
		})
	}

	n := &ix.nodes[ni]
	items := n.first
	n.first = noChild
	n.count = 0
	n.leaf = false
	n.children = children

	for items != noChild {
		pi := items
		items = ix.next[pi]
		ci := children[ix.quadrantFor(n, pi)]
		child := &ix.nodes[ci]
		ix.next[pi] = child.first
		child.first = pi
		child.count++
	}
}

// Query returns every indexed point whose coordinate falls inside the range
// under the half-open containment rule. Quadrants entirely outside the range
// are pruned without descent.
func (ix *Index) Query(rng model.BoundingBox) []Point {
	var out []Point
	ix.QueryFunc(rng, func(p Point) {
		out = append(out, p)
	})
	return out
}

// QueryIDs is Query returning node ids only.
func (ix *Index) QueryIDs(rng model.BoundingBox) []string {
	var out []string
	ix.QueryFunc(rng, func(p Point) {
		out = append(out, p.ID)
	})
	return out
}

// QueryFunc invokes fn for every point inside rng. It allocates nothing
// beyond the traversal stack.
func (ix *Index) QueryFunc(rng model.BoundingBox, fn func(Point)) {
	if len(ix.nodes) == 0 || !rng.Valid() {
		return
	}

	stack := make([]int32, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &ix.nodes[ni]

		if !n.bounds.Intersects(rng) {
			continue
		}
		if n.leaf {
			for pi := n.first; pi != noChild; pi = ix.next[pi] {
				p := ix.points[pi]
				if rng.Contains(p.X, p.Y) {
					fn(p)
				}
			}
			continue
		}
		for _, ci := range n.children {
			stack = append(stack, ci)
		}
	}
}

// PointsFromNodes converts node snapshots to index points.
func PointsFromNodes(nodes []model.Node) []Point {
	pts := make([]Point, len(nodes))
	for i, n := range nodes {
		pts[i] = Point{ID: n.ID, X: n.X, Y: n.Y}
	}
	return pts
}
