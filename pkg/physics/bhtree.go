package physics

import (
	"math"

	"github.com/graphview-io/graphview/pkg/model"
)

// bhMaxDepth bounds subdivision of the force tree. Past this depth bodies
// accumulate in the leaf, which bounds recursion when many nodes share
// identical coordinates.
const bhMaxDepth = 16

const bhNoChild = -1

// bhNode is one quadrant of the Barnes-Hut tree. Internal nodes carry the
// aggregate mass and center of mass of their subtree so a distant region
// can be treated as a single pseudo-body.
type bhNode struct {
	bounds   model.BoundingBox
	children [4]int32
	mass     float64
	comX     float64
	comY     float64
	first    int32 // body chain head for leaves, -1 if empty
	count    int32
	depth    int16
	leaf     bool
}

// bhTree is the force approximation structure. Like the spatial index it is
// a flat arena addressed by index; unlike it, every node aggregates mass.
// The tree is rebuilt each tick and its backing slices are reused.
type bhTree struct {
	nodes []bhNode
	next  []int32
}

// build constructs the tree over the current bodies. Bounds follow the same
// tight-box-plus-padding rule as the spatial index, squared off so quadrants
// halve a comparable range on both axes.
func (t *bhTree) build(bodies []body) {
	t.nodes = t.nodes[:0]
	if cap(t.next) < len(bodies) {
		t.next = make([]int32, len(bodies))
	}
	t.next = t.next[:len(bodies)]

	if len(bodies) == 0 {
		return
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := range bodies {
		minX = math.Min(minX, bodies[i].x)
		minY = math.Min(minY, bodies[i].y)
		maxX = math.Max(maxX, bodies[i].x)
		maxY = math.Max(maxY, bodies[i].y)
	}

	pad := math.Max(maxX-minX, maxY-minY) * 0.1
	if pad == 0 {
		pad = 1
	}
	minX, maxX = minX-pad, maxX+pad
	minY, maxY = minY-pad, maxY+pad

	// Square bounds keep quadrant aspect ratios uniform.
	w, h := maxX-minX, maxY-minY
	if w > h {
		minY -= (w - h) / 2
		maxY = minY + w
	} else if h > w {
		minX -= (h - w) / 2
		maxX = minX + h
	}

	t.nodes = append(t.nodes, bhNode{
		bounds:   model.BoundingBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY},
		children: [4]int32{bhNoChild, bhNoChild, bhNoChild, bhNoChild},
		first:    bhNoChild,
		leaf:     true,
	})

	for i := range bodies {
		t.insert(bodies, int32(i))
	}
	t.aggregate(bodies, 0)
}

func (t *bhTree) insert(bodies []body, bi int32) {
	ni := int32(0)
	for {
		n := &t.nodes[ni]
		if !n.leaf {
			ni = n.children[t.quadrantFor(n, bodies[bi])]
			continue
		}
		if n.count == 0 || int(n.depth) >= bhMaxDepth {
			t.next[bi] = n.first
			n.first = bi
			n.count++
			return
		}
		t.subdivide(bodies, ni)
		ni = t.nodes[ni].children[t.quadrantFor(&t.nodes[ni], bodies[bi])]
	}
}

func (t *bhTree) quadrantFor(n *bhNode, b body) int {
	midX := n.bounds.MinX + n.bounds.Width()/2
	midY := n.bounds.MinY + n.bounds.Height()/2
	q := 0
	if b.x >= midX {
		q |= 1
	}
	if b.y >= midY {
		q |= 2
	}
	return q
}

func (t *bhTree) subdivide(bodies []body, ni int32) {
	parent := t.nodes[ni]
	midX := parent.bounds.MinX + parent.bounds.Width()/2
	midY := parent.bounds.MinY + parent.bounds.Height()/2

	quads := [4]model.BoundingBox{
		{MinX: parent.bounds.MinX, MinY: parent.bounds.MinY, MaxX: midX, MaxY: midY},
		{MinX: midX, MinY: parent.bounds.MinY, MaxX: parent.bounds.MaxX, MaxY: midY},
		{MinX: parent.bounds.MinX, MinY: midY, MaxX: midX, MaxY: parent.bounds.MaxY},
		{MinX: midX, MinY: midY, MaxX: parent.bounds.MaxX, MaxY: parent.bounds.MaxY},
	}

	var children [4]int32
	for q := 0; q < 4; q++ {
		children[q] = int32(len(t.nodes))
		t.nodes = append(t.nodes, bhNode{
			bounds:   quads[q],
			children: [4]int32{bhNoChild, bhNoChild, bhNoChild, bhNoChild},
			first:    bhNoChild,
			depth:    parent.depth + 1,
			leaf:     true,
		})
	}

	n := &t.nodes[ni]
	items := n.first
	n.first = bhNoChild
	n.count = 0
	n.leaf = false
	n.children = children

	for items != bhNoChild {
		bi := items
		items = t.next[bi]
		ci := children[t.quadrantFor(n, bodies[bi])]
		child := &t.nodes[ci]
		t.next[bi] = child.first
		child.first = bi
		child.count++
	}
}

// aggregate computes mass and center of mass bottom-up.
func (t *bhTree) aggregate(bodies []body, ni int32) (mass, comX, comY float64) {
	n := &t.nodes[ni]
	if n.leaf {
		for bi := n.first; bi != bhNoChild; bi = t.next[bi] {
			b := bodies[bi]
			mass += b.mass
			comX += b.x * b.mass
			comY += b.y * b.mass
		}
	} else {
		for _, ci := range n.children {
			m, cx, cy := t.aggregate(bodies, ci)
			mass += m
			comX += cx * m
			comY += cy * m
		}
	}
	if mass > 0 {
		comX /= mass
		comY /= mass
	}
	n.mass = mass
	n.comX = comX
	n.comY = comY
	return mass, comX, comY
}

// forceOn computes the Barnes-Hut repulsion on body bi. When a region's
// size-to-distance ratio is below theta the whole subtree acts as one
// pseudo-body at its center of mass; otherwise the descent recurses.
func (t *bhTree) forceOn(bodies []body, bi int, repulsion, theta, minDist float64) (fx, fy float64) {
	if len(t.nodes) == 0 {
		return 0, 0
	}
	b := bodies[bi]

	var walk func(ni int32)
	walk = func(ni int32) {
		n := &t.nodes[ni]
		if n.mass == 0 {
			return
		}

		dx := b.x - n.comX
		dy := b.y - n.comY
		dist := math.Sqrt(dx*dx + dy*dy)

		if !n.leaf {
			if n.bounds.Width()/math.Max(dist, minDist) < theta {
				f := repulsion * b.mass * n.mass / clampDistSq(dist, minDist)
				d := math.Max(dist, minDist)
				fx += dx / d * f
				fy += dy / d * f
				return
			}
			for _, ci := range n.children {
				walk(ci)
			}
			return
		}

		for oi := n.first; oi != bhNoChild; oi = t.next[oi] {
			if int(oi) == bi {
				continue
			}
			o := bodies[oi]
			odx := b.x - o.x
			ody := b.y - o.y
			od := math.Sqrt(odx*odx + ody*ody)
			f := repulsion * b.mass * o.mass / clampDistSq(od, minDist)
			if od < minDist {
				// Coincident bodies: push along a deterministic axis
				// derived from index order instead of dividing by zero.
				dir := 1.0
				if int(oi) > bi {
					dir = -1.0
				}
				fx += dir * f
				continue
			}
			fx += odx / od * f
			fy += ody / od * f
		}
	}
	walk(0)
	return fx, fy
}

// clampDistSq squares the distance with a minimum-distance epsilon so
// near-coincident bodies cannot overflow the force.
func clampDistSq(dist, minDist float64) float64 {
	d := math.Max(dist, minDist)
	return d * d
}
