// Package physics implements a force-directed layout simulator. Repulsion
// between node pairs is approximated with a Barnes-Hut quadtree (O(n log n)
// instead of O(n^2)); attraction is a per-edge spring force. The engine owns
// the authoritative node positions and velocities.
//
// Tick is deterministic: the same node/edge/param state and dt sequence
// produces identical trajectories. The only generated values are initial
// positions for nodes loaded without one, and those are seeded from a hash
// of the node id, not a random source.
package physics

import (
	"fmt"
	"hash/fnv"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/graphview-io/graphview/pkg/model"
)

// Params tunes the simulation. Invalid values are a construction-time
// configuration error, never silently clamped.
type Params struct {
	// Repulsion scales the pairwise push between nodes.
	Repulsion float64
	// Attraction is the spring constant applied per edge.
	Attraction float64
	// RestLength is the spring's natural length.
	RestLength float64
	// Damping in [0, 1]: each tick velocity is scaled by (1 - Damping).
	Damping float64
	// Theta in (0, 1] is the Barnes-Hut accuracy knob: lower is more exact.
	Theta float64
	// MinDistance clamps force distances so near-coincident nodes cannot
	// overflow the force term.
	MinDistance float64
	// MaxVelocity caps per-axis speed to keep a mis-tuned simulation from
	// flinging nodes to infinity.
	MaxVelocity float64
}

// DefaultParams returns a stable general-purpose tuning.
func DefaultParams() Params {
	return Params{
		Repulsion:   800,
		Attraction:  0.05,
		RestLength:  30,
		Damping:     0.3,
		Theta:       0.8,
		MinDistance: 0.01,
		MaxVelocity: 200,
	}
}

// Validate fails fast on out-of-range parameters.
func (p Params) Validate() error {
	if p.Damping < 0 || p.Damping > 1 {
		return fmt.Errorf("physics: damping %v outside [0,1]", p.Damping)
	}
	if p.Theta <= 0 || p.Theta > 1 {
		return fmt.Errorf("physics: theta %v outside (0,1]", p.Theta)
	}
	if p.Repulsion < 0 {
		return fmt.Errorf("physics: negative repulsion %v", p.Repulsion)
	}
	if p.Attraction < 0 {
		return fmt.Errorf("physics: negative attraction %v", p.Attraction)
	}
	if p.MinDistance <= 0 {
		return fmt.Errorf("physics: min distance %v must be positive", p.MinDistance)
	}
	return nil
}

type body struct {
	id         string
	x, y, z    float64
	vx, vy, vz float64
	mass       float64
	importance float64
	degree     int
	pinned     bool
}

type spring struct {
	a, b   int
	weight float64
}

// Engine simulates the graph. It has a single mutable owner; the engine
// worker goroutine calls all methods, so no internal locking is needed.
type Engine struct {
	params  Params
	bodies  []body
	byID    map[string]int
	springs []spring

	tree     bhTree
	fx, fy   []float64
	parallel int
}

// New creates an engine with validated parameters.
func New(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		params:   params,
		byID:     map[string]int{},
		parallel: runtime.GOMAXPROCS(0),
	}, nil
}

// SetParams replaces the tuning. Invalid params are rejected and the old
// tuning stays active.
func (e *Engine) SetParams(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	e.params = params
	return nil
}

// SetNodes replaces the node set wholesale. Nodes at the origin with no
// velocity are treated as position-less and seeded deterministically from
// their id; all other positions are kept as supplied.
func (e *Engine) SetNodes(nodes []model.Node) {
	e.bodies = e.bodies[:0]
	e.byID = make(map[string]int, len(nodes))
	for _, n := range nodes {
		if _, dup := e.byID[n.ID]; dup {
			continue
		}
		b := body{
			id:         n.ID,
			x:          n.X,
			y:          n.Y,
			z:          n.Z,
			vx:         n.VX,
			vy:         n.VY,
			vz:         n.VZ,
			mass:       n.Mass,
			importance: n.Importance,
			degree:     n.Degree,
			pinned:     n.Pinned,
		}
		if b.mass <= 0 {
			// Mass derives from importance; every node weighs at least 1.
			b.mass = 1 + 4*n.Importance
		}
		if b.x == 0 && b.y == 0 && b.vx == 0 && b.vy == 0 {
			b.x, b.y = seedPosition(n.ID)
		}
		e.byID[n.ID] = len(e.bodies)
		e.bodies = append(e.bodies, b)
	}
	// Springs reference indices into the old node set.
	e.springs = e.springs[:0]
}

// SetEdges replaces the edge set. Edges referencing unknown nodes are
// skipped; a dangling edge is degenerate input, not an error.
func (e *Engine) SetEdges(edges []model.Edge) {
	e.springs = e.springs[:0]
	for _, edge := range edges {
		a, okA := e.byID[edge.Source]
		b, okB := e.byID[edge.Target]
		if !okA || !okB || a == b {
			continue
		}
		w := edge.Weight
		if w == 0 {
			w = 1
		}
		e.springs = append(e.springs, spring{a: a, b: b, weight: w})
	}
}

// Pin marks a node as pinned: forces still accumulate for bookkeeping but
// its position is held fixed during integration. Returns false if the node
// is unknown.
func (e *Engine) Pin(id string, pinned bool) bool {
	i, ok := e.byID[id]
	if !ok {
		return false
	}
	e.bodies[i].pinned = pinned
	return true
}

// Len returns the number of simulated nodes.
func (e *Engine) Len() int { return len(e.bodies) }

// Nodes returns a snapshot of the current node state.
func (e *Engine) Nodes() []model.Node {
	out := make([]model.Node, len(e.bodies))
	for i := range e.bodies {
		out[i] = e.snapshot(i)
	}
	return out
}

func (e *Engine) snapshot(i int) model.Node {
	b := &e.bodies[i]
	return model.Node{
		ID:         b.id,
		X:          b.x,
		Y:          b.y,
		Z:          b.z,
		VX:         b.vx,
		VY:         b.vy,
		VZ:         b.vz,
		Mass:       b.mass,
		Importance: b.importance,
		Degree:     b.degree,
		Pinned:     b.pinned,
	}
}

// Tick advances the simulation by dt and returns the updated node
// snapshots. The pass order is fixed: repulsion (parallel, each body's
// force computed independently over the shared tree), then springs in edge
// order, then integration — so two runs from equal state are identical.
func (e *Engine) Tick(dt float64) []model.Node {
	n := len(e.bodies)
	if n == 0 || dt <= 0 {
		return e.Nodes()
	}

	if cap(e.fx) < n {
		e.fx = make([]float64, n)
		e.fy = make([]float64, n)
	}
	e.fx = e.fx[:n]
	e.fy = e.fy[:n]
	for i := range e.fx {
		e.fx[i] = 0
		e.fy[i] = 0
	}

	e.tree.build(e.bodies)
	e.repulsionPass()
	e.springPass()
	e.integrate(dt)

	return e.Nodes()
}

// repulsionPass shards the Barnes-Hut descent across workers. Each worker
// writes only its own index range, so the pass stays deterministic.
func (e *Engine) repulsionPass() {
	n := len(e.bodies)
	workers := e.parallel
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			e.fx[i], e.fy[i] = e.tree.forceOn(e.bodies, i, e.params.Repulsion, e.params.Theta, e.params.MinDistance)
		}
		return
	}

	var g errgroup.Group
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				e.fx[i], e.fy[i] = e.tree.forceOn(e.bodies, i, e.params.Repulsion, e.params.Theta, e.params.MinDistance)
			}
			return nil
		})
	}
	// Workers never return errors; Wait is only a join point.
	_ = g.Wait()
}

// springPass applies attraction per edge:
// weight * springConstant * (distance - restLength) along the edge.
func (e *Engine) springPass() {
	for _, s := range e.springs {
		a, b := &e.bodies[s.a], &e.bodies[s.b]
		dx := b.x - a.x
		dy := b.y - a.y
		dist := math.Sqrt(dx*dx + dy*dy)
		if dist < e.params.MinDistance {
			continue
		}
		f := s.weight * e.params.Attraction * (dist - e.params.RestLength)
		ux, uy := dx/dist, dy/dist
		e.fx[s.a] += ux * f
		e.fy[s.a] += uy * f
		e.fx[s.b] -= ux * f
		e.fy[s.b] -= uy * f
	}
}

func (e *Engine) integrate(dt float64) {
	damp := 1 - e.params.Damping
	for i := range e.bodies {
		b := &e.bodies[i]
		if b.pinned {
			// Forces were accumulated for bookkeeping; the position holds.
			b.vx, b.vy, b.vz = 0, 0, 0
			continue
		}

		b.vx = (b.vx + e.fx[i]/b.mass*dt) * damp
		b.vy = (b.vy + e.fy[i]/b.mass*dt) * damp
		b.vz = b.vz * damp

		if e.params.MaxVelocity > 0 {
			b.vx = clampAbs(b.vx, e.params.MaxVelocity)
			b.vy = clampAbs(b.vy, e.params.MaxVelocity)
			b.vz = clampAbs(b.vz, e.params.MaxVelocity)
		}

		b.x += b.vx * dt
		b.y += b.vy * dt
		b.z += b.vz * dt
	}
}

func clampAbs(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// seedPosition places a position-less node on a deterministic spiral derived
// from its id, spreading initial layouts without a random source.
func seedPosition(id string) (x, y float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	sum := h.Sum64()

	angle := float64(sum%3600) / 3600 * 2 * math.Pi
	radius := 10 + float64((sum/3600)%1000)/1000*200
	return radius * math.Cos(angle), radius * math.Sin(angle)
}
