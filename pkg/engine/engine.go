// Package engine wires the render core together: physics, spatial index,
// culler and performance monitor, behind an asynchronous worker boundary.
//
// The render thread talks to the engine with non-blocking calls and reads
// the most recent completed render set; it never waits on a physics tick or
// a cull. Stale results are dropped by request id ("last writer wins" by
// id, not by arrival order) and superseded graph loads are dropped by
// generation.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/graphview-io/graphview/pkg/culling"
	"github.com/graphview-io/graphview/pkg/lod"
	"github.com/graphview-io/graphview/pkg/metrics"
	"github.com/graphview-io/graphview/pkg/model"
	"github.com/graphview-io/graphview/pkg/perfmon"
	"github.com/graphview-io/graphview/pkg/physics"
)

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Physics      physics.Params
	Thresholds   []lod.Threshold
	LODConfigs   map[lod.Level]lod.Config
	Monitor      perfmon.Config
	TierBudgets  map[perfmon.Tier]perfmon.Budget
	QueueDepth   int
	// Synchronous disables the worker goroutine entirely; every request
	// runs inline on the caller. This is also the automatic fallback when
	// the worker cannot start, because correctness matters more than the
	// offload optimization.
	Synchronous bool
}

// Engine is the top-level handle. One Engine instance is created per graph
// session and explicitly stopped; there is no shared module-level state.
type Engine struct {
	opts   Options
	ctrl   *lod.Controller
	core   *core
	worker *Worker // nil in synchronous mode
	mon    *perfmon.Monitor

	budgets map[perfmon.Tier]perfmon.Budget

	generation    atomic.Uint64
	nextRequestID atomic.Uint64

	syncMode atomic.Bool

	// latest is the last accepted render set.
	latestMu   sync.RWMutex
	latest     culling.Result
	latestOK   bool
	staleCount atomic.Uint64

	recvDone chan struct{}
	recvLive atomic.Bool
	stopOnce sync.Once
}

// New constructs an engine. Misconfiguration (invalid physics params,
// non-monotonic LOD thresholds) fails here, never later.
func New(opts Options) (*Engine, error) {
	if opts.Physics == (physics.Params{}) {
		opts.Physics = physics.DefaultParams()
	}
	ctrl, err := lod.NewController(opts.Thresholds, opts.LODConfigs)
	if err != nil {
		return nil, err
	}
	sim, err := physics.New(opts.Physics)
	if err != nil {
		return nil, err
	}

	budgets := opts.TierBudgets
	if budgets == nil {
		budgets = perfmon.DefaultBudgets()
	}
	for tier, b := range budgets {
		if b.MaxNodes <= 0 || b.MaxEdges <= 0 {
			return nil, fmt.Errorf("engine: non-positive budget for tier %s", tier)
		}
	}

	mon := perfmon.NewMonitor(opts.Monitor)

	c := &core{
		sim:    sim,
		culler: culling.New(ctrl),
	}
	c.culler.SetTierBudget(budgets[mon.Tier()])

	e := &Engine{
		opts:     opts,
		ctrl:     ctrl,
		core:     c,
		mon:      mon,
		budgets:  budgets,
		recvDone: make(chan struct{}),
	}

	if opts.Synchronous {
		e.syncMode.Store(true)
		close(e.recvDone)
		return e, nil
	}

	e.worker = newWorker(c, opts.QueueDepth)
	return e, nil
}

// Start launches the worker. If the worker cannot start the engine drops to
// synchronous same-thread execution instead of hard-failing.
func (e *Engine) Start() error {
	if e.worker == nil {
		return nil
	}
	if err := e.worker.Start(); err != nil {
		e.syncMode.Store(true)
		close(e.recvDone)
		return nil
	}
	e.recvLive.Store(true)
	go e.receive()
	return nil
}

// Stop shuts down the worker and response receiver.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if e.worker != nil {
			e.worker.Stop()
		}
		// The receiver only runs once Start succeeded; waiting for it on a
		// never-started engine would block forever.
		if e.recvLive.Load() {
			<-e.recvDone
		}
	})
}

// Generation returns the id of the current graph load.
func (e *Engine) Generation() uint64 { return e.generation.Load() }

// StaleDropped returns how many stale responses were discarded; telemetry
// only.
func (e *Engine) StaleDropped() uint64 { return e.staleCount.Load() }

// LoadGraph replaces the node/edge set wholesale and returns the new
// generation. Any in-flight work from older generations is ignored when it
// completes; it is not forcibly aborted.
func (e *Engine) LoadGraph(g model.Graph) uint64 {
	gen := e.generation.Add(1)
	e.submit(BuildRequest{Generation: gen, Nodes: g.Nodes, Edges: g.Edges})
	return gen
}

// Tick advances the simulation by dt seconds.
func (e *Engine) Tick(dt float64) {
	e.submit(TickRequest{Generation: e.generation.Load(), DT: dt})
}

// RequestCull issues an asynchronous cull for a viewport snapshot and
// returns its request id. The result, once accepted, is available from
// Latest.
func (e *Engine) RequestCull(vp model.ViewportInfo, margin float64) uint64 {
	id := e.nextRequestID.Add(1)
	e.submit(CullRequest{
		RequestID:  id,
		Generation: e.generation.Load(),
		Viewport:   vp,
		Margin:     margin,
	})
	return id
}

// Pin pins or unpins a node so the rest of the graph settles around it.
func (e *Engine) Pin(id string, pinned bool) {
	e.submit(PinRequest{NodeID: id, Pinned: pinned})
}

// SetParams replaces the physics tuning at runtime.
func (e *Engine) SetParams(p physics.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.submit(ParamsRequest{Params: p})
	return nil
}

// Sample records one frame duration on the performance monitor. A tier
// change pushes the new budget to the culler for the next cull.
func (e *Engine) Sample(frame time.Duration) perfmon.Tier {
	tier, changed := e.mon.Sample(frame)
	if changed {
		e.submit(BudgetRequest{Budget: e.budgets[tier]})
		metrics.SetQualityTier(int(tier))
	}
	metrics.ObserveFrame(frame)
	return tier
}

// SetTier is the manual quality override. It bypasses the monitor's
// hysteresis entirely.
func (e *Engine) SetTier(tier perfmon.Tier) {
	e.mon.SetTier(tier)
	e.submit(BudgetRequest{Budget: e.budgets[tier]})
	metrics.SetQualityTier(int(tier))
}

// Tier returns the active quality tier.
func (e *Engine) Tier() perfmon.Tier { return e.mon.Tier() }

// Metrics returns the rolling frame statistics for display.
func (e *Engine) Metrics() perfmon.Metrics { return e.mon.Metrics() }

// Latest returns the most recent accepted render set. ok is false until the
// first cull completes; the caller keeps rendering its previous set in the
// meantime.
func (e *Engine) Latest() (culling.Result, bool) {
	e.latestMu.RLock()
	defer e.latestMu.RUnlock()
	return e.latest, e.latestOK
}

// FallbackRenderSet returns the full unculled node set at current
// positions. It is the degraded-mode output when culling cannot run at all:
// the system presents everything rather than nothing.
func (e *Engine) FallbackRenderSet() culling.Result {
	nodes := e.core.nodesSnapshot()

	res := culling.Result{Level: lod.Low}
	res.Nodes = make([]model.VisibleNode, len(nodes))
	for i, n := range nodes {
		res.Nodes[i] = model.VisibleNode{ID: n.ID, X: n.X, Y: n.Y, Z: n.Z}
	}
	res.Stats.TotalNodes = len(nodes)
	res.Stats.VisibleNodes = len(nodes)
	return res
}

// submit routes a request to the worker, or runs it inline in synchronous
// mode. A full worker queue also degrades to inline execution so requests
// are never silently lost; the core mutex keeps an inline request from
// racing the live worker.
func (e *Engine) submit(req Request) {
	if !e.syncMode.Load() && e.worker != nil {
		if e.worker.Submit(req) {
			return
		}
	}

	if resp := e.core.handle(req); resp != nil {
		e.accept(resp)
	}
}

// receive drains worker responses, applying the stale-discard rule.
func (e *Engine) receive() {
	defer close(e.recvDone)
	for {
		select {
		case resp := <-e.worker.Responses():
			e.accept(resp)
		case <-e.worker.done:
			return
		}
	}
}

// accept applies one response. Cull responses are accepted only when they
// carry both the latest issued request id and the current generation;
// anything else is a StaleResultIgnored, counted and dropped.
func (e *Engine) accept(resp Response) {
	switch r := resp.(type) {
	case CullComplete:
		if r.RequestID != e.nextRequestID.Load() || r.Generation != e.generation.Load() {
			e.staleCount.Add(1)
			return
		}
		e.latestMu.Lock()
		e.latest = r.Result
		e.latestOK = true
		e.latestMu.Unlock()
		metrics.SetVisibleCounts(r.Result.Stats.VisibleNodes, len(r.Result.Edges))

	case BuildComplete:
		if r.Generation != e.generation.Load() {
			e.staleCount.Add(1)
			return
		}
		// A new graph invalidates the previous render set.
		e.latestMu.Lock()
		e.latestOK = false
		e.latestMu.Unlock()

	case ErrorResponse:
		// A failed or superseded request never interrupts the render loop;
		// the previous render set simply stays current.
		e.staleCount.Add(1)
	}
}
