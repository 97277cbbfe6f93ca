// This file implements the culling worker: the goroutine that owns the
// physics engine, spatial index and culler, consuming requests from a
// channel. Requests that cannot reach the worker (queue full, worker down)
// run inline on the caller instead, so every dispatch goes through the
// core mutex and a cull can never observe a half-built index.
package engine

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/graphview-io/graphview/pkg/culling"
	"github.com/graphview-io/graphview/pkg/metrics"
	"github.com/graphview-io/graphview/pkg/model"
	"github.com/graphview-io/graphview/pkg/physics"
	"github.com/graphview-io/graphview/pkg/spatial"
)

// LogLevel controls worker log verbosity.
type LogLevel int

const (
	LogNone LogLevel = iota
	LogError
	LogWarn
	LogInfo
	LogDebug
)

func (l LogLevel) String() string {
	switch l {
	case LogError:
		return "error"
	case LogWarn:
		return "warn"
	case LogInfo:
		return "info"
	case LogDebug:
		return "debug"
	default:
		return "none"
	}
}

// ParseLogLevel maps a string (typically from GRAPHVIEW_LOG) to a level.
func ParseLogLevel(raw string) LogLevel {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "error", "err", "1":
		return LogError
	case "warn", "warning", "2":
		return LogWarn
	case "info", "3":
		return LogInfo
	case "debug", "4", "trace", "5":
		return LogDebug
	default:
		return LogNone
	}
}

// core holds the mutable render-core state. The worker goroutine is the
// usual driver, but a request that cannot be queued runs inline on the
// caller, so handle serializes every dispatch with the core mutex. An
// index build holds the lock until the new index is published.
type core struct {
	mu sync.Mutex

	sim    *physics.Engine
	culler *culling.Culler

	generation uint64
	indexDirty bool
}

func (c *core) handle(req Request) Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch r := req.(type) {
	case BuildRequest:
		return c.handleBuild(r)
	case CullRequest:
		return c.handleCull(r)
	case TickRequest:
		return c.handleTick(r)
	case BudgetRequest:
		c.culler.SetTierBudget(r.Budget)
		return nil
	case PinRequest:
		c.sim.Pin(r.NodeID, r.Pinned)
		return nil
	case ParamsRequest:
		if err := c.sim.SetParams(r.Params); err != nil {
			return ErrorResponse{Err: err}
		}
		return nil
	default:
		// A request kind with no handler is malformed input, answered with
		// an error response rather than dropped.
		return ErrorResponse{Err: fmt.Errorf("engine: no handler for request kind %q", req.Kind())}
	}
}

func (c *core) handleBuild(r BuildRequest) Response {
	defer metrics.Timer(metrics.IndexBuild)()

	c.generation = r.Generation
	c.sim.SetNodes(r.Nodes)
	c.sim.SetEdges(r.Edges)
	c.culler.SetGraph(c.sim.Nodes(), r.Edges)
	c.rebuildIndex()

	return BuildComplete{
		Generation: r.Generation,
		NodeCount:  len(r.Nodes),
		EdgeCount:  len(r.Edges),
	}
}

func (c *core) handleCull(r CullRequest) Response {
	if r.Generation != c.generation {
		// The graph this cull was issued against has been replaced.
		return ErrorResponse{RequestID: r.RequestID,
			Err: fmt.Errorf("engine: cull generation %d superseded by %d", r.Generation, c.generation)}
	}

	defer metrics.Timer(metrics.Cull)()
	if c.indexDirty {
		c.rebuildIndex()
	}
	return CullComplete{
		RequestID:  r.RequestID,
		Generation: r.Generation,
		Result:     c.culler.Cull(r.Viewport, r.Margin),
	}
}

func (c *core) handleTick(r TickRequest) Response {
	if r.Generation != c.generation {
		return nil
	}
	defer metrics.Timer(metrics.PhysicsTick)()

	updated := c.sim.Tick(r.DT)
	c.culler.SetNodes(updated)
	c.indexDirty = true
	return TickComplete{Generation: r.Generation, NodeCount: len(updated)}
}

func (c *core) rebuildIndex() {
	nodes := c.sim.Nodes()
	c.culler.SetIndex(spatial.Build(spatial.PointsFromNodes(nodes)))
	c.indexDirty = false
}

// nodesSnapshot copies the simulation nodes under the core lock.
func (c *core) nodesSnapshot() []model.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sim.Nodes()
}

// Worker runs a core on its own goroutine, turning the request channel into
// a strict processing order.
type Worker struct {
	core *core

	reqCh  chan Request
	respCh chan Response
	stopCh chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool

	logLevel LogLevel
}

const defaultQueueDepth = 64

// newWorker wires a worker around an initialized core.
func newWorker(c *core, queueDepth int) *Worker {
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}
	return &Worker{
		core:     c,
		reqCh:    make(chan Request, queueDepth),
		respCh:   make(chan Response, queueDepth),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		logLevel: ParseLogLevel(os.Getenv("GRAPHVIEW_LOG")),
	}
}

// Start launches the worker goroutine. Idempotent.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return fmt.Errorf("engine: worker has been stopped")
	}
	if w.started {
		return nil
	}
	w.started = true
	go w.loop()
	return nil
}

// Stop shuts the worker down and waits for the loop to drain. Idempotent.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	wasStarted := w.started
	w.mu.Unlock()

	close(w.stopCh)
	if wasStarted {
		select {
		case <-w.done:
		case <-time.After(5 * time.Second):
			w.logEvent(LogWarn, "shutdown_timeout", nil)
		}
	}
}

// Responses exposes the worker's reply stream. The channel is owned by the
// worker and is never closed.
func (w *Worker) Responses() <-chan Response { return w.respCh }

// Submit enqueues a request. Returns false when the queue is full or the
// worker is stopped; the caller then falls back to synchronous execution.
func (w *Worker) Submit(req Request) bool {
	select {
	case <-w.stopCh:
		return false
	default:
	}
	select {
	case w.reqCh <- req:
		return true
	default:
		w.logEvent(LogWarn, "queue_full", map[string]any{"kind": req.Kind()})
		return false
	}
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stopCh:
			return
		case req := <-w.reqCh:
			start := time.Now()
			resp := w.core.handle(req)
			if resp == nil {
				continue
			}
			w.logEvent(LogDebug, "request_handled", map[string]any{
				"kind":     req.Kind(),
				"reply":    resp.Kind(),
				"duration": time.Since(start).String(),
			})
			w.send(resp)
		}
	}
}

// send delivers a response without ever blocking the worker: when the
// channel is full the oldest response is dropped so the newest wins.
func (w *Worker) send(resp Response) {
	for {
		select {
		case w.respCh <- resp:
			return
		case <-w.stopCh:
			return
		default:
		}
		select {
		case dropped := <-w.respCh:
			w.logEvent(LogDebug, "response_dropped", map[string]any{"kind": dropped.Kind()})
		default:
		}
	}
}

// logEvent emits one structured JSON line, matching the engine's other
// diagnostics so worker traces interleave cleanly.
func (w *Worker) logEvent(level LogLevel, event string, fields map[string]any) {
	if w.logLevel == LogNone || level > w.logLevel {
		return
	}
	payload := map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level.String(),
		"component": "culling_worker",
		"event":     event,
	}
	for k, v := range fields {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("culling worker: marshal log event %s: %v", event, err)
		return
	}
	log.Printf("%s", b)
}
