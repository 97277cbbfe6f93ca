package engine

import (
	"github.com/graphview-io/graphview/pkg/culling"
	"github.com/graphview-io/graphview/pkg/model"
	"github.com/graphview-io/graphview/pkg/perfmon"
	"github.com/graphview-io/graphview/pkg/physics"
)

// Request is the tagged union of messages accepted by the worker. Every
// kind is a distinct struct so a new message is a compile-time-checked
// addition, not a stringly-typed payload.
type Request interface {
	// Kind returns the wire tag for logging and transport framing.
	Kind() string
}

// BuildRequest replaces the graph wholesale and rebuilds the spatial index.
// Generation identifies the graph load; results from older generations are
// discarded by the caller.
type BuildRequest struct {
	Generation uint64
	Nodes      []model.Node
	Edges      []model.Edge
}

func (BuildRequest) Kind() string { return "build" }

// CullRequest asks for the visible set of one viewport snapshot.
type CullRequest struct {
	RequestID  uint64
	Generation uint64
	Viewport   model.ViewportInfo
	Margin     float64
}

func (CullRequest) Kind() string { return "cull" }

// TickRequest advances the physics simulation and refreshes the index.
type TickRequest struct {
	Generation uint64
	DT         float64
}

func (TickRequest) Kind() string { return "tick" }

// BudgetRequest updates the performance-tier budget used by the culler.
type BudgetRequest struct {
	Budget perfmon.Budget
}

func (BudgetRequest) Kind() string { return "budget" }

// PinRequest pins or unpins a node in the simulation.
type PinRequest struct {
	NodeID string
	Pinned bool
}

func (PinRequest) Kind() string { return "pin" }

// ParamsRequest replaces the physics tuning.
type ParamsRequest struct {
	Params physics.Params
}

func (ParamsRequest) Kind() string { return "params" }

// Response is the tagged union of worker replies.
type Response interface {
	Kind() string
	// ResponseID returns the request id a response correlates to, or zero
	// for uncorrelated responses (build, tick).
	ResponseID() uint64
}

// BuildComplete reports a finished index build.
type BuildComplete struct {
	Generation uint64
	NodeCount  int
	EdgeCount  int
}

func (BuildComplete) Kind() string       { return "buildComplete" }
func (BuildComplete) ResponseID() uint64 { return 0 }

// CullComplete carries the visible set for one cull request.
type CullComplete struct {
	RequestID  uint64
	Generation uint64
	Result     culling.Result
}

func (CullComplete) Kind() string         { return "cullComplete" }
func (r CullComplete) ResponseID() uint64 { return r.RequestID }

// TickComplete reports a finished physics step.
type TickComplete struct {
	Generation uint64
	NodeCount  int
}

func (TickComplete) Kind() string       { return "tickComplete" }
func (TickComplete) ResponseID() uint64 { return 0 }

// ErrorResponse reports a failed or unhandled request. It carries the
// original request id so the caller can correlate and fail gracefully.
type ErrorResponse struct {
	RequestID uint64
	Err       error
}

func (ErrorResponse) Kind() string         { return "error" }
func (r ErrorResponse) ResponseID() uint64 { return r.RequestID }

func (r ErrorResponse) Error() string {
	if r.Err == nil {
		return "engine: unknown worker error"
	}
	return r.Err.Error()
}

func (r ErrorResponse) Unwrap() error { return r.Err }
