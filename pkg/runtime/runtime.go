// Package runtime is the public facade over the engine's control and
// audio APIs: a thin wrapper around core/graph.Interpreter that adds
// observability and a construction-time options surface, mirroring the
// shape of a client built once and used for the lifetime of a session.
package runtime

import (
	"context"
	"fmt"

	"github.com/tolvanen/sonora/core/graph"
	"github.com/tolvanen/sonora/core/node"
	"github.com/tolvanen/sonora/core/value"
	"github.com/tolvanen/sonora/providers/observability"
	"github.com/tolvanen/sonora/providers/resource"
)

// Runtime is an immutable, construction-configured handle to one audio
// graph engine instance. All configuration must be provided via Options;
// there is no mutable setup after NewRuntime returns.
type Runtime struct {
	interp   *graph.Interpreter
	observer observability.Provider // nil if not set (zero overhead)
}

// options collects what the functional options populate before NewRuntime
// builds the Runtime.
type options struct {
	observer  observability.Provider
	nodeTypes map[string]node.Factory
}

// Option configures a Runtime at construction time.
type Option func(*options)

// WithObserver attaches an observability.Provider. ApplyInstructions emits
// a span, a log entry, and counters through it; no other method uses it,
// and Process never touches it, since the audio thread must not allocate or
// call out.
func WithObserver(observer observability.Provider) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithNodeTypes registers additional node factories alongside the
// built-in library (root, const, in, add, mul, tapIn, tapOut).
// Construction fails if any name collides with an existing registration.
func WithNodeTypes(types map[string]node.Factory) Option {
	return func(o *options) {
		o.nodeTypes = types
	}
}

// NewRuntime creates a Runtime over a fresh, empty graph, registering all
// built-in node factories plus any supplied via WithNodeTypes.
func NewRuntime(sampleRate float64, blockSize int, opts ...Option) (*Runtime, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	registry := node.NewRegistry()
	if code := node.RegisterDefaultTypes(registry); code != node.Ok {
		return nil, fmt.Errorf("runtime: registering default node types: %v", code)
	}
	for name, factory := range o.nodeTypes {
		if code := registry.Register(name, factory); code != node.Ok {
			return nil, fmt.Errorf("runtime: registering node type %q: %v", name, code)
		}
	}

	return &Runtime{
		interp:   graph.NewInterpreter(registry, resource.NewMap(), sampleRate, blockSize),
		observer: o.observer,
	}, nil
}

// ApplyInstructions runs a batch on the control thread, stopping at the
// first non-Ok result. If Commit builds a fresh render sequence, it is
// enqueued for the audio thread to adopt on its next AdoptLatest/Process.
func (rt *Runtime) ApplyInstructions(ctx context.Context, batch []graph.Instruction) node.ReturnCode {
	var span observability.Span
	if rt.observer != nil {
		ctx, span = rt.observer.StartSpan(ctx, observability.SpanApplyInstructions,
			observability.Int(observability.AttrBatchSize, len(batch)))
		defer span.End()
	}

	buildsBefore := rt.interp.SequenceBuilds()
	code := rt.interp.Apply(batch)

	if rt.observer != nil {
		rt.observer.Counter("sonora.instructions_applied").Add(ctx, int64(len(batch)))
		if built := rt.interp.SequenceBuilds() - buildsBefore; built > 0 {
			rt.observer.Counter("sonora.render_sequences_built").Add(ctx, built)
		}
		if code != node.Ok {
			rt.observer.Counter("sonora.instruction_errors").Add(ctx, 1)
			span.RecordError(fmt.Errorf("applyInstructions: %v", code))
			rt.observer.Error(ctx, "apply instructions failed",
				observability.Int(observability.AttrBatchReturnCode, int(code)))
		} else {
			rt.observer.Debug(ctx, "applied instruction batch",
				observability.Int(observability.AttrBatchSize, len(batch)))
		}
	}
	return code
}

// Process is the audio entry point: adopts the newest committed render
// sequence, if any, then runs one block into the host's output buffers.
// inputs is not read: graph.HostContext carries no input channels, so no
// node sees host input. Must be called from the audio thread only, and must not
// allocate — AdoptLatest and RenderSequence.Process don't, by
// construction.
func (rt *Runtime) Process(inputs, outputs [][]float64, numSamples int, userData any) {
	rt.interp.AdoptLatest()
	seq := rt.interp.Active()
	if seq == nil {
		for _, out := range outputs {
			for i := 0; i < numSamples && i < len(out); i++ {
				out[i] = 0
			}
		}
		return
	}
	seq.Process(graph.HostContext{Output: outputs, NumSamples: numSamples, UserData: userData})
}

// ProcessQueuedEvents relays pending node events from the active render
// sequence to emit. Call from the control thread, not the audio thread.
func (rt *Runtime) ProcessQueuedEvents(emit node.EventFunc) {
	rt.interp.ProcessEvents(emit)
}

// Reset broadcasts Reset to every live node in the graph.
func (rt *Runtime) Reset() {
	rt.interp.Reset()
}

// UpdateSharedResourceMap adds an immutable buffer under name, returning
// false without modifying the map if name is already taken.
func (rt *Runtime) UpdateSharedResourceMap(name string, data []float64) bool {
	return rt.interp.Resources().Add(name, data)
}

// PruneSharedResourceMap drops every immutable buffer whose only
// remaining reference is the shared resource map itself, returning how
// many were removed.
func (rt *Runtime) PruneSharedResourceMap() int {
	return rt.interp.Resources().Prune()
}

// SharedResourceMapKeys returns the names of every immutable buffer
// currently registered.
func (rt *Runtime) SharedResourceMapKeys() []string {
	return rt.interp.Resources().Keys()
}

// RegisterNodeType registers a new node type factory, failing if name is
// already taken.
func (rt *Runtime) RegisterNodeType(name string, factory node.Factory) node.ReturnCode {
	return rt.interp.RegisterNodeType(name, factory)
}

// Snapshot returns a diagnostic dump of every live node's properties,
// keyed by hex node id.
func (rt *Runtime) Snapshot() map[string]map[string]value.Value {
	return rt.interp.Snapshot()
}
