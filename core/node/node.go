// Package node defines the processing-node contract consumed by the
// render-sequence builder and executor, a thread-safe type registry, and a
// small representative default node library (root, const, in, add, mul,
// tapIn, tapOut) sufficient to exercise the engine end to end.
package node

import (
	"github.com/tolvanen/sonora/core/value"
	"github.com/tolvanen/sonora/providers/resource"
)

// BlockContext carries everything a node needs to process one block of
// audio. Input and Output are one slice per channel; callers guarantee
// Output has at least OutputChannels() entries.
type BlockContext struct {
	Input      [][]float64
	Output     [][]float64
	NumSamples int
	UserData   any
	RootActive bool
}

// EventFunc receives a named event payload during processEvents.
type EventFunc func(name string, payload value.Value)

// Node is the uniform interface the scheduler drives. Construction happens
// through a Factory (see Registry); SetProperty and ProcessEvents and Reset
// run only on the control thread, Process only on the audio thread.
type Node interface {
	ID() ID
	SampleRate() float64
	BlockSize() int

	// OutputChannels reports how many output channels this node declares.
	// The render-sequence builder allocates exactly this many scratch
	// buffers for the node. Most nodes declare one.
	OutputChannels() int

	// SetProperty validates and stores a property. resources is the shared
	// resource map, used by nodes that publish or look up a shared buffer
	// (tap nodes); nodes that don't care may ignore it.
	SetProperty(key string, val value.Value, resources *resource.Map) ReturnCode

	// Process must not allocate, lock, or block. On an arity mismatch
	// (fewer input channels than required) it must zero its output and
	// return.
	Process(ctx BlockContext)

	ProcessEvents(emit EventFunc)
	Reset()
}

// Factory constructs a new Node instance of a registered type.
type Factory func(id ID, sampleRate float64, blockSize int) Node

// Base provides the default property-map storage and no-op hooks that
// GraphNode gives every node in the original engine. Concrete node types
// embed Base and override SetProperty/Process/ProcessEvents/Reset as
// needed.
type Base struct {
	id         ID
	sampleRate float64
	blockSize  int
	props      map[string]value.Value
}

// NewBase constructs the embeddable base state for a concrete node type.
func NewBase(id ID, sampleRate float64, blockSize int) Base {
	return Base{
		id:         id,
		sampleRate: sampleRate,
		blockSize:  blockSize,
		props:      make(map[string]value.Value),
	}
}

func (b *Base) ID() ID              { return b.id }
func (b *Base) SampleRate() float64 { return b.sampleRate }
func (b *Base) BlockSize() int      { return b.blockSize }
func (b *Base) OutputChannels() int { return 1 }

// SetProperty stores val in the property map unconditionally and returns
// Ok. Concrete node types override this to validate specific keys, falling
// back to Base.SetProperty for anything they don't recognize.
func (b *Base) SetProperty(key string, val value.Value, _ *resource.Map) ReturnCode {
	b.props[key] = val
	return Ok
}

// Property returns a previously-set property value, or the zero Value
// (Undefined) if key was never set.
func (b *Base) Property(key string) value.Value {
	return b.props[key]
}

// Snapshot returns a shallow copy of the property map for diagnostics.
func (b *Base) Snapshot() map[string]value.Value {
	out := make(map[string]value.Value, len(b.props))
	for k, v := range b.props {
		out[k] = v
	}
	return out
}

func (b *Base) ProcessEvents(EventFunc) {}
func (b *Base) Reset()                  {}
