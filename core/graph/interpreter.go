package graph

import (
	"github.com/tolvanen/sonora/core/node"
	"github.com/tolvanen/sonora/core/pool"
	"github.com/tolvanen/sonora/core/queue"
	"github.com/tolvanen/sonora/core/value"
	"github.com/tolvanen/sonora/providers/resource"
)

// Opcode identifies one of the six instruction kinds §4.2 defines.
type Opcode int

const (
	OpCreateNode Opcode = iota
	OpDeleteNode
	OpAppendChild
	OpSetProperty
	OpActivateRoots
	OpCommitUpdates
)

// Instruction is one decoded entry of an instruction batch. Only the
// fields relevant to Op are populated; the rest are left at their zero
// value.
type Instruction struct {
	Op            Opcode
	NodeID        node.ID
	TypeName      string
	ChildID       node.ID
	PropertyName  string
	PropertyValue value.Value
	RootIDs       []node.ID
}

// sequenceQueueCapacity is the SPSC handoff depth for built render
// sequences, the minimum §4.7 requires for newest-wins draining.
const sequenceQueueCapacity = 2

// Interpreter owns a graph Store and applies instruction batches to it on
// the control thread, building and handing off fresh render sequences to
// the audio thread on CommitUpdates.
type Interpreter struct {
	store      *Store
	registry   *node.Registry
	resources  *resource.Map
	sampleRate float64
	blockSize  int

	dirty          bool
	seqPool        *pool.RefCounted[*RenderSequence]
	sequences      *queue.SPSC[*pool.Handle[*RenderSequence]]
	activeHandle   *pool.Handle[*RenderSequence]
	active         *RenderSequence
	sequenceBuilds int64
}

// NewInterpreter creates an interpreter over a fresh, empty graph store.
func NewInterpreter(registry *node.Registry, resources *resource.Map, sampleRate float64, blockSize int) *Interpreter {
	return &Interpreter{
		store:      NewStore(),
		registry:   registry,
		resources:  resources,
		sampleRate: sampleRate,
		blockSize:  blockSize,
		seqPool:    pool.NewRefCounted[*RenderSequence](sequenceQueueCapacity, func() *RenderSequence { return nil }),
		sequences:  queue.NewSPSC[*pool.Handle[*RenderSequence]](sequenceQueueCapacity),
	}
}

// Apply runs a batch of instructions in order, stopping at the first
// non-Ok result. No rollback is performed on the effects already applied.
// The garbage table is swept once, after the batch, regardless of outcome.
func (in *Interpreter) Apply(batch []Instruction) node.ReturnCode {
	defer in.store.collectGarbage()

	for _, instr := range batch {
		if code := in.applyOne(instr); code != node.Ok {
			return code
		}
	}
	return node.Ok
}

func (in *Interpreter) applyOne(instr Instruction) node.ReturnCode {
	switch instr.Op {
	case OpCreateNode:
		factory, ok := in.registry.Get(instr.TypeName)
		if !ok {
			return node.UnknownNodeType
		}
		n := factory(instr.NodeID, in.sampleRate, in.blockSize)
		return in.store.createNode(instr.NodeID, n)

	case OpDeleteNode:
		return in.store.deleteNode(instr.NodeID)

	case OpAppendChild:
		return in.store.appendChild(instr.NodeID, instr.ChildID)

	case OpSetProperty:
		return in.store.setProperty(instr.NodeID, instr.PropertyName, instr.PropertyValue, in.resources)

	case OpActivateRoots:
		changed, code := in.store.activateRoots(instr.RootIDs)
		if code != node.Ok {
			return code
		}
		if changed {
			in.dirty = true
		}
		return node.Ok

	case OpCommitUpdates:
		// Open question 2 (DESIGN.md): a settled, deactivated root is
		// pruned from CurrentRoots here too, not only at the next
		// ActivateRoots evaluation — a strict correctness improvement
		// over leaving it to linger until some later reactivation call.
		if in.store.pruneSettledRoots() {
			in.dirty = true
		}
		if in.dirty {
			seq := NewBuilder(in.store, in.blockSize).Build()
			h := in.seqPool.Allocate()
			*h.Value() = seq
			in.sequences.Push(h)
			in.sequenceBuilds++
			in.dirty = false
		}
		return node.Ok

	default:
		return node.InvalidInstructionFormat
	}
}

// AdoptLatest drains the sequence queue for the newest built sequence (if
// any) and makes it the active one. Called once per audio block, before
// Process; it also ages the garbage table by one quiescent period,
// standing in for the process callback scenario §8 describes.
//
// Handles superseded before ever being adopted, and the previously active
// handle once it is replaced, are released back to the pool so a future
// CommitUpdates can reuse their slot instead of growing it.
func (in *Interpreter) AdoptLatest() {
	in.store.ageGarbage()

	var latest *pool.Handle[*RenderSequence]
	for {
		h, ok := in.sequences.Pop()
		if !ok {
			break
		}
		if latest != nil {
			latest.Release()
		}
		latest = h
	}
	if latest == nil {
		return
	}

	if in.activeHandle != nil {
		in.activeHandle.Release()
	}
	in.activeHandle = latest
	in.active = *latest.Value()
}

// Active returns the currently adopted render sequence, or nil if none
// has been committed yet.
func (in *Interpreter) Active() *RenderSequence {
	return in.active
}

// SequenceBuilds reports how many render sequences have been built over
// this interpreter's lifetime, for diagnostics and metrics.
func (in *Interpreter) SequenceBuilds() int64 {
	return in.sequenceBuilds
}

// Resources returns the shared resource map backing tap nodes and any
// other node that publishes or looks up a named buffer.
func (in *Interpreter) Resources() *resource.Map {
	return in.resources
}

// ProcessEvents relays pending events from the active render sequence, a
// no-op if none has been adopted yet.
func (in *Interpreter) ProcessEvents(emit node.EventFunc) {
	if in.active == nil {
		return
	}
	in.active.ProcessEvents(emit)
}

// Reset broadcasts Reset to every live node in the store.
func (in *Interpreter) Reset() {
	for _, n := range in.store.nodes {
		n.Reset()
	}
}

// Snapshot returns a diagnostic dump of every live node's properties.
func (in *Interpreter) Snapshot() map[string]map[string]value.Value {
	return in.store.Snapshot()
}

// RegisterNodeType registers a new node type factory, failing if name is
// already taken.
func (in *Interpreter) RegisterNodeType(name string, factory node.Factory) node.ReturnCode {
	return in.registry.Register(name, factory)
}
