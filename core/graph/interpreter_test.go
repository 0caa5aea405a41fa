package graph

import (
	"testing"

	"github.com/tolvanen/sonora/core/node"
	"github.com/tolvanen/sonora/core/pool"
	"github.com/tolvanen/sonora/core/value"
	"github.com/tolvanen/sonora/providers/resource"
)

func newTestInterpreter(t *testing.T) *Interpreter {
	t.Helper()
	reg := node.NewRegistry()
	if code := node.RegisterDefaultTypes(reg); code != node.Ok {
		t.Fatalf("RegisterDefaultTypes() = %v", code)
	}
	return NewInterpreter(reg, resource.NewMap(), 44100, 4)
}

func TestApplyCreateNodeUnknownType(t *testing.T) {
	in := newTestInterpreter(t)
	code := in.Apply([]Instruction{{Op: OpCreateNode, NodeID: 1, TypeName: "nope"}})
	if code != node.UnknownNodeType {
		t.Fatalf("Apply() = %v, want UnknownNodeType", code)
	}
}

func TestApplyCreateNodeDuplicateID(t *testing.T) {
	in := newTestInterpreter(t)
	in.Apply([]Instruction{{Op: OpCreateNode, NodeID: 1, TypeName: "const"}})
	code := in.Apply([]Instruction{{Op: OpCreateNode, NodeID: 1, TypeName: "const"}})
	if code != node.NodeAlreadyExists {
		t.Fatalf("Apply() = %v, want NodeAlreadyExists", code)
	}
}

func TestApplyAppendChildMissingNodeFails(t *testing.T) {
	in := newTestInterpreter(t)
	in.Apply([]Instruction{{Op: OpCreateNode, NodeID: 1, TypeName: "root"}})

	code := in.Apply([]Instruction{{Op: OpAppendChild, NodeID: 1, ChildID: 2}})
	if code != node.NodeNotFound {
		t.Fatalf("Apply() = %v, want NodeNotFound", code)
	}
}

func TestApplyStopsAtFirstError(t *testing.T) {
	in := newTestInterpreter(t)
	code := in.Apply([]Instruction{
		{Op: OpCreateNode, NodeID: 1, TypeName: "const"},
		{Op: OpCreateNode, NodeID: 1, TypeName: "const"}, // duplicate, fails here
		{Op: OpCreateNode, NodeID: 2, TypeName: "const"}, // never applied
	})
	if code != node.NodeAlreadyExists {
		t.Fatalf("Apply() = %v, want NodeAlreadyExists", code)
	}
	if _, ok := in.store.nodes[2]; ok {
		t.Fatal("instruction after the failing one was applied")
	}
}

func TestCommitUpdatesOnlyBuildsWhenRootsChanged(t *testing.T) {
	in := newTestInterpreter(t)
	in.Apply([]Instruction{{Op: OpCreateNode, NodeID: 1, TypeName: "root"}})

	if code := in.Apply([]Instruction{{Op: OpCommitUpdates}}); code != node.Ok {
		t.Fatalf("Apply(CommitUpdates) = %v", code)
	}
	if in.sequences.Len() != 0 {
		t.Fatal("CommitUpdates built a sequence despite no root-set change")
	}

	in.Apply([]Instruction{{Op: OpActivateRoots, RootIDs: []node.ID{1}}})
	in.Apply([]Instruction{{Op: OpCommitUpdates}})
	if in.sequences.Len() != 1 {
		t.Fatalf("sequences.Len() = %d, want 1 after a root-set change + commit", in.sequences.Len())
	}
}

func TestEndToEndConstIntoRootRampsGain(t *testing.T) {
	in := newTestInterpreter(t)
	batch := []Instruction{
		{Op: OpCreateNode, NodeID: 1, TypeName: "const"},
		{Op: OpSetProperty, NodeID: 1, PropertyName: "value", PropertyValue: value.NewNumber(1.0)},
		{Op: OpCreateNode, NodeID: 2, TypeName: "root"},
		{Op: OpSetProperty, NodeID: 2, PropertyName: "channel", PropertyValue: value.NewNumber(0)},
		{Op: OpAppendChild, NodeID: 2, ChildID: 1},
		{Op: OpActivateRoots, RootIDs: []node.ID{2}},
		{Op: OpCommitUpdates},
	}
	if code := in.Apply(batch); code != node.Ok {
		t.Fatalf("Apply() = %v", code)
	}

	in.AdoptLatest()
	seq := in.Active()
	if seq == nil {
		t.Fatal("no render sequence adopted")
	}

	out := make([]float64, 4)
	seq.Process(HostContext{Output: [][]float64{out}, NumSamples: 4})

	if out[0] != 0 {
		t.Fatalf("out[0] = %v, want exactly 0: a freshly activated root's first sample sees pre-step gain", out[0])
	}
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Fatalf("out[%d]=%v < out[%d]=%v, expected a monotonic ramp-in", i, out[i], i-1, out[i-1])
		}
	}
}

func TestBuilderVisitsSharedChildOnce(t *testing.T) {
	in := newTestInterpreter(t)
	batch := []Instruction{
		{Op: OpCreateNode, NodeID: 1, TypeName: "const"},
		{Op: OpCreateNode, NodeID: 2, TypeName: "add"},
		{Op: OpAppendChild, NodeID: 2, ChildID: 1},
		{Op: OpAppendChild, NodeID: 2, ChildID: 1}, // duplicate edge, allowed per spec
		{Op: OpCreateNode, NodeID: 3, TypeName: "root"},
		{Op: OpAppendChild, NodeID: 3, ChildID: 2},
		{Op: OpActivateRoots, RootIDs: []node.ID{3}},
		{Op: OpCommitUpdates},
	}
	if code := in.Apply(batch); code != node.Ok {
		t.Fatalf("Apply() = %v", code)
	}

	builder := NewBuilder(in.store, 4)
	seq := builder.Build()

	visits := 0
	var addOp *renderOp
	for i, op := range seq.ops {
		if op.n.ID() == node.ID(1) {
			visits++
		}
		if op.n.ID() == node.ID(2) {
			addOp = &seq.ops[i]
		}
	}
	if visits != 1 {
		t.Fatalf("const node rendered %d times, want 1 (buffer-map invariant)", visits)
	}
	if addOp == nil {
		t.Fatal("add node missing from built sequence")
	}
	if len(addOp.inputs) != 2 {
		t.Fatalf("add node input count = %d, want 2 (duplicate edge preserved)", len(addOp.inputs))
	}
	if &addOp.inputs[0][0] != &addOp.inputs[1][0] {
		t.Fatal("add node's two inputs should point at the same shared buffer")
	}
}

// TestGarbageReclaimSequence mirrors §8 end-to-end scenario 5 exactly:
// immediately after Commit, a deleted node's reference count is 2; after
// one more process callback it falls to 1; after one more
// applyInstructions pass the garbage entry is erased.
func TestGarbageReclaimSequence(t *testing.T) {
	in := newTestInterpreter(t)
	in.Apply([]Instruction{{Op: OpCreateNode, NodeID: 1, TypeName: "const"}})

	if code := in.Apply([]Instruction{
		{Op: OpDeleteNode, NodeID: 1},
		{Op: OpCommitUpdates},
	}); code != node.Ok {
		t.Fatalf("Apply() = %v", code)
	}

	g, ok := in.store.garbage[1]
	if !ok {
		t.Fatal("deleted node not moved to garbage table")
	}
	if g.refs != 2 {
		t.Fatalf("refs immediately after Commit = %d, want 2", g.refs)
	}

	in.AdoptLatest() // one process callback
	if g.refs != 1 {
		t.Fatalf("refs after one process callback = %d, want 1", g.refs)
	}

	in.Apply(nil) // one more applyInstructions pass
	if _, ok := in.store.garbage[1]; ok {
		t.Fatal("garbage entry should be erased once its grace period elapses")
	}
}

// TestGarbageRetainedWhileDanglingEdgeStillReachesIt checks that a
// garbage-tabled node reached again through a dangling edge at build time
// has its grace period renewed rather than aged out from under a render
// sequence still walking it.
func TestGarbageRetainedWhileDanglingEdgeStillReachesIt(t *testing.T) {
	in := newTestInterpreter(t)
	in.Apply([]Instruction{
		{Op: OpCreateNode, NodeID: 1, TypeName: "const"},
		{Op: OpCreateNode, NodeID: 2, TypeName: "root"},
		{Op: OpAppendChild, NodeID: 2, ChildID: 1},
		{Op: OpActivateRoots, RootIDs: []node.ID{2}},
		{Op: OpCommitUpdates},
	})
	in.AdoptLatest()

	in.Apply([]Instruction{{Op: OpDeleteNode, NodeID: 1}})
	in.AdoptLatest() // ages node 1 to refs=1

	// Root 2's edge table still lists node 1 as a child, so a fresh build
	// walks into it via that dangling edge, renewing its grace period
	// instead of letting it get pruned.
	NewBuilder(in.store, 4).Build()

	if g, ok := in.store.garbage[1]; !ok || g.refs != 2 {
		t.Fatalf("garbage[1] = %+v, want refs=2 after a build walks a dangling edge into it", in.store.garbage[1])
	}
}

// TestDeactivatedRootRetainedWhileFading mirrors §8 end-to-end scenario 2
// and §4.6: a deactivated but still-running root stays in CurrentRoots
// until its fade settles, and is dropped from the set the next time
// CommitUpdates (or ActivateRoots) evaluates it.
func TestDeactivatedRootRetainedWhileFading(t *testing.T) {
	in := newTestInterpreter(t)
	in.Apply([]Instruction{
		{Op: OpCreateNode, NodeID: 1, TypeName: "const"},
		{Op: OpSetProperty, NodeID: 1, PropertyName: "value", PropertyValue: value.NewNumber(1)},
		{Op: OpCreateNode, NodeID: 2, TypeName: "root"},
		{Op: OpAppendChild, NodeID: 2, ChildID: 1},
		{Op: OpActivateRoots, RootIDs: []node.ID{2}},
		{Op: OpCommitUpdates},
	})
	in.AdoptLatest()

	root := in.store.nodes[2].(*node.RootNode)
	for i := 0; i < 44100; i++ {
		root.Process(node.BlockContext{
			Input:      [][]float64{{1}},
			Output:     [][]float64{make([]float64, 1)},
			NumSamples: 1,
		})
	}
	if !root.Active() || root.StillRunning() == false {
		t.Fatal("expected root to have settled fully on before deactivating")
	}

	in.Apply([]Instruction{{Op: OpActivateRoots, RootIDs: []node.ID{}}})
	if _, stillCurrent := in.store.currentRoots[2]; !stillCurrent {
		t.Fatal("deactivated-but-still-running root was dropped from CurrentRoots immediately")
	}
	if root.Active() {
		t.Fatal("root should be inactive immediately after deactivation")
	}
	if !root.StillRunning() {
		t.Fatal("root should still be running immediately after deactivation (mid-fade-out)")
	}

	// A commit while still fading must not prune it.
	in.Apply([]Instruction{{Op: OpCommitUpdates}})
	if _, stillCurrent := in.store.currentRoots[2]; !stillCurrent {
		t.Fatal("fading root was pruned from CurrentRoots by a commit before it settled")
	}

	settleSamples := int(44100/20) + 1
	for i := 0; i < settleSamples; i++ {
		root.Process(node.BlockContext{
			Input:      [][]float64{{1}},
			Output:     [][]float64{make([]float64, 1)},
			NumSamples: 1,
		})
	}
	if root.StillRunning() {
		t.Fatal("root should have settled to silence after ⌈sampleRate/20⌉ samples")
	}

	// Retention is only re-evaluated at the next Commit or ActivateRoots.
	if _, stillCurrent := in.store.currentRoots[2]; !stillCurrent {
		t.Fatal("settled root was pruned from CurrentRoots before the next evaluation")
	}
	in.Apply([]Instruction{{Op: OpCommitUpdates}})
	if _, stillCurrent := in.store.currentRoots[2]; stillCurrent {
		t.Fatal("settled root should be pruned from CurrentRoots at the next CommitUpdates evaluation")
	}
}

// TestPropertyChangeAppliesWithoutRebuild mirrors §8 end-to-end scenario 4:
// changing a running node's property value (standing in for swapping an
// oscillator's frequency-const from 440Hz to 880Hz) takes effect on the
// very next block without a new render sequence being built, since the
// node instance is shared between the store and the already-adopted
// sequence. ActivateRoots is what marks a rebuild necessary, not
// SetProperty.
func TestPropertyChangeAppliesWithoutRebuild(t *testing.T) {
	in := newTestInterpreter(t)
	in.Apply([]Instruction{
		{Op: OpCreateNode, NodeID: 1, TypeName: "const"},
		{Op: OpSetProperty, NodeID: 1, PropertyName: "value", PropertyValue: value.NewNumber(440)},
		{Op: OpCreateNode, NodeID: 2, TypeName: "root"},
		{Op: OpAppendChild, NodeID: 2, ChildID: 1},
		{Op: OpActivateRoots, RootIDs: []node.ID{2}},
		{Op: OpCommitUpdates},
	})
	in.AdoptLatest()
	seq := in.Active()

	root := in.store.nodes[2].(*node.RootNode)
	root.SetActive(true)
	for i := 0; i < 44100; i++ {
		root.Process(node.BlockContext{
			Input:      [][]float64{{440}},
			Output:     [][]float64{make([]float64, 1)},
			NumSamples: 1,
		})
	}

	if code := in.Apply([]Instruction{
		{Op: OpSetProperty, NodeID: 1, PropertyName: "value", PropertyValue: value.NewNumber(880)},
		{Op: OpCommitUpdates},
	}); code != node.Ok {
		t.Fatalf("Apply() = %v", code)
	}

	// No rebuild: the root set never changed, so the sequence pointer
	// handed back by Active() is unchanged, and no new scratch buffers
	// were allocated for it.
	in.AdoptLatest()
	if in.Active() != seq {
		t.Fatal("a property-only change triggered a render-sequence rebuild")
	}

	out := make([]float64, 4)
	seq.Process(HostContext{Output: [][]float64{out}, NumSamples: 4})
	for i, v := range out {
		if v <= 440 {
			t.Fatalf("out[%d] = %v, want > 440 reflecting the updated value with no discontinuity", i, v)
		}
	}
}

// TestAdoptLatestReleasesSequenceHandlesForReuse confirms the render
// sequence handoff actually recycles pool slots: once a handle has been
// adopted and then superseded, its slot becomes available again instead
// of the pool growing without bound commit after commit.
func TestAdoptLatestReleasesSequenceHandlesForReuse(t *testing.T) {
	in := newTestInterpreter(t)
	in.Apply([]Instruction{{Op: OpCreateNode, NodeID: 1, TypeName: "root"}})
	root := in.store.nodes[1].(*node.RootNode)

	countSlots := func() int {
		n := 0
		in.seqPool.ForEach(func(*pool.Handle[*RenderSequence]) { n++ })
		return n
	}

	settle := func() {
		for i := 0; i < 44100; i++ {
			root.Process(node.BlockContext{
				Input:      [][]float64{{0}},
				Output:     [][]float64{make([]float64, 1)},
				NumSamples: 1,
			})
		}
	}

	// Round 1: activate and commit, adopting the handle immediately so at
	// most one handle is ever outstanding at a time.
	in.Apply([]Instruction{{Op: OpActivateRoots, RootIDs: []node.ID{1}}})
	in.Apply([]Instruction{{Op: OpCommitUpdates}})
	in.AdoptLatest()
	initial := countSlots()

	// Round 2: deactivate. The root has not processed a block yet, so its
	// gain is still 0 and ActivateRoots drops it from CurrentRoots at once;
	// the following CommitUpdates rebuilds.
	in.Apply([]Instruction{{Op: OpActivateRoots, RootIDs: nil}})
	settle()
	in.Apply([]Instruction{{Op: OpCommitUpdates}})
	in.AdoptLatest()

	// Round 3: reactivate, forcing a third distinct rebuild.
	in.Apply([]Instruction{{Op: OpActivateRoots, RootIDs: []node.ID{1}}})
	in.Apply([]Instruction{{Op: OpCommitUpdates}})
	in.AdoptLatest()

	if got := countSlots(); got > initial {
		t.Fatalf("seqPool grew from %d to %d slots over three rebuilds; AdoptLatest should release superseded handles for reuse", initial, got)
	}
}
