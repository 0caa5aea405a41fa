package runtime

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/tolvanen/sonora/core/graph"
	"github.com/tolvanen/sonora/core/node"
	"github.com/tolvanen/sonora/core/value"
	"github.com/tolvanen/sonora/providers/observability/slogobs"
)

func TestNewRuntimeDefaultNilObserver(t *testing.T) {
	rt, err := NewRuntime(44100, 512)
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	if rt.observer != nil {
		t.Errorf("default observer should be nil for zero overhead, got %T", rt.observer)
	}
}

func TestNewRuntimeWithObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	observer := slogobs.New(slogobs.WithLogger(logger))

	rt, err := NewRuntime(44100, 512, WithObserver(observer))
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	if rt.observer != observer {
		t.Error("observer was not set correctly")
	}

	batch := []graph.Instruction{{Op: graph.OpCreateNode, NodeID: 1, TypeName: "const"}}
	rt.ApplyInstructions(context.Background(), batch)

	if buf.Len() == 0 {
		t.Error("expected the observer to have logged something for the applied batch")
	}
}

func TestNewRuntimeRejectsNodeTypeCollision(t *testing.T) {
	_, err := NewRuntime(44100, 512, WithNodeTypes(map[string]node.Factory{
		"const": func(id node.ID, sampleRate float64, blockSize int) node.Node { return nil },
	}))
	if err == nil {
		t.Fatal("NewRuntime() error = nil, want error for a node type colliding with a built-in")
	}
}

func TestApplyInstructionsAndProcessEndToEnd(t *testing.T) {
	rt, err := NewRuntime(44100, 4)
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}

	batch := []graph.Instruction{
		{Op: graph.OpCreateNode, NodeID: 1, TypeName: "const"},
		{Op: graph.OpSetProperty, NodeID: 1, PropertyName: "value", PropertyValue: value.NewNumber(1.0)},
		{Op: graph.OpCreateNode, NodeID: 2, TypeName: "root"},
		{Op: graph.OpAppendChild, NodeID: 2, ChildID: 1},
		{Op: graph.OpActivateRoots, RootIDs: []node.ID{2}},
		{Op: graph.OpCommitUpdates},
	}
	if code := rt.ApplyInstructions(context.Background(), batch); code != node.Ok {
		t.Fatalf("ApplyInstructions() = %v", code)
	}

	out := make([][]float64, 1)
	out[0] = make([]float64, 4)
	rt.Process(nil, out, 4, nil)

	// The root's gain starts at 0 and is read before each step, so sample 0
	// is silent and sample 1 carries the first ramp increment.
	if out[0][1] <= 0 {
		t.Fatalf("out[0][1] = %v, want > 0 once the root starts ramping in", out[0][1])
	}
}

func TestProcessWithoutAnyCommitZerosOutput(t *testing.T) {
	rt, err := NewRuntime(44100, 4)
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}

	out := [][]float64{{1, 1, 1, 1}}
	rt.Process(nil, out, 4, nil)

	for i, v := range out[0] {
		if v != 0 {
			t.Errorf("out[0][%d] = %v, want 0 with no render sequence adopted yet", i, v)
		}
	}
}

func TestSharedResourceMapRoundTrip(t *testing.T) {
	rt, err := NewRuntime(44100, 512)
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}

	if !rt.UpdateSharedResourceMap("ir", []float64{0.1, 0.2, 0.3}) {
		t.Fatal("UpdateSharedResourceMap() = false on first insert, want true")
	}
	if rt.UpdateSharedResourceMap("ir", []float64{0.9}) {
		t.Fatal("UpdateSharedResourceMap() = true on a duplicate name, want false (add-only)")
	}

	keys := rt.SharedResourceMapKeys()
	if len(keys) != 1 || keys[0] != "ir" {
		t.Fatalf("SharedResourceMapKeys() = %v, want [ir]", keys)
	}

	if n := rt.PruneSharedResourceMap(); n != 1 {
		t.Fatalf("PruneSharedResourceMap() = %d, want 1 (nothing else holds a reference)", n)
	}
}

func TestSnapshotReflectsAppliedProperties(t *testing.T) {
	rt, err := NewRuntime(44100, 512)
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	rt.ApplyInstructions(context.Background(), []graph.Instruction{
		{Op: graph.OpCreateNode, NodeID: 1, TypeName: "const"},
		{Op: graph.OpSetProperty, NodeID: 1, PropertyName: "value", PropertyValue: value.NewNumber(0.5)},
	})

	snap := rt.Snapshot()
	props, ok := snap[node.ID(1).String()]
	if !ok {
		t.Fatal("Snapshot() missing entry for node 1")
	}
	if props["value"].Number() != 0.5 {
		t.Errorf("snapshot value = %v, want 0.5", props["value"].Number())
	}
}
