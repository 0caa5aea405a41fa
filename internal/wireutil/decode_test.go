package wireutil

import (
	"testing"

	"github.com/tolvanen/sonora/core/graph"
	"github.com/tolvanen/sonora/core/node"
)

func TestDecodeBatchFullOpcodeSet(t *testing.T) {
	raw := []byte(`[
		[0, 1, "const"],
		[3, 1, "value", 0.5],
		[0, 2, "root"],
		[3, 2, "channel", 0],
		[2, 2, 1],
		[4, [2]],
		[5]
	]`)

	batch, err := DecodeBatch(raw)
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v", err)
	}
	if len(batch) != 7 {
		t.Fatalf("len(batch) = %d, want 7", len(batch))
	}

	want := []graph.Opcode{
		graph.OpCreateNode, graph.OpSetProperty, graph.OpCreateNode,
		graph.OpSetProperty, graph.OpAppendChild, graph.OpActivateRoots,
		graph.OpCommitUpdates,
	}
	for i, op := range want {
		if batch[i].Op != op {
			t.Errorf("batch[%d].Op = %v, want %v", i, batch[i].Op, op)
		}
	}

	if batch[1].PropertyValue.Number() != 0.5 {
		t.Errorf("batch[1].PropertyValue = %v, want 0.5", batch[1].PropertyValue.Number())
	}
	if batch[4].NodeID != 2 || batch[4].ChildID != 1 {
		t.Errorf("AppendChild decoded as parent=%v child=%v, want parent=2 child=1", batch[4].NodeID, batch[4].ChildID)
	}
	if len(batch[5].RootIDs) != 1 || batch[5].RootIDs[0] != node.ID(2) {
		t.Errorf("ActivateRoots decoded RootIDs = %v, want [2]", batch[5].RootIDs)
	}
}

func TestDecodeBatchRepairsMalformedJSON(t *testing.T) {
	// Trailing comma and single-quoted string: invalid JSON, but
	// jsonrepair can fix both.
	raw := []byte(`[
		[0, 1, 'const'],
	]`)

	batch, err := DecodeBatch(raw)
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v, want the repair path to succeed", err)
	}
	if len(batch) != 1 || batch[0].TypeName != "const" {
		t.Fatalf("batch = %+v, want a single CreateNode(1, const)", batch)
	}
}

func TestDecodeBatchHexNodeID(t *testing.T) {
	raw := []byte(`[[0, "0000002a", "const"]]`)

	batch, err := DecodeBatch(raw)
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v", err)
	}
	if batch[0].NodeID != node.ID(42) {
		t.Errorf("NodeID = %v, want 42", batch[0].NodeID)
	}
}

func TestDecodeBatchRejectsUnknownOpcode(t *testing.T) {
	raw := []byte(`[[99]]`)

	if _, err := DecodeBatch(raw); err == nil {
		t.Fatal("DecodeBatch() error = nil, want error for unknown opcode")
	}
}

func TestDecodeBatchRejectsWrongOperandCount(t *testing.T) {
	raw := []byte(`[[0, 1]]`)

	if _, err := DecodeBatch(raw); err == nil {
		t.Fatal("DecodeBatch() error = nil, want error for a CreateNode missing its type name")
	}
}
