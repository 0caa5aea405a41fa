// Package wireutil provides a forgiving JSON decoder for instruction
// batches, for development tooling and tests. Production callers of
// pkg/runtime never touch JSON directly (spec.md keeps wire
// (de)serialization outside the engine); this package exists for
// cmd/sonora-bench and integration tests that load batches from disk.
package wireutil

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"

	"github.com/tolvanen/sonora/core/graph"
	"github.com/tolvanen/sonora/core/node"
	"github.com/tolvanen/sonora/core/value"
)

// DecodeBatch parses raw into a batch of instructions. raw is a JSON array
// of arrays, each shaped `[opcode, ...operands]` per the opcode table. If
// raw doesn't parse as-is, DecodeBatch attempts to repair it (trailing
// commas, unquoted keys, single quotes — the kinds of things a
// hand-written test fixture gets wrong) and retries once before giving up.
func DecodeBatch(raw []byte) ([]graph.Instruction, error) {
	var entries [][]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(string(raw))
		if repairErr != nil {
			return nil, fmt.Errorf("wireutil: decode batch: %w (repair also failed: %v)", err, repairErr)
		}
		if err := json.Unmarshal([]byte(repaired), &entries); err != nil {
			return nil, fmt.Errorf("wireutil: decode repaired batch: %w", err)
		}
	}

	batch := make([]graph.Instruction, len(entries))
	for i, entry := range entries {
		instr, err := decodeInstruction(entry)
		if err != nil {
			return nil, fmt.Errorf("wireutil: instruction %d: %w", i, err)
		}
		batch[i] = instr
	}
	return batch, nil
}

func decodeInstruction(entry []any) (graph.Instruction, error) {
	if len(entry) == 0 {
		return graph.Instruction{}, fmt.Errorf("empty instruction")
	}
	opNum, ok := entry[0].(float64)
	if !ok {
		return graph.Instruction{}, fmt.Errorf("opcode must be a number, got %T", entry[0])
	}
	op := graph.Opcode(int(opNum))
	operands := entry[1:]

	switch op {
	case graph.OpCreateNode:
		if len(operands) != 2 {
			return graph.Instruction{}, fmt.Errorf("CreateNode wants 2 operands, got %d", len(operands))
		}
		id, err := decodeNodeID(operands[0])
		if err != nil {
			return graph.Instruction{}, err
		}
		typeName, ok := operands[1].(string)
		if !ok {
			return graph.Instruction{}, fmt.Errorf("CreateNode type name must be a string, got %T", operands[1])
		}
		return graph.Instruction{Op: op, NodeID: id, TypeName: typeName}, nil

	case graph.OpDeleteNode:
		if len(operands) != 1 {
			return graph.Instruction{}, fmt.Errorf("DeleteNode wants 1 operand, got %d", len(operands))
		}
		id, err := decodeNodeID(operands[0])
		if err != nil {
			return graph.Instruction{}, err
		}
		return graph.Instruction{Op: op, NodeID: id}, nil

	case graph.OpAppendChild:
		if len(operands) != 2 {
			return graph.Instruction{}, fmt.Errorf("AppendChild wants 2 operands, got %d", len(operands))
		}
		parentID, err := decodeNodeID(operands[0])
		if err != nil {
			return graph.Instruction{}, err
		}
		childID, err := decodeNodeID(operands[1])
		if err != nil {
			return graph.Instruction{}, err
		}
		return graph.Instruction{Op: op, NodeID: parentID, ChildID: childID}, nil

	case graph.OpSetProperty:
		if len(operands) != 3 {
			return graph.Instruction{}, fmt.Errorf("SetProperty wants 3 operands, got %d", len(operands))
		}
		id, err := decodeNodeID(operands[0])
		if err != nil {
			return graph.Instruction{}, err
		}
		propName, ok := operands[1].(string)
		if !ok {
			return graph.Instruction{}, fmt.Errorf("SetProperty property name must be a string, got %T", operands[1])
		}
		return graph.Instruction{
			Op:            op,
			NodeID:        id,
			PropertyName:  propName,
			PropertyValue: fromJSON(operands[2]),
		}, nil

	case graph.OpActivateRoots:
		if len(operands) != 1 {
			return graph.Instruction{}, fmt.Errorf("ActivateRoots wants 1 operand, got %d", len(operands))
		}
		rawIDs, ok := operands[0].([]any)
		if !ok {
			return graph.Instruction{}, fmt.Errorf("ActivateRoots operand must be an array, got %T", operands[0])
		}
		ids := make([]node.ID, len(rawIDs))
		for i, raw := range rawIDs {
			id, err := decodeNodeID(raw)
			if err != nil {
				return graph.Instruction{}, fmt.Errorf("ActivateRoots[%d]: %w", i, err)
			}
			ids[i] = id
		}
		return graph.Instruction{Op: op, RootIDs: ids}, nil

	case graph.OpCommitUpdates:
		return graph.Instruction{Op: op}, nil

	default:
		return graph.Instruction{}, fmt.Errorf("unknown opcode %d", int(opNum))
	}
}

// decodeNodeID accepts either a JSON number (node ids are small enough to
// round-trip exactly through float64) or the zero-padded hex string form
// node.ID.String produces.
func decodeNodeID(raw any) (node.ID, error) {
	switch v := raw.(type) {
	case float64:
		return node.ID(uint32(v)), nil
	case string:
		var n uint32
		if _, err := fmt.Sscanf(v, "%08x", &n); err != nil {
			return 0, fmt.Errorf("node id %q is not an 8-digit hex string: %w", v, err)
		}
		return node.ID(n), nil
	default:
		return 0, fmt.Errorf("node id must be a number or hex string, got %T", raw)
	}
}

// fromJSON converts a value produced by encoding/json's default decoding
// (float64, string, bool, nil, []any, map[string]any) into a value.Value.
// Unrecognized shapes become Undefined rather than erroring, matching
// SetProperty's own contract of validating shape, not the decoder.
func fromJSON(raw any) value.Value {
	switch v := raw.(type) {
	case nil:
		return value.NewNull()
	case bool:
		return value.NewBool(v)
	case float64:
		return value.NewNumber(v)
	case string:
		return value.NewString(v)
	case []any:
		arr := make([]value.Value, len(v))
		for i, elem := range v {
			arr[i] = fromJSON(elem)
		}
		return value.NewArray(arr)
	case map[string]any:
		obj := make(map[string]value.Value, len(v))
		for key, elem := range v {
			obj[key] = fromJSON(elem)
		}
		return value.NewObject(obj)
	default:
		return value.Value{}
	}
}
