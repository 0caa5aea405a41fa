package observability

// Semantic conventions for observability attributes.
// These constants define standard attribute names to ensure consistency
// across different components of the system.

// --- Instruction Batch Attributes ---

const (
	// AttrBatchSize is the number of instructions in an applied batch
	AttrBatchSize = "batch.size"

	// AttrBatchOpcode is the opcode of the instruction currently being applied
	AttrBatchOpcode = "batch.opcode"

	// AttrBatchReturnCode is the return code produced by applying a batch
	AttrBatchReturnCode = "batch.return_code"

	// AttrBatchFailedAt is the index within the batch where application stopped
	AttrBatchFailedAt = "batch.failed_at"
)

// --- Node Attributes ---

const (
	// AttrNodeID is the node's identifier, rendered as zero-padded hex
	AttrNodeID = "node.id"

	// AttrNodeType is the node's registered type name
	AttrNodeType = "node.type"

	// AttrNodeProperty is the property key being set on a node
	AttrNodeProperty = "node.property"
)

// --- Render Sequence Attributes ---

const (
	// AttrRenderRootCount is the number of roots in a built render sequence
	AttrRenderRootCount = "render.root_count"

	// AttrRenderNodeCount is the number of distinct nodes visited while building
	AttrRenderNodeCount = "render.node_count"

	// AttrRenderBlockSize is the block size a render sequence processes
	AttrRenderBlockSize = "render.block_size"

	// AttrRenderTapCount is the number of feedback taps promoted in a block
	AttrRenderTapCount = "render.tap_count"
)

// --- Shared Resource Map Attributes ---

const (
	// AttrResourceName is the name of a shared resource buffer
	AttrResourceName = "resource.name"

	// AttrResourceMutable indicates whether a resource buffer is mutable
	AttrResourceMutable = "resource.mutable"

	// AttrResourcePruned is the number of resources pruned in a sweep
	AttrResourcePruned = "resource.pruned"
)

// --- General Attributes ---

const (
	// AttrError is the error message
	AttrError = "error"

	// AttrErrorType is the error type/class
	AttrErrorType = "error.type"

	// AttrDuration is the operation duration
	AttrDuration = "duration"

	// AttrStatus is the operation status
	AttrStatus = "status"

	// AttrStatusDescription is a human-readable description accompanying a status
	AttrStatusDescription = "status.description"
)

// --- Span Names ---

const (
	// SpanApplyInstructions is the span name for applying an instruction batch
	SpanApplyInstructions = "runtime.apply_instructions"

	// SpanBuildRenderSequence is the span name for building a render sequence
	SpanBuildRenderSequence = "runtime.build_render_sequence"

	// SpanProcessEvents is the span name for draining node event queues
	SpanProcessEvents = "runtime.process_events"
)

// --- Event Names ---

const (
	// EventInstructionApplied marks a single instruction being applied successfully
	EventInstructionApplied = "instruction.applied"

	// EventInstructionFailed marks an instruction failing during batch application
	EventInstructionFailed = "instruction.failed"

	// EventGarbagePruned marks a node being reclaimed from the garbage table
	EventGarbagePruned = "node.pruned"

	// EventRootSettled marks a root leaving CurrentRoots because it stopped running
	EventRootSettled = "root.settled"
)
