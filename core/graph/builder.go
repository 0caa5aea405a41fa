package graph

import "github.com/tolvanen/sonora/core/node"

// bufferKey identifies one output channel of one node within a build.
type bufferKey struct {
	id      node.ID
	channel int
}

// renderOp is a closure binding a node to the input and output buffers
// assembled for it at build time, plus the root that first discovered it
// during traversal — whose Active flag is reported to the node as
// BlockContext.RootActive.
type renderOp struct {
	n      node.Node
	owner  node.Root
	inputs [][]float64
	output [][]float64
}

// rootSubsequence is the per-root bookkeeping a built RenderSequence keeps:
// the root's own output buffer (for summing into the host channel it
// declares), the ordered list of nodes reachable from it (for the event
// relay), and the TapOut nodes among them (for tap promotion).
type rootSubsequence struct {
	root    node.Root
	channel int
	output  []float64
	nodes   []node.Node
	tapOuts []node.TapOut
	seen    map[node.ID]bool
}

// Builder constructs a RenderSequence from a Store's current graph and
// root set.
type Builder struct {
	store   *Store
	scratch *ScratchAllocator
}

// NewBuilder creates a builder producing blockSize-sized scratch buffers.
func NewBuilder(store *Store, blockSize int) *Builder {
	return &Builder{store: store, scratch: NewScratchAllocator(blockSize)}
}

// Build runs a fresh active-root-first, DFS-post-order traversal of the
// store's current graph and returns the resulting render sequence. Every
// node reachable from any current root is visited exactly once across the
// whole build, regardless of how many roots share it.
func (b *Builder) Build() *RenderSequence {
	b.scratch.Reset()

	seq := &RenderSequence{}
	buffers := make(map[bufferKey][]float64)
	visited := make(map[node.ID]bool)

	for _, rootID := range b.store.activeFirstRootOrder() {
		n, ok := b.store.nodes[rootID]
		if !ok {
			continue
		}
		root, ok := n.(node.Root)
		if !ok {
			continue
		}

		sub := &rootSubsequence{root: root, channel: root.Channel(), seen: make(map[node.ID]bool)}
		b.traverse(rootID, root, buffers, visited, seq, sub)
		sub.output = buffers[bufferKey{rootID, 0}]
		seq.roots = append(seq.roots, sub)
	}
	return seq
}

func (b *Builder) traverse(
	id node.ID,
	owner node.Root,
	buffers map[bufferKey][]float64,
	visited map[node.ID]bool,
	seq *RenderSequence,
	sub *rootSubsequence,
) {
	n, ok := b.store.lookup(id)
	if !ok {
		return
	}
	if sub.seen[id] {
		return
	}
	sub.seen[id] = true

	children := b.store.edges[id]
	for _, childID := range children {
		b.traverse(childID, owner, buffers, visited, seq, sub)
	}

	if !visited[id] {
		visited[id] = true

		if _, isGarbage := b.store.garbage[id]; isGarbage {
			b.store.retainGarbage(id)
		}

		numChannels := n.OutputChannels()
		if numChannels < 1 {
			numChannels = 1
		}
		outputs := make([][]float64, numChannels)
		for ch := 0; ch < numChannels; ch++ {
			buf := b.scratch.Next()
			buffers[bufferKey{id, ch}] = buf
			outputs[ch] = buf
		}

		inputs := make([][]float64, 0, len(children))
		for _, childID := range children {
			if buf, ok := buffers[bufferKey{childID, 0}]; ok {
				inputs = append(inputs, buf)
			}
		}

		seq.ops = append(seq.ops, renderOp{n: n, owner: owner, inputs: inputs, output: outputs})
	}

	sub.nodes = append(sub.nodes, n)
	if tapOut, ok := n.(node.TapOut); ok {
		sub.tapOuts = append(sub.tapOuts, tapOut)
	}
}
