package graph

import "github.com/tolvanen/sonora/core/node"

// HostContext carries one block's worth of host I/O into RenderSequence.Process.
type HostContext struct {
	Output     [][]float64 // one slice per host output channel
	NumSamples int
	UserData   any
}

// RenderSequence is the flattened, buffer-bound plan the builder produces
// from one snapshot of the graph. It is handed to the audio thread through
// an SPSC queue and adopted whole; the audio thread never mutates it.
type RenderSequence struct {
	ops   []renderOp
	roots []*rootSubsequence
}

// Process runs one block: zero host outputs, run every render op once,
// sum each still-running root's output into its declared host channel,
// then promote feedback taps. Step order matches §4.4: promotion follows
// the sum so a feedback cycle observes last block's value before this
// block's is produced.
func (s *RenderSequence) Process(ctx HostContext) {
	for _, out := range ctx.Output {
		zero(out[:ctx.NumSamples])
	}

	for _, op := range s.ops {
		bc := node.BlockContext{
			Input:      op.inputs,
			Output:     op.output,
			NumSamples: ctx.NumSamples,
			UserData:   ctx.UserData,
		}
		if op.owner != nil {
			bc.RootActive = op.owner.Active()
		}
		op.n.Process(bc)
	}

	for _, sub := range s.roots {
		if !sub.root.StillRunning() {
			continue
		}
		if sub.channel < 0 || sub.channel >= len(ctx.Output) {
			continue
		}
		if sub.output == nil {
			continue
		}
		out := ctx.Output[sub.channel]
		for i := 0; i < ctx.NumSamples; i++ {
			out[i] += sub.output[i]
		}
	}

	s.promoteTaps(ctx.NumSamples)
}

// promoteTaps copies each active (not merely fading) root's TapOut delay
// buffers into the shared resource map. Inactive roots are skipped so a
// fading-out subgraph cannot clobber a live feedback line.
func (s *RenderSequence) promoteTaps(numSamples int) {
	for _, sub := range s.roots {
		if !sub.root.Active() {
			continue
		}
		for _, t := range sub.tapOuts {
			t.PromoteTapBuffers(numSamples)
		}
	}
}

// ProcessEvents calls ProcessEvents on every node in every still-running
// root subsequence, per §4.9. A node shared by two still-running roots is
// called once per root that reaches it, matching the spec's literal
// per-subsequence framing rather than a deduplicated whole-graph walk.
func (s *RenderSequence) ProcessEvents(emit node.EventFunc) {
	for _, sub := range s.roots {
		if !sub.root.StillRunning() {
			continue
		}
		for _, n := range sub.nodes {
			n.ProcessEvents(emit)
		}
	}
}

func zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}
