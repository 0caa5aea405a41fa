package node

import (
	"math"
	"sync/atomic"

	"github.com/tolvanen/sonora/core/value"
	"github.com/tolvanen/sonora/providers/resource"
)

// Root is implemented by node types that can serve as a rendering root: an
// entry point whose output is summed into a host output channel. The
// instruction interpreter drives SetActive directly from ActivateRoots;
// it does not go through SetProperty, since activation is a graph-level
// concern, not a per-node property.
type Root interface {
	Node
	Channel() int
	SetActive(active bool)
	Active() bool
	StillRunning() bool
}

// RootNode ramps its single child's output by a gain envelope that fades
// toward 1 when active and 0 when inactive, and declares which host output
// channel it contributes to.
type RootNode struct {
	Base
	fade    *GainFade
	channel atomic.Int64
}

func newRootNode(id ID, sampleRate float64, blockSize int) Node {
	return &RootNode{
		Base: NewBase(id, sampleRate, blockSize),
		fade: NewGainFade(sampleRate),
	}
}

var _ Root = (*RootNode)(nil)

func (r *RootNode) Channel() int { return int(r.channel.Load()) }

func (r *RootNode) SetActive(active bool) {
	if active {
		r.fade.SetTarget(1)
	} else {
		r.fade.SetTarget(0)
	}
}

func (r *RootNode) Active() bool       { return r.fade.On() }
func (r *RootNode) StillRunning() bool { return r.fade.StillRunning() }

func (r *RootNode) SetProperty(key string, val value.Value, resources *resource.Map) ReturnCode {
	if key == "channel" {
		if !val.IsNumber() {
			return InvalidPropertyType
		}
		r.channel.Store(int64(val.Number()))
	}
	return r.Base.SetProperty(key, val, resources)
}

func (r *RootNode) Process(ctx BlockContext) {
	if len(ctx.Output) < 1 {
		return
	}
	out := ctx.Output[0]
	if len(ctx.Input) < 1 {
		zero(out[:ctx.NumSamples])
		return
	}
	in := ctx.Input[0]
	for i := 0; i < ctx.NumSamples; i++ {
		out[i] = in[i] * r.fade.Step()
	}
}

func (r *RootNode) Reset() {
	r.fade.Reset()
	r.Base.Reset()
}

// ConstNode broadcasts its "value" property to every sample of its output.
type ConstNode struct {
	Base
	valueBits atomic.Uint64
}

func newConstNode(id ID, sampleRate float64, blockSize int) Node {
	return &ConstNode{Base: NewBase(id, sampleRate, blockSize)}
}

func (c *ConstNode) SetProperty(key string, val value.Value, resources *resource.Map) ReturnCode {
	if key == "value" {
		if !val.IsNumber() {
			return InvalidPropertyType
		}
		c.valueBits.Store(math.Float64bits(val.Number()))
	}
	return c.Base.SetProperty(key, val, resources)
}

func (c *ConstNode) Process(ctx BlockContext) {
	if len(ctx.Output) < 1 {
		return
	}
	v := math.Float64frombits(c.valueBits.Load())
	out := ctx.Output[0]
	for i := 0; i < ctx.NumSamples; i++ {
		out[i] = v
	}
}

// InNode passes its single child's signal through unchanged, the identity
// node used to inject an external or placeholder signal into a graph.
type InNode struct{ Base }

func newInNode(id ID, sampleRate float64, blockSize int) Node {
	return &InNode{Base: NewBase(id, sampleRate, blockSize)}
}

func (n *InNode) Process(ctx BlockContext) {
	if len(ctx.Output) < 1 {
		return
	}
	out := ctx.Output[0]
	if len(ctx.Input) < 1 {
		zero(out[:ctx.NumSamples])
		return
	}
	copy(out[:ctx.NumSamples], ctx.Input[0][:ctx.NumSamples])
}

// AddNode sums all of its children's signals.
type AddNode struct{ Base }

func newAddNode(id ID, sampleRate float64, blockSize int) Node {
	return &AddNode{Base: NewBase(id, sampleRate, blockSize)}
}

func (n *AddNode) Process(ctx BlockContext) {
	if len(ctx.Output) < 1 {
		return
	}
	out := ctx.Output[0]
	if len(ctx.Input) < 1 {
		zero(out[:ctx.NumSamples])
		return
	}
	copy(out[:ctx.NumSamples], ctx.Input[0][:ctx.NumSamples])
	for _, in := range ctx.Input[1:] {
		for i := 0; i < ctx.NumSamples; i++ {
			out[i] += in[i]
		}
	}
}

// MulNode multiplies all of its children's signals together.
type MulNode struct{ Base }

func newMulNode(id ID, sampleRate float64, blockSize int) Node {
	return &MulNode{Base: NewBase(id, sampleRate, blockSize)}
}

func (n *MulNode) Process(ctx BlockContext) {
	if len(ctx.Output) < 1 {
		return
	}
	out := ctx.Output[0]
	if len(ctx.Input) < 1 {
		zero(out[:ctx.NumSamples])
		return
	}
	copy(out[:ctx.NumSamples], ctx.Input[0][:ctx.NumSamples])
	for _, in := range ctx.Input[1:] {
		for i := 0; i < ctx.NumSamples; i++ {
			out[i] *= in[i]
		}
	}
}

func zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}
