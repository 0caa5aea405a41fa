package node

import (
	"github.com/tolvanen/sonora/core/queue"
	"github.com/tolvanen/sonora/core/value"
	"github.com/tolvanen/sonora/providers/resource"
)

// TapOut is implemented by node types that buffer a signal for feedback
// promotion at the end of a block.
type TapOut interface {
	Node
	// PromoteTapBuffers copies this block's delay buffer into the shared
	// mutable buffer most recently published via SetProperty("name", ...),
	// creating it on demand. Called by the render sequence after running
	// the owning root's subsequence, never before — see the tap-ordering
	// note in DESIGN.md.
	PromoteTapBuffers(numSamples int)
}

// tapQueueCapacity is generous headroom over the single slot a tap's
// buffer handoff actually needs: even a burst of several SetProperty
// calls to the same tap within one control-thread batch, before the audio
// thread's next DrainLatest, shouldn't exhaust it.
const tapQueueCapacity = 8

// TapInNode has no children. It reads whatever shared mutable buffer is
// currently active under its configured name, or emits silence if none has
// ever been published.
type TapInNode struct {
	Base
	bufferQueue   *queue.SPSC[*resource.MutableBuffer]
	pendingBuffer *resource.MutableBuffer // most recent handoff Push couldn't accept yet
	activeBuffer  *resource.MutableBuffer
}

func newTapInNode(id ID, sampleRate float64, blockSize int) Node {
	return &TapInNode{
		Base:        NewBase(id, sampleRate, blockSize),
		bufferQueue: queue.NewSPSC[*resource.MutableBuffer](tapQueueCapacity),
	}
}

func (t *TapInNode) SetProperty(key string, val value.Value, resources *resource.Map) ReturnCode {
	if key == "name" {
		if !val.IsString() {
			return InvalidPropertyType
		}
		if resources == nil {
			return InvalidPropertyValue
		}
		buf := resources.GetOrCreateMutable(val.String(), t.BlockSize())
		t.pushBuffer(buf)
	}
	return t.Base.SetProperty(key, val, resources)
}

// pushBuffer stages buf as the latest handoff target. If the queue is full
// the push fails and buf stays in pendingBuffer until the next call, which
// replaces it with that call's buffer and pushes that one; a held buffer is
// not pushed again on its own, so the audio thread keeps its previous
// buffer until a later push succeeds.
func (t *TapInNode) pushBuffer(buf *resource.MutableBuffer) {
	t.pendingBuffer = buf
	if t.bufferQueue.Push(t.pendingBuffer) {
		t.pendingBuffer = nil
	}
}

func (t *TapInNode) Process(ctx BlockContext) {
	if buf, ok := t.bufferQueue.DrainLatest(); ok {
		t.activeBuffer = buf
	}
	if len(ctx.Output) < 1 {
		return
	}
	out := ctx.Output[0]
	if t.activeBuffer == nil {
		zero(out[:ctx.NumSamples])
		return
	}
	copy(out[:ctx.NumSamples], t.activeBuffer.Samples[:ctx.NumSamples])
}

// TapOutNode passes its child's signal through unchanged while also
// buffering it into a per-instance delay line, which PromoteTapBuffers
// later copies into the named shared buffer for the matching TapInNode to
// read on the *next* block.
type TapOutNode struct {
	Base
	delayBuffer      []float64
	tapBufferQueue   *queue.SPSC[*resource.MutableBuffer]
	pendingTapBuffer *resource.MutableBuffer // most recent handoff Push couldn't accept yet
	activeTapBuffer  *resource.MutableBuffer
}

func newTapOutNode(id ID, sampleRate float64, blockSize int) Node {
	return &TapOutNode{
		Base:           NewBase(id, sampleRate, blockSize),
		delayBuffer:    make([]float64, blockSize),
		tapBufferQueue: queue.NewSPSC[*resource.MutableBuffer](tapQueueCapacity),
	}
}

var _ TapOut = (*TapOutNode)(nil)

func (t *TapOutNode) SetProperty(key string, val value.Value, resources *resource.Map) ReturnCode {
	if key == "name" {
		if !val.IsString() {
			return InvalidPropertyType
		}
		if resources == nil {
			return InvalidPropertyValue
		}
		buf := resources.GetOrCreateMutable(val.String(), t.BlockSize())
		t.pushTapBuffer(buf)
	}
	return t.Base.SetProperty(key, val, resources)
}

// pushTapBuffer mirrors TapInNode.pushBuffer: when the queue is full it
// holds buf in pendingTapBuffer until the next call replaces it; the held
// buffer is not pushed again on its own.
func (t *TapOutNode) pushTapBuffer(buf *resource.MutableBuffer) {
	t.pendingTapBuffer = buf
	if t.tapBufferQueue.Push(t.pendingTapBuffer) {
		t.pendingTapBuffer = nil
	}
}

func (t *TapOutNode) Process(ctx BlockContext) {
	if len(ctx.Output) < 1 {
		return
	}
	out := ctx.Output[0]
	if len(ctx.Input) < 1 || ctx.NumSamples > len(t.delayBuffer) {
		zero(out[:ctx.NumSamples])
		return
	}
	in := ctx.Input[0]
	copy(t.delayBuffer[:ctx.NumSamples], in[:ctx.NumSamples])
	copy(out[:ctx.NumSamples], in[:ctx.NumSamples])
}

func (t *TapOutNode) PromoteTapBuffers(numSamples int) {
	if buf, ok := t.tapBufferQueue.DrainLatest(); ok {
		t.activeTapBuffer = buf
	}
	if t.activeTapBuffer == nil {
		return
	}
	copy(t.activeTapBuffer.Samples[:numSamples], t.delayBuffer[:numSamples])
}
