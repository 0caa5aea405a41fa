// Package value implements the dynamically-typed payload carried across the
// control-thread boundary: node property values, instruction arguments, and
// event payloads.
package value

import "fmt"

// Kind tags the concrete type stored in a Value.
type Kind int

const (
	Undefined Kind = iota
	Null
	Bool
	Number
	String
	Object
	Array
	Float32Array
	Function
)

func (k Kind) String() string {
	switch k {
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	case Float32Array:
		return "float32array"
	case Function:
		return "function"
	default:
		return "unknown"
	}
}

// Func is an opaque callback carried through a Value. sonora never invokes
// it; it exists only so the wire format can round-trip a host-provided
// handle without the runtime needing to understand its shape.
type Func func(args ...Value) Value

// Value is a closed variant over the handful of dynamic types the
// instruction protocol needs. The zero Value is Undefined.
type Value struct {
	kind    Kind
	boolean bool
	number  float64
	str     string
	object  map[string]Value
	array   []Value
	floats  []float32
	fn      Func
}

func NewNull() Value            { return Value{kind: Null} }
func NewBool(b bool) Value      { return Value{kind: Bool, boolean: b} }
func NewNumber(n float64) Value { return Value{kind: Number, number: n} }
func NewString(s string) Value  { return Value{kind: String, str: s} }

// NewObject takes ownership of m; callers must not mutate it afterward.
func NewObject(m map[string]Value) Value { return Value{kind: Object, object: m} }

// NewArray takes ownership of a; callers must not mutate it afterward.
func NewArray(a []Value) Value { return Value{kind: Array, array: a} }

// NewFloat32Array takes ownership of f; callers must not mutate it afterward.
func NewFloat32Array(f []float32) Value { return Value{kind: Float32Array, floats: f} }

func NewFunc(fn Func) Value { return Value{kind: Function, fn: fn} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsUndefined() bool    { return v.kind == Undefined }
func (v Value) IsNull() bool         { return v.kind == Null }
func (v Value) IsBool() bool         { return v.kind == Bool }
func (v Value) IsNumber() bool       { return v.kind == Number }
func (v Value) IsString() bool       { return v.kind == String }
func (v Value) IsObject() bool       { return v.kind == Object }
func (v Value) IsArray() bool        { return v.kind == Array }
func (v Value) IsFloat32Array() bool { return v.kind == Float32Array }
func (v Value) IsFunction() bool     { return v.kind == Function }

// Bool panics if v is not a Bool. Values crossing the control-thread
// boundary are produced and consumed on that single thread, same as the
// node property map they populate, so this mirrors GraphNode's "caller
// manages thread safety" contract rather than adding a second error path.
func (v Value) Bool() bool {
	v.mustBe(Bool)
	return v.boolean
}

func (v Value) Number() float64 {
	v.mustBe(Number)
	return v.number
}

func (v Value) String() string {
	switch v.kind {
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	case Bool:
		return fmt.Sprintf("%t", v.boolean)
	case Number:
		return fmt.Sprintf("%g", v.number)
	case String:
		return v.str
	case Object:
		return fmt.Sprintf("[object, %d keys]", len(v.object))
	case Array:
		return truncatedArray(v.array)
	case Float32Array:
		return fmt.Sprintf("[float32array, %d samples]", len(v.floats))
	case Function:
		return "[function]"
	default:
		return "[invalid value]"
	}
}

func (v Value) Object() map[string]Value {
	v.mustBe(Object)
	return v.object
}

func (v Value) Array() []Value {
	v.mustBe(Array)
	return v.array
}

func (v Value) Float32Array() []float32 {
	v.mustBe(Float32Array)
	return v.floats
}

func (v Value) Func() Func {
	v.mustBe(Function)
	return v.fn
}

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("value: expected %s, got %s", k, v.kind))
	}
}

func truncatedArray(a []Value) string {
	const maxShown = 3
	if len(a) <= maxShown {
		return fmt.Sprintf("%v", a)
	}
	shown := make([]string, maxShown)
	for i := 0; i < maxShown; i++ {
		shown[i] = a[i].String()
	}
	return fmt.Sprintf("[%s, ... (%d total)]", joinComma(shown), len(a))
}

func joinComma(s []string) string {
	out := ""
	for i, x := range s {
		if i > 0 {
			out += ", "
		}
		out += x
	}
	return out
}
