package tensor

import (
	"fmt"
	"strings"
)

// Tensor is a typed view over a RawTensor bound to a backend.
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
//	u := t.Add(t)
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
	grad    *Tensor[T, B]
}

// New wraps raw as a typed tensor.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return &Tensor[T, B]{raw: raw, backend: b}
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d doesn't match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	raw, err := NewRaw(shape, inferDataType[T](), b.Device())
	if err != nil {
		return nil, err
	}
	t := New[T, B](raw, b)
	copy(t.Data(), data)
	return t, nil
}

// Shape returns the tensor's dimensions.
func (t *Tensor[T, B]) Shape() Shape { return t.raw.Shape() }

// DType returns the element type.
func (t *Tensor[T, B]) DType() DataType { return t.raw.DType() }

// NumElements returns the number of elements.
func (t *Tensor[T, B]) NumElements() int { return t.raw.NumElements() }

// Raw returns the underlying RawTensor.
func (t *Tensor[T, B]) Raw() *RawTensor { return t.raw }

// Backend returns the backend the tensor computes on.
func (t *Tensor[T, B]) Backend() B { return t.backend }

// Grad returns the gradient attached by SetGrad, or nil.
func (t *Tensor[T, B]) Grad() *Tensor[T, B] { return t.grad }

// SetGrad attaches a gradient.
func (t *Tensor[T, B]) SetGrad(grad *Tensor[T, B]) { t.grad = grad }

// Detach returns a tensor sharing the data without the gradient.
func (t *Tensor[T, B]) Detach() *Tensor[T, B] {
	return New[T, B](t.raw, t.backend)
}

// Clone returns a copy-on-write clone.
func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return New[T, B](t.raw.Clone(), t.backend)
}

// Data returns a zero-copy typed slice of the elements.
func (t *Tensor[T, B]) Data() []T {
	var out any
	switch t.raw.DType() {
	case Float32:
		out = t.raw.AsFloat32()
	case Float64:
		out = t.raw.AsFloat64()
	case Int32:
		out = t.raw.AsInt32()
	case Int64:
		out = t.raw.AsInt64()
	case Uint8:
		out = t.raw.AsUint8()
	case Bool:
		out = t.raw.AsBool()
	}
	data, ok := out.([]T)
	if !ok {
		panic(fmt.Sprintf("tensor: element type mismatch for %s data", t.raw.DType()))
	}
	return data
}

// Item returns the value of a single-element tensor.
func (t *Tensor[T, B]) Item() T {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("item: tensor has %d elements", t.NumElements()))
	}
	return t.Data()[0]
}

// At returns the element at the given indices.
func (t *Tensor[T, B]) At(indices ...int) T {
	return t.Data()[t.offset(indices)]
}

// Set stores value at the given indices.
func (t *Tensor[T, B]) Set(value T, indices ...int) {
	t.Data()[t.offset(indices)] = value
}

func (t *Tensor[T, B]) offset(indices []int) int {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}
	strides := t.raw.Strides()
	off := 0
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, shape[i]))
		}
		off += idx * strides[i]
	}
	return off
}

// String renders shape, dtype and up to eight leading values.
func (t *Tensor[T, B]) String() string {
	data := t.Data()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tensor(shape=%v, dtype=%s, data=[", t.Shape(), t.DType())
	for i, v := range data {
		if i == 8 {
			sb.WriteString(" ...")
			break
		}
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprint(&sb, v)
	}
	sb.WriteString("])")
	return sb.String()
}
