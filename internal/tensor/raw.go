package tensor

import (
	"fmt"
	"unsafe"
)

// Device identifies where tensor memory lives.
type Device int

// CPU is the only device the models run on.
const CPU Device = iota

// String returns the device name.
func (d Device) String() string {
	if d == CPU {
		return "CPU"
	}
	return "Unknown"
}

// buffer is shared between a tensor and its views.
type buffer struct {
	data []byte
}

func newBuffer(size int) *buffer {
	return &buffer{data: make([]byte, size)}
}

// RawTensor is the untyped, backend-facing tensor representation.
type RawTensor struct {
	buf    *buffer
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw allocates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		buf:    newBuffer(shape.NumElements() * dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// MustRaw is NewRaw for shapes already known to be valid.
func MustRaw(shape Shape, dtype DataType, device Device) *RawTensor {
	r, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(err)
	}
	return r
}

// Shape returns the tensor's dimensions.
func (r *RawTensor) Shape() Shape { return r.shape }

// Strides returns the row-major memory strides.
func (r *RawTensor) Strides() []int { return r.stride }

// DType returns the element type.
func (r *RawTensor) DType() DataType { return r.dtype }

// Device returns the device holding the data.
func (r *RawTensor) Device() Device { return r.device }

// NumElements returns the number of elements.
func (r *RawTensor) NumElements() int { return r.shape.NumElements() }

// ByteSize returns the size of the data in bytes.
func (r *RawTensor) ByteSize() int { return r.NumElements() * r.dtype.Size() }

// Data returns the underlying bytes. Writes are visible to every clone.
func (r *RawTensor) Data() []byte { return r.buf.data }

// AsFloat32 views the data as []float32. Panics on any other dtype.
func (r *RawTensor) AsFloat32() []float32 {
	r.mustBe(Float32)
	//nolint:gosec // length bounded by NumElements
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.buf.data[0])), r.NumElements())
}

// AsFloat64 views the data as []float64.
func (r *RawTensor) AsFloat64() []float64 {
	r.mustBe(Float64)
	//nolint:gosec // length bounded by NumElements
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.buf.data[0])), r.NumElements())
}

// AsInt32 views the data as []int32.
func (r *RawTensor) AsInt32() []int32 {
	r.mustBe(Int32)
	//nolint:gosec // length bounded by NumElements
	return unsafe.Slice((*int32)(unsafe.Pointer(&r.buf.data[0])), r.NumElements())
}

// AsInt64 views the data as []int64.
func (r *RawTensor) AsInt64() []int64 {
	r.mustBe(Int64)
	//nolint:gosec // length bounded by NumElements
	return unsafe.Slice((*int64)(unsafe.Pointer(&r.buf.data[0])), r.NumElements())
}

// AsUint8 views the data as []uint8.
func (r *RawTensor) AsUint8() []uint8 {
	r.mustBe(Uint8)
	return r.buf.data[:r.NumElements()]
}

// AsBool views the data as []bool.
func (r *RawTensor) AsBool() []bool {
	r.mustBe(Bool)
	//nolint:gosec // length bounded by NumElements
	return unsafe.Slice((*bool)(unsafe.Pointer(&r.buf.data[0])), r.NumElements())
}

func (r *RawTensor) mustBe(dt DataType) {
	if r.dtype != dt {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, dt))
	}
}

// Clone returns a tensor sharing r's buffer. Backends never write into
// their inputs, so sharing is safe.
func (r *RawTensor) Clone() *RawTensor {
	return &RawTensor{
		buf:    r.buf,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
	}
}

// Copy returns a tensor with its own copy of the data.
func (r *RawTensor) Copy() *RawTensor {
	out := MustRaw(r.shape, r.dtype, r.device)
	copy(out.buf.data, r.buf.data)
	return out
}

// SharesData reports whether r and other are backed by the same memory.
func (r *RawTensor) SharesData(other *RawTensor) bool {
	return r.buf == other.buf
}

// withShape returns a view of r with another shape of the same size.
func (r *RawTensor) withShape(shape Shape) *RawTensor {
	v := r.Clone()
	v.shape = shape.Clone()
	v.stride = shape.ComputeStrides()
	return v
}

// View returns a tensor sharing r's data under a new shape.
func (r *RawTensor) View(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("view: %w", err)
	}
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("view: cannot view %v as %v", r.shape, shape)
	}
	return r.withShape(shape), nil
}
