package cpu

import (
	"fmt"

	"github.com/born-ml/armanet/internal/tensor"
)

// Reshape returns a view of t with a new shape of the same size.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	v, err := t.View(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return v
}

// Transpose permutes the axes of t. With no axes the order is reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	requireFloat32("transpose", t)
	shape := t.Shape()
	ndim := len(shape)
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: got %d axes for %dD tensor", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	outShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axes %v", axes))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
	}

	out := cpu.alloc("transpose", outShape, tensor.Float32)
	src, dst := t.AsFloat32(), out.AsFloat32()
	inStrides := t.Strides()
	outStrides := outShape.ComputeStrides()
	for i := range dst {
		rem, srcIdx := i, 0
		for d := 0; d < ndim; d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			srcIdx += coord * inStrides[axes[d]]
		}
		dst[i] = src[srcIdx]
	}
	return out
}
