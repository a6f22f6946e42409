package cpu

import (
	"fmt"

	"github.com/born-ml/armanet/internal/tensor"
)

// Sum reduces every element of x to a scalar.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("sum", x)
	out := cpu.alloc("sum", tensor.Shape{}, tensor.Float32)
	var acc float64
	for _, v := range x.AsFloat32() {
		acc += float64(v)
	}
	out.AsFloat32()[0] = float32(acc)
	return out
}

// SumDim sums x along dim. Negative dims count from the end.
//
//	y := backend.SumDim(x, -1, true)   // [2,3,4] -> [2,3,1]
//	z := backend.SumDim(x, -1, false)  // [2,3,4] -> [2,3]
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	requireFloat32("sumdim", x)
	shape := x.Shape()
	dim = normalizeDim("sumdim", dim, len(shape))

	outer, inner := splitAt(shape, dim)
	size := shape[dim]

	out := cpu.alloc("sumdim", reducedShape(shape, dim, keepDim), tensor.Float32)
	src, dst := x.AsFloat32(), out.AsFloat32()
	for o := 0; o < outer; o++ {
		for d := 0; d < size; d++ {
			row := src[(o*size+d)*inner : (o*size+d+1)*inner]
			acc := dst[o*inner : (o+1)*inner]
			for i, v := range row {
				acc[i] += v
			}
		}
	}
	return out
}

// Argmax returns int32 indices of the largest value along dim.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("argmax", x)
	shape := x.Shape()
	dim = normalizeDim("argmax", dim, len(shape))

	outer, inner := splitAt(shape, dim)
	size := shape[dim]

	out := cpu.alloc("argmax", reducedShape(shape, dim, false), tensor.Int32)
	src, dst := x.AsFloat32(), out.AsInt32()
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			best := 0
			bestVal := src[o*size*inner+i]
			for d := 1; d < size; d++ {
				if v := src[(o*size+d)*inner+i]; v > bestVal {
					best, bestVal = d, v
				}
			}
			dst[o*inner+i] = int32(best) //nolint:gosec // dimension sizes fit in int32
		}
	}
	return out
}

func normalizeDim(op string, dim, ndim int) int {
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("%s: dimension %d out of range for %dD tensor", op, dim, ndim))
	}
	return dim
}

// splitAt returns the element counts before and after dim.
func splitAt(shape tensor.Shape, dim int) (outer, inner int) {
	outer, inner = 1, 1
	for i, d := range shape {
		switch {
		case i < dim:
			outer *= d
		case i > dim:
			inner *= d
		}
	}
	return outer, inner
}

func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	if keepDim {
		out := shape.Clone()
		out[dim] = 1
		return out
	}
	out := make(tensor.Shape, 0, len(shape)-1)
	out = append(out, shape[:dim]...)
	return append(out, shape[dim+1:]...)
}
