package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/armanet/internal/tensor"
)

// Add returns a + b with broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub returns a - b with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul returns a * b with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// Div returns a / b with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b, func(x, y float32) float32 { return x / y })
}

func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f binaryFunc) *tensor.RawTensor {
	requireFloat32(op, a, b)
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	out := cpu.alloc(op, outShape, tensor.Float32)
	dst, x, y := out.AsFloat32(), a.AsFloat32(), b.AsFloat32()
	if !needsBroadcast {
		for i := range dst {
			dst[i] = f(x[i], y[i])
		}
		return out
	}
	binaryBroadcast(dst, x, y, a.Shape(), b.Shape(), outShape, f)
	return out
}

func (cpu *CPUBackend) unary(op string, x *tensor.RawTensor, f func(float32) float32) *tensor.RawTensor {
	requireFloat32(op, x)
	out := cpu.alloc(op, x.Shape(), tensor.Float32)
	dst := out.AsFloat32()
	for i, v := range x.AsFloat32() {
		dst[i] = f(v)
	}
	return out
}

// MulScalar returns x * s.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	return cpu.unary("mulscalar", x, func(v float32) float32 { return v * s })
}

// Exp returns e^x element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("exp", x, func(v float32) float32 { return float32(math.Exp(float64(v))) })
}

// Log returns ln(x) element-wise.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("log", x, func(v float32) float32 { return float32(math.Log(float64(v))) })
}

// ReLU returns max(0, x).
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("relu", x, func(v float32) float32 { return max(v, 0) })
}

// ReLUBackward passes grad where input > 0.
func (cpu *CPUBackend) ReLUBackward(input, grad *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("relu backward", input, grad)
	if !input.Shape().Equal(grad.Shape()) {
		panic(fmt.Sprintf("relu backward: shape mismatch %v vs %v", input.Shape(), grad.Shape()))
	}
	out := cpu.alloc("relu backward", input.Shape(), tensor.Float32)
	dst, x, g := out.AsFloat32(), input.AsFloat32(), grad.AsFloat32()
	for i := range dst {
		if x[i] > 0 {
			dst[i] = g[i]
		}
	}
	return out
}
