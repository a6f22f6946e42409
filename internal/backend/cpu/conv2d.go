package cpu

import (
	"fmt"

	"github.com/born-ml/armanet/internal/parallel"
	"github.com/born-ml/armanet/internal/tensor"
)

// convGeom holds the dimensions of one Conv2D call.
type convGeom struct {
	n, cIn, h, w    int
	cOut, kh, kw    int
	hOut, wOut      int
	stride, padding int
}

// cols is the im2col row count: one row per kernel tap.
func (g convGeom) cols() int { return g.cIn * g.kh * g.kw }

// positions is the im2col column count: one column per output pixel.
func (g convGeom) positions() int { return g.hOut * g.wOut }

func newConvGeom(op string, input, kernel *tensor.RawTensor, stride, padding int) convGeom {
	requireFloat32(op, input, kernel)
	n, cIn, h, w := require4D(op, input)
	ks := kernel.Shape()
	if len(ks) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", op, len(ks)))
	}
	if ks[1] != cIn {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, cIn, ks[1]))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid stride %d / padding %d", op, stride, padding))
	}
	g := convGeom{
		n: n, cIn: cIn, h: h, w: w,
		cOut: ks[0], kh: ks[2], kw: ks[3],
		stride: stride, padding: padding,
	}
	g.hOut = (h+2*padding-g.kh)/stride + 1
	g.wOut = (w+2*padding-g.kw)/stride + 1
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions %dx%d (input %dx%d, kernel %dx%d, stride %d, padding %d)",
			op, g.hOut, g.wOut, h, w, g.kh, g.kw, stride, padding))
	}
	return g
}

// Conv2D convolves input [N,C_in,H,W] with kernel [C_out,C_in,K_h,K_w]
// using zero padding, producing [N,C_out,H_out,W_out] with
//
//	H_out = (H + 2*padding - K_h) / stride + 1
//
// Each sample is lowered with im2col into a [C_in*K_h*K_w, H_out*W_out]
// matrix and multiplied by the kernel viewed as [C_out, C_in*K_h*K_w].
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeom("conv2d", input, kernel, stride, padding)
	out := cpu.alloc("conv2d", tensor.Shape{g.n, g.cOut, g.hOut, g.wOut}, tensor.Float32)

	x, k, y := input.AsFloat32(), kernel.AsFloat32(), out.AsFloat32()
	inPlane := g.cIn * g.h * g.w
	outPlane := g.cOut * g.positions()

	parallel.For(g.n, func(n int) {
		col := make([]float32, g.cols()*g.positions())
		im2col(col, x[n*inPlane:(n+1)*inPlane], g)
		gemm(y[n*outPlane:(n+1)*outPlane], k, col, g.cOut, g.cols(), g.positions())
	}, cpu.parallel)

	return out
}

// Conv2DInputBackward returns dL/dinput for Conv2D given dL/doutput.
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeom("conv2d input backward", input, kernel, stride, padding)
	requireFloat32("conv2d input backward", grad)
	out := cpu.alloc("conv2d input backward", input.Shape(), tensor.Float32)

	k, gy, gx := kernel.AsFloat32(), grad.AsFloat32(), out.AsFloat32()
	inPlane := g.cIn * g.h * g.w
	outPlane := g.cOut * g.positions()

	parallel.For(g.n, func(n int) {
		col := make([]float32, g.cols()*g.positions())
		gemmTransA(col, k, gy[n*outPlane:(n+1)*outPlane], g.cols(), g.cOut, g.positions())
		col2im(gx[n*inPlane:(n+1)*inPlane], col, g)
	}, cpu.parallel)

	return out
}

// Conv2DKernelBackward returns dL/dkernel for Conv2D given dL/doutput.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeom("conv2d kernel backward", input, kernel, stride, padding)
	requireFloat32("conv2d kernel backward", grad)
	out := cpu.alloc("conv2d kernel backward", kernel.Shape(), tensor.Float32)

	x, gy, gk := input.AsFloat32(), grad.AsFloat32(), out.AsFloat32()
	inPlane := g.cIn * g.h * g.w
	outPlane := g.cOut * g.positions()

	// One partial kernel gradient per sample, summed afterwards so that
	// workers never share an accumulator.
	partial := make([][]float32, g.n)
	parallel.For(g.n, func(n int) {
		col := make([]float32, g.cols()*g.positions())
		im2col(col, x[n*inPlane:(n+1)*inPlane], g)
		acc := make([]float32, len(gk))
		gemmTransB(acc, gy[n*outPlane:(n+1)*outPlane], col, g.cOut, g.positions(), g.cols())
		partial[n] = acc
	}, cpu.parallel)

	for _, acc := range partial {
		for i, v := range acc {
			gk[i] += v
		}
	}
	return out
}

// im2col lowers one sample [C,H,W] into col [C*K_h*K_w, H_out*W_out].
func im2col(col, x []float32, g convGeom) {
	p := g.positions()
	row := 0
	for c := 0; c < g.cIn; c++ {
		plane := x[c*g.h*g.w : (c+1)*g.h*g.w]
		for ki := 0; ki < g.kh; ki++ {
			for kj := 0; kj < g.kw; kj++ {
				dst := col[row*p : (row+1)*p]
				for oh := 0; oh < g.hOut; oh++ {
					ih := oh*g.stride - g.padding + ki
					for ow := 0; ow < g.wOut; ow++ {
						iw := ow*g.stride - g.padding + kj
						if ih >= 0 && ih < g.h && iw >= 0 && iw < g.w {
							dst[oh*g.wOut+ow] = plane[ih*g.w+iw]
						}
					}
				}
				row++
			}
		}
	}
}

// col2im scatters col back into one sample, summing overlapping taps.
func col2im(x, col []float32, g convGeom) {
	p := g.positions()
	row := 0
	for c := 0; c < g.cIn; c++ {
		plane := x[c*g.h*g.w : (c+1)*g.h*g.w]
		for ki := 0; ki < g.kh; ki++ {
			for kj := 0; kj < g.kw; kj++ {
				src := col[row*p : (row+1)*p]
				for oh := 0; oh < g.hOut; oh++ {
					ih := oh*g.stride - g.padding + ki
					if ih < 0 || ih >= g.h {
						continue
					}
					for ow := 0; ow < g.wOut; ow++ {
						iw := ow*g.stride - g.padding + kj
						if iw >= 0 && iw < g.w {
							plane[ih*g.w+iw] += src[oh*g.wOut+ow]
						}
					}
				}
				row++
			}
		}
	}
}
