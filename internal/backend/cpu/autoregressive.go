package cpu

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/armanet/internal/parallel"
	"github.com/born-ml/armanet/internal/tensor"
)

// AutoRegressive2D applies the inverse of a separable circular AR filter to
// every channel plane of input [N,C,H,W].
//
// With r = (kernelSize-1)/2 and taps d in {-r..-1, 1..r}, the filter along
// one axis is
//
//	x[i] = y[i] + sum_d a_d * y[i-d]    (indices mod the axis length)
//
// and the 2-D filter is the product of the height and width filters. The
// layer returns y. alpha [C, 2*(kernelSize-1)] holds unconstrained
// parameters: the first kernelSize-1 columns drive the height taps, the rest
// the width taps, each through a = tanh(alpha)/(kernelSize-1). That bound
// keeps sum|a| < 1, so the filter has no zeros on the unit circle and the
// frequency-domain division below is always defined.
//
// The plane is zero-padded by padding on every side before the solve and
// cropped back afterwards. Planes smaller than the kernel pass through.
func (cpu *CPUBackend) AutoRegressive2D(input, alpha *tensor.RawTensor, kernelSize, padding int) *tensor.RawTensor {
	p := newARPlan("autoregressive2d", input, alpha, kernelSize, padding)
	out := cpu.alloc("autoregressive2d", input.Shape(), tensor.Float32)
	x, y := input.AsFloat32(), out.AsFloat32()

	if p.passThrough() {
		copy(y, x)
		return out
	}

	parallel.ForBatch(p.n, p.c, func(n, c int) {
		s := p.newSolver()
		off := (n*p.c + c) * p.h * p.w
		plane := s.load(x[off : off+p.h*p.w])
		s.solve(plane, c, false)
		s.store(y[off:off+p.h*p.w], plane)
	}, cpu.parallel)

	return out
}

// AutoRegressive2DBackward returns dL/dinput and dL/dalpha for
// AutoRegressive2D given dL/doutput.
//
// Writing H and W for the per-axis filters, y = H⁻¹W⁻¹x, so
//
//	dL/dx   = W⁻ᵀH⁻ᵀ g
//	dL/da_d = -<H⁻ᵀ g, shift_d(y)>   (height taps, width taps alike)
//
// and the transposed solves divide by the conjugate frequency response.
func (cpu *CPUBackend) AutoRegressive2DBackward(input, alpha, grad *tensor.RawTensor, kernelSize, padding int) (inputGrad, alphaGrad *tensor.RawTensor) {
	p := newARPlan("autoregressive2d backward", input, alpha, kernelSize, padding)
	requireFloat32("autoregressive2d backward", grad)
	if !grad.Shape().Equal(input.Shape()) {
		panic(fmt.Sprintf("autoregressive2d backward: grad shape %v != input shape %v", grad.Shape(), input.Shape()))
	}

	inputGrad = cpu.alloc("autoregressive2d backward", input.Shape(), tensor.Float32)
	alphaGrad = cpu.alloc("autoregressive2d backward", alpha.Shape(), tensor.Float32)
	x, g, gx := input.AsFloat32(), grad.AsFloat32(), inputGrad.AsFloat32()

	if p.passThrough() {
		copy(gx, g)
		return inputGrad, alphaGrad
	}

	nTaps := len(p.taps)
	partial := make([]float64, p.n*p.c*2*nTaps)

	parallel.ForBatch(p.n, p.c, func(n, c int) {
		s := p.newSolver()
		off := (n*p.c + c) * p.h * p.w

		yPad := s.load(x[off : off+p.h*p.w])
		s.solve(yPad, c, false)

		gPad := s.load(g[off : off+p.h*p.w])
		gW := append([]float64(nil), gPad...)
		s.solveRows(gW, p.respW[c], true)
		s.solveCols(gPad, p.respH[c], true) // gPad now holds H⁻ᵀg

		dA := partial[(n*p.c+c)*2*nTaps : (n*p.c+c+1)*2*nTaps]
		for j, d := range p.taps {
			dA[j] = -p.shiftDotCols(gPad, yPad, d)
			dA[nTaps+j] = -p.shiftDotRows(gW, yPad, d)
		}

		s.solveRows(gPad, p.respW[c], true)
		s.store(gx[off:off+p.h*p.w], gPad)
	}, cpu.parallel)

	// Chain through a = tanh(alpha)/(k-1) and sum over the batch.
	raw, ga := alpha.AsFloat32(), alphaGrad.AsFloat32()
	scale := 1 / float64(nTaps)
	for c := 0; c < p.c; c++ {
		for j := 0; j < 2*nTaps; j++ {
			var sum float64
			for n := 0; n < p.n; n++ {
				sum += partial[(n*p.c+c)*2*nTaps+j]
			}
			t := math.Tanh(float64(raw[c*2*nTaps+j]))
			ga[c*2*nTaps+j] = float32(sum * (1 - t*t) * scale)
		}
	}

	return inputGrad, alphaGrad
}

// ARCoefficients maps raw alpha values to filter taps as AutoRegressive2D
// does. The result has the same layout as alpha.
func ARCoefficients(alpha []float32, kernelSize int) []float64 {
	out := make([]float64, len(alpha))
	scale := 1 / float64(kernelSize-1)
	for i, v := range alpha {
		out[i] = math.Tanh(float64(v)) * scale
	}
	return out
}

// arPlan holds the per-call geometry and per-channel frequency responses.
type arPlan struct {
	n, c, h, w int
	padding    int
	hp, wp     int
	taps       []int
	respH      [][]complex128 // [C][hp/2+1]
	respW      [][]complex128 // [C][wp/2+1]
}

func newARPlan(op string, input, alpha *tensor.RawTensor, kernelSize, padding int) *arPlan {
	requireFloat32(op, input, alpha)
	n, c, h, w := require4D(op, input)
	if kernelSize < 3 || kernelSize%2 == 0 {
		panic(fmt.Sprintf("%s: kernel size must be odd and >= 3, got %d", op, kernelSize))
	}
	if padding < 0 {
		panic(fmt.Sprintf("%s: negative padding %d", op, padding))
	}
	nTaps := kernelSize - 1
	if as := alpha.Shape(); len(as) != 2 || as[0] != c || as[1] != 2*nTaps {
		panic(fmt.Sprintf("%s: alpha shape %v, want [%d %d]", op, alpha.Shape(), c, 2*nTaps))
	}

	p := &arPlan{
		n: n, c: c, h: h, w: w,
		padding: padding,
		hp:      h + 2*padding,
		wp:      w + 2*padding,
		taps:    arTaps(kernelSize),
	}
	if p.passThrough() {
		return p
	}

	coef := ARCoefficients(alpha.AsFloat32(), kernelSize)
	p.respH = make([][]complex128, c)
	p.respW = make([][]complex128, c)
	for ch := 0; ch < c; ch++ {
		row := coef[ch*2*nTaps : (ch+1)*2*nTaps]
		p.respH[ch] = arResponse(row[:nTaps], p.taps, p.hp)
		p.respW[ch] = arResponse(row[nTaps:], p.taps, p.wp)
	}
	return p
}

// passThrough reports planes too small for the kernel.
func (p *arPlan) passThrough() bool {
	k := len(p.taps) + 1
	return p.hp < k || p.wp < k
}

// arTaps lists the filter offsets -r..-1, 1..r.
func arTaps(kernelSize int) []int {
	r := (kernelSize - 1) / 2
	taps := make([]int, 0, kernelSize-1)
	for d := -r; d <= r; d++ {
		if d != 0 {
			taps = append(taps, d)
		}
	}
	return taps
}

// arResponse evaluates A(f) = 1 + sum_d a_d e^{-2πi f d / n} for the
// non-negative half spectrum.
func arResponse(coef []float64, taps []int, n int) []complex128 {
	resp := make([]complex128, n/2+1)
	for f := range resp {
		v := complex(1, 0)
		for j, d := range taps {
			v += complex(coef[j], 0) * cmplx.Exp(complex(0, -2*math.Pi*float64(f*d)/float64(n)))
		}
		resp[f] = v
	}
	return resp
}

// arSolver owns the FFT work buffers of one goroutine.
type arSolver struct {
	p        *arPlan
	fftH     *fourier.FFT
	fftW     *fourier.FFT
	lineH    []float64
	coeffH   []complex128
	coeffW   []complex128
	scratchW []float64
}

func (p *arPlan) newSolver() *arSolver {
	return &arSolver{
		p:        p,
		fftH:     fourier.NewFFT(p.hp),
		fftW:     fourier.NewFFT(p.wp),
		lineH:    make([]float64, p.hp),
		coeffH:   make([]complex128, p.hp/2+1),
		coeffW:   make([]complex128, p.wp/2+1),
		scratchW: make([]float64, p.wp),
	}
}

// load zero-pads one plane into a fresh float64 buffer.
func (s *arSolver) load(src []float32) []float64 {
	p := s.p
	buf := make([]float64, p.hp*p.wp)
	for i := 0; i < p.h; i++ {
		row := buf[(i+p.padding)*p.wp+p.padding:]
		for j := 0; j < p.w; j++ {
			row[j] = float64(src[i*p.w+j])
		}
	}
	return buf
}

// store crops a padded plane back into dst.
func (s *arSolver) store(dst []float32, buf []float64) {
	p := s.p
	for i := 0; i < p.h; i++ {
		row := buf[(i+p.padding)*p.wp+p.padding:]
		for j := 0; j < p.w; j++ {
			dst[i*p.w+j] = float32(row[j])
		}
	}
}

// solve applies H⁻¹ then W⁻¹ to a padded plane in place.
func (s *arSolver) solve(buf []float64, c int, transpose bool) {
	s.solveCols(buf, s.p.respH[c], transpose)
	s.solveRows(buf, s.p.respW[c], transpose)
}

// solveCols divides every column by resp in the frequency domain. The
// transposed filter has the conjugate response.
func (s *arSolver) solveCols(buf []float64, resp []complex128, transpose bool) {
	p := s.p
	for j := 0; j < p.wp; j++ {
		for i := 0; i < p.hp; i++ {
			s.lineH[i] = buf[i*p.wp+j]
		}
		s.divide(s.fftH, s.lineH, s.coeffH, resp, transpose)
		for i := 0; i < p.hp; i++ {
			buf[i*p.wp+j] = s.lineH[i]
		}
	}
}

// solveRows is solveCols along the width axis.
func (s *arSolver) solveRows(buf []float64, resp []complex128, transpose bool) {
	p := s.p
	for i := 0; i < p.hp; i++ {
		row := buf[i*p.wp : (i+1)*p.wp]
		copy(s.scratchW, row)
		s.divide(s.fftW, s.scratchW, s.coeffW, resp, transpose)
		copy(row, s.scratchW)
	}
}

func (s *arSolver) divide(fft *fourier.FFT, line []float64, coeff, resp []complex128, transpose bool) {
	fft.Coefficients(coeff, line)
	for f, r := range resp {
		if transpose {
			r = cmplx.Conj(r)
		}
		coeff[f] /= r
	}
	fft.Sequence(line, coeff)
	floats.Scale(1/float64(len(line)), line)
}

// shiftDotCols returns sum over (i,j) of g[i,j] * y[i-d, j], rows wrapping.
func (p *arPlan) shiftDotCols(g, y []float64, d int) float64 {
	var sum float64
	for i := 0; i < p.hp; i++ {
		src := ((i-d)%p.hp + p.hp) % p.hp
		sum += floats.Dot(g[i*p.wp:(i+1)*p.wp], y[src*p.wp:(src+1)*p.wp])
	}
	return sum
}

// shiftDotRows returns sum over (i,j) of g[i,j] * y[i, j-d], columns wrapping.
func (p *arPlan) shiftDotRows(g, y []float64, d int) float64 {
	s := ((-d)%p.wp + p.wp) % p.wp
	var sum float64
	for i := 0; i < p.hp; i++ {
		gr := g[i*p.wp : (i+1)*p.wp]
		yr := y[i*p.wp : (i+1)*p.wp]
		sum += floats.Dot(gr[:p.wp-s], yr[s:])
		if s > 0 {
			sum += floats.Dot(gr[p.wp-s:], yr[:s])
		}
	}
	return sum
}
