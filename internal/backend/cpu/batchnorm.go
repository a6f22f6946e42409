package cpu

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/armanet/internal/parallel"
	"github.com/born-ml/armanet/internal/tensor"
)

// BatchNormStats returns the per-channel mean and biased variance of
// x [N,C,H,W], each shaped [C].
func (cpu *CPUBackend) BatchNormStats(x *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	requireFloat32("batchnorm stats", x)
	n, c, h, w := require4D("batchnorm stats", x)
	mean = cpu.alloc("batchnorm stats", tensor.Shape{c}, tensor.Float32)
	variance = cpu.alloc("batchnorm stats", tensor.Shape{c}, tensor.Float32)

	src, mu, v := x.AsFloat32(), mean.AsFloat32(), variance.AsFloat32()
	plane := h * w
	parallel.For(c, func(ch int) {
		vals := make([]float64, 0, n*plane)
		for b := 0; b < n; b++ {
			for _, e := range src[(b*c+ch)*plane : (b*c+ch+1)*plane] {
				vals = append(vals, float64(e))
			}
		}
		m := floats.Sum(vals) / float64(len(vals))
		floats.AddConst(-m, vals)
		mu[ch] = float32(m)
		v[ch] = float32(floats.Dot(vals, vals) / float64(len(vals)))
	}, cpu.parallel)

	return mean, variance
}

// BatchNorm2D normalizes x [N,C,H,W] per channel:
//
//	y = gamma * (x - mean) / sqrt(variance + eps) + beta
//
// batchStats records whether mean/variance came from x itself; it only
// matters to the backward pass.
func (cpu *CPUBackend) BatchNorm2D(x, gamma, beta, mean, variance *tensor.RawTensor, eps float32, _ bool) *tensor.RawTensor {
	_, c, h, w := checkBatchNorm("batchnorm2d", x, gamma, beta, mean, variance)
	out := cpu.alloc("batchnorm2d", x.Shape(), tensor.Float32)

	src, dst := x.AsFloat32(), out.AsFloat32()
	g, b, mu, v := gamma.AsFloat32(), beta.AsFloat32(), mean.AsFloat32(), variance.AsFloat32()
	plane := h * w
	parallel.ForBatch(x.Shape()[0], c, func(n, ch int) {
		scale := g[ch] / float32(math.Sqrt(float64(v[ch]+eps)))
		shift := b[ch] - mu[ch]*scale
		off := (n*c + ch) * plane
		for i, e := range src[off : off+plane] {
			dst[off+i] = e*scale + shift
		}
	}, cpu.parallel)

	return out
}

// BatchNorm2DBackward returns gradients for x, gamma and beta. With
// batchStats the gradient also flows through the batch mean and variance.
func (cpu *CPUBackend) BatchNorm2DBackward(
	x, gamma, mean, variance, grad *tensor.RawTensor,
	eps float32,
	batchStats bool,
) (inputGrad, gammaGrad, betaGrad *tensor.RawTensor) {
	n, c, h, w := checkBatchNorm("batchnorm2d backward", x, gamma, gamma, mean, variance)
	requireFloat32("batchnorm2d backward", grad)
	inputGrad = cpu.alloc("batchnorm2d backward", x.Shape(), tensor.Float32)
	gammaGrad = cpu.alloc("batchnorm2d backward", tensor.Shape{c}, tensor.Float32)
	betaGrad = cpu.alloc("batchnorm2d backward", tensor.Shape{c}, tensor.Float32)

	src, gy, gx := x.AsFloat32(), grad.AsFloat32(), inputGrad.AsFloat32()
	g, mu, v := gamma.AsFloat32(), mean.AsFloat32(), variance.AsFloat32()
	dg, db := gammaGrad.AsFloat32(), betaGrad.AsFloat32()
	plane := h * w
	m := float64(n * plane)

	parallel.For(c, func(ch int) {
		invStd := 1 / math.Sqrt(float64(v[ch]+eps))
		var sumG, sumGX float64
		for b := 0; b < n; b++ {
			off := (b*c + ch) * plane
			for i := off; i < off+plane; i++ {
				xhat := (float64(src[i]) - float64(mu[ch])) * invStd
				sumG += float64(gy[i])
				sumGX += float64(gy[i]) * xhat
			}
		}
		db[ch] = float32(sumG)
		dg[ch] = float32(sumGX)

		k := float64(g[ch]) * invStd
		for b := 0; b < n; b++ {
			off := (b*c + ch) * plane
			for i := off; i < off+plane; i++ {
				if !batchStats {
					gx[i] = float32(k * float64(gy[i]))
					continue
				}
				xhat := (float64(src[i]) - float64(mu[ch])) * invStd
				gx[i] = float32(k / m * (m*float64(gy[i]) - sumG - xhat*sumGX))
			}
		}
	}, cpu.parallel)

	return inputGrad, gammaGrad, betaGrad
}

func checkBatchNorm(op string, x, gamma, beta, mean, variance *tensor.RawTensor) (n, c, h, w int) {
	requireFloat32(op, x, gamma, beta, mean, variance)
	n, c, h, w = require4D(op, x)
	for name, t := range map[string]*tensor.RawTensor{"gamma": gamma, "beta": beta, "mean": mean, "variance": variance} {
		if !t.Shape().Equal(tensor.Shape{c}) {
			panic(fmt.Sprintf("%s: %s shape %v, want [%d]", op, name, t.Shape(), c))
		}
	}
	return n, c, h, w
}
