// Package autodiff adds reverse-mode automatic differentiation to any
// tensor.Backend.
//
// AutodiffBackend decorates an inner backend: every differentiable call is
// forwarded to the inner backend and, while the tape is recording, an
// operation holding the inputs and output is appended to the tape.
package autodiff

import (
	"github.com/born-ml/armanet/internal/autodiff/ops"
	"github.com/born-ml/armanet/internal/tensor"
)

// AutodiffBackend wraps B with a gradient tape.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New wraps backend with a fresh tape.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{inner: backend, tape: NewGradientTape()}
}

// Tape returns the gradient tape.
func (b *AutodiffBackend[B]) Tape() *GradientTape { return b.tape }

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B { return b.inner }

// Name returns "Autodiff(<inner>)".
func (b *AutodiffBackend[B]) Name() string { return "Autodiff(" + b.inner.Name() + ")" }

// Device returns the inner backend's device.
func (b *AutodiffBackend[B]) Device() tensor.Device { return b.inner.Device() }

func (b *AutodiffBackend[B]) record(op ops.Operation) {
	if b.tape.IsRecording() {
		b.tape.Record(op)
	}
}

// Add records a + c.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Add(a, c)
	b.record(ops.NewAddOp(a, c, out))
	return out
}

// Sub records a - c.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Sub(a, c)
	b.record(ops.NewSubOp(a, c, out))
	return out
}

// Mul records a * c.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Mul(a, c)
	b.record(ops.NewMulOp(a, c, out))
	return out
}

// Div records a / c.
func (b *AutodiffBackend[B]) Div(a, c *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Div(a, c)
	b.record(ops.NewDivOp(a, c, out))
	return out
}

// MulScalar records x * s.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	out := b.inner.MulScalar(x, s)
	b.record(ops.NewMulScalarOp(x, out, s))
	return out
}

// MatMul records a @ c.
func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.MatMul(a, c)
	b.record(ops.NewMatMulOp(a, c, out))
	return out
}

// Transpose records an axis permutation.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	if len(axes) == 0 {
		ndim := len(t.Shape())
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	out := b.inner.Transpose(t, axes...)
	b.record(ops.NewTransposeOp(t, out, axes))
	return out
}

// Reshape records a reshape.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	out := b.inner.Reshape(t, newShape)
	b.record(ops.NewReshapeOp(t, out))
	return out
}

// Exp records e^x.
func (b *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Exp(x)
	b.record(ops.NewExpOp(x, out))
	return out
}

// Log records ln(x).
func (b *AutodiffBackend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Log(x)
	b.record(ops.NewLogOp(x, out))
	return out
}

// Sum records a full reduction.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Sum(x)
	b.record(ops.NewSumOp(x, out))
	return out
}

// SumDim records a reduction along dim.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	out := b.inner.SumDim(x, dim, keepDim)
	b.record(ops.NewSumDimOp(x, out, dim, keepDim))
	return out
}

// Argmax is not differentiable and is never recorded.
func (b *AutodiffBackend[B]) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.inner.Argmax(x, dim)
}

// ReLU records max(0, x).
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.ReLU(x)
	b.record(ops.NewReLUOp(x, out))
	return out
}

// ReLUBackward forwards to the inner backend.
func (b *AutodiffBackend[B]) ReLUBackward(input, grad *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.ReLUBackward(input, grad)
}

// Conv2D records a convolution.
func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	out := b.inner.Conv2D(input, kernel, stride, padding)
	b.record(ops.NewConv2DOp(input, kernel, out, stride, padding))
	return out
}

// Conv2DInputBackward forwards to the inner backend.
func (b *AutodiffBackend[B]) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DInputBackward(input, kernel, grad, stride, padding)
}

// Conv2DKernelBackward forwards to the inner backend.
func (b *AutodiffBackend[B]) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DKernelBackward(input, kernel, grad, stride, padding)
}

// AutoRegressive2D records an AR solve.
func (b *AutodiffBackend[B]) AutoRegressive2D(input, alpha *tensor.RawTensor, kernelSize, padding int) *tensor.RawTensor {
	out := b.inner.AutoRegressive2D(input, alpha, kernelSize, padding)
	b.record(ops.NewAutoRegressive2DOp(input, alpha, out, kernelSize, padding))
	return out
}

// AutoRegressive2DBackward forwards to the inner backend.
func (b *AutodiffBackend[B]) AutoRegressive2DBackward(
	input, alpha, grad *tensor.RawTensor, kernelSize, padding int,
) (inputGrad, alphaGrad *tensor.RawTensor) {
	return b.inner.AutoRegressive2DBackward(input, alpha, grad, kernelSize, padding)
}

// BatchNormStats forwards to the inner backend. The statistics are folded
// into the BatchNorm2D backward rule rather than recorded.
func (b *AutodiffBackend[B]) BatchNormStats(x *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	return b.inner.BatchNormStats(x)
}

// BatchNorm2D records a batch normalization.
func (b *AutodiffBackend[B]) BatchNorm2D(x, gamma, beta, mean, variance *tensor.RawTensor, eps float32, batchStats bool) *tensor.RawTensor {
	out := b.inner.BatchNorm2D(x, gamma, beta, mean, variance, eps, batchStats)
	b.record(ops.NewBatchNorm2DOp(x, gamma, beta, mean, variance, out, eps, batchStats))
	return out
}

// BatchNorm2DBackward forwards to the inner backend.
func (b *AutodiffBackend[B]) BatchNorm2DBackward(
	x, gamma, mean, variance, grad *tensor.RawTensor, eps float32, batchStats bool,
) (inputGrad, gammaGrad, betaGrad *tensor.RawTensor) {
	return b.inner.BatchNorm2DBackward(x, gamma, mean, variance, grad, eps, batchStats)
}

// GlobalAvgPool2D records a global average pool.
func (b *AutodiffBackend[B]) GlobalAvgPool2D(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.GlobalAvgPool2D(x)
	b.record(ops.NewGlobalAvgPool2DOp(x, out))
	return out
}

// GlobalAvgPool2DBackward forwards to the inner backend.
func (b *AutodiffBackend[B]) GlobalAvgPool2DBackward(input, grad *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.GlobalAvgPool2DBackward(input, grad)
}

// LogSoftmax records a log-softmax.
func (b *AutodiffBackend[B]) LogSoftmax(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.LogSoftmax(x)
	b.record(ops.NewLogSoftmaxOp(x, out))
	return out
}

// LogSoftmaxBackward forwards to the inner backend.
func (b *AutodiffBackend[B]) LogSoftmaxBackward(output, grad *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.LogSoftmaxBackward(output, grad)
}

// NLLLoss records a negative log-likelihood.
func (b *AutodiffBackend[B]) NLLLoss(logProbs, targets *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.NLLLoss(logProbs, targets)
	b.record(ops.NewNLLLossOp(logProbs, targets, out))
	return out
}

// NLLLossBackward forwards to the inner backend.
func (b *AutodiffBackend[B]) NLLLossBackward(logProbs, targets, grad *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.NLLLossBackward(logProbs, targets, grad)
}

var _ tensor.Backend = (*AutodiffBackend[tensor.Backend])(nil)
