package ops

import "github.com/born-ml/armanet/internal/tensor"

// BatchNorm2DOp is a recorded batch normalization. Mean and variance are
// saved, not differentiated as inputs; with batchStats their dependence on
// x is folded into the input gradient.
type BatchNorm2DOp struct {
	inputs     []*tensor.RawTensor // x, gamma, beta
	output     *tensor.RawTensor
	mean       *tensor.RawTensor
	variance   *tensor.RawTensor
	eps        float32
	batchStats bool
}

// NewBatchNorm2DOp records a batch normalization.
func NewBatchNorm2DOp(x, gamma, beta, mean, variance, output *tensor.RawTensor, eps float32, batchStats bool) *BatchNorm2DOp {
	return &BatchNorm2DOp{
		inputs:     []*tensor.RawTensor{x, gamma, beta},
		output:     output,
		mean:       mean,
		variance:   variance,
		eps:        eps,
		batchStats: batchStats,
	}
}

// Backward returns gradients for x, gamma and beta.
func (op *BatchNorm2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gx, gg, gb := backend.BatchNorm2DBackward(op.inputs[0], op.inputs[1], op.mean, op.variance, outputGrad, op.eps, op.batchStats)
	return []*tensor.RawTensor{gx, gg, gb}
}

// Inputs returns [x, gamma, beta].
func (op *BatchNorm2DOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the normalized tensor.
func (op *BatchNorm2DOp) Output() *tensor.RawTensor { return op.output }

// LogSoftmaxOp is a recorded log-softmax over the last dimension.
type LogSoftmaxOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewLogSoftmaxOp records a log-softmax.
func NewLogSoftmaxOp(input, output *tensor.RawTensor) *LogSoftmaxOp {
	return &LogSoftmaxOp{input: input, output: output}
}

// Backward returns g - softmax(x) * sum(g).
func (op *LogSoftmaxOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.LogSoftmaxBackward(op.output, outputGrad)}
}

// Inputs returns [x].
func (op *LogSoftmaxOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the log-probabilities.
func (op *LogSoftmaxOp) Output() *tensor.RawTensor { return op.output }

// NLLLossOp is a recorded negative log-likelihood. Targets get no gradient.
type NLLLossOp struct {
	logProbs *tensor.RawTensor
	targets  *tensor.RawTensor
	output   *tensor.RawTensor
}

// NewNLLLossOp records an NLL loss.
func NewNLLLossOp(logProbs, targets, output *tensor.RawTensor) *NLLLossOp {
	return &NLLLossOp{logProbs: logProbs, targets: targets, output: output}
}

// Backward returns the gradient for the log-probabilities.
func (op *NLLLossOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.NLLLossBackward(op.logProbs, op.targets, outputGrad)}
}

// Inputs returns [logProbs].
func (op *NLLLossOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.logProbs} }

// Output returns the scalar loss.
func (op *NLLLossOp) Output() *tensor.RawTensor { return op.output }
