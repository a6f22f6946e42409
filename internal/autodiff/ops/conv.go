package ops

import "github.com/born-ml/armanet/internal/tensor"

// Conv2DOp is a recorded 2-D convolution.
type Conv2DOp struct {
	input   *tensor.RawTensor
	kernel  *tensor.RawTensor
	output  *tensor.RawTensor
	stride  int
	padding int
}

// NewConv2DOp records a convolution.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *Conv2DOp {
	return &Conv2DOp{
		input:   input,
		kernel:  kernel,
		output:  output,
		stride:  stride,
		padding: padding,
	}
}

// Backward returns gradients for the input and the kernel.
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.Conv2DInputBackward(op.input, op.kernel, outputGrad, op.stride, op.padding),
		backend.Conv2DKernelBackward(op.input, op.kernel, outputGrad, op.stride, op.padding),
	}
}

// Inputs returns [input, kernel].
func (op *Conv2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the convolution result.
func (op *Conv2DOp) Output() *tensor.RawTensor { return op.output }

// AutoRegressive2DOp is a recorded AR solve.
type AutoRegressive2DOp struct {
	input      *tensor.RawTensor
	alpha      *tensor.RawTensor
	output     *tensor.RawTensor
	kernelSize int
	padding    int
}

// NewAutoRegressive2DOp records an AR solve.
func NewAutoRegressive2DOp(input, alpha, output *tensor.RawTensor, kernelSize, padding int) *AutoRegressive2DOp {
	return &AutoRegressive2DOp{
		input:      input,
		alpha:      alpha,
		output:     output,
		kernelSize: kernelSize,
		padding:    padding,
	}
}

// Backward returns gradients for the input and alpha.
func (op *AutoRegressive2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gx, ga := backend.AutoRegressive2DBackward(op.input, op.alpha, outputGrad, op.kernelSize, op.padding)
	return []*tensor.RawTensor{gx, ga}
}

// Inputs returns [input, alpha].
func (op *AutoRegressive2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.alpha}
}

// Output returns the solved planes.
func (op *AutoRegressive2DOp) Output() *tensor.RawTensor { return op.output }

// GlobalAvgPool2DOp is a recorded [N,C,H,W] → [N,C] average.
type GlobalAvgPool2DOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewGlobalAvgPool2DOp records a global average pool.
func NewGlobalAvgPool2DOp(input, output *tensor.RawTensor) *GlobalAvgPool2DOp {
	return &GlobalAvgPool2DOp{input: input, output: output}
}

// Backward spreads g evenly over each plane.
func (op *GlobalAvgPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.GlobalAvgPool2DBackward(op.input, outputGrad)}
}

// Inputs returns [x].
func (op *GlobalAvgPool2DOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the pooled [N,C] tensor.
func (op *GlobalAvgPool2DOp) Output() *tensor.RawTensor { return op.output }
