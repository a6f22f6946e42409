package tensor

// Backend computes tensor operations for a device.
//
// Element-wise operations broadcast. Shape misuse is a programming error and
// panics with an "<op>: <detail>" message.
//
// Operations with a matching *Backward method are the ones the autodiff
// decorator needs to differentiate; they are part of the interface so a
// decorator can stay backend-agnostic.
type Backend interface {
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor
	MulScalar(x *RawTensor, scalar float32) *RawTensor
	MatMul(a, b *RawTensor) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Reshape(t *RawTensor, newShape Shape) *RawTensor

	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	Argmax(x *RawTensor, dim int) *RawTensor

	ReLU(x *RawTensor) *RawTensor
	ReLUBackward(input, grad *RawTensor) *RawTensor

	// Conv2D: input [N,Cin,H,W], kernel [Cout,Cin,KH,KW].
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor

	// AutoRegressive2D solves A*y = x per channel, A being the separable
	// circular filter described by alpha [C, 2*(kernelSize-1)].
	AutoRegressive2D(input, alpha *RawTensor, kernelSize, padding int) *RawTensor
	AutoRegressive2DBackward(input, alpha, grad *RawTensor, kernelSize, padding int) (inputGrad, alphaGrad *RawTensor)

	// BatchNormStats returns per-channel mean and biased variance of [N,C,H,W].
	BatchNormStats(x *RawTensor) (mean, variance *RawTensor)
	BatchNorm2D(x, gamma, beta, mean, variance *RawTensor, eps float32, batchStats bool) *RawTensor
	BatchNorm2DBackward(x, gamma, mean, variance, grad *RawTensor, eps float32, batchStats bool) (inputGrad, gammaGrad, betaGrad *RawTensor)

	// GlobalAvgPool2D reduces [N,C,H,W] to [N,C].
	GlobalAvgPool2D(x *RawTensor) *RawTensor
	GlobalAvgPool2DBackward(input, grad *RawTensor) *RawTensor

	// LogSoftmax normalizes the last dimension.
	LogSoftmax(x *RawTensor) *RawTensor
	LogSoftmaxBackward(output, grad *RawTensor) *RawTensor

	// NLLLoss is the mean of -logProbs[i, targets[i]].
	NLLLoss(logProbs, targets *RawTensor) *RawTensor
	NLLLossBackward(logProbs, targets, grad *RawTensor) *RawTensor

	Name() string
	Device() Device
}
