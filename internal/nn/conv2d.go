package nn

import (
	"fmt"

	"github.com/born-ml/armanet/internal/tensor"
)

// Conv2D is a 2D convolution over [N, C, H, W] inputs with square kernels.
//
// Output spatial size is (H + 2*padding - kernel)/stride + 1.
//
//	conv := nn.NewConv2D(3, 64, 3, 1, 1, false, backend)
//	out := conv.Forward(images) // [N, 64, H, W]
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	weight *Parameter[B] // [out, in, k, k]
	bias   *Parameter[B] // [out] or nil

	backend B
}

// NewConv2D creates a convolution with Kaiming-normal weights (fan-out
// mode) and a zero bias when useBias is set.
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, useBias bool, backend B) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}

	shape := tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}
	weight := KaimingNormal(outChannels*kernelSize*kernelSize, shape, backend)

	var bias *Parameter[B]
	if useBias {
		bias = NewParameter("bias", Zeros(tensor.Shape{outChannels}, backend))
	}

	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weight:      NewParameter("weight", weight),
		bias:        bias,
		backend:     backend,
	}
}

// Forward convolves input [N, in, H, W] into [N, out, H', W'].
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %v", shape))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: expected %d input channels, got %d", c.inChannels, shape[1]))
	}

	out := tensor.New[float32, B](
		c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), c.stride, c.padding),
		c.backend,
	)
	if c.bias != nil {
		out = out.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return out
}

// Parameters returns the weight and, if present, the bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// StateDict returns "weight" and optionally "bias".
func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{"weight": c.weight.Tensor().Raw()}
	if c.bias != nil {
		sd["bias"] = c.bias.Tensor().Raw()
	}
	return sd
}

// LoadStateDict restores the weight and bias.
func (c *Conv2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadTensor(stateDict, "weight", c.weight.Tensor()); err != nil {
		return fmt.Errorf("conv2d: %w", err)
	}
	if c.bias != nil {
		if err := loadTensor(stateDict, "bias", c.bias.Tensor()); err != nil {
			return fmt.Errorf("conv2d: %w", err)
		}
	}
	return nil
}

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] { return c.weight }

// Bias returns the bias parameter or nil.
func (c *Conv2D[B]) Bias() *Parameter[B] { return c.bias }

// InChannels returns the expected input channel count.
func (c *Conv2D[B]) InChannels() int { return c.inChannels }

// OutChannels returns the produced channel count.
func (c *Conv2D[B]) OutChannels() int { return c.outChannels }

// Stride returns the convolution stride.
func (c *Conv2D[B]) Stride() int { return c.stride }
