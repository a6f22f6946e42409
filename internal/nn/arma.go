package nn

import (
	"fmt"

	"github.com/born-ml/armanet/internal/tensor"
)

// ARMA2D defaults for the recursive term.
const (
	DefaultARKernelSize = 3
	DefaultARPadding    = 0
)

// AutoRegressive2D is a learnable, separable, per-channel recursive filter.
//
// Each channel solves
//
//	x[i] = y[i] + sum_d a_d * y[i-d]
//
// for y along the height axis and then the width axis, with circular
// boundaries over the zero-padded plane. The coefficients are
// a = tanh(alpha)/(k-1), which keeps the filter invertible for any alpha.
//
// alpha has shape [C, 2*(k-1)]: the first k-1 columns hold the height taps,
// the rest the width taps. A kernel size of 1 makes the layer the identity.
type AutoRegressive2D[B tensor.Backend] struct {
	channels   int
	kernelSize int
	padding    int

	alpha *Parameter[B] // [C, 2*(k-1)] or nil when k == 1

	backend B
}

// NewAutoRegressive2D creates the recursive filter with every alpha set to
// init. Zero starts the layer as the identity.
func NewAutoRegressive2D[B tensor.Backend](channels, kernelSize, padding int, init float32, backend B) *AutoRegressive2D[B] {
	if channels <= 0 {
		panic(fmt.Sprintf("autoregressive2d: invalid channels %d", channels))
	}
	if kernelSize < 1 || kernelSize%2 == 0 {
		panic(fmt.Sprintf("autoregressive2d: kernel size must be odd and positive, got %d", kernelSize))
	}
	if padding < 0 {
		panic(fmt.Sprintf("autoregressive2d: negative padding %d", padding))
	}

	ar := &AutoRegressive2D[B]{
		channels:   channels,
		kernelSize: kernelSize,
		padding:    padding,
		backend:    backend,
	}
	if kernelSize > 1 {
		shape := tensor.Shape{channels, 2 * (kernelSize - 1)}
		ar.alpha = NewParameter("alpha", Constant(shape, init, backend))
	}
	return ar
}

// Forward filters input [N, C, H, W]; the output has the same shape.
func (ar *AutoRegressive2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != ar.channels {
		panic(fmt.Sprintf("autoregressive2d: expected input [N, %d, H, W], got %v", ar.channels, shape))
	}
	if ar.alpha == nil {
		return input
	}
	out := ar.backend.AutoRegressive2D(input.Raw(), ar.alpha.Tensor().Raw(), ar.kernelSize, ar.padding)
	return tensor.New[float32, B](out, ar.backend)
}

// Parameters returns [alpha], or nothing for a 1-tap filter.
func (ar *AutoRegressive2D[B]) Parameters() []*Parameter[B] {
	if ar.alpha == nil {
		return nil
	}
	return []*Parameter[B]{ar.alpha}
}

// StateDict returns "alpha" when present.
func (ar *AutoRegressive2D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{}
	if ar.alpha != nil {
		sd["alpha"] = ar.alpha.Tensor().Raw()
	}
	return sd
}

// LoadStateDict restores alpha.
func (ar *AutoRegressive2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if ar.alpha == nil {
		return nil
	}
	if err := loadTensor(stateDict, "alpha", ar.alpha.Tensor()); err != nil {
		return fmt.Errorf("autoregressive2d: %w", err)
	}
	return nil
}

// Alpha returns the coefficient parameter, or nil for a 1-tap filter.
func (ar *AutoRegressive2D[B]) Alpha() *Parameter[B] { return ar.alpha }

// KernelSize returns k.
func (ar *AutoRegressive2D[B]) KernelSize() int { return ar.kernelSize }

// ARMA2DConfig holds the shape of an ARMA2D layer.
type ARMA2DConfig struct {
	InChannels  int
	OutChannels int

	WKernelSize int // moving-average (convolution) kernel
	WStride     int
	WPadding    int

	AInit       float32 // initial value of every AR coefficient logit
	AKernelSize int     // autoregressive kernel, odd
	APadding    int
}

// DefaultARMA2DConfig returns a 1x1 moving-average term followed by the
// default 3-tap recursive term.
func DefaultARMA2DConfig(inChannels, outChannels int) ARMA2DConfig {
	return ARMA2DConfig{
		InChannels:  inChannels,
		OutChannels: outChannels,
		WKernelSize: 1,
		WStride:     1,
		WPadding:    0,
		AKernelSize: DefaultARKernelSize,
		APadding:    DefaultARPadding,
	}
}

// ARMA2D is a convolution (moving-average term) followed by an
// AutoRegressive2D filter on its output.
//
//	cfg := nn.DefaultARMA2DConfig(64, 128)
//	cfg.WKernelSize, cfg.WPadding = 3, 1
//	layer := nn.NewARMA2D(cfg, backend)
type ARMA2D[B tensor.Backend] struct {
	ma *Conv2D[B]
	ar *AutoRegressive2D[B]
}

// NewARMA2D builds the layer. The convolution has no bias.
func NewARMA2D[B tensor.Backend](cfg ARMA2DConfig, backend B) *ARMA2D[B] {
	return &ARMA2D[B]{
		ma: NewConv2D(cfg.InChannels, cfg.OutChannels, cfg.WKernelSize, cfg.WStride, cfg.WPadding, false, backend),
		ar: NewAutoRegressive2D(cfg.OutChannels, cfg.AKernelSize, cfg.APadding, cfg.AInit, backend),
	}
}

// Forward applies AR(MA(input)).
func (a *ARMA2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return a.ar.Forward(a.ma.Forward(input))
}

// Parameters returns the convolution weight followed by alpha.
func (a *ARMA2D[B]) Parameters() []*Parameter[B] {
	return append(a.ma.Parameters(), a.ar.Parameters()...)
}

// StateDict nests the two terms under "ma." and "ar.".
func (a *ARMA2D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	Prefixed(sd, "ma", a.ma.StateDict())
	Prefixed(sd, "ar", a.ar.StateDict())
	return sd
}

// LoadStateDict restores both terms.
func (a *ARMA2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := a.ma.LoadStateDict(SubDict(stateDict, "ma")); err != nil {
		return fmt.Errorf("arma2d: %w", err)
	}
	if err := a.ar.LoadStateDict(SubDict(stateDict, "ar")); err != nil {
		return fmt.Errorf("arma2d: %w", err)
	}
	return nil
}

// MA returns the moving-average convolution.
func (a *ARMA2D[B]) MA() *Conv2D[B] { return a.ma }

// AR returns the recursive filter.
func (a *ARMA2D[B]) AR() *AutoRegressive2D[B] { return a.ar }
