// Package optim implements the optimizers used to train the models.
//
//	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:          0.1,
//	    Momentum:    0.9,
//	    WeightDecay: 5e-4,
//	})
//
//	backend.Tape().StartRecording()
//	loss := criterion.Forward(model.Forward(x), y)
//	grads := autodiff.Backward(loss, backend)
//	opt.Step(grads)
//	opt.ZeroGrad()
//	backend.Tape().Clear()
package optim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/armanet/internal/nn"
	"github.com/born-ml/armanet/internal/tensor"
)

// ErrUnknownOptimizer is returned by New for unsupported names.
var ErrUnknownOptimizer = errors.New("unknown optimizer")

// Optimizer updates parameters from the gradients of a backward pass.
type Optimizer interface {
	// Step applies one update. grads maps parameter tensors to their
	// gradients; parameters without a gradient are left alone.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears the gradients stored on the parameters.
	ZeroGrad()

	// LR returns the current learning rate.
	LR() float32

	// SetLR changes the learning rate, e.g. from a schedule.
	SetLR(lr float32)

	// StateDict returns the optimizer buffers keyed by parameter index.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores buffers saved by StateDict.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Config selects and configures an optimizer by name.
type Config struct {
	Name        string // "sgd" or "adam"
	LR          float32
	Momentum    float32 // sgd only
	WeightDecay float32
}

// New builds the optimizer named by cfg.Name.
func New[B tensor.Backend](params []*nn.Parameter[B], cfg Config, backend B) (Optimizer, error) {
	switch strings.ToLower(cfg.Name) {
	case "", "sgd":
		return NewSGD(params, SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum, WeightDecay: cfg.WeightDecay}, backend), nil
	case "adam":
		return NewAdam(params, AdamConfig{LR: cfg.LR, WeightDecay: cfg.WeightDecay}, backend), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOptimizer, cfg.Name)
	}
}

// gradient returns the float32 gradient of param, or nil.
func gradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) []float32 {
	g, ok := grads[param.Tensor().Raw()]
	if !ok {
		return nil
	}
	if !g.Shape().Equal(param.Tensor().Shape()) {
		panic(fmt.Sprintf("optim: gradient shape %v != parameter %s shape %v", g.Shape(), param.Name(), param.Tensor().Shape()))
	}
	return g.AsFloat32()
}

func zeroGrad[B tensor.Backend](params []*nn.Parameter[B]) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// buffers holds one lazily allocated state tensor per parameter.
type buffers[B tensor.Backend] struct {
	prefix string
	bufs   map[int]*tensor.Tensor[float32, B]
}

func newBuffers[B tensor.Backend](prefix string) *buffers[B] {
	return &buffers[B]{prefix: prefix, bufs: make(map[int]*tensor.Tensor[float32, B])}
}

func (b *buffers[B]) get(i int, param *nn.Parameter[B], backend B) []float32 {
	buf, ok := b.bufs[i]
	if !ok {
		buf = tensor.Zeros[float32](param.Tensor().Shape(), backend)
		b.bufs[i] = buf
	}
	return buf.Data()
}

func (b *buffers[B]) save(dst map[string]*tensor.RawTensor) {
	for i, buf := range b.bufs {
		dst[fmt.Sprintf("%s.%d", b.prefix, i)] = buf.Raw()
	}
}

func (b *buffers[B]) load(src map[string]*tensor.RawTensor, params []*nn.Parameter[B], backend B) error {
	b.bufs = make(map[int]*tensor.Tensor[float32, B])
	for i, p := range params {
		key := fmt.Sprintf("%s.%d", b.prefix, i)
		raw, ok := src[key]
		if !ok {
			continue
		}
		if !raw.Shape().Equal(p.Tensor().Shape()) {
			return fmt.Errorf("%s shape mismatch: expected %v, got %v", key, p.Tensor().Shape(), raw.Shape())
		}
		b.bufs[i] = tensor.New[float32, B](raw.Copy(), backend)
	}
	return nil
}
