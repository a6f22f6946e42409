package nn

import "github.com/born-ml/armanet/internal/tensor"

// Parameter is a trainable tensor and the gradient from the last backward
// pass.
//
//	weight := nn.NewParameter("weight", w)
//	weight.SetGrad(g)
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
	grad   *tensor.Tensor[float32, B]
}

// NewParameter wraps an initialized tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// Name returns the parameter's local name, e.g. "weight".
func (p *Parameter[B]) Name() string { return p.name }

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] { return p.tensor }

// Grad returns the gradient, or nil before the first backward pass.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] { return p.grad }

// SetGrad stores a gradient.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) { p.grad = grad }

// ZeroGrad drops the gradient.
func (p *Parameter[B]) ZeroGrad() { p.grad = nil }

// CollectGrads attaches the gradients computed by a tape to params and
// returns them keyed by parameter tensor, the form optimizers take.
// Parameters that received no gradient are skipped.
func CollectGrads[B tensor.Backend](params []*Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) map[*tensor.RawTensor]*tensor.RawTensor {
	out := make(map[*tensor.RawTensor]*tensor.RawTensor, len(params))
	for _, p := range params {
		g, ok := grads[p.Tensor().Raw()]
		if !ok {
			continue
		}
		p.SetGrad(tensor.New[float32, B](g, p.Tensor().Backend()))
		out[p.Tensor().Raw()] = g
	}
	return out
}
