package optim

import (
	"github.com/born-ml/armanet/internal/nn"
	"github.com/born-ml/armanet/internal/tensor"
)

// SGD is stochastic gradient descent with optional momentum and L2 weight
// decay:
//
//	g = grad + weightDecay * param
//	velocity = momentum * velocity + g
//	param -= lr * velocity
type SGD[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	lr          float32
	momentum    float32
	weightDecay float32
	velocity    *buffers[B]
	backend     B
}

// SGDConfig holds SGD hyperparameters.
type SGDConfig struct {
	LR          float32 // default 0.01
	Momentum    float32 // in [0, 1)
	WeightDecay float32
}

// NewSGD creates an SGD optimizer over params.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{
		params:      params,
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocity:    newBuffers[B]("velocity"),
		backend:     backend,
	}
}

// Step updates every parameter that has a gradient.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for i, param := range s.params {
		grad := gradient(param, grads)
		if grad == nil {
			continue
		}
		data := param.Tensor().Data()

		if s.momentum == 0 {
			for j, g := range grad {
				data[j] -= s.lr * (g + s.weightDecay*data[j])
			}
			continue
		}

		v := s.velocity.get(i, param, s.backend)
		for j, g := range grad {
			v[j] = s.momentum*v[j] + g + s.weightDecay*data[j]
			data[j] -= s.lr * v[j]
		}
	}
}

// ZeroGrad clears the parameter gradients.
func (s *SGD[B]) ZeroGrad() { zeroGrad(s.params) }

// LR returns the learning rate.
func (s *SGD[B]) LR() float32 { return s.lr }

// SetLR changes the learning rate.
func (s *SGD[B]) SetLR(lr float32) { s.lr = lr }

// StateDict returns the velocity buffers as "velocity.<index>". It is
// empty without momentum or before the first step.
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	s.velocity.save(sd)
	return sd
}

// LoadStateDict restores velocity buffers. Missing entries start at zero.
func (s *SGD[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return s.velocity.load(stateDict, s.params, s.backend)
}
