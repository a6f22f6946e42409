package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/armanet/internal/nn"
	"github.com/born-ml/armanet/internal/tensor"
)

// Adam is the Adam optimizer (Kingma & Ba, 2014) with decoupled weight
// decay:
//
//	m = beta1*m + (1-beta1)*g
//	v = beta2*v + (1-beta2)*g^2
//	param -= lr * (m/(1-beta1^t)) / (sqrt(v/(1-beta2^t)) + eps) + lr*weightDecay*param
type Adam[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	lr          float32
	beta1       float32
	beta2       float32
	eps         float32
	weightDecay float32
	t           int // step count for bias correction
	m           *buffers[B]
	v           *buffers[B]
	backend     B
}

// AdamConfig holds Adam hyperparameters. Zero values take the defaults.
type AdamConfig struct {
	LR          float32    // default 0.001
	Betas       [2]float32 // default {0.9, 0.999}
	Eps         float32    // default 1e-8
	WeightDecay float32
}

// NewAdam creates an Adam optimizer over params.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam[B]{
		params:      params,
		lr:          config.LR,
		beta1:       config.Betas[0],
		beta2:       config.Betas[1],
		eps:         config.Eps,
		weightDecay: config.WeightDecay,
		m:           newBuffers[B]("m"),
		v:           newBuffers[B]("v"),
		backend:     backend,
	}
}

// Step updates every parameter that has a gradient.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++
	bc1 := float32(1 - math.Pow(float64(a.beta1), float64(a.t)))
	bc2 := float32(1 - math.Pow(float64(a.beta2), float64(a.t)))

	for i, param := range a.params {
		grad := gradient(param, grads)
		if grad == nil {
			continue
		}
		data := param.Tensor().Data()
		m := a.m.get(i, param, a.backend)
		v := a.v.get(i, param, a.backend)

		for j, g := range grad {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g
			v[j] = a.beta2*v[j] + (1-a.beta2)*g*g
			mHat := m[j] / bc1
			vHat := v[j] / bc2
			data[j] -= a.lr*mHat/(float32(math.Sqrt(float64(vHat)))+a.eps) + a.lr*a.weightDecay*data[j]
		}
	}
}

// ZeroGrad clears the parameter gradients.
func (a *Adam[B]) ZeroGrad() { zeroGrad(a.params) }

// LR returns the learning rate.
func (a *Adam[B]) LR() float32 { return a.lr }

// SetLR changes the learning rate.
func (a *Adam[B]) SetLR(lr float32) { a.lr = lr }

// Timestep returns the number of steps taken.
func (a *Adam[B]) Timestep() int { return a.t }

// StateDict returns "m.<i>", "v.<i>" and the step count under "step".
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	a.m.save(sd)
	a.v.save(sd)
	step := tensor.MustRaw(tensor.Shape{1}, tensor.Int64, tensor.CPU)
	step.AsInt64()[0] = int64(a.t)
	sd["step"] = step
	return sd
}

// LoadStateDict restores the moments and step count.
func (a *Adam[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := a.m.load(stateDict, a.params, a.backend); err != nil {
		return fmt.Errorf("adam: %w", err)
	}
	if err := a.v.load(stateDict, a.params, a.backend); err != nil {
		return fmt.Errorf("adam: %w", err)
	}
	a.t = 0
	if step, ok := stateDict["step"]; ok && step.DType() == tensor.Int64 && step.NumElements() == 1 {
		a.t = int(step.AsInt64()[0])
	}
	return nil
}
