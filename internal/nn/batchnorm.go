package nn

import (
	"fmt"

	"github.com/born-ml/armanet/internal/tensor"
)

// BatchNorm2D defaults.
const (
	DefaultBatchNormEps      = 1e-5
	DefaultBatchNormMomentum = 0.1
)

// BatchNorm2D normalizes each channel of [N, C, H, W] inputs.
//
// In training mode it uses the statistics of the current batch and folds
// them into running estimates:
//
//	running = (1 - momentum) * running + momentum * batch
//
// where the running variance takes the unbiased batch variance. In
// evaluation mode the running estimates are used as-is.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	eps         float32
	momentum    float32
	training    bool

	gamma *Parameter[B] // [C], starts at 1
	beta  *Parameter[B] // [C], starts at 0

	runningMean *tensor.Tensor[float32, B]
	runningVar  *tensor.Tensor[float32, B]

	backend B
}

// NewBatchNorm2D creates a batch norm over numFeatures channels, in
// training mode.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid feature count %d", numFeatures))
	}
	shape := tensor.Shape{numFeatures}
	return &BatchNorm2D[B]{
		numFeatures: numFeatures,
		eps:         DefaultBatchNormEps,
		momentum:    DefaultBatchNormMomentum,
		training:    true,
		gamma:       NewParameter("weight", Ones(shape, backend)),
		beta:        NewParameter("bias", Zeros(shape, backend)),
		runningMean: Zeros(shape, backend),
		runningVar:  Ones(shape, backend),
		backend:     backend,
	}
}

// Forward normalizes input.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: expected input [N, %d, H, W], got %v", bn.numFeatures, shape))
	}

	x, gamma, beta := input.Raw(), bn.gamma.Tensor().Raw(), bn.beta.Tensor().Raw()
	if !bn.training {
		out := bn.backend.BatchNorm2D(x, gamma, beta, bn.runningMean.Raw(), bn.runningVar.Raw(), bn.eps, false)
		return tensor.New[float32, B](out, bn.backend)
	}

	mean, variance := bn.backend.BatchNormStats(x)
	out := bn.backend.BatchNorm2D(x, gamma, beta, mean, variance, bn.eps, true)
	bn.updateRunning(mean.AsFloat32(), variance.AsFloat32(), shape[0]*shape[2]*shape[3])
	return tensor.New[float32, B](out, bn.backend)
}

func (bn *BatchNorm2D[B]) updateRunning(mean, variance []float32, count int) {
	unbias := float32(1)
	if count > 1 {
		unbias = float32(count) / float32(count-1)
	}
	rm, rv := bn.runningMean.Data(), bn.runningVar.Data()
	m := bn.momentum
	for c := range rm {
		rm[c] = (1-m)*rm[c] + m*mean[c]
		rv[c] = (1-m)*rv[c] + m*variance[c]*unbias
	}
}

// SetTraining switches between batch and running statistics.
func (bn *BatchNorm2D[B]) SetTraining(training bool) { bn.training = training }

// Training reports the current mode.
func (bn *BatchNorm2D[B]) Training() bool { return bn.training }

// Parameters returns [gamma, beta]. Running statistics are buffers.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.gamma, bn.beta}
}

// StateDict returns the affine parameters and running statistics.
func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight":       bn.gamma.Tensor().Raw(),
		"bias":         bn.beta.Tensor().Raw(),
		"running_mean": bn.runningMean.Raw(),
		"running_var":  bn.runningVar.Raw(),
	}
}

// LoadStateDict restores parameters and running statistics.
func (bn *BatchNorm2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	targets := []struct {
		name string
		dst  *tensor.Tensor[float32, B]
	}{
		{"weight", bn.gamma.Tensor()},
		{"bias", bn.beta.Tensor()},
		{"running_mean", bn.runningMean},
		{"running_var", bn.runningVar},
	}
	for _, t := range targets {
		if err := loadTensor(stateDict, t.name, t.dst); err != nil {
			return fmt.Errorf("batchnorm2d: %w", err)
		}
	}
	return nil
}

// RunningMean returns the running mean buffer.
func (bn *BatchNorm2D[B]) RunningMean() *tensor.Tensor[float32, B] { return bn.runningMean }

// RunningVar returns the running variance buffer.
func (bn *BatchNorm2D[B]) RunningVar() *tensor.Tensor[float32, B] { return bn.runningVar }
