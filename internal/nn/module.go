// Package nn implements the neural network layers used by the ARMA ResNet
// models.
//
// Every layer is generic over a tensor.Backend. With a plain backend the
// layers run inference; wrapped in autodiff.AutodiffBackend their forward
// passes are recorded for backpropagation.
package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/armanet/internal/tensor"
)

// Module is the interface of every layer and container.
type Module[B tensor.Backend] interface {
	// Forward computes the module output.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns the trainable parameters, nested modules included.
	Parameters() []*Parameter[B]

	// StateDict returns every tensor needed to restore the module:
	// parameters and non-trainable buffers such as running statistics.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies values from a state dict produced by StateDict.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Trainable is implemented by modules whose forward pass depends on the
// training/evaluation mode.
type Trainable interface {
	SetTraining(training bool)
}

// SetTraining switches m and its children to training or evaluation mode.
// Modules without mode-dependent behavior are left alone.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	if t, ok := m.(Trainable); ok {
		t.SetTraining(training)
	}
}

// NumParameters counts the scalar values in params.
func NumParameters[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.Tensor().NumElements()
	}
	return n
}

// Prefixed merges a child state dict into dst under "prefix.".
func Prefixed(dst map[string]*tensor.RawTensor, prefix string, child map[string]*tensor.RawTensor) {
	for k, v := range child {
		dst[prefix+"."+k] = v
	}
}

// SubDict extracts the entries under "prefix." with the prefix removed.
func SubDict(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	p := prefix + "."
	for k, v := range stateDict {
		if rest, ok := strings.CutPrefix(k, p); ok {
			out[rest] = v
		}
	}
	return out
}

// loadTensor copies the entry name from stateDict into dst after checking
// its shape and dtype.
func loadTensor[B tensor.Backend](stateDict map[string]*tensor.RawTensor, name string, dst *tensor.Tensor[float32, B]) error {
	src, ok := stateDict[name]
	if !ok {
		return fmt.Errorf("missing %s in state dict", name)
	}
	if !src.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v", name, dst.Shape(), src.Shape())
	}
	if src.DType() != tensor.Float32 {
		return fmt.Errorf("%s dtype mismatch: expected float32, got %v", name, src.DType())
	}
	copy(dst.Data(), src.AsFloat32())
	return nil
}
