// Package ops defines the recorded operations of the gradient tape and
// their backward rules.
package ops

import "github.com/born-ml/armanet/internal/tensor"

// Operation is one recorded forward step.
type Operation interface {
	// Backward returns one gradient per input, in Inputs order. A nil
	// entry means the input receives no gradient.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	Inputs() []*tensor.RawTensor

	Output() *tensor.RawTensor
}
