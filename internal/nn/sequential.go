package nn

import (
	"fmt"
	"strconv"

	"github.com/born-ml/armanet/internal/tensor"
)

// Sequential chains modules, feeding each output to the next.
//
//	shortcut := nn.NewSequential[B](
//	    nn.NewConv2D(64, 128, 1, 2, 0, false, backend),
//	    nn.NewBatchNorm2D(128, backend),
//	)
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a container over modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{modules: modules}
}

// Add appends a module.
func (s *Sequential[B]) Add(m Module[B]) { s.modules = append(s.modules, m) }

// Len returns the number of modules.
func (s *Sequential[B]) Len() int { return len(s.modules) }

// Modules returns the children in order.
func (s *Sequential[B]) Modules() []Module[B] { return s.modules }

// Forward runs input through every module. An empty Sequential is the
// identity.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := input
	for _, m := range s.modules {
		out = m.Forward(out)
	}
	return out
}

// Parameters concatenates the children's parameters.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

// StateDict prefixes each child's entries with its index: "0.weight".
func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	for i, m := range s.modules {
		Prefixed(sd, strconv.Itoa(i), m.StateDict())
	}
	return sd
}

// LoadStateDict restores every child.
func (s *Sequential[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, m := range s.modules {
		if err := m.LoadStateDict(SubDict(stateDict, strconv.Itoa(i))); err != nil {
			return fmt.Errorf("sequential[%d]: %w", i, err)
		}
	}
	return nil
}

// SetTraining propagates the mode to every child.
func (s *Sequential[B]) SetTraining(training bool) {
	for _, m := range s.modules {
		SetTraining(m, training)
	}
}
