package resnet

import (
	"fmt"

	"github.com/born-ml/armanet/internal/nn"
	"github.com/born-ml/armanet/internal/tensor"
)

// named pairs a child module with its state dict prefix.
type named[B tensor.Backend] struct {
	name   string
	module nn.Module[B]
}

func parameters[B tensor.Backend](children []named[B]) []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, c := range children {
		params = append(params, c.module.Parameters()...)
	}
	return params
}

func stateDict[B tensor.Backend](children []named[B]) map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	for _, c := range children {
		nn.Prefixed(sd, c.name, c.module.StateDict())
	}
	return sd
}

func loadStateDict[B tensor.Backend](children []named[B], sd map[string]*tensor.RawTensor) error {
	for _, c := range children {
		if err := c.module.LoadStateDict(nn.SubDict(sd, c.name)); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

func setTraining[B tensor.Backend](children []named[B], training bool) {
	for _, c := range children {
		nn.SetTraining(c.module, training)
	}
}
