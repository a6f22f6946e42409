package ops

import "github.com/born-ml/armanet/internal/tensor"

// reduceBroadcast sums grad down to targetShape, undoing broadcasting.
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}
	if len(targetShape) == 0 {
		return backend.Sum(grad)
	}

	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}
	for i, d := range targetShape {
		if d == 1 && result.Shape()[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}
	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

func binaryInputs(a, b *tensor.RawTensor) []*tensor.RawTensor {
	return []*tensor.RawTensor{a, b}
}
