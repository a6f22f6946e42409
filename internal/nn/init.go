package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/armanet/internal/tensor"
)

// Xavier draws from U(-sqrt(6/(fanIn+fanOut)), +sqrt(6/(fanIn+fanOut))).
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		//nolint:gosec // weight initialization is not security sensitive
		data[i] = float32((rand.Float64()*2 - 1) * bound)
	}
	return t
}

// KaimingNormal draws from N(0, 2/fanOut), the fan-out mode used for
// convolutions followed by ReLU.
func KaimingNormal[B tensor.Backend](fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	std := float32(math.Sqrt(2.0 / float64(fanOut)))
	t := tensor.Randn[float32](shape, backend)
	data := t.Data()
	for i := range data {
		data[i] *= std
	}
	return t
}

// Zeros is tensor.Zeros for float32 parameters.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones is tensor.Ones for float32 parameters.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}

// Constant fills a float32 tensor with value.
func Constant[B tensor.Backend](shape tensor.Shape, value float32, backend B) *tensor.Tensor[float32, B] {
	return tensor.Full[float32](shape, value, backend)
}
