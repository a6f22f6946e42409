package autodiff

import (
	"fmt"

	"github.com/born-ml/armanet/internal/tensor"
)

// BackwardCapable is a backend that owns a gradient tape.
type BackwardCapable interface {
	tensor.Backend
	GetTape() *GradientTape
}

// GetTape returns the backend's tape.
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward seeds t with ones and backpropagates through the tape.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}
	if t.DType() != tensor.Float32 {
		panic(fmt.Sprintf("backward: unsupported dtype %s (float32 only)", t.DType()))
	}

	seed := tensor.MustRaw(t.Shape(), tensor.Float32, backend.Device())
	for i := range seed.AsFloat32() {
		seed.AsFloat32()[i] = 1
	}
	return tape.Backward(seed, backend)
}
