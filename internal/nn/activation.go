package nn

import (
	"fmt"

	"github.com/born-ml/armanet/internal/tensor"
)

// stateless provides the Module plumbing for layers without parameters.
type stateless[B tensor.Backend] struct{}

func (stateless[B]) Parameters() []*Parameter[B] { return nil }

func (stateless[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

func (stateless[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// ReLU applies max(0, x).
type ReLU[B tensor.Backend] struct {
	stateless[B]
}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] { return &ReLU[B]{} }

// Forward applies the activation.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

// LogSoftmax normalizes the last dimension into log-probabilities.
type LogSoftmax[B tensor.Backend] struct {
	stateless[B]
}

// NewLogSoftmax creates a log-softmax over the last dimension.
func NewLogSoftmax[B tensor.Backend]() *LogSoftmax[B] { return &LogSoftmax[B]{} }

// Forward returns log(softmax(input)).
func (l *LogSoftmax[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.LogSoftmax()
}

// GlobalAvgPool2D averages each channel plane of [N, C, H, W] into
// [N, C, 1, 1].
type GlobalAvgPool2D[B tensor.Backend] struct {
	stateless[B]
	backend B
}

// NewGlobalAvgPool2D creates a global average pool.
func NewGlobalAvgPool2D[B tensor.Backend](backend B) *GlobalAvgPool2D[B] {
	return &GlobalAvgPool2D[B]{backend: backend}
}

// Forward pools input.
func (p *GlobalAvgPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("global_avg_pool2d: expected 4D input [N,C,H,W], got %v", shape))
	}
	pooled := tensor.New[float32, B](p.backend.GlobalAvgPool2D(input.Raw()), p.backend)
	return pooled.Reshape(shape[0], shape[1], 1, 1)
}

// Flatten collapses every dimension after the batch dimension.
type Flatten[B tensor.Backend] struct {
	stateless[B]
}

// NewFlatten creates a flatten layer.
func NewFlatten[B tensor.Backend]() *Flatten[B] { return &Flatten[B]{} }

// Forward reshapes [N, ...] to [N, prod(...)].
func (f *Flatten[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Flatten()
}
