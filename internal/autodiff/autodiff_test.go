package autodiff_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/armanet/internal/autodiff"
	"github.com/born-ml/armanet/internal/backend/cpu"
	"github.com/born-ml/armanet/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func fromSlice(t *testing.T, backend Backend, data []float32, shape tensor.Shape) *tensor.Tensor[float32, Backend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, backend)
	require.NoError(t, err)
	return x
}

func TestTape_RecordsOnlyWhileRecording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	x := fromSlice(t, backend, []float32{1, 2}, tensor.Shape{2})
	_ = x.Add(x)
	assert.Equal(t, 0, tape.NumOps())

	tape.StartRecording()
	_ = x.Add(x).Mul(x)
	assert.Equal(t, 2, tape.NumOps())

	tape.StopRecording()
	_ = x.Add(x)
	assert.Equal(t, 2, tape.NumOps())

	tape.Clear()
	assert.Equal(t, 0, tape.NumOps())
}

func TestBackward_SharedInputAccumulates(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// y = sum(x*x + x) → dy/dx = 2x + 1
	x := fromSlice(t, backend, []float32{1, -2, 3}, tensor.Shape{3})
	y := x.Mul(x).Add(x).Sum()

	grads := autodiff.Backward(y, backend)
	assert.Equal(t, []float32{3, -3, 7}, grads[x.Raw()].AsFloat32())
}

func TestBackward_BroadcastBias(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x := fromSlice(t, backend, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	w := fromSlice(t, backend, []float32{1, 0, 0, 1, 1, 1}, tensor.Shape{2, 3})
	bias := fromSlice(t, backend, []float32{0.5, 0.5}, tensor.Shape{1, 2})

	// out = x @ wᵀ + bias, loss = sum(out)
	out := x.MatMul(w.T()).Add(bias)
	require.Equal(t, tensor.Shape{2, 2}, out.Shape())

	grads := autodiff.Backward(out.Sum(), backend)
	assert.Equal(t, []float32{2, 2}, grads[bias.Raw()].AsFloat32())
	assert.Equal(t, []float32{5, 7, 9, 5, 7, 9}, grads[w.Raw()].AsFloat32())
	assert.Equal(t, []float32{2, 1, 1, 2, 1, 1}, grads[x.Raw()].AsFloat32())
}

func TestBackward_ReLUMasks(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x := fromSlice(t, backend, []float32{-1, 2, 0, 3}, tensor.Shape{4})
	grads := autodiff.Backward(x.ReLU().Sum(), backend)
	assert.Equal(t, []float32{0, 1, 0, 1}, grads[x.Raw()].AsFloat32())
}

func TestBackward_NoOpsPanics(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := fromSlice(t, backend, []float32{1}, tensor.Shape{1})
	assert.Panics(t, func() { autodiff.Backward(x, backend) })
}

// TestBackward_ConvNetGradientCheck compares tape gradients of a small
// conv → batchnorm → AR → pool → log-softmax → NLL graph against
// central differences.
func TestBackward_ConvNetGradientCheck(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(11))
	randn := func(shape tensor.Shape) *tensor.Tensor[float32, Backend] {
		return tensor.RandnWith[float32](rng.Float64, shape, backend)
	}

	x := randn(tensor.Shape{2, 2, 5, 5})
	kernel := randn(tensor.Shape{3, 2, 3, 3})
	alpha := randn(tensor.Shape{3, 4})
	gamma := tensor.Ones[float32](tensor.Shape{3}, backend)
	beta := tensor.Zeros[float32](tensor.Shape{3}, backend)
	targets, err := tensor.FromSlice([]int32{2, 0}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	forward := func() *tensor.RawTensor {
		h := backend.Conv2D(x.Raw(), kernel.Raw(), 1, 1)
		mean, variance := backend.BatchNormStats(h)
		h = backend.BatchNorm2D(h, gamma.Raw(), beta.Raw(), mean, variance, 1e-5, true)
		h = backend.AutoRegressive2D(h, alpha.Raw(), 3, 1)
		h = backend.GlobalAvgPool2D(h)
		h = backend.LogSoftmax(h)
		return backend.NLLLoss(h, targets.Raw())
	}

	tape := backend.Tape()
	tape.StartRecording()
	loss := tensor.New[float32](forward(), backend)
	grads := autodiff.Backward(loss, backend)
	tape.StopRecording()

	for name, p := range map[string]*tensor.Tensor[float32, Backend]{
		"kernel": kernel, "alpha": alpha, "gamma": gamma, "beta": beta, "x": x,
	} {
		g, ok := grads[p.Raw()]
		require.True(t, ok, name)

		data := p.Data()
		for i := range data {
			const h = 1e-2
			orig := data[i]
			data[i] = orig + h
			plus := float64(forward().AsFloat32()[0])
			data[i] = orig - h
			minus := float64(forward().AsFloat32()[0])
			data[i] = orig

			want := (plus - minus) / (2 * h)
			got := float64(g.AsFloat32()[i])
			assert.InDelta(t, want, got, 2e-2*(1+math.Abs(want)), "%s[%d]", name, i)
		}
	}
}
