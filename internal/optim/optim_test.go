package optim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/armanet/internal/autodiff"
	"github.com/born-ml/armanet/internal/backend/cpu"
	"github.com/born-ml/armanet/internal/nn"
	"github.com/born-ml/armanet/internal/optim"
	"github.com/born-ml/armanet/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func param(t *testing.T, backend Backend, values ...float32) *nn.Parameter[Backend] {
	t.Helper()
	x, err := tensor.FromSlice(values, tensor.Shape{len(values)}, backend)
	require.NoError(t, err)
	return nn.NewParameter("x", x)
}

func gradOf(p *nn.Parameter[Backend], values ...float32) map[*tensor.RawTensor]*tensor.RawTensor {
	g := tensor.MustRaw(tensor.Shape{len(values)}, tensor.Float32, tensor.CPU)
	copy(g.AsFloat32(), values)
	return map[*tensor.RawTensor]*tensor.RawTensor{p.Tensor().Raw(): g}
}

func TestSGD_Update(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 2)
	opt := optim.NewSGD([]*nn.Parameter[Backend]{p}, optim.SGDConfig{LR: 0.1}, backend)

	opt.Step(gradOf(p, 1))
	assert.InDelta(t, 1.9, p.Tensor().Data()[0], 1e-6)
	assert.Empty(t, opt.StateDict())
}

func TestSGD_MomentumAndWeightDecay(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 1)
	opt := optim.NewSGD([]*nn.Parameter[Backend]{p}, optim.SGDConfig{LR: 0.1, Momentum: 0.9, WeightDecay: 0.5}, backend)

	// v1 = 1 + 0.5*1 = 1.5, x1 = 1 - 0.15 = 0.85
	opt.Step(gradOf(p, 1))
	assert.InDelta(t, 0.85, p.Tensor().Data()[0], 1e-6)

	// v2 = 0.9*1.5 + 1 + 0.5*0.85 = 2.775, x2 = 0.85 - 0.2775
	opt.Step(gradOf(p, 1))
	assert.InDelta(t, 0.5725, p.Tensor().Data()[0], 1e-6)

	sd := opt.StateDict()
	require.Contains(t, sd, "velocity.0")
	assert.InDelta(t, 2.775, sd["velocity.0"].AsFloat32()[0], 1e-6)
}

func TestSGD_SkipsParametersWithoutGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a, b := param(t, backend, 1), param(t, backend, 1)
	opt := optim.NewSGD([]*nn.Parameter[Backend]{a, b}, optim.SGDConfig{LR: 1}, backend)

	opt.Step(gradOf(a, 1))
	assert.InDelta(t, 0, a.Tensor().Data()[0], 1e-6)
	assert.InDelta(t, 1, b.Tensor().Data()[0], 1e-6)
}

func TestSGD_StateDictRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 1, 2)
	cfg := optim.SGDConfig{LR: 0.1, Momentum: 0.9}
	opt := optim.NewSGD([]*nn.Parameter[Backend]{p}, cfg, backend)
	opt.Step(gradOf(p, 1, -1))

	q := param(t, backend, p.Tensor().Data()...)
	restored := optim.NewSGD([]*nn.Parameter[Backend]{q}, cfg, backend)
	require.NoError(t, restored.LoadStateDict(opt.StateDict()))

	opt.Step(gradOf(p, 0.5, 0.5))
	restored.Step(gradOf(q, 0.5, 0.5))
	assert.InDeltaSlice(t, p.Tensor().Data(), q.Tensor().Data(), 1e-6)

	bad := map[string]*tensor.RawTensor{"velocity.0": tensor.MustRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)}
	assert.Error(t, restored.LoadStateDict(bad))
}

func TestAdam_FirstStepMovesByLR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, backend, 1, -1)
	opt := optim.NewAdam([]*nn.Parameter[Backend]{p}, optim.AdamConfig{LR: 0.01}, backend)

	// With bias correction the first update is lr * sign(grad).
	opt.Step(gradOf(p, 3, -0.2))
	assert.InDelta(t, 0.99, p.Tensor().Data()[0], 1e-5)
	assert.InDelta(t, -0.99, p.Tensor().Data()[1], 1e-5)
	assert.Equal(t, 1, opt.Timestep())

	restored := optim.NewAdam([]*nn.Parameter[Backend]{p}, optim.AdamConfig{LR: 0.01}, backend)
	require.NoError(t, restored.LoadStateDict(opt.StateDict()))
	assert.Equal(t, 1, restored.Timestep())
}

func TestNew_ByName(t *testing.T) {
	backend := autodiff.New(cpu.New())
	params := []*nn.Parameter[Backend]{param(t, backend, 1)}

	opt, err := optim.New(params, optim.Config{Name: "SGD", LR: 0.2}, backend)
	require.NoError(t, err)
	assert.IsType(t, &optim.SGD[Backend]{}, opt)
	assert.InDelta(t, 0.2, opt.LR(), 1e-7)

	opt, err = optim.New(params, optim.Config{Name: "adam"}, backend)
	require.NoError(t, err)
	assert.IsType(t, &optim.Adam[Backend]{}, opt)

	_, err = optim.New(params, optim.Config{Name: "lbfgs"}, backend)
	assert.ErrorIs(t, err, optim.ErrUnknownOptimizer)
}

// Fitting a linear model with autodiff gradients must drive the loss down.
func TestSGD_ReducesLoss(t *testing.T) {
	backend := autodiff.New(cpu.New())
	fc := nn.NewLinear(2, 3, backend)
	criterion := nn.NewNLLLoss(backend)
	opt := optim.NewSGD(fc.Parameters(), optim.SGDConfig{LR: 0.5, Momentum: 0.5}, backend)

	x, err := tensor.FromSlice([]float32{1, 0, 0, 1, -1, -1, 1, 1}, tensor.Shape{4, 2}, backend)
	require.NoError(t, err)
	y, err := tensor.FromSlice([]int32{0, 1, 2, 0}, tensor.Shape{4}, backend)
	require.NoError(t, err)

	step := func() float32 {
		backend.Tape().Clear()
		backend.Tape().StartRecording()
		loss := criterion.Forward(fc.Forward(x).LogSoftmax(), y)
		grads := autodiff.Backward(loss, backend)
		opt.Step(grads)
		opt.ZeroGrad()
		return loss.Item()
	}

	first := step()
	var last float32
	for i := 0; i < 50; i++ {
		last = step()
	}
	assert.Less(t, last, first/2)
	assert.False(t, math.IsNaN(float64(last)))
}

func TestSchedules(t *testing.T) {
	assert.Equal(t, float32(0.1), optim.ConstantLR{Base: 0.1}.LR(99))

	step := optim.StepLR{Base: 1, StepSize: 10, Gamma: 0.1}
	assert.InDelta(t, 1, step.LR(9), 1e-7)
	assert.InDelta(t, 0.1, step.LR(10), 1e-7)
	assert.InDelta(t, 0.01, step.LR(25), 1e-7)

	cos := optim.CosineLR{Base: 1, Min: 0, Epochs: 10}
	assert.InDelta(t, 1, cos.LR(0), 1e-7)
	assert.InDelta(t, 0.5, cos.LR(5), 1e-6)
	assert.Equal(t, float32(0), cos.LR(10))

	longer := cos.WithEpochs(20)
	assert.Equal(t, optim.CosineLR{Base: 1, Min: 0, Epochs: 20}, longer)
	assert.InDelta(t, 0.5, longer.LR(10), 1e-6)
	assert.Greater(t, longer.LR(19), float32(0))
}
