package nn_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/armanet/internal/autodiff"
	"github.com/born-ml/armanet/internal/backend/cpu"
	"github.com/born-ml/armanet/internal/nn"
	"github.com/born-ml/armanet/internal/tensor"
)

type (
	CPU      = *cpu.CPUBackend
	Autodiff = *autodiff.AutodiffBackend[*cpu.CPUBackend]
)

func ramp(t *testing.T, backend CPU, shape tensor.Shape) *tensor.Tensor[float32, CPU] {
	t.Helper()
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = float32(math.Sin(float64(i)*0.7)) + float32(i%5)*0.1
	}
	x, err := tensor.FromSlice(data, shape, backend)
	require.NoError(t, err)
	return x
}

func TestConv2D_ShapeAndBias(t *testing.T) {
	backend := cpu.New()

	conv := nn.NewConv2D(3, 8, 3, 2, 1, true, backend)
	require.Len(t, conv.Parameters(), 2)
	for i := range conv.Bias().Tensor().Data() {
		conv.Bias().Tensor().Data()[i] = float32(i)
	}

	out := conv.Forward(ramp(t, backend, tensor.Shape{2, 3, 8, 8}))
	assert.Equal(t, tensor.Shape{2, 8, 4, 4}, out.Shape())

	noBias := nn.NewConv2D(3, 8, 3, 2, 1, false, backend)
	require.NoError(t, noBias.LoadStateDict(map[string]*tensor.RawTensor{"weight": conv.Weight().Tensor().Raw()}))
	ref := noBias.Forward(ramp(t, backend, tensor.Shape{2, 3, 8, 8}))
	assert.InDelta(t, ref.At(1, 5, 2, 3)+5, out.At(1, 5, 2, 3), 1e-5)

	assert.Panics(t, func() { conv.Forward(ramp(t, backend, tensor.Shape{2, 4, 8, 8})) })
	assert.Panics(t, func() { nn.NewConv2D(3, 8, 0, 1, 0, false, backend) })
}

func TestLinear_Forward(t *testing.T) {
	backend := cpu.New()
	fc := nn.NewLinear(3, 2, backend)
	copy(fc.Weight().Tensor().Data(), []float32{1, 0, -1, 2, 1, 0})
	copy(fc.Bias().Tensor().Data(), []float32{0.5, -0.5})

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	out := fc.Forward(x)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.InDeltaSlice(t, []float32{-1.5, 3.5, -1.5, 12.5}, out.Data(), 1e-6)
}

func TestBatchNorm2D_TrainAndEval(t *testing.T) {
	backend := cpu.New()
	bn := nn.NewBatchNorm2D(2, backend)
	x := ramp(t, backend, tensor.Shape{4, 2, 3, 3})

	out := bn.Forward(x)
	for c := 0; c < 2; c++ {
		var sum, sq float64
		for n := 0; n < 4; n++ {
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					v := float64(out.At(n, c, i, j))
					sum += v
					sq += v * v
				}
			}
		}
		assert.InDelta(t, 0, sum/36, 1e-5, "channel %d mean", c)
		assert.InDelta(t, 1, sq/36, 1e-3, "channel %d variance", c)
	}

	mean, variance := backend.BatchNormStats(x.Raw())
	for c := 0; c < 2; c++ {
		assert.InDelta(t, 0.1*mean.AsFloat32()[c], bn.RunningMean().Data()[c], 1e-6)
		want := 0.9 + 0.1*variance.AsFloat32()[c]*36/35
		assert.InDelta(t, want, bn.RunningVar().Data()[c], 1e-5)
	}

	// Eval mode must not touch the running statistics.
	bn.SetTraining(false)
	before := append([]float32(nil), bn.RunningMean().Data()...)
	evalOut := bn.Forward(x)
	assert.Equal(t, before, bn.RunningMean().Data())

	rm, rv := bn.RunningMean().Data(), bn.RunningVar().Data()
	want := (x.At(1, 1, 2, 0) - rm[1]) / float32(math.Sqrt(float64(rv[1]+nn.DefaultBatchNormEps)))
	assert.InDelta(t, want, evalOut.At(1, 1, 2, 0), 1e-5)

	sd := bn.StateDict()
	assert.Len(t, sd, 4)
	assert.Len(t, bn.Parameters(), 2)
	assert.Contains(t, sd, "running_var")
}

func TestAutoRegressive2D_Construction(t *testing.T) {
	backend := cpu.New()

	ar := nn.NewAutoRegressive2D(4, 5, 2, 0.25, backend)
	require.NotNil(t, ar.Alpha())
	assert.Equal(t, tensor.Shape{4, 8}, ar.Alpha().Tensor().Shape())
	for _, v := range ar.Alpha().Tensor().Data() {
		assert.Equal(t, float32(0.25), v)
	}

	identity := nn.NewAutoRegressive2D(4, 1, 0, 0.25, backend)
	assert.Nil(t, identity.Alpha())
	assert.Empty(t, identity.Parameters())
	x := ramp(t, backend, tensor.Shape{1, 4, 5, 5})
	assert.Same(t, x, identity.Forward(x))

	assert.Panics(t, func() { nn.NewAutoRegressive2D(4, 4, 0, 0, backend) })
	assert.Panics(t, func() { nn.NewAutoRegressive2D(4, 3, -1, 0, backend) })
}

func TestAutoRegressive2D_ZeroInitIsIdentity(t *testing.T) {
	backend := cpu.New()
	ar := nn.NewAutoRegressive2D(3, 3, 1, 0, backend)
	x := ramp(t, backend, tensor.Shape{2, 3, 6, 7})

	out := ar.Forward(x)
	require.Equal(t, x.Shape(), out.Shape())
	assert.InDeltaSlice(t, x.Data(), out.Data(), 1e-5)
}

func TestARMA2D_ParametersAndStateDict(t *testing.T) {
	backend := cpu.New()

	cfg := nn.DefaultARMA2DConfig(4, 6)
	cfg.WKernelSize, cfg.WPadding, cfg.WStride = 3, 1, 2
	cfg.AInit = 0.1
	layer := nn.NewARMA2D(cfg, backend)

	params := layer.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, 6*4*3*3+6*4, nn.NumParameters(params))

	out := layer.Forward(ramp(t, backend, tensor.Shape{2, 4, 8, 8}))
	assert.Equal(t, tensor.Shape{2, 6, 4, 4}, out.Shape())

	sd := layer.StateDict()
	assert.ElementsMatch(t, []string{"ma.weight", "ar.alpha"}, keys(sd))

	clone := nn.NewARMA2D(cfg, backend)
	require.NoError(t, clone.LoadStateDict(sd))
	assert.Equal(t, layer.MA().Weight().Tensor().Data(), clone.MA().Weight().Tensor().Data())

	delete(sd, "ar.alpha")
	err := clone.LoadStateDict(sd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing alpha")
}

func TestSequential_StateDictPrefixesAndMode(t *testing.T) {
	backend := cpu.New()
	seq := nn.NewSequential[CPU](
		nn.NewConv2D(2, 3, 1, 1, 0, false, backend),
		nn.NewBatchNorm2D(3, backend),
		nn.NewReLU[CPU](),
	)
	assert.Equal(t, 3, seq.Len())
	assert.ElementsMatch(t,
		[]string{"0.weight", "1.weight", "1.bias", "1.running_mean", "1.running_var"},
		keys(seq.StateDict()))

	nn.SetTraining[CPU](seq, false)
	bn, ok := seq.Modules()[1].(*nn.BatchNorm2D[CPU])
	require.True(t, ok)
	assert.False(t, bn.Training())

	bad := seq.StateDict()
	bad["1.weight"] = tensor.MustRaw(tensor.Shape{4}, tensor.Float32, tensor.CPU)
	err := seq.LoadStateDict(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sequential[1]")
}

func TestGlobalAvgPoolAndFlatten(t *testing.T) {
	backend := cpu.New()
	x := ramp(t, backend, tensor.Shape{2, 3, 4, 4})

	pooled := nn.NewGlobalAvgPool2D(backend).Forward(x)
	assert.Equal(t, tensor.Shape{2, 3, 1, 1}, pooled.Shape())

	var sum float32
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			sum += x.At(1, 2, i, j)
		}
	}
	assert.InDelta(t, sum/16, pooled.At(1, 2, 0, 0), 1e-5)

	flat := nn.NewFlatten[CPU]().Forward(pooled)
	assert.Equal(t, tensor.Shape{2, 3}, flat.Shape())
}

func TestNLLLossAndAccuracy(t *testing.T) {
	backend := cpu.New()
	logits, err := tensor.FromSlice([]float32{2, 1, 0, 0, 3, 1}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)
	targets, err := tensor.FromSlice([]int32{0, 2}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	logProbs := nn.NewLogSoftmax[CPU]().Forward(logits)
	loss := nn.NewNLLLoss(backend).Forward(logProbs, targets)

	want := -(float64(logProbs.At(0, 0)) + float64(logProbs.At(1, 2))) / 2
	assert.InDelta(t, want, loss.Item(), 1e-6)
	assert.InDelta(t, 0.5, nn.Accuracy(logProbs, targets), 0)
}

func TestCollectGrads_ARMA2D(t *testing.T) {
	backend := autodiff.New(cpu.New())
	cfg := nn.DefaultARMA2DConfig(2, 3)
	cfg.WKernelSize, cfg.WPadding = 3, 1
	cfg.AInit = 0.2
	cfg.APadding = 1
	layer := nn.NewARMA2D(cfg, backend)

	data := make([]float32, 2*2*5*5)
	for i := range data {
		data[i] = float32(math.Cos(float64(i) * 0.3))
	}
	x, err := tensor.FromSlice(data, tensor.Shape{2, 2, 5, 5}, backend)
	require.NoError(t, err)

	backend.Tape().StartRecording()
	loss := layer.Forward(x).Mul(layer.Forward(x)).Sum()
	grads := autodiff.Backward(loss, backend)

	params := layer.Parameters()
	collected := nn.CollectGrads(params, grads)
	require.Len(t, collected, 2)
	for _, p := range params {
		require.NotNil(t, p.Grad(), p.Name())
		assert.Equal(t, p.Tensor().Shape(), p.Grad().Shape())
		var norm float64
		for _, g := range p.Grad().Data() {
			norm += float64(g * g)
		}
		assert.Positive(t, norm, p.Name())
	}
}

func keys(sd map[string]*tensor.RawTensor) []string {
	out := make([]string, 0, len(sd))
	for k := range sd {
		out = append(out, k)
	}
	return out
}
