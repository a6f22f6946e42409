package resnet_test

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/armanet/internal/backend/cpu"
	"github.com/born-ml/armanet/internal/nn"
	"github.com/born-ml/armanet/internal/resnet"
	"github.com/born-ml/armanet/internal/tensor"
)

type CPU = *cpu.CPUBackend

func images(t *testing.T, backend CPU, n, c, size int) *tensor.Tensor[float32, CPU] {
	t.Helper()
	rng := rand.New(rand.NewSource(7)) //nolint:gosec // test data
	x := tensor.RandnWith[float32](rng.Float64, tensor.Shape{n, c, size, size}, backend)
	return x
}

func TestNew_AllArchsAndDatasets(t *testing.T) {
	backend := cpu.New()
	for _, arch := range resnet.Archs() {
		for _, ds := range resnet.Datasets() {
			t.Run(string(arch)+"/"+string(ds), func(t *testing.T) {
				if testing.Short() && (arch == resnet.ResNet101 || arch == resnet.ResNet152) {
					t.Skip("deep model skipped in short mode")
				}
				cfg := resnet.DefaultConfig()
				cfg.Arch, cfg.Dataset = arch, ds
				model, err := resnet.New(cfg, backend)
				require.NoError(t, err)

				spec, err := resnet.LookupDataset(ds)
				require.NoError(t, err)
				assert.Equal(t, spec.Classes, model.NumClasses())

				out := model.Forward(images(t, backend, 2, spec.Channels, 8))
				require.Equal(t, tensor.Shape{2, spec.Classes}, out.Shape())

				for row := 0; row < 2; row++ {
					var sum float64
					for c := 0; c < spec.Classes; c++ {
						sum += math.Exp(float64(out.At(row, c)))
					}
					assert.InDelta(t, 1, sum, 1e-4, "row %d", row)
				}
			})
		}
	}
}

func TestNew_ClassCounts(t *testing.T) {
	want := map[resnet.Dataset]int{
		resnet.MNIST:    10,
		resnet.CIFAR10:  10,
		resnet.CIFAR100: 100,
		resnet.ImageNet: 1000,
	}
	for ds, classes := range want {
		spec, err := resnet.LookupDataset(ds)
		require.NoError(t, err)
		assert.Equal(t, classes, spec.Classes, ds)
	}
}

func TestNew_Errors(t *testing.T) {
	backend := cpu.New()
	tests := []struct {
		name    string
		mutate  func(*resnet.Config)
		wantErr error
	}{
		{"unknown arch", func(c *resnet.Config) { c.Arch = "ResNet20" }, resnet.ErrUnknownArch},
		{"unknown dataset", func(c *resnet.Config) { c.Dataset = "SVHN" }, resnet.ErrUnknownDataset},
		{"lowercase dataset", func(c *resnet.Config) { c.Dataset = "cifar10" }, resnet.ErrUnknownDataset},
		{"even w kernel", func(c *resnet.Config) { c.WKernelSize = 4 }, resnet.ErrInvalidConfig},
		{"zero w kernel", func(c *resnet.Config) { c.WKernelSize = 0 }, resnet.ErrInvalidConfig},
		{"even a kernel", func(c *resnet.Config) { c.AKernelSize = 2 }, resnet.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := resnet.DefaultConfig()
			tt.mutate(&cfg)
			model, err := resnet.New(cfg, backend)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, model)
		})
	}

	// The AR kernel is irrelevant without ARMA filters.
	cfg := resnet.DefaultConfig()
	cfg.ARMA, cfg.AKernelSize = false, 2
	_, err := resnet.New(cfg, backend)
	assert.NoError(t, err)
}

func TestNew_KnownParameterCounts(t *testing.T) {
	backend := cpu.New()
	tests := []struct {
		arch  resnet.Arch
		arma  bool
		count int
	}{
		{resnet.ResNet18, false, 11173962},
		{resnet.ResNet18, true, 11173962 + 19200},
		{resnet.ResNet50, false, 23520842},
		{resnet.ResNet50, true, 23520842 + 106240},
	}
	for _, tt := range tests {
		cfg := resnet.DefaultConfig()
		cfg.Arch, cfg.ARMA = tt.arch, tt.arma
		model, err := resnet.New(cfg, backend)
		require.NoError(t, err)
		assert.Equal(t, tt.count, model.NumParameters(), "%s arma=%v", tt.arch, tt.arma)
	}
}

func TestNew_ARMAChangesParametersNotShape(t *testing.T) {
	backend := cpu.New()
	cfg := resnet.DefaultConfig()
	cfg.Dataset = resnet.CIFAR100

	withARMA, err := resnet.New(cfg, backend)
	require.NoError(t, err)
	cfg.ARMA = false
	plain, err := resnet.New(cfg, backend)
	require.NoError(t, err)

	assert.NotEqual(t, withARMA.NumParameters(), plain.NumParameters())

	x := images(t, backend, 3, 3, 8)
	assert.Equal(t, plain.Forward(x).Shape(), withARMA.Forward(x).Shape())
}

func TestNew_MNISTStemTakesOneChannel(t *testing.T) {
	backend := cpu.New()
	cfg := resnet.DefaultConfig()
	cfg.Dataset = resnet.MNIST
	model, err := resnet.New(cfg, backend)
	require.NoError(t, err)

	assert.Equal(t, 1, model.InputChannels())
	assert.Equal(t, tensor.Shape{64, 1, 3, 3}, model.StateDict()["conv1.ma.weight"].Shape())
	assert.Panics(t, func() { model.Forward(images(t, backend, 1, 3, 8)) })
}

func TestBlocks_ShortcutPresence(t *testing.T) {
	backend := cpu.New()
	plain := resnet.FilterConfig{WKernelSize: 3, AKernelSize: 3}
	arma := resnet.FilterConfig{ARMA: true, WKernelSize: 3, AKernelSize: 3}

	bn := func(c int) int { return 2 * c }
	tests := []struct {
		name     string
		block    func(resnet.FilterConfig) resnet.Block[CPU]
		shortcut bool
		// parameter counts without ARMA, split into body and projection.
		body, proj int
	}{
		{
			name:     "basic identity",
			block:    basicBlock(backend, 64, 64, 1),
			shortcut: false,
			body:     2*64*64*9 + 2*bn(64),
		},
		{
			name:     "basic channel change",
			block:    basicBlock(backend, 64, 128, 1),
			shortcut: true,
			body:     64*128*9 + 128*128*9 + 2*bn(128),
			proj:     64*128 + bn(128),
		},
		{
			name:     "basic stride",
			block:    basicBlock(backend, 64, 64, 2),
			shortcut: true,
			body:     2*64*64*9 + 2*bn(64),
			proj:     64*64 + bn(64),
		},
		{
			name:     "bottleneck identity",
			block:    bottleneck(backend, 256, 64, 1),
			shortcut: false,
			body:     256*64 + 64*64*9 + 64*256 + 2*bn(64) + bn(256),
		},
		{
			name:     "bottleneck expansion",
			block:    bottleneck(backend, 64, 64, 1),
			shortcut: true,
			body:     64*64 + 64*64*9 + 64*256 + 2*bn(64) + bn(256),
			proj:     64*256 + bn(256),
		},
		{
			name:     "bottleneck stride",
			block:    bottleneck(backend, 256, 64, 2),
			shortcut: true,
			body:     256*64 + 64*64*9 + 64*256 + 2*bn(64) + bn(256),
			proj:     256*256 + bn(256),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.block(plain)
			assert.Equal(t, tt.shortcut, b.HasShortcut())
			assert.Equal(t, tt.body+tt.proj, nn.NumParameters(b.Parameters()))

			a := tt.block(arma)
			assert.Equal(t, tt.shortcut, a.HasShortcut())
			assert.Greater(t, nn.NumParameters(a.Parameters()), tt.body+tt.proj)
		})
	}
}

func basicBlock(backend CPU, in, planes, stride int) func(resnet.FilterConfig) resnet.Block[CPU] {
	return func(cfg resnet.FilterConfig) resnet.Block[CPU] {
		return resnet.NewBasicBlock(in, planes, stride, cfg, backend)
	}
}

func bottleneck(backend CPU, in, planes, stride int) func(resnet.FilterConfig) resnet.Block[CPU] {
	return func(cfg resnet.FilterConfig) resnet.Block[CPU] {
		return resnet.NewBottleneck(in, planes, stride, cfg, backend)
	}
}

func TestBlocks_ForwardShapes(t *testing.T) {
	backend := cpu.New()
	cfg := resnet.FilterConfig{ARMA: true, WKernelSize: 3, AKernelSize: 3, AInit: 0.1}
	x := images(t, backend, 2, 16, 6)

	out := resnet.NewBasicBlock(16, 32, 2, cfg, backend).Forward(x)
	assert.Equal(t, tensor.Shape{2, 32, 3, 3}, out.Shape())

	out = resnet.NewBottleneck(16, 8, 1, cfg, backend).Forward(x)
	assert.Equal(t, tensor.Shape{2, 32, 6, 6}, out.Shape())
	for _, v := range out.Data() {
		require.GreaterOrEqual(t, v, float32(0))
	}
}

func TestResNet_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	cfg := resnet.DefaultConfig()
	cfg.RFInit = 0.3

	src, err := resnet.New(cfg, backend)
	require.NoError(t, err)
	dst, err := resnet.New(cfg, backend)
	require.NoError(t, err)

	x := images(t, backend, 2, 3, 8)
	src.Train()
	_ = src.Forward(x) // moves the running statistics
	src.Eval()
	dst.Eval()

	sd := src.StateDict()
	assert.Contains(t, sd, "layer2.0.shortcut.1.running_mean")
	assert.Contains(t, sd, "layer1.1.conv2.ar.alpha")
	assert.Contains(t, sd, "linear.weight")

	require.NoError(t, dst.LoadStateDict(sd))
	assert.InDeltaSlice(t, src.Forward(x).Data(), dst.Forward(x).Data(), 1e-5)

	cfg.ARMA = false
	plain, err := resnet.New(cfg, backend)
	require.NoError(t, err)
	err = plain.LoadStateDict(sd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conv1")
}

func TestResNet_Summary(t *testing.T) {
	backend := cpu.New()
	model, err := resnet.New(resnet.DefaultConfig(), backend)
	require.NoError(t, err)

	rows := model.Summary()
	require.Len(t, rows, 6)

	total := 0
	for _, r := range rows {
		total += r.Parameters
	}
	assert.Equal(t, model.NumParameters(), total)

	assert.Equal(t, "layer1", rows[1].Name)
	assert.Equal(t, 0, rows[1].Shortcuts)
	assert.Equal(t, 1, rows[2].Shortcuts)
	assert.Equal(t, 512, rows[4].OutChannels)
	assert.Equal(t, 10, rows[5].OutChannels)

	var buf bytes.Buffer
	require.NoError(t, resnet.WriteSummary(&buf, model))
	assert.Contains(t, buf.String(), "layer4")
	assert.Contains(t, buf.String(), "ResNet18 BasicBlock/CIFAR10")
}
