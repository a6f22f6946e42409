// Package resnet builds ResNet classifiers whose filters are either plain
// convolutions or ARMA2D layers.
//
//	model, err := resnet.New(resnet.DefaultConfig(), backend)
//	if err != nil {
//	    return err
//	}
//	logProbs := model.Forward(images) // [batch, classes]
package resnet

import (
	"fmt"

	"github.com/born-ml/armanet/internal/nn"
	"github.com/born-ml/armanet/internal/tensor"
)

const stemPlanes = 64

var (
	stagePlanes  = [4]int{64, 128, 256, 512}
	stageStrides = [4]int{1, 2, 2, 2}
)

// ResNet is a stem filter, four stages of residual blocks, global average
// pooling, and a linear classifier with a log-softmax output.
type ResNet[B tensor.Backend] struct {
	cfg     Config
	arch    ArchSpec
	dataset DatasetSpec
	backend B

	conv1  nn.Module[B]
	bn1    *nn.BatchNorm2D[B]
	stages [4]*nn.Sequential[B]
	pool   *nn.GlobalAvgPool2D[B]
	linear *nn.Linear[B]
	head   *nn.LogSoftmax[B]
}

// New builds the model selected by cfg. Unknown architectures and
// datasets fail with ErrUnknownArch and ErrUnknownDataset, bad kernel
// sizes with ErrInvalidConfig.
func New[B tensor.Backend](cfg Config, backend B) (*ResNet[B], error) {
	dataset, err := LookupDataset(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	arch, err := LookupArch(cfg.Arch)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fc := FilterConfig{
		ARMA:        cfg.ARMA,
		WKernelSize: cfg.WKernelSize,
		AKernelSize: cfg.AKernelSize,
		AInit:       cfg.RFInit,
	}
	k, ak := cfg.WKernelSize, cfg.AKernelSize

	m := &ResNet[B]{
		cfg:     cfg,
		arch:    arch,
		dataset: dataset,
		backend: backend,
		conv1: newFilter(fc, filterSpec{
			in: dataset.Channels, out: stemPlanes, kernel: k, stride: 1, padding: k / 2, aKernel: ak, aPad: ak / 2,
		}, backend),
		bn1:  nn.NewBatchNorm2D(stemPlanes, backend),
		pool: nn.NewGlobalAvgPool2D(backend),
		head: nn.NewLogSoftmax[B](),
	}

	inPlanes := stemPlanes
	for i := range m.stages {
		m.stages[i], inPlanes = makeStage(arch.Kind, inPlanes, stagePlanes[i], arch.Layers[i], stageStrides[i], fc, backend)
	}
	m.linear = nn.NewLinear(inPlanes, dataset.Classes, backend)
	return m, nil
}

// makeStage stacks n blocks; only the first one strides. It returns the
// stage and its output channel count.
func makeStage[B tensor.Backend](
	kind BlockKind, inPlanes, planes, n, stride int, cfg FilterConfig, backend B,
) (*nn.Sequential[B], int) {
	stage := nn.NewSequential[B]()
	for i := 0; i < n; i++ {
		s := 1
		if i == 0 {
			s = stride
		}
		block := newBlock(kind, inPlanes, planes, s, cfg, backend)
		stage.Add(block)
		inPlanes = block.OutChannels()
	}
	return stage, inPlanes
}

// Forward maps images [N, C, H, W] to log-probabilities [N, classes].
func (m *ResNet[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 || shape[1] != m.dataset.Channels {
		panic(fmt.Sprintf("resnet: expected input [N, %d, H, W], got %v", m.dataset.Channels, shape))
	}
	out := m.bn1.Forward(m.conv1.Forward(x)).ReLU()
	for _, stage := range m.stages {
		out = stage.Forward(out)
	}
	out = m.pool.Forward(out).Flatten()
	return m.head.Forward(m.linear.Forward(out))
}

func (m *ResNet[B]) children() []named[B] {
	return []named[B]{
		{"conv1", m.conv1},
		{"bn1", m.bn1},
		{"layer1", m.stages[0]},
		{"layer2", m.stages[1]},
		{"layer3", m.stages[2]},
		{"layer4", m.stages[3]},
		{"linear", m.linear},
	}
}

// Parameters returns every trainable parameter in forward order.
func (m *ResNet[B]) Parameters() []*nn.Parameter[B] { return parameters(m.children()) }

// NumParameters counts the trainable scalars.
func (m *ResNet[B]) NumParameters() int { return nn.NumParameters(m.Parameters()) }

// StateDict returns parameters and batch norm buffers keyed like
// "layer2.0.shortcut.1.running_mean".
func (m *ResNet[B]) StateDict() map[string]*tensor.RawTensor { return stateDict(m.children()) }

// LoadStateDict restores a state dict produced by a model of the same
// configuration.
func (m *ResNet[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	if err := loadStateDict(m.children(), sd); err != nil {
		return fmt.Errorf("resnet: %w", err)
	}
	return nil
}

// SetTraining switches every batch norm.
func (m *ResNet[B]) SetTraining(training bool) { setTraining(m.children(), training) }

// Train puts the model in training mode (batch statistics).
func (m *ResNet[B]) Train() { m.SetTraining(true) }

// Eval puts the model in evaluation mode (running statistics).
func (m *ResNet[B]) Eval() { m.SetTraining(false) }

// Training reports whether the model is in training mode.
func (m *ResNet[B]) Training() bool { return m.bn1.Training() }

// Backend returns the backend the model computes on.
func (m *ResNet[B]) Backend() B { return m.backend }

// Config returns the configuration the model was built from.
func (m *ResNet[B]) Config() Config { return m.cfg }

// NumClasses returns the classifier width.
func (m *ResNet[B]) NumClasses() int { return m.dataset.Classes }

// InputChannels returns the expected image channel count.
func (m *ResNet[B]) InputChannels() int { return m.dataset.Channels }

// Blocks returns the blocks of stage i (0..3).
func (m *ResNet[B]) Blocks(i int) []Block[B] {
	mods := m.stages[i].Modules()
	blocks := make([]Block[B], len(mods))
	for j, mod := range mods {
		blocks[j] = mod.(Block[B]) //nolint:forcetypeassert // stages only hold blocks
	}
	return blocks
}
