package resnet

import (
	"fmt"

	"github.com/born-ml/armanet/internal/nn"
	"github.com/born-ml/armanet/internal/tensor"
)

// BlockKind selects the residual block of a ResNet.
type BlockKind int

// Block kinds.
const (
	Basic BlockKind = iota
	Bottleneck
)

// Expansion is the ratio of a block's output channels to its width.
func (k BlockKind) Expansion() int {
	if k == Bottleneck {
		return 4
	}
	return 1
}

func (k BlockKind) String() string {
	switch k {
	case Basic:
		return "BasicBlock"
	case Bottleneck:
		return "Bottleneck"
	default:
		return fmt.Sprintf("BlockKind(%d)", int(k))
	}
}

// Block is a residual unit: relu(F(x) + shortcut(x)).
type Block[B tensor.Backend] interface {
	nn.Module[B]
	nn.Trainable

	// HasShortcut reports whether the skip path carries a projection.
	HasShortcut() bool

	// OutChannels is the channel count of the block output.
	OutChannels() int
}

// FilterConfig is shared by every filter layer of a model.
type FilterConfig struct {
	ARMA        bool    // ARMA2D layers instead of plain convolutions
	WKernelSize int     // spatial kernel of the k x k filters
	AKernelSize int     // AR kernel of the ARMA2D layers
	AInit       float32 // initial AR coefficient logit
}

// filterSpec is the geometry of one filter position. With ARMA off the
// AR fields are ignored.
type filterSpec struct {
	in, out        int
	kernel, stride int
	padding        int
	aKernel, aPad  int
}

// newFilter builds a bias-free convolution or an ARMA2D layer.
func newFilter[B tensor.Backend](cfg FilterConfig, spec filterSpec, backend B) nn.Module[B] {
	if !cfg.ARMA {
		return nn.NewConv2D(spec.in, spec.out, spec.kernel, spec.stride, spec.padding, false, backend)
	}
	return nn.NewARMA2D(nn.ARMA2DConfig{
		InChannels:  spec.in,
		OutChannels: spec.out,
		WKernelSize: spec.kernel,
		WStride:     spec.stride,
		WPadding:    spec.padding,
		AInit:       cfg.AInit,
		AKernelSize: spec.aKernel,
		APadding:    spec.aPad,
	}, backend)
}

// newShortcut returns the projection for a block, or an empty Sequential
// (the identity) when stride is 1 and the channel counts already match.
func newShortcut[B tensor.Backend](cfg FilterConfig, in, out, stride, aKernel, aPad int, backend B) *nn.Sequential[B] {
	if stride == 1 && in == out {
		return nn.NewSequential[B]()
	}
	proj := filterSpec{in: in, out: out, kernel: 1, stride: stride, aKernel: aKernel, aPad: aPad}
	return nn.NewSequential(
		newFilter(cfg, proj, backend),
		nn.Module[B](nn.NewBatchNorm2D(out, backend)),
	)
}

// BasicBlock is two k x k filters with batch norm and a residual add.
// Expansion 1.
//
//	conv1 -> bn1 -> relu -> conv2 -> bn2 -> (+ shortcut) -> relu
type BasicBlock[B tensor.Backend] struct {
	conv1    nn.Module[B]
	bn1      *nn.BatchNorm2D[B]
	conv2    nn.Module[B]
	bn2      *nn.BatchNorm2D[B]
	shortcut *nn.Sequential[B]

	out int
}

// NewBasicBlock creates a block mapping inPlanes to planes channels. The
// first filter and the shortcut carry the stride.
func NewBasicBlock[B tensor.Backend](inPlanes, planes, stride int, cfg FilterConfig, backend B) *BasicBlock[B] {
	k, ak := cfg.WKernelSize, cfg.AKernelSize
	return &BasicBlock[B]{
		conv1: newFilter(cfg, filterSpec{
			in: inPlanes, out: planes, kernel: k, stride: stride, padding: k / 2, aKernel: ak, aPad: ak / 2,
		}, backend),
		bn1: nn.NewBatchNorm2D(planes, backend),
		conv2: newFilter(cfg, filterSpec{
			in: planes, out: planes, kernel: k, stride: 1, padding: k / 2, aKernel: ak, aPad: ak / 2,
		}, backend),
		bn2:      nn.NewBatchNorm2D(planes, backend),
		shortcut: newShortcut(cfg, inPlanes, planes, stride, ak, ak/2, backend),
		out:      planes,
	}
}

// Forward runs the block.
func (b *BasicBlock[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := b.bn1.Forward(b.conv1.Forward(x)).ReLU()
	out = b.bn2.Forward(b.conv2.Forward(out))
	return out.Add(b.shortcut.Forward(x)).ReLU()
}

func (b *BasicBlock[B]) children() []named[B] {
	return []named[B]{
		{"conv1", b.conv1}, {"bn1", b.bn1},
		{"conv2", b.conv2}, {"bn2", b.bn2},
		{"shortcut", b.shortcut},
	}
}

// Parameters returns the parameters of every layer in forward order.
func (b *BasicBlock[B]) Parameters() []*nn.Parameter[B] { return parameters(b.children()) }

// StateDict returns the layer state under conv1/bn1/conv2/bn2/shortcut.
func (b *BasicBlock[B]) StateDict() map[string]*tensor.RawTensor { return stateDict(b.children()) }

// LoadStateDict restores every layer.
func (b *BasicBlock[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	return loadStateDict(b.children(), sd)
}

// SetTraining switches the batch norms.
func (b *BasicBlock[B]) SetTraining(training bool) { setTraining(b.children(), training) }

// HasShortcut reports whether the skip path is a projection.
func (b *BasicBlock[B]) HasShortcut() bool { return b.shortcut.Len() > 0 }

// OutChannels returns planes.
func (b *BasicBlock[B]) OutChannels() int { return b.out }

// BottleneckBlock reduces channels with a 1x1 filter, applies the k x k
// filter at the reduced width, and expands by 4 with another 1x1 filter.
//
//	conv1 -> bn1 -> relu -> conv2 -> bn2 -> relu -> conv3 -> bn3
//	      -> (+ shortcut) -> relu
type BottleneckBlock[B tensor.Backend] struct {
	conv1    nn.Module[B]
	bn1      *nn.BatchNorm2D[B]
	conv2    nn.Module[B]
	bn2      *nn.BatchNorm2D[B]
	conv3    nn.Module[B]
	bn3      *nn.BatchNorm2D[B]
	shortcut *nn.Sequential[B]

	out int
}

// NewBottleneck creates a block mapping inPlanes to 4*planes channels. The
// k x k filter and the shortcut carry the stride.
//
// With ARMA filters the reducing 1x1 layer pads its AR solve by the full
// AR kernel size; the expanding layer and the shortcut use the default
// 3-tap, unpadded AR term.
func NewBottleneck[B tensor.Backend](inPlanes, planes, stride int, cfg FilterConfig, backend B) *BottleneckBlock[B] {
	k, ak := cfg.WKernelSize, cfg.AKernelSize
	out := planes * Bottleneck.Expansion()
	return &BottleneckBlock[B]{
		conv1: newFilter(cfg, filterSpec{
			in: inPlanes, out: planes, kernel: 1, stride: 1, aKernel: ak, aPad: ak,
		}, backend),
		bn1: nn.NewBatchNorm2D(planes, backend),
		conv2: newFilter(cfg, filterSpec{
			in: planes, out: planes, kernel: k, stride: stride, padding: k / 2, aKernel: ak, aPad: ak / 2,
		}, backend),
		bn2: nn.NewBatchNorm2D(planes, backend),
		conv3: newFilter(cfg, filterSpec{
			in: planes, out: out, kernel: 1, stride: 1, aKernel: nn.DefaultARKernelSize, aPad: nn.DefaultARPadding,
		}, backend),
		bn3:      nn.NewBatchNorm2D(out, backend),
		shortcut: newShortcut(cfg, inPlanes, out, stride, nn.DefaultARKernelSize, nn.DefaultARPadding, backend),
		out:      out,
	}
}

// Forward runs the block.
func (b *BottleneckBlock[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := b.bn1.Forward(b.conv1.Forward(x)).ReLU()
	out = b.bn2.Forward(b.conv2.Forward(out)).ReLU()
	out = b.bn3.Forward(b.conv3.Forward(out))
	return out.Add(b.shortcut.Forward(x)).ReLU()
}

func (b *BottleneckBlock[B]) children() []named[B] {
	return []named[B]{
		{"conv1", b.conv1}, {"bn1", b.bn1},
		{"conv2", b.conv2}, {"bn2", b.bn2},
		{"conv3", b.conv3}, {"bn3", b.bn3},
		{"shortcut", b.shortcut},
	}
}

// Parameters returns the parameters of every layer in forward order.
func (b *BottleneckBlock[B]) Parameters() []*nn.Parameter[B] { return parameters(b.children()) }

// StateDict returns the layer state under conv1..bn3/shortcut.
func (b *BottleneckBlock[B]) StateDict() map[string]*tensor.RawTensor { return stateDict(b.children()) }

// LoadStateDict restores every layer.
func (b *BottleneckBlock[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	return loadStateDict(b.children(), sd)
}

// SetTraining switches the batch norms.
func (b *BottleneckBlock[B]) SetTraining(training bool) { setTraining(b.children(), training) }

// HasShortcut reports whether the skip path is a projection.
func (b *BottleneckBlock[B]) HasShortcut() bool { return b.shortcut.Len() > 0 }

// OutChannels returns 4*planes.
func (b *BottleneckBlock[B]) OutChannels() int { return b.out }

// newBlock dispatches on kind.
func newBlock[B tensor.Backend](kind BlockKind, inPlanes, planes, stride int, cfg FilterConfig, backend B) Block[B] {
	if kind == Bottleneck {
		return NewBottleneck(inPlanes, planes, stride, cfg, backend)
	}
	return NewBasicBlock(inPlanes, planes, stride, cfg, backend)
}
