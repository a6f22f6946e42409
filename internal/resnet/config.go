package resnet

import (
	"errors"
	"fmt"
)

// Lookup and validation errors returned by New.
var (
	ErrUnknownArch    = errors.New("unknown model architecture")
	ErrUnknownDataset = errors.New("unknown dataset")
	ErrInvalidConfig  = errors.New("invalid model config")
)

// Arch names a ResNet depth.
type Arch string

// Supported architectures.
const (
	ResNet18  Arch = "ResNet18"
	ResNet34  Arch = "ResNet34"
	ResNet50  Arch = "ResNet50"
	ResNet101 Arch = "ResNet101"
	ResNet152 Arch = "ResNet152"
)

// Dataset names a benchmark and fixes the classifier width.
type Dataset string

// Supported datasets.
const (
	MNIST    Dataset = "MNIST"
	CIFAR10  Dataset = "CIFAR10"
	CIFAR100 Dataset = "CIFAR100"
	ImageNet Dataset = "ImageNet"
)

// ArchSpec is the block type and per-stage depth of an architecture.
type ArchSpec struct {
	Kind   BlockKind
	Layers [4]int
}

// DatasetSpec describes the images and labels of a dataset.
type DatasetSpec struct {
	Classes   int
	Channels  int
	ImageSize int
}

var archs = map[Arch]ArchSpec{
	ResNet18:  {Kind: Basic, Layers: [4]int{2, 2, 2, 2}},
	ResNet34:  {Kind: Basic, Layers: [4]int{3, 4, 6, 3}},
	ResNet50:  {Kind: Bottleneck, Layers: [4]int{3, 4, 6, 3}},
	ResNet101: {Kind: Bottleneck, Layers: [4]int{3, 4, 23, 3}},
	ResNet152: {Kind: Bottleneck, Layers: [4]int{3, 8, 36, 3}},
}

var datasets = map[Dataset]DatasetSpec{
	MNIST:    {Classes: 10, Channels: 1, ImageSize: 28},
	CIFAR10:  {Classes: 10, Channels: 3, ImageSize: 32},
	CIFAR100: {Classes: 100, Channels: 3, ImageSize: 32},
	ImageNet: {Classes: 1000, Channels: 3, ImageSize: 224},
}

// Archs lists the supported architectures from shallowest to deepest.
func Archs() []Arch {
	return []Arch{ResNet18, ResNet34, ResNet50, ResNet101, ResNet152}
}

// Datasets lists the supported datasets.
func Datasets() []Dataset {
	return []Dataset{MNIST, CIFAR10, CIFAR100, ImageNet}
}

// LookupArch returns the spec of arch or ErrUnknownArch.
func LookupArch(arch Arch) (ArchSpec, error) {
	spec, ok := archs[arch]
	if !ok {
		return ArchSpec{}, fmt.Errorf("%w: %q", ErrUnknownArch, arch)
	}
	return spec, nil
}

// LookupDataset returns the spec of dataset or ErrUnknownDataset.
func LookupDataset(dataset Dataset) (DatasetSpec, error) {
	spec, ok := datasets[dataset]
	if !ok {
		return DatasetSpec{}, fmt.Errorf("%w: %q", ErrUnknownDataset, dataset)
	}
	return spec, nil
}

// Config selects a model.
type Config struct {
	Arch    Arch
	ARMA    bool // ARMA2D filters instead of plain convolutions
	Dataset Dataset

	RFInit      float32 // initial AR coefficient logit
	WKernelSize int     // convolution kernel size
	AKernelSize int     // AR kernel size
}

// DefaultConfig returns an ARMA ResNet18 for CIFAR-10 with 3x3 kernels.
func DefaultConfig() Config {
	return Config{
		Arch:        ResNet18,
		ARMA:        true,
		Dataset:     CIFAR10,
		RFInit:      0,
		WKernelSize: 3,
		AKernelSize: 3,
	}
}

// Validate checks the kernel sizes. Architecture and dataset are checked
// by New.
func (c Config) Validate() error {
	if c.WKernelSize <= 0 || c.WKernelSize%2 == 0 {
		return fmt.Errorf("%w: w kernel size must be odd and positive, got %d", ErrInvalidConfig, c.WKernelSize)
	}
	if c.ARMA && (c.AKernelSize <= 0 || c.AKernelSize%2 == 0) {
		return fmt.Errorf("%w: a kernel size must be odd and positive, got %d", ErrInvalidConfig, c.AKernelSize)
	}
	return nil
}
