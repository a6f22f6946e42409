// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package resnet builds ResNet18-152 classifiers with optional ARMA2D
// filters.
//
//	backend := cpu.New()
//	model, err := resnet.New(resnet.Config{
//	    Arch:        resnet.ResNet50,
//	    ARMA:        true,
//	    Dataset:     resnet.CIFAR100,
//	    WKernelSize: 3,
//	    AKernelSize: 3,
//	}, backend)
//	logProbs := model.Forward(images) // [batch, 100]
package resnet

import (
	"github.com/born-ml/armanet/internal/resnet"
	"github.com/born-ml/armanet/internal/tensor"
)

// Errors returned by New.
var (
	ErrUnknownArch    = resnet.ErrUnknownArch
	ErrUnknownDataset = resnet.ErrUnknownDataset
	ErrInvalidConfig  = resnet.ErrInvalidConfig
)

// Arch names a depth.
type Arch = resnet.Arch

// Architectures.
const (
	ResNet18  = resnet.ResNet18
	ResNet34  = resnet.ResNet34
	ResNet50  = resnet.ResNet50
	ResNet101 = resnet.ResNet101
	ResNet152 = resnet.ResNet152
)

// Dataset names a benchmark.
type Dataset = resnet.Dataset

// Datasets.
const (
	MNIST    = resnet.MNIST
	CIFAR10  = resnet.CIFAR10
	CIFAR100 = resnet.CIFAR100
	ImageNet = resnet.ImageNet
)

// Config selects the model.
type Config = resnet.Config

// DefaultConfig returns an ARMA ResNet18 for CIFAR-10.
func DefaultConfig() Config { return resnet.DefaultConfig() }

// ResNet is the classifier.
type ResNet[B tensor.Backend] = resnet.ResNet[B]

// New builds the model selected by cfg.
func New[B tensor.Backend](cfg Config, backend B) (*ResNet[B], error) {
	return resnet.New(cfg, backend)
}

// Block is a residual block.
type Block[B tensor.Backend] = resnet.Block[B]

// BlockKind is BasicBlock or Bottleneck.
type BlockKind = resnet.BlockKind

// Block kinds.
const (
	Basic      = resnet.Basic
	Bottleneck = resnet.Bottleneck
)

// FilterConfig selects the filters inside blocks.
type FilterConfig = resnet.FilterConfig

// BasicBlock is two 3x3 filters with a residual connection.
type BasicBlock[B tensor.Backend] = resnet.BasicBlock[B]

// NewBasicBlock creates a basic block.
func NewBasicBlock[B tensor.Backend](inPlanes, planes, stride int, cfg FilterConfig, backend B) *BasicBlock[B] {
	return resnet.NewBasicBlock(inPlanes, planes, stride, cfg, backend)
}

// BottleneckBlock is a 1x1-3x3-1x1 block with expansion 4.
type BottleneckBlock[B tensor.Backend] = resnet.BottleneckBlock[B]

// NewBottleneck creates a bottleneck block.
func NewBottleneck[B tensor.Backend](inPlanes, planes, stride int, cfg FilterConfig, backend B) *BottleneckBlock[B] {
	return resnet.NewBottleneck(inPlanes, planes, stride, cfg, backend)
}
