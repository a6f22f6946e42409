// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn exposes the layers the ResNet models are built from.
package nn

import (
	"github.com/born-ml/armanet/internal/nn"
	"github.com/born-ml/armanet/internal/tensor"
)

// Module is the interface shared by every layer.
type Module[B tensor.Backend] = nn.Module[B]

// Trainable is implemented by modules whose behavior depends on the mode.
type Trainable = nn.Trainable

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Layers

// Linear is a fully connected layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a linear layer with Xavier initialization.
//
//	layer := nn.NewLinear(512, 10, backend)
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// Conv2D is a square-kernel 2-D convolution.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a convolution with Kaiming initialization.
//
//	conv := nn.NewConv2D(3, 64, 3, 1, 1, false, backend) // in, out, kernel, stride, padding
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, useBias bool, backend B) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelSize, stride, padding, useBias, backend)
}

// AutoRegressive2D is the recursive half of ARMA2D.
type AutoRegressive2D[B tensor.Backend] = nn.AutoRegressive2D[B]

// NewAutoRegressive2D creates a per-channel AR filter. kernelSize must be
// odd; 1 makes the layer an identity.
func NewAutoRegressive2D[B tensor.Backend](channels, kernelSize, padding int, init float32, backend B) *AutoRegressive2D[B] {
	return nn.NewAutoRegressive2D(channels, kernelSize, padding, init, backend)
}

// ARMA2D is a convolution followed by an autoregressive solve.
type ARMA2D[B tensor.Backend] = nn.ARMA2D[B]

// ARMA2DConfig configures an ARMA2D layer.
type ARMA2DConfig = nn.ARMA2DConfig

// DefaultARMA2DConfig returns a 1x1 moving-average term with a 3x3 AR term.
func DefaultARMA2DConfig(inChannels, outChannels int) ARMA2DConfig {
	return nn.DefaultARMA2DConfig(inChannels, outChannels)
}

// NewARMA2D creates an ARMA2D layer.
//
//	cfg := nn.DefaultARMA2DConfig(64, 128)
//	cfg.WKernelSize, cfg.WPadding = 3, 1
//	layer := nn.NewARMA2D(cfg, backend)
func NewARMA2D[B tensor.Backend](cfg ARMA2DConfig, backend B) *ARMA2D[B] {
	return nn.NewARMA2D(cfg, backend)
}

// BatchNorm2D normalizes NCHW activations per channel.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a batch norm with eps 1e-5 and momentum 0.1.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(numFeatures, backend)
}

// Sequential chains modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Activations and pooling

// ReLU is max(0, x).
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU.
func NewReLU[B tensor.Backend]() *ReLU[B] { return nn.NewReLU[B]() }

// LogSoftmax normalizes the last dimension into log-probabilities.
type LogSoftmax[B tensor.Backend] = nn.LogSoftmax[B]

// NewLogSoftmax creates a LogSoftmax.
func NewLogSoftmax[B tensor.Backend]() *LogSoftmax[B] { return nn.NewLogSoftmax[B]() }

// GlobalAvgPool2D averages each feature map to 1x1.
type GlobalAvgPool2D[B tensor.Backend] = nn.GlobalAvgPool2D[B]

// NewGlobalAvgPool2D creates a global average pool.
func NewGlobalAvgPool2D[B tensor.Backend](backend B) *GlobalAvgPool2D[B] {
	return nn.NewGlobalAvgPool2D(backend)
}

// Flatten collapses every dimension after the batch.
type Flatten[B tensor.Backend] = nn.Flatten[B]

// NewFlatten creates a Flatten.
func NewFlatten[B tensor.Backend]() *Flatten[B] { return nn.NewFlatten[B]() }

// Loss

// NLLLoss is the mean negative log-likelihood of class targets.
type NLLLoss[B tensor.Backend] = nn.NLLLoss[B]

// NewNLLLoss creates the loss.
func NewNLLLoss[B tensor.Backend](backend B) *NLLLoss[B] {
	return nn.NewNLLLoss(backend)
}

// Accuracy returns the fraction of rows whose argmax matches the target.
func Accuracy[B tensor.Backend](logProbs *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float64 {
	return nn.Accuracy(logProbs, targets)
}
