// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package resnet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/armanet/autodiff"
	"github.com/born-ml/armanet/backend/cpu"
	"github.com/born-ml/armanet/nn"
	"github.com/born-ml/armanet/optim"
	"github.com/born-ml/armanet/resnet"
	"github.com/born-ml/armanet/tensor"
)

func TestPublicAPITrainingStep(t *testing.T) {
	backend := autodiff.New(cpu.New())
	cfg := resnet.DefaultConfig()
	cfg.Dataset = resnet.MNIST
	model, err := resnet.New(cfg, backend)
	require.NoError(t, err)

	x := tensor.Randn[float32](tensor.Shape{2, 1, 8, 8}, backend)
	y, err := tensor.FromSlice([]int32{3, 7}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01}, backend)
	before := append([]float32(nil), model.Parameters()[0].Tensor().Data()...)

	backend.Tape().StartRecording()
	out := model.Forward(x)
	loss := nn.NewNLLLoss(backend).Forward(out, y)
	grads := autodiff.Backward(loss, backend)
	backend.Tape().StopRecording()
	opt.Step(grads)

	assert.Equal(t, tensor.Shape{2, 10}, out.Shape())
	assert.NotEqual(t, before, model.Parameters()[0].Tensor().Data())
}

func TestPublicAPIErrors(t *testing.T) {
	_, err := resnet.New(resnet.Config{Arch: "ResNet9", Dataset: resnet.CIFAR10, WKernelSize: 3}, cpu.New())
	require.ErrorIs(t, err, resnet.ErrUnknownArch)

	_, err = resnet.New(resnet.Config{Arch: resnet.ResNet18, Dataset: "SVHN", WKernelSize: 3}, cpu.New())
	require.ErrorIs(t, err, resnet.ErrUnknownDataset)
}

func TestPublicBlocks(t *testing.T) {
	backend := cpu.New()
	fc := resnet.FilterConfig{ARMA: true, WKernelSize: 3, AKernelSize: 3}

	basic := resnet.NewBasicBlock(16, 32, 2, fc, backend)
	assert.True(t, basic.HasShortcut())
	out := basic.Forward(tensor.Randn[float32](tensor.Shape{2, 16, 8, 8}, backend))
	assert.Equal(t, tensor.Shape{2, 32, 4, 4}, out.Shape())

	bottleneck := resnet.NewBottleneck(128, 32, 1, fc, backend)
	assert.False(t, bottleneck.HasShortcut())
	assert.Equal(t, 128, bottleneck.OutChannels())
}
