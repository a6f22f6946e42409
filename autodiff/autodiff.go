// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff adds reverse-mode differentiation to a backend.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := criterion.Forward(model.Forward(x), y)
//	grads := autodiff.Backward(loss, backend)
package autodiff

import (
	"github.com/born-ml/armanet/internal/autodiff"
	"github.com/born-ml/armanet/internal/tensor"
)

// Backend is an autodiff decorator around B.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New wraps backend with a gradient tape.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for backpropagation.
type GradientTape = autodiff.GradientTape

// BackwardCapable is a backend that owns a tape.
type BackwardCapable = autodiff.BackwardCapable

// Backward returns the gradient of t with respect to every recorded input,
// keyed by raw tensor.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}
