// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu is the pure Go backend.
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
package cpu

import (
	internalcpu "github.com/born-ml/armanet/internal/backend/cpu"
	"github.com/born-ml/armanet/tensor"
)

// Backend is the CPU implementation of tensor.Backend.
type Backend = internalcpu.CPUBackend

var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend that spreads per-plane kernels over every
// physical core.
func New() *Backend {
	return internalcpu.New()
}
