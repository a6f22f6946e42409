// Package cpu implements the tensor backend in pure Go.
//
// Kernels operate on float32 NCHW data. Per-plane work (convolution,
// autoregressive solves, batch normalization) is spread over goroutines with
// internal/parallel.
package cpu

import (
	"fmt"

	"github.com/born-ml/armanet/internal/parallel"
	"github.com/born-ml/armanet/internal/tensor"
)

// CPUBackend is the CPU implementation of tensor.Backend.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// New creates a CPU backend using every physical core.
func New() *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: parallel.PlaneConfig(),
	}
}

// NewWithConfig creates a CPU backend with explicit parallelism settings.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{device: tensor.CPU, parallel: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string { return "CPU" }

// Device returns tensor.CPU.
func (cpu *CPUBackend) Device() tensor.Device { return cpu.device }

// Workers returns the configured worker count.
func (cpu *CPUBackend) Workers() int { return cpu.parallel.NumWorkers }

func (cpu *CPUBackend) alloc(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	out, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	return out
}

func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: unsupported dtype %s (float32 only)", op, t.DType()))
		}
	}
}

func require4D(op string, t *tensor.RawTensor) (n, c, h, w int) {
	s := t.Shape()
	if len(s) != 4 {
		panic(fmt.Sprintf("%s: expected 4D input [N,C,H,W], got %dD", op, len(s)))
	}
	return s[0], s[1], s[2], s[3]
}

var _ tensor.Backend = (*CPUBackend)(nil)
