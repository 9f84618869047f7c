// Package cpu implements the reference CPU backend.
//
// Kernels are direct (no im2col): every output plane is one unit of work,
// fanned out across workers by internal/parallel. They favour clarity over speed
// and serve as the numeric ground truth for module tests.
package cpu

import (
	"fmt"

	"github.com/born-ml/convkit/internal/envconfig"
	"github.com/born-ml/convkit/internal/parallel"
	"github.com/born-ml/convkit/internal/tensor"
)

// CPUBackend implements tensor.Backend on host memory.
// Any CPU-kind device ordinal is accepted; all ordinals share host memory,
// so device transfer is a copy retagged with the target device.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a CPU backend whose default device is cpu:0.
func New() *CPUBackend {
	return NewWithDevice(tensor.DefaultDevice)
}

// NewWithDevice creates a CPU backend with a specific default device.
func NewWithDevice(device tensor.Device) *CPUBackend {
	if device.Kind != tensor.CPU {
		panic(fmt.Sprintf("cpu: unsupported device %s", device))
	}
	return &CPUBackend{
		device: device,
		par:    parallel.WithWorkers(int(envconfig.NumThreads())), //nolint:gosec // thread counts are small
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the default device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// ToDevice copies x onto another CPU device.
func (cpu *CPUBackend) ToDevice(x *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	if device.Kind != tensor.CPU {
		panic(fmt.Sprintf("cpu: cannot move tensor to %s", device))
	}
	return x.CopyTo(device)
}

// forBatch runs f once per (batch, channel) output plane.
func (cpu *CPUBackend) forBatch(batch, channels int, f func(n, c int)) {
	parallel.ForBatch(batch, channels, f, cpu.par)
}

func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t != nil && t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: unsupported dtype %s", op, t.DType()))
		}
	}
}

func requireRank(op, what string, t *tensor.RawTensor, rank int) {
	if len(t.Shape()) != rank {
		panic(fmt.Sprintf("%s: %s must be %dD, got shape %v", op, what, rank, t.Shape()))
	}
}

// lift3 pads a per-axis slice of length rank to three axes by prepending fill.
func lift3(values []int, fill int) [3]int {
	out := [3]int{fill, fill, fill}
	copy(out[3-len(values):], values)
	return out
}

// outputShape builds [n, c, *spatial] dropping the leading lifted axes.
func outputShape(n, c int, spatial [3]int, rank int) tensor.Shape {
	shape := tensor.Shape{n, c}
	return append(shape, spatial[3-rank:]...)
}
