// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go reference backend.
//
// Convolution kernels fan out over (batch, output channel) planes on a
// bounded worker group sized by CONVKIT_NUM_THREADS (default: the number of CPUs).
package cpu

import (
	internalcpu "github.com/born-ml/convkit/internal/backend/cpu"
	"github.com/born-ml/convkit/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend on cpu:0.
//
// Example:
//
//	import (
//	    "github.com/born-ml/convkit/backend/cpu"
//	    "github.com/born-ml/convkit/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	}
func New() *Backend {
	return internalcpu.New()
}

// NewWithDevice creates a CPU backend whose new tensors are placed on device.
func NewWithDevice(device tensor.Device) *Backend {
	return internalcpu.NewWithDevice(device)
}
