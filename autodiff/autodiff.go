// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides the gradient-tracking backend decorator.
//
// An autodiff Backend wraps any backend and records each convolution on a
// GradientTape. Layers built on it hold parameters that require gradients;
// nn.ValidConv2d and friends project them back onto the inner backend.
//
// Example:
//
//	import (
//	    "github.com/born-ml/convkit/autodiff"
//	    "github.com/born-ml/convkit/backend/cpu"
//	    "github.com/born-ml/convkit/nn"
//	)
//
//	func main() {
//	    backend := autodiff.New(cpu.New())
//	    backend.Tape().StartRecording()
//
//	    conv, _ := nn.NewConv2d(nn.NewConv2dConfig([2]int{3, 8}, [2]int{3, 3}), backend, backend.Device())
//	    _ = conv.Forward(x)
//	    fmt.Println(backend.Tape().NumOps()) // 1
//	}
package autodiff

import (
	"github.com/born-ml/convkit/internal/autodiff"
	"github.com/born-ml/convkit/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend.
//
// Example:
//
//	base := cpu.New()
//	backend := autodiff.New(base)
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}
