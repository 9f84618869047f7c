// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the tensor types and the backend contract used by convkit layers.
//
// # Overview
//
// Tensors are the values convkit layers consume and produce. This package provides:
//   - Generic type-safe tensors (Tensor[T, B]) over float32 and float64
//   - RawTensor, the untyped storage backends operate on
//   - Device and Shape types
//   - The convolution kernels (Conv1D..Conv3D, ConvTranspose1D..3D, DeformConv2D)
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/convkit/backend/cpu"
//	    "github.com/born-ml/convkit/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    x := tensor.Arange[float32](tensor.Shape{1, 1, 4, 4}, 1, backend)
//	    w := tensor.Ones[float32](tensor.Shape{1, 1, 3, 3}, backend)
//	    y := tensor.Conv2D(x, w, nil, tensor.NewConvOptions(
//	        []int{1, 1}, []int{0, 0}, []int{1, 1}, 1))
//	    fmt.Println(y.Shape()) // [1 1 2 2]
//	}
//
// # Devices
//
// A Device is a kind plus an ordinal ("cpu:0", "cuda:1"). Tensors remember the
// device they were placed on; ToDevice moves them through their backend.
//
// # Layout
//
// All kernels use the channels-first layout [N, C, *spatial]. Standard kernels
// take weights [C_out, C_in/groups, *kernel]; transposed kernels take
// [C_in, C_out/groups, *kernel].
package tensor
