// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides parameterized convolution layers.
//
// # Overview
//
// This package contains:
//   - Layers: Conv1d, Conv2d, Conv3d, ConvTranspose1d/2d/3d, DeformConv2d
//   - Configs with defaults and With* setters, loadable from JSON or YAML
//   - Padding policies: Valid, Same, Explicit
//   - Initializers: Kaiming, Xavier, Uniform, Normal, Constant, Zeros, Ones
//   - The module protocol: Visitor, Mapper, Param, records
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/convkit/backend/cpu"
//	    "github.com/born-ml/convkit/nn"
//	    "github.com/born-ml/convkit/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    cfg := nn.NewConv2dConfig([2]int{3, 8}, [2]int{3, 3}).
//	        WithPadding(nn.Same()).
//	        WithStride([2]int{2, 2})
//	    conv, err := nn.NewConv2d(cfg, backend, backend.Device())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    x := tensor.Zeros[float32](tensor.Shape{1, 3, 28, 28}, backend)
//	    y := conv.Forward(x) // [1, 8, 14, 14]
//	}
//
// # Configuration errors
//
// Constructors and LoadRecord validate before allocating anything and return
// a *ConfigError wrapping ErrGroupsMismatch, ErrInvalidConfig,
// ErrShapeMismatch or ErrSamePaddingEvenKernel:
//
//	_, err := nn.NewConv1d(nn.NewConv1dConfig(5, 4, 3).WithGroups(2), backend, device)
//	errors.Is(err, nn.ErrGroupsMismatch) // true
//
// Forward panics on inputs of the wrong rank or channel count.
//
// # Records
//
// IntoRecord captures a layer's parameters and hyperparameters. A record
// encodes to a *record.Item at a chosen precision and decodes back with the
// matching XxxRecordFromItem function:
//
//	item := conv.IntoRecord().IntoItem(record.Half)
//	r, err := nn.Conv2dRecordFromItem(item, backend, device)
//	restored, err := conv.LoadRecord(r)
//
// # Training and inference
//
// Layers built on an autodiff backend track gradients. ValidConv2d (and its
// siblings) return the same layer over the inner backend, sharing parameter
// IDs and values but without gradient tracking.
package nn
