// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/convkit/internal/module"
	"github.com/born-ml/convkit/tensor"
)

// Module is implemented by every layer over backend B.
//
// Transformations that return a new layer (Map, ToDevice, Fork, LoadRecord)
// are methods on the concrete layer types, since their result type differs
// per layer.
//
// Example:
//
//	var m nn.Module[*cpu.Backend] = conv
//	fmt.Println(m.NumParams(), m.CollectDevices(nil))
type Module[B tensor.Backend] = module.Module[B]

// Visitor observes a layer's fields in declaration order.
//
// Every field is bracketed by EnterModule and ExitModule; VisitFloat is
// called once per parameter tensor in between. Hyperparameters report
// KindConstant and padding policies KindIgnored.
type Visitor[B tensor.Backend] = module.Visitor[B]

// Mapper is a Visitor that may replace parameter tensors.
type Mapper[B tensor.Backend] = module.Mapper[B]

// MapperFunc adapts a function to the Mapper interface.
//
// Example:
//
//	scaled := conv.Map(nn.MapperFunc[*cpu.Backend](func(id nn.ParamID, t *tensor.Tensor[float32, *cpu.Backend]) *tensor.Tensor[float32, *cpu.Backend] {
//	    return halve(t)
//	}))
type MapperFunc[B tensor.Backend] = module.MapperFunc[B]

// Kind classifies a field during traversal.
type Kind = module.Kind

// Field kinds.
const (
	KindParam    Kind = module.KindParam
	KindConstant Kind = module.KindConstant
	KindIgnored  Kind = module.KindIgnored
	KindModule   Kind = module.KindModule
)

// ParamID is the stable identity of a parameter, preserved by ToDevice,
// Fork, Map and record round trips.
type ParamID = module.ParamID

// Param is a tracked parameter tensor.
type Param[B tensor.Backend] = module.Param[B]

// NewParam wraps t in a parameter with a fresh ID.
func NewParam[B tensor.Backend](t *tensor.Tensor[float32, B]) *Param[B] {
	return module.NewParam(t)
}

// Devices is an ordered set of devices.
type Devices = module.Devices

// NamedParam is a parameter with its dotted field path.
type NamedParam[B tensor.Backend] = module.NamedParam[B]

// ParamsOf returns m's parameters in traversal order.
func ParamsOf[B tensor.Backend](m interface{ Visit(Visitor[B]) }) []NamedParam[B] {
	return module.ParamsOf[B](m)
}

// NumParamsOf counts m's scalar parameters by traversal.
func NumParamsOf[B tensor.Backend](m interface{ Visit(Visitor[B]) }) int {
	return module.NumParamsOf[B](m)
}

// CollectDevicesOf adds the devices of m's parameters to devices.
func CollectDevicesOf[B tensor.Backend](m interface{ Visit(Visitor[B]) }, devices Devices) Devices {
	return module.CollectDevicesOf[B](m, devices)
}
