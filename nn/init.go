// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/convkit/internal/nn"
	"github.com/born-ml/convkit/tensor"
)

// Initialization

// InitKind selects an initialization scheme.
type InitKind = nn.InitKind

// Initializer kinds.
const (
	InitKaimingUniform InitKind = nn.InitKaimingUniform
	InitKaimingNormal  InitKind = nn.InitKaimingNormal
	InitXavierUniform  InitKind = nn.InitXavierUniform
	InitXavierNormal   InitKind = nn.InitXavierNormal
	InitConstant       InitKind = nn.InitConstant
	InitZeros          InitKind = nn.InitZeros
	InitOnes           InitKind = nn.InitOnes
	InitUniform        InitKind = nn.InitUniform
	InitNormal         InitKind = nn.InitNormal
)

// Initializer describes how a parameter tensor is filled at construction.
type Initializer = nn.Initializer

// DefaultInitializer is the initializer of every conv layer config:
// KaimingUniform with gain 1/sqrt(3), bounding weights by 1/sqrt(fan_in).
func DefaultInitializer() Initializer { return nn.DefaultInitializer() }

// Constant fills with value.
func Constant(value float64) Initializer { return nn.Constant(value) }

// Zeros fills with 0.
func Zeros() Initializer { return nn.Zeros() }

// Ones fills with 1.
func Ones() Initializer { return nn.Ones() }

// Uniform samples U(minValue, maxValue).
func Uniform(minValue, maxValue float64) Initializer { return nn.Uniform(minValue, maxValue) }

// Normal samples N(mean, std²).
func Normal(mean, std float64) Initializer { return nn.Normal(mean, std) }

// KaimingUniform samples U(-a, a) with a = gain*sqrt(3/fan).
func KaimingUniform(gain float64, fanOutOnly bool) Initializer {
	return nn.KaimingUniform(gain, fanOutOnly)
}

// KaimingNormal samples N(0, (gain/sqrt(fan))²).
func KaimingNormal(gain float64, fanOutOnly bool) Initializer {
	return nn.KaimingNormal(gain, fanOutOnly)
}

// XavierUniform samples U(-a, a) with a = gain*sqrt(6/(fan_in+fan_out)).
func XavierUniform(gain float64) Initializer { return nn.XavierUniform(gain) }

// XavierNormal samples N(0, gain²*2/(fan_in+fan_out)).
func XavierNormal(gain float64) Initializer { return nn.XavierNormal(gain) }

// InitWith samples a parameter of the given shape on device.
// fanIn and fanOut may be nil when the initializer does not need them.
//
// Example:
//
//	fanIn := 27
//	w, err := nn.InitWith(nn.KaimingNormal(1, false), tensor.Shape{8, 3, 3, 3}, &fanIn, nil, backend, backend.Device())
func InitWith[B tensor.Backend](initializer Initializer, shape tensor.Shape, fanIn, fanOut *int, backend B, device tensor.Device) (*Param[B], error) {
	return nn.InitWith(initializer, shape, fanIn, fanOut, backend, device)
}

// Padding

// PaddingKind selects a padding policy.
type PaddingKind = nn.PaddingKind

// Padding kinds.
const (
	PaddingValid    PaddingKind = nn.PaddingValid
	PaddingSame     PaddingKind = nn.PaddingSame
	PaddingExplicit PaddingKind = nn.PaddingExplicit
)

// PaddingConfig is the padding policy of a standard or deformable convolution.
type PaddingConfig = nn.PaddingConfig

// Valid applies no padding.
func Valid() PaddingConfig { return nn.Valid() }

// Same pads so that each output axis has ceil(input/stride) elements.
// It requires odd kernel sizes.
func Same() PaddingConfig { return nn.Same() }

// Explicit pads each spatial axis symmetrically by the given amounts.
func Explicit(amounts ...int) PaddingConfig { return nn.Explicit(amounts...) }

// Errors

// ConfigError reports an invalid layer configuration or record.
type ConfigError = nn.ConfigError

// Sentinel errors wrapped by ConfigError.
var (
	ErrGroupsMismatch        = nn.ErrGroupsMismatch
	ErrInvalidConfig         = nn.ErrInvalidConfig
	ErrShapeMismatch         = nn.ErrShapeMismatch
	ErrSamePaddingEvenKernel = nn.ErrSamePaddingEvenKernel
	ErrMissingFan            = nn.ErrMissingFan
)
