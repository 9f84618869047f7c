// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/convkit/internal/tensor"
)

// Backend defines the interface that compute backends implement.
//
// Backends own the numeric convolution kernels and device placement; layers
// in package nn only configure and invoke them. Kernel methods panic on
// malformed inputs.
//
// Implementations:
//   - backend/cpu: reference kernels in pure Go
//
// Decorator backends:
//   - autodiff: records operations for differentiation (wraps any backend)
type Backend = tensor.Backend

// GradientTracker is implemented by backends that record gradient history.
type GradientTracker = tensor.GradientTracker

// TracksGradients reports whether b records gradient history.
func TracksGradients(b Backend) bool {
	return tensor.TracksGradients(b)
}

// ConvOptions configures Conv1D, Conv2D and Conv3D.
type ConvOptions = tensor.ConvOptions

// NewConvOptions builds ConvOptions with one stride, padding and dilation value per spatial axis.
func NewConvOptions(stride, padding, dilation []int, groups int) ConvOptions {
	return tensor.NewConvOptions(stride, padding, dilation, groups)
}

// ConvTransposeOptions configures ConvTranspose1D, ConvTranspose2D and ConvTranspose3D.
type ConvTransposeOptions = tensor.ConvTransposeOptions

// NewConvTransposeOptions builds ConvTransposeOptions, one value per spatial axis.
func NewConvTransposeOptions(stride, padding, paddingOut, dilation []int, groups int) ConvTransposeOptions {
	return tensor.NewConvTransposeOptions(stride, padding, paddingOut, dilation, groups)
}

// DeformConvOptions configures DeformConv2D.
type DeformConvOptions = tensor.DeformConvOptions

// NewDeformConvOptions builds DeformConvOptions for a 2D deformable convolution.
func NewDeformConvOptions(stride, padding, dilation []int, weightGroups, offsetGroups int) DeformConvOptions {
	return tensor.NewDeformConvOptions(stride, padding, dilation, weightGroups, offsetGroups)
}

// ConvOutputSize returns the output extent of a convolution along one axis:
//
//	(size + 2*padding - dilation*(kernel-1) - 1)/stride + 1
func ConvOutputSize(size, kernel, stride, padding, dilation int) int {
	return tensor.ConvOutputSize(size, kernel, stride, padding, dilation)
}

// ConvTransposeOutputSize returns the output extent of a transposed convolution along one axis:
//
//	(size-1)*stride - 2*padding + dilation*(kernel-1) + paddingOut + 1
func ConvTransposeOutputSize(size, kernel, stride, padding, paddingOut, dilation int) int {
	return tensor.ConvTransposeOutputSize(size, kernel, stride, padding, paddingOut, dilation)
}

// Conv1D convolves x [N, C_in, L] with weight [C_out, C_in/groups, K]. bias may be nil.
func Conv1D[B Backend](x, weight, bias *Tensor[float32, B], opts ConvOptions) *Tensor[float32, B] {
	return tensor.Conv1D(x, weight, bias, opts)
}

// Conv2D convolves x [N, C_in, H, W] with weight [C_out, C_in/groups, K_h, K_w]. bias may be nil.
func Conv2D[B Backend](x, weight, bias *Tensor[float32, B], opts ConvOptions) *Tensor[float32, B] {
	return tensor.Conv2D(x, weight, bias, opts)
}

// Conv3D convolves x [N, C_in, D, H, W] with weight [C_out, C_in/groups, K_d, K_h, K_w]. bias may be nil.
func Conv3D[B Backend](x, weight, bias *Tensor[float32, B], opts ConvOptions) *Tensor[float32, B] {
	return tensor.Conv3D(x, weight, bias, opts)
}

// ConvTranspose1D applies a transposed convolution with weight [C_in, C_out/groups, K].
func ConvTranspose1D[B Backend](x, weight, bias *Tensor[float32, B], opts ConvTransposeOptions) *Tensor[float32, B] {
	return tensor.ConvTranspose1D(x, weight, bias, opts)
}

// ConvTranspose2D applies a transposed convolution with weight [C_in, C_out/groups, K_h, K_w].
func ConvTranspose2D[B Backend](x, weight, bias *Tensor[float32, B], opts ConvTransposeOptions) *Tensor[float32, B] {
	return tensor.ConvTranspose2D(x, weight, bias, opts)
}

// ConvTranspose3D applies a transposed convolution with weight [C_in, C_out/groups, K_d, K_h, K_w].
func ConvTranspose3D[B Backend](x, weight, bias *Tensor[float32, B], opts ConvTransposeOptions) *Tensor[float32, B] {
	return tensor.ConvTranspose3D(x, weight, bias, opts)
}

// DeformConv2D applies a deformable 2D convolution. mask and bias may be nil.
//
// Offset shape: [N, 2*offset_groups*K_h*K_w, H_out, W_out]
// Mask shape:   [N, offset_groups*K_h*K_w, H_out, W_out]
func DeformConv2D[B Backend](x, offset, weight, mask, bias *Tensor[float32, B], opts DeformConvOptions) *Tensor[float32, B] {
	return tensor.DeformConv2D(x, offset, weight, mask, bias, opts)
}
