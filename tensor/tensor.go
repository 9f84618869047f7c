// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/convkit/internal/tensor"
)

// Type aliases for public API

// DType is a constraint for tensor element types: float32 or float64.
type DType = tensor.DType

// DataType represents the runtime element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// ParseDataType parses "float32" or "float64".
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}

// DeviceKind identifies a family of compute devices.
type DeviceKind = tensor.DeviceKind

// Device kind constants.
const (
	CPU    DeviceKind = tensor.CPU
	CUDA   DeviceKind = tensor.CUDA
	Vulkan DeviceKind = tensor.Vulkan
	Metal  DeviceKind = tensor.Metal
	WebGPU DeviceKind = tensor.WebGPU
)

// Device is a device kind plus an ordinal. Devices are comparable.
type Device = tensor.Device

// DefaultDevice is cpu:0.
var DefaultDevice = tensor.DefaultDevice

// NewDevice returns the device of the given kind and ordinal.
func NewDevice(kind DeviceKind, index int) Device {
	return tensor.NewDevice(kind, index)
}

// ParseDevice parses "kind" or "kind:index", e.g. "cpu" or "cuda:1".
func ParseDevice(s string) (Device, error) {
	return tensor.ParseDevice(s)
}

// Shape represents the dimensions of a tensor.
// Example: Shape{1, 3, 28, 28} is a batch of one 3-channel 28×28 image.
type Shape = tensor.Shape

// Tensor is a generic type-safe tensor.
//
// T is the element type (float32 or float64).
// B is the backend implementation (cpu.Backend, autodiff.Backend[...]).
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	fmt.Println(x.Shape(), x.Device())
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// RawTensor is the untyped storage of a tensor.
type RawTensor = tensor.RawTensor

// NewRaw allocates a zeroed raw tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// New wraps a raw tensor for backend b.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T](raw, b)
}

// Zeros creates a tensor filled with zeros on the backend's device.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T](shape, b)
}

// ZerosOn creates a tensor filled with zeros on device.
func ZerosOn[T DType, B Backend](shape Shape, b B, device Device) *Tensor[T, B] {
	return tensor.ZerosOn[T](shape, b, device)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T](shape, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full(shape, value, b)
}

// Arange creates a tensor holding 0, step, 2*step, ... in row-major order.
func Arange[T DType, B Backend](shape Shape, step T, b B) *Tensor[T, B] {
	return tensor.Arange(shape, step, b)
}

// FromSlice creates a tensor from data. len(data) must equal shape.NumElements().
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 4}, backend)
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// FromSliceOn is FromSlice placing the tensor on device.
func FromSliceOn[T DType, B Backend](data []T, shape Shape, b B, device Device) (*Tensor[T, B], error) {
	return tensor.FromSliceOn(data, shape, b, device)
}

// SameValues reports whether a and b have equal shapes and elements,
// regardless of backend or device.
func SameValues[T DType, B1, B2 Backend](a *Tensor[T, B1], b *Tensor[T, B2]) bool {
	return tensor.SameValues(a, b)
}
