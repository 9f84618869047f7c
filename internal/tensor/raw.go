package tensor

import (
	"fmt"
	"unsafe"
)

// RawTensor is the low-level, untyped tensor representation backends operate on.
// Storage is a contiguous row-major byte buffer tagged with the device it lives on.
type RawTensor struct {
	data   []byte
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is zero-initialized.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the device the storage is tagged with.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// Clone returns a deep copy on the same device.
func (r *RawTensor) Clone() *RawTensor {
	return r.CopyTo(r.device)
}

// CopyTo returns a deep copy of the storage tagged with the given device.
// Backends use it to implement device transfer between memories they share.
func (r *RawTensor) CopyTo(device Device) *RawTensor {
	data := make([]byte, len(r.data))
	copy(data, r.data)
	return &RawTensor{
		data:   data,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: device,
	}
}

// Reshape returns a view of the same storage with a new shape.
// The element count must not change.
func (r *RawTensor) Reshape(shape Shape) (*RawTensor, error) {
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("cannot reshape %v into %v", r.shape, shape)
	}
	return &RawTensor{
		data:   r.data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  r.dtype,
		device: r.device,
	}, nil
}
