package tensor

import "fmt"

// Tensor is a generic tensor with element type T and backend B.
//
// Type Parameters:
//   - T: Data type (must satisfy DType constraint)
//   - B: Computation backend (must implement Backend interface)
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{1, 3, 28, 28}, backend)
type Tensor[T DType, B Backend] struct {
	raw          *RawTensor
	backend      B
	grad         *Tensor[T, B]
	requiresGrad bool
}

// New creates a Tensor from a RawTensor and backend.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return &Tensor[T, B]{
		raw:     raw,
		backend: b,
	}
}

// FromSlice creates a tensor on the backend's default device from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return FromSliceOn(data, shape, b, b.Device())
}

// FromSliceOn is FromSlice with an explicit target device.
func FromSliceOn[T DType, B Backend](data []T, shape Shape, b B, device Device) (*Tensor[T, B], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), device)
	if err != nil {
		return nil, err
	}

	t := New[T, B](raw, b)
	copy(t.Data(), data)

	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor[T, B]) Shape() Shape {
	return t.raw.Shape()
}

// DType returns the tensor's data type.
func (t *Tensor[T, B]) DType() DataType {
	return t.raw.DType()
}

// Device returns the device holding the tensor's storage.
func (t *Tensor[T, B]) Device() Device {
	return t.raw.Device()
}

// NumElements returns the total number of elements.
func (t *Tensor[T, B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
// Used by backend implementations for low-level operations.
func (t *Tensor[T, B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the computation backend.
func (t *Tensor[T, B]) Backend() B {
	return t.backend
}

// Grad returns the gradient tensor, if one has been attached.
func (t *Tensor[T, B]) Grad() *Tensor[T, B] {
	return t.grad
}

// SetGrad sets the gradient tensor.
func (t *Tensor[T, B]) SetGrad(grad *Tensor[T, B]) {
	t.grad = grad
}

// Detach returns a tensor sharing the same storage without gradient state.
// Operations on the detached tensor do not extend the original's history.
func (t *Tensor[T, B]) Detach() *Tensor[T, B] {
	return &Tensor[T, B]{
		raw:     t.raw,
		backend: t.backend,
	}
}

// ToDevice moves the tensor to the given device through its backend.
// Gradient tracking and any attached gradient move with it.
// The result never shares storage with t, even when t is already on device,
// so writes through Data on either tensor stay local.
func (t *Tensor[T, B]) ToDevice(device Device) *Tensor[T, B] {
	var raw *RawTensor
	if t.Device() == device {
		raw = t.raw.Clone()
	} else {
		raw = t.backend.ToDevice(t.raw, device)
	}
	moved := &Tensor[T, B]{
		raw:          raw,
		backend:      t.backend,
		requiresGrad: t.requiresGrad,
	}
	if t.grad != nil {
		moved.grad = t.grad.ToDevice(device)
	}
	return moved
}

// Data returns a typed slice view of the tensor's data.
// The slice directly accesses the underlying memory (zero-copy).
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (t *Tensor[T, B]) Data() []T {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return any(t.raw.AsFloat32()).([]T)
	case float64:
		return any(t.raw.AsFloat64()).([]T)
	default:
		panic("unsupported type")
	}
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[T, B]) At(indices ...int) T {
	return t.Data()[t.offset(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[T, B]) Set(value T, indices ...int) {
	t.Data()[t.offset(indices)] = value
}

func (t *Tensor[T, B]) offset(indices []int) int {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}

	offset := 0
	strides := t.raw.Strides()
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, shape[i]))
		}
		offset += idx * strides[i]
	}
	return offset
}

// String returns a human-readable representation of the tensor.
func (t *Tensor[T, B]) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", t.raw.DType(), t.raw.Shape(), t.raw.Device())
}

// Clone creates a deep copy of the tensor without gradient state.
func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return &Tensor[T, B]{
		raw:     t.raw.Clone(),
		backend: t.backend,
	}
}

// RequireGrad marks this tensor for gradient computation.
// It is a no-op unless the backend tracks gradients (see GradientTracker),
// so inference backends never report RequiresGrad.
//
// Returns the tensor itself for method chaining.
func (t *Tensor[T, B]) RequireGrad() *Tensor[T, B] {
	if TracksGradients(t.backend) {
		t.requiresGrad = true
	}
	return t
}

// RequiresGrad returns true if this tensor requires gradient computation.
func (t *Tensor[T, B]) RequiresGrad() bool {
	return t.requiresGrad
}

// SameValues reports whether two tensors have the same shape and identical elements.
func SameValues[T DType, B1, B2 Backend](a *Tensor[T, B1], b *Tensor[T, B2]) bool {
	if !a.Shape().Equal(b.Shape()) {
		return false
	}
	ad, bd := a.Data(), b.Data()
	for i := range ad {
		if ad[i] != bd[i] {
			return false
		}
	}
	return true
}
