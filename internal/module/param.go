// Package module defines the protocol shared by every convkit layer:
// parameter wrappers with stable identities, visitors and mappers that walk a
// layer's fields in declaration order, device bookkeeping, and the record
// form of parameters.
package module

import (
	"github.com/google/uuid"

	"github.com/born-ml/convkit/internal/tensor"
)

// ParamID identifies a parameter across device moves, forks and checkpoints.
type ParamID string

// NewParamID returns a fresh random identifier.
func NewParamID() ParamID {
	return ParamID(uuid.NewString())
}

// String returns the identifier text.
func (id ParamID) String() string {
	return string(id)
}

// Param is a learnable float tensor with a stable identity.
//
// Param values are immutable from the protocol's point of view: ToDevice,
// Fork and Map return new wrappers and leave the receiver untouched.
type Param[B tensor.Backend] struct {
	id    ParamID
	value *tensor.Tensor[float32, B]
}

// NewParam wraps t under a fresh ID and marks it as requiring gradients.
// On backends without gradient tracking the mark is a no-op.
func NewParam[B tensor.Backend](t *tensor.Tensor[float32, B]) *Param[B] {
	return ParamFrom(NewParamID(), t.RequireGrad())
}

// ParamFrom wraps t under an existing ID, e.g. when loading a record.
func ParamFrom[B tensor.Backend](id ParamID, t *tensor.Tensor[float32, B]) *Param[B] {
	return &Param[B]{id: id, value: t}
}

// ID returns the parameter identifier.
func (p *Param[B]) ID() ParamID {
	return p.id
}

// Val returns the wrapped tensor.
func (p *Param[B]) Val() *tensor.Tensor[float32, B] {
	return p.value
}

// Shape returns the tensor shape.
func (p *Param[B]) Shape() tensor.Shape {
	return p.value.Shape()
}

// NumParams returns the number of scalar elements.
func (p *Param[B]) NumParams() int {
	return p.value.NumElements()
}

// Device returns the device the tensor lives on.
func (p *Param[B]) Device() tensor.Device {
	return p.value.Device()
}

// ToDevice moves the tensor, keeping the ID and any gradient state.
func (p *Param[B]) ToDevice(device tensor.Device) *Param[B] {
	return &Param[B]{id: p.id, value: p.value.ToDevice(device)}
}

// Fork moves the tensor to device with a fresh gradient history.
// The result requires gradients again when the backend tracks them.
func (p *Param[B]) Fork(device tensor.Device) *Param[B] {
	return &Param[B]{id: p.id, value: p.value.ToDevice(device).Detach().RequireGrad()}
}

// Map replaces the tensor with f(id, tensor), keeping the ID.
func (p *Param[B]) Map(f func(ParamID, *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]) *Param[B] {
	return &Param[B]{id: p.id, value: f(p.id, p.value)}
}
