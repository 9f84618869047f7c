package module

import (
	"fmt"

	"github.com/born-ml/convkit/internal/record"
	"github.com/born-ml/convkit/internal/tensor"
)

// ParamIntoItem encodes a parameter as {"id": ..., "param": tensor}.
// A nil parameter encodes as nil so optional fields survive a round trip.
func ParamIntoItem[B tensor.Backend](p *Param[B], precision record.Precision) *record.Item {
	if p == nil {
		return nil
	}
	return record.NewItem().
		Set("id", p.ID().String()).
		Set("param", record.NewTensorItem(p.Shape(), p.Val().Data(), precision))
}

// ParamFromItem decodes a parameter item onto backend and device.
// The tensor requires gradients when the backend tracks them.
func ParamFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (*Param[B], error) {
	id, err := item.Text("id")
	if err != nil {
		return nil, err
	}
	ti, err := item.Tensor("param")
	if err != nil {
		return nil, err
	}
	values, err := ti.Float32s()
	if err != nil {
		return nil, &record.DecodeError{Field: "param", Err: err}
	}
	t, err := tensor.FromSliceOn(values, tensor.Shape(ti.Shape), backend, device)
	if err != nil {
		return nil, fmt.Errorf("param %s: %w", id, err)
	}
	return ParamFrom(ParamID(id), t.RequireGrad()), nil
}

// OptionalParamFromItem decodes an optional parameter field of parent.
func OptionalParamFromItem[B tensor.Backend](parent *record.Item, name string, backend B, device tensor.Device) (*Param[B], error) {
	child, err := parent.OptionalChild(name)
	if err != nil || child == nil {
		return nil, err
	}
	p, err := ParamFromItem(child, backend, device)
	if err != nil {
		return nil, record.At(name, err)
	}
	return p, nil
}

// RequiredParamFromItem decodes a required parameter field of parent.
func RequiredParamFromItem[B tensor.Backend](parent *record.Item, name string, backend B, device tensor.Device) (*Param[B], error) {
	child, err := parent.Child(name)
	if err != nil {
		return nil, err
	}
	p, err := ParamFromItem(child, backend, device)
	if err != nil {
		return nil, record.At(name, err)
	}
	return p, nil
}
