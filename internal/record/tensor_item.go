package record

import "fmt"

// TensorItem is a self-describing tensor payload.
// Bytes holds NumElements values of DType, little-endian, row-major.
type TensorItem struct {
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
	Bytes []byte `json:"bytes"`
}

// NewTensorItem encodes float32 values of the given shape at precision p.
func NewTensorItem(shape []int, values []float32, p Precision) TensorItem {
	return TensorItem{
		DType: p.DType(),
		Shape: append([]int(nil), shape...),
		Bytes: p.encode(values),
	}
}

// NumElements returns the product of the shape.
func (t TensorItem) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Validate checks that the payload length matches dtype and shape.
func (t TensorItem) Validate() error {
	size, err := DTypeSize(t.DType)
	if err != nil {
		return err
	}
	for i, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("%w: dimension %d is %d", ErrInvalidTensor, i, d)
		}
	}
	if want := t.NumElements() * size; len(t.Bytes) != want {
		return fmt.Errorf("%w: shape %v of %s needs %d bytes, got %d", ErrInvalidTensor, t.Shape, t.DType, want, len(t.Bytes))
	}
	return nil
}

// Float32s decodes the payload from its own dtype tag.
func (t TensorItem) Float32s() ([]float32, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return decode(t.DType, t.Bytes), nil
}

// Convert re-encodes the payload at precision p.
func (t TensorItem) Convert(p Precision) (TensorItem, error) {
	if t.DType == p.DType() {
		return t, nil
	}
	values, err := t.Float32s()
	if err != nil {
		return TensorItem{}, err
	}
	return NewTensorItem(t.Shape, values, p), nil
}
