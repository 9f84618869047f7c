package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convkit/internal/tensor"
)

// raw builds a float32 tensor on cpu:0 holding values (zero-filled if none given).
func raw(t *testing.T, shape tensor.Shape, values ...float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.DefaultDevice)
	require.NoError(t, err)
	if len(values) > 0 {
		require.Len(t, values, shape.NumElements())
		copy(r.AsFloat32(), values)
	}
	return r
}

// arange fills a tensor with a small repeating ramp of mixed-sign values.
func arange(t *testing.T, shape tensor.Shape, step float32) *tensor.RawTensor {
	t.Helper()
	r := raw(t, shape)
	data := r.AsFloat32()
	for i := range data {
		data[i] = float32(i%7)*step - 1
	}
	return r
}

func TestBackend_Metadata(t *testing.T) {
	b := New()
	assert.Equal(t, "CPU", b.Name())
	assert.Equal(t, tensor.DefaultDevice, b.Device())

	other := NewWithDevice(tensor.NewDevice(tensor.CPU, 2))
	assert.Equal(t, "cpu:2", other.Device().String())
}

func TestNewWithDevice_RejectsAccelerators(t *testing.T) {
	assert.Panics(t, func() { NewWithDevice(tensor.NewDevice(tensor.CUDA, 0)) })
}

func TestToDevice(t *testing.T) {
	b := New()
	x := raw(t, tensor.Shape{2, 2}, 1, 2, 3, 4)

	moved := b.ToDevice(x, tensor.NewDevice(tensor.CPU, 1))
	assert.Equal(t, tensor.NewDevice(tensor.CPU, 1), moved.Device())
	assert.Equal(t, x.AsFloat32(), moved.AsFloat32())

	// The copy must not alias the source.
	moved.AsFloat32()[0] = 42
	assert.Equal(t, float32(1), x.AsFloat32()[0])

	assert.Panics(t, func() { b.ToDevice(x, tensor.NewDevice(tensor.Metal, 0)) })
}
