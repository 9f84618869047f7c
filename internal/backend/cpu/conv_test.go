package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convkit/internal/tensor"
)

func TestConv2D_BasicForward(t *testing.T) {
	b := New()

	// 1 2 3
	// 4 5 6
	// 7 8 9
	x := raw(t, tensor.Shape{1, 1, 3, 3}, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	// 1 0
	// 0 1
	w := raw(t, tensor.Shape{1, 1, 2, 2}, 1, 0, 0, 1)

	out := b.Conv2D(x, w, nil, tensor.NewConvOptions([]int{1, 1}, []int{0, 0}, []int{1, 1}, 1))

	require.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{6, 8, 12, 14}, out.AsFloat32())
}

func TestConv2D_WithPadding(t *testing.T) {
	b := New()
	ones := []float32{1, 1, 1, 1, 1, 1, 1, 1, 1}
	x := raw(t, tensor.Shape{1, 1, 3, 3}, ones...)
	w := raw(t, tensor.Shape{1, 1, 3, 3}, ones...)

	out := b.Conv2D(x, w, nil, tensor.NewConvOptions([]int{1, 1}, []int{1, 1}, []int{1, 1}, 1))

	require.Equal(t, tensor.Shape{1, 1, 3, 3}, out.Shape())
	// Corners see 4 cells, edges 6, the centre all 9.
	assert.Equal(t, []float32{4, 6, 4, 6, 9, 6, 4, 6, 4}, out.AsFloat32())
}

func TestConv2D_OutputShape(t *testing.T) {
	b := New()
	x := raw(t, tensor.Shape{1, 3, 28, 28})
	w := raw(t, tensor.Shape{8, 3, 3, 3})

	out := b.Conv2D(x, w, raw(t, tensor.Shape{8}), tensor.NewConvOptions([]int{1, 1}, []int{0, 0}, []int{1, 1}, 1))
	assert.Equal(t, tensor.Shape{1, 8, 26, 26}, out.Shape())

	out = b.Conv2D(x, w, nil, tensor.NewConvOptions([]int{2, 2}, []int{1, 1}, []int{1, 1}, 1))
	assert.Equal(t, tensor.Shape{1, 8, 14, 14}, out.Shape())
}

func TestConv1D(t *testing.T) {
	b := New()
	x := raw(t, tensor.Shape{1, 1, 5}, 1, 2, 3, 4, 5)
	w := raw(t, tensor.Shape{1, 1, 2}, 1, 1)

	tests := []struct {
		name     string
		stride   int
		dilation int
		want     []float32
	}{
		{"unit", 1, 1, []float32{3, 5, 7, 9}},
		{"stride", 2, 1, []float32{3, 7}},
		{"dilation", 1, 2, []float32{4, 6, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := b.Conv1D(x, w, nil, tensor.NewConvOptions([]int{tt.stride}, []int{0}, []int{tt.dilation}, 1))
			assert.Equal(t, tensor.Shape{1, 1, len(tt.want)}, out.Shape())
			assert.Equal(t, tt.want, out.AsFloat32())
		})
	}
}

func TestConv1D_GroupsAndBias(t *testing.T) {
	b := New()
	x := raw(t, tensor.Shape{1, 2, 3}, 1, 2, 3, 10, 20, 30)
	// One 1-wide kernel per group.
	w := raw(t, tensor.Shape{2, 1, 1}, 1, 2)
	bias := raw(t, tensor.Shape{2}, 0.5, -1)

	out := b.Conv1D(x, w, bias, tensor.NewConvOptions([]int{1}, []int{0}, []int{1}, 2))

	require.Equal(t, tensor.Shape{1, 2, 3}, out.Shape())
	assert.Equal(t, []float32{1.5, 2.5, 3.5, 19, 39, 59}, out.AsFloat32())
}

func TestConv3D(t *testing.T) {
	b := New()
	ones := []float32{1, 1, 1, 1, 1, 1, 1, 1}
	x := raw(t, tensor.Shape{1, 1, 2, 2, 2}, ones...)
	w := raw(t, tensor.Shape{1, 1, 2, 2, 2}, ones...)

	out := b.Conv3D(x, w, raw(t, tensor.Shape{1}, 1), tensor.NewConvOptions([]int{1, 1, 1}, []int{0, 0, 0}, []int{1, 1, 1}, 1))

	assert.Equal(t, tensor.Shape{1, 1, 1, 1, 1}, out.Shape())
	assert.Equal(t, []float32{9}, out.AsFloat32())
}

func TestConv_BatchIndependence(t *testing.T) {
	b := New()
	x := arange(t, tensor.Shape{2, 2, 4, 4}, 0.5)
	w := arange(t, tensor.Shape{3, 2, 2, 2}, 0.25)
	opts := tensor.NewConvOptions([]int{1, 1}, []int{0, 0}, []int{1, 1}, 1)

	out := b.Conv2D(x, w, nil, opts)

	// Running each sample alone gives the same planes.
	for n := 0; n < 2; n++ {
		single := raw(t, tensor.Shape{1, 2, 4, 4}, x.AsFloat32()[n*32:(n+1)*32]...)
		got := b.Conv2D(single, w, nil, opts)
		assert.Equal(t, out.AsFloat32()[n*27:(n+1)*27], got.AsFloat32())
	}
}

func TestConv_InvalidInputsPanic(t *testing.T) {
	b := New()
	opts := tensor.NewConvOptions([]int{1, 1}, []int{0, 0}, []int{1, 1}, 1)

	t.Run("rank", func(t *testing.T) {
		assert.Panics(t, func() {
			b.Conv2D(raw(t, tensor.Shape{3, 8, 8}), raw(t, tensor.Shape{1, 3, 3, 3}), nil, opts)
		})
	})
	t.Run("channels", func(t *testing.T) {
		assert.Panics(t, func() {
			b.Conv2D(raw(t, tensor.Shape{1, 2, 8, 8}), raw(t, tensor.Shape{1, 3, 3, 3}), nil, opts)
		})
	})
	t.Run("bias", func(t *testing.T) {
		assert.Panics(t, func() {
			b.Conv2D(raw(t, tensor.Shape{1, 3, 8, 8}), raw(t, tensor.Shape{2, 3, 3, 3}), raw(t, tensor.Shape{3}), opts)
		})
	})
	t.Run("kernel larger than input", func(t *testing.T) {
		assert.Panics(t, func() {
			b.Conv2D(raw(t, tensor.Shape{1, 1, 2, 2}), raw(t, tensor.Shape{1, 1, 3, 3}), nil, opts)
		})
	})
	t.Run("kernel larger than input with stride 2", func(t *testing.T) {
		assert.Panics(t, func() {
			b.Conv2D(raw(t, tensor.Shape{1, 1, 2, 2}), raw(t, tensor.Shape{1, 1, 3, 3}), nil,
				tensor.NewConvOptions([]int{2, 2}, []int{0, 0}, []int{1, 1}, 1))
		})
		assert.Panics(t, func() {
			b.Conv1D(raw(t, tensor.Shape{1, 1, 4}), raw(t, tensor.Shape{1, 1, 3}), nil,
				tensor.NewConvOptions([]int{3}, []int{0}, []int{2}, 1))
		})
	})
	t.Run("options arity", func(t *testing.T) {
		assert.Panics(t, func() {
			b.Conv2D(raw(t, tensor.Shape{1, 1, 4, 4}), raw(t, tensor.Shape{1, 1, 3, 3}), nil,
				tensor.NewConvOptions([]int{1}, []int{0}, []int{1}, 1))
		})
	})
}
