package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convkit/internal/autodiff"
	"github.com/born-ml/convkit/internal/backend/cpu"
	"github.com/born-ml/convkit/internal/record"
	"github.com/born-ml/convkit/internal/tensor"
)

func TestConvTranspose1d_ForwardValues(t *testing.T) {
	backend := cpu.New()
	base := NewConvTranspose1dConfig([2]int{1, 1}, 2).WithInitializer(Ones()).WithBias(false)
	x := input(t, backend, tensor.Shape{1, 1, 3}, 1, 2, 3)

	tests := []struct {
		name string
		cfg  ConvTranspose1dConfig
		want []float32
	}{
		{"unit stride", base, []float32{1, 3, 5, 3}},
		{"stride 2", base.WithStride(2), []float32{1, 1, 2, 2, 3, 3}},
		{"padding", base.WithPadding(1), []float32{3, 5}},
		{"padding out", base.WithStride(2).WithPaddingOut(1), []float32{1, 1, 2, 2, 3, 3, 0}},
		{"dilation", base.WithDilation(2), []float32{1, 2, 4, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, err := NewConvTranspose1d(tt.cfg, backend, backend.Device())
			require.NoError(t, err)
			out := conv.Forward(x)
			assert.Equal(t, tt.want, out.Data())

			size, err := conv.OutputSize(3)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), size)
		})
	}
}

func TestConvTranspose2d_Upsample(t *testing.T) {
	backend := cpu.New()
	cfg := NewConvTranspose2dConfig([2]int{8, 3}, [2]int{2, 2}).WithStride([2]int{2, 2})
	conv, err := NewConvTranspose2d(cfg, backend, backend.Device())
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{8, 3, 2, 2}, conv.Weight().Shape())
	assert.Equal(t, tensor.Shape{3}, conv.Bias().Shape())
	assert.Equal(t, [2]int{8, 3}, conv.Channels())
	assert.Equal(t, 8*3*4+3, conv.NumParams())

	out := conv.Forward(input(t, backend, tensor.Shape{1, 8, 14, 14}))
	assert.Equal(t, tensor.Shape{1, 3, 28, 28}, out.Shape())

	size, err := conv.OutputSize(14, 14)
	require.NoError(t, err)
	assert.Equal(t, [2]int{28, 28}, size)
	assert.Equal(t,
		"ConvTranspose2d {channels: [8 3], stride: [2 2], kernel_size: [2 2], dilation: [1 1], groups: 1, padding: [0 0], padding_out: [0 0], params: 99}",
		conv.String())
}

func TestConvTranspose_Groups(t *testing.T) {
	backend := cpu.New()
	device := backend.Device()

	conv, err := NewConvTranspose2d(NewConvTranspose2dConfig([2]int{4, 6}, [2]int{3, 3}).WithGroups(2), backend, device)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 3, 3, 3}, conv.Weight().Shape())
	assert.Equal(t, tensor.Shape{2, 6, 7, 7}, conv.Forward(input(t, backend, tensor.Shape{2, 4, 5, 5})).Shape())

	_, err = NewConvTranspose1d(NewConvTranspose1dConfig([2]int{5, 4}, 3).WithGroups(2), backend, device)
	requireConfigError(t, err, "conv_transpose1d", ErrGroupsMismatch)
	assert.Contains(t, err.Error(), "channels_in=5 channels_out=4 groups=2")

	_, err = NewConvTranspose3d(NewConvTranspose3dConfig([2]int{5, 4}, [3]int{3, 3, 3}).WithGroups(2), backend, device)
	requireConfigError(t, err, "conv_transpose3d", ErrGroupsMismatch)
}

func TestConvTranspose_InvalidConfig(t *testing.T) {
	backend := cpu.New()
	device := backend.Device()

	_, err := NewConvTranspose1d(NewConvTranspose1dConfig([2]int{1, 1}, 3).WithPaddingOut(1), backend, device)
	requireConfigError(t, err, "conv_transpose1d", ErrInvalidConfig)

	_, err = NewConvTranspose1d(NewConvTranspose1dConfig([2]int{1, 1}, 3).WithPadding(-1), backend, device)
	requireConfigError(t, err, "conv_transpose1d", ErrInvalidConfig)

	_, err = NewConvTranspose2d(NewConvTranspose2dConfig([2]int{1, 1}, [2]int{3, 0}), backend, device)
	requireConfigError(t, err, "conv_transpose2d", ErrInvalidConfig)

	// padding_out below the dilation is allowed even at stride 1.
	_, err = NewConvTranspose1d(NewConvTranspose1dConfig([2]int{1, 1}, 3).WithDilation(2).WithPaddingOut(1), backend, device)
	require.NoError(t, err)
}

func TestConvTranspose_OutputSizeEmpty(t *testing.T) {
	backend := cpu.New()
	cfg := NewConvTranspose2dConfig([2]int{1, 1}, [2]int{1, 1}).WithStride([2]int{2, 2}).WithPadding([2]int{1, 1})
	conv, err := NewConvTranspose2d(cfg, backend, backend.Device())
	require.NoError(t, err)

	size, err := conv.OutputSize(2, 3)
	require.NoError(t, err)
	assert.Equal(t, [2]int{1, 3}, size)

	_, err = conv.OutputSize(1, 3)
	require.ErrorIs(t, err, ErrShapeMismatch)
	_, err = conv.OutputSize(0, 3)
	require.ErrorIs(t, err, ErrShapeMismatch)
	assert.Panics(t, func() { conv.Forward(input(t, backend, tensor.Shape{1, 1, 1, 3})) })
}

func TestConvTranspose3d_Forward(t *testing.T) {
	backend := cpu.New()
	cfg := NewConvTranspose3dConfig([2]int{2, 3}, [3]int{3, 3, 3}).
		WithStride([3]int{2, 1, 1}).
		WithPadding([3]int{1, 1, 0}).
		WithPaddingOut([3]int{1, 0, 0})
	conv, err := NewConvTranspose3d(cfg, backend, backend.Device())
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3, 3, 3, 3}, conv.Weight().Shape())

	out := conv.Forward(input(t, backend, tensor.Shape{1, 2, 3, 4, 4}))
	assert.Equal(t, tensor.Shape{1, 3, 6, 4, 6}, out.Shape())
	assert.Equal(t, [3]int{1, 0, 0}, conv.PaddingOut())
}

func TestConvTranspose_ForwardPanics(t *testing.T) {
	backend := cpu.New()
	conv, err := NewConvTranspose2d(NewConvTranspose2dConfig([2]int{2, 3}, [2]int{3, 3}), backend, backend.Device())
	require.NoError(t, err)

	assert.PanicsWithValue(t, "conv_transpose2d: expected 4D input [N,C,H,W], got 5D", func() {
		conv.Forward(tensor.Zeros[float32](tensor.Shape{1, 2, 3, 3, 3}, backend))
	})
	assert.PanicsWithValue(t, "conv_transpose2d: expected 2 input channels, got 3", func() {
		conv.Forward(tensor.Zeros[float32](tensor.Shape{1, 3, 3, 3}, backend))
	})
}

func TestConvTranspose_VisitOrder(t *testing.T) {
	backend := cpu.New()
	conv, err := NewConvTranspose1d(NewConvTranspose1dConfig([2]int{2, 4}, 3).WithBias(false), backend, backend.Device())
	require.NoError(t, err)

	v := &trace[*cpu.CPUBackend]{}
	conv.Visit(v)
	assert.Equal(t, []string{
		"enter:weight:param", "float:[2 4 3]", "exit:weight",
		"enter:stride:constant", "exit:stride",
		"enter:kernel_size:constant", "exit:kernel_size",
		"enter:dilation:constant", "exit:dilation",
		"enter:groups:constant", "exit:groups",
		"enter:padding:constant", "exit:padding",
		"enter:padding_out:constant", "exit:padding_out",
		"enter:channels:constant", "exit:channels",
	}, v.events)
}

func TestConvTransposeRecord_RoundTrip(t *testing.T) {
	backend := cpu.New()
	cfg := NewConvTranspose2dConfig([2]int{4, 2}, [2]int{3, 3}).
		WithStride([2]int{2, 2}).
		WithPadding([2]int{1, 1}).
		WithPaddingOut([2]int{1, 1}).
		WithGroups(2)
	conv, err := NewConvTranspose2d(cfg, backend, backend.Device())
	require.NoError(t, err)
	x := input(t, backend, tensor.Shape{1, 4, 3, 3})
	want := conv.Forward(x)
	assert.Equal(t, tensor.Shape{1, 2, 6, 6}, want.Shape())

	item := viaJSON(t, conv.IntoRecord().IntoItem(record.Full))
	assert.Equal(t, []string{
		"weight", "bias", "stride", "kernel_size", "dilation", "groups", "padding", "padding_out", "channels",
	}, item.Keys())

	r, err := ConvTranspose2dRecordFromItem(item, backend, backend.Device())
	require.NoError(t, err)
	assert.Equal(t, [2]int{4, 2}, r.Channels)
	assert.Equal(t, []int{1, 1}, r.PaddingOut)

	loaded, err := conv.LoadRecord(r)
	require.NoError(t, err)
	assert.True(t, tensor.SameValues(want, loaded.Forward(x)))

	r.Channels = [2]int{4, 4}
	_, err = ConvTranspose2dFromRecord(r)
	requireConfigError(t, err, "conv_transpose2d", ErrShapeMismatch)

	bad := conv.IntoRecord().IntoItem(record.Full).Set("channels", []int{4})
	_, err = ConvTranspose2dRecordFromItem(bad, backend, backend.Device())
	require.ErrorIs(t, err, record.ErrTypeMismatch)
}

func TestConvTranspose1d3dRecord(t *testing.T) {
	backend := cpu.New()
	c1, err := NewConvTranspose1d(NewConvTranspose1dConfig([2]int{2, 2}, 3), backend, backend.Device())
	require.NoError(t, err)
	r1, err := ConvTranspose1dRecordFromItem(viaJSON(t, c1.IntoRecord().IntoItem(record.Double)), backend, backend.Device())
	require.NoError(t, err)
	l1, err := ConvTranspose1dFromRecord(r1)
	require.NoError(t, err)
	assert.Equal(t, c1.String(), l1.String())

	c3, err := NewConvTranspose3d(NewConvTranspose3dConfig([2]int{1, 1}, [3]int{1, 1, 1}), backend, backend.Device())
	require.NoError(t, err)
	r3, err := ConvTranspose3dRecordFromItem(viaJSON(t, c3.IntoRecord().IntoItem(record.Full)), backend, backend.Device())
	require.NoError(t, err)
	l3, err := c3.LoadRecord(r3)
	require.NoError(t, err)
	assert.Equal(t, c3.Weight().Val().Data(), l3.Weight().Val().Data())

	_, err = c3.LoadRecord(r1)
	requireConfigError(t, err, "conv_transpose3d", ErrInvalidConfig)
}

func TestValidConvTranspose(t *testing.T) {
	inner := cpu.New()
	backend := autodiff.New(inner)
	conv, err := NewConvTranspose2d(NewConvTranspose2dConfig([2]int{2, 2}, [2]int{2, 2}), backend, backend.Device())
	require.NoError(t, err)

	x := input(t, backend, tensor.Shape{1, 2, 3, 3})
	out := conv.Forward(x)
	assert.True(t, out.RequiresGrad())

	valid := ValidConvTranspose2d(conv)
	validOut := valid.Forward(input(t, inner, tensor.Shape{1, 2, 3, 3}))
	assert.False(t, validOut.RequiresGrad())
	assert.Equal(t, out.Data(), validOut.Data())

	c1, err := NewConvTranspose1d(NewConvTranspose1dConfig([2]int{1, 1}, 1), backend, backend.Device())
	require.NoError(t, err)
	assert.Equal(t, c1.NumParams(), ValidConvTranspose1d(c1).NumParams())

	c3, err := NewConvTranspose3d(NewConvTranspose3dConfig([2]int{1, 1}, [3]int{1, 1, 1}), backend, backend.Device())
	require.NoError(t, err)
	assert.Equal(t, c3.Bias().ID(), ValidConvTranspose3d(c3).Bias().ID())
}

func TestConvTranspose_DeviceNeutrality(t *testing.T) {
	backend := cpu.New()
	conv, err := NewConvTranspose1d(NewConvTranspose1dConfig([2]int{2, 3}, 3).WithStride(2), backend, backend.Device())
	require.NoError(t, err)
	x := input(t, backend, tensor.Shape{2, 2, 5})
	want := conv.Forward(x)

	target := tensor.NewDevice(tensor.CPU, 3)
	for _, l := range []*ConvTranspose1d[*cpu.CPUBackend]{conv.ToDevice(target), conv.Fork(target)} {
		assert.Equal(t, []tensor.Device{target}, []tensor.Device(l.CollectDevices(nil)))
		assert.True(t, tensor.SameValues(want, l.Forward(x)))
	}
}
