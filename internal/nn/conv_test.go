package nn

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/convkit/internal/autodiff"
	"github.com/born-ml/convkit/internal/backend/cpu"
	"github.com/born-ml/convkit/internal/module"
	"github.com/born-ml/convkit/internal/tensor"
)

// trace records the visitor callbacks as "enter:name:kind", "float:shape" and "exit:name".
type trace[B tensor.Backend] struct {
	events []string
}

func (v *trace[B]) EnterModule(name string, kind module.Kind) {
	v.events = append(v.events, fmt.Sprintf("enter:%s:%s", name, kind))
}

func (v *trace[B]) VisitFloat(_ module.ParamID, t *tensor.Tensor[float32, B]) {
	v.events = append(v.events, fmt.Sprint("float:", []int(t.Shape())))
}

func (v *trace[B]) ExitModule(name string, _ module.Kind) {
	v.events = append(v.events, "exit:"+name)
}

func input[B tensor.Backend](t *testing.T, b B, shape tensor.Shape, values ...float32) *tensor.Tensor[float32, B] {
	t.Helper()
	if len(values) == 0 {
		return tensor.Arange[float32](shape, 0.1, b)
	}
	x, err := tensor.FromSlice(values, shape, b)
	require.NoError(t, err)
	return x
}

func TestNewConv2d_Shapes(t *testing.T) {
	backend := cpu.New()
	conv, err := NewConv2d(NewConv2dConfig([2]int{3, 8}, [2]int{3, 3}), backend, backend.Device())
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{8, 3, 3, 3}, conv.Weight().Shape())
	require.NotNil(t, conv.Bias())
	assert.Equal(t, tensor.Shape{8}, conv.Bias().Shape())
	assert.Equal(t, 3, conv.ChannelsIn())
	assert.Equal(t, 8, conv.ChannelsOut())
	assert.Equal(t, [2]int{1, 1}, conv.Stride())
	assert.Equal(t, [2]int{3, 3}, conv.KernelSize())
	assert.Equal(t, [2]int{1, 1}, conv.Dilation())
	assert.Equal(t, 1, conv.Groups())
	assert.Equal(t, Valid(), conv.Padding())
	assert.Equal(t, 224, conv.NumParams())
	assert.Equal(t, conv.NumParams(), module.NumParamsOf[*cpu.CPUBackend](conv))

	out := conv.Forward(tensor.Zeros[float32](tensor.Shape{1, 3, 28, 28}, backend))
	assert.Equal(t, tensor.Shape{1, 8, 26, 26}, out.Shape())

	size, err := conv.OutputSize(28, 28)
	require.NoError(t, err)
	assert.Equal(t, [2]int{26, 26}, size)

	assert.Equal(t,
		"Conv2d {ch_in: 3, ch_out: 8, stride: [1 1], kernel_size: [3 3], dilation: [1 1], groups: 1, padding: Valid, params: 224}",
		conv.String())
}

func TestNewConv2d_Grouped(t *testing.T) {
	backend := cpu.New()
	cfg := NewConv2dConfig([2]int{4, 8}, [2]int{3, 3}).WithGroups(2).WithBias(false)
	conv, err := NewConv2d(cfg, backend, backend.Device())
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{8, 2, 3, 3}, conv.Weight().Shape())
	assert.Nil(t, conv.Bias())
	assert.Equal(t, 144, conv.NumParams())

	out := conv.Forward(input(t, backend, tensor.Shape{2, 4, 6, 6}))
	assert.Equal(t, tensor.Shape{2, 8, 4, 4}, out.Shape())
}

func TestNewConv_GroupsMismatch(t *testing.T) {
	backend := cpu.New()
	device := backend.Device()

	_, err := NewConv1d(NewConv1dConfig(5, 4, 3).WithGroups(2), backend, device)
	requireConfigError(t, err, "conv1d", ErrGroupsMismatch)
	assert.Contains(t, err.Error(), "channels_in=5 channels_out=4 groups=2")

	_, err = NewConv2d(NewConv2dConfig([2]int{5, 4}, [2]int{3, 3}).WithGroups(2), backend, device)
	requireConfigError(t, err, "conv2d", ErrGroupsMismatch)

	_, err = NewConv3d(NewConv3dConfig([2]int{5, 4}, [3]int{3, 3, 3}).WithGroups(2), backend, device)
	requireConfigError(t, err, "conv3d", ErrGroupsMismatch)
}

func requireConfigError(t *testing.T, err error, layer string, sentinel error) {
	t.Helper()
	require.ErrorIs(t, err, sentinel)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce), "want *ConfigError, got %T", err)
	assert.Equal(t, layer, ce.Layer)
}

func TestNewConv_InvalidConfig(t *testing.T) {
	backend := cpu.New()
	device := backend.Device()

	tests := []struct {
		name string
		cfg  Conv2dConfig
	}{
		{"zero kernel", NewConv2dConfig([2]int{3, 8}, [2]int{0, 3})},
		{"zero channels", NewConv2dConfig([2]int{0, 8}, [2]int{3, 3})},
		{"zero stride", NewConv2dConfig([2]int{3, 8}, [2]int{3, 3}).WithStride([2]int{1, 0})},
		{"zero dilation", NewConv2dConfig([2]int{3, 8}, [2]int{3, 3}).WithDilation([2]int{0, 1})},
		{"explicit rank", NewConv2dConfig([2]int{3, 8}, [2]int{3, 3}).WithPadding(Explicit(1))},
		{"negative padding", NewConv2dConfig([2]int{3, 8}, [2]int{3, 3}).WithPadding(Explicit(1, -1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConv2d(tt.cfg, backend, device)
			requireConfigError(t, err, "conv2d", ErrInvalidConfig)
		})
	}
}

func TestNewConv1d_SamePadding(t *testing.T) {
	backend := cpu.New()
	device := backend.Device()

	_, err := NewConv1d(NewConv1dConfig(2, 2, 4).WithPadding(Same()), backend, device)
	requireConfigError(t, err, "conv1d", ErrSamePaddingEvenKernel)

	_, err = NewConv2d(NewConv2dConfig([2]int{2, 2}, [2]int{3, 2}).WithPadding(Same()), backend, device)
	requireConfigError(t, err, "conv2d", ErrSamePaddingEvenKernel)

	for _, stride := range []int{1, 2, 3} {
		conv, err := NewConv1d(NewConv1dConfig(2, 3, 3).WithPadding(Same()).WithStride(stride), backend, device)
		require.NoError(t, err)
		for _, length := range []int{5, 8, 13} {
			out := conv.Forward(input(t, backend, tensor.Shape{1, 2, length}))
			want := (length + stride - 1) / stride
			assert.Equal(t, tensor.Shape{1, 3, want}, out.Shape(), "stride=%d length=%d", stride, length)

			size, err := conv.OutputSize(length)
			require.NoError(t, err)
			assert.Equal(t, want, size)
		}
	}
}

func TestConv2d_ForwardValues(t *testing.T) {
	backend := cpu.New()
	cfg := NewConv2dConfig([2]int{1, 1}, [2]int{2, 2}).WithInitializer(Ones())
	conv, err := NewConv2d(cfg, backend, backend.Device())
	require.NoError(t, err)

	x := input(t, backend, tensor.Shape{1, 1, 3, 3}, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	// Each output sums a 2x2 window, plus the bias of 1.
	assert.Equal(t, []float32{13, 17, 25, 29}, conv.Forward(x).Data())

	padded, err := NewConv2d(cfg.WithPadding(Explicit(1, 0)).WithBias(false), backend, backend.Device())
	require.NoError(t, err)
	out := padded.Forward(x)
	assert.Equal(t, tensor.Shape{1, 1, 4, 2}, out.Shape())
	assert.Equal(t, []float32{3, 5, 12, 16, 24, 28, 15, 17}, out.Data())
}

func TestConv1d_ForwardValues(t *testing.T) {
	backend := cpu.New()
	cfg := NewConv1dConfig(1, 1, 3).WithInitializer(Ones()).WithBias(false)

	conv, err := NewConv1d(cfg.WithDilation(2), backend, backend.Device())
	require.NoError(t, err)
	x := input(t, backend, tensor.Shape{1, 1, 6}, 1, 2, 3, 4, 5, 6)
	assert.Equal(t, []float32{9, 12}, conv.Forward(x).Data())
	assert.Equal(t, 1, conv.ChannelsIn())
	assert.Equal(t, 2, conv.Dilation())

	strided, err := NewConv1d(cfg.WithStride(2).WithPadding(Same()), backend, backend.Device())
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 9, 15}, strided.Forward(x).Data())
}

func TestConv3d_Forward(t *testing.T) {
	backend := cpu.New()
	cfg := NewConv3dConfig([2]int{2, 4}, [3]int{3, 3, 3}).WithStride([3]int{1, 2, 2}).WithPadding(Same())
	conv, err := NewConv3d(cfg, backend, backend.Device())
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 2, 3, 3, 3}, conv.Weight().Shape())

	out := conv.Forward(input(t, backend, tensor.Shape{2, 2, 4, 7, 6}))
	assert.Equal(t, tensor.Shape{2, 4, 4, 4, 3}, out.Shape())

	size, err := conv.OutputSize(4, 7, 6)
	require.NoError(t, err)
	assert.Equal(t, [3]int{4, 4, 3}, size)
}

func TestConv_ForwardPanics(t *testing.T) {
	backend := cpu.New()
	conv, err := NewConv2d(NewConv2dConfig([2]int{3, 8}, [2]int{3, 3}), backend, backend.Device())
	require.NoError(t, err)

	assert.PanicsWithValue(t, "conv2d: expected 4D input [N,C,H,W], got 3D", func() {
		conv.Forward(tensor.Zeros[float32](tensor.Shape{3, 8, 8}, backend))
	})
	assert.PanicsWithValue(t, "conv2d: expected 3 input channels, got 4", func() {
		conv.Forward(tensor.Zeros[float32](tensor.Shape{1, 4, 8, 8}, backend))
	})

	conv1, err := NewConv1d(NewConv1dConfig(1, 1, 3), backend, backend.Device())
	require.NoError(t, err)
	assert.PanicsWithValue(t, "conv1d: expected 3D input [N,C,L], got 4D", func() {
		conv1.Forward(tensor.Zeros[float32](tensor.Shape{1, 1, 3, 3}, backend))
	})
}

func TestConv_OutputSizeTooSmall(t *testing.T) {
	backend := cpu.New()
	conv, err := NewConv2d(NewConv2dConfig([2]int{1, 1}, [2]int{5, 5}), backend, backend.Device())
	require.NoError(t, err)
	_, err = conv.OutputSize(3, 8)
	require.ErrorIs(t, err, ErrShapeMismatch)

	strided, err := NewConv2d(NewConv2dConfig([2]int{1, 1}, [2]int{3, 3}).WithStride([2]int{2, 2}), backend, backend.Device())
	require.NoError(t, err)
	_, err = strided.OutputSize(2, 2)
	require.ErrorIs(t, err, ErrShapeMismatch)
	size, err := strided.OutputSize(3, 4)
	require.NoError(t, err)
	assert.Equal(t, [2]int{1, 1}, size)
	assert.Panics(t, func() { strided.Forward(input(t, backend, tensor.Shape{1, 1, 2, 2})) })

	dilated, err := NewConv1d(NewConv1dConfig(1, 1, 3).WithStride(3).WithDilation(2), backend, backend.Device())
	require.NoError(t, err)
	_, err = dilated.OutputSize(4)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestConv_VisitOrder(t *testing.T) {
	backend := cpu.New()
	conv, err := NewConv2d(NewConv2dConfig([2]int{2, 4}, [2]int{3, 3}), backend, backend.Device())
	require.NoError(t, err)

	v := &trace[*cpu.CPUBackend]{}
	conv.Visit(v)
	assert.Equal(t, []string{
		"enter:weight:param", "float:[4 2 3 3]", "exit:weight",
		"enter:bias:param", "float:[4]", "exit:bias",
		"enter:stride:constant", "exit:stride",
		"enter:kernel_size:constant", "exit:kernel_size",
		"enter:dilation:constant", "exit:dilation",
		"enter:groups:constant", "exit:groups",
		"enter:padding:ignored", "exit:padding",
	}, v.events)

	noBias, err := NewConv1d(NewConv1dConfig(2, 4, 3).WithBias(false), backend, backend.Device())
	require.NoError(t, err)
	v = &trace[*cpu.CPUBackend]{}
	noBias.Visit(v)
	assert.Equal(t, "enter:stride:constant", v.events[3])

	params := module.ParamsOf[*cpu.CPUBackend](conv)
	require.Len(t, params, 2)
	assert.Equal(t, "weight", params[0].Path)
	assert.Equal(t, conv.Weight().ID(), params[0].ID)
	assert.Equal(t, "bias", params[1].Path)
}

func TestConv_Map(t *testing.T) {
	backend := cpu.New()
	conv, err := NewConv2d(NewConv2dConfig([2]int{1, 2}, [2]int{2, 2}).WithInitializer(Ones()), backend, backend.Device())
	require.NoError(t, err)

	var seen []module.ParamID
	zeroWeights := module.MapperFunc[*cpu.CPUBackend](func(id module.ParamID, x *tensor.Tensor[float32, *cpu.CPUBackend]) *tensor.Tensor[float32, *cpu.CPUBackend] {
		seen = append(seen, id)
		if len(x.Shape()) == 1 {
			return x
		}
		return tensor.Zeros[float32](x.Shape(), x.Backend())
	})
	mapped := conv.Map(zeroWeights)

	assert.Equal(t, []module.ParamID{conv.Weight().ID(), conv.Bias().ID()}, seen)
	assert.Equal(t, conv.Weight().ID(), mapped.Weight().ID())
	assert.Equal(t, conv.Stride(), mapped.Stride())

	out := mapped.Forward(input(t, backend, tensor.Shape{1, 1, 3, 3}))
	for _, v := range out.Data() {
		assert.Equal(t, float32(1), v)
	}
	// The receiver keeps its weights.
	assert.Equal(t, float32(1), conv.Weight().Val().Data()[0])
}

func TestConv_DeviceNeutrality(t *testing.T) {
	backend := cpu.New()
	conv, err := NewConv2d(NewConv2dConfig([2]int{2, 3}, [2]int{3, 3}).WithPadding(Same()), backend, backend.Device())
	require.NoError(t, err)
	x := input(t, backend, tensor.Shape{1, 2, 5, 5})
	want := conv.Forward(x)

	target := tensor.NewDevice(tensor.CPU, 1)
	moved := conv.ToDevice(target)
	forked := conv.Fork(target)

	for _, l := range []*Conv2d[*cpu.CPUBackend]{moved, forked} {
		assert.Equal(t, module.Devices{target}, l.CollectDevices(nil))
		assert.Equal(t, l.CollectDevices(nil), module.CollectDevicesOf[*cpu.CPUBackend](l, nil))
		assert.Equal(t, conv.Weight().ID(), l.Weight().ID())
		assert.Equal(t, conv.Bias().ID(), l.Bias().ID())
		assert.True(t, tensor.SameValues(want, l.Forward(x)))
	}
	assert.Equal(t, module.Devices{backend.Device()}, conv.CollectDevices(nil))
	assert.Equal(t, module.Devices{backend.Device(), target}, moved.CollectDevices(conv.CollectDevices(nil)))
}

func TestConv_ForkOnAutodiff(t *testing.T) {
	backend := autodiff.New(cpu.New())
	conv, err := NewConv1d(NewConv1dConfig(1, 2, 3), backend, backend.Device())
	require.NoError(t, err)
	assert.True(t, conv.Weight().Val().RequiresGrad())

	forked := conv.Fork(tensor.NewDevice(tensor.CPU, 1))
	assert.True(t, forked.Weight().Val().RequiresGrad())
	assert.True(t, forked.Bias().Val().RequiresGrad())
	assert.NotSame(t, conv.Weight().Val(), forked.Weight().Val())
}

func TestValidConv2d(t *testing.T) {
	inner := cpu.New()
	backend := autodiff.New(inner)
	conv, err := NewConv2d(NewConv2dConfig([2]int{2, 4}, [2]int{3, 3}).WithPadding(Same()), backend, backend.Device())
	require.NoError(t, err)

	backend.Tape().StartRecording()
	x := input(t, backend, tensor.Shape{1, 2, 4, 4})
	out := conv.Forward(x)
	assert.True(t, out.RequiresGrad())
	assert.Equal(t, 1, backend.Tape().NumOps())

	valid := ValidConv2d(conv)
	assert.Equal(t, conv.Weight().ID(), valid.Weight().ID())
	assert.Equal(t, conv.Padding(), valid.Padding())
	assert.False(t, valid.Weight().Val().RequiresGrad())

	validOut := valid.Forward(input(t, inner, tensor.Shape{1, 2, 4, 4}))
	assert.False(t, validOut.RequiresGrad())
	assert.Equal(t, out.Data(), validOut.Data())
	assert.Equal(t, 1, backend.Tape().NumOps())
}

func TestValidConv1d3d(t *testing.T) {
	backend := autodiff.New(cpu.New())
	c1, err := NewConv1d(NewConv1dConfig(2, 2, 3).WithBias(false), backend, backend.Device())
	require.NoError(t, err)
	v1 := ValidConv1d(c1)
	assert.Nil(t, v1.Bias())
	assert.Equal(t, c1.NumParams(), v1.NumParams())

	c3, err := NewConv3d(NewConv3dConfig([2]int{1, 2}, [3]int{1, 1, 1}), backend, backend.Device())
	require.NoError(t, err)
	v3 := ValidConv3d(c3)
	assert.Equal(t, c3.Weight().Val().Data(), v3.Weight().Val().Data())
}

func TestConv2dConfig_YAML(t *testing.T) {
	src := `
channels: [4, 8]
kernel_size: [5, 5]
stride: [2, 2]
groups: 2
padding: same
initializer:
  kind: xavier_uniform
`
	cfg := NewConv2dConfig([2]int{1, 1}, [2]int{1, 1})
	require.NoError(t, yaml.Unmarshal([]byte(src), &cfg))

	assert.Equal(t, [2]int{4, 8}, cfg.Channels)
	assert.Equal(t, [2]int{5, 5}, cfg.KernelSize)
	assert.Equal(t, [2]int{2, 2}, cfg.Stride)
	assert.Equal(t, [2]int{1, 1}, cfg.Dilation)
	assert.Equal(t, 2, cfg.Groups)
	assert.Equal(t, Same(), cfg.Padding)
	assert.True(t, cfg.Bias)
	assert.Equal(t, XavierUniform(1), cfg.Initializer)

	backend := cpu.New()
	conv, err := NewConv2d(cfg, backend, backend.Device())
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 8, 5, 5}, conv.Forward(input(t, backend, tensor.Shape{1, 4, 10, 9})).Shape())
}

func TestConfigSetters_DoNotAlias(t *testing.T) {
	base := NewConv2dConfig([2]int{2, 2}, [2]int{3, 3})
	strided := base.WithStride([2]int{2, 2})
	assert.Equal(t, [2]int{1, 1}, base.Stride)
	assert.Equal(t, [2]int{2, 2}, strided.Stride)
	assert.Equal(t, DefaultInitializer(), base.Initializer)
	assert.Equal(t, Valid(), base.Padding)
	assert.True(t, base.Bias)
	assert.Equal(t, 1, base.Groups)
}
