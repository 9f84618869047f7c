package nn

import (
	"github.com/born-ml/convkit/internal/autodiff"
	"github.com/born-ml/convkit/internal/module"
	"github.com/born-ml/convkit/internal/tensor"
)

// Conv1dConfig describes a Conv1d layer.
type Conv1dConfig struct {
	ChannelsIn  int           `json:"channels_in" yaml:"channels_in"`
	ChannelsOut int           `json:"channels_out" yaml:"channels_out"`
	KernelSize  int           `json:"kernel_size" yaml:"kernel_size"`
	Stride      int           `json:"stride" yaml:"stride"`
	Dilation    int           `json:"dilation" yaml:"dilation"`
	Groups      int           `json:"groups" yaml:"groups"`
	Padding     PaddingConfig `json:"padding" yaml:"padding"`
	Bias        bool          `json:"bias" yaml:"bias"`
	Initializer Initializer   `json:"initializer" yaml:"initializer"`
}

// NewConv1dConfig returns a config with stride 1, dilation 1, one group,
// Valid padding, a bias and the default initializer.
func NewConv1dConfig(channelsIn, channelsOut, kernelSize int) Conv1dConfig {
	return Conv1dConfig{
		ChannelsIn:  channelsIn,
		ChannelsOut: channelsOut,
		KernelSize:  kernelSize,
		Stride:      1,
		Dilation:    1,
		Groups:      1,
		Padding:     Valid(),
		Bias:        true,
		Initializer: DefaultInitializer(),
	}
}

// WithStride sets the stride.
func (c Conv1dConfig) WithStride(stride int) Conv1dConfig {
	c.Stride = stride
	return c
}

// WithDilation sets the dilation.
func (c Conv1dConfig) WithDilation(dilation int) Conv1dConfig {
	c.Dilation = dilation
	return c
}

// WithGroups sets the number of groups.
func (c Conv1dConfig) WithGroups(groups int) Conv1dConfig {
	c.Groups = groups
	return c
}

// WithPadding sets the padding policy.
func (c Conv1dConfig) WithPadding(padding PaddingConfig) Conv1dConfig {
	c.Padding = padding
	return c
}

// WithBias enables or disables the bias.
func (c Conv1dConfig) WithBias(bias bool) Conv1dConfig {
	c.Bias = bias
	return c
}

// WithInitializer sets the initializer of weight and bias.
func (c Conv1dConfig) WithInitializer(init Initializer) Conv1dConfig {
	c.Initializer = init
	return c
}

func (c Conv1dConfig) settings() convSettings {
	return convSettings{
		channelsIn:  c.ChannelsIn,
		channelsOut: c.ChannelsOut,
		kernel:      []int{c.KernelSize},
		stride:      []int{c.Stride},
		dilation:    []int{c.Dilation},
		groups:      c.Groups,
		padding:     c.Padding,
		bias:        c.Bias,
		initializer: c.Initializer,
	}
}

// Conv1d applies a 1D convolution over a sequence of channels.
//
// Input shape:  [batch, channels_in, length]
// Weight shape: [channels_out, channels_in/groups, kernel_size]
// Output shape: [batch, channels_out, out_length]
type Conv1d[B tensor.Backend] struct {
	convCore[B]
}

// NewConv1d validates cfg and allocates the layer's parameters on device.
func NewConv1d[B tensor.Backend](cfg Conv1dConfig, backend B, device tensor.Device) (*Conv1d[B], error) {
	core, err := newConvCore("conv1d", 1, cfg.settings(), backend, device)
	if err != nil {
		return nil, err
	}
	return &Conv1d[B]{core}, nil
}

// Forward applies the convolution to x of shape [N, C_in, L].
// It panics if x is not 3D or its channel count does not match the layer.
func (c *Conv1d[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return c.forward("conv1d", x)
}

// OutputSize returns the output length for an input of the given length.
func (c *Conv1d[B]) OutputSize(length int) (int, error) {
	out, err := c.outputSize([]int{length})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Visit walks weight, bias, stride, kernel_size, dilation, groups and padding in order.
func (c *Conv1d[B]) Visit(v module.Visitor[B]) { c.visit(v) }

// Map returns a new layer whose parameter tensors are replaced by m.
func (c *Conv1d[B]) Map(m module.Mapper[B]) *Conv1d[B] { return &Conv1d[B]{c.mapWith(m)} }

// NumParams returns the number of scalar parameters.
func (c *Conv1d[B]) NumParams() int { return c.numParams() }

// CollectDevices adds the devices of the layer's parameters to devices.
func (c *Conv1d[B]) CollectDevices(devices module.Devices) module.Devices {
	return c.collectDevices(devices)
}

// ToDevice returns a copy of the layer with its parameters on device.
func (c *Conv1d[B]) ToDevice(device tensor.Device) *Conv1d[B] { return &Conv1d[B]{c.toDevice(device)} }

// Fork returns a copy on device whose parameters start a fresh gradient history.
func (c *Conv1d[B]) Fork(device tensor.Device) *Conv1d[B] { return &Conv1d[B]{c.fork(device)} }

// IntoRecord returns the layer's record.
func (c *Conv1d[B]) IntoRecord() Conv1dRecord[B] { return c.intoRecord() }

// LoadRecord returns a layer built from r, which must match c's parameter shapes.
func (c *Conv1d[B]) LoadRecord(r Conv1dRecord[B]) (*Conv1d[B], error) {
	core, err := c.loadInto("conv1d", r)
	if err != nil {
		return nil, err
	}
	return &Conv1d[B]{core}, nil
}

// Conv1dFromRecord rebuilds a Conv1d from a record alone.
func Conv1dFromRecord[B tensor.Backend](r Conv1dRecord[B]) (*Conv1d[B], error) {
	core, err := convFromRecord("conv1d", 1, r)
	if err != nil {
		return nil, err
	}
	return &Conv1d[B]{core}, nil
}

// Weight returns the weight parameter.
func (c *Conv1d[B]) Weight() *module.Param[B] { return c.weight }

// Bias returns the bias parameter, or nil.
func (c *Conv1d[B]) Bias() *module.Param[B] { return c.bias }

// ChannelsIn returns the number of input channels.
func (c *Conv1d[B]) ChannelsIn() int { return c.channelsIn() }

// ChannelsOut returns the number of output channels.
func (c *Conv1d[B]) ChannelsOut() int { return c.channelsOut() }

// Stride returns the stride.
func (c *Conv1d[B]) Stride() int { return c.stride[0] }

// KernelSize returns the kernel size.
func (c *Conv1d[B]) KernelSize() int { return c.kernelSize[0] }

// Dilation returns the dilation.
func (c *Conv1d[B]) Dilation() int { return c.dilation[0] }

// Groups returns the number of groups.
func (c *Conv1d[B]) Groups() int { return c.groups }

// Padding returns the padding policy.
func (c *Conv1d[B]) Padding() PaddingConfig { return c.padding.Get() }

func (c *Conv1d[B]) String() string { return c.describe("Conv1d") }

// ValidConv1d returns the layer over the inner backend, without gradient tracking.
func ValidConv1d[I tensor.Backend](c *Conv1d[*autodiff.AutodiffBackend[I]]) *Conv1d[I] {
	return &Conv1d[I]{validConv(c.convCore)}
}
