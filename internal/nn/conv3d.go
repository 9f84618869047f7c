package nn

import (
	"github.com/born-ml/convkit/internal/autodiff"
	"github.com/born-ml/convkit/internal/module"
	"github.com/born-ml/convkit/internal/tensor"
)

// Conv3dConfig describes a Conv3d layer.
type Conv3dConfig struct {
	Channels    [2]int        `json:"channels" yaml:"channels"` // [in, out]
	KernelSize  [3]int        `json:"kernel_size" yaml:"kernel_size"`
	Stride      [3]int        `json:"stride" yaml:"stride"`
	Dilation    [3]int        `json:"dilation" yaml:"dilation"`
	Groups      int           `json:"groups" yaml:"groups"`
	Padding     PaddingConfig `json:"padding" yaml:"padding"`
	Bias        bool          `json:"bias" yaml:"bias"`
	Initializer Initializer   `json:"initializer" yaml:"initializer"`
}

// NewConv3dConfig returns a config with stride 1, dilation 1, one group,
// Valid padding, a bias and the default initializer.
func NewConv3dConfig(channels [2]int, kernelSize [3]int) Conv3dConfig {
	return Conv3dConfig{
		Channels:    channels,
		KernelSize:  kernelSize,
		Stride:      [3]int{1, 1, 1},
		Dilation:    [3]int{1, 1, 1},
		Groups:      1,
		Padding:     Valid(),
		Bias:        true,
		Initializer: DefaultInitializer(),
	}
}

// WithStride sets the stride.
func (c Conv3dConfig) WithStride(stride [3]int) Conv3dConfig {
	c.Stride = stride
	return c
}

// WithDilation sets the dilation.
func (c Conv3dConfig) WithDilation(dilation [3]int) Conv3dConfig {
	c.Dilation = dilation
	return c
}

// WithGroups sets the number of groups.
func (c Conv3dConfig) WithGroups(groups int) Conv3dConfig {
	c.Groups = groups
	return c
}

// WithPadding sets the padding policy.
func (c Conv3dConfig) WithPadding(padding PaddingConfig) Conv3dConfig {
	c.Padding = padding
	return c
}

// WithBias enables or disables the bias.
func (c Conv3dConfig) WithBias(bias bool) Conv3dConfig {
	c.Bias = bias
	return c
}

// WithInitializer sets the initializer of weight and bias.
func (c Conv3dConfig) WithInitializer(init Initializer) Conv3dConfig {
	c.Initializer = init
	return c
}

func (c Conv3dConfig) settings() convSettings {
	return convSettings{
		channelsIn:  c.Channels[0],
		channelsOut: c.Channels[1],
		kernel:      c.KernelSize[:],
		stride:      c.Stride[:],
		dilation:    c.Dilation[:],
		groups:      c.Groups,
		padding:     c.Padding,
		bias:        c.Bias,
		initializer: c.Initializer,
	}
}

// Conv3d applies a 3D convolution over volumes.
//
// Input shape:  [batch, channels_in, depth, height, width]
// Weight shape: [channels_out, channels_in/groups, kernel_d, kernel_h, kernel_w]
// Output shape: [batch, channels_out, out_d, out_h, out_w]
type Conv3d[B tensor.Backend] struct {
	convCore[B]
}

// NewConv3d validates cfg and allocates the layer's parameters on device.
func NewConv3d[B tensor.Backend](cfg Conv3dConfig, backend B, device tensor.Device) (*Conv3d[B], error) {
	core, err := newConvCore("conv3d", 3, cfg.settings(), backend, device)
	if err != nil {
		return nil, err
	}
	return &Conv3d[B]{core}, nil
}

// Forward applies the convolution to x of shape [N, C_in, D, H, W].
// It panics if x is not 5D or its channel count does not match the layer.
func (c *Conv3d[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return c.forward("conv3d", x)
}

// OutputSize returns [out_d, out_h, out_w] for an input of spatial size [d, h, w].
func (c *Conv3d[B]) OutputSize(d, h, w int) ([3]int, error) {
	out, err := c.outputSize([]int{d, h, w})
	if err != nil {
		return [3]int{}, err
	}
	return [3]int(out), nil
}

// Visit walks weight, bias, stride, kernel_size, dilation, groups and padding in order.
func (c *Conv3d[B]) Visit(v module.Visitor[B]) { c.visit(v) }

// Map returns a new layer whose parameter tensors are replaced by m.
func (c *Conv3d[B]) Map(m module.Mapper[B]) *Conv3d[B] { return &Conv3d[B]{c.mapWith(m)} }

// NumParams returns the number of scalar parameters.
func (c *Conv3d[B]) NumParams() int { return c.numParams() }

// CollectDevices adds the devices of the layer's parameters to devices.
func (c *Conv3d[B]) CollectDevices(devices module.Devices) module.Devices {
	return c.collectDevices(devices)
}

// ToDevice returns a copy of the layer with its parameters on device.
func (c *Conv3d[B]) ToDevice(device tensor.Device) *Conv3d[B] { return &Conv3d[B]{c.toDevice(device)} }

// Fork returns a copy on device whose parameters start a fresh gradient history.
func (c *Conv3d[B]) Fork(device tensor.Device) *Conv3d[B] { return &Conv3d[B]{c.fork(device)} }

// IntoRecord returns the layer's record.
func (c *Conv3d[B]) IntoRecord() Conv3dRecord[B] { return c.intoRecord() }

// LoadRecord returns a layer built from r, which must match c's parameter shapes.
func (c *Conv3d[B]) LoadRecord(r Conv3dRecord[B]) (*Conv3d[B], error) {
	core, err := c.loadInto("conv3d", r)
	if err != nil {
		return nil, err
	}
	return &Conv3d[B]{core}, nil
}

// Conv3dFromRecord rebuilds a Conv3d from a record alone.
func Conv3dFromRecord[B tensor.Backend](r Conv3dRecord[B]) (*Conv3d[B], error) {
	core, err := convFromRecord("conv3d", 3, r)
	if err != nil {
		return nil, err
	}
	return &Conv3d[B]{core}, nil
}

// Weight returns the weight parameter.
func (c *Conv3d[B]) Weight() *module.Param[B] { return c.weight }

// Bias returns the bias parameter, or nil.
func (c *Conv3d[B]) Bias() *module.Param[B] { return c.bias }

// ChannelsIn returns the number of input channels.
func (c *Conv3d[B]) ChannelsIn() int { return c.channelsIn() }

// ChannelsOut returns the number of output channels.
func (c *Conv3d[B]) ChannelsOut() int { return c.channelsOut() }

// Stride returns the stride.
func (c *Conv3d[B]) Stride() [3]int { return [3]int(c.stride) }

// KernelSize returns the kernel size.
func (c *Conv3d[B]) KernelSize() [3]int { return [3]int(c.kernelSize) }

// Dilation returns the dilation.
func (c *Conv3d[B]) Dilation() [3]int { return [3]int(c.dilation) }

// Groups returns the number of groups.
func (c *Conv3d[B]) Groups() int { return c.groups }

// Padding returns the padding policy.
func (c *Conv3d[B]) Padding() PaddingConfig { return c.padding.Get() }

func (c *Conv3d[B]) String() string { return c.describe("Conv3d") }

// ValidConv3d returns the layer over the inner backend, without gradient tracking.
func ValidConv3d[I tensor.Backend](c *Conv3d[*autodiff.AutodiffBackend[I]]) *Conv3d[I] {
	return &Conv3d[I]{validConv(c.convCore)}
}
