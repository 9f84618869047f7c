package nn

import (
	"github.com/born-ml/convkit/internal/autodiff"
	"github.com/born-ml/convkit/internal/module"
	"github.com/born-ml/convkit/internal/tensor"
)

// Conv2dConfig describes a Conv2d layer.
type Conv2dConfig struct {
	Channels    [2]int        `json:"channels" yaml:"channels"` // [in, out]
	KernelSize  [2]int        `json:"kernel_size" yaml:"kernel_size"`
	Stride      [2]int        `json:"stride" yaml:"stride"`
	Dilation    [2]int        `json:"dilation" yaml:"dilation"`
	Groups      int           `json:"groups" yaml:"groups"`
	Padding     PaddingConfig `json:"padding" yaml:"padding"`
	Bias        bool          `json:"bias" yaml:"bias"`
	Initializer Initializer   `json:"initializer" yaml:"initializer"`
}

// NewConv2dConfig returns a config with stride 1, dilation 1, one group,
// Valid padding, a bias and the default initializer.
func NewConv2dConfig(channels, kernelSize [2]int) Conv2dConfig {
	return Conv2dConfig{
		Channels:    channels,
		KernelSize:  kernelSize,
		Stride:      [2]int{1, 1},
		Dilation:    [2]int{1, 1},
		Groups:      1,
		Padding:     Valid(),
		Bias:        true,
		Initializer: DefaultInitializer(),
	}
}

// WithStride sets the stride.
func (c Conv2dConfig) WithStride(stride [2]int) Conv2dConfig {
	c.Stride = stride
	return c
}

// WithDilation sets the dilation.
func (c Conv2dConfig) WithDilation(dilation [2]int) Conv2dConfig {
	c.Dilation = dilation
	return c
}

// WithGroups sets the number of groups.
func (c Conv2dConfig) WithGroups(groups int) Conv2dConfig {
	c.Groups = groups
	return c
}

// WithPadding sets the padding policy.
func (c Conv2dConfig) WithPadding(padding PaddingConfig) Conv2dConfig {
	c.Padding = padding
	return c
}

// WithBias enables or disables the bias.
func (c Conv2dConfig) WithBias(bias bool) Conv2dConfig {
	c.Bias = bias
	return c
}

// WithInitializer sets the initializer of weight and bias.
func (c Conv2dConfig) WithInitializer(init Initializer) Conv2dConfig {
	c.Initializer = init
	return c
}

func (c Conv2dConfig) settings() convSettings {
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

// Conv2d applies a 2D convolution over an input signal composed of several
// input planes.
//
// Input shape:  [batch, channels_in, height, width]
// Weight shape: [channels_out, channels_in/groups, kernel_h, kernel_w]
// Output shape: [batch, channels_out, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*pad_h - dilation_h*(kernel_h-1) - 1) / stride_h + 1
//	out_w = (width + 2*pad_w - dilation_w*(kernel_w-1) - 1) / stride_w + 1
//
// Padding is resolved from the configured policy on every Forward call, so
// Same padding adapts to the input size.
//
// Example:
//
//	backend := cpu.New()
//	cfg := nn.NewConv2dConfig([2]int{3, 8}, [2]int{3, 3})
//	conv, err := nn.NewConv2d(cfg, backend, backend.Device())
//	if err != nil {
//	    return err
//	}
//	output := conv.Forward(input) // [1, 3, 28, 28] -> [1, 8, 26, 26]
type Conv2d[B tensor.Backend] struct {
	convCore[B]
}

// NewConv2d validates cfg and allocates the layer's parameters on device.
// Configuration errors are reported as *ConfigError before anything is allocated.
func NewConv2d[B tensor.Backend](cfg Conv2dConfig, backend B, device tensor.Device) (*Conv2d[B], error) {
	core, err := newConvCore("conv2d", 2, cfg.settings(), backend, device)
	if err != nil {
		return nil, err
	}
	return &Conv2d[B]{core}, nil
}

// Forward applies the convolution to x of shape [N, C_in, H, W].
// It panics if x is not 4D or its channel count does not match the layer.
func (c *Conv2d[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return c.forward("conv2d", x)
}

// OutputSize returns [out_h, out_w] for an input of spatial size [h, w].
func (c *Conv2d[B]) OutputSize(h, w int) ([2]int, error) {
	out, err := c.outputSize([]int{h, w})
	if err != nil {
		return [2]int{}, err
	}
	return [2]int{out[0], out[1]}, nil
}

// Visit walks weight, bias, stride, kernel_size, dilation, groups and padding in order.
func (c *Conv2d[B]) Visit(v module.Visitor[B]) {
	c.visit(v)
}

// Map returns a new layer whose parameter tensors are replaced by m.
func (c *Conv2d[B]) Map(m module.Mapper[B]) *Conv2d[B] {
	return &Conv2d[B]{c.mapWith(m)}
}

// NumParams returns the number of scalar parameters.
func (c *Conv2d[B]) NumParams() int {
	return c.numParams()
}

// CollectDevices adds the devices of the layer's parameters to devices.
func (c *Conv2d[B]) CollectDevices(devices module.Devices) module.Devices {
	return c.collectDevices(devices)
}

// ToDevice returns a copy of the layer with its parameters on device.
func (c *Conv2d[B]) ToDevice(device tensor.Device) *Conv2d[B] {
	return &Conv2d[B]{c.toDevice(device)}
}

// Fork returns a copy on device whose parameters start a fresh gradient history.
func (c *Conv2d[B]) Fork(device tensor.Device) *Conv2d[B] {
	return &Conv2d[B]{c.fork(device)}
}

// IntoRecord returns the layer's record.
func (c *Conv2d[B]) IntoRecord() Conv2dRecord[B] {
	return c.intoRecord()
}

// LoadRecord returns a layer built from r. The record must be valid on its
// own and carry parameters of the same shapes as c.
func (c *Conv2d[B]) LoadRecord(r Conv2dRecord[B]) (*Conv2d[B], error) {
	core, err := c.loadInto("conv2d", r)
	if err != nil {
		return nil, err
	}
	return &Conv2d[B]{core}, nil
}

// Conv2dFromRecord rebuilds a Conv2d from a record alone.
func Conv2dFromRecord[B tensor.Backend](r Conv2dRecord[B]) (*Conv2d[B], error) {
	core, err := convFromRecord("conv2d", 2, r)
	if err != nil {
		return nil, err
	}
	return &Conv2d[B]{core}, nil
}

// Weight returns the weight parameter.
func (c *Conv2d[B]) Weight() *module.Param[B] { return c.weight }

// Bias returns the bias parameter, or nil.
func (c *Conv2d[B]) Bias() *module.Param[B] { return c.bias }

// ChannelsIn returns the number of input channels.
func (c *Conv2d[B]) ChannelsIn() int { return c.channelsIn() }

// ChannelsOut returns the number of output channels.
func (c *Conv2d[B]) ChannelsOut() int { return c.channelsOut() }

// Stride returns the stride.
func (c *Conv2d[B]) Stride() [2]int { return [2]int(c.stride) }

// KernelSize returns the kernel size.
func (c *Conv2d[B]) KernelSize() [2]int { return [2]int(c.kernelSize) }

// Dilation returns the dilation.
func (c *Conv2d[B]) Dilation() [2]int { return [2]int(c.dilation) }

// Groups returns the number of groups.
func (c *Conv2d[B]) Groups() int { return c.groups }

// Padding returns the padding policy.
func (c *Conv2d[B]) Padding() PaddingConfig { return c.padding.Get() }

// String describes the layer's hyperparameters and parameter count.
func (c *Conv2d[B]) String() string { return c.describe("Conv2d") }

// ValidConv2d returns the layer over the inner backend, without gradient tracking.
func ValidConv2d[I tensor.Backend](c *Conv2d[*autodiff.AutodiffBackend[I]]) *Conv2d[I] {
	return &Conv2d[I]{validConv(c.convCore)}
}
