package nn

import (
	"github.com/born-ml/convkit/internal/autodiff"
	"github.com/born-ml/convkit/internal/module"
	"github.com/born-ml/convkit/internal/tensor"
)

// ConvTranspose3dConfig describes a ConvTranspose3d layer.
type ConvTranspose3dConfig struct {
	Channels    [2]int      `json:"channels" yaml:"channels"` // [in, out]
	KernelSize  [3]int      `json:"kernel_size" yaml:"kernel_size"`
	Stride      [3]int      `json:"stride" yaml:"stride"`
	Dilation    [3]int      `json:"dilation" yaml:"dilation"`
	Groups      int         `json:"groups" yaml:"groups"`
	Padding     [3]int      `json:"padding" yaml:"padding"`
	PaddingOut  [3]int      `json:"padding_out" yaml:"padding_out"`
	Bias        bool        `json:"bias" yaml:"bias"`
	Initializer Initializer `json:"initializer" yaml:"initializer"`
}

// NewConvTranspose3dConfig returns a config with stride 1, dilation 1, one
// group, no padding, a bias and the default initializer.
func NewConvTranspose3dConfig(channels [2]int, kernelSize [3]int) ConvTranspose3dConfig {
	return ConvTranspose3dConfig{
		Channels:    channels,
		KernelSize:  kernelSize,
		Stride:      [3]int{1, 1, 1},
		Dilation:    [3]int{1, 1, 1},
		Groups:      1,
		Bias:        true,
		Initializer: DefaultInitializer(),
	}
}

// WithStride sets the stride.
func (c ConvTranspose3dConfig) WithStride(stride [3]int) ConvTranspose3dConfig {
	c.Stride = stride
	return c
}

// WithDilation sets the dilation.
func (c ConvTranspose3dConfig) WithDilation(dilation [3]int) ConvTranspose3dConfig {
	c.Dilation = dilation
	return c
}

// WithGroups sets the number of groups.
func (c ConvTranspose3dConfig) WithGroups(groups int) ConvTranspose3dConfig {
	c.Groups = groups
	return c
}

// WithPadding sets the padding removed from both sides of each output axis.
func (c ConvTranspose3dConfig) WithPadding(padding [3]int) ConvTranspose3dConfig {
	c.Padding = padding
	return c
}

// WithPaddingOut sets the size added to one side of each output axis.
func (c ConvTranspose3dConfig) WithPaddingOut(paddingOut [3]int) ConvTranspose3dConfig {
	c.PaddingOut = paddingOut
	return c
}

// WithBias enables or disables the bias.
func (c ConvTranspose3dConfig) WithBias(bias bool) ConvTranspose3dConfig {
	c.Bias = bias
	return c
}

// WithInitializer sets the initializer of weight and bias.
func (c ConvTranspose3dConfig) WithInitializer(init Initializer) ConvTranspose3dConfig {
	c.Initializer = init
	return c
}

func (c ConvTranspose3dConfig) settings() transposeSettings {
	return transposeSettings{
		channelsIn:  c.Channels[0],
		channelsOut: c.Channels[1],
		kernel:      c.KernelSize[:],
		stride:      c.Stride[:],
		dilation:    c.Dilation[:],
		groups:      c.Groups,
		padding:     c.Padding[:],
		paddingOut:  c.PaddingOut[:],
		bias:        c.Bias,
		initializer: c.Initializer,
	}
}

// ConvTranspose3d applies a 3D transposed convolution.
//
// Input shape:  [batch, channels_in, depth, height, width]
// Weight shape: [channels_in, channels_out/groups, kernel_d, kernel_h, kernel_w]
// Output shape: [batch, channels_out, out_d, out_h, out_w]
type ConvTranspose3d[B tensor.Backend] struct {
	transposeCore[B]
}

// NewConvTranspose3d validates cfg and allocates the layer's parameters on device.
func NewConvTranspose3d[B tensor.Backend](cfg ConvTranspose3dConfig, backend B, device tensor.Device) (*ConvTranspose3d[B], error) {
	core, err := newTransposeCore("conv_transpose3d", 3, cfg.settings(), backend, device)
	if err != nil {
		return nil, err
	}
	return &ConvTranspose3d[B]{core}, nil
}

// Forward applies the transposed convolution to x of shape [N, C_in, D, H, W].
// It panics if x is not 5D or its channel count does not match the layer.
func (c *ConvTranspose3d[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return c.forward("conv_transpose3d", x)
}

// OutputSize returns [out_d, out_h, out_w] for an input of spatial size [d, h, w].
func (c *ConvTranspose3d[B]) OutputSize(d, h, w int) ([3]int, error) {
	out, err := c.outputSize([]int{d, h, w})
	if err != nil {
		return [3]int{}, err
	}
	return [3]int(out), nil
}

// Visit walks weight, bias and the hyperparameters in declaration order.
func (c *ConvTranspose3d[B]) Visit(v module.Visitor[B]) { c.visit(v) }

// Map returns a new layer whose parameter tensors are replaced by m.
func (c *ConvTranspose3d[B]) Map(m module.Mapper[B]) *ConvTranspose3d[B] {
	return &ConvTranspose3d[B]{c.mapWith(m)}
}

// NumParams returns the number of scalar parameters.
func (c *ConvTranspose3d[B]) NumParams() int { return c.numParams() }

// CollectDevices adds the devices of the layer's parameters to devices.
func (c *ConvTranspose3d[B]) CollectDevices(devices module.Devices) module.Devices {
	return c.collectDevices(devices)
}

// ToDevice returns a copy of the layer with its parameters on device.
func (c *ConvTranspose3d[B]) ToDevice(device tensor.Device) *ConvTranspose3d[B] {
	return &ConvTranspose3d[B]{c.toDevice(device)}
}

// Fork returns a copy on device whose parameters start a fresh gradient history.
func (c *ConvTranspose3d[B]) Fork(device tensor.Device) *ConvTranspose3d[B] {
	return &ConvTranspose3d[B]{c.fork(device)}
}

// IntoRecord returns the layer's record.
func (c *ConvTranspose3d[B]) IntoRecord() ConvTranspose3dRecord[B] { return c.intoRecord() }

// LoadRecord returns a layer built from r, which must match c's parameter shapes.
func (c *ConvTranspose3d[B]) LoadRecord(r ConvTranspose3dRecord[B]) (*ConvTranspose3d[B], error) {
	core, err := c.loadInto("conv_transpose3d", r)
	if err != nil {
		return nil, err
	}
	return &ConvTranspose3d[B]{core}, nil
}

// ConvTranspose3dFromRecord rebuilds a ConvTranspose3d from a record alone.
func ConvTranspose3dFromRecord[B tensor.Backend](r ConvTranspose3dRecord[B]) (*ConvTranspose3d[B], error) {
	core, err := transposeFromRecord("conv_transpose3d", 3, r)
	if err != nil {
		return nil, err
	}
	return &ConvTranspose3d[B]{core}, nil
}

// Weight returns the weight parameter.
func (c *ConvTranspose3d[B]) Weight() *module.Param[B] { return c.weight }

// Bias returns the bias parameter, or nil.
func (c *ConvTranspose3d[B]) Bias() *module.Param[B] { return c.bias }

// Channels returns [channels_in, channels_out].
func (c *ConvTranspose3d[B]) Channels() [2]int { return c.channels }

// Stride returns the stride.
func (c *ConvTranspose3d[B]) Stride() [3]int { return [3]int(c.stride) }

// KernelSize returns the kernel size.
func (c *ConvTranspose3d[B]) KernelSize() [3]int { return [3]int(c.kernelSize) }

// Dilation returns the dilation.
func (c *ConvTranspose3d[B]) Dilation() [3]int { return [3]int(c.dilation) }

// Groups returns the number of groups.
func (c *ConvTranspose3d[B]) Groups() int { return c.groups }

// Padding returns the padding.
func (c *ConvTranspose3d[B]) Padding() [3]int { return [3]int(c.padding) }

// PaddingOut returns the output padding.
func (c *ConvTranspose3d[B]) PaddingOut() [3]int { return [3]int(c.paddingOut) }

func (c *ConvTranspose3d[B]) String() string { return c.describe("ConvTranspose3d") }

// ValidConvTranspose3d returns the layer over the inner backend, without gradient tracking.
func ValidConvTranspose3d[I tensor.Backend](c *ConvTranspose3d[*autodiff.AutodiffBackend[I]]) *ConvTranspose3d[I] {
	return &ConvTranspose3d[I]{validTranspose(c.transposeCore)}
}
