package nn

import (
	"github.com/born-ml/convkit/internal/autodiff"
	"github.com/born-ml/convkit/internal/module"
	"github.com/born-ml/convkit/internal/tensor"
)

// ConvTranspose2dConfig describes a ConvTranspose2d layer.
type ConvTranspose2dConfig struct {
	Channels    [2]int      `json:"channels" yaml:"channels"` // [in, out]
	KernelSize  [2]int      `json:"kernel_size" yaml:"kernel_size"`
	Stride      [2]int      `json:"stride" yaml:"stride"`
	Dilation    [2]int      `json:"dilation" yaml:"dilation"`
	Groups      int         `json:"groups" yaml:"groups"`
	Padding     [2]int      `json:"padding" yaml:"padding"`
	PaddingOut  [2]int      `json:"padding_out" yaml:"padding_out"`
	Bias        bool        `json:"bias" yaml:"bias"`
	Initializer Initializer `json:"initializer" yaml:"initializer"`
}

// NewConvTranspose2dConfig returns a config with stride 1, dilation 1, one
// group, no padding, a bias and the default initializer.
func NewConvTranspose2dConfig(channels [2]int, kernelSize [2]int) ConvTranspose2dConfig {
	return ConvTranspose2dConfig{
		Channels:    channels,
		KernelSize:  kernelSize,
		Stride:      [2]int{1, 1},
		Dilation:    [2]int{1, 1},
		Groups:      1,
		Bias:        true,
		Initializer: DefaultInitializer(),
	}
}

// WithStride sets the stride.
func (c ConvTranspose2dConfig) WithStride(stride [2]int) ConvTranspose2dConfig {
	c.Stride = stride
	return c
}

// WithDilation sets the dilation.
func (c ConvTranspose2dConfig) WithDilation(dilation [2]int) ConvTranspose2dConfig {
	c.Dilation = dilation
	return c
}

// WithGroups sets the number of groups.
func (c ConvTranspose2dConfig) WithGroups(groups int) ConvTranspose2dConfig {
	c.Groups = groups
	return c
}

// WithPadding sets the padding removed from both sides of each output axis.
func (c ConvTranspose2dConfig) WithPadding(padding [2]int) ConvTranspose2dConfig {
	c.Padding = padding
	return c
}

// WithPaddingOut sets the size added to one side of each output axis.
func (c ConvTranspose2dConfig) WithPaddingOut(paddingOut [2]int) ConvTranspose2dConfig {
	c.PaddingOut = paddingOut
	return c
}

// WithBias enables or disables the bias.
func (c ConvTranspose2dConfig) WithBias(bias bool) ConvTranspose2dConfig {
	c.Bias = bias
	return c
}

// WithInitializer sets the initializer of weight and bias.
func (c ConvTranspose2dConfig) WithInitializer(init Initializer) ConvTranspose2dConfig {
	c.Initializer = init
	return c
}

func (c ConvTranspose2dConfig) settings() transposeSettings {
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

// ConvTranspose2d applies a 2D transposed convolution, often used to upsample
// feature maps in decoders.
//
// Input shape:  [batch, channels_in, height, width]
// Weight shape: [channels_in, channels_out/groups, kernel_h, kernel_w]
// Output shape: [batch, channels_out, out_h, out_w]
//
// Where, per axis:
//
//	out = (in-1)*stride - 2*padding + dilation*(kernel-1) + padding_out + 1
//
// Example:
//
//	cfg := nn.NewConvTranspose2dConfig([2]int{8, 3}, [2]int{2, 2}).WithStride([2]int{2, 2})
//	up, err := nn.NewConvTranspose2d(cfg, backend, backend.Device())
//	// [1, 8, 14, 14] -> [1, 3, 28, 28]
type ConvTranspose2d[B tensor.Backend] struct {
	transposeCore[B]
}

// NewConvTranspose2d validates cfg and allocates the layer's parameters on device.
func NewConvTranspose2d[B tensor.Backend](cfg ConvTranspose2dConfig, backend B, device tensor.Device) (*ConvTranspose2d[B], error) {
	core, err := newTransposeCore("conv_transpose2d", 2, cfg.settings(), backend, device)
	if err != nil {
		return nil, err
	}
	return &ConvTranspose2d[B]{core}, nil
}

// Forward applies the transposed convolution to x of shape [N, C_in, H, W].
// It panics if x is not 4D or its channel count does not match the layer.
func (c *ConvTranspose2d[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return c.forward("conv_transpose2d", x)
}

// OutputSize returns [out_h, out_w] for an input of spatial size [h, w].
func (c *ConvTranspose2d[B]) OutputSize(h, w int) ([2]int, error) {
	out, err := c.outputSize([]int{h, w})
	if err != nil {
		return [2]int{}, err
	}
	return [2]int(out), nil
}

// Visit walks weight, bias and the hyperparameters in declaration order.
func (c *ConvTranspose2d[B]) Visit(v module.Visitor[B]) { c.visit(v) }

// Map returns a new layer whose parameter tensors are replaced by m.
func (c *ConvTranspose2d[B]) Map(m module.Mapper[B]) *ConvTranspose2d[B] {
	return &ConvTranspose2d[B]{c.mapWith(m)}
}

// NumParams returns the number of scalar parameters.
func (c *ConvTranspose2d[B]) NumParams() int { return c.numParams() }

// CollectDevices adds the devices of the layer's parameters to devices.
func (c *ConvTranspose2d[B]) CollectDevices(devices module.Devices) module.Devices {
	return c.collectDevices(devices)
}

// ToDevice returns a copy of the layer with its parameters on device.
func (c *ConvTranspose2d[B]) ToDevice(device tensor.Device) *ConvTranspose2d[B] {
	return &ConvTranspose2d[B]{c.toDevice(device)}
}

// Fork returns a copy on device whose parameters start a fresh gradient history.
func (c *ConvTranspose2d[B]) Fork(device tensor.Device) *ConvTranspose2d[B] {
	return &ConvTranspose2d[B]{c.fork(device)}
}

// IntoRecord returns the layer's record.
func (c *ConvTranspose2d[B]) IntoRecord() ConvTranspose2dRecord[B] { return c.intoRecord() }

// LoadRecord returns a layer built from r, which must match c's parameter shapes.
func (c *ConvTranspose2d[B]) LoadRecord(r ConvTranspose2dRecord[B]) (*ConvTranspose2d[B], error) {
	core, err := c.loadInto("conv_transpose2d", r)
	if err != nil {
		return nil, err
	}
	return &ConvTranspose2d[B]{core}, nil
}

// ConvTranspose2dFromRecord rebuilds a ConvTranspose2d from a record alone.
func ConvTranspose2dFromRecord[B tensor.Backend](r ConvTranspose2dRecord[B]) (*ConvTranspose2d[B], error) {
	core, err := transposeFromRecord("conv_transpose2d", 2, r)
	if err != nil {
		return nil, err
	}
	return &ConvTranspose2d[B]{core}, nil
}

// Weight returns the weight parameter.
func (c *ConvTranspose2d[B]) Weight() *module.Param[B] { return c.weight }

// Bias returns the bias parameter, or nil.
func (c *ConvTranspose2d[B]) Bias() *module.Param[B] { return c.bias }

// Channels returns [channels_in, channels_out].
func (c *ConvTranspose2d[B]) Channels() [2]int { return c.channels }

// Stride returns the stride.
func (c *ConvTranspose2d[B]) Stride() [2]int { return [2]int(c.stride) }

// KernelSize returns the kernel size.
func (c *ConvTranspose2d[B]) KernelSize() [2]int { return [2]int(c.kernelSize) }

// Dilation returns the dilation.
func (c *ConvTranspose2d[B]) Dilation() [2]int { return [2]int(c.dilation) }

// Groups returns the number of groups.
func (c *ConvTranspose2d[B]) Groups() int { return c.groups }

// Padding returns the padding.
func (c *ConvTranspose2d[B]) Padding() [2]int { return [2]int(c.padding) }

// PaddingOut returns the output padding.
func (c *ConvTranspose2d[B]) PaddingOut() [2]int { return [2]int(c.paddingOut) }

func (c *ConvTranspose2d[B]) String() string { return c.describe("ConvTranspose2d") }

// ValidConvTranspose2d returns the layer over the inner backend, without gradient tracking.
func ValidConvTranspose2d[I tensor.Backend](c *ConvTranspose2d[*autodiff.AutodiffBackend[I]]) *ConvTranspose2d[I] {
	return &ConvTranspose2d[I]{validTranspose(c.transposeCore)}
}
