package nn

import (
	"github.com/born-ml/convkit/internal/autodiff"
	"github.com/born-ml/convkit/internal/module"
	"github.com/born-ml/convkit/internal/tensor"
)

// ConvTranspose1dConfig describes a ConvTranspose1d layer.
type ConvTranspose1dConfig struct {
	Channels    [2]int      `json:"channels" yaml:"channels"` // [in, out]
	KernelSize  int         `json:"kernel_size" yaml:"kernel_size"`
	Stride      int         `json:"stride" yaml:"stride"`
	Dilation    int         `json:"dilation" yaml:"dilation"`
	Groups      int         `json:"groups" yaml:"groups"`
	Padding     int         `json:"padding" yaml:"padding"`
	PaddingOut  int         `json:"padding_out" yaml:"padding_out"`
	Bias        bool        `json:"bias" yaml:"bias"`
	Initializer Initializer `json:"initializer" yaml:"initializer"`
}

// NewConvTranspose1dConfig returns a config with stride 1, dilation 1, one
// group, no padding, a bias and the default initializer.
func NewConvTranspose1dConfig(channels [2]int, kernelSize int) ConvTranspose1dConfig {
	return ConvTranspose1dConfig{
		Channels:    channels,
		KernelSize:  kernelSize,
		Stride:      1,
		Dilation:    1,
		Groups:      1,
		Bias:        true,
		Initializer: DefaultInitializer(),
	}
}

// WithStride sets the stride.
func (c ConvTranspose1dConfig) WithStride(stride int) ConvTranspose1dConfig {
	c.Stride = stride
	return c
}

// WithDilation sets the dilation.
func (c ConvTranspose1dConfig) WithDilation(dilation int) ConvTranspose1dConfig {
	c.Dilation = dilation
	return c
}

// WithGroups sets the number of groups.
func (c ConvTranspose1dConfig) WithGroups(groups int) ConvTranspose1dConfig {
	c.Groups = groups
	return c
}

// WithPadding sets the padding removed from both sides of each output axis.
func (c ConvTranspose1dConfig) WithPadding(padding int) ConvTranspose1dConfig {
	c.Padding = padding
	return c
}

// WithPaddingOut sets the size added to one side of each output axis.
func (c ConvTranspose1dConfig) WithPaddingOut(paddingOut int) ConvTranspose1dConfig {
	c.PaddingOut = paddingOut
	return c
}

// WithBias enables or disables the bias.
func (c ConvTranspose1dConfig) WithBias(bias bool) ConvTranspose1dConfig {
	c.Bias = bias
	return c
}

// WithInitializer sets the initializer of weight and bias.
func (c ConvTranspose1dConfig) WithInitializer(init Initializer) ConvTranspose1dConfig {
	c.Initializer = init
	return c
}

func (c ConvTranspose1dConfig) settings() transposeSettings {
	return transposeSettings{
		channelsIn:  c.Channels[0],
		channelsOut: c.Channels[1],
		kernel:      []int{c.KernelSize},
		stride:      []int{c.Stride},
		dilation:    []int{c.Dilation},
		groups:      c.Groups,
		padding:     []int{c.Padding},
		paddingOut:  []int{c.PaddingOut},
		bias:        c.Bias,
		initializer: c.Initializer,
	}
}

// ConvTranspose1d applies a 1D transposed convolution, the adjoint of Conv1d.
//
// Input shape:  [batch, channels_in, length]
// Weight shape: [channels_in, channels_out/groups, kernel_size]
// Output shape: [batch, channels_out, (length-1)*stride - 2*padding + dilation*(kernel_size-1) + padding_out + 1]
type ConvTranspose1d[B tensor.Backend] struct {
	transposeCore[B]
}

// NewConvTranspose1d validates cfg and allocates the layer's parameters on device.
func NewConvTranspose1d[B tensor.Backend](cfg ConvTranspose1dConfig, backend B, device tensor.Device) (*ConvTranspose1d[B], error) {
	core, err := newTransposeCore("conv_transpose1d", 1, cfg.settings(), backend, device)
	if err != nil {
		return nil, err
	}
	return &ConvTranspose1d[B]{core}, nil
}

// Forward applies the transposed convolution to x of shape [N, C_in, L].
// It panics if x is not 3D or its channel count does not match the layer.
func (c *ConvTranspose1d[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return c.forward("conv_transpose1d", x)
}

// OutputSize returns the output length for an input of the given length.
func (c *ConvTranspose1d[B]) OutputSize(length int) (int, error) {
	out, err := c.outputSize([]int{length})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Visit walks weight, bias and the hyperparameters in declaration order.
func (c *ConvTranspose1d[B]) Visit(v module.Visitor[B]) { c.visit(v) }

// Map returns a new layer whose parameter tensors are replaced by m.
func (c *ConvTranspose1d[B]) Map(m module.Mapper[B]) *ConvTranspose1d[B] {
	return &ConvTranspose1d[B]{c.mapWith(m)}
}

// NumParams returns the number of scalar parameters.
func (c *ConvTranspose1d[B]) NumParams() int { return c.numParams() }

// CollectDevices adds the devices of the layer's parameters to devices.
func (c *ConvTranspose1d[B]) CollectDevices(devices module.Devices) module.Devices {
	return c.collectDevices(devices)
}

// ToDevice returns a copy of the layer with its parameters on device.
func (c *ConvTranspose1d[B]) ToDevice(device tensor.Device) *ConvTranspose1d[B] {
	return &ConvTranspose1d[B]{c.toDevice(device)}
}

// Fork returns a copy on device whose parameters start a fresh gradient history.
func (c *ConvTranspose1d[B]) Fork(device tensor.Device) *ConvTranspose1d[B] {
	return &ConvTranspose1d[B]{c.fork(device)}
}

// IntoRecord returns the layer's record.
func (c *ConvTranspose1d[B]) IntoRecord() ConvTranspose1dRecord[B] { return c.intoRecord() }

// LoadRecord returns a layer built from r, which must match c's parameter shapes.
func (c *ConvTranspose1d[B]) LoadRecord(r ConvTranspose1dRecord[B]) (*ConvTranspose1d[B], error) {
	core, err := c.loadInto("conv_transpose1d", r)
	if err != nil {
		return nil, err
	}
	return &ConvTranspose1d[B]{core}, nil
}

// ConvTranspose1dFromRecord rebuilds a ConvTranspose1d from a record alone.
func ConvTranspose1dFromRecord[B tensor.Backend](r ConvTranspose1dRecord[B]) (*ConvTranspose1d[B], error) {
	core, err := transposeFromRecord("conv_transpose1d", 1, r)
	if err != nil {
		return nil, err
	}
	return &ConvTranspose1d[B]{core}, nil
}

// Weight returns the weight parameter.
func (c *ConvTranspose1d[B]) Weight() *module.Param[B] { return c.weight }

// Bias returns the bias parameter, or nil.
func (c *ConvTranspose1d[B]) Bias() *module.Param[B] { return c.bias }

// Channels returns [channels_in, channels_out].
func (c *ConvTranspose1d[B]) Channels() [2]int { return c.channels }

// Stride returns the stride.
func (c *ConvTranspose1d[B]) Stride() int { return c.stride[0] }

// KernelSize returns the kernel size.
func (c *ConvTranspose1d[B]) KernelSize() int { return c.kernelSize[0] }

// Dilation returns the dilation.
func (c *ConvTranspose1d[B]) Dilation() int { return c.dilation[0] }

// Groups returns the number of groups.
func (c *ConvTranspose1d[B]) Groups() int { return c.groups }

// Padding returns the padding.
func (c *ConvTranspose1d[B]) Padding() int { return c.padding[0] }

// PaddingOut returns the output padding.
func (c *ConvTranspose1d[B]) PaddingOut() int { return c.paddingOut[0] }

func (c *ConvTranspose1d[B]) String() string { return c.describe("ConvTranspose1d") }

// ValidConvTranspose1d returns the layer over the inner backend, without gradient tracking.
func ValidConvTranspose1d[I tensor.Backend](c *ConvTranspose1d[*autodiff.AutodiffBackend[I]]) *ConvTranspose1d[I] {
	return &ConvTranspose1d[I]{validTranspose(c.transposeCore)}
}
