package nn

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/born-ml/convkit/internal/autodiff"
	"github.com/born-ml/convkit/internal/module"
	"github.com/born-ml/convkit/internal/record"
	"github.com/born-ml/convkit/internal/tensor"
)

// DeformConv2dConfig describes a DeformConv2d layer.
type DeformConv2dConfig struct {
	Channels     [2]int        `json:"channels" yaml:"channels"` // [in, out]
	KernelSize   [2]int        `json:"kernel_size" yaml:"kernel_size"`
	Stride       [2]int        `json:"stride" yaml:"stride"`
	Dilation     [2]int        `json:"dilation" yaml:"dilation"`
	WeightGroups int           `json:"weight_groups" yaml:"weight_groups"`
	OffsetGroups int           `json:"offset_groups" yaml:"offset_groups"`
	Padding      PaddingConfig `json:"padding" yaml:"padding"`
	Bias         bool          `json:"bias" yaml:"bias"`
	Initializer  Initializer   `json:"initializer" yaml:"initializer"`
}

// NewDeformConv2dConfig returns a config with stride 1, dilation 1, one weight
// group, one offset group, Valid padding, a bias and the default initializer.
func NewDeformConv2dConfig(channels, kernelSize [2]int) DeformConv2dConfig {
	return DeformConv2dConfig{
		Channels:     channels,
		KernelSize:   kernelSize,
		Stride:       [2]int{1, 1},
		Dilation:     [2]int{1, 1},
		WeightGroups: 1,
		OffsetGroups: 1,
		Padding:      Valid(),
		Bias:         true,
		Initializer:  DefaultInitializer(),
	}
}

// WithStride sets the stride.
func (c DeformConv2dConfig) WithStride(stride [2]int) DeformConv2dConfig {
	c.Stride = stride
	return c
}

// WithDilation sets the dilation.
func (c DeformConv2dConfig) WithDilation(dilation [2]int) DeformConv2dConfig {
	c.Dilation = dilation
	return c
}

// WithWeightGroups sets the number of weight groups.
func (c DeformConv2dConfig) WithWeightGroups(groups int) DeformConv2dConfig {
	c.WeightGroups = groups
	return c
}

// WithOffsetGroups sets the number of offset groups.
func (c DeformConv2dConfig) WithOffsetGroups(groups int) DeformConv2dConfig {
	c.OffsetGroups = groups
	return c
}

// WithPadding sets the padding policy.
func (c DeformConv2dConfig) WithPadding(padding PaddingConfig) DeformConv2dConfig {
	c.Padding = padding
	return c
}

// WithBias enables or disables the bias.
func (c DeformConv2dConfig) WithBias(bias bool) DeformConv2dConfig {
	c.Bias = bias
	return c
}

// WithInitializer sets the initializer of weight and bias.
func (c DeformConv2dConfig) WithInitializer(init Initializer) DeformConv2dConfig {
	c.Initializer = init
	return c
}

func checkOffsetGroups(layer string, channelsIn, offsetGroups int) error {
	if offsetGroups < 1 || channelsIn%offsetGroups != 0 {
		return configErr(layer, ErrGroupsMismatch, "channels_in=%d offset_groups=%d", channelsIn, offsetGroups)
	}
	return nil
}

// DeformConv2d is a deformable 2D convolution. Every kernel tap samples the
// input at its regular grid position shifted by a learned (dy, dx) offset,
// using bilinear interpolation, and is optionally scaled by a mask.
//
// Input shape:  [batch, channels_in, height, width]
// Offset shape: [batch, 2*offset_groups*kernel_h*kernel_w, out_h, out_w]
// Mask shape:   [batch, offset_groups*kernel_h*kernel_w, out_h, out_w] (optional)
// Weight shape: [channels_out, channels_in/weight_groups, kernel_h, kernel_w]
// Output shape: [batch, channels_out, out_h, out_w]
//
// Offsets are laid out as (dy, dx) pairs per offset group and kernel tap.
// Input channels are split into offset_groups contiguous blocks, each
// following its own set of offsets.
type DeformConv2d[B tensor.Backend] struct {
	weight       *module.Param[B]
	bias         *module.Param[B]
	stride       [2]int
	kernelSize   [2]int
	dilation     [2]int
	weightGroups int
	offsetGroups int
	padding      module.Ignored[PaddingConfig]
}

// NewDeformConv2d validates cfg and allocates the layer's parameters on device.
func NewDeformConv2d[B tensor.Backend](cfg DeformConv2dConfig, backend B, device tensor.Device) (*DeformConv2d[B], error) {
	const layer = "deform_conv2d"
	s := convSettings{
		channelsIn:  cfg.Channels[0],
		channelsOut: cfg.Channels[1],
		kernel:      cfg.KernelSize[:],
		stride:      cfg.Stride[:],
		dilation:    cfg.Dilation[:],
		groups:      cfg.WeightGroups,
		padding:     cfg.Padding,
	}
	if err := s.validate(layer, 2); err != nil {
		return nil, err
	}
	if err := checkOffsetGroups(layer, cfg.Channels[0], cfg.OffsetGroups); err != nil {
		return nil, err
	}
	fanIn, fanOut := convFans(s.channelsIn, s.channelsOut, s.groups, s.kernel)
	weight, bias, err := initParams(cfg.Initializer,
		convWeightShape(s.channelsIn, s.channelsOut, s.groups, s.kernel),
		s.channelsOut, fanIn, fanOut, cfg.Bias, backend, device)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", layer, err)
	}
	d := &DeformConv2d[B]{
		weight:       weight,
		bias:         bias,
		stride:       cfg.Stride,
		kernelSize:   cfg.KernelSize,
		dilation:     cfg.Dilation,
		weightGroups: cfg.WeightGroups,
		offsetGroups: cfg.OffsetGroups,
		padding:      module.Ignore(cfg.Padding),
	}
	slog.Debug("layer initialized", "layer", layer,
		"channels_in", cfg.Channels[0], "channels_out", cfg.Channels[1],
		"kernel_size", cfg.KernelSize, "weight_groups", cfg.WeightGroups, "offset_groups", cfg.OffsetGroups,
		"padding", cfg.Padding.String(), "bias", cfg.Bias, "params", d.NumParams(), "device", device.String())
	return d, nil
}

// ChannelsIn returns the number of input channels.
func (d *DeformConv2d[B]) ChannelsIn() int { return d.weight.Shape()[1] * d.weightGroups }

// ChannelsOut returns the number of output channels.
func (d *DeformConv2d[B]) ChannelsOut() int { return d.weight.Shape()[0] }

// OffsetChannels returns the channel count Forward expects for offset.
func (d *DeformConv2d[B]) OffsetChannels() int {
	return 2 * d.offsetGroups * d.kernelSize[0] * d.kernelSize[1]
}

func (d *DeformConv2d[B]) resolvePadding(h, w int) ([]int, error) {
	return d.padding.Get().Resolve([]int{h, w}, d.kernelSize[:], d.stride[:], d.dilation[:])
}

// Forward applies the deformable convolution. mask may be nil.
// It panics if x is not 4D, its channel count does not match the layer, or
// offset and mask do not carry the expected number of channels.
func (d *DeformConv2d[B]) Forward(x, offset, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("deform_conv2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != d.ChannelsIn() {
		panic(fmt.Sprintf("deform_conv2d: expected %d input channels, got %d", d.ChannelsIn(), shape[1]))
	}
	if got := offset.Shape(); len(got) != 4 || got[0] != shape[0] || got[1] != d.OffsetChannels() {
		panic(fmt.Sprintf("deform_conv2d: offset shape %v, want [%d, %d, out_h, out_w]", []int(got), shape[0], d.OffsetChannels()))
	}
	if mask != nil {
		want := d.offsetGroups * d.kernelSize[0] * d.kernelSize[1]
		if ms := mask.Shape(); len(ms) != 4 || ms[0] != shape[0] || ms[1] != want {
			panic(fmt.Sprintf("deform_conv2d: mask shape %v, want [%d, %d, out_h, out_w]", []int(ms), shape[0], want))
		}
	}
	padding, err := d.resolvePadding(shape[2], shape[3])
	if err != nil {
		panic(fmt.Sprintf("deform_conv2d: %v", err))
	}
	opts := tensor.NewDeformConvOptions(d.stride[:], padding, d.dilation[:], d.weightGroups, d.offsetGroups)
	var bias *tensor.Tensor[float32, B]
	if d.bias != nil {
		bias = d.bias.Val()
	}
	return tensor.DeformConv2D(x, offset, d.weight.Val(), mask, bias, opts)
}

// OutputSize returns [out_h, out_w] for an input of spatial size [h, w].
// Offsets and masks passed to Forward must have this spatial size.
func (d *DeformConv2d[B]) OutputSize(h, w int) ([2]int, error) {
	padding, err := d.resolvePadding(h, w)
	if err != nil {
		return [2]int{}, err
	}
	var out [2]int
	for i, size := range []int{h, w} {
		out[i] = tensor.ConvOutputSize(size, d.kernelSize[i], d.stride[i], padding[i], d.dilation[i])
		if out[i] <= 0 {
			return [2]int{}, fmt.Errorf("%w: input [%d %d] is smaller than the effective kernel", ErrShapeMismatch, h, w)
		}
	}
	return out, nil
}

// Visit walks weight, bias, stride, kernel_size, dilation, weight_groups,
// offset_groups and padding in order.
func (d *DeformConv2d[B]) Visit(v module.Visitor[B]) {
	module.VisitParam(v, "weight", d.weight)
	module.VisitParam(v, "bias", d.bias)
	for _, name := range []string{"stride", "kernel_size", "dilation", "weight_groups", "offset_groups"} {
		module.VisitConstant(v, name)
	}
	module.VisitIgnored(v, "padding")
}

// Map returns a new layer whose parameter tensors are replaced by m.
func (d *DeformConv2d[B]) Map(m module.Mapper[B]) *DeformConv2d[B] {
	out := *d
	out.weight = module.MapParam(m, "weight", d.weight)
	out.bias = module.MapParam(m, "bias", d.bias)
	for _, name := range []string{"stride", "kernel_size", "dilation", "weight_groups", "offset_groups"} {
		module.MapConstant(m, name)
	}
	module.MapIgnored(m, "padding")
	return &out
}

// NumParams returns the number of scalar parameters.
func (d *DeformConv2d[B]) NumParams() int {
	n := d.weight.NumParams()
	if d.bias != nil {
		n += d.bias.NumParams()
	}
	return n
}

// CollectDevices adds the devices of the layer's parameters to devices.
func (d *DeformConv2d[B]) CollectDevices(devices module.Devices) module.Devices {
	devices = devices.Add(d.weight.Device())
	if d.bias != nil {
		devices = devices.Add(d.bias.Device())
	}
	return devices
}

// ToDevice returns a copy of the layer with its parameters on device.
func (d *DeformConv2d[B]) ToDevice(device tensor.Device) *DeformConv2d[B] {
	out := *d
	out.weight = d.weight.ToDevice(device)
	if d.bias != nil {
		out.bias = d.bias.ToDevice(device)
	}
	return &out
}

// Fork returns a copy on device whose parameters start a fresh gradient history.
func (d *DeformConv2d[B]) Fork(device tensor.Device) *DeformConv2d[B] {
	out := *d
	out.weight = d.weight.Fork(device)
	if d.bias != nil {
		out.bias = d.bias.Fork(device)
	}
	return &out
}

// Weight returns the weight parameter.
func (d *DeformConv2d[B]) Weight() *module.Param[B] { return d.weight }

// Bias returns the bias parameter, or nil.
func (d *DeformConv2d[B]) Bias() *module.Param[B] { return d.bias }

// Stride returns the stride.
func (d *DeformConv2d[B]) Stride() [2]int { return d.stride }

// KernelSize returns the kernel size.
func (d *DeformConv2d[B]) KernelSize() [2]int { return d.kernelSize }

// Dilation returns the dilation.
func (d *DeformConv2d[B]) Dilation() [2]int { return d.dilation }

// WeightGroups returns the number of weight groups.
func (d *DeformConv2d[B]) WeightGroups() int { return d.weightGroups }

// OffsetGroups returns the number of offset groups.
func (d *DeformConv2d[B]) OffsetGroups() int { return d.offsetGroups }

// Padding returns the padding policy.
func (d *DeformConv2d[B]) Padding() PaddingConfig { return d.padding.Get() }

func (d *DeformConv2d[B]) String() string {
	return fmt.Sprintf("DeformConv2d {ch_in: %d, ch_out: %d, stride: %v, kernel_size: %v, dilation: %v, weight_groups: %d, offset_groups: %d, padding: %s, params: %d}",
		d.ChannelsIn(), d.ChannelsOut(), d.stride, d.kernelSize, d.dilation, d.weightGroups, d.offsetGroups, d.padding.Get(), d.NumParams())
}

// DeformConv2dRecord is the record of a DeformConv2d.
type DeformConv2dRecord[B tensor.Backend] struct {
	Weight       *module.Param[B]
	Bias         *module.Param[B]
	Stride       [2]int
	KernelSize   [2]int
	Dilation     [2]int
	WeightGroups int
	OffsetGroups int
	Padding      PaddingConfig
}

// IntoRecord returns the layer's record.
func (d *DeformConv2d[B]) IntoRecord() DeformConv2dRecord[B] {
	return DeformConv2dRecord[B]{
		Weight:       d.weight,
		Bias:         d.bias,
		Stride:       d.stride,
		KernelSize:   d.kernelSize,
		Dilation:     d.dilation,
		WeightGroups: d.weightGroups,
		OffsetGroups: d.offsetGroups,
		Padding:      d.padding.Get(),
	}
}

// LoadRecord returns a layer built from r, which must match d's parameter shapes.
func (d *DeformConv2d[B]) LoadRecord(r DeformConv2dRecord[B]) (*DeformConv2d[B], error) {
	loaded, err := DeformConv2dFromRecord(r)
	if err != nil {
		return nil, err
	}
	if err := sameParamShapes("deform_conv2d", d.weight, d.bias, loaded.weight, loaded.bias); err != nil {
		return nil, err
	}
	return loaded, nil
}

// DeformConv2dFromRecord rebuilds a DeformConv2d from a record alone.
func DeformConv2dFromRecord[B tensor.Backend](r DeformConv2dRecord[B]) (*DeformConv2d[B], error) {
	const layer = "deform_conv2d"
	if r.Weight == nil {
		return nil, configErr(layer, ErrShapeMismatch, "record has no weight")
	}
	core, err := convFromRecord(layer, 2, ConvRecord[B]{
		Weight:     r.Weight,
		Bias:       r.Bias,
		Stride:     r.Stride[:],
		KernelSize: r.KernelSize[:],
		Dilation:   r.Dilation[:],
		Groups:     r.WeightGroups,
		Padding:    r.Padding,
	})
	if err != nil {
		return nil, err
	}
	if err := checkOffsetGroups(layer, core.channelsIn(), r.OffsetGroups); err != nil {
		return nil, err
	}
	return &DeformConv2d[B]{
		weight:       r.Weight,
		bias:         r.Bias,
		stride:       r.Stride,
		kernelSize:   r.KernelSize,
		dilation:     r.Dilation,
		weightGroups: r.WeightGroups,
		offsetGroups: r.OffsetGroups,
		padding:      module.Ignore(r.Padding),
	}, nil
}

// IntoItem encodes the record at the given precision, fields in layer order.
func (r DeformConv2dRecord[B]) IntoItem(p record.Precision) *record.Item {
	return record.NewItem().
		Set("weight", module.ParamIntoItem(r.Weight, p)).
		Set("bias", module.ParamIntoItem(r.Bias, p)).
		Set("stride", slices.Clone(r.Stride[:])).
		Set("kernel_size", slices.Clone(r.KernelSize[:])).
		Set("dilation", slices.Clone(r.Dilation[:])).
		Set("weight_groups", r.WeightGroups).
		Set("offset_groups", r.OffsetGroups).
		Set("padding", r.Padding.IntoItem())
}

// DeformConv2dRecordFromItem decodes a DeformConv2d record onto backend and device.
func DeformConv2dRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (DeformConv2dRecord[B], error) {
	var (
		r   DeformConv2dRecord[B]
		err error
	)
	if r.Weight, err = module.RequiredParamFromItem(item, "weight", backend, device); err != nil {
		return DeformConv2dRecord[B]{}, err
	}
	if r.Bias, err = module.OptionalParamFromItem(item, "bias", backend, device); err != nil {
		return DeformConv2dRecord[B]{}, err
	}
	pairs := []struct {
		name string
		dst  *[2]int
	}{
		{"stride", &r.Stride},
		{"kernel_size", &r.KernelSize},
		{"dilation", &r.Dilation},
	}
	for _, f := range pairs {
		values, err := item.Ints(f.name)
		if err != nil {
			return DeformConv2dRecord[B]{}, err
		}
		if len(values) != 2 {
			return DeformConv2dRecord[B]{}, &record.DecodeError{
				Field: f.name,
				Err:   fmt.Errorf("%w: want 2 values, got %d", record.ErrTypeMismatch, len(values)),
			}
		}
		*f.dst = [2]int(values)
	}
	if r.WeightGroups, err = item.Int("weight_groups"); err != nil {
		return DeformConv2dRecord[B]{}, err
	}
	if r.OffsetGroups, err = item.Int("offset_groups"); err != nil {
		return DeformConv2dRecord[B]{}, err
	}
	if r.Padding, err = paddingField(item, "padding"); err != nil {
		return DeformConv2dRecord[B]{}, err
	}
	return r, nil
}

// ValidDeformConv2d returns the layer over the inner backend, without gradient tracking.
func ValidDeformConv2d[I tensor.Backend](d *DeformConv2d[*autodiff.AutodiffBackend[I]]) *DeformConv2d[I] {
	return &DeformConv2d[I]{
		weight:       module.ValidParam(d.weight),
		bias:         module.ValidParam(d.bias),
		stride:       d.stride,
		kernelSize:   d.kernelSize,
		dilation:     d.dilation,
		weightGroups: d.weightGroups,
		offsetGroups: d.offsetGroups,
		padding:      d.padding,
	}
}
