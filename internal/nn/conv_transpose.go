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

// transposeSettings is the rank-independent view of the ConvTranspose configs.
type transposeSettings struct {
	channelsIn  int
	channelsOut int
	kernel      []int
	stride      []int
	dilation    []int
	groups      int
	padding     []int
	paddingOut  []int
	bias        bool
	initializer Initializer
}

func (s transposeSettings) validate(layer string, rank int) error {
	if err := checkPositive(layer, "channels", 0, s.channelsIn, s.channelsOut); err != nil {
		return err
	}
	return checkTransposeGeometry(layer, rank, s.channelsIn, s.channelsOut, s.groups,
		s.kernel, s.stride, s.dilation, s.padding, s.paddingOut)
}

func checkTransposeGeometry(
	layer string, rank, channelsIn, channelsOut, groups int,
	kernel, stride, dilation, padding, paddingOut []int,
) error {
	if err := checkPositive(layer, "kernel_size", rank, kernel...); err != nil {
		return err
	}
	if err := checkPositive(layer, "stride", rank, stride...); err != nil {
		return err
	}
	if err := checkPositive(layer, "dilation", rank, dilation...); err != nil {
		return err
	}
	if err := checkNonNegative(layer, "padding", rank, padding...); err != nil {
		return err
	}
	if err := checkNonNegative(layer, "padding_out", rank, paddingOut...); err != nil {
		return err
	}
	for i, p := range paddingOut {
		if p >= stride[i] && p >= dilation[i] {
			return configErr(layer, ErrInvalidConfig,
				"padding_out[%d]=%d must be smaller than stride (%d) or dilation (%d)", i, p, stride[i], dilation[i])
		}
	}
	return checkGroups(layer, channelsIn, channelsOut, groups)
}

// transposeCore holds the state shared by ConvTranspose1d, ConvTranspose2d and ConvTranspose3d.
type transposeCore[B tensor.Backend] struct {
	weight     *module.Param[B] // [in, out/groups, *kernel]
	bias       *module.Param[B] // [out], optional
	stride     []int
	kernelSize []int
	dilation   []int
	groups     int
	padding    []int
	paddingOut []int
	channels   [2]int
}

func newTransposeCore[B tensor.Backend](
	layer string, rank int, s transposeSettings, backend B, device tensor.Device,
) (transposeCore[B], error) {
	if err := s.validate(layer, rank); err != nil {
		return transposeCore[B]{}, err
	}
	fanIn, fanOut := transposeFans(s.channelsIn, s.channelsOut, s.groups, s.kernel)
	weight, bias, err := initParams(s.initializer,
		transposeWeightShape(s.channelsIn, s.channelsOut, s.groups, s.kernel),
		s.channelsOut, fanIn, fanOut, s.bias, backend, device)
	if err != nil {
		return transposeCore[B]{}, fmt.Errorf("%s: %w", layer, err)
	}
	c := transposeCore[B]{
		weight:     weight,
		bias:       bias,
		stride:     slices.Clone(s.stride),
		kernelSize: slices.Clone(s.kernel),
		dilation:   slices.Clone(s.dilation),
		groups:     s.groups,
		padding:    slices.Clone(s.padding),
		paddingOut: slices.Clone(s.paddingOut),
		channels:   [2]int{s.channelsIn, s.channelsOut},
	}
	slog.Debug("layer initialized", "layer", layer,
		"channels_in", s.channelsIn, "channels_out", s.channelsOut,
		"kernel_size", s.kernel, "groups", s.groups, "padding", s.padding, "padding_out", s.paddingOut,
		"bias", s.bias, "params", c.numParams(), "device", device.String())
	return c, nil
}

func (c transposeCore[B]) visit(v module.Visitor[B]) {
	module.VisitParam(v, "weight", c.weight)
	module.VisitParam(v, "bias", c.bias)
	for _, name := range []string{"stride", "kernel_size", "dilation", "groups", "padding", "padding_out", "channels"} {
		module.VisitConstant(v, name)
	}
}

func (c transposeCore[B]) mapWith(m module.Mapper[B]) transposeCore[B] {
	out := c
	out.weight = module.MapParam(m, "weight", c.weight)
	out.bias = module.MapParam(m, "bias", c.bias)
	for _, name := range []string{"stride", "kernel_size", "dilation", "groups", "padding", "padding_out", "channels"} {
		module.MapConstant(m, name)
	}
	return out
}

func (c transposeCore[B]) numParams() int {
	n := c.weight.NumParams()
	if c.bias != nil {
		n += c.bias.NumParams()
	}
	return n
}

func (c transposeCore[B]) toDevice(device tensor.Device) transposeCore[B] {
	out := c
	out.weight = c.weight.ToDevice(device)
	if c.bias != nil {
		out.bias = c.bias.ToDevice(device)
	}
	return out
}

func (c transposeCore[B]) fork(device tensor.Device) transposeCore[B] {
	out := c
	out.weight = c.weight.Fork(device)
	if c.bias != nil {
		out.bias = c.bias.Fork(device)
	}
	return out
}

func (c transposeCore[B]) collectDevices(devices module.Devices) module.Devices {
	devices = devices.Add(c.weight.Device())
	if c.bias != nil {
		devices = devices.Add(c.bias.Device())
	}
	return devices
}

func (c transposeCore[B]) forward(layer string, x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	rank := len(c.kernelSize)
	shape := x.Shape()
	if len(shape) != rank+2 {
		panic(fmt.Sprintf("%s: expected %dD input [N,C,%s], got %dD", layer, rank+2, spatialNames(rank), len(shape)))
	}
	if shape[1] != c.channels[0] {
		panic(fmt.Sprintf("%s: expected %d input channels, got %d", layer, c.channels[0], shape[1]))
	}
	opts := tensor.NewConvTransposeOptions(c.stride, c.padding, c.paddingOut, c.dilation, c.groups)
	var bias *tensor.Tensor[float32, B]
	if c.bias != nil {
		bias = c.bias.Val()
	}
	switch rank {
	case 1:
		return tensor.ConvTranspose1D(x, c.weight.Val(), bias, opts)
	case 2:
		return tensor.ConvTranspose2D(x, c.weight.Val(), bias, opts)
	default:
		return tensor.ConvTranspose3D(x, c.weight.Val(), bias, opts)
	}
}

func (c transposeCore[B]) outputSize(input []int) ([]int, error) {
	if len(input) != len(c.kernelSize) {
		return nil, fmt.Errorf("%w: want %d spatial sizes, got %d", ErrShapeMismatch, len(c.kernelSize), len(input))
	}
	out := make([]int, len(input))
	for i := range out {
		out[i] = tensor.ConvTransposeOutputSize(input[i], c.kernelSize[i], c.stride[i], c.padding[i], c.paddingOut[i], c.dilation[i])
		if input[i] < 1 || out[i] <= 0 {
			return nil, fmt.Errorf("%w: input %v gives an empty output", ErrShapeMismatch, input)
		}
	}
	return out, nil
}

func (c transposeCore[B]) describe(name string) string {
	return fmt.Sprintf("%s {channels: %v, stride: %v, kernel_size: %v, dilation: %v, groups: %d, padding: %v, padding_out: %v, params: %d}",
		name, c.channels, c.stride, c.kernelSize, c.dilation, c.groups, c.padding, c.paddingOut, c.numParams())
}

func (c transposeCore[B]) intoRecord() ConvTransposeRecord[B] {
	return ConvTransposeRecord[B]{
		Weight:     c.weight,
		Bias:       c.bias,
		Stride:     slices.Clone(c.stride),
		KernelSize: slices.Clone(c.kernelSize),
		Dilation:   slices.Clone(c.dilation),
		Groups:     c.groups,
		Padding:    slices.Clone(c.padding),
		PaddingOut: slices.Clone(c.paddingOut),
		Channels:   c.channels,
	}
}

// ConvTransposeRecord is the record of ConvTranspose1d, ConvTranspose2d and ConvTranspose3d.
type ConvTransposeRecord[B tensor.Backend] struct {
	Weight     *module.Param[B]
	Bias       *module.Param[B]
	Stride     []int
	KernelSize []int
	Dilation   []int
	Groups     int
	Padding    []int
	PaddingOut []int
	Channels   [2]int
}

// ConvTranspose1dRecord is the record of a ConvTranspose1d.
type ConvTranspose1dRecord[B tensor.Backend] = ConvTransposeRecord[B]

// ConvTranspose2dRecord is the record of a ConvTranspose2d.
type ConvTranspose2dRecord[B tensor.Backend] = ConvTransposeRecord[B]

// ConvTranspose3dRecord is the record of a ConvTranspose3d.
type ConvTranspose3dRecord[B tensor.Backend] = ConvTransposeRecord[B]

// IntoItem encodes the record at the given precision, fields in layer order.
func (r ConvTransposeRecord[B]) IntoItem(p record.Precision) *record.Item {
	return record.NewItem().
		Set("weight", module.ParamIntoItem(r.Weight, p)).
		Set("bias", module.ParamIntoItem(r.Bias, p)).
		Set("stride", slices.Clone(r.Stride)).
		Set("kernel_size", slices.Clone(r.KernelSize)).
		Set("dilation", slices.Clone(r.Dilation)).
		Set("groups", r.Groups).
		Set("padding", slices.Clone(r.Padding)).
		Set("padding_out", slices.Clone(r.PaddingOut)).
		Set("channels", r.Channels[:])
}

// ConvTranspose1dRecordFromItem decodes a ConvTranspose1d record onto backend and device.
func ConvTranspose1dRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (ConvTranspose1dRecord[B], error) {
	return transposeRecordFromItem(item, backend, device)
}

// ConvTranspose2dRecordFromItem decodes a ConvTranspose2d record onto backend and device.
func ConvTranspose2dRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (ConvTranspose2dRecord[B], error) {
	return transposeRecordFromItem(item, backend, device)
}

// ConvTranspose3dRecordFromItem decodes a ConvTranspose3d record onto backend and device.
func ConvTranspose3dRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (ConvTranspose3dRecord[B], error) {
	return transposeRecordFromItem(item, backend, device)
}

func transposeRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (ConvTransposeRecord[B], error) {
	var (
		r   ConvTransposeRecord[B]
		err error
	)
	if r.Weight, err = module.RequiredParamFromItem(item, "weight", backend, device); err != nil {
		return ConvTransposeRecord[B]{}, err
	}
	if r.Bias, err = module.OptionalParamFromItem(item, "bias", backend, device); err != nil {
		return ConvTransposeRecord[B]{}, err
	}
	ints := []struct {
		name string
		dst  *[]int
	}{
		{"stride", &r.Stride},
		{"kernel_size", &r.KernelSize},
		{"dilation", &r.Dilation},
		{"padding", &r.Padding},
		{"padding_out", &r.PaddingOut},
	}
	for _, f := range ints {
		if *f.dst, err = item.Ints(f.name); err != nil {
			return ConvTransposeRecord[B]{}, err
		}
	}
	if r.Groups, err = item.Int("groups"); err != nil {
		return ConvTransposeRecord[B]{}, err
	}
	channels, err := item.Ints("channels")
	if err != nil {
		return ConvTransposeRecord[B]{}, err
	}
	if len(channels) != 2 {
		return ConvTransposeRecord[B]{}, &record.DecodeError{
			Field: "channels",
			Err:   fmt.Errorf("%w: want 2 values, got %d", record.ErrTypeMismatch, len(channels)),
		}
	}
	r.Channels = [2]int(channels)
	return r, nil
}

func transposeFromRecord[B tensor.Backend](layer string, rank int, r ConvTransposeRecord[B]) (transposeCore[B], error) {
	if r.Weight == nil {
		return transposeCore[B]{}, configErr(layer, ErrShapeMismatch, "record has no weight")
	}
	if err := checkPositive(layer, "channels", 0, r.Channels[:]...); err != nil {
		return transposeCore[B]{}, err
	}
	if err := checkTransposeGeometry(layer, rank, r.Channels[0], r.Channels[1], r.Groups,
		r.KernelSize, r.Stride, r.Dilation, r.Padding, r.PaddingOut); err != nil {
		return transposeCore[B]{}, err
	}
	want := transposeWeightShape(r.Channels[0], r.Channels[1], r.Groups, r.KernelSize)
	if !r.Weight.Shape().Equal(want) {
		return transposeCore[B]{}, configErr(layer, ErrShapeMismatch,
			"weight shape %v, want %v", []int(r.Weight.Shape()), []int(want))
	}
	if r.Bias != nil && !r.Bias.Shape().Equal(tensor.Shape{r.Channels[1]}) {
		return transposeCore[B]{}, configErr(layer, ErrShapeMismatch,
			"bias shape %v, want [%d]", []int(r.Bias.Shape()), r.Channels[1])
	}
	return transposeCore[B]{
		weight:     r.Weight,
		bias:       r.Bias,
		stride:     slices.Clone(r.Stride),
		kernelSize: slices.Clone(r.KernelSize),
		dilation:   slices.Clone(r.Dilation),
		groups:     r.Groups,
		padding:    slices.Clone(r.Padding),
		paddingOut: slices.Clone(r.PaddingOut),
		channels:   r.Channels,
	}, nil
}

func (c transposeCore[B]) loadInto(layer string, r ConvTransposeRecord[B]) (transposeCore[B], error) {
	loaded, err := transposeFromRecord(layer, len(c.kernelSize), r)
	if err != nil {
		return transposeCore[B]{}, err
	}
	if err := sameParamShapes(layer, c.weight, c.bias, loaded.weight, loaded.bias); err != nil {
		return transposeCore[B]{}, err
	}
	return loaded, nil
}

func validTranspose[I tensor.Backend](c transposeCore[*autodiff.AutodiffBackend[I]]) transposeCore[I] {
	return transposeCore[I]{
		weight:     module.ValidParam(c.weight),
		bias:       module.ValidParam(c.bias),
		stride:     slices.Clone(c.stride),
		kernelSize: slices.Clone(c.kernelSize),
		dilation:   slices.Clone(c.dilation),
		groups:     c.groups,
		padding:    slices.Clone(c.padding),
		paddingOut: slices.Clone(c.paddingOut),
		channels:   c.channels,
	}
}
