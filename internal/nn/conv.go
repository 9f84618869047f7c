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

// convSettings is the rank-independent view of Conv1dConfig, Conv2dConfig and Conv3dConfig.
type convSettings struct {
	channelsIn  int
	channelsOut int
	kernel      []int
	stride      []int
	dilation    []int
	groups      int
	padding     PaddingConfig
	bias        bool
	initializer Initializer
}

// validate runs every check New* performs before allocating.
func (s convSettings) validate(layer string, rank int) error {
	if err := checkPositive(layer, "channels", 0, s.channelsIn, s.channelsOut); err != nil {
		return err
	}
	if err := checkPositive(layer, "kernel_size", rank, s.kernel...); err != nil {
		return err
	}
	if err := checkPositive(layer, "stride", rank, s.stride...); err != nil {
		return err
	}
	if err := checkPositive(layer, "dilation", rank, s.dilation...); err != nil {
		return err
	}
	if err := checkGroups(layer, s.channelsIn, s.channelsOut, s.groups); err != nil {
		return err
	}
	return checkPadding(layer, s.padding, rank, s.kernel)
}

func checkPadding(layer string, padding PaddingConfig, rank int, kernel []int) error {
	if err := padding.Validate(rank); err != nil {
		return &ConfigError{Layer: layer, Err: err}
	}
	if err := padding.CheckSupport(kernel); err != nil {
		return &ConfigError{Layer: layer, Err: err}
	}
	return nil
}

// convCore holds the state shared by Conv1d, Conv2d and Conv3d.
// Fields are visited in declaration order.
type convCore[B tensor.Backend] struct {
	weight     *module.Param[B] // [out, in/groups, *kernel]
	bias       *module.Param[B] // [out], optional
	stride     []int
	kernelSize []int
	dilation   []int
	groups     int
	padding    module.Ignored[PaddingConfig]
}

func newConvCore[B tensor.Backend](
	layer string, rank int, s convSettings, backend B, device tensor.Device,
) (convCore[B], error) {
	if err := s.validate(layer, rank); err != nil {
		return convCore[B]{}, err
	}
	fanIn, fanOut := convFans(s.channelsIn, s.channelsOut, s.groups, s.kernel)
	weight, bias, err := initParams(s.initializer,
		convWeightShape(s.channelsIn, s.channelsOut, s.groups, s.kernel),
		s.channelsOut, fanIn, fanOut, s.bias, backend, device)
	if err != nil {
		return convCore[B]{}, fmt.Errorf("%s: %w", layer, err)
	}
	c := convCore[B]{
		weight:     weight,
		bias:       bias,
		stride:     slices.Clone(s.stride),
		kernelSize: slices.Clone(s.kernel),
		dilation:   slices.Clone(s.dilation),
		groups:     s.groups,
		padding:    module.Ignore(s.padding),
	}
	slog.Debug("layer initialized", "layer", layer,
		"channels_in", s.channelsIn, "channels_out", s.channelsOut,
		"kernel_size", s.kernel, "groups", s.groups, "padding", s.padding.String(),
		"bias", s.bias, "params", c.numParams(), "device", device.String())
	return c, nil
}

func (c convCore[B]) channelsIn() int {
	return c.weight.Shape()[1] * c.groups
}

func (c convCore[B]) channelsOut() int {
	return c.weight.Shape()[0]
}

func (c convCore[B]) visit(v module.Visitor[B]) {
	module.VisitParam(v, "weight", c.weight)
	module.VisitParam(v, "bias", c.bias)
	module.VisitConstant[B](v, "stride")
	module.VisitConstant[B](v, "kernel_size")
	module.VisitConstant[B](v, "dilation")
	module.VisitConstant[B](v, "groups")
	module.VisitIgnored[B](v, "padding")
}

func (c convCore[B]) mapWith(m module.Mapper[B]) convCore[B] {
	out := c
	out.weight = module.MapParam(m, "weight", c.weight)
	out.bias = module.MapParam(m, "bias", c.bias)
	module.MapConstant[B](m, "stride")
	module.MapConstant[B](m, "kernel_size")
	module.MapConstant[B](m, "dilation")
	module.MapConstant[B](m, "groups")
	module.MapIgnored[B](m, "padding")
	return out
}

func (c convCore[B]) numParams() int {
	n := c.weight.NumParams()
	if c.bias != nil {
		n += c.bias.NumParams()
	}
	return n
}

func (c convCore[B]) toDevice(device tensor.Device) convCore[B] {
	out := c
	out.weight = c.weight.ToDevice(device)
	if c.bias != nil {
		out.bias = c.bias.ToDevice(device)
	}
	return out
}

func (c convCore[B]) fork(device tensor.Device) convCore[B] {
	out := c
	out.weight = c.weight.Fork(device)
	if c.bias != nil {
		out.bias = c.bias.Fork(device)
	}
	return out
}

func (c convCore[B]) collectDevices(devices module.Devices) module.Devices {
	devices = devices.Add(c.weight.Device())
	if c.bias != nil {
		devices = devices.Add(c.bias.Device())
	}
	return devices
}

func (c convCore[B]) resolvePadding(spatial []int) ([]int, error) {
	return c.padding.Get().Resolve(spatial, c.kernelSize, c.stride, c.dilation)
}

// forward checks the input against the layer and dispatches to the backend op of its rank.
func (c convCore[B]) forward(layer string, x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	rank := len(c.kernelSize)
	shape := x.Shape()
	if len(shape) != rank+2 {
		panic(fmt.Sprintf("%s: expected %dD input [N,C,%s], got %dD", layer, rank+2, spatialNames(rank), len(shape)))
	}
	if shape[1] != c.channelsIn() {
		panic(fmt.Sprintf("%s: expected %d input channels, got %d", layer, c.channelsIn(), shape[1]))
	}
	padding, err := c.resolvePadding(shape[2:])
	if err != nil {
		panic(fmt.Sprintf("%s: %v", layer, err))
	}
	opts := tensor.NewConvOptions(c.stride, padding, c.dilation, c.groups)
	var bias *tensor.Tensor[float32, B]
	if c.bias != nil {
		bias = c.bias.Val()
	}
	switch rank {
	case 1:
		return tensor.Conv1D(x, c.weight.Val(), bias, opts)
	case 2:
		return tensor.Conv2D(x, c.weight.Val(), bias, opts)
	default:
		return tensor.Conv3D(x, c.weight.Val(), bias, opts)
	}
}

// outputSize returns the spatial output sizes for the given spatial input sizes.
func (c convCore[B]) outputSize(input []int) ([]int, error) {
	padding, err := c.resolvePadding(input)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(input))
	for i := range out {
		out[i] = tensor.ConvOutputSize(input[i], c.kernelSize[i], c.stride[i], padding[i], c.dilation[i])
		if out[i] <= 0 {
			return nil, fmt.Errorf("%w: input %v is smaller than the effective kernel", ErrShapeMismatch, input)
		}
	}
	return out, nil
}

func (c convCore[B]) describe(name string) string {
	return fmt.Sprintf("%s {ch_in: %d, ch_out: %d, stride: %v, kernel_size: %v, dilation: %v, groups: %d, padding: %s, params: %d}",
		name, c.channelsIn(), c.channelsOut(), c.stride, c.kernelSize, c.dilation, c.groups, c.padding.Get(), c.numParams())
}

func (c convCore[B]) intoRecord() ConvRecord[B] {
	return ConvRecord[B]{
		Weight:     c.weight,
		Bias:       c.bias,
		Stride:     slices.Clone(c.stride),
		KernelSize: slices.Clone(c.kernelSize),
		Dilation:   slices.Clone(c.dilation),
		Groups:     c.groups,
		Padding:    c.padding.Get(),
	}
}

// ConvRecord is the record of Conv1d, Conv2d and Conv3d. It mirrors the layer
// fields, hyperparameters included, so a record fully rebuilds its layer.
type ConvRecord[B tensor.Backend] struct {
	Weight     *module.Param[B]
	Bias       *module.Param[B]
	Stride     []int
	KernelSize []int
	Dilation   []int
	Groups     int
	Padding    PaddingConfig
}

// Conv1dRecord is the record of a Conv1d.
type Conv1dRecord[B tensor.Backend] = ConvRecord[B]

// Conv2dRecord is the record of a Conv2d.
type Conv2dRecord[B tensor.Backend] = ConvRecord[B]

// Conv3dRecord is the record of a Conv3d.
type Conv3dRecord[B tensor.Backend] = ConvRecord[B]

// IntoItem encodes the record at the given precision, fields in layer order.
func (r ConvRecord[B]) IntoItem(p record.Precision) *record.Item {
	return record.NewItem().
		Set("weight", module.ParamIntoItem(r.Weight, p)).
		Set("bias", module.ParamIntoItem(r.Bias, p)).
		Set("stride", slices.Clone(r.Stride)).
		Set("kernel_size", slices.Clone(r.KernelSize)).
		Set("dilation", slices.Clone(r.Dilation)).
		Set("groups", r.Groups).
		Set("padding", r.Padding.IntoItem())
}

// Conv1dRecordFromItem decodes a Conv1d record onto backend and device.
func Conv1dRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (Conv1dRecord[B], error) {
	return convRecordFromItem(item, backend, device)
}

// Conv2dRecordFromItem decodes a Conv2d record onto backend and device.
func Conv2dRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (Conv2dRecord[B], error) {
	return convRecordFromItem(item, backend, device)
}

// Conv3dRecordFromItem decodes a Conv3d record onto backend and device.
func Conv3dRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (Conv3dRecord[B], error) {
	return convRecordFromItem(item, backend, device)
}

func convRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (ConvRecord[B], error) {
	var (
		r   ConvRecord[B]
		err error
	)
	if r.Weight, err = module.RequiredParamFromItem(item, "weight", backend, device); err != nil {
		return ConvRecord[B]{}, err
	}
	if r.Bias, err = module.OptionalParamFromItem(item, "bias", backend, device); err != nil {
		return ConvRecord[B]{}, err
	}
	if r.Stride, err = item.Ints("stride"); err != nil {
		return ConvRecord[B]{}, err
	}
	if r.KernelSize, err = item.Ints("kernel_size"); err != nil {
		return ConvRecord[B]{}, err
	}
	if r.Dilation, err = item.Ints("dilation"); err != nil {
		return ConvRecord[B]{}, err
	}
	if r.Groups, err = item.Int("groups"); err != nil {
		return ConvRecord[B]{}, err
	}
	if r.Padding, err = paddingField(item, "padding"); err != nil {
		return ConvRecord[B]{}, err
	}
	return r, nil
}

func paddingField(item *record.Item, name string) (PaddingConfig, error) {
	child, err := item.Child(name)
	if err != nil {
		return PaddingConfig{}, err
	}
	p, err := PaddingFromItem(child)
	if err != nil {
		return PaddingConfig{}, record.At(name, err)
	}
	return p, nil
}

// convFromRecord validates a record of the given rank and rebuilds the core.
func convFromRecord[B tensor.Backend](layer string, rank int, r ConvRecord[B]) (convCore[B], error) {
	if r.Weight == nil {
		return convCore[B]{}, configErr(layer, ErrShapeMismatch, "record has no weight")
	}
	if err := checkPositive(layer, "kernel_size", rank, r.KernelSize...); err != nil {
		return convCore[B]{}, err
	}
	if err := checkPositive(layer, "stride", rank, r.Stride...); err != nil {
		return convCore[B]{}, err
	}
	if err := checkPositive(layer, "dilation", rank, r.Dilation...); err != nil {
		return convCore[B]{}, err
	}
	ws := r.Weight.Shape()
	if len(ws) != rank+2 || !slices.Equal([]int(ws[2:]), r.KernelSize) {
		return convCore[B]{}, configErr(layer, ErrShapeMismatch,
			"weight shape %v does not match kernel_size %v", []int(ws), r.KernelSize)
	}
	if r.Groups < 1 {
		return convCore[B]{}, configErr(layer, ErrGroupsMismatch, "groups=%d", r.Groups)
	}
	if err := checkGroups(layer, ws[1]*r.Groups, ws[0], r.Groups); err != nil {
		return convCore[B]{}, err
	}
	if r.Bias != nil && !r.Bias.Shape().Equal(tensor.Shape{ws[0]}) {
		return convCore[B]{}, configErr(layer, ErrShapeMismatch,
			"bias shape %v, want [%d]", []int(r.Bias.Shape()), ws[0])
	}
	if err := checkPadding(layer, r.Padding, rank, r.KernelSize); err != nil {
		return convCore[B]{}, err
	}
	return convCore[B]{
		weight:     r.Weight,
		bias:       r.Bias,
		stride:     slices.Clone(r.Stride),
		kernelSize: slices.Clone(r.KernelSize),
		dilation:   slices.Clone(r.Dilation),
		groups:     r.Groups,
		padding:    module.Ignore(r.Padding),
	}, nil
}

// loadInto rebuilds a core from r, requiring the same parameter shapes as c.
func (c convCore[B]) loadInto(layer string, r ConvRecord[B]) (convCore[B], error) {
	loaded, err := convFromRecord(layer, len(c.kernelSize), r)
	if err != nil {
		return convCore[B]{}, err
	}
	if err := sameParamShapes(layer, c.weight, c.bias, loaded.weight, loaded.bias); err != nil {
		return convCore[B]{}, err
	}
	return loaded, nil
}

func sameParamShapes[B tensor.Backend](layer string, weight, bias, newWeight, newBias *module.Param[B]) error {
	if !weight.Shape().Equal(newWeight.Shape()) {
		return configErr(layer, ErrShapeMismatch, "weight shape %v, record has %v",
			[]int(weight.Shape()), []int(newWeight.Shape()))
	}
	if (bias == nil) != (newBias == nil) {
		return configErr(layer, ErrShapeMismatch, "bias present=%t, record has bias=%t", bias != nil, newBias != nil)
	}
	return nil
}

// validConv drops the autodiff decoration from a core.
func validConv[I tensor.Backend](c convCore[*autodiff.AutodiffBackend[I]]) convCore[I] {
	return convCore[I]{
		weight:     module.ValidParam(c.weight),
		bias:       module.ValidParam(c.bias),
		stride:     slices.Clone(c.stride),
		kernelSize: slices.Clone(c.kernelSize),
		dilation:   slices.Clone(c.dilation),
		groups:     c.groups,
		padding:    c.padding,
	}
}

func spatialNames(rank int) string {
	switch rank {
	case 1:
		return "L"
	case 2:
		return "H,W"
	default:
		return "D,H,W"
	}
}
