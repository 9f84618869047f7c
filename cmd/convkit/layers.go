package main

import (
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/convkit/backend/cpu"
	"github.com/born-ml/convkit/nn"
	"github.com/born-ml/convkit/record"
	"github.com/born-ml/convkit/tensor"
)

type backend = *cpu.Backend

// layer is what the commands need from any conv layer.
type layer interface {
	nn.Module[backend]
	String() string
}

type encoder interface {
	IntoItem(p record.Precision) *record.Item
}

// loaded is a layer erased to its kind, record encoder and forward pass.
type loaded struct {
	layer
	kind    string
	rank    int // spatial axes of the input
	item    func(p record.Precision) *record.Item
	forward func(x *tensor.Tensor[float32, backend]) *tensor.Tensor[float32, backend]
}

type builder interface {
	build(kind string, node *yaml.Node, b backend) (*loaded, error)
	load(kind string, item *record.Item, b backend) (*loaded, error)
	spatialRank() int
}

// layerKind binds one layer type to the generic commands.
type layerKind[C any, L layer, R encoder] struct {
	rank       int
	defaults   func() C
	newLayer   func(C, backend, tensor.Device) (L, error)
	decode     func(*record.Item, backend, tensor.Device) (R, error)
	fromRecord func(R) (L, error)
	intoRecord func(L) R
	forward    func(L, *tensor.Tensor[float32, backend]) *tensor.Tensor[float32, backend]
}

func (k layerKind[C, L, R]) build(kind string, node *yaml.Node, b backend) (*loaded, error) {
	cfg := k.defaults()
	if node != nil && !node.IsZero() {
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("%s config: %w", kind, err)
		}
	}
	l, err := k.newLayer(cfg, b, b.Device())
	if err != nil {
		return nil, err
	}
	return k.wrap(kind, l), nil
}

func (k layerKind[C, L, R]) load(kind string, item *record.Item, b backend) (*loaded, error) {
	r, err := k.decode(item, b, b.Device())
	if err != nil {
		return nil, fmt.Errorf("%s record: %w", kind, err)
	}
	l, err := k.fromRecord(r)
	if err != nil {
		return nil, err
	}
	return k.wrap(kind, l), nil
}

func (k layerKind[C, L, R]) spatialRank() int { return k.rank }

func (k layerKind[C, L, R]) wrap(kind string, l L) *loaded {
	return &loaded{
		layer: l,
		kind:  kind,
		rank:  k.rank,
		item: func(p record.Precision) *record.Item {
			return k.intoRecord(l).IntoItem(p)
		},
		forward: func(x *tensor.Tensor[float32, backend]) *tensor.Tensor[float32, backend] {
			return k.forward(l, x)
		},
	}
}

// Defaults only need valid placeholders; the config file sets channels and kernel_size.
var layerKinds = map[string]builder{
	"conv1d": layerKind[nn.Conv1dConfig, *nn.Conv1d[backend], nn.Conv1dRecord[backend]]{
		rank:       1,
		defaults:   func() nn.Conv1dConfig { return nn.NewConv1dConfig(1, 1, 1) },
		newLayer:   nn.NewConv1d[backend],
		decode:     nn.Conv1dRecordFromItem[backend],
		fromRecord: nn.Conv1dFromRecord[backend],
		intoRecord: (*nn.Conv1d[backend]).IntoRecord,
		forward:    (*nn.Conv1d[backend]).Forward,
	},
	"conv2d": layerKind[nn.Conv2dConfig, *nn.Conv2d[backend], nn.Conv2dRecord[backend]]{
		rank:       2,
		defaults:   func() nn.Conv2dConfig { return nn.NewConv2dConfig([2]int{1, 1}, [2]int{1, 1}) },
		newLayer:   nn.NewConv2d[backend],
		decode:     nn.Conv2dRecordFromItem[backend],
		fromRecord: nn.Conv2dFromRecord[backend],
		intoRecord: (*nn.Conv2d[backend]).IntoRecord,
		forward:    (*nn.Conv2d[backend]).Forward,
	},
	"conv3d": layerKind[nn.Conv3dConfig, *nn.Conv3d[backend], nn.Conv3dRecord[backend]]{
		rank:       3,
		defaults:   func() nn.Conv3dConfig { return nn.NewConv3dConfig([2]int{1, 1}, [3]int{1, 1, 1}) },
		newLayer:   nn.NewConv3d[backend],
		decode:     nn.Conv3dRecordFromItem[backend],
		fromRecord: nn.Conv3dFromRecord[backend],
		intoRecord: (*nn.Conv3d[backend]).IntoRecord,
		forward:    (*nn.Conv3d[backend]).Forward,
	},
	"conv_transpose1d": layerKind[nn.ConvTranspose1dConfig, *nn.ConvTranspose1d[backend], nn.ConvTranspose1dRecord[backend]]{
		rank:       1,
		defaults:   func() nn.ConvTranspose1dConfig { return nn.NewConvTranspose1dConfig([2]int{1, 1}, 1) },
		newLayer:   nn.NewConvTranspose1d[backend],
		decode:     nn.ConvTranspose1dRecordFromItem[backend],
		fromRecord: nn.ConvTranspose1dFromRecord[backend],
		intoRecord: (*nn.ConvTranspose1d[backend]).IntoRecord,
		forward:    (*nn.ConvTranspose1d[backend]).Forward,
	},
	"conv_transpose2d": layerKind[nn.ConvTranspose2dConfig, *nn.ConvTranspose2d[backend], nn.ConvTranspose2dRecord[backend]]{
		rank:       2,
		defaults:   func() nn.ConvTranspose2dConfig { return nn.NewConvTranspose2dConfig([2]int{1, 1}, [2]int{1, 1}) },
		newLayer:   nn.NewConvTranspose2d[backend],
		decode:     nn.ConvTranspose2dRecordFromItem[backend],
		fromRecord: nn.ConvTranspose2dFromRecord[backend],
		intoRecord: (*nn.ConvTranspose2d[backend]).IntoRecord,
		forward:    (*nn.ConvTranspose2d[backend]).Forward,
	},
	"conv_transpose3d": layerKind[nn.ConvTranspose3dConfig, *nn.ConvTranspose3d[backend], nn.ConvTranspose3dRecord[backend]]{
		rank:       3,
		defaults:   func() nn.ConvTranspose3dConfig { return nn.NewConvTranspose3dConfig([2]int{1, 1}, [3]int{1, 1, 1}) },
		newLayer:   nn.NewConvTranspose3d[backend],
		decode:     nn.ConvTranspose3dRecordFromItem[backend],
		fromRecord: nn.ConvTranspose3dFromRecord[backend],
		intoRecord: (*nn.ConvTranspose3d[backend]).IntoRecord,
		forward:    (*nn.ConvTranspose3d[backend]).Forward,
	},
	"deform_conv2d": layerKind[nn.DeformConv2dConfig, *nn.DeformConv2d[backend], nn.DeformConv2dRecord[backend]]{
		rank:       2,
		defaults:   func() nn.DeformConv2dConfig { return nn.NewDeformConv2dConfig([2]int{1, 1}, [2]int{1, 1}) },
		newLayer:   nn.NewDeformConv2d[backend],
		decode:     nn.DeformConv2dRecordFromItem[backend],
		fromRecord: nn.DeformConv2dFromRecord[backend],
		intoRecord: (*nn.DeformConv2d[backend]).IntoRecord,
		forward:    deformForward,
	},
}

// deformForward runs d with zero offsets and no mask, which samples the
// regular grid.
func deformForward(d *nn.DeformConv2d[backend], x *tensor.Tensor[float32, backend]) *tensor.Tensor[float32, backend] {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("deform_conv2d: input must be 4D, got shape %v", shape))
	}
	out, err := d.OutputSize(shape[2], shape[3])
	if err != nil {
		panic(err)
	}
	offset := tensor.Zeros[float32](tensor.Shape{shape[0], d.OffsetChannels(), out[0], out[1]}, x.Backend())
	return d.Forward(x, offset, nil)
}

func lookupKind(kind string) (builder, error) {
	k, ok := layerKinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown layer kind %q (want one of %v)", kind, kindNames())
	}
	return k, nil
}

func kindNames() []string {
	return slices.Sorted(maps.Keys(layerKinds))
}
