package nn

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convkit/internal/backend/cpu"
	"github.com/born-ml/convkit/internal/record"
	"github.com/born-ml/convkit/internal/serialization"
	"github.com/born-ml/convkit/internal/tensor"
)

// viaJSON pushes an item through its JSON form, as a JSON recorder would.
func viaJSON(t *testing.T, item *record.Item) *record.Item {
	t.Helper()
	data, err := json.Marshal(item)
	require.NoError(t, err)
	var decoded record.Item
	require.NoError(t, json.Unmarshal(data, &decoded))
	return &decoded
}

func TestConv2dRecord_RoundTrip(t *testing.T) {
	backend := cpu.New()
	cfg := NewConv2dConfig([2]int{4, 6}, [2]int{3, 3}).
		WithGroups(2).
		WithStride([2]int{2, 1}).
		WithDilation([2]int{1, 2}).
		WithPadding(Same())
	conv, err := NewConv2d(cfg, backend, backend.Device())
	require.NoError(t, err)
	x := input(t, backend, tensor.Shape{2, 4, 7, 9})
	want := conv.Forward(x)

	for _, p := range []record.Precision{record.Full, record.Double} {
		t.Run(p.String(), func(t *testing.T) {
			item := viaJSON(t, conv.IntoRecord().IntoItem(p))
			r, err := Conv2dRecordFromItem(item, backend, backend.Device())
			require.NoError(t, err)

			assert.Equal(t, []int{2, 1}, r.Stride)
			assert.Equal(t, []int{3, 3}, r.KernelSize)
			assert.Equal(t, []int{1, 2}, r.Dilation)
			assert.Equal(t, 2, r.Groups)
			assert.Equal(t, Same().Kind, r.Padding.Kind)
			assert.Equal(t, conv.Weight().ID(), r.Weight.ID())
			assert.Equal(t, conv.Bias().ID(), r.Bias.ID())

			loaded, err := conv.LoadRecord(r)
			require.NoError(t, err)
			assert.True(t, tensor.SameValues(want, loaded.Forward(x)))

			rebuilt, err := Conv2dFromRecord(r)
			require.NoError(t, err)
			assert.Equal(t, conv.String(), rebuilt.String())
		})
	}
}

func TestConv2dRecord_HalfPrecision(t *testing.T) {
	backend := cpu.New()
	conv, err := NewConv2d(NewConv2dConfig([2]int{2, 3}, [2]int{3, 3}), backend, backend.Device())
	require.NoError(t, err)

	for _, p := range []record.Precision{record.Half, record.BFloat} {
		r, err := Conv2dRecordFromItem(viaJSON(t, conv.IntoRecord().IntoItem(p)), backend, backend.Device())
		require.NoError(t, err)
		assert.InDeltaSlice(t, conv.Weight().Val().Data(), r.Weight.Val().Data(), 1e-2, p.String())
		assert.InDeltaSlice(t, conv.Bias().Val().Data(), r.Bias.Val().Data(), 1e-2, p.String())
	}
}

func TestConvRecord_NoBias(t *testing.T) {
	backend := cpu.New()
	conv, err := NewConv1d(NewConv1dConfig(2, 2, 3).WithBias(false), backend, backend.Device())
	require.NoError(t, err)

	item := viaJSON(t, conv.IntoRecord().IntoItem(record.Full))
	assert.Equal(t, []string{"weight", "bias", "stride", "kernel_size", "dilation", "groups", "padding"}, item.Keys())

	r, err := Conv1dRecordFromItem(item, backend, backend.Device())
	require.NoError(t, err)
	assert.Nil(t, r.Bias)
	loaded, err := conv.LoadRecord(r)
	require.NoError(t, err)
	assert.Nil(t, loaded.Bias())
}

func TestConvRecord_Checkpoint(t *testing.T) {
	backend := cpu.New()
	conv, err := NewConv3d(NewConv3dConfig([2]int{1, 2}, [3]int{1, 3, 3}).WithPadding(Explicit(0, 1, 1)), backend, backend.Device())
	require.NoError(t, err)
	x := input(t, backend, tensor.Shape{1, 1, 2, 4, 4})
	want := conv.Forward(x)

	for _, name := range []string{"conv3d.ckpt", "conv3d.json"} {
		path := filepath.Join(t.TempDir(), name)
		rec := serialization.RecorderFor(path)
		require.NoError(t, rec.Record(path, &serialization.Checkpoint{
			ModuleType: "conv3d",
			Precision:  record.Full,
			Item:       conv.IntoRecord().IntoItem(record.Full),
		}))

		ckpt, err := rec.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "conv3d", ckpt.ModuleType)
		r, err := Conv3dRecordFromItem(ckpt.Item, backend, backend.Device())
		require.NoError(t, err)
		loaded, err := Conv3dFromRecord(r)
		require.NoError(t, err)
		assert.Equal(t, Explicit(0, 1, 1), loaded.Padding())
		assert.True(t, tensor.SameValues(want, loaded.Forward(x)), name)
	}
}

func TestConvRecord_MissingField(t *testing.T) {
	backend := cpu.New()
	conv, err := NewConv2d(NewConv2dConfig([2]int{1, 1}, [2]int{1, 1}), backend, backend.Device())
	require.NoError(t, err)

	tests := []struct {
		name  string
		edit  func(it *record.Item) *record.Item
		field string
	}{
		{"stride", func(it *record.Item) *record.Item { return without(it, "stride") }, "stride"},
		{"padding", func(it *record.Item) *record.Item { return without(it, "padding") }, "padding"},
		{"weight", func(it *record.Item) *record.Item { return without(it, "weight") }, "weight"},
		{"weight id", func(it *record.Item) *record.Item {
			w, err := it.Child("weight")
			require.NoError(t, err)
			return it.Set("weight", without(w, "id"))
		}, "weight.id"},
		{"padding kind", func(it *record.Item) *record.Item {
			return it.Set("padding", record.NewItem().Set("amounts", []int{}))
		}, "padding.kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := tt.edit(conv.IntoRecord().IntoItem(record.Full))
			_, err := Conv2dRecordFromItem(item, backend, backend.Device())
			require.ErrorIs(t, err, record.ErrMissingField)
			var de *record.DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.field, de.Field)
		})
	}

	item := conv.IntoRecord().IntoItem(record.Full).Set("groups", "one")
	_, err = Conv2dRecordFromItem(item, backend, backend.Device())
	require.ErrorIs(t, err, record.ErrTypeMismatch)
}

func without(it *record.Item, name string) *record.Item {
	out := record.NewItem()
	for k, v := range it.All() {
		if k != name {
			out.Set(k, v)
		}
	}
	return out
}

func TestConvLoadRecord_Rejects(t *testing.T) {
	backend := cpu.New()
	device := backend.Device()
	conv, err := NewConv2d(NewConv2dConfig([2]int{4, 4}, [2]int{3, 3}), backend, device)
	require.NoError(t, err)

	other, err := NewConv2d(NewConv2dConfig([2]int{4, 4}, [2]int{5, 5}), backend, device)
	require.NoError(t, err)
	_, err = conv.LoadRecord(other.IntoRecord())
	requireConfigError(t, err, "conv2d", ErrShapeMismatch)

	noBias, err := NewConv2d(NewConv2dConfig([2]int{4, 4}, [2]int{3, 3}).WithBias(false), backend, device)
	require.NoError(t, err)
	_, err = conv.LoadRecord(noBias.IntoRecord())
	requireConfigError(t, err, "conv2d", ErrShapeMismatch)

	r := conv.IntoRecord()
	r.Groups = 3
	_, err = conv.LoadRecord(r)
	requireConfigError(t, err, "conv2d", ErrGroupsMismatch)

	r = conv.IntoRecord()
	r.KernelSize = []int{3, 5}
	_, err = conv.LoadRecord(r)
	requireConfigError(t, err, "conv2d", ErrShapeMismatch)

	even, err := NewConv2d(NewConv2dConfig([2]int{4, 4}, [2]int{2, 2}), backend, device)
	require.NoError(t, err)
	r = even.IntoRecord()
	r.Padding = Same()
	_, err = Conv2dFromRecord(r)
	requireConfigError(t, err, "conv2d", ErrSamePaddingEvenKernel)

	r = conv.IntoRecord()
	r.Stride = []int{1}
	_, err = Conv2dFromRecord(r)
	requireConfigError(t, err, "conv2d", ErrInvalidConfig)

	_, err = Conv1dFromRecord(conv.IntoRecord())
	requireConfigError(t, err, "conv1d", ErrInvalidConfig)
}
