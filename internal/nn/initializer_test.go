package nn

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/convkit/internal/backend/cpu"
	"github.com/born-ml/convkit/internal/tensor"
)

func intPtr(v int) *int { return &v }

func TestCheckGroups(t *testing.T) {
	require.NoError(t, checkGroups("conv2d", 4, 8, 2))
	require.NoError(t, checkGroups("conv2d", 3, 6, 3))

	err := checkGroups("conv2d", 5, 4, 2)
	require.ErrorIs(t, err, ErrGroupsMismatch)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "conv2d", ce.Layer)
	assert.Contains(t, err.Error(), "channels_in=5")
	assert.Contains(t, err.Error(), "channels_out=4")
	assert.Contains(t, err.Error(), "groups=2")

	require.ErrorIs(t, checkGroups("conv1d", 4, 6, 4), ErrGroupsMismatch)
	require.ErrorIs(t, checkGroups("conv1d", 4, 4, 0), ErrGroupsMismatch)
}

func TestFans(t *testing.T) {
	assert.Equal(t, tensor.Shape{8, 2, 3, 3}, convWeightShape(4, 8, 2, []int{3, 3}))
	fanIn, fanOut := convFans(4, 8, 2, []int{3, 3})
	assert.Equal(t, 18, fanIn)
	assert.Equal(t, 36, fanOut)

	assert.Equal(t, tensor.Shape{4, 4, 3}, transposeWeightShape(4, 8, 2, []int{3}))
	fanIn, fanOut = transposeFans(4, 8, 2, []int{3})
	assert.Equal(t, 12, fanIn)
	assert.Equal(t, 6, fanOut)
}

func TestInitializer_Deterministic(t *testing.T) {
	shape := tensor.Shape{2, 3}
	tests := []struct {
		init Initializer
		want float32
	}{
		{Constant(0.25), 0.25},
		{Zeros(), 0},
		{Ones(), 1},
		{Uniform(2, 2), 2},
	}
	for _, tt := range tests {
		values, err := tt.init.Sample(shape, nil, nil)
		require.NoError(t, err, tt.init.String())
		require.Len(t, values, 6)
		for _, v := range values {
			assert.Equal(t, tt.want, v, tt.init.String())
		}
	}
}

func TestInitializer_Bounds(t *testing.T) {
	shape := tensor.Shape{64, 16, 3, 3}
	fanIn, fanOut := 16*9, 64*9

	values, err := DefaultInitializer().Sample(shape, &fanIn, &fanOut)
	require.NoError(t, err)
	bound := float32(1 / math.Sqrt(float64(fanIn)))
	for _, v := range values {
		require.LessOrEqual(t, v, bound)
		require.GreaterOrEqual(t, v, -bound)
	}

	values, err = XavierUniform(1).Sample(shape, &fanIn, &fanOut)
	require.NoError(t, err)
	bound = float32(math.Sqrt(6 / float64(fanIn+fanOut)))
	for _, v := range values {
		require.LessOrEqual(t, v, bound)
		require.GreaterOrEqual(t, v, -bound)
	}

	values, err = Uniform(-0.5, 0.5).Sample(shape, nil, nil)
	require.NoError(t, err)
	for _, v := range values {
		require.LessOrEqual(t, v, float32(0.5))
		require.GreaterOrEqual(t, v, float32(-0.5))
	}
}

func TestInitializer_NormalMoments(t *testing.T) {
	shape := tensor.Shape{100, 100}
	fanIn := 25

	values, err := KaimingNormal(1, false).Sample(shape, &fanIn, nil)
	require.NoError(t, err)
	mean, std := moments(values)
	assert.InDelta(t, 0, mean, 0.01)
	assert.InDelta(t, 0.2, std, 0.01)

	values, err = Normal(3, 0.5).Sample(shape, nil, nil)
	require.NoError(t, err)
	mean, std = moments(values)
	assert.InDelta(t, 3, mean, 0.05)
	assert.InDelta(t, 0.5, std, 0.02)
}

func moments(values []float32) (mean, std float64) {
	for _, v := range values {
		mean += float64(v)
	}
	mean /= float64(len(values))
	for _, v := range values {
		d := float64(v) - mean
		std += d * d
	}
	return mean, math.Sqrt(std / float64(len(values)))
}

func TestInitializer_MissingFan(t *testing.T) {
	shape := tensor.Shape{4}

	_, err := KaimingUniform(1, false).Sample(shape, nil, intPtr(3))
	require.ErrorIs(t, err, ErrMissingFan)

	_, err = KaimingUniform(1, true).Sample(shape, intPtr(3), nil)
	require.ErrorIs(t, err, ErrMissingFan)

	_, err = KaimingNormal(1, true).Sample(shape, nil, intPtr(3))
	require.NoError(t, err)

	_, err = XavierNormal(1).Sample(shape, intPtr(3), nil)
	require.ErrorIs(t, err, ErrMissingFan)

	_, err = XavierUniform(1).Sample(shape, nil, intPtr(3))
	require.ErrorIs(t, err, ErrMissingFan)
}

func TestInitWith(t *testing.T) {
	backend := cpu.New()
	device := tensor.NewDevice(tensor.CPU, 1)

	p, err := InitWith(Constant(2), tensor.Shape{3, 2}, nil, nil, backend, device)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, p.Shape())
	assert.Equal(t, device, p.Device())
	assert.NotEmpty(t, p.ID())
	assert.Equal(t, []float32{2, 2, 2, 2, 2, 2}, p.Val().Data())

	_, err = InitWith(XavierUniform(1), tensor.Shape{3}, nil, nil, backend, device)
	require.ErrorIs(t, err, ErrMissingFan)
}

func TestInitializer_Decode(t *testing.T) {
	var got Initializer
	require.NoError(t, yaml.Unmarshal([]byte("xavier_normal"), &got))
	assert.Equal(t, XavierNormal(1), got)

	require.NoError(t, yaml.Unmarshal([]byte("kind: kaiming_uniform\ngain: 0.5\nfan_out_only: true"), &got))
	assert.Equal(t, KaimingUniform(0.5, true), got)

	require.NoError(t, json.Unmarshal([]byte(`{"kind": "normal", "mean": 1, "std": 2}`), &got))
	assert.Equal(t, Normal(1, 2), got)

	require.NoError(t, json.Unmarshal([]byte(`"zeros"`), &got))
	assert.Equal(t, Zeros(), got)

	require.Error(t, json.Unmarshal([]byte(`"orthogonal"`), &got))

	data, err := json.Marshal(Constant(1.5))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind": "constant", "value": 1.5}`, string(data))
}

func TestParseInitKind(t *testing.T) {
	for kind, name := range initKindNames {
		got, err := ParseInitKind(name)
		require.NoError(t, err)
		assert.Equal(t, kind, got)
		assert.Equal(t, name, kind.String())
	}
	_, err := ParseInitKind("lecun")
	require.Error(t, err)
}
