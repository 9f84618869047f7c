package serialization

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		wantErr  error
	}{
		{
			name: "back to back",
			tensors: []TensorMeta{
				{Name: "weight.param", Offset: 0, Size: 100},
				{Name: "bias.param", Offset: 100, Size: 8},
			},
			dataSize: 108,
		},
		{
			name: "overlap by one byte",
			tensors: []TensorMeta{
				{Name: "weight.param", Offset: 0, Size: 100},
				{Name: "bias.param", Offset: 99, Size: 8},
			},
			dataSize: 200,
			wantErr:  ErrOffsetOverlap,
		},
		{
			name:     "past the end",
			tensors:  []TensorMeta{{Name: "weight.param", Offset: 50, Size: 100}},
			dataSize: 100,
			wantErr:  ErrOutOfBounds,
		},
		{
			name:     "negative",
			tensors:  []TensorMeta{{Name: "weight.param", Offset: -4, Size: 4}},
			dataSize: 100,
			wantErr:  ErrNegativeOffset,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestValidateTensorName(t *testing.T) {
	valid := []string{"weight.param", "bias.param", "blocks.0.weight.param"}
	for _, name := range valid {
		assert.NoError(t, ValidateTensorName(name), name)
	}

	invalid := []string{"", "../etc/passwd", "weight/param", "a\\b", "nul\x00l", ".weight", "weight.", strings.Repeat("a", MaxTensorNameLen+1)}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateTensorName(name), ErrInvalidTensorName, "%q", name)
	}
}

func TestValidateTensorSize(t *testing.T) {
	assert.NoError(t, ValidateTensorSize(TensorMeta{Name: "w", DType: "f16", Shape: []int{2, 3}, Size: 12}))
	assert.ErrorIs(t, ValidateTensorSize(TensorMeta{Name: "w", DType: "f32", Shape: []int{2, 3}, Size: 12}), ErrTensorSize)
	assert.ErrorIs(t, ValidateTensorSize(TensorMeta{Name: "w", DType: "i4", Shape: []int{2}, Size: 1}), ErrTensorSize)
	assert.ErrorIs(t, ValidateTensorSize(TensorMeta{Name: "w", DType: "f32", Shape: []int{0}, Size: 0}), ErrTensorSize)
}

func TestValidateHeader(t *testing.T) {
	h := &Header{Tensors: []TensorMeta{
		{Name: "weight.param", DType: "f32", Shape: []int{4}, Offset: 0, Size: 16},
		{Name: "weight.param", DType: "f32", Shape: []int{1}, Offset: 16, Size: 4},
	}}
	require.ErrorIs(t, ValidateHeader(h, 20, ValidationStrict), ErrInvalidTensorName, "duplicates are rejected")
	assert.NoError(t, ValidateHeader(h, 20, ValidationNone))

	h.Tensors[1].Name = "bias.param"
	h.Tensors[1].Offset = 8
	assert.ErrorIs(t, ValidateHeader(h, 20, ValidationStrict), ErrOffsetOverlap)
	assert.NoError(t, ValidateHeader(h, 20, ValidationNormal), "offsets are only checked in strict mode")
}
