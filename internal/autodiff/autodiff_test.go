package autodiff_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convkit/internal/autodiff"
	"github.com/born-ml/convkit/internal/autodiff/ops"
	"github.com/born-ml/convkit/internal/backend/cpu"
	"github.com/born-ml/convkit/internal/tensor"
)

func TestAutodiffBackend_Metadata(t *testing.T) {
	backend := autodiff.New(cpu.New())
	assert.Equal(t, "Autodiff(CPU)", backend.Name())
	assert.Equal(t, tensor.DefaultDevice, backend.Device())
	assert.True(t, tensor.TracksGradients(backend))
	assert.False(t, tensor.TracksGradients(backend.Inner()))
}

func TestTape_Recording(t *testing.T) {
	tape := autodiff.New(cpu.New()).Tape()

	assert.False(t, tape.IsRecording(), "tape should not record initially")
	tape.StartRecording()
	assert.True(t, tape.IsRecording())
	tape.StopRecording()
	assert.False(t, tape.IsRecording())
}

func TestConv_RecordsWhenRecording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := tensor.Ones[float32](tensor.Shape{1, 1, 4}, backend)
	w := tensor.Ones[float32](tensor.Shape{2, 1, 3}, backend).RequireGrad()
	opts := tensor.NewConvOptions([]int{1}, []int{0}, []int{1}, 1)

	out := tensor.Conv1D(x, w, nil, opts)
	assert.Equal(t, 0, backend.Tape().NumOps(), "nothing is recorded before StartRecording")
	assert.True(t, out.RequiresGrad())
	assert.Equal(t, []float32{3, 3, 3, 3}, out.Data())

	backend.Tape().StartRecording()
	out = tensor.Conv1D(x, w, nil, opts)

	recorded := backend.Tape().Operations()
	require.Len(t, recorded, 1)
	op, ok := recorded[0].(*ops.ConvOp)
	require.True(t, ok)
	assert.Equal(t, "conv1d", op.Name())
	assert.Same(t, out.Raw(), op.Output())
	assert.Len(t, op.Inputs(), 2, "nil bias is not an input")
	assert.Equal(t, opts, op.Options)
}

func TestConv_MatchesInner(t *testing.T) {
	inner := cpu.New()
	backend := autodiff.New(inner)
	backend.Tape().StartRecording()

	x := tensor.Arange[float32](tensor.Shape{1, 2, 3, 3}, 0.5, backend)
	w := tensor.Arange[float32](tensor.Shape{2, 2, 2, 2}, 0.25, backend)
	bias := tensor.Ones[float32](tensor.Shape{2}, backend)

	conv := backend.Conv2D(x.Raw(), w.Raw(), bias.Raw(), tensor.NewConvOptions([]int{1, 1}, []int{0, 0}, []int{1, 1}, 1))
	want := inner.Conv2D(x.Raw(), w.Raw(), bias.Raw(), tensor.NewConvOptions([]int{1, 1}, []int{0, 0}, []int{1, 1}, 1))
	assert.Equal(t, want.AsFloat32(), conv.AsFloat32())

	transposed := backend.ConvTranspose2D(x.Raw(), w.Raw(), nil,
		tensor.NewConvTransposeOptions([]int{1, 1}, []int{0, 0}, []int{0, 0}, []int{1, 1}, 1))
	assert.Equal(t, tensor.Shape{1, 2, 4, 4}, transposed.Shape())

	offset := tensor.Zeros[float32](tensor.Shape{1, 8, 2, 2}, backend)
	deform := backend.DeformConv2D(x.Raw(), offset.Raw(), w.Raw(), nil, bias.Raw(),
		tensor.NewDeformConvOptions([]int{1, 1}, []int{0, 0}, []int{1, 1}, 1, 1))
	assert.InDeltaSlice(t, want.AsFloat32(), deform.AsFloat32(), 1e-5)

	names := make([]string, 0, 3)
	for _, op := range backend.Tape().Operations() {
		names = append(names, op.Name())
	}
	assert.Equal(t, []string{"conv2d", "conv_transpose2d", "deform_conv2d"}, names)
}

func TestTape_Clear(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()
	tape.StartRecording()

	x := tensor.Ones[float32](tensor.Shape{1, 1, 2, 2, 2}, backend)
	backend.Conv3D(x.Raw(), x.Raw(), nil, tensor.NewConvOptions([]int{1, 1, 1}, []int{0, 0, 0}, []int{1, 1, 1}, 1))
	require.Equal(t, 1, tape.NumOps())

	tape.Clear()
	assert.Equal(t, 0, tape.NumOps())
	assert.True(t, tape.IsRecording(), "Clear preserves recording state")
}

func TestTape_ConcurrentRecording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	x := tensor.Ones[float32](tensor.Shape{1, 1, 4}, backend)
	w := tensor.Ones[float32](tensor.Shape{1, 1, 2}, backend)
	opts := tensor.NewConvOptions([]int{1}, []int{0}, []int{1}, 1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			backend.Conv1D(x.Raw(), w.Raw(), nil, opts)
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, backend.Tape().NumOps())
}

func TestToDevice_NotRecorded(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x := tensor.Ones[float32](tensor.Shape{2}, backend).RequireGrad()
	moved := x.ToDevice(tensor.NewDevice(tensor.CPU, 1))

	assert.Equal(t, tensor.NewDevice(tensor.CPU, 1), moved.Device())
	assert.True(t, moved.RequiresGrad())
	assert.Equal(t, 0, backend.Tape().NumOps())
}
