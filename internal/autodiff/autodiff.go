// Package autodiff implements gradient tracking using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and records every
// convolution it runs on a GradientTape. Tensors created on an
// AutodiffBackend honour RequireGrad; tensors on the inner backend never do.
//
// Usage:
//
//	inner := cpu.New()
//	backend := autodiff.New(inner)
//	backend.Tape().StartRecording()
//
//	layer, _ := nn.NewConv2d(cfg, backend, tensor.DefaultDevice)
//	out := layer.Forward(x) // recorded on backend.Tape()
//
//	valid := nn.ValidConv2d(layer) // same weights on inner, no tracking
package autodiff

import (
	"github.com/born-ml/convkit/internal/autodiff/ops"
	"github.com/born-ml/convkit/internal/tensor"
)

// AutodiffBackend wraps a Backend and records operations for differentiation.
// It implements the tensor.Backend and tensor.GradientTracker interfaces.
//
// Type parameter B is the inner backend the kernels are delegated to.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// TracksGradients always reports true.
func (b *AutodiffBackend[B]) TracksGradients() bool {
	return true
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// ToDevice moves a tensor through the inner backend. Transfers are not recorded.
func (b *AutodiffBackend[B]) ToDevice(x *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	return b.inner.ToDevice(x, device)
}

// Conv1D performs a 1D convolution and records the operation.
func (b *AutodiffBackend[B]) Conv1D(x, weight, bias *tensor.RawTensor, opts tensor.ConvOptions) *tensor.RawTensor {
	result := b.inner.Conv1D(x, weight, bias, opts)
	b.record("conv1d", result, opts, x, weight, bias)
	return result
}

// Conv2D performs a 2D convolution and records the operation.
func (b *AutodiffBackend[B]) Conv2D(x, weight, bias *tensor.RawTensor, opts tensor.ConvOptions) *tensor.RawTensor {
	result := b.inner.Conv2D(x, weight, bias, opts)
	b.record("conv2d", result, opts, x, weight, bias)
	return result
}

// Conv3D performs a 3D convolution and records the operation.
func (b *AutodiffBackend[B]) Conv3D(x, weight, bias *tensor.RawTensor, opts tensor.ConvOptions) *tensor.RawTensor {
	result := b.inner.Conv3D(x, weight, bias, opts)
	b.record("conv3d", result, opts, x, weight, bias)
	return result
}

// ConvTranspose1D performs a 1D transposed convolution and records the operation.
func (b *AutodiffBackend[B]) ConvTranspose1D(x, weight, bias *tensor.RawTensor, opts tensor.ConvTransposeOptions) *tensor.RawTensor {
	result := b.inner.ConvTranspose1D(x, weight, bias, opts)
	b.record("conv_transpose1d", result, opts, x, weight, bias)
	return result
}

// ConvTranspose2D performs a 2D transposed convolution and records the operation.
func (b *AutodiffBackend[B]) ConvTranspose2D(x, weight, bias *tensor.RawTensor, opts tensor.ConvTransposeOptions) *tensor.RawTensor {
	result := b.inner.ConvTranspose2D(x, weight, bias, opts)
	b.record("conv_transpose2d", result, opts, x, weight, bias)
	return result
}

// ConvTranspose3D performs a 3D transposed convolution and records the operation.
func (b *AutodiffBackend[B]) ConvTranspose3D(x, weight, bias *tensor.RawTensor, opts tensor.ConvTransposeOptions) *tensor.RawTensor {
	result := b.inner.ConvTranspose3D(x, weight, bias, opts)
	b.record("conv_transpose3d", result, opts, x, weight, bias)
	return result
}

// DeformConv2D performs a deformable 2D convolution and records the operation.
func (b *AutodiffBackend[B]) DeformConv2D(x, offset, weight, mask, bias *tensor.RawTensor, opts tensor.DeformConvOptions) *tensor.RawTensor {
	result := b.inner.DeformConv2D(x, offset, weight, mask, bias, opts)
	b.record("deform_conv2d", result, opts, x, offset, weight, mask, bias)
	return result
}

func (b *AutodiffBackend[B]) record(name string, result *tensor.RawTensor, opts any, inputs ...*tensor.RawTensor) {
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewConvOp(name, result, opts, inputs...))
	}
}
