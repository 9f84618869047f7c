package tensor

// Backend defines the interface that compute backends implement for convkit modules.
// Backends own the numeric kernels; modules only configure and invoke them.
//
// Implementations:
//   - internal/backend/cpu: reference kernels in pure Go
//
// Decorator backends:
//   - internal/autodiff: records operations for differentiation (wraps any backend)
//
// Kernel methods panic on malformed inputs (rank, channel or options mismatches):
// those are programmer errors that module configuration is expected to rule out.
type Backend interface {
	// Convolution, channels-first layout [N, C, *spatial].
	// bias may be nil; when present it has shape [C_out].
	Conv1D(x, weight, bias *RawTensor, opts ConvOptions) *RawTensor
	Conv2D(x, weight, bias *RawTensor, opts ConvOptions) *RawTensor
	Conv3D(x, weight, bias *RawTensor, opts ConvOptions) *RawTensor

	// Transposed convolution; weight is laid out [C_in, C_out/groups, *kernel].
	ConvTranspose1D(x, weight, bias *RawTensor, opts ConvTransposeOptions) *RawTensor
	ConvTranspose2D(x, weight, bias *RawTensor, opts ConvTransposeOptions) *RawTensor
	ConvTranspose3D(x, weight, bias *RawTensor, opts ConvTransposeOptions) *RawTensor

	// DeformConv2D samples the input at kernel positions displaced by offset
	// ([N, 2*offset_groups*kh*kw, H_out, W_out]) and scaled by mask
	// ([N, offset_groups*kh*kw, H_out, W_out], may be nil).
	DeformConv2D(x, offset, weight, mask, bias *RawTensor, opts DeformConvOptions) *RawTensor

	// ToDevice returns a copy of x resident on the given device.
	ToDevice(x *RawTensor, device Device) *RawTensor

	// Metadata
	Name() string
	Device() Device
}

// GradientTracker is implemented by backends that can record operations for
// automatic differentiation. Backends that don't implement it never track gradients.
type GradientTracker interface {
	TracksGradients() bool
}

// TracksGradients reports whether b records gradient history.
func TracksGradients(b Backend) bool {
	gt, ok := b.(GradientTracker)
	return ok && gt.TracksGradients()
}
