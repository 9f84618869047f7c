package tensor

// Tensor-level wrappers over the backend's convolution kernels.
// The result tracks gradients when any input does.

// Conv1D applies a 1D convolution. bias may be nil.
func Conv1D[B Backend](x, weight, bias *Tensor[float32, B], opts ConvOptions) *Tensor[float32, B] {
	out := x.backend.Conv1D(x.raw, weight.raw, rawOf(bias), opts)
	return derived(out, x.backend, x, weight, bias)
}

// Conv2D applies a 2D convolution. bias may be nil.
func Conv2D[B Backend](x, weight, bias *Tensor[float32, B], opts ConvOptions) *Tensor[float32, B] {
	out := x.backend.Conv2D(x.raw, weight.raw, rawOf(bias), opts)
	return derived(out, x.backend, x, weight, bias)
}

// Conv3D applies a 3D convolution. bias may be nil.
func Conv3D[B Backend](x, weight, bias *Tensor[float32, B], opts ConvOptions) *Tensor[float32, B] {
	out := x.backend.Conv3D(x.raw, weight.raw, rawOf(bias), opts)
	return derived(out, x.backend, x, weight, bias)
}

// ConvTranspose1D applies a 1D transposed convolution. bias may be nil.
func ConvTranspose1D[B Backend](x, weight, bias *Tensor[float32, B], opts ConvTransposeOptions) *Tensor[float32, B] {
	out := x.backend.ConvTranspose1D(x.raw, weight.raw, rawOf(bias), opts)
	return derived(out, x.backend, x, weight, bias)
}

// ConvTranspose2D applies a 2D transposed convolution. bias may be nil.
func ConvTranspose2D[B Backend](x, weight, bias *Tensor[float32, B], opts ConvTransposeOptions) *Tensor[float32, B] {
	out := x.backend.ConvTranspose2D(x.raw, weight.raw, rawOf(bias), opts)
	return derived(out, x.backend, x, weight, bias)
}

// ConvTranspose3D applies a 3D transposed convolution. bias may be nil.
func ConvTranspose3D[B Backend](x, weight, bias *Tensor[float32, B], opts ConvTransposeOptions) *Tensor[float32, B] {
	out := x.backend.ConvTranspose3D(x.raw, weight.raw, rawOf(bias), opts)
	return derived(out, x.backend, x, weight, bias)
}

// DeformConv2D applies a deformable 2D convolution. mask and bias may be nil.
func DeformConv2D[B Backend](x, offset, weight, mask, bias *Tensor[float32, B], opts DeformConvOptions) *Tensor[float32, B] {
	out := x.backend.DeformConv2D(x.raw, offset.raw, weight.raw, rawOf(mask), rawOf(bias), opts)
	return derived(out, x.backend, x, offset, weight, mask, bias)
}

func rawOf[B Backend](t *Tensor[float32, B]) *RawTensor {
	if t == nil {
		return nil
	}
	return t.raw
}

func derived[B Backend](raw *RawTensor, b B, inputs ...*Tensor[float32, B]) *Tensor[float32, B] {
	out := New[float32, B](raw, b)
	for _, in := range inputs {
		if in != nil && in.requiresGrad {
			out.requiresGrad = true
			break
		}
	}
	return out
}
