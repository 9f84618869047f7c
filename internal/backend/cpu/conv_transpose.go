package cpu

import (
	"fmt"

	"github.com/born-ml/convkit/internal/tensor"
)

// ConvTranspose1D performs a 1D transposed convolution.
//
// Input shape:  [N, C_in, L]
// Weight shape: [C_in, C_out/groups, K]
// Output shape: [N, C_out, L_out]
func (cpu *CPUBackend) ConvTranspose1D(x, weight, bias *tensor.RawTensor, opts tensor.ConvTransposeOptions) *tensor.RawTensor {
	return cpu.convTranspose("conv_transpose1d", 1, x, weight, bias, opts)
}

// ConvTranspose2D performs a 2D transposed convolution.
//
// Input shape:  [N, C_in, H, W]
// Weight shape: [C_in, C_out/groups, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
func (cpu *CPUBackend) ConvTranspose2D(x, weight, bias *tensor.RawTensor, opts tensor.ConvTransposeOptions) *tensor.RawTensor {
	return cpu.convTranspose("conv_transpose2d", 2, x, weight, bias, opts)
}

// ConvTranspose3D performs a 3D transposed convolution.
//
// Input shape:  [N, C_in, D, H, W]
// Weight shape: [C_in, C_out/groups, K_d, K_h, K_w]
// Output shape: [N, C_out, D_out, H_out, W_out]
func (cpu *CPUBackend) ConvTranspose3D(x, weight, bias *tensor.RawTensor, opts tensor.ConvTransposeOptions) *tensor.RawTensor {
	return cpu.convTranspose("conv_transpose3d", 3, x, weight, bias, opts)
}

// convTranspose scatters every input element through the kernel.
// Each (batch, out-channel) plane is owned by a single task, so scatters never race.
func (cpu *CPUBackend) convTranspose(op string, rank int, x, weight, bias *tensor.RawTensor, opts tensor.ConvTransposeOptions) *tensor.RawTensor {
	requireFloat32(op, x, weight, bias)
	requireRank(op, "input", x, rank+2)
	requireRank(op, "weight", weight, rank+2)
	if err := opts.Validate(rank); err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	xs, ws := x.Shape(), weight.Shape()
	if ws[0] != xs[1] {
		panic(fmt.Sprintf("%s: weight expects %d input channels, input has %d", op, ws[0], xs[1]))
	}
	if xs[1]%opts.Groups != 0 {
		panic(fmt.Sprintf("%s: input channels %d not divisible by groups=%d", op, xs[1], opts.Groups))
	}
	g := convGeometry{
		n:      xs[0],
		cIn:    xs[1],
		cOut:   ws[1] * opts.Groups,
		groups: opts.Groups,
		in:     lift3(xs[2:], 1),
		kernel: lift3(ws[2:], 1),
		stride: lift3(opts.Stride, 1),
		pad:    lift3(opts.Padding, 0),
		dil:    lift3(opts.Dilation, 1),
	}
	padOut := lift3(opts.PaddingOut, 0)
	checkBias(op, bias, g.cOut)
	for a := 0; a < 3; a++ {
		g.out[a] = tensor.ConvTransposeOutputSize(g.in[a], g.kernel[a], g.stride[a], g.pad[a], padOut[a], g.dil[a])
		if g.out[a] <= 0 {
			panic(fmt.Sprintf("%s: invalid output size %d on axis %d (check kernel/stride/padding)", op, g.out[a], a))
		}
	}

	out, err := tensor.NewRaw(outputShape(g.n, g.cOut, g.out, rank), tensor.Float32, x.Device())
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create output tensor: %v", op, err))
	}

	xd, wd, od := x.AsFloat32(), weight.AsFloat32(), out.AsFloat32()
	var bd []float32
	if bias != nil {
		bd = bias.AsFloat32()
	}

	inPlane := g.in[0] * g.in[1] * g.in[2]
	outPlane := g.out[0] * g.out[1] * g.out[2]
	kVol := g.kernel[0] * g.kernel[1] * g.kernel[2]
	outPerGroup := g.outPerGroup()

	cpu.forBatch(g.n, g.cOut, func(n, co int) {
		group := co / outPerGroup
		local := co % outPerGroup
		dst := od[(n*g.cOut+co)*outPlane : (n*g.cOut+co+1)*outPlane]
		if bd != nil {
			for i := range dst {
				dst[i] = bd[co]
			}
		}

		for cl := 0; cl < g.inPerGroup(); cl++ {
			ci := group*g.inPerGroup() + cl
			src := xd[(n*g.cIn+ci)*inPlane : (n*g.cIn+ci+1)*inPlane]
			wk := wd[(ci*outPerGroup+local)*kVol : (ci*outPerGroup+local+1)*kVol]
			scatterWindow(dst, src, wk, g)
		}
	})

	return out
}

func scatterWindow(dst, src, wk []float32, g convGeometry) {
	for id := 0; id < g.in[0]; id++ {
		for ih := 0; ih < g.in[1]; ih++ {
			for iw := 0; iw < g.in[2]; iw++ {
				v := src[(id*g.in[1]+ih)*g.in[2]+iw]
				if v == 0 {
					continue
				}
				for kd := 0; kd < g.kernel[0]; kd++ {
					od0 := id*g.stride[0] - g.pad[0] + kd*g.dil[0]
					if od0 < 0 || od0 >= g.out[0] {
						continue
					}
					for kh := 0; kh < g.kernel[1]; kh++ {
						oh := ih*g.stride[1] - g.pad[1] + kh*g.dil[1]
						if oh < 0 || oh >= g.out[1] {
							continue
						}
						for kw := 0; kw < g.kernel[2]; kw++ {
							ow := iw*g.stride[2] - g.pad[2] + kw*g.dil[2]
							if ow < 0 || ow >= g.out[2] {
								continue
							}
							dst[(od0*g.out[1]+oh)*g.out[2]+ow] += v * wk[(kd*g.kernel[1]+kh)*g.kernel[2]+kw]
						}
					}
				}
			}
		}
	}
}
