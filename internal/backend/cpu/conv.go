package cpu

import (
	"fmt"

	"github.com/born-ml/convkit/internal/tensor"
)

// convGeometry is a convolution lifted to three spatial axes.
// 1D and 2D problems prepend unit axes (size 1, stride 1, padding 0, dilation 1).
type convGeometry struct {
	n, cIn, cOut, groups int
	in, kernel, out      [3]int
	stride, pad, dil     [3]int
}

func (g convGeometry) inPerGroup() int  { return g.cIn / g.groups }
func (g convGeometry) outPerGroup() int { return g.cOut / g.groups }

// Conv1D performs a 1D convolution.
//
// Input shape:  [N, C_in, L]
// Weight shape: [C_out, C_in/groups, K]
// Output shape: [N, C_out, L_out]
func (cpu *CPUBackend) Conv1D(x, weight, bias *tensor.RawTensor, opts tensor.ConvOptions) *tensor.RawTensor {
	return cpu.conv("conv1d", 1, x, weight, bias, opts)
}

// Conv2D performs a 2D convolution.
//
// Input shape:  [N, C_in, H, W]
// Weight shape: [C_out, C_in/groups, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
func (cpu *CPUBackend) Conv2D(x, weight, bias *tensor.RawTensor, opts tensor.ConvOptions) *tensor.RawTensor {
	return cpu.conv("conv2d", 2, x, weight, bias, opts)
}

// Conv3D performs a 3D convolution.
//
// Input shape:  [N, C_in, D, H, W]
// Weight shape: [C_out, C_in/groups, K_d, K_h, K_w]
// Output shape: [N, C_out, D_out, H_out, W_out]
func (cpu *CPUBackend) Conv3D(x, weight, bias *tensor.RawTensor, opts tensor.ConvOptions) *tensor.RawTensor {
	return cpu.conv("conv3d", 3, x, weight, bias, opts)
}

func (cpu *CPUBackend) conv(op string, rank int, x, weight, bias *tensor.RawTensor, opts tensor.ConvOptions) *tensor.RawTensor {
	requireFloat32(op, x, weight, bias)
	requireRank(op, "input", x, rank+2)
	requireRank(op, "weight", weight, rank+2)
	if err := opts.Validate(rank); err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	xs, ws := x.Shape(), weight.Shape()
	g := convGeometry{
		n:      xs[0],
		cIn:    xs[1],
		cOut:   ws[0],
		groups: opts.Groups,
		in:     lift3(xs[2:], 1),
		kernel: lift3(ws[2:], 1),
		stride: lift3(opts.Stride, 1),
		pad:    lift3(opts.Padding, 0),
		dil:    lift3(opts.Dilation, 1),
	}
	if g.cIn%g.groups != 0 || g.cOut%g.groups != 0 {
		panic(fmt.Sprintf("%s: channels in=%d out=%d not divisible by groups=%d", op, g.cIn, g.cOut, g.groups))
	}
	if ws[1] != g.inPerGroup() {
		panic(fmt.Sprintf("%s: weight expects %d input channels per group, input has %d", op, ws[1], g.inPerGroup()))
	}
	checkBias(op, bias, g.cOut)
	for a := 0; a < 3; a++ {
		g.out[a] = tensor.ConvOutputSize(g.in[a], g.kernel[a], g.stride[a], g.pad[a], g.dil[a])
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

	cpu.forBatch(g.n, g.cOut, func(n, co int) {
		group := co / g.outPerGroup()
		dst := od[(n*g.cOut+co)*outPlane : (n*g.cOut+co+1)*outPlane]
		wBase := co * g.inPerGroup() * kVol

		for od0 := 0; od0 < g.out[0]; od0++ {
			for oh := 0; oh < g.out[1]; oh++ {
				for ow := 0; ow < g.out[2]; ow++ {
					var sum float32
					if bd != nil {
						sum = bd[co]
					}
					for cl := 0; cl < g.inPerGroup(); cl++ {
						ci := group*g.inPerGroup() + cl
						src := xd[(n*g.cIn+ci)*inPlane : (n*g.cIn+ci+1)*inPlane]
						wk := wd[wBase+cl*kVol : wBase+(cl+1)*kVol]
						sum += convWindow(src, wk, g, od0, oh, ow)
					}
					dst[(od0*g.out[1]+oh)*g.out[2]+ow] = sum
				}
			}
		}
	})

	return out
}

// convWindow accumulates one kernel window of a single channel.
func convWindow(src, wk []float32, g convGeometry, od0, oh, ow int) float32 {
	var sum float32
	for kd := 0; kd < g.kernel[0]; kd++ {
		id := od0*g.stride[0] - g.pad[0] + kd*g.dil[0]
		if id < 0 || id >= g.in[0] {
			continue
		}
		for kh := 0; kh < g.kernel[1]; kh++ {
			ih := oh*g.stride[1] - g.pad[1] + kh*g.dil[1]
			if ih < 0 || ih >= g.in[1] {
				continue
			}
			for kw := 0; kw < g.kernel[2]; kw++ {
				iw := ow*g.stride[2] - g.pad[2] + kw*g.dil[2]
				if iw < 0 || iw >= g.in[2] {
					continue
				}
				sum += wk[(kd*g.kernel[1]+kh)*g.kernel[2]+kw] * src[(id*g.in[1]+ih)*g.in[2]+iw]
			}
		}
	}
	return sum
}

func checkBias(op string, bias *tensor.RawTensor, cOut int) {
	if bias == nil {
		return
	}
	if !bias.Shape().Equal(tensor.Shape{cOut}) {
		panic(fmt.Sprintf("%s: bias must have shape [%d], got %v", op, cOut, bias.Shape()))
	}
}
