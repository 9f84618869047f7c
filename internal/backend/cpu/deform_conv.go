package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/convkit/internal/tensor"
)

// DeformConv2D performs a 2D deformable convolution.
//
// Input shape:  [N, C_in, H, W]
// Offset shape: [N, 2*offset_groups*K_h*K_w, H_out, W_out]
// Weight shape: [C_out, C_in/weight_groups, K_h, K_w]
// Mask shape:   [N, offset_groups*K_h*K_w, H_out, W_out] (optional)
// Output shape: [N, C_out, H_out, W_out]
//
// For kernel point k of offset group og the vertical displacement sits at
// channel 2*(og*K+k) and the horizontal one right after it. Samples falling
// outside the input contribute zero.
func (cpu *CPUBackend) DeformConv2D(x, offset, weight, mask, bias *tensor.RawTensor, opts tensor.DeformConvOptions) *tensor.RawTensor {
	const op = "deform_conv2d"
	requireFloat32(op, x, offset, weight, mask, bias)
	requireRank(op, "input", x, 4)
	requireRank(op, "offset", offset, 4)
	requireRank(op, "weight", weight, 4)
	if mask != nil {
		requireRank(op, "mask", mask, 4)
	}
	if err := opts.Validate(2); err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	xs, ws := x.Shape(), weight.Shape()
	n, cIn, h, w := xs[0], xs[1], xs[2], xs[3]
	cOut, kh, kw := ws[0], ws[2], ws[3]
	wg, og := opts.WeightGroups, opts.OffsetGroups
	if cIn%wg != 0 || cOut%wg != 0 {
		panic(fmt.Sprintf("%s: channels in=%d out=%d not divisible by weight groups=%d", op, cIn, cOut, wg))
	}
	if cIn%og != 0 {
		panic(fmt.Sprintf("%s: input channels %d not divisible by offset groups=%d", op, cIn, og))
	}
	if ws[1] != cIn/wg {
		panic(fmt.Sprintf("%s: weight expects %d input channels per group, input has %d", op, ws[1], cIn/wg))
	}
	checkBias(op, bias, cOut)

	outH := tensor.ConvOutputSize(h, kh, opts.Stride[0], opts.Padding[0], opts.Dilation[0])
	outW := tensor.ConvOutputSize(w, kw, opts.Stride[1], opts.Padding[1], opts.Dilation[1])
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("%s: invalid output size %dx%d (check kernel/stride/padding)", op, outH, outW))
	}
	kVol := kh * kw
	if want := (tensor.Shape{n, 2 * og * kVol, outH, outW}); !offset.Shape().Equal(want) {
		panic(fmt.Sprintf("%s: offset must have shape %v, got %v", op, want, offset.Shape()))
	}
	if mask != nil {
		if want := (tensor.Shape{n, og * kVol, outH, outW}); !mask.Shape().Equal(want) {
			panic(fmt.Sprintf("%s: mask must have shape %v, got %v", op, want, mask.Shape()))
		}
	}

	out, err := tensor.NewRaw(tensor.Shape{n, cOut, outH, outW}, tensor.Float32, x.Device())
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create output tensor: %v", op, err))
	}

	xd, offd, wd, od := x.AsFloat32(), offset.AsFloat32(), weight.AsFloat32(), out.AsFloat32()
	var md, bd []float32
	if mask != nil {
		md = mask.AsFloat32()
	}
	if bias != nil {
		bd = bias.AsFloat32()
	}

	inPlane, outPlane := h*w, outH*outW
	inPerGroup, outPerGroup := cIn/wg, cOut/wg
	chPerOffsetGroup := cIn / og

	cpu.forBatch(n, cOut, func(b, co int) {
		group := co / outPerGroup
		dst := od[(b*cOut+co)*outPlane : (b*cOut+co+1)*outPlane]
		wBase := co * inPerGroup * kVol
		offBase := b * 2 * og * kVol * outPlane
		maskBase := b * og * kVol * outPlane

		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				pos := oy*outW + ox
				var sum float32
				if bd != nil {
					sum = bd[co]
				}
				for cl := 0; cl < inPerGroup; cl++ {
					ci := group*inPerGroup + cl
					ogi := ci / chPerOffsetGroup
					src := xd[(b*cIn+ci)*inPlane : (b*cIn+ci+1)*inPlane]
					for ky := 0; ky < kh; ky++ {
						for kx := 0; kx < kw; kx++ {
							k := ky*kw + kx
							dyCh := 2 * (ogi*kVol + k)
							dy := offd[offBase+dyCh*outPlane+pos]
							dx := offd[offBase+(dyCh+1)*outPlane+pos]
							py := float64(oy*opts.Stride[0]-opts.Padding[0]+ky*opts.Dilation[0]) + float64(dy)
							px := float64(ox*opts.Stride[1]-opts.Padding[1]+kx*opts.Dilation[1]) + float64(dx)
							v := bilinear(src, h, w, py, px)
							if md != nil {
								v *= md[maskBase+(ogi*kVol+k)*outPlane+pos]
							}
							sum += wd[wBase+cl*kVol+k] * v
						}
					}
				}
				dst[pos] = sum
			}
		}
	})

	return out
}

// bilinear samples plane at a fractional (y, x), treating everything outside as zero.
func bilinear(plane []float32, h, w int, y, x float64) float32 {
	if y <= -1 || y >= float64(h) || x <= -1 || x >= float64(w) {
		return 0
	}
	y0, x0 := int(math.Floor(y)), int(math.Floor(x))
	ly, lx := float32(y-float64(y0)), float32(x-float64(x0))
	hy, hx := 1-ly, 1-lx

	at := func(yy, xx int) float32 {
		if yy < 0 || yy >= h || xx < 0 || xx >= w {
			return 0
		}
		return plane[yy*w+xx]
	}
	return hy*hx*at(y0, x0) + hy*lx*at(y0, x0+1) + ly*hx*at(y0+1, x0) + ly*lx*at(y0+1, x0+1)
}
