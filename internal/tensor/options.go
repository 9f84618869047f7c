package tensor

import "fmt"

// ConvOptions configures a (possibly grouped, dilated) convolution.
// Stride, Padding and Dilation hold one entry per spatial axis; padding is
// applied symmetrically on both sides of an axis.
type ConvOptions struct {
	Stride   []int
	Padding  []int
	Dilation []int
	Groups   int
}

// NewConvOptions builds ConvOptions, copying the slices.
func NewConvOptions(stride, padding, dilation []int, groups int) ConvOptions {
	return ConvOptions{
		Stride:   append([]int(nil), stride...),
		Padding:  append([]int(nil), padding...),
		Dilation: append([]int(nil), dilation...),
		Groups:   groups,
	}
}

// Validate checks that every per-axis slice has rank entries and values are in range.
func (o ConvOptions) Validate(rank int) error {
	if err := checkAxes(rank, "stride", o.Stride, 1); err != nil {
		return err
	}
	if err := checkAxes(rank, "padding", o.Padding, 0); err != nil {
		return err
	}
	if err := checkAxes(rank, "dilation", o.Dilation, 1); err != nil {
		return err
	}
	if o.Groups < 1 {
		return fmt.Errorf("groups must be >= 1, got %d", o.Groups)
	}
	return nil
}

// ConvTransposeOptions configures a transposed convolution.
// PaddingOut adds extra size to one side of each output axis.
type ConvTransposeOptions struct {
	Stride     []int
	Padding    []int
	PaddingOut []int
	Dilation   []int
	Groups     int
}

// NewConvTransposeOptions builds ConvTransposeOptions, copying the slices.
func NewConvTransposeOptions(stride, padding, paddingOut, dilation []int, groups int) ConvTransposeOptions {
	return ConvTransposeOptions{
		Stride:     append([]int(nil), stride...),
		Padding:    append([]int(nil), padding...),
		PaddingOut: append([]int(nil), paddingOut...),
		Dilation:   append([]int(nil), dilation...),
		Groups:     groups,
	}
}

// Validate checks that every per-axis slice has rank entries and values are in range.
func (o ConvTransposeOptions) Validate(rank int) error {
	if err := (ConvOptions{Stride: o.Stride, Padding: o.Padding, Dilation: o.Dilation, Groups: o.Groups}).Validate(rank); err != nil {
		return err
	}
	return checkAxes(rank, "padding_out", o.PaddingOut, 0)
}

// DeformConvOptions configures a deformable convolution.
// WeightGroups partitions channels like Groups in ConvOptions; OffsetGroups
// partitions input channels that share one set of sampling offsets.
type DeformConvOptions struct {
	Stride       []int
	Padding      []int
	Dilation     []int
	WeightGroups int
	OffsetGroups int
}

// NewDeformConvOptions builds DeformConvOptions, copying the slices.
func NewDeformConvOptions(stride, padding, dilation []int, weightGroups, offsetGroups int) DeformConvOptions {
	return DeformConvOptions{
		Stride:       append([]int(nil), stride...),
		Padding:      append([]int(nil), padding...),
		Dilation:     append([]int(nil), dilation...),
		WeightGroups: weightGroups,
		OffsetGroups: offsetGroups,
	}
}

// Validate checks that every per-axis slice has rank entries and values are in range.
func (o DeformConvOptions) Validate(rank int) error {
	if err := (ConvOptions{Stride: o.Stride, Padding: o.Padding, Dilation: o.Dilation, Groups: o.WeightGroups}).Validate(rank); err != nil {
		return err
	}
	if o.OffsetGroups < 1 {
		return fmt.Errorf("offset groups must be >= 1, got %d", o.OffsetGroups)
	}
	return nil
}

func checkAxes(rank int, name string, values []int, minValue int) error {
	if len(values) != rank {
		return fmt.Errorf("%s needs %d entries, got %d", name, rank, len(values))
	}
	for i, v := range values {
		if v < minValue {
			return fmt.Errorf("%s[%d] must be >= %d, got %d", name, i, minValue, v)
		}
	}
	return nil
}

// ConvOutputSize returns the output length of one convolved axis:
//
//	(size + 2*padding - dilation*(kernel-1) - 1) / stride + 1
//
// It returns 0 when the dilated kernel does not fit in the padded input.
func ConvOutputSize(size, kernel, stride, padding, dilation int) int {
	span := size + 2*padding - dilation*(kernel-1) - 1
	if span < 0 {
		return 0
	}
	return span/stride + 1
}

// ConvTransposeOutputSize returns the output length of one transposed-convolved axis:
//
//	(size-1)*stride - 2*padding + dilation*(kernel-1) + paddingOut + 1
func ConvTransposeOutputSize(size, kernel, stride, padding, paddingOut, dilation int) int {
	return (size-1)*stride - 2*padding + dilation*(kernel-1) + paddingOut + 1
}
