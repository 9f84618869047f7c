package nn

import (
	"github.com/born-ml/convkit/internal/module"
	"github.com/born-ml/convkit/internal/tensor"
)

// checkGroups requires both channel counts to be divisible by groups.
func checkGroups(layer string, channelsIn, channelsOut, groups int) error {
	if groups < 1 || channelsIn%groups != 0 || channelsOut%groups != 0 {
		return configErr(layer, ErrGroupsMismatch,
			"channels_in=%d channels_out=%d groups=%d", channelsIn, channelsOut, groups)
	}
	return nil
}

// checkPositive requires every value of a hyperparameter to be >= 1 and,
// when rank > 0, exactly rank values.
func checkPositive(layer, name string, rank int, values ...int) error {
	if rank > 0 && len(values) != rank {
		return configErr(layer, ErrInvalidConfig, "%s needs %d values, got %d", name, rank, len(values))
	}
	for i, v := range values {
		if v < 1 {
			return configErr(layer, ErrInvalidConfig, "%s[%d] must be >= 1, got %d", name, i, v)
		}
	}
	return nil
}

// checkNonNegative is checkPositive for amounts that may be zero.
func checkNonNegative(layer, name string, rank int, values ...int) error {
	if len(values) != rank {
		return configErr(layer, ErrInvalidConfig, "%s needs %d values, got %d", name, rank, len(values))
	}
	for i, v := range values {
		if v < 0 {
			return configErr(layer, ErrInvalidConfig, "%s[%d] must be >= 0, got %d", name, i, v)
		}
	}
	return nil
}

func prod(values []int) int {
	n := 1
	for _, v := range values {
		n *= v
	}
	return n
}

// convWeightShape is [out, in/groups, *kernel].
func convWeightShape(channelsIn, channelsOut, groups int, kernel []int) tensor.Shape {
	return append(tensor.Shape{channelsOut, channelsIn / groups}, kernel...)
}

// convFans returns (in/groups)*prod(kernel) and (out/groups)*prod(kernel).
func convFans(channelsIn, channelsOut, groups int, kernel []int) (fanIn, fanOut int) {
	k := prod(kernel)
	return channelsIn / groups * k, channelsOut / groups * k
}

// transposeWeightShape is [in, out/groups, *kernel].
func transposeWeightShape(channelsIn, channelsOut, groups int, kernel []int) tensor.Shape {
	return append(tensor.Shape{channelsIn, channelsOut / groups}, kernel...)
}

// transposeFans swaps the roles of the channel counts: a transposed
// convolution gathers (out/groups)*prod(kernel) inputs per output element.
func transposeFans(channelsIn, channelsOut, groups int, kernel []int) (fanIn, fanOut int) {
	k := prod(kernel)
	return channelsOut / groups * k, channelsIn / groups * k
}

// initParams draws the weight and, when withBias is set, a [channelsOut] bias
// with the same fans.
func initParams[B tensor.Backend](
	initializer Initializer, weightShape tensor.Shape, channelsOut, fanIn, fanOut int,
	withBias bool, backend B, device tensor.Device,
) (weight, bias *module.Param[B], err error) {
	if weight, err = InitWith(initializer, weightShape, &fanIn, &fanOut, backend, device); err != nil {
		return nil, nil, err
	}
	if withBias {
		if bias, err = InitWith(initializer, tensor.Shape{channelsOut}, &fanIn, &fanOut, backend, device); err != nil {
			return nil, nil, err
		}
	}
	return weight, bias, nil
}
