package ops

import "github.com/born-ml/convkit/internal/tensor"

// ConvOp records one convolution call.
//
// Options holds the options value the kernel was invoked with
// (tensor.ConvOptions, tensor.ConvTransposeOptions or tensor.DeformConvOptions).
type ConvOp struct {
	name    string
	inputs  []*tensor.RawTensor
	output  *tensor.RawTensor
	Options any
}

// NewConvOp creates a ConvOp. Nil inputs are dropped.
func NewConvOp(name string, output *tensor.RawTensor, options any, inputs ...*tensor.RawTensor) *ConvOp {
	kept := make([]*tensor.RawTensor, 0, len(inputs))
	for _, in := range inputs {
		if in != nil {
			kept = append(kept, in)
		}
	}
	return &ConvOp{
		name:    name,
		inputs:  kept,
		output:  output,
		Options: options,
	}
}

// Name returns the kernel name.
func (op *ConvOp) Name() string {
	return op.name
}

// Inputs returns the input tensors.
func (op *ConvOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor.
func (op *ConvOp) Output() *tensor.RawTensor {
	return op.output
}
