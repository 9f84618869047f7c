// Package ops defines the operations recorded on an autodiff gradient tape.
//
// Recorded operations:
//   - ConvOp: standard, transposed and deformable convolutions of any rank
package ops

import "github.com/born-ml/convkit/internal/tensor"

// Operation represents a node in the recorded computation graph.
// Each operation keeps references to its inputs and output from the forward pass.
type Operation interface {
	// Name identifies the kernel, e.g. "conv2d" or "deform_conv2d".
	Name() string

	// Inputs returns the input tensors for this operation.
	// Optional inputs that were not supplied (bias, mask) are omitted.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
