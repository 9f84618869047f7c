// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/convkit/internal/autodiff"
	"github.com/born-ml/convkit/internal/nn"
	"github.com/born-ml/convkit/record"
	"github.com/born-ml/convkit/tensor"
)

// Standard convolutions

// Conv1dConfig describes a Conv1d layer.
type Conv1dConfig = nn.Conv1dConfig

// NewConv1dConfig returns a Conv1d config with stride 1, dilation 1, one group,
// Valid padding, a bias and the default initializer.
func NewConv1dConfig(channelsIn, channelsOut, kernelSize int) Conv1dConfig {
	return nn.NewConv1dConfig(channelsIn, channelsOut, kernelSize)
}

// Conv1d applies a 1D convolution over [batch, channels, length] inputs.
type Conv1d[B tensor.Backend] = nn.Conv1d[B]

// NewConv1d validates cfg and allocates a Conv1d on device.
//
// Example:
//
//	backend := cpu.New()
//	conv, err := nn.NewConv1d(nn.NewConv1dConfig(16, 32, 3), backend, backend.Device())
func NewConv1d[B tensor.Backend](cfg Conv1dConfig, backend B, device tensor.Device) (*Conv1d[B], error) {
	return nn.NewConv1d(cfg, backend, device)
}

// Conv2dConfig describes a Conv2d layer.
type Conv2dConfig = nn.Conv2dConfig

// NewConv2dConfig returns a Conv2d config with the default hyperparameters.
func NewConv2dConfig(channels, kernelSize [2]int) Conv2dConfig {
	return nn.NewConv2dConfig(channels, kernelSize)
}

// Conv2d applies a 2D convolution over [batch, channels, height, width] inputs.
type Conv2d[B tensor.Backend] = nn.Conv2d[B]

// NewConv2d validates cfg and allocates a Conv2d on device.
//
// Example:
//
//	backend := cpu.New()
//	conv, err := nn.NewConv2d(nn.NewConv2dConfig([2]int{3, 8}, [2]int{3, 3}), backend, backend.Device())
//	y := conv.Forward(x) // [1,3,28,28] -> [1,8,26,26]
func NewConv2d[B tensor.Backend](cfg Conv2dConfig, backend B, device tensor.Device) (*Conv2d[B], error) {
	return nn.NewConv2d(cfg, backend, device)
}

// Conv3dConfig describes a Conv3d layer.
type Conv3dConfig = nn.Conv3dConfig

// NewConv3dConfig returns a Conv3d config with the default hyperparameters.
func NewConv3dConfig(channels [2]int, kernelSize [3]int) Conv3dConfig {
	return nn.NewConv3dConfig(channels, kernelSize)
}

// Conv3d applies a 3D convolution over [batch, channels, depth, height, width] inputs.
type Conv3d[B tensor.Backend] = nn.Conv3d[B]

// NewConv3d validates cfg and allocates a Conv3d on device.
func NewConv3d[B tensor.Backend](cfg Conv3dConfig, backend B, device tensor.Device) (*Conv3d[B], error) {
	return nn.NewConv3d(cfg, backend, device)
}

// Transposed convolutions

// ConvTranspose1dConfig describes a ConvTranspose1d layer.
type ConvTranspose1dConfig = nn.ConvTranspose1dConfig

// NewConvTranspose1dConfig returns a ConvTranspose1d config with stride 1,
// dilation 1, one group, zero padding, a bias and the default initializer.
func NewConvTranspose1dConfig(channels [2]int, kernelSize int) ConvTranspose1dConfig {
	return nn.NewConvTranspose1dConfig(channels, kernelSize)
}

// ConvTranspose1d applies a 1D transposed convolution.
type ConvTranspose1d[B tensor.Backend] = nn.ConvTranspose1d[B]

// NewConvTranspose1d validates cfg and allocates a ConvTranspose1d on device.
func NewConvTranspose1d[B tensor.Backend](cfg ConvTranspose1dConfig, backend B, device tensor.Device) (*ConvTranspose1d[B], error) {
	return nn.NewConvTranspose1d(cfg, backend, device)
}

// ConvTranspose2dConfig describes a ConvTranspose2d layer.
type ConvTranspose2dConfig = nn.ConvTranspose2dConfig

// NewConvTranspose2dConfig returns a ConvTranspose2d config with the default hyperparameters.
func NewConvTranspose2dConfig(channels, kernelSize [2]int) ConvTranspose2dConfig {
	return nn.NewConvTranspose2dConfig(channels, kernelSize)
}

// ConvTranspose2d applies a 2D transposed convolution.
type ConvTranspose2d[B tensor.Backend] = nn.ConvTranspose2d[B]

// NewConvTranspose2d validates cfg and allocates a ConvTranspose2d on device.
//
// Example:
//
//	cfg := nn.NewConvTranspose2dConfig([2]int{8, 3}, [2]int{2, 2}).WithStride([2]int{2, 2})
//	up, err := nn.NewConvTranspose2d(cfg, backend, backend.Device())
//	y := up.Forward(x) // [1,8,14,14] -> [1,3,28,28]
func NewConvTranspose2d[B tensor.Backend](cfg ConvTranspose2dConfig, backend B, device tensor.Device) (*ConvTranspose2d[B], error) {
	return nn.NewConvTranspose2d(cfg, backend, device)
}

// ConvTranspose3dConfig describes a ConvTranspose3d layer.
type ConvTranspose3dConfig = nn.ConvTranspose3dConfig

// NewConvTranspose3dConfig returns a ConvTranspose3d config with the default hyperparameters.
func NewConvTranspose3dConfig(channels [2]int, kernelSize [3]int) ConvTranspose3dConfig {
	return nn.NewConvTranspose3dConfig(channels, kernelSize)
}

// ConvTranspose3d applies a 3D transposed convolution.
type ConvTranspose3d[B tensor.Backend] = nn.ConvTranspose3d[B]

// NewConvTranspose3d validates cfg and allocates a ConvTranspose3d on device.
func NewConvTranspose3d[B tensor.Backend](cfg ConvTranspose3dConfig, backend B, device tensor.Device) (*ConvTranspose3d[B], error) {
	return nn.NewConvTranspose3d(cfg, backend, device)
}

// Deformable convolution

// DeformConv2dConfig describes a DeformConv2d layer.
type DeformConv2dConfig = nn.DeformConv2dConfig

// NewDeformConv2dConfig returns a DeformConv2d config with one weight group,
// one offset group and otherwise default hyperparameters.
func NewDeformConv2dConfig(channels, kernelSize [2]int) DeformConv2dConfig {
	return nn.NewDeformConv2dConfig(channels, kernelSize)
}

// DeformConv2d is a 2D convolution whose sampling grid is shifted by learned offsets.
type DeformConv2d[B tensor.Backend] = nn.DeformConv2d[B]

// NewDeformConv2d validates cfg and allocates a DeformConv2d on device.
func NewDeformConv2d[B tensor.Backend](cfg DeformConv2dConfig, backend B, device tensor.Device) (*DeformConv2d[B], error) {
	return nn.NewDeformConv2d(cfg, backend, device)
}

// Records

// ConvRecord is the record of Conv1d, Conv2d and Conv3d.
type ConvRecord[B tensor.Backend] = nn.ConvRecord[B]

// Conv1dRecord is the record of a Conv1d.
type Conv1dRecord[B tensor.Backend] = nn.Conv1dRecord[B]

// Conv2dRecord is the record of a Conv2d.
type Conv2dRecord[B tensor.Backend] = nn.Conv2dRecord[B]

// Conv3dRecord is the record of a Conv3d.
type Conv3dRecord[B tensor.Backend] = nn.Conv3dRecord[B]

// ConvTransposeRecord is the record of the transposed convolutions.
type ConvTransposeRecord[B tensor.Backend] = nn.ConvTransposeRecord[B]

// ConvTranspose1dRecord is the record of a ConvTranspose1d.
type ConvTranspose1dRecord[B tensor.Backend] = nn.ConvTranspose1dRecord[B]

// ConvTranspose2dRecord is the record of a ConvTranspose2d.
type ConvTranspose2dRecord[B tensor.Backend] = nn.ConvTranspose2dRecord[B]

// ConvTranspose3dRecord is the record of a ConvTranspose3d.
type ConvTranspose3dRecord[B tensor.Backend] = nn.ConvTranspose3dRecord[B]

// DeformConv2dRecord is the record of a DeformConv2d.
type DeformConv2dRecord[B tensor.Backend] = nn.DeformConv2dRecord[B]

// Conv1dRecordFromItem decodes a Conv1d record onto backend and device.
func Conv1dRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (Conv1dRecord[B], error) {
	return nn.Conv1dRecordFromItem(item, backend, device)
}

// Conv2dRecordFromItem decodes a Conv2d record onto backend and device.
func Conv2dRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (Conv2dRecord[B], error) {
	return nn.Conv2dRecordFromItem(item, backend, device)
}

// Conv3dRecordFromItem decodes a Conv3d record onto backend and device.
func Conv3dRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (Conv3dRecord[B], error) {
	return nn.Conv3dRecordFromItem(item, backend, device)
}

// ConvTranspose1dRecordFromItem decodes a ConvTranspose1d record onto backend and device.
func ConvTranspose1dRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (ConvTranspose1dRecord[B], error) {
	return nn.ConvTranspose1dRecordFromItem(item, backend, device)
}

// ConvTranspose2dRecordFromItem decodes a ConvTranspose2d record onto backend and device.
func ConvTranspose2dRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (ConvTranspose2dRecord[B], error) {
	return nn.ConvTranspose2dRecordFromItem(item, backend, device)
}

// ConvTranspose3dRecordFromItem decodes a ConvTranspose3d record onto backend and device.
func ConvTranspose3dRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (ConvTranspose3dRecord[B], error) {
	return nn.ConvTranspose3dRecordFromItem(item, backend, device)
}

// DeformConv2dRecordFromItem decodes a DeformConv2d record onto backend and device.
func DeformConv2dRecordFromItem[B tensor.Backend](item *record.Item, backend B, device tensor.Device) (DeformConv2dRecord[B], error) {
	return nn.DeformConv2dRecordFromItem(item, backend, device)
}

// Conv1dFromRecord rebuilds a Conv1d from a record alone.
func Conv1dFromRecord[B tensor.Backend](r Conv1dRecord[B]) (*Conv1d[B], error) {
	return nn.Conv1dFromRecord(r)
}

// Conv2dFromRecord rebuilds a Conv2d from a record alone.
func Conv2dFromRecord[B tensor.Backend](r Conv2dRecord[B]) (*Conv2d[B], error) {
	return nn.Conv2dFromRecord(r)
}

// Conv3dFromRecord rebuilds a Conv3d from a record alone.
func Conv3dFromRecord[B tensor.Backend](r Conv3dRecord[B]) (*Conv3d[B], error) {
	return nn.Conv3dFromRecord(r)
}

// ConvTranspose1dFromRecord rebuilds a ConvTranspose1d from a record alone.
func ConvTranspose1dFromRecord[B tensor.Backend](r ConvTranspose1dRecord[B]) (*ConvTranspose1d[B], error) {
	return nn.ConvTranspose1dFromRecord(r)
}

// ConvTranspose2dFromRecord rebuilds a ConvTranspose2d from a record alone.
func ConvTranspose2dFromRecord[B tensor.Backend](r ConvTranspose2dRecord[B]) (*ConvTranspose2d[B], error) {
	return nn.ConvTranspose2dFromRecord(r)
}

// ConvTranspose3dFromRecord rebuilds a ConvTranspose3d from a record alone.
func ConvTranspose3dFromRecord[B tensor.Backend](r ConvTranspose3dRecord[B]) (*ConvTranspose3d[B], error) {
	return nn.ConvTranspose3dFromRecord(r)
}

// DeformConv2dFromRecord rebuilds a DeformConv2d from a record alone.
func DeformConv2dFromRecord[B tensor.Backend](r DeformConv2dRecord[B]) (*DeformConv2d[B], error) {
	return nn.DeformConv2dFromRecord(r)
}

// Inference projections

// ValidConv1d returns c over the inner backend, without gradient tracking.
func ValidConv1d[I tensor.Backend](c *Conv1d[*autodiff.AutodiffBackend[I]]) *Conv1d[I] {
	return nn.ValidConv1d(c)
}

// ValidConv2d returns c over the inner backend, without gradient tracking.
func ValidConv2d[I tensor.Backend](c *Conv2d[*autodiff.AutodiffBackend[I]]) *Conv2d[I] {
	return nn.ValidConv2d(c)
}

// ValidConv3d returns c over the inner backend, without gradient tracking.
func ValidConv3d[I tensor.Backend](c *Conv3d[*autodiff.AutodiffBackend[I]]) *Conv3d[I] {
	return nn.ValidConv3d(c)
}

// ValidConvTranspose1d returns c over the inner backend, without gradient tracking.
func ValidConvTranspose1d[I tensor.Backend](c *ConvTranspose1d[*autodiff.AutodiffBackend[I]]) *ConvTranspose1d[I] {
	return nn.ValidConvTranspose1d(c)
}

// ValidConvTranspose2d returns c over the inner backend, without gradient tracking.
func ValidConvTranspose2d[I tensor.Backend](c *ConvTranspose2d[*autodiff.AutodiffBackend[I]]) *ConvTranspose2d[I] {
	return nn.ValidConvTranspose2d(c)
}

// ValidConvTranspose3d returns c over the inner backend, without gradient tracking.
func ValidConvTranspose3d[I tensor.Backend](c *ConvTranspose3d[*autodiff.AutodiffBackend[I]]) *ConvTranspose3d[I] {
	return nn.ValidConvTranspose3d(c)
}

// ValidDeformConv2d returns d over the inner backend, without gradient tracking.
func ValidDeformConv2d[I tensor.Backend](d *DeformConv2d[*autodiff.AutodiffBackend[I]]) *DeformConv2d[I] {
	return nn.ValidDeformConv2d(d)
}
