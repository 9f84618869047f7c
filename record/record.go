// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package record provides the checkpoint form of convkit layers.
//
// A layer record (nn.Conv2dRecord, ...) encodes to an Item: an ordered tree
// of named fields holding tensors, child items, integers, integer lists,
// strings, booleans or null. Tensors are stored at a Precision chosen at
// encode time and carry their dtype, so decoding is self-describing.
//
// Recorders persist an Item inside a Checkpoint envelope:
//
//	ckpt := &record.Checkpoint{
//	    ModuleType: "conv2d",
//	    Precision:  record.Half,
//	    Item:       conv.IntoRecord().IntoItem(record.Half),
//	}
//	if err := record.RecorderFor("conv.ckpt").Record("conv.ckpt", ckpt); err != nil {
//	    log.Fatal(err)
//	}
//
// Files ending in .json get an ordered JSON document; anything else gets the
// binary .ckpt format (fixed header, JSON item tree, 64-byte aligned tensor
// data, SHA-256 of the data section).
package record

import (
	"github.com/born-ml/convkit/internal/record"
	"github.com/born-ml/convkit/internal/serialization"
)

// Items

// Item is an ordered, self-describing record tree.
type Item = record.Item

// NewItem returns an empty item.
func NewItem() *Item { return record.NewItem() }

// TensorItem is a precision-tagged tensor payload.
type TensorItem = record.TensorItem

// NewTensorItem encodes values of the given shape at precision p.
func NewTensorItem(shape []int, values []float32, p Precision) TensorItem {
	return record.NewTensorItem(shape, values, p)
}

// Entry is one leaf of a flattened item.
type Entry = record.Entry

// Flatten lists the leaves of it as dotted paths, in field order.
func Flatten(it *Item) ([]Entry, error) { return record.Flatten(it) }

// ConvertTensors re-encodes every tensor of it at precision p.
func ConvertTensors(it *Item, p Precision) (*Item, error) { return record.ConvertTensors(it, p) }

// Precision selects how float tensors are stored.
type Precision = record.Precision

// Precisions.
const (
	Full   Precision = record.Full   // float32
	Half   Precision = record.Half   // IEEE 754 binary16
	BFloat Precision = record.BFloat // bfloat16
	Double Precision = record.Double // float64
)

// ParsePrecision parses "full", "half", "bfloat" or "double".
func ParsePrecision(s string) (Precision, error) { return record.ParsePrecision(s) }

// DecodeError reports a structural problem with one field of an item.
type DecodeError = record.DecodeError

// Decode errors.
var (
	ErrMissingField  = record.ErrMissingField
	ErrTypeMismatch  = record.ErrTypeMismatch
	ErrInvalidTensor = record.ErrInvalidTensor
)

// Checkpoints

// Checkpoint is what recorders persist: a module record plus its envelope.
type Checkpoint = serialization.Checkpoint

// Recorder persists checkpoints.
type Recorder = serialization.Recorder

// JSONRecorder writes checkpoints as one ordered JSON document.
type JSONRecorder = serialization.JSONRecorder

// FileRecorder writes checkpoints in the binary .ckpt format.
type FileRecorder = serialization.FileRecorder

// ReaderOptions configures how .ckpt files are validated on load.
type ReaderOptions = serialization.ReaderOptions

// ValidationLevel controls how strictly .ckpt files are checked on load.
type ValidationLevel = serialization.ValidationLevel

// Validation levels.
const (
	ValidationStrict = serialization.ValidationStrict
	ValidationNormal = serialization.ValidationNormal
	ValidationNone   = serialization.ValidationNone
)

// File extensions understood by RecorderFor.
const (
	ExtJSON       = serialization.ExtJSON
	ExtCheckpoint = serialization.ExtCheckpoint
)

// RecorderFor picks a recorder by file extension.
func RecorderFor(path string) Recorder { return serialization.RecorderFor(path) }

// Checkpoint errors.
var (
	ErrChecksumMismatch   = serialization.ErrChecksumMismatch
	ErrInvalidMagic       = serialization.ErrInvalidMagic
	ErrUnsupportedVersion = serialization.ErrUnsupportedVersion
	ErrTruncated          = serialization.ErrTruncated
	ErrMissingItem        = serialization.ErrMissingItem
)
