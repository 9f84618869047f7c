package serialization

import (
	"time"

	"github.com/born-ml/convkit/internal/record"
)

// Format constants.
const (
	MagicBytes      = "CKPT"
	FormatVersion   = 1
	HeaderAlignment = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSize = 64   // 0x40 bytes
	ChecksumSize    = 32   // SHA-256
	ChecksumOffset  = 0x20 // Checksum position in the fixed header
)

// Flags for the .ckpt format.
const (
	FlagHasMetadata uint32 = 1 << 0 // bit 0: custom metadata included
)

// File extensions understood by RecorderFor.
const (
	ExtJSON       = ".json"
	ExtCheckpoint = ".ckpt"
)

// Header is the JSON header of a .ckpt file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	ConvkitVersion string            `json:"convkit_version"`
	ModuleType     string            `json:"module_type"`
	Precision      record.Precision  `json:"precision"`
	CreatedAt      time.Time         `json:"created_at"`
	Item           *record.Item      `json:"item"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// TensorMeta locates one tensor payload in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // Dotted field path, e.g. "weight.param"
	DType  string `json:"dtype"`  // Storage dtype tag, e.g. "f16"
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// Checkpoint is what recorders persist: a module record plus its envelope.
type Checkpoint struct {
	ModuleType string
	Precision  record.Precision
	Item       *record.Item
	Metadata   map[string]string
}

// alignedOffset returns the data section offset for a header of the given size.
func alignedOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-(pos%HeaderAlignment))%HeaderAlignment
}
