package serialization

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/born-ml/convkit/internal/record"
	"github.com/born-ml/convkit/internal/version"
)

// WriteTo writes ckpt in .ckpt format.
func WriteTo(w io.Writer, ckpt *Checkpoint) error {
	if ckpt == nil || ckpt.Item == nil {
		return ErrMissingItem
	}

	stripped, tensors, err := record.ExtractTensors(ckpt.Item)
	if err != nil {
		return fmt.Errorf("failed to extract tensors: %w", err)
	}

	header := Header{
		FormatVersion:  FormatVersion,
		ConvkitVersion: version.Version,
		ModuleType:     ckpt.ModuleType,
		Precision:      ckpt.Precision,
		CreatedAt:      time.Now().UTC(),
		Item:           stripped,
		Tensors:        make([]TensorMeta, 0, len(tensors)),
		Metadata:       ckpt.Metadata,
	}

	// Tensors are laid out back to back in traversal order; the checksum
	// covers exactly those bytes.
	var offset int64
	h := sha256.New()
	for _, t := range tensors {
		size := int64(len(t.Tensor.Bytes))
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   t.Name,
			DType:  t.Tensor.DType,
			Shape:  t.Tensor.Shape,
			Offset: offset,
			Size:   size,
		})
		h.Write(t.Tensor.Bytes)
		offset += size
	}
	var checksum [ChecksumSize]byte
	copy(checksum[:], h.Sum(nil))

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersion))
	var flags uint32
	if len(ckpt.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	// 0x0C-0x0F reserved
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(offset)) //nolint:gosec // offset is a sum of slice lengths
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	pos := int64(FixedHeaderSize) + int64(len(headerJSON))
	if padding := alignedOffset(int64(len(headerJSON))) - pos; padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	for _, t := range tensors {
		if _, err := w.Write(t.Tensor.Bytes); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", t.Name, err)
		}
	}

	return nil
}
