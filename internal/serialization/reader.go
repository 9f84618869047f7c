package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/born-ml/convkit/internal/record"
)

// ReaderOptions configures how .ckpt data is validated.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Faster but less safe
	ValidationLevel        ValidationLevel // Strict by default
}

// ReadFrom parses a .ckpt stream.
func ReadFrom(r io.Reader, opts ReaderOptions) (*Checkpoint, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return Parse(data, opts)
}

// Parse decodes a complete .ckpt file held in memory.
func Parse(data []byte, opts ReaderOptions) (*Checkpoint, error) {
	if len(data) < FixedHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrTruncated, len(data), FixedHeaderSize)
	}
	if string(data[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, v, FormatVersion)
	}

	headerSize := binary.LittleEndian.Uint64(data[16:24])
	dataSize := binary.LittleEndian.Uint64(data[24:32])
	var stored [ChecksumSize]byte
	copy(stored[:], data[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	headerEnd := int64(FixedHeaderSize) + int64(headerSize) //nolint:gosec // bounded by MaxHeaderSize
	if headerEnd > int64(len(data)) {
		return nil, fmt.Errorf("%w: header ends at %d, file has %d bytes", ErrTruncated, headerEnd, len(data))
	}

	var header Header
	if err := json.Unmarshal(data[FixedHeaderSize:headerEnd], &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if header.Item == nil {
		return nil, ErrMissingItem
	}

	dataOffset := alignedOffset(int64(headerSize))                                     //nolint:gosec // bounded by MaxHeaderSize
	if dataSize > uint64(len(data)) || dataOffset+int64(dataSize) > int64(len(data)) { //nolint:gosec // checked against len(data)
		return nil, fmt.Errorf("%w: data section of %d bytes at %d, file has %d bytes", ErrTruncated, dataSize, dataOffset, len(data))
	}
	section := data[dataOffset : dataOffset+int64(dataSize)] //nolint:gosec // checked above

	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(section), stored); err != nil {
			return nil, err
		}
	}

	if err := ValidateHeader(&header, int64(len(section)), opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	tensors := make(map[string]record.TensorItem, len(header.Tensors))
	for _, meta := range header.Tensors {
		if meta.Offset < 0 || meta.Size < 0 || meta.Offset+meta.Size > int64(len(section)) {
			return nil, &ValidationError{Type: "out_of_bounds", Tensor: meta.Name, Details: "payload outside data section"}
		}
		tensors[meta.Name] = record.TensorItem{
			DType: meta.DType,
			Shape: meta.Shape,
			Bytes: bytes.Clone(section[meta.Offset : meta.Offset+meta.Size]),
		}
	}

	item, err := record.InjectTensors(header.Item, tensors)
	if err != nil {
		return nil, fmt.Errorf("failed to restore tensors: %w", err)
	}

	return &Checkpoint{
		ModuleType: header.ModuleType,
		Precision:  header.Precision,
		Item:       item,
		Metadata:   header.Metadata,
	}, nil
}
