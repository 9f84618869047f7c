package serialization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/convkit/internal/record"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict performs all checks (default).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names and sizes but not offsets.
	ValidationNormal
	// ValidationNone skips validation. Use only with trusted input.
	ValidationNone
)

// ValidateTensorOffsets checks for overlapping regions and out-of-bounds access.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}

// ValidateTensorName rejects names that are not dotted field paths.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Type: "invalid_name", Details: "empty name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "empty path segment"}
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains a path separator or null byte"}
	}
	return nil
}

// ValidateTensorSize checks that a tensor's byte size matches its dtype and shape.
func ValidateTensorSize(t TensorMeta) error {
	elemSize, err := record.DTypeSize(t.DType)
	if err != nil {
		return &ValidationError{Type: "tensor_size", Tensor: t.Name, Details: err.Error()}
	}
	n := int64(1)
	for _, d := range t.Shape {
		if d <= 0 {
			return &ValidationError{Type: "tensor_size", Tensor: t.Name, Details: fmt.Sprintf("non-positive dimension in shape %v", t.Shape)}
		}
		n *= int64(d)
	}
	if want := n * int64(elemSize); t.Size != want {
		return &ValidationError{
			Type:    "tensor_size",
			Tensor:  t.Name,
			Details: fmt.Sprintf("%s%v needs %d bytes, header says %d", t.DType, t.Shape, want, t.Size),
		}
	}
	return nil
}

// ValidateHeader performs header validation at the given level.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}

	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}

	seen := make(map[string]bool, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if seen[t.Name] {
			return &ValidationError{Type: "invalid_name", Tensor: t.Name, Details: "duplicate tensor name"}
		}
		seen[t.Name] = true
		if err := ValidateTensorSize(t); err != nil {
			return err
		}
	}

	if level == ValidationStrict {
		if err := ValidateTensorOffsets(h.Tensors, dataSize); err != nil {
			return err
		}
	}

	return nil
}
