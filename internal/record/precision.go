// Package record holds the serializer-facing form of module state.
//
// An Item is an ordered, self-describing tree: field names map to tensors,
// child items, integers, integer lists, strings, booleans or null.
// Tensor payloads are encoded at a Precision chosen when the item is built
// and are tagged with their dtype, so decoding never needs the precision again.
package record

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Precision selects how float tensors are stored in an item.
type Precision int

const (
	// Full stores float32 values.
	Full Precision = iota
	// Half stores IEEE 754 binary16 values.
	Half
	// BFloat stores bfloat16 values.
	BFloat
	// Double stores float64 values.
	Double
)

// Storage dtype tags written into TensorItem.DType.
const (
	DTypeF32  = "f32"
	DTypeF16  = "f16"
	DTypeBF16 = "bf16"
	DTypeF64  = "f64"
)

// String returns the policy name accepted by ParsePrecision.
func (p Precision) String() string {
	switch p {
	case Full:
		return "full"
	case Half:
		return "half"
	case BFloat:
		return "bfloat"
	case Double:
		return "double"
	default:
		return fmt.Sprintf("precision(%d)", int(p))
	}
}

// DType returns the storage dtype tag for p.
func (p Precision) DType() string {
	switch p {
	case Half:
		return DTypeF16
	case BFloat:
		return DTypeBF16
	case Double:
		return DTypeF64
	default:
		return DTypeF32
	}
}

// ParsePrecision parses a policy name. Dtype tags ("f16", ...) are accepted too.
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "f32", "float32", "":
		return Full, nil
	case "half", "f16", "float16":
		return Half, nil
	case "bfloat", "bf16", "bfloat16":
		return BFloat, nil
	case "double", "f64", "float64":
		return Double, nil
	default:
		return Full, fmt.Errorf("unknown precision %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Precision) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Precision) UnmarshalText(text []byte) error {
	parsed, err := ParsePrecision(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// encode packs values little-endian at precision p.
func (p Precision) encode(values []float32) []byte {
	switch p {
	case Half:
		out := make([]byte, 2*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint16(out[2*i:], float16.Fromfloat32(v).Bits())
		}
		return out
	case BFloat:
		return bfloat16.EncodeFloat32(values)
	case Double:
		out := make([]byte, 8*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(float64(v)))
		}
		return out
	default:
		out := make([]byte, 4*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out
	}
}

// DTypeSize returns the element size of a storage dtype tag.
func DTypeSize(dtype string) (int, error) {
	switch dtype {
	case DTypeF16, DTypeBF16:
		return 2, nil
	case DTypeF32:
		return 4, nil
	case DTypeF64:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: unknown dtype %q", ErrInvalidTensor, dtype)
	}
}

// decode unpacks little-endian values of the given dtype into float32.
func decode(dtype string, data []byte) []float32 {
	switch dtype {
	case DTypeF16:
		out := make([]float32, len(data)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:])).Float32()
		}
		return out
	case DTypeBF16:
		return bfloat16.DecodeFloat32(data)
	case DTypeF64:
		out := make([]float32, len(data)/8)
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:])))
		}
		return out
	default:
		out := make([]float32, len(data)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		}
		return out
	}
}
