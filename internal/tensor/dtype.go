// Package tensor provides the tensor types and the backend contract used by convkit modules.
package tensor

import "fmt"

// DType is a constraint for element types of live tensors.
// Module parameters and kernels are float32; float64 tensors are used for exchange
// with double-precision records.
type DType interface {
	~float32 | ~float64
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, error) {
	switch s {
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	default:
		return 0, fmt.Errorf("unknown data type %q", s)
	}
}

// inferDataType infers DataType from a generic type T.
func inferDataType[T DType](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		panic("unsupported type")
	}
}
