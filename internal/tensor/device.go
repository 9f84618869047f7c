package tensor

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceKind identifies a family of compute devices.
type DeviceKind int

// Supported device kinds.
const (
	CPU DeviceKind = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a lower-case device kind name.
func (k DeviceKind) String() string {
	switch k {
	case CPU:
		return "cpu"
	case CUDA:
		return "cuda"
	case Vulkan:
		return "vulkan"
	case Metal:
		return "metal"
	case WebGPU:
		return "webgpu"
	default:
		return "unknown"
	}
}

// Device is a concrete compute device: a kind plus an ordinal.
// Devices are comparable and can be used as map keys.
type Device struct {
	Kind  DeviceKind
	Index int
}

// DefaultDevice is the first CPU device.
var DefaultDevice = Device{Kind: CPU}

// NewDevice returns the device of the given kind and ordinal.
func NewDevice(kind DeviceKind, index int) Device {
	return Device{Kind: kind, Index: index}
}

// String formats the device as "kind:index", e.g. "cpu:0".
func (d Device) String() string {
	return d.Kind.String() + ":" + strconv.Itoa(d.Index)
}

// ParseDevice parses "kind" or "kind:index".
func ParseDevice(s string) (Device, error) {
	name, idx, hasIdx := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	var d Device
	switch name {
	case "cpu":
		d.Kind = CPU
	case "cuda":
		d.Kind = CUDA
	case "vulkan":
		d.Kind = Vulkan
	case "metal":
		d.Kind = Metal
	case "webgpu":
		d.Kind = WebGPU
	default:
		return Device{}, fmt.Errorf("unknown device %q", s)
	}
	if hasIdx {
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 {
			return Device{}, fmt.Errorf("invalid device index in %q", s)
		}
		d.Index = n
	}
	return d, nil
}
