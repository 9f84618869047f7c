package nn

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/convkit/internal/module"
	"github.com/born-ml/convkit/internal/tensor"
)

// InitKind selects the distribution an Initializer draws from.
type InitKind int

// Initializer kinds.
const (
	InitKaimingUniform InitKind = iota
	InitKaimingNormal
	InitXavierUniform
	InitXavierNormal
	InitConstant
	InitZeros
	InitOnes
	InitUniform
	InitNormal
)

var initKindNames = map[InitKind]string{
	InitKaimingUniform: "kaiming_uniform",
	InitKaimingNormal:  "kaiming_normal",
	InitXavierUniform:  "xavier_uniform",
	InitXavierNormal:   "xavier_normal",
	InitConstant:       "constant",
	InitZeros:          "zeros",
	InitOnes:           "ones",
	InitUniform:        "uniform",
	InitNormal:         "normal",
}

// String returns the snake_case kind name used in config files.
func (k InitKind) String() string {
	if name, ok := initKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("InitKind(%d)", int(k))
}

// ParseInitKind parses a kind name such as "xavier_normal".
func ParseInitKind(s string) (InitKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range initKindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown initializer %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k InitKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *InitKind) UnmarshalText(text []byte) error {
	parsed, err := ParseInitKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Initializer describes how a parameter tensor is filled at construction.
//
// Only the fields relevant to Kind are read:
//
//	constant                     Value
//	uniform                      Min, Max
//	normal                       Mean, Std
//	kaiming_uniform/normal       Gain, FanOutOnly (needs fan_in, or fan_out when FanOutOnly)
//	xavier_uniform/normal        Gain (needs fan_in and fan_out)
//
// Kaiming draws use std = gain/sqrt(fan); Xavier uses std = gain*sqrt(2/(fan_in+fan_out)).
// Uniform variants sample U(-sqrt(3)*std, sqrt(3)*std).
type Initializer struct {
	Kind       InitKind `json:"kind" yaml:"kind"`
	Value      float64  `json:"value,omitempty" yaml:"value,omitempty"`
	Min        float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max        float64  `json:"max,omitempty" yaml:"max,omitempty"`
	Mean       float64  `json:"mean,omitempty" yaml:"mean,omitempty"`
	Std        float64  `json:"std,omitempty" yaml:"std,omitempty"`
	Gain       float64  `json:"gain,omitempty" yaml:"gain,omitempty"`
	FanOutOnly bool     `json:"fan_out_only,omitempty" yaml:"fan_out_only,omitempty"`
}

// DefaultInitializer is the initializer of every convolution config:
// Kaiming uniform with gain 1/sqrt(3), i.e. U(-1/sqrt(fan_in), 1/sqrt(fan_in)).
func DefaultInitializer() Initializer {
	return KaimingUniform(1/math.Sqrt(3), false)
}

// Constant fills with value.
func Constant(value float64) Initializer {
	return Initializer{Kind: InitConstant, Value: value}
}

// Zeros fills with 0.
func Zeros() Initializer {
	return Initializer{Kind: InitZeros}
}

// Ones fills with 1.
func Ones() Initializer {
	return Initializer{Kind: InitOnes}
}

// Uniform samples U(minValue, maxValue).
func Uniform(minValue, maxValue float64) Initializer {
	return Initializer{Kind: InitUniform, Min: minValue, Max: maxValue}
}

// Normal samples N(mean, std²).
func Normal(mean, std float64) Initializer {
	return Initializer{Kind: InitNormal, Mean: mean, Std: std}
}

// KaimingUniform samples U(-a, a) with a = sqrt(3)*gain/sqrt(fan).
func KaimingUniform(gain float64, fanOutOnly bool) Initializer {
	return Initializer{Kind: InitKaimingUniform, Gain: gain, FanOutOnly: fanOutOnly}
}

// KaimingNormal samples N(0, (gain/sqrt(fan))²).
func KaimingNormal(gain float64, fanOutOnly bool) Initializer {
	return Initializer{Kind: InitKaimingNormal, Gain: gain, FanOutOnly: fanOutOnly}
}

// XavierUniform samples U(-a, a) with a = sqrt(3)*gain*sqrt(2/(fan_in+fan_out)).
func XavierUniform(gain float64) Initializer {
	return Initializer{Kind: InitXavierUniform, Gain: gain}
}

// XavierNormal samples N(0, (gain*sqrt(2/(fan_in+fan_out)))²).
func XavierNormal(gain float64) Initializer {
	return Initializer{Kind: InitXavierNormal, Gain: gain}
}

// String formats the initializer with its relevant fields.
func (i Initializer) String() string {
	switch i.Kind {
	case InitConstant:
		return fmt.Sprintf("constant(%g)", i.Value)
	case InitUniform:
		return fmt.Sprintf("uniform(%g, %g)", i.Min, i.Max)
	case InitNormal:
		return fmt.Sprintf("normal(%g, %g)", i.Mean, i.Std)
	case InitKaimingUniform, InitKaimingNormal:
		return fmt.Sprintf("%s(gain=%g, fan_out_only=%t)", i.Kind, i.Gain, i.FanOutOnly)
	case InitXavierUniform, InitXavierNormal:
		return fmt.Sprintf("%s(gain=%g)", i.Kind, i.Gain)
	default:
		return i.Kind.String()
	}
}

// Sample draws shape.NumElements() values. fanIn and fanOut may be nil for
// kinds that do not need them.
func (i Initializer) Sample(shape tensor.Shape, fanIn, fanOut *int) ([]float32, error) {
	n := shape.NumElements()
	switch i.Kind {
	case InitConstant:
		return fill(n, i.Value), nil
	case InitZeros:
		return fill(n, 0), nil
	case InitOnes:
		return fill(n, 1), nil
	case InitUniform:
		return draw(n, distuv.Uniform{Min: i.Min, Max: i.Max}), nil
	case InitNormal:
		return draw(n, distuv.Normal{Mu: i.Mean, Sigma: i.Std}), nil
	case InitKaimingUniform, InitKaimingNormal:
		std, err := i.kaimingStd(fanIn, fanOut)
		if err != nil {
			return nil, err
		}
		return i.drawStd(n, std), nil
	case InitXavierUniform, InitXavierNormal:
		if fanIn == nil || fanOut == nil {
			return nil, fmt.Errorf("%w: %s needs fan_in and fan_out", ErrMissingFan, i.Kind)
		}
		std := i.Gain * math.Sqrt(2/float64(*fanIn+*fanOut))
		return i.drawStd(n, std), nil
	default:
		return nil, fmt.Errorf("%w: unknown initializer kind %d", ErrInvalidConfig, int(i.Kind))
	}
}

func (i Initializer) kaimingStd(fanIn, fanOut *int) (float64, error) {
	fan, name := fanIn, "fan_in"
	if i.FanOutOnly {
		fan, name = fanOut, "fan_out"
	}
	if fan == nil {
		return 0, fmt.Errorf("%w: %s needs %s", ErrMissingFan, i.Kind, name)
	}
	return i.Gain / math.Sqrt(float64(*fan)), nil
}

func (i Initializer) drawStd(n int, std float64) []float32 {
	if i.Kind == InitKaimingUniform || i.Kind == InitXavierUniform {
		a := math.Sqrt(3) * std
		return draw(n, distuv.Uniform{Min: -a, Max: a})
	}
	return draw(n, distuv.Normal{Mu: 0, Sigma: std})
}

func fill(n int, value float64) []float32 {
	values := make([]float32, n)
	for j := range values {
		values[j] = float32(value)
	}
	return values
}

func draw(n int, dist distuv.Rander) []float32 {
	values := make([]float32, n)
	for j := range values {
		values[j] = float32(dist.Rand())
	}
	return values
}

// InitWith creates a parameter of the given shape on device, filled by initializer.
func InitWith[B tensor.Backend](
	initializer Initializer, shape tensor.Shape, fanIn, fanOut *int, backend B, device tensor.Device,
) (*module.Param[B], error) {
	values, err := initializer.Sample(shape, fanIn, fanOut)
	if err != nil {
		return nil, err
	}
	t, err := tensor.FromSliceOn(values, shape, backend, device)
	if err != nil {
		return nil, err
	}
	return module.NewParam(t), nil
}

// initializerObject avoids recursing into Initializer's own unmarshalers.
type initializerObject Initializer

// UnmarshalJSON accepts a kind name ("xavier_uniform") or a full object.
// Kaiming and Xavier kinds without an explicit gain get gain 1.
func (i *Initializer) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		kind, err := ParseInitKind(name)
		if err != nil {
			return err
		}
		*i = withDefaultGain(Initializer{Kind: kind})
		return nil
	}
	var obj initializerObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("initializer: %w", err)
	}
	*i = withDefaultGain(Initializer(obj))
	return nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (i *Initializer) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		kind, err := ParseInitKind(node.Value)
		if err != nil {
			return err
		}
		*i = withDefaultGain(Initializer{Kind: kind})
		return nil
	}
	var obj initializerObject
	if err := node.Decode(&obj); err != nil {
		return fmt.Errorf("initializer: %w", err)
	}
	*i = withDefaultGain(Initializer(obj))
	return nil
}

func withDefaultGain(i Initializer) Initializer {
	switch i.Kind {
	case InitKaimingUniform, InitKaimingNormal, InitXavierUniform, InitXavierNormal:
		if i.Gain == 0 {
			i.Gain = 1
		}
	}
	return i
}
