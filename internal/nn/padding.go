package nn

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/convkit/internal/record"
)

// PaddingKind selects how a convolution pads its input.
type PaddingKind int

// Padding kinds.
const (
	// PaddingValid applies no padding.
	PaddingValid PaddingKind = iota
	// PaddingSame pads so that the output size is ceil(input/stride).
	PaddingSame
	// PaddingExplicit uses caller-provided per-axis amounts.
	PaddingExplicit
)

// String returns the lower-case kind name used in config files and records.
func (k PaddingKind) String() string {
	switch k {
	case PaddingValid:
		return "valid"
	case PaddingSame:
		return "same"
	case PaddingExplicit:
		return "explicit"
	default:
		return fmt.Sprintf("PaddingKind(%d)", int(k))
	}
}

// ParsePaddingKind parses a kind name, case-insensitively.
func ParsePaddingKind(s string) (PaddingKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "valid", "":
		return PaddingValid, nil
	case "same":
		return PaddingSame, nil
	case "explicit":
		return PaddingExplicit, nil
	default:
		return 0, fmt.Errorf("unknown padding kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k PaddingKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PaddingKind) UnmarshalText(text []byte) error {
	parsed, err := ParsePaddingKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// PaddingConfig is the padding policy of a convolution.
//
// The zero value is Valid. Explicit amounts hold one symmetric value per
// spatial axis; their count is checked against the layer rank at init.
//
// In JSON and YAML a policy may be written as a kind name ("same"), a list of
// amounts ([1, 2], meaning Explicit) or the full {kind, amounts} object.
type PaddingConfig struct {
	Kind    PaddingKind `json:"kind" yaml:"kind"`
	Amounts []int       `json:"amounts,omitempty" yaml:"amounts,omitempty"`
}

// Valid returns the no-padding policy.
func Valid() PaddingConfig {
	return PaddingConfig{Kind: PaddingValid}
}

// Same returns the size-preserving policy.
func Same() PaddingConfig {
	return PaddingConfig{Kind: PaddingSame}
}

// Explicit returns a policy padding each spatial axis by the given amount on both sides.
func Explicit(amounts ...int) PaddingConfig {
	return PaddingConfig{Kind: PaddingExplicit, Amounts: append([]int(nil), amounts...)}
}

// String formats the policy as Valid, Same or Explicit([..]).
func (p PaddingConfig) String() string {
	switch p.Kind {
	case PaddingValid:
		return "Valid"
	case PaddingSame:
		return "Same"
	case PaddingExplicit:
		return fmt.Sprintf("Explicit(%v)", p.Amounts)
	default:
		return p.Kind.String()
	}
}

// Validate checks the policy against a layer with rank spatial axes.
func (p PaddingConfig) Validate(rank int) error {
	switch p.Kind {
	case PaddingValid, PaddingSame:
		if len(p.Amounts) != 0 {
			return fmt.Errorf("%w: %s padding takes no amounts, got %v", ErrInvalidConfig, p.Kind, p.Amounts)
		}
	case PaddingExplicit:
		if len(p.Amounts) != rank {
			return fmt.Errorf("%w: explicit padding needs %d amounts, got %d", ErrInvalidConfig, rank, len(p.Amounts))
		}
		for i, a := range p.Amounts {
			if a < 0 {
				return fmt.Errorf("%w: padding[%d] must be >= 0, got %d", ErrInvalidConfig, i, a)
			}
		}
	default:
		return fmt.Errorf("%w: unknown padding kind %d", ErrInvalidConfig, int(p.Kind))
	}
	return nil
}

// CheckSupport reports ErrSamePaddingEvenKernel when Same padding meets an even kernel axis.
func (p PaddingConfig) CheckSupport(kernel []int) error {
	if p.Kind != PaddingSame {
		return nil
	}
	for i, k := range kernel {
		if k%2 == 0 {
			return fmt.Errorf("%w: kernel_size[%d] = %d", ErrSamePaddingEvenKernel, i, k)
		}
	}
	return nil
}

// Resolve returns the symmetric padding of each spatial axis for the given
// input sizes.
//
// Same padding targets out = ceil(input/stride). With effective kernel
// dilation*(kernel-1)+1 the total padding is max(0, (out-1)*stride + effk - input),
// and each side receives ceil(total/2).
func (p PaddingConfig) Resolve(input, kernel, stride, dilation []int) ([]int, error) {
	rank := len(kernel)
	if len(input) != rank || len(stride) != rank || len(dilation) != rank {
		return nil, fmt.Errorf("%w: padding resolve needs %d axes, got input=%d stride=%d dilation=%d",
			ErrInvalidConfig, rank, len(input), len(stride), len(dilation))
	}
	if err := p.Validate(rank); err != nil {
		return nil, err
	}
	out := make([]int, rank)
	switch p.Kind {
	case PaddingExplicit:
		copy(out, p.Amounts)
	case PaddingSame:
		if err := p.CheckSupport(kernel); err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = samePadding(input[i], kernel[i], stride[i], dilation[i])
		}
	}
	return out, nil
}

func samePadding(size, kernel, stride, dilation int) int {
	outSize := (size + stride - 1) / stride
	effKernel := dilation*(kernel-1) + 1
	total := max(0, (outSize-1)*stride+effKernel-size)
	return (total + 1) / 2
}

// IntoItem encodes the policy as {"kind", "amounts"}.
func (p PaddingConfig) IntoItem() *record.Item {
	amounts := p.Amounts
	if amounts == nil {
		amounts = []int{}
	}
	return record.NewItem().
		Set("kind", p.Kind.String()).
		Set("amounts", amounts)
}

// PaddingFromItem decodes a policy written by IntoItem.
func PaddingFromItem(item *record.Item) (PaddingConfig, error) {
	name, err := item.Text("kind")
	if err != nil {
		return PaddingConfig{}, err
	}
	kind, err := ParsePaddingKind(name)
	if err != nil {
		return PaddingConfig{}, &record.DecodeError{Field: "kind", Err: fmt.Errorf("%w: %w", record.ErrTypeMismatch, err)}
	}
	p := PaddingConfig{Kind: kind}
	if kind == PaddingExplicit {
		if p.Amounts, err = item.Ints("amounts"); err != nil {
			return PaddingConfig{}, err
		}
	}
	return p, nil
}

// paddingObject avoids recursing into PaddingConfig's own unmarshalers.
type paddingObject struct {
	Kind    PaddingKind `json:"kind" yaml:"kind"`
	Amounts []int       `json:"amounts,omitempty" yaml:"amounts,omitempty"`
}

// UnmarshalJSON accepts "same", [1, 2] or {"kind": ..., "amounts": ...}.
func (p *PaddingConfig) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		kind, err := ParsePaddingKind(name)
		if err != nil {
			return err
		}
		*p = PaddingConfig{Kind: kind}
		return nil
	}
	var amounts []int
	if err := json.Unmarshal(data, &amounts); err == nil {
		*p = Explicit(amounts...)
		return nil
	}
	var obj paddingObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("padding: %w", err)
	}
	*p = PaddingConfig(obj)
	return nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (p *PaddingConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		kind, err := ParsePaddingKind(node.Value)
		if err != nil {
			return err
		}
		*p = PaddingConfig{Kind: kind}
	case yaml.SequenceNode:
		var amounts []int
		if err := node.Decode(&amounts); err != nil {
			return fmt.Errorf("padding: %w", err)
		}
		*p = Explicit(amounts...)
	default:
		var obj paddingObject
		if err := node.Decode(&obj); err != nil {
			return fmt.Errorf("padding: %w", err)
		}
		*p = PaddingConfig(obj)
	}
	return nil
}
