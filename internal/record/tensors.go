package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TensorRefPrefix marks a string value standing in for an extracted tensor.
const TensorRefPrefix = "$tensor:"

// NamedTensor is a tensor payload addressed by its dotted field path.
type NamedTensor struct {
	Name   string
	Tensor TensorItem
}

// Entry is one leaf of a flattened item.
type Entry struct {
	Path  string
	Value any
}

// Normalize returns a deep copy of it in which every lazily decoded JSON value
// is replaced by its typed form. Objects carrying "dtype" and "bytes" become
// TensorItem, other objects *Item, numbers int, arrays []int.
func Normalize(it *Item) (*Item, error) {
	out := NewItem()
	for name, v := range it.All() {
		typed, err := normalizeValue(name, v)
		if err != nil {
			return nil, err
		}
		out.Set(name, typed)
	}
	return out, nil
}

func normalizeValue(name string, v any) (any, error) {
	switch x := v.(type) {
	case nil, TensorItem, int, string, bool:
		return x, nil
	case *TensorItem:
		return *x, nil
	case []int:
		return append([]int(nil), x...), nil
	case *Item:
		if x == nil {
			return nil, nil
		}
		child, err := Normalize(x)
		if err != nil {
			return nil, At(name, err)
		}
		return child, nil
	case json.RawMessage:
		return normalizeRaw(name, x)
	default:
		return nil, mismatch(name, "record value", v)
	}
}

func normalizeRaw(name string, raw json.RawMessage) (any, error) {
	trimmed := json.RawMessage(bytes.TrimSpace(raw))
	if len(trimmed) == 0 {
		return nil, mismatch(name, "record value", raw)
	}
	switch trimmed[0] {
	case 'n':
		return nil, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, mismatch(name, "bool", raw)
		}
		return b, nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, mismatch(name, "string", raw)
		}
		return s, nil
	case '[':
		var ns []int
		if err := json.Unmarshal(trimmed, &ns); err != nil {
			return nil, mismatch(name, "[]int", raw)
		}
		return ns, nil
	case '{':
		child, err := asChild(name, trimmed)
		if err != nil {
			return nil, err
		}
		if child.Has("dtype") && child.Has("bytes") {
			return asTensor(name, trimmed)
		}
		normalized, err := Normalize(child)
		if err != nil {
			return nil, At(name, err)
		}
		return normalized, nil
	default:
		var n int
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, mismatch(name, "int", raw)
		}
		return n, nil
	}
}

// Flatten lists every leaf of it in order, addressed by dotted path.
// Child items are descended into; a null child is reported as a nil leaf.
func Flatten(it *Item) ([]Entry, error) {
	normalized, err := Normalize(it)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	flatten("", normalized, func(path string, v any) {
		entries = append(entries, Entry{Path: path, Value: v})
	})
	return entries, nil
}

func flatten(prefix string, it *Item, fn func(path string, v any)) {
	for name, v := range it.All() {
		path := join(prefix, name)
		if child, ok := v.(*Item); ok {
			flatten(path, child, fn)
			continue
		}
		fn(path, v)
	}
}

// ExtractTensors returns a copy of it with every tensor replaced by a
// TensorRefPrefix reference, plus the tensors in traversal order.
func ExtractTensors(it *Item) (*Item, []NamedTensor, error) {
	normalized, err := Normalize(it)
	if err != nil {
		return nil, nil, err
	}
	var tensors []NamedTensor
	stripped := mapLeaves("", normalized, func(path string, v any) any {
		t, ok := v.(TensorItem)
		if !ok {
			return v
		}
		tensors = append(tensors, NamedTensor{Name: path, Tensor: t})
		return TensorRefPrefix + path
	})
	return stripped, tensors, nil
}

// InjectTensors is the inverse of ExtractTensors: every reference string is
// replaced by the named tensor. Unknown references are an error.
func InjectTensors(it *Item, tensors map[string]TensorItem) (*Item, error) {
	normalized, err := Normalize(it)
	if err != nil {
		return nil, err
	}
	var injectErr error
	out := mapLeaves("", normalized, func(path string, v any) any {
		s, ok := v.(string)
		if !ok || !strings.HasPrefix(s, TensorRefPrefix) {
			return v
		}
		name := strings.TrimPrefix(s, TensorRefPrefix)
		t, found := tensors[name]
		if !found && injectErr == nil {
			injectErr = &DecodeError{Field: path, Err: fmt.Errorf("%w: unresolved tensor reference %q", ErrMissingField, name)}
		}
		return t
	})
	if injectErr != nil {
		return nil, injectErr
	}
	return out, nil
}

// ConvertTensors returns a copy of it with every tensor re-encoded at precision p.
func ConvertTensors(it *Item, p Precision) (*Item, error) {
	normalized, err := Normalize(it)
	if err != nil {
		return nil, err
	}
	var convErr error
	out := mapLeaves("", normalized, func(path string, v any) any {
		t, ok := v.(TensorItem)
		if !ok {
			return v
		}
		converted, err := t.Convert(p)
		if err != nil && convErr == nil {
			convErr = &DecodeError{Field: path, Err: err}
		}
		return converted
	})
	if convErr != nil {
		return nil, convErr
	}
	return out, nil
}

// mapLeaves rebuilds a normalized item, passing every non-item value through f.
func mapLeaves(prefix string, it *Item, f func(path string, v any) any) *Item {
	out := NewItem()
	for name, v := range it.All() {
		path := join(prefix, name)
		if child, ok := v.(*Item); ok {
			out.Set(name, mapLeaves(path, child, f))
			continue
		}
		out.Set(name, f(path, v))
	}
	return out
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
