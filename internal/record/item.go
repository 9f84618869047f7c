package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Item is an ordered record tree.
//
// Values set in memory are TensorItem, *Item, int, []int, string, bool or nil.
// Items decoded from JSON hold json.RawMessage values until a typed getter
// asks for them, so the same getters serve both sources. A null value fails
// the scalar getters with ErrTypeMismatch; only OptionalTensor and
// OptionalChild read null as absent.
type Item struct {
	fields *orderedmap.OrderedMap[string, any]
}

// NewItem returns an empty item.
func NewItem() *Item {
	return &Item{fields: orderedmap.New[string, any]()}
}

// Set stores a field, keeping its original position if it already exists.
// It returns the item for chaining.
func (it *Item) Set(name string, value any) *Item {
	if it.fields == nil {
		it.fields = orderedmap.New[string, any]()
	}
	it.fields.Set(name, value)
	return it
}

// Get returns the raw value of a field.
func (it *Item) Get(name string) (any, bool) {
	if it == nil || it.fields == nil {
		return nil, false
	}
	return it.fields.Get(name)
}

// Has reports whether a field is present.
func (it *Item) Has(name string) bool {
	_, ok := it.Get(name)
	return ok
}

// Len returns the number of fields.
func (it *Item) Len() int {
	if it == nil || it.fields == nil {
		return 0
	}
	return it.fields.Len()
}

// Keys returns field names in order.
func (it *Item) Keys() []string {
	keys := make([]string, 0, it.Len())
	for k := range it.All() {
		keys = append(keys, k)
	}
	return keys
}

// All iterates over fields in order.
func (it *Item) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if it == nil || it.fields == nil {
			return
		}
		for pair := it.fields.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Tensor returns a required tensor field.
func (it *Item) Tensor(name string) (TensorItem, error) {
	v, ok := it.Get(name)
	if !ok || isNull(v) {
		return TensorItem{}, missing(name)
	}
	return asTensor(name, v)
}

// OptionalTensor returns a tensor field, or nil when it is absent or null.
func (it *Item) OptionalTensor(name string) (*TensorItem, error) {
	v, ok := it.Get(name)
	if !ok || isNull(v) {
		return nil, nil
	}
	t, err := asTensor(name, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Child returns a required nested item.
func (it *Item) Child(name string) (*Item, error) {
	v, ok := it.Get(name)
	if !ok || isNull(v) {
		return nil, missing(name)
	}
	return asChild(name, v)
}

// OptionalChild returns a nested item, or nil when it is absent or null.
func (it *Item) OptionalChild(name string) (*Item, error) {
	v, ok := it.Get(name)
	if !ok || isNull(v) {
		return nil, nil
	}
	return asChild(name, v)
}

// Int returns a required integer field.
func (it *Item) Int(name string) (int, error) {
	v, ok := it.Get(name)
	if !ok {
		return 0, missing(name)
	}
	if isNull(v) {
		return 0, mismatch(name, "int", nil)
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case json.RawMessage:
		var n int
		if err := json.Unmarshal(x, &n); err != nil {
			return 0, mismatch(name, "int", v)
		}
		return n, nil
	default:
		return 0, mismatch(name, "int", v)
	}
}

// Ints returns a required integer list field.
func (it *Item) Ints(name string) ([]int, error) {
	v, ok := it.Get(name)
	if !ok {
		return nil, missing(name)
	}
	if isNull(v) {
		return nil, mismatch(name, "[]int", nil)
	}
	switch x := v.(type) {
	case []int:
		return append([]int(nil), x...), nil
	case json.RawMessage:
		var ns []int
		if err := json.Unmarshal(x, &ns); err != nil {
			return nil, mismatch(name, "[]int", v)
		}
		return ns, nil
	default:
		return nil, mismatch(name, "[]int", v)
	}
}

// Text returns a required string field.
func (it *Item) Text(name string) (string, error) {
	v, ok := it.Get(name)
	if !ok {
		return "", missing(name)
	}
	if isNull(v) {
		return "", mismatch(name, "string", nil)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case json.RawMessage:
		var s string
		if err := json.Unmarshal(x, &s); err != nil {
			return "", mismatch(name, "string", v)
		}
		return s, nil
	default:
		return "", mismatch(name, "string", v)
	}
}

// Bool returns a required boolean field.
func (it *Item) Bool(name string) (bool, error) {
	v, ok := it.Get(name)
	if !ok {
		return false, missing(name)
	}
	if isNull(v) {
		return false, mismatch(name, "bool", nil)
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case json.RawMessage:
		var b bool
		if err := json.Unmarshal(x, &b); err != nil {
			return false, mismatch(name, "bool", v)
		}
		return b, nil
	default:
		return false, mismatch(name, "bool", v)
	}
}

// MarshalJSON encodes the item as a JSON object in field order.
func (it *Item) MarshalJSON() ([]byte, error) {
	if it == nil {
		return []byte("null"), nil
	}
	if it.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(it.fields)
}

// UnmarshalJSON decodes a JSON object, keeping field order and deferring value typing.
func (it *Item) UnmarshalJSON(data []byte) error {
	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, raw); err != nil {
		return fmt.Errorf("record: decode item: %w", err)
	}
	it.fields = orderedmap.New[string, any]()
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		it.fields.Set(pair.Key, pair.Value)
	}
	return nil
}

// String returns the compact JSON form, with tensor payloads included.
func (it *Item) String() string {
	data, err := it.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<item: %v>", err)
	}
	return string(data)
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	if raw, ok := v.(json.RawMessage); ok {
		return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
	}
	if child, ok := v.(*Item); ok {
		return child == nil
	}
	return false
}

func asTensor(name string, v any) (TensorItem, error) {
	var t TensorItem
	switch x := v.(type) {
	case TensorItem:
		t = x
	case *TensorItem:
		t = *x
	case json.RawMessage:
		if err := json.Unmarshal(x, &t); err != nil || t.DType == "" {
			return TensorItem{}, mismatch(name, "tensor", v)
		}
	default:
		return TensorItem{}, mismatch(name, "tensor", v)
	}
	if err := t.Validate(); err != nil {
		return TensorItem{}, &DecodeError{Field: name, Err: err}
	}
	return t, nil
}

func asChild(name string, v any) (*Item, error) {
	switch x := v.(type) {
	case *Item:
		return x, nil
	case json.RawMessage:
		trimmed := bytes.TrimSpace(x)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, mismatch(name, "item", v)
		}
		child := &Item{}
		if err := child.UnmarshalJSON(trimmed); err != nil {
			return nil, &DecodeError{Field: name, Err: err}
		}
		return child, nil
	default:
		return nil, mismatch(name, "item", v)
	}
}
