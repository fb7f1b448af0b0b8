package estimate

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// FactType is the declared type of a fact.
type FactType string

const (
	FactBoolean FactType = "boolean"
	FactNumber  FactType = "number"
	FactString  FactType = "string"
	FactEnum    FactType = "enum"
)

// Valid reports whether t is one of the known fact types.
func (t FactType) Valid() bool {
	switch t {
	case FactBoolean, FactNumber, FactString, FactEnum:
		return true
	}
	return false
}

// EnumOption is one allowed value of an enum fact. Ordinal orders options for comparisons.
type EnumOption struct {
	Value   string `json:"value"`
	Label   string `json:"label,omitempty"`
	Ordinal int    `json:"ordinal"`
}

// FactDefinition declares a typed fact. Key is unique per project.
type FactDefinition struct {
	Key         string       `json:"fact_key"`
	Type        FactType     `json:"fact_type"`
	EnumOptions []EnumOption `json:"enum_options,omitempty"`
}

// Validate checks the definition's shape. Only enum facts may carry options.
func (d FactDefinition) Validate() error {
	if strings.TrimSpace(d.Key) == "" {
		return fmt.Errorf("%w: empty fact_key", ErrInvalidFact)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: %q has unknown type %q", ErrInvalidFact, d.Key, d.Type)
	}
	if d.Type != FactEnum && len(d.EnumOptions) > 0 {
		return fmt.Errorf("%w: %q is %s but has enum options", ErrInvalidFact, d.Key, d.Type)
	}
	seen := make(map[string]bool, len(d.EnumOptions))
	for _, o := range d.EnumOptions {
		if o.Value == "" {
			return fmt.Errorf("%w: %q has an enum option without a value", ErrInvalidFact, d.Key)
		}
		if seen[o.Value] {
			return fmt.Errorf("%w: %q repeats enum option %q", ErrInvalidFact, d.Key, o.Value)
		}
		seen[o.Value] = true
	}
	return nil
}

// Option returns the enum option with the given value.
func (d FactDefinition) Option(value string) (EnumOption, bool) {
	for _, o := range d.EnumOptions {
		if o.Value == value {
			return o, true
		}
	}
	return EnumOption{}, false
}

// Value is a coerced fact value. Exactly the field matching Type is meaningful;
// enum values keep their chosen option values in Choices (one for single select).
type Value struct {
	Type    FactType
	Bool    bool
	Number  float64
	Text    string
	Choices []string
}

// Interface returns the plain Go value: bool, float64, string, or for enums
// a string (one choice) or []any (several).
func (v Value) Interface() any {
	switch v.Type {
	case FactBoolean:
		return v.Bool
	case FactNumber:
		return v.Number
	case FactString:
		return v.Text
	case FactEnum:
		if len(v.Choices) == 1 {
			return v.Choices[0]
		}
		out := make([]any, len(v.Choices))
		for i, c := range v.Choices {
			out[i] = c
		}
		return out
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Coerce converts a submitted answer into a Value of def's type. Answers that
// the type cannot represent are rejected with a *TypeMismatchError.
func Coerce(def FactDefinition, raw any) (Value, error) {
	mismatch := func(reason string) (Value, error) {
		return Value{}, &TypeMismatchError{Key: def.Key, Type: def.Type, Value: raw, Reason: reason}
	}
	if raw == nil {
		return mismatch("no value")
	}

	switch def.Type {
	case FactBoolean:
		switch t := raw.(type) {
		case bool:
			return Value{Type: FactBoolean, Bool: t}, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(t))
			if err != nil {
				return mismatch("not a boolean")
			}
			return Value{Type: FactBoolean, Bool: b}, nil
		}
		return mismatch("not a boolean")

	case FactNumber:
		f, ok := toFloat(raw)
		if !ok {
			return mismatch("not a number")
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return mismatch("not a finite number")
		}
		return Value{Type: FactNumber, Number: f}, nil

	case FactString:
		switch t := raw.(type) {
		case string:
			return Value{Type: FactString, Text: t}, nil
		case bool:
			return Value{Type: FactString, Text: strconv.FormatBool(t)}, nil
		}
		if f, ok := toFloat(raw); ok {
			return Value{Type: FactString, Text: strconv.FormatFloat(f, 'f', -1, 64)}, nil
		}
		return mismatch("not a scalar")

	case FactEnum:
		var choices []string
		switch t := raw.(type) {
		case string:
			choices = []string{t}
		case []string:
			choices = append(choices, t...)
		case []any:
			for _, item := range t {
				s, ok := item.(string)
				if !ok {
					return mismatch("enum choices must be strings")
				}
				choices = append(choices, s)
			}
		default:
			return mismatch("not an enum option")
		}
		if len(def.EnumOptions) > 0 {
			for _, c := range choices {
				if _, ok := def.Option(c); !ok {
					return mismatch(fmt.Sprintf("%q is not an option", c))
				}
			}
		}
		return Value{Type: FactEnum, Choices: choices}, nil
	}
	return mismatch("unknown fact type")
}

func toFloat(raw any) (float64, bool) {
	switch t := raw.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// FactStore is the table of answers collected in one session. It is not safe
// for concurrent use; every session owns its own store.
type FactStore struct {
	defs   map[string]FactDefinition
	values map[string]Value
}

// NewFactStore creates an empty store that accepts the given definitions.
func NewFactStore(defs []FactDefinition) *FactStore {
	s := &FactStore{
		defs:   make(map[string]FactDefinition, len(defs)),
		values: make(map[string]Value),
	}
	for _, d := range defs {
		s.defs[d.Key] = d
	}
	return s
}

// Definition returns the declaration of key.
func (s *FactStore) Definition(key string) (FactDefinition, bool) {
	d, ok := s.defs[key]
	return d, ok
}

// Fact returns the stored value of key.
func (s *FactStore) Fact(key string) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set coerces raw to key's declared type and stores it.
func (s *FactStore) Set(key string, raw any) error {
	return s.SetAll([]string{key}, raw)
}

// SetAll writes raw into every key, or into none of them if any key is
// undeclared or cannot represent the value.
func (s *FactStore) SetAll(keys []string, raw any) error {
	coerced := make([]Value, len(keys))
	for i, key := range keys {
		def, ok := s.defs[key]
		if !ok {
			return fmt.Errorf("%w: %q", ErrFactNotFound, key)
		}
		v, err := Coerce(def, raw)
		if err != nil {
			return err
		}
		coerced[i] = v
	}
	for i, key := range keys {
		s.values[key] = coerced[i]
	}
	return nil
}

// Delete removes key's value.
func (s *FactStore) Delete(key string) {
	delete(s.values, key)
}

// Keys returns the keys holding a value, sorted.
func (s *FactStore) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored values.
func (s *FactStore) Len() int { return len(s.values) }

// Number returns key as a scalar for pricing: numbers as-is, booleans as 1/0,
// single-choice enums as their option ordinal.
func (s *FactStore) Number(key string) (float64, error) {
	v, ok := s.values[key]
	if !ok {
		return 0, &MissingInputError{Kind: "fact", Key: key}
	}
	switch v.Type {
	case FactNumber:
		return v.Number, nil
	case FactBoolean:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	case FactEnum:
		if len(v.Choices) == 1 {
			if o, ok := s.defs[key].Option(v.Choices[0]); ok {
				return float64(o.Ordinal), nil
			}
		}
	}
	return 0, &TypeMismatchError{Key: key, Type: FactNumber, Value: v.Interface(), Reason: "not numeric"}
}

// Snapshot returns the stored values as plain Go values keyed by fact key.
func (s *FactStore) Snapshot() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v.Interface()
	}
	return out
}

// Clone returns an independent copy of the store.
func (s *FactStore) Clone() *FactStore {
	c := &FactStore{
		defs:   s.defs,
		values: make(map[string]Value, len(s.values)),
	}
	for k, v := range s.values {
		v.Choices = append([]string(nil), v.Choices...)
		c.values[k] = v
	}
	return c
}

func (s *FactStore) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}
