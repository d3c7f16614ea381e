package agent

import (
	"fmt"
)

// FieldKind is the declared type of one schema field.
type FieldKind int

const (
	KindAny FieldKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindMap
	KindList
)

func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "any"
	}
}

// Field declares one entry in a Schema: its type, whether it's required,
// an optional default value, and (for KindMap fields) a nested Schema.
type Field struct {
	Kind     FieldKind
	Required bool
	Default  any
	Nested   *Schema
}

// Schema is the declarative validator for an agent's state (spec §3.2).
type Schema struct {
	Fields map[string]Field
}

// Defaults returns a fresh map of every field's default value, recursing
// into nested schemas. Fields without a Default and without a Nested
// schema are omitted.
func (s Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s.Fields))
	for name, f := range s.Fields {
		switch {
		case f.Nested != nil:
			out[name] = f.Nested.Defaults()
		case f.Default != nil:
			out[name] = f.Default
		}
	}
	return out
}

// Validate checks state against the schema. Type mismatches on present
// fields are always errors. Missing required fields are errors under
// strict validation and warnings otherwise (spec §4.1: "default
// non-strict validation accepts missing-required fields as warnings").
func (s Schema) Validate(state map[string]any, strict bool) (warnings []string, err error) {
	for name, f := range s.Fields {
		v, present := state[name]
		if !present {
			if f.Required {
				if strict {
					return warnings, fmt.Errorf("%w: required field %q is missing", ErrSchema, name)
				}
				warnings = append(warnings, fmt.Sprintf("required field %q is missing", name))
			}
			continue
		}
		if v == nil {
			continue
		}
		if err := checkKind(name, v, f.Kind); err != nil {
			return warnings, err
		}
		if f.Nested != nil {
			nested, ok := v.(map[string]any)
			if !ok {
				return warnings, fmt.Errorf("%w: field %q must be a nested map", ErrSchema, name)
			}
			nw, err := f.Nested.Validate(nested, strict)
			warnings = append(warnings, nw...)
			if err != nil {
				return warnings, err
			}
		}
	}
	return warnings, nil
}

func checkKind(name string, v any, kind FieldKind) error {
	if kind == KindAny {
		return nil
	}
	ok := false
	switch kind {
	case KindString:
		_, ok = v.(string)
	case KindInt:
		switch v.(type) {
		case int, int32, int64:
			ok = true
		}
	case KindFloat:
		switch v.(type) {
		case float32, float64, int, int32, int64:
			ok = true
		}
	case KindBool:
		_, ok = v.(bool)
	case KindMap:
		_, ok = v.(map[string]any)
	case KindList:
		_, ok = v.([]any)
	}
	if !ok {
		return fmt.Errorf("%w: field %q must be of kind %s, got %T", ErrSchema, name, kind, v)
	}
	return nil
}

// Merge returns a new Schema with other's fields nested under key
// (spec §4.6 step 3: "merged schema is the base schema with each plugin's
// schema nested under its state_key").
func (s Schema) Merge(key string, other Schema) (Schema, error) {
	if _, clash := s.Fields[key]; clash {
		return Schema{}, fmt.Errorf("agent: state_key %q collides with a base-schema field", key)
	}
	merged := Schema{Fields: make(map[string]Field, len(s.Fields)+1)}
	for k, f := range s.Fields {
		merged.Fields[k] = f
	}
	merged.Fields[key] = Field{Kind: KindMap, Nested: &other}
	return merged, nil
}
