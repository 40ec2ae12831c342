package schema

import (
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// Kind is the type tag of a parameter schema node.
type Kind string

const (
	KindString  Kind = "string"
	KindBoolean Kind = "boolean"
	KindNumber  Kind = "number"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// ParamSchema describes the parameters an action accepts. Schema trees are
// finite and acyclic; validation walks them depth-first.
type ParamSchema struct {
	Kind       Kind                `json:"kind"`
	Properties map[string]Property `json:"properties,omitempty"` // Object only
	Items      *ParamSchema        `json:"items,omitempty"`      // Array only
}

// Property is one declared property of an object schema.
type Property struct {
	Schema      ParamSchema `json:"schema"`
	Description string      `json:"description,omitempty"`
	Required    bool        `json:"required"`
	Default     any         `json:"default,omitempty"`
}

// String returns a string schema node.
func String() ParamSchema { return ParamSchema{Kind: KindString} }

// Boolean returns a boolean schema node.
func Boolean() ParamSchema { return ParamSchema{Kind: KindBoolean} }

// Number returns a number schema node.
func Number() ParamSchema { return ParamSchema{Kind: KindNumber} }

// ArrayOf returns an array schema node with the given item schema.
func ArrayOf(items ParamSchema) ParamSchema {
	return ParamSchema{Kind: KindArray, Items: &items}
}

// Object returns an object schema node with the given properties.
func Object(props map[string]Property) ParamSchema {
	return ParamSchema{Kind: KindObject, Properties: props}
}

// Compile renders the schema as a JSON Schema document suitable both for
// gojsonschema validation and for advertising the action to LLM providers
// as a tool input_schema. Output is deterministic: property names and
// required lists are sorted.
func (s ParamSchema) Compile() map[string]any {
	switch s.Kind {
	case KindObject:
		props := make(map[string]any, len(s.Properties))
		var required []string

		names := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			prop := s.Properties[name]
			compiled := prop.Schema.Compile()
			if prop.Description != "" {
				compiled["description"] = prop.Description
			}
			if prop.Default != nil {
				compiled["default"] = prop.Default
			}
			props[name] = compiled
			if prop.Required {
				required = append(required, name)
			}
		}

		doc := map[string]any{
			"type":       "object",
			"properties": props,
		}
		if len(required) > 0 {
			doc["required"] = required
		}
		return doc

	case KindArray:
		items := map[string]any{"type": "string"}
		if s.Items != nil {
			items = s.Items.Compile()
		}
		return map[string]any{"type": "array", "items": items}

	default:
		return map[string]any{"type": string(s.Kind)}
	}
}

// Validate checks provided arguments against the schema and returns a
// normalized copy with declared defaults substituted for absent optional
// properties. Unknown properties are ignored. On failure it returns a
// *ValidationError naming the offending dot-joined property path.
func (s ParamSchema) Validate(args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.Compile()))
	if err != nil {
		return nil, err
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		return nil, mapResultError(result.Errors())
	}

	normalized := copyMap(args)
	s.applyDefaults(normalized)
	return normalized, nil
}

// applyDefaults walks the object tree depth-first, substituting declared
// defaults for absent optional properties.
func (s ParamSchema) applyDefaults(args map[string]any) {
	if s.Kind != KindObject {
		return
	}
	for name, prop := range s.Properties {
		value, present := args[name]
		if !present {
			if !prop.Required && prop.Default != nil {
				args[name] = prop.Default
			}
			continue
		}
		if prop.Schema.Kind == KindObject {
			if nested, ok := value.(map[string]any); ok {
				prop.Schema.applyDefaults(nested)
			}
		}
	}
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return copyMap(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
