// Package schema declares the expected shape of every payload received from the identity provider
// and validates untrusted payloads against it.
//
// Schemas are plain tables of fields. They are rendered to JSON Schema documents and checked with
// gojsonschema; validated payloads are decoded into typed records with mapstructure.
package schema

// FieldType is the expected JSON type of a field.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeBool       FieldType = "boolean"
	TypeNumber     FieldType = "number"
	TypeStringList FieldType = "stringList"
	TypeObject     FieldType = "object"
	// TypeTimestamp accepts any timestamp shape; the mapper normalizes it.
	TypeTimestamp FieldType = "timestamp"
)

// Field describes one property of a payload.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	// Nullable allows an explicit null in addition to Type.
	Nullable bool
	Enum     []string
	// Default is applied when the field is absent. List fields default to an empty list.
	Default any
	// Fields describes the properties of a TypeObject field.
	Fields []Field
}

// Schema is the declared shape of one payload type.
type Schema struct {
	// Name prefixes every validation issue, e.g. "User Profile".
	Name   string
	Fields []Field
}

// JSONSchema renders s as a JSON Schema document.
func (s Schema) JSONSchema() map[string]any {
	return objectSchema(s.Fields)
}

func objectSchema(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0)
	for _, f := range fields {
		props[f.Name] = f.jsonSchema()
		if f.Required {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func (f Field) jsonSchema() map[string]any {
	var out map[string]any
	var jsonType string
	switch f.Type {
	case TypeStringList:
		jsonType = "array"
		out = map[string]any{"items": map[string]any{"type": "string"}}
	case TypeObject:
		jsonType = "object"
		out = objectSchema(f.Fields)
	case TypeTimestamp:
		return map[string]any{}
	default:
		jsonType = string(f.Type)
		out = map[string]any{}
	}
	if f.Nullable {
		out["type"] = []string{jsonType, "null"}
	} else {
		out["type"] = jsonType
	}
	if len(f.Enum) > 0 {
		enum := make([]any, 0, len(f.Enum)+1)
		for _, e := range f.Enum {
			enum = append(enum, e)
		}
		if f.Nullable {
			enum = append(enum, nil)
		}
		out["enum"] = enum
	}
	return out
}

// Partial returns a copy of s with no required fields and no defaults, for checking partial updates.
func (s Schema) Partial() Schema {
	return Schema{Name: s.Name, Fields: partialFields(s.Fields)}
}

func partialFields(fields []Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		f.Required = false
		f.Default = nil
		f.Fields = partialFields(f.Fields)
		out[i] = f
	}
	return out
}

// ApplyDefaults returns a shallow copy of payload with defaults filled in for absent fields.
// Nested objects that are present are copied and defaulted too. payload is never modified.
func (s Schema) ApplyDefaults(payload map[string]any) map[string]any {
	return applyDefaults(s.Fields, payload)
}

func applyDefaults(fields []Field, payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload)+len(fields))
	for k, v := range payload {
		out[k] = v
	}
	for _, f := range fields {
		v, present := out[f.Name]
		if !present {
			d, ok := f.defaultValue()
			if !ok {
				continue
			}
			v = d
		}
		out[f.Name] = v
		if f.Type == TypeObject {
			if nested, ok := v.(map[string]any); ok {
				out[f.Name] = applyDefaults(f.Fields, nested)
			}
		}
	}
	return out
}

func (f Field) defaultValue() (any, bool) {
	if f.Type == TypeStringList && f.Default == nil && !f.Required {
		return []string{}, true
	}
	if f.Default == nil {
		return nil, false
	}
	if list, ok := f.Default.([]string); ok {
		return append([]string{}, list...), true
	}
	return f.Default, true
}
