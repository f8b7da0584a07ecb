// Package structuredoutput implements spec §4.9: introspecting a Go type
// into a JSON schema, applying it as a provider constraint, and populating
// a target value from the parsed JSON response by case-insensitive field
// name with type coercion. No pack repo builds this pipeline end-to-end —
// the corpus's JSON-schema libraries (santhosh-tekuri/jsonschema,
// gojsonschema, and the transitively required google/jsonschema-go behind
// the MCP SDK) are all schema *validators*, not Go-type-to-schema
// generators with a matching populate step, so introspection here is built
// directly on reflect/encoding/json — recorded as the stdlib justification
// below — while Populate is new functionality per spec §4.9/§6 with no
// corpus precedent to ground beyond the spec text itself.
package structuredoutput

import (
	"reflect"
	"strings"

	"github.com/airuntime/core/errs"
)

// Schema is the JSON-schema subset spec §4.9 needs: object/array/
// primitive types with properties, required names, and item schemas for
// arrays and nested objects.
type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
}

// Introspect builds a Schema from a Go value's type (a struct, pointer to
// struct, or slice of either), the way spec §4.9 step 1 introspects "a
// class instance, a struct template, or [classInstance]".
func Introspect(target any) (*Schema, error) {
	t := reflect.TypeOf(target)
	if t == nil {
		return nil, errs.New(errs.InvalidArgument, "structuredoutput: cannot introspect a nil target")
	}
	return introspectType(t)
}

func introspectType(t reflect.Type) (*Schema, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		item, err := introspectType(t.Elem())
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "array", Items: item}, nil

	case reflect.Struct:
		return introspectStruct(t)

	case reflect.String:
		return &Schema{Type: "string"}, nil
	case reflect.Bool:
		return &Schema{Type: "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}, nil
	default:
		return nil, errs.New(errs.InvalidArgument, "structuredoutput: unsupported type %s", t.Kind())
	}
}

func introspectStruct(t reflect.Type) (*Schema, error) {
	schema := &Schema{Type: "object", Properties: map[string]*Schema{}}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := jsonFieldName(f)
		if name == "-" {
			continue
		}
		prop, err := introspectType(f.Type)
		if err != nil {
			return nil, err
		}
		schema.Properties[name] = prop
		schema.Required = append(schema.Required, name)
	}
	return schema, nil
}

func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

// ToMap converts a Schema into a plain JSON-schema map (type, properties,
// required, items), the form Apply places in the request.
func (s *Schema) ToMap() map[string]any {
	if s == nil {
		return nil
	}
	out := map[string]any{"type": s.Type}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for k, v := range s.Properties {
			props[k] = v.ToMap()
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	if s.Items != nil {
		out["items"] = s.Items.ToMap()
	}
	return out
}
