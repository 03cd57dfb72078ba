// Package schema provides JSON Schema building and validation for formatter
// options.
//
// # Quick Start
//
//	opts := schema.Object(map[string]*schema.Property{
//	    "line_length":          schema.Integer("Maximum line length").Min(1),
//	    "string_normalization": schema.Boolean("Normalize string quotes").Default(true),
//	    "target_versions":      schema.Array("Python versions", schema.Enum("py38", "py39")),
//	})
//
// Backends return such a map from OptionSchema. The registry compiles it when
// the backend is registered and validates request options before formatting.
// Objects built with [Object] reject unknown keys, so a misspelled option is
// reported instead of silently ignored.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema holds the raw map representation of an option schema together with
// its compiled validator.
type Schema struct {
	raw      map[string]any
	compiled *jsonschema.Schema
}

// Raw returns the underlying map representation.
func (s *Schema) Raw() map[string]any {
	if s == nil {
		return nil
	}
	return s.raw
}

// Validate validates options against the schema. A nil schema accepts anything.
//
// Options are normalized through JSON first so that values of any Go type
// (ints, string slices, nested option maps) validate the same way as options
// decoded from a request body.
func (s *Schema) Validate(options map[string]any) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	if options == nil {
		options = map[string]any{}
	}

	data, err := json.Marshal(options)
	if err != nil {
		return &ValidationError{Err: fmt.Errorf("options are not JSON encodable: %w", err)}
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &ValidationError{Err: err}
	}

	if err := s.compiled.Validate(inst); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// ValidationError wraps a JSON Schema validation error with a cleaner message.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Compile compiles a raw schema map. A nil map compiles to a nil Schema,
// which accepts any options.
func Compile(raw map[string]any) (*Schema, error) {
	if raw == nil {
		return nil, nil
	}

	schemaJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	schemaData, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("options.json", schemaData); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	compiled, err := c.Compile("options.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Schema{
		raw:      raw,
		compiled: compiled,
	}, nil
}

// MustCompile compiles a schema declared by a backend at package level and
// panics if it is malformed.
func MustCompile(raw map[string]any) *Schema {
	s, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// -----------------------------------------------------------------------------
// Option builders
// -----------------------------------------------------------------------------

// Object declares the option set of a backend. Keys outside properties are
// rejected; the listed required keys must be present in every request.
//
// Example:
//
//	schema.Object(map[string]*schema.Property{
//	    "line_length": schema.Integer("Maximum line length"),
//	    "profile":     schema.String("isort profile").Enum("black", "google"),
//	})
func Object(properties map[string]*Property, required ...string) map[string]any {
	out := map[string]any{
		"type":                 "object",
		"properties":           buildAll(properties),
		"additionalProperties": false,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// Empty declares a backend that takes no options.
func Empty() map[string]any {
	return Object(map[string]*Property{})
}

func buildAll(properties map[string]*Property) map[string]any {
	out := make(map[string]any, len(properties))
	for name, prop := range properties {
		out[name] = prop.build()
	}
	return out
}

// Property describes the accepted values of one formatter option.
type Property struct {
	typ         any
	description string
	enum        []any
	minimum     *float64
	maximum     *float64
	pattern     string
	items       map[string]any
	values      map[string]any
	properties  map[string]any
	def         any
}

func (p *Property) build() map[string]any {
	m := map[string]any{}
	set := func(key string, v any, ok bool) {
		if ok {
			m[key] = v
		}
	}

	set("type", p.typ, p.typ != nil)
	set("description", p.description, p.description != "")
	set("enum", p.enum, len(p.enum) > 0)
	if p.minimum != nil {
		m["minimum"] = *p.minimum
	}
	if p.maximum != nil {
		m["maximum"] = *p.maximum
	}
	set("pattern", p.pattern, p.pattern != "")
	set("items", p.items, p.items != nil)
	set("additionalProperties", p.values, p.values != nil)
	if p.properties != nil {
		m["properties"] = p.properties
		m["additionalProperties"] = false
	}
	set("default", p.def, p.def != nil)
	return m
}

// String declares a text option such as an isort profile name.
func String(description string) *Property {
	return &Property{typ: "string", description: description}
}

// Integer declares a whole-number option such as a line width.
//
// Example:
//
//	schema.Integer("Maximum line length").Min(1).Max(1000)
func Integer(description string) *Property {
	return &Property{typ: "integer", description: description}
}

// Number declares a numeric option that may be fractional.
func Number(description string) *Property {
	return &Property{typ: "number", description: description}
}

// Boolean declares an on/off switch, usually mapped to a command-line flag.
func Boolean(description string) *Property {
	return &Property{typ: "boolean", description: description}
}

// Scalar declares an option passed through to the tool as written, such as a
// yapf style knob. Strings, numbers and booleans are accepted.
func Scalar(description string) *Property {
	return &Property{typ: []any{"string", "number", "boolean"}, description: description}
}

// Array declares a list option, e.g. black target versions or extra ruff
// arguments, whose items match the given schema.
//
// Example:
//
//	schema.Array("Extra arguments", schema.String("One argument").Schema())
func Array(description string, items map[string]any) *Property {
	return &Property{typ: "array", description: description, items: items}
}

// Map declares a dictionary option with free-form keys whose values all match
// the given schema, e.g. yapf style overrides.
//
// Example:
//
//	schema.Map("yapf style overrides", schema.Scalar("").Schema())
func Map(description string, values map[string]any) *Property {
	return &Property{typ: "object", description: description, values: values}
}

// Nested declares a dictionary option with a fixed set of keys, e.g. the
// arguments of a styler transformer.
func Nested(description string, properties map[string]*Property) *Property {
	return &Property{typ: "object", description: description, properties: buildAll(properties)}
}

// Enum restricts the items of an Array option to the given values. Scalar
// options use [Property.Enum] instead.
func Enum(values ...any) map[string]any {
	return map[string]any{"enum": values}
}

// Schema returns the option's schema, for use as Array items or Map values.
func (p *Property) Schema() map[string]any {
	return p.build()
}

// AlsoString additionally accepts a plain string, e.g. a styler preset name
// given instead of its argument dictionary.
func (p *Property) AlsoString() *Property {
	switch t := p.typ.(type) {
	case string:
		if t != "string" {
			p.typ = []any{t, "string"}
		}
	case []any:
		if !slices.Contains(t, any("string")) {
			p.typ = append(t, "string")
		}
	}
	return p
}

// Enum limits the option to the listed values.
func (p *Property) Enum(values ...any) *Property {
	p.enum = values
	return p
}

// Min rejects numeric option values below min.
func (p *Property) Min(min float64) *Property {
	p.minimum = &min
	return p
}

// Max rejects numeric option values above max.
func (p *Property) Max(max float64) *Property {
	p.maximum = &max
	return p
}

// Pattern requires a text option to match the regular expression.
func (p *Property) Pattern(pattern string) *Property {
	p.pattern = pattern
	return p
}

// Default records the value the tool uses when the option is omitted. The
// registry does not fill it in.
func (p *Property) Default(value any) *Property {
	p.def = value
	return p
}
