package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	type expected struct {
		isNil  bool
		hasErr bool
	}

	tests := []struct {
		name     string
		raw      map[string]any
		expected expected
	}{
		{
			name:     "nil schema returns nil",
			raw:      nil,
			expected: expected{isNil: true},
		},
		{
			name: "valid schema compiles",
			raw: Object(map[string]*Property{
				"line_length": Integer("Maximum line length"),
			}),
			expected: expected{},
		},
		{
			name:     "invalid type keyword fails",
			raw:      map[string]any{"type": 12},
			expected: expected{isNil: true, hasErr: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Compile(tt.raw)

			if tt.expected.hasErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			if tt.expected.isNil {
				assert.Nil(t, s)
			} else {
				require.NotNil(t, s)
				assert.Equal(t, tt.raw, s.Raw())
			}
		})
	}
}

func TestSchema_Validate(t *testing.T) {
	blackLike := MustCompile(Object(map[string]*Property{
		"line_length":          Integer("Maximum line length").Min(1),
		"string_normalization": Boolean("Normalize quotes"),
		"target_versions":      Array("Target versions", Enum("py38", "py39", "py310")),
		"profile":              String("Profile").Enum("black", "google"),
		"style":                Map("Style overrides", Scalar("").Schema()),
		"spacing": Nested("Spacing", map[string]*Property{
			"zero": Array("No spaces", map[string]any{"type": "string"}),
		}),
		"indent": Nested("Indentation", map[string]*Property{
			"indent_by": Integer("Spaces per level"),
		}).AlsoString(),
	}))

	tests := []struct {
		name    string
		options map[string]any
		valid   bool
	}{
		{name: "nil options", options: nil, valid: true},
		{name: "empty options", options: map[string]any{}, valid: true},
		{name: "int from go", options: map[string]any{"line_length": 88}, valid: true},
		{name: "float from json", options: map[string]any{"line_length": float64(88)}, valid: true},
		{name: "fractional line length", options: map[string]any{"line_length": 88.5}, valid: false},
		{name: "below minimum", options: map[string]any{"line_length": 0}, valid: false},
		{name: "wrong type", options: map[string]any{"string_normalization": "no"}, valid: false},
		{name: "unknown key", options: map[string]any{"line_lenght": 88}, valid: false},
		{name: "string slice", options: map[string]any{"target_versions": []string{"py38", "py310"}}, valid: true},
		{name: "bad enum item", options: map[string]any{"target_versions": []string{"py27"}}, valid: false},
		{name: "enum scalar", options: map[string]any{"profile": "google"}, valid: true},
		{name: "bad enum scalar", options: map[string]any{"profile": "pep8"}, valid: false},
		{name: "free form map", options: map[string]any{"style": map[string]any{"column_limit": 100, "based_on_style": "pep8"}}, valid: true},
		{name: "map rejects nested object", options: map[string]any{"style": map[string]any{"x": map[string]any{}}}, valid: false},
		{name: "nested known key", options: map[string]any{"spacing": map[string]any{"zero": []any{"'^'"}}}, valid: true},
		{name: "nested unknown key", options: map[string]any{"spacing": map[string]any{"two": []any{}}}, valid: false},
		{name: "preset name", options: map[string]any{"indent": "tidyverse_reindention"}, valid: true},
		{name: "preset arguments", options: map[string]any{"indent": map[string]any{"indent_by": 4}}, valid: true},
		{name: "preset arguments unknown key", options: map[string]any{"indent": map[string]any{"by": 4}}, valid: false},
		{name: "preset wrong type", options: map[string]any{"indent": 4}, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := blackLike.Validate(tt.options)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
			assert.Contains(t, err.Error(), "schema validation failed")
		})
	}
}

func TestSchema_NilAcceptsAnything(t *testing.T) {
	var s *Schema
	assert.NoError(t, s.Validate(map[string]any{"anything": []int{1}}))
	assert.Nil(t, s.Raw())
}

func TestEmpty(t *testing.T) {
	s := MustCompile(Empty())
	assert.NoError(t, s.Validate(nil))
	assert.Error(t, s.Validate(map[string]any{"line_length": 88}))
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustCompile(map[string]any{"type": 12})
	})
}

func TestProperty_Build(t *testing.T) {
	p := Integer("Maximum line length").Min(1).Max(200).Default(88)
	assert.Equal(t, map[string]any{
		"type":        "integer",
		"description": "Maximum line length",
		"minimum":     float64(1),
		"maximum":     float64(200),
		"default":     88,
	}, p.Schema())

	assert.Equal(t, map[string]any{
		"type":    "string",
		"pattern": `^py\d+$`,
	}, String("").Pattern(`^py\d+$`).Schema())

	assert.Equal(t, []any{"object", "string"}, Map("", nil).AlsoString().Schema()["type"])
	assert.Equal(t, []any{"string", "number", "boolean"}, Scalar("").AlsoString().Schema()["type"])
}
