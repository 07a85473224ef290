package tooling_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gurpartap/taskloop/tooling"
)

func TestValidateArguments(t *testing.T) {
	t.Parallel()

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
			"ratio": map[string]any{"type": "number"},
			"tags":  map[string]any{"type": "array"},
			"opts":  map[string]any{"type": "object"},
			"free":  map[string]any{"description": "untyped"},
		},
		"required":             []any{"name"},
		"additionalProperties": false,
	}

	tests := []struct {
		name      string
		arguments map[string]any
		wantErr   string
	}{
		{name: "minimal", arguments: map[string]any{"name": "x"}},
		{
			name: "all fields",
			arguments: map[string]any{
				"name":  "x",
				"count": 3,
				"ratio": 0.5,
				"tags":  []any{"a"},
				"opts":  map[string]any{"k": true},
				"free":  42,
			},
		},
		{name: "integral float is an integer", arguments: map[string]any{"name": "x", "count": float64(4)}},
		{name: "integral float32 is an integer", arguments: map[string]any{"name": "x", "count": float32(3), "ratio": float32(0.5)}},
		{name: "integral float beyond int64", arguments: map[string]any{"name": "x", "count": 1e20}},
		{name: "json number", arguments: map[string]any{"name": "x", "count": json.Number("7"), "ratio": json.Number("1.5")}},
		{name: "missing required", arguments: map[string]any{}, wantErr: `missing required argument "name"`},
		{name: "wrong type", arguments: map[string]any{"name": 1}, wantErr: `argument "name" must be "string"`},
		{name: "fractional integer", arguments: map[string]any{"name": "x", "count": 1.5}, wantErr: `argument "count" must be "integer"`},
		{name: "fractional float32 integer", arguments: map[string]any{"name": "x", "count": float32(2.5)}, wantErr: `argument "count" must be "integer"`},
		{name: "infinite integer", arguments: map[string]any{"name": "x", "count": math.Inf(1)}, wantErr: `argument "count" must be "integer"`},
		{name: "unknown argument", arguments: map[string]any{"name": "x", "extra": 1}, wantErr: `unknown argument "extra"`},
		{name: "null object", arguments: map[string]any{"name": "x", "opts": nil}, wantErr: `argument "opts" must be "object"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tooling.ValidateArguments(schema, tc.arguments)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tooling.ErrInvalidArguments)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateArguments_EmptySchemaAcceptsAnything(t *testing.T) {
	t.Parallel()

	require.NoError(t, tooling.ValidateArguments(nil, map[string]any{"anything": []int{1}}))
}

func TestValidateArguments_AdditionalPropertiesDefaultAllowed(t *testing.T) {
	t.Parallel()

	schema := map[string]any{
		"properties": map[string]any{"a": map[string]any{"type": "number"}},
	}
	require.NoError(t, tooling.ValidateArguments(schema, map[string]any{"a": 1, "b": "x"}))
}

func TestValidateArguments_RejectsMalformedSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		schema map[string]any
	}{
		{name: "required not array", schema: map[string]any{"required": "a"}},
		{name: "required entry not string", schema: map[string]any{"required": []any{1}}},
		{name: "additional properties not bool", schema: map[string]any{"additionalProperties": "no"}},
		{
			name: "property not object",
			schema: map[string]any{
				"properties": map[string]any{"a": "string"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tooling.ValidateArguments(tc.schema, map[string]any{"a": 1})
			require.ErrorIs(t, err, tooling.ErrInvalidSchema)
		})
	}
}

func TestNumberArgument(t *testing.T) {
	t.Parallel()

	arguments := map[string]any{
		"int":    10,
		"float":  2.5,
		"number": json.Number("3.25"),
		"text":   "7",
	}

	got, err := tooling.NumberArgument(arguments, "int")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)

	got, err = tooling.NumberArgument(arguments, "float")
	require.NoError(t, err)
	assert.Equal(t, 2.5, got)

	got, err = tooling.NumberArgument(arguments, "number")
	require.NoError(t, err)
	assert.Equal(t, 3.25, got)

	_, err = tooling.NumberArgument(arguments, "text")
	assert.EqualError(t, err, `argument "text" must be a number`)

	_, err = tooling.NumberArgument(arguments, "missing")
	assert.EqualError(t, err, `missing required argument "missing"`)
}

func TestStringArgument(t *testing.T) {
	t.Parallel()

	got, err := tooling.StringArgument(map[string]any{"s": "hi"}, "s")
	require.NoError(t, err)
	assert.Equal(t, "hi", got)

	_, err = tooling.StringArgument(map[string]any{"s": 1}, "s")
	assert.EqualError(t, err, `argument "s" must be a string`)
}
