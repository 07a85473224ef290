// Package builtin provides the tools shipped with taskloop.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Gurpartap/taskloop/tooling"
)

const (
	EchoName    = "echo"
	MathName    = "math_eval"
	WeatherName = "get_weather"
)

// ErrDivisionByZero is returned by math_eval for a zero divisor.
var ErrDivisionByZero = errors.New("division by zero")

// Echo returns its message argument unchanged.
func Echo() tooling.Tool {
	return tooling.NewFunc(
		EchoName,
		"Echoes back the input message. Useful for testing.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{
					"type":        "string",
					"description": "The message to echo back",
				},
			},
			"required": []any{"message"},
		},
		func(_ context.Context, arguments map[string]any) (any, error) {
			return tooling.StringArgument(arguments, "message")
		},
	)
}

var mathOperators = map[string]func(a, b float64) (float64, error){
	"+": func(a, b float64) (float64, error) { return a + b, nil },
	"-": func(a, b float64) (float64, error) { return a - b, nil },
	"*": func(a, b float64) (float64, error) { return a * b, nil },
	"/": func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	},
}

// MathEval evaluates a binary arithmetic expression without an expression
// parser.
func MathEval() tooling.Tool {
	return tooling.NewFunc(
		MathName,
		"Evaluates a simple math expression with two operands. Supports +, -, *, /",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{
					"type":        "number",
					"description": "First operand",
				},
				"operator": map[string]any{
					"type":        "string",
					"description": "Operation to perform",
					"enum":        []any{"+", "-", "*", "/"},
				},
				"b": map[string]any{
					"type":        "number",
					"description": "Second operand",
				},
			},
			"required": []any{"a", "operator", "b"},
		},
		func(_ context.Context, arguments map[string]any) (any, error) {
			a, err := tooling.NumberArgument(arguments, "a")
			if err != nil {
				return nil, err
			}
			operator, err := tooling.StringArgument(arguments, "operator")
			if err != nil {
				return nil, err
			}
			b, err := tooling.NumberArgument(arguments, "b")
			if err != nil {
				return nil, err
			}
			apply, ok := mathOperators[operator]
			if !ok {
				return nil, fmt.Errorf("unsupported operator: %s", operator)
			}
			return apply(a, b)
		},
	)
}

// Weather returns canned weather for a location. It stands in for a tool
// discovered from an external provider.
func Weather() tooling.Tool {
	return tooling.NewFunc(
		WeatherName,
		"Get current weather for a location (mock external tool)",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "City name or location",
				},
			},
			"required": []any{"location"},
		},
		func(_ context.Context, arguments map[string]any) (any, error) {
			location, err := tooling.StringArgument(arguments, "location")
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("Weather in %s: Sunny, 22°C (mock data)", location), nil
		},
	)
}

var catalog = map[string]func() tooling.Tool{
	EchoName:    Echo,
	MathName:    MathEval,
	WeatherName: Weather,
}

// Names lists the built-in tool names in sorted order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByName builds the named built-in tool.
func ByName(name string) (tooling.Tool, error) {
	build, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("unknown builtin tool %q (allowed: %v)", name, Names())
	}
	return build(), nil
}

// IsBuiltin reports whether name is a built-in tool.
func IsBuiltin(name string) bool {
	_, ok := catalog[name]
	return ok
}
