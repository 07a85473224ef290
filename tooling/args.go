package tooling

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// StringArgument returns arguments[name] as a string.
func StringArgument(arguments map[string]any, name string) (string, error) {
	raw, ok := arguments[name]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", name)
	}
	return value, nil
}

// NumberArgument returns arguments[name] as a float64, accepting any Go
// numeric type and json.Number.
func NumberArgument(arguments map[string]any, name string) (float64, error) {
	raw, ok := arguments[name]
	if !ok {
		return 0, fmt.Errorf("missing required argument %q", name)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q must be a number: %w", name, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("argument %q must be a number", name)
	}
}
