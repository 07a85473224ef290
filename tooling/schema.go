package tooling

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// ErrInvalidArguments marks a call whose arguments do not satisfy the tool's
// declared parameter schema.
var ErrInvalidArguments = errors.New("invalid arguments")

// ErrInvalidSchema marks a parameter schema that cannot be interpreted.
var ErrInvalidSchema = errors.New("invalid parameter schema")

// ValidateArguments checks arguments against a JSON-Schema-shaped object.
// Only required, properties[*].type and additionalProperties are enforced;
// other keywords are accepted and ignored.
func ValidateArguments(schema map[string]any, arguments map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	required, err := parseRequiredFields(schema["required"])
	if err != nil {
		return err
	}
	for _, field := range required {
		if _, ok := arguments[field]; !ok {
			return fmt.Errorf("%w: missing required argument %q", ErrInvalidArguments, field)
		}
	}

	properties, hasProperties := asStringAnyMap(schema["properties"])
	additionalAllowed, err := parseAdditionalProperties(schema["additionalProperties"])
	if err != nil {
		return err
	}

	for _, key := range sortedArgumentKeys(arguments) {
		value := arguments[key]
		propertySchema, hasProperty := properties[key]
		if !hasProperty {
			if hasProperties && !additionalAllowed {
				return fmt.Errorf("%w: unknown argument %q", ErrInvalidArguments, key)
			}
			continue
		}

		expectedType, hasType, err := parsePropertyType(key, propertySchema)
		if err != nil {
			return err
		}
		if !hasType {
			continue
		}
		if !matchesArgumentType(expectedType, value) {
			return fmt.Errorf("%w: argument %q must be %q", ErrInvalidArguments, key, expectedType)
		}
	}

	return nil
}

func parseRequiredFields(raw any) ([]string, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		out := make([]string, len(value))
		copy(out, value)
		return out, nil
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			field, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf(`%w: "required" entries must be strings`, ErrInvalidSchema)
			}
			out = append(out, field)
		}
		return out, nil
	default:
		return nil, fmt.Errorf(`%w: "required" must be an array`, ErrInvalidSchema)
	}
}

func parseAdditionalProperties(raw any) (bool, error) {
	switch value := raw.(type) {
	case nil:
		return true, nil
	case bool:
		return value, nil
	default:
		return false, fmt.Errorf(`%w: "additionalProperties" must be a bool`, ErrInvalidSchema)
	}
}

func parsePropertyType(name string, propertySchema any) (string, bool, error) {
	propertyMap, ok := asStringAnyMap(propertySchema)
	if !ok {
		return "", false, fmt.Errorf(`%w: property %q must be an object`, ErrInvalidSchema, name)
	}
	rawType, ok := propertyMap["type"]
	if !ok {
		return "", false, nil
	}
	typeName, ok := rawType.(string)
	if !ok {
		return "", false, fmt.Errorf(`%w: property %q "type" must be a string`, ErrInvalidSchema, name)
	}
	return typeName, true, nil
}

func asStringAnyMap(raw any) (map[string]any, bool) {
	value, ok := raw.(map[string]any)
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

func sortedArgumentKeys(arguments map[string]any) []string {
	keys := make([]string, 0, len(arguments))
	for key := range arguments {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func matchesArgumentType(expected string, value any) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		return isNumber(value)
	case "integer":
		return isInteger(value)
	case "object":
		if value == nil {
			return false
		}
		return reflect.TypeOf(value).Kind() == reflect.Map
	case "array":
		if value == nil {
			return false
		}
		kind := reflect.TypeOf(value).Kind()
		return kind == reflect.Array || kind == reflect.Slice
	case "null":
		return value == nil
	default:
		return true
	}
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case float32, float64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	default:
		return false
	}
}

func isIntegral(v float64) bool {
	return !math.IsInf(v, 0) && math.Trunc(v) == v
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return isIntegral(float64(v))
	case float64:
		return isIntegral(v)
	case json.Number:
		_, err := v.Int64()
		return err == nil
	default:
		return false
	}
}
