package tool

import (
	"encoding/json"
	"fmt"
	"math"

	kiterrors "github.com/nate11235813/SonifiedLLMKit/internal/errors"
)

// ValidateStrict checks args against a minimal JSON-Schema subset:
// type:object, properties/{type}, required, and additionalProperties
// (default false). It returns a normalized JSON-safe copy of the
// arguments or a descriptive error. Values are never coerced: an integer
// field rejects 1.5, a boolean field rejects 0 and 1.
func ValidateStrict(schema map[string]interface{}, args map[string]interface{}) (map[string]interface{}, error) {
	if args == nil {
		args = map[string]interface{}{}
	}

	if declared, ok := schema["type"].(string); ok && declared != "object" {
		return nil, fmt.Errorf("schema type %q is not object: %w", declared, kiterrors.ErrInvalidInput)
	}

	properties, _ := schema["properties"].(map[string]interface{})

	for _, field := range requiredFields(schema) {
		if _, present := args[field]; !present {
			return nil, fmt.Errorf("missing required field %q: %w", field, kiterrors.ErrInvalidInput)
		}
	}

	allowExtra, _ := schema["additionalProperties"].(bool)
	for key, value := range args {
		propSchema, declared := properties[key]
		if !declared {
			if allowExtra {
				continue
			}
			return nil, fmt.Errorf("unexpected field %q: %w", key, kiterrors.ErrInvalidInput)
		}
		propMap, ok := propSchema.(map[string]interface{})
		if !ok {
			continue
		}
		if err := checkType(key, propMap, value); err != nil {
			return nil, err
		}
	}

	return normalizeArgs(args)
}

func requiredFields(schema map[string]interface{}) []string {
	switch required := schema["required"].(type) {
	case []string:
		return required
	case []interface{}:
		fields := make([]string, 0, len(required))
		for _, entry := range required {
			if name, ok := entry.(string); ok {
				fields = append(fields, name)
			}
		}
		return fields
	default:
		return nil
	}
}

func checkType(fieldName string, schema map[string]interface{}, value interface{}) error {
	expected, ok := schema["type"].(string)
	if !ok {
		return nil
	}

	switch expected {
	case "string":
		if _, ok := value.(string); !ok {
			return typeError(fieldName, "string", value)
		}
	case "number":
		if !isNumber(value) {
			return typeError(fieldName, "number", value)
		}
	case "integer":
		if !isInteger(value) {
			return typeError(fieldName, "integer", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return typeError(fieldName, "boolean", value)
		}
	case "object":
		if _, ok := value.(map[string]interface{}); !ok {
			return typeError(fieldName, "object", value)
		}
	case "array":
		if _, ok := value.([]interface{}); !ok {
			return typeError(fieldName, "array", value)
		}
	case "null":
		if value != nil {
			return typeError(fieldName, "null", value)
		}
	default:
		return fmt.Errorf("field %q has unsupported schema type %q: %w", fieldName, expected, kiterrors.ErrInvalidInput)
	}
	return nil
}

func isNumber(value interface{}) bool {
	switch value.(type) {
	case float64, float32, int, int32, int64, json.Number:
		return true
	}
	return false
}

func isInteger(value interface{}) bool {
	switch v := value.(type) {
	case int, int32, int64:
		return true
	case float64:
		return v == math.Trunc(v) && !math.IsInf(v, 0)
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}

func typeError(fieldName, expected string, value interface{}) error {
	return fmt.Errorf("field %q expected %s, got %T: %w", fieldName, expected, value, kiterrors.ErrInvalidInput)
}

// normalizeArgs round-trips the arguments through JSON so tools always see
// plain JSON-safe values regardless of how the map was built.
func normalizeArgs(args map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("arguments are not JSON-safe: %w", kiterrors.ErrInvalidInput)
	}
	var normalized map[string]interface{}
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("arguments are not JSON-safe: %w", kiterrors.ErrInvalidInput)
	}
	return normalized, nil
}
