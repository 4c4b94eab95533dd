package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// ValidateArguments checks args against a tool input schema.
// Violations are reported as a single InvalidArgument error listing every problem.
func ValidateArguments(schema *openapi3.Schema, args map[string]any) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	// VisitJSON expects JSON-decoded values; round-trip typed Go values
	// (e.g. int from tests or non-JSON transports) into that shape.
	normalized, err := normalizeJSON(args)
	if err != nil {
		return Errorf(KindInvalidArgument, "arguments are not valid JSON: %v", err)
	}
	err = schema.VisitJSON(normalized, openapi3.MultiErrors())
	if err == nil {
		return nil
	}
	return Errorf(KindInvalidArgument, "%s", describeSchemaError(err))
}

func normalizeJSON(v map[string]any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func describeSchemaError(err error) string {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		msgs := make([]string, 0, len(multi))
		for _, e := range multi {
			msgs = append(msgs, describeSchemaError(e))
		}
		return strings.Join(msgs, "; ")
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		field := strings.Join(se.JSONPointer(), ".")
		if field == "" {
			return se.Reason
		}
		return fmt.Sprintf("%s: %s", field, se.Reason)
	}
	return err.Error()
}

// MarshalSchema renders a schema as JSON Schema for the protocol's inputSchema field.
func MarshalSchema(schema *openapi3.Schema) (json.RawMessage, error) {
	if schema == nil {
		return json.RawMessage(`{"type":"object","properties":{}}`), nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool schema: %w", err)
	}
	return raw, nil
}
