package registry

import (
	"encoding/json"

	// Packages
	jsonschema "github.com/google/jsonschema-go/jsonschema"
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// JSONSchemaValidator is the default Validator, backed by jsonschema-go
// exactly as the teacher's pkg/tool/tool.go validates tool input: marshal
// the schema Value to JSON, resolve it, then validate the input against the
// resolved schema.
type JSONSchemaValidator struct{}

var _ Validator = JSONSchemaValidator{}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (JSONSchemaValidator) Validate(schemaVal *mcp.Value, input *mcp.Value) error {
	if schemaVal == nil {
		return nil
	}
	raw, err := json.Marshal(schemaVal)
	if err != nil {
		return mcp.ErrInvalidParams.Withf("schema marshal failed: %v", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return mcp.ErrInvalidParams.Withf("schema decode failed: %v", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return mcp.ErrInvalidParams.Withf("schema resolution failed: %v", err)
	}

	var inputRaw interface{}
	if input != nil {
		data, err := json.Marshal(input)
		if err != nil {
			return mcp.ErrInvalidParams.Withf("input marshal failed: %v", err)
		}
		if err := json.Unmarshal(data, &inputRaw); err != nil {
			return mcp.ErrInvalidParams.Withf("input decode failed: %v", err)
		}
	}
	if err := resolved.Validate(inputRaw); err != nil {
		return mcp.ErrInvalidParams.Withf("input validation failed: %v", err)
	}
	return nil
}
