package patterns

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/multierr"
)

// documentSchema describes the pattern source: nested namespaces of pattern strings,
// template definitions under templates (or pageElements) and literal statics.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["patterns"],
  "additionalProperties": false,
  "properties": {
    "patterns": {"$ref": "#/definitions/stringTree"},
    "statics": {"$ref": "#/definitions/stringTree"},
    "templates": {"$ref": "#/definitions/templateTree"},
    "pageElements": {"$ref": "#/definitions/templateTree"}
  },
  "definitions": {
    "stringTree": {
      "type": "object",
      "additionalProperties": {
        "anyOf": [
          {"type": "string"},
          {"$ref": "#/definitions/stringTree"}
        ]
      }
    },
    "params": {
      "type": "object",
      "additionalProperties": {"type": ["string", "number", "boolean"]}
    },
    "ref": {
      "type": "object",
      "required": ["primary"],
      "additionalProperties": false,
      "properties": {
        "primary": {"type": "string", "minLength": 1},
        "params": {"$ref": "#/definitions/params"}
      }
    },
    "template": {
      "type": "object",
      "required": ["primary"],
      "additionalProperties": false,
      "properties": {
        "primary": {"type": "string", "minLength": 1},
        "params": {"$ref": "#/definitions/params"},
        "fallback": {"$ref": "#/definitions/ref"}
      }
    },
    "templateTree": {
      "type": "object",
      "additionalProperties": {
        "anyOf": [
          {"$ref": "#/definitions/template"},
          {"$ref": "#/definitions/templateTree"}
        ]
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(documentSchema)

// validateSchema - checks a decoded document against documentSchema, reporting every violation
func validateSchema(doc map[string]interface{}) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var errs error
	for _, desc := range result.Errors() {
		errs = multierr.Append(errs, fmt.Errorf("%s: %s", desc.Field(), desc.Description()))
	}
	return errs
}
