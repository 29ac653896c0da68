package interpreter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchema is returned when oracle output has the wrong shape.
var ErrSchema = errors.New("interpreter: output does not match instruction schema")

// instructionSchema accepts a flat 4-tuple or a non-empty array of them.
// Enum values are not checked here; synonyms are normalized afterwards.
const instructionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "slot": {"type": ["string", "null"]},
    "instruction": {
      "type": "array",
      "minItems": 4,
      "maxItems": 4,
      "items": [
        {"type": "string"},
        {"$ref": "#/definitions/slot"},
        {"type": ["string", "number", "null"]},
        {"$ref": "#/definitions/slot"}
      ]
    }
  },
  "oneOf": [
    {"$ref": "#/definitions/instruction"},
    {
      "type": "array",
      "minItems": 1,
      "items": {"$ref": "#/definitions/instruction"}
    }
  ]
}`

func compileSchema() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(instructionSchema))
}

func validateShape(schema *gojsonschema.Schema, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			msgs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
	}
	return nil
}
