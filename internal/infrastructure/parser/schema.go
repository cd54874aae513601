package parser

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// DescriptorSchema returns the JSON schema of Descriptor documents.
func DescriptorSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(&Descriptor{})
	schema.Title = "API surface descriptor"
	return json.MarshalIndent(schema, "", "  ")
}
