package letzai

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

func intPtr(v int) *int { return &v }

func nonEmptyString() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", MinLength: intPtr(1)}
}

var submitSchema = mustResolve(&jsonschema.Schema{
	Type:     "object",
	Required: []string{"id", "status"},
	Properties: map[string]*jsonschema.Schema{
		"id":     nonEmptyString(),
		"status": nonEmptyString(),
	},
})

var statusSchema = mustResolve(&jsonschema.Schema{
	Type:     "object",
	Required: []string{"status"},
	Properties: map[string]*jsonschema.Schema{
		"status":       nonEmptyString(),
		"progress":     {Types: []string{"number", "null"}},
		"previewImage": {Types: []string{"string", "null"}},
		"imageVersions": {
			Types:                []string{"object", "null"},
			AdditionalProperties: &jsonschema.Schema{Type: "string"},
		},
		"message": {Types: []string{"string", "null"}},
	},
})

func mustResolve(s *jsonschema.Schema) *jsonschema.Resolved {
	resolved, err := s.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("letzai: resolve schema: %v", err))
	}
	return resolved
}
