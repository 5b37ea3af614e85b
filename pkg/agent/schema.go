package agent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// responseSchema is the contract for POST {base}/query replies.
const responseSchema = `{
  "type": "object",
  "properties": {
    "response": {"type": "string"},
    "content":  {"type": "string"},
    "metadata": {"type": "object"}
  },
  "anyOf": [
    {"required": ["response"]},
    {"required": ["content"]}
  ]
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func loadResponseSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(responseSchema))
	})
	return compiledSchema, schemaErr
}

// validateResponseBody checks body against responseSchema.
func validateResponseBody(body []byte) error {
	schema, err := loadResponseSchema()
	if err != nil {
		return fmt.Errorf("failed to compile response schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("malformed response body: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("response does not match schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}
