// Package did defines the WeIdentity DID document model: documents,
// authentication and service entries, ledger metadata, default id
// derivation and the fingerprint used for compare-and-swap writes.
package did

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema constrains documents read back from a ledger.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "authentication", "service"],
  "properties": {
    "id": {"type": "string", "pattern": "^did:weid:"},
    "authentication": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "controller", "publicKeyMultibase"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string"},
          "controller": {"type": "string", "pattern": "^did:weid:"},
          "publicKeyMultibase": {"type": "string", "minLength": 1}
        }
      }
    },
    "service": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type", "serviceEndpoint"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "serviceEndpoint": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var (
	compiledSchema *gojsonschema.Schema
	compileOnce    sync.Once
	errCompile     error
)

func loadSchema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, errCompile = gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
	})
	return compiledSchema, errCompile
}

// ValidateDocumentJSON checks raw document JSON against the document schema.
func ValidateDocumentJSON(raw []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("failed to compile document schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("failed to validate document: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("document validation failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// ParseDocument validates and decodes document JSON stored on a ledger.
func ParseDocument(raw []byte) (*Document, error) {
	if err := ValidateDocumentJSON(raw); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DID document: %w", err)
	}
	return &doc, nil
}
