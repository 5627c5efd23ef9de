// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// auditResultSchema describes the shape the auditor prompt asks for. It is
// used only to report drift; results are forwarded whether or not they
// conform.
const auditResultSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["summary", "contradictions", "verifiedFacts"],
  "properties": {
    "summary": {"type": "string"},
    "contradictions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "severity", "type", "videoTimestamp", "pdfPage", "pdfClause", "videoObservation", "reasoning", "confidence"],
        "properties": {
          "id": {"type": "string"},
          "severity": {"enum": ["critical", "major", "minor"]},
          "type": {"enum": ["spatial", "temporal", "factual", "specification"]},
          "videoTimestamp": {"type": "string", "pattern": "^\\d{2}:\\d{2}:\\d{2}$"},
          "pdfPage": {"type": "integer", "minimum": 1},
          "pdfClause": {"type": "string"},
          "videoObservation": {"type": "string"},
          "reasoning": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    },
    "verifiedFacts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "videoTimestamp", "pdfPage", "description", "evidence"],
        "properties": {
          "id": {"type": "string"},
          "videoTimestamp": {"type": "string"},
          "pdfPage": {"type": "integer"},
          "description": {"type": "string"},
          "evidence": {"type": "string"}
        }
      }
    }
  }
}`

const schemaURL = "https://veragate.local/audit-result.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(auditResultSchema))
		if err != nil {
			schemaErr = fmt.Errorf("parsing audit schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("adding audit schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// CheckSchema reports how text deviates from the expected auditor output
// shape. A nil error means the document conforms.
func CheckSchema(text string) error {
	sch, err := loadSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("auditor response is not JSON: %w", err)
	}
	return sch.Validate(inst)
}
