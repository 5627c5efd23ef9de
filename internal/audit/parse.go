// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/pdiddy/veragate/pkg/types"
)

// ParseAuditResult decodes the auditor's response text. Empty text is
// treated as "{}". A document that is not a JSON object, or whose lists
// are not arrays, is an error and the caller substitutes
// types.DefaultAuditResult. Records are not validated: each one is kept
// verbatim whatever its keys or value types.
func ParseAuditResult(text string) (types.AuditResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "{}"
	}
	raw := []byte(text)
	if !bytes.HasPrefix(raw, []byte("{")) {
		return types.AuditResult{}, fmt.Errorf("auditor response is not a JSON object")
	}

	var wire struct {
		Summary        any                   `json:"summary"`
		Contradictions []types.Contradiction `json:"contradictions"`
		VerifiedFacts  []types.VerifiedFact  `json:"verifiedFacts"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return types.AuditResult{}, fmt.Errorf("decoding auditor response: %w", err)
	}

	result := types.AuditResult{
		Contradictions: wire.Contradictions,
		VerifiedFacts:  wire.VerifiedFacts,
	}
	if s, ok := wire.Summary.(string); ok {
		result.Summary = s
	}
	result.Normalize()
	return result, nil
}

// ConcludingMessage is the auditor's final thinking line.
func ConcludingMessage(r types.AuditResult) string {
	return fmt.Sprintf("Forensic audit complete. Found %d contradictions and %d verified facts.",
		len(r.Contradictions), len(r.VerifiedFacts))
}
