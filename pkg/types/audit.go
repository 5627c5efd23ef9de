// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"
)

// Severity ranks how serious a contradiction is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// ContradictionType classifies the kind of mismatch between video and document.
type ContradictionType string

const (
	// ContradictionSpatial is a physical position, dimension, or layout mismatch.
	ContradictionSpatial ContradictionType = "spatial"

	// ContradictionTemporal is a lighting, shadow, or time-indicator mismatch.
	ContradictionTemporal ContradictionType = "temporal"

	// ContradictionFactual is a document claim directly contradicted by the video.
	ContradictionFactual ContradictionType = "factual"

	// ContradictionSpecification is a measurement or technical-spec violation.
	ContradictionSpecification ContradictionType = "specification"
)

// DefaultAuditSummary is the summary used when the auditor output cannot be parsed.
const DefaultAuditSummary = "Analysis complete"

// Contradiction is a detected mismatch between the video evidence and a
// document claim. The pipeline forwards these exactly as the provider
// returned them; no field is validated or recomputed. When decoded from
// JSON, Raw holds the provider's record and is what gets encoded again;
// the typed fields are a best-effort view of it.
type Contradiction struct {
	// ID is unique within one AuditResult (e.g. "C001").
	ID string `json:"id" yaml:"id"`

	Severity Severity          `json:"severity" yaml:"severity"`
	Type     ContradictionType `json:"type" yaml:"type"`

	// VideoTimestamp is the HH:MM:SS position in the video.
	VideoTimestamp string `json:"videoTimestamp" yaml:"video_timestamp"`

	// PDFPage is the page number in the document.
	PDFPage int `json:"pdfPage" yaml:"pdf_page"`

	// PDFClause is the verbatim document text being contradicted.
	PDFClause string `json:"pdfClause" yaml:"pdf_clause"`

	// VideoObservation describes what was seen or heard in the video.
	VideoObservation string `json:"videoObservation" yaml:"video_observation"`

	// Reasoning is the chain of reasoning that establishes the contradiction.
	Reasoning string `json:"reasoning" yaml:"reasoning"`

	// Confidence is a score in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	Raw json.RawMessage `json:"-" yaml:"-"`
}

// VerifiedFact is a document claim corroborated by the video evidence.
// Raw follows the same rules as Contradiction.Raw.
type VerifiedFact struct {
	ID             string `json:"id" yaml:"id"`
	VideoTimestamp string `json:"videoTimestamp" yaml:"video_timestamp"`
	PDFPage        int    `json:"pdfPage" yaml:"pdf_page"`
	Description    string `json:"description" yaml:"description"`
	Evidence       string `json:"evidence" yaml:"evidence"`

	Raw json.RawMessage `json:"-" yaml:"-"`
}

// AuditResult is the structured outcome of the correlation stage.
type AuditResult struct {
	Summary        string          `json:"summary" yaml:"summary"`
	Contradictions []Contradiction `json:"contradictions" yaml:"contradictions"`
	VerifiedFacts  []VerifiedFact  `json:"verifiedFacts" yaml:"verified_facts"`
}

// DefaultAuditResult returns the result substituted when the provider's
// structured output cannot be parsed.
func DefaultAuditResult() AuditResult {
	return AuditResult{
		Summary:        DefaultAuditSummary,
		Contradictions: []Contradiction{},
		VerifiedFacts:  []VerifiedFact{},
	}
}

// Normalize replaces nil slices with empty ones so the result always
// serializes its lists as JSON arrays.
func (r *AuditResult) Normalize() {
	if r.Contradictions == nil {
		r.Contradictions = []Contradiction{}
	}
	if r.VerifiedFacts == nil {
		r.VerifiedFacts = []VerifiedFact{}
	}
}

// CountBySeverity tallies contradictions per severity level.
func (r AuditResult) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, c := range r.Contradictions {
		counts[c.Severity]++
	}
	return counts
}

// UnmarshalJSON keeps data verbatim in Raw and fills the typed fields from
// the keys whose values can be read. It does not fail on a well-formed
// value of any shape.
func (c *Contradiction) UnmarshalJSON(data []byte) error {
	*c = Contradiction{Raw: compact(data)}
	var m map[string]any
	if json.Unmarshal(data, &m) != nil {
		return nil
	}
	c.ID = stringField(m, "id")
	c.Severity = Severity(stringField(m, "severity"))
	c.Type = ContradictionType(stringField(m, "type"))
	c.VideoTimestamp = stringField(m, "videoTimestamp")
	c.PDFPage = int(numberField(m, "pdfPage"))
	c.PDFClause = stringField(m, "pdfClause")
	c.VideoObservation = stringField(m, "videoObservation")
	c.Reasoning = stringField(m, "reasoning")
	c.Confidence = numberField(m, "confidence")
	return nil
}

// MarshalJSON writes Raw when present, otherwise the typed fields.
func (c Contradiction) MarshalJSON() ([]byte, error) {
	if len(c.Raw) > 0 {
		return c.Raw, nil
	}
	type plain Contradiction
	return json.Marshal(plain(c))
}

// UnmarshalJSON behaves like Contradiction.UnmarshalJSON.
func (f *VerifiedFact) UnmarshalJSON(data []byte) error {
	*f = VerifiedFact{Raw: compact(data)}
	var m map[string]any
	if json.Unmarshal(data, &m) != nil {
		return nil
	}
	f.ID = stringField(m, "id")
	f.VideoTimestamp = stringField(m, "videoTimestamp")
	f.PDFPage = int(numberField(m, "pdfPage"))
	f.Description = stringField(m, "description")
	f.Evidence = stringField(m, "evidence")
	return nil
}

// MarshalJSON writes Raw when present, otherwise the typed fields.
func (f VerifiedFact) MarshalJSON() ([]byte, error) {
	if len(f.Raw) > 0 {
		return f.Raw, nil
	}
	type plain VerifiedFact
	return json.Marshal(plain(f))
}

// compact copies data without insignificant whitespace, so a record never
// spans lines inside an event-stream frame.
func compact(data []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return append(json.RawMessage(nil), data...)
	}
	return buf.Bytes()
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64, bool:
		return fmt.Sprint(v)
	}
	return ""
}

func numberField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return n
		}
	}
	return 0
}
