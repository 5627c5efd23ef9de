// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import "strings"

// PromptVersion identifies the prompt pair below. It is stored with every
// run so results can be traced to the instructions that produced them.
const PromptVersion = "2026-01"

// WatcherPrompt instructs the fast model to extract timestamped
// observations from the video. Its output is forwarded as opaque text.
const WatcherPrompt = `You are "The Watcher" - a forensic video analysis agent.

Analyze this video thoroughly and extract:
1. All visible text (signs, documents, labels, screens)
2. Spoken words and dialogue (transcription)
3. Timestamps of significant events
4. Spatial details (locations, positions of objects, lighting, shadows)
5. Physical characteristics of objects and environments
6. Any measurements, quantities, or specifications visible

For each observation, provide:
- Exact timestamp (format: HH:MM:SS)
- Detailed description
- Confidence level (0-1)

Output as JSON:
{
  "observations": [
    {
      "timestamp": "00:00:00",
      "type": "text|speech|spatial|object|measurement",
      "description": "detailed observation",
      "confidence": 0.95
    }
  ],
  "summary": "overall video summary"
}`

// AuditorPrompt instructs the deliberative model to cross-reference the
// document against the watcher's observations.
const AuditorPrompt = `You are "The Auditor" - a forensic cross-reference analysis agent.

You have received:
1. A PDF document containing technical specifications, requirements, or claims
2. Video analysis results from "The Watcher"

Your task is to perform a DEEP forensic audit:

CRITICAL: Detect ALL contradictions between the video evidence and the PDF document, including:
- SPATIAL errors: Physical positions, dimensions, or layouts that don't match specs
- TEMPORAL errors: Shadows, lighting, or time indicators that contradict claimed times
- FACTUAL errors: Claims in the PDF that are contradicted by video evidence
- SPECIFICATION errors: Components or measurements that violate technical specs

For EACH contradiction found:
1. Cite the EXACT video timestamp
2. Cite the EXACT PDF page number and clause text
3. Explain the reasoning chain that proves the contradiction
4. Rate severity (critical/major/minor)
5. Provide confidence score (0-1)

Also identify facts that are VERIFIED (PDF claims that ARE supported by video evidence).

Output as JSON:
{
  "summary": "overall audit summary",
  "contradictions": [
    {
      "id": "C001",
      "severity": "critical|major|minor",
      "type": "spatial|temporal|factual|specification",
      "videoTimestamp": "00:00:00",
      "pdfPage": 1,
      "pdfClause": "exact text from PDF",
      "videoObservation": "what was observed in video",
      "reasoning": "detailed reasoning chain explaining the contradiction",
      "confidence": 0.95
    }
  ],
  "verifiedFacts": [
    {
      "id": "V001",
      "videoTimestamp": "00:00:00",
      "pdfPage": 1,
      "description": "what was verified",
      "evidence": "supporting evidence"
    }
  ]
}`

// AuditorInput builds the text part of the auditor call: the watcher
// output followed by the audit instructions.
func AuditorInput(extraction string) string {
	var sb strings.Builder
	sb.Grow(len(extraction) + len(AuditorPrompt) + 32)
	sb.WriteString("VIDEO ANALYSIS RESULTS:\n")
	sb.WriteString(extraction)
	sb.WriteString("\n\n---\n\n")
	sb.WriteString(AuditorPrompt)
	return sb.String()
}
