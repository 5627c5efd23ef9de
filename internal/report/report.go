// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders audit results and run records as JSON, YAML or
// Markdown for the CLI.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/veragate/pkg/types"
)

// Format selects an output encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts json, yaml/yml and markdown/md.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown format %q (want json, yaml or markdown)", s)
}

// WriteResult renders an audit result.
func WriteResult(w io.Writer, f Format, r types.AuditResult) error {
	r.Normalize()
	switch f {
	case FormatYAML:
		return writeYAML(w, r)
	case FormatMarkdown:
		return writeResultMarkdown(w, "Forensic Audit Report", r)
	default:
		return writeJSON(w, r)
	}
}

// WriteRun renders a stored run record.
func WriteRun(w io.Writer, f Format, run types.Run) error {
	switch f {
	case FormatYAML:
		return writeYAML(w, run)
	case FormatMarkdown:
		return writeRunMarkdown(w, run)
	default:
		return writeJSON(w, run)
	}
}

// WriteRunList renders run summaries. Markdown output is a table.
func WriteRunList(w io.Writer, f Format, runs []types.RunSummary) error {
	switch f {
	case FormatYAML:
		return writeYAML(w, runs)
	case FormatMarkdown:
		return writeRunTable(w, runs)
	default:
		return writeJSON(w, runs)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding YAML: %w", err)
	}
	return enc.Close()
}

func writeResultMarkdown(w io.Writer, title string, r types.AuditResult) error {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", title)
	if r.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(r.Summary))
	}

	counts := r.CountBySeverity()
	fmt.Fprintf(&b, "**Contradictions:** %d (%d critical, %d major, %d minor)  \n",
		len(r.Contradictions), counts[types.SeverityCritical], counts[types.SeverityMajor], counts[types.SeverityMinor])
	fmt.Fprintf(&b, "**Verified facts:** %d\n\n", len(r.VerifiedFacts))

	if len(r.Contradictions) > 0 {
		b.WriteString("### Contradictions\n\n")
		for _, c := range r.Contradictions {
			fmt.Fprintf(&b, "#### %s [%s/%s] confidence %.2f\n\n", inline(c.ID), inline(string(c.Severity)), inline(string(c.Type)), c.Confidence)
			fmt.Fprintf(&b, "- **Video %s:** %s\n", inline(c.VideoTimestamp), inline(c.VideoObservation))
			fmt.Fprintf(&b, "- **PDF p.%d:** %s\n", c.PDFPage, quote(inline(c.PDFClause)))
			fmt.Fprintf(&b, "- **Reasoning:** %s\n\n", inline(c.Reasoning))
		}
	}

	if len(r.VerifiedFacts) > 0 {
		b.WriteString("### Verified facts\n\n")
		for _, v := range r.VerifiedFacts {
			fmt.Fprintf(&b, "- **%s** (video %s, PDF p.%d): %s. Evidence: %s\n", inline(v.ID), inline(v.VideoTimestamp), v.PDFPage, inline(v.Description), inline(v.Evidence))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeRunMarkdown(w io.Writer, run types.Run) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", inline(run.ID))
	fmt.Fprintf(&b, "| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Status | %s |\n", run.Status)
	fmt.Fprintf(&b, "| Started | %s |\n", run.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "| Processing time | %s |\n", time.Duration(run.ProcessingMS)*time.Millisecond)
	fmt.Fprintf(&b, "| Video | %s (%s, %d bytes) |\n", cell(run.Video.Name), cell(run.Video.MediaType), run.Video.Size)
	fmt.Fprintf(&b, "| Document | %s (%s, %d bytes) |\n", cell(run.Document.Name), cell(run.Document.MediaType), run.Document.Size)
	fmt.Fprintf(&b, "| Prompt version | %s |\n", cell(run.PromptVersion))
	if run.ParseFallback {
		b.WriteString("| Parse fallback | yes |\n")
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "| Error | %s |\n", cell(run.Error))
	}
	b.WriteString("\n")

	if len(run.ThinkingLog) > 0 {
		b.WriteString("## Thinking log\n\n")
		for _, e := range run.ThinkingLog {
			fmt.Fprintf(&b, "- `%s` **%s/%s** %s\n", e.Timestamp.UTC().Format("15:04:05"), e.Agent, e.Phase, inline(e.Content))
		}
		b.WriteString("\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	if run.Result != nil {
		return writeResultMarkdown(w, "Result", *run.Result)
	}
	return nil
}

func writeRunTable(w io.Writer, runs []types.RunSummary) error {
	var b strings.Builder
	b.WriteString("| ID | Status | Started | Video | Document | Contradictions | Verified |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %d | %d |\n",
			cell(r.ID), r.Status, r.StartedAt.UTC().Format(time.RFC3339), cell(r.VideoName), cell(r.DocumentName),
			r.ContradictionCount, r.VerifiedFactCount)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

var (
	cellEscaper   = strings.NewReplacer("|", `\|`, "\r\n", "<br>", "\n", "<br>", "\r", "<br>")
	inlineEscaper = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
)

// cell makes s safe inside one Markdown table cell.
func cell(s string) string {
	return cellEscaper.Replace(s)
}

// inline keeps s on one line so it stays inside its list item or heading.
func inline(s string) string {
	return inlineEscaper.Replace(s)
}

func quote(s string) string {
	if s == "" {
		return ""
	}
	return `"` + s + `"`
}
