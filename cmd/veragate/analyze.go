// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/veragate/internal/logging"
	"github.com/pdiddy/veragate/internal/metrics"
	"github.com/pdiddy/veragate/internal/report"
	"github.com/pdiddy/veragate/internal/stream"
	"github.com/pdiddy/veragate/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Audit a local video against a local PDF",
	Long: `Analyze runs the two-stage audit in-process. Progress is printed to
stderr as it happens; the final result is written to stdout (or --out) as
JSON, YAML or Markdown. With --sse the raw event stream is written instead,
framed exactly as the HTTP API frames it.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("video", "", "path to the video file")
	analyzeCmd.Flags().String("pdf", "", "path to the PDF document")
	analyzeCmd.Flags().String("format", "json", "result format: json, yaml, markdown")
	analyzeCmd.Flags().String("out", "", "write the result to this file instead of stdout")
	analyzeCmd.Flags().Bool("sse", false, "write raw event-stream frames instead of a formatted result")
	analyzeCmd.MarkFlagRequired("video")
	analyzeCmd.MarkFlagRequired("pdf")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	videoPath, _ := cmd.Flags().GetString("video")
	pdfPath, _ := cmd.Flags().GetString("pdf")
	outPath, _ := cmd.Flags().GetString("out")
	sse, _ := cmd.Flags().GetBool("sse")
	formatName, _ := cmd.Flags().GetString("format")

	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}

	video, err := readArtifact(videoPath, types.ArtifactVideo)
	if err != nil {
		return err
	}
	doc, err := readArtifact(pdfPath, types.ArtifactDocument)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()
		out = f
	}

	ctx := logging.WithLogger(cmd.Context(), logger)
	pipeline, err := newPipeline(ctx, metrics.New())
	if err != nil {
		return err
	}

	var em stream.Emitter = stream.Func(printProgress(os.Stderr))
	if sse {
		em = stream.Tee(em, stream.NewWriter(out))
	}

	outcome := pipeline.Run(ctx, uuid.NewString(), video, doc, em)
	if outcome.Err != nil {
		return outcome.Err
	}
	if sse {
		return nil
	}
	if outcome.ParseFallback {
		fmt.Fprintln(os.Stderr, "warning: auditor response could not be parsed; default result substituted")
	}
	return report.WriteResult(out, format, *outcome.Result)
}

// readArtifact loads a local file, taking its media type from the
// extension.
func readArtifact(path string, kind types.ArtifactKind) (types.EvidenceArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.EvidenceArtifact{}, fmt.Errorf("reading %s: %w", kind, err)
	}
	return types.EvidenceArtifact{
		Kind:      kind,
		Name:      filepath.Base(path),
		MediaType: types.MediaTypeByName(path),
		Data:      data,
	}, nil
}

// printProgress renders events as one line each.
func printProgress(w io.Writer) func(types.ProgressEvent) error {
	return func(ev types.ProgressEvent) error {
		switch p := ev.Data.(type) {
		case types.StatusPayload:
			fmt.Fprintf(w, "[%3d%%] %s\n", p.Progress, p.Message)
		case types.ThinkingPayload:
			fmt.Fprintf(w, "  %s/%s: %s\n", p.Agent, p.Phase, p.Content)
		}
		return nil
	}
}
