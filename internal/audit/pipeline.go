// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit runs the two-stage evidence correlation: the watcher
// extracts observations from the video, the auditor cross-references them
// against the document, and every step is narrated through a
// stream.Emitter.
package audit

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/veragate/internal/invoke"
	"github.com/pdiddy/veragate/internal/logging"
	"github.com/pdiddy/veragate/internal/metrics"
	"github.com/pdiddy/veragate/internal/provider"
	"github.com/pdiddy/veragate/internal/stream"
	"github.com/pdiddy/veragate/internal/upload"
	"github.com/pdiddy/veragate/pkg/types"
)

// Progress messages, in emission order.
const (
	MsgUploading        = "Uploading files to Gemini..."
	MsgVideoUploaded    = "Video uploaded"
	MsgPDFUploaded      = "PDF uploaded"
	MsgFilesProcessed   = "Files processed"
	MsgWatcherStart     = "Initializing video analysis with Gemini 3 Flash..."
	MsgWatcherDone      = "Video analysis complete. Extracted observations from the video evidence."
	MsgVideoAnalysed    = "Video analysis complete"
	MsgAuditorStart     = "Initializing forensic audit with Gemini 3 Pro (thinking: high)..."
	MsgCrossReferencing = "Comparing video evidence against PDF documentation..."
	MsgAuditComplete    = "Forensic audit complete"
)

// ErrMissingArtifact is returned when a run is started without both files.
var ErrMissingArtifact = errors.New("Both video and PDF files are required")

// Archiver stores a copy of submitted evidence. Failures do not abort a run.
type Archiver interface {
	Archive(ctx context.Context, runID string, artifact types.EvidenceArtifact) error
}

// credentialed is implemented by providers that can tell whether they hold
// an API key.
type credentialed interface {
	HasCredential() bool
}

// Options carries the optional collaborators of a Pipeline.
type Options struct {
	Metrics  *metrics.Metrics
	Archiver Archiver
}

// Pipeline executes audit runs. One Pipeline serves any number of
// concurrent runs; runs share no mutable state.
type Pipeline struct {
	cfg      types.PipelineConfig
	provider provider.Provider
	uploader *upload.Uploader
	watcher  *Watcher
	auditor  *Auditor
	metrics  *metrics.Metrics
	archiver Archiver
}

// NewPipeline wires the stages for cfg around p.
func NewPipeline(cfg types.PipelineConfig, p provider.Provider, opts Options) *Pipeline {
	cfg = cfg.WithDefaults()
	inv := invoke.New(p, cfg.RateLimit, opts.Metrics)
	return &Pipeline{
		cfg:      cfg,
		provider: p,
		uploader: upload.New(p, cfg.Poll, opts.Metrics),
		watcher:  NewWatcher(inv, cfg.Watcher),
		auditor:  NewAuditor(inv, cfg.Auditor, opts.Metrics),
		metrics:  opts.Metrics,
		archiver: opts.Archiver,
	}
}

// Outcome summarizes a finished run.
type Outcome struct {
	// Result is set when the run ended with a result event.
	Result *types.AuditResult

	// ParseFallback is true when Result is the default substituted for an
	// unparseable auditor response.
	ParseFallback bool

	// Err is the failure reported in the error event.
	Err error

	Thinking []types.ThinkingEntry
	Elapsed  time.Duration
}

// Status returns the persisted status for the outcome.
func (o Outcome) Status() types.RunStatus {
	if o.Err != nil {
		return types.RunError
	}
	return types.RunComplete
}

// run holds the per-run state threaded through the stages.
type run struct {
	id  string
	em  stream.Emitter
	log *zap.Logger

	mu       sync.Mutex
	thinking []types.ThinkingEntry
	done     bool
}

func (r *run) emit(ev types.ProgressEvent) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	if ev.Event.Terminal() {
		r.done = true
	}
	if ev.Event == types.EventThinking {
		if p, ok := ev.Data.(types.ThinkingPayload); ok {
			r.thinking = append(r.thinking, types.ThinkingEntry{
				Agent: p.Agent, Phase: p.Phase, Content: p.Content, Timestamp: time.Now().UTC(),
			})
		}
	}
	r.mu.Unlock()

	if err := r.em.Emit(ev); err != nil {
		r.log.Debug("event not delivered", zap.String("event", string(ev.Event)), zap.Error(err))
	}
}

// Run executes one audit and narrates it through em. It always emits
// exactly one terminal event, result or error, as the last event, and
// never panics.
func (p *Pipeline) Run(ctx context.Context, runID string, video, doc types.EvidenceArtifact, em stream.Emitter) (out Outcome) {
	start := time.Now()
	log := logging.FromContext(ctx).With(zap.String("run_id", runID))
	ctx = logging.WithLogger(ctx, log)
	r := &run{id: runID, em: em, log: log}

	p.metrics.RunStarted()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("run panicked", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			out = Outcome{Err: fmt.Errorf("internal error: %v", rec)}
			r.emit(types.ErrorEvent(out.Err.Error()))
		}
		r.mu.Lock()
		out.Thinking = r.thinking
		r.mu.Unlock()
		out.Elapsed = time.Since(start)
		p.metrics.RunFinished(string(out.Status()), out.Elapsed)
	}()

	if p.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
		defer cancel()
	}

	result, fallback, err := p.execute(ctx, r, video, doc)
	if err != nil {
		log.Error("run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		r.emit(types.ErrorEvent(err.Error()))
		return Outcome{Err: err}
	}

	r.emit(types.ResultEvent(result))
	log.Info("run complete",
		zap.Int("contradictions", len(result.Contradictions)),
		zap.Int("verified_facts", len(result.VerifiedFacts)),
		zap.Bool("parse_fallback", fallback),
		zap.Duration("elapsed", time.Since(start)))
	return Outcome{Result: &result, ParseFallback: fallback}
}

func (p *Pipeline) execute(ctx context.Context, r *run, video, doc types.EvidenceArtifact) (types.AuditResult, bool, error) {
	if len(video.Data) == 0 || len(doc.Data) == 0 {
		return types.AuditResult{}, false, ErrMissingArtifact
	}
	if c, ok := p.provider.(credentialed); ok && !c.HasCredential() {
		return types.AuditResult{}, false, provider.ErrMissingCredential
	}

	r.emit(types.StatusEvent(MsgUploading, 10))
	p.archive(ctx, r, video, doc)

	videoHandle, err := p.uploader.Upload(ctx, video)
	if err != nil {
		return types.AuditResult{}, false, err
	}
	r.emit(types.StatusEvent(MsgVideoUploaded, 30))

	docHandle, err := p.uploader.Upload(ctx, doc)
	if err != nil {
		return types.AuditResult{}, false, err
	}
	r.emit(types.StatusEvent(MsgPDFUploaded, 50))
	r.emit(types.StatusEvent(MsgFilesProcessed, 60))

	r.emit(types.ThinkingEvent(types.AgentWatcher, types.PhaseAnalyzing, MsgWatcherStart))
	extraction, err := p.watcher.Extract(ctx, videoHandle)
	if err != nil {
		return types.AuditResult{}, false, err
	}
	r.emit(types.ThinkingEvent(types.AgentWatcher, types.PhaseConcluding, MsgWatcherDone))
	r.emit(types.StatusEvent(MsgVideoAnalysed, 75))

	r.emit(types.ThinkingEvent(types.AgentAuditor, types.PhaseAnalyzing, MsgAuditorStart))
	raw, err := p.auditor.Correlate(ctx, docHandle, extraction)
	if err != nil {
		return types.AuditResult{}, false, err
	}
	r.emit(types.ThinkingEvent(types.AgentAuditor, types.PhaseCrossReferencing, MsgCrossReferencing))

	result, fallback := p.auditor.Interpret(ctx, raw)
	r.emit(types.ThinkingEvent(types.AgentAuditor, types.PhaseConcluding, ConcludingMessage(result)))
	r.emit(types.StatusEvent(MsgAuditComplete, 100))
	return result, fallback, nil
}

// archive stores both artifacts when an archiver is configured. Errors are
// logged only.
func (p *Pipeline) archive(ctx context.Context, r *run, artifacts ...types.EvidenceArtifact) {
	if p.archiver == nil {
		return
	}
	for _, a := range artifacts {
		if err := p.archiver.Archive(ctx, r.id, a); err != nil {
			r.log.Warn("archiving evidence failed", zap.String("file", a.Name), zap.Error(err))
		}
	}
}
