// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/veragate/internal/metrics"
	"github.com/pdiddy/veragate/internal/provider"
	"github.com/pdiddy/veragate/internal/stream"
	"github.com/pdiddy/veragate/internal/upload"
	"github.com/pdiddy/veragate/pkg/types"
)

const watcherOutput = `{"observations":[{"timestamp":"00:01:23","type":"spatial","description":"long shadows","confidence":0.9}],"summary":"evening scene"}`

func testConfig() types.PipelineConfig {
	return types.PipelineConfig{
		Poll: types.PollConfig{
			Interval:    time.Millisecond,
			MaxInterval: 2 * time.Millisecond,
			Multiplier:  2,
			MaxWait:     time.Second,
		},
	}
}

func artifacts() (types.EvidenceArtifact, types.EvidenceArtifact) {
	return types.EvidenceArtifact{Kind: types.ArtifactVideo, Name: "site.mp4", MediaType: "video/mp4", Data: []byte("video")},
		types.EvidenceArtifact{Kind: types.ArtifactDocument, Name: "spec.pdf", MediaType: "application/pdf", Data: []byte("%PDF-1.7")}
}

func newMock(auditorText string) *provider.MockProvider {
	return provider.NewMockProvider(map[string]string{
		types.DefaultWatcherModel: watcherOutput,
		types.DefaultAuditorModel: auditorText,
	})
}

func runPipeline(t *testing.T, cfg types.PipelineConfig, p provider.Provider, opts Options) (Outcome, *stream.Recorder) {
	t.Helper()
	video, doc := artifacts()
	rec := &stream.Recorder{}
	out := NewPipeline(cfg, p, opts).Run(context.Background(), "run-1", video, doc, rec)
	return out, rec
}

func TestRunEventSequence(t *testing.T) {
	out, rec := runPipeline(t, testConfig(), newMock(oneContradiction), Options{})
	require.NoError(t, out.Err)

	want := []types.ProgressEvent{
		types.StatusEvent(MsgUploading, 10),
		types.StatusEvent(MsgVideoUploaded, 30),
		types.StatusEvent(MsgPDFUploaded, 50),
		types.StatusEvent(MsgFilesProcessed, 60),
		types.ThinkingEvent(types.AgentWatcher, types.PhaseAnalyzing, MsgWatcherStart),
		types.ThinkingEvent(types.AgentWatcher, types.PhaseConcluding, MsgWatcherDone),
		types.StatusEvent(MsgVideoAnalysed, 75),
		types.ThinkingEvent(types.AgentAuditor, types.PhaseAnalyzing, MsgAuditorStart),
		types.ThinkingEvent(types.AgentAuditor, types.PhaseCrossReferencing, MsgCrossReferencing),
		types.ThinkingEvent(types.AgentAuditor, types.PhaseConcluding, "Forensic audit complete. Found 1 contradictions and 0 verified facts."),
		types.StatusEvent(MsgAuditComplete, 100),
	}
	events := rec.Events()
	require.Len(t, events, len(want)+1)
	assert.Equal(t, want, events[:len(want)])

	last := events[len(events)-1]
	assert.Equal(t, types.EventResult, last.Event)
	result := last.Data.(types.AuditResult)
	require.Len(t, result.Contradictions, 1)
	assert.Equal(t, types.SeverityMinor, result.Contradictions[0].Severity)
	assert.Equal(t, types.ContradictionTemporal, result.Contradictions[0].Type)
	assert.Empty(t, result.VerifiedFacts)

	assert.Equal(t, types.RunComplete, out.Status())
	assert.False(t, out.ParseFallback)
	require.NotNil(t, out.Result)
	assert.Len(t, out.Thinking, 5)
}

func TestRunScenarioOneMinorTemporalContradiction(t *testing.T) {
	mock := provider.NewMockProvider(map[string]string{
		types.DefaultWatcherModel: "no visible defects",
		types.DefaultAuditorModel: oneContradiction,
	})
	out, rec := runPipeline(t, testConfig(), mock, Options{})
	require.NoError(t, out.Err)

	require.NotNil(t, out.Result)
	require.Len(t, out.Result.Contradictions, 1)
	assert.Empty(t, out.Result.VerifiedFacts)
	assert.Equal(t, types.SeverityMinor, out.Result.Contradictions[0].Severity)
	assert.Equal(t, types.ContradictionTemporal, out.Result.Contradictions[0].Type)
	assert.Equal(t, AuditorInput("no visible defects"), mock.Requests[1].Prompt)

	events := rec.Events()
	concluding := events[len(events)-3].Data.(types.ThinkingPayload)
	assert.True(t, strings.HasSuffix(concluding.Content, "Found 1 contradictions and 0 verified facts."))
}

func TestRunConcludingMessageCountsBothLists(t *testing.T) {
	out, rec := runPipeline(t, testConfig(), newMock(twoContradictionsThreeFacts), Options{})
	require.NoError(t, out.Err)

	events := rec.Events()
	concluding := events[len(events)-3]
	assert.Equal(t, types.ThinkingEvent(types.AgentAuditor, types.PhaseConcluding,
		"Forensic audit complete. Found 2 contradictions and 3 verified facts."), concluding)

	result := events[len(events)-1].Data.(types.AuditResult)
	want := []types.VerifiedFact{
		{ID: "V001", VideoTimestamp: "00:00:03", PDFPage: 1, Description: "Site sign shows project name.", Evidence: "Sign reads ACME TOWER."},
		{ID: "V002", VideoTimestamp: "00:00:21", PDFPage: 2, Description: "Two cranes on site.", Evidence: "Two tower cranes visible."},
		{ID: "V003", VideoTimestamp: "00:00:55", PDFPage: 2, Description: "Perimeter fence installed.", Evidence: "Continuous fence along the road."},
	}
	require.Len(t, result.VerifiedFacts, len(want))
	for i, f := range result.VerifiedFacts {
		f.Raw = nil
		assert.Equal(t, want[i], f)
	}
	assert.Len(t, result.Contradictions, 2)
	assert.Len(t, out.Thinking, 5)
}

func TestRunProgressIsMonotonic(t *testing.T) {
	_, rec := runPipeline(t, testConfig(), newMock(oneContradiction), Options{})

	last := 0
	for _, ev := range rec.Events() {
		if ev.Event != types.EventStatus {
			continue
		}
		p := ev.Data.(types.StatusPayload).Progress
		assert.Greater(t, p, last)
		last = p
	}
	assert.Equal(t, 100, last)
}

func TestRunSendsStageInputs(t *testing.T) {
	mock := newMock(oneContradiction)
	runPipeline(t, testConfig(), mock, Options{})

	require.Len(t, mock.Requests, 2)
	w, a := mock.Requests[0], mock.Requests[1]

	assert.Equal(t, types.DefaultWatcherModel, w.Model)
	assert.Equal(t, WatcherPrompt, w.Prompt)
	assert.Equal(t, "video/mp4", w.File.MediaType)
	assert.False(t, w.JSONOutput)
	assert.Empty(t, w.ThinkingLevel)

	assert.Equal(t, types.DefaultAuditorModel, a.Model)
	assert.Equal(t, AuditorInput(watcherOutput), a.Prompt)
	assert.True(t, a.JSONOutput)
	assert.Equal(t, provider.ThinkingHigh, a.ThinkingLevel)

	require.Len(t, mock.Uploads, 2)
	assert.Equal(t, types.ArtifactVideo, mock.Uploads[0].Kind)
	assert.Equal(t, types.ArtifactDocument, mock.Uploads[1].Kind)
}

func TestRunParseFallback(t *testing.T) {
	m := metrics.New()
	out, rec := runPipeline(t, testConfig(), newMock("Sorry, I cannot help with that."), Options{Metrics: m})

	require.NoError(t, out.Err)
	assert.True(t, out.ParseFallback)

	events := rec.Events()
	last := events[len(events)-1]
	assert.Equal(t, types.EventResult, last.Event)
	assert.Equal(t, types.DefaultAuditResult(), last.Data.(types.AuditResult))

	concluding := events[len(events)-3]
	assert.Equal(t, "Forensic audit complete. Found 0 contradictions and 0 verified facts.", concluding.Data.(types.ThinkingPayload).Content)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParseFallbacks))
}

func TestRunEmptyAuditorResponse(t *testing.T) {
	out, rec := runPipeline(t, testConfig(), newMock(""), Options{})

	require.NoError(t, out.Err)
	assert.False(t, out.ParseFallback)
	tags := rec.Tags()
	assert.Equal(t, types.EventResult, tags[len(tags)-1])
	assert.Equal(t, 0, len(out.Result.Contradictions))
}

func TestRunWatcherFailureAborts(t *testing.T) {
	mock := newMock(oneContradiction)
	mock.GenerateErrors = []error{&provider.APIError{Op: "generating content", StatusCode: 500, Body: "internal"}}

	out, rec := runPipeline(t, testConfig(), mock, Options{})

	require.Error(t, out.Err)
	assert.Equal(t, types.RunError, out.Status())
	assert.Equal(t, 1, mock.GenerateCalls())

	events := rec.Events()
	last := events[len(events)-1]
	assert.Equal(t, types.EventError, last.Event)
	assert.Contains(t, last.Data.(types.ErrorPayload).Message, "internal")
	for _, ev := range events[:len(events)-1] {
		assert.False(t, ev.Event.Terminal())
		if ev.Event == types.EventStatus {
			assert.Less(t, ev.Data.(types.StatusPayload).Progress, 75)
		}
	}
}

func TestRunAuditorRetryPolicy(t *testing.T) {
	mock := newMock(oneContradiction)
	mock.GenerateErrors = []error{nil, &provider.APIError{StatusCode: 503}}

	cfg := testConfig()
	cfg.Auditor.MaxRetries = 1
	cfg.Auditor.RetryBackoff = time.Millisecond
	out, _ := runPipeline(t, cfg, mock, Options{})

	require.NoError(t, out.Err)
	assert.Equal(t, 3, mock.GenerateCalls())
}

func TestRunStuckUploadTimesOut(t *testing.T) {
	mock := newMock(oneContradiction)
	mock.PendingPolls = -1

	cfg := testConfig()
	cfg.Poll.MaxWait = 20 * time.Millisecond
	out, rec := runPipeline(t, cfg, mock, Options{})

	assert.ErrorIs(t, out.Err, upload.ErrUploadTimeout)
	assert.Equal(t, []types.EventTag{types.EventStatus, types.EventError}, rec.Tags())
	assert.Equal(t, 0, mock.GenerateCalls())
}

func TestRunProcessingFailedOnDocument(t *testing.T) {
	mock := newMock(oneContradiction)
	mock.FailFiles = map[string]bool{"spec.pdf": true}

	out, rec := runPipeline(t, testConfig(), mock, Options{})

	assert.ErrorIs(t, out.Err, upload.ErrProcessingFailed)
	assert.Equal(t, []types.EventTag{types.EventStatus, types.EventStatus, types.EventError}, rec.Tags())
}

type noKey struct{ *provider.MockProvider }

func (noKey) HasCredential() bool { return false }

func TestRunMissingCredential(t *testing.T) {
	mock := newMock(oneContradiction)
	out, rec := runPipeline(t, testConfig(), noKey{mock}, Options{})

	assert.ErrorIs(t, out.Err, provider.ErrMissingCredential)
	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, types.ErrorEvent("GEMINI_API_KEY environment variable is not set"), events[0])
	assert.Empty(t, mock.Uploads)
}

func TestRunMissingArtifact(t *testing.T) {
	video, _ := artifacts()
	rec := &stream.Recorder{}
	out := NewPipeline(testConfig(), newMock(""), Options{}).Run(context.Background(), "r", video, types.EvidenceArtifact{}, rec)

	assert.ErrorIs(t, out.Err, ErrMissingArtifact)
	assert.Equal(t, []types.EventTag{types.EventError}, rec.Tags())
}

type panicProvider struct{ *provider.MockProvider }

func (panicProvider) Generate(context.Context, provider.GenerateRequest) (string, error) {
	panic("nil map")
}

func TestRunRecoversPanic(t *testing.T) {
	out, rec := runPipeline(t, testConfig(), panicProvider{newMock("")}, Options{})

	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "internal error")
	tags := rec.Tags()
	assert.Equal(t, types.EventError, tags[len(tags)-1])
	assert.Len(t, out.Thinking, 1)
}

func TestRunTimeout(t *testing.T) {
	mock := newMock(oneContradiction)
	mock.PendingPolls = -1

	cfg := testConfig()
	cfg.Poll.MaxWait = time.Minute
	cfg.RunTimeout = 20 * time.Millisecond
	out, _ := runPipeline(t, cfg, mock, Options{})

	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
}

type recordingArchiver struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (a *recordingArchiver) Archive(_ context.Context, runID string, artifact types.EvidenceArtifact) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.names = append(a.names, runID+"/"+string(artifact.Kind)+"/"+artifact.Name)
	return a.err
}

func TestRunArchivesEvidence(t *testing.T) {
	arch := &recordingArchiver{err: errors.New("bucket unreachable")}
	out, _ := runPipeline(t, testConfig(), newMock(oneContradiction), Options{Archiver: arch})

	require.NoError(t, out.Err)
	assert.Equal(t, []string{"run-1/video/site.mp4", "run-1/document/spec.pdf"}, arch.names)
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	p := NewPipeline(testConfig(), newMock(oneContradiction), Options{})
	video, doc := artifacts()

	var wg sync.WaitGroup
	recs := make([]*stream.Recorder, 8)
	for i := range recs {
		recs[i] = &stream.Recorder{}
		wg.Add(1)
		go func(rec *stream.Recorder) {
			defer wg.Done()
			p.Run(context.Background(), "r", video, doc, rec)
		}(recs[i])
	}
	wg.Wait()

	for _, rec := range recs {
		tags := rec.Tags()
		require.Len(t, tags, 12)
		assert.Equal(t, types.EventResult, tags[11])
	}
}
