// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/veragate/pkg/types"
)

func TestFrameFormat(t *testing.T) {
	tests := []struct {
		name string
		ev   types.ProgressEvent
		want string
	}{
		{
			name: "status",
			ev:   types.StatusEvent("Video uploaded", 30),
			want: `data: {"event":"status","data":{"message":"Video uploaded","progress":30}}` + "\n\n",
		},
		{
			name: "thinking",
			ev:   types.ThinkingEvent(types.AgentAuditor, types.PhaseCrossReferencing, "Comparing"),
			want: `data: {"event":"thinking","data":{"agent":"auditor","phase":"cross-referencing","content":"Comparing"}}` + "\n\n",
		},
		{
			name: "fallback result",
			ev:   types.ResultEvent(types.DefaultAuditResult()),
			want: `data: {"event":"result","data":{"summary":"Analysis complete","contradictions":[],"verifiedFacts":[]}}` + "\n\n",
		},
		{
			name: "error",
			ev:   types.ErrorEvent("boom"),
			want: `data: {"event":"error","data":{"message":"boom"}}` + "\n\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Frame(tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestSSEHeadersAndFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	s := NewSSE(rec)

	require.NoError(t, s.Emit(types.StatusEvent("Uploading files to Gemini...", 10)))
	require.NoError(t, s.Emit(types.ErrorEvent("boom")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.True(t, rec.Flushed)
	assert.Equal(t, 2, strings.Count(rec.Body.String(), "data: "))
	assert.True(t, s.Closed())
}

func TestSSERejectsAfterTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriter(&buf)

	require.NoError(t, s.Emit(types.ResultEvent(types.DefaultAuditResult())))
	err := s.Emit(types.StatusEvent("late", 100))
	assert.ErrorIs(t, err, ErrClosed)
	err = s.Emit(types.ErrorEvent("late"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 1, strings.Count(buf.String(), "data: "))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Emit(types.StatusEvent("a", 10)))
	require.NoError(t, r.Emit(types.ErrorEvent("b")))
	assert.ErrorIs(t, r.Emit(types.StatusEvent("c", 20)), ErrClosed)

	assert.Equal(t, []types.EventTag{types.EventStatus, types.EventError}, r.Tags())
	assert.Len(t, r.Events(), 2)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("client gone") }

func TestTeeDeliversToAll(t *testing.T) {
	var a, b Recorder
	bad := NewWriter(failingWriter{})
	tee := Tee(bad, &a, &b)

	err := tee.Emit(types.StatusEvent("x", 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client gone")
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}
