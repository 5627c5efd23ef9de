// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stream delivers progress events to a client. Every emitter
// accepts exactly one terminal event (result or error) and rejects
// anything after it.
package stream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/segmentio/encoding/json"

	"github.com/pdiddy/veragate/pkg/types"
)

// ErrClosed is returned when an event is emitted after the terminal event.
var ErrClosed = errors.New("stream already terminated")

// Emitter receives the ordered events of one run.
type Emitter interface {
	Emit(ev types.ProgressEvent) error
}

// Frame encodes ev as one server-sent-events frame:
// "data: {"event":<tag>,"data":<payload>}\n\n".
func Frame(ev types.ProgressEvent) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", ev.Event, err)
	}
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, "\n\n"...)
	return buf, nil
}

// SetHeaders writes the response headers of an event stream.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
}

// SSE writes frames to an HTTP response, flushing after each one.
type SSE struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

// NewSSE sets the stream headers, sends the 200 status line and returns
// an emitter over w.
func NewSSE(w http.ResponseWriter) *SSE {
	SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	s := &SSE{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
		f.Flush()
	}
	return s
}

// NewWriter returns an emitter that writes frames to w without HTTP
// headers.
func NewWriter(w io.Writer) *SSE {
	s := &SSE{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

func (s *SSE) Emit(ev types.ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	frame, err := Frame(ev)
	if err != nil {
		return err
	}
	if ev.Event.Terminal() {
		s.closed = true
	}
	if _, err := s.w.Write(frame); err != nil {
		return fmt.Errorf("writing %s event: %w", ev.Event, err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Closed reports whether the terminal event has been written.
func (s *SSE) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []types.ProgressEvent
	closed bool
}

func (r *Recorder) Emit(ev types.ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.events = append(r.events, ev)
	if ev.Event.Terminal() {
		r.closed = true
	}
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []types.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.ProgressEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Tags returns the event tags in order.
func (r *Recorder) Tags() []types.EventTag {
	r.mu.Lock()
	defer r.mu.Unlock()
	tags := make([]types.EventTag, len(r.events))
	for i, ev := range r.events {
		tags[i] = ev.Event
	}
	return tags
}

// Func adapts a function to Emitter.
type Func func(types.ProgressEvent) error

func (f Func) Emit(ev types.ProgressEvent) error { return f(ev) }

// Tee forwards each event to every emitter in order. The first error is
// returned after all emitters have seen the event.
func Tee(emitters ...Emitter) Emitter {
	return Func(func(ev types.ProgressEvent) error {
		var first error
		for _, e := range emitters {
			if err := e.Emit(ev); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
