// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EventTag names the kind of a ProgressEvent on the wire.
type EventTag string

const (
	EventStatus   EventTag = "status"
	EventThinking EventTag = "thinking"
	EventResult   EventTag = "result"
	EventError    EventTag = "error"
)

// Terminal reports whether no further events may follow this tag.
func (t EventTag) Terminal() bool {
	return t == EventResult || t == EventError
}

// Agent identifies which stage produced a thinking event.
type Agent string

const (
	AgentWatcher Agent = "watcher"
	AgentAuditor Agent = "auditor"
)

// Phase is the step within an agent's work.
type Phase string

const (
	PhaseAnalyzing        Phase = "analyzing"
	PhaseCrossReferencing Phase = "cross-referencing"
	PhaseConcluding       Phase = "concluding"
)

// StatusPayload reports coarse pipeline progress.
type StatusPayload struct {
	Message  string `json:"message" yaml:"message"`
	Progress int    `json:"progress" yaml:"progress"`
}

// ThinkingPayload is one entry of the agents' narrative log.
type ThinkingPayload struct {
	Agent   Agent  `json:"agent" yaml:"agent"`
	Phase   Phase  `json:"phase" yaml:"phase"`
	Content string `json:"content" yaml:"content"`
}

// ErrorPayload carries a human-readable failure message.
type ErrorPayload struct {
	Message string `json:"message" yaml:"message"`
}

// ProgressEvent is one frame of the streamed lifecycle narrative. Data holds
// a StatusPayload, ThinkingPayload, AuditResult, or ErrorPayload depending
// on Event.
type ProgressEvent struct {
	Event EventTag `json:"event"`
	Data  any      `json:"data"`
}

// StatusEvent builds a status event.
func StatusEvent(message string, progress int) ProgressEvent {
	return ProgressEvent{Event: EventStatus, Data: StatusPayload{Message: message, Progress: progress}}
}

// ThinkingEvent builds a thinking event.
func ThinkingEvent(agent Agent, phase Phase, content string) ProgressEvent {
	return ProgressEvent{Event: EventThinking, Data: ThinkingPayload{Agent: agent, Phase: phase, Content: content}}
}

// ResultEvent builds the terminal result event.
func ResultEvent(result AuditResult) ProgressEvent {
	return ProgressEvent{Event: EventResult, Data: result}
}

// ErrorEvent builds the terminal error event.
func ErrorEvent(message string) ProgressEvent {
	return ProgressEvent{Event: EventError, Data: ErrorPayload{Message: message}}
}
