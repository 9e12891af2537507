package event

import "github.com/converse-ai/converse/pkg/types"

// EventType represents the type of event.
type EventType string

const (
	SessionCreated     EventType = "session.created"
	SessionUpdated     EventType = "session.updated"
	SessionDeleted     EventType = "session.deleted"
	SessionLoaded      EventType = "session.loaded"
	TranscriptUpdated  EventType = "transcript.updated"
	StreamDelta        EventType = "stream.delta"
	TitleUpdated       EventType = "title.updated"
	PreferencesUpdated EventType = "preferences.updated"
	Notice             EventType = "notice"
)

// Event represents an event to be published.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	Info *types.Session `json:"info"`
}

// SessionUpdatedData is the data for session.updated events.
type SessionUpdatedData struct {
	Info *types.Session `json:"info"`
}

// SessionDeletedData is the data for session.deleted events.
type SessionDeletedData struct {
	SessionID string `json:"sessionID"`
}

// SessionLoadedData is the data for session.loaded events.
type SessionLoadedData struct {
	SessionID string `json:"sessionID"`
	Messages  int    `json:"messages"`
}

// TranscriptUpdatedData is the data for transcript.updated events. It
// carries the full transcript after an atomic update so subscribers never
// observe an inconsistent intermediate state.
type TranscriptUpdatedData struct {
	SessionID string          `json:"sessionID"`
	Messages  []types.Message `json:"messages"`
}

// StreamDeltaData is the data for stream.delta events emitted per token.
type StreamDeltaData struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	Delta     string `json:"delta"`
}

// TitleUpdatedData is the data for title.updated events.
type TitleUpdatedData struct {
	SessionID string `json:"sessionID"`
	Title     string `json:"title"`
}

// PreferencesUpdatedData is the data for preferences.updated events.
type PreferencesUpdatedData struct {
	SessionID string                `json:"sessionID"`
	Summary   *types.SessionSummary `json:"summary"`
}

// NoticeData is the data for transient, non-fatal user-facing notices.
type NoticeData struct {
	SessionID string `json:"sessionID,omitempty"`
	Severity  string `json:"severity"` // "info" | "warning" | "error"
	Message   string `json:"message"`
}
