package types

import "strings"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single entry in a session transcript.
type Message struct {
	ID          string          `json:"id"`
	Role        string          `json:"role"` // "user" | "assistant" | "system"
	Content     string          `json:"content"`
	Timestamp   int64           `json:"timestamp"`
	Metadata    MessageMetadata `json:"metadata,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	Artifacts   []Artifact      `json:"artifacts,omitempty"`
}

// MessageMetadata carries per-message details that are not part of the
// visible content.
type MessageMetadata struct {
	Model string `json:"model,omitempty"`
	// IsThinking marks the live placeholder shown while the assistant
	// response is still streaming. At most one message per session may
	// have it set.
	IsThinking bool `json:"isThinking,omitempty"`
	// IsWelcome marks the synthetic greeting injected into an empty
	// transcript. Welcome messages are never sent to the backend.
	IsWelcome bool `json:"isWelcome,omitempty"`
	// IsError marks a synthesized error message that replaced a failed
	// exchange, preserving any partially streamed content.
	IsError bool `json:"isError,omitempty"`
	Tokens  int  `json:"tokens,omitempty"`
}

// Attachment is an opaque reference to uploaded content. Upload mechanics
// live outside the engine; only the reference travels with the message.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Mime string `json:"mime,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Artifact is derived content extracted from a finished assistant message.
type Artifact struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"` // e.g. "code", "list", "document"
	Language string `json:"language,omitempty"`
	Content  string `json:"content"`
}

// IsBlank reports whether the message has no visible content and no
// attachments. Blank messages are filtered from outbound requests.
func (m *Message) IsBlank() bool {
	return strings.TrimSpace(m.Content) == "" && len(m.Attachments) == 0
}

// IsSynthetic reports whether the message was fabricated locally (welcome
// greeting, thinking placeholder, error notice) rather than exchanged with
// the backend.
func (m *Message) IsSynthetic() bool {
	return m.Metadata.IsWelcome || m.Metadata.IsThinking || m.Metadata.IsError
}
