package types

// ChatRequest is the payload sent to the streaming chat endpoint.
type ChatRequest struct {
	Messages      []Message `json:"messages"`
	Model         string    `json:"model"`
	Stream        bool      `json:"stream"`
	Tone          string    `json:"tone,omitempty"`
	UseMemory     bool      `json:"useMemory,omitempty"`
	MemoryContext string    `json:"memoryContext,omitempty"`
}

// StreamFrame is a single decoded frame from the token stream.
type StreamFrame struct {
	Content string `json:"content"`
}

// SaveSessionRequest is the payload for the session persistence endpoint.
type SaveSessionRequest struct {
	ID       string    `json:"id"`
	Title    string    `json:"title,omitempty"`
	Messages []Message `json:"messages"`
	Model    string    `json:"model"`
}

// SessionEnvelope wraps a persisted session returned by GET.
type SessionEnvelope struct {
	Session *PersistedSession `json:"session"`
}

// PersistedSession is the stored form of a session plus its transcript.
type PersistedSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	UpdatedAt int64     `json:"updatedAt"`
}

// TitleRequest asks the title endpoint for a session title.
type TitleRequest struct {
	Messages  []Message `json:"messages"`
	SessionID string    `json:"sessionId"`
	// PreserveExistingOnFailure tells the endpoint the caller keeps its
	// current title when generation fails; it is always true here.
	PreserveExistingOnFailure bool `json:"preserveExistingOnFailure"`
}

// TitleResponse is the title endpoint's reply.
type TitleResponse struct {
	Title string `json:"title"`
}

// SummarizeRequest asks the summarization endpoint for derived preferences.
type SummarizeRequest struct {
	Messages  []Message `json:"messages"`
	SessionID string    `json:"sessionId"`
}

// SummarizeResponse is the summarization endpoint's reply.
type SummarizeResponse struct {
	Summary             string   `json:"summary"`
	KeyTopics           []string `json:"keyTopics,omitempty"`
	UserPreferences     string   `json:"userPreferences,omitempty"`
	LearningPreferences []string `json:"learningPreferences,omitempty"`
}
