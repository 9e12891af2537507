// Package types provides the core data types for the Converse engine.
package types

// Session represents a conversation identified by a stable id.
// The id is immutable once bound; a new id implies a new session.
type Session struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Model     string `json:"model"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	IsActive  bool   `json:"isActive"`
}

// SessionSummary is the derived summary stored alongside a session.
type SessionSummary struct {
	SessionID           string   `json:"sessionId"`
	Summary             string   `json:"summary"`
	KeyTopics           []string `json:"keyTopics,omitempty"`
	UserPreferences     string   `json:"userPreferences,omitempty"`
	LearningPreferences []string `json:"learningPreferences,omitempty"`
	UpdatedAt           int64    `json:"updatedAt"`
}
