package types

// Config holds the engine configuration merged from config files and
// environment variables.
type Config struct {
	// BaseURL is the root of the chat backend (streaming, persistence,
	// title and summarization endpoints hang off it).
	BaseURL string `json:"baseUrl,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`

	Model string `json:"model,omitempty"`
	Tone  string `json:"tone,omitempty"`

	// UseMemory forwards the learned-preference context with each request.
	UseMemory bool `json:"useMemory,omitempty"`

	// WelcomeMessage is injected as the sole assistant message into an
	// empty transcript.
	WelcomeMessage string `json:"welcomeMessage,omitempty"`

	// Timings. Zero values fall back to engine defaults.
	ThinkingDwellMs   int `json:"thinkingDwellMs,omitempty"`
	SaveDebounceMs    int `json:"saveDebounceMs,omitempty"`
	PrefsThrottleSec  int `json:"prefsThrottleSec,omitempty"`
	CacheTTLSec       int `json:"cacheTtlSec,omitempty"`
	InactivityTimeout int `json:"inactivityTimeoutSec,omitempty"`

	Server ServerConfig `json:"server,omitempty"`
}

// ServerConfig configures the local control surface.
type ServerConfig struct {
	Hostname string `json:"hostname,omitempty"`
	Port     int    `json:"port,omitempty"`
}
