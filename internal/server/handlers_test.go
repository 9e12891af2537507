package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/converse-ai/converse/internal/api"
	"github.com/converse-ai/converse/internal/event"
	"github.com/converse-ai/converse/internal/session"
	"github.com/converse-ai/converse/pkg/types"
)

// scriptedBackend satisfies session.Backend for handler tests.
type scriptedBackend struct {
	tokens   []string
	chatErr  error
	loadErr  error
	loaded   *types.PersistedSession
	deleted  []string
	saved    int
	titleErr error
}

func (b *scriptedBackend) Chat(_ context.Context, _ *types.ChatRequest, onToken api.TokenFunc) error {
	if b.chatErr != nil {
		return b.chatErr
	}
	for _, tok := range b.tokens {
		onToken(tok)
	}
	return nil
}

func (b *scriptedBackend) SaveChatSession(_ context.Context, _ *types.SaveSessionRequest) error {
	b.saved++
	return nil
}

func (b *scriptedBackend) LoadChatSession(_ context.Context, _ string) (*types.PersistedSession, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.loaded, nil
}

func (b *scriptedBackend) DeleteChatSession(_ context.Context, id string) error {
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *scriptedBackend) GenerateTitle(_ context.Context, _ *types.TitleRequest) (string, error) {
	return "", b.titleErr
}

func (b *scriptedBackend) Summarize(_ context.Context, _ *types.SummarizeRequest) (*types.SummarizeResponse, error) {
	return &types.SummarizeResponse{Summary: "a summary"}, nil
}

func setupTestServer(t *testing.T, be session.Backend) *Server {
	t.Helper()
	event.Reset()

	cfg := &types.Config{
		Model:           "gpt-4o-mini",
		WelcomeMessage:  "Hello! How can I help you today?",
		ThinkingDwellMs: 1,
		SaveDebounceMs:  5,
	}
	engine := session.NewEngine(cfg, be, api.StaticIdentity("user-1"))
	t.Cleanup(engine.Close)

	return New(DefaultConfig(), engine)
}

func TestGetSession_NoneActive(t *testing.T) {
	srv := setupTestServer(t, &scriptedBackend{})

	req := httptest.NewRequest("GET", "/session", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestCreateSession(t *testing.T) {
	srv := setupTestServer(t, &scriptedBackend{})

	req := httptest.NewRequest("POST", "/session", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var sess types.Session
	if err := json.NewDecoder(w.Body).Decode(&sess); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if sess.ID == "" {
		t.Error("Expected a session id")
	}

	// The new session is now the active one.
	req = httptest.NewRequest("GET", "/session", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestGetMessages_IncludesWelcome(t *testing.T) {
	srv := setupTestServer(t, &scriptedBackend{})
	srv.engine.NewSession()

	req := httptest.NewRequest("GET", "/session/message", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var messages []types.Message
	if err := json.NewDecoder(w.Body).Decode(&messages); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(messages) != 1 || !messages[0].Metadata.IsWelcome {
		t.Errorf("Expected a single welcome message, got %d messages", len(messages))
	}
}

func TestSendMessage(t *testing.T) {
	srv := setupTestServer(t, &scriptedBackend{tokens: []string{"Hi", " there"}})
	srv.engine.NewSession()

	body, _ := json.Marshal(SendMessageRequest{Content: "Hello"})
	req := httptest.NewRequest("POST", "/session/message", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var messages []types.Message
	if err := json.NewDecoder(w.Body).Decode(&messages); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	last := messages[len(messages)-1]
	if last.Content != "Hi there" {
		t.Errorf("Expected assistant reply %q, got %q", "Hi there", last.Content)
	}
}

func TestSendMessage_Empty(t *testing.T) {
	srv := setupTestServer(t, &scriptedBackend{})
	srv.engine.NewSession()

	body, _ := json.Marshal(SendMessageRequest{Content: "   "})
	req := httptest.NewRequest("POST", "/session/message", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestSendMessage_NoSession(t *testing.T) {
	srv := setupTestServer(t, &scriptedBackend{})

	body, _ := json.Marshal(SendMessageRequest{Content: "Hello"})
	req := httptest.NewRequest("POST", "/session/message", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestSendMessage_InvalidJSON(t *testing.T) {
	srv := setupTestServer(t, &scriptedBackend{})
	srv.engine.NewSession()

	req := httptest.NewRequest("POST", "/session/message", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestLoadSession(t *testing.T) {
	be := &scriptedBackend{loaded: &types.PersistedSession{
		ID:       "sess-9",
		Title:    "older chat",
		Messages: []types.Message{{ID: "m1", Role: types.RoleUser, Content: "earlier"}},
	}}
	srv := setupTestServer(t, be)

	req := httptest.NewRequest("POST", "/session/sess-9/load", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var messages []types.Message
	if err := json.NewDecoder(w.Body).Decode(&messages); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "earlier" {
		t.Errorf("Expected the restored transcript, got %+v", messages)
	}
}

func TestDeleteSession(t *testing.T) {
	be := &scriptedBackend{}
	srv := setupTestServer(t, be)
	sess := srv.engine.NewSession()

	req := httptest.NewRequest("DELETE", "/session/"+sess.ID, nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if len(be.deleted) != 1 || be.deleted[0] != sess.ID {
		t.Errorf("Expected delete of %s, got %v", sess.ID, be.deleted)
	}
}

func TestGetSummary(t *testing.T) {
	srv := setupTestServer(t, &scriptedBackend{})
	srv.engine.NewSession()

	req := httptest.NewRequest("GET", "/session/summary", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp types.SummarizeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if resp.Summary != "a summary" {
		t.Errorf("Unexpected summary %q", resp.Summary)
	}
}

func TestHealth(t *testing.T) {
	srv := setupTestServer(t, &scriptedBackend{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}
