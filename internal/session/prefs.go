package session

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/converse-ai/converse/internal/api"
	"github.com/converse-ai/converse/internal/cache"
	"github.com/converse-ai/converse/internal/event"
	"github.com/converse-ai/converse/internal/logging"
	"github.com/converse-ai/converse/pkg/types"
)

// DefaultPrefsThrottle bounds preference extraction to one run per
// window per session.
const DefaultPrefsThrottle = 30 * time.Second

// preferenceCue matches affinity/aversion verbs that suggest the user
// expressed a preference worth learning.
var preferenceCue = regexp.MustCompile(`(?i)\b(love|like|enjoy|prefer|favorite|favourite|hate|dislike|avoid|interested in|can't stand|cannot stand)\b`)

// Extractor derives preferences and artifacts from finished exchanges.
// Extraction is best-effort: it never interrupts the conversation, and
// the summarization endpoint failing degrades to a locally synthesized
// fallback summary. Throttling is wall-clock, scoped to the bound
// session: the engine resets the window whenever it rebinds.
type Extractor struct {
	client   Extracting
	identity api.Identity
	throttle *Throttle
	log      zerolog.Logger
}

// NewExtractor creates an extractor with the given throttle window.
func NewExtractor(client Extracting, identity api.Identity, window time.Duration) *Extractor {
	return &Extractor{
		client:   client,
		identity: identity,
		throttle: NewThrottle(window),
		log:      logging.Component("extractor"),
	}
}

// Extract runs artifact extraction on the final assistant message and,
// when the preference heuristic fires and the throttle permits, asks the
// summarization endpoint for learned preferences.
func (x *Extractor) Extract(ctx context.Context, sessionID string, transcript *Transcript, summaries *cache.Cache, prefs *cache.PrefsCache) {
	x.extractArtifacts(transcript)

	if _, ok := x.identity.UserID(); !ok {
		return
	}

	if !x.hasPreferenceCue(transcript) {
		return
	}
	if !x.throttle.Allow() {
		x.log.Debug().Str("session", sessionID).Msg("preference extraction throttled")
		return
	}

	outbound := transcript.Outbound()
	resp, err := x.client.Summarize(ctx, &types.SummarizeRequest{
		Messages:  outbound,
		SessionID: sessionID,
	})
	if err != nil {
		x.log.Debug().Err(err).Str("session", sessionID).Msg("summarize failed, using fallback")
		resp = fallbackSummary(outbound)
	}

	summary := &types.SessionSummary{
		SessionID:           sessionID,
		Summary:             resp.Summary,
		KeyTopics:           resp.KeyTopics,
		UserPreferences:     resp.UserPreferences,
		LearningPreferences: resp.LearningPreferences,
		UpdatedAt:           time.Now().UnixMilli(),
	}

	// Drop the stale cached copies so the next read refetches.
	summaries.Invalidate(summaryKey(sessionID))
	prefs.Invalidate()

	event.Publish(event.Event{
		Type: event.PreferencesUpdated,
		Data: event.PreferencesUpdatedData{SessionID: sessionID, Summary: summary},
	})
}

// hasPreferenceCue scans the latest exchange for affinity/aversion verbs.
// Only the tail is inspected; earlier context was already analyzed by a
// previous run.
func (x *Extractor) hasPreferenceCue(transcript *Transcript) bool {
	messages := transcript.Messages()
	start := len(messages) - 2
	if start < 0 {
		start = 0
	}
	for _, m := range messages[start:] {
		if m.IsSynthetic() {
			continue
		}
		if preferenceCue.MatchString(m.Content) {
			return true
		}
	}
	return false
}

// extractArtifacts scans the finished assistant message for fenced code
// blocks and attaches them as artifacts.
func (x *Extractor) extractArtifacts(transcript *Transcript) {
	last, ok := transcript.Last()
	if !ok || last.Role != types.RoleAssistant || last.IsSynthetic() {
		return
	}

	artifacts := scanArtifacts(last.Content)
	if len(artifacts) == 0 {
		return
	}

	transcript.ReplaceLast(func(m types.Message) types.Message {
		m.Artifacts = artifacts
		return m
	})
}

var fencePattern = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\n(.*?)```")

// scanArtifacts pulls fenced code blocks out of assistant content.
func scanArtifacts(content string) []types.Artifact {
	matches := fencePattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	artifacts := make([]types.Artifact, 0, len(matches))
	for _, m := range matches {
		code := strings.TrimRight(m[2], "\n")
		if strings.TrimSpace(code) == "" {
			continue
		}
		artifacts = append(artifacts, types.Artifact{
			ID:       generateID(),
			Kind:     "code",
			Language: m[1],
			Content:  code,
		})
	}
	return artifacts
}

// fallbackSummary synthesizes a local summary when the endpoint fails.
func fallbackSummary(messages []types.Message) *types.SummarizeResponse {
	var topics []string
	var lastUser string
	for _, m := range messages {
		if m.Role == types.RoleUser {
			lastUser = m.Content
		}
	}
	if lastUser != "" {
		topics = append(topics, truncate(lastUser, 120))
	}
	return &types.SummarizeResponse{
		Summary:   "Conversation in progress.",
		KeyTopics: topics,
	}
}
