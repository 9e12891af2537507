package session

import (
	"context"
	"unicode/utf8"

	"github.com/converse-ai/converse/internal/event"
	"github.com/converse-ai/converse/pkg/types"
)

// updateTitle generates or regenerates the session title. The first
// exchange of a new session always attempts generation; later exchanges
// attempt regeneration but keep the stored title when generation fails or
// produces nothing. A good title is never overwritten by an empty one.
func (e *Engine) updateTitle(ctx context.Context, sess *types.Session, transcript *Transcript, firstExchange bool) {
	if _, ok := e.identity.UserID(); !ok && !firstExchange {
		return
	}

	title, err := e.backend.GenerateTitle(ctx, &types.TitleRequest{
		Messages:                  transcript.Outbound(),
		SessionID:                 sess.ID,
		PreserveExistingOnFailure: true,
	})
	if err != nil || title == "" {
		if err != nil {
			e.log.Debug().Err(err).Str("session", sess.ID).Msg("title generation failed, keeping current")
		}
		return
	}

	title = truncate(title, 100)

	e.mu.Lock()
	if e.session == nil || e.session.ID != sess.ID {
		// Session changed while generation was in flight.
		e.mu.Unlock()
		return
	}
	e.session.Title = title
	info := e.session
	e.mu.Unlock()

	event.PublishSync(event.Event{
		Type: event.TitleUpdated,
		Data: event.TitleUpdatedData{SessionID: sess.ID, Title: title},
	})
	event.Publish(event.Event{
		Type: event.SessionUpdated,
		Data: event.SessionUpdatedData{Info: info},
	})
}

// truncate shortens s to at most max bytes, backing off to a rune
// boundary so multi-byte characters are never split, and appends an
// ellipsis when anything was removed.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
