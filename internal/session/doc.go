// Package session implements the conversation engine: session identity,
// the per-send streaming state machine, transcript management, retrying
// persistence, and derived metadata (title, preferences, artifacts).
//
// # Architecture
//
// The Engine is the per-process coordinator. It owns exactly one active
// session at a time and wires together five collaborators:
//
//	Engine
//	├── Guard          mutual exclusion over sends (lock/unlock)
//	├── Transcript     the shared mutable message sequence
//	├── Synchronizer   retrying save/load against the persistence endpoint
//	├── Extractor      throttled preference extraction + artifact scan
//	└── api clients    streaming chat, persistence, title, summarize
//
// # Send state machine
//
// Every SendMessage call runs the same sequence:
//
//	Idle → Locked → AwaitingFirstToken → Streaming → (Complete | Error) → Idle
//
// On entry the guard is acquired (a second send while locked is rejected
// outright, no queueing) and the user message plus a "thinking"
// placeholder are committed in a single atomic transcript update. Tokens
// arriving during the first-token dwell window are buffered and flushed
// atomically when the dwell elapses; afterwards each token appends to the
// last message in arrival order. On the terminal frame the guard is
// released and three independent side-effects are scheduled: a deferred
// full-transcript save, conditional title regeneration, and preference/
// artifact extraction. Each may fail without affecting the others.
//
// # Invariants
//
//   - At most one outstanding send per session.
//   - The transcript never holds two "thinking" placeholders.
//   - Transcript mutation happens only through pure transforms
//     (append, or replace of the last element) under the store's lock.
//   - The guard is released exactly once per send attempt, on every exit
//     path including panics recovered into errors.
//   - A session's persistence handle is torn down (timers stopped)
//     strictly before a handle for a different id is constructed.
//
// # Load tracking
//
// Session loads are guarded by an explicit three-state tracker
// (NotLoaded, Loading(id), Loaded(id)) so duplicate or overlapping loads
// for the same id are no-ops. A failed load resets the tracker, permitting
// retry, and falls back to the configured welcome message.
package session
