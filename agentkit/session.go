// Copyright (c) Microsoft. All rights reserved.

package agentkit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the ordered transcript of one conversation. It enforces gapless
// sequence indices and tool-call/tool-result pairing, and exposes a sliding
// window of recent turns for the model.
//
// A Session belongs to a single chat; it is safe for concurrent use but the
// [Dispatcher] allows only one round on it at a time.
type Session struct {
	mu       sync.Mutex
	id       string
	window   int
	clock    func() time.Time
	turns    []Turn
	pending  []ToolCall
	roundIDs map[string]bool
	busy     bool
	metadata map[string]string
}

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithWindow sets how many recent turns [Session.ActiveContext] returns.
// Zero or negative means unbounded.
func WithWindow(n int) SessionOption {
	return func(s *Session) { s.window = n }
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithClock sets the time source used to stamp turns.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithMetadata attaches free-form labels to the session. They survive
// [Session.Reset].
func WithMetadata(md map[string]string) SessionOption {
	return func(s *Session) {
		s.metadata = make(map[string]string, len(md))
		for k, v := range md {
			s.metadata[k] = v
		}
	}
}

// NewSession creates an empty session with a generated ID.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		id:       uuid.NewString(),
		clock:    time.Now,
		roundIDs: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Window returns the configured sliding-window size.
func (s *Session) Window() int { return s.window }

// Append adds a turn to the transcript and returns it with its sequence
// index and timestamp filled in. A zero Sequence is assigned automatically;
// a non-zero one must equal the next index.
//
// Append fails with [ErrProtocolSequence] when:
//   - a user or agent turn arrives while tool calls are still unanswered;
//   - a tool call has no ID, or reuses an ID from the current round;
//   - a tool result does not answer the oldest pending call.
func (s *Session) Append(t Turn) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(t)
}

func (s *Session) appendLocked(t Turn) (Turn, error) {
	next := len(s.turns) + 1
	if t.Sequence != 0 && t.Sequence != next {
		return Turn{}, fmt.Errorf("%w: sequence %d, expected %d", ErrProtocolSequence, t.Sequence, next)
	}

	switch t.Kind {
	case TurnUser, TurnAgent:
		if len(s.pending) > 0 {
			return Turn{}, fmt.Errorf("%w: %s turn while %d tool call(s) await results (next %q)",
				ErrProtocolSequence, t.Kind, len(s.pending), s.pending[0].ID)
		}
		t.Call, t.Result = nil, nil
	case TurnToolCall:
		if t.Call == nil || t.Call.ID == "" || t.Call.Name == "" {
			return Turn{}, fmt.Errorf("%w: tool call needs an id and a name", ErrProtocolSequence)
		}
		if s.roundIDs[t.Call.ID] {
			return Turn{}, fmt.Errorf("%w: duplicate call id %q in round", ErrProtocolSequence, t.Call.ID)
		}
		t.Result = nil
	case TurnToolResult:
		if t.Result == nil {
			return Turn{}, fmt.Errorf("%w: tool result turn without a result", ErrProtocolSequence)
		}
		if len(s.pending) == 0 {
			return Turn{}, fmt.Errorf("%w: result for %q with no pending call", ErrProtocolSequence, t.Result.CallID)
		}
		if want := s.pending[0]; t.Result.CallID != want.ID {
			return Turn{}, fmt.Errorf("%w: result for %q, expected %q", ErrProtocolSequence, t.Result.CallID, want.ID)
		}
		t.Call = nil
	default:
		return Turn{}, fmt.Errorf("%w: unknown turn kind %q", ErrProtocolSequence, t.Kind)
	}

	t = t.clone()
	t.Sequence = next
	if t.Timestamp.IsZero() {
		if s.clock == nil {
			s.clock = time.Now
		}
		t.Timestamp = s.clock()
	}
	if s.roundIDs == nil {
		s.roundIDs = make(map[string]bool)
	}

	switch t.Kind {
	case TurnUser:
		clear(s.roundIDs)
	case TurnToolCall:
		s.roundIDs[t.Call.ID] = true
		s.pending = append(s.pending, *t.Call)
	case TurnToolResult:
		if t.Result.Name == "" {
			t.Result.Name = s.pending[0].Name
		}
		s.pending = s.pending[1:]
	}
	s.turns = append(s.turns, t)
	return t.clone(), nil
}

// ActiveContext returns the most recent turns, up to the window size, in
// chronological order.
func (s *Session) ActiveContext() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if s.window > 0 && len(s.turns) > s.window {
		start = len(s.turns) - s.window
	}
	return cloneTurns(s.turns[start:])
}

// FullTranscript returns every turn ever appended, ignoring the window.
func (s *Session) FullTranscript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTurns(s.turns)
}

// Since returns the turns with a sequence index greater than seq.
func (s *Session) Since(seq int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < 0 {
		seq = 0
	}
	if seq >= len(s.turns) {
		return nil
	}
	return cloneTurns(s.turns[seq:])
}

// Metadata returns a copy of the session's labels.
func (s *Session) Metadata() map[string]string {
	out := make(map[string]string, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}
	return out
}

// Len returns the number of turns in the transcript.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Last returns the most recent turn.
func (s *Session) Last() (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1].clone(), true
}

// Pending returns the tool calls that still await results, oldest first.
func (s *Session) Pending() []ToolCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ToolCall(nil), s.pending...)
}

// Reset discards the transcript. It fails with [ErrSessionBusy] while a
// round is running.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrSessionBusy
	}
	s.turns = nil
	s.pending = nil
	clear(s.roundIDs)
	return nil
}

// callIDs returns the correlation IDs already used since the last user turn.
func (s *Session) callIDs() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.roundIDs))
	for id := range s.roundIDs {
		out[id] = true
	}
	return out
}

// begin marks the session as running a round.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return fmt.Errorf("%w: session %s", ErrSessionBusy, s.id)
	}
	s.busy = true
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func cloneTurns(in []Turn) []Turn {
	out := make([]Turn, len(in))
	for i, t := range in {
		out[i] = t.clone()
	}
	return out
}
