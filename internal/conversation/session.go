package conversation

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// State is the explicit dialogue state of a session. Transitions are driven by
// the orchestrator, never inferred from model text.
type State int

const (
	Idle State = iota
	AwaitingClarification
	HandoffComplete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingClarification:
		return "awaiting_clarification"
	case HandoffComplete:
		return "handoff_complete"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func ParseState(raw string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "idle":
		return Idle, nil
	case "awaiting_clarification":
		return AwaitingClarification, nil
	case "handoff_complete":
		return HandoffComplete, nil
	}
	return Idle, fmt.Errorf("unknown session state %q", raw)
}

// Session holds one user's dialogue: an append-only message log plus the
// current state. It is not safe for concurrent use; the Manager serializes
// access per session ID.
type Session struct {
	ID       string
	State    State
	Messages []*schema.Message
}

func NewSession(id string) *Session {
	return &Session{ID: id, State: Idle}
}

// Append records a turn. Messages with no content and no tool activity are
// dropped so the log stays a valid provider transcript.
func (s *Session) Append(msgs ...*schema.Message) []*schema.Message {
	added := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if m.Content == "" && len(m.ToolCalls) == 0 && m.ToolCallID == "" {
			continue
		}
		s.Messages = append(s.Messages, m)
		added = append(added, m)
	}
	return added
}

// LastUserTexts returns up to n most recent user messages, oldest first.
func (s *Session) LastUserTexts(n int) []string {
	var texts []string
	for i := len(s.Messages) - 1; i >= 0 && len(texts) < n; i-- {
		m := s.Messages[i]
		if m.Role == schema.User && m.Content != "" {
			texts = append(texts, m.Content)
		}
	}
	for i, j := 0, len(texts)-1; i < j; i, j = i+1, j-1 {
		texts[i], texts[j] = texts[j], texts[i]
	}
	return texts
}
