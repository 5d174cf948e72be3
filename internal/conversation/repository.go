package conversation

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

type Repository interface {
	// AddMessage appends a message to the session's history
	AddMessage(ctx context.Context, sessionID string, message *schema.Message) error

	// LoadHistory retrieves the stored history and state for a session
	LoadHistory(ctx context.Context, sessionID string) (*History, error)

	// SaveState persists the session's dialogue state
	SaveState(ctx context.Context, sessionID string, state State) error

	// ClearHistory removes all stored data for a session
	ClearHistory(ctx context.Context, sessionID string) error

	// GetMessageCount returns the number of stored messages for a session
	GetMessageCount(ctx context.Context, sessionID string) (int, error)
}

// History represents loaded session data with metadata.
type History struct {
	SessionID string
	State     State
	Messages  []*schema.Message
}
