package store

import (
	"context"

	"github.com/chatbuddy/chatbot-backend/internal/model"
)

// Store exposes persistence operations required by the chat service.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Users() Users
	Messages() Messages
	Responses() Responses
}

// Users is the user directory: idempotent lookup-or-create is composed by the
// caller from GetByEmail and Create.
type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// Messages is the append-only conversation log.
type Messages interface {
	Append(ctx context.Context, m *model.ChatMessage) (*model.ChatMessage, error)
	// ListByUser returns the user's messages in timestamp-ascending order.
	ListByUser(ctx context.Context, userID string) ([]*model.ChatMessage, error)
}

// Responses is the externally provisioned canned-response table.
type Responses interface {
	// Lookup matches the lower-cased query exactly; model.ErrNotFound on miss.
	Lookup(ctx context.Context, query string) (string, error)
	Put(ctx context.Context, r *model.CannedResponse) error
}
