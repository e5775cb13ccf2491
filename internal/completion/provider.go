package completion

import "context"

// Request carries one prompt to the completion provider along with the
// sampling parameters for this turn.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Provider generates text for a prompt. Implementations are opaque; the chat
// service treats any failure as a provider error for that turn only.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}
