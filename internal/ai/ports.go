package ai

import "context"

// ChatModel is the external language model. It knows nothing about sessions
// or the knowledge base.
type ChatModel interface {
	GetReply(ctx context.Context, history []Message) (string, error)
}

// Embedder turns text into a dense vector for semantic search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Message is the provider-neutral dialogue format.
type Message struct {
	Role string // "user" | "assistant" | "system"
	Text string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
