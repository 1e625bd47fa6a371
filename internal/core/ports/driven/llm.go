package driven

import "context"

// ChatMessage is a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures a completion request.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}

// LLMService provides the reasoning capability used for query analysis,
// cross-reference alignment and response synthesis.
//
// All structured output from it is untrusted: callers must parse
// defensively and keep a deterministic fallback. This is an optional
// service - when nil, those fallbacks are the only path.
type LLMService interface {
	// Chat produces a completion for a multi-turn conversation.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
