package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	openaigo "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
)

// DefaultChatModel is used when no model is configured.
const DefaultChatModel = openaigo.ChatModelGPT4o

// ChatService implements driven.LLMService.
type ChatService struct {
	client openaigo.Client
	model  string
}

var _ driven.LLMService = (*ChatService)(nil)

// NewChat creates a chat completion service. apiKey must be non-empty.
func NewChat(apiKey, model string) (*ChatService, error) {
	if apiKey == "" {
		return nil, domain.ErrLLMUnavailable
	}
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatService{
		client: openaigo.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Chat produces a completion for a multi-turn conversation.
func (s *ChatService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	if len(messages) == 0 {
		return "", domain.ErrInvalidInput
	}

	params := openaigo.ChatCompletionNewParams{
		Messages: toMessageParams(messages),
		Model:    s.model,
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openaigo.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = openaigo.Float(opts.Temperature)
	}

	var content string
	operation := func() error {
		resp, err := s.client.Chat.Completions.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("completion returned no choices"))
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return content, nil
}

// ModelName returns the name of the model being used.
func (s *ChatService) ModelName() string {
	return s.model
}

// Close releases resources. The HTTP client holds none.
func (s *ChatService) Close() error {
	return nil
}

// toMessageParams maps port messages onto SDK message unions. Unknown roles
// are treated as user messages.
func toMessageParams(messages []driven.ChatMessage) []openaigo.ChatCompletionMessageParamUnion {
	out := make([]openaigo.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			out = append(out, openaigo.SystemMessage(msg.Content))
		case "assistant":
			out = append(out, openaigo.AssistantMessage(msg.Content))
		default:
			out = append(out, openaigo.UserMessage(msg.Content))
		}
	}
	return out
}
