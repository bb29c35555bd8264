package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicConfig holds configuration for the Anthropic Messages backend.
type AnthropicConfig struct {
	Endpoint string // Optional base URL override
	Model    string // e.g., "claude-sonnet-4-5"
	APIKey   string
}

// AnthropicBackend talks to the Anthropic Messages API.
type AnthropicBackend struct {
	client   *anthropic.Client
	endpoint string
	model    string
	logger   *zap.Logger
}

// NewAnthropicBackend creates an Anthropic backend.
func NewAnthropicBackend(cfg AnthropicConfig, logger *zap.Logger) (*AnthropicBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}

	return &AnthropicBackend{
		client:   anthropic.NewClient(cfg.APIKey, opts...),
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		logger:   logger.Named("llm-anthropic"),
	}, nil
}

// Complete sends a Messages API request. The API requires turns to
// alternate starting with the user, so history is coalesced first.
func (b *AnthropicBackend) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	turns := append(append([]Message{}, req.History...), Message{Role: RoleUser, Content: req.UserMessage})
	messages := toAnthropicMessages(turns)

	temperature := float32(req.Temperature)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	fields := contextFields(ctx)
	b.logger.Debug("LLM request", append(fields,
		zap.String("model", b.model),
		zap.Int("system_prompt_len", len(req.SystemPrompt)),
		zap.Int("messages", len(messages)),
		zap.Int("max_tokens", maxTokens))...)

	start := time.Now()

	resp, err := b.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(b.model),
		System:      req.SystemPrompt,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		b.logger.Error("LLM request failed", append(fields,
			zap.String("model", b.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))...)
		llmErr := ClassifyError(err)
		llmErr.Model = b.model
		llmErr.Endpoint = b.endpoint
		return nil, llmErr
	}

	content := extractText(resp)
	if content == "" {
		return nil, NewErrorWithContext(ErrorTypeUnknown, "no text in response", false, nil, b.model, b.endpoint, 0)
	}

	b.logger.Info("LLM request completed", append(fields,
		zap.String("model", b.model),
		zap.Int("prompt_tokens", resp.Usage.InputTokens),
		zap.Int("completion_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))...)

	return &Completion{
		Content:          strings.TrimSpace(content),
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}, nil
}

// toAnthropicMessages merges consecutive same-role turns and drops leading
// assistant turns.
func toAnthropicMessages(turns []Message) []anthropic.Message {
	var merged []Message
	for _, t := range turns {
		if len(merged) == 0 && t.Role != RoleUser {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].Role == t.Role {
			merged[n-1].Content += "\n\n" + t.Content
			continue
		}
		merged = append(merged, t)
	}

	messages := make([]anthropic.Message, 0, len(merged))
	for _, m := range merged {
		role := anthropic.RoleUser
		if m.Role == RoleAssistant {
			role = anthropic.RoleAssistant
		}
		messages = append(messages, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
		})
	}
	return messages
}

func extractText(resp anthropic.MessagesResponse) string {
	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			parts = append(parts, *block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Model returns the configured model name.
func (b *AnthropicBackend) Model() string {
	return b.model
}

// IsLocal is always false for the hosted Anthropic API.
func (b *AnthropicBackend) IsLocal() bool {
	return false
}

// Ensure AnthropicBackend implements Backend at compile time.
var _ Backend = (*AnthropicBackend)(nil)
