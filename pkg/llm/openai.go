package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultOpenAIEndpoint is the hosted OpenAI API base URL.
const DefaultOpenAIEndpoint = "https://api.openai.com/v1"

// DefaultOllamaEndpoint is Ollama's OpenAI-compatible base URL.
const DefaultOllamaEndpoint = "http://localhost:11434/v1"

// OpenAIConfig holds configuration for an OpenAI-compatible backend.
type OpenAIConfig struct {
	Endpoint string // Base URL, e.g., "https://api.openai.com/v1"
	Model    string // Model name, e.g., "gpt-4o-mini"
	APIKey   string // Optional for local endpoints
	Local    bool   // Small local model with a reduced prompt budget
}

// OpenAIBackend talks to OpenAI or any OpenAI-compatible endpoint such as
// Ollama.
type OpenAIBackend struct {
	client   *openai.Client
	endpoint string
	model    string
	local    bool
	logger   *zap.Logger
}

// NewOpenAIBackend creates an OpenAI-compatible backend.
func NewOpenAIBackend(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIBackend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &OpenAIBackend{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		local:    cfg.Local,
		logger:   logger.Named("llm-openai"),
	}, nil
}

// Complete sends a chat completion request.
func (b *OpenAIBackend) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.SystemPrompt,
	})
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserMessage,
	})

	fields := contextFields(ctx)
	b.logger.Debug("LLM request", append(fields,
		zap.String("model", b.model),
		zap.Int("system_prompt_len", len(req.SystemPrompt)),
		zap.Int("history_turns", len(req.History)),
		zap.Float64("temperature", req.Temperature),
		zap.Int("max_tokens", req.MaxTokens))...)

	start := time.Now()

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		b.logger.Error("LLM request failed", append(fields,
			zap.String("model", b.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))...)
		return nil, b.parseError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewErrorWithContext(ErrorTypeUnknown, "no choices in response", false, nil, b.model, b.endpoint, 0)
	}

	b.logger.Info("LLM request completed", append(fields,
		zap.String("model", b.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))...)

	return &Completion{
		Content:          strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Model returns the configured model name.
func (b *OpenAIBackend) Model() string {
	return b.model
}

// IsLocal reports whether this backend serves a small local model.
func (b *OpenAIBackend) IsLocal() bool {
	return b.local
}

// parseError classifies the failure and attaches model and endpoint.
func (b *OpenAIBackend) parseError(err error) error {
	llmErr := ClassifyError(err)
	llmErr.Model = b.model
	llmErr.Endpoint = b.endpoint
	return llmErr
}

// Ensure OpenAIBackend implements Backend at compile time.
var _ Backend = (*OpenAIBackend)(nil)
