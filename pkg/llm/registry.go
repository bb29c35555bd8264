package llm

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
)

// Provider names a backend family.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
	ProviderAnthropic Provider = "anthropic"
)

// ModelInfo describes one selectable model.
type ModelInfo struct {
	ID          string   `json:"id"`
	Provider    Provider `json:"provider"`
	Description string   `json:"description"`
	Local       bool     `json:"local"`
}

// SupportedModels is the fixed allow-list of model IDs callers may request.
var SupportedModels = []ModelInfo{
	{ID: "gpt-4o-mini", Provider: ProviderOpenAI, Description: "Fastest & Most Cost-Effective"},
	{ID: "gpt-4o", Provider: ProviderOpenAI, Description: "Balanced Speed & Accuracy"},
	{ID: "gpt-4-turbo", Provider: ProviderOpenAI, Description: "High Accuracy"},
	{ID: "gpt-4", Provider: ProviderOpenAI, Description: "Most Accurate (Slower)"},
	{ID: "llama3.2:1b", Provider: ProviderOllama, Description: "Local Llama 3.2 1B via Ollama", Local: true},
	{ID: "claude-sonnet-4-5", Provider: ProviderAnthropic, Description: "Anthropic Claude Sonnet"},
	{ID: "claude-haiku-4-5", Provider: ProviderAnthropic, Description: "Anthropic Claude Haiku"},
}

// LookupModel returns the allow-list entry for id.
func LookupModel(id string) (ModelInfo, bool) {
	for _, m := range SupportedModels {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// RegistryConfig configures provider credentials and the fallback policy.
type RegistryConfig struct {
	OpenAIAPIKey    string
	OpenAIEndpoint  string
	AnthropicAPIKey string
	OllamaEndpoint  string

	DefaultModel  string
	FallbackModel string
	AllowFallback bool
}

// Registry resolves model IDs to backends.
type Registry struct {
	backends      map[string]Backend
	defaultModel  string
	fallbackModel string
	allowFallback bool
	logger        *zap.Logger
}

// NewRegistry builds backends for every allow-listed model whose provider
// is configured. Ollama needs no credentials and is always registered.
func NewRegistry(cfg RegistryConfig, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	openAIEndpoint := cfg.OpenAIEndpoint
	if openAIEndpoint == "" {
		openAIEndpoint = DefaultOpenAIEndpoint
	}
	ollamaEndpoint := cfg.OllamaEndpoint
	if ollamaEndpoint == "" {
		ollamaEndpoint = DefaultOllamaEndpoint
	}

	backends := make(map[string]Backend)
	for _, m := range SupportedModels {
		var backend Backend
		var err error
		switch m.Provider {
		case ProviderOpenAI:
			if cfg.OpenAIAPIKey == "" {
				continue
			}
			backend, err = NewOpenAIBackend(OpenAIConfig{Endpoint: openAIEndpoint, Model: m.ID, APIKey: cfg.OpenAIAPIKey}, logger)
		case ProviderOllama:
			// Ollama ignores the key but the client requires a non-empty bearer.
			backend, err = NewOpenAIBackend(OpenAIConfig{Endpoint: ollamaEndpoint, Model: m.ID, APIKey: "ollama", Local: true}, logger)
		case ProviderAnthropic:
			if cfg.AnthropicAPIKey == "" {
				continue
			}
			backend, err = NewAnthropicBackend(AnthropicConfig{Model: m.ID, APIKey: cfg.AnthropicAPIKey}, logger)
		}
		if err != nil {
			return nil, fmt.Errorf("create backend %s: %w", m.ID, err)
		}
		backends[m.ID] = backend
	}

	return NewRegistryWithBackends(backends, cfg, logger)
}

// NewRegistryWithBackends creates a registry over prebuilt backends.
// Tests use it to install MockBackend instances.
func NewRegistryWithBackends(backends map[string]Backend, cfg RegistryConfig, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		backends:      backends,
		defaultModel:  cfg.DefaultModel,
		fallbackModel: cfg.FallbackModel,
		allowFallback: cfg.AllowFallback,
		logger:        logger.Named("llm-registry"),
	}
	if r.defaultModel == "" {
		r.defaultModel = "gpt-4o-mini"
	}
	if r.fallbackModel == "" {
		r.fallbackModel = r.defaultModel
	}
	if r.allowFallback {
		if _, ok := r.backends[r.fallbackModel]; !ok {
			return nil, fmt.Errorf("fallback model %q has no configured backend", r.fallbackModel)
		}
	}
	return r, nil
}

// DefaultModel is the model used when a request names none.
func (r *Registry) DefaultModel() string {
	return r.defaultModel
}

// Resolve returns the backend for id and the ID actually used. An empty id
// selects the default model. An unknown or unconfigured id fails with
// apperrors.ErrUnknownModel unless fallback is enabled, in which case the fallback
// model is used and the substitution logged.
func (r *Registry) Resolve(id string) (Backend, string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = r.defaultModel
	}

	if backend, ok := r.backends[id]; ok {
		return backend, id, nil
	}

	_, allowed := LookupModel(id)
	if !r.allowFallback {
		if allowed {
			return nil, "", fmt.Errorf("%w: %s has no configured provider credentials", apperrors.ErrUnknownModel, id)
		}
		return nil, "", fmt.Errorf("%w: %s (supported: %s)", apperrors.ErrUnknownModel, id, strings.Join(r.supportedIDs(), ", "))
	}

	r.logger.Warn("Model fallback applied",
		zap.String("requested_model", id),
		zap.String("resolved_model", r.fallbackModel),
		zap.Bool("allow_listed", allowed))
	return r.backends[r.fallbackModel], r.fallbackModel, nil
}

// Available lists allow-listed models that have a configured backend, in
// allow-list order.
func (r *Registry) Available() []ModelInfo {
	var out []ModelInfo
	for _, m := range SupportedModels {
		if _, ok := r.backends[m.ID]; ok {
			out = append(out, m)
		}
	}
	return out
}

func (r *Registry) supportedIDs() []string {
	ids := make([]string, 0, len(SupportedModels))
	for _, m := range SupportedModels {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids
}
