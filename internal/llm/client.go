// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// StreamCallback is called for each text token during streaming.
type StreamCallback func(token string, index int) error

// Image is an inline image attached to a user message.
type Image struct {
	// URL is a data: URL carrying the base64 payload.
	URL       string
	MediaType string
}

// ToolCall is a complete tool invocation emitted by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Tool describes a tool the model may call.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	Tools       []Tool
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM. Assistant messages may
// carry ToolCalls; tool messages carry the ToolCallID they answer.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Images     []Image    `json:"-"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	ToolCalls  []ToolCall
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// CompleteStream sends a streaming completion request. Text tokens are
	// delivered through callback; tool calls are returned once complete.
	CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

var (
	// ErrMissingCredentials is returned when the provider key is not configured.
	ErrMissingCredentials = errors.New("provider credentials missing")
	// ErrUnauthorized is returned when the provider rejects the configured key.
	ErrUnauthorized = errors.New("provider rejected credentials")
	// ErrUnknownProvider is returned for a provider name outside the supported set.
	ErrUnknownProvider = errors.New("unsupported LLM provider")
)

// ParseProvider maps a configured provider name onto a Provider.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case ProviderOpenAI, ProviderAnthropic:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// SetupHint returns the operator instruction shown when the client for the
// configured provider name could not be created with err.
func SetupHint(name string, err error) string {
	if errors.Is(err, ErrUnknownProvider) {
		return fmt.Sprintf("Unsupported LLM_PROVIDER %q (use %s or %s)", name, ProviderOpenAI, ProviderAnthropic)
	}
	return "Missing " + CredentialEnv(Provider(name))
}

// CredentialEnv returns the environment variable holding the provider key.
func CredentialEnv(p Provider) string {
	if p == ProviderAnthropic {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		c, err := NewAnthropicClient(apiKey)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderOpenAI:
		c, err := NewOpenAIClient(apiKey)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, string(provider))
	}
}

// IsConfigurationError reports whether err means the provider cannot be
// reached or used with the current setup, as opposed to a mid-stream failure.
func IsConfigurationError(err error) bool {
	if errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrUnauthorized) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
