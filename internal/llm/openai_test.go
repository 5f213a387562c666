package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(delta string) string {
	return fmt.Sprintf(`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":%s}]}`, delta)
}

func sseServer(t *testing.T, chunks []string, finish string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprintf(w, "data: %s\n\n", fmt.Sprintf(`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":%q}]}`, finish))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestOpenAICompleteStreamText(t *testing.T) {
	srv := sseServer(t, []string{
		chunk(`{"role":"assistant","content":"Hel"}`),
		chunk(`{"content":"lo"}`),
	}, "stop")
	defer srv.Close()

	client, err := NewOpenAIClientWithConfig("test-key", srv.URL+"/v1")
	require.NoError(t, err)

	var tokens []string
	resp, err := client.CompleteStream(context.Background(), &CompletionRequest{
		System:   "be brief",
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	}, func(token string, index int) error {
		assert.Equal(t, len(tokens), index)
		tokens = append(tokens, token)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo"}, tokens)
	assert.Equal(t, "Hello", resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Empty(t, resp.ToolCalls)
}

func TestOpenAICompleteStreamAccumulatesToolCalls(t *testing.T) {
	srv := sseServer(t, []string{
		chunk(`{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"openUrl","arguments":"{\"url\":"}}]}`),
		chunk(`{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"adjustVolume","arguments":"{\"level\":20}"}}]}`),
		chunk(`{"tool_calls":[{"index":0,"function":{"arguments":"\"https://example.com\"}"}}]}`),
	}, "tool_calls")
	defer srv.Close()

	client, err := NewOpenAIClientWithConfig("test-key", srv.URL+"/v1")
	require.NoError(t, err)

	resp, err := client.CompleteStream(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "open example"}},
		Tools:    []Tool{{Name: "openUrl", Description: "Open a URL", Parameters: map[string]any{"type": "object"}}},
	}, func(string, int) error { return nil })
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "call_a", resp.ToolCalls[0].ID)
	assert.Equal(t, "openUrl", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"url":"https://example.com"}`, string(resp.ToolCalls[0].Arguments))
	assert.Equal(t, "adjustVolume", resp.ToolCalls[1].Name)
	assert.Equal(t, "tool_calls", resp.StopReason)
}

func TestOpenAIUnauthorizedIsConfigurationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClientWithConfig("bad-key", srv.URL+"/v1")
	require.NoError(t, err)

	_, err = client.CompleteStream(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	}, func(string, int) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.True(t, IsConfigurationError(err))
}

func TestMissingCredentials(t *testing.T) {
	_, err := NewClient(ProviderOpenAI, "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.True(t, IsConfigurationError(err))

	_, err = NewClient(ProviderAnthropic, "")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	assert.Equal(t, "OPENAI_API_KEY", CredentialEnv(ProviderOpenAI))
	assert.Equal(t, "ANTHROPIC_API_KEY", CredentialEnv(ProviderAnthropic))
}

func TestToOpenAIMessages(t *testing.T) {
	msgs := toOpenAIMessages(&CompletionRequest{
		System: "sys",
		Messages: []ChatMessage{
			{Role: RoleUser, Content: "look", Images: []Image{{URL: "data:image/png;base64,AAAA", MediaType: "image/png"}}},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "openUrl", Arguments: json.RawMessage(`{"url":"https://x.io"}`)}}},
			{Role: RoleTool, ToolCallID: "c1", Content: "denied"},
		},
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Empty(t, msgs[1].Content)
	require.Len(t, msgs[1].MultiContent, 2)
	assert.Equal(t, "data:image/png;base64,AAAA", msgs[1].MultiContent[1].ImageURL.URL)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "openUrl", msgs[2].ToolCalls[0].Function.Name)
	assert.Equal(t, "c1", msgs[3].ToolCallID)
}
