package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" Anthropic ")
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p)

	p, err = ParseProvider("openai")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p)

	_, err = ParseProvider("gemini")
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.False(t, IsConfigurationError(err))
}

func TestSetupHint(t *testing.T) {
	_, err := ParseProvider("gemini")
	assert.Equal(t, `Unsupported LLM_PROVIDER "gemini" (use openai or anthropic)`, SetupHint("gemini", err))

	_, err = NewClient(ProviderAnthropic, "")
	assert.Equal(t, "Missing ANTHROPIC_API_KEY", SetupHint("anthropic", err))

	_, err = NewClient(ProviderOpenAI, "")
	assert.Equal(t, "Missing OPENAI_API_KEY", SetupHint("openai", err))

	_, err = NewClient(Provider("gemini"), "key")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
