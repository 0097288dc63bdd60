package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	c, err := Select(ProviderAnthropic, "sk-openai", "sk-ant")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	c, err = Select(ProviderAnthropic, "sk-openai", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	c, err = Select(ProviderOpenAI, "", "")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("")
	assert.Error(t, err)
	_, err = NewAnthropicClient("")
	assert.Error(t, err)
	_, err = NewClient("mistral", "k")
	assert.Error(t, err)
}

func TestUserPrompt(t *testing.T) {
	msgs := UserPrompt("hello")
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
}
