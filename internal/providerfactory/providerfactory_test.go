package providerfactory

import (
	"testing"

	"github.com/codeprysm/codeprysm/internal/config"
	"github.com/codeprysm/codeprysm/internal/embedding"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToLocal(t *testing.T) {
	cfg := config.Defaults()

	p, err := New(cfg)
	require.NoError(t, err)
	require.Equal(t, embedding.Local, p.ProviderType())
}

func TestNewAzureML(t *testing.T) {
	cfg := config.Defaults()
	cfg.Embedding.Provider = "azureml"
	cfg.Embedding.AzureMLSemanticEndpoint = "https://example.invalid/semantic"
	cfg.Embedding.AzureMLCodeEndpoint = "https://example.invalid/code"

	p, err := New(cfg)
	require.NoError(t, err)
	require.Equal(t, embedding.AzureML, p.ProviderType())
}

func TestNewOpenAI(t *testing.T) {
	cfg := config.Defaults()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.OpenAIBaseURL = "https://api.example.invalid"

	p, err := New(cfg)
	require.NoError(t, err)
	require.Equal(t, embedding.OpenAI, p.ProviderType())
}

func TestNewUnknownProvider(t *testing.T) {
	cfg := config.Defaults()
	cfg.Embedding.Provider = "bogus"

	_, err := New(cfg)
	require.Error(t, err)
}

func TestNewAppliesDefaultRetryWhenUnset(t *testing.T) {
	cfg := config.Defaults()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.MaxRetries = 0

	p, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, p)
}
