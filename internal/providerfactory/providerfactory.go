// Package providerfactory builds an embedding.Provider from a resolved
// config.EmbeddingConfig, the way the CLI wires whichever provider the
// workspace config names without every caller re-deriving the
// per-provider construction rules.
package providerfactory

import (
	"fmt"

	"github.com/codeprysm/codeprysm/internal/config"
	"github.com/codeprysm/codeprysm/internal/embedding"
)

// New constructs the embedding.Provider named by cfg.Embedding.Provider
// ("local", "azureml", or "openai"), resolving API keys the way
// config.Config.AzureMLAPIKey/OpenAIAPIKey do.
func New(cfg config.Config) (embedding.Provider, error) {
	e := cfg.Embedding
	retry := embedding.RetryConfig{MaxRetries: e.MaxRetries}
	if retry.MaxRetries <= 0 {
		retry = embedding.DefaultRetryConfig()
	}

	switch e.Provider {
	case "", "local":
		return embedding.NewLocalProvider(embedding.LocalConfig{
			SemanticModelPath: e.LocalSemanticModelPath,
			CodeModelPath:     e.LocalCodeModelPath,
			UseGPU:            e.LocalUseGPU,
		}), nil
	case "azureml":
		key := cfg.AzureMLAPIKey()
		return embedding.NewAzureMLProvider(embedding.AzureMLConfig{
			SemanticEndpoint: e.AzureMLSemanticEndpoint,
			CodeEndpoint:     e.AzureMLCodeEndpoint,
			SemanticAPIKey:   key,
			CodeAPIKey:       key,
			Retry:            retry,
			RPS:              e.RPS,
		}), nil
	case "openai":
		return embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			BaseURL:       e.OpenAIBaseURL,
			APIKey:        cfg.OpenAIAPIKey(),
			SemanticModel: e.OpenAISemanticModel,
			CodeModel:     e.OpenAICodeModel,
			Retry:         retry,
			RPS:           e.RPS,
		}), nil
	default:
		return nil, fmt.Errorf("providerfactory: unknown embedding provider %q", e.Provider)
	}
}
