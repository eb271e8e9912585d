package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// azureExpectedDim is the dimension of the AzureML-style model family
// this client targets (spec §4.10).
const azureExpectedDim = 768

// AzureMLConfig configures the two-endpoint remote provider.
type AzureMLConfig struct {
	SemanticEndpoint string
	SemanticAPIKey   string
	CodeEndpoint     string
	CodeAPIKey       string
	Retry            RetryConfig
	RequestTimeout   time.Duration
	RPS              float64
}

// AzureMLProvider calls two distinct HTTP endpoints, one for
// natural-language embedding and one for code embedding.
type AzureMLProvider struct {
	cfg     AzureMLConfig
	client  *http.Client
	limiter *Limiter
}

// NewAzureMLProvider constructs an AzureMLProvider from cfg.
func NewAzureMLProvider(cfg AzureMLConfig) *AzureMLProvider {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	return &AzureMLProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		limiter: NewLimiter(cfg.RPS),
	}
}

type azureRequest struct {
	Inputs []string `json:"inputs"`
}

type azureResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Dimension  int         `json:"dimension"`
}

func (p *AzureMLProvider) encode(ctx context.Context, endpoint, apiKey string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out [][]float32
	err := withRetry(ctx, p.cfg.Retry, func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		vecs, err := p.doRequest(ctx, endpoint, apiKey, texts)
		if err != nil {
			return err
		}
		out = vecs
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := validateDims(out, azureExpectedDim); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *AzureMLProvider) doRequest(ctx context.Context, endpoint, apiKey string, texts []string) ([][]float32, error) {
	body, err := json.Marshal(azureRequest{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("azureml: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("azureml: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azureml: read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, ErrAuth
	case http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return nil, &RateLimitError{RetryAfterSeconds: retryAfter}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return nil, ErrTimeout
	case http.StatusServiceUnavailable:
		return nil, ErrUnavailable
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("azureml: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed azureResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("azureml: parse response: %w", err)
	}
	if parsed.Dimension != 0 && parsed.Dimension != azureExpectedDim {
		return nil, &DimensionMismatchError{Expected: azureExpectedDim, Got: parsed.Dimension}
	}
	return parsed.Embeddings, nil
}

// EncodeSemantic implements Provider.
func (p *AzureMLProvider) EncodeSemantic(ctx context.Context, texts []string) ([][]float32, error) {
	return p.encode(ctx, p.cfg.SemanticEndpoint, p.cfg.SemanticAPIKey, texts)
}

// EncodeCode implements Provider.
func (p *AzureMLProvider) EncodeCode(ctx context.Context, texts []string) ([][]float32, error) {
	return p.encode(ctx, p.cfg.CodeEndpoint, p.cfg.CodeAPIKey, texts)
}

// CheckStatus pings both endpoints with a trivial input and reports
// per-endpoint readiness with max latency.
func (p *AzureMLProvider) CheckStatus(ctx context.Context) (Status, error) {
	ping := func(endpoint, key string) (int64, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return 0, err
		}
		start := time.Now()
		_, err := p.doRequest(ctx, endpoint, key, []string{"ping"})
		return time.Since(start).Milliseconds(), err
	}
	semLatency, semErr := ping(p.cfg.SemanticEndpoint, p.cfg.SemanticAPIKey)
	codeLatency, codeErr := ping(p.cfg.CodeEndpoint, p.cfg.CodeAPIKey)
	latency := semLatency
	if codeLatency > latency {
		latency = codeLatency
	}

	status := Status{
		SemanticOK: semErr == nil,
		CodeOK:     codeErr == nil,
		Device:     "remote",
		LatencyMS:  latency,
	}
	status.Available = status.SemanticOK && status.CodeOK
	if semErr != nil {
		status.Error = semErr.Error()
	} else if codeErr != nil {
		status.Error = codeErr.Error()
	}
	return status, nil
}

// Warmup implements Provider as a no-op: there is no local model state
// to preload for a remote endpoint.
func (p *AzureMLProvider) Warmup(context.Context) error { return nil }

// EmbeddingDim implements Provider.
func (p *AzureMLProvider) EmbeddingDim() int { return azureExpectedDim }

// ProviderType implements Provider.
func (p *AzureMLProvider) ProviderType() ProviderType { return AzureML }
