package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// OpenAIConfig configures the single-base-URL OpenAI-compatible
// provider (spec §4.10).
type OpenAIConfig struct {
	BaseURL         string
	APIKey          string
	SemanticModel   string
	CodeModel       string // defaults to SemanticModel when empty
	UseAPIKeyHeader bool   // true selects Azure-style "api-key" header over "Authorization: Bearer"
	Retry           RetryConfig
	RequestTimeout  time.Duration
	RPS             float64

	// DefaultDim seeds EmbeddingDim before the first successful call
	// learns the model's real dimension (e.g. 1536 for
	// text-embedding-3-small, 768 for a local nomic-embed-text).
	DefaultDim int
}

// OpenAIProvider speaks the OpenAI embeddings wire format against any
// compatible base URL.
type OpenAIProvider struct {
	cfg     OpenAIConfig
	client  *http.Client
	limiter *Limiter

	dimMu   sync.Mutex
	dim     int32 // atomic-accessed cache of the learned dimension; 0 means unset
	learned bool  // guarded by dimMu; set once a response has fixed the dimension
}

// NewOpenAIProvider constructs an OpenAIProvider from cfg.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.CodeModel == "" {
		cfg.CodeModel = cfg.SemanticModel
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	p := &OpenAIProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		limiter: NewLimiter(cfg.RPS),
	}
	if cfg.DefaultDim > 0 {
		atomic.StoreInt32(&p.dim, int32(cfg.DefaultDim))
	}
	return p
}

type openAIRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *OpenAIProvider) encode(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out [][]float32
	err := withRetry(ctx, p.cfg.Retry, func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		vecs, err := p.doRequest(ctx, model, texts)
		if err != nil {
			return err
		}
		out = vecs
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(out) > 0 {
		if err := p.learnDim(len(out[0])); err != nil {
			return nil, err
		}
	}
	if err := validateDims(out, p.EmbeddingDim()); err != nil {
		return nil, err
	}
	return out, nil
}

// learnDim caches the dimension from the first non-empty response and
// rejects later responses that disagree with it.
func (p *OpenAIProvider) learnDim(got int) error {
	p.dimMu.Lock()
	defer p.dimMu.Unlock()
	if !p.learned {
		atomic.StoreInt32(&p.dim, int32(got))
		p.learned = true
		return nil
	}
	current := atomic.LoadInt32(&p.dim)
	if int(current) != got {
		return &DimensionMismatchError{Expected: int(current), Got: got}
	}
	return nil
}

func (p *OpenAIProvider) doRequest(ctx context.Context, model string, texts []string) ([][]float32, error) {
	body, err := json.Marshal(openAIRequest{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(p.cfg.BaseURL, "/")+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.UseAPIKeyHeader {
		req.Header.Set("api-key", p.cfg.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, ErrAuth
	case http.StatusBadRequest:
		return nil, ErrInvalidModel
	case http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return nil, &RateLimitError{RetryAfterSeconds: retryAfter}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return nil, ErrTimeout
	case http.StatusServiceUnavailable:
		return nil, ErrUnavailable
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("openai: parse response: %w", err)
	}
	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// EncodeSemantic implements Provider.
func (p *OpenAIProvider) EncodeSemantic(ctx context.Context, texts []string) ([][]float32, error) {
	return p.encode(ctx, p.cfg.SemanticModel, texts)
}

// EncodeCode implements Provider.
func (p *OpenAIProvider) EncodeCode(ctx context.Context, texts []string) ([][]float32, error) {
	return p.encode(ctx, p.cfg.CodeModel, texts)
}

// CheckStatus pings the semantic model with a trivial input.
func (p *OpenAIProvider) CheckStatus(ctx context.Context) (Status, error) {
	err := p.limiter.Wait(ctx)
	start := time.Now()
	if err == nil {
		_, err = p.doRequest(ctx, p.cfg.SemanticModel, []string{"ping"})
	}
	latency := time.Since(start).Milliseconds()
	status := Status{
		Available:  err == nil,
		SemanticOK: err == nil,
		CodeOK:     err == nil,
		Device:     "remote",
		LatencyMS:  latency,
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status, nil
}

// Warmup implements Provider as a no-op.
func (p *OpenAIProvider) Warmup(context.Context) error { return nil }

// EmbeddingDim returns the learned dimension, or the configured
// default before any call has completed.
func (p *OpenAIProvider) EmbeddingDim() int {
	return int(atomic.LoadInt32(&p.dim))
}

// ProviderType implements Provider.
func (p *OpenAIProvider) ProviderType() ProviderType { return OpenAI }
