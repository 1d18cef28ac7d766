package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/internal/config"
)

// DefaultBatchSize is the number of texts sent per embeddings call.
const DefaultBatchSize = 10

// errEmbeddingCountMismatch means the API returned fewer vectors than inputs.
// Routing proxies do this under load, so it is retried.
var errEmbeddingCountMismatch = errors.New("embedding response count mismatch")

// OpenAIEmbedder turns text into vectors with an OpenAI-compatible API.
type OpenAIEmbedder struct {
	client        *openai.Client
	model         string
	batchSize     int
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// OpenAIOption is a functional option for OpenAIEmbedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithModel sets the embedding model.
func WithModel(model string) OpenAIOption {
	return func(p *OpenAIEmbedder) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBatchSize sets the number of texts per call.
func WithBatchSize(n int) OpenAIOption {
	return func(p *OpenAIEmbedder) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) OpenAIOption {
	return func(p *OpenAIEmbedder) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithInitialDelay sets the first retry delay.
func WithInitialDelay(d time.Duration) OpenAIOption {
	return func(p *OpenAIEmbedder) {
		if d > 0 {
			p.initialDelay = d
		}
	}
}

// WithBackoffFactor sets the delay multiplier between retries.
func WithBackoffFactor(f float64) OpenAIOption {
	return func(p *OpenAIEmbedder) {
		if f >= 1 {
			p.backoffFactor = f
		}
	}
}

// NewOpenAIEmbedder creates an embedder. A nil httpClient uses a client with
// the endpoint timeout.
func NewOpenAIEmbedder(endpoint config.Endpoint, httpClient *http.Client, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if !endpoint.IsConfigured() {
		return nil, ErrNotConfigured
	}

	cfg := openai.DefaultConfig(endpoint.APIKey())
	if endpoint.BaseURL() != "" {
		cfg.BaseURL = strings.TrimRight(endpoint.BaseURL(), "/")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: endpoint.Timeout()}
	}
	cfg.HTTPClient = httpClient

	p := &OpenAIEmbedder{
		client:        openai.NewClientWithConfig(cfg),
		model:         endpoint.Model(),
		batchSize:     DefaultBatchSize,
		maxRetries:    endpoint.MaxRetries(),
		initialDelay:  endpoint.InitialDelay(),
		backoffFactor: endpoint.BackoffFactor(),
	}
	if p.model == "" {
		p.model = config.DefaultTextModel
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Model returns the embedding model name.
func (p *OpenAIEmbedder) Model() string { return p.model }

// EmbedText embeds a single text.
func (p *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, search.ErrEmptyQuery
	}
	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts in batches, preserving order.
func (p *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))
		vectors, err := p.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (p *OpenAIEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: texts,
	}

	var resp openai.EmbeddingResponse
	err := p.withRetry(ctx, func() error {
		var err error
		resp, err = p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts", errEmbeddingCountMismatch, len(resp.Data), len(texts))
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, p.wrapError("embedding", err)
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, NewProviderError("embedding", 0, fmt.Sprintf("response index %d out of range", data.Index), nil)
		}
		vectors[data.Index] = data.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, NewProviderError("embedding", 0, fmt.Sprintf("empty vector for input %d", i), nil)
		}
	}
	return vectors, nil
}

// withRetry executes fn with exponential backoff.
func (p *OpenAIEmbedder) withRetry(ctx context.Context, fn func() error) error {
	delay := p.initialDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < p.maxRetries {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
				delay = time.Duration(float64(delay) * p.backoffFactor)
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	if errors.Is(err, errEmbeddingCountMismatch) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var reqErr *openai.RequestError
	return errors.As(err, &reqErr)
}

func (p *OpenAIEmbedder) wrapError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(operation, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(operation, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return NewProviderError(operation, 0, err.Error(), err)
}

var _ search.TextEmbedder = (*OpenAIEmbedder)(nil)
