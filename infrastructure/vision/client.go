// Package vision is a client for the image retrieval embedding service.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/internal/config"
)

const (
	opVectorizeImage = "vectorizeImage"
	opVectorizeText  = "vectorizeText"
	maxResponseBytes = 10 << 20
)

// Client turns images and text into vectors in the same embedding space.
// A 429 response that carries Retry-After is retried after exactly that
// delay, at most MaxRetries times; any other failure is returned at once.
type Client struct {
	baseURL      string
	apiVersion   string
	modelVersion string
	credential   Credential
	httpClient   *http.Client
	timeout      time.Duration
	maxRetries   int
	limiter      *rate.Limiter
	logger       *slog.Logger
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithAPIVersion sets the api-version query parameter.
func WithAPIVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.apiVersion = v
		}
	}
}

// WithModelVersion sets the model-version query parameter.
func WithModelVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.modelVersion = v
		}
	}
}

// WithMaxRetries sets how many throttled attempts are retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, credential Credential, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, config.ErrMissingVisionEndpoint
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if credential == nil {
		return nil, config.ErrMissingVisionCredential
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiVersion:   config.DefaultVisionAPIVersion,
		modelVersion: config.DefaultVisionModel,
		credential:   credential,
		httpClient:   &http.Client{},
		timeout:      config.DefaultVisionTimeout,
		maxRetries:   config.DefaultVisionMaxRetries,
		logger:       slog.Default(),
		sleep:        sleepContext,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewClientFromConfig creates a client from endpoint configuration, choosing
// token or key authentication.
func NewClientFromConfig(cfg config.VisionEndpoint, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var credential Credential = NewKeyCredential(cfg.APIKey())
	if cfg.UsesToken() {
		source := NewClientCredentials(cfg.AuthorityHost(), cfg.TenantID(), cfg.ClientID(), cfg.ClientSecret(), config.DefaultTokenScope, nil)
		credential = NewBearerCredential(NewCachedTokenSource(source))
	}

	base := []Option{
		WithAPIVersion(cfg.APIVersion()),
		WithModelVersion(cfg.ModelVersion()),
		WithMaxRetries(cfg.MaxRetries()),
		WithTimeout(cfg.Timeout()),
		WithRateLimit(cfg.RateLimit()),
	}
	return NewClient(cfg.BaseURL(), credential, append(base, opts...)...)
}

// EmbedImage vectorizes an image given by URL or by raw bytes.
func (c *Client) EmbedImage(ctx context.Context, image search.Image) ([]float32, error) {
	if err := image.Validate(); err != nil {
		return nil, err
	}
	if image.IsURL() {
		body, err := json.Marshal(map[string]string{"url": image.URL()})
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		return c.vectorize(ctx, opVectorizeImage, body, "application/json")
	}
	return c.vectorize(ctx, opVectorizeImage, image.Bytes(), "application/octet-stream")
}

// EmbedText vectorizes a text query.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, search.ErrEmptyQuery
	}
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.vectorize(ctx, opVectorizeText, body, "application/json")
}

// vectorize posts body and retries throttled attempts. The body is a byte
// slice so every retry sends it in full.
func (c *Client) vectorize(ctx context.Context, op string, body []byte, contentType string) ([]float32, error) {
	for attempt := 1; ; attempt++ {
		vector, err := c.attempt(ctx, op, body, contentType)

		var throttled *ThrottledError
		if !errors.As(err, &throttled) {
			return vector, err
		}
		if attempt > c.maxRetries {
			return nil, &UpstreamError{
				Operation:  op,
				StatusCode: http.StatusTooManyRequests,
				Message:    fmt.Sprintf("still throttled after %d attempts", attempt),
				Cause:      throttled,
			}
		}

		c.logger.InfoContext(ctx, "embedding service throttled, retrying",
			"operation", op,
			"attempt", attempt,
			"retry_after", throttled.RetryAfter,
		)
		if err := c.sleep(ctx, throttled.RetryAfter); err != nil {
			return nil, err
		}
	}
}

func (c *Client) attempt(ctx context.Context, op string, body []byte, contentType string) ([]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint(op), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if err := c.credential.Apply(ctx, req); err != nil {
		return nil, &UpstreamError{Operation: op, Message: "authenticate", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &UpstreamError{Operation: op, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &UpstreamError{Operation: op, StatusCode: resp.StatusCode, Message: "read response", Cause: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		delay, ok := parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		if !ok {
			return nil, &UpstreamError{
				Operation:  op,
				StatusCode: resp.StatusCode,
				Message:    "throttled without a usable Retry-After",
			}
		}
		return nil, &ThrottledError{Operation: op, RetryAfter: delay}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    truncate(strings.TrimSpace(string(respBody)), 500),
		}
	}

	return decodeVector(op, respBody)
}

func (c *Client) endpoint(op string) string {
	q := url.Values{}
	q.Set("api-version", c.apiVersion)
	q.Set("model-version", c.modelVersion)
	return c.baseURL + "/computervision/retrieval:" + op + "?" + q.Encode()
}

type vectorResponse struct {
	ModelVersion string    `json:"modelVersion"`
	Vector       []float32 `json:"vector"`
}

func decodeVector(op string, body []byte) ([]float32, error) {
	var parsed vectorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &MalformedResponseError{Operation: op, Body: truncate(string(body), 200), Cause: err}
	}
	if len(parsed.Vector) == 0 {
		return nil, &MalformedResponseError{Operation: op, Body: truncate(string(body), 200), Cause: errors.New("empty vector")}
	}
	return parsed.Vector, nil
}

// maxRetryAfter bounds the server-given delay the client will honor.
const maxRetryAfter = time.Hour

// parseRetryAfter reads a Retry-After value in delta-seconds or HTTP-date
// form. Dates in the past yield zero. Delays above maxRetryAfter are
// rejected.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs < 0 || secs > int64(maxRetryAfter/time.Second) {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := max(at.Sub(now), 0)
		if d > maxRetryAfter {
			return 0, false
		}
		return d, true
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
