package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"
	defaultTokenSkew      = 60 * time.Second
)

// Credential authenticates a request to the embedding service.
type Credential interface {
	Apply(ctx context.Context, req *http.Request) error
}

// KeyCredential authenticates with a subscription key header.
type KeyCredential struct {
	key string
}

// NewKeyCredential creates a KeyCredential.
func NewKeyCredential(key string) KeyCredential {
	return KeyCredential{key: key}
}

// Apply sets the subscription key header.
func (c KeyCredential) Apply(_ context.Context, req *http.Request) error {
	req.Header.Set(subscriptionKeyHeader, c.key)
	return nil
}

// Token is a bearer token and its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenSource obtains bearer tokens.
type TokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// CachedTokenSource reuses a token until shortly before it expires.
// Concurrent callers that find the token stale share a single refresh.
type CachedTokenSource struct {
	source TokenSource
	skew   time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	token Token
	group singleflight.Group
}

// NewCachedTokenSource wraps source with a token cache.
func NewCachedTokenSource(source TokenSource) *CachedTokenSource {
	return &CachedTokenSource{
		source: source,
		skew:   defaultTokenSkew,
		now:    time.Now,
	}
}

// Token returns the cached token or fetches a new one.
func (c *CachedTokenSource) Token(ctx context.Context) (Token, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	v, err, _ := c.group.Do("token", func() (any, error) {
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		tok, err := c.source.Token(ctx)
		if err != nil {
			return Token{}, err
		}
		c.mu.Lock()
		c.token = tok
		c.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return Token{}, fmt.Errorf("obtain token: %w", err)
	}
	return v.(Token), nil
}

func (c *CachedTokenSource) cached() (Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token.Value == "" || !c.now().Add(c.skew).Before(c.token.ExpiresAt) {
		return Token{}, false
	}
	return c.token, true
}

// BearerCredential authenticates with tokens from a TokenSource.
type BearerCredential struct {
	tokens TokenSource
}

// NewBearerCredential creates a BearerCredential.
func NewBearerCredential(tokens TokenSource) BearerCredential {
	return BearerCredential{tokens: tokens}
}

// Apply sets the Authorization header.
func (c BearerCredential) Apply(ctx context.Context, req *http.Request) error {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	return nil
}

// ClientCredentials fetches tokens with the OAuth2 client credentials grant.
type ClientCredentials struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	httpClient   *http.Client
	now          func() time.Time
}

// NewClientCredentials creates a token source for a directory tenant.
func NewClientCredentials(authorityHost, tenantID, clientID, clientSecret, scope string, httpClient *http.Client) *ClientCredentials {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ClientCredentials{
		tokenURL:     strings.TrimRight(authorityHost, "/") + "/" + url.PathEscape(tenantID) + "/oauth2/v2.0/token",
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token requests a new token.
func (c *ClientCredentials) Token(ctx context.Context) (Token, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"scope":         {c.scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Token{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("token request: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Token{}, fmt.Errorf("parse token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return Token{}, errors.New("token response has no access_token")
	}
	return Token{
		Value:     parsed.AccessToken,
		ExpiresAt: c.now().Add(time.Duration(parsed.ExpiresIn) * time.Second),
	}, nil
}
