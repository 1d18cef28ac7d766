// Package httpcache stores successful embedding responses on disk so repeated
// runs over the same inputs skip the network.
package httpcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Transport is an http.RoundTripper that replays stored 2xx responses for
// POST requests with an identical method, URL and body. Credentials are not
// part of the key. Failures to read or write the store fall through to the
// wrapped transport.
type Transport struct {
	next http.RoundTripper
	dir  string
}

// New creates a Transport that stores entries under dir. A nil next uses
// http.DefaultTransport.
func New(dir string, next http.RoundTripper) (*Transport, error) {
	if next == nil {
		next = http.DefaultTransport
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Transport{next: next, dir: dir}, nil
}

// Client returns an http.Client that uses the transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Dir returns the cache directory.
func (t *Transport) Dir() string { return t.dir }

type entry struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost || req.Body == nil {
		return t.next.RoundTrip(req)
	}

	payload, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(payload))

	path := filepath.Join(t.dir, key(req.URL.String(), payload)+".json")
	if resp, ok := load(path, req); ok {
		return resp, nil
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode/100 != 2 {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	store(path, entry{Status: resp.StatusCode, Header: resp.Header, Body: body})

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func key(url string, body []byte) string {
	h := sha256.New()
	_, _ = io.WriteString(h, http.MethodPost+" "+url+"\n")
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func load(path string, req *http.Request) (*http.Response, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a hash
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.Header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}, true
}

func store(path string, e entry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return
	}
	_ = os.Rename(tmp, path)
}
