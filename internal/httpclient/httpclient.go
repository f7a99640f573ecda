// Package httpclient implements the signed HTTP client described in
// spec.md §4.5: synchronous request/response, a 5-second total timeout,
// and optional HTTP-Signatures signing on the way out. Grounded on the
// teacher's internal/ap/client.go httpClient var and DeliverActivity.
package httpclient

import (
	"bytes"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klppl/fedif/internal/sigs"
)

// timeout is the total request timeout from spec.md §4.5 ("5-second total
// timeout"). Kept tighter than the teacher's 10s because the spec pins it
// explicitly; the teacher's value was a default, this one is a contract.
const timeout = 5 * time.Second

// UserAgent is sent on every outbound request, the way the teacher stamps
// its binary name and repo URL.
var UserAgent = "fedif/1.0"

// Client wraps http.Client with the signing and response-shape conventions
// the federation engine needs everywhere it talks to a remote server.
type Client struct {
	http *http.Client
}

// New returns a client with the spec-mandated timeout.
func New() *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Response carries the integer status, the response headers as an
// http.Header (canonical-case keys, not lowercased; look them up with
// Headers.Get), and the body. There is no separate size field; the body
// size is len(Body).
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Get performs a signed GET with the given Accept header.
func (c *Client) Get(url, accept, keyID string, priv *rsa.PrivateKey) (*Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build GET %s: %w", url, err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", UserAgent)

	if keyID != "" && priv != nil {
		if err := sigs.Sign(req, nil, keyID, priv); err != nil {
			return nil, fmt.Errorf("httpclient: sign GET %s: %w", url, err)
		}
	}

	return c.do(req)
}

// Post performs a signed POST of body with Content-Type
// application/activity+json.
func (c *Client) Post(url string, body []byte, keyID string, priv *rsa.PrivateKey) (*Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httpclient: build POST %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("User-Agent", UserAgent)

	if keyID != "" && priv != nil {
		if err := sigs.Sign(req, body, keyID, priv); err != nil {
			return nil, fmt.Errorf("httpclient: sign POST %s: %w", url, err)
		}
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body from %s: %w", req.URL, err)
	}

	return &Response{Status: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// ValidStatus mirrors flatstore.ValidStatus's 200-299 predicate, repeated
// here to avoid an import cycle between httpclient and flatstore.
func ValidStatus(status int) bool {
	return status >= 200 && status <= 299
}
