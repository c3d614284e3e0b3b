// Package telldus calls the Telldus Live JSON API on behalf of an
// authenticated user.
package telldus

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	retry "github.com/appleboy/go-httpretry"
	"github.com/pkg/errors"

	"github.com/telltales/telltales-cli/auth"
	"github.com/telltales/telltales-cli/credentials"
	"github.com/telltales/telltales-cli/logging"
)

// ErrUnexpectedResponse is returned when a payload cannot be decoded.
var ErrUnexpectedResponse = errors.New("unexpected Telldus response")

const defaultConcurrency = 3

// Client issues signed, rate-limited, retrying GET requests.
type Client struct {
	baseURL     string
	http        *retry.Client
	limiter     *RateLimiter
	concurrency int
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimiter replaces DefaultRateLimiter.
func WithRateLimiter(l *RateLimiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithConcurrency bounds how many list calls ListAll runs at once.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewClient creates a client for baseURL that signs with creds.
func NewClient(baseURL string, base *http.Client, creds credentials.Credentials, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = auth.DefaultBaseURL
	}

	rc, err := retry.NewClient(retry.WithHTTPClient(auth.SignedClient(base, creds)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create retry client")
	}

	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        rc,
		limiter:     DefaultRateLimiter,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetJSON fetches path with the given query and decodes the JSON body.
// Numbers are kept as json.Number.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values) (any, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create request for %s", path)
	}
	req.Header.Set("Accept", "application/json")

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "waiting for rate limiter")
	}

	logging.Logger(ctx).Debugf("GET %s", target)
	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s failed", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &auth.HTTPStatusError{
			Method:     http.MethodGet,
			URL:        c.baseURL + path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, errors.Wrapf(ErrUnexpectedResponse, "decoding %s: %v", path, err)
	}
	return payload, nil
}
