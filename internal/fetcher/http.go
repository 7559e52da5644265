// Package fetcher is the shared HTTP capability used by source adapters:
// JSON requests, bulk downloads, and CSV/XML parsing.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/risk-enrichment/internal/resilience"
)

// maxBody caps how much of a JSON/XML response is read into memory.
const maxBody = 16 << 20

// Options configures a Client.
type Options struct {
	UserAgent string
	// Timeout bounds a whole request when the context has no deadline.
	Timeout  time.Duration
	Retry    resilience.RetryConfig
	Breakers *resilience.Breakers
}

// Request describes one provider call.
type Request struct {
	Source string
	Method string
	URL    string
	Query  url.Values
	Header map[string]string
	// Body is JSON-encoded when non-nil.
	Body any
}

// Client performs provider calls with retry and per-source circuit breaking.
type Client struct {
	http     *http.Client
	opts     Options
	breakers *resilience.Breakers
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "risk-enrichment/1.0"
	}
	breakers := opts.Breakers
	if breakers == nil {
		breakers = resilience.NewBreakers(resilience.DefaultBreakerConfig())
	}
	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		breakers: breakers,
	}
}

// Do sends req and returns the response body of a 2xx reply. Non-2xx
// replies yield a *resilience.StatusError.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	retry := c.opts.Retry
	retry.Source = req.Source
	breaker := c.breakers.Get(req.Source)

	return resilience.Call(ctx, breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.Retry(ctx, retry, func(ctx context.Context) ([]byte, error) {
			return c.once(ctx, req)
		})
	})
}

// JSON sends req and decodes a 2xx reply into out.
func (c *Client) JSON(ctx context.Context, req Request, out any) error {
	body, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "%s: decode response", req.Source)
	}
	return nil
}

// Download streams a 2xx reply body. The caller closes it.
func (c *Client) Download(ctx context.Context, source, rawURL string) (io.ReadCloser, error) {
	breaker := c.breakers.Get(source)
	return resilience.Call(ctx, breaker, func(ctx context.Context) (io.ReadCloser, error) {
		resp, err := c.send(ctx, Request{Source: source, URL: rawURL})
		if err != nil {
			return nil, err
		}
		if err := checkStatus(source, resp); err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
}

func (c *Client) once(ctx context.Context, req Request) ([]byte, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := checkStatus(req.Source, resp); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, eris.Wrapf(err, "%s: read response", req.Source)
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, req Request) (*http.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u := req.URL
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: marshal request", req.Source)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: create request", req.Source)
	}
	httpReq.Header.Set("User-Agent", c.opts.UserAgent)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: send request", req.Source)
	}
	return resp, nil
}

// checkStatus closes the body and returns an error for non-2xx replies.
func checkStatus(source string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	_ = resp.Body.Close()

	se := &resilience.StatusError{Source: source, StatusCode: resp.StatusCode, Body: string(snippet)}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return resilience.NewTransientError(se, resp.StatusCode)
	}
	return se
}
