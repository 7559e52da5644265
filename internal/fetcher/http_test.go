package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/risk-enrichment/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testClient() *Client {
	return New(Options{
		UserAgent: "risk-test/1.0",
		Timeout:   5 * time.Second,
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		},
	})
}

func TestClientJSON_PostWithHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "risk-test/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Jane", body["first_name"])

		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := testClient().JSON(context.Background(), Request{
		Source: "a_leads",
		Method: http.MethodPost,
		URL:    srv.URL,
		Header: map[string]string{"X-API-Key": "secret"},
		Body:   map[string]string{"first_name": "Jane"},
	}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestClientDo_QueryEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `debtor:"Smith"`, r.URL.Query().Get("q"))
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	_, err := testClient().Do(context.Background(), Request{
		Source: "courtlistener",
		URL:    srv.URL,
		Query:  url.Values{"q": {`debtor:"Smith"`}},
	})
	require.NoError(t, err)
}

func TestClientDo_NotFoundIsTyped(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient().Do(context.Background(), Request{Source: "hibp", URL: srv.URL})
	require.Error(t, err)
	assert.True(t, resilience.IsNotFound(err))
	assert.Equal(t, int32(1), calls.Load(), "404 must not be retried")
}

func TestClientDo_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	body, err := testClient().Do(context.Background(), Request{Source: "hibp", URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDo_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Options{
		Retry:    resilience.RetryConfig{MaxAttempts: 1},
		Breakers: resilience.NewBreakers(resilience.BreakerConfig{FailureThreshold: 2, CoolOff: time.Minute}),
	})
	for i := 0; i < 2; i++ {
		_, err := c.Do(context.Background(), Request{Source: "whoisxml", URL: srv.URL})
		require.Error(t, err)
	}

	_, err := c.Do(context.Background(), Request{Source: "whoisxml", URL: srv.URL})
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientDo_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := testClient().Do(ctx, Request{Source: "uscg_psix", URL: srv.URL})
	require.Error(t, err)
}

func TestClientDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("a,b\n1,2\n"))
	}))
	defer srv.Close()

	rc, err := testClient().Download(context.Background(), "nsc_bulk", srv.URL)
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestClientDownload_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient().Download(context.Background(), "nsc_bulk", srv.URL)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resilience.StatusCode(err))
}
