package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultRequestsPerSecond = 5
	maxReadAttempts          = 3
	readRetryBase            = 500 * time.Millisecond
)

// transport is the HTTP plumbing shared by all adapters: a rate-limited
// client with per-instance call accounting. Reads are retried with backoff
// on transport failures; writes go out exactly once.
type transport struct {
	backend    string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	header     http.Header
	log        *logrus.Entry

	mu       sync.Mutex
	requests int
	bytes    int
}

func newTransport(backend, baseURL string, rps float64) *transport {
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	return &transport{
		backend:    backend,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		header:     make(http.Header),
		log:        logrus.WithField("backend", backend),
	}
}

func (t *transport) setHeader(key, value string) {
	t.header.Set(key, value)
}

// stats returns the accumulated call accounting.
func (t *transport) stats() CallStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return CallStats{Requests: t.requests, BytesTransferred: t.bytes}
}

// get performs a rate-limited GET, retrying transport failures up to
// maxReadAttempts with linear backoff. GETs are idempotent, so retrying
// cannot duplicate remote state.
func (t *transport) get(ctx context.Context, url string) ([]byte, int, error) {
	var lastErr error
	for attempt := 1; attempt <= maxReadAttempts; attempt++ {
		body, status, err := t.do(ctx, http.MethodGet, url, nil)
		if err == nil {
			// Retry 5xx/429 responses too; rejections and successes go
			// back to the caller for checkStatus to classify.
			serr := t.checkStatus(status, url)
			if serr == nil || !IsUnavailable(serr) {
				return body, status, nil
			}
			err = serr
		} else if !IsUnavailable(err) {
			return nil, status, err
		}
		lastErr = err
		t.log.WithField("attempt", attempt).Debugf("GET %s failed: %v", url, err)

		select {
		case <-ctx.Done():
			return nil, 0, &RemoteUnavailableError{Backend: t.backend, Err: ctx.Err()}
		case <-time.After(time.Duration(attempt) * readRetryBase):
		}
	}
	return nil, 0, lastErr
}

// send performs a rate-limited write (POST/PUT/DELETE) with an optional
// JSON body. Writes are never retried here: a failed create may or may
// not have landed, and retrying risks a duplicate remote item.
func (t *transport) send(ctx context.Context, method, url string, body any) ([]byte, int, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encoding %s body: %w", method, err)
		}
		payload = bytes.NewReader(data)
	}
	return t.do(ctx, method, url, payload)
}

func (t *transport) do(ctx context.Context, method, url string, body io.Reader) ([]byte, int, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, 0, &RemoteUnavailableError{Backend: t.backend, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+url, body)
	if err != nil {
		return nil, 0, fmt.Errorf("building %s %s: %w", method, url, err)
	}
	for key, values := range t.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	t.log.Debugf("%s %s", method, url)
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, 0, &RemoteUnavailableError{Backend: t.backend, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &RemoteUnavailableError{Backend: t.backend, Err: err}
	}

	t.mu.Lock()
	t.requests++
	t.bytes += len(data)
	t.mu.Unlock()

	return data, resp.StatusCode, nil
}

// checkStatus converts a non-2xx HTTP status into the uniform error
// classification. 5xx and 429 count as unavailable (a read may retry);
// everything else non-2xx is a rejection.
func (t *transport) checkStatus(status int, context string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 500 || status == http.StatusTooManyRequests:
		return &RemoteUnavailableError{
			Backend: t.backend,
			Err:     fmt.Errorf("%s: HTTP %d", context, status),
		}
	default:
		return &RemoteRejectedError{Backend: t.backend, Status: status, Detail: context}
	}
}
