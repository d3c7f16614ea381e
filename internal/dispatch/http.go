package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/antigravity-dev/jido/internal/signal"
)

const defaultHTTPTimeout = 5 * time.Second

// defaultClient returns an http.Client instrumented with an OpenTelemetry
// round tripper, so outbound dispatch requests are visible in the same
// trace as the server.directive.* spans that issued them (spec.md §6.3).
func defaultClient() *http.Client {
	return &http.Client{
		Timeout:   defaultHTTPTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// HTTP posts the signal's CloudEvents JSON representation to url
// (spec.md §4.7 "http(url, headers?, signing?)").
type HTTP struct {
	URL     string
	Headers map[string]string

	Client  *http.Client
	Retry   RetryPolicy
	Limiter *rate.Limiter
}

func (HTTP) Kind() string { return "http" }

func (h HTTP) Send(ctx context.Context, sig signal.Signal) error {
	return deliverWithRetry(ctx, h.client(), h.Limiter, h.Retry, func(req *http.Request) {
		for k, v := range h.Headers {
			req.Header.Set(k, v)
		}
	}, h.URL, sig)
}

func (h HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return defaultClient()
}

// Webhook is an HTTP post with an HMAC-SHA256 signature header, matching
// spec.md §4.7 "webhook(url, secret) — like HTTP plus HMAC signature
// header".
type Webhook struct {
	URL    string
	Secret string

	Client  *http.Client
	Retry   RetryPolicy
	Limiter *rate.Limiter
}

func (Webhook) Kind() string { return "webhook" }

func (w Webhook) Send(ctx context.Context, sig signal.Signal) error {
	return deliverWithRetry(ctx, w.client(), w.Limiter, w.Retry, func(req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.Header.Set("X-Jido-Signature", signBody(w.Secret, body))
	}, w.URL, sig)
}

func (w Webhook) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return defaultClient()
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// deliverWithRetry POSTs sig's CloudEvents JSON to url, retrying per
// policy on transport errors and non-2xx responses. A configured limiter
// is waited on before every attempt, including retries.
func deliverWithRetry(ctx context.Context, client *http.Client, limiter *rate.Limiter, policy RetryPolicy, decorate func(*http.Request), url string, sig signal.Signal) error {
	body, err := sig.MarshalJSON()
	if err != nil {
		return fmt.Errorf("dispatch: marshal signal: %w", err)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("dispatch: rate limiter: %w", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("dispatch: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/cloudevents+json")
		if decorate != nil {
			decorate(req)
		}

		resp, err := client.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			lastErr = fmt.Errorf("dispatch: %s returned status %d", url, resp.StatusCode)
		} else {
			lastErr = fmt.Errorf("dispatch: %s: %w", url, err)
		}

		delay, shouldRetry := policy.NextDelay(attempt)
		if !shouldRetry {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
