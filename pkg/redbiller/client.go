/**
 * @description
 * This package provides the HTTP client for the Redbiller billing aggregator.
 * It signs requests with the account private key, resolves version-templated
 * endpoint paths per functional area, retries transport-level failures with a
 * fixed backoff, and normalizes every upstream reply into a uniform envelope.
 *
 * Application-level failures (non-2xx, error bodies) are never surfaced as Go
 * errors: they come back as Response{OK:false} and callers branch on OK. The
 * error return is reserved for configuration mistakes (unknown endpoint) and
 * request construction failures.
 */

package redbiller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Config carries everything the client needs at construction time. Endpoint
// templates and per-area versions are injected rather than hard-coded so test
// and live environments stay a config swap apart.
type Config struct {
	BaseURL      string
	PrivateKey   string
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
	Versions     map[string]string            // area -> API version
	Endpoints    map[string]map[string]string // area -> operation -> path template
}

// Response is the uniform envelope for every upstream reply. JSON is nil when
// the body did not parse; RawBody always carries the exact bytes received.
type Response struct {
	OK         bool
	StatusCode int
	JSON       map[string]any
	RawBody    string
}

// Client is the Redbiller API client.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient builds a client from the given config, filling in defaults for
// anything unset.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 300 * time.Millisecond
	}
	if cfg.Versions == nil {
		cfg.Versions = DefaultVersions()
	}
	if cfg.Endpoints == nil {
		cfg.Endpoints = DefaultEndpoints()
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Path resolves (area, operation) to a concrete endpoint path. An unknown
// pair is a configuration error and is never retried.
func (c *Client) Path(area, operation string) (string, error) {
	ops, ok := c.cfg.Endpoints[area]
	if !ok {
		return "", fmt.Errorf("redbiller: unknown endpoint area %q", area)
	}
	tpl, ok := ops[operation]
	if !ok {
		return "", fmt.Errorf("redbiller: unknown endpoint %s.%s", area, operation)
	}
	version := c.cfg.Versions[area]
	if version == "" {
		version = "1.0"
	}
	return strings.ReplaceAll(tpl, "{v}", version), nil
}

// Call posts the payload to the endpoint for (area, operation) and returns
// the normalized envelope. Transport failures are retried up to the
// configured count with a fixed backoff; an exhausted retry budget reports
// OK=false rather than an error. Retries reuse the same path and payload, so
// provider-side idempotency on reference governs duplicate submission.
func (c *Client) Call(ctx context.Context, area, operation string, payload map[string]any) (Response, error) {
	path, err := c.Path(area, operation)
	if err != nil {
		return Response{}, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("redbiller: marshal payload for %s.%s: %w", area, operation, err)
	}

	var lastErr error
	attempts := c.cfg.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.cfg.RetryBackoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = attempts // exits after this iteration
				continue
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if reqErr != nil {
			return Response{}, fmt.Errorf("redbiller: build request for %s: %w", path, reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Private-Key", c.cfg.PrivateKey)

		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			lastErr = doErr
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		envelope := Response{
			OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
			StatusCode: resp.StatusCode,
			RawBody:    string(raw),
		}
		var parsed map[string]any
		if json.Unmarshal(raw, &parsed) == nil {
			envelope.JSON = parsed
		}

		if !envelope.OK {
			log.Printf("level=warn component=redbiller msg=\"upstream error\" path=%s status=%d body=%q", path, resp.StatusCode, truncate(envelope.RawBody, 512))
		}
		return envelope, nil
	}

	log.Printf("level=warn component=redbiller msg=\"transport failure\" path=%s attempts=%d err=%v", path, attempts, lastErr)
	return Response{OK: false, RawBody: fmt.Sprintf("transport failure: %v", lastErr)}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
