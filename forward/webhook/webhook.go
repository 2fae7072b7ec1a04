// Package webhook forwards delegation notifications as HTTP POST requests.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AshkanYarmoradi/go-herald"
	"github.com/AshkanYarmoradi/go-herald/adapters"
)

var _ herald.Publisher = (*Publisher)(nil)

// HeaderPrefix is prepended to every notification header sent as an HTTP header.
const HeaderPrefix = "X-Herald-"

// Publisher posts notifications to HTTP endpoints.
// Destination format: "webhook:https://example.com/delegations"
type Publisher struct {
	client         *http.Client
	defaultHeaders map[string]string
}

// Option configures a webhook Publisher.
type Option func(*Publisher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Publisher) {
		p.client = client
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.client.Timeout = d
	}
}

// WithDefaultHeaders sets default headers added to all requests.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(p *Publisher) {
		for k, v := range headers {
			p.defaultHeaders[k] = v
		}
	}
}

// New creates a new webhook Publisher.
func New(opts ...Option) *Publisher {
	p := &Publisher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		defaultHeaders: map[string]string{
			"Content-Type": "application/json",
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Destination returns the destination prefix this publisher handles.
func (p *Publisher) Destination() string {
	return "webhook"
}

// Publish posts each notification to the URL in its destination.
// All notifications are attempted even if some fail; errors are joined.
func (p *Publisher) Publish(ctx context.Context, notifications []*herald.Notification) error {
	var errs []error
	for _, n := range notifications {
		if err := p.post(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) post(ctx context.Context, n *herald.Notification) error {
	url := adapters.DestinationTarget(n.Destination, "webhook")
	if url == "" {
		return fmt.Errorf("webhook: invalid destination %q: missing URL", n.Destination)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(n.Payload))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}

	for k, v := range p.defaultHeaders {
		req.Header.Set(k, v)
	}

	// Notification headers override defaults
	req.Header.Set(HeaderPrefix+"notification-id", n.ID)
	for k, v := range n.Headers {
		req.Header.Set(HeaderPrefix+k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed for %s: %w", url, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("webhook: server error %d from %s", resp.StatusCode, url)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: client error %d from %s", resp.StatusCode, url)
	}
	return nil
}
