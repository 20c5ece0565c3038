// Package webhook delivers engine notifications to the host app over HTTP.
//
// The host app registers a single endpoint; every notification is POSTed to
// it as JSON with an HMAC-SHA256 signature header so the receiver can verify
// the payload. Deliveries pass through a token-bucket rate limiter, a circuit
// breaker, and bounded retries so a slow or flapping host app cannot stall
// the event pipeline.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chorenest/chorenest-engine/internal/infrastructure/service"
	"github.com/chorenest/chorenest-engine/pkg/circuitbreaker"
	"github.com/chorenest/chorenest-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the request body.
const SignatureHeader = "X-ChoreNest-Signature"

// Config holds webhook delivery configuration.
type Config struct {
	// EndpointURL is the host-app URL that receives notification POSTs.
	EndpointURL string

	// Secret signs each request body. Empty disables signing.
	Secret string

	// Timeout bounds a single delivery attempt.
	Timeout time.Duration

	// RateLimiterConfig controls the token bucket in front of the endpoint.
	RateLimiterConfig RateLimiterConfig

	// Logger for delivery logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns delivery defaults for the given endpoint.
func DefaultConfig(endpointURL string) Config {
	return Config{
		EndpointURL:       endpointURL,
		Timeout:           10 * time.Second,
		RateLimiterConfig: DefaultRateLimiterConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client posts notifications to the host app. It implements service.Notifier.
type Client struct {
	config      Config
	httpClient  *http.Client
	logger      *slog.Logger
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
	retrier     *retry.Retrier
}

// NewClient creates a webhook client from config.
func NewClient(config Config) (*Client, error) {
	if config.EndpointURL == "" {
		return nil, fmt.Errorf("webhook: endpoint URL is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "webhook")

	breaker := circuitbreaker.New("webhook",
		circuitbreaker.WithFailureThreshold(5),
		circuitbreaker.WithSuccessThreshold(1),
		circuitbreaker.WithTimeout(30*time.Second),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
	)

	retrier := retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(200*time.Millisecond),
		retry.WithMaxDelay(2*time.Second),
		retry.WithMultiplier(2.0),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Debug("retrying delivery",
				"attempt", attempt,
				"delay", delay.String(),
				"error", err.Error(),
			)
		}),
	)

	return &Client{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		logger:      logger,
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		breaker:     breaker,
		retrier:     retrier,
	}, nil
}

// Notify implements service.Notifier. The notification is serialized once;
// each retry resends the same signed body.
func (c *Client) Notify(ctx context.Context, n service.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("webhook: marshal notification: %w", err)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}

	start := time.Now()
	err = c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.post(ctx, body)
		})
	})
	if err != nil {
		c.logger.Error("delivery failed",
			"notification_id", n.ID,
			"kind", n.Kind,
			"error", err.Error(),
		)
		return fmt.Errorf("webhook: deliver %s: %w", n.Kind, err)
	}

	c.logger.Debug("delivered",
		"notification_id", n.ID,
		"kind", n.Kind,
		"latency", time.Since(start).String(),
	)
	return nil
}

// post performs a single delivery attempt and classifies the outcome:
// 5xx and 429 are retryable, other non-2xx statuses are not.
func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "chorenest-engine/1.0")
	if c.config.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(c.config.Secret, body))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("post: %w", err))
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return retry.Retryable(fmt.Errorf("endpoint returned %d", resp.StatusCode))
	default:
		return fmt.Errorf("endpoint rejected notification with %d", resp.StatusCode)
	}
}

// BreakerState exposes the current circuit state for health reporting.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// Sign returns the hex-encoded HMAC-SHA256 of body under secret. Receivers
// recompute it to verify the request came from the engine.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
