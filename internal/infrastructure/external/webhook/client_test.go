package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/service"
	"github.com/chorenest/chorenest-engine/pkg/circuitbreaker"
	"github.com/chorenest/chorenest-engine/pkg/retry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFastRetrier() *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(5*time.Millisecond),
	)
}

func testNotification() service.Notification {
	return service.Notification{
		ID:          "notif-1",
		RecipientID: "child-1",
		Kind:        shared.EventXPAwarded,
		Title:       "XP earned",
		Body:        "You earned 24 XP",
		CreatedAt:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestClient(t *testing.T, url, secret string) *Client {
	t.Helper()
	cfg := DefaultConfig(url)
	cfg.Secret = secret
	cfg.Logger = testLogger()
	client, err := NewClient(cfg)
	require.NoError(t, err)
	// Fast backoff keeps the retry tests quick.
	client.retrier = newFastRetrier()
	return client
}

func TestClient_DeliversSignedNotification(t *testing.T) {
	var (
		gotBody      []byte
		gotSignature string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get(SignatureHeader)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "household-secret")

	err := client.Notify(context.Background(), testNotification())
	require.NoError(t, err)

	var decoded service.Notification
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "notif-1", decoded.ID)
	assert.Equal(t, "child-1", decoded.RecipientID)
	assert.Equal(t, shared.EventXPAwarded, decoded.Kind)

	assert.Equal(t, Sign("household-secret", gotBody), gotSignature)
}

func TestClient_OmitsSignatureWithoutSecret(t *testing.T) {
	var gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "")

	require.NoError(t, client.Notify(context.Background(), testNotification()))
	assert.Empty(t, gotSignature)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "s")

	err := client.Notify(context.Background(), testNotification())
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestClient_DoesNotRetryRejections(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "s")

	err := client.Notify(context.Background(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Equal(t, int64(1), hits.Load())
}

func TestClient_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "s")

	// Two deliveries of three attempts each trip the five-failure threshold;
	// the sixth attempt is rejected by the breaker without hitting the server.
	require.Error(t, client.Notify(context.Background(), testNotification()))

	err := client.Notify(context.Background(), testNotification())
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, circuitbreaker.StateOpen, client.BreakerState())
	assert.Equal(t, int64(5), hits.Load())
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestRateLimiter_BlocksWhenDrained(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 100,
		BurstSize:         2,
		WaitTimeout:       time.Second,
	})

	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx))
	require.NoError(t, rl.Wait(ctx))

	// Bucket is empty; the third acquire has to wait for a refill.
	start := time.Now()
	require.NoError(t, rl.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestRateLimiter_TimesOut(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 0.1,
		BurstSize:         1,
		WaitTimeout:       20 * time.Millisecond,
	})

	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx))

	err := rl.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, &RateLimitError{})
}
