package client

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"
)

// RetryConfig configures retry behavior for transient backend failures.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Jitter            float64
	RetryableStatus   []int
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryableStatus: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// ErrCircuitOpen is returned when the breaker rejects a request outright.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

type circuitBreaker struct {
	mu        sync.Mutex
	config    BreakerConfig
	state     breakerState
	failures  int
	successes int
	openedAt  time.Time
}

func (cb *circuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == breakerOpen {
		if time.Since(cb.openedAt) > cb.config.Timeout {
			cb.state = breakerHalfOpen
			cb.successes = 0
			return nil
		}
		return ErrCircuitOpen
	}
	return nil
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		cb.failures = 0
	case breakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = breakerClosed
			cb.failures = 0
		}
	}
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.state = breakerOpen
			cb.openedAt = time.Now()
		}
	case breakerHalfOpen:
		cb.state = breakerOpen
		cb.openedAt = time.Now()
	}
}

// resilientTransport retries transient failures and trips a circuit breaker
// on persistent ones.
type resilientTransport struct {
	base    http.RoundTripper
	retry   RetryConfig
	breaker *circuitBreaker
}

// NewResilientClient returns an HTTP client whose transport retries
// transient failures with exponential backoff behind a circuit breaker.
func NewResilientClient(retry RetryConfig, breaker BreakerConfig) *http.Client {
	base := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &resilientTransport{
			base:    base,
			retry:   retry,
			breaker: &circuitBreaker{config: breaker},
		},
	}
}

func (rt *resilientTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := rt.breaker.allow(); err != nil {
		return nil, err
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= rt.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(rt.backoff(attempt)):
			}
			req = req.Clone(req.Context())
		}

		resp, lastErr = rt.base.RoundTrip(req)
		if lastErr != nil {
			if rt.retryableError(lastErr) {
				continue
			}
			rt.breaker.recordFailure()
			return nil, lastErr
		}

		if rt.retryableStatus(resp.StatusCode) {
			lastErr = &Error{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
			resp.Body.Close()
			continue
		}

		rt.breaker.recordSuccess()
		return resp, nil
	}

	rt.breaker.recordFailure()
	return resp, lastErr
}

func (rt *resilientTransport) backoff(attempt int) time.Duration {
	backoff := float64(rt.retry.InitialBackoff) * math.Pow(rt.retry.BackoffMultiplier, float64(attempt-1))
	if backoff > float64(rt.retry.MaxBackoff) {
		backoff = float64(rt.retry.MaxBackoff)
	}
	if rt.retry.Jitter > 0 {
		backoff += backoff * rt.retry.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(backoff)
}

func (rt *resilientTransport) retryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func (rt *resilientTransport) retryableStatus(code int) bool {
	for _, retryable := range rt.retry.RetryableStatus {
		if code == retryable {
			return true
		}
	}
	return false
}
