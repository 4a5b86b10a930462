package backend

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

const (
	maxTransientRetries = 3
	backoffBase         = 1 * time.Second
	backoffFactor       = 2
	backoffCap          = 10 * time.Second
)

// retryTransient runs fn up to maxTransientRetries+1 times, backing off
// exponentially on retryable failures. Cancellation aborts the wait.
func retryTransient(ctx context.Context, fn func() error) error {
	delay := backoffBase
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		var be *Error
		if !errors.As(err, &be) || !be.Retryable || attempt >= maxTransientRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= backoffFactor
		if delay > backoffCap {
			delay = backoffCap
		}
	}
}

// isTimeout reports whether err represents a network/read timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// newPooledClient builds an HTTP client with the shared pooling and timeout
// discipline: short dial, pooled connections, per-request read deadline.
func newPooledClient(readTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	return &http.Client{
		Timeout: readTimeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
