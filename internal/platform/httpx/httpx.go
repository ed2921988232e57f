package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPStatusCoder is implemented by errors that carry an upstream HTTP
// status, letting retry policy decide without string matching.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// IsRetryableError reports whether a request that failed with err is worth
// retrying. Context cancellation is never retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return isRetryableStatus(sc.HTTPStatusCode())
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout() || isTemporary(ne)
	}
	// Transport-level failures without a status are usually transient.
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF")
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return status >= 500
}

type temporary interface {
	Temporary() bool
}

func isTemporary(err error) bool {
	var t temporary
	return errors.As(err, &t) && t.Temporary()
}

// RetryAfterDuration parses a Retry-After header value, accepting both the
// delta-seconds and HTTP-date forms. Returns 0 when absent or unparseable.
func RetryAfterDuration(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// JitterSleep sleeps for d plus or minus up to 20%, returning early if the
// context is done. Jitter spreads retries from concurrent callers.
func JitterSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	spread := int64(float64(d) * 0.2)
	if spread > 0 {
		d += time.Duration(rand.Int63n(2*spread) - spread)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
