package httpx

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// Retrier decides whether and when a failed request is sent again.
// 429, 500, 502, 503, 504 and transport errors are retried with exponential
// backoff and jitter; Retry-After wins when the server sends one.
type Retrier struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func NewRetrier(maxRetries int, baseDelay time.Duration) Retrier {
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return Retrier{MaxRetries: maxRetries, BaseDelay: baseDelay, MaxDelay: 60 * time.Second}
}

// Next returns the wait before attempt+1, or false when err is final.
func (r Retrier) Next(attempt int, err error, header http.Header) (time.Duration, bool) {
	if attempt >= r.MaxRetries || !Retryable(err) {
		return 0, false
	}
	if d, ok := retryAfter(header, time.Now()); ok {
		if d > r.MaxDelay {
			d = r.MaxDelay
		}
		return d, true
	}

	delay := float64(r.BaseDelay) * math.Pow(2, float64(attempt))
	delay += rand.Float64() * float64(r.BaseDelay)
	if delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}
	return time.Duration(delay), true
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	return IsStatus(err,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	)
}

func retryAfter(header http.Header, now time.Time) (time.Duration, bool) {
	if header == nil {
		return 0, false
	}
	value := header.Get("Retry-After")
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second)), true
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}
