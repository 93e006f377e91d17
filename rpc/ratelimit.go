package rpc

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	paymentsPerMinute = 30
	paymentBurst      = 5
)

// PaymentLimiter throttles payment submissions per calling source.
type PaymentLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

func NewPaymentLimiter() *PaymentLimiter {
	return &PaymentLimiter{visitors: make(map[string]*rate.Limiter)}
}

// Allow reports whether one more payment from source fits its budget.
func (l *PaymentLimiter) Allow(source string, now time.Time) bool {
	if source == "" {
		source = "unknown"
	}
	l.mu.Lock()
	limiter, ok := l.visitors[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(paymentsPerMinute/60.0), paymentBurst)
		l.visitors[source] = limiter
	}
	l.mu.Unlock()
	return limiter.AllowN(now, 1)
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
