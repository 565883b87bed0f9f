// Package ratelimit throttles repeated failed logins per email and client IP.
// After MaxAttempts failures inside Window the pair is locked for LockFor;
// a successful login clears the counter.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strings"
	"time"

	dErrors "housing/pkg/domain-errors"
	"housing/pkg/requestcontext"
)

// Record is the failure state kept for one email/IP pair.
type Record struct {
	Failures int
	// ResetAt is when the store forgets the record: the end of the counting
	// window, or of the lock once one applies.
	ResetAt time.Time
}

// Store keeps failure counters. Missing keys read as a zero Record.
type Store interface {
	Get(ctx context.Context, key string) (Record, error)
	AddFailure(ctx context.Context, key string, window time.Duration) (Record, error)
	Extend(ctx context.Context, key string, until time.Time) error
	Clear(ctx context.Context, key string) error
}

// LockedError reports a throttled login and how long the caller must wait.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many failed logins, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *LockedError) DomainCode() dErrors.Code { return dErrors.CodeRateLimited }

// RetryAfterSeconds rounds up so clients never retry early.
func (e *LockedError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

type Limits struct {
	MaxAttempts int
	Window      time.Duration
	LockFor     time.Duration
}

// DefaultLimits allows five failures per fifteen minutes.
var DefaultLimits = Limits{MaxAttempts: 5, Window: 15 * time.Minute, LockFor: 15 * time.Minute}

type LoginLimiter struct {
	store  Store
	limits Limits
	logger *slog.Logger
}

type Option func(*LoginLimiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *LoginLimiter) {
		l.logger = logger
	}
}

func WithLimits(limits Limits) Option {
	return func(l *LoginLimiter) {
		if limits.MaxAttempts > 0 {
			l.limits.MaxAttempts = limits.MaxAttempts
		}
		if limits.Window > 0 {
			l.limits.Window = limits.Window
		}
		if limits.LockFor > 0 {
			l.limits.LockFor = limits.LockFor
		}
	}
}

func New(store Store, opts ...Option) (*LoginLimiter, error) {
	if store == nil {
		return nil, errors.New("login lockout store is required")
	}
	l := &LoginLimiter{
		store:  store,
		limits: DefaultLimits,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Check returns a *LockedError while the pair is over its limit.
func (l *LoginLimiter) Check(ctx context.Context, email, ip string) error {
	rec, err := l.store.Get(ctx, key(email, ip))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read login attempts")
	}
	if rec.Failures < l.limits.MaxAttempts {
		return nil
	}
	return &LockedError{RetryAfter: max(rec.ResetAt.Sub(requestcontext.Now(ctx)), time.Second)}
}

// RecordFailure counts a failed login and applies the lock once the limit is
// reached.
func (l *LoginLimiter) RecordFailure(ctx context.Context, email, ip string) error {
	k := key(email, ip)
	rec, err := l.store.AddFailure(ctx, k, l.limits.Window)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login failure")
	}
	if rec.Failures != l.limits.MaxAttempts {
		return nil
	}

	until := requestcontext.Now(ctx).Add(l.limits.LockFor)
	if err := l.store.Extend(ctx, k, until); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock login")
	}
	l.logger.WarnContext(ctx, "login locked",
		"request_id", requestcontext.RequestID(ctx),
		"ip", anonymizeIP(ip),
		"locked_until", until,
	)
	return nil
}

func (l *LoginLimiter) Reset(ctx context.Context, email, ip string) error {
	if err := l.store.Clear(ctx, key(email, ip)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear login failures")
	}
	return nil
}

func key(email, ip string) string {
	return strings.ToLower(strings.TrimSpace(email)) + "|" + ip
}

// anonymizeIP drops the host part: last octet for IPv4, last 80 bits for IPv6.
func anonymizeIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}
