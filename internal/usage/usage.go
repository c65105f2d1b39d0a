// Package usage enforces the soft daily cap on successful generations.
package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ziadkadry99/draw2ui/internal/kv"
)

// DefaultDailyLimit is the number of successful generations allowed per day.
const DefaultDailyLimit = 3

const keyPrefix = "usage-"

// Status is the outcome of a quota check.
type Status struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
}

// Limiter counts generations per calendar day. Counters are keyed by the
// date in the limiter's location, so a new day starts a fresh count.
type Limiter struct {
	kv    kv.Store
	limit int
	now   func() time.Time
	loc   *time.Location
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLimit overrides DefaultDailyLimit. Non-positive values are ignored.
func WithLimit(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.limit = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLocation sets the time zone that decides where a day begins.
func WithLocation(loc *time.Location) Option {
	return func(l *Limiter) { l.loc = loc }
}

// New creates a Limiter persisting through backend.
func New(backend kv.Store, opts ...Option) *Limiter {
	l := &Limiter{kv: backend, limit: DefaultDailyLimit, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the configured daily cap.
func (l *Limiter) Limit() int { return l.limit }

// Key returns the counter key for the day containing t.
func (l *Limiter) Key(t time.Time) string {
	return keyPrefix + t.In(l.loc).Format("2006-01-02")
}

// Check reports whether another generation is allowed today.
func (l *Limiter) Check(ctx context.Context) (Status, error) {
	used, err := l.Count(ctx)
	if err != nil {
		return Status{}, err
	}
	remaining := l.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Allowed:   used < l.limit,
		Remaining: remaining,
		Used:      used,
		Limit:     l.limit,
	}, nil
}

// Count returns today's raw counter. A missing counter is zero.
func (l *Limiter) Count(ctx context.Context) (int, error) {
	key := l.Key(l.now())
	raw, err := l.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading usage: %w", err)
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("decoding usage counter %s: %w", key, err)
	}
	return n, nil
}

// Increment adds one to today's counter.
func (l *Limiter) Increment(ctx context.Context) error {
	key := l.Key(l.now())
	err := l.kv.Update(ctx, key, func(old []byte, found bool) ([]byte, error) {
		n := 0
		if found {
			parsed, err := strconv.Atoi(string(old))
			if err != nil {
				return nil, fmt.Errorf("decoding usage counter %s: %w", key, err)
			}
			n = parsed
		}
		return []byte(strconv.Itoa(n + 1)), nil
	})
	if err != nil {
		return fmt.Errorf("incrementing usage: %w", err)
	}
	return nil
}

// History returns the recorded counters keyed by date (YYYY-MM-DD).
func (l *Limiter) History(ctx context.Context) (map[string]int, error) {
	keys, err := l.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing usage: %w", err)
	}

	history := make(map[string]int, len(keys))
	for _, key := range keys {
		raw, err := l.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		n, err := strconv.Atoi(string(raw))
		if err != nil {
			continue
		}
		history[key[len(keyPrefix):]] = n
	}
	return history, nil
}
