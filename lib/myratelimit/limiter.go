package myratelimit

import (
	"sync"
	"time"

	"github.com/valter-tonon/digimenu-core/lib/mytime"
)

const (
	keyPrefix = "rate_limit:"

	DefaultLimit       = 10
	defaultWindow      = time.Minute
	defaultBlockPeriod = 5 * time.Minute
)

// Limiter is a fixed-window request counter with an escalating block: once a
// window overflows, the key is blocked for a flat period regardless of count.
// It deliberately admits a burst of up to 2x the limit across a window
// boundary; the backend enforces the real limit and answers 429.
//
// State is local to this instance and is not shared with peers.
type Limiter struct {
	mutex       sync.Mutex
	entries     map[string]*entry
	nower       mytime.Nower
	window      time.Duration
	blockPeriod time.Duration
}

type entry struct {
	count           int
	windowResetTime time.Time
	blocked         bool
	blockResetTime  time.Time
}

type Option func(*Limiter)

func WithWindow(d time.Duration) Option {
	return func(l *Limiter) { l.window = d }
}

func WithBlockPeriod(d time.Duration) Option {
	return func(l *Limiter) { l.blockPeriod = d }
}

func New(nower mytime.Nower, opts ...Option) *Limiter {
	l := &Limiter{
		entries:     make(map[string]*entry),
		nower:       nower,
		window:      defaultWindow,
		blockPeriod: defaultBlockPeriod,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Decision tells the caller whether the call may proceed and, when it may
// not, when to come back.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// IsAllowed admits or rejects one call against the endpoint's window.
// The counter only has meaning within the current window; a blocked key
// rejects everything until the block period has fully elapsed.
func (l *Limiter) IsAllowed(endpoint string, limit int) bool {
	return l.Decide(endpoint, limit).Allowed
}

func (l *Limiter) Decide(endpoint string, limit int) Decision {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.nower.Now()
	key := keyPrefix + endpoint

	e, exists := l.entries[key]
	if !exists {
		l.entries[key] = &entry{
			count:           1,
			windowResetTime: now.Add(l.window),
		}
		return Decision{Allowed: true}
	}

	if e.blocked {
		if now.Before(e.blockResetTime) {
			return Decision{Allowed: false, RetryAfter: e.blockResetTime.Sub(now)}
		}
		// block elapsed: treat as fresh
		e.blocked = false
		e.count = 1
		e.windowResetTime = now.Add(l.window)
		return Decision{Allowed: true}
	}

	if now.After(e.windowResetTime) {
		e.count = 1
		e.windowResetTime = now.Add(l.window)
		return Decision{Allowed: true}
	}

	if e.count < limit {
		e.count++
		return Decision{Allowed: true}
	}

	e.blocked = true
	e.blockResetTime = now.Add(l.blockPeriod)
	return Decision{Allowed: false, RetryAfter: l.blockPeriod}
}

func (l *Limiter) IsBlocked(endpoint string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	e, exists := l.entries[keyPrefix+endpoint]
	if !exists || !e.blocked {
		return false
	}

	return l.nower.Now().Before(e.blockResetTime)
}

// GetRemaining reports how many calls are left in the current window.
func (l *Limiter) GetRemaining(endpoint string, limit int) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.nower.Now()

	e, exists := l.entries[keyPrefix+endpoint]
	if !exists {
		return limit
	}
	if e.blocked && now.Before(e.blockResetTime) {
		return 0
	}
	if now.After(e.windowResetTime) {
		return limit
	}

	remaining := limit - e.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// GetResetTime reports when the endpoint admits calls again: the end of the
// block when blocked, the end of the window otherwise.
func (l *Limiter) GetResetTime(endpoint string) time.Time {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	e, exists := l.entries[keyPrefix+endpoint]
	if !exists {
		return l.nower.Now()
	}
	if e.blocked {
		return e.blockResetTime
	}
	return e.windowResetTime
}

// ExhaustUntil force-blocks the endpoint until the given deadline. Used when
// the backend answers 429: its Retry-After wins over the local window math.
func (l *Limiter) ExhaustUntil(endpoint string, deadline time.Time) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	key := keyPrefix + endpoint
	e, exists := l.entries[key]
	if !exists {
		e = &entry{}
		l.entries[key] = e
	}
	e.blocked = true
	e.blockResetTime = deadline
}

func (l *Limiter) Reset(endpoint string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	delete(l.entries, keyPrefix+endpoint)
}

func (l *Limiter) ClearAll() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.entries = make(map[string]*entry)
}
