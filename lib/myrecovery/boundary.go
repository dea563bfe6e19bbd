package myrecovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/valter-tonon/digimenu-core/lib/mylog"
)

type State string

const (
	StateHealthy  State = "healthy"
	StateRetrying State = "retrying"
	// StateTerminal means retries are exhausted; only a full restart of the
	// guarded unit recovers from here.
	StateTerminal State = "terminal"
)

// Scheduler abstracts timer scheduling so tests can fire retries without
// real delays. AfterFunc returns a cancel function.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) func()
}

type realScheduler struct{}

func NewScheduler() Scheduler {
	return realScheduler{}
}

func (realScheduler) AfterFunc(d time.Duration, f func()) func() {
	timer := time.AfterFunc(d, f)
	return func() { timer.Stop() }
}

type Config struct {
	MaxRetries int
	RetryDelay time.Duration
	AutoRetry  bool
}

// Boundary guards a unit of work that can fail repeatedly (the analog of a
// crashing view subtree): failures trigger delayed automatic recovery with a
// doubling delay, a manual retry skips the delay but spends the same budget,
// and an exhausted budget is terminal.
type Boundary struct {
	mutex         sync.Mutex
	cfg           Config
	scheduler     Scheduler
	logger        mylog.Logger
	recoverFn     func()
	retryCount    int
	state         State
	cancelPending func()
}

func NewBoundary(cfg Config, scheduler Scheduler, logger mylog.Logger, recoverFn func()) *Boundary {
	return &Boundary{
		cfg:       cfg,
		scheduler: scheduler,
		logger:    logger,
		recoverFn: recoverFn,
		state:     StateHealthy,
	}
}

// Guard runs f, converting panics into errors, and applies the recovery
// policy to the outcome. Success resets the retry budget.
func (b *Boundary) Guard(c context.Context, f func(c context.Context) error) State {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return f(c)
	}()

	if err == nil {
		b.Reset()
		return StateHealthy
	}

	return b.OnFailure(c, err)
}

// OnFailure records one failure. While the budget lasts and auto-retry is on,
// recovery is scheduled at RetryDelay * 2^n; otherwise the boundary goes
// terminal.
func (b *Boundary) OnFailure(c context.Context, err error) State {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.state == StateTerminal {
		return StateTerminal
	}

	if b.cfg.AutoRetry && b.retryCount < b.cfg.MaxRetries {
		delay := b.cfg.RetryDelay << b.retryCount
		b.retryCount++
		b.state = StateRetrying

		b.logger.Log(c, "", mylog.SeverityWarn, "Failure %d: %s, recovery scheduled in %s", b.retryCount, err, delay)

		// a failure reported while a retry is still pending replaces it,
		// otherwise the orphaned timer fires recoverFn a second time
		if b.cancelPending != nil {
			b.cancelPending()
		}
		b.cancelPending = b.scheduler.AfterFunc(delay, func() {
			b.mutex.Lock()
			b.cancelPending = nil
			recoverFn := b.recoverFn
			b.mutex.Unlock()

			if recoverFn != nil {
				recoverFn()
			}
		})

		return StateRetrying
	}

	b.state = StateTerminal
	b.logger.Log(c, "", mylog.SeverityError, "Failure after %d retries: %s, giving up", b.retryCount, err)

	return StateTerminal
}

// Retry recovers immediately, bypassing the scheduled delay but spending the
// same retry budget.
func (b *Boundary) Retry(c context.Context) error {
	b.mutex.Lock()

	if b.state == StateTerminal || b.retryCount >= b.cfg.MaxRetries {
		b.state = StateTerminal
		b.mutex.Unlock()
		return fmt.Errorf("max retries (%d) reached", b.cfg.MaxRetries)
	}

	if b.cancelPending != nil {
		b.cancelPending()
		b.cancelPending = nil
	}
	b.retryCount++
	recoverFn := b.recoverFn
	b.mutex.Unlock()

	if recoverFn != nil {
		recoverFn()
	}

	return nil
}

// Reset clears the failure history after a success.
func (b *Boundary) Reset() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.retryCount = 0
	b.state = StateHealthy
}

func (b *Boundary) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.state
}

func (b *Boundary) FailureCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.retryCount
}

// Close cancels any pending recovery so a disposed boundary cannot fire.
func (b *Boundary) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.cancelPending != nil {
		b.cancelPending()
		b.cancelPending = nil
	}
}
