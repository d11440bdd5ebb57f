// Package executor runs a single adapter call under a wall-clock budget
// while reporting liveness to observers.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/lumenlab/axon/pkg/events"
	"github.com/lumenlab/axon/pkg/logging"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultSlowAfter    = 5 * time.Second
)

// TimeoutError reports that the call exceeded its wall-clock budget.
type TimeoutError struct {
	Timeout time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("inference timed out after %.2fs (budget %.0fs)", e.Elapsed.Seconds(), e.Timeout.Seconds())
}

// Call is the unit of work: one blocking adapter invocation.
type Call func() (string, error)

// Executor supervises one worker goroutine per Run. The supervisor polls
// instead of blocking so it can emit heartbeats while the call is
// outstanding. The timeout is advisory: on expiry the worker is abandoned,
// not cancelled, so a timed-out call may still consume backend quota.
type Executor struct {
	interval  time.Duration
	slowAfter time.Duration
	emitter   events.Emitter
	logger    *logging.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithPollInterval overrides the heartbeat poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(e *Executor) { e.interval = d }
}

// WithSlowAfter overrides the slow-warning threshold.
func WithSlowAfter(d time.Duration) Option {
	return func(e *Executor) { e.slowAfter = d }
}

// New creates an executor.
func New(emitter events.Emitter, logger *logging.Logger, opts ...Option) *Executor {
	e := &Executor{
		interval:  defaultPollInterval,
		slowAfter: defaultSlowAfter,
		emitter:   emitter,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type result struct {
	text string
	err  error
}

// Run starts the call on a worker goroutine and polls until it finishes, the
// timeout expires, or ctx is done. Every poll emits a heartbeat carrying the
// elapsed time; the first poll past the slow threshold additionally emits one
// warning. Returns the call's text and the measured elapsed duration.
func (e *Executor) Run(ctx context.Context, call Call, timeout time.Duration) (string, time.Duration, error) {
	start := time.Now()

	// Buffered so the abandoned worker can still complete and exit.
	done := make(chan result, 1)
	go func() {
		text, err := call()
		done <- result{text: text, err: err}
	}()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	warned := false
	for {
		select {
		case r := <-done:
			elapsed := time.Since(start)
			if r.err != nil {
				return "", elapsed, r.err
			}
			return r.text, elapsed, nil

		case <-ctx.Done():
			return "", time.Since(start), ctx.Err()

		case <-ticker.C:
			elapsed := time.Since(start)
			e.emitter.Emit(events.TopicInference, events.InferencePayload{
				Type:        "time",
				ElapsedTime: fmt.Sprintf("%.2f", elapsed.Seconds()),
			})
			if !warned && elapsed >= e.slowAfter {
				warned = true
				e.emitter.Emit(events.TopicInference, events.InferencePayload{
					Type:    "warning",
					Message: "Inference is taking longer than expected",
				})
			}
			if elapsed > timeout {
				e.logger.Warn("abandoning inference worker",
					zap.Duration("elapsed", elapsed),
					zap.Duration("timeout", timeout),
				)
				return "", elapsed, &TimeoutError{Timeout: timeout, Elapsed: elapsed}
			}
		}
	}
}
