package routes

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultSamplerTimeout bounds a single call into caller-supplied code.
const DefaultSamplerTimeout = 1500 * time.Millisecond

// ErrDeadline is returned by CallWithDeadline when fn does not finish in time.
var ErrDeadline = errors.New("callback deadline exceeded")

// CallWithDeadline runs fn in its own goroutine and waits at most timeout for
// it. A panic in fn is returned as an error. When the deadline passes fn keeps
// running in the background and its result is discarded.
func CallWithDeadline[T any](fn func() T, timeout time.Duration) (T, error) {
	if timeout <= 0 {
		timeout = DefaultSamplerTimeout
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("callback panicked: %v", r)}
			}
		}()
		done <- result{value: fn()}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.value, r.err
	case <-timer.C:
		var zero T
		return zero, fmt.Errorf("%w after %s", ErrDeadline, timeout)
	}
}

// callSampler asks the sampler for values of name. A timeout or panic yields
// nil so the caller falls back to the next value source.
func callSampler(fn func(string) []string, name string, timeout time.Duration) []string {
	values, err := CallWithDeadline(func() []string { return fn(name) }, timeout)
	if err != nil {
		log.Warn().Err(err).Str("param", name).Msg("Ignoring parameter sampler result")
		return nil
	}
	return values
}
