package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrUpstreamUnavailable is returned while a host's breaker is open.
var ErrUpstreamUnavailable = errors.New("upstream unavailable (circuit breaker open)")

// breakerSet keeps one breaker per upstream host. A nil set disables
// breaking entirely.
type breakerSet struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
	logger   *zap.Logger
}

func newBreakerSet(logger *zap.Logger) *breakerSet {
	return &breakerSet{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		logger:   logger,
	}
}

func (s *breakerSet) get(host string) *gobreaker.CircuitBreaker {
	s.mu.RLock()
	cb, ok := s.breakers[host]
	s.mu.RUnlock()
	if ok {
		return cb
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok = s.breakers[host]; ok {
		return cb
	}

	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream-" + host,
		MaxRequests: 3,
		Interval:    2 * time.Minute,
		Timeout:     10 * time.Second,
		IsSuccessful: func(err error) bool {
			var gone *callerGone
			return err == nil || errors.As(err, &gone)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.5)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	s.breakers[host] = cb
	return cb
}

// callerGone marks a failure caused by the caller's own context ending.
type callerGone struct{ err error }

func (e *callerGone) Error() string { return e.err.Error() }
func (e *callerGone) Unwrap() error { return e.err }

// execute runs fn through the host's breaker. parent is the caller's context
// before the per-call timeout was applied.
func (s *breakerSet) execute(parent context.Context, host string, fn func() (*reply, error)) (*reply, error) {
	if s == nil {
		return fn()
	}

	out, err := s.get(host).Execute(func() (interface{}, error) {
		res, err := fn()
		if err != nil && (parent.Err() != nil || errors.Is(err, context.Canceled)) {
			return nil, &callerGone{err: err}
		}
		return res, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w", host, ErrUpstreamUnavailable)
		}
		var gone *callerGone
		if errors.As(err, &gone) {
			return nil, gone.err
		}
		return nil, err
	}
	return out.(*reply), nil
}
