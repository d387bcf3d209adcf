package web

// limiter.go bounds the number of pipeline runs served at once.
//
// Each run holds both input tables and the merged table in memory, so the
// server admits at most maxConcurrent runs. When all slots are taken a
// request waits up to maxWait before failing with ErrTooManyRuns.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyRuns is returned when no run slot frees up within the wait
// timeout. Clients should retry after a short delay.
var ErrTooManyRuns = errors.New("too many concurrent runs, please try again later")

const (
	defaultMaxConcurrentRuns = 5
	defaultMaxWait           = 30 * time.Second
)

// RunLimiter is a semaphore over pipeline runs.
type RunLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewRunLimiter allows at most maxConcurrent runs. Non-positive arguments
// fall back to defaults.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}

	return &RunLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting up to the limiter's maxWait. The caller
// must call Release once the run is done.
func (l *RunLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyRuns
	}
}

// Release frees a slot taken by Acquire.
func (l *RunLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.slots
}

// ActiveCount returns the number of runs in progress.
func (l *RunLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no run is in progress or ctx is done.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of the limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *RunLimiter) Status() LimiterStatus {
	active := l.ActiveCount()
	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
