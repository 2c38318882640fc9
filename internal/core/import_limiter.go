package core

// import_limiter.go bounds how many CSV imports are parsed at once.
//
// Each import holds the whole file in memory, so the limiter caps parallel
// imports with a semaphore. When all slots are taken, new requests wait up
// to maxWait and then fail with ErrTooManyImports. WaitForDrain lets the
// server finish in-flight imports before shutting down.

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxConcurrentImports is the default limit for parallel imports.
const DefaultMaxConcurrentImports = 3

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 10 * time.Second

// ImportLimiter controls concurrent import processing using a semaphore.
type ImportLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewImportLimiter creates a limiter that allows at most maxConcurrent
// simultaneous imports. Non-positive arguments select the defaults.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &ImportLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire waits for an import slot.
// Returns ErrTooManyImports if none frees up within maxWait, or the
// context's error if ctx ends first. Callers must Release on success.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyImports
	}
}

// TryAcquire attempts to acquire a slot without blocking.
func (l *ImportLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release releases a previously acquired slot.
// Must be called exactly once for each successful Acquire/TryAcquire.
func (l *ImportLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of imports in progress.
func (l *ImportLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until all active imports complete or ctx ends.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
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

// ImportLimiterStatus is a snapshot of the limiter's state.
type ImportLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current limiter state.
func (l *ImportLimiter) Status() ImportLimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return ImportLimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
