// Package clock is the single process-wide source of wall-clock time used
// for archive timestamps and document properties.
package clock

import (
	"sync"
	"time"
)

var (
	mu     sync.Mutex
	source = time.Now
)

// Now returns the current time. Access to the underlying source is
// serialized, so workbooks publishing on different goroutines never race.
func Now() time.Time {
	mu.Lock()
	defer mu.Unlock()
	return source()
}

// Set replaces the time source and returns a func that restores the
// previous one. Intended for tests.
func Set(fn func() time.Time) (restore func()) {
	mu.Lock()
	prev := source
	source = fn
	mu.Unlock()
	return func() {
		mu.Lock()
		source = prev
		mu.Unlock()
	}
}

// Fixed returns a source that always reports t.
func Fixed(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
