// Package debounce suppresses repeated events from the same source that
// arrive within a quiet interval of the last accepted one.
//
// A Filter is owned by a single goroutine (the dispatcher). It does no I/O,
// never blocks and takes no locks.
package debounce

import (
	"errors"
	"time"

	"github.com/sweeney/button-dispatch/internal/event"
)

var (
	// ErrSourceRange is returned when configuring a source outside the table.
	ErrSourceRange = errors.New("debounce: source out of range")

	// ErrInterval is returned for a negative quiet interval.
	ErrInterval = errors.New("debounce: negative interval")
)

type entry struct {
	seen     bool
	last     time.Duration
	interval time.Duration
}

// Filter holds the last accepted timestamp per source in a fixed table.
type Filter struct {
	quiet time.Duration
	table []entry
}

// New creates a filter for sources [0, sources) sharing one quiet interval.
// sources is clamped to [1, event.MaxSources] and a negative quiet interval
// to zero.
func New(quiet time.Duration, sources int) *Filter {
	if quiet < 0 {
		quiet = 0
	}
	if sources < 1 {
		sources = 1
	}
	if sources > event.MaxSources {
		sources = event.MaxSources
	}
	f := &Filter{
		quiet: quiet,
		table: make([]entry, sources),
	}
	for i := range f.table {
		f.table[i].interval = quiet
	}
	return f
}

// Accept reports whether an event from src at now passes the filter.
// On acceptance now becomes the source's last accepted time; a rejection
// leaves the table untouched.
//
// Sources outside the table are not tracked and always pass, so that the
// caller can report them.
func (f *Filter) Accept(src event.SourceID, now time.Duration) bool {
	if int(src) >= len(f.table) {
		return true
	}
	e := &f.table[src]
	if e.seen && now-e.last < e.interval {
		return false
	}
	e.seen = true
	e.last = now
	return true
}

// SetInterval overrides the quiet interval for one source.
func (f *Filter) SetInterval(src event.SourceID, d time.Duration) error {
	if int(src) >= len(f.table) {
		return ErrSourceRange
	}
	if d < 0 {
		return ErrInterval
	}
	f.table[src].interval = d
	return nil
}

// Interval returns the quiet interval applied to src.
func (f *Filter) Interval(src event.SourceID) time.Duration {
	if int(src) >= len(f.table) {
		return f.quiet
	}
	return f.table[src].interval
}

// Last returns the last accepted time for src and whether one exists.
func (f *Filter) Last(src event.SourceID) (time.Duration, bool) {
	if int(src) >= len(f.table) {
		return 0, false
	}
	e := f.table[src]
	return e.last, e.seen
}

// Sources returns the size of the table.
func (f *Filter) Sources() int {
	return len(f.table)
}
