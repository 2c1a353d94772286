package core

import (
	"fmt"
	"time"
)

// Window is the half-open time range [Since, Until) a run covers
type Window struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Since) && t.Before(w.Until)
}

// LookbackWindow covers the last n days ending at now
func LookbackWindow(now time.Time, days int) (Window, error) {
	if days <= 0 {
		return Window{}, fmt.Errorf("%w: lookback must be positive, got %d days", ErrInvalidWindow, days)
	}
	return Window{Since: now.AddDate(0, 0, -days), Until: now}, nil
}

// ExplicitWindow builds a window from calendar dates (YYYY-MM-DD). The end date is
// inclusive. An end date in the future is clamped to now; clamped reports it.
func ExplicitWindow(now time.Time, start, end string) (w Window, clamped bool, err error) {
	s, err := time.ParseInLocation(time.DateOnly, start, time.UTC)
	if err != nil {
		return Window{}, false, fmt.Errorf("%w: start date %q: %v", ErrInvalidWindow, start, err)
	}
	e, err := time.ParseInLocation(time.DateOnly, end, time.UTC)
	if err != nil {
		return Window{}, false, fmt.Errorf("%w: end date %q: %v", ErrInvalidWindow, end, err)
	}
	if s.After(e) {
		return Window{}, false, fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidWindow, start, end)
	}
	until := e.AddDate(0, 0, 1)
	if until.After(now) {
		until = now
		clamped = true
	}
	if !s.Before(until) {
		return Window{}, false, fmt.Errorf("%w: start date %s is in the future", ErrInvalidWindow, start)
	}
	return Window{Since: s, Until: until}, clamped, nil
}
