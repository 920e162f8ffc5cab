// internal/model/window.go
package model

import "time"

// SendWindow is the hours-of-day predicate for drip sending, evaluated in a
// single reference timezone. The window is [StartHour, EndHour): the end hour
// itself is outside the window.
type SendWindow struct {
	StartHour int
	EndHour   int
	Loc       *time.Location
}

// Contains reports whether t falls inside the window.
func (w SendWindow) Contains(t time.Time) bool {
	h := t.In(w.Loc).Hour()
	return h >= w.StartHour && h < w.EndHour
}

// SecondsUntilOpen returns how long after t the window next opens. If the
// window has already closed for the day the result wraps past midnight.
func (w SendWindow) SecondsUntilOpen(t time.Time) int {
	local := t.In(w.Loc)
	open := time.Date(local.Year(), local.Month(), local.Day(), w.StartHour, 0, 0, 0, w.Loc)
	if !local.Before(open) {
		open = open.AddDate(0, 0, 1)
	}
	return int(open.Sub(local).Seconds())
}

// StartOfDay returns midnight of t's calendar day in the window's zone. Used
// as the lower bound when counting sends against the daily cap.
func (w SendWindow) StartOfDay(t time.Time) time.Time {
	local := t.In(w.Loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, w.Loc)
}

// SecondsUntilTomorrow returns how long after t the reference-timezone day
// rolls over, which is when the daily send counter resets.
func (w SendWindow) SecondsUntilTomorrow(t time.Time) int {
	next := w.StartOfDay(t).AddDate(0, 0, 1)
	return int(next.Sub(t.In(w.Loc)).Seconds())
}
