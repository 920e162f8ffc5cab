package model

import (
	"testing"
	"time"
)

func newYorkWindow(t *testing.T, start, end int) SendWindow {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return SendWindow{StartHour: start, EndHour: end, Loc: loc}
}

func TestSendWindowContains(t *testing.T) {
	w := SendWindow{StartHour: 9, EndHour: 17, Loc: time.UTC}

	cases := []struct {
		hour, min int
		want      bool
	}{
		{8, 59, false},
		{9, 0, true},
		{12, 30, true},
		{16, 59, true},
		{17, 0, false},
		{23, 0, false},
	}
	for _, tc := range cases {
		at := time.Date(2026, 3, 10, tc.hour, tc.min, 0, 0, time.UTC)
		if got := w.Contains(at); got != tc.want {
			t.Errorf("Contains(%02d:%02d) = %v, want %v", tc.hour, tc.min, got, tc.want)
		}
	}
}

func TestSendWindowContainsConvertsZone(t *testing.T) {
	w := newYorkWindow(t, 9, 17)

	// 14:00 UTC on 2026-03-10 is 10:00 in New York (EDT, UTC-4).
	inWindow := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	if !w.Contains(inWindow) {
		t.Error("10:00 New York must be inside a 9-17 window")
	}

	// 22:00 UTC is 18:00 in New York.
	outside := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	if w.Contains(outside) {
		t.Error("18:00 New York must be outside a 9-17 window")
	}
}

func TestSecondsUntilOpen(t *testing.T) {
	w := SendWindow{StartHour: 9, EndHour: 17, Loc: time.UTC}

	before := time.Date(2026, 3, 10, 8, 59, 0, 0, time.UTC)
	if got := w.SecondsUntilOpen(before); got != 60 {
		t.Errorf("one minute before open: got %d, want 60", got)
	}

	// After close the next opening is tomorrow morning.
	after := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)
	if got := w.SecondsUntilOpen(after); got != 16*3600 {
		t.Errorf("at close: got %d, want %d", got, 16*3600)
	}

	atOpen := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if got := w.SecondsUntilOpen(atOpen); got != 24*3600 {
		t.Errorf("exactly at open wraps a full day: got %d", got)
	}
}

func TestStartOfDay(t *testing.T) {
	w := newYorkWindow(t, 9, 17)

	// 03:00 UTC on March 11 is still 23:00 March 10 in New York, so the
	// daily counter window starts at New York midnight of March 10.
	at := time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC)
	got := w.StartOfDay(at)
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, w.Loc)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSecondsUntilTomorrow(t *testing.T) {
	w := SendWindow{StartHour: 9, EndHour: 17, Loc: time.UTC}

	at := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	if got := w.SecondsUntilTomorrow(at); got != 13*3600 {
		t.Errorf("got %d, want %d", got, 13*3600)
	}
}
