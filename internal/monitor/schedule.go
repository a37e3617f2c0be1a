package monitor

import "time"

// Schedule decides how often the monitor polls based on the wall clock:
// a short interval during peak shopping hours, a longer one otherwise,
// and no polling at all inside the nightly downtime window.
type Schedule struct {
	Peak     time.Duration
	Normal   time.Duration
	PeakFrom int // hour, inclusive
	PeakTo   int // hour, exclusive
	DownFrom int // hour, inclusive
	DownTo   int // hour, exclusive
	Location *time.Location
}

// NewSchedule builds a schedule; tz falls back to UTC if unknown
func NewSchedule(peak, normal time.Duration, peakFrom, peakTo, downFrom, downTo int, tz string) Schedule {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return Schedule{
		Peak:     peak,
		Normal:   normal,
		PeakFrom: peakFrom,
		PeakTo:   peakTo,
		DownFrom: downFrom,
		DownTo:   downTo,
		Location: loc,
	}
}

// InDowntime reports whether t falls inside the downtime window
func (s Schedule) InDowntime(t time.Time) bool {
	return s.inWindow(t, s.DownFrom, s.DownTo)
}

// Interval returns the delay before the next check after a check at t.
// During downtime it returns the time remaining until the window ends,
// so the monitor wakes up exactly when checks resume.
func (s Schedule) Interval(t time.Time) time.Duration {
	local := t.In(s.Location)

	if s.InDowntime(t) {
		return s.untilHour(local, s.DownTo)
	}
	if s.inWindow(t, s.PeakFrom, s.PeakTo) {
		return s.Peak
	}
	return s.Normal
}

func (s Schedule) inWindow(t time.Time, from, to int) bool {
	if from == to {
		return false
	}
	hour := t.In(s.Location).Hour()
	if from < to {
		return hour >= from && hour < to
	}
	// Window wraps midnight
	return hour >= from || hour < to
}

// untilHour returns the duration from t until the next occurrence of hour
func (s Schedule) untilHour(t time.Time, hour int) time.Duration {
	next := time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, s.Location)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(t)
}
