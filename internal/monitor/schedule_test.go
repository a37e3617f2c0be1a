package monitor

import (
	"testing"
	"time"
)

func testSchedule(t *testing.T) Schedule {
	t.Helper()
	return NewSchedule(2*time.Minute, 10*time.Minute, 6, 16, 0, 6, "UTC")
}

func at(hour int) time.Time {
	return time.Date(2025, 3, 10, hour, 30, 0, 0, time.UTC)
}

func TestSchedulePeakInterval(t *testing.T) {
	s := testSchedule(t)
	if got := s.Interval(at(9)); got != 2*time.Minute {
		t.Fatalf("expected peak interval, got %v", got)
	}
}

func TestScheduleNormalInterval(t *testing.T) {
	s := testSchedule(t)
	if got := s.Interval(at(20)); got != 10*time.Minute {
		t.Fatalf("expected normal interval, got %v", got)
	}
}

func TestScheduleDowntime(t *testing.T) {
	s := testSchedule(t)
	if !s.InDowntime(at(3)) {
		t.Fatalf("expected 03:30 to be downtime")
	}
	if s.InDowntime(at(7)) {
		t.Fatalf("expected 07:30 to be active")
	}
	// During downtime the next check lands at the window's end
	if got := s.Interval(at(3)); got != 2*time.Hour+30*time.Minute {
		t.Fatalf("expected wake-up at 06:00, got %v", got)
	}
}

func TestScheduleWrappingDowntimeWindow(t *testing.T) {
	s := NewSchedule(time.Minute, 5*time.Minute, 8, 18, 23, 5, "UTC")
	if !s.InDowntime(at(23)) || !s.InDowntime(at(2)) {
		t.Fatalf("expected 23:30 and 02:30 inside the wrapped window")
	}
	if s.InDowntime(at(6)) {
		t.Fatalf("expected 06:30 outside the wrapped window")
	}
}
