package domain

import (
	"testing"
	"time"
)

func TestClockTimeAdd(t *testing.T) {
	got := NewClockTime(9, 30, 0).Add(45 * time.Minute)
	if got.String() != "10:15:00" {
		t.Fatalf("09:30:00 + 45m = %s, want 10:15:00", got)
	}
}

func TestClockTimeAddWrapsMidnight(t *testing.T) {
	got := NewClockTime(23, 30, 0).Add(60 * time.Minute)
	if got.String() != "00:30:00" {
		t.Fatalf("23:30:00 + 60m = %s, want 00:30:00", got)
	}
}

func TestClockTimeAt(t *testing.T) {
	date := time.Date(2026, 3, 2, 17, 45, 12, 0, time.UTC)
	got := NewClockTime(8, 0, 0).At(date)
	want := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("At = %v, want %v", got, want)
	}
}
