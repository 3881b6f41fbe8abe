package domain

import (
	"fmt"
	"time"
)

// ClockTime is a time of day in seconds since midnight. Arithmetic wraps at
// midnight, which keeps within-day schedule math independent of the calendar
// date it is later anchored to.
type ClockTime int

const secondsPerDay = 24 * 60 * 60

func NewClockTime(hour, minute, second int) ClockTime {
	return ClockTime((hour*3600 + minute*60 + second) % secondsPerDay)
}

// Add advances the clock by d, wrapping across midnight.
func (c ClockTime) Add(d time.Duration) ClockTime {
	s := (int(c) + int(d/time.Second)) % secondsPerDay
	if s < 0 {
		s += secondsPerDay
	}
	return ClockTime(s)
}

func (c ClockTime) Hour() int   { return int(c) / 3600 }
func (c ClockTime) Minute() int { return int(c) % 3600 / 60 }
func (c ClockTime) Second() int { return int(c) % 60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour(), c.Minute(), c.Second())
}

// At anchors the clock time onto the given calendar date.
func (c ClockTime) At(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), c.Second(), 0, date.Location())
}
