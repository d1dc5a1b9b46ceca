package core

import (
	"fmt"
	"math"
	"time"
)

// WeekKey identifies one delivery week as a (year, ordinal week) pair.
// Comparing the pair, not the bare week number, keeps the dedup check
// correct across calendar-year boundaries.
type WeekKey struct {
	Year int
	Week int
}

// WeekKeyOf computes the delivery-week key for a point in time: the
// ordinal week number is days elapsed since January 1 of that year
// divided by seven, ceiling-rounded, evaluated in UTC.
func WeekKeyOf(t time.Time) WeekKey {
	t = t.UTC()
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	days := t.Sub(jan1).Seconds()/86400 + 1
	return WeekKey{
		Year: t.Year(),
		Week: int(math.Ceil(days / 7)),
	}
}

// String renders the key in the "2026-W35" form used in logs.
func (k WeekKey) String() string {
	return fmt.Sprintf("%d-W%d", k.Year, k.Week)
}
