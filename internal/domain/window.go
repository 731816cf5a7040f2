package domain

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// ErrInvalidWindow is returned when a date range ends before it starts.
var ErrInvalidWindow = errors.New("invalid date window")

// DateRange is an inclusive window of calendar dates.
type DateRange struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// NewDateRange builds a validated window.
func NewDateRange(start, end civil.Date) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// ParseDateRange parses two YYYY-MM-DD strings into a validated window.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := civil.ParseDate(start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start %q: %v", ErrInvalidWindow, start, err)
	}
	e, err := civil.ParseDate(end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end %q: %v", ErrInvalidWindow, end, err)
	}
	return NewDateRange(s, e)
}

// DefaultStartDaysAgo asks LastNDays to start the window n-1 days ago.
const DefaultStartDaysAgo = -1

// LastNDays returns a window ending on the date of now. It starts
// startDaysAgo days earlier, so 0 is today only; a negative value means
// n-1 days ago.
func LastNDays(now time.Time, n, startDaysAgo int) (DateRange, error) {
	if n < 1 {
		return DateRange{}, fmt.Errorf("%w: days must be positive, got %d", ErrInvalidWindow, n)
	}
	if startDaysAgo < 0 {
		startDaysAgo = n - 1
	}
	end := civil.DateOf(now)
	return NewDateRange(end.AddDays(-startDaysAgo), end)
}

// MonthOf returns the calendar month containing d.
func MonthOf(d civil.Date) DateRange {
	first := time.Date(d.Year, d.Month, 1, 0, 0, 0, 0, time.UTC)
	return DateRange{
		Start: civil.DateOf(first),
		End:   civil.DateOf(first.AddDate(0, 1, -1)),
	}
}

// Validate checks that the window is well formed.
func (r DateRange) Validate() error {
	if !r.Start.IsValid() || !r.End.IsValid() {
		return fmt.Errorf("%w: %s..%s", ErrInvalidWindow, r.Start, r.End)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalidWindow, r.End, r.Start)
	}
	return nil
}

// Contains reports whether d falls inside the window.
func (r DateRange) Contains(d civil.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// PreviousMonth returns the calendar month before the one r starts in.
func (r DateRange) PreviousMonth() DateRange {
	first := time.Date(r.Start.Year, r.Start.Month, 1, 0, 0, 0, 0, time.UTC)
	return MonthOf(civil.DateOf(first.AddDate(0, -1, 0)))
}

func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}
