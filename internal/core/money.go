package core

import (
	"fmt"
	"time"
)

type (
	// Money is an amount in cents to avoid floating point drift.
	Money struct {
		Cents int64
	}

	// Date is a calendar day. Records carry it as an ISO "YYYY-MM-DD"
	// string, which is the designated ordering field of every query.
	Date struct {
		time.Time
	}
)

const dateLayout = "2006-01-02"

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ISO renders the date in the string-sortable form used by the remote store.
func (d Date) ISO() string {
	return d.Format(dateLayout)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}
