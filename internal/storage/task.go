package storage

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type Task struct {
	ID              string     `db:"id"`
	Title           string     `db:"title"`
	Description     string     `db:"description"`
	Date            time.Time  `db:"date"`
	Time            *TimeOfDay `db:"time"`
	ExternalEventID *string    `db:"external_event_id"`
}

// Validate checks fields required before a task can be persisted.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title is required: %w", ErrInvalidTask)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("date is required: %w", ErrInvalidTask)
	}
	return nil
}

// HasEvent reports whether the task is mirrored by a remote calendar event.
func (t Task) HasEvent() bool {
	return t.ExternalEventID != nil && *t.ExternalEventID != ""
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be in YYYY-MM-DD format: %w", s, ErrInvalidTask)
	}
	return d, nil
}
