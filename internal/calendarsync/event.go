package calendarsync

import (
	"time"

	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/storage"
	"google.golang.org/api/calendar/v3"
)

// EventFromTask builds the calendar event mirroring the task.
// A task with a time becomes an instant (start equals end) in loc,
// a task without one becomes an all-day event on its date.
func EventFromTask(t storage.Task, loc *time.Location) *calendar.Event {
	event := &calendar.Event{
		Summary:     t.Title,
		Description: t.Description,
	}
	if t.Time != nil {
		at := t.Time.On(t.Date, loc).Format(time.RFC3339)
		event.Start = &calendar.EventDateTime{DateTime: at, TimeZone: loc.String()}
		event.End = &calendar.EventDateTime{DateTime: at, TimeZone: loc.String()}
		return event
	}

	day := t.Date.Format(storage.DateLayout)
	event.Start = &calendar.EventDateTime{Date: day}
	event.End = &calendar.EventDateTime{Date: day}
	return event
}
