package internalhttp

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/storage"
)

type taskResponse struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Date            string  `json:"date"`
	Time            *string `json:"time"`
	ExternalEventID *string `json:"external_event_id"`
}

// taskRequest is the writable part of a task. Read-only fields sent by clients are ignored.
type taskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Time        *string `json:"time"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func toResponse(t storage.Task) taskResponse {
	res := taskResponse{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		Date:            t.Date.Format(storage.DateLayout),
		ExternalEventID: t.ExternalEventID,
	}
	if t.Time != nil {
		s := t.Time.String()
		res.Time = &s
	}
	return res
}

func toResponses(tasks []storage.Task) []taskResponse {
	res := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, toResponse(t))
	}
	return res
}

func (r taskRequest) toTask() (storage.Task, error) {
	t := storage.Task{Title: r.Title, Description: r.Description}
	if strings.TrimSpace(r.Date) == "" {
		return storage.Task{}, fmt.Errorf("date is required: %w", storage.ErrInvalidTask)
	}
	date, err := storage.ParseDate(r.Date)
	if err != nil {
		return storage.Task{}, err
	}
	t.Date = date

	if r.Time != nil && *r.Time != "" {
		tod, err := storage.ParseTimeOfDay(*r.Time)
		if err != nil {
			return storage.Task{}, err
		}
		t.Time = &tod
	}
	return t, t.Validate()
}

// filterFromQuery reads list parameters. date_range_after and date_range_before
// are accepted as aliases of date_after and date_before, unknown orderings are ignored.
func filterFromQuery(q url.Values) (storage.Filter, error) {
	f := storage.Filter{
		Title:    q.Get("title"),
		Search:   q.Get("search"),
		Ordering: q.Get("ordering"),
	}
	if !storage.ValidOrdering(f.Ordering) {
		f.Ordering = ""
	}

	var err error
	if f.DateFrom, err = dateParam(q, "date_after", "date_range_after"); err != nil {
		return storage.Filter{}, err
	}
	if f.DateTo, err = dateParam(q, "date_before", "date_range_before"); err != nil {
		return storage.Filter{}, err
	}
	return f, nil
}

func dateParam(q url.Values, names ...string) (*time.Time, error) {
	for _, name := range names {
		v := q.Get(name)
		if v == "" {
			continue
		}
		d, err := storage.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return &d, nil
	}
	return nil, nil
}
