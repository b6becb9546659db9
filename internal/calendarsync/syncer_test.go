package calendarsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type request struct {
	Method string
	Path   string
	Event  calendar.Event
}

// fakeCalendar is a minimal events endpoint keeping events in memory.
type fakeCalendar struct {
	*httptest.Server
	mu       sync.Mutex
	requests []request
	events   map[string]calendar.Event
	down     bool
	nextID   int
}

func newFakeCalendar(t *testing.T) *fakeCalendar {
	t.Helper()
	fc := &fakeCalendar{events: make(map[string]calendar.Event)}
	fc.Server = httptest.NewServer(http.HandlerFunc(fc.handle))
	t.Cleanup(fc.Close)
	return fc
}

func (fc *fakeCalendar) handle(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	req := request{Method: r.Method, Path: r.URL.Path}
	if body, _ := io.ReadAll(r.Body); len(body) > 0 {
		_ = json.Unmarshal(body, &req.Event)
	}
	fc.requests = append(fc.requests, req)

	w.Header().Set("Content-Type", "application/json")
	if fc.down {
		writeError(w, http.StatusServiceUnavailable)
		return
	}

	const prefix = "/calendars/primary/events"
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")
	switch {
	case r.Method == http.MethodPost && id == "":
		fc.nextID++
		req.Event.Id = "evt-" + strconv.Itoa(fc.nextID)
		fc.events[req.Event.Id] = req.Event
		_ = json.NewEncoder(w).Encode(req.Event)
	case r.Method == http.MethodGet:
		event, ok := fc.events[id]
		if !ok {
			writeError(w, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(event)
	case r.Method == http.MethodPut:
		if _, ok := fc.events[id]; !ok {
			writeError(w, http.StatusNotFound)
			return
		}
		req.Event.Id = id
		fc.events[id] = req.Event
		_ = json.NewEncoder(w).Encode(req.Event)
	case r.Method == http.MethodDelete:
		if _, ok := fc.events[id]; !ok {
			writeError(w, http.StatusGone)
			return
		}
		delete(fc.events, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusBadRequest)
	}
}

func writeError(w http.ResponseWriter, code int) {
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":%q}}`, code, http.StatusText(code))
}

func (fc *fakeCalendar) methods() []string {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	res := make([]string, 0, len(fc.requests))
	for _, r := range fc.requests {
		res = append(res, r.Method)
	}
	return res
}

func (fc *fakeCalendar) lastRequest() request {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.requests[len(fc.requests)-1]
}

func (fc *fakeCalendar) Client(ctx context.Context) (*calendar.Service, error) {
	return calendar.NewService(ctx, option.WithHTTPClient(fc.Server.Client()), option.WithEndpoint(fc.URL+"/"))
}

type failingProvider struct{}

func (failingProvider) Client(context.Context) (*calendar.Service, error) {
	return nil, errors.New("token expired and not refreshable")
}

func newSyncer(t *testing.T, clients ClientProvider) *Syncer {
	t.Helper()
	s, err := New(clients, Config{})
	require.NoError(t, err)
	return s
}

func payRent() storage.Task {
	return storage.Task{
		ID:          "task-1",
		Title:       "Pay rent",
		Description: "monthly",
		Date:        time.Date(2024, 9, 22, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateEvent(t *testing.T) {
	t.Run("all day", func(t *testing.T) {
		fc := newFakeCalendar(t)
		s := newSyncer(t, fc)

		id, err := s.CreateEvent(context.Background(), payRent())
		require.NoError(t, err)
		require.Equal(t, "evt-1", id)

		req := fc.lastRequest()
		require.Equal(t, http.MethodPost, req.Method)
		require.Equal(t, "/calendars/primary/events", req.Path)
		require.Equal(t, "Pay rent", req.Event.Summary)
		require.Equal(t, "monthly", req.Event.Description)
		require.Equal(t, "2024-09-22", req.Event.Start.Date)
		require.Equal(t, "2024-09-22", req.Event.End.Date)
		require.Empty(t, req.Event.Start.DateTime)
	})

	t.Run("timed", func(t *testing.T) {
		fc := newFakeCalendar(t)
		s := newSyncer(t, fc)
		task := payRent()
		task.Time = &storage.TimeOfDay{Hour: 14}

		_, err := s.CreateEvent(context.Background(), task)
		require.NoError(t, err)

		req := fc.lastRequest()
		require.Equal(t, "2024-09-22T14:00:00-03:00", req.Event.Start.DateTime)
		require.Equal(t, req.Event.Start.DateTime, req.Event.End.DateTime)
		require.Equal(t, "America/Sao_Paulo", req.Event.Start.TimeZone)
		require.Empty(t, req.Event.Start.Date)
	})

	t.Run("provider outage", func(t *testing.T) {
		fc := newFakeCalendar(t)
		fc.down = true
		s := newSyncer(t, fc)

		_, err := s.CreateEvent(context.Background(), payRent())
		require.ErrorIs(t, err, ErrRemoteSync)
		require.NotErrorIs(t, err, ErrAuth)
	})

	t.Run("no credential", func(t *testing.T) {
		s := newSyncer(t, failingProvider{})

		_, err := s.CreateEvent(context.Background(), payRent())
		require.ErrorIs(t, err, ErrAuth)
		require.NotErrorIs(t, err, ErrRemoteSync)
	})
}

func TestUpdateEvent(t *testing.T) {
	t.Run("existing event", func(t *testing.T) {
		fc := newFakeCalendar(t)
		s := newSyncer(t, fc)
		id, err := s.CreateEvent(context.Background(), payRent())
		require.NoError(t, err)

		task := payRent()
		task.Title = "Pay rent today"
		task.Time = &storage.TimeOfDay{Hour: 9, Minute: 30}
		require.NoError(t, s.UpdateEvent(context.Background(), id, task))

		require.Equal(t, []string{http.MethodPost, http.MethodGet, http.MethodPut}, fc.methods())
		req := fc.lastRequest()
		require.Equal(t, "/calendars/primary/events/"+id, req.Path)
		require.Equal(t, "Pay rent today", req.Event.Summary)
		require.Equal(t, "2024-09-22T09:30:00-03:00", req.Event.Start.DateTime)
	})

	t.Run("missing event is not recreated", func(t *testing.T) {
		fc := newFakeCalendar(t)
		s := newSyncer(t, fc)

		err := s.UpdateEvent(context.Background(), "gone", payRent())
		require.ErrorIs(t, err, ErrRemoteSync)
		require.ErrorIs(t, err, ErrEventNotFound)
		require.Equal(t, []string{http.MethodGet}, fc.methods())
	})

	t.Run("no credential", func(t *testing.T) {
		s := newSyncer(t, failingProvider{})
		require.ErrorIs(t, s.UpdateEvent(context.Background(), "evt", payRent()), ErrAuth)
	})
}

func TestDeleteEvent(t *testing.T) {
	t.Run("existing event", func(t *testing.T) {
		fc := newFakeCalendar(t)
		s := newSyncer(t, fc)
		id, err := s.CreateEvent(context.Background(), payRent())
		require.NoError(t, err)

		require.NoError(t, s.DeleteEvent(context.Background(), id))
		require.Equal(t, http.MethodDelete, fc.lastRequest().Method)
		require.Equal(t, "/calendars/primary/events/"+id, fc.lastRequest().Path)
	})

	t.Run("already deleted", func(t *testing.T) {
		fc := newFakeCalendar(t)
		s := newSyncer(t, fc)

		err := s.DeleteEvent(context.Background(), "gone")
		require.ErrorIs(t, err, ErrRemoteSync)
		require.ErrorIs(t, err, ErrEventNotFound)
	})

	t.Run("provider outage", func(t *testing.T) {
		fc := newFakeCalendar(t)
		fc.down = true
		s := newSyncer(t, fc)

		err := s.DeleteEvent(context.Background(), "evt")
		require.ErrorIs(t, err, ErrRemoteSync)
		require.NotErrorIs(t, err, ErrEventNotFound)
	})
}

func TestNewUnknownTimeZone(t *testing.T) {
	_, err := New(failingProvider{}, Config{TimeZone: "Mars/Olympus_Mons"})
	require.Error(t, err)
}

func TestEventFromTask(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	task := storage.Task{
		Title: "Standup",
		Date:  time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Time:  &storage.TimeOfDay{Hour: 10, Minute: 15},
	}
	event := EventFromTask(task, loc)
	require.Equal(t, "Standup", event.Summary)
	require.Equal(t, "2024-07-01T10:15:00+02:00", event.Start.DateTime)
	require.Equal(t, "Europe/Berlin", event.End.TimeZone)

	task.Time = nil
	event = EventFromTask(task, loc)
	require.Equal(t, "2024-07-01", event.Start.Date)
	require.Equal(t, "2024-07-01", event.End.Date)
	require.Empty(t, event.End.TimeZone)
}
