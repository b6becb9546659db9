package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/storage"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

var (
	// ErrAuth means no authenticated calendar client could be obtained.
	ErrAuth = errors.New("calendar authorization failed")
	// ErrRemoteSync means the calendar provider rejected or failed a request.
	ErrRemoteSync = errors.New("calendar sync failed")
	// ErrEventNotFound accompanies ErrRemoteSync when the remote event doesn't exist anymore.
	ErrEventNotFound = errors.New("calendar event not found")
)

const (
	defaultCalendarID = "primary"
	defaultTimeZone   = "America/Sao_Paulo"
)

// ClientProvider hands out authenticated calendar clients.
type ClientProvider interface {
	Client(ctx context.Context) (*calendar.Service, error)
}

type Config struct {
	CalendarID string
	TimeZone   string
}

// Syncer mirrors tasks as events of a single calendar.
// It never touches local storage; callers decide what to do with its errors.
type Syncer struct {
	clients    ClientProvider
	calendarID string
	loc        *time.Location
}

func New(clients ClientProvider, config Config) (*Syncer, error) {
	if config.CalendarID == "" {
		config.CalendarID = defaultCalendarID
	}
	if config.TimeZone == "" {
		config.TimeZone = defaultTimeZone
	}
	loc, err := time.LoadLocation(config.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", config.TimeZone, err)
	}
	return &Syncer{clients: clients, calendarID: config.CalendarID, loc: loc}, nil
}

func (s *Syncer) CreateEvent(ctx context.Context, t storage.Task) (string, error) {
	svc, err := s.service(ctx)
	if err != nil {
		return "", err
	}
	created, err := svc.Events.Insert(s.calendarID, EventFromTask(t, s.loc)).Context(ctx).Do()
	if err != nil {
		return "", remoteError("create event", err)
	}
	log.WithField("task", t.ID).WithField("event", created.Id).Debug("calendar event created")
	return created.Id, nil
}

// UpdateEvent replaces the event with a fresh payload. The event is fetched first
// so an event removed on the calendar side is reported instead of recreated.
func (s *Syncer) UpdateEvent(ctx context.Context, eventID string, t storage.Task) error {
	svc, err := s.service(ctx)
	if err != nil {
		return err
	}
	if _, err := svc.Events.Get(s.calendarID, eventID).Context(ctx).Do(); err != nil {
		return remoteError(fmt.Sprintf("get event %q", eventID), err)
	}
	if _, err := svc.Events.Update(s.calendarID, eventID, EventFromTask(t, s.loc)).Context(ctx).Do(); err != nil {
		return remoteError(fmt.Sprintf("update event %q", eventID), err)
	}
	log.WithField("task", t.ID).WithField("event", eventID).Debug("calendar event updated")
	return nil
}

func (s *Syncer) DeleteEvent(ctx context.Context, eventID string) error {
	svc, err := s.service(ctx)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(s.calendarID, eventID).Context(ctx).Do(); err != nil {
		return remoteError(fmt.Sprintf("delete event %q", eventID), err)
	}
	log.WithField("event", eventID).Debug("calendar event deleted")
	return nil
}

func (s *Syncer) service(ctx context.Context) (*calendar.Service, error) {
	svc, err := s.clients.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	return svc, nil
}

func remoteError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return fmt.Errorf("%s: %w: %w: %w", op, ErrRemoteSync, ErrEventNotFound, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemoteSync, err)
}
