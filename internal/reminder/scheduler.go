package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/storage"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/util"
	log "github.com/sirupsen/logrus"
)

const (
	defaultInterval = time.Minute
	defaultTimeZone = "America/Sao_Paulo"
)

// Publisher delivers encoded notifications to the sender.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

type Config struct {
	// Interval between two checks of due tasks.
	Interval time.Duration
	// Before is how long ahead of the task's time the reminder goes out.
	Before   time.Duration
	TimeZone string
}

// Notification is a reminder about a task becoming due.
type Notification struct {
	TaskID string    `json:"task_id"`
	Title  string    `json:"title"`
	Date   string    `json:"date"`
	Time   *string   `json:"time,omitempty"`
	DueAt  time.Time `json:"due_at"`
}

func NewNotification(t storage.Task, dueAt time.Time) Notification {
	n := Notification{
		TaskID: t.ID,
		Title:  t.Title,
		Date:   t.Date.Format(storage.DateLayout),
		DueAt:  dueAt,
	}
	if t.Time != nil {
		s := t.Time.String()
		n.Time = &s
	}
	return n
}

type Scheduler struct {
	storage   storage.Storage
	publisher Publisher
	interval  time.Duration
	before    time.Duration
	loc       *time.Location
	now       func() time.Time
	// published holds tasks already reminded about in a window that has to be checked again.
	published map[string]struct{}
}

func NewScheduler(stor storage.Storage, publisher Publisher, config Config) (*Scheduler, error) {
	if config.Interval <= 0 {
		config.Interval = defaultInterval
	}
	if config.TimeZone == "" {
		config.TimeZone = defaultTimeZone
	}
	loc, err := time.LoadLocation(config.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", config.TimeZone, err)
	}
	return &Scheduler{
		storage:   stor,
		publisher: publisher,
		interval:  config.Interval,
		before:    config.Before,
		loc:       loc,
		now:       time.Now,
		published: make(map[string]struct{}),
	}, nil
}

// Run checks for due tasks every interval until the context is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	end := s.now()
	start := end.Add(-s.interval)
	for {
		log.Debugf("check tasks due: %s - %s", start, end)
		if _, err := s.Check(ctx, start, end); err != nil {
			log.Errorf("failed to check due tasks: %v", err)
		} else {
			start = end
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			end = s.now()
		}
	}
}

// Check publishes a notification for every task due in (start, end]
// and returns how many were published. Tasks published by an earlier call
// that failed on the same window are skipped.
func (s *Scheduler) Check(ctx context.Context, start, end time.Time) (int, error) {
	from := util.DateOnly(start.Add(s.before).In(s.loc))
	to := util.DateOnly(end.Add(s.before).In(s.loc))
	tasks, err := s.storage.ListTasks(ctx, storage.Filter{DateFrom: &from, DateTo: &to, Ordering: storage.OrderByDate})
	if err != nil {
		return 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	sent := 0
	for _, t := range tasks {
		due := DueAt(t, s.loc)
		remindAt := due.Add(-s.before)
		if !remindAt.After(start) || remindAt.After(end) {
			continue
		}
		if _, ok := s.published[t.ID]; ok {
			continue
		}
		data, err := json.Marshal(NewNotification(t, due))
		if err != nil {
			return sent, fmt.Errorf("failed to encode notification for task %q: %w", t.ID, err)
		}
		if err := s.publisher.Publish(ctx, data); err != nil {
			return sent, fmt.Errorf("failed to publish notification for task %q: %w", t.ID, err)
		}
		s.published[t.ID] = struct{}{}
		log.WithField("task", t.ID).Debug("reminder published")
		sent++
	}
	s.published = make(map[string]struct{})
	return sent, nil
}

// DueAt is the instant a task becomes due: its time of day on its date,
// or the start of the day for tasks without time.
func DueAt(t storage.Task, loc *time.Location) time.Time {
	if t.Time != nil {
		return t.Time.On(t.Date, loc)
	}
	y, m, d := t.Date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
