package app

import (
	"context"
	"fmt"

	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/storage"
	log "github.com/sirupsen/logrus"
)

// Calendar mirrors tasks as remote calendar events.
type Calendar interface {
	CreateEvent(ctx context.Context, t storage.Task) (string, error)
	UpdateEvent(ctx context.Context, eventID string, t storage.Task) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// App keeps tasks in the storage and, when a calendar is set, mirrors them there.
// Calendar failures never fail a task operation, they are only logged.
type App struct {
	Storage  storage.Storage
	Calendar Calendar
}

// New creates the app. A nil calendar disables synchronization.
func New(storage storage.Storage, calendar Calendar) *App {
	return &App{Storage: storage, Calendar: calendar}
}

func (a *App) CreateTask(ctx context.Context, t storage.Task) (storage.Task, error) {
	t.ExternalEventID = nil
	if err := a.Storage.AddTask(ctx, &t); err != nil {
		return storage.Task{}, err
	}
	if a.Calendar == nil {
		return t, nil
	}

	eventID, err := a.Calendar.CreateEvent(ctx, t)
	if err != nil {
		log.WithField("task", t.ID).Warnf("task saved without calendar event: %v", err)
		return t, nil
	}
	if err := a.Storage.SetExternalEventID(ctx, t.ID, &eventID); err != nil {
		log.WithField("task", t.ID).WithField("event", eventID).
			Errorf("failed to save calendar event reference: %v", err)
		if delErr := a.Calendar.DeleteEvent(ctx, eventID); delErr != nil {
			log.WithField("event", eventID).Warnf("orphan calendar event left: %v", delErr)
		}
		return t, nil
	}
	t.ExternalEventID = &eventID
	return t, nil
}

func (a *App) GetTask(ctx context.Context, id string) (storage.Task, error) {
	return a.Storage.GetTask(ctx, id)
}

func (a *App) ListTasks(ctx context.Context, f storage.Filter) ([]storage.Task, error) {
	tasks, err := a.Storage.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateTask replaces the task fields. The remote event is updated only if the task
// already has one; a task never synced before stays unsynced.
func (a *App) UpdateTask(ctx context.Context, id string, t storage.Task) (storage.Task, error) {
	updated, err := a.Storage.UpdateTask(ctx, id, t)
	if err != nil {
		return storage.Task{}, err
	}
	if a.Calendar == nil || !updated.HasEvent() {
		return updated, nil
	}
	if err := a.Calendar.UpdateEvent(ctx, *updated.ExternalEventID, updated); err != nil {
		log.WithField("task", id).WithField("event", *updated.ExternalEventID).
			Warnf("calendar event not updated: %v", err)
	}
	return updated, nil
}

// RemoveTask deletes the remote event first, then the task itself whatever the remote outcome.
func (a *App) RemoveTask(ctx context.Context, id string) error {
	t, err := a.Storage.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if a.Calendar != nil && t.HasEvent() {
		if err := a.Calendar.DeleteEvent(ctx, *t.ExternalEventID); err != nil {
			log.WithField("task", id).WithField("event", *t.ExternalEventID).
				Warnf("calendar event not deleted: %v", err)
		}
	}
	if err := a.Storage.RemoveTask(ctx, id); err != nil {
		return fmt.Errorf("failed to remove task %q: %w", id, err)
	}
	return nil
}
