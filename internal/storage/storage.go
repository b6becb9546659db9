package storage

import (
	"context"
	"errors"
)

var (
	ErrDuplicateTaskID = errors.New("task with same ID exists")
	ErrNotFoundTask    = errors.New("task not found")
	ErrInvalidTask     = errors.New("invalid task")
)

type Storage interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	AddTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context, f Filter) ([]Task, error)
	// UpdateTask replaces the mutable fields of the task and returns the stored record.
	// The external event reference is left untouched.
	UpdateTask(ctx context.Context, id string, t Task) (Task, error)
	SetExternalEventID(ctx context.Context, id string, eventID *string) error
	RemoveTask(ctx context.Context, id string) error
}
