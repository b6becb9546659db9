package memorystorage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/storage"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/util"
)

type record struct {
	task storage.Task
	seq  int
}

type Storage struct {
	mu    sync.RWMutex
	data  map[string]record
	idSeq int
}

func New() *Storage {
	return &Storage{data: make(map[string]record)}
}

func (s *Storage) Connect(_ context.Context) error {
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	return nil
}

func (s *Storage) AddTask(_ context.Context, t *storage.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, ok := s.data[t.ID]; ok {
		return fmt.Errorf("duplicate ID %q: %w", t.ID, storage.ErrDuplicateTaskID)
	}
	t.Date = util.DateOnly(t.Date)
	s.idSeq++
	s.data[t.ID] = record{task: copyTask(*t), seq: s.idSeq}
	return nil
}

func (s *Storage) GetTask(_ context.Context, id string) (storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[id]
	if !ok {
		return storage.Task{}, fmt.Errorf("failed to get task with id %q: %w", id, storage.ErrNotFoundTask)
	}
	return copyTask(r.task), nil
}

func (s *Storage) ListTasks(_ context.Context, f storage.Filter) ([]storage.Task, error) {
	s.mu.RLock()
	records := make([]record, 0, len(s.data))
	for _, r := range s.data {
		if f.Match(r.task) {
			records = append(records, r)
		}
	}
	s.mu.RUnlock()

	sortBySeq(records)
	tasks := make([]storage.Task, 0, len(records))
	for _, r := range records {
		tasks = append(tasks, copyTask(r.task))
	}
	storage.SortTasks(tasks, f.Ordering)
	return tasks, nil
}

func (s *Storage) UpdateTask(_ context.Context, id string, t storage.Task) (storage.Task, error) {
	if err := t.Validate(); err != nil {
		return storage.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[id]
	if !ok {
		return storage.Task{}, fmt.Errorf("failed to update task with id %q: %w", id, storage.ErrNotFoundTask)
	}
	r.task.Title = t.Title
	r.task.Description = t.Description
	r.task.Date = util.DateOnly(t.Date)
	r.task.Time = copyTime(t.Time)
	s.data[id] = r
	return copyTask(r.task), nil
}

func (s *Storage) SetExternalEventID(_ context.Context, id string, eventID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[id]
	if !ok {
		return fmt.Errorf("failed to set event of task with id %q: %w", id, storage.ErrNotFoundTask)
	}
	r.task.ExternalEventID = copyString(eventID)
	s.data[id] = r
	return nil
}

func (s *Storage) RemoveTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return fmt.Errorf("failed to remove task with id %q: %w", id, storage.ErrNotFoundTask)
	}
	delete(s.data, id)
	return nil
}

func sortBySeq(records []record) {
	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })
}

// Pointer fields are copied so callers can't modify stored records.
func copyTask(t storage.Task) storage.Task {
	t.Time = copyTime(t.Time)
	t.ExternalEventID = copyString(t.ExternalEventID)
	return t
}

func copyTime(t *storage.TimeOfDay) *storage.TimeOfDay {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
