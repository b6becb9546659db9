package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/calendarsync"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/storage"
	memorystorage "github.com/lomoval/otus-golang/tasks_calendar_sync/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

type call struct {
	op      string
	eventID string
	task    storage.Task
}

type fakeCalendar struct {
	calls     []call
	createErr error
	updateErr error
	deleteErr error
	nextID    int
	// onDelete runs before the remote delete is recorded.
	onDelete func()
}

func (c *fakeCalendar) CreateEvent(_ context.Context, t storage.Task) (string, error) {
	c.calls = append(c.calls, call{op: "create", task: t})
	if c.createErr != nil {
		return "", c.createErr
	}
	c.nextID++
	return fmt.Sprintf("evt-%d", c.nextID), nil
}

func (c *fakeCalendar) UpdateEvent(_ context.Context, eventID string, t storage.Task) error {
	c.calls = append(c.calls, call{op: "update", eventID: eventID, task: t})
	return c.updateErr
}

func (c *fakeCalendar) DeleteEvent(_ context.Context, eventID string) error {
	if c.onDelete != nil {
		c.onDelete()
	}
	c.calls = append(c.calls, call{op: "delete", eventID: eventID})
	return c.deleteErr
}

func (c *fakeCalendar) ops() []string {
	res := make([]string, 0, len(c.calls))
	for _, cl := range c.calls {
		res = append(res, cl.op)
	}
	return res
}

type refStorage struct {
	*memorystorage.Storage
	setErr error
}

func (s refStorage) SetExternalEventID(ctx context.Context, id string, eventID *string) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.Storage.SetExternalEventID(ctx, id, eventID)
}

var errRemoteDown = fmt.Errorf("create event: %w: 503 backend error", calendarsync.ErrRemoteSync)

func payRent() storage.Task {
	return storage.Task{Title: "Pay rent", Date: time.Date(2024, 9, 22, 0, 0, 0, 0, time.UTC)}
}

func TestCreateTask(t *testing.T) {
	t.Run("synced", func(t *testing.T) {
		cal := &fakeCalendar{}
		a := New(memorystorage.New(), cal)

		task, err := a.CreateTask(context.Background(), payRent())
		require.NoError(t, err)
		require.NotEmpty(t, task.ID)
		require.NotNil(t, task.ExternalEventID)
		require.Equal(t, "evt-1", *task.ExternalEventID)
		require.Equal(t, []string{"create"}, cal.ops())
		require.Equal(t, task.ID, cal.calls[0].task.ID)

		stored, err := a.GetTask(context.Background(), task.ID)
		require.NoError(t, err)
		require.Equal(t, "evt-1", *stored.ExternalEventID)
	})

	t.Run("provider outage keeps the task", func(t *testing.T) {
		cal := &fakeCalendar{createErr: errRemoteDown}
		a := New(memorystorage.New(), cal)

		task, err := a.CreateTask(context.Background(), payRent())
		require.NoError(t, err)
		require.Nil(t, task.ExternalEventID)

		stored, err := a.GetTask(context.Background(), task.ID)
		require.NoError(t, err)
		require.Nil(t, stored.ExternalEventID)
		require.Equal(t, "Pay rent", stored.Title)
	})

	t.Run("auth failure keeps the task", func(t *testing.T) {
		cal := &fakeCalendar{createErr: calendarsync.ErrAuth}
		a := New(memorystorage.New(), cal)

		task, err := a.CreateTask(context.Background(), payRent())
		require.NoError(t, err)
		require.Nil(t, task.ExternalEventID)
	})

	t.Run("client supplied event id is ignored", func(t *testing.T) {
		cal := &fakeCalendar{createErr: errRemoteDown}
		a := New(memorystorage.New(), cal)
		in := payRent()
		forged := "forged"
		in.ExternalEventID = &forged

		task, err := a.CreateTask(context.Background(), in)
		require.NoError(t, err)
		require.Nil(t, task.ExternalEventID)
	})

	t.Run("invalid task makes no remote call", func(t *testing.T) {
		cal := &fakeCalendar{}
		a := New(memorystorage.New(), cal)

		_, err := a.CreateTask(context.Background(), storage.Task{Title: " ", Date: time.Now()})
		require.ErrorIs(t, err, storage.ErrInvalidTask)
		require.Empty(t, cal.calls)
	})

	t.Run("event is removed when its reference cannot be saved", func(t *testing.T) {
		cal := &fakeCalendar{}
		stor := refStorage{Storage: memorystorage.New(), setErr: errors.New("connection lost")}
		a := New(stor, cal)

		task, err := a.CreateTask(context.Background(), payRent())
		require.NoError(t, err)
		require.Nil(t, task.ExternalEventID)
		require.Equal(t, []string{"create", "delete"}, cal.ops())
		require.Equal(t, "evt-1", cal.calls[1].eventID)

		stored, err := a.GetTask(context.Background(), task.ID)
		require.NoError(t, err)
		require.Nil(t, stored.ExternalEventID)
	})

	t.Run("failed cleanup of the event still keeps the task", func(t *testing.T) {
		cal := &fakeCalendar{deleteErr: errRemoteDown}
		stor := refStorage{Storage: memorystorage.New(), setErr: errors.New("connection lost")}
		a := New(stor, cal)

		task, err := a.CreateTask(context.Background(), payRent())
		require.NoError(t, err)
		require.Nil(t, task.ExternalEventID)
		require.Equal(t, []string{"create", "delete"}, cal.ops())

		_, err = a.GetTask(context.Background(), task.ID)
		require.NoError(t, err)
	})

	t.Run("sync disabled", func(t *testing.T) {
		a := New(memorystorage.New(), nil)

		task, err := a.CreateTask(context.Background(), payRent())
		require.NoError(t, err)
		require.Nil(t, task.ExternalEventID)
	})
}

func TestUpdateTask(t *testing.T) {
	t.Run("synced task updates the event", func(t *testing.T) {
		cal := &fakeCalendar{}
		a := New(memorystorage.New(), cal)
		task, err := a.CreateTask(context.Background(), payRent())
		require.NoError(t, err)

		changed := payRent()
		changed.Title = "Pay rent and bills"
		changed.Time = &storage.TimeOfDay{Hour: 14}
		updated, err := a.UpdateTask(context.Background(), task.ID, changed)
		require.NoError(t, err)
		require.Equal(t, "Pay rent and bills", updated.Title)
		require.Equal(t, "evt-1", *updated.ExternalEventID)

		require.Equal(t, []string{"create", "update"}, cal.ops())
		require.Equal(t, "evt-1", cal.calls[1].eventID)
		require.Equal(t, "Pay rent and bills", cal.calls[1].task.Title)
	})

	t.Run("unsynced task makes no remote call", func(t *testing.T) {
		cal := &fakeCalendar{createErr: errRemoteDown}
		a := New(memorystorage.New(), cal)
		task, err := a.CreateTask(context.Background(), payRent())
		require.NoError(t, err)
		cal.calls = nil

		changed := payRent()
		changed.Description = "transfer"
		updated, err := a.UpdateTask(context.Background(), task.ID, changed)
		require.NoError(t, err)
		require.Equal(t, "transfer", updated.Description)
		require.Nil(t, updated.ExternalEventID)
		require.Empty(t, cal.calls)
	})

	t.Run("remote failure is swallowed", func(t *testing.T) {
		cal := &fakeCalendar{}
		a := New(memorystorage.New(), cal)
		task, err := a.CreateTask(context.Background(), payRent())
		require.NoError(t, err)
		cal.updateErr = fmt.Errorf("%w: %w", calendarsync.ErrRemoteSync, calendarsync.ErrEventNotFound)

		changed := payRent()
		changed.Title = "Rent"
		updated, err := a.UpdateTask(context.Background(), task.ID, changed)
		require.NoError(t, err)
		require.Equal(t, "Rent", updated.Title)
		require.Equal(t, "evt-1", *updated.ExternalEventID)
	})

	t.Run("unknown task", func(t *testing.T) {
		cal := &fakeCalendar{}
		a := New(memorystorage.New(), cal)

		_, err := a.UpdateTask(context.Background(), "missing", payRent())
		require.ErrorIs(t, err, storage.ErrNotFoundTask)
		require.Empty(t, cal.calls)
	})

	t.Run("invalid task", func(t *testing.T) {
		cal := &fakeCalendar{}
		a := New(memorystorage.New(), cal)
		task, err := a.CreateTask(context.Background(), payRent())
		require.NoError(t, err)

		_, err = a.UpdateTask(context.Background(), task.ID, storage.Task{Title: "Pay rent"})
		require.ErrorIs(t, err, storage.ErrInvalidTask)
		require.Equal(t, []string{"create"}, cal.ops())
	})
}

func TestRemoveTask(t *testing.T) {
	t.Run("remote delete happens before local delete", func(t *testing.T) {
		cal := &fakeCalendar{}
		a := New(memorystorage.New(), cal)
		task, err := a.CreateTask(context.Background(), payRent())
		require.NoError(t, err)

		stillStored := false
		cal.onDelete = func() {
			_, err := a.GetTask(context.Background(), task.ID)
			stillStored = err == nil
		}
		require.NoError(t, a.RemoveTask(context.Background(), task.ID))
		require.True(t, stillStored)
		require.Equal(t, []string{"create", "delete"}, cal.ops())
		require.Equal(t, "evt-1", cal.calls[1].eventID)

		_, err = a.GetTask(context.Background(), task.ID)
		require.ErrorIs(t, err, storage.ErrNotFoundTask)
	})

	t.Run("remote failure still removes the task", func(t *testing.T) {
		cal := &fakeCalendar{deleteErr: errors.New("connection reset")}
		a := New(memorystorage.New(), cal)
		task, err := a.CreateTask(context.Background(), payRent())
		require.NoError(t, err)

		require.NoError(t, a.RemoveTask(context.Background(), task.ID))
		_, err = a.GetTask(context.Background(), task.ID)
		require.ErrorIs(t, err, storage.ErrNotFoundTask)
	})

	t.Run("unsynced task makes no remote call", func(t *testing.T) {
		cal := &fakeCalendar{createErr: errRemoteDown}
		a := New(memorystorage.New(), cal)
		task, err := a.CreateTask(context.Background(), payRent())
		require.NoError(t, err)

		require.NoError(t, a.RemoveTask(context.Background(), task.ID))
		require.Equal(t, []string{"create"}, cal.ops())
	})

	t.Run("unknown task", func(t *testing.T) {
		cal := &fakeCalendar{}
		a := New(memorystorage.New(), cal)

		require.ErrorIs(t, a.RemoveTask(context.Background(), "missing"), storage.ErrNotFoundTask)
		require.Empty(t, cal.calls)
	})
}

func TestListTasks(t *testing.T) {
	a := New(memorystorage.New(), nil)
	for _, d := range []int{3, 1, 2} {
		task := payRent()
		task.Date = time.Date(2024, 9, d, 0, 0, 0, 0, time.UTC)
		_, err := a.CreateTask(context.Background(), task)
		require.NoError(t, err)
	}

	from := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	tasks, err := a.ListTasks(context.Background(), storage.Filter{DateFrom: &from, Ordering: storage.OrderByDate})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, 2, tasks[0].Date.Day())
	require.Equal(t, 3, tasks[1].Date.Day())
}
