package sqlstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/storage"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/util"
	log "github.com/sirupsen/logrus"
)

var ErrConnectionFailed = errors.New("failed to connect")

const (
	dbErrUniqueViolation = "23505"

	taskColumns = "id, title, description, date, time, external_event_id"
)

type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type Storage struct {
	host     string
	port     int
	database string
	username string
	password string
	db       *sqlx.DB
}

func New(config Config) *Storage {
	return &Storage{
		host:     config.Host,
		port:     config.Port,
		database: config.Database,
		username: config.Username,
		password: config.Password,
	}
}

func (s *Storage) Connect(ctx context.Context) error {
	db, err := sqlx.ConnectContext(
		ctx,
		"postgres",
		fmt.Sprintf(
			"sslmode=disable host=%s port=%d dbname=%s user=%s password=%s",
			s.host, s.port, s.database, s.username, s.password),
	)
	if err != nil {
		log.Errorf("failed to connect: %v", err)
		return ErrConnectionFailed
	}
	s.db = db
	return nil
}

func (s *Storage) Close(ctx context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func (s *Storage) AddTask(ctx context.Context, t *storage.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Date = util.DateOnly(t.Date)

	_, err := s.db.ExecContext(
		ctx,
		"INSERT INTO Tasks(id, title, description, date, time, external_event_id) "+
			"VALUES($1, $2, $3, $4, $5, $6)",
		t.ID, t.Title, t.Description, t.Date.Format(storage.DateLayout), t.Time, t.ExternalEventID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == dbErrUniqueViolation {
		return fmt.Errorf("duplicate ID %q: %w", t.ID, storage.ErrDuplicateTaskID)
	}
	return err
}

func (s *Storage) GetTask(ctx context.Context, id string) (storage.Task, error) {
	var t storage.Task
	err := s.db.GetContext(ctx, &t, "SELECT "+taskColumns+" FROM Tasks WHERE id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Task{}, fmt.Errorf("failed to get task with id %q: %w", id, storage.ErrNotFoundTask)
	}
	if err != nil {
		return storage.Task{}, err
	}
	t.Date = util.DateOnly(t.Date)
	return t, nil
}

func (s *Storage) ListTasks(ctx context.Context, f storage.Filter) ([]storage.Task, error) {
	query, args := listQuery(f)
	tasks := make([]storage.Task, 0)
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Date = util.DateOnly(tasks[i].Date)
	}
	return tasks, nil
}

func listQuery(f storage.Filter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	addCondition := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if f.Title != "" {
		addCondition("title ILIKE $%d", "%"+escapeLike(f.Title)+"%")
	}
	if f.Search != "" {
		addCondition("title ILIKE $%d", "%"+escapeLike(f.Search)+"%")
	}
	if f.DateFrom != nil {
		addCondition("date >= $%d", f.DateFrom.Format(storage.DateLayout))
	}
	if f.DateTo != nil {
		addCondition("date <= $%d", f.DateTo.Format(storage.DateLayout))
	}

	query := "SELECT " + taskColumns + " FROM Tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	switch f.Ordering {
	case storage.OrderByDate:
		query += " ORDER BY date, created_at, id"
	case storage.OrderByDateDesc:
		query += " ORDER BY date DESC, created_at, id"
	default:
		query += " ORDER BY created_at, id"
	}
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *Storage) UpdateTask(ctx context.Context, id string, t storage.Task) (storage.Task, error) {
	if err := t.Validate(); err != nil {
		return storage.Task{}, err
	}

	var updated storage.Task
	err := s.db.GetContext(
		ctx,
		&updated,
		"UPDATE Tasks SET title=$2, description=$3, date=$4, time=$5 "+
			"WHERE id=$1 RETURNING "+taskColumns,
		id,
		t.Title,
		t.Description,
		t.Date.Format(storage.DateLayout),
		t.Time,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Task{}, fmt.Errorf("failed to update task with id %q: %w", id, storage.ErrNotFoundTask)
	}
	if err != nil {
		return storage.Task{}, err
	}
	updated.Date = util.DateOnly(updated.Date)
	return updated, nil
}

func (s *Storage) SetExternalEventID(ctx context.Context, id string, eventID *string) error {
	var found bool
	err := s.db.GetContext(ctx, &found, "UPDATE Tasks SET external_event_id=$2 WHERE id=$1 RETURNING TRUE", id, eventID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !found) {
		return fmt.Errorf("failed to set event of task with id %q: %w", id, storage.ErrNotFoundTask)
	}
	return err
}

func (s *Storage) RemoveTask(ctx context.Context, id string) error {
	var found bool
	err := s.db.GetContext(ctx, &found, "DELETE FROM Tasks WHERE id=$1 RETURNING TRUE", id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !found) {
		return fmt.Errorf("failed to remove task with id %q: %w", id, storage.ErrNotFoundTask)
	}
	return err
}
