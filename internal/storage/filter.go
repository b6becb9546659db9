package storage

import (
	"sort"
	"strings"
	"time"
)

const (
	OrderByDate     = "date"
	OrderByDateDesc = "-date"
)

// Filter selects tasks for listing. Zero value matches everything in insertion order.
type Filter struct {
	// Title and Search both match a case-insensitive substring of the title.
	Title    string
	Search   string
	DateFrom *time.Time
	DateTo   *time.Time
	Ordering string
}

// Match reports whether the task passes the filter. Date bounds are inclusive.
func (f Filter) Match(t Task) bool {
	title := strings.ToLower(t.Title)
	if f.Title != "" && !strings.Contains(title, strings.ToLower(f.Title)) {
		return false
	}
	if f.Search != "" && !strings.Contains(title, strings.ToLower(f.Search)) {
		return false
	}
	if f.DateFrom != nil && t.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && t.Date.After(*f.DateTo) {
		return false
	}
	return true
}

// ValidOrdering reports whether the ordering is supported. Unknown values are ignored by storages.
func ValidOrdering(o string) bool {
	return o == OrderByDate || o == OrderByDateDesc
}

// SortTasks orders tasks that are already in insertion order.
func SortTasks(tasks []Task, ordering string) {
	switch ordering {
	case OrderByDate:
		sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Date.Before(tasks[j].Date) })
	case OrderByDateDesc:
		sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Date.After(tasks[j].Date) })
	}
}
