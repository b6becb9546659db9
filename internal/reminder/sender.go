package reminder

import (
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

var ErrBadNotification = errors.New("bad notification")

// Sender delivers reminders to the user. The only channel for now is the log.
type Sender struct{}

func (Sender) Handle(body []byte) (Notification, error) {
	n := Notification{}
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, fmt.Errorf("%w: %w", ErrBadNotification, err)
	}
	if n.TaskID == "" {
		return Notification{}, fmt.Errorf("%w: task id is missing", ErrBadNotification)
	}

	entry := log.WithField("task", n.TaskID).WithField("date", n.Date)
	if n.Time != nil {
		entry = entry.WithField("time", *n.Time)
	}
	entry.Infof("reminder: %s", n.Title)
	return n, nil
}
