package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTouchLastAccess records the login time of a user.
	TaskTouchLastAccess = "auth:touch_last_access"
)

// TouchLastAccessPayload carries the user and the moment of the login.
type TouchLastAccessPayload struct {
	UserID int64     `json:"user_id"`
	At     time.Time `json:"at"`
}

// NewTouchLastAccessTask constructs an Asynq task.
func NewTouchLastAccessTask(payload TouchLastAccessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTouchLastAccess, data, asynq.MaxRetry(3), asynq.Timeout(30*time.Second)), nil
}
