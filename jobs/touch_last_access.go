package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/academico/academico/internal/jobs"
	"github.com/academico/academico/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LastAccessStore persists the login time of a user.
type LastAccessStore interface {
	TouchLastAccess(ctx context.Context, userID int64, at time.Time) error
}

// TouchLastAccessJob writes usuarios.ultimo_acceso_en outside the login request.
type TouchLastAccessJob struct {
	Store   LastAccessStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewTouchLastAccessJob wires dependencies for the handler.
func NewTouchLastAccessJob(store LastAccessStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *TouchLastAccessJob {
	return &TouchLastAccessJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTouchLastAccess tasks.
func (j *TouchLastAccessJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Store == nil {
		return errors.New("touch last access: handler not configured")
	}
	var payload TouchLastAccessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("touch last access: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.UserID <= 0 || payload.At.IsZero() {
		return fmt.Errorf("touch last access: incomplete payload: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskTouchLastAccess)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	err := j.Store.TouchLastAccess(ctx, payload.UserID, payload.At)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		j.logger().Info("user gone before last access update", slog.Int64("user_id", payload.UserID))
		return nil
	case err != nil:
		j.logger().Error("touch last access", slog.Int64("user_id", payload.UserID), slog.Any("error", err))
		return err
	}
	return nil
}

func (j *TouchLastAccessJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *TouchLastAccessJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
