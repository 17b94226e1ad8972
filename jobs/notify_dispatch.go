package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/optica-erp/optica-erp/internal/notify"
)

// NotifyPort exposes the queries the dispatch pass needs.
type NotifyPort interface {
	ListUndispatched(ctx context.Context, since time.Time, limit int) ([]notify.Notification, error)
	UnreadCount(ctx context.Context, targetModule string) (int64, error)
}

// NotifyCachePort reseeds unread counters.
type NotifyCachePort interface {
	SetUnreadCount(ctx context.Context, module string, count int64)
}

// NotifyDispatchJob fans recent notifications out to module dashboards and
// refreshes their unread counters so badge reads stay off PostgreSQL.
type NotifyDispatchJob struct {
	repo   NotifyPort
	cache  NotifyCachePort
	logger *slog.Logger
}

// NewNotifyDispatchJob constructs the job. cache may be nil.
func NewNotifyDispatchJob(repo NotifyPort, cache NotifyCachePort, logger *slog.Logger) *NotifyDispatchJob {
	return &NotifyDispatchJob{repo: repo, cache: cache, logger: logger}
}

// Handle processes TaskTypeNotifyDispatch tasks.
func (j *NotifyDispatchJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload NotifyDispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	window := time.Duration(payload.WindowMinutes) * time.Minute
	if window <= 0 {
		window = 15 * time.Minute
	}

	fresh, err := j.repo.ListUndispatched(ctx, time.Now().UTC().Add(-window), 0)
	if err != nil {
		return fmt.Errorf("notify dispatch: %w", err)
	}
	perModule := make(map[string]int)
	for _, n := range fresh {
		perModule[n.TargetModule]++
	}
	for _, module := range []string{notify.ModuleProduccion, notify.ModuleAlmacen, notify.ModuleDistribuidora} {
		count, err := j.repo.UnreadCount(ctx, module)
		if err != nil {
			return fmt.Errorf("notify dispatch: %w", err)
		}
		if j.cache != nil {
			j.cache.SetUnreadCount(ctx, module, count)
		}
		if perModule[module] > 0 {
			j.logger.Info("notifications dispatched",
				slog.String("module", module),
				slog.Int("fresh", perModule[module]),
				slog.Int64("unread", count))
		}
	}
	return nil
}
