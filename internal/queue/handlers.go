package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/promptvexity/internal/metrics"
)

type HandlersRegistry struct {
	mux     *asynq.ServeMux
	metrics *metrics.Metrics
}

func NewHandlersRegistry(m *metrics.Metrics) *HandlersRegistry {
	return &HandlersRegistry{
		mux:     asynq.NewServeMux(),
		metrics: m,
	}
}

// Register mounts handler for taskType, counting outcomes and logging
// failures.
func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := handler.ProcessTask(ctx, t)
		r.metrics.RecordTask(taskType, err)
		if err != nil {
			slog.Error("task failed", "type", taskType, "duration", time.Since(start), "error", err)
		}
		return err
	}))
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}
