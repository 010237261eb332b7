package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/promptvexity/internal/config"
	"github.com/nikhilbhutani/promptvexity/internal/models"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type Client struct {
	client enqueuer
	now    func() time.Time
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		now: time.Now,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// RecordEvent enqueues a view or copy event for the stats worker.
func (c *Client) RecordEvent(ctx context.Context, promptID uuid.UUID, userID *uuid.UUID, kind models.PromptEventKind) error {
	taskType, err := TaskType(kind)
	if err != nil {
		return err
	}
	payload := PromptEventPayload{PromptID: promptID.String(), OccurredAt: c.now().UTC()}
	if userID != nil {
		payload.UserID = userID.String()
	}
	return c.enqueue(ctx, taskType, payload, asynq.Queue(QueueLow), asynq.MaxRetry(3), asynq.Timeout(30*time.Second))
}

// EnqueueStatsRecompute asks the worker to rebuild one prompt's stats row.
// Repeated requests within a minute collapse into one task.
func (c *Client) EnqueueStatsRecompute(ctx context.Context, promptID uuid.UUID) error {
	err := c.enqueue(ctx, TypeStatsRecompute, StatsRecomputePayload{PromptID: promptID.String()},
		asynq.Queue(QueueDefault), asynq.MaxRetry(5), asynq.Timeout(time.Minute), asynq.Unique(time.Minute))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
