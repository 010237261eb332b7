package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/models"
)

const (
	TypePromptView     = "prompt:view"
	TypePromptCopy     = "prompt:copy"
	TypeStatsRecompute = "stats:recompute"
)

// Analytics events go to the low queue so admin recomputes are not starved.
const (
	QueueDefault = "default"
	QueueLow     = "low"
)

// Queues holds the weights the worker polls with.
var Queues = map[string]int{
	QueueDefault: 3,
	QueueLow:     1,
}

type PromptEventPayload struct {
	PromptID   string    `json:"prompt_id"`
	UserID     string    `json:"user_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type StatsRecomputePayload struct {
	PromptID string `json:"prompt_id"`
}

// TaskType maps a prompt event kind to its task type.
func TaskType(kind models.PromptEventKind) (string, error) {
	switch kind {
	case models.PromptEventView:
		return TypePromptView, nil
	case models.PromptEventCopy:
		return TypePromptCopy, nil
	}
	return "", fmt.Errorf("unknown prompt event kind %q", kind)
}

// EventKind is the inverse of TaskType.
func EventKind(taskType string) (models.PromptEventKind, error) {
	switch taskType {
	case TypePromptView:
		return models.PromptEventView, nil
	case TypePromptCopy:
		return models.PromptEventCopy, nil
	}
	return "", fmt.Errorf("task %q is not a prompt event", taskType)
}

// Parse decodes the ids carried by the payload. UserID is nil for anonymous
// events.
func (p PromptEventPayload) Parse() (uuid.UUID, *uuid.UUID, error) {
	promptID, err := uuid.Parse(p.PromptID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("parse prompt ID: %w", err)
	}
	if p.UserID == "" {
		return promptID, nil, nil
	}
	userID, err := uuid.Parse(p.UserID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("parse user ID: %w", err)
	}
	return promptID, &userID, nil
}
