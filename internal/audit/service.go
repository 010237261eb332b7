// Package audit records who changed what for forks, memberships and
// moderation decisions.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/nikhilbhutani/promptvexity/internal/store"
)

const (
	ActionPromptForked  = "prompt.forked"
	ActionPromptDeleted = "prompt.deleted"
	ActionPromptHidden  = "prompt.hidden"
	ActionMemberAdded   = "member.added"
	ActionMemberRemoved = "member.removed"
	ActionReportResolve = "report.resolved"
	ActionReportDismiss = "report.dismissed"
)

type Service struct {
	store store.AuditStore
	now   func() time.Time
}

func NewService(st store.AuditStore) *Service {
	return &Service{store: st, now: time.Now}
}

type LogEntry struct {
	ActorID      uuid.UUID
	Action       string
	ResourceType string
	ResourceID   uuid.UUID
	Details      map[string]any
}

// Record converts the entry into the row that will be stored.
func (e LogEntry) Record(at time.Time) models.AuditLog {
	l := models.AuditLog{
		Action:       e.Action,
		ResourceType: e.ResourceType,
		CreatedAt:    at,
	}
	if e.ActorID != uuid.Nil {
		actor := e.ActorID
		l.UserID = &actor
	}
	if e.ResourceID != uuid.Nil {
		id := e.ResourceID
		l.ResourceID = &id
	}
	details, err := json.Marshal(e.Details)
	if err != nil || e.Details == nil {
		details = []byte("{}")
	}
	l.Details = details
	return l
}

func (s *Service) Log(ctx context.Context, entry LogEntry) error {
	if err := s.store.InsertAuditLog(ctx, entry.Record(s.now().UTC())); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Entry prepares a row for callers that write it inside their own store
// operation.
func (s *Service) Entry(entry LogEntry) models.AuditLog {
	return entry.Record(s.now().UTC())
}

func (s *Service) GetAuditLogs(ctx context.Context, q store.AuditQuery) ([]models.AuditLog, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	logs, err := s.store.ListAuditLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	return logs, nil
}
