package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAndQuery(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryStore())
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	actor, prompt := uuid.New(), uuid.New()
	require.NoError(t, svc.Log(ctx, LogEntry{
		ActorID:      actor,
		Action:       ActionPromptForked,
		ResourceType: "prompt",
		ResourceID:   prompt,
		Details:      map[string]any{"parent_prompt_id": "abc"},
	}))
	require.NoError(t, svc.Log(ctx, LogEntry{Action: ActionMemberAdded}))

	logs, err := svc.GetAuditLogs(ctx, store.AuditQuery{Action: ActionPromptForked})
	require.NoError(t, err)
	require.Len(t, logs, 1)

	l := logs[0]
	require.NotNil(t, l.UserID)
	assert.Equal(t, actor, *l.UserID)
	require.NotNil(t, l.ResourceID)
	assert.Equal(t, prompt, *l.ResourceID)
	assert.Equal(t, fixed, l.CreatedAt)

	var details map[string]string
	require.NoError(t, json.Unmarshal(l.Details, &details))
	assert.Equal(t, "abc", details["parent_prompt_id"])

	all, err := svc.GetAuditLogs(ctx, store.AuditQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, ActionMemberAdded, all[0].Action, "newest first")
}

func TestRecordWithoutActorOrDetails(t *testing.T) {
	l := LogEntry{Action: ActionReportDismiss}.Record(time.Now())
	assert.Nil(t, l.UserID)
	assert.Nil(t, l.ResourceID)
	assert.JSONEq(t, `{}`, string(l.Details))
}

func TestGetAuditLogsNegativeOffset(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryStore())
	require.NoError(t, svc.Log(ctx, LogEntry{Action: ActionMemberAdded}))

	logs, err := svc.GetAuditLogs(ctx, store.AuditQuery{Offset: -1})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
