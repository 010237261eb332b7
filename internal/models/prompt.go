package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PromptStatus string

const (
	PromptStatusDraft      PromptStatus = "draft"
	PromptStatusProduction PromptStatus = "production"
	PromptStatusArchived   PromptStatus = "archived"
	PromptStatusPublished  PromptStatus = "published"
)

func (s PromptStatus) Valid() bool {
	switch s {
	case PromptStatusDraft, PromptStatusProduction, PromptStatusArchived, PromptStatusPublished:
		return true
	}
	return false
}

type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityPrivate:
		return true
	}
	return false
}

// Moderation holds the flags only moderation actions may set. New rows, forks
// included, always start from the zero value.
type Moderation struct {
	IsHidden    bool       `json:"is_hidden" db:"is_hidden"`
	IsReported  bool       `json:"is_reported" db:"is_reported"`
	ReportCount int        `json:"report_count" db:"report_count"`
	IsDeleted   bool       `json:"is_deleted" db:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	DeletedBy   *uuid.UUID `json:"deleted_by,omitempty" db:"deleted_by"`
}

type Prompt struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	ProblemID          uuid.UUID       `json:"problem_id" db:"problem_id"`
	WorkspaceID        uuid.UUID       `json:"workspace_id" db:"workspace_id"`
	ParentPromptID     *uuid.UUID      `json:"parent_prompt_id,omitempty" db:"parent_prompt_id"`
	CreatedBy          uuid.UUID       `json:"created_by" db:"created_by"`
	Slug               string          `json:"slug" db:"slug"`
	Title              string          `json:"title" db:"title"`
	SystemPrompt       string          `json:"system_prompt" db:"system_prompt"`
	UserTemplate       string          `json:"user_template" db:"user_template"`
	Model              string          `json:"model" db:"model"`
	Params             json.RawMessage `json:"params" db:"params"`
	ExampleInput       string          `json:"example_input,omitempty" db:"example_input"`
	ExampleOutput      string          `json:"example_output,omitempty" db:"example_output"`
	Notes              string          `json:"notes,omitempty" db:"notes"`
	ImprovementSummary string          `json:"improvement_summary,omitempty" db:"improvement_summary"`
	Status             PromptStatus    `json:"status" db:"status"`
	Visibility         Visibility      `json:"visibility" db:"visibility"`
	IsListed           bool            `json:"is_listed" db:"is_listed"`
	Moderation
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsRoot reports whether the prompt is an original rather than a fork.
func (p Prompt) IsRoot() bool {
	return p.ParentPromptID == nil
}

// PromptStats is a projection of the vote, review, event and fork tables.
type PromptStats struct {
	PromptID     uuid.UUID `json:"prompt_id" db:"prompt_id"`
	Upvotes      int       `json:"upvotes" db:"upvotes"`
	Downvotes    int       `json:"downvotes" db:"downvotes"`
	Score        int       `json:"score" db:"score"`
	CopyCount    int       `json:"copy_count" db:"copy_count"`
	ViewCount    int       `json:"view_count" db:"view_count"`
	ForkCount    int       `json:"fork_count" db:"fork_count"`
	WorksCount   int       `json:"works_count" db:"works_count"`
	FailsCount   int       `json:"fails_count" db:"fails_count"`
	ReviewsCount int       `json:"reviews_count" db:"reviews_count"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type PromptWithStats struct {
	Prompt
	Stats PromptStats `json:"stats"`
}

type ForkEvent struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ParentPromptID uuid.UUID `json:"parent_prompt_id" db:"parent_prompt_id"`
	ChildPromptID  uuid.UUID `json:"child_prompt_id" db:"child_prompt_id"`
	ForkedBy       uuid.UUID `json:"forked_by" db:"forked_by"`
	ForkReason     string    `json:"fork_reason" db:"fork_reason"`
	ChangesSummary string    `json:"changes_summary,omitempty" db:"changes_summary"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type PromptEventKind string

const (
	PromptEventView PromptEventKind = "view"
	PromptEventCopy PromptEventKind = "copy"
)

type Vote struct {
	PromptID  uuid.UUID `json:"prompt_id" db:"prompt_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Value     int       `json:"value" db:"value"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
