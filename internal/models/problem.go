package models

import (
	"time"

	"github.com/google/uuid"
)

type Problem struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	WorkspaceID     uuid.UUID  `json:"workspace_id" db:"workspace_id"`
	CreatedBy       uuid.UUID  `json:"created_by" db:"created_by"`
	Slug            string     `json:"slug" db:"slug"`
	Title           string     `json:"title" db:"title"`
	Description     string     `json:"description" db:"description"`
	Goal            string     `json:"goal,omitempty" db:"goal"`
	Inputs          []string   `json:"inputs" db:"inputs"`
	Constraints     []string   `json:"constraints" db:"constraints"`
	SuccessCriteria []string   `json:"success_criteria" db:"success_criteria"`
	Tags            []string   `json:"tags" db:"tags"`
	Industry        string     `json:"industry,omitempty" db:"industry"`
	Visibility      Visibility `json:"visibility" db:"visibility"`
	Moderation
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
