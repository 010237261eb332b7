package models

import (
	"time"

	"github.com/google/uuid"
)

type ReviewType string

const (
	ReviewWorked ReviewType = "worked"
	ReviewFailed ReviewType = "failed"
	ReviewNote   ReviewType = "note"
)

type PromptReview struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	PromptID  uuid.UUID  `json:"prompt_id" db:"prompt_id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	Type      ReviewType `json:"review_type" db:"review_type"`
	Reason    string     `json:"reason,omitempty" db:"reason"`
	Comment   string     `json:"comment,omitempty" db:"comment"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Day is the UTC calendar day used by the one-review-per-type-per-day rule.
func (r PromptReview) Day() string {
	return r.CreatedAt.UTC().Format(time.DateOnly)
}
