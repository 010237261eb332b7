package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ContentType string

const (
	ContentPrompt  ContentType = "prompt"
	ContentProblem ContentType = "problem"
)

// ContentRef points at reportable content. The only implementations are
// PromptRef and ProblemRef.
type ContentRef interface {
	ContentID() uuid.UUID
	ContentType() ContentType
	sealed()
}

type PromptRef struct{ ID uuid.UUID }

func (r PromptRef) ContentID() uuid.UUID     { return r.ID }
func (r PromptRef) ContentType() ContentType { return ContentPrompt }
func (PromptRef) sealed()                    {}

type ProblemRef struct{ ID uuid.UUID }

func (r ProblemRef) ContentID() uuid.UUID     { return r.ID }
func (r ProblemRef) ContentType() ContentType { return ContentProblem }
func (ProblemRef) sealed()                    {}

// ParseContentRef builds a ContentRef from its stored (type, id) pair.
func ParseContentRef(contentType string, id uuid.UUID) (ContentRef, error) {
	switch ContentType(contentType) {
	case ContentPrompt:
		return PromptRef{ID: id}, nil
	case ContentProblem:
		return ProblemRef{ID: id}, nil
	default:
		return nil, fmt.Errorf("unknown content type %q", contentType)
	}
}

type ReportReason string

const (
	ReasonSpam       ReportReason = "spam"
	ReasonOffensive  ReportReason = "offensive"
	ReasonIncorrect  ReportReason = "incorrect"
	ReasonCopyright  ReportReason = "copyright"
	ReasonLowQuality ReportReason = "low_quality"
	ReasonOther      ReportReason = "other"
)

func (r ReportReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonOffensive, ReasonIncorrect, ReasonCopyright, ReasonLowQuality, ReasonOther:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

type Report struct {
	ID         uuid.UUID    `json:"id"`
	Content    ContentRef   `json:"-"`
	ReporterID uuid.UUID    `json:"reporter_id"`
	Reason     ReportReason `json:"reason"`
	Details    string       `json:"details,omitempty"`
	Status     ReportStatus `json:"status"`
	ReviewedBy *uuid.UUID   `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time   `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

func (r Report) MarshalJSON() ([]byte, error) {
	type alias Report
	out := struct {
		alias
		ContentType ContentType `json:"content_type"`
		ContentID   uuid.UUID   `json:"content_id"`
	}{alias: alias(r)}
	if r.Content != nil {
		out.ContentType = r.Content.ContentType()
		out.ContentID = r.Content.ContentID()
	}
	return json.Marshal(out)
}
