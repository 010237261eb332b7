package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/models"
)

type voteKey struct {
	promptID uuid.UUID
	userID   uuid.UUID
}

type memberKey struct {
	scope      models.MembershipScope
	resourceID uuid.UUID
	userID     uuid.UUID
}

type promptEvent struct {
	promptID uuid.UUID
	kind     models.PromptEventKind
}

// MemoryStore is a Store kept in process memory. It enforces the same unique
// constraints as the Postgres schema and is safe for concurrent use. The API
// falls back to it when no DATABASE_URL is configured.
type MemoryStore struct {
	mu sync.Mutex

	users      map[uuid.UUID]models.User
	workspaces map[uuid.UUID]models.Workspace
	members    map[memberKey]models.Membership
	problems   map[uuid.UUID]models.Problem
	prompts    map[uuid.UUID]models.Prompt
	stats      map[uuid.UUID]models.PromptStats
	votes      map[voteKey]models.Vote
	forks      []models.ForkEvent
	events     []promptEvent
	reviews    []models.PromptReview
	reports    map[uuid.UUID]models.Report
	auditLogs  []models.AuditLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[uuid.UUID]models.User),
		workspaces: make(map[uuid.UUID]models.Workspace),
		members:    make(map[memberKey]models.Membership),
		problems:   make(map[uuid.UUID]models.Problem),
		prompts:    make(map[uuid.UUID]models.Prompt),
		stats:      make(map[uuid.UUID]models.PromptStats),
		votes:      make(map[voteKey]models.Vote),
		reports:    make(map[uuid.UUID]models.Report),
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func orNewID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}

func (s *MemoryStore) CreateUser(_ context.Context, u models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.ID = orNewID(u.ID)
	u.CreatedAt = orNow(u.CreatedAt)
	if u.Role == "" {
		u.Role = models.PlatformRoleUser
	}
	if _, ok := s.users[u.ID]; ok {
		return models.User{}, apperr.Conflictf("user %s already exists", u.ID)
	}
	for _, existing := range s.users {
		if u.Username != "" && existing.Username == u.Username {
			return models.User{}, apperr.Conflictf("username %q is taken", u.Username)
		}
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uuid.UUID) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, apperr.NotFoundf("user %s not found", id)
	}
	return u, nil
}

func (s *MemoryStore) CreateWorkspace(_ context.Context, ws models.Workspace) (models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.workspaces {
		if existing.OwnerID == ws.OwnerID {
			return models.Workspace{}, apperr.Conflictf("user %s already owns a workspace", ws.OwnerID)
		}
	}
	ws.ID = orNewID(ws.ID)
	ws.CreatedAt = orNow(ws.CreatedAt)
	s.workspaces[ws.ID] = ws
	s.members[memberKey{models.ScopeWorkspace, ws.ID, ws.OwnerID}] = models.Membership{
		ResourceID: ws.ID,
		UserID:     ws.OwnerID,
		Role:       models.RoleOwner,
		CreatedAt:  ws.CreatedAt,
	}
	return ws, nil
}

func (s *MemoryStore) GetWorkspace(_ context.Context, id uuid.UUID) (models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.workspaces[id]
	if !ok {
		return models.Workspace{}, apperr.NotFoundf("workspace %s not found", id)
	}
	return ws, nil
}

func (s *MemoryStore) GetWorkspaceByOwner(_ context.Context, ownerID uuid.UUID) (models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ws := range s.workspaces {
		if ws.OwnerID == ownerID {
			return ws, nil
		}
	}
	return models.Workspace{}, apperr.NotFoundf("no workspace owned by %s", ownerID)
}

func (s *MemoryStore) GetMembership(_ context.Context, scope models.MembershipScope, resourceID, userID uuid.UUID) (models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[memberKey{scope, resourceID, userID}]
	if !ok {
		return models.Membership{}, apperr.NotFoundf("no %s membership for user %s", scope, userID)
	}
	return m, nil
}

func (s *MemoryStore) UpsertMembership(_ context.Context, scope models.MembershipScope, m models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{scope, m.ResourceID, m.UserID}
	if existing, ok := s.members[key]; ok {
		m.CreatedAt = existing.CreatedAt
	}
	m.CreatedAt = orNow(m.CreatedAt)
	s.members[key] = m
	return nil
}

func (s *MemoryStore) DeleteMembership(_ context.Context, scope models.MembershipScope, resourceID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.members, memberKey{scope, resourceID, userID})
	return nil
}

func (s *MemoryStore) ListMemberships(_ context.Context, scope models.MembershipScope, resourceID uuid.UUID) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Membership{}
	for k, m := range s.members {
		if k.scope == scope && k.resourceID == resourceID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	return out, nil
}

func (s *MemoryStore) CreateProblem(_ context.Context, p models.Problem) (models.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.problems {
		if existing.WorkspaceID == p.WorkspaceID && existing.Slug == p.Slug {
			return models.Problem{}, apperr.Conflictf("problem slug %q already exists", p.Slug)
		}
	}
	p.ID = orNewID(p.ID)
	p.CreatedAt = orNow(p.CreatedAt)
	p.UpdatedAt = p.CreatedAt
	s.problems[p.ID] = p
	s.members[memberKey{models.ScopeProblem, p.ID, p.CreatedBy}] = models.Membership{
		ResourceID: p.ID,
		UserID:     p.CreatedBy,
		Role:       models.RoleOwner,
		CreatedAt:  p.CreatedAt,
	}
	return p, nil
}

func (s *MemoryStore) GetProblem(_ context.Context, id uuid.UUID) (models.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.problems[id]
	if !ok {
		return models.Problem{}, apperr.NotFoundf("problem %s not found", id)
	}
	return p, nil
}

func (s *MemoryStore) UpdateProblem(_ context.Context, p models.Problem) (models.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.problems[p.ID]
	if !ok {
		return models.Problem{}, apperr.NotFoundf("problem %s not found", p.ID)
	}
	// Moderation flags and ownership are not writable through updates.
	p.WorkspaceID = existing.WorkspaceID
	p.CreatedBy = existing.CreatedBy
	p.Slug = existing.Slug
	p.Moderation = existing.Moderation
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = orNow(p.UpdatedAt)
	s.problems[p.ID] = p
	return p, nil
}

func (s *MemoryStore) ListProblems(context.Context) ([]models.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Problem{}
	for _, p := range s.problems {
		if !p.IsDeleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) insertPromptLocked(p models.Prompt) (models.PromptWithStats, error) {
	for _, existing := range s.prompts {
		if existing.WorkspaceID == p.WorkspaceID && existing.Slug == p.Slug {
			return models.PromptWithStats{}, apperr.Conflictf("prompt slug %q already exists", p.Slug)
		}
	}
	p.ID = orNewID(p.ID)
	p.CreatedAt = orNow(p.CreatedAt)
	p.UpdatedAt = p.CreatedAt
	s.prompts[p.ID] = p
	st := s.recountLocked(p.ID)
	return models.PromptWithStats{Prompt: p, Stats: st}, nil
}

func (s *MemoryStore) CreatePrompt(_ context.Context, p models.Prompt) (models.PromptWithStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.problems[p.ProblemID]; !ok {
		return models.PromptWithStats{}, apperr.NotFoundf("problem %s not found", p.ProblemID)
	}
	return s.insertPromptLocked(p)
}

func (s *MemoryStore) CreateFork(_ context.Context, child models.Prompt, ev models.ForkEvent) (models.PromptWithStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.prompts[ev.ParentPromptID]
	if !ok || parent.IsDeleted {
		return models.PromptWithStats{}, apperr.New(apperr.NotFound, "parent_not_found", "parent prompt not found")
	}
	out, err := s.insertPromptLocked(child)
	if err != nil {
		return models.PromptWithStats{}, err
	}
	ev.ID = orNewID(ev.ID)
	ev.ChildPromptID = out.ID
	ev.CreatedAt = orNow(ev.CreatedAt)
	s.forks = append(s.forks, ev)
	s.recountLocked(parent.ID)
	return out, nil
}

func (s *MemoryStore) GetPrompt(_ context.Context, id uuid.UUID) (models.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[id]
	if !ok {
		return models.Prompt{}, apperr.NotFoundf("prompt %s not found", id)
	}
	return p, nil
}

func (s *MemoryStore) GetPromptWithStats(_ context.Context, id uuid.UUID) (models.PromptWithStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[id]
	if !ok {
		return models.PromptWithStats{}, apperr.NotFoundf("prompt %s not found", id)
	}
	return models.PromptWithStats{Prompt: p, Stats: s.stats[id]}, nil
}

func (s *MemoryStore) UpdatePrompt(_ context.Context, p models.Prompt) (models.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.prompts[p.ID]
	if !ok {
		return models.Prompt{}, apperr.NotFoundf("prompt %s not found", p.ID)
	}
	p.ProblemID = existing.ProblemID
	p.WorkspaceID = existing.WorkspaceID
	p.ParentPromptID = existing.ParentPromptID
	p.CreatedBy = existing.CreatedBy
	p.Slug = existing.Slug
	p.Moderation = existing.Moderation
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = orNow(p.UpdatedAt)
	s.prompts[p.ID] = p
	return p, nil
}

func (s *MemoryStore) SoftDeletePrompt(_ context.Context, id, actorID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.softDeletePromptLocked(id, actorID, at)
}

func (s *MemoryStore) softDeletePromptLocked(id, actorID uuid.UUID, at time.Time) error {
	p, ok := s.prompts[id]
	if !ok {
		return apperr.NotFoundf("prompt %s not found", id)
	}
	if p.IsDeleted {
		return nil
	}
	at = orNow(at)
	p.IsDeleted = true
	p.DeletedAt = &at
	p.DeletedBy = &actorID
	s.prompts[id] = p
	return nil
}

func (s *MemoryStore) SetPromptHidden(_ context.Context, id uuid.UUID, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[id]
	if !ok {
		return apperr.NotFoundf("prompt %s not found", id)
	}
	p.IsHidden = hidden
	s.prompts[id] = p
	return nil
}

func (s *MemoryStore) ListPromptsByProblem(_ context.Context, problemID uuid.UUID) ([]models.PromptWithStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.PromptWithStats{}
	for _, p := range s.prompts {
		if p.ProblemID == problemID && !p.IsDeleted {
			out = append(out, models.PromptWithStats{Prompt: p, Stats: s.stats[p.ID]})
		}
	}
	return out, nil
}

func (s *MemoryStore) ListChildren(_ context.Context, parentID uuid.UUID) ([]models.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Prompt{}
	for _, p := range s.prompts {
		if p.ParentPromptID != nil && *p.ParentPromptID == parentID && !p.IsDeleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRankablePrompts(context.Context) ([]models.PromptWithStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.PromptWithStats{}
	for _, p := range s.prompts {
		if p.Visibility != models.VisibilityPublic || !p.IsListed || p.IsHidden || p.IsDeleted {
			continue
		}
		pr, ok := s.problems[p.ProblemID]
		if !ok || pr.Visibility != models.VisibilityPublic || pr.IsHidden || pr.IsDeleted {
			continue
		}
		out = append(out, models.PromptWithStats{Prompt: p, Stats: s.stats[p.ID]})
	}
	return out, nil
}

func (s *MemoryStore) GetStats(_ context.Context, promptID uuid.UUID) (models.PromptStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stats[promptID]
	if !ok {
		return models.PromptStats{}, apperr.NotFoundf("stats for prompt %s not found", promptID)
	}
	return st, nil
}

func (s *MemoryStore) RefreshStats(_ context.Context, promptID uuid.UUID) (models.PromptStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[promptID]; !ok {
		return models.PromptStats{}, apperr.NotFoundf("prompt %s not found", promptID)
	}
	return s.recountLocked(promptID), nil
}

func (s *MemoryStore) RecordPromptEvent(_ context.Context, promptID uuid.UUID, _ *uuid.UUID, kind models.PromptEventKind, _ time.Time) (models.PromptStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[promptID]; !ok {
		return models.PromptStats{}, apperr.NotFoundf("prompt %s not found", promptID)
	}
	s.events = append(s.events, promptEvent{promptID: promptID, kind: kind})
	return s.recountLocked(promptID), nil
}

// recountLocked rebuilds the stats row for promptID from the source tables.
func (s *MemoryStore) recountLocked(promptID uuid.UUID) models.PromptStats {
	st := models.PromptStats{PromptID: promptID}
	for k, v := range s.votes {
		if k.promptID != promptID {
			continue
		}
		switch v.Value {
		case 1:
			st.Upvotes++
		case -1:
			st.Downvotes++
		}
	}
	st.Score = st.Upvotes - st.Downvotes
	for _, e := range s.events {
		if e.promptID != promptID {
			continue
		}
		switch e.kind {
		case models.PromptEventView:
			st.ViewCount++
		case models.PromptEventCopy:
			st.CopyCount++
		}
	}
	for _, f := range s.forks {
		if f.ParentPromptID == promptID {
			st.ForkCount++
		}
	}
	for _, r := range s.reviews {
		if r.PromptID != promptID {
			continue
		}
		st.ReviewsCount++
		switch r.Type {
		case models.ReviewWorked:
			st.WorksCount++
		case models.ReviewFailed:
			st.FailsCount++
		}
	}
	st.UpdatedAt = time.Now().UTC()
	s.stats[promptID] = st
	return st
}

func (s *MemoryStore) UpsertVote(_ context.Context, v models.Vote) (models.PromptStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[v.PromptID]; !ok {
		return models.PromptStats{}, apperr.NotFoundf("prompt %s not found", v.PromptID)
	}
	key := voteKey{v.PromptID, v.UserID}
	v.UpdatedAt = orNow(v.UpdatedAt)
	if existing, ok := s.votes[key]; ok {
		v.CreatedAt = existing.CreatedAt
	} else {
		v.CreatedAt = v.UpdatedAt
	}
	s.votes[key] = v
	return s.recountLocked(v.PromptID), nil
}

func (s *MemoryStore) DeleteVote(_ context.Context, promptID, userID uuid.UUID) (models.PromptStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[promptID]; !ok {
		return models.PromptStats{}, apperr.NotFoundf("prompt %s not found", promptID)
	}
	delete(s.votes, voteKey{promptID, userID})
	return s.recountLocked(promptID), nil
}

func (s *MemoryStore) GetVote(_ context.Context, promptID, userID uuid.UUID) (models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.votes[voteKey{promptID, userID}]
	if !ok {
		return models.Vote{}, apperr.NotFoundf("no vote")
	}
	return v, nil
}

func (s *MemoryStore) CreateReview(_ context.Context, r models.PromptReview) (models.PromptReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[r.PromptID]; !ok {
		return models.PromptReview{}, apperr.NotFoundf("prompt %s not found", r.PromptID)
	}
	r.ID = orNewID(r.ID)
	r.CreatedAt = orNow(r.CreatedAt)
	for _, existing := range s.reviews {
		if existing.PromptID == r.PromptID && existing.UserID == r.UserID &&
			existing.Type == r.Type && existing.Day() == r.Day() {
			return models.PromptReview{}, apperr.New(apperr.Conflict, "duplicate_review",
				fmt.Sprintf("a %s review was already submitted today", r.Type))
		}
	}
	s.reviews = append(s.reviews, r)
	s.recountLocked(r.PromptID)
	return r, nil
}

func (s *MemoryStore) ListReviews(_ context.Context, promptID uuid.UUID) ([]models.PromptReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.PromptReview{}
	for _, r := range s.reviews {
		if r.PromptID == promptID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateReport(_ context.Context, r models.Report) (models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.contentExistsLocked(r.Content); err != nil {
		return models.Report{}, err
	}
	for _, existing := range s.reports {
		if existing.Status == models.ReportPending && existing.ReporterID == r.ReporterID &&
			existing.Content == r.Content {
			return models.Report{}, apperr.New(apperr.Conflict, "duplicate_report", "you already reported this content")
		}
	}
	r.ID = orNewID(r.ID)
	r.CreatedAt = orNow(r.CreatedAt)
	r.Status = models.ReportPending
	s.reports[r.ID] = r
	s.refreshReportFlagsLocked(r.Content)
	return r, nil
}

func (s *MemoryStore) GetReport(_ context.Context, id uuid.UUID) (models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return models.Report{}, apperr.NotFoundf("report %s not found", id)
	}
	return r, nil
}

func (s *MemoryStore) ListReports(_ context.Context, status models.ReportStatus) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Report{}
	for _, r := range s.reports {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ResolveReport(_ context.Context, p ResolveReportParams) (models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[p.ReportID]
	if !ok {
		return models.Report{}, apperr.NotFoundf("report %s not found", p.ReportID)
	}
	if r.Status != models.ReportPending {
		return models.Report{}, apperr.New(apperr.Conflict, "report_already_reviewed", "report was already reviewed")
	}
	at := orNow(p.At)
	reviewer := p.ReviewerID
	r.Status = p.Status
	r.ReviewedBy = &reviewer
	r.ReviewedAt = &at

	if p.DeleteContent {
		switch ref := r.Content.(type) {
		case models.PromptRef:
			if err := s.softDeletePromptLocked(ref.ID, reviewer, at); err != nil {
				return models.Report{}, err
			}
		case models.ProblemRef:
			pr, ok := s.problems[ref.ID]
			if !ok {
				return models.Report{}, apperr.NotFoundf("problem %s not found", ref.ID)
			}
			if !pr.IsDeleted {
				pr.IsDeleted = true
				pr.DeletedAt = &at
				pr.DeletedBy = &reviewer
				s.problems[ref.ID] = pr
			}
		}
	}
	s.reports[r.ID] = r
	s.refreshReportFlagsLocked(r.Content)
	if p.Audit.Action != "" {
		s.appendAuditLocked(p.Audit)
	}
	return r, nil
}

func (s *MemoryStore) contentExistsLocked(ref models.ContentRef) error {
	switch ref := ref.(type) {
	case models.PromptRef:
		if p, ok := s.prompts[ref.ID]; !ok || p.IsDeleted {
			return apperr.NotFoundf("prompt %s not found", ref.ID)
		}
	case models.ProblemRef:
		if p, ok := s.problems[ref.ID]; !ok || p.IsDeleted {
			return apperr.NotFoundf("problem %s not found", ref.ID)
		}
	default:
		return apperr.Validationf("unknown content reference")
	}
	return nil
}

// refreshReportFlagsLocked sets report_count to the number of reports on the
// content and is_reported to whether any of them is still pending.
func (s *MemoryStore) refreshReportFlagsLocked(ref models.ContentRef) {
	count, pending := 0, false
	for _, r := range s.reports {
		if r.Content != ref {
			continue
		}
		count++
		if r.Status == models.ReportPending {
			pending = true
		}
	}
	switch ref := ref.(type) {
	case models.PromptRef:
		if p, ok := s.prompts[ref.ID]; ok {
			p.ReportCount, p.IsReported = count, pending
			s.prompts[ref.ID] = p
		}
	case models.ProblemRef:
		if p, ok := s.problems[ref.ID]; ok {
			p.ReportCount, p.IsReported = count, pending
			s.problems[ref.ID] = p
		}
	}
}

func (s *MemoryStore) InsertAuditLog(_ context.Context, l models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendAuditLocked(l)
	return nil
}

func (s *MemoryStore) appendAuditLocked(l models.AuditLog) {
	l.ID = orNewID(l.ID)
	l.CreatedAt = orNow(l.CreatedAt)
	s.auditLogs = append(s.auditLogs, l)
}

func (s *MemoryStore) ListAuditLogs(_ context.Context, q AuditQuery) ([]models.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.AuditLog{}
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		l := s.auditLogs[i]
		if q.Action != "" && l.Action != q.Action {
			continue
		}
		out = append(out, l)
	}
	offset := max(q.Offset, 0)
	if offset >= len(out) {
		return []models.AuditLog{}, nil
	}
	out = out[offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
