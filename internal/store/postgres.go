package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/models"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	return hasCode(err, uniqueViolation)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// wrapErr maps driver errors onto apperr kinds and wraps everything else with
// the failing operation.
func wrapErr(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return &apperr.Error{Kind: apperr.NotFound, Code: "not_found", Message: op + ": not found", Err: err}
	case isUniqueViolation(err):
		return &apperr.Error{Kind: apperr.Conflict, Code: "conflict", Message: op + ": already exists", Err: err}
	case hasCode(err, foreignKeyViolation):
		// the referenced row is gone, e.g. an event for a purged prompt
		return &apperr.Error{Kind: apperr.NotFound, Code: "not_found", Message: op + ": referenced row not found", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if u.Role == "" {
		u.Role = models.PlatformRoleUser
	}
	var username *string
	if u.Username != "" {
		username = &u.Username
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO users (id, email, username, role)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4)
		 RETURNING id, created_at`,
		nullID(u.ID), u.Email, username, u.Role,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return models.User{}, wrapErr("insert user", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	var u models.User
	var username *string
	err := s.db.QueryRow(ctx,
		"SELECT id, email, username, role, created_at FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.Email, &username, &u.Role, &u.CreatedAt)
	if err != nil {
		return models.User{}, wrapErr("get user", err)
	}
	if username != nil {
		u.Username = *username
	}
	return u, nil
}

func nullID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func (s *PostgresStore) CreateWorkspace(ctx context.Context, ws models.Workspace) (models.Workspace, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO workspaces (id, owner_id, name, slug)
			 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4)
			 RETURNING id, created_at`,
			nullID(ws.ID), ws.OwnerID, ws.Name, ws.Slug,
		).Scan(&ws.ID, &ws.CreatedAt)
		if err != nil {
			return wrapErr("insert workspace", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO workspace_members (workspace_id, user_id, role) VALUES ($1, $2, 'owner')`,
			ws.ID, ws.OwnerID,
		)
		if err != nil {
			return wrapErr("insert workspace owner", err)
		}
		return nil
	})
	if err != nil {
		return models.Workspace{}, err
	}
	return ws, nil
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, id uuid.UUID) (models.Workspace, error) {
	var ws models.Workspace
	err := s.db.QueryRow(ctx,
		"SELECT id, owner_id, name, slug, created_at FROM workspaces WHERE id = $1", id,
	).Scan(&ws.ID, &ws.OwnerID, &ws.Name, &ws.Slug, &ws.CreatedAt)
	if err != nil {
		return models.Workspace{}, wrapErr("get workspace", err)
	}
	return ws, nil
}

func (s *PostgresStore) GetWorkspaceByOwner(ctx context.Context, ownerID uuid.UUID) (models.Workspace, error) {
	var ws models.Workspace
	err := s.db.QueryRow(ctx,
		"SELECT id, owner_id, name, slug, created_at FROM workspaces WHERE owner_id = $1", ownerID,
	).Scan(&ws.ID, &ws.OwnerID, &ws.Name, &ws.Slug, &ws.CreatedAt)
	if err != nil {
		return models.Workspace{}, wrapErr("get workspace by owner", err)
	}
	return ws, nil
}

// membershipTable returns the table and resource column for a scope.
func membershipTable(scope models.MembershipScope) (string, string) {
	if scope == models.ScopeProblem {
		return "problem_members", "problem_id"
	}
	return "workspace_members", "workspace_id"
}

func (s *PostgresStore) GetMembership(ctx context.Context, scope models.MembershipScope, resourceID, userID uuid.UUID) (models.Membership, error) {
	table, col := membershipTable(scope)
	var m models.Membership
	err := s.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s, user_id, role, created_at FROM %s WHERE %s = $1 AND user_id = $2", col, table, col),
		resourceID, userID,
	).Scan(&m.ResourceID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		return models.Membership{}, wrapErr("get membership", err)
	}
	return m, nil
}

func (s *PostgresStore) UpsertMembership(ctx context.Context, scope models.MembershipScope, m models.Membership) error {
	table, col := membershipTable(scope)
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, user_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (%s, user_id) DO UPDATE SET role = EXCLUDED.role`, table, col, col),
		m.ResourceID, m.UserID, m.Role,
	)
	if err != nil {
		return wrapErr("upsert membership", err)
	}
	return nil
}

func (s *PostgresStore) DeleteMembership(ctx context.Context, scope models.MembershipScope, resourceID, userID uuid.UUID) error {
	table, col := membershipTable(scope)
	_, err := s.db.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = $1 AND user_id = $2", table, col),
		resourceID, userID,
	)
	if err != nil {
		return wrapErr("delete membership", err)
	}
	return nil
}

func (s *PostgresStore) ListMemberships(ctx context.Context, scope models.MembershipScope, resourceID uuid.UUID) ([]models.Membership, error) {
	table, col := membershipTable(scope)
	rows, err := s.db.Query(ctx,
		fmt.Sprintf("SELECT %s, user_id, role, created_at FROM %s WHERE %s = $1 ORDER BY created_at, user_id", col, table, col),
		resourceID,
	)
	if err != nil {
		return nil, wrapErr("list memberships", err)
	}
	defer rows.Close()

	members := []models.Membership{}
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.ResourceID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

const problemColumns = `id, workspace_id, created_by, slug, title, description, goal, inputs, constraints,
	success_criteria, tags, industry, visibility, is_hidden, is_reported, report_count, is_deleted,
	deleted_at, deleted_by, created_at, updated_at`

func scanProblem(row scanner) (models.Problem, error) {
	var p models.Problem
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.CreatedBy, &p.Slug, &p.Title, &p.Description, &p.Goal,
		&p.Inputs, &p.Constraints, &p.SuccessCriteria, &p.Tags, &p.Industry, &p.Visibility,
		&p.IsHidden, &p.IsReported, &p.ReportCount, &p.IsDeleted, &p.DeletedAt, &p.DeletedBy,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *PostgresStore) CreateProblem(ctx context.Context, p models.Problem) (models.Problem, error) {
	var out models.Problem
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO problems (id, workspace_id, created_by, slug, title, description, goal, inputs,
			   constraints, success_criteria, tags, industry, visibility, created_at, updated_at)
			 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
			 RETURNING `+problemColumns,
			nullID(p.ID), p.WorkspaceID, p.CreatedBy, p.Slug, p.Title, p.Description, p.Goal,
			nonNil(p.Inputs), nonNil(p.Constraints), nonNil(p.SuccessCriteria), nonNil(p.Tags),
			p.Industry, p.Visibility, orNow(p.CreatedAt),
		)
		var err error
		out, err = scanProblem(row)
		if err != nil {
			return wrapErr("insert problem", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO problem_members (problem_id, user_id, role) VALUES ($1, $2, 'owner')`,
			out.ID, out.CreatedBy,
		)
		if err != nil {
			return wrapErr("insert problem owner", err)
		}
		return nil
	})
	if err != nil {
		return models.Problem{}, err
	}
	return out, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func (s *PostgresStore) GetProblem(ctx context.Context, id uuid.UUID) (models.Problem, error) {
	p, err := scanProblem(s.db.QueryRow(ctx, "SELECT "+problemColumns+" FROM problems WHERE id = $1", id))
	if err != nil {
		return models.Problem{}, wrapErr("get problem", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdateProblem(ctx context.Context, p models.Problem) (models.Problem, error) {
	out, err := scanProblem(s.db.QueryRow(ctx,
		`UPDATE problems SET title = $2, description = $3, goal = $4, inputs = $5, constraints = $6,
		   success_criteria = $7, tags = $8, industry = $9, visibility = $10, updated_at = $11
		 WHERE id = $1
		 RETURNING `+problemColumns,
		p.ID, p.Title, p.Description, p.Goal, nonNil(p.Inputs), nonNil(p.Constraints),
		nonNil(p.SuccessCriteria), nonNil(p.Tags), p.Industry, p.Visibility, orNow(p.UpdatedAt),
	))
	if err != nil {
		return models.Problem{}, wrapErr("update problem", err)
	}
	return out, nil
}

func (s *PostgresStore) ListProblems(ctx context.Context) ([]models.Problem, error) {
	rows, err := s.db.Query(ctx, "SELECT "+problemColumns+" FROM problems WHERE NOT is_deleted")
	if err != nil {
		return nil, wrapErr("list problems", err)
	}
	defer rows.Close()

	problems := []models.Problem{}
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}

const promptColumns = `p.id, p.problem_id, p.workspace_id, p.parent_prompt_id, p.created_by, p.slug, p.title,
	p.system_prompt, p.user_template, p.model, p.params, p.example_input, p.example_output, p.notes,
	p.improvement_summary, p.status, p.visibility, p.is_listed, p.is_hidden, p.is_reported,
	p.report_count, p.is_deleted, p.deleted_at, p.deleted_by, p.created_at, p.updated_at`

const statsColumns = `s.prompt_id, s.upvotes, s.downvotes, s.score, s.copy_count, s.view_count,
	s.fork_count, s.works_count, s.fails_count, s.reviews_count, s.updated_at`

func promptDest(p *models.Prompt) []any {
	return []any{&p.ID, &p.ProblemID, &p.WorkspaceID, &p.ParentPromptID, &p.CreatedBy, &p.Slug, &p.Title,
		&p.SystemPrompt, &p.UserTemplate, &p.Model, &p.Params, &p.ExampleInput, &p.ExampleOutput, &p.Notes,
		&p.ImprovementSummary, &p.Status, &p.Visibility, &p.IsListed, &p.IsHidden, &p.IsReported,
		&p.ReportCount, &p.IsDeleted, &p.DeletedAt, &p.DeletedBy, &p.CreatedAt, &p.UpdatedAt}
}

func statsDest(st *models.PromptStats) []any {
	return []any{&st.PromptID, &st.Upvotes, &st.Downvotes, &st.Score, &st.CopyCount, &st.ViewCount,
		&st.ForkCount, &st.WorksCount, &st.FailsCount, &st.ReviewsCount, &st.UpdatedAt}
}

func scanPrompt(row scanner) (models.Prompt, error) {
	var p models.Prompt
	err := row.Scan(promptDest(&p)...)
	return p, err
}

func scanPromptWithStats(row scanner) (models.PromptWithStats, error) {
	var out models.PromptWithStats
	err := row.Scan(append(promptDest(&out.Prompt), statsDest(&out.Stats)...)...)
	return out, err
}

// insertPrompt writes the prompt row with an explicit column list. Moderation
// columns are never part of it and take their defaults.
func insertPrompt(ctx context.Context, tx pgx.Tx, p models.Prompt) (models.Prompt, error) {
	params := p.Params
	if len(params) == 0 {
		params = []byte("{}")
	}
	out, err := scanPrompt(tx.QueryRow(ctx,
		`INSERT INTO prompts AS p (id, problem_id, workspace_id, parent_prompt_id, created_by, slug, title,
		   system_prompt, user_template, model, params, example_input, example_output, notes,
		   improvement_summary, status, visibility, is_listed, created_at, updated_at)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		   $15, $16, $17, $18, $19, $19)
		 RETURNING `+promptColumns,
		nullID(p.ID), p.ProblemID, p.WorkspaceID, p.ParentPromptID, p.CreatedBy, p.Slug, p.Title,
		p.SystemPrompt, p.UserTemplate, p.Model, params, p.ExampleInput, p.ExampleOutput, p.Notes,
		p.ImprovementSummary, p.Status, p.Visibility, p.IsListed, orNow(p.CreatedAt),
	))
	if err != nil {
		return models.Prompt{}, wrapErr("insert prompt", err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO prompt_stats (prompt_id) VALUES ($1)", out.ID); err != nil {
		return models.Prompt{}, wrapErr("insert prompt stats", err)
	}
	return out, nil
}

// recount locks the stats row and then rebuilds it from the source tables.
// The lock is taken in its own statement so the aggregate below reads a
// snapshot that includes every writer that held the lock before us.
func recount(ctx context.Context, tx pgx.Tx, promptID uuid.UUID) (models.PromptStats, error) {
	var locked uuid.UUID
	err := tx.QueryRow(ctx, "SELECT prompt_id FROM prompt_stats WHERE prompt_id = $1 FOR UPDATE", promptID).Scan(&locked)
	if err != nil {
		return models.PromptStats{}, wrapErr("lock prompt stats", err)
	}

	var st models.PromptStats
	err = tx.QueryRow(ctx, `
		WITH v AS (
			SELECT COUNT(*) FILTER (WHERE value = 1) AS up, COUNT(*) FILTER (WHERE value = -1) AS down
			FROM votes WHERE prompt_id = $1
		), e AS (
			SELECT COUNT(*) FILTER (WHERE kind = 'view') AS views, COUNT(*) FILTER (WHERE kind = 'copy') AS copies
			FROM prompt_events WHERE prompt_id = $1
		), f AS (
			SELECT COUNT(*) AS forks FROM prompt_forks WHERE parent_prompt_id = $1
		), r AS (
			SELECT COUNT(*) FILTER (WHERE review_type = 'worked') AS works,
			       COUNT(*) FILTER (WHERE review_type = 'failed') AS fails,
			       COUNT(*) AS reviews
			FROM prompt_reviews WHERE prompt_id = $1
		)
		UPDATE prompt_stats s SET
			upvotes = v.up, downvotes = v.down, score = v.up - v.down,
			view_count = e.views, copy_count = e.copies, fork_count = f.forks,
			works_count = r.works, fails_count = r.fails, reviews_count = r.reviews,
			updated_at = now()
		FROM v, e, f, r
		WHERE s.prompt_id = $1
		RETURNING `+statsColumns, promptID,
	).Scan(statsDest(&st)...)
	if err != nil {
		return models.PromptStats{}, wrapErr("recount prompt stats", err)
	}
	return st, nil
}

func (s *PostgresStore) CreatePrompt(ctx context.Context, p models.Prompt) (models.PromptWithStats, error) {
	var out models.PromptWithStats
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		created, err := insertPrompt(ctx, tx, p)
		if err != nil {
			return err
		}
		st, err := recount(ctx, tx, created.ID)
		if err != nil {
			return err
		}
		out = models.PromptWithStats{Prompt: created, Stats: st}
		return nil
	})
	return out, err
}

func (s *PostgresStore) CreateFork(ctx context.Context, child models.Prompt, ev models.ForkEvent) (models.PromptWithStats, error) {
	var out models.PromptWithStats
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var deleted bool
		err := tx.QueryRow(ctx, "SELECT is_deleted FROM prompts WHERE id = $1 FOR UPDATE", ev.ParentPromptID).Scan(&deleted)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && deleted) {
			return apperr.New(apperr.NotFound, "parent_not_found", "parent prompt not found")
		}
		if err != nil {
			return wrapErr("lock parent prompt", err)
		}

		created, err := insertPrompt(ctx, tx, child)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO prompt_forks (id, parent_prompt_id, child_prompt_id, forked_by, fork_reason, changes_summary, created_at)
			 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7)`,
			nullID(ev.ID), ev.ParentPromptID, created.ID, ev.ForkedBy, ev.ForkReason, ev.ChangesSummary, orNow(ev.CreatedAt),
		)
		if err != nil {
			return wrapErr("insert fork event", err)
		}
		st, err := recount(ctx, tx, created.ID)
		if err != nil {
			return err
		}
		if _, err := recount(ctx, tx, ev.ParentPromptID); err != nil {
			return err
		}
		out = models.PromptWithStats{Prompt: created, Stats: st}
		return nil
	})
	return out, err
}

func (s *PostgresStore) GetPrompt(ctx context.Context, id uuid.UUID) (models.Prompt, error) {
	p, err := scanPrompt(s.db.QueryRow(ctx, "SELECT "+promptColumns+" FROM prompts p WHERE p.id = $1", id))
	if err != nil {
		return models.Prompt{}, wrapErr("get prompt", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPromptWithStats(ctx context.Context, id uuid.UUID) (models.PromptWithStats, error) {
	out, err := scanPromptWithStats(s.db.QueryRow(ctx,
		"SELECT "+promptColumns+", "+statsColumns+" FROM prompts p JOIN prompt_stats s ON s.prompt_id = p.id WHERE p.id = $1", id,
	))
	if err != nil {
		return models.PromptWithStats{}, wrapErr("get prompt", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdatePrompt(ctx context.Context, p models.Prompt) (models.Prompt, error) {
	params := p.Params
	if len(params) == 0 {
		params = []byte("{}")
	}
	out, err := scanPrompt(s.db.QueryRow(ctx,
		`UPDATE prompts AS p SET title = $2, system_prompt = $3, user_template = $4, model = $5, params = $6,
		   example_input = $7, example_output = $8, notes = $9, status = $10, visibility = $11,
		   is_listed = $12, updated_at = $13
		 WHERE p.id = $1
		 RETURNING `+promptColumns,
		p.ID, p.Title, p.SystemPrompt, p.UserTemplate, p.Model, params, p.ExampleInput, p.ExampleOutput,
		p.Notes, p.Status, p.Visibility, p.IsListed, orNow(p.UpdatedAt),
	))
	if err != nil {
		return models.Prompt{}, wrapErr("update prompt", err)
	}
	return out, nil
}

func (s *PostgresStore) SoftDeletePrompt(ctx context.Context, id, actorID uuid.UUID, at time.Time) error {
	return softDeletePrompt(ctx, s.db, id, actorID, at)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func softDeletePrompt(ctx context.Context, db execer, id, actorID uuid.UUID, at time.Time) error {
	tag, err := db.Exec(ctx,
		`UPDATE prompts SET is_deleted = true, deleted_at = COALESCE(deleted_at, $2), deleted_by = COALESCE(deleted_by, $3)
		 WHERE id = $1`,
		id, orNow(at), actorID,
	)
	if err != nil {
		return wrapErr("soft delete prompt", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("prompt %s not found", id)
	}
	return nil
}

func softDeleteProblem(ctx context.Context, db execer, id, actorID uuid.UUID, at time.Time) error {
	tag, err := db.Exec(ctx,
		`UPDATE problems SET is_deleted = true, deleted_at = COALESCE(deleted_at, $2), deleted_by = COALESCE(deleted_by, $3)
		 WHERE id = $1`,
		id, orNow(at), actorID,
	)
	if err != nil {
		return wrapErr("soft delete problem", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("problem %s not found", id)
	}
	return nil
}

func (s *PostgresStore) SetPromptHidden(ctx context.Context, id uuid.UUID, hidden bool) error {
	tag, err := s.db.Exec(ctx, "UPDATE prompts SET is_hidden = $2 WHERE id = $1", id, hidden)
	if err != nil {
		return wrapErr("set prompt hidden", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("prompt %s not found", id)
	}
	return nil
}

func (s *PostgresStore) listPromptsWithStats(ctx context.Context, op, where string, args ...any) ([]models.PromptWithStats, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+promptColumns+", "+statsColumns+
			" FROM prompts p JOIN prompt_stats s ON s.prompt_id = p.id "+where, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	prompts := []models.PromptWithStats{}
	for rows.Next() {
		p, err := scanPromptWithStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

func (s *PostgresStore) ListPromptsByProblem(ctx context.Context, problemID uuid.UUID) ([]models.PromptWithStats, error) {
	return s.listPromptsWithStats(ctx, "list prompts by problem",
		"WHERE p.problem_id = $1 AND NOT p.is_deleted", problemID)
}

func (s *PostgresStore) ListRankablePrompts(ctx context.Context) ([]models.PromptWithStats, error) {
	return s.listPromptsWithStats(ctx, "list rankable prompts", `
		JOIN problems pr ON pr.id = p.problem_id
		WHERE p.visibility = 'public' AND p.is_listed AND NOT p.is_hidden AND NOT p.is_deleted
		  AND pr.visibility = 'public' AND NOT pr.is_hidden AND NOT pr.is_deleted`)
}

func (s *PostgresStore) ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.Prompt, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+promptColumns+" FROM prompts p WHERE p.parent_prompt_id = $1 AND NOT p.is_deleted", parentID)
	if err != nil {
		return nil, wrapErr("list children", err)
	}
	defer rows.Close()

	children := []models.Prompt{}
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		children = append(children, p)
	}
	return children, rows.Err()
}

func (s *PostgresStore) GetStats(ctx context.Context, promptID uuid.UUID) (models.PromptStats, error) {
	var st models.PromptStats
	err := s.db.QueryRow(ctx, "SELECT "+statsColumns+" FROM prompt_stats s WHERE s.prompt_id = $1", promptID).Scan(statsDest(&st)...)
	if err != nil {
		return models.PromptStats{}, wrapErr("get prompt stats", err)
	}
	return st, nil
}

func (s *PostgresStore) RefreshStats(ctx context.Context, promptID uuid.UUID) (models.PromptStats, error) {
	var st models.PromptStats
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		st, err = recount(ctx, tx, promptID)
		return err
	})
	return st, err
}

func (s *PostgresStore) RecordPromptEvent(ctx context.Context, promptID uuid.UUID, userID *uuid.UUID, kind models.PromptEventKind, at time.Time) (models.PromptStats, error) {
	var st models.PromptStats
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			"INSERT INTO prompt_events (prompt_id, user_id, kind, created_at) VALUES ($1, $2, $3, $4)",
			promptID, userID, kind, orNow(at),
		)
		if err != nil {
			return wrapErr("insert prompt event", err)
		}
		st, err = recount(ctx, tx, promptID)
		return err
	})
	return st, err
}

func (s *PostgresStore) UpsertVote(ctx context.Context, v models.Vote) (models.PromptStats, error) {
	var st models.PromptStats
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, "SELECT prompt_id FROM prompt_stats WHERE prompt_id = $1 FOR UPDATE", v.PromptID).Scan(&locked)
		if err != nil {
			return wrapErr("lock prompt stats", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO votes (prompt_id, user_id, value, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)
			 ON CONFLICT (prompt_id, user_id) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			v.PromptID, v.UserID, v.Value, orNow(v.UpdatedAt),
		)
		if err != nil {
			return wrapErr("upsert vote", err)
		}
		st, err = recount(ctx, tx, v.PromptID)
		return err
	})
	return st, err
}

func (s *PostgresStore) DeleteVote(ctx context.Context, promptID, userID uuid.UUID) (models.PromptStats, error) {
	var st models.PromptStats
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, "SELECT prompt_id FROM prompt_stats WHERE prompt_id = $1 FOR UPDATE", promptID).Scan(&locked)
		if err != nil {
			return wrapErr("lock prompt stats", err)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM votes WHERE prompt_id = $1 AND user_id = $2", promptID, userID); err != nil {
			return wrapErr("delete vote", err)
		}
		st, err = recount(ctx, tx, promptID)
		return err
	})
	return st, err
}

func (s *PostgresStore) GetVote(ctx context.Context, promptID, userID uuid.UUID) (models.Vote, error) {
	var v models.Vote
	err := s.db.QueryRow(ctx,
		"SELECT prompt_id, user_id, value, created_at, updated_at FROM votes WHERE prompt_id = $1 AND user_id = $2",
		promptID, userID,
	).Scan(&v.PromptID, &v.UserID, &v.Value, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return models.Vote{}, wrapErr("get vote", err)
	}
	return v, nil
}

func (s *PostgresStore) CreateReview(ctx context.Context, r models.PromptReview) (models.PromptReview, error) {
	r.CreatedAt = orNow(r.CreatedAt)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO prompt_reviews (id, prompt_id, user_id, review_type, reason, comment, review_day, created_at)
			 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id`,
			nullID(r.ID), r.PromptID, r.UserID, r.Type, r.Reason, r.Comment, r.Day(), r.CreatedAt,
		).Scan(&r.ID)
		if isUniqueViolation(err) {
			return &apperr.Error{Kind: apperr.Conflict, Code: "duplicate_review",
				Message: fmt.Sprintf("a %s review was already submitted today", r.Type), Err: err}
		}
		if err != nil {
			return wrapErr("insert review", err)
		}
		_, err = recount(ctx, tx, r.PromptID)
		return err
	})
	if err != nil {
		return models.PromptReview{}, err
	}
	return r, nil
}

func (s *PostgresStore) ListReviews(ctx context.Context, promptID uuid.UUID) ([]models.PromptReview, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, prompt_id, user_id, review_type, reason, comment, created_at
		 FROM prompt_reviews WHERE prompt_id = $1 ORDER BY created_at DESC`, promptID)
	if err != nil {
		return nil, wrapErr("list reviews", err)
	}
	defer rows.Close()

	reviews := []models.PromptReview{}
	for rows.Next() {
		var r models.PromptReview
		if err := rows.Scan(&r.ID, &r.PromptID, &r.UserID, &r.Type, &r.Reason, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

const reportColumns = "id, content_type, content_id, reporter_id, reason, details, status, reviewed_by, reviewed_at, created_at"

func scanReport(row scanner) (models.Report, error) {
	var r models.Report
	var contentType string
	var contentID uuid.UUID
	err := row.Scan(&r.ID, &contentType, &contentID, &r.ReporterID, &r.Reason, &r.Details, &r.Status,
		&r.ReviewedBy, &r.ReviewedAt, &r.CreatedAt)
	if err != nil {
		return models.Report{}, err
	}
	r.Content, err = models.ParseContentRef(contentType, contentID)
	return r, err
}

// refreshReportFlags recomputes report_count and is_reported on the content.
func refreshReportFlags(ctx context.Context, tx pgx.Tx, ref models.ContentRef) error {
	var table string
	switch ref.(type) {
	case models.PromptRef:
		table = "prompts"
	case models.ProblemRef:
		table = "problems"
	default:
		return apperr.Validationf("unknown content reference")
	}
	tag, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET
			report_count = (SELECT COUNT(*) FROM reports WHERE content_type = $2 AND content_id = $1),
			is_reported = EXISTS (SELECT 1 FROM reports WHERE content_type = $2 AND content_id = $1 AND status = 'pending')
		WHERE id = $1`, table),
		ref.ContentID(), ref.ContentType(),
	)
	if err != nil {
		return wrapErr("refresh report flags", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("%s %s not found", ref.ContentType(), ref.ContentID())
	}
	return nil
}

func (s *PostgresStore) CreateReport(ctx context.Context, r models.Report) (models.Report, error) {
	var out models.Report
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var table string
		switch r.Content.(type) {
		case models.PromptRef:
			table = "prompts"
		case models.ProblemRef:
			table = "problems"
		default:
			return apperr.Validationf("unknown content reference")
		}
		var exists bool
		err := tx.QueryRow(ctx,
			fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1 AND NOT is_deleted)", table),
			r.Content.ContentID(),
		).Scan(&exists)
		if err != nil {
			return wrapErr("check reported content", err)
		}
		if !exists {
			return apperr.NotFoundf("%s %s not found", r.Content.ContentType(), r.Content.ContentID())
		}

		out, err = scanReport(tx.QueryRow(ctx,
			`INSERT INTO reports (id, content_type, content_id, reporter_id, reason, details, status, created_at)
			 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, 'pending', $7)
			 RETURNING `+reportColumns,
			nullID(r.ID), r.Content.ContentType(), r.Content.ContentID(), r.ReporterID, r.Reason, r.Details, orNow(r.CreatedAt),
		))
		if isUniqueViolation(err) {
			return &apperr.Error{Kind: apperr.Conflict, Code: "duplicate_report", Message: "you already reported this content", Err: err}
		}
		if err != nil {
			return wrapErr("insert report", err)
		}
		return refreshReportFlags(ctx, tx, out.Content)
	})
	if err != nil {
		return models.Report{}, err
	}
	return out, nil
}

func (s *PostgresStore) GetReport(ctx context.Context, id uuid.UUID) (models.Report, error) {
	r, err := scanReport(s.db.QueryRow(ctx, "SELECT "+reportColumns+" FROM reports WHERE id = $1", id))
	if err != nil {
		return models.Report{}, wrapErr("get report", err)
	}
	return r, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, status models.ReportStatus) ([]models.Report, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+reportColumns+" FROM reports WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC",
		string(status),
	)
	if err != nil {
		return nil, wrapErr("list reports", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *PostgresStore) ResolveReport(ctx context.Context, p ResolveReportParams) (models.Report, error) {
	var out models.Report
	at := orNow(p.At)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		current, err := scanReport(tx.QueryRow(ctx, "SELECT "+reportColumns+" FROM reports WHERE id = $1 FOR UPDATE", p.ReportID))
		if err != nil {
			return wrapErr("get report", err)
		}
		if current.Status != models.ReportPending {
			return apperr.New(apperr.Conflict, "report_already_reviewed", "report was already reviewed")
		}

		out, err = scanReport(tx.QueryRow(ctx,
			`UPDATE reports SET status = $2, reviewed_by = $3, reviewed_at = $4 WHERE id = $1
			 RETURNING `+reportColumns,
			p.ReportID, p.Status, p.ReviewerID, at,
		))
		if err != nil {
			return wrapErr("update report", err)
		}

		if p.DeleteContent {
			switch ref := out.Content.(type) {
			case models.PromptRef:
				err = softDeletePrompt(ctx, tx, ref.ID, p.ReviewerID, at)
			case models.ProblemRef:
				err = softDeleteProblem(ctx, tx, ref.ID, p.ReviewerID, at)
			}
			if err != nil {
				return err
			}
		}
		if err := refreshReportFlags(ctx, tx, out.Content); err != nil {
			return err
		}
		if p.Audit.Action != "" {
			return insertAuditLog(ctx, tx, p.Audit)
		}
		return nil
	})
	if err != nil {
		return models.Report{}, err
	}
	return out, nil
}

func (s *PostgresStore) InsertAuditLog(ctx context.Context, l models.AuditLog) error {
	return insertAuditLog(ctx, s.db, l)
}

func insertAuditLog(ctx context.Context, db execer, l models.AuditLog) error {
	details := l.Details
	if len(details) == 0 {
		details = []byte("{}")
	}
	_, err := db.Exec(ctx,
		`INSERT INTO audit_logs (user_id, action, resource_type, resource_id, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		l.UserID, l.Action, l.ResourceType, l.ResourceID, details, orNow(l.CreatedAt),
	)
	if err != nil {
		return wrapErr("insert audit log", err)
	}
	return nil
}

func (s *PostgresStore) ListAuditLogs(ctx context.Context, q AuditQuery) ([]models.AuditLog, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, action, resource_type, resource_id, details, created_at
		 FROM audit_logs WHERE ($1 = '' OR action = $1)
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		q.Action, q.Limit, q.Offset,
	)
	if err != nil {
		return nil, wrapErr("query audit logs", err)
	}
	defer rows.Close()

	logs := []models.AuditLog{}
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.ResourceType, &l.ResourceID, &l.Details, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
