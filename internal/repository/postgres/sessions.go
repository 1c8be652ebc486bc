package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arklim/student-platform-auth/internal/core/domain"
	"github.com/arklim/student-platform-auth/internal/core/port"
	"github.com/arklim/student-platform-auth/internal/repository"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var sessionColumns = []string{
	"id",
	"user_id",
	"ip_address",
	"user_agent",
	"device_type",
	"login_method",
	"is_active",
	"created_at",
	"last_activity",
	"location",
}

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a session record.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	sql, args, err := r.builder.Insert("auth.sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.IPAddress,
			session.UserAgent,
			session.DeviceType,
			session.LoginMethod,
			session.IsActive,
			session.CreatedAt,
			session.LastActivity,
			session.Location,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetByID returns a session by identifier.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	sql, args, err := r.builder.
		Select(sessionColumns...).
		From("auth.sessions").
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	session, err := scanSession(r.exec.QueryRow(ctx, sql, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return session, nil
}

// ListActiveByUser returns the user's live sessions ordered newest activity first.
// Sessions idle past the horizon are filtered out rather than relying on the
// cleanup sweep having already removed them.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string, reference time.Time) ([]domain.Session, error) {
	horizon := reference.Add(-domain.SessionIdleHorizon)

	sql, args, err := r.builder.
		Select(sessionColumns...).
		From("auth.sessions").
		Where(squirrel.Eq{"user_id": userID, "is_active": true}).
		Where(squirrel.Gt{"last_activity": horizon}).
		OrderBy("last_activity DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// Touch updates the session's last activity timestamp.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	sql, args, err := r.builder.Update("auth.sessions").
		Set("last_activity", at).
		Where(squirrel.Eq{"id": sessionID, "is_active": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Deactivate marks a single session inactive.
func (r *SessionRepository) Deactivate(ctx context.Context, sessionID string) error {
	sql, args, err := r.builder.Update("auth.sessions").
		Set("is_active", false).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build deactivate session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeactivateAllForUser marks every active session of a user inactive, except
// the given session ID when non-empty. Returns the number of sessions affected.
func (r *SessionRepository) DeactivateAllForUser(ctx context.Context, userID string, except string) (int, error) {
	query := r.builder.Update("auth.sessions").
		Set("is_active", false).
		Where(squirrel.Eq{"user_id": userID, "is_active": true})
	if except != "" {
		query = query.Where(squirrel.NotEq{"id": except})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build deactivate sessions sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivate sessions for user: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// DeleteIdleBefore removes sessions whose last activity predates the horizon.
func (r *SessionRepository) DeleteIdleBefore(ctx context.Context, horizon time.Time) (int, error) {
	sql, args, err := r.builder.Delete("auth.sessions").
		Where(squirrel.Lt{"last_activity": horizon}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete idle sessions sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var session domain.Session
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.IPAddress,
		&session.UserAgent,
		&session.DeviceType,
		&session.LoginMethod,
		&session.IsActive,
		&session.CreatedAt,
		&session.LastActivity,
		&session.Location,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
