package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/yakoovad/squad-roster/internal/db"
)

type Session struct {
	ID                   string     `db:"id"`
	Name                 string     `db:"name"`
	MaxParticipants      int        `db:"max_participants"`
	TeamCount            int        `db:"team_count"`
	TeamNames            []string   `db:"team_names"`
	RegistrationDeadline *time.Time `db:"registration_deadline"`
	CreatedBy            string     `db:"created_by"`
}

// SessionRepository is the read side of the session directory plus the co-editor set.
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (*Session, error)
	// Lock reads the session and holds a row lock until the surrounding transaction ends.
	Lock(ctx context.Context, sessionID string) (*Session, error)
	ListEditors(ctx context.Context, sessionID string) ([]string, error)
	ReplaceEditors(ctx context.Context, sessionID string, userIDs []string) error
}

type pgxSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPgxSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &pgxSessionRepository{pool: pool}
}

func (p *pgxSessionRepository) Get(ctx context.Context, sessionID string) (*Session, error) {
	return p.get(ctx, sessionID, false)
}

func (p *pgxSessionRepository) Lock(ctx context.Context, sessionID string) (*Session, error) {
	return p.get(ctx, sessionID, true)
}

func (p *pgxSessionRepository) get(ctx context.Context, sessionID string, forUpdate bool) (*Session, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "max_participants", "team_count", "team_names", "registration_deadline", "created_by"),
		sm.From("sessions"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(sessionID))),
	)
	if forUpdate {
		q.Apply(sm.ForUpdate("sessions"))
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	s := &Session{}
	if err = e.QueryRow(ctx, sql, args...).Scan(
		&s.ID,
		&s.Name,
		&s.MaxParticipants,
		&s.TeamCount,
		&s.TeamNames,
		&s.RegistrationDeadline,
		&s.CreatedBy,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (p *pgxSessionRepository) ListEditors(ctx context.Context, sessionID string) ([]string, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("user_id"),
		sm.From("session_editors"),
		sm.Where(psql.Quote("session_id").EQ(psql.Arg(sessionID))),
		sm.OrderBy("user_id"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (p *pgxSessionRepository) ReplaceEditors(ctx context.Context, sessionID string, userIDs []string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	del := psql.Delete(
		dm.From("session_editors"),
		dm.Where(psql.Quote("session_id").EQ(psql.Arg(sessionID))),
	)

	sql, args, err := del.Build(ctx)
	if err != nil {
		return err
	}
	if _, err = e.Exec(ctx, sql, args...); err != nil {
		return err
	}

	if len(userIDs) == 0 {
		return nil
	}

	ins := psql.Insert(
		im.Into("session_editors", "session_id", "user_id"),
	)
	for _, userID := range userIDs {
		ins.Apply(im.Values(psql.Arg(sessionID), psql.Arg(userID)))
	}

	sql, args, err = ins.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return mapPgError(err)
}
