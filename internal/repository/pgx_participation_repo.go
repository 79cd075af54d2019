package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/squad-roster/internal/db"
	"github.com/yakoovad/squad-roster/internal/model"
)

type Participation struct {
	ID        string       `db:"id"`
	Seq       int64        `db:"seq"`
	SessionID string       `db:"session_id"`
	UserID    string       `db:"user_id"`
	Status    model.Status `db:"status"`
	Position  *string      `db:"position"`
	TeamNo    *int         `db:"team_no"`
	CreatedAt time.Time    `db:"created_at"`
}

// ParticipationPatch updates the non-nil fields. An empty Position or a zero TeamNo
// clears the column.
type ParticipationPatch struct {
	ID       string        `db:"id"`
	Status   *model.Status `db:"status"`
	Position *string       `db:"position"`
	TeamNo   *int          `db:"team_no"`
}

// ParticipationRepository is the roster ledger.
type ParticipationRepository interface {
	Create(ctx context.Context, p *Participation) error
	GetByUser(ctx context.Context, sessionID, userID string) (*Participation, error)
	// ListBySession returns every record of the session in FIFO (creation) order.
	ListBySession(ctx context.Context, sessionID string) ([]*Participation, error)
	Patch(ctx context.Context, patch *ParticipationPatch) (*Participation, error)
	Delete(ctx context.Context, id string) error
}

var participationColumns = []any{"id", "seq", "session_id", "user_id", "status", "position", "team_no", "created_at"}

type pgxParticipationRepository struct {
	pool *pgxpool.Pool
}

func NewPgxParticipationRepository(pool *pgxpool.Pool) ParticipationRepository {
	return &pgxParticipationRepository{pool: pool}
}

func scanParticipation(row pgx.Row) (*Participation, error) {
	p := &Participation{}
	if err := row.Scan(
		&p.ID,
		&p.Seq,
		&p.SessionID,
		&p.UserID,
		&p.Status,
		&p.Position,
		&p.TeamNo,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *pgxParticipationRepository) Create(ctx context.Context, p *Participation) error {
	e := db.GetPgxExecutorFromContext(ctx, r.pool)

	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	q := psql.Insert(
		im.Into("participations", "id", "session_id", "user_id", "status", "position", "team_no"),
		im.Values(
			psql.Arg(p.ID),
			psql.Arg(p.SessionID),
			psql.Arg(p.UserID),
			psql.Arg(string(p.Status)),
			psql.Arg(p.Position),
			psql.Arg(p.TeamNo),
		),
		im.Returning("seq", "created_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	return mapPgError(e.QueryRow(ctx, sql, args...).Scan(&p.Seq, &p.CreatedAt))
}

func (r *pgxParticipationRepository) GetByUser(ctx context.Context, sessionID, userID string) (*Participation, error) {
	e := db.GetPgxExecutorFromContext(ctx, r.pool)

	q := psql.Select(
		sm.Columns(participationColumns...),
		sm.From("participations"),
		sm.Where(psql.Quote("session_id").EQ(psql.Arg(sessionID)).
			And(psql.Quote("user_id").EQ(psql.Arg(userID)))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	p, err := scanParticipation(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *pgxParticipationRepository) ListBySession(ctx context.Context, sessionID string) ([]*Participation, error) {
	e := db.GetPgxExecutorFromContext(ctx, r.pool)

	q := psql.Select(
		sm.Columns(participationColumns...),
		sm.From("participations"),
		sm.Where(psql.Quote("session_id").EQ(psql.Arg(sessionID))),
		sm.OrderBy("created_at"),
		sm.OrderBy("seq"),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Participation, error) {
		return scanParticipation(row)
	})
}

func (r *pgxParticipationRepository) Patch(ctx context.Context, patch *ParticipationPatch) (*Participation, error) {
	e := db.GetPgxExecutorFromContext(ctx, r.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 3)

	if patch.Status != nil {
		sets = append(sets, um.SetCol("status").ToArg(string(*patch.Status)))
	}
	if patch.Position != nil {
		sets = append(sets, um.SetCol("position").ToArg(nullString(*patch.Position)))
	}
	if patch.TeamNo != nil {
		sets = append(sets, um.SetCol("team_no").ToArg(nullTeam(*patch.TeamNo)))
	}
	if len(sets) == 0 {
		return nil, ErrEmptyPatch
	}

	q := psql.Update(
		um.Table("participations"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning(participationColumns...),
	)

	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	p, err := scanParticipation(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, mapPgError(err)
}

func (r *pgxParticipationRepository) Delete(ctx context.Context, id string) error {
	e := db.GetPgxExecutorFromContext(ctx, r.pool)

	q := psql.Delete(
		dm.From("participations"),
		dm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	commandTag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return mapPgError(err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
