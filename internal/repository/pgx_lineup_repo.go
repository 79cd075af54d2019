package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/yakoovad/squad-roster/internal/db"
)

type LineupFormation struct {
	SessionID string `db:"session_id"`
	TeamNo    int    `db:"team_no"`
	Name      string `db:"formation"`
}

type LineupSlot struct {
	SessionID string `db:"session_id"`
	TeamNo    int    `db:"team_no"`
	SlotKey   string `db:"slot_key"`
	UserID    string `db:"user_id"`
}

type LineupRepository interface {
	Exists(ctx context.Context, sessionID string) (bool, error)
	// Create inserts the lineup marker row. It reports false when the row already existed.
	Create(ctx context.Context, sessionID string, schemaVersion int) (bool, error)
	ListFormations(ctx context.Context, sessionID string) ([]*LineupFormation, error)
	SaveFormation(ctx context.Context, f *LineupFormation) error
	ListSlots(ctx context.Context, sessionID string) ([]*LineupSlot, error)
	ReplaceTeamSlots(ctx context.Context, sessionID string, teamNo int, slots []*LineupSlot) error
	DeleteUserSlots(ctx context.Context, sessionID, userID string) error
}

type pgxLineupRepository struct {
	pool *pgxpool.Pool
}

func NewPgxLineupRepository(pool *pgxpool.Pool) LineupRepository {
	return &pgxLineupRepository{pool: pool}
}

func (p *pgxLineupRepository) Exists(ctx context.Context, sessionID string) (bool, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("schema_version"),
		sm.From("lineups"),
		sm.Where(psql.Quote("session_id").EQ(psql.Arg(sessionID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return false, err
	}

	var version int
	if err = e.QueryRow(ctx, sql, args...).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *pgxLineupRepository) Create(ctx context.Context, sessionID string, schemaVersion int) (bool, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("lineups", "session_id", "schema_version"),
		im.Values(psql.Arg(sessionID), psql.Arg(schemaVersion)),
		im.OnConflict(psql.Quote("session_id")).DoNothing(),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return false, err
	}

	commandTag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return false, mapPgError(err)
	}
	return commandTag.RowsAffected() == 1, nil
}

func (p *pgxLineupRepository) ListFormations(ctx context.Context, sessionID string) ([]*LineupFormation, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("session_id", "team_no", "formation"),
		sm.From("lineup_formations"),
		sm.Where(psql.Quote("session_id").EQ(psql.Arg(sessionID))),
		sm.OrderBy("team_no"),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*LineupFormation, error) {
		f := &LineupFormation{}
		if err := row.Scan(&f.SessionID, &f.TeamNo, &f.Name); err != nil {
			return nil, err
		}
		return f, nil
	})
}

func (p *pgxLineupRepository) SaveFormation(ctx context.Context, f *LineupFormation) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("lineup_formations", "session_id", "team_no", "formation"),
		im.Values(psql.Arg(f.SessionID), psql.Arg(f.TeamNo), psql.Arg(f.Name)),
		im.OnConflict(psql.Quote("session_id"), psql.Quote("team_no")).DoUpdate(
			im.SetCol("formation").ToArg(f.Name),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return mapPgError(err)
}

func (p *pgxLineupRepository) ListSlots(ctx context.Context, sessionID string) ([]*LineupSlot, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("session_id", "team_no", "slot_key", "user_id"),
		sm.From("lineup_slots"),
		sm.Where(psql.Quote("session_id").EQ(psql.Arg(sessionID))),
		sm.OrderBy("team_no"),
		sm.OrderBy("slot_key"),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*LineupSlot, error) {
		s := &LineupSlot{}
		if err := row.Scan(&s.SessionID, &s.TeamNo, &s.SlotKey, &s.UserID); err != nil {
			return nil, err
		}
		return s, nil
	})
}

func (p *pgxLineupRepository) ReplaceTeamSlots(ctx context.Context, sessionID string, teamNo int, slots []*LineupSlot) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	del := psql.Delete(
		dm.From("lineup_slots"),
		dm.Where(psql.Quote("session_id").EQ(psql.Arg(sessionID)).
			And(psql.Quote("team_no").EQ(psql.Arg(teamNo)))),
	)

	sql, args, err := del.Build(ctx)
	if err != nil {
		return err
	}
	if _, err = e.Exec(ctx, sql, args...); err != nil {
		return err
	}

	if len(slots) == 0 {
		return nil
	}

	ins := psql.Insert(
		im.Into("lineup_slots", "session_id", "team_no", "slot_key", "user_id"),
	)
	for _, s := range slots {
		ins.Apply(im.Values(psql.Arg(sessionID), psql.Arg(teamNo), psql.Arg(s.SlotKey), psql.Arg(s.UserID)))
	}

	sql, args, err = ins.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return mapPgError(err)
}

func (p *pgxLineupRepository) DeleteUserSlots(ctx context.Context, sessionID, userID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("lineup_slots"),
		dm.Where(psql.Quote("session_id").EQ(psql.Arg(sessionID)).
			And(psql.Quote("user_id").EQ(psql.Arg(userID)))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return err
}
