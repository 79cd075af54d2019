package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/yakoovad/squad-roster/internal/db"
)

type User struct {
	ID        string  `db:"id"`
	Username  string  `db:"username"`
	AvatarURL *string `db:"avatar_url"`
}

// UserRepository is the read-only user directory used for roster rendering.
type UserRepository interface {
	GetProfiles(ctx context.Context, userIDs []string) ([]*User, error)
}

type pgxUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgxUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgxUserRepository{pool: pool}
}

func (p *pgxUserRepository) GetProfiles(ctx context.Context, userIDs []string) ([]*User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	ids := make([]any, 0, len(userIDs))
	for _, id := range userIDs {
		ids = append(ids, id)
	}

	q := psql.Select(
		sm.Columns("id", "username", "avatar_url"),
		sm.From("users"),
		sm.Where(psql.Quote("id").In(psql.Arg(ids...))),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*User, error) {
		u := &User{}
		if err := row.Scan(&u.ID, &u.Username, &u.AvatarURL); err != nil {
			return nil, err
		}
		return u, nil
	})
}
