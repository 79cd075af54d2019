package db

import (
	"context"
	"embed"
	"io/fs"
	"sort"

	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema files in lexical order. Every statement is idempotent,
// so running it against an up-to-date database is a no-op.
func Migrate(ctx context.Context, e Executor) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return errors.Wrap(err, "list migrations")
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return errors.Wrapf(err, "read %s", name)
		}
		if _, err = e.Exec(ctx, string(body)); err != nil {
			return errors.Wrapf(err, "apply %s", name)
		}
	}
	return nil
}
