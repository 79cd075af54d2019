package main

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/yakoovad/squad-roster/internal/api"
	"github.com/yakoovad/squad-roster/internal/config"
	"github.com/yakoovad/squad-roster/internal/db"
	"github.com/yakoovad/squad-roster/internal/repository"
	"github.com/yakoovad/squad-roster/internal/service"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := bootstrap()
			if err != nil {
				return err
			}
			defer l.Sync()

			if err = cfg.Validate(); err != nil {
				return err
			}

			return serve(cmd.Context(), cfg, l)
		},
	}
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse DATABASE_URL")
	}
	poolCfg.MaxConns = cfg.Database.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return pool, nil
}

func serve(ctx context.Context, cfg *config.Config, l *zap.Logger) error {
	l.Info("starting application", zap.String("version", version))

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	l.Info("database connection established")

	transactor := db.NewPgxTransactor(pool)

	sessionRepo := repository.NewPgxSessionRepository(pool)
	participationRepo := repository.NewPgxParticipationRepository(pool)
	lineupRepo := repository.NewPgxLineupRepository(pool)
	userRepo := repository.NewPgxUserRepository(pool)

	editors := service.NewEditorResolver(sessionRepo)

	registration := service.NewRegistrationService(transactor).
		WithSessionRepo(sessionRepo).
		WithParticipationRepo(participationRepo).
		WithLineupRepo(lineupRepo)
	team := service.NewTeamService(transactor).
		WithSessionRepo(sessionRepo).
		WithParticipationRepo(participationRepo).
		WithUserRepo(userRepo).
		WithEditorResolver(editors).
		WithCapacityPolicy(cfg.TeamCapacityPolicy)
	lineup := service.NewLineupService(transactor).
		WithSessionRepo(sessionRepo).
		WithParticipationRepo(participationRepo).
		WithLineupRepo(lineupRepo).
		WithEditorResolver(editors)

	e := echo.New()
	e.HideBanner = true

	api.NewHandler(l).
		WithRegistrationService(registration).
		WithTeamService(team).
		WithLineupService(lineup).
		WithHealthChecker(api.MustNewHealthChecker(version, api.PostgresCheck(pool))).
		RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		l.Info("server starting", zap.String("addr", cfg.HTTP.Addr))
		if err := e.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err = <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	l.Info("shutting down", zap.Duration("timeout", cfg.HTTP.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err = e.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	return nil
}
