package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yakoovad/squad-roster/internal/auth"
	"github.com/yakoovad/squad-roster/internal/config"
	"github.com/yakoovad/squad-roster/pkg/logger"
	"go.uber.org/zap"
)

const version = "v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "squad-roster",
		Short:         "Registration, team and lineup service for group sports sessions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd(), newMigrateCmd(), newTokenCmd())
	return root
}

// bootstrap loads the configuration and builds the process logger shared by every command.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	l, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	auth.TokenSecretKey = cfg.Auth.TokenSecret
	return cfg, l, nil
}
