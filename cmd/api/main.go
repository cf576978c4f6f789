package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"community-api/internal/app"
	"community-api/internal/config"
	"community-api/internal/maintenance"
	"community-api/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		skipDotEnv bool
		issueToken bool
		tokenTTL   time.Duration
	)

	flagSet := pflag.NewFlagSet("community-api", pflag.ContinueOnError)
	flagSet.BoolVar(&skipDotEnv, "no-dotenv", false, "do not load .env from the working directory")
	flagSet.BoolVar(&issueToken, "issue-maintenance-token", false, "print a maintenance bearer token and exit")
	flagSet.DurationVar(&tokenTTL, "token-ttl", 15*time.Minute, "lifetime of the issued maintenance token")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(!skipDotEnv)
	if err != nil {
		return err
	}

	if issueToken {
		token, err := maintenance.IssueToken(cfg.MaintenanceJWTSecret, tokenTTL, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", map[string]any{"error": err.Error()})
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("shutdown_close_failed", map[string]any{"error": err.Error()})
		}
	}()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           rt.Handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server_start", map[string]any{"addr": server.Addr, "env": cfg.AppEnv})
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_failed", map[string]any{"error": err.Error()})
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server_shutdown", map[string]any{"grace_period": cfg.ShutdownGracePeriod.String()})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", map[string]any{"error": err.Error()})
		return err
	}
	return nil
}
