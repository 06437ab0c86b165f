package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/waplink/waplink/internal/config"
	"github.com/waplink/waplink/internal/tracing"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the connection manager service",
		Long: `Resumes every stored connection (each re-enters pairing) and keeps
their state pollers running until interrupted.`,
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		fatal(err)
	}
	defer a.close()

	shutdownTracing, err := tracing.Setup(ctx, a.cfg.Tracing)
	if err != nil {
		fatal(err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("tracing shutdown", "error", err)
		}
	}()

	if err := a.manager.Resume(ctx); err != nil {
		fatal(err)
	}

	watcher, err := config.NewWatcher(resolveConfigPath())
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else {
		watcher.OnChange(func(cfg *config.Config) {
			// Structural changes (engine, DSN) need a restart; log so
			// the operator knows the file was picked up.
			slog.Info("config file changed", "engine", cfg.Engine)
		})
		if err := watcher.Start(); err != nil {
			slog.Warn("config watcher start", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	slog.Info("waplink serving", "engine", a.gateway.Name())
	<-ctx.Done()
	slog.Info("shutting down")
}
