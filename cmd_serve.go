package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voice-journal/core/internal/transport/rest"
	logx "github.com/voice-journal/core/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the journaling HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	router := rest.NewRouter(rest.Config{
		Service:  a.processor,
		Metrics:  a.metrics,
		Ping:     a.ping,
		Location: a.location,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.Setup(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().
			Str("addr", cfg.HTTPAddr).
			Str("env", cfg.Environment.String()).
			Str("store", cfg.StoreBackend).
			Str("extractor", cfg.Extractor.Strategy).
			Msg("journal API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logx.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
