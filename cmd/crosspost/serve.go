package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdulachik/crosspost/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and HTTP API",
	Long: `Run the crosspost daemon: the scheduler publishes due posts every
SCHEDULER_INTERVAL and the HTTP API accepts compose, publish and republish
requests on HTTP_ADDR.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := loadApp(ctx, (*config.Config).ValidateForServe)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := os.MkdirAll(a.Config.UploadDir, 0755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	srv := &http.Server{
		Addr:              a.Config.HTTPAddr,
		Handler:           a.API().Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting crosspost",
		"addr", a.Config.HTTPAddr,
		"scheduler_interval", a.Config.SchedulerInterval,
		"base_url", a.Config.BaseURL,
	)

	errCh := make(chan error, 1)
	schedDone := make(chan error, 1)

	// Run scheduler in background
	go func() {
		schedDone <- a.Scheduler.Run(ctx)
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	schedulerStopped := false
	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case runErr = <-errCh:
	case runErr = <-schedDone:
		schedulerStopped = true
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
	}

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown failed", "error", err)
	}

	// A tick in flight finishes its current post before the store closes.
	if !schedulerStopped {
		if err := <-schedDone; err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("scheduler stopped with error", "error", err)
		}
	}

	return runErr
}
