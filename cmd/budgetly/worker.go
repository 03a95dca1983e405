package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"budgetly/internal/backend"
	"budgetly/internal/cli"
	"budgetly/internal/log"
	"budgetly/internal/services"
	"budgetly/internal/sheets"
	"budgetly/internal/worker"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume expense events: mirror to Google Sheets and warm summaries",
		RunE:  runWorker,
	}
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := cli.Bootstrap()
	if err != nil {
		return err
	}
	if err := cfg.ValidateWorker(); err != nil {
		return err
	}
	ctx := cmd.Context()

	b, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()
	if b.Events == nil {
		return errors.New("message broker unavailable")
	}
	// Without Redis the summary cache is private to each process, so
	// warming it here would not help the server.
	var summaries worker.SummaryRefresher
	if b.Redis != nil {
		summaries = services.NewSummaryService(b.Store, b.SummaryCache, logger)
	} else {
		logger.Warn("REDIS_URL not set: summary warm-up disabled")
	}

	var mirror worker.ExpenseMirror
	if cfg.SheetsEnabled() {
		m, err := sheets.NewFromConfig(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("initialize sheets mirror: %w", err)
		}
		mirror = m
	}

	w := worker.NewEventWorker(mirror, summaries, logger)
	if err := w.Run(ctx, b.Events); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Worker stopped gracefully")
	return nil
}
