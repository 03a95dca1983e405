package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"budgetly/internal/auth"
	"budgetly/internal/backend"
	"budgetly/internal/cli"
	apphttp "budgetly/internal/http"
	"budgetly/internal/insights"
	"budgetly/internal/log"
	"budgetly/internal/services"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web dashboard and JSON API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := cli.Bootstrap()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if cfg.IsProduction() && !cfg.CookieSecure {
		logger.Warn("COOKIE_SECURE is off in production: session cookies will be sent over plain HTTP")
	}

	b, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	summaries := services.NewSummaryService(b.Store, b.SummaryCache, logger)
	client := insights.NewOpenRouterClient(insights.ClientConfig{
		BaseURL: cfg.OpenRouterBaseURL,
		Model:   cfg.OpenRouterModel,
	})

	srv, err := apphttp.NewServer(cfg, apphttp.Deps{
		Expenses:  services.NewExpenseService(b.Store, b.Publisher(), summaries, logger),
		Summaries: summaries,
		Auth:      auth.NewService(b.Store, b.Sessions, logger),
		Insights:  insights.NewProxy(client, logger),
		Checks:    b.Checks(),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting budgetly server",
			"addr", srv.Addr,
			log.FieldBackend, cfg.DataBackend,
			"events", b.Events != nil,
			"insights", cfg.OpenRouterAPIKey != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
