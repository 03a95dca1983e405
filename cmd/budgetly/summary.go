package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"budgetly/internal/backend"
	"budgetly/internal/cli"
	"budgetly/internal/core"
	"budgetly/internal/services"
)

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print a user's monthly summary",
		RunE:  runSummary,
	}
	cmd.Flags().String("email", "", "account email (required)")
	cmd.Flags().String("date", "", "reference date YYYY-MM-DD (default: today)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runSummary(cmd *cobra.Command, _ []string) error {
	emailFlag, _ := cmd.Flags().GetString("email")
	dateFlag, _ := cmd.Flags().GetString("date")

	email, err := core.NormalizeEmail(emailFlag)
	if err != nil {
		return err
	}
	ref := time.Now()
	if dateFlag != "" {
		d, err := core.ParseDate(dateFlag)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		ref = d.Time
	}

	cfg, logger, err := cli.Bootstrap()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := backend.NewStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	u, err := store.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find user %s: %w", email, err)
	}
	sum, err := services.NewSummaryService(store, nil, logger).Summary(ctx, u.ID, ref)
	if err != nil {
		return err
	}
	return cli.RenderSummary(cmd.OutOrStdout(), sum)
}
