package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"budgetly/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:           "budgetly",
	Short:         "Personal expense tracker with monthly summaries and AI insights",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(sheetsAuthCmd())
}

func main() {
	ctx, stop := cli.SignalContext(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
