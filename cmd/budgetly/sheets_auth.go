package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"budgetly/internal/cli"
	"budgetly/internal/sheets"
)

func sheetsAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets-auth",
		Short: "Authorize Google Sheets access and save an OAuth token file",
		RunE:  runSheetsAuth,
	}
	cmd.Flags().String("client-file", "", "OAuth client JSON (default: GOOGLE_OAUTH_CLIENT_FILE)")
	cmd.Flags().String("token-file", "", "where to write the token (default: GOOGLE_OAUTH_TOKEN_FILE)")
	cmd.Flags().String("port", sheets.DefaultRedirectPort, "local callback port")
	return cmd
}

func runSheetsAuth(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := cli.Bootstrap()
	if err != nil {
		return err
	}

	clientFile, _ := cmd.Flags().GetString("client-file")
	tokenFile, _ := cmd.Flags().GetString("token-file")
	port, _ := cmd.Flags().GetString("port")
	if clientFile == "" {
		clientFile = cfg.GoogleOAuthClientFile
	}
	if tokenFile == "" {
		tokenFile = cfg.GoogleOAuthTokenFile
	}
	if clientFile == "" || tokenFile == "" {
		return errors.New("an OAuth client file and a token file path are required")
	}

	oc, err := sheets.LoadOAuthConfig(clientFile)
	if err != nil {
		return err
	}
	tok, err := sheets.Authorize(cmd.Context(), oc, port, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := sheets.SaveToken(tokenFile, tok); err != nil {
		return err
	}

	logger.Info("OAuth token saved", "path", tokenFile)
	fmt.Fprintln(cmd.OutOrStdout(), "Token saved. Set GOOGLE_OAUTH_TOKEN_FILE to use it.")
	return nil
}
