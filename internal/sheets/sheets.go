// Package sheets mirrors created expenses into a Google Sheet.
//
// The target tab is named "<year> <base>" after the expense's year, so one
// spreadsheet can hold several years side by side.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgetly/internal/config"
	"budgetly/internal/core"
	"budgetly/internal/log"
)

// DefaultSheetName is the base tab name when none is configured.
const DefaultSheetName = "Expenses"

// RowAppender appends one row to a range and returns the updated range.
type RowAppender interface {
	AppendRow(ctx context.Context, spreadsheetID, rng string, row []any) (string, error)
}

// Mirror writes expenses as rows: date, description, category label, amount.
type Mirror struct {
	rows          RowAppender
	spreadsheetID string
	baseName      string
	logger        *log.Logger
}

// New builds a Mirror over an existing appender.
func New(rows RowAppender, spreadsheetID, baseName string, logger *log.Logger) *Mirror {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	baseName = strings.TrimSpace(baseName)
	if baseName == "" {
		baseName = DefaultSheetName
	}
	return &Mirror{
		rows:          rows,
		spreadsheetID: spreadsheetID,
		baseName:      baseName,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

// NewFromConfig creates a Mirror backed by the Sheets API. Credentials come
// from a service account (inline JSON or file) or, failing that, from an OAuth
// client file plus a token file written by `budgetly sheets-auth`.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Mirror, error) {
	if strings.TrimSpace(cfg.GoogleSpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(&apiAppender{svc: svc}, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger), nil
}

// Append validates e and writes it to the tab for its year.
func (m *Mirror) Append(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}

	sheet := yearPrefixedName(m.baseName, e.Date.Year())
	rng := fmt.Sprintf("'%s'!A:D", sheet)
	ref, err := m.rows.AppendRow(ctx, m.spreadsheetID, rng, Row(e))
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	m.logger.InfoContext(ctx, "Expense mirrored to sheet", log.NewFields().
		WithExpense(e.ID, e.Amount.Cents, string(e.Category), e.Date.String()).
		WithUser(e.UserID).
		WithOperation(log.OpMirror).
		ToSlice()...,
	)
	m.logger.DebugContext(ctx, "Sheet range updated", log.FieldSheetsRef, ref)
	return ref, nil
}

// Row is the sheet representation of an expense.
func Row(e core.Expense) []any {
	return []any{e.Date.String(), e.Description, e.Category.Info().Label, e.Amount.String()}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

type apiAppender struct {
	svc *gsheet.Service
}

func (a *apiAppender) AppendRow(ctx context.Context, spreadsheetID, rng string, row []any) (string, error) {
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	resp, err := a.svc.Spreadsheets.Values.Append(spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if resp.Updates == nil {
		return rng, nil
	}
	return resp.Updates.UpdatedRange, nil
}

func newSheetsService(ctx context.Context, cfg *config.Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.GoogleServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.GoogleServiceAccountFile)

	switch {
	case serviceAccountJSON != "":
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON([]byte(serviceAccountJSON)),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	case serviceAccountFile != "":
		credentialsJSON, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	case cfg.GoogleOAuthTokenFile != "":
		client, err := oauthHTTPClient(ctx, cfg.GoogleOAuthClientFile, cfg.GoogleOAuthTokenFile)
		if err != nil {
			return nil, err
		}
		return gsheet.NewService(ctx, goption.WithHTTPClient(client))
	default:
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_OAUTH_TOKEN_FILE)")
	}
}

// oauthHTTPClient returns a pooled client that refreshes the stored token as needed.
func oauthHTTPClient(ctx context.Context, clientFile, tokenFile string) (*http.Client, error) {
	oc, err := LoadOAuthConfig(clientFile)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(tokenFile)
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return oc.Client(ctx, tok), nil
}

// LoadOAuthConfig reads an OAuth client JSON file for the Sheets scope.
func LoadOAuthConfig(clientFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(clientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	oc, err := google.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return oc, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}
