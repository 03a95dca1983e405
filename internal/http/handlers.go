package http

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"budgetly/internal/auth"
	"budgetly/internal/core"
	"budgetly/internal/log"
)

const readyTimeout = 3 * time.Second

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady runs every dependency check; any failure makes the whole response 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "check", name, log.FieldError, err.Error())
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := map[string]any{"status": "ok", "checks": results}
	if status != http.StatusOK {
		body["status"] = "unavailable"
	}
	writeJSON(w, status, body)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	data := struct {
		Email           string
		Today           string
		Categories      []core.CategoryInfo
		DefaultCategory core.Category
	}{
		Email:           u.Email,
		Today:           s.today().String(),
		Categories:      core.Categories(),
		DefaultCategory: core.DefaultCategory,
	}
	s.render(w, r, http.StatusOK, "index.html", data)
}

type shareRow struct {
	Emoji    string
	Label    string
	Amount   string
	Percent  string
	BarClass string
	Width    int
}

type summaryView struct {
	Label       string
	Total       string
	Count       int
	Average     string
	ChangeLabel string
	Increased   bool
	Rows        []shareRow
}

func newSummaryView(sum core.MonthlySummary) summaryView {
	v := summaryView{
		Label:       sum.Label(),
		Total:       sum.Total.Display(),
		Count:       sum.Count,
		Average:     sum.Average.Display(),
		ChangeLabel: sum.ChangeLabel(),
		Increased:   sum.Increased(),
	}
	for _, share := range sum.Breakdown {
		info := share.Category.Info()
		v.Rows = append(v.Rows, shareRow{
			Emoji:    info.Emoji,
			Label:    info.Label,
			Amount:   share.Total.Display(),
			Percent:  strconv.FormatFloat(share.Percentage, 'f', 1, 64),
			BarClass: info.BarClass,
			Width:    int(math.Round(share.Percentage)),
		})
	}
	return v
}

func (s *Server) handleSummaryPartial(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sum, err := s.summaries.Summary(r.Context(), userID, s.now())
	if err != nil {
		s.logError(r, "Failed to load summary", err, log.OpSummarize)
		Failure(http.StatusInternalServerError, "Could not load the monthly summary").Write(w)
		return
	}
	s.render(w, r, http.StatusOK, "summary.html", newSummaryView(sum))
}

type expenseRow struct {
	ID            string
	Emoji         string
	BadgeClass    string
	CategoryLabel string
	Label         string
	Date          string
	Amount        string
}

func (s *Server) handleExpensesPartial(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	expenses, err := s.expenses.ListExpenses(r.Context(), userID)
	if err != nil {
		s.logError(r, "Failed to list expenses", err, log.OpList)
		Failure(http.StatusInternalServerError, "Could not load expenses").Write(w)
		return
	}

	rows := make([]expenseRow, 0, len(expenses))
	for _, e := range expenses {
		info := e.Category.Info()
		rows = append(rows, expenseRow{
			ID:            e.ID,
			Emoji:         info.Emoji,
			BadgeClass:    info.BadgeClass,
			CategoryLabel: info.Label,
			Label:         e.Label(),
			Date:          e.Date.Short(),
			Amount:        e.Amount.Display(),
		})
	}
	s.render(w, r, http.StatusOK, "expenses.html", rows)
}

func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}

func (s *Server) logError(r *http.Request, msg string, err error, op string) {
	log.NewStructuredLogger(s.logger).LogError(r.Context(), msg, err, log.ComponentHTTP, op,
		log.NewFields().WithUser(auth.UserIDFromContext(r.Context())))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
