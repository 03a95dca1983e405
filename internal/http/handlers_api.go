package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"budgetly/internal/auth"
	"budgetly/internal/core"
	"budgetly/internal/log"
	"budgetly/internal/ports"
)

type expenseJSON struct {
	ID          string    `json:"id"`
	Amount      string    `json:"amount"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:          e.ID,
		Amount:      e.Amount.String(),
		AmountCents: e.Amount.Cents,
		Category:    string(e.Category),
		Date:        e.Date.String(),
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

type shareJSON struct {
	Category   string  `json:"category"`
	Amount     string  `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type summaryJSON struct {
	Year          int         `json:"year"`
	Month         int         `json:"month"`
	Total         string      `json:"total"`
	PreviousTotal string      `json:"previous_total"`
	PercentChange float64     `json:"percent_change"`
	Count         int         `json:"count"`
	Average       string      `json:"average"`
	Breakdown     []shareJSON `json:"breakdown"`
}

func toSummaryJSON(sum core.MonthlySummary) summaryJSON {
	out := summaryJSON{
		Year:          sum.Year,
		Month:         sum.Month,
		Total:         sum.Total.String(),
		PreviousTotal: sum.PreviousTotal.String(),
		PercentChange: sum.PercentChange,
		Count:         sum.Count,
		Average:       sum.Average.String(),
		Breakdown:     make([]shareJSON, 0, len(sum.Breakdown)),
	}
	for _, share := range sum.Breakdown {
		out.Breakdown = append(out.Breakdown, shareJSON{
			Category:   string(share.Category),
			Amount:     share.Total.String(),
			Percentage: share.Percentage,
		})
	}
	return out
}

func (s *Server) handleAPIListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.ListExpenses(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		s.logError(r, "Failed to list expenses", err, log.OpList)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	out := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseJSON(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": out})
}

func (s *Server) handleAPICreateExpense(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	e, err := ParseExpenseInput(parser, s.today())
	if err != nil {
		if msg, ok := ValidationMessage(err); ok {
			writeJSONError(w, http.StatusUnprocessableEntity, msg)
			return
		}
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	e.UserID = auth.UserIDFromContext(r.Context())

	saved, err := s.expenses.CreateExpense(r.Context(), e)
	if err != nil {
		if msg, ok := ValidationMessage(err); ok {
			writeJSONError(w, http.StatusUnprocessableEntity, msg)
			return
		}
		s.logError(r, "Failed to create expense", err, log.OpCreate)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseJSON(saved))
}

func (s *Server) handleAPIDeleteExpense(w http.ResponseWriter, r *http.Request) {
	_, err := s.expenses.DeleteExpense(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "Expense not found")
			return
		}
		s.logError(r, "Failed to delete expense", err, log.OpDelete)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAPISummary returns the summary for the month containing ?date=, or now.
func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	ref, err := ParseReferenceDate(r.URL.Query(), s.now())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid date: use YYYY-MM-DD")
		return
	}
	sum, err := s.summaries.Summary(r.Context(), auth.UserIDFromContext(r.Context()), ref)
	if err != nil {
		s.logError(r, "Failed to load summary", err, log.OpSummarize)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toSummaryJSON(sum))
}
