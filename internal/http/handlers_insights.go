package http

import (
	"errors"
	"net/http"

	"budgetly/internal/auth"
	"budgetly/internal/insights"
	"budgetly/internal/log"
)

type insightsView struct {
	Text  string
	Error string
}

// handleInsightsPartial analyses every expense of the signed-in user with the
// server-side API key.
func (s *Server) handleInsightsPartial(w http.ResponseWriter, r *http.Request) {
	if s.apiKey == "" {
		s.render(w, r, http.StatusOK, "insights.html", insightsView{Error: "OpenRouter API key not configured"})
		return
	}

	expenses, err := s.expenses.ListExpenses(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		s.logError(r, "Failed to list expenses", err, log.OpList)
		s.render(w, r, http.StatusOK, "insights.html", insightsView{Error: "Failed to generate AI insights. Please try again."})
		return
	}

	insight, err := s.insights.Generate(r.Context(), s.apiKey, expenses)
	switch {
	case errors.Is(err, insights.ErrNoExpenses):
		s.render(w, r, http.StatusOK, "insights.html", insightsView{Error: insights.MsgNoExpenses})
	case err != nil:
		s.render(w, r, http.StatusOK, "insights.html", insightsView{Error: "Failed to generate AI insights. Please try again."})
	default:
		s.render(w, r, http.StatusOK, "insights.html", insightsView{Text: insight.Insights})
	}
}
