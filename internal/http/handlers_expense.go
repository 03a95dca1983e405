package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"budgetly/internal/auth"
	"budgetly/internal/log"
	"budgetly/internal/ports"
)

// handleCreateExpense handles the HTMX add form.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		Failure(http.StatusBadRequest, "Invalid request format").Write(w)
		return
	}

	e, err := ParseExpenseInput(parser, s.today())
	if err != nil {
		if msg, ok := ValidationMessage(err); ok {
			Failure(http.StatusUnprocessableEntity, msg).Write(w)
			return
		}
		Failure(http.StatusBadRequest, "Invalid request format").Write(w)
		return
	}
	e.UserID = auth.UserIDFromContext(r.Context())

	saved, err := s.expenses.CreateExpense(r.Context(), e)
	if err != nil {
		if msg, ok := ValidationMessage(err); ok {
			Failure(http.StatusUnprocessableEntity, msg).Write(w)
			return
		}
		s.logError(r, "Failed to create expense", err, log.OpCreate)
		Failure(http.StatusInternalServerError, "Could not save the expense. Please try again.").Write(w)
		return
	}

	Notice("Expense added").
		ExpenseChanged(EventExpenseCreated, saved.Date).
		ResetForm().
		Write(w)
}

// handleDeleteExpense answers with an empty 200 so HTMX swaps the row away.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := s.expenses.DeleteExpense(r.Context(), auth.UserIDFromContext(r.Context()), id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			Failure(http.StatusNotFound, "Expense not found").Write(w)
			return
		}
		s.logError(r, "Failed to delete expense", err, log.OpDelete)
		Failure(http.StatusInternalServerError, "Could not delete the expense. Please try again.").Write(w)
		return
	}

	NewPartial(http.StatusOK).
		ExpenseChanged(EventExpenseDeleted, deleted.Date).
		Write(w)
}
