package services

import (
	"context"
	"fmt"

	"budgetly/internal/amqp"
	"budgetly/internal/core"
	"budgetly/internal/log"
	"budgetly/internal/ports"
)

// EventPublisher sends expense events to the worker.
type EventPublisher interface {
	Publish(ctx context.Context, event amqp.ExpenseEvent) error
}

// SummaryInvalidator drops cached summaries affected by a change on date.
type SummaryInvalidator interface {
	Invalidate(ctx context.Context, userID string, date core.Date)
}

// ExpenseService orchestrates expense writes: store, then publish, then invalidate.
type ExpenseService struct {
	store     ports.ExpenseStore
	publisher EventPublisher
	summaries SummaryInvalidator
	logger    *log.Logger
}

// NewExpenseService wires the service. publisher and summaries may be nil.
func NewExpenseService(store ports.ExpenseStore, publisher EventPublisher, summaries SummaryInvalidator, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		summaries: summaries,
		logger:    logger.WithComponent(log.ComponentExpense),
	}
}

// CreateExpense stores e for its owner. Publishing and cache invalidation
// failures are logged and do not fail the call.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.Description = core.SanitizeDescription(e.Description)

	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense created", log.NewFields().
		WithExpense(saved.ID, saved.Amount.Cents, string(saved.Category), saved.Date.String()).
		WithUser(saved.UserID).
		WithOperation(log.OpCreate).
		ToSlice()...)

	s.afterWrite(ctx, amqp.EventExpenseCreated, saved)
	return saved, nil
}

// ListExpenses returns the owner's expenses, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// DeleteExpense removes one of the owner's expenses and returns it. Returns
// ports.ErrNotFound for unknown ids and for ids owned by someone else.
func (s *ExpenseService) DeleteExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("load expense: %w", err)
	}
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return core.Expense{}, fmt.Errorf("delete expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense deleted", log.NewFields().
		WithUser(userID).
		WithOperation(log.OpDelete).
		WithExpense(e.ID, e.Amount.Cents, string(e.Category), e.Date.String()).
		ToSlice()...)

	s.afterWrite(ctx, amqp.EventExpenseDeleted, e)
	return e, nil
}

func (s *ExpenseService) afterWrite(ctx context.Context, eventType string, e core.Expense) {
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, amqp.NewExpenseEvent(eventType, e)); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish expense event", log.NewFields().
				WithError(err).
				WithOperation(log.OpPublish).
				WithUser(e.UserID).
				ToSlice()...)
		}
	}
	if s.summaries != nil {
		s.summaries.Invalidate(ctx, e.UserID, e.Date)
	}
}
