package worker

import (
	"context"
	"fmt"
	"time"

	"budgetly/internal/amqp"
	"budgetly/internal/core"
	"budgetly/internal/log"
)

// ExpenseMirror copies a created expense to an external sheet.
type ExpenseMirror interface {
	Append(ctx context.Context, e core.Expense) (rowRef string, err error)
}

// SummaryRefresher drops and rebuilds cached monthly summaries.
type SummaryRefresher interface {
	Invalidate(ctx context.Context, userID string, date core.Date)
	Refresh(ctx context.Context, userID string, ref time.Time) (core.MonthlySummary, error)
}

// EventConsumer delivers expense events until ctx is cancelled.
type EventConsumer interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

// EventWorker reacts to expense events: it mirrors created expenses and
// keeps the owner's summary cache warm.
type EventWorker struct {
	mirror    ExpenseMirror
	summaries SummaryRefresher
	now       func() time.Time
	logger    *log.Logger
}

// NewEventWorker wires the worker. mirror may be nil when Sheets is not configured.
func NewEventWorker(mirror ExpenseMirror, summaries SummaryRefresher, logger *log.Logger) *EventWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &EventWorker{
		mirror:    mirror,
		summaries: summaries,
		now:       time.Now,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// Run consumes events until ctx is cancelled.
func (w *EventWorker) Run(ctx context.Context, consumer EventConsumer) error {
	w.logger.InfoContext(ctx, "Event worker started", "sheets_mirror", w.mirror != nil)
	return consumer.Consume(ctx, w.HandleEvent)
}

// HandleEvent processes one event. A returned error requeues the message, so
// only the Sheets write, which is not repeated once it succeeded, can fail it.
func (w *EventWorker) HandleEvent(ctx context.Context, event amqp.ExpenseEvent) error {
	e, err := event.Expense()
	if err != nil {
		return fmt.Errorf("decode expense: %w", err)
	}

	logger := w.logger.With(log.FieldEventType, event.Type, log.FieldExpenseID, e.ID, log.FieldUserID, e.UserID)
	logger.InfoContext(ctx, "Processing expense event")

	switch event.Type {
	case amqp.EventExpenseCreated:
		if w.mirror != nil {
			ref, err := w.mirror.Append(ctx, e)
			if err != nil {
				return fmt.Errorf("mirror expense to sheets: %w", err)
			}
			logger.InfoContext(ctx, "Expense mirrored", log.FieldSheetsRef, ref)
		}
	case amqp.EventExpenseDeleted:
	default:
		logger.WarnContext(ctx, "Ignoring unknown event type")
		return nil
	}

	w.warm(ctx, logger, e)
	return nil
}

// warm invalidates the months touched by e and recomputes the current month.
func (w *EventWorker) warm(ctx context.Context, logger *log.Logger, e core.Expense) {
	if w.summaries == nil {
		return
	}
	w.summaries.Invalidate(ctx, e.UserID, e.Date)
	sum, err := w.summaries.Refresh(ctx, e.UserID, w.now())
	if err != nil {
		logger.ErrorContext(ctx, "Failed to refresh summary", log.FieldError, err.Error())
		return
	}
	logger.DebugContext(ctx, "Summary refreshed",
		log.FieldYear, sum.Year,
		log.FieldMonth, sum.Month)
}
