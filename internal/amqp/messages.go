package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"budgetly/internal/core"
)

// Event types carried in ExpenseEvent.Type.
const (
	EventExpenseCreated = "expense.created"
	EventExpenseDeleted = "expense.deleted"
)

// ExpenseEvent is published after an expense is stored or removed.
// It carries the full record so consumers never need to read it back.
type ExpenseEvent struct {
	Type        string    `json:"type"`
	ExpenseID   string    `json:"expense_id"`
	UserID      string    `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewExpenseEvent builds an event of the given type for e.
func NewExpenseEvent(eventType string, e core.Expense) ExpenseEvent {
	return ExpenseEvent{
		Type:        eventType,
		ExpenseID:   e.ID,
		UserID:      e.UserID,
		AmountCents: e.Amount.Cents,
		Category:    string(e.Category),
		Date:        e.Date.String(),
		Description: e.Description,
		Timestamp:   time.Now().UTC(),
	}
}

// Expense rebuilds the domain record carried by the event.
func (m ExpenseEvent) Expense() (core.Expense, error) {
	date, err := core.ParseDate(m.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("event date %q: %w", m.Date, err)
	}
	return core.Expense{
		ID:          m.ExpenseID,
		UserID:      m.UserID,
		Date:        date,
		Description: m.Description,
		Amount:      core.Money{Cents: m.AmountCents},
		Category:    core.Category(m.Category),
	}, nil
}

// ToJSON converts the message to JSON bytes
func (m ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and checks an event body.
func ExpenseEventFromJSON(data []byte) (ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return ExpenseEvent{}, err
	}
	switch msg.Type {
	case EventExpenseCreated, EventExpenseDeleted:
	default:
		return ExpenseEvent{}, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.ExpenseID == "" || msg.UserID == "" {
		return ExpenseEvent{}, fmt.Errorf("event missing expense or user id")
	}
	return msg, nil
}
