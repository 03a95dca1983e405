// Package ports declares the storage interfaces shared by every backend.
package ports

import (
	"context"
	"errors"

	"budgetly/internal/core"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to another owner.
	ErrNotFound = errors.New("not found")
	// ErrEmailExists is returned when signing up with an email that is already registered.
	ErrEmailExists = errors.New("email already registered")
)

type (
	// ExpenseStore persists expenses. Every method is scoped by owner.
	ExpenseStore interface {
		// CreateExpense stores e and returns it with ID and CreatedAt assigned.
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		// ListExpenses returns the owner's expenses ordered by date then created_at, newest first.
		ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
		// GetExpense returns ErrNotFound for ids owned by someone else.
		GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
		DeleteExpense(ctx context.Context, userID, id string) error
	}

	UserStore interface {
		// CreateUser returns ErrEmailExists when the email is taken.
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		GetUserByID(ctx context.Context, id string) (core.User, error)
	}

	// Pinger is implemented by stores that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Store is the full surface a backend provides.
	Store interface {
		ExpenseStore
		UserStore
		Pinger
		Close() error
	}
)
