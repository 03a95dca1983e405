package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budgetly/internal/core"
	"budgetly/internal/ports"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "budgetly.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createUser(t *testing.T, repo *SQLiteRepository, email string) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), core.User{Email: email, PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func TestSQLiteRepository_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budgetly.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer repo.Close()

	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestSQLiteRepository_Users(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	u := createUser(t, repo, "ada@example.com")
	if u.ID == "" {
		t.Fatal("expected generated user id")
	}

	got, err := repo.GetUserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != u.ID || got.PasswordHash != "hash" {
		t.Errorf("GetUserByEmail = %+v, want id %s", got, u.ID)
	}

	byID, err := repo.GetUserByID(ctx, u.ID)
	if err != nil || byID.Email != "ada@example.com" {
		t.Errorf("GetUserByID = %+v, %v", byID, err)
	}

	if _, err := repo.CreateUser(ctx, core.User{Email: "ada@example.com", PasswordHash: "x"}); !errors.Is(err, ports.ErrEmailExists) {
		t.Errorf("duplicate CreateUser error = %v, want ErrEmailExists", err)
	}

	if _, err := repo.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("GetUserByEmail(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_ExpensesOrderedAndScoped(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	alice := createUser(t, repo, "alice@example.com")
	bob := createUser(t, repo, "bob@example.com")

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	inputs := []core.Expense{
		{UserID: alice.ID, Date: core.NewDate(2025, 6, 3), Amount: core.Money{Cents: 1000}, Category: core.CategoryFood, CreatedAt: base},
		{UserID: alice.ID, Date: core.NewDate(2025, 6, 10), Amount: core.Money{Cents: 2000}, Category: core.CategoryBills, CreatedAt: base.Add(time.Second)},
		{UserID: alice.ID, Date: core.NewDate(2025, 6, 3), Amount: core.Money{Cents: 500}, Category: core.CategoryHealth, Description: "later", CreatedAt: base.Add(2 * time.Second)},
		{UserID: bob.ID, Date: core.NewDate(2025, 6, 20), Amount: core.Money{Cents: 700}, Category: core.CategoryOther, CreatedAt: base},
	}
	for _, e := range inputs {
		if _, err := repo.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}

	list, err := repo.ListExpenses(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(list) = %d, want 3", len(list))
	}
	wantCents := []int64{2000, 500, 1000}
	for i, e := range list {
		if e.Amount.Cents != wantCents[i] {
			t.Errorf("list[%d].Amount = %d, want %d", i, e.Amount.Cents, wantCents[i])
		}
		if e.UserID != alice.ID {
			t.Errorf("list[%d] owned by %s", i, e.UserID)
		}
	}
	if list[1].Description != "later" || list[1].Category != core.CategoryHealth {
		t.Errorf("list[1] = %+v", list[1])
	}
	if !list[0].Date.Equal(core.NewDate(2025, 6, 10).Time) {
		t.Errorf("list[0].Date = %s", list[0].Date)
	}
}

func TestSQLiteRepository_DeleteIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	alice := createUser(t, repo, "alice@example.com")
	bob := createUser(t, repo, "bob@example.com")

	e, err := repo.CreateExpense(ctx, core.Expense{
		UserID: alice.ID, Date: core.NewDate(2025, 6, 3), Amount: core.Money{Cents: 1000}, Category: core.CategoryFood,
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	if err := repo.DeleteExpense(ctx, bob.ID, e.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("DeleteExpense by other owner error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetExpense(ctx, bob.ID, e.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("GetExpense by other owner error = %v, want ErrNotFound", err)
	}

	if err := repo.DeleteExpense(ctx, alice.ID, e.ID); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if err := repo.DeleteExpense(ctx, alice.ID, e.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("second DeleteExpense error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_CreateExpenseValidation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	alice := createUser(t, repo, "alice@example.com")

	tests := []struct {
		name    string
		expense core.Expense
		wantErr error
	}{
		{"missing owner", core.Expense{Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: 1}, Category: core.CategoryFood}, core.ErrMissingOwner},
		{"zero amount", core.Expense{UserID: alice.ID, Date: core.NewDate(2025, 1, 1), Category: core.CategoryFood}, core.ErrInvalidAmount},
		{"bad category", core.Expense{UserID: alice.ID, Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: 1}, Category: "rent"}, core.ErrInvalidCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repo.CreateExpense(ctx, tt.expense); !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateExpense error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
