package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"budgetly/internal/cache"
	"budgetly/internal/core"
	"budgetly/internal/ports"
	"budgetly/internal/storage/memory"
)

type countingStore struct {
	ports.ExpenseStore
	lists atomic.Int32
	delay time.Duration
}

func (c *countingStore) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	c.lists.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.ExpenseStore.ListExpenses(ctx, userID)
}

func seed(t *testing.T, store ports.ExpenseStore, userID string, date core.Date, cents int64, cat core.Category) {
	t.Helper()
	_, err := store.CreateExpense(context.Background(), core.Expense{
		UserID: userID, Date: date, Amount: core.Money{Cents: cents}, Category: cat,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestSummaryService_SummaryAndCache(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	seed(t, mem, "u1", core.NewDate(2025, 6, 2), 5000, core.CategoryFood)
	seed(t, mem, "u1", core.NewDate(2025, 6, 9), 3000, core.CategoryTransport)
	seed(t, mem, "u1", core.NewDate(2025, 5, 20), 10000, core.CategoryBills)
	seed(t, mem, "u2", core.NewDate(2025, 6, 2), 99999, core.CategoryOther)

	store := &countingStore{ExpenseStore: mem}
	svc := NewSummaryService(store, cache.NewLRUCache[core.MonthlySummary](10, time.Minute), nil)
	ref := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	sum, err := svc.Summary(ctx, "u1", ref)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Total.Cents != 8000 || sum.PreviousTotal.Cents != 10000 || sum.Count != 2 || sum.Average.Cents != 4000 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.PercentChange != -20 {
		t.Errorf("PercentChange = %v, want -20", sum.PercentChange)
	}

	if _, err := svc.Summary(ctx, "u1", ref.AddDate(0, 0, 3)); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if n := store.lists.Load(); n != 1 {
		t.Errorf("store listed %d times, want 1 (second call cached)", n)
	}
}

func TestSummaryService_InvalidateCoversCurrentAndNextMonth(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	store := &countingStore{ExpenseStore: mem}
	svc := NewSummaryService(store, cache.NewLRUCache[core.MonthlySummary](10, time.Minute), nil)

	dec := time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC)
	jan := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	_, _ = svc.Summary(ctx, "u1", dec)
	_, _ = svc.Summary(ctx, "u1", jan)
	if n := store.lists.Load(); n != 2 {
		t.Fatalf("lists = %d, want 2", n)
	}

	seed(t, mem, "u1", core.NewDate(2024, 12, 31), 1234, core.CategoryHealth)
	svc.Invalidate(ctx, "u1", core.NewDate(2024, 12, 31))

	decSum, _ := svc.Summary(ctx, "u1", dec)
	janSum, _ := svc.Summary(ctx, "u1", jan)
	if n := store.lists.Load(); n != 4 {
		t.Errorf("lists = %d, want 4 after invalidation", n)
	}
	if decSum.Total.Cents != 1234 {
		t.Errorf("December total = %d, want 1234", decSum.Total.Cents)
	}
	if janSum.PreviousTotal.Cents != 1234 {
		t.Errorf("January previous total = %d, want 1234", janSum.PreviousTotal.Cents)
	}
}

func TestSummaryService_ConcurrentCallsShareComputation(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	seed(t, mem, "u1", core.NewDate(2025, 6, 2), 5000, core.CategoryFood)
	store := &countingStore{ExpenseStore: mem, delay: 50 * time.Millisecond}
	svc := NewSummaryService(store, nil, nil)
	ref := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Summary(ctx, "u1", ref); err != nil {
				t.Errorf("Summary: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := store.lists.Load(); n >= 10 {
		t.Errorf("lists = %d, expected concurrent calls to be collapsed", n)
	}
}

func TestSummaryService_Refresh(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	c := cache.NewLRUCache[core.MonthlySummary](10, time.Minute)
	svc := NewSummaryService(mem, c, nil)
	ref := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	_, _ = svc.Summary(ctx, "u1", ref)
	seed(t, mem, "u1", core.NewDate(2025, 6, 1), 700, core.CategoryShopping)

	sum, err := svc.Refresh(ctx, "u1", ref)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if sum.Total.Cents != 700 {
		t.Errorf("Refresh total = %d, want 700", sum.Total.Cents)
	}
	cached, ok := c.Get(ctx, SummaryKey("u1", 2025, 6))
	if !ok || cached.Total.Cents != 700 {
		t.Errorf("cached = %+v, %v", cached, ok)
	}
}

// pausingStore holds its first ListExpenses after the snapshot is taken
// until resume is closed.
type pausingStore struct {
	ports.ExpenseStore
	once   sync.Once
	listed chan struct{}
	resume chan struct{}
}

func (p *pausingStore) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	out, err := p.ExpenseStore.ListExpenses(ctx, userID)
	p.once.Do(func() {
		close(p.listed)
		<-p.resume
	})
	return out, err
}

func TestSummaryService_InvalidationDuringLoadIsNotCached(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	store := &pausingStore{ExpenseStore: mem, listed: make(chan struct{}), resume: make(chan struct{})}
	svc := NewSummaryService(store, cache.NewLRUCache[core.MonthlySummary](10, time.Minute), nil)
	ref := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	done := make(chan core.MonthlySummary, 1)
	go func() {
		sum, _ := svc.Summary(ctx, "u1", ref)
		done <- sum
	}()

	<-store.listed
	seed(t, mem, "u1", core.NewDate(2025, 6, 2), 5000, core.CategoryFood)
	svc.Invalidate(ctx, "u1", core.NewDate(2025, 6, 2))
	close(store.resume)

	if early := <-done; early.Count != 0 {
		t.Fatalf("in-flight summary count = %d, want its pre-write snapshot", early.Count)
	}

	sum, err := svc.Summary(ctx, "u1", ref)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Count != 1 || sum.Total.Cents != 5000 {
		t.Errorf("summary after write = count %d total %d, want 1 and 5000", sum.Count, sum.Total.Cents)
	}
}

type ctxStore struct {
	ports.ExpenseStore
}

func (c ctxStore) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.ExpenseStore.ListExpenses(ctx, userID)
}

func TestSummaryService_SharedLoadIgnoresCallerCancellation(t *testing.T) {
	mem := memory.New()
	seed(t, mem, "u1", core.NewDate(2025, 6, 2), 5000, core.CategoryFood)
	svc := NewSummaryService(ctxStore{mem}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := svc.Summary(ctx, "u1", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Summary with a cancelled caller: %v", err)
	}
	if sum.Total.Cents != 5000 {
		t.Errorf("total = %d, want 5000", sum.Total.Cents)
	}
}
