package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budgetly/internal/cache"
	"budgetly/internal/core"
	"budgetly/internal/log"
	"budgetly/internal/ports"

	"golang.org/x/sync/singleflight"
)

// SummaryService computes monthly summaries per owner, caching results and
// collapsing concurrent computations of the same month.
type SummaryService struct {
	store  ports.ExpenseStore
	cache  cache.Cache[core.MonthlySummary]
	group  singleflight.Group
	logger *log.Logger

	// gen counts invalidations. A computation only caches its result when no
	// invalidation happened since it started loading.
	mu  sync.Mutex
	gen uint64
}

// NewSummaryService wires the service. A nil cache disables caching.
func NewSummaryService(store ports.ExpenseStore, c cache.Cache[core.MonthlySummary], logger *log.Logger) *SummaryService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SummaryService{
		store:  store,
		cache:  c,
		logger: logger.WithComponent(log.ComponentSummary),
	}
}

// SummaryKey identifies the cached summary of userID for the month of year/month.
func SummaryKey(userID string, year, month int) string {
	return fmt.Sprintf("%s:%04d-%02d", userID, year, month)
}

// Summary returns the summary of ref's month for userID.
func (s *SummaryService) Summary(ctx context.Context, userID string, ref time.Time) (core.MonthlySummary, error) {
	key := SummaryKey(userID, ref.Year(), int(ref.Month()))
	if s.cache != nil {
		if sum, ok := s.cache.Get(ctx, key); ok {
			return sum, nil
		}
	}

	// Shared by every waiter, so one caller going away must not cancel it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.compute(shared, userID, ref, key)
	})
	if err != nil {
		return core.MonthlySummary{}, err
	}
	return v.(core.MonthlySummary), nil
}

// Refresh recomputes the summary of ref's month and stores it in the cache.
func (s *SummaryService) Refresh(ctx context.Context, userID string, ref time.Time) (core.MonthlySummary, error) {
	key := SummaryKey(userID, ref.Year(), int(ref.Month()))
	if s.cache != nil {
		s.cache.Delete(ctx, key)
	}
	return s.compute(ctx, userID, ref, key)
}

func (s *SummaryService) compute(ctx context.Context, userID string, ref time.Time, key string) (core.MonthlySummary, error) {
	s.mu.Lock()
	started := s.gen
	s.mu.Unlock()

	expenses, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("load expenses: %w", err)
	}
	sum := core.Summarize(expenses, ref)
	if s.cache != nil {
		s.mu.Lock()
		if s.gen == started {
			s.cache.Set(ctx, key, sum)
		}
		s.mu.Unlock()
	}
	s.logger.DebugContext(ctx, "Summary computed",
		log.FieldUserID, userID,
		log.FieldYear, sum.Year,
		log.FieldMonth, sum.Month,
		"count", sum.Count)
	return sum, nil
}

// Invalidate drops the summaries a change on date can affect: its own month,
// where it counts as current, and the following month, where it counts as previous.
func (s *SummaryService) Invalidate(ctx context.Context, userID string, date core.Date) {
	if s.cache == nil || date.IsZero() {
		return
	}
	nextYear, nextMonth := date.Year(), date.Month()+1
	if nextMonth > 12 {
		nextMonth = 1
		nextYear++
	}
	keys := []string{
		SummaryKey(userID, date.Year(), date.Month()),
		SummaryKey(userID, nextYear, nextMonth),
	}

	s.mu.Lock()
	s.gen++
	s.cache.Delete(ctx, keys...)
	s.mu.Unlock()
	// Later readers start a fresh load instead of joining one that may
	// predate the change.
	for _, k := range keys {
		s.group.Forget(k)
	}
}
