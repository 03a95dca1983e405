package core

import (
	"math"
	"sort"
	"strconv"
	"time"
)

// CategoryShare is one row of a category breakdown.
type CategoryShare struct {
	Category   Category
	Total      Money
	Percentage float64 // share of the breakdown total, 0-100
}

// MonthlySummary is the dashboard view of one calendar month compared with the one before.
type MonthlySummary struct {
	Year          int
	Month         int // 1-12
	Total         Money
	PreviousTotal Money
	PercentChange float64
	Breakdown     []CategoryShare
	Count         int
	Average       Money
}

// PreviousMonth returns the calendar month before year/month, wrapping January to December.
func PreviousMonth(year, month int) (int, int) {
	month--
	if month < 1 {
		month = 12
		year--
	}
	return year, month
}

// MonthlyFilter splits expenses into those dated in now's month and in the month before.
// Date components are compared as-is; now is read in its own location.
func MonthlyFilter(expenses []Expense, now time.Time) (current, previous []Expense) {
	year, month := now.Year(), int(now.Month())
	prevYear, prevMonth := PreviousMonth(year, month)
	for _, e := range expenses {
		switch {
		case e.Date.InMonth(year, month):
			current = append(current, e)
		case e.Date.InMonth(prevYear, prevMonth):
			previous = append(previous, e)
		}
	}
	return current, previous
}

// Total sums the amounts. Empty input yields zero.
func Total(expenses []Expense) Money {
	var sum Money
	for _, e := range expenses {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// PercentChange is (current-previous)/previous*100, or 0 when previous is not positive.
func PercentChange(current, previous Money) float64 {
	if previous.Cents <= 0 {
		return 0
	}
	return float64(current.Cents-previous.Cents) / float64(previous.Cents) * 100
}

// Breakdown groups expenses by category, sorted by descending total.
// Equal totals keep the order in which their category first appeared.
func Breakdown(expenses []Expense) []CategoryShare {
	var shares []CategoryShare
	index := make(map[Category]int)
	var total Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
		i, ok := index[e.Category]
		if !ok {
			i = len(shares)
			index[e.Category] = i
			shares = append(shares, CategoryShare{Category: e.Category})
		}
		shares[i].Total = shares[i].Total.Add(e.Amount)
	}
	for i := range shares {
		if total.Cents > 0 {
			shares[i].Percentage = float64(shares[i].Total.Cents) / float64(total.Cents) * 100
		}
	}
	sort.SliceStable(shares, func(a, b int) bool {
		return shares[a].Total.Cents > shares[b].Total.Cents
	})
	return shares
}

// Average divides total by count, rounding half-up to the cent. Zero when count is 0.
func Average(total Money, count int) Money {
	if count <= 0 {
		return Money{}
	}
	n := int64(count)
	cents := total.Cents / n
	if rem := total.Cents % n; rem*2 >= n {
		cents++
	}
	return Money{Cents: cents}
}

// Summarize builds the monthly summary for now's month.
// The breakdown, count and average cover the current month only.
func Summarize(expenses []Expense, now time.Time) MonthlySummary {
	current, previous := MonthlyFilter(expenses, now)
	total := Total(current)
	prevTotal := Total(previous)
	return MonthlySummary{
		Year:          now.Year(),
		Month:         int(now.Month()),
		Total:         total,
		PreviousTotal: prevTotal,
		PercentChange: PercentChange(total, prevTotal),
		Breakdown:     Breakdown(current),
		Count:         len(current),
		Average:       Average(total, len(current)),
	}
}

// Label renders the month as "January 2006".
func (s MonthlySummary) Label() string {
	if s.Month < 1 || s.Month > 12 {
		return ""
	}
	return time.Month(s.Month).String() + " " + strconv.Itoa(s.Year)
}

// ChangeLabel renders the absolute percent change with one decimal, or "" when unchanged.
func (s MonthlySummary) ChangeLabel() string {
	if s.PercentChange == 0 {
		return ""
	}
	return strconv.FormatFloat(math.Abs(s.PercentChange), 'f', 1, 64) + "%"
}

// Increased reports whether spending went up against the previous month.
func (s MonthlySummary) Increased() bool {
	return s.PercentChange > 0
}

// Top returns the largest category share, if any.
func (s MonthlySummary) Top() (CategoryShare, bool) {
	if len(s.Breakdown) == 0 {
		return CategoryShare{}, false
	}
	return s.Breakdown[0], true
}
