package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"budgetly/internal/core"
	"budgetly/internal/log"

	"github.com/shopspring/decimal"
)

// FallbackInsight is used when the model returns no content.
const FallbackInsight = "Unable to generate insights."

// Error messages returned to callers.
const (
	MsgNoExpenses = "No expenses provided"
	MsgMissingKey = "OpenRouter API key is required"
	MsgUpstream   = "Failed to generate insights"
	MsgInternal   = "Internal server error"
)

var (
	ErrNoExpenses     = errors.New("no expenses provided")
	ErrMissingKey     = errors.New("api key is required")
	ErrAmountTooLarge = errors.New("amount out of range")
)

// maxTotalCents bounds aggregated amounts so they convert to cents exactly.
var maxTotalCents = decimal.NewFromInt(1 << 53)

// ExpenseInput is one expense as posted by clients. Categories are not validated.
type ExpenseInput struct {
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Description string  `json:"description,omitempty"`
}

// Request is the body of an insights call.
type Request struct {
	Expenses         []ExpenseInput `json:"expenses"`
	OpenRouterAPIKey string         `json:"openRouterApiKey"`
}

// TopCategory is the largest category of the analysed list.
type TopCategory struct {
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Percentage string  `json:"percentage"`
}

// Summary accompanies the advice text.
type Summary struct {
	TotalSpending    float64      `json:"totalSpending"`
	TransactionCount int          `json:"transactionCount"`
	TopCategory      *TopCategory `json:"topCategory"`
}

// Insight is a successful generation.
type Insight struct {
	Insights string  `json:"insights"`
	Summary  Summary `json:"summary"`
}

// ErrorBody is the JSON body of every failed call.
type ErrorBody struct {
	Error string `json:"error"`
}

// Result is the outcome of a proxied call: an HTTP status and a JSON-encodable body.
type Result struct {
	Status int
	Body   any
}

func errorResult(status int, msg string) Result {
	return Result{Status: status, Body: ErrorBody{Error: msg}}
}

// Proxy validates requests, builds the prompt and calls the model once.
type Proxy struct {
	client Completer
	logger *log.Logger
}

func NewProxy(client Completer, logger *log.Logger) *Proxy {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Proxy{client: client, logger: logger.WithComponent(log.ComponentInsights)}
}

// Handle processes a raw request body. It never panics or returns an error;
// every outcome is expressed as a Result.
func (p *Proxy) Handle(ctx context.Context, body []byte) Result {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		p.logger.ErrorContext(ctx, "Insights request undecodable",
			log.FieldError, err.Error(), log.FieldErrorType, log.ErrorTypeValidation)
		return errorResult(http.StatusInternalServerError, MsgInternal)
	}

	var insight Insight
	err := validate(len(req.Expenses), req.OpenRouterAPIKey)
	if err == nil {
		var total core.Money
		var breakdown []core.CategoryShare
		if total, breakdown, err = aggregate(req.Expenses); err == nil {
			insight, err = p.analyse(ctx, req.OpenRouterAPIKey, len(req.Expenses), total, breakdown)
		}
	}
	switch {
	case err == nil:
		return Result{Status: http.StatusOK, Body: insight}
	case errors.Is(err, ErrNoExpenses):
		return errorResult(http.StatusBadRequest, MsgNoExpenses)
	case errors.Is(err, ErrMissingKey):
		return errorResult(http.StatusBadRequest, MsgMissingKey)
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return errorResult(http.StatusInternalServerError, MsgUpstream)
	}
	return errorResult(http.StatusInternalServerError, MsgInternal)
}

// Generate analyses expenses, the whole list regardless of month, and asks the
// model for advice. Validation happens before any outbound call.
func (p *Proxy) Generate(ctx context.Context, apiKey string, expenses []core.Expense) (Insight, error) {
	return p.analyse(ctx, apiKey, len(expenses), core.Total(expenses), core.Breakdown(expenses))
}

func (p *Proxy) analyse(ctx context.Context, apiKey string, count int, total core.Money, breakdown []core.CategoryShare) (Insight, error) {
	if err := validate(count, apiKey); err != nil {
		return Insight{}, err
	}

	prompt := BuildPrompt(total, count, breakdown)

	text, err := p.client.Complete(ctx, apiKey, prompt)
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpGenerate).WithError(err)
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			fields[log.FieldUpstreamStatus] = upstream.Status
			fields[log.FieldUpstreamBody] = upstream.Body
			fields.WithErrorType(log.ErrorTypeUpstream)
			p.logger.ErrorContext(ctx, "OpenRouter returned an error", fields.ToSlice()...)
		} else {
			fields.WithErrorType(log.ErrorTypeInternal)
			p.logger.ErrorContext(ctx, "OpenRouter call failed", fields.ToSlice()...)
		}
		return Insight{}, fmt.Errorf("generate insights: %w", err)
	}
	if text == "" {
		text = FallbackInsight
	}

	summary := Summary{
		TotalSpending:    total.Dollars(),
		TransactionCount: count,
	}
	if len(breakdown) > 0 {
		top := breakdown[0]
		summary.TopCategory = &TopCategory{
			Category:   string(top.Category),
			Amount:     top.Total.Dollars(),
			Percentage: fmt.Sprintf("%.1f", top.Percentage),
		}
	}

	p.logger.InfoContext(ctx, "Insights generated",
		log.FieldOperation, log.OpGenerate,
		"transactions", count)
	return Insight{Insights: text, Summary: summary}, nil
}

// validate checks the list before the key, and both before any outbound call.
func validate(count int, apiKey string) error {
	if count == 0 {
		return ErrNoExpenses
	}
	if apiKey == "" {
		return ErrMissingKey
	}
	return nil
}

// aggregate groups client-supplied amounts by category like core.Breakdown,
// but sums the exact amounts and rounds to cents only once per total, so
// sub-cent amounts add up instead of vanishing one by one. Amounts and
// categories are not validated.
func aggregate(in []ExpenseInput) (core.Money, []core.CategoryShare, error) {
	type group struct {
		category core.Category
		sum      decimal.Decimal
	}
	var groups []group
	index := make(map[string]int)
	total := decimal.Zero
	for _, e := range in {
		amount := decimal.NewFromFloat(e.Amount)
		total = total.Add(amount)
		i, ok := index[e.Category]
		if !ok {
			i = len(groups)
			index[e.Category] = i
			groups = append(groups, group{category: core.Category(e.Category), sum: decimal.Zero})
		}
		groups[i].sum = groups[i].sum.Add(amount)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].sum.GreaterThan(groups[b].sum)
	})

	totalMoney, err := toMoney(total)
	if err != nil {
		return core.Money{}, nil, err
	}
	shares := make([]core.CategoryShare, len(groups))
	for i, g := range groups {
		m, err := toMoney(g.sum)
		if err != nil {
			return core.Money{}, nil, err
		}
		shares[i] = core.CategoryShare{Category: g.category, Total: m}
		if !total.IsZero() {
			shares[i].Percentage, _ = g.sum.Div(total).Mul(decimal.NewFromInt(100)).Float64()
		}
	}
	return totalMoney, shares, nil
}

func toMoney(d decimal.Decimal) (core.Money, error) {
	cents := d.Shift(2).Round(0)
	if !cents.Abs().LessThan(maxTotalCents) {
		return core.Money{}, ErrAmountTooLarge
	}
	return core.Money{Cents: cents.IntPart()}, nil
}
