package insights

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"budgetly/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wantPrompt = "You are a financial advisor. Analyze spending data and provide 3-5 actionable money-saving tips.\n\n" +
	"Total: $80.00\nTransactions: 2\n\nCategories:\n" +
	"- food: $50.00 (62.5%)\n- transport: $30.00 (37.5%)\n\n" +
	"Provide specific advice based on highest spending categories."

type upstream struct {
	server   *httptest.Server
	calls    atomic.Int32
	lastBody chatRequest
	lastAuth string
}

func newUpstream(t *testing.T, status int, body string) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		u.lastAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &u.lastBody)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(u.server.Close)
	return u
}

func newTestHandler(u *upstream) http.Handler {
	client := NewOpenRouterClient(ClientConfig{BaseURL: u.server.URL + "/api/v1/"})
	return Handler(NewProxy(client, nil))
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/ai-insights", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization, X-Client-Info, Apikey", rec.Header().Get("Access-Control-Allow-Headers"))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

const twoExpenses = `{"expenses":[
	{"amount":50,"category":"food","date":"2025-06-02"},
	{"amount":30,"category":"transport","date":"2025-06-03","description":"bus"}
],"openRouterApiKey":"sk-test"}`

func TestHandler_Preflight(t *testing.T) {
	u := newUpstream(t, http.StatusOK, `{}`)
	h := newTestHandler(u)

	req := httptest.NewRequest(http.MethodOptions, "/functions/v1/ai-insights", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assertCORS(t, rec)
	assert.Zero(t, u.calls.Load())
}

func TestHandler_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"empty list", `{"expenses":[],"openRouterApiKey":"sk-test"}`, http.StatusBadRequest, MsgNoExpenses},
		{"missing list", `{"openRouterApiKey":"sk-test"}`, http.StatusBadRequest, MsgNoExpenses},
		{"empty list checked before key", `{"expenses":[]}`, http.StatusBadRequest, MsgNoExpenses},
		{"missing key", `{"expenses":[{"amount":5,"category":"food","date":"2025-06-01"}]}`, http.StatusBadRequest, MsgMissingKey},
		{"malformed json", `{"expenses":`, http.StatusInternalServerError, MsgInternal},
		{"wrong amount type", `{"expenses":[{"amount":"5"}],"openRouterApiKey":"k"}`, http.StatusInternalServerError, MsgInternal},
		{"amount beyond cents range", `{"expenses":[{"amount":1e300,"category":"food"}],"openRouterApiKey":"k"}`, http.StatusInternalServerError, MsgInternal},
		{"key checked before amounts", `{"expenses":[{"amount":1e300,"category":"food"}]}`, http.StatusBadRequest, MsgMissingKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpstream(t, http.StatusOK, `{}`)
			rec := post(t, newTestHandler(u), tt.body)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assertCORS(t, rec)
			assert.Equal(t, tt.message, decodeError(t, rec))
			assert.Zero(t, u.calls.Load(), "no upstream call expected")
		})
	}
}

func TestHandler_Success(t *testing.T) {
	u := newUpstream(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"Cook at home more."}}]}`)
	rec := post(t, newTestHandler(u), twoExpenses)

	require.Equal(t, http.StatusOK, rec.Code)
	assertCORS(t, rec)
	assert.Equal(t, int32(1), u.calls.Load())
	assert.Equal(t, "Bearer sk-test", u.lastAuth)
	assert.Equal(t, DefaultModel, u.lastBody.Model)
	require.Len(t, u.lastBody.Messages, 1)
	assert.Equal(t, "user", u.lastBody.Messages[0].Role)
	assert.Equal(t, wantPrompt, u.lastBody.Messages[0].Content)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Cook at home more.", got["insights"])

	summary := got["summary"].(map[string]any)
	assert.Equal(t, 80.0, summary["totalSpending"])
	assert.Equal(t, 2.0, summary["transactionCount"])
	top := summary["topCategory"].(map[string]any)
	assert.Equal(t, "food", top["category"])
	assert.Equal(t, 50.0, top["amount"])
	assert.Equal(t, "62.5", top["percentage"])
}

func TestHandler_SubCentAmountsSumBeforeRounding(t *testing.T) {
	u := newUpstream(t, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`)
	rec := post(t, newTestHandler(u), `{"expenses":[
		{"amount":0.005,"category":"food","date":"2025-06-01"},
		{"amount":0.005,"category":"food","date":"2025-06-02"}
	],"openRouterApiKey":"k"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, u.lastBody.Messages, 1)
	prompt := u.lastBody.Messages[0].Content
	assert.Contains(t, prompt, "Total: $0.01\n")
	assert.Contains(t, prompt, "- food: $0.01 (100.0%)")
}

func TestHandler_ZeroTotalHasZeroPercentages(t *testing.T) {
	u := newUpstream(t, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`)
	rec := post(t, newTestHandler(u), `{"expenses":[
		{"amount":0,"category":"food","date":"2025-06-01"},
		{"amount":0,"category":"bills","date":"2025-06-02"}
	],"openRouterApiKey":"k"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Summary Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Summary.TopCategory)
	assert.Equal(t, "food", got.Summary.TopCategory.Category)
	assert.Equal(t, "0.0", got.Summary.TopCategory.Percentage)
	assert.Contains(t, u.lastBody.Messages[0].Content, "- bills: $0.00 (0.0%)")
}

func TestHandler_FallbackInsight(t *testing.T) {
	for name, body := range map[string]string{
		"no choices":    `{"choices":[]}`,
		"empty content": `{"choices":[{"message":{"content":""}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			u := newUpstream(t, http.StatusOK, body)
			rec := post(t, newTestHandler(u), twoExpenses)

			require.Equal(t, http.StatusOK, rec.Code)
			var got Insight
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, FallbackInsight, got.Insights)
		})
	}
}

func TestHandler_UpstreamFailureNotRetried(t *testing.T) {
	u := newUpstream(t, http.StatusTooManyRequests, `{"error":"rate limited"}`)
	rec := post(t, newTestHandler(u), twoExpenses)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MsgUpstream, decodeError(t, rec))
	assert.Equal(t, int32(1), u.calls.Load(), "exactly one upstream request")
}

func TestHandler_UndecodableUpstreamBody(t *testing.T) {
	u := newUpstream(t, http.StatusOK, `<html>gateway</html>`)
	rec := post(t, newTestHandler(u), twoExpenses)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MsgInternal, decodeError(t, rec))
}

func TestHandler_TransportFailure(t *testing.T) {
	u := newUpstream(t, http.StatusOK, `{}`)
	h := newTestHandler(u)
	u.server.Close()

	rec := post(t, h, twoExpenses)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MsgInternal, decodeError(t, rec))
}

func TestBuildPrompt(t *testing.T) {
	expenses := []core.Expense{
		{Category: core.CategoryFood, Amount: core.Money{Cents: 5000}},
		{Category: core.CategoryTransport, Amount: core.Money{Cents: 3000}},
	}
	got := BuildPrompt(core.Total(expenses), len(expenses), core.Breakdown(expenses))
	assert.Equal(t, wantPrompt, got)
}

type stubCompleter struct {
	text string
	err  error
	n    int
}

func (s *stubCompleter) Complete(context.Context, string, string) (string, error) {
	s.n++
	return s.text, s.err
}

func TestProxy_GenerateUsesWholeListAndUnknownCategories(t *testing.T) {
	stub := &stubCompleter{text: "ok"}
	p := NewProxy(stub, nil)

	insight, err := p.Generate(context.Background(), "key", []core.Expense{
		{Category: "groceries", Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, 1, 1)},
		{Category: core.CategoryFood, Amount: core.Money{Cents: 3000}, Date: core.NewDate(2025, 6, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 40.0, insight.Summary.TotalSpending)
	assert.Equal(t, 2, insight.Summary.TransactionCount)
	require.NotNil(t, insight.Summary.TopCategory)
	assert.Equal(t, "food", insight.Summary.TopCategory.Category)
	assert.Equal(t, "75.0", insight.Summary.TopCategory.Percentage)
}

func TestProxy_GenerateValidatesBeforeCalling(t *testing.T) {
	stub := &stubCompleter{text: "ok"}
	p := NewProxy(stub, nil)

	_, err := p.Generate(context.Background(), "key", nil)
	assert.ErrorIs(t, err, ErrNoExpenses)
	_, err = p.Generate(context.Background(), "", []core.Expense{{Amount: core.Money{Cents: 1}}})
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.Zero(t, stub.n)

	stub.err = &UpstreamError{Status: 502, Body: "bad gateway"}
	_, err = p.Generate(context.Background(), "key", []core.Expense{{Amount: core.Money{Cents: 1}}})
	var upstreamErr *UpstreamError
	assert.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, 502, upstreamErr.Status)
}
