package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/engine"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/oracle"
	"github.com/ledgerlens/ledgerlens/internal/storage"
)

func newTestServer(t *testing.T, eng *engine.Engine) *Server {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	return New(store, eng, DefaultConfig())
}

func newParseEngine(t *testing.T) *engine.Engine {
	t.Helper()
	mock := &oracle.MockClient{}
	mock.Stub("Is this a detailed itemized expense", "NO")
	mock.Stub("CONTEXT ANALYSIS - WHY", `{
		"participants": ["me", "Sam"],
		"is_shared": true,
		"expense_type": "shared",
		"splitting_method": "equal_split",
		"split_ratio": {"me": 0.5, "Sam": 0.5},
		"context_analysis": "Split with Sam",
		"people_mentioned": ["Sam"],
		"financial_relationship": "shared_expense"
	}`)
	mock.Stub("Parse this expense into line items", `{
		"line_items": [{"description": "Lunch", "amount": 50.0}],
		"total_amount": 50.0,
		"expense_date": null
	}`)
	return engine.NewWithConfig(mock, engine.Config{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	})
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doRequest(t, srv.Router(), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "not configured", body["oracle"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestParseExpenseWithoutOracle(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doRequest(t, srv.Router(), http.MethodPost, "/parse-expense", parseRequest{Text: "Coffee $5"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestParseExpenseEmptyText(t *testing.T) {
	srv := newTestServer(t, newParseEngine(t))
	rec := doRequest(t, srv.Router(), http.MethodPost, "/parse-expense", parseRequest{Text: "   "})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "expense text cannot be empty", body["error"])
}

func TestParseExpenseRoundtrip(t *testing.T) {
	srv := newTestServer(t, newParseEngine(t))
	router := srv.Router()

	rec := doRequest(t, router, http.MethodPost, "/parse-expense", parseRequest{Text: "Lunch $50, split with Sam"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Contains(t, body, "expense_id")

	parsed, ok := body["parsed"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 50.0, parsed["total_amount"])
	assert.Equal(t, true, parsed["is_shared"])

	// the expense is listed back
	rec = doRequest(t, router, http.MethodGet, "/expenses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)
	expenses, ok := list["expenses"].([]any)
	require.True(t, ok)
	require.Len(t, expenses, 1)

	// allocations recomputed on demand
	id := int64(body["expense_id"].(float64))
	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/expenses/%d/allocations", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	alloc := decodeBody(t, rec)
	allocations, ok := alloc["user_allocations"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 25.0, allocations["me"])
	assert.Equal(t, 25.0, allocations["Sam"])

	// deletable
	rec = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/expenses/%d", id), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/expenses/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExpensesIsolatedPerUser(t *testing.T) {
	srv := newTestServer(t, newParseEngine(t))
	router := srv.Router()

	rec := doRequest(t, router, http.MethodPost, "/parse-expense", parseRequest{Text: "Lunch $50, split with Sam"})
	require.Equal(t, http.StatusOK, rec.Code)

	// a different bearer token sees nothing
	req := httptest.NewRequest(http.MethodGet, "/expenses", nil)
	req.Header.Set("Authorization", "Bearer bob")
	other := httptest.NewRecorder()
	router.ServeHTTP(other, req)

	require.Equal(t, http.StatusOK, other.Code)
	var list map[string]any
	require.NoError(t, json.Unmarshal(other.Body.Bytes(), &list))
	assert.Empty(t, list["expenses"])
}

func newInsightEngine(t *testing.T, answer string) *engine.Engine {
	t.Helper()
	mock := &oracle.MockClient{}
	mock.Stub("", answer)
	return engine.NewWithConfig(mock, engine.Config{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	})
}

func TestAnalyzeInsightDoesNotStore(t *testing.T) {
	srv := newTestServer(t, newInsightEngine(t, "You spend a lot on lunch."))
	router := srv.Router()
	seedExpense(t, srv, "alice")

	rec := doRequest(t, router, http.MethodPost, "/insights", insightRequest{Query: "spending?"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "You spend a lot on lunch.", body["insight"])
	assert.NotContains(t, body, "insight_id")

	rec = doRequest(t, router, http.MethodGet, "/insights", nil)
	list := decodeBody(t, rec)
	assert.Empty(t, list["insights"])
}

func TestGenerateInsightStoresWithTags(t *testing.T) {
	srv := newTestServer(t, newInsightEngine(t, "Mostly food."))
	router := srv.Router()
	seedExpense(t, srv, "alice")

	rec := doRequest(t, router, http.MethodPost, "/insights/generate", generateInsightRequest{
		Query: "food?",
		Tags:  []string{"food", "monthly"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Mostly food.", body["insight"])
	require.Contains(t, body, "insight_id")
	id := int64(body["insight_id"].(float64))

	rec = doRequest(t, router, http.MethodGet, "/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)
	insights, ok := list["insights"].([]any)
	require.True(t, ok)
	require.Len(t, insights, 1)
	stored := insights[0].(map[string]any)
	assert.Equal(t, "Mostly food.", stored["insight_text"])
	assert.Equal(t, []any{"food", "monthly"}, stored["tags"])

	rec = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/insights/%d", id), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/insights", nil)
	list = decodeBody(t, rec)
	assert.Empty(t, list["insights"])
}

func TestGenerateInsightSkipsStoreWithoutData(t *testing.T) {
	srv := newTestServer(t, newInsightEngine(t, "unreachable"))
	router := srv.Router()

	rec := doRequest(t, router, http.MethodPost, "/insights/generate", generateInsightRequest{Query: "spending?"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, engine.NoExpensesMessage, body["insight"])
	assert.NotContains(t, body, "insight_id")

	rec = doRequest(t, router, http.MethodGet, "/insights", nil)
	list := decodeBody(t, rec)
	assert.Empty(t, list["insights"])
}

func TestInsightQueryRequired(t *testing.T) {
	srv := newTestServer(t, newInsightEngine(t, "unused"))
	router := srv.Router()

	rec := doRequest(t, router, http.MethodPost, "/insights", insightRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/insights/generate", generateInsightRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInsightsWithoutOracle(t *testing.T) {
	srv := newTestServer(t, nil)
	router := srv.Router()

	rec := doRequest(t, router, http.MethodPost, "/insights", insightRequest{Query: "spending?"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/insights/generate", generateInsightRequest{Query: "spending?"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func seedExpense(t *testing.T, srv *Server, user string) {
	t.Helper()
	parsed := model.ParsedExpense{
		ExpenseType: model.ExpenseTypePersonal,
		TotalAmount: 15.50,
		LineItems: []model.LineItem{{
			Description: "Lunch at Chipotle",
			Category:    model.CategoryFoodDining,
			Amount:      15.50,
			Splits:      []model.Split{{Participant: model.Self, Amount: 15.50}},
		}},
		Status: "success",
	}
	data, err := json.Marshal(parsed)
	require.NoError(t, err)

	_, err = srv.store.SaveExpense(context.Background(), &model.Expense{
		UserID:       user,
		OriginalText: "Lunch at Chipotle $15.50",
		ParsedData:   string(data),
	})
	require.NoError(t, err)
}

func TestDashboardStats(t *testing.T) {
	srv := newTestServer(t, nil)
	seedExpense(t, srv, "alice")

	// Last month, with a non-canonical self name; only last_month_total
	// should pick it up.
	lastMonth := time.Now().UTC().AddDate(0, -1, 0)
	saveDatedExpense(t, srv, "alice", "Parking $10", &lastMonth, model.ParsedExpense{
		ExpenseType: model.ExpenseTypePersonal,
		TotalAmount: 10.00,
		LineItems: []model.LineItem{{
			Description: "Parking",
			Category:    model.CategoryTransportation,
			Amount:      10.00,
			Splits:      []model.Split{{Participant: "Myself", Amount: 10.00}},
		}},
		Status: "success",
	})

	// Months ago; counts toward the history totals but no month bucket.
	old := time.Now().UTC().AddDate(0, -3, 0)
	saveDatedExpense(t, srv, "alice", "Dinner $40, split with Sam", &old, model.ParsedExpense{
		ExpenseType: model.ExpenseTypeShared,
		TotalAmount: 40.00,
		LineItems: []model.LineItem{{
			Description: "Dinner",
			Category:    model.CategoryFoodDining,
			Amount:      40.00,
			Splits: []model.Split{
				{Participant: model.Self, Amount: 20.00},
				{Participant: "Sam", Amount: 20.00},
			},
		}},
		Status: "success",
	})

	rec := doRequest(t, srv.Router(), http.MethodGet, "/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats dashboardStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))

	assert.Equal(t, 3, stats.ExpenseCount)
	assert.Equal(t, 2, stats.PersonalCount)
	assert.Equal(t, 1, stats.SharedCount)
	assert.Equal(t, 15.50, stats.MonthTotal)
	assert.Equal(t, 10.00, stats.LastMonthTotal)
	assert.Equal(t, 15.50, stats.CategoryBreakdown[model.CategoryFoodDining])
	assert.NotContains(t, stats.CategoryBreakdown, model.CategoryTransportation)
	assert.Equal(t, time.Now().UTC().Format("2006-01"), stats.Month)
}

func TestDebugExpenses(t *testing.T) {
	srv := newTestServer(t, nil)
	router := srv.Router()
	seedExpense(t, srv, "alice")

	// a record whose payload no longer unmarshals
	_, err := srv.store.SaveExpense(context.Background(), &model.Expense{
		UserID:       "alice",
		OriginalText: "corrupt record",
		ParsedData:   "{not json",
	})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodGet, "/debug/expenses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "alice", body["user_id"])
	assert.Equal(t, 2.0, body["count"])

	views, ok := body["expenses"].([]any)
	require.True(t, ok)
	require.Len(t, views, 2)

	// newest first: the corrupt record reports an error, the good one gets
	// its allocations recomputed
	corrupt := views[0].(map[string]any)
	assert.NotEmpty(t, corrupt["parse_error"])

	good := views[1].(map[string]any)
	allocations, ok := good["user_allocations"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 15.50, allocations["me"])
}

func saveDatedExpense(t *testing.T, srv *Server, user, text string, date *time.Time, parsed model.ParsedExpense) {
	t.Helper()
	data, err := json.Marshal(parsed)
	require.NoError(t, err)
	_, err = srv.store.SaveExpense(context.Background(), &model.Expense{
		UserID:       user,
		OriginalText: text,
		ParsedData:   string(data),
		ExpenseDate:  date,
	})
	require.NoError(t, err)
}

func TestBudget(t *testing.T) {
	srv := newTestServer(t, nil)
	router := srv.Router()

	rec := doRequest(t, router, http.MethodGet, "/budget", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Nil(t, body["monthly_limit"])

	rec = doRequest(t, router, http.MethodPost, "/budget", budgetRequest{MonthlyLimit: 500})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/budget", nil)
	body = decodeBody(t, rec)
	assert.Equal(t, 500.0, body["monthly_limit"])

	rec = doRequest(t, router, http.MethodPost, "/budget", budgetRequest{MonthlyLimit: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidIDPaths(t *testing.T) {
	srv := newTestServer(t, nil)
	router := srv.Router()

	rec := doRequest(t, router, http.MethodDelete, "/expenses/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/insights/0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
