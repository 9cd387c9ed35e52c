package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/split"
)

// dashboardStats summarizes the user's history: expense counts cover all
// records, the totals and category breakdown are month-scoped and count only
// the user's own portion of each expense.
type dashboardStats struct {
	CategoryBreakdown map[string]float64 `json:"category_breakdown"`
	Month             string             `json:"month"`
	MonthTotal        float64            `json:"month_total"`
	LastMonthTotal    float64            `json:"last_month_total"`
	ExpenseCount      int                `json:"expense_count"`
	PersonalCount     int                `json:"personal_count"`
	SharedCount       int                `json:"shared_count"`
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	user := userID(r.Context())
	expenses, err := s.store.ListExpenses(r.Context(), user)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	now := time.Now().UTC()
	lastMonth := now.AddDate(0, -1, 0)
	stats := dashboardStats{
		Month:             now.Format("2006-01"),
		CategoryBreakdown: make(map[string]float64),
	}

	var monthAmounts, lastMonthAmounts []float64
	for _, exp := range expenses {
		var parsed model.ParsedExpense
		if unmarshalErr := json.Unmarshal([]byte(exp.ParsedData), &parsed); unmarshalErr != nil {
			slog.Warn("skipping expense with malformed parsed data", "id", exp.ID)
			continue
		}

		// Counts cover the whole history; amounts are month-scoped below.
		stats.ExpenseCount++
		if parsed.ExpenseType == model.ExpenseTypeShared {
			stats.SharedCount++
		} else {
			stats.PersonalCount++
		}

		when := exp.CreatedAt
		if exp.ExpenseDate != nil {
			when = *exp.ExpenseDate
		}
		thisMonth := when.Year() == now.Year() && when.Month() == now.Month()
		prevMonth := when.Year() == lastMonth.Year() && when.Month() == lastMonth.Month()
		if !thisMonth && !prevMonth {
			continue
		}

		for _, item := range parsed.LineItems {
			for _, sp := range item.Splits {
				if !model.IsSelf(sp.Participant) {
					continue
				}
				if !thisMonth {
					lastMonthAmounts = append(lastMonthAmounts, sp.Amount)
					continue
				}
				monthAmounts = append(monthAmounts, sp.Amount)
				category := model.CategorizeDescription(item.Description, item.Category)
				stats.CategoryBreakdown[category] = split.Sum([]float64{
					stats.CategoryBreakdown[category], sp.Amount,
				})
			}
		}
	}
	stats.MonthTotal = split.Sum(monthAmounts)
	stats.LastMonthTotal = split.Sum(lastMonthAmounts)

	respondJSON(w, http.StatusOK, stats)
}

type budgetRequest struct {
	MonthlyLimit float64 `json:"monthly_limit"`
}

// Budgets are held in memory per user; they reset on restart.
func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	s.budgetMu.RLock()
	limit, ok := s.budgets[userID(r.Context())]
	s.budgetMu.RUnlock()

	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"monthly_limit": nil})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"monthly_limit": limit})
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MonthlyLimit < 0 {
		respondError(w, http.StatusBadRequest, "monthly_limit must be non-negative")
		return
	}

	s.budgetMu.Lock()
	s.budgets[userID(r.Context())] = req.MonthlyLimit
	s.budgetMu.Unlock()

	respondJSON(w, http.StatusOK, map[string]any{"monthly_limit": req.MonthlyLimit})
}
