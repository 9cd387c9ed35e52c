package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/split"
)

type parseRequest struct {
	Text string `json:"text"`
}

// expenseView is the wire representation of a stored expense, with the parsed
// payload inlined as an object rather than a JSON string.
type expenseView struct {
	CreatedAt    time.Time       `json:"created_at"`
	ExpenseDate  *time.Time      `json:"expense_date"`
	OriginalText string          `json:"original_text"`
	Status       string          `json:"status"`
	ParsedData   json.RawMessage `json:"parsed_data"`
	ID           int64           `json:"id"`
}

func (s *Server) handleParseExpense(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		respondError(w, http.StatusServiceUnavailable, "AI service not configured")
		return
	}

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.engine.Parse(r.Context(), req.Text)
	if err != nil {
		var userErr *common.UserError
		if errors.As(err, &userErr) {
			respondError(w, http.StatusBadRequest, userErr.UserMessage)
			return
		}
		slog.Error("expense parsing failed", "error", err, "request_id", requestID(r.Context()))
		respondError(w, http.StatusInternalServerError, "failed to parse expense")
		return
	}

	parsedData, err := json.Marshal(result)
	if err != nil {
		slog.Error("failed to marshal parsed expense", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	expense := &model.Expense{
		UserID:       userID(r.Context()),
		OriginalText: req.Text,
		ParsedData:   string(parsedData),
		Status:       result.Status,
		ExpenseDate:  result.ExpenseDate,
	}
	id, err := s.store.SaveExpense(r.Context(), expense)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"expense_id": id,
		"parsed":     json.RawMessage(parsedData),
	})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.store.ListExpenses(r.Context(), userID(r.Context()))
	if err != nil {
		respondStorageError(w, err)
		return
	}

	views := make([]expenseView, 0, len(expenses))
	for _, exp := range expenses {
		views = append(views, expenseView{
			ID:           exp.ID,
			OriginalText: exp.OriginalText,
			ParsedData:   json.RawMessage(exp.ParsedData),
			Status:       exp.Status,
			CreatedAt:    exp.CreatedAt,
			ExpenseDate:  exp.ExpenseDate,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"expenses": views})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	if err := s.store.DeleteExpense(r.Context(), userID(r.Context()), id); err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// handleExpenseAllocations recomputes per-participant allocations from the
// stored line items, so records written before breakdowns existed still get
// them.
func (s *Server) handleExpenseAllocations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	expense, err := s.store.GetExpense(r.Context(), userID(r.Context()), id)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	var parsed model.ParsedExpense
	if err := json.Unmarshal([]byte(expense.ParsedData), &parsed); err != nil {
		slog.Error("stored expense has malformed parsed data", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "corrupt expense record")
		return
	}

	allocations, breakdown := split.Aggregate(parsed.LineItems)
	respondJSON(w, http.StatusOK, map[string]any{
		"expense_id":                id,
		"user_allocations":          allocations,
		"user_allocation_breakdown": breakdown,
		"total_amount":              parsed.TotalAmount,
	})
}

// debugExpenseView pairs a stored record with allocations recomputed from its
// line items, which surfaces records whose stored breakdown has gone stale.
type debugExpenseView struct {
	expenseView
	UserAllocations map[string]float64 `json:"user_allocations,omitempty"`
	ParseError      string             `json:"parse_error,omitempty"`
}

// handleDebugExpenses dumps the caller's raw records for troubleshooting,
// including ones whose parsed payload no longer unmarshals.
func (s *Server) handleDebugExpenses(w http.ResponseWriter, r *http.Request) {
	user := userID(r.Context())
	expenses, err := s.store.ListExpenses(r.Context(), user)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	views := make([]debugExpenseView, 0, len(expenses))
	for _, exp := range expenses {
		view := debugExpenseView{expenseView: expenseView{
			ID:           exp.ID,
			OriginalText: exp.OriginalText,
			ParsedData:   json.RawMessage(exp.ParsedData),
			Status:       exp.Status,
			CreatedAt:    exp.CreatedAt,
			ExpenseDate:  exp.ExpenseDate,
		}}

		var parsed model.ParsedExpense
		if unmarshalErr := json.Unmarshal([]byte(exp.ParsedData), &parsed); unmarshalErr != nil {
			view.ParseError = unmarshalErr.Error()
			view.ParsedData = nil
		} else {
			allocations, _ := split.Aggregate(parsed.LineItems)
			view.UserAllocations = allocations
		}
		views = append(views, view)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":  user,
		"count":    len(views),
		"expenses": views,
	})
}
