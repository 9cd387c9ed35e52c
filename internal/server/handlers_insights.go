package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

type insightRequest struct {
	Query string `json:"query"`
}

type generateInsightRequest struct {
	Query string   `json:"query"`
	Tags  []string `json:"tags"`
}

// handleAnalyzeInsight answers a free-text question over the user's expense
// history. Nothing is persisted.
func (s *Server) handleAnalyzeInsight(w http.ResponseWriter, r *http.Request) {
	var req insightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text, _, ok := s.analyzeQuery(w, r, req.Query)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"query": req.Query, "insight": text})
}

// handleGenerateInsight answers a query and stores the result with the
// caller's tags. When the user has no expense data there is nothing worth
// keeping, so the canned message is returned without a row.
func (s *Server) handleGenerateInsight(w http.ResponseWriter, r *http.Request) {
	var req generateInsightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text, parsed, ok := s.analyzeQuery(w, r, req.Query)
	if !ok {
		return
	}

	response := map[string]any{"query": req.Query, "insight": text}
	if len(parsed) > 0 {
		insight := &model.Insight{
			UserID:      userID(r.Context()),
			Query:       req.Query,
			InsightText: text,
			Tags:        req.Tags,
		}
		id, err := s.store.SaveInsight(r.Context(), insight)
		if err != nil {
			respondStorageError(w, err)
			return
		}
		response["insight_id"] = id
	}
	respondJSON(w, http.StatusOK, response)
}

// analyzeQuery runs the shared validation and analysis for both insight
// endpoints. It writes the error response itself when ok is false.
func (s *Server) analyzeQuery(w http.ResponseWriter, r *http.Request, query string) (string, []model.ParsedExpense, bool) {
	if s.engine == nil {
		respondError(w, http.StatusServiceUnavailable, "AI service not configured")
		return "", nil, false
	}
	if query == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return "", nil, false
	}

	parsed, err := s.loadParsedExpenses(r, userID(r.Context()))
	if err != nil {
		respondStorageError(w, err)
		return "", nil, false
	}

	text, err := s.engine.AnalyzeExpenses(r.Context(), query, parsed)
	if err != nil {
		respondError(w, http.StatusBadGateway, "insight generation failed")
		return "", nil, false
	}
	return text, parsed, true
}

// loadParsedExpenses materializes a user's stored expenses for analysis,
// skipping records whose payload no longer unmarshals.
func (s *Server) loadParsedExpenses(r *http.Request, user string) ([]model.ParsedExpense, error) {
	expenses, err := s.store.ListExpenses(r.Context(), user)
	if err != nil {
		return nil, err
	}

	parsed := make([]model.ParsedExpense, 0, len(expenses))
	for _, exp := range expenses {
		var p model.ParsedExpense
		if unmarshalErr := json.Unmarshal([]byte(exp.ParsedData), &p); unmarshalErr != nil {
			slog.Warn("skipping expense with malformed parsed data", "id", exp.ID)
			continue
		}
		parsed = append(parsed, p)
	}
	return parsed, nil
}

func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := s.store.ListInsights(r.Context(), userID(r.Context()))
	if err != nil {
		respondStorageError(w, err)
		return
	}
	if insights == nil {
		insights = []model.Insight{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"insights": insights})
}

func (s *Server) handleDeleteInsight(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid insight id")
		return
	}
	if err := s.store.DeleteInsight(r.Context(), userID(r.Context()), id); err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}
