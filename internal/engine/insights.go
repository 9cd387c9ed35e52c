package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/split"
)

// NoExpensesMessage is returned when a user asks for insights before adding
// any expenses.
const NoExpensesMessage = "You don't have any expense data yet. Please add some expenses first."

// summaryLimit caps how many recent expenses feed a single insight prompt,
// bounding token usage.
const (
	summaryLimit    = 30
	subQueryLimit   = 15
	sampleLimit     = 5
	sampleItemLimit = 2
)

// complexKeywords mark queries that should be split into focused sub-queries.
var complexKeywords = []string{
	"compare", "versus", "vs", "trend", "over time",
	"month by month", "category breakdown", "detailed analysis",
	"both", "and also", "as well as",
}

// AnalyzeExpenses answers a free-text question over the user's expense
// history. The heavy lifting is delegated to the oracle; this side only
// summarizes the history to keep prompts bounded and splits complex queries
// into focused pieces.
func (e *Engine) AnalyzeExpenses(ctx context.Context, query string, expenses []model.ParsedExpense) (string, error) {
	if len(expenses) == 0 {
		return NoExpensesMessage, nil
	}

	if shouldSplitQuery(query) {
		return e.analyzeComplexQuery(ctx, query, expenses)
	}

	summary := summarizeExpenses(expenses, summaryLimit)
	prompt := fmt.Sprintf(`Question: %q

Expense Summary: %s
Categories: %s
Recent samples: %s
Total analyzed: %d expenses

Provide insights based on this data.`,
		query,
		summary.Summary,
		mustJSON(summary.Categories),
		mustJSON(summary.Samples),
		summary.Analyzed)

	return e.generate(ctx, prompt, insightSystem, false)
}

// analyzeComplexQuery splits a query into sub-queries and answers each with a
// smaller data slice, degrading per-part instead of failing the whole query.
func (e *Engine) analyzeComplexQuery(ctx context.Context, query string, expenses []model.ParsedExpense) (string, error) {
	subQueries := splitQuery(query)
	slog.Info("handling complex insight query", "sub_queries", len(subQueries))

	summary := summarizeExpenses(expenses, subQueryLimit)

	results := make([]string, 0, len(subQueries))
	for i, sub := range subQueries {
		prompt := fmt.Sprintf(`Focus on: %q

Data: %s
Categories: %s

Brief answer (2-3 sentences):`, sub, summary.Summary, mustJSON(summary.Categories))

		answer, err := e.generate(ctx, prompt, subQuerySystem, false)
		if err != nil {
			slog.Error("sub-query analysis failed", "index", i, "error", err)
			answer = "Unable to analyze this aspect."
		}
		results = append(results, fmt.Sprintf("**%s**\n%s", sub, answer))
	}

	response := strings.Join(results, "\n\n")
	if len(results) > 1 {
		response += fmt.Sprintf("\n\n**Summary:** Based on your %d recent expenses.", summary.Analyzed)
	}
	return response, nil
}

// expenseSummary is the condensed view of a user's history fed to the oracle.
type expenseSummary struct {
	Categories map[string]float64
	Summary    string
	Samples    []expenseSample
	Analyzed   int
}

type expenseSample struct {
	Type   string   `json:"type"`
	Items  []string `json:"items"`
	Amount float64  `json:"amount"`
}

// summarizeExpenses condenses up to limit recent expenses into summary
// statistics, a category breakdown, and a few samples for context.
func summarizeExpenses(expenses []model.ParsedExpense, limit int) expenseSummary {
	recent := expenses
	if len(recent) > limit {
		recent = recent[:limit]
	}

	var amounts []float64
	personal := 0
	categories := make(map[string]float64)

	for _, exp := range recent {
		amounts = append(amounts, exp.TotalAmount)
		if exp.ExpenseType != model.ExpenseTypeShared {
			personal++
		}
		for _, item := range exp.LineItems {
			category := model.CategorizeDescription(item.Description, item.Category)
			categories[category] += item.Amount
		}
	}

	var samples []expenseSample
	for _, exp := range recent {
		if len(samples) == sampleLimit {
			break
		}
		var items []string
		for _, item := range exp.LineItems {
			if len(items) == sampleItemLimit {
				break
			}
			items = append(items, item.Description)
		}
		samples = append(samples, expenseSample{
			Type:   exp.ExpenseType,
			Amount: exp.TotalAmount,
			Items:  items,
		})
	}

	return expenseSummary{
		Summary: fmt.Sprintf("Total: %.2f, Personal: %d, Shared: %d",
			split.Sum(amounts), personal, len(recent)-personal),
		Categories: categories,
		Samples:    samples,
		Analyzed:   len(recent),
	}
}

// shouldSplitQuery reports whether a query is complex enough to split.
func shouldSplitQuery(query string) bool {
	if len(strings.Fields(query)) <= 10 {
		return false
	}
	lower := strings.ToLower(query)
	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// splitQuery breaks a complex query into focused sub-queries.
func splitQuery(query string) []string {
	lower := strings.ToLower(query)

	if strings.Contains(lower, "compare") || strings.Contains(lower, "vs") {
		if strings.Contains(query, " and ") {
			var parts []string
			for _, part := range strings.Split(query, " and ") {
				part = strings.TrimSpace(part)
				if len(part) > 5 {
					parts = append(parts, part)
				}
			}
			if len(parts) > 0 {
				return parts
			}
		}
	}

	if strings.Contains(lower, "trend") || strings.Contains(lower, "over time") {
		return []string{
			"What are my spending trends?",
			"How has my spending changed recently?",
		}
	}

	if len(strings.Fields(query)) > 15 {
		var parts []string
		for _, sentence := range strings.Split(query, ".") {
			sentence = strings.TrimSpace(sentence)
			if len(sentence) > 10 {
				parts = append(parts, sentence+"?")
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}

	return []string{query}
}

// mustJSON renders a value for prompt interpolation. Prompt assembly never
// fails on marshaling; unmarshalable values become an empty object.
func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
