// Package engine implements the expense parsing pipeline: itemization
// detection, item extraction, sharing classification, and split allocation.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/oracle"
	"github.com/ledgerlens/ledgerlens/internal/split"
)

// Engine orchestrates oracle calls and deterministic reconciliation to turn
// free-text expense descriptions into structured, itemized records.
type Engine struct {
	client    oracle.Client
	retryOpts common.RetryOptions
}

// Config holds configuration options for the parsing engine.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig returns the default retry policy: 3 attempts with
// exponential backoff from 4s capped at 10s, applied uniformly to every
// oracle call regardless of stage.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 4 * time.Second,
		MaxDelay:     10 * time.Second,
	}
}

// New creates a parsing engine with the default retry policy.
func New(client oracle.Client) *Engine {
	return NewWithConfig(client, DefaultConfig())
}

// NewWithConfig creates a parsing engine with a custom retry policy.
func NewWithConfig(client oracle.Client, cfg Config) *Engine {
	return &Engine{
		client: client,
		retryOpts: common.RetryOptions{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.InitialDelay,
			MaxDelay:     cfg.MaxDelay,
			Multiplier:   2.0,
		},
	}
}

// generate wraps one oracle call with the uniform retry policy.
func (e *Engine) generate(ctx context.Context, prompt, system string, wantJSON bool) (string, error) {
	var out string
	err := common.WithRetry(ctx, func() error {
		resp, genErr := e.client.Generate(ctx, prompt, system, wantJSON)
		if genErr != nil {
			return &common.RetryableError{Err: genErr, Retryable: true}
		}
		out = resp
		return nil
	}, e.retryOpts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrOracleCallFailed, err)
	}
	return out, nil
}

// pipelineDraft is the orchestrator's intermediate state for one request.
// It is never shared across requests.
type pipelineDraft struct {
	expenseDate    *time.Time
	classification model.ClassificationResult
	lineItems      []model.LineItem
	totalAmount    float64
}

// Parse runs the full pipeline on an expense description. Every stage
// degrades to a deterministic fallback rather than aborting; the only error
// conditions are empty input and a panic escaping the pipeline, which is
// recovered and reported as a CriticalError rather than crashing the process.
func (e *Engine) Parse(ctx context.Context, text string) (result model.ParsedExpense, err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("unexpected panic in expense pipeline",
				"panic", r,
				"text_length", len(text))
			err = &common.CriticalError{Err: fmt.Errorf("%v", r)}
		}
	}()

	if strings.TrimSpace(text) == "" {
		return model.ParsedExpense{}, common.NewUserError("expense text cannot be empty", nil)
	}

	slog.Info("starting expense parsing", "text_length", len(text))

	draft := e.runPipeline(ctx, text)

	items := draft.lineItems
	for i := range items {
		if items[i].AllocationText == "" {
			items[i].AllocationText = items[i].Description
		}
		if len(items[i].Splits) == 0 {
			// An all-zero ratio would leave the amount unaccounted; the
			// submitting user absorbs it instead.
			items[i].Splits = []model.Split{{Participant: model.Self, Amount: items[i].Amount}}
		}
		items[i].Splits = split.Reconcile(items[i].Amount, items[i].Splits)
	}

	amounts := make([]float64, len(items))
	for i, item := range items {
		amounts[i] = item.Amount
	}
	calculated := split.Sum(amounts)

	total := draft.totalAmount
	if math.Abs(calculated-total) > 0.01 {
		slog.Info("adjusting total to computed item sum",
			"declared", total,
			"computed", calculated)
		total = calculated
	}

	totals, breakdown := split.Aggregate(items)

	cls := draft.classification
	result = model.ParsedExpense{
		Participants:            cls.Participants,
		CleanParticipants:       cls.CleanParticipants,
		IsShared:                cls.IsShared,
		ExpenseType:             cls.ExpenseType,
		ExpenseDate:             draft.expenseDate,
		LineItems:               items,
		UserAllocations:         totals,
		UserAllocationBreakdown: breakdown,
		TotalAmount:             total,
		ProcessingTime:          math.Round(time.Since(start).Seconds()*100) / 100,
		Status:                  "success",
	}

	slog.Info("expense parsing complete",
		"expense_type", result.ExpenseType,
		"line_items", len(result.LineItems),
		"total_amount", result.TotalAmount,
		"participants", len(result.Participants))

	return result, nil
}

// runPipeline executes detect → extract → classify → allocate, falling back
// to the simple single-item path whenever a stage yields nothing usable.
func (e *Engine) runPipeline(ctx context.Context, text string) pipelineDraft {
	if e.detectItemized(ctx, text) {
		items := e.extractItems(ctx, text)
		if len(items) > 0 {
			cls := e.classifySharing(ctx, text, items)
			for i := range items {
				items[i].AllocationText = cls.ContextAnalysis
				items[i].Splits = split.Allocate(items[i].Amount, cls.Ratio)
			}
			amounts := make([]float64, len(items))
			for i, item := range items {
				amounts[i] = item.Amount
			}
			return pipelineDraft{
				classification: cls,
				lineItems:      items,
				totalAmount:    split.Sum(amounts),
			}
		}
		slog.Info("itemized expense yielded no items, using simple path")
	}

	return e.simpleParse(ctx, text)
}

// detectItemized asks the oracle whether the text is a multi-item breakdown.
// Detection failure degrades to "not itemized" and never aborts the pipeline.
func (e *Engine) detectItemized(ctx context.Context, text string) bool {
	resp, err := e.generate(ctx, detectPrompt(text), detectSystem, false)
	if err != nil {
		slog.Error("itemized detection failed, using simple path", "error", err)
		return false
	}
	detected := strings.EqualFold(strings.TrimSpace(resp), "YES")
	slog.Info("itemized detection", "detected", detected)
	return detected
}

// rawItem is one extracted line item as returned by the oracle. Amounts may
// arrive as numbers or numeric strings.
type rawItem struct {
	Amount      *flexFloat `json:"amount"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
}

// flexFloat unmarshals from a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// extractItems asks the oracle for individual items. Unparseable entries are
// dropped; categories are snapped to the known set. An oracle failure yields
// an empty list, pushing the pipeline onto the simple path.
func (e *Engine) extractItems(ctx context.Context, text string) []model.LineItem {
	resp, err := e.generate(ctx, extractPrompt(text), extractSystem(), true)
	if err != nil {
		slog.Error("item extraction failed", "error", err)
		return nil
	}

	var rawEntries []json.RawMessage
	if err := json.Unmarshal([]byte(resp), &rawEntries); err != nil {
		slog.Error("item extraction returned malformed JSON",
			"error", fmt.Errorf("%w: %v", common.ErrMalformedOutput, err))
		return nil
	}

	var items []model.LineItem
	for _, entry := range rawEntries {
		var item rawItem
		if err := json.Unmarshal(entry, &item); err != nil {
			slog.Debug("dropping unparseable item", "error", err)
			continue
		}
		if strings.TrimSpace(item.Description) == "" || item.Amount == nil {
			slog.Debug("dropping item missing required fields")
			continue
		}
		items = append(items, model.LineItem{
			Description: item.Description,
			Amount:      float64(*item.Amount),
			Category:    model.CategoryFromString(item.Category),
		})
	}

	slog.Info("extracted items", "count", len(items))
	return items
}

// classifySharing determines whether an expense is personal or shared. Any
// oracle or decode failure lands on the deterministic keyword fallback; this
// stage always produces a valid classification.
func (e *Engine) classifySharing(ctx context.Context, text string, items []model.LineItem) model.ClassificationResult {
	resp, err := e.generate(ctx, classifyPrompt(text, items), classifySystem, true)
	if err != nil {
		slog.Warn("sharing classification failed, using keyword fallback", "error", err)
		return fallbackClassify(text)
	}

	var raw rawClassification
	if err := json.Unmarshal([]byte(resp), &raw); err != nil {
		slog.Warn("sharing classification returned malformed JSON, using keyword fallback",
			"error", fmt.Errorf("%w: %v", common.ErrMalformedOutput, err))
		return fallbackClassify(text)
	}

	cls := adaptClassification(raw)
	slog.Info("sharing classification",
		"relationship", cls.Relationship,
		"is_shared", cls.IsShared,
		"participants", cls.Participants)
	return cls
}

// simpleResult is the oracle's single-object answer on the simple path.
type simpleResult struct {
	TotalAmount *flexFloat `json:"total_amount"`
	ExpenseDate *string    `json:"expense_date"`
	LineItems   []rawItem  `json:"line_items"`
}

// braceSpan finds the first brace-delimited span in a response that failed to
// parse as JSON, for the second recovery tier.
var braceSpan = regexp.MustCompile(`(?s)\{.*\}`)

// simpleParse handles non-itemized expenses with a three-tier JSON recovery
// policy: parse as-is, re-parse the first brace-delimited span, or synthesize
// a single zero-amount item from the input text. Every tier still runs the
// classifier and allocator so the output shape is uniform.
func (e *Engine) simpleParse(ctx context.Context, text string) pipelineDraft {
	cls := e.classifySharing(ctx, text, nil)

	resp, err := e.generate(ctx, simpleParsePrompt(text), simpleParseSystem, true)
	if err != nil {
		slog.Warn("simple parse oracle call failed, synthesizing fallback item", "error", err)
		return e.fallbackDraft(text, cls)
	}

	var parsed simpleResult
	if err := json.Unmarshal([]byte(resp), &parsed); err == nil {
		return e.draftFromSimple(text, parsed, cls)
	}

	slog.Warn("simple parse returned malformed JSON, trying brace extraction")
	if span := braceSpan.FindString(resp); span != "" {
		if err := json.Unmarshal([]byte(span), &parsed); err == nil {
			slog.Info("recovered JSON from brace-delimited span")
			return e.draftFromSimple(text, parsed, cls)
		}
	}

	slog.Warn("JSON recovery exhausted, synthesizing fallback item")
	return e.fallbackDraft(text, cls)
}

// draftFromSimple converts a successfully decoded simple-path result into a
// pipeline draft, categorizing each item from its description.
func (e *Engine) draftFromSimple(text string, parsed simpleResult, cls model.ClassificationResult) pipelineDraft {
	var items []model.LineItem
	for _, raw := range parsed.LineItems {
		description := raw.Description
		if strings.TrimSpace(description) == "" {
			description = "Unknown expense"
		}
		var amount float64
		if raw.Amount != nil {
			amount = float64(*raw.Amount)
		}
		items = append(items, model.LineItem{
			Description:    description,
			Amount:         amount,
			Category:       model.CategorizeDescription(description, raw.Category),
			AllocationText: cls.ContextAnalysis,
			Splits:         split.Allocate(amount, cls.Ratio),
		})
	}

	if len(items) == 0 {
		return e.fallbackDraft(text, cls)
	}

	var total float64
	if parsed.TotalAmount != nil {
		total = float64(*parsed.TotalAmount)
	}

	return pipelineDraft{
		classification: cls,
		lineItems:      items,
		totalAmount:    total,
		expenseDate:    parseExpenseDate(parsed.ExpenseDate),
	}
}

// fallbackDraft is the last recovery tier: one zero-amount line item whose
// description is the input truncated to 100 characters.
func (e *Engine) fallbackDraft(text string, cls model.ClassificationResult) pipelineDraft {
	description := truncate(text, 100)
	return pipelineDraft{
		classification: cls,
		lineItems: []model.LineItem{{
			Description:    description,
			Amount:         0,
			Category:       model.CategoryMiscellaneous,
			AllocationText: cls.ContextAnalysis,
			Splits:         split.Allocate(0, cls.Ratio),
		}},
		totalAmount: 0,
	}
}

// parseExpenseDate parses an ISO date leniently. Invalid dates are logged
// and dropped rather than failing the pipeline.
func parseExpenseDate(raw *string) *time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, *raw); err == nil {
			return &t
		}
	}
	slog.Warn("ignoring unparseable expense date", "date", *raw)
	return nil
}

// truncate caps s at n characters, never splitting a multi-byte rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
