// Package model defines the core data types for expense parsing and splitting.
package model

import (
	"strings"
	"time"
)

// Self is the reserved participant identifier for the submitting user.
const Self = "me"

// selfAliases are the participant names the oracle uses for the submitting
// user across prompts and recovery paths.
var selfAliases = map[string]bool{
	Self:     true,
	"myself": true,
	"i":      true,
	"user":   true,
	"you":    true,
}

// IsSelf reports whether a participant name refers to the submitting user.
func IsSelf(name string) bool {
	return selfAliases[strings.ToLower(strings.TrimSpace(name))]
}

// FinancialRelationship describes why other people appear in an expense text.
type FinancialRelationship string

const (
	// RelationshipPersonal means the submitting user pays for everything.
	RelationshipPersonal FinancialRelationship = "personal_expense"
	// RelationshipShared means multiple people contribute their portions.
	RelationshipShared FinancialRelationship = "shared_expense"
	// RelationshipContextOnly means people are mentioned but not financially involved.
	RelationshipContextOnly FinancialRelationship = "context_only"
)

// ExpenseType values stored on parsed records.
const (
	ExpenseTypePersonal = "personal"
	ExpenseTypeShared   = "shared"
)

// Split is a single participant's owed portion of one line item.
type Split struct {
	Participant string  `json:"participant"`
	Amount      float64 `json:"amount"`
}

// LineItem is one priced entry of an expense with its per-participant splits.
// The splits always sum to Amount; rounding drift is absorbed by the first split.
type LineItem struct {
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	AllocationText string  `json:"allocation_text"`
	Splits         []Split `json:"splits"`
	Amount         float64 `json:"amount"`
}

// BreakdownEntry shows one item a participant is paying for, with the item's
// full price for display context.
type BreakdownEntry struct {
	Item      string  `json:"item"`
	Amount    float64 `json:"amount"`
	ItemTotal float64 `json:"item_total"`
}

// ParsedExpense is the durable record produced by the parsing pipeline.
// It is persisted verbatim and never mutated after storage.
type ParsedExpense struct {
	ExpenseDate             *time.Time                  `json:"expense_date"`
	UserAllocations         map[string]float64          `json:"user_allocations"`
	UserAllocationBreakdown map[string][]BreakdownEntry `json:"user_allocation_breakdown"`
	ExpenseType             string                      `json:"expense_type"`
	Status                  string                      `json:"status"`
	Participants            []string                    `json:"participants"`
	CleanParticipants       []string                    `json:"clean_participants"`
	LineItems               []LineItem                  `json:"line_items"`
	TotalAmount             float64                     `json:"total_amount"`
	ProcessingTime          float64                     `json:"processing_time"`
	IsShared                bool                        `json:"is_shared"`
}

// ClassificationResult is the canonical sharing classification for one expense.
// It is produced once per parse request, either from oracle output or from the
// deterministic fallback, and is immutable afterward.
type ClassificationResult struct {
	Ratio             *SplitRatio
	Relationship      FinancialRelationship
	ExpenseType       string
	SplittingMethod   string
	ContextAnalysis   string
	Participants      []string
	CleanParticipants []string
	IsShared          bool
}

// Expense is a stored expense row. ParsedData holds the ParsedExpense JSON.
type Expense struct {
	CreatedAt    time.Time  `json:"created_at"`
	ExpenseDate  *time.Time `json:"expense_date"`
	UserID       string     `json:"user_id"`
	OriginalText string     `json:"original_text"`
	ParsedData   string     `json:"-"`
	Status       string     `json:"status"`
	ID           int64      `json:"id"`
}

// Insight is a stored analysis result for a user query.
type Insight struct {
	CreatedAt   time.Time `json:"created_at"`
	UserID      string    `json:"user_id"`
	Query       string    `json:"query"`
	InsightText string    `json:"insight_text"`
	Tags        []string  `json:"tags"`
	ID          int64     `json:"id"`
}
