package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

func TestAdaptClassificationPersonal(t *testing.T) {
	raw := rawClassification{
		FinancialRelationship: "personal_expense",
		Participants:          []string{"me", "John"}, // oracle inconsistency
		IsShared:              true,
		ContextAnalysis:       "Treating John to coffee",
	}

	cls := adaptClassification(raw)

	assert.False(t, cls.IsShared)
	assert.Equal(t, model.ExpenseTypePersonal, cls.ExpenseType)
	assert.Equal(t, []string{"me"}, cls.Participants)
	assert.Empty(t, cls.CleanParticipants)
	assert.InDelta(t, 1.0, cls.Ratio.Share("me"), 1e-9)
}

func TestAdaptClassificationContextOnly(t *testing.T) {
	raw := rawClassification{
		FinancialRelationship: "context_only",
		Participants:          []string{"me", "mom"},
		PeopleMentioned:       []string{"mom"},
	}

	cls := adaptClassification(raw)

	assert.False(t, cls.IsShared)
	assert.Equal(t, []string{"me"}, cls.Participants)
	assert.Equal(t, model.RelationshipContextOnly, cls.Relationship)
}

func TestAdaptClassificationUnknownRelationship(t *testing.T) {
	raw := rawClassification{
		FinancialRelationship: "quantum_expense",
		Participants:          []string{"me", "Bob"},
	}

	cls := adaptClassification(raw)
	assert.Equal(t, model.RelationshipPersonal, cls.Relationship)
	assert.False(t, cls.IsShared)
}

func TestAdaptClassificationSharedEqualSplit(t *testing.T) {
	raw := rawClassification{
		FinancialRelationship: "shared_expense",
		Participants:          []string{"me", "Sam"},
		SplittingMethod:       "equal_split",
		IsShared:              true,
	}

	cls := adaptClassification(raw)

	assert.True(t, cls.IsShared)
	assert.Equal(t, []string{"Sam"}, cls.CleanParticipants)
	require.NotNil(t, cls.Ratio)
	assert.InDelta(t, 0.5, cls.Ratio.Share("me"), 1e-9)
	assert.InDelta(t, 0.5, cls.Ratio.Share("Sam"), 1e-9)
}

func TestAdaptClassificationSharedCustomRatioNormalized(t *testing.T) {
	raw := rawClassification{
		FinancialRelationship: "shared_expense",
		Participants:          []string{"me", "Sam"},
		SplittingMethod:       "custom",
		SplitRatio:            map[string]float64{"me": 3, "Sam": 1},
		IsShared:              true,
	}

	cls := adaptClassification(raw)

	assert.InDelta(t, 0.75, cls.Ratio.Share("me"), 1e-9)
	assert.InDelta(t, 0.25, cls.Ratio.Share("Sam"), 1e-9)
	assert.InDelta(t, 1.0, cls.Ratio.Sum(), 1e-9)
}

func TestAdaptClassificationRatioBackfill(t *testing.T) {
	// oracle gave a ratio for only one of two participants
	raw := rawClassification{
		FinancialRelationship: "shared_expense",
		Participants:          []string{"me", "Sam"},
		SplittingMethod:       "custom",
		SplitRatio:            map[string]float64{"me": 0.5},
		IsShared:              true,
	}

	cls := adaptClassification(raw)
	assert.True(t, cls.Ratio.Has("Sam"))
	assert.InDelta(t, 1.0, cls.Ratio.Sum(), 1e-9)
	// participants lead the insertion order
	assert.Equal(t, "me", cls.Ratio.Participants()[0])
}

func TestAdaptClassificationRecoversParticipants(t *testing.T) {
	raw := rawClassification{
		FinancialRelationship: "shared_expense",
		Participants:          []string{"me"},
		PeopleMentioned:       []string{"me", "Jake", "Priya", "Omar"},
		IsShared:              true,
	}

	cls := adaptClassification(raw)

	// capped at two recovered participants, self filtered out
	assert.Equal(t, []string{"me", "Jake", "Priya"}, cls.Participants)
	assert.True(t, cls.IsShared)
	assert.Equal(t, "equal_split", cls.SplittingMethod)
}

func TestAdaptClassificationSharedWithNobodyDegrades(t *testing.T) {
	raw := rawClassification{
		FinancialRelationship: "shared_expense",
		Participants:          []string{"me"},
		PeopleMentioned:       []string{"me", "myself"},
		IsShared:              true,
	}

	cls := adaptClassification(raw)
	assert.False(t, cls.IsShared)
	assert.Equal(t, []string{"me"}, cls.Participants)
}

func TestFallbackClassify(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantShared bool
	}{
		{"split keyword", "Dinner $80, split with Sarah", true},
		{"owes keyword", "groceries $40, John owes me half", true},
		{"paying for others", "bought coffee for John", false},
		{"personal beats shared", "lunch for the team, we split the dessert", false},
		{"no pattern", "taxi fare $20", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := fallbackClassify(tt.text)
			assert.Equal(t, tt.wantShared, cls.IsShared)
			require.NotNil(t, cls.Ratio)

			if tt.wantShared {
				assert.Equal(t, []string{"me", "other"}, cls.Participants)
				assert.InDelta(t, 0.5, cls.Ratio.Share("me"), 1e-9)
				assert.InDelta(t, 0.5, cls.Ratio.Share("other"), 1e-9)
			} else {
				assert.Equal(t, []string{"me"}, cls.Participants)
				assert.InDelta(t, 1.0, cls.Ratio.Share("me"), 1e-9)
			}
		})
	}
}
