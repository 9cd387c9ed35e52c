package engine

import (
	"log/slog"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// rawClassification is the oracle's sharing classification as returned on the
// wire, before any consistency enforcement.
type rawClassification struct {
	SplitRatio            map[string]float64 `json:"split_ratio"`
	ExpenseType           string             `json:"expense_type"`
	SplittingMethod       string             `json:"splitting_method"`
	ContextAnalysis       string             `json:"context_analysis"`
	FinancialRelationship string             `json:"financial_relationship"`
	Participants          []string           `json:"participants"`
	PeopleMentioned       []string           `json:"people_mentioned"`
	IsShared              bool               `json:"is_shared"`
}

// maxRecoveredParticipants bounds how many extra participants can be pulled
// in from people_mentioned when the oracle says "shared" but lists only one.
const maxRecoveredParticipants = 2

// Keyword sets for the deterministic fallback classifier. Personal indicators
// are checked first: "paying FOR others" beats "splitting WITH others".
var (
	personalIndicators = []string{"for ", " for", "bought for", "treating", "paid for", "lunch for", "dinner for", "coffee for"}
	sharedIndicators   = []string{"split with", "divide with", "owes me", "each pay", "we split", "share with", "between us"}
)

// adaptClassification normalizes oracle output into a canonical
// ClassificationResult. The oracle's answer is not trusted: the
// financial_relationship field drives a consistency pass that may discard the
// participant list entirely, because people being mentioned does not make
// them financially involved.
func adaptClassification(raw rawClassification) model.ClassificationResult {
	relationship := model.FinancialRelationship(raw.FinancialRelationship)
	switch relationship {
	case model.RelationshipPersonal, model.RelationshipShared, model.RelationshipContextOnly:
	default:
		relationship = model.RelationshipPersonal
	}

	participants := raw.Participants
	if len(participants) == 0 {
		participants = []string{model.Self}
	}

	if relationship == model.RelationshipPersonal || relationship == model.RelationshipContextOnly {
		return personalClassification(relationship, raw.ContextAnalysis)
	}

	// Shared expense. When the oracle listed a single participant, try to
	// recover the others from people_mentioned before degrading to personal.
	if len(participants) == 1 {
		others := otherPeople(raw.PeopleMentioned)
		if len(others) > maxRecoveredParticipants {
			others = others[:maxRecoveredParticipants]
		}
		if len(others) == 0 {
			slog.Warn("shared expense with no other participants, degrading to personal")
			return personalClassification(relationship, raw.ContextAnalysis)
		}
		participants = append([]string{model.Self}, others...)
		slog.Info("recovered participants from people_mentioned", "participants", participants)
	}

	result := model.ClassificationResult{
		Relationship:      relationship,
		Participants:      participants,
		CleanParticipants: withoutSelf(participants),
		IsShared:          true,
		ExpenseType:       model.ExpenseTypeShared,
		SplittingMethod:   raw.SplittingMethod,
		ContextAnalysis:   raw.ContextAnalysis,
	}

	rawRatio := raw.SplitRatio
	if raw.SplittingMethod == "equal_split" || len(rawRatio) == 0 {
		result.Ratio = model.EqualSplit(participants)
		result.SplittingMethod = "equal_split"
	} else {
		result.Ratio = buildRatio(participants, rawRatio)
	}

	result.Ratio.Normalize()
	return result
}

// personalClassification is the forced-consistency result for personal and
// context-only expenses: only "me" pays, whatever the oracle listed.
func personalClassification(relationship model.FinancialRelationship, analysis string) model.ClassificationResult {
	ratio := model.NewSplitRatio()
	ratio.Set(model.Self, 1.0)
	return model.ClassificationResult{
		Relationship:      relationship,
		Participants:      []string{model.Self},
		CleanParticipants: []string{},
		IsShared:          false,
		ExpenseType:       model.ExpenseTypePersonal,
		SplittingMethod:   "personal",
		ContextAnalysis:   analysis,
		Ratio:             ratio,
	}
}

// buildRatio assembles the ratio map with participants first, in list order,
// backfilling an equal share for any participant the oracle left out. Extra
// oracle-supplied keys are kept after the participants so normalization
// covers the whole map.
func buildRatio(participants []string, rawRatio map[string]float64) *model.SplitRatio {
	ratio := model.NewSplitRatio()
	equalShare := 1.0 / float64(len(participants))

	for _, p := range participants {
		if share, ok := rawRatio[p]; ok {
			ratio.Set(p, share)
		} else {
			ratio.Set(p, equalShare)
		}
	}
	for p, share := range rawRatio {
		if !ratio.Has(p) {
			ratio.Set(p, share)
		}
	}
	return ratio
}

// fallbackClassify is the deterministic classifier used when the oracle is
// unreachable or returns garbage. It never fails: every text terminates in a
// valid classification.
func fallbackClassify(text string) model.ClassificationResult {
	lower := strings.ToLower(text)

	for _, indicator := range personalIndicators {
		if strings.Contains(lower, indicator) {
			slog.Warn("fallback classification: paying-for-others pattern, personal expense")
			return personalClassification(model.RelationshipPersonal,
				"Fallback: detected pattern indicating paying for others")
		}
	}

	for _, indicator := range sharedIndicators {
		if strings.Contains(lower, indicator) {
			slog.Warn("fallback classification: cost-sharing pattern, shared expense")
			participants := []string{model.Self, "other"}
			return model.ClassificationResult{
				Relationship:      model.RelationshipShared,
				Participants:      participants,
				CleanParticipants: []string{"other"},
				IsShared:          true,
				ExpenseType:       model.ExpenseTypeShared,
				SplittingMethod:   "equal_split",
				ContextAnalysis:   "Fallback: detected cost sharing pattern",
				Ratio:             model.EqualSplit(participants),
			}
		}
	}

	slog.Warn("fallback classification: no clear pattern, defaulting to personal")
	return personalClassification(model.RelationshipPersonal,
		"Fallback: default to personal expense")
}

// otherPeople filters self-references out of a people_mentioned list.
func otherPeople(people []string) []string {
	var others []string
	for _, p := range people {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "me", "myself", "i", "":
		default:
			others = append(others, p)
		}
	}
	return others
}

// withoutSelf returns the participants minus the reserved "me" identifier.
func withoutSelf(participants []string) []string {
	clean := make([]string, 0, len(participants))
	for _, p := range participants {
		if p != model.Self {
			clean = append(clean, p)
		}
	}
	return clean
}
