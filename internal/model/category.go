package model

import "strings"

// Standard expense categories. The set is fixed; anything unrecognized snaps
// to CategoryMiscellaneous.
const (
	CategoryFoodDining     = "Food & Dining"
	CategoryGroceries      = "Groceries"
	CategoryTransportation = "Transportation"
	CategoryShopping       = "Shopping"
	CategoryEntertainment  = "Entertainment"
	CategoryUtilities      = "Utilities"
	CategoryHealthcare     = "Healthcare"
	CategoryEducation      = "Education"
	CategoryTravel         = "Travel"
	CategoryMiscellaneous  = "Miscellaneous"
)

// AllCategories lists every known category in display order.
func AllCategories() []string {
	return []string{
		CategoryFoodDining,
		CategoryGroceries,
		CategoryTransportation,
		CategoryShopping,
		CategoryEntertainment,
		CategoryUtilities,
		CategoryHealthcare,
		CategoryEducation,
		CategoryTravel,
		CategoryMiscellaneous,
	}
}

var categoryLookup = func() map[string]string {
	m := make(map[string]string, 10)
	for _, c := range AllCategories() {
		m[strings.ToLower(c)] = c
	}
	return m
}()

// CategoryFromString resolves a category name case-insensitively, defaulting
// to CategoryMiscellaneous when the name is unknown.
func CategoryFromString(name string) string {
	if c, ok := categoryLookup[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return CategoryMiscellaneous
}

// IsKnownCategory reports whether the name matches a category exactly,
// ignoring case.
func IsKnownCategory(name string) bool {
	_, ok := categoryLookup[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// categoryKeywords drives the description-based fallback categorizer.
// First match wins.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{CategoryFoodDining, []string{"restaurant", "cafe", "pizza", "burger", "dining", "takeout", "food delivery", "meal"}},
	{CategoryGroceries, []string{"grocery", "supermarket", "vegetables", "rice", "dal", "flour", "milk", "bread"}},
	{CategoryTransportation, []string{"fuel", "gas", "petrol", "uber", "taxi", "transport", "bus", "train", "metro"}},
	{CategoryShopping, []string{"clothes", "shopping", "mall", "store", "electronics", "phone", "laptop"}},
	{CategoryEntertainment, []string{"movie", "cinema", "game", "sports", "entertainment", "music", "streaming"}},
	{CategoryUtilities, []string{"utility", "electricity", "water", "internet", "bill", "rent", "wifi"}},
	{CategoryHealthcare, []string{"medicine", "doctor", "hospital", "medical", "pharmacy", "health"}},
	{CategoryEducation, []string{"book", "course", "school", "education", "learning", "study"}},
	{CategoryTravel, []string{"hotel", "flight", "vacation", "travel", "trip", "tourism"}},
}

// CategorizeDescription picks a category for a line item. A hint from the
// oracle wins when it names a known category; otherwise a keyword scan over
// the description decides, defaulting to Miscellaneous.
func CategorizeDescription(description, hint string) string {
	if hint != "" && IsKnownCategory(hint) {
		return CategoryFromString(hint)
	}

	desc := strings.ToLower(description)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(desc, w) {
				return ck.category
			}
		}
	}
	return CategoryMiscellaneous
}
