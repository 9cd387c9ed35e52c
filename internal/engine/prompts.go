package engine

import (
	"fmt"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Prompt builders for each pipeline stage. The oracle is always given both a
// user prompt and a system instruction.

const detectSystem = "You are an expense analyzer. Determine if the expense contains multiple specific items with individual prices that should be broken down separately. Answer only YES or NO."

func detectPrompt(text string) string {
	return fmt.Sprintf(`Analyze this expense text: %q

Is this a detailed itemized expense that lists multiple specific items with individual prices?

Examples of detailed itemized expenses:
- "Bought rice ₹450, flour ₹120, dal ₹180..."
- "Restaurant: pizza $15, drinks $8, dessert $5..."
- "Shopping: shirt $25, shoes $60, socks $10..."

Answer: YES or NO`, text)
}

func extractSystem() string {
	categories := strings.Join(model.AllCategories(), "\n")
	return fmt.Sprintf(`Extract individual items, prices, and categories from the expense text. Return a JSON array:
[
    {
        "description": "5kg basmati rice",
        "amount": 450.0,
        "category": "Groceries"
    },
    {
        "description": "2kg whole wheat flour",
        "amount": 120.0,
        "category": "Groceries"
    }
]

Available categories:
%s

CATEGORIZATION RULES:
- Food & Dining: Restaurant meals, takeout, cafes, food delivery
- Groceries: Supermarket items, raw ingredients, household food items
- Transportation: Fuel, public transport, taxi, car maintenance
- Shopping: Clothing, electronics, personal items, non-food retail
- Entertainment: Movies, games, sports, subscriptions, hobbies
- Utilities: Electricity, water, internet, phone bills, rent
- Healthcare: Medicine, doctor visits, medical supplies
- Education: Books, courses, school fees, learning materials
- Travel: Hotels, flights, vacation expenses, tourism
- Miscellaneous: Items that don't fit other categories

Rules:
- Include quantities and details in description
- Convert prices to numbers (remove currency symbols)
- Each item should be separate
- Be precise with item names
- Choose the most appropriate category for each item
- If unsure about category, use Miscellaneous`, categories)
}

func extractPrompt(text string) string {
	return fmt.Sprintf(`Extract all individual items with their prices and categories from this expense text: %q

List each item separately with its price and category. Be specific and include quantities where mentioned.

Available categories: %s

Return as JSON array of items:`, text, strings.Join(model.AllCategories(), ", "))
}

const classifySystem = `Analyze the expense context to determine if it's personal or shared. Return JSON:

{
    "participants": ["me"],
    "clean_participants": [],
    "is_shared": false,
    "expense_type": "personal",
    "splitting_method": "personal",
    "split_ratio": {"me": 1.0},
    "context_analysis": "Detailed explanation of why this classification was chosen",
    "people_mentioned": ["list of all people mentioned"],
    "financial_relationship": "personal_expense" or "shared_expense" or "context_only"
}

CLASSIFICATION RULES:

PERSONAL EXPENSE (is_shared = false):
- I'm paying FOR other people (treating, gifting, covering)
- Others mentioned for context but don't contribute financially
- Examples: "bought coffee for John", "team lunch on me", "groceries for roommate"
- Result: Only "me" in participants, I pay 100%

SHARED EXPENSE (is_shared = true):
- Multiple people will actually pay/contribute their portions
- Clear cost-sharing arrangement mentioned
- Examples: "split with John", "John owes me half", "we each pay"
- Result: Multiple people in participants with split ratios

CRITICAL: Don't assume sharing just because people are mentioned. Analyze the financial intent!

financial_relationship options:
- "personal_expense": I pay for others
- "shared_expense": We split costs
- "context_only": People mentioned but no financial involvement`

func classifyPrompt(text string, items []model.LineItem) string {
	var itemLines strings.Builder
	for _, item := range items {
		fmt.Fprintf(&itemLines, "- %s: %.2f\n", item.Description, item.Amount)
	}

	return fmt.Sprintf(`Original expense text: %q

Items found:
%s
CONTEXT ANALYSIS - WHY are other people mentioned? Analyze step by step:

1. IDENTIFY ALL PEOPLE mentioned in the text:
   - The person entering expense = "me"
   - Any other names or relationships mentioned

2. DETERMINE THE FINANCIAL RELATIONSHIP - Why are others mentioned?

   SCENARIO A - PERSONAL EXPENSE (I pay for everything):
   - "I bought coffee for John" → I'm treating/gifting John
   - "Bought lunch for my team" → I'm paying for everyone
   - "Dinner for me and Sarah" → I'm paying for both of us

   SCENARIO B - SHARED EXPENSE (We split costs):
   - "Split dinner with John" → We each pay our portion
   - "Groceries, John owes me half" → Cost sharing arrangement
   - "Shared Uber with Sarah" → Both contributing to cost

   SCENARIO C - CONTEXT ONLY (Others mentioned but not financially involved):
   - "Dinner with friends at restaurant" → Context, but need to check if splitting
   - "Shopping with mom" → Could be either scenario A or B

3. KEY INDICATORS:
   - Personal: "for", "treating", "bought X for Y", "paid for everyone"
   - Shared: "split", "divide", "owes me", "each pays", "we share"
   - Ambiguous: "with", "and" → Need more context analysis

4. FINAL DECISION:
   - If I'm paying FOR others → PERSONAL (only "me" pays)
   - If we're splitting/sharing costs → SHARED (multiple people pay)
   - If unclear → Default to PERSONAL unless clear sharing intent`, text, itemLines.String())
}

const simpleParseSystem = `Extract line items from the expense. Return JSON:
{
    "line_items": [
        {
            "description": "item or service description",
            "amount": 0.0
        }
    ],
    "total_amount": 0.0,
    "expense_date": null
}

Rules:
- If specific items with prices mentioned, list them separately
- If general expense (like "dinner $50"), create one item
- Amounts should be numbers without currency symbols
- total_amount should sum all line items
- expense_date should be an ISO date (YYYY-MM-DD) when the text names one, otherwise null`

func simpleParsePrompt(text string) string {
	return fmt.Sprintf(`Parse this expense into line items: %q

Based on the expense description, extract:
1. Individual items or services with their amounts
2. If no specific items mentioned, create one general line item

Return the items found:`, text)
}

const insightSystem = "You are a financial analyst. Answer the user's question based on the provided expense summary. Be concise and data-driven."

const subQuerySystem = "Provide a brief, focused answer. Be concise."
