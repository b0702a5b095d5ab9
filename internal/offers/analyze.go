package offers

import (
	"regexp"
	"slices"
	"strings"
)

// Intent is the detected purpose of a message.
type Intent string

const (
	IntentSeekingDeal     Intent = "seeking_deal"
	IntentAskingQuestion  Intent = "asking_question"
	IntentGeneralInterest Intent = "general_interest"
	IntentNotRelevant     Intent = "not_relevant"
)

// Analysis is the heuristic classification of one message.
type Analysis struct {
	Intent        Intent   `json:"intent"`
	Category      string   `json:"category"`
	Confidence    float64  `json:"confidence"`
	ShouldRespond bool     `json:"should_respond"`
	Brands        []string `json:"brands,omitempty"`
	Urgency       Urgency  `json:"urgency"`
}

var (
	dealPhrases = []string{
		"any deals", "any offers", "any promos", "any discounts",
		"looking for deals", "need a deal", "find a deal",
		"best price", "cheapest", "save money", "good deal",
	}
	questionPhrases = []string{
		"recommend", "suggestion", "advice", "what should", "which is better",
		"anyone know", "does anyone", "has anyone tried",
	}
	interestPhrases = []string{
		"thinking about", "considering", "might try", "heard about",
		"want to", "need to", "looking to", "trying to",
	}

	messageCategories = []categoryRule{
		{"trading", []string{"trading", "crypto", "bitcoin", "investing", "stocks", "options", "signals"}},
		{"food", []string{"food", "pizza", "delivery", "restaurant", "eating", "hungry", "order"}},
		{"fashion", []string{"shoes", "clothes", "shirt", "pants", "dress", "nike", "adidas"}},
		{"entertainment", []string{"movie", "music", "streaming", "netflix", "spotify", "show"}},
		{"travel", []string{"travel", "trip", "vacation", "flight", "hotel", "airbnb"}},
		{"gambling", []string{"bet", "betting", "casino", "picks", "odds", "gambling"}},
		{"business", []string{"business", "agency", "coaching", "mentor", "entrepreneur"}},
		{"tech", []string{"coding", "python", "ai", "automation", "tech", "programming"}},
	}

	brands = []string{
		"nike", "adidas", "starbucks", "dominos", "amazon", "uber", "netflix",
		"spotify", "airbnb", "doordash", "grubhub", "apple", "samsung",
	}

	msgHighUrg   = regexp.MustCompile(`asap|urgent|now|today|quickly`)
	msgMediumUrg = regexp.MustCompile(`soon|this week|weekend`)
)

func containsAny(text string, phrases []string) bool {
	return slices.ContainsFunc(phrases, func(p string) bool { return strings.Contains(text, p) })
}

// Analyze classifies a message. Intent checks run deal, question, interest
// in that order and a later match overrides an earlier one; confidence keeps
// the highest value seen.
func Analyze(message string) Analysis {
	text := strings.ToLower(message)

	a := Analysis{Intent: IntentNotRelevant}

	if containsAny(text, dealPhrases) {
		a.Intent = IntentSeekingDeal
		a.Confidence = 0.9
	}
	if containsAny(text, questionPhrases) || strings.Contains(text, "?") {
		a.Intent = IntentAskingQuestion
		a.Confidence = max(a.Confidence, 0.7)
	}
	if containsAny(text, interestPhrases) {
		a.Intent = IntentGeneralInterest
		a.Confidence = max(a.Confidence, 0.5)
	}

	a.Category = categorize(text, messageCategories)
	for _, b := range brands {
		if strings.Contains(text, b) {
			a.Brands = append(a.Brands, b)
		}
	}

	switch {
	case msgHighUrg.MatchString(text):
		a.Urgency = UrgencyHigh
	case msgMediumUrg.MatchString(text):
		a.Urgency = UrgencyMedium
	default:
		a.Urgency = UrgencyLow
	}

	a.ShouldRespond = a.Confidence >= 0.5 &&
		a.Intent != IntentNotRelevant &&
		(a.Category != CategoryGeneral || len(a.Brands) > 0)

	return a
}
