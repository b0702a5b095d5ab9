package offers

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultMinScore is the lowest score a candidate may have.
const DefaultMinScore = 3.0

// Match is a ranked candidate.
type Match struct {
	Offer     Offer
	Score     float64
	Reasoning string
}

// Score sums the additive relevance bonuses of offer for a message and
// returns the total with a human-readable reasoning string.
func Score(offer Offer, message string, a Analysis) (float64, string) {
	var (
		score  float64
		reason []string
	)

	if offer.Category == a.Category {
		score += 4
		reason = append(reason, fmt.Sprintf("Category match (%s).", a.Category))
	}

	words := strings.Fields(strings.ToLower(message))
	var hits []string
	for _, kw := range offer.Keywords {
		if slices.ContainsFunc(words, func(w string) bool {
			return strings.Contains(w, kw) || strings.Contains(kw, w)
		}) {
			hits = append(hits, kw)
		}
	}
	score += float64(2 * len(hits))
	if len(hits) > 0 {
		reason = append(reason, "Keywords: "+strings.Join(hits, ", ")+".")
	}

	name := strings.ToLower(offer.Name)
	desc := strings.ToLower(offer.Description)
	if slices.ContainsFunc(a.Brands, func(b string) bool {
		return strings.Contains(name, b) || strings.Contains(desc, b)
	}) {
		score += 5
		reason = append(reason, "Brand mentioned.")
	}

	score += float64(offer.Value) * 0.3

	if offer.Urgency == UrgencyHigh && a.Urgency == UrgencyHigh {
		score += 2
		reason = append(reason, "Urgency match.")
	}

	if a.Intent == IntentSeekingDeal {
		score += 2
	}

	return score, strings.Join(reason, " ")
}

// Rank scores every offer and returns candidates at or above minScore,
// highest first. Ties keep catalog order.
func Rank(c *Catalog, message string, a Analysis, minScore float64) []Match {
	if c.Len() == 0 {
		return nil
	}

	var out []Match
	for _, o := range c.Offers {
		s, why := Score(o, message, a)
		if s >= minScore {
			out = append(out, Match{Offer: o, Score: s, Reasoning: why})
		}
	}
	slices.SortStableFunc(out, func(x, y Match) int {
		switch {
		case x.Score > y.Score:
			return -1
		case x.Score < y.Score:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Best returns the top-ranked candidate, or nil.
func Best(c *Catalog, message string, a Analysis, minScore float64) *Match {
	ranked := Rank(c, message, a, minScore)
	if len(ranked) == 0 {
		return nil
	}
	return &ranked[0]
}

// TemplateReply renders one of the canned recommendation lines. variant is
// taken modulo the number of templates.
func TemplateReply(o Offer, variant int) string {
	paren := ""
	bare := ""
	if o.URL != "" {
		paren = " (" + o.URL + ")"
		bare = " " + o.URL
	}
	templates := []string{
		"Here's a deal you might like: " + o.Name + " – " + o.Description + paren,
		"Perfect timing! " + o.Name + " has " + o.Description + bare,
		"You might find this helpful: " + o.Name + " – " + o.Description + paren,
	}
	if variant < 0 {
		variant = -variant
	}
	return templates[variant%len(templates)]
}

// Enrich appends a recommendation line to reply when the message warrants a
// deal and the generated text references neither the offer name nor its
// link. Offers without a URL never enrich.
func Enrich(reply string, a Analysis, m *Match) string {
	if m == nil || !a.ShouldRespond || m.Offer.URL == "" {
		return reply
	}
	lower := strings.ToLower(reply)
	if strings.Contains(lower, strings.ToLower(m.Offer.Name)) || strings.Contains(reply, m.Offer.URL) {
		return reply
	}
	return strings.TrimSpace(reply) + "\n\n" + TemplateReply(m.Offer, 0)
}
