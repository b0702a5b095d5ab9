package admission

import (
	"regexp"
	"strings"
)

// minRelevantLength is the shortest message worth a reply.
const minRelevantLength = 3

// lowInformation matches greetings, acknowledgments and single reactions.
var lowInformation = []*regexp.Regexp{
	regexp.MustCompile(`^(lol|haha|ok|cool|nice|thanks?|ty|hi|hello|hey)$`),
	regexp.MustCompile(`^(good morning|good night|what's up|how are you)$`),
	regexp.MustCompile(`^(brb|afk|back|ping|pong)$`),
	regexp.MustCompile(`^(😂|😅|👍|💯|🔥)$`),
}

// relevanceKeywords is the deal/offer/brand vocabulary a message must touch.
var relevanceKeywords = []string{
	"deal", "offer", "promo", "sale", "discount", "free", "cheap",
	"price", "cost", "save", "worth", "recommend", "suggestion",
	"looking", "need", "want", "trying", "find", "buy",
	"nike", "adidas", "starbucks", "uber", "netflix", "amazon",
	"trading", "crypto", "business", "coaching",
}

// IsRelevant reports whether content is worth a response.
func IsRelevant(content string) bool {
	lower := strings.ToLower(strings.TrimSpace(content))

	if len([]rune(lower)) < minRelevantLength {
		return false
	}
	for _, re := range lowInformation {
		if re.MatchString(lower) {
			return false
		}
	}
	for _, kw := range relevanceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
