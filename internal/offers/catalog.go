// Package offers parses the promotional catalog, classifies inbound messages
// and ranks catalog entries against them.
package offers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Urgency levels shared by offers and messages.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// CategoryGeneral is assigned when no category keyword matches.
const CategoryGeneral = "general"

// Offer is one catalog entry. Immutable after parsing.
type Offer struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url,omitempty"`
	Category    string   `json:"category"`
	Keywords    []string `json:"keywords"`
	Value       int      `json:"value"` // 0-10
	Urgency     Urgency  `json:"urgency"`
}

// String renders the offer in catalog form.
func (o Offer) String() string {
	if o.URL == "" {
		return o.Name + " – " + o.Description
	}
	return o.Name + " – " + o.Description + " (" + o.URL + ")"
}

// Catalog is the parsed offer list in file order together with the raw
// text used for the system prompt.
type Catalog struct {
	Offers []Offer
	Text   string
}

// Len returns the number of parsed offers. Safe on a nil catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Offers)
}

// Lookup returns the offer with the given name.
func (c *Catalog) Lookup(name string) (Offer, bool) {
	if c == nil {
		return Offer{}, false
	}
	for _, o := range c.Offers {
		if o.Name == name {
			return o, true
		}
	}
	return Offer{}, false
}

// catalogLine matches "Name – Description [URL]" with an en dash separator.
var catalogLine = regexp.MustCompile(`^(.+?)\s*–\s*(.+?)(?:\s+(https?://\S+))?\s*\.?\s*$`)

// LoadCatalog reads and parses the catalog file at path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read offers file: %w", err)
	}
	return ParseCatalog(strings.NewReader(string(data)))
}

// ParseCatalog parses a catalog stream. Blank lines, "#" comments,
// all-uppercase section headers and lines not in catalog form are skipped.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	var (
		offers []Offer
		raw    strings.Builder
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		raw.WriteString(line)
		raw.WriteByte('\n')

		if o, ok := parseLine(line); ok {
			offers = append(offers, o)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan offers: %w", err)
	}

	return &Catalog{Offers: offers, Text: strings.TrimRight(raw.String(), "\n")}, nil
}

func parseLine(line string) (Offer, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.ToUpper(trimmed) == trimmed {
		return Offer{}, false
	}

	m := catalogLine.FindStringSubmatch(trimmed)
	if m == nil {
		return Offer{}, false
	}

	name := strings.TrimSpace(m[1])
	desc := strings.TrimSpace(m[2])
	return Offer{
		Name:        name,
		Description: desc,
		URL:         m[3],
		Category:    categorizeOffer(name + " " + desc),
		Keywords:    extractKeywords(name + " " + desc),
		Value:       offerValue(name + " " + desc),
		Urgency:     offerUrgency(desc),
	}, true
}

type categoryRule struct {
	name     string
	keywords []string
}

// offerCategories is checked in order; the first category with a matching
// substring wins.
var offerCategories = []categoryRule{
	{"trading", []string{"trading", "crypto", "bitcoin", "signals", "options", "investment"}},
	{"business", []string{"agency", "business", "coaching", "mentor", "entrepreneur"}},
	{"gambling", []string{"betting", "casino", "picks", "sportsbook", "gambling"}},
	{"content", []string{"tiktok", "content", "copywriting", "social", "viral"}},
	{"tech", []string{"python", "coding", "ai", "automation", "tech"}},
	{"food", []string{"food", "pizza", "delivery", "restaurant", "eats"}},
	{"fashion", []string{"shoes", "clothes", "fashion", "apparel"}},
	{"entertainment", []string{"streaming", "music", "entertainment", "netflix", "spotify"}},
	{"travel", []string{"travel", "airbnb", "flights", "hotel"}},
}

func categorize(text string, rules []categoryRule) string {
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.name
			}
		}
	}
	return CategoryGeneral
}

func categorizeOffer(text string) string {
	return categorize(strings.ToLower(text), offerCategories)
}

const maxKeywords = 8

var (
	nonWord   = regexp.MustCompile(`[^\w\s]`)
	stopWords = map[string]bool{
		"the": true, "and": true, "for": true, "with": true, "get": true,
		"off": true, "all": true, "any": true, "new": true,
	}
)

// extractKeywords returns up to eight distinct lowercase words longer than
// two characters, in first-seen order, punctuation and stop-words removed.
func extractKeywords(text string) []string {
	words := strings.Fields(nonWord.ReplaceAllString(strings.ToLower(text), " "))

	seen := make(map[string]bool, len(words))
	var out []string
	for _, w := range words {
		if len(w) <= 2 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

var (
	bigDiscount    = regexp.MustCompile(`free|50%|40%|30%`)
	midDiscount    = regexp.MustCompile(`25%|20%|15%`)
	smallDiscount  = regexp.MustCompile(`10%|5%`)
	knownBrand     = regexp.MustCompile(`nike|adidas|starbucks|amazon|netflix|spotify|uber`)
	timeLimited    = regexp.MustCompile(`today|limited|flash|ends soon`)
	offerHighUrg   = regexp.MustCompile(`today only|flash|ends soon|limited time|expires`)
	offerMediumUrg = regexp.MustCompile(`this week|weekend|sunday|friday`)
)

// offerValue scores an offer from a base of 5, capped at 10.
func offerValue(text string) int {
	text = strings.ToLower(text)
	value := 5
	if bigDiscount.MatchString(text) {
		value += 3
	}
	if midDiscount.MatchString(text) {
		value += 2
	}
	if smallDiscount.MatchString(text) {
		value++
	}
	if knownBrand.MatchString(text) {
		value += 2
	}
	if timeLimited.MatchString(text) {
		value++
	}
	return min(value, 10)
}

func offerUrgency(desc string) Urgency {
	text := strings.ToLower(desc)
	switch {
	case offerHighUrg.MatchString(text):
		return UrgencyHigh
	case offerMediumUrg.MatchString(text):
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}
