package offers

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleCatalog = `# Weekly deals
FOOD
Dominos – 50% off pizza today only https://dominos.example/deal

Nike – 20% off running shoes.
not an offer line
`

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2: %+v", c.Len(), c.Offers)
	}

	dominos := c.Offers[0]
	want := Offer{
		Name:        "Dominos",
		Description: "50% off pizza today only",
		URL:         "https://dominos.example/deal",
		Category:    "food",
		Keywords:    []string{"dominos", "pizza", "today", "only"},
		Value:       9,
		Urgency:     UrgencyHigh,
	}
	if !reflect.DeepEqual(dominos, want) {
		t.Errorf("offer[0] = %+v\nwant      %+v", dominos, want)
	}

	nike := c.Offers[1]
	if nike.Description != "20% off running shoes" {
		t.Errorf("trailing period not stripped: %q", nike.Description)
	}
	if nike.URL != "" || nike.Category != "fashion" || nike.Value != 9 || nike.Urgency != UrgencyLow {
		t.Errorf("offer[1] = %+v", nike)
	}

	if !strings.Contains(c.Text, "Weekly deals") {
		t.Errorf("raw text not kept: %q", c.Text)
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offers.txt")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if _, ok := c.Lookup("Nike"); !ok {
		t.Error("Lookup(Nike) not found")
	}

	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"The best deal for all shoes!", []string{"best", "deal", "shoes"}},
		{"pizza pizza PIZZA", []string{"pizza"}},
		{"one two three four five six seven eight nine ten", []string{"one", "two", "three", "four", "five", "six", "seven", "eight"}},
		{"a b c", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := extractKeywords(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractKeywords(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOfferValue(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Generic store – something", 5},
		{"Starbucks – free drink 50% off today", 10},
		{"Shop – 10% off", 6},
	}
	for _, tt := range tests {
		if got := offerValue(tt.in); got != tt.want {
			t.Errorf("offerValue(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestOfferUrgency(t *testing.T) {
	tests := map[string]Urgency{
		"flash sale":          UrgencyHigh,
		"valid this weekend":  UrgencyMedium,
		"ongoing 10% savings": UrgencyLow,
	}
	for in, want := range tests {
		if got := offerUrgency(in); got != want {
			t.Errorf("offerUrgency(%q) = %q, want %q", in, got, want)
		}
	}
}
