package admission

import "testing"

func TestIsRelevant(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"", false},
		{"ok", false},
		{"  hi ", false},
		{"lol", false},
		{"Thanks", false},
		{"good morning", false},
		{"brb", false},
		{"🔥", false},
		{"the weather is great today", false},
		{"any good deals on shoes?", true},
		{"I NEED a cheap flight", true},
		{"anyone tried Netflix lately", true},
		{"looking for crypto signals", true},
		{"free", true},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			if got := IsRelevant(tt.content); got != tt.want {
				t.Errorf("IsRelevant(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}
