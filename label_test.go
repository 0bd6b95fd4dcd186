package livelist

import "testing"

func TestDefaultHeaderLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"apple", "a"},
		{"Zebra", "Z"},
		{"éclair", "é"},
		{"éclair", "é"},
		{"日本", "日"},
		{"7up", "7"},
	}
	for _, tt := range tests {
		if got := DefaultHeaderLabel(tt.in); got != tt.want {
			t.Errorf("DefaultHeaderLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFoldedHeaderLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"apple", "A"},
		{"Avocado", "A"},
		{"e\u0301clair", "\u00c9"},
	}
	for _, tt := range tests {
		if got := FoldedHeaderLabel(tt.in); got != tt.want {
			t.Errorf("FoldedHeaderLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
