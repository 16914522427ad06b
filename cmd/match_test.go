package cmd

import "testing"

func TestLineTotal(t *testing.T) {
	tests := []struct {
		price     string
		qty       int
		formatted string
		ok        bool
	}{
		{"0.10", 25, "2.50", true},
		{"120", 3, "360.00", true},
		{"", 5, "", false},        // price unknown
		{"0.10", 0, "", false},    // quantity unknown
		{"abc", 5, "", false},     // unparseable price
		{"0.333", 3, "1.00", true}, // rounded to cents
	}
	for _, tt := range tests {
		formatted, _, ok := lineTotal(tt.price, tt.qty)
		if formatted != tt.formatted || ok != tt.ok {
			t.Errorf("lineTotal(%q, %d) = %q, %t; want %q, %t", tt.price, tt.qty, formatted, ok, tt.formatted, tt.ok)
		}
	}
}
