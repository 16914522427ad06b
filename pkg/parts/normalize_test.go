package parts

import "testing"

func TestNormalizePartNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"lm-358 N", "LM358N"},
		{"LM358N", "LM358N"},
		{"  stm32_f103/c8t6 ", "STM32F103C8T6"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePartNumber(tt.in); got != tt.want {
			t.Errorf("NormalizePartNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in, value, currency string
	}{
		{"Rs. 1,250.00", "1250.00", "LKR"},
		{"$0.12 / pc", "0.12", "USD"},
		{"€3.40", "3.40", "EUR"},
		{"Call for price", "", ""},
		{"12", "12", ""},
	}
	for _, tt := range tests {
		v, c := ParsePrice(tt.in)
		if v != tt.value || c != tt.currency {
			t.Errorf("ParsePrice(%q) = (%q, %q), want (%q, %q)", tt.in, v, c, tt.value, tt.currency)
		}
	}
}

func TestParseQty(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"In Stock: 1500", 1500},
		{"1,500+ available", 1500},
		{"Out of stock", QtyUnknown},
		{"", QtyUnknown},
	}
	for _, tt := range tests {
		if got := ParseQty(tt.in); got != tt.want {
			t.Errorf("ParseQty(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
