package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "R$ 0,00"},
		{"50", "R$ 50,00"},
		{"1234.5", "R$ 1.234,50"},
		{"1234567.891", "R$ 1.234.567,89"},
		{"-100", "-R$ 100,00"},
		{"999.999", "R$ 1.000,00"},
		{"1000", "R$ 1.000,00"},
		{"-98765432.1", "-R$ 98.765.432,10"},
	}
	for _, tt := range tests {
		if got := Format(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("Format(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234.56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"R$ 50,00", "50"},
		{" 80 ", "80"},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.in, err)
		}
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := Parse("abc"); err == nil {
		t.Error("expected error for non-numeric input")
	}
}

func TestJSONNumbers(t *testing.T) {
	raw, err := json.Marshal(map[string]decimal.Decimal{"amount": decimal.RequireFromString("50.5")})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"amount":50.5}` {
		t.Errorf("expected unquoted number, got %s", raw)
	}
}
