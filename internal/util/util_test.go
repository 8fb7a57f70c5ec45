package util

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"10":          "10",
		"10.5":        "10.5",
		"10,50":       "10.5",
		"R$ 1.234,56": "1234.56",
		" 25 ":        "25",
	}
	for input, want := range cases {
		got, err := ParseAmount(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("parse %q: got %s want %s", input, got, want)
		}
	}

	for _, input := range []string{"", "abc", "10.505", "R$"} {
		if _, err := ParseAmount(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestMoney(t *testing.T) {
	if got := Money(decimal.RequireFromString("7.5")); got != "R$ 7.50" {
		t.Fatalf("unexpected money %q", got)
	}
}

func TestHideSecret(t *testing.T) {
	if got := HideSecret("sk_live_1234567890"); got != "sk_l...7890" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := HideSecret("ab"); got != "ab" {
		t.Fatalf("unexpected short mask %q", got)
	}
}
