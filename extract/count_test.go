package extract

import (
	"testing"

	"github.com/use-agent/postpulse/models"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want models.Count
	}{
		{"76.7M", 76_700_000},
		{"12.3K", 12_300},
		{"958", 958},
		{"1.2B", 1_200_000_000},
		{"1,234", 1_234},
		{"4.35K", 4_350},
		{"12.3 k", 12_300},
		{"0", 0},
		{"2.5m views", 2_500_000},
		{"", models.Unknown},
		{"Like", models.Unknown},
		{"K", models.Unknown},
		{"9999999999999999", models.Unknown},
	}
	for _, tt := range tests {
		if got := ParseCount(tt.in); got != tt.want {
			t.Errorf("ParseCount(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFirstCount(t *testing.T) {
	tests := []struct {
		in   string
		want models.Count
	}{
		{"Reply 1,204", 1_204},
		{"Likes\n12.3K", 12_300},
		{"no digits here", models.Unknown},
	}
	for _, tt := range tests {
		if got := firstCount(tt.in); got != tt.want {
			t.Errorf("firstCount(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPlausible(t *testing.T) {
	ok := plausible(1_000)
	if !ok(0) || !ok(1_000) {
		t.Error("zero and the bound itself must be accepted")
	}
	if ok(1_001) || ok(models.Unknown) {
		t.Error("unknown and out-of-range counts must be rejected")
	}
}

func TestIsTimestamp(t *testing.T) {
	for _, s := range []string{"3:44 PM · Apr 16, 2025", "3:44 pm · 16 Apr 2025", "10:02 AM", "Apr 16, 2025"} {
		if !IsTimestamp(s) {
			t.Errorf("IsTimestamp(%q) = false", s)
		}
	}
	for _, s := range []string{"Hello world", "The 2025 budget is out"} {
		if IsTimestamp(s) {
			t.Errorf("IsTimestamp(%q) = true", s)
		}
	}
}
