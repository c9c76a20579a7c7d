package importer

import (
	"testing"
	"time"
)

func TestParseBRL(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"R$ 1.234,56", "1234.56"},
		{"56,80", "56.8"},
		{"1234.56", "1234.56"},
		{"R$284,08", "284.08"},
		{"-10,00", "-10"},
		{" 100 ", "100"},
	}
	for _, tc := range cases {
		d, err := parseBRL(tc.in)
		if err != nil {
			t.Fatalf("parseBRL(%q) error: %v", tc.in, err)
		}
		if d.String() != tc.expected {
			t.Fatalf("parseBRL(%q) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}
}

func TestParseBRL_RejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "R$"} {
		if _, err := parseBRL(in); err == nil {
			t.Fatalf("parseBRL(%q) should fail", in)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in       string
		expected time.Time
	}{
		{"06/08/2025", time.Date(2025, time.August, 6, 0, 0, 0, 0, time.UTC)},
		{"06/08/2025 14:30:00", time.Date(2025, time.August, 6, 14, 30, 0, 0, time.UTC)},
		{"2025-08-06", time.Date(2025, time.August, 6, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := parseDate(tc.in)
		if err != nil {
			t.Fatalf("parseDate(%q) error: %v", tc.in, err)
		}
		if !got.Equal(tc.expected) {
			t.Fatalf("parseDate(%q) expected %s, got %s", tc.in, tc.expected, got)
		}
	}
	if _, err := parseDate("not a date"); err == nil {
		t.Fatal("expected an error for garbage input")
	}
}

func TestParseInstallment(t *testing.T) {
	cases := []struct {
		in             string
		current, total int
	}{
		{"2/6", 2, 6},
		{"1/1", 1, 1},
		{"5", 1, 5},
		{"", 1, 1},
		{"à vista", 1, 1},
	}
	for _, tc := range cases {
		current, total := parseInstallment(tc.in)
		if current != tc.current || total != tc.total {
			t.Fatalf("parseInstallment(%q) expected %d/%d, got %d/%d",
				tc.in, tc.current, tc.total, current, total)
		}
	}
}
