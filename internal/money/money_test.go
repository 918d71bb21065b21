package money

import (
	"testing"

	"ledger-sync-go/internal/store"
)

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		value  string
		digits int
		want   int64
	}{
		{"10.50", 2, 1050},
		{"0.01", 2, 1},
		{"-99999999.99", 2, -9999999999},
		{"1.15", 2, 115},
		{"100", 2, 10000},
		{"0", 2, 0},
		{"5", 0, 5},
		{"0.000001", 6, 1},
	}

	for _, tc := range cases {
		got, err := ToMinorUnits(tc.value, tc.digits)
		if err != nil {
			t.Fatalf("ToMinorUnits(%q, %d) failed: %v", tc.value, tc.digits, err)
		}
		if got != tc.want {
			t.Errorf("ToMinorUnits(%q, %d) = %d, want %d", tc.value, tc.digits, got, tc.want)
		}
	}
}

func TestToMinorUnits_RejectsExcessPrecision(t *testing.T) {
	_, err := ToMinorUnits("1.155", 2)
	if err == nil {
		t.Fatal("Expected error for excess precision, got nil")
	}
	if !store.IsValidation(err) {
		t.Errorf("Expected ValidationError, got: %v", err)
	}
}

func TestToMinorUnits_RejectsGarbage(t *testing.T) {
	for _, value := range []string{"", "abc", "1.2.3", "1,50"} {
		if _, err := ToMinorUnits(value, 2); err == nil {
			t.Errorf("Expected error for %q, got nil", value)
		}
	}
}

func TestFromMinorUnits(t *testing.T) {
	cases := []struct {
		minor  int64
		digits int
		want   string
	}{
		{1050, 2, "10.50"},
		{1, 2, "0.01"},
		{-9999999999, 2, "-99999999.99"},
		{115, 2, "1.15"},
		{0, 2, "0.00"},
		{5, 0, "5"},
	}

	for _, tc := range cases {
		got := FromMinorUnits(tc.minor, tc.digits)
		if got != tc.want {
			t.Errorf("FromMinorUnits(%d, %d) = %q, want %q", tc.minor, tc.digits, got, tc.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, value := range []string{"10.50", "0.01", "-99999999.99", "1.15", "0.00"} {
		minor, err := ToMinorUnits(value, 2)
		if err != nil {
			t.Fatalf("ToMinorUnits(%q) failed: %v", value, err)
		}
		back := FromMinorUnits(minor, 2)
		if back != value {
			t.Errorf("Round trip %q -> %d -> %q", value, minor, back)
		}
	}
}
