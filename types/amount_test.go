package types

import (
	"encoding/json"
	"testing"
)

func TestAmountConstructors(t *testing.T) {
	tests := []struct {
		name    string
		amount  Amount
		display string
	}{
		{"OneAndAHalf", CAMP("1500000000000000000"), "1.5 CAMP"},
		{"Whole", CAMP("2000000000000000000"), "2 CAMP"},
		{"SubUnit", CAMP("1"), "0.000000000000000001 CAMP"},
		{"Zero", ZeroAmount("CAMP"), "0 CAMP"},
		{"BaseUnits", Base(5, "eth"), "0.000000000000000005 ETH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.String(); got != tt.display {
				t.Errorf("Display: got %s, want %s", got, tt.display)
			}
		})
	}
}

func TestAmountParseDecimal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		base    string
		wantErr bool
	}{
		{"Whole", "2", "2000000000000000000", false},
		{"Fraction", "1.5", "1500000000000000000", false},
		{"LeadingDot", ".25", "250000000000000000", false},
		{"TooPrecise", "0.0000000000000000001", "", true},
		{"Garbage", "abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseDecimal(tt.in, "CAMP")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if a.BaseString() != tt.base {
				t.Errorf("got %s base units, want %s", a.BaseString(), tt.base)
			}
		})
	}
}

func TestAmountArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Amount
		expected Amount
	}{
		{"Add", func() Amount { return Base(100, "CAMP").Add(Base(200, "CAMP")) }, Base(300, "CAMP")},
		{"Subtract", func() Amount { return Base(500, "CAMP").Subtract(Base(200, "CAMP")) }, Base(300, "CAMP")},
		{"Multiply", func() Amount { return Base(100, "CAMP").Multiply(3) }, Base(300, "CAMP")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestAmountSymbolMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for symbol mismatch")
		}
	}()

	_ = Base(100, "CAMP").Add(Base(100, "ETH"))
}

func TestAmountJSONRoundTrip(t *testing.T) {
	original := CAMP("1500000000000000000")
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Amount
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !decoded.Equal(original) {
		t.Errorf("round-trip mismatch: %v != %v", decoded, original)
	}
}

func TestAmountZeroValue(t *testing.T) {
	var a Amount
	if !a.IsZero() {
		t.Error("zero-value Amount should report IsZero")
	}
	if got := a.BaseString(); got != "0" {
		t.Errorf("zero-value base string: got %s, want 0", got)
	}
}
