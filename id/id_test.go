package id_test

import (
	"strings"
	"testing"

	"github.com/newsprint/paywall/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"AttemptID", id.NewAttemptID, "att_"},
		{"ReceiptID", id.NewReceiptID, "rcpt_"},
		{"AccessEventID", id.NewAccessEventID, "aevt_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"AttemptID", id.NewAttemptID, id.ParseAttemptID},
		{"ReceiptID", id.NewReceiptID, id.ParseReceiptID},
		{"AccessEventID", id.NewAccessEventID, id.ParseAccessEventID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	attempt := id.NewAttemptID()
	if _, err := id.ParseReceiptID(attempt.String()); err == nil {
		t.Error("expected prefix mismatch error parsing attempt ID as receipt ID")
	}
}

func TestNilID(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Error("Nil should report IsNil")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil.String() = %q, want empty", id.Nil.String())
	}
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error parsing empty string")
	}
}
