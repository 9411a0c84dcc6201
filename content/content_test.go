package content

import (
	"testing"
	"time"
)

func TestAddressEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Address
		want bool
	}{
		{"SameCase", "0xabc123", "0xabc123", true},
		{"MixedCase", "0xAbC123", "0xabc123", true},
		{"Whitespace", " 0xabc123", "0xabc123", true},
		{"Different", "0xabc123", "0xdef456", false},
		{"BothEmpty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestItemIsCreator(t *testing.T) {
	item := &Item{ID: "1", CreatorID: "0xAAA"}

	if !item.IsCreator("0xaaa") {
		t.Error("creator check should be case-insensitive")
	}
	if item.IsCreator("0xbbb") {
		t.Error("non-creator should not match")
	}
	if item.IsCreator("") {
		t.Error("unset viewer must never match the creator")
	}
}

func TestMeteredPaymentRequired(t *testing.T) {
	if !(&Item{LicenseKind: MeteredPerRequest}).MeteredPaymentRequired() {
		t.Error("metered item should require per-request payment")
	}
	if (&Item{LicenseKind: DurationSubscription}).MeteredPaymentRequired() {
		t.Error("subscription item should not require per-request payment")
	}
}

func TestLicenseKindValid(t *testing.T) {
	for _, k := range []LicenseKind{DurationSubscription, PermanentSinglePayment, MeteredPerRequest} {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if LicenseKind("rental").Valid() {
		t.Error("unknown kind should be invalid")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name    string
		seconds int64
		want    string
	}{
		{"Permanent", 0, "permanent"},
		{"Minutes", 1800, "30m"},
		{"HoursMinutes", 2*3600 + 1200, "2h 20m"},
		{"DaysHours", 26 * 3600, "1d 2h"},
		{"SubMinute", 30, "<1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.seconds); got != tt.want {
				t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 200); got != "short" {
		t.Errorf("short text should pass through, got %q", got)
	}
	if got := Truncate("abcdefgh", 4); got != "abcd..." {
		t.Errorf("got %q, want %q", got, "abcd...")
	}
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2025, time.March, 9, 14, 30, 0, 0, time.UTC)
	if got := FormatDate(ts); got != "March 9, 2025 14:30" {
		t.Errorf("FormatDate = %q", got)
	}
}
