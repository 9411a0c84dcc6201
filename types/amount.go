// Package types provides common types used across Paywall.
package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Amount represents a token value in base units (the chain's smallest
// denomination). All arithmetic is big-integer only, never floating point.
//
// Examples with the default 18-decimal token:
//   - CAMP("1500000000000000000") = 1.5 CAMP
//   - Base(0, "CAMP") = 0 CAMP
type Amount struct {
	Units  *big.Int `json:"units"`  // Base units
	Symbol string   `json:"symbol"` // Token symbol, uppercased: "CAMP", "ETH"
}

// TokenDecimals is the base-unit scale used by Format and ParseDecimal.
const TokenDecimals = 18

// Base creates an Amount from an int64 number of base units.
func Base(units int64, symbol string) Amount {
	return Amount{Units: big.NewInt(units), Symbol: strings.ToUpper(symbol)}
}

// CAMP creates an Amount in the platform token from a base-unit decimal string.
// It panics on a malformed string (programming error in literals).
func CAMP(units string) Amount {
	u, ok := new(big.Int).SetString(units, 10)
	if !ok {
		panic(fmt.Sprintf("amount: invalid base units %q", units))
	}
	return Amount{Units: u, Symbol: "CAMP"}
}

// ZeroAmount returns a zero Amount in the given token.
func ZeroAmount(symbol string) Amount {
	return Amount{Units: new(big.Int), Symbol: strings.ToUpper(symbol)}
}

// ParseDecimal parses a human decimal string ("1.5") into base units.
func ParseDecimal(s, symbol string) (Amount, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > TokenDecimals {
		return Amount{}, fmt.Errorf("amount: %q has more than %d decimal places", s, TokenDecimals)
	}
	frac += strings.Repeat("0", TokenDecimals-len(frac))

	u, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return Amount{}, fmt.Errorf("amount: invalid decimal %q", s)
	}
	return Amount{Units: u, Symbol: strings.ToUpper(symbol)}, nil
}

// Arithmetic operations

// Add adds two Amounts. Panics if symbols don't match.
func (a Amount) Add(other Amount) Amount {
	a.assertSameSymbol(other)
	return Amount{Units: new(big.Int).Add(a.units(), other.units()), Symbol: a.Symbol}
}

// Subtract subtracts another Amount. Panics if symbols don't match.
func (a Amount) Subtract(other Amount) Amount {
	a.assertSameSymbol(other)
	return Amount{Units: new(big.Int).Sub(a.units(), other.units()), Symbol: a.Symbol}
}

// Multiply multiplies the Amount by a quantity.
func (a Amount) Multiply(qty int64) Amount {
	return Amount{Units: new(big.Int).Mul(a.units(), big.NewInt(qty)), Symbol: a.Symbol}
}

// IsZero reports whether the Amount is zero.
func (a Amount) IsZero() bool {
	return a.units().Sign() == 0
}

// Cmp compares two Amounts. Panics if symbols don't match.
func (a Amount) Cmp(other Amount) int {
	a.assertSameSymbol(other)
	return a.units().Cmp(other.units())
}

// Equal reports whether two Amounts have the same units and symbol.
func (a Amount) Equal(other Amount) bool {
	return a.Symbol == other.Symbol && a.units().Cmp(other.units()) == 0
}

// String formats the Amount as a trimmed decimal with its symbol,
// e.g. "1.5 CAMP" or "0 CAMP".
func (a Amount) String() string {
	u := a.units()
	neg := u.Sign() < 0
	digits := new(big.Int).Abs(u).String()

	if len(digits) <= TokenDecimals {
		digits = strings.Repeat("0", TokenDecimals-len(digits)+1) + digits
	}
	split := len(digits) - TokenDecimals
	whole, frac := digits[:split], digits[split:]
	frac = strings.TrimRight(frac, "0")

	s := whole
	if frac != "" {
		s += "." + frac
	}
	if neg {
		s = "-" + s
	}
	return s + " " + a.Symbol
}

// BaseString returns the raw base-unit integer as a decimal string, the
// form ledger transactions carry.
func (a Amount) BaseString() string {
	return a.units().String()
}

// MarshalJSON implements json.Marshaler. Units serialize as a string to
// survive JSON number precision limits.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Units  string `json:"units"`
		Symbol string `json:"symbol"`
	}{Units: a.units().String(), Symbol: a.Symbol})
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw struct {
		Units  string `json:"units"`
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Units == "" {
		raw.Units = "0"
	}
	u, ok := new(big.Int).SetString(raw.Units, 10)
	if !ok {
		return fmt.Errorf("amount: invalid base units %q", raw.Units)
	}
	a.Units = u
	a.Symbol = strings.ToUpper(raw.Symbol)
	return nil
}

func (a Amount) units() *big.Int {
	if a.Units == nil {
		return new(big.Int)
	}
	return a.Units
}

func (a Amount) assertSameSymbol(other Amount) {
	if a.Symbol != other.Symbol {
		panic(fmt.Sprintf("amount: symbol mismatch: %s vs %s", a.Symbol, other.Symbol))
	}
}
