package paywall

import (
	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/entitlement"
	"github.com/newsprint/paywall/types"
)

// Re-export common types for convenience so users don't have to import
// the leaf packages.

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// Address is re-exported from content package.
type Address = content.Address

// Decision is re-exported from entitlement package.
type Decision = entitlement.Decision

// Re-export Amount constructors
var (
	CAMP         = types.CAMP
	Base         = types.Base
	ZeroAmount   = types.ZeroAmount
	ParseDecimal = types.ParseDecimal
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
