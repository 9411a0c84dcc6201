package paywall

import "github.com/newsprint/paywall/id"

// ID is the primary identifier type for all Paywall records.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
