package audithook

// Action constants for audit events.
const (
	// Catalog actions
	ActionContentRegistered = "content.registered"
	ActionLocatorUpdated    = "content.locator.updated"

	// Entitlement actions
	ActionEntitlementResolved = "entitlement.resolved"
	ActionEntitlementDenied   = "entitlement.denied"
	ActionSourceUnavailable   = "source.unavailable"

	// Purchase actions
	ActionPurchaseStarted = "purchase.started"
	ActionPurchaseSettled = "purchase.settled"
	ActionPurchaseFailed  = "purchase.failed"

	// Payload actions
	ActionPayloadFetched = "payload.fetched"

	// Access log actions
	ActionAccessFlushed = "access.flushed"
)

// Resource constants for audit events.
const (
	ResourceContent     = "content"
	ResourceEntitlement = "entitlement"
	ResourcePurchase    = "purchase"
	ResourcePayload     = "payload"
	ResourceAccessLog   = "access_log"
)

// Category constants for audit events.
const (
	CategoryCatalog = "catalog"
	CategoryAccess  = "access"
	CategoryPayment = "payment"
	CategoryUsage   = "usage"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
