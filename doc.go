// Package paywall provides an entitlement resolution and consistency
// reconciliation engine for token-gated content.
//
// Paywall is designed as a library, not a service. Import it directly
// into your Go application. It bridges three independently-consistent
// data sources into one reliable "has access" signal: a blockchain ledger
// (authoritative but slow to settle), an off-chain index (fast to query
// but lagging the ledger), and a metered per-request payment protocol
// (immediate, stateless per request). It provides:
//
//   - Fresh, never-cached entitlement decisions with a fixed rule
//     precedence and a fail-closed policy on source outages
//   - A purchase-to-confirmation pipeline with an explicit state machine
//     and observable transitions
//   - Keyed, cancellable confirmation polling with replace-on-restart
//     semantics (no duplicate loops per key)
//   - Single-flight payload retrieval with process-lifetime memoization
//   - A batched access-event log for audit and analytics
//
// # Quick Start
//
// Create an engine with your preferred store and source adapters:
//
//	import (
//	    "github.com/newsprint/paywall"
//	    "github.com/newsprint/paywall/source/ledgerrpc"
//	    "github.com/newsprint/paywall/source/subgraph"
//	    "github.com/newsprint/paywall/source/x402"
//	    "github.com/newsprint/paywall/store/memory"
//	)
//
//	engine := paywall.New(memory.New(),
//	    paywall.WithSources(
//	        ledgerrpc.New(rpcEndpoint),
//	        subgraph.New(subgraphEndpoint),
//	        x402.New(),
//	    ),
//	)
//
//	// Start the engine (begins background workers)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// Content items are licensable works registered in the catalog:
//
//	item := &content.Item{
//	    ID:          "arts-and-letters-44",
//	    CreatorID:   "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
//	    LicenseKind: content.DurationSubscription,
//	    Price:       types.CAMP(5),
//	    DurationSeconds: 30 * 24 * 3600,
//	}
//	engine.RegisterContent(ctx, item)
//
// Decisions are derived fresh on every call:
//
//	d := engine.Resolve(ctx, viewer, item)
//	if d.Granted {
//	    payload, err := engine.FetchContent(ctx, item.ID)
//	    // render payload
//	} else {
//	    excerpt, _ := engine.Preview(ctx, item.ID)
//	    // show excerpt, offer purchase
//	}
//
// Purchases run in the background; subscribe to watch them settle:
//
//	attempt, err := engine.RequestPurchase(ctx, viewer, item.ID)
//	ch, _ := engine.Subscribe(viewer, item.ID)
//	for tr := range ch {
//	    // surface tr.To for progress display
//	}
//
// # TypeID
//
// Records minted by this process use TypeID for globally unique,
// type-safe identifiers:
//
//	att_01h2xcejqtf2nbrexx3vqjhp41   // Purchase attempt
//	rcpt_01h455vb4pex5vsknk084sn02q  // Receipt
//	aevt_01h455vb4pex5vsknk084sn02q  // Access event
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of records.
package paywall
