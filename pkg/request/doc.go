// Package request defines the read-only request snapshot consumed by the
// evaluation engine.
//
// The snapshot is produced by an external normalizer (the proxy transport):
// headers, cookies and query arguments arrive already parsed and decoded,
// and geo-IP enrichment is already attached. Nothing in this package
// performs network I/O or raw HTTP parsing.
//
// # Locations
//
// A Location is an evidence pointer into the request. Tags and block
// reasons carry the locations that justified them so the audit trail can
// show exactly which part of the request triggered a rule:
//
//	loc := request.HeaderValueLocation("user-agent", "curl/7.58.0")
//
// Locations are comparable values and may be used as map keys.
//
// # Selectors
//
// A Selector extracts a single named value from a snapshot. Selectors back
// header-template rendering in action resolution:
//
//	sel := request.Selector{Kind: request.SelHeader, Name: "user-agent"}
//	v, ok := sel.Select(info)
package request
