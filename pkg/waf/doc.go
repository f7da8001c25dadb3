// Package waf implements the per-field WAF layer: compiled content
// filter profiles (per-section entry matchers and resource bounds), the
// multi-pattern signature database, value decoding transformations, and
// the request field scanner that turns matches into block reasons.
//
// Profiles are compiled once per configuration load with per-profile
// atomic acceptance: a profile whose entries do not all compile is
// dropped whole rather than partially applied. The signature database
// is all-or-nothing, since the signatures are evaluated together as one
// scan pass.
//
// The signature scan sits behind the Scanner interface: compile the
// pattern set once, scan a batch of buffers in one pass, report matched
// pattern and buffer indexes. A hyperscan-backed implementation is
// selected by the "hyperscan" build tag; the portable default scans
// with the standard regexp engine.
package waf
