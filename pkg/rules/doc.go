// Package rules defines the raw declarative rule structures handed over
// by the external configuration loader: actions, global filter sections,
// content filter (WAF) profiles and signature definitions.
//
// Nothing here is executable. The matcher compilers (pkg/filter,
// pkg/waf, pkg/decision) turn these structures into compiled, immutable
// matchers in an explicit two-stage pipeline, so that a malformed entity
// can be dropped in isolation without aborting the whole load.
package rules
