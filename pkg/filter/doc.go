// Package filter implements the global filter rule set: compilation of
// declarative boolean predicate trees into immutable matchers, and their
// evaluation against one request.
//
// A filter section is a two-level tree: a relation (and/or) over
// subsections, each a relation over negatable leaf predicates (IP and
// CIDR containment, ASN, geo fields, header/cookie/argument values,
// method, path, URI, authority, tag membership). Matching sections tag
// the request; sections carrying an action can end the evaluation with
// a pre-resolution decision.
//
// Sets of CIDR predicates under one relation are collapsed at compile
// time into an equivalent interval set (see OptimizeIPRanges); the
// optimization is behavior-preserving for every address.
package filter
