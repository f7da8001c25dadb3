// Package tags implements the request tag set.
//
// Tags are short descriptive strings accumulated while a request is
// evaluated: baseline facts (client address, geo data, section sizes),
// names declared by matching global filter sections, and extra tags
// attached by resolved actions. Each tag carries the set of request
// locations that justified it, accumulated by union, so the audit trail
// can point back at the evidence.
//
// Tag names are normalized: lowercased, with every rune outside ASCII
// letters, digits and ':' replaced by '-'.
//
// A tag set is created empty per request, mutated only during evaluation,
// and treated as immutable once the decision is final.
package tags
