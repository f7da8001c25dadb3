// Package config ties the rule pipeline together: engine settings
// loaded from YAML, the two-stage compilation of raw rule sets into
// immutable snapshots, and the reference-counted provider that swaps
// snapshots atomically while in-flight evaluations keep using the one
// they acquired.
//
// Snapshots are never mutated after publication. A reload compiles a
// complete replacement from the raw set; a reload that fails keeps the
// previous snapshot in service. Individual entities (one filter, one
// profile) that fail to compile are dropped and logged without
// affecting their siblings, with one exception: the signature set is
// all-or-nothing, because the signatures form a single scan database.
package config
