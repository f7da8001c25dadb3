package filter

import (
	"net/netip"
	"regexp"

	"go4.org/netipx"

	"mercator-hq/palisade/pkg/decision"
)

// Relation folds the boolean results of a node's children.
type Relation string

const (
	RelationAnd Relation = "and"
	RelationOr  Relation = "or"
)

// SingleEntry matches one string-valued request field. The pattern
// doubles as an exact string and an optional regex: the entry matches
// when either does. A pattern that fails to compile degrades to
// exact-only matching.
type SingleEntry struct {
	Exact string
	Re    *regexp.Regexp
}

// Match reports whether the value satisfies the entry.
func (e *SingleEntry) Match(v string) bool {
	return e.Exact == v || (e.Re != nil && e.Re.MatchString(v))
}

// PairEntry matches one keyed request field (header, cookie, argument).
type PairEntry struct {
	Key   string
	Exact string
	Re    *regexp.Regexp
}

// Match reports whether the value satisfies the entry.
func (e *PairEntry) Match(v string) bool {
	return e.Exact == v || (e.Re != nil && e.Re.MatchString(v))
}

// EntryKind identifies a leaf predicate.
type EntryKind string

const (
	EntryIP        EntryKind = "ip"
	EntryNetwork   EntryKind = "network"
	EntryRange4    EntryKind = "range4"
	EntryRange6    EntryKind = "range6"
	EntryPath      EntryKind = "path"
	EntryQuery     EntryKind = "query"
	EntryURI       EntryKind = "uri"
	EntryCountry   EntryKind = "country"
	EntryRegion    EntryKind = "region"
	EntrySubregion EntryKind = "subregion"
	EntryMethod    EntryKind = "method"
	EntryHeader    EntryKind = "header"
	EntryArgs      EntryKind = "args"
	EntryCookies   EntryKind = "cookies"
	EntryASN       EntryKind = "asn"
	EntryCompany   EntryKind = "company"
	EntryAuthority EntryKind = "authority"
	EntryTag       EntryKind = "tag"

	// EntryIPSet is produced by the compile-time IP-range optimization:
	// several CIDR entries collapsed into one interval set.
	EntryIPSet EntryKind = "ipset"
)

// Entry is one compiled leaf predicate. Only the payload matching Kind
// is set.
type Entry struct {
	Negated bool
	Kind    EntryKind

	IP     netip.Addr
	Net    netip.Prefix
	Set    *netipx.IPSet
	ASN    uint32
	Single *SingleEntry
	Pair   *PairEntry
}

// Subsection is a relation over leaf entries.
type Subsection struct {
	Relation Relation
	Entries  []Entry
}

// Section is one compiled global filter: a relation over subsections,
// descriptive tags applied on match, and an optional action. Sections
// are compiled once per configuration load and shared read-only across
// concurrent evaluations.
type Section struct {
	ID   string
	Name string
	Tags []string

	// Action is nil for tag-only sections.
	Action *decision.SimpleAction

	Relation    Relation
	Subsections []Subsection
}
