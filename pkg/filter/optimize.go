package filter

import (
	"net/netip"

	"go4.org/netipx"
)

// OptimizeIPRanges collapses the CIDR entries of one relation into at
// most one interval-set entry per address family. The reduction is
// strictly behavior-preserving: for every address (any family, or no
// address at all) the optimized entries classify exactly as the naive
// per-range evaluation would.
//
// Under And, positives intersect and negatives subtract; with only
// negatives the result is the negated union (de Morgan). Under Or,
// positives union; with negatives present the result is the negated
// form of (intersection of negatives minus the positives), since
// !a || !b == !(a && b).
//
// Non-CIDR entries pass through untouched, as does any family group
// with fewer than two entries.
func OptimizeIPRanges(rel Relation, entries []Entry) []Entry {
	var v4, v6, out []Entry
	for _, e := range entries {
		switch e.Kind {
		case EntryNetwork, EntryRange4, EntryRange6:
			if e.Net.Addr().Is4() {
				v4 = append(v4, e)
			} else {
				v6 = append(v6, e)
			}
		default:
			out = append(out, e)
		}
	}

	for _, group := range [][]Entry{v4, v6} {
		if len(group) < 2 {
			out = append(out, group...)
			continue
		}
		combined, ok := combineRanges(rel, group)
		if !ok {
			// set construction failed, keep the naive form
			out = append(out, group...)
			continue
		}
		out = append(out, combined)
	}
	return out
}

func combineRanges(rel Relation, group []Entry) (Entry, bool) {
	var pos, neg []netip.Prefix
	for _, e := range group {
		if e.Negated {
			neg = append(neg, e.Net)
		} else {
			pos = append(pos, e.Net)
		}
	}

	var (
		set *netipx.IPSet
		err error
	)
	negated := false
	switch rel {
	case RelationAnd:
		if len(pos) > 0 {
			set, err = subtractSets(intersection(pos), union(neg))
		} else {
			// all entries negated: match anything outside their union
			set, err = union(neg).IPSet()
			negated = true
		}
	case RelationOr:
		if len(neg) > 0 {
			set, err = subtractSets(intersection(neg), union(pos))
			negated = true
		} else {
			set, err = union(pos).IPSet()
		}
	default:
		return Entry{}, false
	}
	if err != nil {
		return Entry{}, false
	}
	return Entry{Kind: EntryIPSet, Negated: negated, Set: set}, true
}

func union(prefixes []netip.Prefix) *netipx.IPSetBuilder {
	var b netipx.IPSetBuilder
	for _, p := range prefixes {
		b.AddPrefix(p)
	}
	return &b
}

func intersection(prefixes []netip.Prefix) *netipx.IPSetBuilder {
	var b netipx.IPSetBuilder
	if len(prefixes) == 0 {
		return &b
	}
	b.AddPrefix(prefixes[0])
	for _, p := range prefixes[1:] {
		var pb netipx.IPSetBuilder
		pb.AddPrefix(p)
		ps, err := pb.IPSet()
		if err != nil {
			return &netipx.IPSetBuilder{}
		}
		b.Intersect(ps)
	}
	return &b
}

func subtractSets(from, minus *netipx.IPSetBuilder) (*netipx.IPSet, error) {
	ms, err := minus.IPSet()
	if err != nil {
		return nil, err
	}
	from.RemoveSet(ms)
	return from.IPSet()
}
