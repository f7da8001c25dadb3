package filter

import (
	"strings"

	"mercator-hq/palisade/pkg/decision"
	"mercator-hq/palisade/pkg/request"
	"mercator-hq/palisade/pkg/tags"
)

// MatchResult is the outcome of one tree node: the boolean verdict and
// the locations that served as positive evidence. A negated non-match
// satisfies the predicate but contributes no evidence: negation must
// not manufacture positive proof.
type MatchResult struct {
	Matched  tags.LocationSet
	Matching bool
}

// EvalStats counts the sections evaluated and matched, for the audit
// record.
type EvalStats struct {
	Total   int
	Matched int
}

// Evaluate runs every global filter section against one request.
//
// Matching sections attach their tags (justified by the union of
// matched locations). A section with a Monitor action folds into the
// running decision and scanning continues, so cooperating monitor rules
// all contribute; a Challenge action on a request already classified
// human is informational only. Any other action ends the evaluation
// immediately. With no enforcing section the running decision (pass, or
// accumulated monitors) is returned.
func Evaluate(sections []Section, info *request.Info, tg *tags.Tags, human bool) (decision.SimpleDecision, EvalStats) {
	cur := decision.PassSimple()
	matched := 0
	for i := range sections {
		sec := &sections[i]
		m := checkSection(info, tg, sec)
		if !m.Matching {
			continue
		}
		matched++
		tg.AddNamed(sec.Tags, m.Matched)
		if sec.Action == nil {
			continue
		}
		reasons := []decision.BlockReason{
			decision.GlobalFilterReason(sec.ID, sec.Name, sec.Action.ToRaw()),
		}
		switch {
		case sec.Action.Kind == decision.SimpleMonitor:
			cur = decision.Stronger(cur, decision.SimpleDecision{Action: sec.Action, Reasons: reasons})
		case sec.Action.Kind == decision.SimpleChallenge && human:
			// nothing to challenge, the tags alone are the outcome
		default:
			return decision.Stronger(cur, decision.SimpleDecision{Action: sec.Action, Reasons: reasons}),
				EvalStats{Total: len(sections), Matched: matched}
		}
	}
	return cur, EvalStats{Total: len(sections), Matched: matched}
}

func checkSection(info *request.Info, tg *tags.Tags, sec *Section) MatchResult {
	return foldRelation(sec.Relation, sec.Subsections, func(ss *Subsection) MatchResult {
		return checkSubsection(info, tg, ss)
	})
}

func checkSubsection(info *request.Info, tg *tags.Tags, ss *Subsection) MatchResult {
	return foldRelation(ss.Relation, ss.Entries, func(e *Entry) MatchResult {
		return checkEntry(info, tg, e)
	})
}

// foldRelation folds children under a relation: And starts true, Or
// starts false. An empty child list therefore evaluates to true under
// And and false under Or. Evidence accumulates from every child;
// short-circuiting would only be an optimization and is not applied, so
// the evidence union is complete.
func foldRelation[T any](rel Relation, items []T, check func(*T) MatchResult) MatchResult {
	matched := make(tags.LocationSet)
	matching := rel == RelationAnd
	for i := range items {
		m := check(&items[i])
		matched.Union(m.Matched)
		if rel == RelationAnd {
			matching = matching && m.Matching
		} else {
			matching = matching || m.Matching
		}
	}
	return MatchResult{Matched: matched, Matching: matching}
}

func checkEntry(info *request.Info, tg *tags.Tags, e *Entry) MatchResult {
	locs, ok := entryEvidence(info, tg, e)
	if ok {
		return MatchResult{Matched: locs, Matching: !e.Negated}
	}
	return MatchResult{Matched: tags.LocationSet{}, Matching: e.Negated}
}

// entryEvidence reports whether the raw (pre-negation) predicate holds,
// and with which evidence.
func entryEvidence(info *request.Info, tg *tags.Tags, e *Entry) (tags.LocationSet, bool) {
	single := func(v string, loc request.Location) (tags.LocationSet, bool) {
		if e.Single.Match(v) {
			return tags.LocationSet{loc: {}}, true
		}
		return nil, false
	}
	ipLoc := func(ok bool) (tags.LocationSet, bool) {
		if ok {
			return tags.LocationSet{request.IPLocation: {}}, true
		}
		return nil, false
	}
	ip := info.Geo.IP

	switch e.Kind {
	case EntryIP:
		return ipLoc(ip.IsValid() && ip == e.IP)
	case EntryNetwork, EntryRange4, EntryRange6:
		// Contains is false for a mismatched address family
		return ipLoc(ip.IsValid() && e.Net.Contains(ip))
	case EntryIPSet:
		return ipLoc(ip.IsValid() && e.Set.Contains(ip))
	case EntryASN:
		return ipLoc(info.Geo.ASN != 0 && info.Geo.ASN == e.ASN)

	case EntryPath:
		return single(info.Path, request.PathLocation)
	case EntryQuery:
		return single(info.Query, request.PathLocation)
	case EntryURI:
		return single(info.URI, request.URILocation)
	case EntryMethod:
		return single(info.Method, request.RequestLocation)
	case EntryAuthority:
		return single(info.Authority, request.RequestLocation)

	case EntryCountry:
		if info.Geo.CountryISO == "" {
			return nil, false
		}
		return single(strings.ToLower(info.Geo.CountryISO), request.IPLocation)
	case EntryRegion:
		if info.Geo.Region == "" {
			return nil, false
		}
		return single(strings.ToLower(info.Geo.Region), request.IPLocation)
	case EntrySubregion:
		if info.Geo.Subregion == "" {
			return nil, false
		}
		return single(strings.ToLower(info.Geo.Subregion), request.IPLocation)
	case EntryCompany:
		if info.Geo.Company == "" {
			return nil, false
		}
		return single(info.Geo.Company, request.IPLocation)

	case EntryHeader:
		return pairEvidence(e.Pair, info.Headers, func(v string) request.Location {
			return request.HeaderValueLocation(e.Pair.Key, v)
		})
	case EntryArgs:
		return pairEvidence(e.Pair, info.Args, func(v string) request.Location {
			return request.ArgValueLocation(e.Pair.Key, v)
		})
	case EntryCookies:
		return pairEvidence(e.Pair, info.Cookies, func(v string) request.Location {
			return request.CookieValueLocation(e.Pair.Key, v)
		})

	case EntryTag:
		// a tag predicate absorbs the evidence recorded by whatever
		// earlier rule set that tag
		return tg.Locations(e.Single.Exact)

	default:
		return nil, false
	}
}

func pairEvidence(pe *PairEntry, field request.Field, locf func(string) request.Location) (tags.LocationSet, bool) {
	v, ok := field.Get(pe.Key)
	if !ok || !pe.Match(v) {
		return nil, false
	}
	return tags.LocationSet{locf(v): {}}, true
}
