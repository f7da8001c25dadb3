package filter

import (
	"fmt"
	"log/slog"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"mercator-hq/palisade/pkg/decision"
	"mercator-hq/palisade/pkg/rules"
	"mercator-hq/palisade/pkg/tags"
)

// CompileError reports why a global filter section was dropped.
type CompileError struct {
	FilterID string
	Cause    error
}

// Error returns the error message.
func (e *CompileError) Error() string {
	return fmt.Sprintf("global filter %s: %v", e.FilterID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *CompileError) Unwrap() error {
	return e.Cause
}

// Compile turns raw global filters into compiled sections. Inactive
// filters are skipped; a filter with a malformed entry is dropped with
// an error logged, and the rest of the load proceeds. Action ids are
// resolved against the compiled action map; an unknown id degrades the
// section to tag-only. CIDR entries under one relation are collapsed by
// OptimizeIPRanges.
func Compile(logger *slog.Logger, actions map[string]*decision.SimpleAction, raw []rules.GlobalFilter) []Section {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]Section, 0, len(raw))
	for _, rf := range raw {
		if !rf.Active {
			continue
		}
		sec, err := compileSection(actions, rf)
		if err != nil {
			logger.Error("dropping global filter", "filter_id", rf.ID, "error", &CompileError{FilterID: rf.ID, Cause: err})
			continue
		}
		if rf.Action != "" && sec.Action == nil {
			logger.Error("global filter references unknown action, keeping it tag-only",
				"filter_id", rf.ID, "action_id", rf.Action)
		}
		out = append(out, sec)
	}
	return out
}

func compileSection(actions map[string]*decision.SimpleAction, rf rules.GlobalFilter) (Section, error) {
	rel, err := parseRelation(rf.Relation)
	if err != nil {
		return Section{}, err
	}
	sec := Section{
		ID:       rf.ID,
		Name:     rf.Name,
		Tags:     rf.Tags,
		Relation: rel,
	}
	if rf.Action != "" {
		sec.Action = actions[rf.Action]
	}
	for i, rss := range rf.Sections {
		srel, err := parseRelation(rss.Relation)
		if err != nil {
			return Section{}, fmt.Errorf("subsection %d: %w", i, err)
		}
		entries := make([]Entry, 0, len(rss.Entries))
		for j, re := range rss.Entries {
			entry, err := compileEntry(re)
			if err != nil {
				return Section{}, fmt.Errorf("subsection %d entry %d: %w", i, j, err)
			}
			entries = append(entries, entry)
		}
		sec.Subsections = append(sec.Subsections, Subsection{
			Relation: srel,
			Entries:  OptimizeIPRanges(srel, entries),
		})
	}
	return sec, nil
}

func parseRelation(raw string) (Relation, error) {
	switch strings.ToLower(raw) {
	case "and":
		return RelationAnd, nil
	case "or":
		return RelationOr, nil
	default:
		return "", fmt.Errorf("unknown relation %q", raw)
	}
}

func compileEntry(re rules.GlobalFilterEntry) (Entry, error) {
	value, negated := strings.CutPrefix(re.Value, "!")
	entry := Entry{Negated: negated, Kind: EntryKind(re.Type)}

	switch entry.Kind {
	case EntryIP:
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return Entry{}, fmt.Errorf("ip %q: %w", value, err)
		}
		entry.IP = addr.Unmap()

	case EntryNetwork:
		net, err := netip.ParsePrefix(value)
		if err != nil {
			return Entry{}, fmt.Errorf("network %q: %w", value, err)
		}
		entry.Net = net.Masked()

	case EntryRange4:
		net, err := netip.ParsePrefix(value)
		if err != nil {
			return Entry{}, fmt.Errorf("range4 %q: %w", value, err)
		}
		if !net.Addr().Is4() {
			return Entry{}, fmt.Errorf("range4 %q: not an IPv4 prefix", value)
		}
		entry.Net = net.Masked()

	case EntryRange6:
		net, err := netip.ParsePrefix(value)
		if err != nil {
			return Entry{}, fmt.Errorf("range6 %q: %w", value, err)
		}
		if net.Addr().Is4() {
			return Entry{}, fmt.Errorf("range6 %q: not an IPv6 prefix", value)
		}
		entry.Net = net.Masked()

	case EntryASN:
		asn, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return Entry{}, fmt.Errorf("asn %q: %w", value, err)
		}
		entry.ASN = uint32(asn)

	case EntryHeader, EntryArgs, EntryCookies:
		if re.Key == "" {
			return Entry{}, fmt.Errorf("%s entry without a key", entry.Kind)
		}
		entry.Pair = &PairEntry{Key: re.Key, Exact: value, Re: compileOptional(value)}

	case EntryPath, EntryQuery, EntryURI, EntryMethod, EntryAuthority, EntryCompany:
		entry.Single = &SingleEntry{Exact: value, Re: compileOptional(value)}

	case EntryCountry, EntryRegion, EntrySubregion:
		// geo values compare lowercased
		entry.Single = &SingleEntry{Exact: strings.ToLower(value), Re: compileOptional(strings.ToLower(value))}

	case EntryTag:
		// tag predicates use exact membership on the canonical name
		entry.Single = &SingleEntry{Exact: tags.Normalize(value)}

	default:
		return Entry{}, fmt.Errorf("unknown entry type %q", re.Type)
	}
	return entry, nil
}

// compileOptional compiles the pattern as a regex, or returns nil when
// it does not compile: the entry then matches by exact string only.
func compileOptional(pattern string) *regexp.Regexp {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return re
}
