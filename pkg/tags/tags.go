package tags

import (
	"encoding/json"
	"sort"
	"strings"

	"mercator-hq/palisade/pkg/request"
)

// LocationSet is a set of request locations justifying a tag.
type LocationSet map[request.Location]struct{}

// Union copies every location of other into the set.
func (s LocationSet) Union(other LocationSet) {
	for loc := range other {
		s[loc] = struct{}{}
	}
}

// Tags is the per-request tag set. Each tag maps to the union of locations
// that justified it. The zero value is not usable; call New.
type Tags struct {
	m map[string]LocationSet
}

// New returns an empty tag set.
func New() *Tags {
	return &Tags{m: make(map[string]LocationSet)}
}

// Normalize rewrites a raw tag name into canonical form: lowercase, with
// every rune outside ASCII letters, digits and ':' replaced by '-'.
func Normalize(tag string) string {
	var b strings.Builder
	b.Grow(len(tag))
	for _, r := range strings.ToLower(tag) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ':':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// Add records a tag justified by one location. The name is normalized.
func (t *Tags) Add(tag string, loc request.Location) {
	name := Normalize(tag)
	set, ok := t.m[name]
	if !ok {
		set = make(LocationSet, 1)
		t.m[name] = set
	}
	set[loc] = struct{}{}
}

// AddQualified records a "prefix:value" tag justified by one location.
func (t *Tags) AddQualified(prefix, value string, loc request.Location) {
	t.Add(prefix+":"+value, loc)
}

// AddNamed records a batch of declared tag names, each justified by the
// same location union. Names are normalized.
func (t *Tags) AddNamed(names []string, locs LocationSet) {
	for _, raw := range names {
		name := Normalize(raw)
		set, ok := t.m[name]
		if !ok {
			set = make(LocationSet, len(locs))
			t.m[name] = set
		}
		set.Union(locs)
	}
}

// Has reports whether the tag is present. The name must already be in
// canonical form.
func (t *Tags) Has(tag string) bool {
	_, ok := t.m[tag]
	return ok
}

// Locations returns a copy of the location evidence for a tag, or false
// when the tag is absent.
func (t *Tags) Locations(tag string) (LocationSet, bool) {
	set, ok := t.m[tag]
	if !ok {
		return nil, false
	}
	out := make(LocationSet, len(set))
	out.Union(set)
	return out, true
}

// Extend merges every tag and its evidence from other.
func (t *Tags) Extend(other *Tags) {
	if other == nil {
		return
	}
	for name, locs := range other.m {
		set, ok := t.m[name]
		if !ok {
			set = make(LocationSet, len(locs))
			t.m[name] = set
		}
		set.Union(locs)
	}
}

// Len returns the number of distinct tags.
func (t *Tags) Len() int { return len(t.m) }

// Slice returns the tag names, sorted.
func (t *Tags) Slice() []string {
	out := make([]string, 0, len(t.m))
	for name := range t.m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FirstWithPrefix returns the remainder of the first tag carrying the
// prefix, in sorted order. Used by the audit record for "branch:" tags.
func (t *Tags) FirstWithPrefix(prefix string) (string, bool) {
	var best string
	found := false
	for name := range t.m {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}
		if !found || rest < best {
			best = rest
			found = true
		}
	}
	return best, found
}

// MarshalJSON renders the tag names as a sorted JSON array. Location
// evidence stays internal; the audit record carries evidence through block
// reasons instead.
func (t *Tags) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Slice())
}
