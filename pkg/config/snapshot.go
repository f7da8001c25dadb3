package config

import (
	"sync/atomic"

	"mercator-hq/palisade/pkg/decision"
	"mercator-hq/palisade/pkg/filter"
	"mercator-hq/palisade/pkg/waf"
)

// Counts are the raw entity counts of the rule set a snapshot was
// compiled from, kept for audit statistics.
type Counts struct {
	Actions               int
	GlobalFilters         int
	ContentFilterProfiles int
	ContentFilterRules    int
}

// Snapshot is one compiled, immutable configuration generation. Every
// evaluation acquires the current snapshot, works against it and
// releases it; a snapshot retired by a reload stays fully usable until
// its last reference drops, at which point its signature scanner is
// closed.
type Snapshot struct {
	// Revision is the raw set's revision string.
	Revision string

	// Generation increments on every successful reload.
	Generation uint64

	// Filters are the compiled global filter sections, in declared
	// order.
	Filters []filter.Section

	// Profiles are the compiled content filter profiles by id.
	Profiles map[string]*waf.Profile

	// Signatures is the compiled signature database.
	Signatures *waf.SignatureDB

	// Actions are the resolved named actions by id.
	Actions map[string]*decision.SimpleAction

	// Counts are the raw entity counts for audit statistics.
	Counts Counts

	refs atomic.Int64
}

// Acquire takes a reference. Callers must pair it with Release.
func (s *Snapshot) Acquire() *Snapshot {
	s.refs.Add(1)
	return s
}

// Release drops a reference. The last release closes the signature
// scanner.
func (s *Snapshot) Release() {
	if s.refs.Add(-1) == 0 {
		_ = s.Signatures.Close()
	}
}

// Profile returns the content filter profile for id, falling back to
// the built-in default profile when the id is empty or unknown.
func (s *Snapshot) Profile(id string) *waf.Profile {
	if p, ok := s.Profiles[id]; ok {
		return p
	}
	if p, ok := s.Profiles[waf.DefaultProfileID]; ok {
		return p
	}
	return waf.DefaultProfile()
}

// Action returns the resolved action for id.
func (s *Snapshot) Action(id string) (*decision.SimpleAction, bool) {
	a, ok := s.Actions[id]
	return a, ok
}
