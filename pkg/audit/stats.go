package audit

// Timing is one profiling sample, in microseconds.
type Timing struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Stats aggregates the evaluation counters reported by the audit
// record's security_config, trigger_counters and profiling fields.
type Stats struct {
	// Revision is the configuration revision the request was evaluated
	// against.
	Revision string

	// ProcessingStage counts how many evaluation stages ran: 1 after
	// global filters, 2 after the content filter.
	ProcessingStage int

	// SecpolID and SecpolEntryID identify the routing security policy.
	SecpolID      string
	SecpolEntryID string

	// ACLActive and ContentFilterActive are the per-policy stage
	// toggles.
	ACLActive           bool
	ContentFilterActive bool

	// Rule population counts: configured global filters over how many
	// matched, configured signatures, and the policy's rate limit rule
	// count (rate limiting runs outside this engine).
	GlobalFiltersTotal   int
	GlobalFiltersMatched int
	ContentFilterTotal   int
	RateLimitRules       int

	// Profiling are per-stage timing samples, in evaluation order.
	Profiling []Timing
}

// AddTiming appends one profiling sample.
func (s *Stats) AddTiming(name string, micros int64) {
	s.Profiling = append(s.Profiling, Timing{Name: name, Value: micros})
}
