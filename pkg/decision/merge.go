package decision

// Merge combines two candidate decisions into one.
//
// The decision whose action has the higher priority is kept; the other
// is thrown away except for its reasons, which are always appended to
// the kept decision. A nil action has the lowest possible priority.
// Equal priorities keep the first argument.
//
// When the kept action is Monitor, the thrown decision's headers are
// merged in additively so cooperating monitor rules can all annotate the
// response; the kept decision's keys win on conflict.
func Merge(d1, d2 Decision) Decision {
	var kept, thrown Decision
	switch {
	case d1.Action != nil && d2.Action != nil:
		if d1.Action.Kind.Priority() >= d2.Action.Kind.Priority() {
			kept, thrown = d1, d2
		} else {
			kept, thrown = d2, d1
		}
	case d1.Action == nil && d2.Action != nil:
		kept, thrown = d2, d1
	default:
		kept, thrown = d1, d2
	}

	if kept.Action != nil && kept.Action.Kind == ActionMonitor &&
		thrown.Action != nil && len(thrown.Action.Headers) > 0 {
		merged := make(map[string]string, len(kept.Action.Headers)+len(thrown.Action.Headers))
		for k, v := range thrown.Action.Headers {
			merged[k] = v
		}
		for k, v := range kept.Action.Headers {
			merged[k] = v
		}
		// copy before mutating: actions may be shared with the caller
		a := *kept.Action
		a.Headers = merged
		kept.Action = &a
	}

	kept.Reasons = concatReasons(kept.Reasons, thrown.Reasons)
	return kept
}

// Stronger is Merge for pre-resolution decisions. Pass yields the other
// side; reasons are always merged; ties keep the first argument, except
// that two Monitor actions merge their header templates (first
// argument's keys win) before either is rendered.
func Stronger(d1, d2 SimpleDecision) SimpleDecision {
	reasons := concatReasons(d1.Reasons, d2.Reasons)
	switch {
	case d1.Action == nil:
		return SimpleDecision{Action: d2.Action, Reasons: reasons}
	case d2.Action == nil:
		return SimpleDecision{Action: d1.Action, Reasons: reasons}
	}

	p1, p2 := d1.Action.Kind.Priority(), d2.Action.Kind.Priority()
	switch {
	case p1 > p2:
		return SimpleDecision{Action: d1.Action, Reasons: reasons}
	case p1 < p2:
		return SimpleDecision{Action: d2.Action, Reasons: reasons}
	case d1.Action.Kind == SimpleMonitor && d2.Action.Kind == SimpleMonitor:
		a := *d1.Action
		a.Headers = mergeTemplates(d1.Action.Headers, d2.Action.Headers)
		return SimpleDecision{Action: &a, Reasons: reasons}
	default:
		return SimpleDecision{Action: d1.Action, Reasons: reasons}
	}
}

func mergeTemplates(kept, thrown map[string]Template) map[string]Template {
	if len(kept) == 0 {
		return thrown
	}
	if len(thrown) == 0 {
		return kept
	}
	out := make(map[string]Template, len(kept)+len(thrown))
	for k, v := range thrown {
		out[k] = v
	}
	for k, v := range kept {
		out[k] = v
	}
	return out
}

func concatReasons(a, b []BlockReason) []BlockReason {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]BlockReason, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
