package decision

import (
	"encoding/json"
	"fmt"

	"mercator-hq/palisade/pkg/request"
)

// BlockReason is one piece of audit evidence: which rule fired, from
// which rule engine, where in the request, and how severe the resulting
// action was. Reasons accumulate across rule engines and are never
// discarded, even when their originating decision loses the merge.
type BlockReason struct {
	// ID is the rule id.
	ID string `json:"id"`

	// Name is the rule name.
	Name string `json:"name"`

	// Initiator is the rule engine that produced the reason.
	Initiator InitiatorKind `json:"initiator"`

	// Location is the primary evidence pointer.
	Location request.Location `json:"location"`

	// Action classifies the severity of the triggering rule's action.
	Action RawActionType `json:"action"`

	// ExtraLocations are additional evidence pointers.
	ExtraLocations []request.Location `json:"extra_locations,omitempty"`

	// Extra is opaque engine-specific audit data.
	Extra json.RawMessage `json:"extra,omitempty"`
}

// Deactivate neutralizes the reason's blocking classification. The
// reason stays in the audit trail but no longer counts as enforcement;
// used when a challenge downgrades to monitoring.
func (r *BlockReason) Deactivate() {
	r.Action = RawMonitor
}

// NewReason builds a reason for an arbitrary rule engine. The dedicated
// constructors below cover the engines implemented in this core.
func NewReason(initiator InitiatorKind, id, name string, action RawActionType, loc request.Location) BlockReason {
	return BlockReason{
		ID:        id,
		Name:      name,
		Initiator: initiator,
		Location:  loc,
		Action:    action,
	}
}

// GlobalFilterReason records a matched global filter section.
func GlobalFilterReason(id, name string, action RawActionType) BlockReason {
	return NewReason(InitiatorGlobalFilter, id, name, action, request.RequestLocation)
}

// SkipReason records a matched skip rule. Skip is final: it exempts the
// request from every later rule engine.
func SkipReason(initiator InitiatorKind, id, name string, loc request.Location) BlockReason {
	return NewReason(initiator, id, name, RawSkip, loc)
}

// ContentFilterReason records one signature hit from the WAF scan. Risk
// and certainty ride along as opaque audit data.
func ContentFilterReason(id, name string, risk, certainty int, loc request.Location) BlockReason {
	extra, _ := json.Marshal(map[string]int{"risk_level": risk, "certainty": certainty})
	r := NewReason(InitiatorContentFilter, id, name, RawCustom, loc)
	r.Extra = extra
	return r
}

// RestrictionReason records a violated per-field bound or a restricted
// entry mismatch.
func RestrictionReason(id, msg string, loc request.Location) BlockReason {
	return NewReason(InitiatorRestriction, id, msg, RawCustom, loc)
}

// Regroup indexes reasons by the rule engine that produced them, keeping
// the original order within each group. The audit record's per-engine
// trigger lists are built from this.
func Regroup(reasons []BlockReason) map[InitiatorKind][]BlockReason {
	out := make(map[InitiatorKind][]BlockReason)
	for _, r := range reasons {
		out[r.Initiator] = append(out[r.Initiator], r)
	}
	return out
}

// Desc returns a human-readable description of the first final reason,
// or false when no reason is final. The audit record only carries a
// description when the decision itself is final.
func Desc(reasons []BlockReason) (string, bool) {
	for _, r := range reasons {
		if !r.Action.IsFinal() {
			continue
		}
		return fmt.Sprintf("%s action from %s %q [%s]", r.Action, r.Initiator.Label(), r.Name, r.ID), true
	}
	return "", false
}
