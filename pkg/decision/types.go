package decision

import (
	"encoding/json"
)

// InitiatorKind identifies which rule subsystem produced a block reason.
type InitiatorKind string

const (
	InitiatorACL           InitiatorKind = "acl"
	InitiatorRateLimit     InitiatorKind = "rate_limit"
	InitiatorGlobalFilter  InitiatorKind = "global_filter"
	InitiatorContentFilter InitiatorKind = "content_filter"
	InitiatorRestriction   InitiatorKind = "restriction"
)

// Label returns the human form used in reason descriptions.
func (k InitiatorKind) Label() string {
	switch k {
	case InitiatorACL:
		return "ACL"
	case InitiatorRateLimit:
		return "rate limit"
	case InitiatorGlobalFilter:
		return "global filter"
	case InitiatorContentFilter:
		return "content filter"
	case InitiatorRestriction:
		return "restriction"
	default:
		return string(k)
	}
}

// RawActionType classifies a block reason by the severity of the action
// that produced it.
type RawActionType string

const (
	RawSkip       RawActionType = "skip"
	RawMonitor    RawActionType = "monitor"
	RawCustom     RawActionType = "custom"
	RawChallenge  RawActionType = "challenge"
	RawIchallenge RawActionType = "ichallenge"
)

// IsFinal reports whether a reason with this classification ends request
// processing. Everything but monitor is final.
func (r RawActionType) IsFinal() bool {
	return r != RawMonitor
}

// ChallengeMode is the granularity of a bot challenge.
type ChallengeMode string

const (
	ChallengePassive     ChallengeMode = "passive"
	ChallengeActive      ChallengeMode = "active"
	ChallengeInteractive ChallengeMode = "interactive"
)

// ToRaw returns the reason classification for a challenge of this mode.
func (m ChallengeMode) ToRaw() RawActionType {
	if m == ChallengeActive {
		return RawChallenge
	}
	return RawIchallenge
}

// PrecisionLevel is how confidently the request has been classified as
// human versus automated, and whether interactivity was observed. It
// gates challenge issuance.
type PrecisionLevel string

const (
	PrecisionInvalid     PrecisionLevel = "invalid"
	PrecisionPassive     PrecisionLevel = "passive"
	PrecisionActive      PrecisionLevel = "active"
	PrecisionMobileSDK   PrecisionLevel = "mobile_sdk"
	PrecisionInteractive PrecisionLevel = "interactive"
)

// IsHuman reports whether the classification carries a human signal.
func (p PrecisionLevel) IsHuman() bool {
	switch p {
	case PrecisionPassive, PrecisionActive, PrecisionMobileSDK, PrecisionInteractive:
		return true
	default:
		return false
	}
}

// IsInteractive reports whether the classification carries an
// interactivity signal.
func (p PrecisionLevel) IsInteractive() bool {
	return p == PrecisionMobileSDK || p == PrecisionInteractive
}

// SimpleActionKind is the declarative action type carried by rule
// configuration.
type SimpleActionKind string

const (
	SimpleSkip      SimpleActionKind = "skip"
	SimpleMonitor   SimpleActionKind = "monitor"
	SimpleCustom    SimpleActionKind = "custom"
	SimpleChallenge SimpleActionKind = "challenge"
)

// Priority orders declarative actions when merging decisions. Skip beats
// everything, then custom blocks, then challenges, then monitor.
func (k SimpleActionKind) Priority() int {
	switch k {
	case SimpleSkip:
		return 9
	case SimpleCustom:
		return 8
	case SimpleChallenge:
		return 6
	case SimpleMonitor:
		return 1
	default:
		return 0
	}
}

// RateLimitPriority is the priority table used when the competing
// decision originates from a rate-limit rule set. Skip drops to the
// bottom there: a skip must never suppress a rate limit's own decision.
func (k SimpleActionKind) RateLimitPriority() int {
	if k == SimpleSkip {
		return 0
	}
	return k.Priority()
}

// SimpleAction is a declarative action: what the rule wants to happen,
// before any request is involved. Header templates are parsed once at
// configuration load, never per request.
type SimpleAction struct {
	Kind SimpleActionKind

	// Content is the response body for custom actions.
	Content string

	// Mode is the challenge granularity for challenge actions.
	Mode ChallengeMode

	// Headers maps response header names to their templates.
	Headers map[string]Template

	// Status is the response status for blocking resolutions.
	Status int

	// ExtraTags are applied to the request tag set when the action
	// resolves.
	ExtraTags []string
}

// DefaultSimpleAction is the fallback declarative action: a custom block
// with content "blocked" and status 503.
func DefaultSimpleAction() *SimpleAction {
	return &SimpleAction{
		Kind:    SimpleCustom,
		Content: "blocked",
		Status:  503,
	}
}

// ToRaw returns the reason classification matching this action.
func (a *SimpleAction) ToRaw() RawActionType {
	switch a.Kind {
	case SimpleSkip:
		return RawSkip
	case SimpleMonitor:
		return RawMonitor
	case SimpleChallenge:
		return a.Mode.ToRaw()
	default:
		return RawCustom
	}
}

// ActionType is the resolved, request-bound action type.
type ActionType string

const (
	ActionSkip    ActionType = "skip"
	ActionMonitor ActionType = "monitor"
	ActionBlock   ActionType = "block"
)

// IsBlocking reports whether the request is not passed to the upstream.
func (t ActionType) IsBlocking() bool {
	return t == ActionBlock
}

// IsFinal reports whether no further rule processing happens.
func (t ActionType) IsFinal() bool {
	return t != ActionMonitor
}

// Priority orders resolved actions when merging decisions.
func (t ActionType) Priority() int {
	switch t {
	case ActionSkip:
		return 9
	case ActionBlock:
		return 6
	case ActionMonitor:
		return 1
	default:
		return 0
	}
}

// Action is a resolved, request-bound action, ready for the transport
// layer to act on.
type Action struct {
	Kind ActionType `json:"atype"`

	// BlockMode reports whether the response is served by the proxy
	// instead of the upstream.
	BlockMode bool `json:"block_mode"`

	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Content string            `json:"content"`

	// ExtraTags echoes the declarative action's extra tags for the audit
	// record.
	ExtraTags []string `json:"extra_tags,omitempty"`
}

// DefaultAction is the fallback enforcement: block with status 503 and
// content "request denied". Used when a challenge cannot be issued.
func DefaultAction() *Action {
	return &Action{
		Kind:      ActionBlock,
		BlockMode: true,
		Status:    503,
		Content:   "request denied",
	}
}

// Decision is the outcome of one rule engine, or of merging several. A
// nil Action means pass: no enforcement, though reasons may still be
// recorded for audit.
type Decision struct {
	Action  *Action
	Reasons []BlockReason
}

// Pass builds a non-enforcing decision that still carries audit reasons.
func Pass(reasons []BlockReason) Decision {
	return Decision{Reasons: reasons}
}

// NewDecision builds an enforcing decision.
func NewDecision(action *Action, reasons []BlockReason) Decision {
	return Decision{Action: action, Reasons: reasons}
}

// IsBlocking reports whether the response is served by the proxy.
func (d Decision) IsBlocking() bool {
	return d.Action != nil && d.Action.Kind.IsBlocking()
}

// IsFinal reports whether no further rule processing happens: either the
// action is final, or any recorded reason is.
func (d Decision) IsFinal() bool {
	if d.Action != nil && d.Action.Kind.IsFinal() {
		return true
	}
	for _, r := range d.Reasons {
		if r.Action.IsFinal() {
			return true
		}
	}
	return false
}

// ResponseJSON renders the decision for the transport layer.
func (d Decision) ResponseJSON() []byte {
	desc := "pass"
	if d.IsBlocking() {
		desc = "custom_response"
	}
	out, err := json.Marshal(map[string]any{
		"action":   desc,
		"response": d.Action,
	})
	if err != nil {
		return []byte("{}")
	}
	return out
}

// SimpleDecision is a pre-resolution decision: a declarative action (or
// pass) plus the reasons collected so far.
type SimpleDecision struct {
	Action  *SimpleAction
	Reasons []BlockReason
}

// PassSimple is the non-matching pre-resolution outcome.
func PassSimple() SimpleDecision {
	return SimpleDecision{}
}

// IsPass reports whether no action was requested.
func (d SimpleDecision) IsPass() bool {
	return d.Action == nil
}
