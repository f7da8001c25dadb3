package decision

import (
	"fmt"
	"log/slog"

	"mercator-hq/palisade/pkg/request"
	"mercator-hq/palisade/pkg/rules"
	"mercator-hq/palisade/pkg/tags"
)

// Challenger is the narrow capability interface to the external
// bot-challenge verifier. Given a request and the desired challenge
// mode, it returns a decision that issues the challenge response. When
// no Challenger is available the resolver falls back to the default
// blocking action.
type Challenger interface {
	Challenge(info *request.Info, mode ChallengeMode, reasons []BlockReason) Decision
}

// ResolveAction compiles one raw action into its declarative form.
// Header templates are parsed here, once, never per request.
func ResolveAction(parser TemplateParser, raw rules.Action) (*SimpleAction, error) {
	if parser == nil {
		parser = LiteralParser
	}

	out := &SimpleAction{Status: 503}
	if raw.Params.Status != nil {
		out.Status = *raw.Params.Status
	}

	switch raw.Type {
	case "skip":
		out.Kind = SimpleSkip
	case "monitor":
		out.Kind = SimpleMonitor
	case "custom":
		out.Kind = SimpleCustom
		out.Content = raw.Params.Content
		if out.Content == "" {
			out.Content = "blocked"
		}
	case "challenge":
		out.Kind = SimpleChallenge
		out.Mode = ChallengeActive
	case "ichallenge":
		out.Kind = SimpleChallenge
		out.Mode = ChallengeInteractive
	default:
		return nil, fmt.Errorf("unknown action type %q", raw.Type)
	}

	if len(raw.Params.Headers) > 0 {
		out.Headers = make(map[string]Template, len(raw.Params.Headers))
		for name, text := range raw.Params.Headers {
			out.Headers[name] = parser(text)
		}
	}
	if len(raw.Tags) > 0 {
		out.ExtraTags = append([]string(nil), raw.Tags...)
	}
	return out, nil
}

// ResolveActions compiles every raw action, dropping (and logging) the
// malformed ones so one bad action never aborts the configuration load.
func ResolveActions(logger *slog.Logger, parser TemplateParser, raw []rules.Action) map[string]*SimpleAction {
	if logger == nil {
		logger = slog.Default()
	}
	out := make(map[string]*SimpleAction, len(raw))
	for _, ra := range raw {
		action, err := ResolveAction(parser, ra)
		if err != nil {
			logger.Error("dropping action", "action_id", ra.ID, "error", err)
			continue
		}
		out[ra.ID] = action
	}
	return out
}

// ToDecision resolves the declarative action against one request,
// producing the concrete decision.
//
// The action's extra tags are applied to the shared tag set first. Skip
// degrades to a pass decision that keeps the reason list. Challenges
// consult the precision level: passive and active modes need the human
// signal, interactive additionally needs interactivity. An unmet
// requirement hands the reasons to the challenge capability; with no
// capability available the default blocking action applies. A met
// requirement downgrades the challenge to monitoring and deactivates
// every collected reason.
func (a *SimpleAction) ToDecision(logger *slog.Logger, precision PrecisionLevel, challenger Challenger, info *request.Info, tg *tags.Tags, reasons []BlockReason) Decision {
	if logger == nil {
		logger = slog.Default()
	}
	for _, t := range a.ExtraTags {
		tg.Add(t, request.RequestLocation)
	}
	if a.Kind == SimpleSkip {
		return Decision{Reasons: reasons}
	}

	dec, resolved := a.buildDecision(info, tg, precision, reasons)
	if resolved {
		return dec
	}
	if challenger == nil {
		return Decision{Action: DefaultAction(), Reasons: reasons}
	}
	mode := a.Mode
	if a.Kind != SimpleChallenge {
		mode = ChallengeActive
	}
	logger.Debug("issuing challenge", "mode", mode)
	return challenger.Challenge(info, mode, reasons)
}

// buildDecision renders the action for one request. The second return
// is false when a challenge's precision requirement is unmet and the
// decision must resolve through the challenge capability instead.
func (a *SimpleAction) buildDecision(info *request.Info, tg *tags.Tags, precision PrecisionLevel, reasons []BlockReason) (Decision, bool) {
	action := DefaultAction()
	action.Status = a.Status
	if len(a.Headers) > 0 {
		action.Headers = make(map[string]string, len(a.Headers))
		for name, tpl := range a.Headers {
			action.Headers[name] = tpl.Render(info, tg)
		}
	}
	action.ExtraTags = a.ExtraTags

	switch a.Kind {
	case SimpleMonitor:
		action.Kind = ActionMonitor
	case SimpleCustom:
		action.Kind = ActionBlock
		action.Content = a.Content
	case SimpleChallenge:
		var met bool
		switch a.Mode {
		case ChallengePassive, ChallengeActive:
			met = precision.IsHuman()
		case ChallengeInteractive:
			met = precision.IsInteractive()
		}
		if !met {
			return Decision{}, false
		}
		action.Kind = ActionMonitor
		reasons = append([]BlockReason(nil), reasons...)
		for i := range reasons {
			reasons[i].Deactivate()
		}
	}

	if action.Kind == ActionMonitor {
		action.Status = 200
		action.BlockMode = false
	}
	return Decision{Action: action, Reasons: reasons}, true
}
