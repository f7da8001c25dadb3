package decision

import (
	"testing"

	"mercator-hq/palisade/pkg/request"
	"mercator-hq/palisade/pkg/rules"
	"mercator-hq/palisade/pkg/tags"
)

func intp(v int) *int { return &v }

func testInfo() *request.Info {
	return &request.Info{
		Method:    "GET",
		Authority: "localhost:30081",
		Path:      "/login",
		URI:       "/login?user=bob",
		Query:     "user=bob",
		Args:      request.Field{"user": "bob"},
		Headers:   request.Field{"user-agent": "curl/7.58.0"},
		Cookies:   request.Field{},
		Geo:       request.GeoIP{IPStr: "52.78.12.56"},
	}
}

func TestResolveAction(t *testing.T) {
	tests := []struct {
		name    string
		raw     rules.Action
		want    SimpleActionKind
		status  int
		content string
		mode    ChallengeMode
		wantErr bool
	}{
		{
			name:   "skip",
			raw:    rules.Action{ID: "a1", Type: "skip"},
			want:   SimpleSkip,
			status: 503,
		},
		{
			name:   "monitor",
			raw:    rules.Action{ID: "a2", Type: "monitor"},
			want:   SimpleMonitor,
			status: 503,
		},
		{
			name:    "custom with content",
			raw:     rules.Action{ID: "a3", Type: "custom", Params: rules.ActionParams{Content: "denied...", Status: intp(429)}},
			want:    SimpleCustom,
			status:  429,
			content: "denied...",
		},
		{
			name:    "custom defaults to blocked",
			raw:     rules.Action{ID: "a4", Type: "custom"},
			want:    SimpleCustom,
			status:  503,
			content: "blocked",
		},
		{
			name:   "challenge is active",
			raw:    rules.Action{ID: "a5", Type: "challenge"},
			want:   SimpleChallenge,
			status: 503,
			mode:   ChallengeActive,
		},
		{
			name:   "ichallenge is interactive",
			raw:    rules.Action{ID: "a6", Type: "ichallenge"},
			want:   SimpleChallenge,
			status: 503,
			mode:   ChallengeInteractive,
		},
		{
			name:    "unknown type",
			raw:     rules.Action{ID: "a7", Type: "teleport"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAction(nil, tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveAction: %v", err)
			}
			if got.Kind != tt.want || got.Status != tt.status || got.Content != tt.content || got.Mode != tt.mode {
				t.Errorf("got %+v, want kind=%s status=%d content=%q mode=%q", got, tt.want, tt.status, tt.content, tt.mode)
			}
		})
	}
}

func TestResolveActionsDropsMalformed(t *testing.T) {
	raw := []rules.Action{
		{ID: "good", Type: "monitor"},
		{ID: "bad", Type: "nonsense"},
	}

	got := ResolveActions(nil, nil, raw)
	if len(got) != 1 {
		t.Fatalf("got %d actions, want the bad one dropped", len(got))
	}
	if _, ok := got["good"]; !ok {
		t.Error("the well-formed action was dropped")
	}
}

func TestToDecisionSkipKeepsReasons(t *testing.T) {
	a := &SimpleAction{Kind: SimpleSkip, Status: 503, ExtraTags: []string{"exempt"}}
	tg := tags.New()
	reasons := []BlockReason{SkipReason(InitiatorGlobalFilter, "gf1", "allowlist", request.IPLocation)}

	got := a.ToDecision(nil, PrecisionInvalid, nil, testInfo(), tg, reasons)
	if got.Action != nil {
		t.Fatalf("skip produced an action: %+v", got.Action)
	}
	if len(got.Reasons) != 1 {
		t.Fatalf("skip dropped the reason list")
	}
	if !tg.Has("exempt") {
		t.Error("action extra tags must apply even on skip")
	}
}

func TestToDecisionCustomBlocks(t *testing.T) {
	a := &SimpleAction{Kind: SimpleCustom, Content: "blocked", Status: 503,
		Headers: map[string]Template{"x-served-by": LiteralParser("palisade")}}

	got := a.ToDecision(nil, PrecisionInvalid, nil, testInfo(), tags.New(), nil)
	if !got.IsBlocking() {
		t.Fatal("custom action must block")
	}
	if got.Action.Status != 503 || got.Action.Content != "blocked" || !got.Action.BlockMode {
		t.Errorf("action = %+v", got.Action)
	}
	if got.Action.Headers["x-served-by"] != "palisade" {
		t.Errorf("headers = %v", got.Action.Headers)
	}
}

func TestToDecisionMonitorForces200(t *testing.T) {
	a := &SimpleAction{Kind: SimpleMonitor, Status: 503}

	got := a.ToDecision(nil, PrecisionInvalid, nil, testInfo(), tags.New(), nil)
	if got.Action.Kind != ActionMonitor || got.Action.Status != 200 || got.Action.BlockMode {
		t.Errorf("monitor action = %+v, want non-blocking status 200", got.Action)
	}
	if got.IsFinal() {
		t.Error("monitor decisions are not final")
	}
}

func TestChallengeUnmetWithoutCapabilityDefaultBlocks(t *testing.T) {
	a := &SimpleAction{Kind: SimpleChallenge, Mode: ChallengeInteractive, Status: 503}
	reasons := []BlockReason{GlobalFilterReason("gf1", "bot gate", RawIchallenge)}

	// active precision carries the human signal but no interactivity
	got := a.ToDecision(nil, PrecisionActive, nil, testInfo(), tags.New(), reasons)
	if got.Action == nil || got.Action.Kind != ActionBlock {
		t.Fatalf("expected the default block, got %+v", got.Action)
	}
	if got.Action.Status != 503 || got.Action.Content != "request denied" {
		t.Errorf("default action = %+v, want 503 %q", got.Action, "request denied")
	}
	if len(got.Reasons) != 1 {
		t.Error("unresolved challenge dropped its reasons")
	}
}

type stubChallenger struct {
	mode ChallengeMode
}

func (s *stubChallenger) Challenge(info *request.Info, mode ChallengeMode, reasons []BlockReason) Decision {
	s.mode = mode
	return Decision{
		Action:  &Action{Kind: ActionBlock, BlockMode: true, Status: 247, Content: "challenge page"},
		Reasons: reasons,
	}
}

func TestChallengeUnmetUsesCapability(t *testing.T) {
	a := &SimpleAction{Kind: SimpleChallenge, Mode: ChallengeActive, Status: 503}
	ch := &stubChallenger{}

	got := a.ToDecision(nil, PrecisionInvalid, ch, testInfo(), tags.New(), nil)
	if got.Action == nil || got.Action.Status != 247 {
		t.Fatalf("challenge capability was not consulted: %+v", got.Action)
	}
	if ch.mode != ChallengeActive {
		t.Errorf("challenge mode = %q, want active", ch.mode)
	}
}

func TestChallengeMetDowngradesToMonitor(t *testing.T) {
	a := &SimpleAction{Kind: SimpleChallenge, Mode: ChallengeActive, Status: 503}
	reasons := []BlockReason{GlobalFilterReason("gf1", "bot gate", RawChallenge)}

	got := a.ToDecision(nil, PrecisionActive, nil, testInfo(), tags.New(), reasons)
	if got.Action == nil || got.Action.Kind != ActionMonitor {
		t.Fatalf("met challenge must downgrade to monitor, got %+v", got.Action)
	}
	if got.Action.Status != 200 || got.Action.BlockMode {
		t.Errorf("downgraded action = %+v", got.Action)
	}
	if len(got.Reasons) != 1 || got.Reasons[0].Action != RawMonitor {
		t.Errorf("reasons must stay but be deactivated: %+v", got.Reasons)
	}
	// the caller's slice stays untouched
	if reasons[0].Action != RawChallenge {
		t.Error("ToDecision mutated the caller's reason slice")
	}
}

func TestTemplateRendering(t *testing.T) {
	info := testInfo()
	tg := tags.New()
	tg.Add("human", request.RequestLocation)

	tpl := Template{
		{Kind: PartRaw, Text: "ua="},
		{Kind: PartSelector, Selector: request.Selector{Kind: request.SelHeader, Name: "user-agent"}},
		{Kind: PartRaw, Text: " human="},
		{Kind: PartTag, Tag: "human"},
		{Kind: PartRaw, Text: " bot="},
		{Kind: PartTag, Tag: "bot"},
		{Kind: PartRaw, Text: " missing="},
		{Kind: PartSelector, Selector: request.Selector{Kind: request.SelCookie, Name: "session"}},
	}

	got := tpl.Render(info, tg)
	want := "ua=curl/7.58.0 human=true bot=false missing=nil"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestTemplateRendersTagsAsJSON(t *testing.T) {
	tg := tags.New()
	tg.Add("alpha", request.RequestLocation)
	tpl := Template{{Kind: PartSelector, Selector: request.Selector{Kind: request.SelTags}}}

	got := tpl.Render(testInfo(), tg)
	if got != `["alpha"]` {
		t.Errorf("Render = %q, want the tag set as JSON", got)
	}
}
