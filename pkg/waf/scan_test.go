package waf

import (
	"fmt"
	"strings"
	"testing"

	"mercator-hq/palisade/pkg/decision"
	"mercator-hq/palisade/pkg/request"
	"mercator-hq/palisade/pkg/rules"
)

func testSignatures(t *testing.T) *SignatureDB {
	t.Helper()
	db, err := CompileSignatures([]rules.ContentFilterRule{
		{ID: "100000", Name: "sqli detection", Category: "sqli", Risk: 5, Certainty: 5, Operand: `select\s+.*\s+from`},
		{ID: "100001", Name: "xss detection", Category: "xss", Risk: 5, Certainty: 5, Operand: `<script`},
	})
	if err != nil {
		t.Fatalf("CompileSignatures: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func scanInfo(args, headers map[string]string) *request.Info {
	info := &request.Info{
		Method:    "GET",
		Path:      "/api/v1",
		URI:       "/api/v1",
		PathParts: request.PathParts("/api/v1"),
		Args:      request.Field{},
		Headers:   request.Field{},
		Cookies:   request.Field{},
	}
	for k, v := range args {
		info.Args[k] = v
	}
	for k, v := range headers {
		info.Headers[k] = v
	}
	return info
}

func reasonIDs(reasons []decision.BlockReason) []string {
	ids := make([]string, len(reasons))
	for i, r := range reasons {
		ids[i] = r.ID
	}
	return ids
}

func TestScanSignatureHit(t *testing.T) {
	db := testSignatures(t)
	p := DefaultProfile()

	info := scanInfo(map[string]string{"q": "select password from users"}, nil)
	res, err := Scan(p, db, info)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Reasons) != 1 {
		t.Fatalf("reasons = %v, want one sqli hit", reasonIDs(res.Reasons))
	}
	r := res.Reasons[0]
	if r.ID != "100000" || r.Initiator != decision.InitiatorContentFilter {
		t.Errorf("reason = %+v, want signature 100000", r)
	}
	if r.Location.Kind != request.LocArgValue || r.Location.Name != "q" {
		t.Errorf("location = %+v, want argument q", r.Location)
	}
	if !strings.Contains(string(r.Extra), `"risk_level":5`) {
		t.Errorf("extra = %s, want risk_level", r.Extra)
	}
}

func TestScanCleanRequest(t *testing.T) {
	db := testSignatures(t)
	p := DefaultProfile()

	info := scanInfo(map[string]string{"page": "12"}, map[string]string{"accept": "text/html"})
	res, err := Scan(p, db, info)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Blocking() {
		t.Errorf("clean request produced reasons %v", reasonIDs(res.Reasons))
	}
}

func TestScanDecodedPayload(t *testing.T) {
	db := testSignatures(t)
	p := DefaultProfile()

	// base64("select 1 from dual!"); the padding keeps the value out of
	// the alphanumeric fast path
	info := scanInfo(map[string]string{"q": "c2VsZWN0IDEgZnJvbSBkdWFsIQ=="}, nil)
	res, err := Scan(p, db, info)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Reasons) != 1 || res.Reasons[0].ID != "100000" {
		t.Errorf("reasons = %v, want decoded sqli hit", reasonIDs(res.Reasons))
	}
}

func TestScanIgnoreAlphanum(t *testing.T) {
	db, err := CompileSignatures([]rules.ContentFilterRule{
		{ID: "100002", Name: "word", Operand: "selectx"},
	})
	if err != nil {
		t.Fatalf("CompileSignatures: %v", err)
	}
	defer db.Close()

	p := DefaultProfile()
	info := scanInfo(map[string]string{"q": "selectx"}, nil)
	res, err := Scan(p, db, info)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Blocking() {
		t.Error("alphanumeric value must skip the signature pass")
	}

	p.IgnoreAlphanum = false
	res, err = Scan(p, db, info)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !res.Blocking() {
		t.Error("with ignore_alphanum off the value must be scanned")
	}
}

func TestScanBounds(t *testing.T) {
	db := testSignatures(t)
	p := DefaultProfile()
	p.Sections.Args.MaxCount = 2
	p.Sections.Args.MaxLength = 8

	args := map[string]string{
		"a": "1",
		"b": "2",
		"c": strings.Repeat("z", 9),
	}
	res, err := Scan(p, db, scanInfo(args, nil))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	grouped := decision.Regroup(res.Reasons)
	restrictions := grouped[decision.InitiatorRestriction]
	if len(restrictions) != 2 {
		t.Fatalf("restrictions = %v, want max_count and max_length", reasonIDs(res.Reasons))
	}
	ids := map[string]bool{}
	for _, r := range restrictions {
		ids[r.ID] = true
	}
	if !ids["max_count"] || !ids["max_length"] {
		t.Errorf("restriction ids = %v, want max_count and max_length", reasonIDs(restrictions))
	}
}

func TestScanEntryConstraints(t *testing.T) {
	db := testSignatures(t)

	profiles := CompileProfiles(discardLogger(), []rules.ContentFilterProfile{{
		ID:           "cfp1",
		Name:         "api",
		MaxArgLength: 1024,
		MaxArgsCount: 64,
		Args: rules.ContentFilterProperties{
			Names: []rules.ContentFilterEntryMatch{
				{Key: "page", Reg: `^\d+$`, Restrict: true},
				{Key: "raw", Reg: ".*", Exclusions: []string{"100000"}},
				{Key: "token", Mask: true},
			},
		},
	}})
	p := profiles["cfp1"]
	if p == nil {
		t.Fatal("profile cfp1 did not compile")
	}

	t.Run("restrict mismatch", func(t *testing.T) {
		res, err := Scan(p, db, scanInfo(map[string]string{"page": "12; drop"}, nil))
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if len(res.Reasons) != 1 || res.Reasons[0].ID != "restricted" {
			t.Errorf("reasons = %v, want restricted", reasonIDs(res.Reasons))
		}
	})

	t.Run("whitelisting entry regex skips signatures", func(t *testing.T) {
		res, err := Scan(p, db, scanInfo(map[string]string{"raw": "select 1 from dual"}, nil))
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if res.Blocking() {
			t.Errorf("matching entry regex must vouch for the value, got %v", reasonIDs(res.Reasons))
		}
	})

	t.Run("masked entry recorded", func(t *testing.T) {
		res, err := Scan(p, db, scanInfo(map[string]string{"token": "abc"}, nil))
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		masked := res.Masked[SectionArgs]
		if len(masked) != 1 || masked[0] != "token" {
			t.Errorf("masked = %v, want [token]", masked)
		}
	})
}

func TestScanExclusions(t *testing.T) {
	db := testSignatures(t)

	profiles := CompileProfiles(discardLogger(), []rules.ContentFilterProfile{{
		ID:           "cfp2",
		Name:         "sql console",
		MaxArgLength: 1024,
		MaxArgsCount: 64,
		Args: rules.ContentFilterProperties{
			Names: []rules.ContentFilterEntryMatch{
				{Key: "query", Exclusions: []string{"100000"}},
			},
		},
	}})
	p := profiles["cfp2"]
	if p == nil {
		t.Fatal("profile cfp2 did not compile")
	}

	res, err := Scan(p, db, scanInfo(map[string]string{
		"query": "select 1 from dual",
		"other": "select 2 from dual",
	}, nil))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Reasons) != 1 {
		t.Fatalf("reasons = %v, want one non-excluded hit", reasonIDs(res.Reasons))
	}
	if res.Reasons[0].Location.Name != "other" {
		t.Errorf("hit location = %+v, want argument other", res.Reasons[0].Location)
	}
}

func TestScanPathSection(t *testing.T) {
	db := testSignatures(t)
	p := DefaultProfile()

	info := scanInfo(nil, nil)
	info.Path = "/a/<script>alert(1)"
	info.URI = info.Path
	info.PathParts = request.PathParts(info.Path)

	res, err := Scan(p, db, info)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	found := false
	for _, r := range res.Reasons {
		if r.ID == "100001" && r.Location.Kind == request.LocPath {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want xss hit on path", reasonIDs(res.Reasons))
	}
}

func TestCompileSignaturesAllOrNothing(t *testing.T) {
	_, err := CompileSignatures([]rules.ContentFilterRule{
		{ID: "ok", Operand: "fine"},
		{ID: "bad", Operand: "([unclosed"},
	})
	if err == nil {
		t.Fatal("a malformed signature must fail the whole set")
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Errorf("error %v should name the failing signature", err)
	}
}

func TestEmptySignatures(t *testing.T) {
	db := EmptySignatures()
	defer db.Close()
	hits, err := db.Scan([][]byte{[]byte("select 1 from x")})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("empty database produced hits %v", hits)
	}
}

func TestScanManyValuesSinglePass(t *testing.T) {
	db := testSignatures(t)
	p := DefaultProfile()

	args := map[string]string{}
	for i := 0; i < 20; i++ {
		args[fmt.Sprintf("p%d", i)] = fmt.Sprintf("select c%d from t", i)
	}
	res, err := Scan(p, db, scanInfo(args, nil))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := len(res.Reasons); got != 20 {
		t.Errorf("reasons = %d, want one per tainted value", got)
	}
}
