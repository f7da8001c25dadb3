package audit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"mercator-hq/palisade/pkg/decision"
	"mercator-hq/palisade/pkg/request"
	"mercator-hq/palisade/pkg/tags"
)

func testInfo() *request.Info {
	return &request.Info{
		RequestID: "req-1",
		Method:    "GET",
		Authority: "example.com",
		Path:      "/login",
		URI:       "/login?user=bob",
		Query:     "user=bob",
		PathParts: request.PathParts("/login"),
		Args:      request.Field{"user": "bob", "token": "secret"},
		Headers:   request.Field{"user-agent": "curl/7.58.0", "authorization": "Bearer xyz"},
		Cookies:   request.Field{"session": "abc123"},
		Session:   "sess-1",
		SessionIDs: map[string]string{
			"b": "2",
			"a": "1",
		},
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Geo: request.GeoIP{
			IPStr:       "52.78.12.56",
			CountryName: "korea",
			ASName:      "amazon",
		},
		Policy: request.SecPolicy{PolicyID: "secpol1", EntryID: "entry1"},
	}
}

func testTags() *tags.Tags {
	tg := tags.New()
	tg.Add("all", request.RequestLocation)
	tg.Add("branch:prod", request.RequestLocation)
	return tg
}

func blockDecision() decision.Decision {
	return decision.NewDecision(decision.DefaultAction(), []decision.BlockReason{
		decision.GlobalFilterReason("gf1", "bad agents", decision.RawCustom),
	})
}

// objectKeys returns the top-level keys of a JSON object in document
// order.
func objectKeys(t *testing.T, data []byte) []string {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		t.Fatalf("not a JSON object: %v %v", tok, err)
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			t.Fatalf("reading key: %v", err)
		}
		key, ok := tok.(string)
		if !ok {
			t.Fatalf("unexpected token %v", tok)
		}
		keys = append(keys, key)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			t.Fatalf("decoding value of %q: %v", key, err)
		}
	}
	return keys
}

func TestRecordFieldOrder(t *testing.T) {
	rec := BuildRecord(blockDecision(), testInfo(), 503, testTags(), &Stats{Revision: "r1"}, nil, nil)
	data := Serialize(rec)

	want := []string{
		"timestamp", "curiesession", "curiesession_ids", "request_id",
		"arguments", "path", "path_parts", "authority", "cookies",
		"headers", "query", "ip", "method", "response_code", "logs",
		"processing_stage", "acl_triggers", "rl_triggers", "gf_triggers",
		"cf_triggers", "cf_restrict_triggers", "reason", "branch", "tags",
		"proxy", "security_config", "trigger_counters", "profiling",
	}
	got := objectKeys(t, data)
	if len(got) != len(want) {
		t.Fatalf("keys = %v\nwant %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("key[%d] = %q, want %q\nfull: %v", i, got[i], want[i], got)
		}
	}
}

func TestRecordContent(t *testing.T) {
	rec := BuildRecord(blockDecision(), testInfo(), 503, testTags(), &Stats{
		Revision:           "r1",
		ProcessingStage:    2,
		SecpolID:           "secpol1",
		SecpolEntryID:      "entry1",
		GlobalFiltersTotal: 3,
	}, nil, []NameValue{{Name: "listener", Value: "https"}})

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(Serialize(rec), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	var reqID string
	if err := json.Unmarshal(doc["request_id"], &reqID); err != nil || reqID != "req-1" {
		t.Errorf("request_id = %q (%v), want req-1", reqID, err)
	}

	var sessionIDs []NameValue
	if err := json.Unmarshal(doc["curiesession_ids"], &sessionIDs); err != nil {
		t.Fatalf("curiesession_ids: %v", err)
	}
	if len(sessionIDs) != 2 || sessionIDs[0].Name != "a" || sessionIDs[1].Name != "b" {
		t.Errorf("curiesession_ids = %+v, want sorted a,b", sessionIDs)
	}

	var reason string
	if err := json.Unmarshal(doc["reason"], &reason); err != nil {
		t.Fatalf("reason: %v", err)
	}
	if !strings.Contains(reason, "bad agents") {
		t.Errorf("reason = %q, want the triggering rule name", reason)
	}

	var branch string
	if err := json.Unmarshal(doc["branch"], &branch); err != nil || branch != "prod" {
		t.Errorf("branch = %q (%v), want prod", branch, err)
	}

	var recTags []string
	if err := json.Unmarshal(doc["tags"], &recTags); err != nil {
		t.Fatalf("tags: %v", err)
	}
	joined := strings.Join(recTags, ",")
	if !strings.Contains(joined, "status:503") || !strings.Contains(joined, "status-class:5xx") {
		t.Errorf("tags = %v, want synthetic status tags", recTags)
	}

	var counters map[string]int
	if err := json.Unmarshal(doc["trigger_counters"], &counters); err != nil {
		t.Fatalf("trigger_counters: %v", err)
	}
	if counters["gf"] != 1 || counters["acl"] != 0 {
		t.Errorf("trigger_counters = %v, want gf=1", counters)
	}

	var secConfig map[string]any
	if err := json.Unmarshal(doc["security_config"], &secConfig); err != nil {
		t.Fatalf("security_config: %v", err)
	}
	if secConfig["revision"] != "r1" || secConfig["secpolid"] != "secpol1" {
		t.Errorf("security_config = %v", secConfig)
	}
	if secConfig["gf_rules"] != float64(3) {
		t.Errorf("gf_rules = %v, want 3", secConfig["gf_rules"])
	}

	if _, ok := doc["plugins"]; ok {
		t.Error("plugins must be omitted when empty")
	}

	var proxy []NameValue
	if err := json.Unmarshal(doc["proxy"], &proxy); err != nil {
		t.Fatalf("proxy: %v", err)
	}
	if len(proxy) == 0 || proxy[0].Name != "listener" {
		t.Errorf("proxy = %+v, want passthrough entries first", proxy)
	}
	byName := map[string]any{}
	for _, nv := range proxy {
		byName[nv.Name] = nv.Value
	}
	if byName["geo_as_name"] != "amazon" {
		t.Errorf("geo_as_name = %v, want amazon", byName["geo_as_name"])
	}
	if byName["geo_long"] != nil {
		t.Errorf("geo_long = %v, want null when absent", byName["geo_long"])
	}
}

func TestRecordMonitorSuppressesStatusTags(t *testing.T) {
	dec := decision.NewDecision(&decision.Action{
		Kind:   decision.ActionMonitor,
		Status: 200,
	}, nil)
	rec := BuildRecord(dec, testInfo(), 200, testTags(), nil, nil, nil)

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(Serialize(rec), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var recTags []string
	if err := json.Unmarshal(doc["tags"], &recTags); err != nil {
		t.Fatalf("tags: %v", err)
	}
	for _, tag := range recTags {
		if strings.HasPrefix(tag, "status") {
			t.Errorf("monitor record must not carry %q", tag)
		}
	}
	if _, ok := doc["reason"]; ok {
		t.Error("monitor decisions are not final and carry no reason")
	}
}

func TestRecordMasking(t *testing.T) {
	rec := BuildRecord(blockDecision(), testInfo(), 503, testTags(), nil, nil, nil)
	rec.Masked = Masked{
		Headers: []string{"authorization"},
		Args:    []string{"token", "absent"},
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(Serialize(rec), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	var headers map[string]string
	if err := json.Unmarshal(doc["headers"], &headers); err != nil {
		t.Fatalf("headers: %v", err)
	}
	if headers["authorization"] != MaskedValue {
		t.Errorf("authorization = %q, want masked", headers["authorization"])
	}
	if headers["user-agent"] != "curl/7.58.0" {
		t.Errorf("user-agent = %q, want untouched", headers["user-agent"])
	}

	var args map[string]string
	if err := json.Unmarshal(doc["arguments"], &args); err != nil {
		t.Fatalf("arguments: %v", err)
	}
	if args["token"] != MaskedValue || args["user"] != "bob" {
		t.Errorf("arguments = %v, want token masked only", args)
	}
	if _, ok := args["absent"]; ok {
		t.Error("masking must not invent absent entries")
	}
}

func TestRecordGeneratesRequestID(t *testing.T) {
	info := testInfo()
	info.RequestID = ""
	rec := BuildRecord(blockDecision(), info, 503, testTags(), nil, nil, nil)
	if rec.RequestID == "" {
		t.Error("a request without a proxy id must get a generated one")
	}
}

func TestSerializeFailureYieldsNull(t *testing.T) {
	rec := BuildRecord(blockDecision(), testInfo(), 503, testTags(), nil, nil,
		[]NameValue{{Name: "bad", Value: make(chan int)}})
	if got := string(Serialize(rec)); got != "null" {
		t.Errorf("Serialize = %s, want null", got)
	}
}

func TestLogs(t *testing.T) {
	start := time.Now()
	logs := NewLogs(start)
	logs.Debugf("matched %d sections", 2)
	logs.Errorf("profile %s missing", "cfp9")

	entries := logs.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Level != LevelDebug || entries[0].Message != "matched 2 sections" {
		t.Errorf("entry[0] = %+v", entries[0])
	}
	if entries[1].Level != LevelError {
		t.Errorf("entry[1] = %+v", entries[1])
	}
	if entries[0].ElapsedMicros < 0 {
		t.Errorf("elapsed = %d, want non-negative", entries[0].ElapsedMicros)
	}

	data, err := json.Marshal(NewLogs(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("empty logs marshal = %s, want []", data)
	}
}
