package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"mercator-hq/palisade/pkg/decision"
	"mercator-hq/palisade/pkg/request"
	"mercator-hq/palisade/pkg/tags"
)

// MaskedValue replaces redacted field values in the record.
const MaskedValue = "*MASKED*"

// NameValue is one entry of the record's name/value lists.
type NameValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Masked lists, per request section, the entry names whose values are
// redacted from the record.
type Masked struct {
	Headers []string
	Cookies []string
	Args    []string
}

// Record is one request's complete audit trail. MarshalJSON emits a
// fixed field layout; downstream log pipelines index on it.
type Record struct {
	Timestamp    time.Time
	RequestID    string
	Decision     decision.Decision
	Info         *request.Info
	ResponseCode int
	Tags         *tags.Tags
	Stats        *Stats
	Logs         *Logs
	Proxy        []NameValue
	Masked       Masked
}

// BuildRecord assembles a record. The request id is taken from the
// request snapshot, or generated when the proxy did not assign one.
// Proxy entries are passed through into the record's proxy list ahead
// of the geo enrichment.
func BuildRecord(dec decision.Decision, info *request.Info, responseCode int,
	tg *tags.Tags, stats *Stats, logs *Logs, proxy []NameValue) *Record {
	ts := info.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	id := info.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	if stats == nil {
		stats = &Stats{}
	}
	if logs == nil {
		logs = NewLogs(ts)
	}
	return &Record{
		Timestamp:    ts,
		RequestID:    id,
		Decision:     dec,
		Info:         info,
		ResponseCode: responseCode,
		Tags:         tg,
		Stats:        stats,
		Logs:         logs,
		Proxy:        proxy,
	}
}

// Serialize renders the record to JSON. A record that cannot be
// serialized becomes the literal null document; delivery never fails.
func Serialize(r *Record) []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return []byte("null")
	}
	return data
}

// objectWriter emits a JSON object with fields in insertion order.
type objectWriter struct {
	buf bytes.Buffer
	n   int
	err error
}

func (w *objectWriter) field(name string, v any) {
	if w.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		w.err = fmt.Errorf("field %s: %w", name, err)
		return
	}
	if w.n == 0 {
		w.buf.WriteByte('{')
	} else {
		w.buf.WriteByte(',')
	}
	w.n++
	key, _ := json.Marshal(name)
	w.buf.Write(key)
	w.buf.WriteByte(':')
	w.buf.Write(data)
}

func (w *objectWriter) finish() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if w.n == 0 {
		return []byte("{}"), nil
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}

// MarshalJSON emits the record's fixed field layout.
func (r *Record) MarshalJSON() ([]byte, error) {
	info := r.Info
	stats := r.Stats
	grouped := decision.Regroup(r.Decision.Reasons)

	w := &objectWriter{}
	w.field("timestamp", r.Timestamp)
	w.field("curiesession", info.Session)
	w.field("curiesession_ids", nameValueList(info.SessionIDs))
	w.field("request_id", r.RequestID)
	w.field("arguments", maskedField(info.Args, r.Masked.Args))
	w.field("path", info.Path)
	w.field("path_parts", info.PathParts)
	w.field("authority", info.Authority)
	w.field("cookies", maskedField(info.Cookies, r.Masked.Cookies))
	w.field("headers", maskedField(info.Headers, r.Masked.Headers))
	if len(info.Plugins) > 0 {
		w.field("plugins", info.Plugins)
	}
	w.field("query", info.Query)
	w.field("ip", info.Geo.IPStr)
	w.field("method", info.Method)
	w.field("response_code", r.ResponseCode)
	w.field("logs", r.Logs)
	w.field("processing_stage", stats.ProcessingStage)
	w.field("acl_triggers", reasonList(grouped[decision.InitiatorACL]))
	w.field("rl_triggers", reasonList(grouped[decision.InitiatorRateLimit]))
	w.field("gf_triggers", reasonList(grouped[decision.InitiatorGlobalFilter]))
	w.field("cf_triggers", reasonList(grouped[decision.InitiatorContentFilter]))
	w.field("cf_restrict_triggers", reasonList(grouped[decision.InitiatorRestriction]))
	if r.Decision.IsFinal() {
		if desc, ok := decision.Desc(r.Decision.Reasons); ok {
			w.field("reason", desc)
		}
	}
	if branch, ok := r.Tags.FirstWithPrefix("branch:"); ok {
		w.field("branch", branch)
	}
	w.field("tags", r.recordTags())
	w.field("proxy", r.proxyList())
	w.field("security_config", r.securityConfig())
	w.field("trigger_counters", triggerCounters(grouped))
	w.field("profiling", timingList(stats.Profiling))
	return w.finish()
}

// recordTags is the request tag set plus the synthetic response status
// tags. Monitor decisions suppress the status tags: the recorded status
// would describe the enforcement the monitor withheld, not the response
// the client saw.
func (r *Record) recordTags() *tags.Tags {
	out := tags.New()
	out.Extend(r.Tags)
	monitor := r.Decision.Action != nil && r.Decision.Action.Kind == decision.ActionMonitor
	if !monitor {
		out.AddQualified("status", fmt.Sprintf("%d", r.ResponseCode), request.RequestLocation)
		out.AddQualified("status-class", fmt.Sprintf("%dxx", r.ResponseCode/100), request.RequestLocation)
	}
	return out
}

func (r *Record) proxyList() []NameValue {
	geo := r.Info.Geo
	out := make([]NameValue, 0, len(r.Proxy)+13)
	out = append(out, r.Proxy...)
	out = append(out,
		NameValue{Name: "geo_long", Value: geo.Longitude},
		NameValue{Name: "geo_lat", Value: geo.Latitude},
		NameValue{Name: "geo_as_name", Value: orNull(geo.ASName)},
		NameValue{Name: "geo_as_domain", Value: orNull(geo.ASDomain)},
		NameValue{Name: "geo_as_type", Value: orNull(geo.ASType)},
		NameValue{Name: "geo_company_country", Value: orNull(geo.CompanyCountry)},
		NameValue{Name: "geo_company_domain", Value: orNull(geo.CompanyDomain)},
		NameValue{Name: "geo_company_type", Value: orNull(geo.CompanyType)},
		NameValue{Name: "geo_mobile_carrier", Value: orNull(geo.MobileCarrier)},
		NameValue{Name: "geo_mobile_country", Value: orNull(geo.MobileCountry)},
		NameValue{Name: "geo_mobile_mcc", Value: orNull(geo.MobileMCC)},
		NameValue{Name: "geo_mobile_mnc", Value: orNull(geo.MobileMNC)},
		NameValue{Name: "container", Value: orNull(r.Info.ContainerName)},
	)
	return out
}

func (r *Record) securityConfig() json.RawMessage {
	w := &objectWriter{}
	w.field("revision", r.Stats.Revision)
	w.field("acl_active", r.Stats.ACLActive)
	w.field("cf_active", r.Stats.ContentFilterActive)
	w.field("cf_rules", r.Stats.ContentFilterTotal)
	w.field("rl_rules", r.Stats.RateLimitRules)
	w.field("gf_rules", r.Stats.GlobalFiltersTotal)
	w.field("secpolid", r.Stats.SecpolID)
	w.field("secpolentryid", r.Stats.SecpolEntryID)
	data, err := w.finish()
	if err != nil {
		return json.RawMessage("null")
	}
	return json.RawMessage(data)
}

func triggerCounters(grouped map[decision.InitiatorKind][]decision.BlockReason) json.RawMessage {
	w := &objectWriter{}
	w.field("acl", len(grouped[decision.InitiatorACL]))
	w.field("gf", len(grouped[decision.InitiatorGlobalFilter]))
	w.field("rl", len(grouped[decision.InitiatorRateLimit]))
	w.field("cf", len(grouped[decision.InitiatorContentFilter]))
	w.field("cf_restrict", len(grouped[decision.InitiatorRestriction]))
	data, err := w.finish()
	if err != nil {
		return json.RawMessage("null")
	}
	return json.RawMessage(data)
}

func maskedField(field request.Field, masked []string) map[string]string {
	if len(masked) == 0 {
		return field
	}
	out := make(map[string]string, len(field))
	for k, v := range field {
		out[k] = v
	}
	for _, name := range masked {
		if _, ok := out[name]; ok {
			out[name] = MaskedValue
		}
	}
	return out
}

func nameValueList(m map[string]string) []NameValue {
	out := make([]NameValue, 0, len(m))
	for name, value := range m {
		out = append(out, NameValue{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func reasonList(reasons []decision.BlockReason) []decision.BlockReason {
	if reasons == nil {
		return []decision.BlockReason{}
	}
	return reasons
}

func timingList(samples []Timing) []Timing {
	if samples == nil {
		return []Timing{}
	}
	return samples
}

func orNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}
