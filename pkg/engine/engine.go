package engine

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/palisade/pkg/audit"
	"mercator-hq/palisade/pkg/config"
	"mercator-hq/palisade/pkg/decision"
	"mercator-hq/palisade/pkg/filter"
	"mercator-hq/palisade/pkg/request"
	"mercator-hq/palisade/pkg/tags"
	"mercator-hq/palisade/pkg/telemetry/metrics"
	"mercator-hq/palisade/pkg/waf"
)

// Engine evaluates requests against the current configuration
// snapshot.
type Engine struct {
	provider   *config.Provider
	challenger decision.Challenger
	metrics    *metrics.EngineMetrics
	recorder   *audit.Recorder
	logger     *slog.Logger
}

// Option adjusts an Engine.
type Option func(*Engine)

// WithChallenger plugs in the external bot-challenge capability.
// Without one, unmet challenges fall back to the default blocking
// action.
func WithChallenger(c decision.Challenger) Option {
	return func(e *Engine) { e.challenger = c }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRecorder enables asynchronous audit record delivery.
func WithRecorder(r *audit.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New builds an engine on top of a snapshot provider.
func New(provider *config.Provider, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AnalyzeRequest is one evaluation's input.
type AnalyzeRequest struct {
	// Info is the immutable request snapshot.
	Info *request.Info

	// Precision is the calling deployment's challenge verification
	// level. It decides both the human baseline tag and whether a
	// challenge requirement counts as met.
	Precision decision.PrecisionLevel

	// Proxy is passthrough metadata for the audit record's proxy list.
	Proxy []audit.NameValue
}

// AnalyzeResult is one evaluation's complete outcome.
type AnalyzeResult struct {
	// Decision is the merged enforcement decision. A nil Action means
	// pass the request to the upstream.
	Decision decision.Decision

	// Tags is the full tag set accumulated during evaluation.
	Tags *tags.Tags

	// ResponseCode is the status the client sees: the action's status,
	// or 200 for non-blocking outcomes.
	ResponseCode int

	Stats  *audit.Stats
	Logs   *audit.Logs
	Record *audit.Record
}

// Analyze evaluates one request. The flow is fixed: baseline tags,
// global filters, action resolution, then the content filter when the
// routing policy enables it and no earlier stage produced a final
// decision. The audit record is always built; delivery to the recorder
// is best effort and never blocks.
func (e *Engine) Analyze(ctx context.Context, req AnalyzeRequest) AnalyzeResult {
	start := time.Now()
	info := req.Info
	logs := audit.NewLogs(start)

	snap := e.provider.Current()
	defer snap.Release()

	human := req.Precision.IsHuman()
	tg := tags.Baseline(info, human)

	stats := &audit.Stats{
		Revision:            snap.Revision,
		SecpolID:            info.Policy.PolicyID,
		SecpolEntryID:       info.Policy.EntryID,
		ACLActive:           info.Policy.ACLEnabled,
		ContentFilterActive: info.Policy.ContentFilterEnabled,
		ContentFilterTotal:  snap.Counts.ContentFilterRules,
		RateLimitRules:      info.Policy.LimitAmount,
	}

	gfStart := time.Now()
	sd, gfStats := filter.Evaluate(snap.Filters, info, tg, human)
	stats.GlobalFiltersTotal = gfStats.Total
	stats.GlobalFiltersMatched = gfStats.Matched
	stats.ProcessingStage = 1
	stats.AddTiming("global_filters", time.Since(gfStart).Microseconds())
	logs.Debugf("global filters: %d of %d matched", gfStats.Matched, gfStats.Total)

	var dec decision.Decision
	if sd.IsPass() {
		dec = decision.Pass(sd.Reasons)
	} else {
		dec = sd.Action.ToDecision(e.logger, req.Precision, e.challenger, info, tg, sd.Reasons)
	}

	var masked audit.Masked
	if info.Policy.ContentFilterEnabled && !dec.IsFinal() {
		cfStart := time.Now()
		profile := snap.Profile(info.Policy.ContentFilterProfile)
		if want := info.Policy.ContentFilterProfile; want != "" && profile.ID != want {
			logs.Errorf("content filter profile %q not found, using %s", want, profile.ID)
		}
		res, err := waf.Scan(profile, snap.Signatures, info)
		stats.ProcessingStage = 2
		if err != nil {
			logs.Errorf("content filter scan failed: %v", err)
			e.logger.Error("content filter scan failed",
				"profile_id", profile.ID, "error", err)
		}
		masked = audit.Masked{
			Headers: res.Masked[waf.SectionHeaders],
			Cookies: res.Masked[waf.SectionCookies],
			Args:    res.Masked[waf.SectionArgs],
		}
		if res.Blocking() {
			logs.Debugf("content filter: %d reasons", len(res.Reasons))
			wafDec := decision.DefaultSimpleAction().ToDecision(
				e.logger, req.Precision, e.challenger, info, tg, res.Reasons)
			dec = decision.Merge(dec, wafDec)
		}
		stats.AddTiming("content_filter", time.Since(cfStart).Microseconds())
	}

	responseCode := 200
	if dec.Action != nil {
		responseCode = dec.Action.Status
	}
	stats.AddTiming("total", time.Since(start).Microseconds())

	rec := audit.BuildRecord(dec, info, responseCode, tg, stats, logs, req.Proxy)
	rec.Masked = masked
	if e.recorder != nil {
		if !e.recorder.Record(rec) && e.metrics != nil {
			e.metrics.RecordAuditDrop()
		}
	}

	if e.metrics != nil {
		e.metrics.RecordEvaluation(outcome(dec), time.Since(start))
		for _, r := range dec.Reasons {
			e.metrics.RecordTrigger(string(r.Initiator))
		}
	}

	return AnalyzeResult{
		Decision:     dec,
		Tags:         tg,
		ResponseCode: responseCode,
		Stats:        stats,
		Logs:         logs,
		Record:       rec,
	}
}

// outcome labels a decision for metrics.
func outcome(dec decision.Decision) string {
	if dec.Action == nil {
		return "pass"
	}
	return string(dec.Action.Kind)
}
