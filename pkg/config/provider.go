package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/palisade/pkg/decision"
	"mercator-hq/palisade/pkg/filter"
	"mercator-hq/palisade/pkg/rules"
	"mercator-hq/palisade/pkg/rules/source"
	"mercator-hq/palisade/pkg/waf"
)

// Provider compiles raw rule sets into snapshots and hands the current
// one to evaluations. Swaps are atomic: an evaluation that acquired a
// snapshot keeps it until release, regardless of reloads happening
// underneath.
type Provider struct {
	logger *slog.Logger
	parser decision.TemplateParser

	mu         sync.RWMutex
	current    *Snapshot
	generation uint64

	onReload func(*Snapshot)
}

// ProviderOption adjusts a Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets the logger. The default is slog.Default.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) { p.logger = logger }
}

// WithTemplateParser sets the parser used for action header templates.
// The default treats template text as literal.
func WithTemplateParser(parser decision.TemplateParser) ProviderOption {
	return func(p *Provider) { p.parser = parser }
}

// WithReloadHook registers a callback invoked with each newly published
// snapshot. Used for metrics.
func WithReloadHook(fn func(*Snapshot)) ProviderOption {
	return func(p *Provider) { p.onReload = fn }
}

// NewProvider builds a provider seeded with an empty snapshot, so that
// Current is always usable even before the first Reload.
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		logger: slog.Default(),
		parser: decision.LiteralParser,
	}
	for _, opt := range opts {
		opt(p)
	}
	empty := &Snapshot{
		Signatures: waf.EmptySignatures(),
		Profiles:   map[string]*waf.Profile{},
		Actions:    map[string]*decision.SimpleAction{},
	}
	empty.refs.Store(1)
	p.current = empty
	return p
}

// Current acquires the current snapshot. The caller must Release it.
func (p *Provider) Current() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Acquire()
}

// Generation returns the generation of the current snapshot.
func (p *Provider) Generation() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Generation
}

// Reload compiles set into a new snapshot and publishes it. Individual
// entities that fail to compile are dropped and logged; a signature set
// that fails to compile aborts the reload and keeps the previous
// snapshot in service.
func (p *Provider) Reload(set rules.Set) error {
	signatures, err := waf.CompileSignatures(set.ContentFilterRules)
	if err != nil {
		p.logger.Error("rule set reload rejected", "revision", set.Revision, "error", err)
		return fmt.Errorf("reloading rule set %q: %w", set.Revision, err)
	}

	actions := decision.ResolveActions(p.logger, p.parser, set.Actions)
	filters := filter.Compile(p.logger, actions, set.GlobalFilters)
	profiles := waf.CompileProfiles(p.logger, set.ContentFilterProfiles)

	next := &Snapshot{
		Revision:   set.Revision,
		Filters:    filters,
		Profiles:   profiles,
		Signatures: signatures,
		Actions:    actions,
		Counts: Counts{
			Actions:               len(set.Actions),
			GlobalFilters:         len(set.GlobalFilters),
			ContentFilterProfiles: len(set.ContentFilterProfiles),
			ContentFilterRules:    len(set.ContentFilterRules),
		},
	}
	next.refs.Store(1)

	p.mu.Lock()
	p.generation++
	next.Generation = p.generation
	old := p.current
	p.current = next
	p.mu.Unlock()

	old.Release()

	p.logger.Info("rule set loaded",
		"revision", next.Revision,
		"generation", next.Generation,
		"global_filters", len(filters),
		"profiles", len(profiles),
		"signatures", signatures.Len(),
		"actions", len(actions),
	)
	if p.onReload != nil {
		p.onReload(next)
	}
	return nil
}

// Run loads the initial set from src, then watches it for updates until
// ctx is cancelled. Reload failures keep the previous snapshot.
func (p *Provider) Run(ctx context.Context, src source.Source) error {
	set, err := src.Load()
	if err != nil {
		return fmt.Errorf("initial rule set load: %w", err)
	}
	if err := p.Reload(set); err != nil {
		return err
	}
	return src.Watch(ctx, func(set rules.Set) {
		if err := p.Reload(set); err != nil {
			p.logger.Error("keeping previous snapshot", "error", err)
		}
	})
}

// Close releases the provider's reference to the current snapshot. The
// provider must not be used afterwards.
func (p *Provider) Close() {
	p.mu.Lock()
	current := p.current
	p.current = nil
	p.mu.Unlock()
	if current != nil {
		current.Release()
	}
}
