// Package source provides rule set sources: where raw rule sets come
// from and how updates to them are observed. A file source backed by
// filesystem notifications covers the common deployment; a memory
// source covers embedding and tests.
package source

import (
	"context"

	"mercator-hq/palisade/pkg/rules"
)

// Source loads a raw rule set and reports updates to it. Watch blocks
// until the context is cancelled, invoking onUpdate with each freshly
// loaded set. A set that fails to load is reported to the source's
// logger and skipped; the previous set stays in effect downstream.
type Source interface {
	Load() (rules.Set, error)
	Watch(ctx context.Context, onUpdate func(rules.Set)) error
}
