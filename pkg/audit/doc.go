// Package audit builds and ships the per-request audit record: the
// full evidence trail of one evaluation, serialized to JSON with a
// fixed field layout that downstream log pipelines index on.
//
// Record construction is synchronous and cheap; serialization and
// delivery happen on the Recorder's worker goroutine so the request
// path never blocks on the audit sink. A record that fails to
// serialize is shipped as the literal null document rather than being
// dropped, so the disposition of every request stays accounted for.
package audit
