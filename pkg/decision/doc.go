// Package decision implements the action and decision model of the
// evaluation engine: declarative actions compiled from raw configuration,
// their request-bound resolution (including the bot-challenge side
// channel), block reasons, and the merge semantics that combine candidate
// decisions from several rule engines into one final decision.
//
// # Actions
//
// A SimpleAction is the declarative form attached to rule configuration:
// skip, monitor, custom response, or challenge, with header templates
// parsed once at load time. An Action is its request-bound counterpart
// with rendered headers and a concrete status. A Decision pairs an
// optional Action with the block reasons accumulated so far; a nil Action
// means pass.
//
// # Merging
//
// Merge and Stronger combine candidate decisions by action priority
// (Skip=9 > Custom=8 > Challenge=6 > Monitor=1, no action lowest). The
// winner is kept, the loser is discarded except for its reasons, which
// are never lost. Equal-priority Monitor decisions cooperate: their
// response headers are merged instead of one suppressing the other.
package decision
