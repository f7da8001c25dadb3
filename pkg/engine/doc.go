// Package engine orchestrates one request evaluation end to end:
// baseline tagging, global filter evaluation, action resolution with
// the optional challenge capability, the content filter scan, decision
// merging, and finally the audit record and metrics.
//
// The engine itself holds no request state. Each Analyze call acquires
// the current configuration snapshot and works against it alone, so
// configuration reloads never affect an evaluation in flight.
package engine
