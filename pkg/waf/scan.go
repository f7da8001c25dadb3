package waf

import (
	"fmt"

	"mercator-hq/palisade/pkg/decision"
	"mercator-hq/palisade/pkg/request"
)

// ScanResult is the outcome of one WAF pass over a request.
type ScanResult struct {
	// Reasons are the restriction violations and signature hits found.
	// An empty slice means the request is clean.
	Reasons []decision.BlockReason

	// Masked lists, per section, the entry names whose values must be
	// redacted from the audit record.
	Masked map[SectionKind][]string
}

// Blocking reports whether the scan found anything actionable.
func (r *ScanResult) Blocking() bool {
	return len(r.Reasons) > 0
}

// scanTarget is one value queued for the signature pass, with enough
// context to turn a hit back into evidence.
type scanTarget struct {
	buf        []byte
	loc        request.Location
	exclusions map[string]struct{}
}

// Scan runs the profile over the request: per-section bounds, per-entry
// constraints, then one signature pass over every surviving value. The
// signature pass is vectored so the whole request costs a single scan
// regardless of how many values it carries.
func Scan(profile *Profile, db *SignatureDB, info *request.Info) (ScanResult, error) {
	res := ScanResult{Masked: make(map[SectionKind][]string)}
	var targets []scanTarget

	for _, kind := range SectionKinds {
		sec := profile.Sections.Get(kind)
		entries := sectionEntries(info, kind)

		if sec.MaxCount > 0 && len(entries) > sec.MaxCount {
			res.Reasons = append(res.Reasons, decision.RestrictionReason(
				"max_count",
				fmt.Sprintf("too many entries in %s: %d exceeds %d", kind, len(entries), sec.MaxCount),
				sectionLocation(kind)))
		}

		for name, value := range entries {
			loc := entryLocation(kind, name, value)

			if sec.MaxLength > 0 && len(value) > sec.MaxLength {
				res.Reasons = append(res.Reasons, decision.RestrictionReason(
					"max_length",
					fmt.Sprintf("%s %q too long: %d exceeds %d", kind, name, len(value), sec.MaxLength),
					loc))
			}

			var exclusions map[string]struct{}
			if m := sec.entryMatch(name); m != nil {
				if m.Mask {
					res.Masked[kind] = append(res.Masked[kind], name)
				}
				if m.Re != nil && m.Re.MatchString(value) {
					// the entry rule vouches for this value
					continue
				}
				if m.Restrict {
					res.Reasons = append(res.Reasons, decision.RestrictionReason(
						"restricted",
						fmt.Sprintf("%s %q does not match the allowed pattern", kind, name),
						loc))
					continue
				}
				exclusions = m.Exclusions
			}

			if profile.IgnoreAlphanum && isAlphanumeric(value) {
				continue
			}

			decoded := DecodeChain(profile.Decoding, value)
			targets = append(targets, scanTarget{
				buf:        []byte(decoded),
				loc:        loc,
				exclusions: exclusions,
			})
		}
	}

	if len(targets) == 0 {
		return res, nil
	}

	buffers := make([][]byte, len(targets))
	for i, t := range targets {
		buffers[i] = t.buf
	}
	hits, err := db.Scan(buffers)
	if err != nil {
		return res, fmt.Errorf("signature scan: %w", err)
	}

	seen := make(map[[2]int]struct{}, len(hits))
	for _, h := range hits {
		if _, dup := seen[[2]int{h.Pattern, h.Buffer}]; dup {
			continue
		}
		seen[[2]int{h.Pattern, h.Buffer}] = struct{}{}
		t := targets[h.Buffer]
		sig := db.Signature(h.Pattern)
		if _, excluded := t.exclusions[sig.ID]; excluded {
			continue
		}
		res.Reasons = append(res.Reasons, decision.ContentFilterReason(
			sig.ID, sig.Name, sig.Risk, sig.Certainty, t.loc))
	}
	return res, nil
}

// sectionEntries returns the name/value pairs of one request field.
func sectionEntries(info *request.Info, kind SectionKind) map[string]string {
	switch kind {
	case SectionHeaders:
		return info.Headers
	case SectionCookies:
		return info.Cookies
	case SectionArgs:
		return info.Args
	default:
		return info.PathParts
	}
}

func sectionLocation(kind SectionKind) request.Location {
	switch kind {
	case SectionHeaders:
		return request.HeadersLocation
	case SectionCookies:
		return request.CookiesLocation
	case SectionPath:
		return request.PathLocation
	default:
		return request.URILocation
	}
}

func entryLocation(kind SectionKind, name, value string) request.Location {
	switch kind {
	case SectionHeaders:
		return request.HeaderValueLocation(name, value)
	case SectionCookies:
		return request.CookieValueLocation(name, value)
	case SectionArgs:
		return request.ArgValueLocation(name, value)
	default:
		return request.PathLocation
	}
}

func isAlphanumeric(v string) bool {
	if v == "" {
		return true
	}
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
