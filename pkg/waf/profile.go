package waf

import (
	"fmt"
	"log/slog"
	"regexp"

	"mercator-hq/palisade/pkg/rules"
)

// SectionKind selects one of the four scanned request fields.
type SectionKind string

const (
	SectionHeaders SectionKind = "headers"
	SectionCookies SectionKind = "cookies"
	SectionArgs    SectionKind = "args"
	SectionPath    SectionKind = "path"
)

// SectionKinds lists the scanned fields in evaluation order.
var SectionKinds = []SectionKind{SectionPath, SectionHeaders, SectionCookies, SectionArgs}

// EntryMatch is one compiled field-entry constraint.
type EntryMatch struct {
	// Re is the value constraint; nil means no regex (an empty raw
	// pattern normalizes to none).
	Re *regexp.Regexp

	// Restrict blocks values that do not match Re.
	Restrict bool

	// Mask redacts the value in the audit record.
	Mask bool

	// Exclusions are signature rule ids to skip for this entry.
	Exclusions map[string]struct{}
}

// NamedMatch is a fallback matcher whose entry names are selected by
// regex instead of exact lookup.
type NamedMatch struct {
	Name  *regexp.Regexp
	Match EntryMatch
}

// Section bounds one request field and carries its two matcher tiers:
// exact-name lookups first, then the regex rules in declared order.
// The numeric bounds always apply, rule or no rule: they are a standing
// resource guard on the field.
type Section struct {
	MaxCount  int
	MaxLength int
	Names     map[string]EntryMatch
	Regex     []NamedMatch
}

// Sections is the fixed-shape record of the four field sections.
type Sections struct {
	Headers Section
	Cookies Section
	Args    Section
	Path    Section
}

// Get returns the section for a kind.
func (s *Sections) Get(kind SectionKind) *Section {
	switch kind {
	case SectionCookies:
		return &s.Cookies
	case SectionArgs:
		return &s.Args
	case SectionPath:
		return &s.Path
	default:
		return &s.Headers
	}
}

// Profile is one compiled WAF profile.
type Profile struct {
	ID   string
	Name string

	// IgnoreAlphanum skips purely alphanumeric values.
	IgnoreAlphanum bool

	Sections Sections

	// Decoding is the transformation chain applied to values before
	// signature matching.
	Decoding []Transformation
}

// DefaultProfileID names the hard-coded fallback profile.
const DefaultProfileID = "__default__"

// DefaultProfile is the conservative fallback used when a security
// policy references a missing or misconfigured profile id. It
// guarantees every request has some WAF posture.
func DefaultProfile() *Profile {
	return &Profile{
		ID:             DefaultProfileID,
		Name:           "default waf",
		IgnoreAlphanum: true,
		Sections: Sections{
			Headers: Section{MaxCount: 42, MaxLength: 1024},
			Cookies: Section{MaxCount: 42, MaxLength: 1024},
			Args:    Section{MaxCount: 512, MaxLength: 1024},
			Path:    Section{MaxCount: 42, MaxLength: 2048},
		},
		Decoding: []Transformation{TransformBase64, TransformHTML, TransformUnicode, TransformURL},
	}
}

// ProfileError reports why a content filter profile was dropped.
type ProfileError struct {
	ProfileID string
	Cause     error
}

// Error returns the error message.
func (e *ProfileError) Error() string {
	return fmt.Sprintf("content filter profile %s: %v", e.ProfileID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ProfileError) Unwrap() error {
	return e.Cause
}

// CompileProfiles compiles every raw profile, with per-profile atomic
// acceptance: any entry that fails to compile rejects the whole profile
// (error logged) and the rest of the load proceeds.
func CompileProfiles(logger *slog.Logger, raw []rules.ContentFilterProfile) map[string]*Profile {
	if logger == nil {
		logger = slog.Default()
	}
	out := make(map[string]*Profile, len(raw))
	for _, rp := range raw {
		p, err := compileProfile(rp)
		if err != nil {
			logger.Error("dropping content filter profile",
				"profile_id", rp.ID, "error", &ProfileError{ProfileID: rp.ID, Cause: err})
			continue
		}
		out[p.ID] = p
	}
	return out
}

func compileProfile(rp rules.ContentFilterProfile) (*Profile, error) {
	headers, err := compileSection(rp.Headers, rp.MaxHeaderLength, rp.MaxHeadersCount)
	if err != nil {
		return nil, fmt.Errorf("headers: %w", err)
	}
	cookies, err := compileSection(rp.Cookies, rp.MaxCookieLength, rp.MaxCookiesCount)
	if err != nil {
		return nil, fmt.Errorf("cookies: %w", err)
	}
	args, err := compileSection(rp.Args, rp.MaxArgLength, rp.MaxArgsCount)
	if err != nil {
		return nil, fmt.Errorf("args: %w", err)
	}
	// path shares the args bound source by convention
	path, err := compileSection(rp.Path, rp.MaxArgLength, rp.MaxArgsCount)
	if err != nil {
		return nil, fmt.Errorf("path: %w", err)
	}
	return &Profile{
		ID:             rp.ID,
		Name:           rp.Name,
		IgnoreAlphanum: rp.IgnoreAlphanum,
		Sections: Sections{
			Headers: headers,
			Cookies: cookies,
			Args:    args,
			Path:    path,
		},
		Decoding: []Transformation{TransformBase64, TransformURL, TransformHTML, TransformUnicode},
	}, nil
}

func compileSection(props rules.ContentFilterProperties, maxLength, maxCount int) (Section, error) {
	sec := Section{
		MaxCount:  maxCount,
		MaxLength: maxLength,
		Names:     make(map[string]EntryMatch, len(props.Names)),
	}
	for _, em := range props.Names {
		m, err := compileEntryMatch(em)
		if err != nil {
			return Section{}, err
		}
		sec.Names[em.Key] = m
	}
	for _, em := range props.Regex {
		name, err := regexp.Compile(em.Key)
		if err != nil {
			return Section{}, fmt.Errorf("name pattern %q: %w", em.Key, err)
		}
		m, err := compileEntryMatch(em)
		if err != nil {
			return Section{}, err
		}
		sec.Regex = append(sec.Regex, NamedMatch{Name: name, Match: m})
	}
	return sec, nil
}

func compileEntryMatch(em rules.ContentFilterEntryMatch) (EntryMatch, error) {
	out := EntryMatch{Restrict: em.Restrict, Mask: em.Mask}
	// an empty pattern means no regex is set
	if em.Reg != "" {
		re, err := regexp.Compile(em.Reg)
		if err != nil {
			return EntryMatch{}, fmt.Errorf("entry %q: %w", em.Key, err)
		}
		out.Re = re
	}
	if len(em.Exclusions) > 0 {
		out.Exclusions = make(map[string]struct{}, len(em.Exclusions))
		for _, id := range em.Exclusions {
			out.Exclusions[id] = struct{}{}
		}
	}
	return out, nil
}

// entryMatch finds the constraint for an entry name: exact lookup
// first, then the regex rules in declared order.
func (s *Section) entryMatch(name string) *EntryMatch {
	if m, ok := s.Names[name]; ok {
		return &m
	}
	for i := range s.Regex {
		if s.Regex[i].Name.MatchString(name) {
			return &s.Regex[i].Match
		}
	}
	return nil
}
