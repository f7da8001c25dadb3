package rules

// Set is one complete raw rule configuration, as produced by the
// external loader. A Set compiles into one configuration snapshot.
type Set struct {
	// Revision identifies the configuration generation for audit.
	Revision string `yaml:"revision" json:"revision"`

	Actions               []Action                `yaml:"actions" json:"actions"`
	GlobalFilters         []GlobalFilter          `yaml:"globalfilters" json:"globalfilters"`
	ContentFilterProfiles []ContentFilterProfile  `yaml:"contentfilter-profiles" json:"contentfilter-profiles"`
	ContentFilterRules    []ContentFilterRule     `yaml:"contentfilter-rules" json:"contentfilter-rules"`
}

// Action is a raw declarative action.
type Action struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`

	// Type is one of skip, monitor, custom, challenge, ichallenge.
	Type string `yaml:"type" json:"type"`

	Params ActionParams `yaml:"params" json:"params"`

	// Tags are applied to the request when the action resolves.
	Tags []string `yaml:"tags" json:"tags"`
}

// ActionParams are the type-specific action parameters.
type ActionParams struct {
	// Status is the response status; nil defaults to 503.
	Status *int `yaml:"status,omitempty" json:"status,omitempty"`

	// Headers maps response header names to raw template text.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Content is the response body for custom actions; empty defaults
	// to "blocked".
	Content string `yaml:"content,omitempty" json:"content,omitempty"`
}

// GlobalFilter is a raw global filter section: a two-level boolean tree
// of predicates, descriptive tags, and an optional action reference.
type GlobalFilter struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Source      string `yaml:"source,omitempty" json:"source,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Active filters are compiled; inactive ones are skipped.
	Active bool `yaml:"active" json:"active"`

	// Tags are attached to the request when the section matches.
	Tags []string `yaml:"tags" json:"tags"`

	// Action is the id of the action to take on match, empty for
	// tag-only sections.
	Action string `yaml:"action,omitempty" json:"action,omitempty"`

	// Relation ("and" or "or") folds the subsections.
	Relation string `yaml:"relation" json:"relation"`

	Sections []GlobalFilterSection `yaml:"sections" json:"sections"`
}

// GlobalFilterSection is one subsection: a relation over leaf entries.
type GlobalFilterSection struct {
	Relation string              `yaml:"relation" json:"relation"`
	Entries  []GlobalFilterEntry `yaml:"entries" json:"entries"`
}

// GlobalFilterEntry is a raw leaf predicate. A leading '!' on the value
// negates the entry. Pair predicates (header, args, cookies) carry the
// entry name in Key.
type GlobalFilterEntry struct {
	// Type is the predicate kind: ip, network, range4, range6, path,
	// query, uri, country, region, subregion, method, header, args,
	// cookies, asn, company, authority, tag.
	Type string `yaml:"type" json:"type"`

	Key   string `yaml:"key,omitempty" json:"key,omitempty"`
	Value string `yaml:"value" json:"value"`

	// Annotation is a free-form operator comment, ignored by the
	// compiler.
	Annotation string `yaml:"annotation,omitempty" json:"annotation,omitempty"`
}

// ContentFilterProfile is a raw WAF profile.
type ContentFilterProfile struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`

	// IgnoreAlphanum skips purely alphanumeric values, which cannot
	// carry the signatures this engine scans for.
	IgnoreAlphanum bool `yaml:"ignore_alphanum" json:"ignore_alphanum"`

	// Per-field bounds. Path shares the args bounds by convention.
	MaxHeaderLength int `yaml:"max_header_length" json:"max_header_length"`
	MaxCookieLength int `yaml:"max_cookie_length" json:"max_cookie_length"`
	MaxArgLength    int `yaml:"max_arg_length" json:"max_arg_length"`
	MaxHeadersCount int `yaml:"max_headers_count" json:"max_headers_count"`
	MaxCookiesCount int `yaml:"max_cookies_count" json:"max_cookies_count"`
	MaxArgsCount    int `yaml:"max_args_count" json:"max_args_count"`

	Headers ContentFilterProperties `yaml:"headers" json:"headers"`
	Cookies ContentFilterProperties `yaml:"cookies" json:"cookies"`
	Args    ContentFilterProperties `yaml:"args" json:"args"`
	Path    ContentFilterProperties `yaml:"path" json:"path"`
}

// ContentFilterProperties are the per-section matcher lists: exact-name
// entries and fallback name-regex entries, evaluated in declared order.
type ContentFilterProperties struct {
	Names []ContentFilterEntryMatch `yaml:"names" json:"names"`
	Regex []ContentFilterEntryMatch `yaml:"regex" json:"regex"`
}

// ContentFilterEntryMatch constrains one field entry.
type ContentFilterEntryMatch struct {
	// Key is the entry name (or name regex, for the regex list).
	Key string `yaml:"key" json:"key"`

	// Reg is the value constraint; empty means no regex.
	Reg string `yaml:"reg,omitempty" json:"reg,omitempty"`

	// Restrict blocks values that do not match Reg.
	Restrict bool `yaml:"restrict" json:"restrict"`

	// Mask redacts the value in the audit record.
	Mask bool `yaml:"mask,omitempty" json:"mask,omitempty"`

	// Exclusions lists signature rule ids to skip for this entry.
	Exclusions []string `yaml:"exclusions,omitempty" json:"exclusions,omitempty"`
}

// ContentFilterRule is a raw signature definition.
type ContentFilterRule struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Category    string `yaml:"category" json:"category"`
	Subcategory string `yaml:"subcategory" json:"subcategory"`

	// Risk is the severity classification, Certainty the confidence.
	Risk      int `yaml:"risk" json:"risk"`
	Certainty int `yaml:"certainty" json:"certainty"`

	// Operand is the signature pattern text.
	Operand string `yaml:"operand" json:"operand"`
}
