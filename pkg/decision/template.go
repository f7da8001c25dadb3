package decision

import (
	"encoding/json"

	"mercator-hq/palisade/pkg/request"
	"mercator-hq/palisade/pkg/tags"
)

// PartKind identifies what a template part renders.
type PartKind int

const (
	// PartRaw renders literal text.
	PartRaw PartKind = iota

	// PartTag renders "true" or "false" for a tag-presence check.
	PartTag

	// PartSelector renders a request field, or the whole tag set as JSON
	// for the tags selector. A missing field renders "nil".
	PartSelector
)

// TemplatePart is one piece of a parsed header template.
type TemplatePart struct {
	Kind     PartKind
	Text     string
	Tag      string
	Selector request.Selector
}

// Template is a parsed header-value template, rendered per request
// against the snapshot and the accumulated tag set.
type Template []TemplatePart

// TemplateParser turns raw header-template text into a Template. The
// template language itself is parsed outside this core; injecting the
// parser keeps that boundary. LiteralParser is the default.
type TemplateParser func(raw string) Template

// LiteralParser treats the whole string as one literal part: header
// values pass through verbatim unless a real parser is supplied.
func LiteralParser(raw string) Template {
	return Template{{Kind: PartRaw, Text: raw}}
}

// Render evaluates the template against one request and its tag set.
func (t Template) Render(info *request.Info, tg *tags.Tags) string {
	var out []byte
	for _, p := range t {
		switch p.Kind {
		case PartRaw:
			out = append(out, p.Text...)
		case PartTag:
			if tg != nil && tg.Has(tags.Normalize(p.Tag)) {
				out = append(out, "true"...)
			} else {
				out = append(out, "false"...)
			}
		case PartSelector:
			if p.Selector.Kind == request.SelTags {
				raw, err := json.Marshal(tg)
				if err != nil {
					raw = []byte("null")
				}
				out = append(out, raw...)
				continue
			}
			v, ok := p.Selector.Select(info)
			if !ok {
				v = "nil"
			}
			out = append(out, v...)
		}
	}
	return string(out)
}
